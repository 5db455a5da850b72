package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/ender-watch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *EventService {
	t.Helper()
	s := NewEventService(filepath.Join(t.TempDir(), "data", "logs.db"))
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func at(hour, min, sec int) time.Time {
	return time.Date(2026, 3, 14, hour, min, sec, 0, time.Local)
}

func TestInitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Append(ctx, at(10, 0, 0), models.EventAppOpened, "first")
	require.NoError(t, err)

	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Initialize(ctx))

	events, err := s.Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "first", events[0].Details)
}

func TestAppendAssignsIncreasingIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id1, err := s.Append(ctx, at(10, 0, 0), models.EventFileCreated, "File created: /w/a.txt")
	require.NoError(t, err)
	id2, err := s.Append(ctx, at(9, 0, 0), models.EventFileDeleted, "File deleted: /w/a.txt")
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	events, err := s.Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, events, 2)
	// Store order is id order, not timestamp order.
	assert.Equal(t, id1, events[0].ID)
	assert.Equal(t, models.EventFileCreated, events[0].EventType)
	assert.True(t, events[0].Timestamp.Equal(at(10, 0, 0)))
	assert.Equal(t, id2, events[1].ID)
}

func TestQuerySince(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i, ts := range []time.Time{at(9, 59, 59), at(10, 0, 0), at(10, 30, 0)} {
		_, err := s.Append(ctx, ts, models.EventAppOpened, fmt.Sprintf("e%d", i))
		require.NoError(t, err)
	}

	since := at(10, 0, 0)
	events, err := s.Query(ctx, &since)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e1", events[0].Details)
	assert.Equal(t, "e2", events[1].Details)
}

func TestRecentReturnsTailInIDOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 8; i++ {
		_, err := s.Append(ctx, at(10, 0, i), models.EventAppOpened, fmt.Sprintf("e%d", i))
		require.NoError(t, err)
	}

	events, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []string{"e5", "e6", "e7"}, []string{events[0].Details, events[1].Details, events[2].Details})
}

func TestConcurrentAppendsPreserveWriterOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const writers, perWriter = 4, 15
	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := s.Append(ctx, time.Now(), models.EventAppOpened, fmt.Sprintf("w%d-%02d", w, i)); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	events, err := s.Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, events, writers*perWriter)

	last := make(map[string]string)
	var prevID int64
	for _, e := range events {
		assert.Greater(t, e.ID, prevID)
		prevID = e.ID

		writer, seq, ok := strings.Cut(e.Details, "-")
		require.True(t, ok)
		if prev, seen := last[writer]; seen {
			assert.Less(t, prev, seq, "writer %s reordered", writer)
		}
		last[writer] = seq
	}
}

func TestAppendFailsWithoutDirectory(t *testing.T) {
	s := NewEventService(filepath.Join(t.TempDir(), "missing", "logs.db"))
	_, err := s.Append(context.Background(), time.Now(), models.EventAppOpened, "x")
	assert.Error(t, err)
}
