package detect

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/isdelr/ender-watch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(h, m, s int) time.Time {
	return time.Date(2026, 3, 14, h, m, s, 0, time.Local)
}

func starts(typ models.EventType, times ...time.Time) []models.LogEvent {
	out := make([]models.LogEvent, len(times))
	for i, t := range times {
		out[i] = models.LogEvent{ID: int64(i + 1), Timestamp: t, EventType: typ}
	}
	return out
}

func TestHighProcessActivity_FiveInOneMinute(t *testing.T) {
	evs := starts(models.EventProcessStarted, ts(10, 0, 5), ts(10, 0, 15), ts(10, 0, 25), ts(10, 0, 40), ts(10, 0, 55))

	alerts := HighProcessActivity(5)(evs)

	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Timestamp.Equal(ts(10, 0, 0)))
	assert.Equal(t, KindHighProcessActivity, alerts[0].Kind)
	assert.Equal(t, "5 processes started within 1 minute", alerts[0].Details)
}

func TestHighProcessActivity_FourIsBelowThreshold(t *testing.T) {
	evs := starts(models.EventProcessStarted, ts(10, 0, 5), ts(10, 0, 15), ts(10, 0, 25), ts(10, 0, 40))

	assert.Empty(t, HighProcessActivity(5)(evs))
}

func TestHighProcessActivity_BucketsAreCalendarMinutes(t *testing.T) {
	// Five starts within 60s that straddle a minute boundary never alert.
	evs := starts(models.EventAppOpened, ts(10, 0, 40), ts(10, 0, 50), ts(10, 0, 55), ts(10, 1, 5), ts(10, 1, 10))

	assert.Empty(t, HighProcessActivity(5)(evs))
}

func TestHighProcessActivity_AscendingBuckets(t *testing.T) {
	var evs []models.LogEvent
	for _, minute := range []int{7, 3} {
		for s := 0; s < 6; s++ {
			evs = append(evs, models.LogEvent{Timestamp: ts(10, minute, s), EventType: models.EventAppOpened})
		}
	}
	evs = append(evs, models.LogEvent{Timestamp: ts(10, 3, 30), EventType: models.EventFileCreated})

	alerts := HighProcessActivity(5)(evs)

	require.Len(t, alerts, 2)
	assert.True(t, alerts[0].Timestamp.Equal(ts(10, 3, 0)))
	assert.Equal(t, "6 processes started within 1 minute", alerts[0].Details)
	assert.True(t, alerts[1].Timestamp.Equal(ts(10, 7, 0)))
}

func TestCriticalFileChange(t *testing.T) {
	evs := []models.LogEvent{
		{Timestamp: ts(10, 0, 0), EventType: models.EventFileCreated, Details: `File created: C:\tools\setup.exe`},
		{Timestamp: ts(10, 0, 1), EventType: models.EventFileCreated, Details: `File created: C:\tools\readme.txt`},
		{Timestamp: ts(10, 0, 2), EventType: models.EventFolderCreated, Details: `Folder created: C:\tools\x.dll`},
		{Timestamp: ts(10, 0, 3), EventType: models.EventFileModified, Details: `File changed: C:\drivers\a.sys.dll`},
	}

	alerts := CriticalFileChange(DefaultConfig().CriticalExtensions)(evs)

	require.Len(t, alerts, 2)
	assert.Equal(t, KindCriticalFileChange, alerts[0].Kind)
	assert.Equal(t, `Suspicious file activity: File created: C:\tools\setup.exe`, alerts[0].Details)
	assert.True(t, alerts[0].Timestamp.Equal(ts(10, 0, 0)))
	// Two matching extensions in one event still yield one alert.
	assert.Equal(t, `Suspicious file activity: File changed: C:\drivers\a.sys.dll`, alerts[1].Details)
}

func TestRegistryEvaluatesInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register("second", func([]models.LogEvent) []models.Alert { return []models.Alert{{Kind: "b"}} })
	r.Register("first", func([]models.LogEvent) []models.Alert { return []models.Alert{{Kind: "a"}} })
	r.Register("second", func([]models.LogEvent) []models.Alert { return []models.Alert{{Kind: "b2"}} })

	assert.Equal(t, []string{"second", "first"}, r.Names())
	alerts := r.Evaluate(nil)
	require.Len(t, alerts, 2)
	assert.Equal(t, "b2", alerts[0].Kind)
	assert.Equal(t, "a", alerts[1].Kind)

	_, ok := r.Get("first")
	assert.True(t, ok)
	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestDefaultRegistryOrder(t *testing.T) {
	r := DefaultRegistry(DefaultConfig())
	assert.Equal(t, []string{RuleHighProcessActivity, RuleCriticalFileChange}, r.Names())
	assert.NotNil(t, r.Evaluate(nil))
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("burst_threshold: 3\ncritical_extensions: [\".ps1\"]\n"), 0o644))
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.BurstThreshold)
	assert.Equal(t, []string{".ps1"}, cfg.CriticalExtensions)

	require.NoError(t, os.WriteFile(path, []byte("burst_threshold: 0\n"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}
