package monitoring

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/isdelr/ender-watch/internal/metrics"
	"github.com/isdelr/ender-watch/internal/models"
	"github.com/isdelr/ender-watch/internal/services"
	"github.com/rs/zerolog/log"
)

type fileAction int

// maxGone bounds the set of forgotten directories awaiting their own delete
// notification.
const maxGone = 1024

const (
	actionModified fileAction = iota
	actionCreated
	actionDeleted
)

// FileSensor records create, modify and delete notifications for every file
// and folder under a root directory. Notifications naming the event store's
// own files are discarded.
type FileSensor struct {
	root     string
	recorder services.EventRecorder
	excluded map[string]bool
	now      func() time.Time

	// dirs and gone are owned by the worker goroutine once Start returns.
	dirs map[string]struct{}
	// gone holds directories already reported deleted. Linux reports a
	// watched directory's removal from its parent and from itself; the
	// second notification is dropped.
	gone map[string]struct{}
	wg   sync.WaitGroup
}

// NewFileSensor creates a FileSensor for root. excluded lists base names that
// are never recorded.
func NewFileSensor(root string, recorder services.EventRecorder, excluded []string) *FileSensor {
	ex := make(map[string]bool, len(excluded))
	for _, name := range excluded {
		ex[name] = true
	}
	return &FileSensor{
		root:     root,
		recorder: recorder,
		excluded: ex,
		now:      time.Now,
	}
}

// Start subscribes to notifications for the whole tree and hands them to a
// worker goroutine. Subscription errors are returned. The worker unsubscribes
// when ctx is cancelled; use Wait to block until it has finished.
func (s *FileSensor) Start(ctx context.Context) error {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return fmt.Errorf("resolve watch root %s: %w", s.root, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	s.root = root
	s.dirs = make(map[string]struct{})
	s.gone = make(map[string]struct{})
	if err := s.watchTree(watcher, root, true); err != nil {
		_ = watcher.Close()
		return err
	}

	log.Info().Str("root", root).Int("directories", len(s.dirs)).Msg("Starting file sensor...")
	s.wg.Add(1)
	go s.run(ctx, watcher)
	return nil
}

// Wait blocks until the worker started by Start has exited.
func (s *FileSensor) Wait() {
	s.wg.Wait()
}

func (s *FileSensor) run(ctx context.Context, watcher *fsnotify.Watcher) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			if err := watcher.Close(); err != nil {
				log.Warn().Err(err).Msg("FileSensor: Error closing watcher")
			}
			log.Info().Msg("Stopping file sensor.")
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			s.handle(ctx, watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("FileSensor: Watcher error")
		}
	}
}

// watchTree adds a watch for dir and every directory below it. Only a failure
// on dir itself is reported when strict is set; failures further down are
// logged and skipped.
func (s *FileSensor) watchTree(watcher *fsnotify.Watcher, dir string, strict bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && strict {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			log.Warn().Err(err).Str("path", path).Msg("FileSensor: Skipping unreadable path")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			if path == dir && strict {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			log.Warn().Err(err).Str("path", path).Msg("FileSensor: Failed to watch directory")
			return nil
		}
		s.dirs[path] = struct{}{}
		return nil
	})
}

// forget drops dir and everything below it from the watched set and marks
// them gone.
func (s *FileSensor) forget(watcher *fsnotify.Watcher, dir string) {
	if len(s.gone) >= maxGone {
		clear(s.gone)
	}
	prefix := dir + string(filepath.Separator)
	for path := range s.dirs {
		if path == dir || strings.HasPrefix(path, prefix) {
			delete(s.dirs, path)
			s.gone[path] = struct{}{}
			_ = watcher.Remove(path)
		}
	}
}

// isDir reports whether path is a directory now, or was a directory the sensor
// watched. Anything unproven counts as a file.
func (s *FileSensor) isDir(path string) bool {
	if fi, err := os.Stat(path); err == nil {
		return fi.IsDir()
	}
	_, watched := s.dirs[path]
	return watched
}

func (s *FileSensor) excludes(path string) bool {
	return s.excluded[filepath.Base(path)]
}

func (s *FileSensor) handle(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	if ctx.Err() != nil {
		return
	}
	if s.excludes(event.Name) {
		metrics.FileEventsDropped.Inc()
		return
	}

	var action fileAction
	switch {
	case event.Has(fsnotify.Create):
		action = actionCreated
	case event.Has(fsnotify.Write), event.Has(fsnotify.Chmod):
		action = actionModified
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		action = actionDeleted
	default:
		return
	}

	if _, ok := s.gone[event.Name]; ok {
		switch action {
		case actionCreated:
			delete(s.gone, event.Name)
		case actionDeleted:
			delete(s.gone, event.Name)
			return
		default:
			return
		}
	}

	dir := s.isDir(event.Name)
	switch {
	case action == actionCreated && dir:
		if err := s.watchTree(watcher, event.Name, false); err != nil {
			log.Warn().Err(err).Str("path", event.Name).Msg("FileSensor: Failed to watch new directory")
		}
	case action == actionDeleted && dir:
		s.forget(watcher, event.Name)
	}

	// A notification accepted before cancellation is written even if Stop
	// arrives mid-write.
	eventType, details := describeFileEvent(action, dir, event.Name)
	if _, err := s.recorder.Append(context.WithoutCancel(ctx), s.now(), eventType, details); err != nil {
		log.Warn().Err(err).Str("path", event.Name).Msg("FileSensor: Failed to record event")
	}
}

func describeFileEvent(action fileAction, dir bool, path string) (models.EventType, string) {
	if dir {
		switch action {
		case actionCreated:
			return models.EventFolderCreated, "Folder created: " + path
		case actionDeleted:
			return models.EventFolderDeleted, "Folder deleted: " + path
		default:
			return models.EventFolderModified, "Folder modified: " + path
		}
	}
	switch action {
	case actionCreated:
		return models.EventFileCreated, "File created: " + path
	case actionDeleted:
		return models.EventFileDeleted, "File deleted: " + path
	default:
		return models.EventFileModified, "File changed: " + path
	}
}
