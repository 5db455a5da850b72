package monitoring

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/isdelr/ender-watch/internal/services"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrCaptureRunning = errors.New("capture already running")
	ErrCaptureStopped = errors.New("capture not running")
)

// CaptureController starts and stops the sensors as a unit.
type CaptureController interface {
	Start() error
	Stop() error
	Running() bool
}

// CaptureOptions configures a Capture.
type CaptureOptions struct {
	WatchDir     string
	PollInterval time.Duration
	Excluded     []string // base names the file sensor ignores
}

// Capture runs the process and file sensors under one cancellable context
// derived from the parent it was created with.
type Capture struct {
	parent context.Context
	opts   CaptureOptions
	store  services.EventServiceProvider
	lister ProcessLister

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewCapture creates a new Capture. Sensors started by it stop when parent is
// cancelled or Stop is called, whichever comes first.
func NewCapture(parent context.Context, opts CaptureOptions, store services.EventServiceProvider, lister ProcessLister) *Capture {
	return &Capture{
		parent: parent,
		opts:   opts,
		store:  store,
		lister: lister,
	}
}

// Start creates the watched directory, initializes the store and starts both
// sensors. Any failure before the sensors are running is returned and nothing
// is left running.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return ErrCaptureRunning
	}
	if err := os.MkdirAll(c.opts.WatchDir, 0o755); err != nil {
		return fmt.Errorf("create watched directory %s: %w", c.opts.WatchDir, err)
	}
	if err := c.store.Initialize(c.parent); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.parent)
	g, gctx := errgroup.WithContext(ctx)

	files := NewFileSensor(c.opts.WatchDir, c.store, c.opts.Excluded)
	if err := files.Start(gctx); err != nil {
		cancel()
		return fmt.Errorf("start file sensor: %w", err)
	}
	procs := NewProcessSensor(c.lister, c.store, c.opts.PollInterval)

	g.Go(func() error { return procs.Run(gctx) })
	g.Go(func() error {
		files.Wait()
		return nil
	})

	c.cancel = cancel
	c.group = g
	log.Info().Str("watch_dir", c.opts.WatchDir).Msg("Capture started")
	return nil
}

// Stop cancels both sensors and waits until they have released their OS
// resources. An in-flight append is allowed to finish.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil {
		return ErrCaptureStopped
	}
	c.cancel()
	err := c.group.Wait()
	c.cancel = nil
	c.group = nil
	log.Info().Msg("Capture stopped")
	return err
}

// Running reports whether the sensors have been started and not yet stopped.
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}
