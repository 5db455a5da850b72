package monitoring

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/isdelr/ender-watch/internal/metrics"
	"github.com/isdelr/ender-watch/internal/models"
	"github.com/isdelr/ender-watch/internal/services"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/process"
)

// folderOpenerNames are shells and file managers whose last argument is
// usually the folder they were opened on.
var folderOpenerNames = map[string]bool{
	"explorer.exe":   true,
	"cmd.exe":        true,
	"powershell.exe": true,
	"nautilus":       true,
	"dolphin":        true,
	"thunar":         true,
	"nemo":           true,
	"pcmanfm":        true,
}

// ProcessInfo is the subset of process details the sensor records.
type ProcessInfo struct {
	PID     int32
	Name    string
	Cmdline []string
}

// ProcessLister enumerates and inspects OS processes.
type ProcessLister interface {
	Pids(ctx context.Context) ([]int32, error)
	Describe(ctx context.Context, pid int32) (ProcessInfo, error)
}

// SystemProcesses reads the host process table through gopsutil.
type SystemProcesses struct{}

func (SystemProcesses) Pids(ctx context.Context) ([]int32, error) {
	return process.PidsWithContext(ctx)
}

func (SystemProcesses) Describe(ctx context.Context, pid int32) (ProcessInfo, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return ProcessInfo{}, err
	}
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return ProcessInfo{}, err
	}
	cmdline, err := p.CmdlineSliceWithContext(ctx)
	if err != nil {
		return ProcessInfo{}, err
	}
	return ProcessInfo{PID: pid, Name: name, Cmdline: cmdline}, nil
}

// ProcessSensor polls the process table and records every process id it has
// not seen on the previous poll. Processes already running when the sensor
// starts form the baseline and are never reported.
type ProcessSensor struct {
	lister   ProcessLister
	recorder services.EventRecorder
	interval time.Duration
	now      func() time.Time

	known  map[int32]struct{}
	primed bool
}

// NewProcessSensor creates a new ProcessSensor polling every interval.
func NewProcessSensor(lister ProcessLister, recorder services.EventRecorder, interval time.Duration) *ProcessSensor {
	if interval <= 0 {
		interval = time.Second
	}
	return &ProcessSensor{
		lister:   lister,
		recorder: recorder,
		interval: interval,
		now:      time.Now,
	}
}

// Run polls until ctx is cancelled. The known set starts empty on every call.
func (s *ProcessSensor) Run(ctx context.Context) error {
	log.Info().Dur("interval", s.interval).Msg("Starting process sensor...")
	s.known = nil
	s.primed = false

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Take the baseline immediately on start
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping process sensor.")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick performs one poll. The first successful poll only records the baseline.
func (s *ProcessSensor) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	pids, err := s.lister.Pids(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("ProcessSensor: Failed to enumerate processes")
		return
	}

	current := make(map[int32]struct{}, len(pids))
	for _, pid := range pids {
		current[pid] = struct{}{}
	}

	if s.primed {
		var fresh []int32
		for pid := range current {
			if _, ok := s.known[pid]; !ok {
				fresh = append(fresh, pid)
			}
		}
		sort.Slice(fresh, func(i, j int) bool { return fresh[i] < fresh[j] })
		for _, pid := range fresh {
			if ctx.Err() != nil {
				return
			}
			s.report(ctx, pid)
		}
	}

	s.known = current
	s.primed = true
	metrics.ProcessesKnown.Set(float64(len(current)))
}

// report records an App Opened event for pid, and a Folder Opened event when
// a shell or file manager was started on an existing directory. Processes that
// cannot be inspected are skipped.
func (s *ProcessSensor) report(ctx context.Context, pid int32) {
	info, err := s.lister.Describe(ctx, pid)
	if err != nil {
		log.Debug().Err(err).Int32("pid", pid).Msg("ProcessSensor: Process vanished before inspection")
		return
	}

	cmdline := strings.Join(info.Cmdline, " ")
	shown := cmdline
	if shown == "" {
		shown = "No command line"
	}
	s.record(ctx, models.EventAppOpened, fmt.Sprintf("PID: %d, Name: %s, Cmdline: %s", pid, info.Name, shown))

	if openedFolder(info.Name, cmdline) != "" {
		s.record(ctx, models.EventFolderOpened, fmt.Sprintf("Folder accessed via %s: %s", info.Name, cmdline))
	}
}

// record appends one event. Writes started before Stop run to completion.
func (s *ProcessSensor) record(ctx context.Context, eventType models.EventType, details string) {
	if _, err := s.recorder.Append(context.WithoutCancel(ctx), s.now(), eventType, details); err != nil {
		log.Warn().Err(err).Str("event_type", string(eventType)).Msg("ProcessSensor: Failed to record event")
	}
}

// openedFolder returns the directory a shell or file manager was started on,
// or "" when name is not one or its last argument is not an existing directory.
func openedFolder(name, cmdline string) string {
	if !folderOpenerNames[strings.ToLower(name)] {
		return ""
	}
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return ""
	}
	last := fields[len(fields)-1]
	if fi, err := os.Stat(last); err == nil && fi.IsDir() {
		return last
	}
	return ""
}
