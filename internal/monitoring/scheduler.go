package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/isdelr/ender-watch/internal/models"
	"github.com/isdelr/ender-watch/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// analysisTimeout bounds a single scheduled analysis run.
const analysisTimeout = 30 * time.Second

// ReportPublisher receives every report the scheduler produces.
type ReportPublisher interface {
	PublishReport(report models.Report)
}

// Scheduler runs the analyzer on a cron schedule.
type Scheduler struct {
	analysisSvc services.AnalysisServiceProvider
	publisher   ReportPublisher
	schedule    cron.Schedule
	windowHours int
	done        chan struct{}
	stopOnce    sync.Once
}

// NewScheduler creates a new scheduler instance. expr is a standard cron
// expression or descriptor such as "@every 1m".
func NewScheduler(expr string, windowHours int, analysisSvc services.AnalysisServiceProvider, publisher ReportPublisher) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid analysis schedule %q: %w", expr, err)
	}
	return &Scheduler{
		analysisSvc: analysisSvc,
		publisher:   publisher,
		schedule:    schedule,
		windowHours: windowHours,
		done:        make(chan struct{}),
	}, nil
}

// Run starts the scheduler's loop. It returns after Stop is called.
func (s *Scheduler) Run() {
	log.Info().Msg("Starting analysis scheduler...")

	// Run once immediately on start
	s.runAnalysis()

	for {
		timer := time.NewTimer(time.Until(s.schedule.Next(time.Now())))
		select {
		case <-s.done:
			timer.Stop()
			log.Info().Msg("Stopping analysis scheduler.")
			return
		case <-timer.C:
			s.runAnalysis()
		}
	}
}

// Stop halts the scheduler. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Scheduler) runAnalysis() {
	ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
	defer cancel()

	report := s.analysisSvc.Run(ctx, s.windowHours)
	for _, alert := range report.Alerts {
		log.Warn().
			Time("at", alert.Timestamp).
			Str("kind", alert.Kind).
			Msg(alert.Details)
	}
	if s.publisher != nil {
		s.publisher.PublishReport(report)
	}
}
