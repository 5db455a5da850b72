package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-watch/internal/detect"
	"github.com/isdelr/ender-watch/internal/metrics"
	"github.com/isdelr/ender-watch/internal/models"
	"github.com/rs/zerolog/log"
)

// recentEventCount is how many trailing events a summary carries.
const recentEventCount = 5

// AnalysisServiceProvider defines the interface for the log analyzer.
type AnalysisServiceProvider interface {
	Run(ctx context.Context, windowHours int) models.Report
}

// AnalysisService reads a window of events and evaluates the rule set over it.
type AnalysisService struct {
	events     EventServiceProvider
	rules      *detect.Registry
	sortAlerts bool
	now        func() time.Time
}

// NewAnalysisService creates a new AnalysisService. When sortAlerts is set the
// alert list is stable-sorted by timestamp; otherwise alerts keep rule order.
func NewAnalysisService(events EventServiceProvider, rules *detect.Registry, sortAlerts bool) *AnalysisService {
	return &AnalysisService{
		events:     events,
		rules:      rules,
		sortAlerts: sortAlerts,
		now:        time.Now,
	}
}

// Run analyzes the events of the last windowHours hours. A window of zero or
// less means no lower bound. Store failures and empty windows produce an empty
// report rather than an error.
func (s *AnalysisService) Run(ctx context.Context, windowHours int) models.Report {
	started := time.Now()
	defer func() { metrics.AnalysisDuration.Observe(time.Since(started).Seconds()) }()

	report := models.Report{
		ID:          uuid.New().String(),
		GeneratedAt: s.now(),
		WindowHours: windowHours,
		Alerts:      []models.Alert{},
	}

	var since *time.Time
	if windowHours > 0 {
		cutoff := report.GeneratedAt.Add(-time.Duration(windowHours) * time.Hour)
		since = &cutoff
	}

	events, err := s.events.Query(ctx, since)
	if err != nil {
		log.Warn().Err(err).Msg("Analyzer: Failed to fetch logs")
	}
	if len(events) == 0 {
		log.Info().Int("window_hours", windowHours).Msg("No logs to analyze.")
		report.Empty = true
		return report
	}

	report.Alerts = s.rules.Evaluate(events)
	if s.sortAlerts {
		sort.SliceStable(report.Alerts, func(i, j int) bool {
			return report.Alerts[i].Timestamp.Before(report.Alerts[j].Timestamp)
		})
	}
	report.Summary = Summarize(events)

	for _, a := range report.Alerts {
		metrics.AlertsRaised.WithLabelValues(a.Kind).Inc()
	}
	log.Info().
		Str("report_id", report.ID).
		Int("window_hours", windowHours).
		Int("total_events", report.Summary.TotalEvents).
		Int("alerts", len(report.Alerts)).
		Msg("Analysis complete")
	return report
}

// Summarize tallies events by type and keeps the last few in store order.
func Summarize(events []models.LogEvent) models.Summary {
	summary := models.Summary{
		TotalEvents:     len(events),
		EventTypeCounts: make(map[models.EventType]int),
	}
	for _, e := range events {
		summary.EventTypeCounts[e.EventType]++
	}
	tail := events
	if len(tail) > recentEventCount {
		tail = tail[len(tail)-recentEventCount:]
	}
	summary.RecentEvents = append([]models.LogEvent(nil), tail...)
	return summary
}
