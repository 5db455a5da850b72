package models

import "time"

// Alert is a finding derived from a window of events. Alerts are recomputed on
// every analysis run and never stored.
type Alert struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Details   string    `json:"details"`
}

// Summary describes the analyzed window.
type Summary struct {
	TotalEvents     int               `json:"totalEvents"`
	EventTypeCounts map[EventType]int `json:"eventTypeCounts,omitempty"`
	RecentEvents    []LogEvent        `json:"recentEvents,omitempty"`
}

// Report is the result of one analysis run.
type Report struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generatedAt"`
	WindowHours int       `json:"windowHours"`
	Alerts      []Alert   `json:"alerts"`
	Summary     Summary   `json:"summary"`
	Empty       bool      `json:"empty"` // true when the window held no events
}
