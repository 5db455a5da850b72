package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EventsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "enderwatch", Subsystem: "store", Name: "events_recorded_total", Help: "Events appended to the store by event type."},
		[]string{"event_type"},
	)
	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "enderwatch", Subsystem: "store", Name: "errors_total", Help: "Failed store operations by operation."},
		[]string{"op"},
	)
	ProcessesKnown = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "enderwatch", Subsystem: "process_sensor", Name: "known_processes", Help: "Size of the process sensor's known set."},
	)
	FileEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "enderwatch", Subsystem: "file_sensor", Name: "excluded_total", Help: "Notifications discarded because they named store files."},
	)
	AlertsRaised = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "enderwatch", Subsystem: "analyzer", Name: "alerts_total", Help: "Alerts produced by analysis runs by kind."},
		[]string{"kind"},
	)
	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "enderwatch", Subsystem: "analyzer", Name: "duration_seconds", Help: "Wall time of analysis runs.", Buckets: prometheus.DefBuckets},
	)
)

func init() {
	_ = prometheus.Register(EventsRecorded)
	_ = prometheus.Register(StoreErrors)
	_ = prometheus.Register(ProcessesKnown)
	_ = prometheus.Register(FileEventsDropped)
	_ = prometheus.Register(AlertsRaised)
	_ = prometheus.Register(AnalysisDuration)
}
