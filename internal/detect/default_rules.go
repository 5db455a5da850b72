package detect

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/isdelr/ender-watch/internal/models"
)

const (
	RuleHighProcessActivity = "high_process_activity"
	RuleCriticalFileChange  = "critical_file_change"

	KindHighProcessActivity = "High Process Activity"
	KindCriticalFileChange  = "Critical File Change"
)

var processStartTypes = map[models.EventType]bool{
	models.EventAppOpened:      true,
	models.EventProcessStarted: true,
}

var fileChangeTypes = map[models.EventType]bool{
	models.EventFileModified: true,
	models.EventFileCreated:  true,
	models.EventFileDeleted:  true,
}

// HighProcessActivity counts process starts per calendar minute and alerts on
// every minute with at least threshold starts. Alerts come out in ascending
// minute order.
func HighProcessActivity(threshold int) Func {
	return func(events []models.LogEvent) []models.Alert {
		buckets := make(map[time.Time]int)
		for _, e := range events {
			if !processStartTypes[e.EventType] {
				continue
			}
			buckets[e.Timestamp.Truncate(time.Minute)]++
		}

		starts := make([]time.Time, 0, len(buckets))
		for start, count := range buckets {
			if count >= threshold {
				starts = append(starts, start)
			}
		}
		sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

		alerts := make([]models.Alert, 0, len(starts))
		for _, start := range starts {
			alerts = append(alerts, models.Alert{
				Timestamp: start,
				Kind:      KindHighProcessActivity,
				Details:   fmt.Sprintf("%d processes started within 1 minute", buckets[start]),
			})
		}
		return alerts
	}
}

// CriticalFileChange alerts once per file event whose details mention any of
// the given extensions.
func CriticalFileChange(extensions []string) Func {
	return func(events []models.LogEvent) []models.Alert {
		var alerts []models.Alert
		for _, e := range events {
			if !fileChangeTypes[e.EventType] || !containsAny(e.Details, extensions) {
				continue
			}
			alerts = append(alerts, models.Alert{
				Timestamp: e.Timestamp,
				Kind:      KindCriticalFileChange,
				Details:   "Suspicious file activity: " + e.Details,
			})
		}
		return alerts
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
