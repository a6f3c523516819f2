package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	summaryRequested atomic.Int64
	summarySucceeded atomic.Int64
	summaryFallback  atomic.Int64
	summaryFailed    atomic.Int64
	vitalsRecorded   atomic.Int64
	actionsRecorded  atomic.Int64
	triageUpdates    atomic.Int64
	feedClients      atomic.Int64
	eventsPublished  atomic.Int64
	eventsFailed     atomic.Int64
)

func SummaryRequested() { summaryRequested.Add(1) }

// SummarySucceeded counts a 200 reply; fallback marks replies that carried
// the canned text instead of model output.
func SummarySucceeded(fallback bool) {
	summarySucceeded.Add(1)
	if fallback {
		summaryFallback.Add(1)
	}
}

func SummaryFailed() { summaryFailed.Add(1) }

func VitalRecorded()  { vitalsRecorded.Add(1) }
func ActionRecorded() { actionsRecorded.Add(1) }
func TriageUpdated()  { triageUpdates.Add(1) }

func FeedClientConnected()    { feedClients.Add(1) }
func FeedClientDisconnected() { feedClients.Add(-1) }

func EventPublished(ok bool) {
	if ok {
		eventsPublished.Add(1)
		return
	}
	eventsFailed.Add(1)
}

// Snapshot exposes current values, mostly for tests.
func Snapshot() map[string]int64 {
	return map[string]int64{
		"summary_requested": summaryRequested.Load(),
		"summary_succeeded": summarySucceeded.Load(),
		"summary_fallback":  summaryFallback.Load(),
		"summary_failed":    summaryFailed.Load(),
		"vitals_recorded":   vitalsRecorded.Load(),
		"actions_recorded":  actionsRecorded.Load(),
		"triage_updates":    triageUpdates.Load(),
		"feed_clients":      feedClients.Load(),
		"events_published":  eventsPublished.Load(),
		"events_failed":     eventsFailed.Load(),
	}
}

func writeMetric(w http.ResponseWriter, name, kind, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %d\n", name, value)
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	writeMetric(w, "triagex_summary_requests_total", "counter", "Summary requests that reached the model.", summaryRequested.Load())
	writeMetric(w, "triagex_summary_success_total", "counter", "Summary requests answered with 200.", summarySucceeded.Load())
	writeMetric(w, "triagex_summary_fallback_total", "counter", "Summaries answered with the fallback text.", summaryFallback.Load())
	writeMetric(w, "triagex_summary_failed_total", "counter", "Summary requests where the model call failed.", summaryFailed.Load())
	writeMetric(w, "triagex_intake_vitals_recorded_total", "counter", "Vital sign readings stored.", vitalsRecorded.Load())
	writeMetric(w, "triagex_intake_actions_recorded_total", "counter", "Paramedic actions stored.", actionsRecorded.Load())
	writeMetric(w, "triagex_triage_updates_total", "counter", "Triage level changes applied to patients.", triageUpdates.Load())
	writeMetric(w, "triagex_feed_clients", "gauge", "Connected live feed clients.", feedClients.Load())
	writeMetric(w, "triagex_events_published_total", "counter", "Intake events published to Kafka.", eventsPublished.Load())
	writeMetric(w, "triagex_events_failed_total", "counter", "Intake events that failed to publish.", eventsFailed.Load())
}

// Handler serves the Prometheus text exposition.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WritePrometheus(w)
	})
}
