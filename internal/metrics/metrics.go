package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modgate_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "modgate_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})
)

// Moderation event counters (incremented on occurrence)
var (
	ReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modgate_reports_total",
		Help: "Total number of report operations",
	}, []string{"operation"})

	CasesPendingTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modgate_cases_pending_total",
		Help: "Number of times a target crossed the report threshold",
	})

	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modgate_resolutions_total",
		Help: "Total number of case resolutions",
	}, []string{"outcome"})

	TimeoutsImposedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modgate_timeouts_imposed_total",
		Help: "Total number of timeouts imposed",
	}, []string{"reason"})

	GuardRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modgate_guard_rejections_total",
		Help: "Actions rejected because the actor was suspended",
	}, []string{"action"})

	RejectRollbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modgate_reject_rollbacks_total",
		Help: "Reject operations that were compensated after a failed step",
	})

	LiveQueueClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "modgate_live_queue_clients",
		Help: "Connected live moderation queue clients",
	})
)

// State gauges (updated periodically by collector)
var (
	ActiveTimeouts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "modgate_active_timeouts",
		Help: "Number of users currently suspended",
	})

	PendingCasesByTag = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "modgate_pending_cases",
		Help: "Number of pending moderation cases by tag",
	}, []string{"tag"})

	ContentItemsByKind = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "modgate_content_items",
		Help: "Number of stored content items by kind",
	}, []string{"kind"})
)

// NormalizePath reduces high-cardinality path labels by replacing dynamic
// segments with placeholders. This keeps the metric label space bounded.
func NormalizePath(path string) string {
	segments := splitPath(path)
	if len(segments) < 2 || segments[0] != "api" {
		return path
	}

	switch segments[1] {
	case "report", "cases", "content", "accounts", "comments", "edits":
		if len(segments) == 3 {
			return "/api/" + segments[1] + "/:id"
		}
	case "posts":
		if len(segments) == 3 {
			return "/api/posts/:id"
		}
	case "timeouts":
		if len(segments) == 3 {
			return "/api/timeouts/:user"
		}
	case "count":
		if len(segments) == 4 && segments[2] == "report" {
			return "/api/count/report/:tag"
		}
	case "blocked":
		if len(segments) == 4 {
			return "/api/blocked/" + segments[2] + "/:tag"
		}
	case "tags":
		switch len(segments) {
		case 3:
			return "/api/tags/:id"
		case 4:
			return "/api/tags/:tag/:id"
		}
	case "post", "comment", "edit":
		if len(segments) == 4 && (segments[2] == "approve" || segments[2] == "reject") {
			return "/api/" + segments[1] + "/" + segments[2] + "/:id"
		}
	}

	return path
}

func splitPath(path string) []string {
	// Skip leading slash
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	// Split on /
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			if i > start {
				segments = append(segments, path[start:i])
			}
			start = i + 1
		}
	}
	if start < len(path) {
		segments = append(segments, path[start:])
	}
	return segments
}
