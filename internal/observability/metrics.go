// Package observability holds the Prometheus collectors shared by the
// server, the assistant and the row sources.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "padi"

var (
	// httpRequests counts handled requests.
	// Labels: method, route (gin full path), code
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"method", "route", "code"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// fetches counts row fetches per table.
	// Labels: table (students, teachers), status (success, error)
	fetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "fetches_total",
		Help:      "Row fetches by table and status",
	}, []string{"table", "status"})

	fetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "fetch_duration_seconds",
		Help:      "Row fetch latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"table"})

	// normalizedRows counts rows after normalization.
	// Labels: table, outcome (kept, dropped, untimed)
	normalizedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "normalize",
		Name:      "rows_total",
		Help:      "Normalized rows by table and outcome",
	}, []string{"table", "outcome"})

	// renders counts dashboard renders.
	// Labels: scope (aggregated, admin_teacher, teacher, cli), status (success, error)
	renders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dashboard",
		Name:      "renders_total",
		Help:      "Dashboard renders by scope and status",
	}, []string{"scope", "status"})

	// asks counts assistant questions.
	// Labels: provider, result (success or an ai error kind)
	asks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assistant",
		Name:      "questions_total",
		Help:      "Assistant questions by provider and result",
	}, []string{"provider", "result"})

	askLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "assistant",
		Name:      "latency_seconds",
		Help:      "Assistant answer latency in seconds",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 30},
	}, []string{"provider"})

	askTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assistant",
		Name:      "tokens_total",
		Help:      "Tokens used by the assistant",
	}, []string{"provider", "direction"})

	// logins counts login attempts.
	// Labels: status (success, invalid)
	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "logins_total",
		Help:      "Login attempts by status",
	}, []string{"status"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "active_sessions",
		Help:      "Live sessions",
	})
)

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

func RecordHTTP(method, route string, code int, durationSec float64) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpLatency.WithLabelValues(method, route).Observe(durationSec)
}

func RecordFetch(table string, durationSec float64, ok bool) {
	fetches.WithLabelValues(table, status(ok)).Inc()
	fetchLatency.WithLabelValues(table).Observe(durationSec)
}

func RecordNormalize(table string, kept, dropped, untimed int) {
	normalizedRows.WithLabelValues(table, "kept").Add(float64(kept))
	normalizedRows.WithLabelValues(table, "dropped").Add(float64(dropped))
	normalizedRows.WithLabelValues(table, "untimed").Add(float64(untimed))
}

func RecordRender(scope string, ok bool) {
	renders.WithLabelValues(scope, status(ok)).Inc()
}

// RecordAsk records one assistant call. result is "success" or an error kind.
func RecordAsk(provider, result string, durationSec float64, promptTokens, completionTokens int) {
	asks.WithLabelValues(provider, result).Inc()
	askLatency.WithLabelValues(provider).Observe(durationSec)
	if promptTokens > 0 {
		askTokens.WithLabelValues(provider, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		askTokens.WithLabelValues(provider, "completion").Add(float64(completionTokens))
	}
}

func RecordLogin(ok bool) {
	if ok {
		logins.WithLabelValues("success").Inc()
		return
	}
	logins.WithLabelValues("invalid").Inc()
}

func SetActiveSessions(n int) { activeSessions.Set(float64(n)) }
