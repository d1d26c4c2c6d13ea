package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(logins.WithLabelValues("invalid"))
	RecordLogin(false)
	if got := testutil.ToFloat64(logins.WithLabelValues("invalid")); got != before+1 {
		t.Fatalf("logins invalid: got %v want %v", got, before+1)
	}

	SetActiveSessions(3)
	if got := testutil.ToFloat64(activeSessions); got != 3 {
		t.Fatalf("active sessions: %v", got)
	}

	RecordAsk("anthropic", "success", 0.4, 100, 20)
	if got := testutil.ToFloat64(askTokens.WithLabelValues("anthropic", "completion")); got < 20 {
		t.Fatalf("completion tokens: %v", got)
	}

	RecordNormalize("students", 5, 2, 1)
	if got := testutil.ToFloat64(normalizedRows.WithLabelValues("students", "dropped")); got < 2 {
		t.Fatalf("dropped rows: %v", got)
	}

	RecordHTTP("GET", "/healthz", 200, 0.001)
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/healthz", "200")); got < 1 {
		t.Fatalf("http requests: %v", got)
	}
}
