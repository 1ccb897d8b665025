package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	t.Parallel()

	m := New()
	m.MessageReceived("telegram")
	m.MessageReceived("telegram")
	m.MessageReceived("widget")
	m.Reply("widget", OutcomeRateLimited)
	m.SetAdapters(2)

	if got := testutil.ToFloat64(m.messagesReceived.WithLabelValues("telegram")); got != 2 {
		t.Errorf("telegram messages = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.repliesSent.WithLabelValues("widget", OutcomeRateLimited)); got != 1 {
		t.Errorf("widget rate limited replies = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.adaptersActive); got != 2 {
		t.Errorf("adapters = %v, want 2", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	m := New()
	m.Completion("openai", 300*time.Millisecond, nil)
	m.Completion("openai", time.Second, errors.New("boom"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`langcoach_llm_completion_seconds_count{outcome="ok",provider="openai"} 1`,
		`langcoach_llm_completion_seconds_count{outcome="error",provider="openai"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.MessageReceived("telegram")
	m.Reply("telegram", OutcomeOK)
	m.Completion("openai", time.Second, nil)
	m.SetAdapters(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("nil metrics handler status = %d, want 404", rec.Code)
	}
}
