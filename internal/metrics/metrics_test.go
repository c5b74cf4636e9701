package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	t.Parallel()
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/reports/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodGet, "/reports/"+id, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues("/reports/{id}", http.MethodGet, "404"))
	if got != 3 {
		t.Errorf("requests = %v, want 3", got)
	}
}

func TestCountersAndExposition(t *testing.T) {
	t.Parallel()
	m := New()
	m.ObserveGeneration("chat", time.Second, nil)
	m.ObserveGeneration("chat", time.Second, errors.New("boom"))
	m.RateLimited()
	m.RelayConnected(2)
	m.RelayConnected(-1)
	m.RelayFrame("dropped")

	if got := testutil.ToFloat64(m.generations.WithLabelValues("chat", "error")); got != 1 {
		t.Errorf("chat errors = %v", got)
	}
	if got := testutil.ToFloat64(m.relayConns); got != 1 {
		t.Errorf("relay connections = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"linkcoach_chat_rate_limited_total 1", "linkcoach_relay_frames_total"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.ObserveGeneration("report", time.Second, nil)
	m.RateLimited()
	m.RelayConnected(1)
	m.RelayFrame("forwarded")
}
