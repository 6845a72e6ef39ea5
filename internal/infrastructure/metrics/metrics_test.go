package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/meshgate-core/internal/events"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return string(body)
}

func TestMetrics_Exposition(t *testing.T) {
	m := New()

	m.RecordRelayDecision("publish", true, "gateway authenticated")
	m.RecordRelayDecision("publish", false, "invalid api key or inactive gateway")
	m.RecordRelayDecision("publish", false, "invalid api key or inactive gateway")
	m.RecordRegistration(2, 3)
	m.RecordGatewayAuth(true)
	m.RecordGatewayAuth(false)
	m.RecordUpstreamError()
	m.ObserveHTTP(http.MethodPost, "/api/v1/relay/auth", http.StatusOK, 15*time.Millisecond)
	if err := m.Handle(context.Background(), events.Event{Type: events.TypeGatewayCreated}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	body := scrape(t, m)

	tests := []string{
		`meshgate_relay_decisions_total{action="publish",decision="allow"} 1`,
		`meshgate_relay_decisions_total{action="publish",decision="deny"} 2`,
		`meshgate_device_registrations_total{status="created"} 2`,
		`meshgate_device_registrations_total{status="existing"} 3`,
		`meshgate_gateway_auth_total{result="accepted"} 1`,
		`meshgate_gateway_auth_total{result="rejected"} 1`,
		`meshgate_relay_upstream_errors_total 1`,
		`meshgate_events_total{type="gateway.created"} 1`,
		`meshgate_http_request_duration_seconds_count{method="POST",route="/api/v1/relay/auth",status="200"} 1`,
		`go_goroutines`,
	}
	for _, want := range tests {
		t.Run(want, func(t *testing.T) {
			if !strings.Contains(body, want) {
				t.Errorf("exposition missing %q", want)
			}
		})
	}
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.RecordUpstreamError()

	if strings.Contains(scrape(t, b), "meshgate_relay_upstream_errors_total 1") {
		t.Error("metrics leaked between registries")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	m.RecordRelayDecision("read", true, "")
	m.RecordRegistration(1, 1)
	m.RecordGatewayAuth(true)
	m.RecordUpstreamError()
	m.ObserveHTTP(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	if err := m.Handle(context.Background(), events.Event{Type: events.TypeRelayDenied}); err != nil {
		t.Errorf("Handle() error = %v", err)
	}
}
