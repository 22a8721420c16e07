package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func expectLines(t *testing.T, body string, lines ...string) {
	t.Helper()
	for _, want := range lines {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRecordClap(t *testing.T) {
	m := NewMetrics("")
	m.RecordClap("A", 95, true, false)
	m.RecordClap("B", 4, false, true)

	expectLines(t, scrape(t, m),
		`clapbattle_clap_flags_total{flag="overdrive"} 1`,
		`clapbattle_clap_flags_total{flag="too_quiet"} 1`,
		`clapbattle_clap_score_count{verse="A"} 1`,
		`clapbattle_clap_score_sum{verse="B"} 4`,
	)
}

func TestRecordGeneration(t *testing.T) {
	m := NewMetrics("test")
	m.RecordGeneration(time.Second, "")
	m.RecordGeneration(time.Second, "rate_limited")
	m.RecordAnnouncerFallback()

	expectLines(t, scrape(t, m),
		"test_battles_total 1",
		`test_generation_errors_total{kind="rate_limited"} 1`,
		`test_generation_duration_seconds_count{status="ok"} 1`,
		"test_announcer_fallbacks_total 1",
	)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordPhase("setup", "generating")
	m.RecordGeneration(time.Second, "")
	m.RecordAnnouncerFallback()
	m.RecordClap("A", 50, false, false)
	m.RecordMicrophoneError()
	m.RecordViewerConnect()
	m.RecordViewerDisconnect()
}

func TestPhaseAndViewers(t *testing.T) {
	m := NewMetrics("")
	m.RecordPhase("setup", "generating")
	m.RecordViewerConnect()
	m.RecordViewerConnect()
	m.RecordViewerDisconnect()
	m.RecordMicrophoneError()

	expectLines(t, scrape(t, m),
		`clapbattle_phase_transitions_total{from="setup",to="generating"} 1`,
		"clapbattle_viewers_active 1",
		"clapbattle_microphone_errors_total 1",
	)
}
