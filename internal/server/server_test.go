package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"clapbattle/internal/clap"
	"clapbattle/internal/domain"
	"clapbattle/internal/metrics"
	"clapbattle/internal/state"
)

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, cfg domain.BattleConfig) (domain.Verse, domain.Verse, error) {
	return domain.Verse{Label: domain.LabelA, Persona: "Sage", Text: "a", Model: cfg.ModelA},
		domain.Verse{Label: domain.LabelB, Persona: "Goblin", Text: "b", Model: cfg.ModelB},
		nil
}

func (stubGenerator) AnnounceOrFallback(context.Context, domain.Verse, domain.Verse, domain.ClapScore, domain.ClapScore) (string, bool) {
	return "Goblin wins the night!", false
}

type steadySource struct{ level float64 }

func (s steadySource) Start(context.Context) error { return nil }
func (s steadySource) Stop() error                 { return nil }
func (s steadySource) Level() float64              { return s.level }
func (s steadySource) Err() error                  { return nil }

type testServer struct {
	http    *httptest.Server
	manager *state.Manager
	hub     *Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	levels := []float64{30, 75}
	next := 0
	m := metrics.NewMetrics("")
	hub := NewHub(m)
	manager := state.NewManager(state.Options{
		Generator: stubGenerator{},
		Sources: func() clap.LoudnessSource {
			l := levels[next%len(levels)]
			next++
			return steadySource{level: l}
		},
		Clap: clap.Config{
			Duration:      1,
			CountdownFrom: 1,
			Tick:          20 * time.Millisecond,
			FrameInterval: 5 * time.Millisecond,
		},
		Sink:    hub,
		Metrics: m,
	})

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(New(ctx, manager, hub, m).Handler())
	t.Cleanup(func() {
		cancel()
		srv.Close()
		manager.Close()
	})
	return &testServer{http: srv, manager: manager, hub: hub}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil reads frames until match returns true.
func readUntil(t *testing.T, conn *websocket.Conn, what string, match func(ServerMessage) bool) ServerMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", what, err)
		}
		if match(msg) {
			return msg
		}
	}
}

func phaseIs(p domain.Phase) func(ServerMessage) bool {
	return func(m ServerMessage) bool {
		return m.Type == MsgSnapshot && m.Snapshot != nil && m.Snapshot.Phase == p
	}
}

func TestWebSocketBattle(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	first := readUntil(t, conn, "initial snapshot", phaseIs(domain.PhaseSetup))
	if first.Snapshot.BattleID == "" {
		t.Error("snapshot should carry a battle id")
	}

	send(t, conn, ClientMessage{Type: MsgGenerate, Config: &domain.BattleConfig{Topic: "cats", Style: domain.StyleShakespeare}})
	verses := readUntil(t, conn, "verses", phaseIs(domain.PhaseShowVerses))
	if verses.Snapshot.VerseA.Persona != "Sage" || verses.Snapshot.VerseB.Persona != "Goblin" {
		t.Fatalf("unexpected verses %+v", verses.Snapshot)
	}

	send(t, conn, ClientMessage{Type: MsgStart})
	readUntil(t, conn, "countdown", func(m ServerMessage) bool { return m.Type == MsgCountdown && m.Verse == domain.LabelA })
	readUntil(t, conn, "meter", func(m ServerMessage) bool { return m.Type == MsgMeter && m.Reading != nil })
	scoreA := readUntil(t, conn, "score A", func(m ServerMessage) bool { return m.Type == MsgScore })
	if scoreA.Score.Verse != domain.LabelA || scoreA.Score.Score != 30 {
		t.Errorf("unexpected first score %+v", scoreA.Score)
	}

	// The announcer frame always precedes the snapshot carrying its line.
	var announced string
	result := readUntil(t, conn, "announced result", func(m ServerMessage) bool {
		if m.Type == MsgAnnouncer {
			announced = m.Line
		}
		return phaseIs(domain.PhaseResult)(m) && m.Snapshot.AnnouncerLine != ""
	})
	if result.Snapshot.Winner != "B" || result.Snapshot.Highlight != domain.LabelB {
		t.Errorf("winner = %q highlight = %q", result.Snapshot.Winner, result.Snapshot.Highlight)
	}
	if announced != "Goblin wins the night!" || result.Snapshot.AnnouncerLine != announced {
		t.Errorf("announcer = %q, snapshot line = %q", announced, result.Snapshot.AnnouncerLine)
	}

	send(t, conn, ClientMessage{Type: MsgNewBattle})
	reset := readUntil(t, conn, "reset", phaseIs(domain.PhaseSetup))
	if reset.Snapshot.VerseA != nil || reset.Snapshot.ClapA != nil || reset.Snapshot.BattleID == first.Snapshot.BattleID {
		t.Errorf("new battle not reset: %+v", reset.Snapshot)
	}
}

func TestWebSocketRejectsInvalidCommands(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)
	readUntil(t, conn, "initial snapshot", phaseIs(domain.PhaseSetup))

	send(t, conn, ClientMessage{Type: MsgStart})
	msg := readUntil(t, conn, "error", func(m ServerMessage) bool { return m.Type == MsgError })
	if !strings.Contains(msg.Message, "invalid transition") {
		t.Errorf("unexpected error %q", msg.Message)
	}

	send(t, conn, ClientMessage{Type: MsgGenerate, Config: &domain.BattleConfig{Topic: " ", Style: domain.StyleRap}})
	msg = readUntil(t, conn, "topic error", func(m ServerMessage) bool { return m.Type == MsgError })
	if msg.Message != domain.ErrEmptyTopic.Error() {
		t.Errorf("unexpected error %q", msg.Message)
	}

	send(t, conn, ClientMessage{Type: "dance"})
	msg = readUntil(t, conn, "unknown type error", func(m ServerMessage) bool { return m.Type == MsgError })
	if !strings.Contains(msg.Message, "dance") {
		t.Errorf("unexpected error %q", msg.Message)
	}

	if ts.manager.Snapshot().Phase != domain.PhaseSetup {
		t.Error("rejected commands must not change the phase")
	}
}

func TestWebSocketSoundcheck(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)
	readUntil(t, conn, "initial snapshot", phaseIs(domain.PhaseSetup))

	send(t, conn, ClientMessage{Type: MsgSoundcheck})
	msg := readUntil(t, conn, "soundcheck score", func(m ServerMessage) bool { return m.Type == MsgSoundcheckScore })
	if msg.Score == nil || msg.Score.Score != 30 {
		t.Errorf("unexpected soundcheck result %+v", msg.Score)
	}
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func TestRESTRoutes(t *testing.T) {
	ts := newTestServer(t)

	var snap state.Snapshot
	getJSON(t, ts.http.URL+"/api/state", &snap)
	if snap.Phase != domain.PhaseSetup {
		t.Errorf("phase = %s", snap.Phase)
	}

	var catalogue struct {
		Models       []domain.ModelOption `json:"models"`
		DefaultModel string               `json:"defaultModel"`
		Styles       []styleOption        `json:"styles"`
	}
	getJSON(t, ts.http.URL+"/api/models", &catalogue)
	if len(catalogue.Models) != len(domain.AvailableModels) || catalogue.DefaultModel != domain.DefaultModel {
		t.Errorf("unexpected catalogue %+v", catalogue)
	}
	if len(catalogue.Styles) != 5 || catalogue.Styles[0].Label != "Rap Battle" {
		t.Errorf("unexpected styles %+v", catalogue.Styles)
	}

	resp, err := http.Get(ts.http.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("healthz = %q", body)
	}

	conn := ts.dial(t)
	readUntil(t, conn, "initial snapshot", phaseIs(domain.PhaseSetup))

	resp, err = http.Get(ts.http.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "clapbattle_viewers_active 1") {
		t.Errorf("metrics should count the viewer:\n%s", body)
	}
}
