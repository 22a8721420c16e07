package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"clapbattle/internal/domain"
	"clapbattle/internal/metrics"
	"clapbattle/internal/state"
)

// Battle is the command surface of the phase machine.
type Battle interface {
	Generate(ctx context.Context, cfg domain.BattleConfig) error
	StartClaps() error
	Retry(label domain.Label) error
	NewBattle()
	Soundcheck(ctx context.Context) error
	ReadAloud(label domain.Label) error
	ReadBoth() error
	StopReading()
	DismissError()
	Snapshot() state.Snapshot
}

// Server is the HTTP and WebSocket front door of a battle.
type Server struct {
	battle  Battle
	hub     *Hub
	metrics *metrics.Metrics

	// ctx bounds background work started by commands.
	ctx      context.Context
	upgrader websocket.Upgrader
}

// New creates a server. Background work started by viewer commands is
// cancelled when ctx ends.
func New(ctx context.Context, battle Battle, hub *Hub, m *metrics.Metrics) *Server {
	return &Server{
		battle:  battle,
		hub:     hub,
		metrics: m,
		ctx:     ctx,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Clap battle listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Println("Shutting down server...")
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.battle.Snapshot())
}

type styleOption struct {
	ID    domain.Style `json:"id"`
	Label string       `json:"label"`
}

var styleOrder = []domain.Style{
	domain.StyleRap,
	domain.StyleSlamPoetry,
	domain.StyleShakespeare,
	domain.StyleCorporate,
	domain.StyleFrenchExistentialist,
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	styles := make([]styleOption, 0, len(styleOrder))
	for _, st := range styleOrder {
		styles = append(styles, styleOption{ID: st, Label: domain.StyleLabels[st]})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models":       domain.AvailableModels,
		"defaultModel": domain.DefaultModel,
		"styles":       styles,
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	s.hub.add(c)
	defer s.hub.remove(c)
	go c.writePump()

	snap := s.battle.Snapshot()
	s.hub.sendTo(c, ServerMessage{Type: MsgSnapshot, Snapshot: &snap})

	conn.SetReadLimit(maxReadBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if err := s.dispatch(c, msg); err != nil {
			s.hub.sendTo(c, ServerMessage{Type: MsgError, Message: err.Error()})
		}
	}
}

// dispatch runs one viewer command. Errors returned here are rejections
// that leave the battle unchanged.
func (s *Server) dispatch(c *client, msg ClientMessage) error {
	switch msg.Type {
	case MsgGenerate:
		if msg.Config == nil {
			return fmt.Errorf("generate needs a config")
		}
		cfg := *msg.Config
		if err := cfg.Validate(); err != nil {
			return err
		}
		go func() {
			if err := s.battle.Generate(s.ctx, cfg); err != nil && rejected(err) {
				s.hub.sendTo(c, ServerMessage{Type: MsgError, Message: err.Error()})
			}
		}()
		return nil
	case MsgStart:
		return s.battle.StartClaps()
	case MsgRetry:
		return s.battle.Retry(msg.Verse)
	case MsgNewBattle:
		s.battle.NewBattle()
		return nil
	case MsgSoundcheck:
		return s.battle.Soundcheck(s.ctx)
	case MsgReadAloud:
		return s.battle.ReadAloud(msg.Verse)
	case MsgReadBoth:
		return s.battle.ReadBoth()
	case MsgStopReading:
		s.battle.StopReading()
		return nil
	case MsgDismissError:
		s.battle.DismissError()
		return nil
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// rejected reports whether a Generate error was a refusal rather than a
// generation failure. Failures are shown through the snapshot banner.
func rejected(err error) bool {
	return errors.Is(err, state.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrEmptyTopic) ||
		errors.Is(err, domain.ErrUnknownStyle)
}
