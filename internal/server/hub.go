package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"clapbattle/internal/clap"
	"clapbattle/internal/domain"
	"clapbattle/internal/metrics"
	"clapbattle/internal/state"
)

const (
	sendBuffer   = 256
	writeTimeout = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 20 * time.Second
	maxReadBytes = 64 << 10
)

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans battle events out to every connected viewer. It implements
// state.EventSink.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	lastSeq uint64
	metrics *metrics.Metrics
}

func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{clients: make(map[*client]struct{}), metrics: m}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.RecordViewerConnect()
	log.Printf("Viewer connected (%d total)", n)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		c.close()
		h.metrics.RecordViewerDisconnect()
		log.Printf("Viewer disconnected (%d left)", n)
	}
}

// Viewers returns the number of connected viewers.
func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to encode %s event: %v", msg.Type, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.enqueueLocked(msg.Type, data)
}

func (h *Hub) enqueueLocked(msgType string, data []byte) {
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Slow viewer; meter frames are lossy.
			if msgType != MsgMeter {
				log.Printf("Dropping %s event for slow viewer", msgType)
			}
		}
	}
}

func (h *Hub) sendTo(c *client, msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to encode %s event: %v", msg.Type, err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// PhaseChanged forwards a snapshot unless a newer one was already sent.
func (h *Hub) PhaseChanged(snap state.Snapshot) {
	data, err := json.Marshal(ServerMessage{Type: MsgSnapshot, Snapshot: &snap})
	if err != nil {
		log.Printf("Failed to encode %s event: %v", MsgSnapshot, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if snap.Seq <= h.lastSeq {
		log.Printf("Dropping stale snapshot %d (sent %d)", snap.Seq, h.lastSeq)
		return
	}
	h.lastSeq = snap.Seq
	h.enqueueLocked(MsgSnapshot, data)
}

func (h *Hub) Countdown(label domain.Label, n int) {
	h.broadcast(ServerMessage{Type: MsgCountdown, Verse: label, Count: &n})
}

func (h *Hub) Meter(r clap.Reading) {
	h.broadcast(ServerMessage{Type: MsgMeter, Verse: r.Verse, Reading: &r})
}

func (h *Hub) TimeLeft(label domain.Label, seconds int) {
	h.broadcast(ServerMessage{Type: MsgTick, Verse: label, Seconds: &seconds})
}

func (h *Hub) Scored(score domain.ClapScore) {
	h.broadcast(ServerMessage{Type: MsgScore, Verse: score.Verse, Score: &score})
}

func (h *Hub) Announced(line string) {
	h.broadcast(ServerMessage{Type: MsgAnnouncer, Line: line})
}

func (h *Hub) SoundcheckDone(score domain.ClapScore) {
	h.broadcast(ServerMessage{Type: MsgSoundcheckScore, Score: &score})
}

// writePump owns all writes to the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

var _ state.EventSink = (*Hub)(nil)
