package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/ThermoGo/internal/debug"
	"github.com/cjeanneret/ThermoGo/internal/logic/calibration"
	"github.com/cjeanneret/ThermoGo/internal/logic/render"
	"github.com/cjeanneret/ThermoGo/internal/thermal"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 25 * time.Second
)

// FrameMessage is the JSON sent on /frames/ws for every rendered surface.
type FrameMessage struct {
	Time   time.Time                           `json:"t"`
	Values [thermal.Size][thermal.Size]float64 `json:"values"`
	Colors []string                            `json:"colors"` // "#rrggbb", row-major
	Range  calibration.Range                   `json:"range"`
	Stats  render.Stats                        `json:"stats"`
}

// NewFrameMessage flattens a surface for the browser.
func NewFrameMessage(s render.Surface) FrameMessage {
	m := FrameMessage{Range: s.Range, Colors: make([]string, thermal.Cells)}
	for i, c := range s.Colors {
		m.Colors[i] = fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	if s.Frame != nil {
		m.Time = s.Frame.Time()
		m.Values = s.Frame.Rows()
		m.Stats = render.FrameStats(s.Frame)
	}
	return m
}

// FrameHub fans rendered surfaces out to websocket clients. The latest frame
// is kept and sent to new clients on connect.
type FrameHub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
	latest  []byte

	upgrader websocket.Upgrader
}

// NewFrameHub returns a hub with no clients.
func NewFrameHub() *FrameHub {
	return &FrameHub{
		clients: make(map[chan []byte]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// Publish encodes s once and queues it for every client. It never blocks.
func (h *FrameHub) Publish(s render.Surface) {
	data, err := json.Marshal(NewFrameMessage(s))
	if err != nil {
		debug.Error(fmt.Errorf("encode frame: %w", err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = data
	for ch := range h.clients {
		select {
		case ch <- data:
		default:
			// client lags behind, it will get the next one
		}
	}
}

// Clients returns the number of connected clients.
func (h *FrameHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *FrameHub) subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 4)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	if h.latest != nil {
		ch <- h.latest
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			h.mu.Unlock()
		})
	}
}

// ServeHTTP upgrades GET /frames/ws and streams frames until the client goes
// away.
func (h *FrameHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		debug.Verbose("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ch, unsub := h.subscribe()
	defer unsub()
	debug.Verbose("Frame client connected (%s)", r.RemoteAddr)

	done := make(chan struct{})
	go h.readLoop(conn, done)

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			debug.Verbose("Frame client disconnected (%s)", r.RemoteAddr)
			return
		case data := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// readLoop drains client messages so control frames are processed, and
// closes done when the connection breaks.
func (h *FrameHub) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
