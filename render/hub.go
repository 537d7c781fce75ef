// Package render streams pipeline snapshots to websocket clients and
// accepts control commands from them.
package render

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"github.com/kilomelo/audio-analysis/logging"
	"github.com/kilomelo/audio-analysis/pipeline"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// writeWait is how long a single write may take
	writeWait = 5 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4 * 1024

	// sendBuffer frames may queue per client before it is dropped as slow
	sendBuffer = 8
)

// ErrUnknownCommand is returned for commands the hub does not understand.
var ErrUnknownCommand = errors.New("unknown command")

// Controller receives commands sent by clients.
type Controller interface {
	SetReferencePitch(ref float64) error
	SetFreqRange(lo, hi float64) error
	Reset()
	SetMelodyView(v pipeline.MelodyView) error
}

// Command is a control message from a client. A "view" command carries the
// melody display toggles inline, e.g. {"type":"view","show_ref_lines":false}.
type Command struct {
	Type  string     `json:"type"` // "reference_pitch", "freq_range", "reset" or "view"
	Value float64    `json:"value,omitempty"`
	Range [2]float64 `json:"range,omitempty"`
	pipeline.MelodyView
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub keeps the connected clients and broadcasts render frames to them.
type Hub struct {
	upgrader   websocket.Upgrader
	controller Controller

	mu      sync.RWMutex
	clients map[*client]struct{}
	lastSeq uint64

	framesSent  atomic.Uint64
	dropped     atomic.Uint64
	commandsRun atomic.Uint64

	logger logging.Logger
}

// NewHub creates a hub. controller may be nil, in which case client
// commands are rejected.
func NewHub(controller Controller) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		controller: controller,
		clients:    make(map[*client]struct{}),
		logger: logging.WithFields(logging.Fields{
			"component": "render_hub",
		}),
	}
}

// ServeHTTP upgrades the request and serves the client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logging.Fields{
			"remote": r.RemoteAddr,
			"error":  err.Error(),
		})
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client connected", logging.Fields{
		"remote":  r.RemoteAddr,
		"clients": count,
	})

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client disconnected", logging.Fields{
		"clients": count,
	})
}

// readPump consumes commands and pongs until the connection fails.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if err := h.HandleCommand(data); err != nil {
			h.logger.Warn("command rejected", logging.Fields{
				"error": err.Error(),
			})
		}
	}
}

// writePump is the only goroutine writing to the connection.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			h.framesSent.Add(1)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleCommand decodes and applies one client command.
func (h *Hub) HandleCommand(data []byte) error {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return fmt.Errorf("decode command: %w", err)
	}
	if h.controller == nil {
		return fmt.Errorf("%w: no controller for %q", ErrUnknownCommand, cmd.Type)
	}

	var err error
	switch cmd.Type {
	case "reference_pitch":
		err = h.controller.SetReferencePitch(cmd.Value)
	case "freq_range":
		err = h.controller.SetFreqRange(cmd.Range[0], cmd.Range[1])
	case "reset":
		h.controller.Reset()
	case "view":
		err = h.controller.SetMelodyView(cmd.MelodyView)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Type, err)
	}

	h.commandsRun.Add(1)
	h.logger.Debug("command applied", logging.Fields{
		"type": cmd.Type,
	})
	return nil
}

// Broadcast queues f for every client. A frame that is not newer than the
// previous broadcast is skipped, so the render loop may repeat frames
// freely. Clients whose queue is full are disconnected.
func (h *Hub) Broadcast(f *pipeline.RenderFrame) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if f == nil || f.Sequence <= h.lastSeq {
		return nil
	}
	h.lastSeq = f.Sequence
	if len(h.clients) == 0 {
		return nil
	}

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode render frame: %w", err)
	}

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			close(c.send)
			h.dropped.Add(1)
			h.logger.Warn("dropped slow client")
		}
	}
	return nil
}

// Sink adapts Broadcast to pipeline.Pipeline.RenderLoop.
func (h *Hub) Sink(f *pipeline.RenderFrame) {
	if err := h.Broadcast(f); err != nil {
		h.logger.Error(err, "broadcast failed")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns frames written, clients dropped and commands applied.
func (h *Hub) Stats() (sent, dropped, commands uint64) {
	return h.framesSent.Load(), h.dropped.Load(), h.commandsRun.Load()
}
