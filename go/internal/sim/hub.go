package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/knockouthq/knockout/go/internal/realtime"
	"github.com/rs/zerolog/log"
)

// HubConfig holds configuration for hub websocket connections.
type HubConfig struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	CheckOrigin    func(r *http.Request) bool
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development
			return true
		},
	}
}

// Hub fans change events out to websocket clients. Each connection manages
// its own subject set through subscribe/unsubscribe commands, so one socket
// carries all of a client's entity subscriptions.
type Hub struct {
	mu       sync.RWMutex
	subjects map[string]map[*hubConn]bool

	upgrader    websocket.Upgrader
	config      HubConfig
	broadcastCh chan realtime.ChangeEvent
}

type hubConn struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	hub  *Hub

	mu       sync.Mutex
	subjects map[string]bool
}

func NewHub(config HubConfig) *Hub {
	return &Hub{
		subjects: make(map[string]map[*hubConn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan realtime.ChangeEvent, 1000),
	}
}

// Run fans queued events out until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	log.Info().Msg("change hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("change hub shutting down")
			return
		case event := <-h.broadcastCh:
			h.fanOut(event)
		}
	}
}

// Publish enqueues an event for fan-out. Drops when the queue is full rather
// than blocking the writer; clients recover through their next load.
func (h *Hub) Publish(event realtime.ChangeEvent) {
	select {
	case h.broadcastCh <- event:
	default:
		log.Warn().
			Str("subject", realtime.Subject(event.Kind, event.Key)).
			Msg("broadcast queue full, dropping event")
	}
}

// ServeHTTP upgrades the request and starts the connection pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}

	c := &hubConn{
		id:       uuid.NewString(),
		conn:     conn,
		send:     make(chan []byte, 256),
		done:     make(chan struct{}),
		hub:      h,
		subjects: make(map[string]bool),
	}

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.id).
		Str("remote", r.RemoteAddr).
		Msg("websocket connection established")
}

func (h *Hub) subscribe(c *hubConn, subject string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subjects[subject] == nil {
		h.subjects[subject] = make(map[*hubConn]bool)
	}
	h.subjects[subject][c] = true
}

func (h *Hub) unsubscribe(c *hubConn, subject string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.subjects[subject]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.subjects, subject)
		}
	}
}

func (h *Hub) dropConn(c *hubConn) {
	c.mu.Lock()
	subjects := make([]string, 0, len(c.subjects))
	for subject := range c.subjects {
		subjects = append(subjects, subject)
	}
	c.subjects = make(map[string]bool)
	c.mu.Unlock()

	for _, subject := range subjects {
		h.unsubscribe(c, subject)
	}
}

func (h *Hub) fanOut(event realtime.ChangeEvent) {
	subject := realtime.Subject(event.Kind, event.Key)

	h.mu.RLock()
	targets := make([]*hubConn, 0, len(h.subjects[subject]))
	for c := range h.subjects[subject] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal change event")
		return
	}

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			// Slow consumer; close it and let the client reconnect.
			log.Warn().Str("connection_id", c.id).Msg("send buffer full, closing connection")
			h.dropConn(c)
			c.conn.Close()
		}
	}
}

// SubscriberCount reports connections registered for (kind, key).
func (h *Hub) SubscriberCount(kind realtime.EntityKind, key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subjects[realtime.Subject(kind, key)])
}

func (c *hubConn) handleCommand(data []byte) error {
	var cmd realtime.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return fmt.Errorf("decode command: %w", err)
	}
	subject := realtime.Subject(cmd.Kind, cmd.Key)

	switch cmd.Action {
	case realtime.ActionSubscribe:
		c.mu.Lock()
		c.subjects[subject] = true
		c.mu.Unlock()
		c.hub.subscribe(c, subject)
	case realtime.ActionUnsubscribe:
		c.mu.Lock()
		delete(c.subjects, subject)
		c.mu.Unlock()
		c.hub.unsubscribe(c, subject)
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}

	log.Debug().
		Str("connection_id", c.id).
		Str("action", cmd.Action).
		Str("subject", subject).
		Msg("subscription command handled")
	return nil
}

func (c *hubConn) readPump() {
	defer func() {
		c.hub.dropConn(c)
		c.conn.Close()
		close(c.done)
	}()

	c.conn.SetReadLimit(c.hub.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("connection_id", c.id).Msg("websocket read failed")
			}
			return
		}
		if err := c.handleCommand(data); err != nil {
			log.Warn().Err(err).Str("connection_id", c.id).Msg("bad client command")
		}
	}
}

func (c *hubConn) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.id).Msg("failed to write to websocket")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
