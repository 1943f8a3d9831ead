package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Command is the client -> server message on the websocket change feed.
type Command struct {
	Action string     `json:"action"` // "subscribe" or "unsubscribe"
	Kind   EntityKind `json:"kind"`
	Key    string     `json:"key"`
}

const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// WebSocketFeedConfig holds configuration for the websocket change feed.
type WebSocketFeedConfig struct {
	URL          string
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	PingInterval time.Duration
}

// DefaultWebSocketFeedConfig returns the defaults used against the local
// simulator.
func DefaultWebSocketFeedConfig() WebSocketFeedConfig {
	return WebSocketFeedConfig{
		URL:          "ws://localhost:8091/ws/changes",
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// WebSocketFeed consumes change events over a single websocket connection,
// multiplexing any number of (kind, key) subscriptions onto it.
type WebSocketFeed struct {
	conn   *websocket.Conn
	config WebSocketFeedConfig

	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler

	sendCh chan []byte
	done   chan struct{}
	closed sync.Once
}

func NewWebSocketFeed(ctx context.Context, config WebSocketFeedConfig) (*WebSocketFeed, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial change feed: %w", err)
	}

	f := &WebSocketFeed{
		conn:   conn,
		config: config,
		subs:   make(map[string]map[int]Handler),
		sendCh: make(chan []byte, 64),
		done:   make(chan struct{}),
	}

	go f.writePump()
	go f.readPump()

	log.Info().Str("url", config.URL).Msg("websocket change feed connected")
	return f, nil
}

// Subscribe registers a handler and tells the server to start streaming the
// (kind, key) subject.
func (f *WebSocketFeed) Subscribe(ctx context.Context, kind EntityKind, key string, fn Handler) (Unsubscribe, error) {
	subject := Subject(kind, key)

	f.mu.Lock()
	f.nextID++
	id := f.nextID
	first := len(f.subs[subject]) == 0
	if f.subs[subject] == nil {
		f.subs[subject] = make(map[int]Handler)
	}
	f.subs[subject][id] = fn
	f.mu.Unlock()

	if first {
		if err := f.sendCommand(Command{Action: ActionSubscribe, Kind: kind, Key: key}); err != nil {
			f.mu.Lock()
			delete(f.subs[subject], id)
			f.mu.Unlock()
			return nil, err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs[subject], id)
			last := len(f.subs[subject]) == 0
			if last {
				delete(f.subs, subject)
			}
			f.mu.Unlock()

			if last {
				if err := f.sendCommand(Command{Action: ActionUnsubscribe, Kind: kind, Key: key}); err != nil {
					log.Error().Err(err).Str("subject", subject).Msg("failed to send unsubscribe")
				}
			}
		})
	}, nil
}

func (f *WebSocketFeed) sendCommand(cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal feed command: %w", err)
	}
	select {
	case f.sendCh <- data:
		return nil
	case <-f.done:
		return fmt.Errorf("change feed closed")
	}
}

// writePump flushes outgoing commands and keeps the connection alive with
// periodic pings.
func (f *WebSocketFeed) writePump() {
	ticker := time.NewTicker(f.config.PingInterval)
	defer func() {
		ticker.Stop()
		f.conn.Close()
	}()

	for {
		select {
		case <-f.done:
			f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
			f.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-f.sendCh:
			f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
			if err := f.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Msg("failed to write feed command")
				return
			}
		case <-ticker.C:
			f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
			if err := f.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Msg("failed to ping change feed")
				return
			}
		}
	}
}

// readPump decodes change events and fans them out to local handlers.
func (f *WebSocketFeed) readPump() {
	defer f.Close()

	f.conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))
	f.conn.SetPongHandler(func(string) error {
		f.conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := f.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Msg("unexpected change feed close")
			}
			return
		}

		var event ChangeEvent
		if err := json.Unmarshal(message, &event); err != nil {
			log.Error().Err(err).Msg("failed to decode change event")
			continue
		}

		subject := Subject(event.Kind, event.Key)
		f.mu.RLock()
		handlers := make([]Handler, 0, len(f.subs[subject]))
		for _, fn := range f.subs[subject] {
			handlers = append(handlers, fn)
		}
		f.mu.RUnlock()

		for _, fn := range handlers {
			dispatch(fn, event)
		}
	}
}

// Close tears down the connection. Safe to call more than once.
func (f *WebSocketFeed) Close() {
	f.closed.Do(func() {
		close(f.done)
	})
}
