// Package wsrelay implements transport.Adapter over a persistent
// gorilla/websocket connection to a room-scoped relay server.
//
// Grounded on the teacher's pkg/agent/transport/websocket.WSTransport:
// the single-connection-plus-read-goroutine shape, the mutex-guarded
// connection state, and the dial/read/write timeout fields all carry
// over. What changes is the wire contract: instead of matching
// request/response by message ID, every frame carries a named event
// and is fanned out to a registered handler (spec.md §4.6), and a
// bounded reconnect supervisor (golang.org/x/sync/errgroup) rejoins
// the room and suppresses the disconnect event while retrying (the
// "socket-cleanup race guard").
package wsrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/phoenix-x-project/phoenix/internal/logger"
	"github.com/phoenix-x-project/phoenix/metrics"
	"github.com/phoenix-x-project/phoenix/transport"
)

// Options configures a Transport. Zero-valued fields get defaults:
// 30s dial/write timeouts, 90s read timeout, 5 reconnect attempts,
// 2000ms reconnect delay. ReconnectEnabled is not defaulted: it stays
// false, and reconnect is off, unless the caller sets it.
type Options struct {
	DialTimeout       time.Duration
	WriteTimeout      time.Duration
	ReadTimeout       time.Duration
	ReconnectEnabled  bool
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	Logger            logger.Logger

	// Role labels this Transport's reconnect-attempt metrics ("dapp" or
	// "wallet"). Defaults to "unknown" when empty.
	Role string
}

func (o Options) withDefaults() Options {
	if o.DialTimeout == 0 {
		o.DialTimeout = 30 * time.Second
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = 30 * time.Second
	}
	if o.ReadTimeout == 0 {
		o.ReadTimeout = 90 * time.Second
	}
	if o.ReconnectAttempts == 0 {
		o.ReconnectAttempts = 5
	}
	if o.ReconnectDelay == 0 {
		o.ReconnectDelay = 2000 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = logger.NewDefaultLogger()
	}
	if o.Role == "" {
		o.Role = "unknown"
	}
	return o
}

// frame is the wire envelope carrying one named event.
type frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Transport is a transport.Adapter backed by a real WebSocket
// connection to a relay server.
type Transport struct {
	opts Options

	url string

	mu   sync.Mutex
	conn *websocket.Conn

	handlersMu sync.RWMutex
	handlers   map[string]func([]byte)

	stateMu         sync.RWMutex
	connected       bool
	userDisconnect  bool
	reconnecting    bool
	uuid            string
}

// New creates a Transport. Connect must be called before Join/Send.
func New(opts Options) *Transport {
	return &Transport{
		opts:     opts.withDefaults(),
		handlers: make(map[string]func([]byte)),
	}
}

func (t *Transport) Connect(ctx context.Context, serverURL string) error {
	t.url = serverURL
	return t.dial(ctx)
}

func (t *Transport) dial(ctx context.Context) error {
	dialer := &websocket.Dialer{HandshakeTimeout: t.opts.DialTimeout}

	dialCtx, cancel := context.WithTimeout(ctx, t.opts.DialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, t.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("phoenix/transport/wsrelay: dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("phoenix/transport/wsrelay: dial failed: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	t.setConnected(true)
	go t.readLoop()

	t.fire(transport.EventConnect, nil)
	return nil
}

func (t *Transport) Join(ctx context.Context, uuid string) error {
	t.stateMu.Lock()
	t.uuid = uuid
	t.stateMu.Unlock()

	payload, err := json.Marshal(map[string]string{"uuid": uuid})
	if err != nil {
		return fmt.Errorf("phoenix/transport/wsrelay: encode join payload: %w", err)
	}
	return t.Send(ctx, transport.EventJoin, payload)
}

func (t *Transport) Send(ctx context.Context, event string, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return fmt.Errorf("phoenix/transport/wsrelay: not connected")
	}
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout)); err != nil {
		return fmt.Errorf("phoenix/transport/wsrelay: set write deadline: %w", err)
	}
	if err := t.conn.WriteJSON(frame{Event: event, Payload: payload}); err != nil {
		return fmt.Errorf("phoenix/transport/wsrelay: write: %w", err)
	}
	return nil
}

func (t *Transport) On(event string, handler func(payload []byte)) {
	t.handlersMu.Lock()
	defer t.handlersMu.Unlock()
	t.handlers[event] = handler
}

func (t *Transport) fire(event string, payload []byte) {
	t.handlersMu.RLock()
	h := t.handlers[event]
	t.handlersMu.RUnlock()
	if h != nil {
		h(payload)
	}
}

func (t *Transport) isUserDisconnect() bool {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	return t.userDisconnect
}

func (t *Transport) setConnected(v bool) {
	t.stateMu.Lock()
	t.connected = v
	t.stateMu.Unlock()
}

func (t *Transport) setReconnecting(v bool) {
	t.stateMu.Lock()
	t.reconnecting = v
	t.stateMu.Unlock()
}

// readLoop reads frames until the connection fails or Disconnect is
// called. On an unexpected failure it hands off to the reconnect
// supervisor instead of firing "disconnect" immediately — the socket-
// cleanup race guard from spec.md §4.6.
func (t *Transport) readLoop() {
	for {
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(t.opts.ReadTimeout))

		var f frame
		err := conn.ReadJSON(&f)
		if err != nil {
			t.setConnected(false)
			if t.isUserDisconnect() {
				return
			}
			if t.opts.ReconnectEnabled {
				t.reconnectSupervisor()
			} else {
				t.fire(transport.EventDisconnect, nil)
			}
			return
		}

		t.fire(f.Event, f.Payload)
	}
}

// reconnectSupervisor retries dialing up to ReconnectAttempts times,
// rejoining the room on success. While it runs, no "disconnect" event
// reaches the application layer; only terminal exhaustion fires one.
func (t *Transport) reconnectSupervisor() {
	t.setReconnecting(true)
	defer t.setReconnecting(false)

	t.opts.Logger.Warn("transport connection lost, attempting reconnect")

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		for attempt := 1; attempt <= t.opts.ReconnectAttempts; attempt++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.opts.ReconnectDelay):
			}

			metrics.ReconnectAttempts.WithLabelValues(t.opts.Role).Inc()

			if err := t.dial(context.Background()); err != nil {
				t.opts.Logger.Warn("reconnect attempt failed",
					logger.Int("attempt", attempt), logger.Error(err))
				continue
			}

			t.stateMu.RLock()
			uuid := t.uuid
			t.stateMu.RUnlock()
			if uuid != "" {
				if err := t.Join(context.Background(), uuid); err != nil {
					t.opts.Logger.Warn("reconnect rejoin failed", logger.Error(err))
				}
			}
			return nil
		}
		return fmt.Errorf("phoenix/transport/wsrelay: reconnect exhausted after %d attempts", t.opts.ReconnectAttempts)
	})

	if err := g.Wait(); err != nil {
		t.opts.Logger.Error("reconnect abandoned", logger.Error(err))
		t.fire(transport.EventDisconnect, nil)
	}
}

func (t *Transport) Disconnect() error {
	t.stateMu.Lock()
	t.userDisconnect = true
	t.stateMu.Unlock()

	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := conn.Close()
	t.setConnected(false)
	t.fire(transport.EventDisconnect, nil)
	return err
}

var _ transport.Adapter = (*Transport)(nil)
