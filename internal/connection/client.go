package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/pushchannel/internal/version"
)

// Transport is a bidirectional, framed text connection.
type Transport interface {
	// ReadFrame blocks until one frame arrives. A graceful remote close
	// returns io.EOF.
	ReadFrame(ctx context.Context) ([]byte, error)

	// Send writes one UTF-8 text frame.
	Send(ctx context.Context, data []byte) error

	// Ping writes a ping control frame.
	Ping(ctx context.Context) error

	// Close closes the connection. Safe to call more than once.
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, uri string) (Transport, error)
}

// WebSocketDialer opens gorilla/websocket transports.
type WebSocketDialer struct {
	cfg    TransportConfig
	logger *slog.Logger
}

// NewWebSocketDialer creates a dialer.
func NewWebSocketDialer(cfg TransportConfig, logger *slog.Logger) *WebSocketDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketDialer{cfg: cfg, logger: logger}
}

// Dial establishes the WebSocket connection.
func (d *WebSocketDialer) Dial(ctx context.Context, uri string) (Transport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	conn, _, err := dialer.DialContext(ctx, uri, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", uri, err)
	}
	if d.cfg.ReadLimit > 0 {
		conn.SetReadLimit(d.cfg.ReadLimit)
	}

	t := &wsTransport{
		cfg:          d.cfg,
		logger:       d.logger.With("uri", uri),
		conn:         conn,
		done:         make(chan struct{}),
		lastActivity: time.Now(),
	}

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		t.touch()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})
	conn.SetPongHandler(func(string) error {
		t.touch()
		return nil
	})

	if d.cfg.PingTimeout > 0 {
		go t.heartbeatLoop()
	}

	d.logger.Debug("websocket connected", "uri", uri)
	return t, nil
}

// wsTransport implements Transport over a websocket connection.
type wsTransport struct {
	cfg    TransportConfig
	logger *slog.Logger

	conn *websocket.Conn
	done chan struct{}

	// Write serialization
	writeMu sync.Mutex

	mu           sync.Mutex
	closed       bool
	lastActivity time.Time
}

func (t *wsTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, data, err := t.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	t.touch()
	return data, nil
}

func (t *wsTransport) Send(ctx context.Context, data []byte) error {
	if t.isClosed() {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(t.deadline(ctx))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Ping(ctx context.Context) error {
	if t.isClosed() {
		return ErrNotConnected
	}
	return t.conn.WriteControl(websocket.PingMessage, nil, t.deadline(ctx))
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	close(t.done)

	t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (t *wsTransport) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(t.cfg.WriteTimeout)
	if t.cfg.WriteTimeout <= 0 {
		deadline = time.Now().Add(5 * time.Second)
	}
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}

func (t *wsTransport) touch() {
	t.mu.Lock()
	t.lastActivity = time.Now()
	t.mu.Unlock()
}

func (t *wsTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// heartbeatLoop closes the connection when nothing has been heard from the
// server for PingTimeout. The pending read then fails and the chain stops.
func (t *wsTransport) heartbeatLoop() {
	interval := t.cfg.PingTimeout / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.mu.Lock()
			last := t.lastActivity
			t.mu.Unlock()

			if time.Since(last) > t.cfg.PingTimeout {
				t.logger.Warn("no activity from server, connection stale",
					"last_activity", last,
					"timeout", t.cfg.PingTimeout,
					"error", ErrStaleConnection,
				)
				_ = t.Close()
				return
			}
		}
	}
}
