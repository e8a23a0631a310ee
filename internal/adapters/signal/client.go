// Package signal is the websocket attachment to the signaling channel.
// It owns connect/reconnect/close; the coordinator only sees the
// resulting Connected/Disconnected edges and decoded events.
package signal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("transport closed")
)

type Config struct {
	URL string
	// MaxAttempts bounds redials per outage; 0 means unbounded.
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	SendBuffer       int
}

func (c *Config) defaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 5
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 8 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 32
	}
}

// Client implements core.SignalTransport over gorilla/websocket.
type Client struct {
	cfg    Config
	events chan core.Event
	send   chan []byte

	mu      sync.Mutex
	conn    *websocket.Conn
	started bool
	closed  bool
	cancel  context.CancelFunc
}

func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		cfg:    cfg,
		events: make(chan core.Event, 32),
		send:   make(chan []byte, cfg.SendBuffer),
	}
}

func (c *Client) Events() <-chan core.Event { return c.events }

// Connect starts the dial loop. Idempotent: a second call while running
// is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.started {
		return nil
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
	return nil
}

// Close tears the socket down for good; run emits the terminal edge.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	cancel := c.cancel
	started := c.started
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if !started {
		// No run loop will ever emit; end the stream here.
		close(c.events)
	}
	return nil
}

// Send encodes and queues one outbound frame. Never blocks; a full queue
// surfaces as backpressure.
func (c *Client) Send(out core.Outbound) error {
	data, err := Encode(out)
	if err != nil {
		return err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

// run dials, pumps until the socket drops, and redials with exponential
// backoff. Attempts reset after every successful dial, so the bound
// applies per outage, not per session.
func (c *Client) run(ctx context.Context) {
	attempts := 0
	for {
		if ctx.Err() != nil {
			c.finish()
			return
		}
		conn, err := c.dial(ctx)
		if err != nil {
			attempts++
			log.Warn().Str("module", "signal").Int("attempt", attempts).Err(err).Msg("dial failed")
			if c.cfg.MaxAttempts > 0 && attempts >= c.cfg.MaxAttempts {
				log.Error().Str("module", "signal").Msg("reconnect attempts exhausted")
				c.finish()
				return
			}
			select {
			case <-ctx.Done():
				c.finish()
				return
			case <-time.After(c.backoff(attempts)):
			}
			continue
		}
		attempts = 0

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		// A fresh connection id per attachment; it changes on reconnect.
		connID := domain.ConnectionID(uuid.NewString())
		log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("attached")
		if !c.emit(ctx, core.Connected{ConnectionID: connID}) {
			c.finish()
			return
		}

		pumpCtx, stopPumps := context.WithCancel(ctx)
		go c.writePump(pumpCtx, conn)
		c.readPump(pumpCtx, conn)
		stopPumps()
		_ = conn.Close()

		c.mu.Lock()
		c.conn = nil
		done := c.closed || ctx.Err() != nil
		c.mu.Unlock()
		if done {
			c.finish()
			return
		}
		if !c.emit(ctx, core.Disconnected{Terminal: false}) {
			c.finish()
			return
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	return conn, err
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.cfg.BackoffBase << (attempt - 1)
	if d > c.cfg.BackoffCap || d <= 0 {
		d = c.cfg.BackoffCap
	}
	return d
}

func (c *Client) readPump(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Str("module", "signal").Err(err).Msg("read error")
			}
			return
		}
		ev, err := Decode(data)
		if err != nil {
			log.Warn().Str("module", "signal").Err(err).Msg("skipping frame")
			continue
		}
		if !c.emit(ctx, ev) {
			return
		}
	}
}

func (c *Client) writePump(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.send:
			if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				log.Error().Str("module", "signal").Err(err).Msg("writePump set deadline")
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Str("module", "signal").Err(err).Msg("writePump write error")
				return
			}
		}
	}
}

func (c *Client) emit(ctx context.Context, ev core.Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// finish emits the terminal edge and ends the event stream.
func (c *Client) finish() {
	select {
	case c.events <- core.Disconnected{Terminal: true}:
	default:
	}
	close(c.events)
}
