package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/RoyGalaxy/syncplayer-client/internal/protocol"
)

// Status is a connectivity transition. The session reacts to StatusConnected
// by re-issuing its join, which is the sole resynchronization mechanism
// after an outage.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnected
)

func (s Status) String() string {
	if s == StatusConnected {
		return "connected"
	}
	return "disconnected"
}

// Config holds configuration for the coordinator connection.
type Config struct {
	URL              string
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
	MaxMessageSize   int64
	ReconnectWait    time.Duration
	MaxReconnects    int // -1 retries forever
}

// DefaultConfig returns the default connection configuration.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		MaxMessageSize:   64 * 1024,
		ReconnectWait:    2 * time.Second,
		MaxReconnects:    -1,
	}
}

// Client maintains one WebSocket connection to the coordinator, redialing
// after failures. Inbound envelopes are delivered in arrival order on a
// single channel; no reordering or batching is performed.
type Client struct {
	cfg     Config
	clock   clockwork.Clock
	dialer  *websocket.Dialer
	send    chan []byte
	inbound chan protocol.Envelope
	status  chan Status

	mu        sync.RWMutex
	connected bool
}

// New creates a client. Run must be called before messages flow.
func New(cfg Config, clock clockwork.Clock) *Client {
	return &Client{
		cfg:   cfg,
		clock: clock,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		send:    make(chan []byte, 64),
		inbound: make(chan protocol.Envelope, 64),
		status:  make(chan Status, 8),
	}
}

// Inbound is the stream of coordinator messages, acks included.
func (c *Client) Inbound() <-chan protocol.Envelope { return c.inbound }

// Status is the stream of connectivity transitions.
func (c *Client) Status() <-chan Status { return c.status }

// IsConnected reports current connectivity.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Emit sends an envelope if connected. While disconnected it is a silent
// no-op: outbound intents are not queued or retried, the rejoin on reconnect
// restores consistency instead.
func (c *Client) Emit(env protocol.Envelope) {
	if !c.IsConnected() {
		log.Debug().Str("type", string(env.Type)).Msg("transport unavailable, dropping outbound message")
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("type", string(env.Type)).Msg("failed to marshal outbound message")
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warn().Str("type", string(env.Type)).Msg("send buffer full, dropping outbound message")
	}
}

// Run dials the coordinator and keeps the connection alive until ctx is
// done, emitting Status transitions around every connect/disconnect.
func (c *Client) Run(ctx context.Context) error {
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			attempts++
			if c.cfg.MaxReconnects >= 0 && attempts > c.cfg.MaxReconnects {
				return fmt.Errorf("dial coordinator: %w", err)
			}
			log.Warn().Err(err).Int("attempt", attempts).Str("url", c.cfg.URL).Msg("coordinator dial failed, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.clock.After(c.cfg.ReconnectWait):
			}
			continue
		}
		attempts = 0

		c.drainSend()
		c.setConnected(true)
		c.notify(ctx, StatusConnected)
		log.Info().Str("url", c.cfg.URL).Msg("coordinator connected")

		c.serve(ctx, conn)

		c.setConnected(false)
		c.notify(ctx, StatusDisconnected)
		log.Info().Msg("coordinator disconnected")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(c.cfg.ReconnectWait):
		}
	}
}

// drainSend discards messages queued against a dead connection. A missed
// intent is never replayed; the session's rejoin after StatusConnected
// restores consistency.
func (c *Client) drainSend() {
	for {
		select {
		case <-c.send:
			log.Debug().Msg("discarding outbound message queued before connect")
		default:
			return
		}
	}
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *Client) notify(ctx context.Context, s Status) {
	select {
	case c.status <- s:
	case <-ctx.Done():
	}
}

// serve runs the read and write pumps for one connection and returns when
// either side fails.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	quit := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(quit)
			conn.Close()
		})
	}
	defer stop()

	go func() {
		c.writePump(conn, quit)
		stop()
	}()

	c.readPump(ctx, conn)
}

func (c *Client) writePump(conn *websocket.Conn, quit chan struct{}) {
	ticker := c.clock.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case message := <-c.send:
			conn.SetWriteDeadline(c.clock.Now().Add(c.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Msg("failed to write message to coordinator")
				return
			}
		case <-ticker.Chan():
			conn.SetWriteDeadline(c.clock.Now().Add(c.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *Client) readPump(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(c.cfg.MaxMessageSize)
	conn.SetReadDeadline(c.clock.Now().Add(c.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(c.clock.Now().Add(c.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Msg("unexpected coordinator close")
			}
			return
		}
		conn.SetReadDeadline(c.clock.Now().Add(c.cfg.ReadTimeout))

		var env protocol.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Warn().Err(err).Msg("dropping malformed coordinator message")
			continue
		}

		select {
		case c.inbound <- env:
		case <-ctx.Done():
			return
		}
	}
}
