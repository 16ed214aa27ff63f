// Package transport maintains the realtime websocket channel to the
// forum server and surfaces decoded push frames as typed events.
package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/manar-alshaikh/rtf-client/internal/types"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second
	// Interval between keepalive pings.
	pingInterval = 30 * time.Second

	sendBufferSize  = 128
	eventBufferSize = 64
)

// Reconnect policy defaults: doubling delay from the base, capped, with
// a bounded number of attempts before giving up.
const (
	DefaultBackoffBase = 1 * time.Second
	DefaultBackoffMax  = 30 * time.Second
	DefaultMaxAttempts = 10
)

// connection wraps one live websocket with a buffered outbound queue
// and an idempotent close.
type connection struct {
	ws   *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

func newConnection(ws *websocket.Conn) *connection {
	return &connection{
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// writeLoop serializes all writes to the socket and keeps it alive with
// periodic pings.
func (c *connection) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *connection) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

// Options configure a Channel.
type Options struct {
	// Header is sent with the websocket handshake (session cookie).
	Header http.Header

	BackoffBase time.Duration
	BackoffMax  time.Duration
	MaxAttempts int
}

// Channel is the client's realtime connection. It dials once on
// Connect, redials with bounded backoff after unexpected closes, and
// delivers every decoded frame on Events. Synthetic ChannelReady and
// ChannelDown events mark (re)connects and final disconnection.
type Channel struct {
	url    string
	header http.Header
	dialer *websocket.Dialer

	backoffBase time.Duration
	backoffMax  time.Duration
	maxAttempts int

	events chan types.Event

	mu     sync.Mutex
	conn   *connection
	closed bool
}

// NewChannel creates a channel for the given websocket URL. Connect
// must be called before any events arrive.
func NewChannel(url string, opts Options) *Channel {
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = DefaultBackoffMax
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &Channel{
		url:         url,
		header:      opts.Header,
		dialer:      websocket.DefaultDialer,
		backoffBase: opts.BackoffBase,
		backoffMax:  opts.BackoffMax,
		maxAttempts: opts.MaxAttempts,
		events:      make(chan types.Event, eventBufferSize),
	}
}

// Events returns the stream of decoded frames. The channel is never
// closed; after a ChannelDown event nothing more arrives until Connect
// is called again.
func (c *Channel) Events() <-chan types.Event {
	return c.events
}

// Connect dials the server and starts the read and write loops. A
// ChannelReady event is emitted on success. Reconnection after an
// unexpected close is automatic; a failed Connect is not retried.
func (c *Channel) Connect() error {
	c.mu.Lock()
	c.closed = false
	c.mu.Unlock()

	ws, _, err := c.dialer.Dial(c.url, c.header)
	if err != nil {
		return err
	}
	c.attach(ws)
	return nil
}

func (c *Channel) attach(ws *websocket.Conn) {
	conn := newConnection(ws)
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go conn.writeLoop()
	go c.readLoop(conn)
	c.emit(types.Event{Type: types.EventChannelReady})
}

// Send queues a frame, best-effort. Frames are dropped (and logged)
// when the channel is down or the outbound queue is full; callers never
// block on the network.
func (c *Channel) Send(eventType string, data any) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		zap.L().Warn("dropping outbound frame, channel down", zap.String("type", eventType))
		return
	}

	payload, err := json.Marshal(data)
	if err != nil {
		zap.L().Warn("dropping unencodable outbound frame",
			zap.String("type", eventType), zap.Error(err))
		return
	}
	frame, err := json.Marshal(types.Event{Type: eventType, Data: payload})
	if err != nil {
		zap.L().Warn("dropping unencodable outbound frame",
			zap.String("type", eventType), zap.Error(err))
		return
	}

	select {
	case conn.send <- frame:
	default:
		zap.L().Warn("dropping outbound frame, queue full", zap.String("type", eventType))
	}
}

// Close shuts the channel down for good. No reconnect is attempted.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.close()
	}
}

func (c *Channel) readLoop(conn *connection) {
	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			conn.close()
			c.mu.Lock()
			requested := c.closed
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			if requested {
				return
			}
			zap.L().Info("channel closed unexpectedly", zap.Error(err))
			c.reconnect()
			return
		}

		var ev types.Event
		if err := json.Unmarshal(raw, &ev); err != nil || ev.Type == "" {
			zap.L().Warn("discarding malformed frame", zap.ByteString("raw", raw))
			continue
		}
		c.emit(ev)
	}
}

// reconnect redials with doubling delays until it succeeds or the
// attempt budget is exhausted. The counter resets on success, so the
// budget applies per outage, not per process.
func (c *Channel) reconnect() {
	delay := c.backoffBase
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		time.Sleep(delay)

		c.mu.Lock()
		requested := c.closed
		c.mu.Unlock()
		if requested {
			return
		}

		ws, _, err := c.dialer.Dial(c.url, c.header)
		if err == nil {
			zap.L().Info("channel reconnected", zap.Int("attempt", attempt))
			c.attach(ws)
			return
		}
		zap.L().Warn("reconnect attempt failed",
			zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))

		delay *= 2
		if delay > c.backoffMax {
			delay = c.backoffMax
		}
	}
	zap.L().Error("giving up on reconnect", zap.Int("attempts", c.maxAttempts))
	c.emit(types.Event{Type: types.EventChannelDown})
}

func (c *Channel) emit(ev types.Event) {
	select {
	case c.events <- ev:
	default:
		zap.L().Warn("event buffer full, dropping frame", zap.String("type", ev.Type))
	}
}
