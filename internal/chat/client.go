package chat

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/parley-chat/parley/internal/config"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// connState tracks the lifecycle of a single connection:
// Connecting -> Authenticated -> Closed. A connection that never
// authenticates goes straight to Closed.
type connState int32

const (
	stateConnecting connState = iota
	stateAuthenticated
	stateClosed
)

// ClientOptions bundles the per-connection limits taken from configuration.
type ClientOptions struct {
	MaxMessageSize int64
	RateBurst      int
	RateInterval   time.Duration
	SendBuffer     int
}

// Client is one live WebSocket connection. It owns the read/write pumps; the
// registry only holds a non-owning reference to it, keyed by identity once
// the connection authenticates.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	router *Router
	addr   string
	log    *slog.Logger

	// Set on successful authentication. token is kept for the per-message
	// re-validation policy.
	identity int64
	username string
	token    string

	state          atomic.Int32
	closed         bool // guarded by hub.mu
	limiter        *rate.Limiter
	maxMessageSize int64
}

func newClient(conn *websocket.Conn, hub *Hub, router *Router, addr string, log *slog.Logger, opts ClientOptions) *Client {
	if conn != nil {
		conn.SetReadLimit(opts.MaxMessageSize)
	}
	limit := rate.Limit(float64(opts.RateBurst) / opts.RateInterval.Seconds())

	return &Client{
		conn:           conn,
		send:           make(chan []byte, opts.SendBuffer),
		hub:            hub,
		router:         router,
		addr:           addr,
		log:            log,
		limiter:        rate.NewLimiter(limit, opts.RateBurst),
		maxMessageSize: opts.MaxMessageSize,
	}
}

// authenticate records the validated identity and moves the connection from
// Connecting to Authenticated. No message is routed before this transition.
func (c *Client) authenticate(identity int64, username, token string) {
	c.identity = identity
	c.username = username
	c.token = token
	c.state.Store(int32(stateAuthenticated))
}

// Identity returns the authenticated identity of this connection.
func (c *Client) Identity() int64 { return c.identity }

// Username returns the display name carried in the credential.
func (c *Client) Username() string { return c.username }

// forceClose aborts the connection at the transport level. It is safe to call
// more than once; the second close surfaces only an expected-close error.
func (c *Client) forceClose(code int, reason string) {
	c.state.Store(int32(stateClosed))

	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !isExpectedCloseError(err) {
		c.log.Debug("error writing close message", "addr", c.addr, "error", err)
	}
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Debug("error closing connection", "addr", c.addr, "error", err)
	}
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("error setting read deadline", "addr", c.addr, "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// handleReadError classifies a read failure and reports whether the read loop
// should stop. Every non-nil error ends the loop; the classification only
// drives log verbosity.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("message exceeded maximum size", "addr", c.addr, "limit", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info("client disconnected", "addr", c.addr, "error", err)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		c.log.Info("connection closed", "addr", c.addr, "error", err)
	default:
		c.log.Warn("websocket read error", "addr", c.addr, "error", err)
	}
	return true
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.state.Store(int32(stateClosed))
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Debug("error closing connection in readPump", "addr", c.addr, "error", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
		}

		if !c.limiter.Allow() {
			c.log.Warn("rate limit exceeded; discarding message", "addr", c.addr, "identity", c.identity)
			continue
		}

		if !c.processEvent(raw) {
			c.forceClose(websocket.ClosePolicyViolation, "protocol violation")
			break
		}
	}
}

// processEvent validates and dispatches one inbound event. Returning false
// force-closes the connection.
func (c *Client) processEvent(raw []byte) bool {
	if connState(c.state.Load()) != stateAuthenticated {
		c.log.Warn("event on unauthenticated connection", "addr", c.addr)
		return false
	}

	if c.hub.policy == config.PolicyMessage {
		if _, err := c.hub.validator.Validate(c.token); err != nil {
			// Reject the message but keep the connection; the credential may
			// be refreshed by reconnecting.
			c.log.Warn("per-message credential check failed; message rejected",
				"identity", c.identity, "error", err)
			return true
		}
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		c.log.Warn("invalid event", "addr", c.addr, "error", err)
		return false
	}

	switch env.Event {
	case EventSendMessage:
		return c.handleSendMessage(env.Data)
	case EventJoinChannel, EventLeaveChannel:
		return c.handleChannelEvent(env.Event, env.Data)
	}
	return false
}

func (c *Client) handleSendMessage(data json.RawMessage) bool {
	var msg SendMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Warn("malformed send_message payload", "addr", c.addr, "error", err)
		return false
	}

	outcome, err := c.router.Route(c.hub.ctx, Sender{ID: c.identity, Username: c.username}, msg)
	if err != nil {
		c.log.Warn("message rejected", "identity", c.identity, "error", err)
		return false
	}
	if outcome == RouteRecipientOffline {
		c.log.Info("direct recipient offline; message dropped",
			"identity", c.identity, "recipient", msg.RecipientUser)
	}
	return true
}

func (c *Client) handleChannelEvent(event string, data json.RawMessage) bool {
	var req ChannelRequest
	if err := json.Unmarshal(data, &req); err != nil || strings.TrimSpace(req.Channel) == "" {
		c.log.Warn("malformed channel payload", "addr", c.addr, "event", event)
		return false
	}

	switch event {
	case EventJoinChannel:
		if c.hub.registry.Join(req.Channel, c.identity) {
			c.hub.safeSend(c, serverMessage("Joined channel "+req.Channel))
		}
	case EventLeaveChannel:
		c.hub.registry.Leave(req.Channel, c.identity)
		c.hub.safeSend(c, serverMessage("Left channel "+req.Channel))
	}
	return true
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Debug("error closing connection in writePump", "addr", c.addr, "error", err)
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Warn("error setting write deadline", "addr", c.addr, "error", err)
				return
			}
			if !ok {
				// The hub closed the send channel on unregister.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
					c.log.Debug("error writing close message", "addr", c.addr, "error", err)
				}
				return
			}
			if !c.writeMessage(message) {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeMessage writes one message plus anything already queued behind it.
func (c *Client) writeMessage(message []byte) bool {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return false
	}
	if _, err := w.Write(message); err != nil {
		return false
	}

	n := len(c.send)
	for i := 0; i < n; i++ {
		if _, err := w.Write([]byte{'\n'}); err != nil {
			return false
		}
		if _, err := w.Write(<-c.send); err != nil {
			return false
		}
	}
	return w.Close() == nil
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
