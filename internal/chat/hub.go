package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/parley-chat/parley/internal/auth"
	"github.com/parley-chat/parley/internal/config"
)

const welcomeText = "Welcome to the chat server!"

// Hub drives the connection lifecycle: it registers authenticated clients in
// the session registry, launches their pumps, tears state down on disconnect,
// and coordinates graceful shutdown. All lifecycle events funnel through its
// Run loop, so per-connection events stay serialized.
type Hub struct {
	registry  *Registry
	validator *auth.Validator
	policy    config.AuthPolicy
	log       *slog.Logger

	register   chan *Client
	unregister chan *Client

	mu     sync.RWMutex // guards the closed flag on clients
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub bound to the given registry and credential validator.
func NewHub(registry *Registry, validator *auth.Validator, policy config.AuthPolicy, log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:   registry,
		validator:  validator,
		policy:     policy,
		log:        log,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main event loop. It should be called in its own
// goroutine; it runs until Shutdown cancels it.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.attach(client)

		case client := <-h.unregister:
			h.detach(client)
		}
	}
}

// attach records an authenticated client in the registry, starts its pumps,
// and emits the welcome notice to that connection only.
func (h *Hub) attach(c *Client) {
	if prev := h.registry.Register(c.identity, c); prev != nil {
		// Last writer wins; the superseded connection stays open but
		// unreachable until it disconnects on its own. See DESIGN.md.
		h.log.Warn("identity superseded by new connection",
			"identity", c.identity, "old_addr", prev.addr, "new_addr", c.addr)
	}

	h.mu.Lock()
	c.closed = false
	h.mu.Unlock()

	h.log.Info("client registered",
		"identity", c.identity, "username", c.username, "addr", c.addr,
		"total", h.registry.Count())

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()

	h.safeSend(c, serverMessage(welcomeText))
}

// detach tears down registry state for a disconnected client. It is
// idempotent: a second disconnect event for the same handle finds nothing to
// remove, which is expected and logged at info.
func (h *Hub) detach(c *Client) {
	identity, ok := h.registry.UnregisterByHandle(c)

	h.mu.Lock()
	alreadyClosed := c.closed
	c.closed = true
	h.mu.Unlock()
	if !alreadyClosed {
		close(c.send)
	}

	if ok {
		h.log.Info("client unregistered",
			"identity", identity, "addr", c.addr, "total", h.registry.Count())
	} else {
		h.log.Info("disconnect for untracked connection", "addr", c.addr)
	}
}

// safeSend queues a payload for one client, reporting delivery failure
// instead of blocking or panicking when the client is gone or its buffer is
// full.
func (h *Hub) safeSend(client *Client, payload []byte) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Warn("recovered from send on closed channel", "addr", client.addr)
			sent = false
		}
	}()

	h.mu.RLock()
	defer h.mu.RUnlock()

	if client.closed {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

func (h *Hub) shutdownClients() {
	clients := h.registry.clientList()
	h.log.Info("closing client connections", "count", len(clients))

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Warn("error closing client connection", "addr", client.addr, "error", err)
			}
		}
	}
}

// Shutdown stops the hub, closes every client connection, and waits for the
// pump goroutines to finish or the timeout to pass.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached")
		return context.DeadlineExceeded
	}
}
