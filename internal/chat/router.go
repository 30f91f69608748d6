package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/parley-chat/parley/internal/store"
)

// ErrEmptyContent rejects a send_message payload with no content. Callers
// treat it as a hard protocol violation and force-close the connection.
var ErrEmptyContent = errors.New("chat: message content must not be empty")

// RouteOutcome describes how an inbound message was resolved.
type RouteOutcome int

const (
	// RouteBroadcast delivered to every registered identity, sender included.
	RouteBroadcast RouteOutcome = iota
	// RouteChannel delivered to the current members of a named channel.
	RouteChannel
	// RouteDirect delivered to a single named recipient.
	RouteDirect
	// RouteRecipientOffline found no live connection for a direct recipient;
	// the delivery is dropped, not queued.
	RouteRecipientOffline
)

// Sender identifies the authenticated author of an inbound message.
type Sender struct {
	ID       int64
	Username string
}

// Router resolves recipients for inbound messages, persists them, and
// delivers to each live recipient connection. Persistence runs before
// delivery and is strictly best-effort: a storage failure is logged and never
// blocks the live chat path. The registry lock is never held across store I/O
// or socket writes; the router only ever works on registry snapshots.
type Router struct {
	registry *Registry
	users    store.UserStore
	messages store.MessageStore
	hub      *Hub
	log      *slog.Logger
	now      func() time.Time
}

// NewRouter wires a Router to the registry it resolves recipients from, the
// stores it persists through, and the hub it delivers with.
func NewRouter(registry *Registry, users store.UserStore, messages store.MessageStore, hub *Hub, log *slog.Logger) *Router {
	return &Router{
		registry: registry,
		users:    users,
		messages: messages,
		hub:      hub,
		log:      log,
		now:      time.Now,
	}
}

// Route validates the payload, persists the message, resolves the recipient
// set, and delivers. Resolution priority: named channel, then named direct
// recipient, then full broadcast (sender receives its own echo on broadcast).
func (r *Router) Route(ctx context.Context, sender Sender, msg SendMessage) (RouteOutcome, error) {
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return 0, ErrEmptyContent
	}

	timestamp := r.now()
	r.persist(ctx, sender, content, timestamp)

	payload := marshalEvent(EventReceiveMessage, ReceiveMessage{
		Username:  sender.Username,
		Message:   content,
		Timestamp: timestamp,
	})

	switch {
	case msg.Channel != "":
		// Offline members have already fallen out of the registry; skipping
		// them silently is the contract.
		for _, identity := range r.registry.ChannelMembers(msg.Channel) {
			if client, ok := r.registry.Lookup(identity); ok {
				r.deliver(client, payload)
			}
		}
		return RouteChannel, nil

	case msg.RecipientUser != "":
		client, ok := r.registry.LookupByUsername(msg.RecipientUser)
		if !ok {
			return RouteRecipientOffline, nil
		}
		r.deliver(client, payload)
		return RouteDirect, nil

	default:
		for _, identity := range r.registry.Identities() {
			if client, ok := r.registry.Lookup(identity); ok {
				r.deliver(client, payload)
			}
		}
		return RouteBroadcast, nil
	}
}

// persist writes the message record before any delivery is attempted. The
// author must resolve to a stored user; when it does not, persistence is
// skipped with a warning and delivery proceeds anyway.
func (r *Router) persist(ctx context.Context, sender Sender, content string, timestamp time.Time) {
	if _, err := r.users.GetByID(ctx, sender.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.log.Warn("message author not found; skipping persistence", "identity", sender.ID)
		} else {
			r.log.Warn("author lookup failed; skipping persistence", "identity", sender.ID, "error", err)
		}
		return
	}

	if err := r.messages.Create(ctx, sender.ID, content, timestamp); err != nil {
		r.log.Warn("message persistence failed; delivering anyway", "identity", sender.ID, "error", err)
	}
}

// deliver is best-effort per recipient; one failed or saturated recipient
// never aborts delivery to the rest.
func (r *Router) deliver(client *Client, payload []byte) {
	if !r.hub.safeSend(client, payload) {
		r.log.Warn("delivery failed; dropping message for recipient",
			"identity", client.identity, "addr", client.addr)
	}
}
