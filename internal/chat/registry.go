package chat

import (
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

// Registry is the process-wide mapping from authenticated identity to live
// connection, plus the ephemeral channel membership table. A single mutex
// guards both, because disconnect must purge them atomically. The registry is
// constructed once at startup and injected; it holds non-owning references —
// connection teardown is always driven by the transport's disconnect event.
type Registry struct {
	mu       sync.Mutex
	clients  map[int64]*Client
	channels map[string]map[int64]struct{}
	log      *slog.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		clients:  make(map[int64]*Client),
		channels: make(map[string]map[int64]struct{}),
		log:      log,
	}
}

// Register inserts or overwrites the mapping for an identity and returns the
// displaced client, if any. Last writer wins; the displaced connection is not
// closed here. That preserves the historical behavior of this system, where a
// superseded connection stays open but unreachable until it disconnects on
// its own.
func (r *Registry) Register(identity int64, c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.clients[identity]
	if prev == c {
		prev = nil
	}
	r.clients[identity] = c
	return prev
}

// UnregisterByHandle removes the registry entry whose connection equals the
// given handle, purging the identity from every channel it joined. Disconnect
// events carry only the handle, so the lookup is a reverse scan. Returns
// ok=false when the handle is not tracked — expected on double disconnect or
// when a connection never authenticated, never an error.
func (r *Registry) UnregisterByHandle(c *Client) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for identity, client := range r.clients {
		if client == c {
			delete(r.clients, identity)
			r.purgeChannelsLocked(identity)
			return identity, true
		}
	}
	return 0, false
}

// Lookup returns the live connection for an identity, if any.
func (r *Registry) Lookup(identity int64) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[identity]
	return c, ok
}

// LookupByUsername resolves a display name to a live connection. Used for
// direct messages, which address recipients by username on the wire.
func (r *Registry) LookupByUsername(username string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.username == username {
			return c, true
		}
	}
	return nil, false
}

// Identities returns a snapshot of all registered identities for broadcast
// fan-out.
func (r *Registry) Identities() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Keys(r.clients)
}

// Count returns the number of live registrations.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Join adds an identity to a channel, creating the channel implicitly. It
// refuses identities that are not currently registered, keeping the
// membership invariant: every channel member has a live session.
func (r *Registry) Join(channel string, identity int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[identity]; !ok {
		return false
	}
	members, ok := r.channels[channel]
	if !ok {
		members = make(map[int64]struct{})
		r.channels[channel] = members
	}
	members[identity] = struct{}{}
	return true
}

// Leave removes an identity from a channel, deleting the channel when its
// last member leaves.
func (r *Registry) Leave(channel string, identity int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.channels[channel]
	if !ok {
		return
	}
	delete(members, identity)
	if len(members) == 0 {
		delete(r.channels, channel)
	}
}

// ChannelMembers returns a snapshot of the identities in a channel.
func (r *Registry) ChannelMembers(channel string) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.channels[channel]
	if !ok {
		return nil
	}
	return lo.Keys(members)
}

// clientList snapshots the registered connections for shutdown fan-out.
func (r *Registry) clientList() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Values(r.clients)
}

func (r *Registry) purgeChannelsLocked(identity int64) {
	for name, members := range r.channels {
		delete(members, identity)
		if len(members) == 0 {
			delete(r.channels, name)
		}
	}
}
