package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/parley-chat/parley/internal/auth"
	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/store"
)

const testOrigin = "http://localhost:3000"

type serverFixture struct {
	server    *httptest.Server
	registry  *Registry
	hub       *Hub
	memory    *store.Memory
	validator *auth.Validator
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	log := testLogger()
	registry := NewRegistry(log)
	validator := auth.NewValidator("test-secret", time.Hour, log)
	hub := NewHub(registry, validator, config.PolicyConnect, log)
	memory := store.NewMemory()
	router := NewRouter(registry, memory, store.MemoryMessages{Memory: memory}, hub, log)

	handler := NewHandler(hub, router, validator, []string{testOrigin}, log, ClientOptions{
		MaxMessageSize: 512,
		RateBurst:      100,
		RateInterval:   time.Second,
		SendBuffer:     256,
	})

	go hub.Run()
	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		server.Close()
		_ = hub.Shutdown(2 * time.Second)
	})

	return &serverFixture{server: server, registry: registry, hub: hub, memory: memory, validator: validator}
}

// connect registers a user, generates a credential for it, and dials the
// endpoint the way a browser client would, with the token as a query param.
func (f *serverFixture) connect(t *testing.T, username string) *websocket.Conn {
	t.Helper()
	u, err := f.memory.Create(context.Background(), username, username+"@example.com", "hash")
	require.NoError(t, err)
	token, err := f.validator.Generate(u.ID, username)
	require.NoError(t, err)
	return f.dial(t, token)
}

func (f *serverFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{testOrigin}})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func readServerMessage(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	env := readEvent(t, conn)
	require.Equal(t, EventServerMessage, env.Event)
	var msg ServerMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	return msg.Message
}

func TestConnectReceivesWelcome(t *testing.T) {
	f := newServerFixture(t)
	conn := f.connect(t, "alice")

	require.Equal(t, "Welcome to the chat server!", readServerMessage(t, conn))
	require.Equal(t, 1, f.registry.Count())
}

func TestConnectWithExpiredTokenIsClosed(t *testing.T) {
	f := newServerFixture(t)
	expired := auth.NewValidator("test-secret", -time.Minute, testLogger())
	token, err := expired.Generate(1, "alice")
	require.NoError(t, err)

	conn := f.dial(t, token)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	// The upgrade succeeds, then the server closes before emitting anything.
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
	require.Equal(t, 0, f.registry.Count())
}

func TestConnectWithoutTokenIsClosed(t *testing.T) {
	f := newServerFixture(t)
	conn := f.dial(t, "")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
	require.Equal(t, 0, f.registry.Count())
}

func TestRejectsNonGetRequests(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Post(f.server.URL, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRejectsDisallowedOrigin(t *testing.T) {
	f := newServerFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?token=whatever"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.example.com"}})
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBroadcastReachesAllClients(t *testing.T) {
	f := newServerFixture(t)
	alice := f.connect(t, "alice")
	readServerMessage(t, alice)
	bob := f.connect(t, "bob")
	readServerMessage(t, bob)

	err := alice.WriteJSON(Envelope{
		Event: EventSendMessage,
		Data:  json.RawMessage(`{"content":"hello everyone"}`),
	})
	require.NoError(t, err)

	for _, conn := range []*websocket.Conn{alice, bob} {
		env := readEvent(t, conn)
		require.Equal(t, EventReceiveMessage, env.Event)
		var msg ReceiveMessage
		require.NoError(t, json.Unmarshal(env.Data, &msg))
		require.Equal(t, "alice", msg.Username)
		require.Equal(t, "hello everyone", msg.Message)
	}

	// Delivery happens after persistence, so the record is visible now.
	messages, err := f.memory.ListOldestFirst(context.Background())
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "hello everyone", messages[0].Content)
	require.Equal(t, "alice", messages[0].Username)
}

func TestChannelJoinAndScopedDelivery(t *testing.T) {
	f := newServerFixture(t)
	alice := f.connect(t, "alice")
	readServerMessage(t, alice)
	bob := f.connect(t, "bob")
	readServerMessage(t, bob)

	require.NoError(t, alice.WriteJSON(Envelope{
		Event: EventJoinChannel,
		Data:  json.RawMessage(`{"channel":"general"}`),
	}))
	require.Equal(t, "Joined channel general", readServerMessage(t, alice))

	require.NoError(t, alice.WriteJSON(Envelope{
		Event: EventSendMessage,
		Data:  json.RawMessage(`{"content":"members only","channel":"general"}`),
	}))

	env := readEvent(t, alice)
	require.Equal(t, EventReceiveMessage, env.Event)

	// Bob never joined the channel; the next thing he sees must not be the
	// channel message.
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := bob.ReadMessage()
	require.Error(t, err)
}

func TestUnknownEventClosesConnection(t *testing.T) {
	f := newServerFixture(t)
	conn := f.connect(t, "alice")
	readServerMessage(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"bogus"}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
}

func TestDisconnectRemovesRegistration(t *testing.T) {
	f := newServerFixture(t)
	conn := f.connect(t, "alice")
	readServerMessage(t, conn)
	require.Equal(t, 1, f.registry.Count())

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	require.Eventually(t, func() bool {
		return f.registry.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
