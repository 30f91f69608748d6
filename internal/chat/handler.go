package chat

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/parley-chat/parley/internal/auth"
)

// Handler upgrades HTTP requests to WebSocket connections and runs the
// connect-time authentication handshake. The bearer credential arrives as the
// `token` query parameter rather than a header — a deliberate choice carried
// through the lineage of this system, since browser WebSocket clients cannot
// set request headers.
type Handler struct {
	hub       *Hub
	router    *Router
	validator *auth.Validator
	upgrader  websocket.Upgrader
	log       *slog.Logger
	opts      ClientOptions
}

// NewHandler creates the WebSocket endpoint handler.
func NewHandler(hub *Hub, router *Router, validator *auth.Validator, allowedOrigins []string, log *slog.Logger, opts ClientOptions) *Handler {
	origins := newOriginChecker(allowedOrigins, log)
	return &Handler{
		hub:       hub,
		router:    router,
		validator: validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		log:  log,
		opts: opts,
	}
}

// ServeHTTP upgrades the connection, validates the handshake credential, and
// hands the authenticated client to the hub. Any credential failure aborts
// the connection at the transport level before it is ever registered and
// before any event is emitted to it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := newClient(conn, h.hub, h.router, r.RemoteAddr, h.log, h.opts)

	claims, err := h.validator.Validate(token)
	if err != nil {
		h.log.Info("connection rejected", "addr", r.RemoteAddr, "error", err)
		client.forceClose(websocket.ClosePolicyViolation, "authentication failed")
		return
	}

	client.authenticate(claims.UserID, claims.Username, token)
	h.hub.register <- client
}
