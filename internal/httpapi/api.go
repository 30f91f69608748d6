// Package httpapi exposes the REST surface of Parley: registration, login,
// logout, password recovery, profile management, and message history. The
// real-time path lives in internal/chat; this package only mounts it.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parley-chat/parley/internal/auth"
	"github.com/parley-chat/parley/internal/store"
)

// ResetMailer sends password reset emails. Implemented by internal/mail.
type ResetMailer interface {
	SendPasswordReset(to, username, resetURL string) error
}

// ImageUploader stores profile images and returns their public URL.
// Implemented by internal/bucket.
type ImageUploader interface {
	Upload(ctx context.Context, filename string, r io.Reader, size int64) (string, error)
}

// API bundles the handlers and their injected collaborators.
type API struct {
	users     store.UserStore
	tokens    store.TokenStore
	messages  store.MessageStore
	validator *auth.Validator
	mailer    ResetMailer
	uploader  ImageUploader
	log       *slog.Logger

	refreshTTL   time.Duration
	resetTTL     time.Duration
	resetURLBase string
}

// Options carries the auth flow knobs from configuration.
type Options struct {
	RefreshTokenTTL time.Duration
	ResetTokenTTL   time.Duration
	ResetURLBase    string
}

// New creates the API with all its dependencies injected.
func New(users store.UserStore, tokens store.TokenStore, messages store.MessageStore,
	validator *auth.Validator, mailer ResetMailer, uploader ImageUploader,
	log *slog.Logger, opts Options) *API {
	return &API{
		users:        users,
		tokens:       tokens,
		messages:     messages,
		validator:    validator,
		mailer:       mailer,
		uploader:     uploader,
		log:          log,
		refreshTTL:   opts.RefreshTokenTTL,
		resetTTL:     opts.ResetTokenTTL,
		resetURLBase: opts.ResetURLBase,
	}
}

// Router mounts all application routes. The WebSocket handler is passed in so
// this package does not depend on the chat internals.
func (a *API) Router(ws http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/", a.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)
		r.Post("/logout", a.handleLogout)
		r.Post("/refresh", a.handleRefresh)
		r.Post("/forgot-password", a.handleForgotPassword)
		r.Post("/reset-password/{token}", a.handleResetPassword)
	})

	r.Group(func(r chi.Router) {
		r.Use(a.requireAuth)
		r.Get("/message/messages", a.handleGetMessages)
		r.Route("/user", func(r chi.Router) {
			r.Get("/profile", a.handleGetProfile)
			r.Put("/profile", a.handleUpdateProfile)
			r.Get("/users", a.handleListUsers)
		})
	})

	if ws != nil {
		r.Handle("/ws", ws)
	}

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("Parley server is running!"))
}
