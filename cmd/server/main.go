package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/parley-chat/parley/internal/auth"
	"github.com/parley-chat/parley/internal/bucket"
	"github.com/parley-chat/parley/internal/chat"
	"github.com/parley-chat/parley/internal/config"
	"github.com/parley-chat/parley/internal/httpapi"
	"github.com/parley-chat/parley/internal/mail"
	"github.com/parley-chat/parley/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.OpenPostgres(ctx, cfg.PostgresDSN())
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("connected to postgres", "host", cfg.PostgresHost, "db", cfg.PostgresDB)

	uploader, err := bucket.New(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL, log)
	if err != nil {
		return err
	}

	mailer := mail.NewSender(cfg.MailHost, cfg.MailPort, cfg.MailUsername,
		cfg.MailPassword, cfg.MailSender, log)

	validator := auth.NewValidator(cfg.JWTSecret, cfg.AccessTokenTTL, log)

	registry := chat.NewRegistry(log)
	hub := chat.NewHub(registry, validator, cfg.SocketAuth, log)
	router := chat.NewRouter(registry, db.Users, db.Messages, hub, log)
	wsHandler := chat.NewHandler(hub, router, validator, cfg.Origins(), log, chat.ClientOptions{
		MaxMessageSize: cfg.MaxMessageSize,
		RateBurst:      cfg.RateLimitBurst,
		RateInterval:   cfg.RateLimitInterval,
		SendBuffer:     cfg.SendBufferSize,
	})
	go hub.Run()

	api := httpapi.New(db.Users, db.Tokens, db.Messages, validator, mailer, uploader, log,
		httpapi.Options{
			RefreshTokenTTL: cfg.RefreshTokenTTL,
			ResetTokenTTL:   cfg.ResetTokenTTL,
			ResetURLBase:    cfg.ResetURLBase,
		})

	server := &http.Server{
		Addr:         cfg.Port,
		Handler:      api.Router(wsHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", server.Addr, "auth_policy", string(cfg.SocketAuth))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", "error", err)
	}
	if err := hub.Shutdown(shutdownTimeout); err != nil {
		log.Warn("hub shutdown incomplete", "error", err)
	}
	log.Info("shutdown complete")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
