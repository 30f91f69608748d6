// Package config loads and sanitizes the runtime configuration for the Parley
// server from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// AuthPolicy selects how inbound socket messages are authenticated after the
// initial handshake.
type AuthPolicy string

const (
	// PolicyConnect trusts the credential validated at connect time for the
	// lifetime of the connection.
	PolicyConnect AuthPolicy = "connect"
	// PolicyMessage re-validates the stored credential on every inbound
	// message, so a token that expires mid-connection stops routing.
	PolicyMessage AuthPolicy = "message"
)

// Config holds the server configuration, including security controls for the
// WebSocket endpoint and credentials for the external collaborators.
type Config struct {
	Port           string `env:"SERVER_PORT,default=:8080"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`

	MaxMessageSize     int64         `env:"MAX_MESSAGE_SIZE,default=512"`
	RateLimitBurst     int           `env:"RATE_LIMIT_BURST,default=5"`
	RateLimitInterval  time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
	SendBufferSize     int           `env:"SEND_BUFFER_SIZE,default=256"`

	JWTSecret       string        `env:"JWT_SECRET_KEY,required=true"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL,default=1h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL,default=720h"`
	ResetTokenTTL   time.Duration `env:"RESET_TOKEN_TTL,default=1h"`
	SocketAuth      AuthPolicy    `env:"AUTH_POLICY,default=connect"`

	PostgresUser     string `env:"POSTGRES_USER"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresDB       string `env:"POSTGRES_DB"`
	PostgresHost     string `env:"POSTGRES_HOST,default=localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT,default=5432"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ROOT_USER"`
	MinioSecretKey string `env:"MINIO_ROOT_PASSWORD"`
	MinioBucket    string `env:"MINIO_BUCKET_NAME,default=parley-uploads"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL,default=false"`

	MailHost     string `env:"MAIL_SERVER"`
	MailPort     int    `env:"MAIL_PORT,default=587"`
	MailUsername string `env:"MAIL_USERNAME"`
	MailPassword string `env:"MAIL_PASSWORD"`
	MailSender   string `env:"MAIL_DEFAULT_SENDER"`

	ResetURLBase string `env:"RESET_URL_BASE,default=http://localhost:3000/auth/reset-password"`
}

// Load reads configuration from a .env file (if present) and the process
// environment, then applies defaults and sanitization.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.sanitize()
	return &cfg, nil
}

func (c *Config) sanitize() {
	if c.Port == "" {
		c.Port = ":8080"
	}
	if !strings.HasPrefix(c.Port, ":") && !strings.Contains(c.Port, ":") {
		c.Port = ":" + c.Port
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 512
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 5
	}
	if c.RateLimitInterval <= 0 {
		c.RateLimitInterval = time.Second
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = 256
	}
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = time.Hour
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.ResetTokenTTL <= 0 {
		c.ResetTokenTTL = time.Hour
	}
	if c.SocketAuth != PolicyMessage {
		c.SocketAuth = PolicyConnect
	}
}

// Origins returns the configured allowed origins as a trimmed list.
func (c *Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// PostgresDSN assembles the connection string for lib/pq from the individual
// POSTGRES_* variables.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB)
}
