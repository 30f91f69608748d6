package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Port)
	require.Equal(t, int64(512), cfg.MaxMessageSize)
	require.Equal(t, 5, cfg.RateLimitBurst)
	require.Equal(t, time.Second, cfg.RateLimitInterval)
	require.Equal(t, 256, cfg.SendBufferSize)
	require.Equal(t, time.Hour, cfg.AccessTokenTTL)
	require.Equal(t, 30*24*time.Hour, cfg.RefreshTokenTTL)
	require.Equal(t, PolicyConnect, cfg.SocketAuth)
}

func TestLoadMissingSecret(t *testing.T) {
	// t.Setenv registers the restore; the variable must be absent for Load.
	t.Setenv("JWT_SECRET_KEY", "placeholder")
	os.Unsetenv("JWT_SECRET_KEY")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadAuthPolicy(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")
	t.Setenv("AUTH_POLICY", "message")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, PolicyMessage, cfg.SocketAuth)
}

func TestSanitize(t *testing.T) {
	cfg := &Config{
		Port:           "9090",
		MaxMessageSize: -1,
		SocketAuth:     AuthPolicy("bogus"),
	}
	cfg.sanitize()

	require.Equal(t, ":9090", cfg.Port)
	require.Equal(t, int64(512), cfg.MaxMessageSize)
	require.Equal(t, PolicyConnect, cfg.SocketAuth)
}

func TestOrigins(t *testing.T) {
	cfg := &Config{AllowedOrigins: "http://localhost:3000, https://parley.example.com ,"}
	require.Equal(t, []string{"http://localhost:3000", "https://parley.example.com"}, cfg.Origins())
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{
		PostgresUser:     "parley",
		PostgresPassword: "secret",
		PostgresHost:     "db",
		PostgresPort:     5432,
		PostgresDB:       "parley",
	}
	require.Equal(t, "postgres://parley:secret@db:5432/parley?sslmode=disable", cfg.PostgresDSN())
}
