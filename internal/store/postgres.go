package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Registers the postgres driver with database/sql.
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	username      VARCHAR(80) UNIQUE NOT NULL,
	email         VARCHAR(120) UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_seen     TIMESTAMPTZ NOT NULL DEFAULT now(),
	is_active     BOOLEAN NOT NULL DEFAULT true,
	image_url     VARCHAR(255) NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS tokens (
	id            BIGSERIAL PRIMARY KEY,
	user_id       BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	refresh_token VARCHAR(512) UNIQUE NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	expired_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id        BIGSERIAL PRIMARY KEY,
	user_id   BIGINT NOT NULL REFERENCES users(id),
	content   TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages (timestamp);
`

// Postgres bundles the three store implementations on top of a single
// database handle.
type Postgres struct {
	Users    *PostgresUserStore
	Tokens   *PostgresTokenStore
	Messages *PostgresMessageStore

	db *sql.DB
}

// OpenPostgres connects to the database, verifies the connection, and
// bootstraps the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}

	return &Postgres{
		Users:    &PostgresUserStore{db: db},
		Tokens:   &PostgresTokenStore{db: db},
		Messages: &PostgresMessageStore{db: db},
		db:       db,
	}, nil
}

// Close releases the underlying database handle.
func (p *Postgres) Close() error {
	return p.db.Close()
}
