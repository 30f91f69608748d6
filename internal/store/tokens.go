package store

import (
	"context"
	"database/sql"
	"time"
)

// PostgresTokenStore implements TokenStore against Postgres.
type PostgresTokenStore struct {
	db *sql.DB
}

func (s *PostgresTokenStore) Save(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tokens (user_id, refresh_token, expired_at) VALUES ($1, $2, $3)`,
		userID, token, expiresAt)
	return err
}

func (s *PostgresTokenStore) Delete(ctx context.Context, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE refresh_token = $1`, token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *PostgresTokenStore) Verify(ctx context.Context, token string, userID int64) (bool, error) {
	var expiredAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT expired_at FROM tokens WHERE refresh_token = $1 AND user_id = $2`,
		token, userID).Scan(&expiredAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return expiredAt.After(time.Now()), nil
}
