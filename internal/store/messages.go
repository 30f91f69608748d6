package store

import (
	"context"
	"database/sql"
	"time"
)

// PostgresMessageStore implements MessageStore against Postgres.
type PostgresMessageStore struct {
	db *sql.DB
}

func (s *PostgresMessageStore) Create(ctx context.Context, authorID int64, content string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (user_id, content, timestamp) VALUES ($1, $2, $3)`,
		authorID, content, at)
	return err
}

func (s *PostgresMessageStore) ListOldestFirst(ctx context.Context) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.user_id, u.username, m.content, m.timestamp
		 FROM messages m
		 JOIN users u ON m.user_id = u.id
		 ORDER BY m.timestamp ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.AuthorID, &m.Username, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
