// Package audit persists a trail of processed RPC requests so operators can
// answer "what did the service do and when" after the fact.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded request outcome.
type Entry struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id"`
	Method        string    `json:"method"`
	Success       bool      `json:"success"`
	Message       string    `json:"message,omitempty"`
	ElapsedMS     int64     `json:"elapsed_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// timeLayout is fixed width so the created_at column sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordRequest appends one entry to the trail.
func (s *Store) RecordRequest(ctx context.Context, correlationID, method string, success bool, message string, elapsed time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO rpc_log(id, correlation_id, method, success, message, elapsed_ms, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?);
`, uuid.NewString(), correlationID, method, boolToInt(success), message, elapsed.Milliseconds(), now.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert rpc_log entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, correlation_id, method, success, message, elapsed_ms, created_at
FROM rpc_log
ORDER BY created_at DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query rpc_log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			success   int
			message   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.CorrelationID, &e.Method, &success, &message, &e.ElapsedMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan rpc_log row: %w", err)
		}
		e.Success = success != 0
		e.Message = message.String
		ts, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		e.CreatedAt = ts
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
