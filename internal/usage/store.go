// Package usage persists per-response token usage in SQLite and
// answers the aggregate queries the /api/usage endpoint serves.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Record is one API response's token accounting.
type Record struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversation_id"`
	Model          string    `json:"model"`
	Provider       string    `json:"provider,omitempty"`
	InputTokens    int       `json:"input_tokens"`
	OutputTokens   int       `json:"output_tokens"`
}

// Summary aggregates usage over a period.
type Summary struct {
	Requests     int `json:"requests"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ModelSummary is a Summary broken out per model.
type ModelSummary struct {
	Model string `json:"model"`
	Summary
}

type Store struct {
	db *sql.DB
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS usage (
	id TEXT PRIMARY KEY,
	timestamp INTEGER NOT NULL,
	conversation_id TEXT NOT NULL,
	model TEXT NOT NULL,
	provider TEXT NOT NULL DEFAULT '',
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage(timestamp);
CREATE INDEX IF NOT EXISTS idx_usage_model ON usage(model);
`

// Open opens (creating if needed) the usage database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open usage db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init usage schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Add persists one usage record. A zero ID or timestamp is filled in.
func (s *Store) Add(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate usage id: %w", err)
		}
		rec.ID = id.String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage (id, timestamp, conversation_id, model, provider, input_tokens, output_tokens)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UnixMilli(), rec.ConversationID, rec.Model, rec.Provider,
		rec.InputTokens, rec.OutputTokens)
	if err != nil {
		return fmt.Errorf("insert usage: %w", err)
	}
	return nil
}

// Since aggregates usage recorded at or after the given time.
func (s *Store) Since(ctx context.Context, t time.Time) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		 FROM usage WHERE timestamp >= ?`, t.UnixMilli()).
		Scan(&sum.Requests, &sum.InputTokens, &sum.OutputTokens)
	if err != nil {
		return Summary{}, fmt.Errorf("query usage: %w", err)
	}
	return sum, nil
}

// SinceByModel aggregates usage per model recorded at or after the
// given time, largest total first.
func (s *Store) SinceByModel(ctx context.Context, t time.Time) ([]ModelSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT model, COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		 FROM usage WHERE timestamp >= ?
		 GROUP BY model
		 ORDER BY SUM(input_tokens) + SUM(output_tokens) DESC`, t.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query usage by model: %w", err)
	}
	defer rows.Close()

	var out []ModelSummary
	for rows.Next() {
		var ms ModelSummary
		if err := rows.Scan(&ms.Model, &ms.Requests, &ms.InputTokens, &ms.OutputTokens); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		out = append(out, ms)
	}
	return out, rows.Err()
}
