// Package audit records the outcome of every processed match batch in
// the match_audit table, and serves the recent-batches query used by
// the HTTP API.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record summarises one processed batch.
type Record struct {
	ID              int64     `json:"id"`
	BatchID         string    `json:"batch_id"`
	Intent          string    `json:"intent"`
	UserInput       string    `json:"user_input,omitempty"`
	RequestCount    int       `json:"request_count"`
	TargetCount     int       `json:"target_count"`
	SuggestionCount int       `json:"suggestion_count"`
	Disambiguation  bool      `json:"disambiguation"`
	AdvisorUsed     bool      `json:"advisor_used"`
	DurationMillis  float64   `json:"duration_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// Repository defines the interface for match audit operations.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// SQLiteRepository persists match audit records in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new match audit repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new audit record. BatchID and CreatedAt are generated
// if empty.
func (r *SQLiteRepository) Create(ctx context.Context, rec *Record) error {
	if rec.BatchID == "" {
		rec.BatchID = "bat-" + uuid.NewString()[:8]
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO match_audit
		 (batch_id, intent, user_input, request_count, target_count, suggestion_count, disambiguation, advisor_used, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.BatchID, rec.Intent, rec.UserInput,
		rec.RequestCount, rec.TargetCount, rec.SuggestionCount,
		boolToInt(rec.Disambiguation), boolToInt(rec.AdvisorUsed),
		rec.DurationMillis,
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// Recent returns the most recent audit records, newest first.
// The limit is clamped to [1, 200] with a default of 50.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 { //nolint:mnd // max page size for audit queries
		limit = 200
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, batch_id, intent, user_input, request_count, target_count, suggestion_count, disambiguation, advisor_used, duration_ms, created_at
		 FROM match_audit ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var disambiguation, advisorUsed int
		var createdAt string

		if err := rows.Scan(&rec.ID, &rec.BatchID, &rec.Intent, &rec.UserInput,
			&rec.RequestCount, &rec.TargetCount, &rec.SuggestionCount,
			&disambiguation, &advisorUsed, &rec.DurationMillis, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit record: %w", err)
		}

		rec.Disambiguation = disambiguation != 0
		rec.AdvisorUsed = advisorUsed != 0

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing audit timestamp %q: %w", createdAt, err)
		}
		rec.CreatedAt = t

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit records: %w", err)
	}
	return records, nil
}

// boolToInt stores booleans as 0/1 INTEGER columns.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
