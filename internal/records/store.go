package records

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// CallRecord is the durable row written when a call session closes. Live call
// state lives in Redis; this table is the permanent audit trail.
type CallRecord struct {
	ID          string
	CallSID     string
	CallerPhone string
	Outcome     string
	Action      string
	Transferred bool
	TurnCount   int
	Transcript  string
	StartedAt   time.Time
	EndedAt     time.Time
	CreatedAt   time.Time
}

// ErrRecordNotFound is returned by lookups for unknown call SIDs.
var ErrRecordNotFound = fmt.Errorf("records: call record not found")

// DB is the subset of pgxpool.Pool the store needs. pgxmock satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store persists call records in Postgres.
type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	if db == nil {
		panic("records: db required")
	}
	return &Store{db: db}
}

// Insert writes a completed call's record. The id is assigned here when the
// record does not carry one.
func (s *Store) Insert(ctx context.Context, rec *CallRecord) error {
	if rec == nil || rec.CallSID == "" {
		return fmt.Errorf("records: call_sid required")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	query := `
		INSERT INTO call_records (id, call_sid, caller_phone, outcome, action, transferred, turn_count, transcript, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`
	if err := s.db.QueryRow(ctx, query,
		rec.ID,
		rec.CallSID,
		rec.CallerPhone,
		rec.Outcome,
		rec.Action,
		rec.Transferred,
		rec.TurnCount,
		rec.Transcript,
		rec.StartedAt,
		rec.EndedAt,
	).Scan(&rec.CreatedAt); err != nil {
		return fmt.Errorf("records: insert failed: %w", err)
	}
	return nil
}

// GetByCallSID fetches one call's record.
func (s *Store) GetByCallSID(ctx context.Context, callSID string) (*CallRecord, error) {
	query := `
		SELECT id, call_sid, caller_phone, outcome, action, transferred, turn_count, transcript, started_at, ended_at, created_at
		FROM call_records
		WHERE call_sid = $1
	`
	var rec CallRecord
	if err := s.db.QueryRow(ctx, query, callSID).Scan(
		&rec.ID,
		&rec.CallSID,
		&rec.CallerPhone,
		&rec.Outcome,
		&rec.Action,
		&rec.Transferred,
		&rec.TurnCount,
		&rec.Transcript,
		&rec.StartedAt,
		&rec.EndedAt,
		&rec.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("records: select failed: %w", err)
	}
	return &rec, nil
}

// ListRecent returns the newest records, most recent first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, call_sid, caller_phone, outcome, action, transferred, turn_count, transcript, started_at, ended_at, created_at
		FROM call_records
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("records: list failed: %w", err)
	}
	defer rows.Close()

	var out []*CallRecord
	for rows.Next() {
		var rec CallRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.CallSID,
			&rec.CallerPhone,
			&rec.Outcome,
			&rec.Action,
			&rec.Transferred,
			&rec.TurnCount,
			&rec.Transcript,
			&rec.StartedAt,
			&rec.EndedAt,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("records: scan failed: %w", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("records: rows: %w", err)
	}
	return out, nil
}
