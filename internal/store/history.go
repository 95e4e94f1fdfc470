// Package store persists the history of settled roster submissions in
// PostgreSQL.
//
// History is optional: without a database the server runs with a [Nop]
// store and /api/history returns an empty list.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/RosterImport/internal/roster"
)

// Batch is one recorded submission.
type Batch struct {
	ID           string              `json:"id"`
	SessionID    string              `json:"sessionId"`
	FileName     string              `json:"fileName"`
	Status       roster.SubmitStatus `json:"status"`
	Attempted    int                 `json:"attempted"`
	Created      int                 `json:"created"`
	Skipped      int                 `json:"skipped"`
	Failed       int                 `json:"failed"`
	ErrorMessage string              `json:"error,omitempty"`
	Duration     time.Duration       `json:"duration"`
	SettledAt    time.Time           `json:"settledAt"`
}

// History is the read/write interface of the submission history.
type History interface {
	roster.HistoryRecorder
	ListRecent(ctx context.Context, limit int) ([]Batch, error)
	Failures(ctx context.Context, batchID string) ([]roster.FailedRow, error)
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PostgresHistory is the pgx-backed History.
type PostgresHistory struct {
	pool *pgxpool.Pool
}

// NewPostgresHistory wraps an open pool.
func NewPostgresHistory(pool *pgxpool.Pool) *PostgresHistory {
	return &PostgresHistory{pool: pool}
}

var failureColumns = []string{"batch_id", "row_seq", "full_name", "registration_number", "email", "reason", "source"}

// RecordSubmission stores a settled submission and its failure report in
// one transaction.
func (h *PostgresHistory) RecordSubmission(ctx context.Context, rec roster.SubmissionRecord) error {
	batchID := toPgUUID(rec.BatchID)
	if !batchID.Valid {
		return fmt.Errorf("%w: %q", ErrInvalidBatchID, rec.BatchID)
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	out := rec.Outcome
	_, err = tx.Exec(ctx, `
		INSERT INTO import_batches
			(id, session_id, file_name, status, attempted, created, skipped, failed, error_message, duration_ms, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		batchID,
		toPgUUID(rec.SessionID),
		rec.FileName,
		string(out.Status),
		out.Attempted,
		out.Created,
		out.Skipped,
		out.Failed,
		toPgText(out.Error),
		out.Duration.Milliseconds(),
		pgtype.Timestamptz{Time: rec.SettledAt, Valid: true},
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	if len(out.Failures) > 0 {
		rows := make([][]any, 0, len(out.Failures))
		for _, f := range out.Failures {
			rows = append(rows, []any{
				batchID,
				toPgInt4(f.Seq),
				toPgText(f.FullName),
				toPgText(f.RegistrationNumber),
				toPgText(f.Email),
				f.Reason,
				string(f.Source),
			})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"import_failures"}, failureColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy failures: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListRecent returns the newest batches first, without failure rows.
func (h *PostgresHistory) ListRecent(ctx context.Context, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := h.pool.Query(ctx, `
		SELECT id, session_id, file_name, status, attempted, created, skipped, failed,
		       error_message, duration_ms, settled_at
		FROM import_batches
		ORDER BY settled_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Failures returns the failure report recorded for one batch.
func (h *PostgresHistory) Failures(ctx context.Context, batchID string) ([]roster.FailedRow, error) {
	id := toPgUUID(batchID)
	if !id.Valid {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBatchID, batchID)
	}

	rows, err := h.pool.Query(ctx, `
		SELECT row_seq, full_name, registration_number, email, reason, source
		FROM import_failures
		WHERE batch_id = $1
		ORDER BY row_seq NULLS LAST`, id)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out []roster.FailedRow
	for rows.Next() {
		var (
			seq                pgtype.Int4
			name, regNo, email pgtype.Text
			reason, source     string
		)
		if err := rows.Scan(&seq, &name, &regNo, &email, &reason, &source); err != nil {
			return nil, err
		}
		out = append(out, roster.FailedRow{
			Seq:                int(seq.Int32),
			FullName:           name.String,
			RegistrationNumber: regNo.String,
			Email:              email.String,
			Reason:             reason,
			Source:             roster.FailureSource(source),
		})
	}
	return out, rows.Err()
}

func scanBatch(rows pgx.Rows) (Batch, error) {
	var (
		id, sessionID pgtype.UUID
		fileName      string
		status        string
		attempted     int32
		created       int32
		skipped       int32
		failed        int32
		errMsg        pgtype.Text
		durationMS    int64
		settledAt     pgtype.Timestamptz
	)
	err := rows.Scan(&id, &sessionID, &fileName, &status, &attempted, &created, &skipped, &failed,
		&errMsg, &durationMS, &settledAt)
	if err != nil {
		return Batch{}, err
	}

	return Batch{
		ID:           uuidToString(id),
		SessionID:    uuidToString(sessionID),
		FileName:     fileName,
		Status:       roster.SubmitStatus(status),
		Attempted:    int(attempted),
		Created:      int(created),
		Skipped:      int(skipped),
		Failed:       int(failed),
		ErrorMessage: errMsg.String,
		Duration:     time.Duration(durationMS) * time.Millisecond,
		SettledAt:    settledAt.Time,
	}, nil
}

var (
	// ErrHistoryDisabled is returned by Nop for lookups.
	ErrHistoryDisabled = errors.New("submission history is not configured")
	// ErrInvalidBatchID is returned for a batch ID that is not a UUID.
	ErrInvalidBatchID = errors.New("invalid batch id")
)

// Nop is a History that records nothing.
type Nop struct{}

func (Nop) RecordSubmission(context.Context, roster.SubmissionRecord) error { return nil }

func (Nop) ListRecent(context.Context, int) ([]Batch, error) { return nil, nil }

func (Nop) Failures(context.Context, string) ([]roster.FailedRow, error) {
	return nil, ErrHistoryDisabled
}

// Helper functions for type conversion

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toPgInt4(i int) pgtype.Int4 {
	if i == 0 {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(i), Valid: true}
}

func toPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

func uuidToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
