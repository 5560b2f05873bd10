// Package storage wraps the routerd audit ledger.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/sqlite"
)

// Storage persists the routerd audit trail.
type Storage struct {
	db *sql.DB
}

// ErrPathRequired is returned when the backing store path is missing.
var ErrPathRequired = errors.New("routerd storage path must be configured")

// Open initialises the backing store using a sqlite-compatible DSN.
func Open(path string) (*Storage, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases database resources.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SwapRecord captures the lifecycle of one routed swap.
type SwapRecord struct {
	ID          string
	Sender      string
	SourceDenom string
	TargetDenom string
	InputAmount string
	MinTarget   string
	Steps       []string
	Status      string
	Result      string
	Detail      string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Swap lifecycle states recorded in the ledger.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RecordSwapStart persists a new pending swap record.
func (s *Storage) RecordSwapStart(ctx context.Context, rec SwapRecord) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return fmt.Errorf("swap id required")
	}
	startedAt := rec.StartedAt.UTC()
	if rec.StartedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO swaps(id, sender, source_denom, target_denom, input_amount, min_target, steps, status, result, detail, started_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, '', '', ?)
    `, id, strings.TrimSpace(rec.Sender), rec.SourceDenom, rec.TargetDenom, rec.InputAmount, rec.MinTarget,
		strings.Join(rec.Steps, ","), StatusPending, startedAt)
	if err != nil {
		return fmt.Errorf("insert swap: %w", err)
	}
	return nil
}

// RecordSwapResult finalises a swap record with its outcome.
func (s *Storage) RecordSwapResult(ctx context.Context, id, status, result, detail string) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("swap id required")
	}
	res, err := s.db.ExecContext(ctx, `
        UPDATE swaps
        SET status = ?, result = ?, detail = ?, finished_at = ?
        WHERE id = ?
    `, status, result, detail, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update swap: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("swap %s not found", id)
	}
	return nil
}

// RecordHop appends a settled hop to the swap's audit trail.
func (s *Storage) RecordHop(ctx context.Context, swapID string, stepIdx uint32, marketID string, isBuy bool, balance, denom string) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	side := "sell"
	if isBuy {
		side = "buy"
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO swap_hops(swap_id, step_idx, market_id, side, balance, denom, settled_at)
        VALUES(?, ?, ?, ?, ?, ?, ?)
    `, strings.TrimSpace(swapID), stepIdx, marketID, side, balance, denom, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert hop: %w", err)
	}
	return nil
}

// Swap loads one swap record by identifier.
func (s *Storage) Swap(ctx context.Context, id string) (SwapRecord, error) {
	rec := SwapRecord{}
	if s == nil {
		return rec, fmt.Errorf("storage not configured")
	}
	row := s.db.QueryRowContext(ctx, `
        SELECT id, sender, source_denom, target_denom, input_amount, min_target, steps, status, result, detail, started_at, COALESCE(finished_at, started_at)
        FROM swaps
        WHERE id = ?
    `, strings.TrimSpace(id))
	var steps string
	if err := row.Scan(&rec.ID, &rec.Sender, &rec.SourceDenom, &rec.TargetDenom, &rec.InputAmount, &rec.MinTarget,
		&steps, &rec.Status, &rec.Result, &rec.Detail, &rec.StartedAt, &rec.FinishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, fmt.Errorf("swap not found")
		}
		return rec, fmt.Errorf("query swap: %w", err)
	}
	if steps != "" {
		rec.Steps = strings.Split(steps, ",")
	}
	return rec, nil
}

// RecentSwaps lists the newest swaps, most recent first.
func (s *Storage) RecentSwaps(ctx context.Context, limit int) ([]SwapRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("storage not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, sender, source_denom, target_denom, input_amount, min_target, steps, status, result, detail, started_at, COALESCE(finished_at, started_at)
        FROM swaps
        ORDER BY started_at DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query swaps: %w", err)
	}
	defer rows.Close()
	records := make([]SwapRecord, 0, limit)
	for rows.Next() {
		var rec SwapRecord
		var steps string
		if err := rows.Scan(&rec.ID, &rec.Sender, &rec.SourceDenom, &rec.TargetDenom, &rec.InputAmount, &rec.MinTarget,
			&steps, &rec.Status, &rec.Result, &rec.Detail, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan swap: %w", err)
		}
		if steps != "" {
			rec.Steps = strings.Split(steps, ",")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swaps: %w", err)
	}
	return records, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS swaps (
    id TEXT PRIMARY KEY,
    sender TEXT NOT NULL,
    source_denom TEXT NOT NULL,
    target_denom TEXT NOT NULL,
    input_amount TEXT NOT NULL,
    min_target TEXT NOT NULL,
    steps TEXT NOT NULL,
    status TEXT NOT NULL,
    result TEXT NOT NULL,
    detail TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_swaps_started ON swaps(started_at);

CREATE TABLE IF NOT EXISTS swap_hops (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    swap_id TEXT NOT NULL,
    step_idx INTEGER NOT NULL,
    market_id TEXT NOT NULL,
    side TEXT NOT NULL,
    balance TEXT NOT NULL,
    denom TEXT NOT NULL,
    settled_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_swap_hops_swap ON swap_hops(swap_id, step_idx);
`
