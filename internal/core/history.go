package core

// history.go records finished slicing jobs.
//
// Two stores implement HistoryStore: PostgresHistory when a database is
// configured and MemoryHistory otherwise. Both are pruned by the retention
// scheduler in scheduler.go.

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultHistoryLimit is the page size used when List is called with limit <= 0.
const DefaultHistoryLimit = 100

// maxMemoryHistory bounds MemoryHistory between pruning runs.
const maxMemoryHistory = 10000

// HistoryEntry is one finished job.
type HistoryEntry struct {
	JobID      string    `json:"job_id"`
	FileName   string    `json:"file_name"`
	Column     string    `json:"column"`
	Mode       PlanMode  `json:"mode"`
	Fields     int       `json:"fields"`
	Phase      JobPhase  `json:"phase"`
	Stats      Stats     `json:"stats"`
	Error      string    `json:"error,omitempty"`
	ClientIP   string    `json:"client_ip,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// HistoryStore persists job history.
type HistoryStore interface {
	Record(ctx context.Context, e HistoryEntry) error
	List(ctx context.Context, limit int) ([]HistoryEntry, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// MemoryHistory keeps entries in process memory.
type MemoryHistory struct {
	mu      sync.RWMutex
	entries []HistoryEntry
}

// NewMemoryHistory returns an empty in-memory store.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

func (m *MemoryHistory) Record(_ context.Context, e HistoryEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, e)
	if over := len(m.entries) - maxMemoryHistory; over > 0 {
		m.entries = append(m.entries[:0:0], m.entries[over:]...)
	}
	return nil
}

// List returns the newest entries first.
func (m *MemoryHistory) List(_ context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	m.mu.RLock()
	out := make([]HistoryEntry, len(m.entries))
	copy(out, m.entries)
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryHistory) Prune(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	var removed int64
	for _, e := range m.entries {
		if e.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return removed, nil
}

// PostgresHistory stores entries in the job_history table.
type PostgresHistory struct {
	db DBTX
}

// NewPostgresHistory wraps a pgx pool, connection or transaction.
func NewPostgresHistory(db DBTX) *PostgresHistory {
	return &PostgresHistory{db: db}
}

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS job_history (
	job_id      UUID PRIMARY KEY,
	file_name   TEXT NOT NULL,
	column_name TEXT NOT NULL,
	mode        TEXT,
	fields      INTEGER NOT NULL DEFAULT 0,
	phase       TEXT NOT NULL,
	rows_total  INTEGER NOT NULL DEFAULT 0,
	hex         INTEGER NOT NULL DEFAULT 0,
	binary_rows INTEGER NOT NULL DEFAULT 0,
	invalid     INTEGER NOT NULL DEFAULT 0,
	absent      INTEGER NOT NULL DEFAULT 0,
	fallback    INTEGER NOT NULL DEFAULT 0,
	overflow    INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	client_ip   TEXT,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS job_history_created_at_idx ON job_history (created_at DESC);`

// Migrate creates the history table if it does not exist.
func (p *PostgresHistory) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, createHistoryTable); err != nil {
		return fmt.Errorf("migrate job_history: %w", err)
	}
	return nil
}

func (p *PostgresHistory) Record(ctx context.Context, e HistoryEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := p.db.Exec(ctx, `
		INSERT INTO job_history (
			job_id, file_name, column_name, mode, fields, phase,
			rows_total, hex, binary_rows, invalid, absent, fallback, overflow,
			error, client_ip, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (job_id) DO NOTHING`,
		ToPgUUID(e.JobID), e.FileName, e.Column, ToPgText(string(e.Mode)), e.Fields, string(e.Phase),
		e.Stats.Rows, e.Stats.Hex, e.Stats.Binary, e.Stats.Invalid, e.Stats.Absent, e.Stats.Fallback, e.Stats.Overflow,
		ToPgText(e.Error), ToPgText(e.ClientIP), e.DurationMS, ToPgTimestamptz(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("record job %s: %w", e.JobID, err)
	}
	return nil
}

// List returns the newest entries first.
func (p *PostgresHistory) List(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := p.db.Query(ctx, `
		SELECT job_id, file_name, column_name, mode, fields, phase,
			rows_total, hex, binary_rows, invalid, absent, fallback, overflow,
			error, client_ip, duration_ms, created_at
		FROM job_history
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list job history: %w", err)
	}

	entries, err := pgx.CollectRows(rows, scanHistoryRow)
	if err != nil {
		return nil, fmt.Errorf("scan job history: %w", err)
	}
	return entries, nil
}

func (p *PostgresHistory) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM job_history WHERE created_at < $1`, ToPgTimestamptz(before))
	if err != nil {
		return 0, fmt.Errorf("prune job history: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanHistoryRow scans a single job_history row.
func scanHistoryRow(row pgx.CollectableRow) (HistoryEntry, error) {
	var (
		id        pgtype.UUID
		mode      pgtype.Text
		phase     string
		errText   pgtype.Text
		clientIP  pgtype.Text
		createdAt pgtype.Timestamptz
		e         HistoryEntry
	)

	err := row.Scan(
		&id, &e.FileName, &e.Column, &mode, &e.Fields, &phase,
		&e.Stats.Rows, &e.Stats.Hex, &e.Stats.Binary, &e.Stats.Invalid, &e.Stats.Absent, &e.Stats.Fallback, &e.Stats.Overflow,
		&errText, &clientIP, &e.DurationMS, &createdAt,
	)
	if err != nil {
		return HistoryEntry{}, err
	}

	e.JobID = PgUUIDToString(id)
	e.Phase = JobPhase(phase)
	e.CreatedAt = createdAt.Time
	if mode.Valid {
		e.Mode = PlanMode(mode.String)
	}
	if errText.Valid {
		e.Error = errText.String
	}
	if clientIP.Valid {
		e.ClientIP = clientIP.String
	}
	return e, nil
}
