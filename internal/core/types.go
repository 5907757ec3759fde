package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/BitSlicer/internal/bits"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx used by the history store. *pgxpool.Pool,
// *pgx.Conn and pgx.Tx all satisfy it.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// ColumnReport describes one column of an inspected table.
type ColumnReport struct {
	Name string `json:"name"`
	bits.ColumnInfo

	// Sample is the first present value, empty for an all-absent column.
	Sample string `json:"sample"`

	// Present counts non-absent cells.
	Present int `json:"present"`
}

// PlanMode selects how a Plan's widths are produced.
type PlanMode string

const (
	ModeUniform  PlanMode = "uniform"
	ModeExplicit PlanMode = "explicit"
	ModeLayout   PlanMode = "layout"
)

// PlanRequest is the caller's description of how to slice a column.
type PlanRequest struct {
	Column string   `json:"column"`
	Mode   PlanMode `json:"mode"`

	// ChunkSize is used in ModeUniform.
	ChunkSize int `json:"chunk_size,omitempty"`

	// Widths is a comma-separated width spec used in ModeExplicit.
	Widths string `json:"widths,omitempty"`

	// Layout names a registered layout used in ModeLayout.
	Layout string `json:"layout,omitempty"`

	// Names overrides the generated field names. Must have one entry per field.
	Names []string `json:"names,omitempty"`

	// Known adds columns whose binary width is already known, on top of
	// those recognized from the header.
	Known map[string]int `json:"known,omitempty"`
}

// Plan is a validated slicing plan for one column.
type Plan struct {
	Column string          `json:"column"`
	Info   bits.ColumnInfo `json:"info"`
	Widths []int           `json:"widths"`
	Names  []string        `json:"names"`
}

// BitLength returns the resolved bit length of the planned column.
func (p Plan) BitLength() int {
	return p.Info.BitLength
}

// Stats counts what happened while slicing.
type Stats struct {
	Rows     int `json:"rows"`
	Hex      int `json:"hex"`
	Binary   int `json:"binary"`
	Invalid  int `json:"invalid"`
	Absent   int `json:"absent"`
	Fallback int `json:"fallback"`
	Overflow int `json:"overflow"`
}

// Result is the output of slicing a table: the original columns followed
// by one column per planned field.
type Result struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
	Stats  Stats      `json:"stats"`
}

// JobPhase indicates the current stage of a slicing job.
type JobPhase string

const (
	PhaseQueued    JobPhase = "queued"
	PhaseReading   JobPhase = "reading"
	PhasePlanning  JobPhase = "planning"
	PhaseSlicing   JobPhase = "slicing"
	PhaseComplete  JobPhase = "complete"
	PhaseFailed    JobPhase = "failed"
	PhaseCancelled JobPhase = "cancelled"
)

// Terminal reports whether no further progress will follow.
func (p JobPhase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseCancelled
}

// JobProgress is a snapshot of a running job, broadcast to subscribers.
type JobProgress struct {
	JobID       string   `json:"job_id"`
	FileName    string   `json:"file_name"`
	Phase       JobPhase `json:"phase"`
	TotalRows   int      `json:"total_rows"`
	CurrentRow  int      `json:"current_row"`
	Error       string   `json:"error,omitempty"` // Non-empty if Phase is PhaseFailed
	BytesRead   int64    `json:"bytes_read,omitempty"`
	TotalBytes  int64    `json:"total_bytes,omitempty"`
	ErrorCode   string   `json:"error_code,omitempty"`
	ErrorAction string   `json:"error_action,omitempty"`
}

// Percent returns overall completion from 0 to 100. Reading counts bytes,
// slicing counts rows; a finished job is always 100.
func (p JobProgress) Percent() int {
	switch {
	case p.Phase.Terminal():
		return 100
	case p.TotalRows > 0:
		return p.CurrentRow * 100 / p.TotalRows
	case p.TotalBytes > 0:
		return int(p.BytesRead * 100 / p.TotalBytes)
	}
	return 0
}

// JobResult is the final outcome of a job.
type JobResult struct {
	JobID    string        `json:"job_id"`
	FileName string        `json:"file_name"`
	Phase    JobPhase      `json:"phase"`
	Plan     *Plan         `json:"plan,omitempty"`
	Stats    Stats         `json:"stats"`
	Duration time.Duration `json:"-"`
	Error    string        `json:"error,omitempty"`

	// DurationMS mirrors Duration for JSON clients.
	DurationMS int64 `json:"duration_ms"`
}
