package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/BitSlicer/internal/bits"
	"github.com/JonMunkholm/BitSlicer/internal/metrics"
	"github.com/JonMunkholm/BitSlicer/internal/table"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNamesMismatch is returned when custom names do not match the field count.
	ErrNamesMismatch = errors.New("column names count mismatch")

	// ErrUnknownMode is returned for a PlanRequest whose mode cannot be determined.
	ErrUnknownMode = errors.New("unknown slicing mode")
)

// rowBatch is the number of rows one worker slices between cancellation checks.
const rowBatch = 256

// Options configures a Service. Zero values get defaults.
type Options struct {
	// Workers bounds the goroutines slicing rows within one call (default: 8)
	Workers int

	// JobTimeout bounds a single asynchronous job (default: 5m)
	JobTimeout time.Duration

	// ResultTTL is how long finished jobs stay retrievable (default: 15m)
	ResultTTL time.Duration

	// MaxFileSize rejects larger uploads; zero disables the check
	MaxFileSize int64

	Limiter *JobLimiter
	Layouts *Layouts
	History HistoryStore
	Metrics *metrics.Metrics
}

// Service plans and slices tables and runs slicing jobs in the background.
type Service struct {
	opts Options

	mu   sync.RWMutex
	jobs map[string]*activeJob
	wg   sync.WaitGroup
}

// NewService creates a Service. Missing collaborators are replaced by an
// unbounded-wait limiter, an empty layout registry and in-memory history.
func NewService(opts Options) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 5 * time.Minute
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = 15 * time.Minute
	}
	if opts.Limiter == nil {
		opts.Limiter = NewJobLimiter(DefaultMaxConcurrentJobs, DefaultMaxWaitTime)
	}
	if opts.Layouts == nil {
		opts.Layouts = NewLayouts()
	}
	if opts.History == nil {
		opts.History = NewMemoryHistory()
	}

	return &Service{
		opts: opts,
		jobs: make(map[string]*activeJob),
	}
}

// Layouts returns the service's layout registry.
func (s *Service) Layouts() *Layouts {
	return s.opts.Layouts
}

// History returns the service's history store.
func (s *Service) History() HistoryStore {
	return s.opts.History
}

// LimiterStatus reports the job limiter's current state.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.opts.Limiter.Status()
}

// Inspect reports the resolved encoding of every column in tbl.
func (s *Service) Inspect(tbl *table.Table, known map[string]int) []ColumnReport {
	return Inspect(tbl, known)
}

// Plan resolves the requested column and builds a validated slicing plan.
// The widths must add up to the column's bit length exactly.
func (s *Service) Plan(tbl *table.Table, req PlanRequest) (Plan, error) {
	known := knownFor(tbl, req.Known)
	info, err := ResolveColumn(tbl, req.Column, known)
	if err != nil {
		return Plan{}, err
	}

	var (
		widths      []int
		layoutNames []string
	)
	switch mode := req.mode(); mode {
	case ModeUniform:
		widths, err = bits.UniformWidths(info.BitLength, req.ChunkSize)
	case ModeExplicit:
		widths, err = bits.ParseWidths(req.Widths)
		if err == nil && len(widths) == 0 {
			err = fmt.Errorf("%w: no widths given", bits.ErrInvalidAssignment)
		}
	case ModeLayout:
		var layout Layout
		layout, err = s.opts.Layouts.Get(req.Layout)
		if err == nil {
			widths, layoutNames = layout.Widths(), layout.Names()
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if err != nil {
		return Plan{}, err
	}

	if err := bits.VerifyTotal(widths, info.BitLength); err != nil {
		return Plan{}, err
	}

	names, err := planNames(req, widths, layoutNames)
	if err != nil {
		return Plan{}, err
	}

	return Plan{
		Column: req.Column,
		Info:   info,
		Widths: widths,
		Names:  names,
	}, nil
}

// mode returns the explicit mode or infers one from the populated fields.
func (r PlanRequest) mode() PlanMode {
	if r.Mode != "" {
		return PlanMode(strings.ToLower(string(r.Mode)))
	}
	switch {
	case r.Layout != "":
		return ModeLayout
	case strings.TrimSpace(r.Widths) != "":
		return ModeExplicit
	case r.ChunkSize != 0:
		return ModeUniform
	}
	return ""
}

func planNames(req PlanRequest, widths []int, layoutNames []string) ([]string, error) {
	custom := make([]string, 0, len(req.Names))
	for _, n := range req.Names {
		if n = strings.TrimSpace(n); n != "" {
			custom = append(custom, n)
		}
	}

	var names []string
	switch {
	case len(custom) > 0:
		if len(custom) != len(widths) {
			return nil, fmt.Errorf("%w: got %d names for %d fields", ErrNamesMismatch, len(custom), len(widths))
		}
		names = custom
	case layoutNames != nil:
		names = layoutNames
	default:
		names = bits.DefaultNames(req.Column, widths)
	}

	if err := checkNames(req.Column, names); err != nil {
		return nil, err
	}
	return names, nil
}

// checkNames rejects field names that would overwrite the sliced column or
// each other.
func checkNames(column string, names []string) error {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n == column {
			return fmt.Errorf("%w: field %q would overwrite the sliced column", ErrNamesMismatch, n)
		}
		if seen[n] {
			return fmt.Errorf("%w: field %q is named twice", ErrNamesMismatch, n)
		}
		seen[n] = true
	}
	return nil
}

// Slice applies plan to every row of tbl.
//
// The output keeps the input columns and appends one column per field; a
// field whose name already exists in the header replaces that column. The
// sliced column itself is never replaced. Absent cells produce empty fields,
// invalid tokens produce zero-filled fields. Row order is preserved.
func (s *Service) Slice(ctx context.Context, tbl *table.Table, plan Plan) (*Result, error) {
	return s.slice(ctx, tbl, plan, nil)
}

// slice is Slice with an optional progress callback reporting completed rows.
// progress may be called from several goroutines.
func (s *Service) slice(ctx context.Context, tbl *table.Table, plan Plan, progress func(done int)) (*Result, error) {
	src, err := tbl.ColumnIndex(plan.Column)
	if err != nil {
		return nil, err
	}
	if len(plan.Names) != len(plan.Widths) {
		return nil, fmt.Errorf("%w: got %d names for %d fields", ErrNamesMismatch, len(plan.Names), len(plan.Widths))
	}
	if err := checkNames(plan.Column, plan.Names); err != nil {
		return nil, err
	}

	header, targets := outputHeader(tbl.Header, plan.Names)
	rows := make([][]string, len(tbl.Rows))

	var (
		statsMu sync.Mutex
		stats   = Stats{Rows: len(tbl.Rows)}
		done    atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for start := 0; start < len(tbl.Rows); start += rowBatch {
		start := start
		end := min(start+rowBatch, len(tbl.Rows))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			var local Stats
			for i := start; i < end; i++ {
				rows[i] = sliceRow(tbl.Rows[i], src, len(header), targets, plan, &local)
			}

			statsMu.Lock()
			stats.add(local)
			statsMu.Unlock()

			n := done.Add(int64(end - start))
			if progress != nil {
				progress(int(n))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.opts.Metrics.ObserveSlice(stats.counts())
	return &Result{Header: header, Rows: rows, Stats: stats}, nil
}

// outputHeader returns the result header and, for each field, the column it
// is written to.
func outputHeader(in, names []string) ([]string, []int) {
	header := make([]string, len(in), len(in)+len(names))
	copy(header, in)

	pos := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}

	targets := make([]int, len(names))
	for i, name := range names {
		if j, ok := pos[name]; ok {
			targets[i] = j
			continue
		}
		pos[name] = len(header)
		targets[i] = len(header)
		header = append(header, name)
	}
	return header, targets
}

func sliceRow(in []string, src, width int, targets []int, plan Plan, st *Stats) []string {
	out := make([]string, width)
	copy(out, in)

	cell := in[src]
	if absent(cell) {
		st.Absent++
		for _, t := range targets {
			out[t] = ""
		}
		return out
	}

	d := bits.Decode(cell, plan.Info)
	switch d.Class {
	case bits.Hex:
		st.Hex++
	case bits.Binary:
		st.Binary++
	default:
		st.Invalid++
	}
	if d.Fallback {
		st.Fallback++
	}
	if d.Overflow {
		st.Overflow++
	}

	for i, v := range bits.Slice(d.Word, plan.Widths) {
		out[targets[i]] = v
	}
	return out
}

func (st *Stats) add(o Stats) {
	st.Hex += o.Hex
	st.Binary += o.Binary
	st.Invalid += o.Invalid
	st.Absent += o.Absent
	st.Fallback += o.Fallback
	st.Overflow += o.Overflow
}

func (st Stats) counts() metrics.Counts {
	return metrics.Counts{
		Hex:      st.Hex,
		Binary:   st.Binary,
		Invalid:  st.Invalid,
		Absent:   st.Absent,
		Fallback: st.Fallback,
		Overflow: st.Overflow,
	}
}
