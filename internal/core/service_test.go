package core

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JonMunkholm/BitSlicer/internal/bits"
	"github.com/JonMunkholm/BitSlicer/internal/metrics"
	"github.com/JonMunkholm/BitSlicer/internal/table"
	"github.com/google/go-cmp/cmp"
)

func regTable() *table.Table {
	return &table.Table{
		Name:   "regs.csv",
		Header: []string{"reg", "label"},
		Rows: [][]string{
			{"0xFF", "a"},
			{"  ", "b"},
			{"zz", "c"},
			{"DEADBEEF", "d"},
		},
	}
}

func TestResolveColumn(t *testing.T) {
	tests := []struct {
		name   string
		tbl    *table.Table
		column string
		known  bits.KnownColumns
		want   bits.ColumnInfo
	}{
		{
			name:   "first present hex cell",
			tbl:    regTable(),
			column: "reg",
			want:   bits.ColumnInfo{Class: bits.Hex, BitLength: 32},
		},
		{
			name: "long binary string",
			tbl: &table.Table{Header: []string{"w"}, Rows: [][]string{
				{""}, {"1010101010"}, {"ff"},
			}},
			column: "w",
			want:   bits.ColumnInfo{Class: bits.Binary, BitLength: 10},
		},
		{
			name: "eight binary digits read as hex",
			tbl: &table.Table{Header: []string{"w"}, Rows: [][]string{
				{"11111111"},
			}},
			column: "w",
			want:   bits.ColumnInfo{Class: bits.Hex, BitLength: 32},
		},
		{
			name: "known column overrides heuristic",
			tbl: &table.Table{Header: []string{"w"}, Rows: [][]string{
				{"0101"},
			}},
			column: "w",
			known:  bits.NewKnownColumns(map[string]int{"w": 4}),
			want:   bits.ColumnInfo{Class: bits.Binary, BitLength: 4, Known: true},
		},
		{
			name: "empty column",
			tbl: &table.Table{Header: []string{"w"}, Rows: [][]string{
				{""}, {" "},
			}},
			column: "w",
			want:   bits.ColumnInfo{Class: bits.Hex, BitLength: 32},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveColumn(tt.tbl, tt.column, tt.known)
			if err != nil {
				t.Fatalf("ResolveColumn error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ResolveColumn mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveColumn_NotFound(t *testing.T) {
	_, err := ResolveColumn(regTable(), "missing", bits.KnownColumns{})
	if !errors.Is(err, table.ErrColumnNotFound) {
		t.Errorf("error = %v, want ErrColumnNotFound", err)
	}
}

func TestInspect(t *testing.T) {
	tbl := &table.Table{
		Header: []string{"reg", "reg_b0_4bit", "note"},
		Rows: [][]string{
			{"", "0011", ""},
			{"abc", "1100", ""},
		},
	}

	reports := Inspect(tbl, nil)
	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}

	if r := reports[0]; r.Class != bits.Hex || r.Sample != "abc" || r.Present != 1 {
		t.Errorf("reg report = %+v", r)
	}
	if r := reports[1]; !r.Known || r.Class != bits.Binary || r.BitLength != 4 {
		t.Errorf("reg_b0_4bit report = %+v, want known 4-bit binary", r)
	}
	if r := reports[2]; r.Present != 0 || r.BitLength != 32 {
		t.Errorf("empty column report = %+v", r)
	}
}

func TestPlan(t *testing.T) {
	layouts := NewLayouts()
	if err := layouts.Register(Layout{
		Name: "halves",
		Fields: []LayoutField{
			{Name: "hi", Bits: 16},
			{Name: "lo", Bits: 16},
		},
	}); err != nil {
		t.Fatalf("Register error = %v", err)
	}
	svc := NewService(Options{Layouts: layouts})

	tests := []struct {
		name       string
		req        PlanRequest
		wantWidths []int
		wantNames  []string
		wantErr    error
	}{
		{
			name:       "uniform",
			req:        PlanRequest{Column: "reg", Mode: ModeUniform, ChunkSize: 8},
			wantWidths: []int{8, 8, 8, 8},
			wantNames:  []string{"reg_b0_8bit", "reg_b1_8bit", "reg_b2_8bit", "reg_b3_8bit"},
		},
		{
			name:       "uniform with remainder",
			req:        PlanRequest{Column: "reg", ChunkSize: 10},
			wantWidths: []int{10, 10, 10, 2},
			wantNames:  []string{"reg_b0_10bit", "reg_b1_10bit", "reg_b2_10bit", "reg_b3_2bit"},
		},
		{
			name:       "explicit with custom names",
			req:        PlanRequest{Column: "reg", Widths: "12, 12, 8", Names: []string{"a", " b ", "c"}},
			wantWidths: []int{12, 12, 8},
			wantNames:  []string{"a", "b", "c"},
		},
		{
			name:       "layout",
			req:        PlanRequest{Column: "reg", Layout: "halves"},
			wantWidths: []int{16, 16},
			wantNames:  []string{"hi", "lo"},
		},
		{
			name:       "layout names overridden",
			req:        PlanRequest{Column: "reg", Mode: ModeLayout, Layout: "halves", Names: []string{"x", "y"}},
			wantWidths: []int{16, 16},
			wantNames:  []string{"x", "y"},
		},
		{
			name:    "width total mismatch",
			req:     PlanRequest{Column: "reg", Widths: "8,8"},
			wantErr: bits.ErrWidthMismatch,
		},
		{
			name:    "bad width spec",
			req:     PlanRequest{Column: "reg", Widths: "8,eight"},
			wantErr: bits.ErrInvalidAssignment,
		},
		{
			name:    "empty explicit widths",
			req:     PlanRequest{Column: "reg", Mode: ModeExplicit, Widths: " , "},
			wantErr: bits.ErrInvalidAssignment,
		},
		{
			name:    "names count mismatch",
			req:     PlanRequest{Column: "reg", Widths: "16,16", Names: []string{"only"}},
			wantErr: ErrNamesMismatch,
		},
		{
			name:    "zero chunk",
			req:     PlanRequest{Column: "reg", Mode: ModeUniform},
			wantErr: bits.ErrInvalidChunkSize,
		},
		{
			name:    "unknown layout",
			req:     PlanRequest{Column: "reg", Layout: "nope"},
			wantErr: ErrUnknownLayout,
		},
		{
			name:    "no mode",
			req:     PlanRequest{Column: "reg"},
			wantErr: ErrUnknownMode,
		},
		{
			name:    "missing column",
			req:     PlanRequest{Column: "nope", ChunkSize: 8},
			wantErr: table.ErrColumnNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := svc.Plan(regTable(), tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Plan error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Plan error = %v", err)
			}
			if diff := cmp.Diff(tt.wantWidths, plan.Widths); diff != "" {
				t.Errorf("widths mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantNames, plan.Names); diff != "" {
				t.Errorf("names mismatch (-want +got):\n%s", diff)
			}
			if plan.BitLength() != 32 {
				t.Errorf("BitLength = %d, want 32", plan.BitLength())
			}
		})
	}
}

func TestPlan_WidthMismatchMessage(t *testing.T) {
	_, err := NewService(Options{}).Plan(regTable(), PlanRequest{Column: "reg", Widths: "8,8"})
	if err == nil || !strings.Contains(err.Error(), "total bits (16) does not match column bit length (32)") {
		t.Errorf("error = %v, want total bits message", err)
	}
}

func TestSlice(t *testing.T) {
	m := metrics.New()
	svc := NewService(Options{Workers: 2, Metrics: m})

	plan, err := svc.Plan(regTable(), PlanRequest{Column: "reg", Widths: "16,16"})
	if err != nil {
		t.Fatalf("Plan error = %v", err)
	}

	res, err := svc.Slice(context.Background(), regTable(), plan)
	if err != nil {
		t.Fatalf("Slice error = %v", err)
	}

	wantHeader := []string{"reg", "label", "reg_b0_16bit", "reg_b1_16bit"}
	if diff := cmp.Diff(wantHeader, res.Header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}

	wantRows := [][]string{
		{"0xFF", "a", "0000000000000000", "0000000011111111"},
		{"  ", "b", "", ""},
		{"zz", "c", "0000000000000000", "0000000000000000"},
		{"DEADBEEF", "d", "1101111010101101", "1011111011101111"},
	}
	if diff := cmp.Diff(wantRows, res.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	wantStats := Stats{Rows: 4, Hex: 2, Invalid: 1, Absent: 1, Fallback: 1}
	if diff := cmp.Diff(wantStats, res.Stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	for _, want := range []string{
		"bitslicer_hex_fallbacks_total 1",
		`bitslicer_tokens_decoded_total{class="absent"} 1`,
		`bitslicer_tokens_decoded_total{class="hex"} 2`,
	} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestSlice_ReplacesExistingFieldColumn(t *testing.T) {
	tbl := &table.Table{
		Header: []string{"reg", "hi"},
		Rows:   [][]string{{"ffff0000", "stale"}},
	}
	svc := NewService(Options{})
	plan, err := svc.Plan(tbl, PlanRequest{Column: "reg", Widths: "16,16", Names: []string{"hi", "lo"}})
	if err != nil {
		t.Fatalf("Plan error = %v", err)
	}

	res, err := svc.Slice(context.Background(), tbl, plan)
	if err != nil {
		t.Fatalf("Slice error = %v", err)
	}
	if diff := cmp.Diff([]string{"reg", "hi", "lo"}, res.Header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ffff0000", "1111111111111111", "0000000000000000"}, res.Rows[0]); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestPlan_NamesKeepSourceColumn(t *testing.T) {
	tbl := &table.Table{
		Header: []string{"reg", "other"},
		Rows:   [][]string{{"ff", "x"}},
	}
	layouts := NewLayouts()
	if err := layouts.Register(Layout{Name: "self", Fields: []LayoutField{{Name: "reg", Bits: 32}}}); err != nil {
		t.Fatal(err)
	}
	svc := NewService(Options{Layouts: layouts})

	tests := []struct {
		name string
		req  PlanRequest
	}{
		{name: "custom name equals column", req: PlanRequest{Column: "reg", Widths: "16,16", Names: []string{"reg", "lo"}}},
		{name: "duplicate custom names", req: PlanRequest{Column: "reg", Widths: "16,16", Names: []string{"lo", "lo"}}},
		{name: "layout field equals column", req: PlanRequest{Column: "reg", Layout: "self"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Plan(tbl, tt.req)
			if !errors.Is(err, ErrNamesMismatch) {
				t.Errorf("Plan error = %v, want ErrNamesMismatch", err)
			}
		})
	}

	// A hand-built plan cannot bypass the check either.
	plan := Plan{
		Column: "reg",
		Info:   bits.ColumnInfo{Class: bits.Hex, BitLength: 32},
		Widths: []int{16, 16},
		Names:  []string{"reg", "lo"},
	}
	if _, err := svc.Slice(context.Background(), tbl, plan); !errors.Is(err, ErrNamesMismatch) {
		t.Errorf("Slice error = %v, want ErrNamesMismatch", err)
	}
	if tbl.Rows[0][0] != "ff" {
		t.Errorf("source cell = %q, want ff", tbl.Rows[0][0])
	}
}

func TestSlice_KnownBinaryColumn(t *testing.T) {
	// Output of an earlier pass is recognized by its name and re-sliced as binary.
	tbl := &table.Table{
		Header: []string{"reg_b0_8bit"},
		Rows:   [][]string{{"10100101"}, {"11"}},
	}
	svc := NewService(Options{})
	plan, err := svc.Plan(tbl, PlanRequest{Column: "reg_b0_8bit", ChunkSize: 4})
	if err != nil {
		t.Fatalf("Plan error = %v", err)
	}
	if plan.Info.Class != bits.Binary || !plan.Info.Known {
		t.Fatalf("plan info = %+v, want known binary", plan.Info)
	}

	res, err := svc.Slice(context.Background(), tbl, plan)
	if err != nil {
		t.Fatalf("Slice error = %v", err)
	}
	want := [][]string{
		{"10100101", "1010", "0101"},
		{"11", "0000", "0011"},
	}
	if diff := cmp.Diff(want, res.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if res.Stats.Binary != 2 {
		t.Errorf("Stats.Binary = %d, want 2", res.Stats.Binary)
	}
}

func TestSlice_PreservesOrderAcrossBatches(t *testing.T) {
	const n = rowBatch*3 + 7
	tbl := &table.Table{Header: []string{"v"}, Rows: make([][]string, n)}
	for i := range tbl.Rows {
		tbl.Rows[i] = []string{itoaHex(i)}
	}

	svc := NewService(Options{Workers: 4})
	plan, err := svc.Plan(tbl, PlanRequest{Column: "v", ChunkSize: 32})
	if err != nil {
		t.Fatalf("Plan error = %v", err)
	}
	res, err := svc.Slice(context.Background(), tbl, plan)
	if err != nil {
		t.Fatalf("Slice error = %v", err)
	}

	for i, row := range res.Rows {
		if want := bits.DecodeHex(itoaHex(i)); row[1] != want {
			t.Fatalf("row %d = %q, want %q", i, row[1], want)
		}
	}
}

func TestSlice_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(Options{})
	plan, err := svc.Plan(regTable(), PlanRequest{Column: "reg", ChunkSize: 32})
	if err != nil {
		t.Fatalf("Plan error = %v", err)
	}
	if _, err := svc.Slice(ctx, regTable(), plan); !errors.Is(err, context.Canceled) {
		t.Errorf("Slice error = %v, want context.Canceled", err)
	}
}

func itoaHex(i int) string {
	const digits = "0123456789abcdef"
	if i == 0 {
		return "a0"
	}
	var b []byte
	for ; i > 0; i /= 16 {
		b = append([]byte{digits[i%16]}, b...)
	}
	return "a" + string(b)
}
