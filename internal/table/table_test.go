package table

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadCSV(t *testing.T) {
	input := "reg,label\n0xFF,a\n,b\n101010101\n"

	tbl, err := ReadCSV(strings.NewReader(input), "in.csv", ReadOptions{})
	if err != nil {
		t.Fatalf("ReadCSV error = %v", err)
	}

	if diff := cmp.Diff([]string{"reg", "label"}, tbl.Header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	want := [][]string{
		{"0xFF", "a"},
		{"", "b"},
		{"101010101", ""},
	}
	if diff := cmp.Diff(want, tbl.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSV_NoHeader(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("ff,1\nab,2\n"), "in.csv", ReadOptions{NoHeader: true})
	if err != nil {
		t.Fatalf("ReadCSV error = %v", err)
	}
	if diff := cmp.Diff([]string{"Column_0", "Column_1"}, tbl.Header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	if len(tbl.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(tbl.Rows))
	}
}

func TestReadCSV_BlankHeaderCell(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("a,,c\n1,2,3\n"), "in.csv", ReadOptions{})
	if err != nil {
		t.Fatalf("ReadCSV error = %v", err)
	}
	if tbl.Header[1] != "Column_1" {
		t.Errorf("Header[1] = %q, want Column_1", tbl.Header[1])
	}
}

func TestReadCSV_DuplicateHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   []string
	}{
		{name: "repeat", header: "a,b,a", want: []string{"a", "b", "a.1"}},
		{name: "three times", header: "a,a,a", want: []string{"a", "a.1", "a.2"}},
		{name: "suffix already taken", header: "a,a.1,a", want: []string{"a", "a.1", "a.2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := ReadCSV(strings.NewReader(tt.header+"\n1,2,3\n"), "in.csv", ReadOptions{})
			if err != nil {
				t.Fatalf("ReadCSV error = %v", err)
			}
			if diff := cmp.Diff(tt.want, tbl.Header); diff != "" {
				t.Errorf("header mismatch (-want +got):\n%s", diff)
			}
		})
	}

	tbl, _ := ReadCSV(strings.NewReader("a,a\nfirst,second\n"), "in.csv", ReadOptions{})
	values, err := tbl.Column("a.1")
	if err != nil {
		t.Fatalf("Column error = %v", err)
	}
	if values[0] != "second" {
		t.Errorf("a.1 = %q, want second", values[0])
	}
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""), "in.csv", ReadOptions{})
	if !errors.Is(err, ErrEmptyFile) {
		t.Errorf("error = %v, want ErrEmptyFile", err)
	}
}

func TestColumn(t *testing.T) {
	tbl := &Table{Header: []string{"a", "b"}, Rows: [][]string{{"1", "2"}, {"3", "4"}}}

	got, err := tbl.Column("b")
	if err != nil {
		t.Fatalf("Column error = %v", err)
	}
	if diff := cmp.Diff([]string{"2", "4"}, got); diff != "" {
		t.Errorf("Column mismatch (-want +got):\n%s", diff)
	}

	if _, err := tbl.Column("missing"); !errors.Is(err, ErrColumnNotFound) {
		t.Errorf("missing column error = %v, want ErrColumnNotFound", err)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	tbl := &Table{
		Header: []string{"reg_b0_4bit", "reg_b1_4bit"},
		Rows:   [][]string{{"0001", "1000"}, {"", ""}},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, tbl); err != nil {
		t.Fatalf("WriteCSV error = %v", err)
	}
	got, err := ReadCSV(&buf, "out.csv", ReadOptions{})
	if err != nil {
		t.Fatalf("ReadCSV error = %v", err)
	}
	if diff := cmp.Diff(tbl.Rows, got.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestXLSXRoundTrip(t *testing.T) {
	tbl := &Table{
		Header: []string{"reg_b0_4bit", "reg_b1_4bit"},
		Rows:   [][]string{{"0001", "1000"}, {"0000", "0110"}},
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, tbl); err != nil {
		t.Fatalf("WriteXLSX error = %v", err)
	}
	got, err := ReadXLSX(&buf, "out.xlsx", ReadOptions{})
	if err != nil {
		t.Fatalf("ReadXLSX error = %v", err)
	}
	if diff := cmp.Diff(tbl.Header, got.Header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(tbl.Rows, got.Rows); diff != "" {
		t.Errorf("leading zeros lost (-want +got):\n%s", diff)
	}
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tbl := &Table{Header: []string{"x"}, Rows: [][]string{{"0011"}}}

	for _, name := range []string{"out.csv", "out.xlsx"} {
		path := filepath.Join(dir, name)
		if err := WriteFile(path, tbl); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", name, err)
		}
		got, err := ReadFile(path, ReadOptions{})
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", name, err)
		}
		if got.Rows[0][0] != "0011" {
			t.Errorf("%s: value = %q, want 0011", name, got.Rows[0][0])
		}
	}
}

func TestFormatFromName(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{name: "data.csv", want: CSV},
		{name: "DATA.XLSX", want: XLSX},
		{name: "data.xls", wantErr: true},
		{name: "data", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatFromName(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("error = %v, want ErrUnsupportedFormat", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("FormatFromName(%q) = %q, %v; want %q", tt.name, got, err, tt.want)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{name: "BOM removed", input: append([]byte{0xEF, 0xBB, 0xBF}, "a,b"...), want: "a,b"},
		{name: "no BOM", input: []byte("a,b"), want: "a,b"},
		{name: "only BOM", input: []byte{0xEF, 0xBB, 0xBF}, want: ""},
		{name: "partial BOM kept as replacement", input: []byte{0xEF, 0xBB, 'x'}, want: "??x"},
		{name: "invalid byte", input: []byte{'a', 0xFF, 'b'}, want: "a?b"},
		{name: "valid multibyte", input: []byte("café"), want: "café"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(Sanitize(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// oneByteReader returns a single byte per Read to split multibyte runes.
type oneByteReader struct{ data []byte }

func (o *oneByteReader) Read(p []byte) (int, error) {
	if len(o.data) == 0 {
		return 0, io.EOF
	}
	p[0] = o.data[0]
	o.data = o.data[1:]
	return 1, nil
}

func TestSanitize_SplitRune(t *testing.T) {
	got, err := io.ReadAll(Sanitize(&oneByteReader{data: []byte("héllo")}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "héllo" {
		t.Errorf("got %q, want %q", got, "héllo")
	}
}

func TestCountingReader(t *testing.T) {
	cr := NewCountingReader(strings.NewReader("0123456789"), 10)
	buf := make([]byte, 5)
	if _, err := cr.Read(buf); err != nil {
		t.Fatalf("Read error = %v", err)
	}
	if got := cr.Progress(); got != 50 {
		t.Errorf("Progress = %d, want 50", got)
	}
	if got := NewCountingReader(strings.NewReader(""), 0).Progress(); got != 0 {
		t.Errorf("unknown total Progress = %d, want 0", got)
	}
}
