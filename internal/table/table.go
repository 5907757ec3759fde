// Package table reads and writes the tabular files that feed the slicer.
//
// Tables are plain string grids: a header row naming each column and data
// rows padded to the header width. CSV and XLSX are supported. Values are
// never coerced to numbers, so "0101" survives a read/write cycle.
package table

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies a file format.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

var (
	// ErrUnsupportedFormat is returned for extensions other than .csv/.xlsx.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrColumnNotFound is returned when a named column is not in the header.
	ErrColumnNotFound = errors.New("column not found")

	// ErrEmptyFile is returned when a file has no header row.
	ErrEmptyFile = errors.New("empty file")
)

// FormatFromName picks a format from a file name's extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return CSV, nil
	case ".xlsx", ".xlsm":
		return XLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// ParseFormat accepts "csv" or "xlsx" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case CSV, XLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Table is a header plus data rows. Every row has len(Header) cells.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// ReadOptions controls how the first row is interpreted.
type ReadOptions struct {
	// NoHeader treats the first row as data and names columns Column_0..n.
	NoHeader bool

	// Sheet selects an XLSX worksheet; the first sheet when empty.
	Sheet string
}

// ColumnIndex returns the position of column in the header.
func (t *Table) ColumnIndex(column string) (int, error) {
	for i, h := range t.Header {
		if h == column {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrColumnNotFound, column)
}

// Column returns every value of the named column in row order.
func (t *Table) Column(column string) ([]string, error) {
	idx, err := t.ColumnIndex(column)
	if err != nil {
		return nil, err
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// fromRecords builds a Table from raw records, naming blank or missing
// header cells Column_<i>, suffixing repeated names and padding short rows
// with empty cells.
func fromRecords(name string, records [][]string, opts ReadOptions) (*Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, name)
	}

	width := 0
	for _, rec := range records {
		width = max(width, len(rec))
	}

	t := &Table{Name: name, Header: make([]string, width)}
	data := records
	if !opts.NoHeader {
		for i, h := range records[0] {
			t.Header[i] = strings.TrimSpace(h)
		}
		data = records[1:]
	}
	for i, h := range t.Header {
		if h == "" {
			t.Header[i] = fmt.Sprintf("Column_%d", i)
		}
	}
	dedupeHeader(t.Header)

	t.Rows = make([][]string, 0, len(data))
	for _, rec := range data {
		row := make([]string, width)
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// dedupeHeader renames repeated column names in place: the second "a"
// becomes "a.1", the third "a.2", skipping names already taken.
func dedupeHeader(header []string) {
	used := make(map[string]bool, len(header))
	for _, h := range header {
		used[h] = true
	}

	seen := make(map[string]bool, len(header))
	next := make(map[string]int)
	for i, h := range header {
		if !seen[h] {
			seen[h] = true
			continue
		}
		n := next[h] + 1
		for used[fmt.Sprintf("%s.%d", h, n)] {
			n++
		}
		next[h] = n
		name := fmt.Sprintf("%s.%d", h, n)
		used[name] = true
		seen[name] = true
		header[i] = name
	}
}

// Read parses r in the given format.
func Read(r io.Reader, name string, format Format, opts ReadOptions) (*Table, error) {
	switch format {
	case CSV:
		return ReadCSV(r, name, opts)
	case XLSX:
		return ReadXLSX(r, name, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Write serializes t to w in the given format.
func Write(w io.Writer, format Format, t *Table) error {
	switch format {
	case CSV:
		return WriteCSV(w, t)
	case XLSX:
		return WriteXLSX(w, t)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ReadFile opens path and reads it in the format implied by its extension.
func ReadFile(path string, opts ReadOptions) (*Table, error) {
	format, err := FormatFromName(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return Read(f, filepath.Base(path), format, opts)
}

// WriteFile writes t to path in the format implied by its extension.
func WriteFile(path string, t *Table) error {
	format, err := FormatFromName(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := Write(f, format, t); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
