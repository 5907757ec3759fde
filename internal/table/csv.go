package table

import (
	"encoding/csv"
	"fmt"
	"io"
)

// ReadCSV parses a CSV stream. Ragged rows and stray quotes are tolerated
// since spreadsheet exports are rarely strict.
func ReadCSV(r io.Reader, name string, opts ReadOptions) (*Table, error) {
	cr := csv.NewReader(Sanitize(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv %s: %w", name, err)
	}
	return fromRecords(name, records, opts)
}

// WriteCSV writes the header followed by every row.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}
