package table

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	defaultSheet = "Sheet1"

	// textNumFmt is Excel's built-in "@" format. Without it Excel turns
	// "0101" into the number 101 when the file is opened.
	textNumFmt = 49
)

// ReadXLSX reads one worksheet of a workbook as strings.
func ReadXLSX(r io.Reader, name string, opts ReadOptions) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid xlsx %s: %w", name, err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: %s has no worksheets", ErrEmptyFile, name)
		}
		sheet = sheets[0]
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", sheet, name, err)
	}
	return fromRecords(name, records, opts)
}

// WriteXLSX writes t to a single-sheet workbook with every data cell
// formatted as text.
func WriteXLSX(w io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeRow(f, 1, t.Header); err != nil {
		return err
	}
	for i, row := range t.Rows {
		if err := writeRow(f, i+2, row); err != nil {
			return err
		}
	}

	if len(t.Rows) > 0 && len(t.Header) > 0 {
		style, err := f.NewStyle(&excelize.Style{NumFmt: textNumFmt})
		if err != nil {
			return fmt.Errorf("create text style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(len(t.Header), len(t.Rows)+1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(defaultSheet, "A2", last, style); err != nil {
			return fmt.Errorf("apply text style: %w", err)
		}
	}

	_, err := f.WriteTo(w)
	return err
}

func writeRow(f *excelize.File, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(defaultSheet, cell, &row); err != nil {
		return fmt.Errorf("write row %d: %w", rowNum, err)
	}
	return nil
}
