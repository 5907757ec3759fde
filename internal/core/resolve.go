package core

import (
	"strings"

	"github.com/JonMunkholm/BitSlicer/internal/bits"
	"github.com/JonMunkholm/BitSlicer/internal/table"
)

// absent reports whether a cell holds no token.
func absent(cell string) bool {
	return strings.TrimSpace(cell) == ""
}

// firstPresent returns the first non-absent value and the number of
// non-absent values.
func firstPresent(values []string) (first string, present int) {
	for _, v := range values {
		if absent(v) {
			continue
		}
		if present == 0 {
			first = strings.TrimSpace(v)
		}
		present++
	}
	return first, present
}

// ResolveColumn derives the encoding of a whole column from its first
// present cell. Known columns are binary with their known width. A column
// with no present cells resolves to hex with the nominal 32-bit length.
func ResolveColumn(tbl *table.Table, column string, known bits.KnownColumns) (bits.ColumnInfo, error) {
	values, err := tbl.Column(column)
	if err != nil {
		return bits.ColumnInfo{}, err
	}
	info, _, _ := resolveValues(column, values, known)
	return info, nil
}

func resolveValues(column string, values []string, known bits.KnownColumns) (bits.ColumnInfo, string, int) {
	first, present := firstPresent(values)
	if present == 0 {
		if w, ok := known.Lookup(column); ok {
			return bits.ColumnInfo{Class: bits.Binary, BitLength: w, Known: true}, "", 0
		}
		return bits.ColumnInfo{Class: bits.Hex, BitLength: bits.HexBitLength}, "", 0
	}
	return known.ResolveToken(column, first), first, present
}

// knownFor combines header-recognized columns with caller-supplied widths.
func knownFor(tbl *table.Table, extra map[string]int) bits.KnownColumns {
	return bits.KnownFromHeader(tbl.Header).Merge(bits.NewKnownColumns(extra))
}

// Inspect reports the resolved encoding of every column in tbl.
func Inspect(tbl *table.Table, extra map[string]int) []ColumnReport {
	known := knownFor(tbl, extra)
	reports := make([]ColumnReport, len(tbl.Header))
	for i, name := range tbl.Header {
		values := make([]string, len(tbl.Rows))
		for r, row := range tbl.Rows {
			values[r] = row[i]
		}
		info, sample, present := resolveValues(name, values, known)
		reports[i] = ColumnReport{
			Name:       name,
			ColumnInfo: info,
			Sample:     sample,
			Present:    present,
		}
	}
	return reports
}
