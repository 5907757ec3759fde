package bits

import "maps"

// ColumnInfo is the resolved encoding of a whole column.
type ColumnInfo struct {
	Class     Classification `json:"classification"`
	BitLength int            `json:"bit_length"`

	// Known marks columns whose binary width came from caller metadata
	// rather than from the heuristic.
	Known bool `json:"known"`
}

// KnownColumns maps a column identifier to the bit length of binary words
// it is already known to hold, typically because an earlier slicing pass
// produced it. A KnownColumns value is never modified after construction;
// With returns a copy.
type KnownColumns struct {
	widths map[string]int
}

// NewKnownColumns copies widths into a new KnownColumns. Entries with a
// width below one are dropped.
func NewKnownColumns(widths map[string]int) KnownColumns {
	k := KnownColumns{widths: make(map[string]int, len(widths))}
	for col, w := range widths {
		if w > 0 {
			k.widths[col] = w
		}
	}
	return k
}

// KnownFromHeader recognizes columns named by DefaultNames.
func KnownFromHeader(header []string) KnownColumns {
	k := KnownColumns{widths: make(map[string]int)}
	for _, col := range header {
		if n, ok := ParseFieldName(col); ok {
			k.widths[col] = n.Width
		}
	}
	return k
}

// Lookup returns the known width of column.
func (k KnownColumns) Lookup(column string) (int, bool) {
	w, ok := k.widths[column]
	return w, ok
}

// With returns a copy of k with column set to width.
func (k KnownColumns) With(column string, width int) KnownColumns {
	out := KnownColumns{widths: maps.Clone(k.widths)}
	if out.widths == nil {
		out.widths = make(map[string]int, 1)
	}
	if width > 0 {
		out.widths[column] = width
	}
	return out
}

// Merge returns a copy of k overlaid with other. Entries in other win.
func (k KnownColumns) Merge(other KnownColumns) KnownColumns {
	out := KnownColumns{widths: maps.Clone(k.widths)}
	if out.widths == nil {
		out.widths = make(map[string]int, len(other.widths))
	}
	maps.Copy(out.widths, other.widths)
	return out
}

// Len returns the number of known columns.
func (k KnownColumns) Len() int {
	return len(k.widths)
}

// ResolveToken derives a column's encoding from its first present token.
// A known column is binary with its known width; otherwise the token is
// classified and measured.
func (k KnownColumns) ResolveToken(column, token string) ColumnInfo {
	if w, ok := k.widths[column]; ok {
		return ColumnInfo{Class: Binary, BitLength: w, Known: true}
	}
	class := Classify(token)
	return ColumnInfo{Class: class, BitLength: ResolveBitLength(token, class, 0)}
}
