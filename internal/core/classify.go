package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/BitSlicer/internal/bits"
)

// TokenReport describes how a single token would be decoded.
type TokenReport struct {
	Token     string              `json:"token"`
	Class     bits.Classification `json:"classification"`
	BitLength int                 `json:"bit_length"`
	Word      string              `json:"word"`
	Fallback  bool                `json:"fallback,omitempty"`
	Overflow  bool                `json:"overflow,omitempty"`
}

// ClassifyTokens classifies and decodes each token on its own. A positive
// knownWidth treats every token as a binary word of that width, the way a
// previously sliced column is read back.
func ClassifyTokens(tokens []string, knownWidth int) []TokenReport {
	reports := make([]TokenReport, len(tokens))
	for i, tok := range tokens {
		info := bits.ColumnInfo{Known: knownWidth > 0}
		if info.Known {
			info.Class, info.BitLength = bits.Binary, knownWidth
		} else {
			info.Class = bits.Classify(tok)
			info.BitLength = bits.ResolveBitLength(tok, info.Class, 0)
		}

		d := bits.Decode(tok, info)
		reports[i] = TokenReport{
			Token:     tok,
			Class:     d.Class,
			BitLength: info.BitLength,
			Word:      d.Word,
			Fallback:  d.Fallback,
			Overflow:  d.Overflow,
		}
	}
	return reports
}

// ParseKnown parses "column=bits" pairs. Entries may also be given as a
// single comma-separated string.
func ParseKnown(specs []string) (map[string]int, error) {
	known := make(map[string]int)
	for _, spec := range specs {
		for _, pair := range strings.Split(spec, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			col, width, ok := strings.Cut(pair, "=")
			col = strings.TrimSpace(col)
			if !ok || col == "" {
				return nil, fmt.Errorf("%w: known column %q, want column=bits", bits.ErrInvalidAssignment, pair)
			}
			n, err := strconv.Atoi(strings.TrimSpace(width))
			if err != nil || n < 1 {
				return nil, fmt.Errorf("%w: known column %q needs a positive bit count", bits.ErrInvalidAssignment, col)
			}
			known[col] = n
		}
	}
	return known, nil
}

// SplitNames splits a comma-separated list of field names. Blank entries
// are dropped.
func SplitNames(s string) []string {
	var names []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}
