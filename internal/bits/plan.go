package bits

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidAssignment is returned when an explicit width spec cannot be parsed.
	ErrInvalidAssignment = errors.New("invalid bit assignments, please use comma-separated integers")

	// ErrInvalidChunkSize is returned for uniform chunk sizes below one bit.
	ErrInvalidChunkSize = errors.New("invalid chunk size, must be at least 1 bit")

	// ErrWidthMismatch is returned by VerifyTotal when the widths do not add
	// up to the column's bit length.
	ErrWidthMismatch = errors.New("bit count mismatch")
)

// ParseWidths parses a comma-separated width spec such as "12,12,8".
// Pieces are trimmed and empty pieces are skipped. Any piece that is not a
// positive integer fails the whole list with ErrInvalidAssignment.
func ParseWidths(spec string) ([]int, error) {
	parts := strings.Split(spec, ",")
	widths := make([]int, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		w, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidAssignment, p)
		}
		if w < 1 {
			return nil, fmt.Errorf("%w: width %d must be positive", ErrInvalidAssignment, w)
		}
		widths = append(widths, w)
	}

	return widths, nil
}

// UniformWidths covers total bits with chunks of chunk bits each. The last
// chunk is narrower when chunk does not divide total; widths are never
// padded here.
//
//	UniformWidths(10, 4) // [4 4 2]
func UniformWidths(total, chunk int) ([]int, error) {
	if chunk < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, chunk)
	}
	if total <= 0 {
		return []int{}, nil
	}

	widths := make([]int, 0, (total+chunk-1)/chunk)
	for start := 0; start < total; start += chunk {
		widths = append(widths, min(chunk, total-start))
	}
	return widths, nil
}

// Sum returns the total number of bits covered by widths.
func Sum(widths []int) int {
	total := 0
	for _, w := range widths {
		total += w
	}
	return total
}

// VerifyTotal checks that widths cover exactly bitLength bits.
//
// Slice does not enforce this; it zero-fills or ignores bits instead.
// Callers that want the strict behaviour check here first.
func VerifyTotal(widths []int, bitLength int) error {
	if total := Sum(widths); total != bitLength {
		return fmt.Errorf("%w: total bits (%d) does not match column bit length (%d)",
			ErrWidthMismatch, total, bitLength)
	}
	return nil
}
