package bits

import "strings"

// Slice cuts word into one value per width, most significant bits first.
//
// Missing bits are always synthesized as '0' and appended after the real
// data:
//   - a field that starts past the end of word is all zeros
//   - a field that straddles the end takes the tail and is right-padded
//   - otherwise the field is exactly word[start:start+w]
//
// Bits beyond the sum of widths are ignored. Slice never fails.
func Slice(word string, widths []int) []string {
	values := make([]string, len(widths))
	start := 0

	for i, w := range widths {
		switch {
		case start >= len(word):
			values[i] = strings.Repeat("0", w)
		case start+w > len(word):
			tail := word[start:]
			values[i] = tail + strings.Repeat("0", w-len(tail))
		default:
			values[i] = word[start : start+w]
		}
		start += w
	}

	return values
}

// Chunks splits word into consecutive pieces of size characters without any
// padding; the final piece is shorter when size does not divide len(word).
//
// This is a separate primitive from Slice. It never synthesizes bits, so
// its output can have fewer characters per field than requested.
func Chunks(word string, size int) []string {
	if size < 1 {
		return nil
	}

	chunks := make([]string, 0, (len(word)+size-1)/size)
	for i := 0; i < len(word); i += size {
		end := min(i+size, len(word))
		chunks = append(chunks, word[i:end])
	}
	return chunks
}
