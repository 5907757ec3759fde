package bits

import "strings"

// minHexDigits is the width hex tokens are left-padded to before parsing.
const minHexDigits = 8

// nibbles maps a lower-case hex digit to its four binary digits.
var nibbles = map[byte]string{
	'0': "0000", '1': "0001", '2': "0010", '3': "0011",
	'4': "0100", '5': "0101", '6': "0110", '7': "0111",
	'8': "1000", '9': "1001", 'a': "1010", 'b': "1011",
	'c': "1100", 'd': "1101", 'e': "1110", 'f': "1111",
}

// Decoded is the canonical form of one token plus diagnostics.
type Decoded struct {
	Word  string         // '0'/'1' characters
	Class Classification // classification the word was decoded as

	// Fallback is set when a hex token could not be parsed and Word is the
	// all-zero 32-bit substitute.
	Fallback bool

	// Overflow is set when Word is longer than the column's bit length.
	// Slice ignores the excess bits.
	Overflow bool
}

// DecodeHex converts a hex token to a bit word of at least 32 characters.
//
// Unparsable tokens yield 32 zeros. Values wider than 32 bits are not
// truncated: "1ffffffff" decodes to 33 characters.
func DecodeHex(token string) string {
	word, _ := decodeHex(token)
	return word
}

func decodeHex(token string) (string, bool) {
	s := digits(token)
	if len(s) < minHexDigits {
		s = strings.Repeat("0", minHexDigits-len(s)) + s
	}

	var b strings.Builder
	b.Grow(len(s) * 4)
	for i := 0; i < len(s); i++ {
		nib, ok := nibbles[s[i]]
		if !ok {
			return strings.Repeat("0", HexBitLength), false
		}
		b.WriteString(nib)
	}

	word := strings.TrimLeft(b.String(), "0")
	return padLeft(word, HexBitLength), true
}

// DecodeBinary left-pads a binary token with zeros to length characters.
// Tokens already longer than length are returned unmodified.
func DecodeBinary(token string, length int) string {
	return padLeft(strings.TrimSpace(token), length)
}

// Decode canonicalizes one token of a column whose bit length has already
// been resolved. Tokens of a known column, and tokens that classify as
// binary on their own, are left-padded to the column's length with
// DecodeBinary; everything else goes through DecodeHex.
//
// Decode never fails. Word is identical to what DecodeHex or DecodeBinary
// return; Fallback and Overflow only report what happened.
func Decode(token string, column ColumnInfo) Decoded {
	length := column.BitLength
	if length <= 0 {
		length = HexBitLength
	}

	var d Decoded
	if column.Known || Classify(token) == Binary {
		d.Class = Binary
		s := digits(token)
		if !isBinary(s) {
			// Only reachable for known columns holding foreign content.
			d.Word = strings.Repeat("0", length)
			d.Class = Invalid
			d.Fallback = true
			return d
		}
		d.Word = DecodeBinary(s, length)
	} else {
		word, ok := decodeHex(token)
		d.Word = word
		d.Class = Hex
		if !ok {
			d.Class = Invalid
			d.Fallback = true
		}
	}

	d.Overflow = len(d.Word) > length
	return d
}

func padLeft(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return strings.Repeat("0", length-len(s)) + s
}

func isBinary(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '0' && s[i] != '1' {
			return false
		}
	}
	return true
}
