// Package bits decodes packed binary words held in table cells and slices
// them into named sub-fields.
//
// A cell value (token) is either hexadecimal or a literal string of binary
// digits. Classify decides which, Decode turns the token into a canonical
// bit word of '0'/'1' characters, and Slice cuts that word into fields
// according to a width list built by ParseWidths or UniformWidths.
//
// Every function in this package is pure: no I/O, no shared state. It is safe
// to call from any number of goroutines.
package bits

import (
	"fmt"
	"strings"
)

// HexBitLength is the nominal width of any hex-classified token.
const HexBitLength = 32

// maxAmbiguousDigits is the longest all-0/1 token still read as hex.
// "11111111" means 0x11111111, not the byte 0xFF.
const maxAmbiguousDigits = 8

// Classification is the inferred encoding of a token.
type Classification int

const (
	Invalid Classification = iota
	Hex
	Binary
)

// String returns the lower-case name of the classification.
func (c Classification) String() string {
	switch c {
	case Hex:
		return "hex"
	case Binary:
		return "binary"
	default:
		return "invalid"
	}
}

// MarshalText lets classifications render as names in JSON output.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses the names written by MarshalText.
func (c *Classification) UnmarshalText(b []byte) error {
	switch string(b) {
	case "hex":
		*c = Hex
	case "binary":
		*c = Binary
	case "invalid":
		*c = Invalid
	default:
		return fmt.Errorf("unknown classification %q", b)
	}
	return nil
}

// digits trims whitespace, lower-cases and strips an optional 0x prefix.
func digits(token string) string {
	s := strings.ToLower(strings.TrimSpace(token))
	return strings.TrimPrefix(s, "0x")
}

// Classify decides whether a token is hexadecimal or binary.
//
// Tokens with a digit that cannot occur in binary (2-9, a-f) are hex. Tokens
// made only of 0 and 1 are hex up to 8 digits and binary beyond that. Any
// character outside 0-9a-f makes the token Invalid. Classify never fails.
func Classify(token string) Classification {
	s := digits(token)

	onlyBinary := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '0' || c == '1':
		case (c >= '2' && c <= '9') || (c >= 'a' && c <= 'f'):
			onlyBinary = false
		default:
			return Invalid
		}
	}

	if !onlyBinary || len(s) <= maxAmbiguousDigits {
		return Hex
	}
	return Binary
}

// ResolveBitLength returns the bit length of a classified token.
//
// A positive override wins; callers pass one when a column is already known
// to hold binary words of a given width. Otherwise binary tokens are as long
// as their digit count and everything else is HexBitLength.
func ResolveBitLength(token string, class Classification, override int) int {
	if override > 0 {
		return override
	}
	if class == Binary {
		return len(digits(token))
	}
	return HexBitLength
}
