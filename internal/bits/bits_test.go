package bits

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  Classification
	}{
		{name: "prefixed hex", token: "0x1F", want: Hex},
		{name: "upper-case prefix", token: "0XAB", want: Hex},
		{name: "eight binary digits read as hex", token: "11111111", want: Hex},
		{name: "nine binary digits", token: "111111111", want: Binary},
		{name: "hex letters", token: "12AB", want: Hex},
		{name: "non-hex letter", token: "12G3", want: Invalid},
		{name: "surrounding whitespace", token: "  0101010101  ", want: Binary},
		{name: "prefixed binary digits", token: "0x0000111100001111", want: Binary},
		{name: "empty", token: "", want: Hex},
		{name: "punctuation", token: "not-hex", want: Invalid},
		{name: "inner space", token: "ff ff", want: Invalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.token); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}

func TestResolveBitLength(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		override int
		want     int
	}{
		{name: "hex is always 32", token: "ff", want: 32},
		{name: "long hex is still 32", token: "123456789abc", want: 32},
		{name: "binary uses digit count", token: "1010101010", want: 10},
		{name: "binary ignores prefix and spaces", token: " 0x1010101010 ", want: 10},
		{name: "invalid is 32", token: "xyz", want: 32},
		{name: "override wins", token: "ff", override: 12, want: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveBitLength(tt.token, Classify(tt.token), tt.override)
			if got != tt.want {
				t.Errorf("ResolveBitLength(%q) = %d, want %d", tt.token, got, tt.want)
			}
		})
	}
}

func TestDecodeHex(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "byte", token: "FF", want: strings.Repeat("0", 24) + "11111111"},
		{name: "prefixed", token: "0x80000000", want: "1" + strings.Repeat("0", 31)},
		{name: "ambiguous binary digits", token: "11111111", want: "00010001000100010001000100010001"},
		{name: "zero", token: "0", want: strings.Repeat("0", 32)},
		{name: "empty", token: "", want: strings.Repeat("0", 32)},
		{name: "fallback", token: "not-hex", want: strings.Repeat("0", 32)},
		{name: "whitespace", token: "  0x0f\t", want: strings.Repeat("0", 28) + "1111"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeHex(tt.token); got != tt.want {
				t.Errorf("DecodeHex(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

// Hex values wider than 32 bits are kept whole rather than truncated.
func TestDecodeHex_WiderThan32Bits(t *testing.T) {
	got := DecodeHex("1ffffffff")
	want := strings.Repeat("1", 33)
	if got != want {
		t.Fatalf("DecodeHex = %q (len %d), want %q", got, len(got), want)
	}

	got = DecodeHex("0x00000001ffffffff")
	if len(got) != 33 {
		t.Errorf("leading zero digits: len = %d, want 33", len(got))
	}

	got = DecodeHex("ffffffffffffffffffff")
	if len(got) != 80 {
		t.Errorf("80-bit value: len = %d, want 80", len(got))
	}
}

func TestDecodeBinary(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		length int
		want   string
	}{
		{name: "pads left", token: "101", length: 8, want: "00000101"},
		{name: "exact", token: "1010", length: 4, want: "1010"},
		{name: "longer is untouched", token: "110011", length: 4, want: "110011"},
		{name: "trims whitespace", token: " 11 ", length: 3, want: "011"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeBinary(tt.token, tt.length); got != tt.want {
				t.Errorf("DecodeBinary(%q, %d) = %q, want %q", tt.token, tt.length, got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	hexCol := ColumnInfo{Class: Hex, BitLength: 32}
	binCol := ColumnInfo{Class: Binary, BitLength: 12}
	knownCol := ColumnInfo{Class: Binary, BitLength: 8, Known: true}

	tests := []struct {
		name         string
		token        string
		column       ColumnInfo
		wantWord     string
		wantClass    Classification
		wantFallback bool
		wantOverflow bool
	}{
		{
			name:      "hex in hex column",
			token:     "ff",
			column:    hexCol,
			wantWord:  strings.Repeat("0", 24) + "11111111",
			wantClass: Hex,
		},
		{
			name:         "invalid token falls back",
			token:        "zz",
			column:       hexCol,
			wantWord:     strings.Repeat("0", 32),
			wantClass:    Invalid,
			wantFallback: true,
		},
		{
			name:      "binary padded to column length",
			token:     "1111111111",
			column:    binCol,
			wantWord:  "001111111111",
			wantClass: Binary,
		},
		{
			name:      "short binary in known column is not read as hex",
			token:     "101",
			column:    knownCol,
			wantWord:  "00000101",
			wantClass: Binary,
		},
		{
			name:         "known column with foreign content",
			token:        "ab",
			column:       knownCol,
			wantWord:     "00000000",
			wantClass:    Invalid,
			wantFallback: true,
		},
		{
			name:         "wide hex overflows",
			token:        "1ffffffff",
			column:       hexCol,
			wantWord:     strings.Repeat("1", 33),
			wantClass:    Hex,
			wantOverflow: true,
		},
		{
			name:      "prefix stripped from binary",
			token:     "0x101010101",
			column:    ColumnInfo{Class: Binary, BitLength: 9},
			wantWord:  "101010101",
			wantClass: Binary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.token, tt.column)
			if got.Word != tt.wantWord {
				t.Errorf("Word = %q, want %q", got.Word, tt.wantWord)
			}
			if got.Class != tt.wantClass {
				t.Errorf("Class = %v, want %v", got.Class, tt.wantClass)
			}
			if got.Fallback != tt.wantFallback {
				t.Errorf("Fallback = %v, want %v", got.Fallback, tt.wantFallback)
			}
			if got.Overflow != tt.wantOverflow {
				t.Errorf("Overflow = %v, want %v", got.Overflow, tt.wantOverflow)
			}
		})
	}
}

func TestParseWidths(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    []int
		wantErr bool
	}{
		{name: "four bytes", spec: "8,8,8,8", want: []int{8, 8, 8, 8}},
		{name: "whitespace and empties", spec: " 12, 12 ,,8, ", want: []int{12, 12, 8}},
		{name: "empty list", spec: "", want: []int{}},
		{name: "letters", spec: "a,b", wantErr: true},
		{name: "decimal", spec: "8,4.5", wantErr: true},
		{name: "zero width", spec: "8,0", wantErr: true},
		{name: "negative width", spec: "-4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWidths(tt.spec)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAssignment) {
					t.Fatalf("ParseWidths(%q) error = %v, want ErrInvalidAssignment", tt.spec, err)
				}
				if got != nil {
					t.Errorf("ParseWidths(%q) returned partial result %v", tt.spec, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWidths(%q) error = %v", tt.spec, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseWidths(%q) mismatch (-want +got):\n%s", tt.spec, diff)
			}
		})
	}
}

func TestUniformWidths(t *testing.T) {
	tests := []struct {
		name  string
		total int
		chunk int
		want  []int
	}{
		{name: "remainder", total: 10, chunk: 4, want: []int{4, 4, 2}},
		{name: "even", total: 32, chunk: 8, want: []int{8, 8, 8, 8}},
		{name: "chunk larger than total", total: 3, chunk: 8, want: []int{3}},
		{name: "single bits", total: 3, chunk: 1, want: []int{1, 1, 1}},
		{name: "zero total", total: 0, chunk: 4, want: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UniformWidths(tt.total, tt.chunk)
			if err != nil {
				t.Fatalf("UniformWidths error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("UniformWidths(%d, %d) mismatch (-want +got):\n%s", tt.total, tt.chunk, diff)
			}
		})
	}

	if _, err := UniformWidths(10, 0); !errors.Is(err, ErrInvalidChunkSize) {
		t.Errorf("chunk 0: error = %v, want ErrInvalidChunkSize", err)
	}
}

func TestVerifyTotal(t *testing.T) {
	if err := VerifyTotal([]int{12, 12, 8}, 32); err != nil {
		t.Errorf("VerifyTotal matching = %v, want nil", err)
	}

	err := VerifyTotal([]int{8, 8}, 32)
	if !errors.Is(err, ErrWidthMismatch) {
		t.Fatalf("VerifyTotal = %v, want ErrWidthMismatch", err)
	}
	if !strings.Contains(err.Error(), "total bits (16) does not match column bit length (32)") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestSlice(t *testing.T) {
	tests := []struct {
		name   string
		word   string
		widths []int
		want   []string
	}{
		{name: "exact", word: "1010", widths: []int{2, 2}, want: []string{"10", "10"}},
		{name: "straddling tail padded right", word: "101", widths: []int{2, 2}, want: []string{"10", "10"}},
		{name: "field beyond data", word: "1010", widths: []int{1, 1, 1, 1, 1}, want: []string{"1", "0", "1", "0", "0"}},
		{name: "excess bits ignored", word: "111000", widths: []int{2}, want: []string{"11"}},
		{name: "empty word", word: "", widths: []int{3, 1}, want: []string{"000", "0"}},
		{name: "no widths", word: "1010", widths: nil, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slice(tt.word, tt.widths)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Slice(%q, %v) mismatch (-want +got):\n%s", tt.word, tt.widths, diff)
			}
		})
	}
}

// Slicing a binary token with widths that sum to its length and
// concatenating the fields gives back the token.
func TestSlice_RoundTrip(t *testing.T) {
	tokens := []string{
		"101100111",
		"0000000000000001",
		"111111111111111111111111111111111111",
		"1010101010101010101010101010101010101010101010101010101010101010",
	}
	layouts := func(n int) [][]int {
		var out [][]int
		for chunk := 1; chunk <= n; chunk++ {
			w, _ := UniformWidths(n, chunk)
			out = append(out, w)
		}
		return append(out, []int{n})
	}

	for _, token := range tokens {
		if Classify(token) != Binary {
			t.Fatalf("test token %q does not classify as binary", token)
		}
		n := ResolveBitLength(token, Binary, 0)
		for _, widths := range layouts(n) {
			got := strings.Join(Slice(DecodeBinary(token, n), widths), "")
			if got != token {
				t.Errorf("round trip %q with %v = %q", token, widths, got)
			}
		}
	}
}

func TestChunks(t *testing.T) {
	got := Chunks("1010101", 3)
	if diff := cmp.Diff([]string{"101", "010", "1"}, got); diff != "" {
		t.Errorf("Chunks mismatch (-want +got):\n%s", diff)
	}
	if got := Chunks("1010", 0); got != nil {
		t.Errorf("Chunks size 0 = %v, want nil", got)
	}
	if got := Chunks("", 4); len(got) != 0 {
		t.Errorf("Chunks empty = %v, want empty", got)
	}
}

func TestDefaultNames(t *testing.T) {
	got := DefaultNames("reg", []int{8, 8})
	if diff := cmp.Diff([]string{"reg_b0_8bit", "reg_b1_8bit"}, got); diff != "" {
		t.Errorf("DefaultNames mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFieldName(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   FieldName
		wantOK bool
	}{
		{name: "simple", input: "reg_b0_8bit", want: FieldName{Base: "reg", Index: 0, Width: 8}, wantOK: true},
		{name: "base with underscores", input: "status_word_b12_4bit", want: FieldName{Base: "status_word", Index: 12, Width: 4}, wantOK: true},
		{name: "nested slice", input: "reg_b0_16bit_b1_8bit", want: FieldName{Base: "reg_b0_16bit", Index: 1, Width: 8}, wantOK: true},
		{name: "plain name", input: "register", wantOK: false},
		{name: "only contains markers", input: "my_bit_b_column", wantOK: false},
		{name: "zero width", input: "reg_b0_0bit", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseFieldName(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseFieldName(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseFieldName(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFieldName_RoundTrip(t *testing.T) {
	for _, n := range []FieldName{
		{Base: "a", Index: 0, Width: 1},
		{Base: "Column_3", Index: 7, Width: 12},
		{Base: "", Index: 2, Width: 32},
	} {
		got, ok := ParseFieldName(n.String())
		if !ok || got != n {
			t.Errorf("ParseFieldName(%q) = %+v, %v", n.String(), got, ok)
		}
	}
}

func TestFields(t *testing.T) {
	got := Fields("11110000", []int{4, 4}, []string{"hi", "lo"})
	want := []Field{
		{Name: "hi", Width: 4, Value: "1111"},
		{Name: "lo", Width: 4, Value: "0000"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Fields mismatch (-want +got):\n%s", diff)
	}
}

func TestClassification_TextRoundTrip(t *testing.T) {
	for _, c := range []Classification{Invalid, Hex, Binary} {
		text, err := c.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var got Classification
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q) error = %v", text, err)
		}
		if got != c {
			t.Errorf("round trip %v = %v", c, got)
		}
	}

	var c Classification
	if err := c.UnmarshalText([]byte("octal")); err == nil {
		t.Error("UnmarshalText accepted an unknown name")
	}
}
