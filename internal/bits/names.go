package bits

import (
	"fmt"
	"regexp"
	"strconv"
)

// fieldNamePattern matches "<base>_b<index>_<width>bit". The base is greedy
// so names produced from an already sliced column ("reg_b0_8bit_b1_4bit")
// parse against their last suffix.
var fieldNamePattern = regexp.MustCompile(`^(.*)_b(\d+)_(\d+)bit$`)

// FieldName is the default name of one sliced field. Its string form also
// tells a later reader that the column holds binary words of Width bits.
type FieldName struct {
	Base  string
	Index int
	Width int
}

// String formats the name as "<base>_b<index>_<width>bit".
func (n FieldName) String() string {
	return fmt.Sprintf("%s_b%d_%dbit", n.Base, n.Index, n.Width)
}

// ParseFieldName reverses FieldName.String. It reports false for names that
// do not follow the convention or carry a zero width.
func ParseFieldName(name string) (FieldName, bool) {
	m := fieldNamePattern.FindStringSubmatch(name)
	if m == nil {
		return FieldName{}, false
	}

	index, err := strconv.Atoi(m[2])
	if err != nil {
		return FieldName{}, false
	}
	width, err := strconv.Atoi(m[3])
	if err != nil || width < 1 {
		return FieldName{}, false
	}

	return FieldName{Base: m[1], Index: index, Width: width}, true
}

// DefaultNames returns one name per width, e.g. base "reg" with widths
// [8 8] gives ["reg_b0_8bit" "reg_b1_8bit"].
func DefaultNames(base string, widths []int) []string {
	names := make([]string, len(widths))
	for i, w := range widths {
		names[i] = FieldName{Base: base, Index: i, Width: w}.String()
	}
	return names
}

// Field is one named slice of a bit word.
type Field struct {
	Name  string `json:"name"`
	Width int    `json:"width"`
	Value string `json:"value"`
}

// Fields slices word and pairs each value with its name and width.
// names must have the same length as widths.
func Fields(word string, widths []int, names []string) []Field {
	values := Slice(word, widths)
	fields := make([]Field, len(widths))
	for i := range widths {
		fields[i] = Field{Name: names[i], Width: widths[i], Value: values[i]}
	}
	return fields
}
