package dedupe

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/KaramelBytes/dqcheck-cli/internal/dataset"
)

// NormalizeValue canonicalizes one cell for comparison: missing values map to
// "", everything else is stringified, NFC-normalized, trimmed, lowercased and
// has whitespace runs collapsed to a single space.
func NormalizeValue(v any) string {
	if dataset.IsNull(v) {
		return ""
	}
	s := norm.NFC.String(dataset.FormatValue(v))
	// Fields splits on any Unicode space, so tabs and newlines collapse too and
	// "a\tb" blocks under "a ". Tokens are unchanged either way.
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// KeySeparator joins normalized fields into a comparison key.
const KeySeparator = " | "

// BuildKey concatenates the non-empty normalized values of the selected
// columns of row.
func BuildKey(row []any, cols []int) string {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		var v any
		if c < len(row) {
			v = row[c]
		}
		if p := NormalizeValue(v); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, KeySeparator)
}

// BlockKey returns the first size runes of key, or the whole key when shorter.
func BlockKey(key string, size int) string {
	if key == "" || size <= 0 {
		return ""
	}
	n := 0
	for i := range key {
		if n == size {
			return key[:i]
		}
		n++
	}
	return key
}
