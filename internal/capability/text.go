package capability

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Upper maps s to upper case using Unicode rules.
func Upper(s string) string { return cases.Upper(language.Und).String(s) }

// Lower maps s to lower case using Unicode rules.
func Lower(s string) string { return cases.Lower(language.Und).String(s) }

// Substring returns s[start:end] in bytes. Out-of-range offsets panic like
// a slice expression.
func Substring(s string, start, end int) string { return s[start:end] }

func Contains(s, substr string) bool   { return strings.Contains(s, substr) }
func StartsWith(s, prefix string) bool { return strings.HasPrefix(s, prefix) }

// Length returns the length of s in bytes.
func Length(s string) int { return len(s) }

// Random returns a uniform integer in [min, max). It panics when max <= min.
func Random(min, max int64) int64 {
	if max <= min {
		panic(fmt.Sprintf("neo.Random: max (%d) must be greater than min (%d)", max, min))
	}
	span := uint64(max) - uint64(min)
	return int64(uint64(min) + rand.Uint64N(span))
}

// Str renders v the way side effects print it: strings as-is, messages as
// their content, users as their name, anything else through fmt.
func Str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	default:
		return fmt.Sprint(v)
	}
}
