package extras

import "strings"

// Unescape decodes the escape sequences the crash writer emits in extras
// values. Sequences are matched left to right without overlap:
//
//	\\\\  ->  \
//	\\n   ->  newline
//	\\t   ->  tab
//
// Any other backslash is copied as is. Unescape must be applied exactly once
// per raw value: a backslash it produces can start a new sequence on a
// second pass.
func Unescape(s string) string {
	if !strings.Contains(s, `\\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], `\\\\`):
			b.WriteByte('\\')
			i += 4
		case strings.HasPrefix(s[i:], `\\n`):
			b.WriteByte('\n')
			i += 3
		case strings.HasPrefix(s[i:], `\\t`):
			b.WriteByte('\t')
			i += 3
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}
