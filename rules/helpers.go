package rules

import "strings"

// escapeCharacter escapes separators in rule options.
const escapeCharacter = '\\'

// splitEscaped splits s by sep unless sep is escaped with [escapeCharacter].
// Escaped separators are unescaped, other escape sequences are kept as is.
// Empty parts are dropped.
func splitEscaped(s string, sep byte) (parts []string) {
	sb := &strings.Builder{}
	flush := func() {
		if sb.Len() > 0 {
			parts = append(parts, sb.String())
			sb.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == escapeCharacter && i+1 < len(s) && s[i+1] == sep:
			sb.WriteByte(sep)
			i++
		case c == sep:
			flush()
		default:
			sb.WriteByte(c)
		}
	}

	flush()

	return parts
}

// findLastUnescaped returns the index of the last unescaped sep in s or -1.
func findLastUnescaped(s string, sep byte) (i int) {
	for i = len(s) - 1; i >= 0; i-- {
		if s[i] == sep && (i == 0 || s[i-1] != escapeCharacter) {
			return i
		}
	}

	return -1
}

// unquote removes matching single or double quotes around s and unescapes the
// quote character inside.
func unquote(s string) (res string) {
	if len(s) < 2 {
		return s
	}

	q := s[0]
	if (q != '\'' && q != '"') || s[len(s)-1] != q {
		return s
	}

	return strings.ReplaceAll(s[1:len(s)-1], string([]byte{escapeCharacter, q}), string(q))
}
