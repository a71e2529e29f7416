package rules

import "strings"

// findRegexShortcut returns the longest literal run that every string matched
// by the regular expression re must contain, in lower case.  It returns an
// empty string if re is too complex to analyze.
func findRegexShortcut(re string) (shortcut string) {
	// Lazy quantifiers, optional atoms, inline flags, and lookarounds all use
	// the question mark.
	if strings.Contains(re, "?") {
		return ""
	}

	// Quoted sequences may contain unbalanced brackets and parentheses.
	if strings.Contains(re, `\Q`) {
		return ""
	}

	shortcut, ok := longestRegexRun(re)
	if !ok || len(shortcut) < minShortcutLength {
		return ""
	}

	return strings.ToLower(shortcut)
}

// longestRegexRun returns the longest literal run of re that must be present
// in every match.  ok is false if re contains a top-level alternation or is
// malformed.
func longestRegexRun(re string) (longest string, ok bool) {
	var run []byte
	flush := func() {
		if len(run) > len(longest) {
			longest = string(run)
		}

		run = run[:0]
	}

	for i := 0; i < len(re); i++ {
		c := re[i]
		switch {
		case c == ':' && hasSchemeSeparator(re[i:]):
			// Drop the scheme so that it never becomes the shortcut.
			run, longest = run[:0], ""
			if strings.HasPrefix(re[i:], "://") {
				i += len("://") - 1
			} else {
				i += len(`:\/\/`) - 1
			}
		case isRegexLiteral(c):
			run = append(run, c)
		case c == '\\':
			if i+1 == len(re) {
				return "", false
			}

			i++
			switch e := re[i]; {
			case e == '.', e == '/':
				run = append(run, e)
			case isSingleCharEscape(e):
				flush()
			default:
				// Hexadecimal, octal, and Unicode class escapes span several
				// characters.
				return "", false
			}
		case c == '*', c == '{':
			// The previous atom may be absent.
			if len(run) > 0 {
				run = run[:len(run)-1]
			}

			flush()
			if c == '{' {
				end := strings.IndexByte(re[i:], '}')
				if end < 0 {
					return "", false
				}

				i += end
			}
		case c == '[':
			flush()
			end := regexClassEnd(re, i)
			if end < 0 {
				return "", false
			}

			i = end
		case c == '(':
			flush()
			end := regexGroupEnd(re, i)
			if end < 0 {
				return "", false
			}

			inner := re[i+1 : end]
			i = end
			if i+1 < len(re) && (re[i+1] == '*' || re[i+1] == '{') {
				continue
			}

			sub, subOK := longestRegexRun(inner)
			if subOK && len(sub) > len(longest) {
				longest = sub
			}
		case c == '|':
			return "", false
		default:
			// Unescaped dots, anchors, the plus quantifier, and non-ASCII bytes
			// end the run.
			flush()
		}
	}

	flush()

	return longest, true
}

// hasSchemeSeparator returns true if s starts with "://", escaped or not.
func hasSchemeSeparator(s string) (ok bool) {
	return strings.HasPrefix(s, "://") || strings.HasPrefix(s, `:\/\/`)
}

// isRegexLiteral returns true if c always matches itself outside of character
// classes.
func isRegexLiteral(c byte) (ok bool) {
	if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
		return true
	}

	return strings.IndexByte(`-_=&%,;:@~!'"#<>/`, c) >= 0
}

// isSingleCharEscape returns true if the escape sequence starting with c after
// a backslash ends at c.
func isSingleCharEscape(c byte) (ok bool) {
	if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
		return strings.IndexByte("dDwWsSbBAzftnrv", c) >= 0
	}

	return true
}

// regexClassEnd returns the index of the bracket closing the character class
// starting at re[start] or -1 if there is none.
func regexClassEnd(re string, start int) (end int) {
	i := start + 1
	if i < len(re) && re[i] == '^' {
		i++
	}

	// A closing bracket right after the opening one is a literal.
	if i < len(re) && re[i] == ']' {
		i++
	}

	for ; i < len(re); i++ {
		switch re[i] {
		case '\\':
			i++
		case ']':
			return i
		}
	}

	return -1
}

// regexGroupEnd returns the index of the parenthesis closing the group
// starting at re[start] or -1 if there is none.
func regexGroupEnd(re string, start int) (end int) {
	depth := 0
	for i := start; i < len(re); i++ {
		switch re[i] {
		case '\\':
			i++
		case '[':
			i = regexClassEnd(re, i)
			if i < 0 {
				return -1
			}
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}
