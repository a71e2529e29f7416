package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern special characters and their regular expression counterparts.
const (
	// MaskStartURL anchors the pattern to the scheme and any subdomain.
	MaskStartURL = "||"

	// MaskPipe anchors the pattern to the start or the end of the URL.
	MaskPipe = "|"

	// MaskSeparator matches a separator character or the end of the URL.
	MaskSeparator = "^"

	// MaskAnyCharacter matches any run of characters.
	MaskAnyCharacter = "*"

	// MaskRegex delimits a regular expression pattern.
	MaskRegex = "/"

	// RegexAnyCharacter is the regular expression for [MaskAnyCharacter].
	RegexAnyCharacter = ".*"

	// RegexSeparator is the regular expression for [MaskSeparator].
	RegexSeparator = "([^ a-zA-Z0-9.%_-]|$)"

	// RegexStartURL is the regular expression for [MaskStartURL].
	RegexStartURL = `^(http|https|ws|wss)://([a-z0-9-_.]+\.)?`

	// RegexStartString is the regular expression for a leading [MaskPipe].
	RegexStartString = "^"

	// RegexEndString is the regular expression for a trailing [MaskPipe].
	RegexEndString = "$"
)

// minShortcutLength is the minimum length of a useful shortcut.
const minShortcutLength = 2

// Pattern is a compiled rule pattern.  It's safe for concurrent use.
type Pattern struct {
	// re is the compiled pattern.  It's nil when the pattern matches
	// anything.
	re *regexp.Regexp

	// text is the pattern as written in the rule.
	text string

	// shortcut is a lower-cased string guaranteed to be a substring of every
	// lower-cased URL the pattern matches.  It may be empty.
	shortcut string

	// isRegex is true if text is a regular expression.
	isRegex bool
}

// compilePattern compiles text.  If validate is not nil, it's called before
// compilation.
func compilePattern(text string, matchCase bool, validate PatternValidator) (p *Pattern, err error) {
	p = &Pattern{
		text:    text,
		isRegex: isRegexPattern(text),
	}

	if validate != nil {
		err = validate(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPatternRejected, err)
		}
	}

	reText := patternToRegexp(text)
	if reText != RegexAnyCharacter {
		if !matchCase {
			reText = "(?i)" + reText
		}

		p.re, err = regexp.Compile(reText)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
		}
	}

	if p.isRegex {
		p.shortcut = findRegexShortcut(text[1 : len(text)-1])
	} else {
		p.shortcut = findShortcut(text)
	}

	return p, nil
}

// Text returns the pattern as written in the rule.
func (p *Pattern) Text() (text string) {
	return p.text
}

// Shortcut returns the lower-cased substring guaranteed to be present in every
// lower-cased URL the pattern matches.  It may be empty.
func (p *Pattern) Shortcut() (s string) {
	return p.shortcut
}

// IsRegex returns true if the pattern is a regular expression.
func (p *Pattern) IsRegex() (ok bool) {
	return p.isRegex
}

// IsAny returns true if the pattern matches any string.
func (p *Pattern) IsAny() (ok bool) {
	return p.re == nil
}

// MatchString returns true if s matches the pattern.
func (p *Pattern) MatchString(s string) (ok bool) {
	return p.re == nil || p.re.MatchString(s)
}

// isRegexPattern returns true if pattern is delimited with [MaskRegex].
func isRegexPattern(pattern string) (ok bool) {
	return len(pattern) > 2 &&
		strings.HasPrefix(pattern, MaskRegex) &&
		strings.HasSuffix(pattern, MaskRegex)
}

// patternToRegexp translates a rule pattern into a regular expression.
func patternToRegexp(pattern string) (re string) {
	switch pattern {
	case "", MaskStartURL, MaskPipe, MaskAnyCharacter:
		return RegexAnyCharacter
	}

	if isRegexPattern(pattern) {
		return pattern[1 : len(pattern)-1]
	}

	sb := &strings.Builder{}
	rest := pattern
	if strings.HasPrefix(rest, MaskStartURL) {
		sb.WriteString(RegexStartURL)
		rest = rest[len(MaskStartURL):]
	} else if strings.HasPrefix(rest, MaskPipe) {
		sb.WriteString(RegexStartString)
		rest = rest[len(MaskPipe):]
	}

	anchorEnd := false
	if strings.HasSuffix(rest, MaskPipe) {
		anchorEnd = true
		rest = rest[:len(rest)-len(MaskPipe)]
	}

	for _, c := range rest {
		switch c {
		case '*':
			sb.WriteString(RegexAnyCharacter)
		case '^':
			sb.WriteString(RegexSeparator)
		case '|', '.', '+', '?', '$', '{', '}', '(', ')', '[', ']', '\\':
			sb.WriteByte('\\')
			sb.WriteRune(c)
		default:
			sb.WriteRune(c)
		}
	}

	if anchorEnd {
		sb.WriteString(RegexEndString)
	}

	return sb.String()
}

// findShortcut returns the longest part of a non-regex pattern that contains
// no special characters, in lower case.
func findShortcut(pattern string) (shortcut string) {
	for pattern != "" {
		i := strings.IndexAny(pattern, "*^|")
		if i == -1 {
			if len(pattern) > len(shortcut) {
				shortcut = pattern
			}

			break
		}

		if i > len(shortcut) {
			shortcut = pattern[:i]
		}

		pattern = pattern[i+1:]
	}

	if len(shortcut) < minShortcutLength {
		return ""
	}

	return strings.ToLower(shortcut)
}
