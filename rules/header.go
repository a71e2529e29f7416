package rules

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// HeaderMatcher is the parsed value of $header.  It matches response headers
// by name and, optionally, by a literal or regexp value.
type HeaderMatcher struct {
	re    *regexp.Regexp
	text  string
	name  string
	value string
}

// parseHeaderMatcher parses the value of $header: "name", "name:value", or
// "name:/regexp/".
func parseHeaderMatcher(value string) (m *HeaderMatcher, err error) {
	if value == "" {
		return nil, modifierError("header", ErrEmptyValue)
	}

	name, val, _ := strings.Cut(value, ":")
	if name == "" || strings.ContainsAny(name, " \t") {
		return nil, valueError("header", value, ErrInvalidValue)
	}

	m = &HeaderMatcher{
		text: value,
		name: http.CanonicalHeaderKey(name),
	}

	re, isRe, err := regexFromSlashes(val)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", valueError("header", value, ErrInvalidValue), err)
	} else if isRe {
		m.re = re
	} else {
		m.value = val
	}

	return m, nil
}

// Name returns the canonical name of the header.
func (m *HeaderMatcher) Name() (name string) { return m.name }

// Match returns true if h contains a matching header.
func (m *HeaderMatcher) Match(h http.Header) (ok bool) {
	for _, v := range h.Values(m.name) {
		switch {
		case m.re != nil:
			ok = m.re.MatchString(v)
		case m.value == "":
			ok = true
		default:
			ok = strings.EqualFold(v, m.value)
		}

		if ok {
			return true
		}
	}

	return false
}

// String returns the matcher in the rule syntax.
func (m *HeaderMatcher) String() (s string) {
	return m.text
}
