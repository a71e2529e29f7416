package rules

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/netutil"
	"golang.org/x/net/idna"
)

// domainKind is the kind of a domain list entry.
type domainKind uint8

// domainKind values.
const (
	// domainKindName matches the domain and all its subdomains.
	domainKindName domainKind = iota

	// domainKindWildcardTLD is an entry like "example.*" that matches the
	// domain with any public suffix.
	domainKindWildcardTLD

	// domainKindRegex is an entry like "/^ex[a-z]+\.org$/".
	domainKindRegex
)

// wildcardTLDSuffix is the suffix of wildcard TLD entries.
const wildcardTLDSuffix = ".*"

// domainEntry is a single entry of a domain list modifier.
type domainEntry struct {
	// re is the compiled regular expression of a regex entry.
	re *regexp.Regexp

	// name is the lower-cased ASCII domain name.  For wildcard TLD entries,
	// it doesn't include the wildcard suffix.
	name string

	// text is the entry as written in the rule, without the negation.
	text string

	kind domainKind
}

// match returns true if host matches the entry.
func (e *domainEntry) match(host string) (ok bool) {
	switch e.kind {
	case domainKindRegex:
		return e.re.MatchString(host)
	case domainKindWildcardTLD:
		base, hasSuffix := trimPublicSuffix(host)

		return hasSuffix && isDomainOrSubdomain(base, e.name)
	default:
		return isDomainOrSubdomain(host, e.name)
	}
}

// domainListFlags are the parsing constraints of a domain list modifier.
type domainListFlags uint8

// domainListFlags values.
const (
	domainListAllowNegation domainListFlags = 1 << iota
	domainListAllowWildcard
)

// DomainList is the parsed value of $domain, $denyallow, or $to.
type DomainList struct {
	permitted  []*domainEntry
	restricted []*domainEntry
}

// parseDomainList parses the value of the modifier name.  Entries are
// separated by "|".
func parseDomainList(name, value string, flags domainListFlags) (l *DomainList, err error) {
	if value == "" {
		return nil, modifierError(name, ErrEmptyValue)
	}

	l = &DomainList{}
	for _, text := range splitDomainList(value) {
		negated := strings.HasPrefix(text, "~")
		if negated {
			if flags&domainListAllowNegation == 0 {
				return nil, valueError(name, value, ErrNotNegatable)
			}

			text = text[1:]
		}

		var e *domainEntry
		e, err = parseDomainEntry(text, flags&domainListAllowWildcard != 0)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", valueError(name, value, ErrInvalidValue), err)
		}

		if negated {
			l.restricted = append(l.restricted, e)
		} else {
			l.permitted = append(l.permitted, e)
		}
	}

	return l, nil
}

// parseDomainEntry parses a single domain list entry.
func parseDomainEntry(text string, allowWildcard bool) (e *domainEntry, err error) {
	if text == "" {
		return nil, errors.Error("empty domain")
	}

	e = &domainEntry{
		text: text,
		kind: domainKindName,
	}

	if isRegexPattern(text) {
		if !allowWildcard {
			return nil, fmt.Errorf("regular expression %q is not allowed", text)
		}

		e.kind = domainKindRegex
		e.re, err = regexp.Compile(text[1 : len(text)-1])

		return e, err
	}

	name := text
	if strings.HasSuffix(name, wildcardTLDSuffix) {
		if !allowWildcard {
			return nil, fmt.Errorf("wildcard %q is not allowed", text)
		}

		e.kind = domainKindWildcardTLD
		name = name[:len(name)-len(wildcardTLDSuffix)]
	}

	name, err = idna.ToASCII(strings.ToLower(name))
	if err != nil {
		return nil, fmt.Errorf("converting to ascii: %w", err)
	}

	err = netutil.ValidateDomainName(name)
	if err != nil {
		return nil, err
	}

	if i := strings.IndexFunc(name, isNotHostnameRune); i >= 0 {
		return nil, fmt.Errorf("bad domain name %q: bad char %q at index %d", name, name[i], i)
	}

	e.name = name

	return e, nil
}

// splitDomainList splits value by "|", keeping the regex entries that contain
// the separator intact.
func splitDomainList(value string) (entries []string) {
	start := 0
	inRegex := false
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c == '\\' && inRegex:
			i++
		case c == '/':
			entryStart := i == start || (i == start+1 && value[start] == '~')
			if entryStart {
				inRegex = true
			} else if inRegex && (i+1 == len(value) || value[i+1] == '|') {
				inRegex = false
			}
		case c == '|' && !inRegex:
			entries = append(entries, value[start:i])
			start = i + 1
		}
	}

	return append(entries, value[start:])
}

// isDomainOrSubdomain returns true if host is domain or its subdomain.
func isDomainOrSubdomain(host, domain string) (ok bool) {
	return host == domain ||
		(strings.HasSuffix(host, domain) && host[len(host)-len(domain)-1] == '.')
}

// matchAny returns true if host matches any of entries.
func matchAny(entries []*domainEntry, host string) (ok bool) {
	return slices.ContainsFunc(entries, func(e *domainEntry) (m bool) { return e.match(host) })
}

// Match returns true if host is allowed by the list.  A nil list allows any
// host.  An empty host is only allowed by lists without permitted entries.
func (l *DomainList) Match(host string) (ok bool) {
	if l == nil {
		return true
	}

	if host == "" {
		return len(l.permitted) == 0
	}

	if matchAny(l.restricted, host) {
		return false
	}

	return len(l.permitted) == 0 || matchAny(l.permitted, host)
}

// Contains returns true if host is one of the permitted entries or their
// subdomain.  A nil list contains nothing.
func (l *DomainList) Contains(host string) (ok bool) {
	return l != nil && host != "" && matchAny(l.permitted, host)
}

// Permitted returns the permitted entries as written in the rule.
func (l *DomainList) Permitted() (texts []string) {
	if l == nil {
		return nil
	}

	return entryTexts(l.permitted)
}

// Restricted returns the negated entries as written in the rule, without the
// negation.
func (l *DomainList) Restricted() (texts []string) {
	if l == nil {
		return nil
	}

	return entryTexts(l.restricted)
}

// plainNames returns the names of the permitted entries if all of them are
// plain domain names.  ok is false otherwise.
func (l *DomainList) plainNames() (names []string, ok bool) {
	if l == nil || len(l.permitted) == 0 {
		return nil, false
	}

	names = make([]string, 0, len(l.permitted))
	for _, e := range l.permitted {
		if e.kind != domainKindName {
			return nil, false
		}

		names = append(names, e.name)
	}

	return names, true
}

// hasOnlyRestricted returns true if l has negated entries only.
func (l *DomainList) hasOnlyRestricted() (ok bool) {
	return l != nil && len(l.permitted) == 0 && len(l.restricted) > 0
}

// String returns the list in the rule syntax.
func (l *DomainList) String() (s string) {
	if l == nil {
		return ""
	}

	texts := entryTexts(l.permitted)
	for _, e := range l.restricted {
		texts = append(texts, "~"+e.text)
	}

	return strings.Join(texts, "|")
}

// entryTexts returns the texts of entries.
func entryTexts(entries []*domainEntry) (texts []string) {
	for _, e := range entries {
		texts = append(texts, e.text)
	}

	return texts
}
