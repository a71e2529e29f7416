// Package rules contains the compiled network filtering rules, the requests
// they are matched against, and the matching itself.
package rules

import (
	"net/http"
	"strings"
)

// Rule text markers.
const (
	// maskAllowlist marks allowlist rules.
	maskAllowlist = "@@"

	// optionsDelimiter separates the pattern from the modifiers.
	optionsDelimiter = '$'

	// replaceOptionName starts the $replace modifier whose value may
	// contain the options delimiter.
	replaceOptionName = "replace="

	// minGeneralPatternLen is the minimum length of a pattern of a rule
	// without modifiers.
	minGeneralPatternLen = 4
)

// IndexNone is the source index of a rule that doesn't come from a filter
// list line.
const IndexNone = -1

// StealthFilterListID is the filter list ID of the rules synthesized by the
// stealth mode.
const StealthFilterListID = -1

// PatternValidator validates a rule pattern before it's compiled.  A non-nil
// error rejects the rule.
type PatternValidator func(pattern string) (err error)

// Config is the configuration of a network rule.
type Config struct {
	// ValidatePattern, if not nil, is called with the pattern before it's
	// compiled.
	ValidatePattern PatternValidator

	// Text is the rule text.  It must not be empty.
	Text string

	// FilterListID is the ID of the filter list the rule belongs to.
	FilterListID int

	// Index is the index of the rule in its filter list or [IndexNone].
	Index int
}

// NetworkRule is a compiled network filtering rule.  It's immutable and safe
// for concurrent use.
type NetworkRule struct {
	advanced AdvancedModifier
	pattern  *Pattern

	// domains is the $domain list matched against the source hostname.
	domains *DomainList

	// denyAllow is the $denyallow list of excluded request hostnames.
	denyAllow *DomainList

	// to is the $to list matched against the request hostname.
	to *DomainList

	apps    *ValueList
	methods *ValueList
	ctags   *ValueList

	clients  *ClientList
	dnsTypes *DNSTypeList
	header   *HeaderMatcher

	text string

	filterListID int
	index        int
	weight       int

	enabled  Option
	disabled Option

	permittedTypes  RequestType
	restrictedTypes RequestType

	stealth StealthOption

	allowlist bool
}

// New compiles a network rule.  Any error returned has the type
// *[RuleSyntaxError].
func New(c *Config) (r *NetworkRule, err error) {
	r = &NetworkRule{
		text:         strings.TrimSpace(c.Text),
		filterListID: c.FilterListID,
		index:        c.Index,
	}

	err = r.init(c.ValidatePattern)
	if err != nil {
		return nil, &RuleSyntaxError{
			Err:      err,
			RuleText: c.Text,
		}
	}

	return r, nil
}

// NewNetworkRule is a shorthand for [New] for rules without a source index and
// without pattern validation.
func NewNetworkRule(text string, filterListID int) (r *NetworkRule, err error) {
	return New(&Config{
		Text:         text,
		FilterListID: filterListID,
		Index:        IndexNone,
	})
}

// init parses r.text and fills r.
func (r *NetworkRule) init(validate PatternValidator) (err error) {
	pattern, options, allowlist, err := parseRuleText(r.text)
	if err != nil {
		return err
	}

	r.allowlist = allowlist

	if options == "" && len(pattern) < minGeneralPatternLen {
		return ErrTooGeneral
	}

	err = r.loadOptions(options)
	if err != nil {
		return err
	}

	r.pattern, err = compilePattern(
		normalizePattern(pattern),
		r.enabled&OptionMatchCase != 0,
		validate,
	)
	if err != nil {
		return err
	}

	r.weight = r.calculateWeight()

	return nil
}

// parseRuleText splits the rule text into the pattern and the modifiers.
func parseRuleText(text string) (pattern, options string, allowlist bool, err error) {
	if text == "" {
		return "", "", false, ErrTooGeneral
	}

	pattern, allowlist = strings.CutPrefix(text, maskAllowlist)
	replaceIdx := strings.Index(pattern, replaceOptionName)
	hasReplace := replaceIdx > 0 &&
		(pattern[replaceIdx-1] == optionsDelimiter || pattern[replaceIdx-1] == ',')

	// Don't look for options inside of a regexp rule.
	if isRegexPattern(pattern) && !hasReplace {
		return pattern, "", allowlist, nil
	}

	// The value of $replace may contain the options delimiter, so look for it
	// before the modifier.
	var i int
	if hasReplace {
		i = findLastUnescaped(pattern[:replaceIdx], optionsDelimiter)
	} else {
		i = findLastUnescaped(pattern, optionsDelimiter)
	}

	if i < 0 {
		return pattern, "", allowlist, nil
	}

	return pattern[:i], pattern[i+1:], allowlist, nil
}

// normalizePattern returns the equivalent canonical form of pattern.
func normalizePattern(pattern string) (norm string) {
	if host, ok := strings.CutSuffix(pattern, "/*"); ok && isDomainSpecific(host) {
		return host + MaskSeparator
	}

	return pattern
}

// isDomainSpecific returns true if pattern is "||" followed by a hostname and
// an optional separator or pipe.
func isDomainSpecific(pattern string) (ok bool) {
	host, ok := strings.CutPrefix(pattern, MaskStartURL)
	if !ok {
		return false
	}

	host = strings.TrimSuffix(strings.TrimSuffix(host, MaskSeparator), MaskPipe)
	if host == "" {
		return false
	}

	for _, c := range host {
		if !isHostnameRune(c) {
			return false
		}
	}

	return true
}

// isHostnameRune returns true if c may be a part of an ASCII hostname.
func isHostnameRune(c rune) (ok bool) {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '.' ||
		c == '-' ||
		c == '_'
}

// isNotHostnameRune is the negation of [isHostnameRune].
func isNotHostnameRune(c rune) (ok bool) { return !isHostnameRune(c) }

// Text returns the rule text.
func (r *NetworkRule) Text() (text string) { return r.text }

// String implements the [fmt.Stringer] interface for *NetworkRule.
func (r *NetworkRule) String() (s string) { return r.text }

// FilterListID returns the ID of the filter list of the rule.
func (r *NetworkRule) FilterListID() (id int) { return r.filterListID }

// Index returns the index of the rule in its filter list or [IndexNone].
func (r *NetworkRule) Index() (idx int) { return r.index }

// Pattern returns the pattern of the rule as it's compiled.
func (r *NetworkRule) Pattern() (p string) { return r.pattern.text }

// Shortcut returns the lower-cased string that every URL matched by the rule
// contains.  It may be empty.
func (r *NetworkRule) Shortcut() (s string) { return r.pattern.shortcut }

// IsAllowlist returns true if the rule is an allowlist rule.
func (r *NetworkRule) IsAllowlist() (ok bool) { return r.allowlist }

// IsRegexRule returns true if the pattern is a regular expression.
func (r *NetworkRule) IsRegexRule() (ok bool) { return r.pattern.isRegex }

// IsOptionEnabled returns true if all of o are enabled.
func (r *NetworkRule) IsOptionEnabled(o Option) (ok bool) { return r.enabled.Has(o) }

// IsOptionDisabled returns true if all of o are explicitly disabled.
func (r *NetworkRule) IsOptionDisabled(o Option) (ok bool) { return r.disabled.Has(o) }

// EnabledOptions returns all enabled options.
func (r *NetworkRule) EnabledOptions() (o Option) { return r.enabled }

// DisabledOptions returns all explicitly disabled options.
func (r *NetworkRule) DisabledOptions() (o Option) { return r.disabled }

// AdvancedModifier returns the advanced modifier of the rule or nil.
func (r *NetworkRule) AdvancedModifier() (m AdvancedModifier) { return r.advanced }

// DNSRewrite returns the $dnsrewrite modifier of the rule or nil.
func (r *NetworkRule) DNSRewrite() (rw *DNSRewrite) {
	rw, _ = r.advanced.(*DNSRewrite)

	return rw
}

// PermittedDomains returns the permitted entries of $domain.
func (r *NetworkRule) PermittedDomains() (domains []string) { return r.domains.Permitted() }

// RestrictedDomains returns the negated entries of $domain.
func (r *NetworkRule) RestrictedDomains() (domains []string) { return r.domains.Restricted() }

// PermittedDomainNames returns the normalized permitted domain names of the
// $domain modifier.  ok is false if the modifier is absent or has wildcard or
// regexp entries.
func (r *NetworkRule) PermittedDomainNames() (names []string, ok bool) {
	return r.domains.plainNames()
}

// DenyAllowDomains returns the entries of $denyallow.
func (r *NetworkRule) DenyAllowDomains() (domains []string) { return r.denyAllow.Permitted() }

// Apps returns the $app list or nil.
func (r *NetworkRule) Apps() (l *ValueList) { return r.apps }

// Methods returns the $method list or nil.
func (r *NetworkRule) Methods() (l *ValueList) { return r.methods }

// Header returns the $header matcher or nil.
func (r *NetworkRule) Header() (m *HeaderMatcher) { return r.header }

// StealthOptions returns the options of a $stealth rule.  Zero means that the
// rule disables the stealth mode entirely.
func (r *NetworkRule) StealthOptions() (o StealthOption) { return r.stealth }

// PermittedRequestTypes returns the mask of permitted request types.  Zero
// means any type.
func (r *NetworkRule) PermittedRequestTypes() (t RequestType) { return r.permittedTypes }

// RestrictedRequestTypes returns the mask of restricted request types.
func (r *NetworkRule) RestrictedRequestTypes() (t RequestType) { return r.restrictedTypes }

// Weight returns the priority weight of the rule.
func (r *NetworkRule) Weight() (w int) { return r.weight }

// IsHigherPriority returns true if r has a higher priority than other.
func (r *NetworkRule) IsHigherPriority(other *NetworkRule) (ok bool) {
	return r.weight > other.weight
}

// IsGeneric returns true if the rule has no permitted domains.
func (r *NetworkRule) IsGeneric() (ok bool) {
	return len(r.domains.Permitted()) == 0
}

// IsDocumentAllowlist returns true if the rule is an allowlist rule that
// changes filtering of the subrequests of a document, like
// "@@||example.org^$urlblock".
func (r *NetworkRule) IsDocumentAllowlist() (ok bool) {
	return r.allowlist && r.enabled&(OptionUrlblock|OptionGenericblock) != 0
}

// MatchResponseHeaders returns true if the rule has a $header modifier
// matching h.
func (r *NetworkRule) MatchResponseHeaders(h http.Header) (ok bool) {
	return r.header != nil && r.header.Match(h)
}
