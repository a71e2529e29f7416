package rules

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// AdvancedModifier is a value-bearing modifier.  A rule has at most one of
// them.  The implementations are:
//
//   - [*CookieModifier]
//   - [*CSPModifier]
//   - [*DNSRewrite]
//   - [*PermissionsModifier]
//   - [*RedirectModifier]
//   - [*RemoveHeaderModifier]
//   - [*RemoveParamModifier]
//   - [*ReplaceModifier]
type AdvancedModifier interface {
	// Value returns the value of the modifier as written in the rule.  An
	// empty value means that an allowlist rule disables all modifiers of
	// this kind.
	Value() (v string)

	// isAdvancedModifier seals the interface.
	isAdvancedModifier()
}

// regexFromSlashes compiles s if it's delimited with slashes and returns nil
// otherwise.  flags are the characters following the closing slash, for
// example "i".
func regexFromSlashes(s string) (re *regexp.Regexp, ok bool, err error) {
	if len(s) < 2 || s[0] != '/' {
		return nil, false, nil
	}

	end := strings.LastIndexByte(s, '/')
	if end == 0 {
		return nil, false, nil
	}

	reText := s[1:end]
	switch flags := s[end+1:]; flags {
	case "":
	case "i":
		reText = "(?i)" + reText
	default:
		return nil, true, fmt.Errorf("unsupported regexp flags %q", flags)
	}

	re, err = regexp.Compile(reText)

	return re, true, err
}

// CookieSameSite is the SameSite attribute set by a cookie rule.
type CookieSameSite string

// CookieSameSite values.
const (
	CookieSameSiteNone   CookieSameSite = ""
	CookieSameSiteLax    CookieSameSite = "lax"
	CookieSameSiteStrict CookieSameSite = "strict"
)

// CookieModifier is the $cookie advanced modifier.  An empty name matches all
// cookies.
type CookieModifier struct {
	re       *regexp.Regexp
	name     string
	text     string
	sameSite CookieSameSite
	maxAge   int
}

// type check
var _ AdvancedModifier = (*CookieModifier)(nil)

// Value implements the [AdvancedModifier] interface for *CookieModifier.
func (m *CookieModifier) Value() (v string) { return m.text }

// isAdvancedModifier implements the [AdvancedModifier] interface for
// *CookieModifier.
func (m *CookieModifier) isAdvancedModifier() {}

// parseCookieModifier parses the value of $cookie, for example
// "name;maxAge=3600;sameSite=lax" or "/^_ga/".
func parseCookieModifier(value string) (m *CookieModifier, err error) {
	m = &CookieModifier{text: value}
	if value == "" {
		return m, nil
	}

	name, opts, _ := strings.Cut(value, ";")
	re, isRe, err := regexFromSlashes(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", valueError("cookie", value, ErrInvalidValue), err)
	} else if isRe {
		m.re = re
	} else {
		m.name = name
	}

	for _, opt := range splitEscaped(opts, ';') {
		k, v, _ := strings.Cut(opt, "=")
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "maxage":
			m.maxAge, err = strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", valueError("cookie", value, ErrInvalidValue), err)
			}
		case "samesite":
			switch ss := CookieSameSite(strings.ToLower(v)); ss {
			case CookieSameSiteLax, CookieSameSiteStrict:
				m.sameSite = ss
			default:
				return nil, valueError("cookie", value, ErrInvalidValue)
			}
		default:
			return nil, valueError("cookie", value, ErrInvalidValue)
		}
	}

	return m, nil
}

// Match returns true if the modifier applies to the cookie named name.
func (m *CookieModifier) Match(name string) (ok bool) {
	switch {
	case m.re != nil:
		return m.re.MatchString(name)
	case m.name == "":
		return true
	default:
		return m.name == name
	}
}

// Name returns the cookie name of the rule.  It's empty for regexp and
// catch-all rules.
func (m *CookieModifier) Name() (name string) { return m.name }

// MaxAge returns the maximum age to set, if any.
func (m *CookieModifier) MaxAge() (sec int) { return m.maxAge }

// SameSite returns the SameSite attribute to set, if any.
func (m *CookieModifier) SameSite() (ss CookieSameSite) { return m.sameSite }

// IsModifying returns true if the rule modifies the cookie instead of
// removing it.
func (m *CookieModifier) IsModifying() (ok bool) {
	return m.maxAge > 0 || m.sameSite != CookieSameSiteNone
}

// CSPModifier is the $csp advanced modifier.
type CSPModifier struct {
	text string
}

// type check
var _ AdvancedModifier = (*CSPModifier)(nil)

// Value implements the [AdvancedModifier] interface for *CSPModifier.
func (m *CSPModifier) Value() (v string) { return m.text }

// isAdvancedModifier implements the [AdvancedModifier] interface for
// *CSPModifier.
func (m *CSPModifier) isAdvancedModifier() {}

// parseCSPModifier parses the value of $csp.
func parseCSPModifier(value string) (m *CSPModifier, err error) {
	lower := strings.ToLower(value)
	if strings.Contains(lower, "report-uri") || strings.Contains(lower, "report-to") {
		return nil, fmt.Errorf(
			"%w: report directives are not allowed",
			valueError("csp", value, ErrInvalidValue),
		)
	}

	return &CSPModifier{text: strings.TrimSpace(value)}, nil
}

// Directives returns the names of the directives of the policy.
func (m *CSPModifier) Directives() (names []string) {
	for d := range strings.SplitSeq(m.text, ";") {
		fields := strings.Fields(d)
		if len(fields) > 0 {
			names = append(names, strings.ToLower(fields[0]))
		}
	}

	return names
}

// ReplaceModifier is the $replace advanced modifier.
type ReplaceModifier struct {
	re          *regexp.Regexp
	text        string
	replacement string
	global      bool
}

// type check
var _ AdvancedModifier = (*ReplaceModifier)(nil)

// Value implements the [AdvancedModifier] interface for *ReplaceModifier.
func (m *ReplaceModifier) Value() (v string) { return m.text }

// isAdvancedModifier implements the [AdvancedModifier] interface for
// *ReplaceModifier.
func (m *ReplaceModifier) isAdvancedModifier() {}

// parseReplaceModifier parses the value of $replace, for example
// "/ad-banner/placeholder/gi".
func parseReplaceModifier(value string) (m *ReplaceModifier, err error) {
	m = &ReplaceModifier{text: value}
	if value == "" {
		return m, nil
	}

	parts := splitReplaceValue(value)
	if len(parts) != 3 || parts[0] == "" {
		return nil, valueError("replace", value, ErrInvalidValue)
	}

	reText := parts[0]
	for _, f := range parts[2] {
		switch f {
		case 'i':
			reText = "(?i)" + reText
		case 'g':
			m.global = true
		default:
			return nil, fmt.Errorf("%w: flag %q", valueError("replace", value, ErrInvalidValue), f)
		}
	}

	m.re, err = regexp.Compile(reText)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", valueError("replace", value, ErrInvalidValue), err)
	}

	m.replacement = parts[1]

	return m, nil
}

// splitReplaceValue splits "/re/replacement/flags" into its three parts
// unescaping "\/".
func splitReplaceValue(value string) (parts []string) {
	if !strings.HasPrefix(value, "/") {
		return nil
	}

	sb := &strings.Builder{}
	for i := 1; i < len(value); i++ {
		c := value[i]
		switch {
		case c == escapeCharacter && i+1 < len(value) && value[i+1] == '/':
			sb.WriteByte('/')
			i++
		case c == '/' && len(parts) < 2:
			parts = append(parts, sb.String())
			sb.Reset()
		default:
			sb.WriteByte(c)
		}
	}

	return append(parts, sb.String())
}

// Apply returns s with the replacements made.
func (m *ReplaceModifier) Apply(s string) (res string) {
	if m.re == nil {
		return s
	}

	if m.global {
		return m.re.ReplaceAllString(s, m.replacement)
	}

	loc := m.re.FindStringSubmatchIndex(s)
	if loc == nil {
		return s
	}

	dst := m.re.ExpandString(nil, m.replacement, s, loc)

	return s[:loc[0]] + string(dst) + s[loc[1]:]
}

// RedirectModifier is the $redirect and $redirect-rule advanced modifier.
type RedirectModifier struct {
	resource      string
	onlyIfBlocked bool
}

// type check
var _ AdvancedModifier = (*RedirectModifier)(nil)

// Value implements the [AdvancedModifier] interface for *RedirectModifier.
func (m *RedirectModifier) Value() (v string) { return m.resource }

// isAdvancedModifier implements the [AdvancedModifier] interface for
// *RedirectModifier.
func (m *RedirectModifier) isAdvancedModifier() {}

// parseRedirectModifier parses the value of $redirect or $redirect-rule.
func parseRedirectModifier(name, value string, onlyIfBlocked bool) (m *RedirectModifier, err error) {
	if strings.ContainsAny(value, " \t/") {
		return nil, valueError(name, value, ErrInvalidValue)
	}

	return &RedirectModifier{
		resource:      value,
		onlyIfBlocked: onlyIfBlocked,
	}, nil
}

// Resource returns the name of the resource to redirect to.
func (m *RedirectModifier) Resource() (name string) { return m.resource }

// OnlyIfBlocked returns true for $redirect-rule, which only applies when the
// request is blocked by another rule.
func (m *RedirectModifier) OnlyIfBlocked() (ok bool) { return m.onlyIfBlocked }

// RemoveParamModifier is the $removeparam advanced modifier.
type RemoveParamModifier struct {
	re       *regexp.Regexp
	text     string
	name     string
	inverted bool
}

// type check
var _ AdvancedModifier = (*RemoveParamModifier)(nil)

// Value implements the [AdvancedModifier] interface for *RemoveParamModifier.
func (m *RemoveParamModifier) Value() (v string) { return m.text }

// isAdvancedModifier implements the [AdvancedModifier] interface for
// *RemoveParamModifier.
func (m *RemoveParamModifier) isAdvancedModifier() {}

// parseRemoveParamModifier parses the value of $removeparam: "name",
// "~name", "/regexp/flags", or an empty value that removes all parameters.
func parseRemoveParamModifier(value string) (m *RemoveParamModifier, err error) {
	m = &RemoveParamModifier{text: value}

	v := value
	if strings.HasPrefix(v, "~") {
		m.inverted = true
		v = v[1:]
	}

	if value != "" && v == "" {
		return nil, valueError("removeparam", value, ErrInvalidValue)
	}

	re, isRe, err := regexFromSlashes(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", valueError("removeparam", value, ErrInvalidValue), err)
	} else if isRe {
		m.re = re
	} else {
		m.name = v
	}

	return m, nil
}

// MatchParam returns true if the query parameter should be removed.  param is
// either a name or a "name=value" pair; regular expressions are matched
// against the pair.
func (m *RemoveParamModifier) MatchParam(param string) (ok bool) {
	switch {
	case m.re != nil:
		ok = m.re.MatchString(param)
	case m.name == "":
		return !m.inverted
	default:
		name, _, _ := strings.Cut(param, "=")
		ok = name == m.name
	}

	return ok != m.inverted
}

// removeHeaderRequestPrefix marks request headers in $removeheader.
const removeHeaderRequestPrefix = "request:"

// forbiddenRemoveHeaders are the headers that can't be removed.
var forbiddenRemoveHeaders = []string{
	"access-control-allow-origin",
	"access-control-allow-credentials",
	"access-control-allow-headers",
	"access-control-allow-methods",
	"access-control-expose-headers",
	"access-control-max-age",
	"access-control-request-headers",
	"access-control-request-method",
	"connection",
	"content-length",
	"content-type",
	"content-encoding",
	"content-security-policy",
	"content-security-policy-report-only",
	"host",
	"location",
	"origin",
	"permissions-policy",
	"set-cookie",
	"strict-transport-security",
	"trailer",
	"transfer-encoding",
	"upgrade",
}

// RemoveHeaderModifier is the $removeheader advanced modifier.
type RemoveHeaderModifier struct {
	text      string
	name      string
	isRequest bool
}

// type check
var _ AdvancedModifier = (*RemoveHeaderModifier)(nil)

// Value implements the [AdvancedModifier] interface for *RemoveHeaderModifier.
func (m *RemoveHeaderModifier) Value() (v string) { return m.text }

// isAdvancedModifier implements the [AdvancedModifier] interface for
// *RemoveHeaderModifier.
func (m *RemoveHeaderModifier) isAdvancedModifier() {}

// parseRemoveHeaderModifier parses the value of $removeheader: "name" for
// response headers or "request:name" for request headers.
func parseRemoveHeaderModifier(value string) (m *RemoveHeaderModifier, err error) {
	m = &RemoveHeaderModifier{text: value}
	if value == "" {
		return m, nil
	}

	name := strings.ToLower(value)
	if rest, ok := strings.CutPrefix(name, removeHeaderRequestPrefix); ok {
		m.isRequest = true
		name = rest
	}

	if name == "" || strings.ContainsAny(name, " \t:") {
		return nil, valueError("removeheader", value, ErrInvalidValue)
	} else if slices.Contains(forbiddenRemoveHeaders, name) {
		return nil, fmt.Errorf(
			"%w: header %q can't be removed",
			valueError("removeheader", value, ErrInvalidValue),
			name,
		)
	}

	m.name = name

	return m, nil
}

// HeaderName returns the lower-cased name of the header to remove.
func (m *RemoveHeaderModifier) HeaderName() (name string) { return m.name }

// IsRequestHeader returns true if a request header should be removed instead
// of a response one.
func (m *RemoveHeaderModifier) IsRequestHeader() (ok bool) { return m.isRequest }

// PermissionsModifier is the $permissions advanced modifier.
type PermissionsModifier struct {
	text   string
	policy string
}

// type check
var _ AdvancedModifier = (*PermissionsModifier)(nil)

// Value implements the [AdvancedModifier] interface for *PermissionsModifier.
func (m *PermissionsModifier) Value() (v string) { return m.text }

// isAdvancedModifier implements the [AdvancedModifier] interface for
// *PermissionsModifier.
func (m *PermissionsModifier) isAdvancedModifier() {}

// errBadPermissionsDirective is returned for malformed permission policy
// directives.
const errBadPermissionsDirective errors.Error = "bad policy directive"

// parsePermissionsModifier parses the value of $permissions.  Directives are
// separated by "|", for example "autoplay=()|geolocation=(self)".
func parsePermissionsModifier(value string) (m *PermissionsModifier, err error) {
	m = &PermissionsModifier{text: value}
	if value == "" {
		return m, nil
	}

	var directives []string
	for d := range strings.SplitSeq(value, "|") {
		d = strings.TrimSpace(d)
		name, allowlist, ok := strings.Cut(d, "=")
		if !ok || name == "" || allowlist == "" {
			return nil, fmt.Errorf(
				"%w: %w: %q",
				valueError("permissions", value, ErrInvalidValue),
				errBadPermissionsDirective,
				d,
			)
		}

		directives = append(directives, d)
	}

	m.policy = strings.Join(directives, ", ")

	return m, nil
}

// PolicyDirective returns the value of the Permissions-Policy header to add.
func (m *PermissionsModifier) PolicyDirective() (p string) { return m.policy }
