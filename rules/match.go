package rules

import (
	"net/netip"
	"strings"
)

// Match returns true if r matches req.
func (r *NetworkRule) Match(req *Request) (ok bool) {
	return r.matchShortcut(req) && r.MatchIndexed(req)
}

// MatchIndexed is like [NetworkRule.Match] but skips the shortcut check.  Use
// it when an index has already guaranteed that the lower-cased URL of req
// contains the shortcut.
func (r *NetworkRule) MatchIndexed(req *Request) (ok bool) {
	switch {
	case
		!r.methods.Match(strings.ToLower(req.Method)),
		!r.matchThirdParty(req.ThirdParty),
		!r.matchRequestType(req.RequestType),
		!r.matchDomainModifier(req),
		!r.matchExplicitType(req.RequestType),
		!r.matchDenyAllow(req),
		!r.to.Match(req.Hostname),
		!r.matchDNS(req):
		return false
	default:
		return r.matchPattern(req)
	}
}

// matchShortcut returns true if the shortcut is a substring of the URL.
func (r *NetworkRule) matchShortcut(req *Request) (ok bool) {
	return strings.Contains(req.URLLowerCase, r.pattern.shortcut)
}

// matchThirdParty checks the $third-party constraint.  Requests with an
// unknown state satisfy neither $third-party nor $~third-party.
func (r *NetworkRule) matchThirdParty(p Party) (ok bool) {
	switch {
	case r.enabled&OptionThirdParty != 0:
		return p == PartyThird
	case r.disabled&OptionThirdParty != 0:
		return p == PartyFirst
	default:
		return true
	}
}

// matchRequestType checks the content-type modifiers.
func (r *NetworkRule) matchRequestType(t RequestType) (ok bool) {
	if r.permittedTypes != 0 && r.permittedTypes&t != t {
		return false
	}

	return r.restrictedTypes == 0 || r.restrictedTypes&t != t
}

// matchDomainModifier checks $domain against the source hostname.  For
// documents, restrictions that don't describe the pattern's own domain are
// also checked against the hostname of the document itself.
func (r *NetworkRule) matchDomainModifier(req *Request) (ok bool) {
	if r.domains == nil {
		return true
	}

	checkHostname := req.RequestType == TypeDocument &&
		(r.domains.hasOnlyRestricted() || !(r.pattern.isRegex || isDomainSpecific(r.pattern.text)))
	if !checkHostname {
		return r.domains.Match(req.SourceHostname)
	}

	if req.SourceHostname != "" && r.domains.Match(req.SourceHostname) {
		return true
	}

	return r.domains.Match(req.Hostname)
}

// matchExplicitType makes $removeparam and $permissions rules without
// content-type modifiers apply to documents and subdocuments only.
func (r *NetworkRule) matchExplicitType(t RequestType) (ok bool) {
	if r.enabled&(OptionRemoveParam|OptionPermissions) == 0 ||
		r.permittedTypes != 0 ||
		r.restrictedTypes != 0 {
		return true
	}

	return t&(TypeDocument|TypeSubdocument) != 0
}

// matchDenyAllow checks that the request hostname is not excluded by
// $denyallow.  IP addresses in hostname requests only come from CNAME or
// reverse lookups, so such rules never match them.
func (r *NetworkRule) matchDenyAllow(req *Request) (ok bool) {
	if r.denyAllow == nil {
		return true
	}

	if req.IsHostnameRequest {
		if _, err := netip.ParseAddr(req.Hostname); err == nil {
			return false
		}
	}

	return !r.denyAllow.Contains(req.Hostname)
}

// matchDNS checks $dnstype, $client, and $ctag.
func (r *NetworkRule) matchDNS(req *Request) (ok bool) {
	return r.dnsTypes.Match(req.DNSType) &&
		r.clients.Match(req.ClientName, req.ClientIP) &&
		r.ctags.MatchAny(req.SortedClientTags)
}

// matchPattern matches the pattern against the URL or, for hostname requests,
// against the hostname.
func (r *NetworkRule) matchPattern(req *Request) (ok bool) {
	if r.shouldMatchHostname(req) {
		return r.pattern.MatchString(req.Hostname)
	}

	return r.pattern.MatchString(req.URL)
}

// shouldMatchHostname returns true if the pattern should be matched against
// the hostname instead of the URL.  Even on the DNS level, patterns anchored
// to the scheme or describing a URL path are matched against the URL.
func (r *NetworkRule) shouldMatchHostname(req *Request) (ok bool) {
	if !req.IsHostnameRequest {
		return false
	}

	p := r.pattern.text
	if strings.HasPrefix(p, MaskStartURL) ||
		strings.HasPrefix(p, "http://") ||
		strings.HasPrefix(p, "https://") ||
		strings.HasPrefix(p, "://") {
		return false
	}

	// Patterns like "/hostname." are parts of URLs.
	if len(p) > 3 && p[0] == '/' && p[len(p)-1] == '.' {
		for _, c := range p[1 : len(p)-1] {
			if !isHostnameRune(c) || c == '_' {
				return true
			}
		}

		return false
	}

	return true
}
