package rules

import (
	"net/netip"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"
)

// maxURLLength limits the URL length by 4 KiB.  There are URLs longer than
// a megabyte, and it makes no sense to go through the whole URL.
const maxURLLength = 4 * 1024

// Party is the third-party state of a request.
type Party uint8

// Party values.
const (
	// PartyUnknown means that the state can't be determined, for example
	// because the source URL is empty or can't be parsed.  Such requests fail
	// both the $third-party and the $~third-party constraints.
	PartyUnknown Party = iota
	PartyFirst
	PartyThird
)

// Request is a network request that rules are matched against.  It must not be
// modified after it has been passed to a matcher.
type Request struct {
	// ClientIP is the IP address of the client for DNS-level matching.
	ClientIP netip.Addr

	// URL is the request URL.
	URL string

	// URLLowerCase is the request URL in lower case.
	URLLowerCase string

	// Hostname is the request hostname in lower case.
	Hostname string

	// Domain is the registrable domain (eTLD+1) of Hostname, or Hostname
	// itself if there is none.
	Domain string

	// SourceURL is the URL of the referring document, if any.
	SourceURL string

	// SourceHostname is the hostname of SourceURL in lower case.
	SourceHostname string

	// SourceDomain is the registrable domain of SourceHostname.
	SourceDomain string

	// Method is the HTTP method of the request, if known.  It's compared
	// case-insensitively.
	Method string

	// ClientName is the name of the client for DNS-level matching.
	ClientName string

	// SortedClientTags are the tags of the client, sorted.
	SortedClientTags []string

	// RequestType is the type of the request.  It must have exactly one bit
	// set.
	RequestType RequestType

	// DNSType is the RR type of a DNS request.  See package
	// github.com/miekg/dns for the values.
	DNSType uint16

	// ThirdParty is the third-party state of the request.
	ThirdParty Party

	// IsHostnameRequest is true if the request is for a hostname rather than
	// for a URL, for example a DNS query.
	IsHostnameRequest bool
}

// NewRequest returns a new request for rawURL made from the document at
// sourceURL.  sourceURL may be empty.
func NewRequest(rawURL, sourceURL string, typ RequestType) (r *Request) {
	rawURL = truncateURL(rawURL)
	sourceURL = truncateURL(sourceURL)

	r = &Request{
		URL:            rawURL,
		URLLowerCase:   strings.ToLower(rawURL),
		Hostname:       extractHostname(rawURL),
		SourceURL:      sourceURL,
		SourceHostname: extractHostname(sourceURL),
		RequestType:    typ,
	}

	r.Domain = domainOrHostname(r.Hostname)
	r.SourceDomain = domainOrHostname(r.SourceHostname)

	if r.SourceDomain != "" && r.Domain != "" {
		if r.SourceDomain == r.Domain {
			r.ThirdParty = PartyFirst
		} else {
			r.ThirdParty = PartyThird
		}
	}

	return r
}

// truncateURL returns u cut to at most maxURLLength bytes without splitting
// a multibyte character.
func truncateURL(u string) (truncated string) {
	if len(u) <= maxURLLength {
		return u
	}

	end := maxURLLength
	for end > 0 && !utf8.RuneStart(u[end]) {
		end--
	}

	return u[:end]
}

// NewRequestForHostname returns a new request for matching hostname.  It uses
// "http://" as the scheme and [TypeDocument] as the request type.  hostname
// should be validated by the caller.
func NewRequestForHostname(hostname string) (r *Request) {
	hostname = strings.ToLower(hostname)
	urlStr := "http://" + hostname

	return &Request{
		URL:               urlStr,
		URLLowerCase:      urlStr,
		Hostname:          hostname,
		Domain:            domainOrHostname(hostname),
		RequestType:       TypeDocument,
		ThirdParty:        PartyFirst,
		IsHostnameRequest: true,
	}
}

// extractHostname returns the lower-cased hostname of rawURL or an empty
// string if there is none.
func extractHostname(rawURL string) (host string) {
	if rawURL == "" {
		return ""
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return strings.ToLower(u.Hostname())
}

// domainOrHostname returns the eTLD+1 of hostname or hostname itself if it has
// none.
func domainOrHostname(hostname string) (domain string) {
	domain = effectiveTLDPlusOne(hostname)
	if domain == "" {
		return hostname
	}

	return domain
}

// effectiveTLDPlusOne is a faster version of
// [publicsuffix.EffectiveTLDPlusOne] that doesn't allocate an error when the
// hostname is less or equal to the suffix.
func effectiveTLDPlusOne(hostname string) (domain string) {
	l := len(hostname)
	if l == 0 || hostname[0] == '.' || hostname[l-1] == '.' {
		return ""
	}

	if _, err := netip.ParseAddr(hostname); err == nil {
		return ""
	}

	suffix, _ := publicsuffix.PublicSuffix(hostname)

	i := l - len(suffix) - 1
	if i < 0 || hostname[i] != '.' {
		return ""
	}

	return hostname[1+strings.LastIndex(hostname[:i], "."):]
}

// trimPublicSuffix returns hostname without its public suffix and ok set to
// true if there is a non-empty part left.
func trimPublicSuffix(hostname string) (base string, ok bool) {
	suffix, _ := publicsuffix.PublicSuffix(hostname)

	i := len(hostname) - len(suffix) - 1
	if i <= 0 || hostname[i] != '.' {
		return "", false
	}

	return hostname[:i], true
}
