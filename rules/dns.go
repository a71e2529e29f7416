package rules

import (
	"fmt"
	"net/netip"
	"slices"
	"strconv"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/miekg/dns"
)

// DNSTypeList is the parsed value of $dnstype.
type DNSTypeList struct {
	permitted  []uint16
	restricted []uint16
}

// parseDNSTypeList parses the value of $dnstype, for example "A|~AAAA".
func parseDNSTypeList(value string) (l *DNSTypeList, err error) {
	if value == "" {
		return nil, modifierError("dnstype", ErrEmptyValue)
	}

	l = &DNSTypeList{}
	for name := range strings.SplitSeq(value, "|") {
		negated := strings.HasPrefix(name, "~")
		if negated {
			name = name[1:]
		}

		t, ok := dns.StringToType[strings.ToUpper(name)]
		if !ok {
			return nil, fmt.Errorf(
				"%w: unknown rr type %q",
				valueError("dnstype", value, ErrInvalidValue),
				name,
			)
		}

		if negated {
			l.restricted = append(l.restricted, t)
		} else {
			l.permitted = append(l.permitted, t)
		}
	}

	return l, nil
}

// Match returns true if the RR type t is allowed by the list.  A nil list
// allows any type.
func (l *DNSTypeList) Match(t uint16) (ok bool) {
	if l == nil {
		return true
	}

	if slices.Contains(l.restricted, t) {
		return false
	}

	return len(l.permitted) == 0 || slices.Contains(l.permitted, t)
}

// String returns the list in the rule syntax.
func (l *DNSTypeList) String() (s string) {
	if l == nil {
		return ""
	}

	names := make([]string, 0, len(l.permitted)+len(l.restricted))
	for _, t := range l.permitted {
		names = append(names, dns.TypeToString[t])
	}

	for _, t := range l.restricted {
		names = append(names, "~"+dns.TypeToString[t])
	}

	return strings.Join(names, "|")
}

// clientSet is a set of clients identified by name, IP address, or subnet.
type clientSet struct {
	names    []string
	prefixes []netip.Prefix
	texts    []string
}

// add adds the client described by text to the set.
func (s *clientSet) add(text string) (err error) {
	s.texts = append(s.texts, text)

	v := unquote(text)
	if v == "" {
		return errors.Error("empty client")
	}

	if ip, ipErr := netip.ParseAddr(v); ipErr == nil {
		s.prefixes = append(s.prefixes, netip.PrefixFrom(ip, ip.BitLen()))
	} else if pref, prefErr := netip.ParsePrefix(v); prefErr == nil {
		s.prefixes = append(s.prefixes, pref.Masked())
	} else {
		s.names = append(s.names, v)
	}

	return nil
}

// containsAny returns true if the set contains the client with the given name
// or IP address.
func (s *clientSet) containsAny(name string, ip netip.Addr) (ok bool) {
	if name != "" && slices.Contains(s.names, name) {
		return true
	}

	if !ip.IsValid() {
		return false
	}

	ip = ip.Unmap()

	return slices.ContainsFunc(s.prefixes, func(p netip.Prefix) (c bool) { return p.Contains(ip) })
}

// ClientList is the parsed value of $client.
type ClientList struct {
	permitted  clientSet
	restricted clientSet
}

// parseClientList parses the value of $client.  Entries are separated by "|"
// and names may be quoted.
func parseClientList(value string) (l *ClientList, err error) {
	if value == "" {
		return nil, modifierError("client", ErrEmptyValue)
	}

	l = &ClientList{}
	for _, text := range splitEscaped(value, '|') {
		set := &l.permitted
		if strings.HasPrefix(text, "~") {
			set, text = &l.restricted, text[1:]
		}

		err = set.add(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", valueError("client", value, ErrInvalidValue), err)
		}
	}

	return l, nil
}

// Match returns true if the client is allowed by the list.  A nil list allows
// any client.
func (l *ClientList) Match(name string, ip netip.Addr) (ok bool) {
	if l == nil {
		return true
	}

	if l.restricted.containsAny(name, ip) {
		return false
	}

	return len(l.permitted.texts) == 0 || l.permitted.containsAny(name, ip)
}

// String returns the list in the rule syntax.
func (l *ClientList) String() (s string) {
	if l == nil {
		return ""
	}

	texts := slices.Clone(l.permitted.texts)
	for _, t := range l.restricted.texts {
		texts = append(texts, "~"+t)
	}

	for i, t := range texts {
		texts[i] = strings.ReplaceAll(t, "|", `\|`)
	}

	return strings.Join(texts, "|")
}

// DNSMX is the value of an MX rewrite.
type DNSMX struct {
	Exchange   string
	Preference uint16
}

// DNSRewrite is the $dnsrewrite advanced modifier.
type DNSRewrite struct {
	// RRValue is the value of the rewritten resource record: [netip.Addr]
	// for A and AAAA, *DNSMX for MX, and string for other types.  It's nil
	// for RCODE-only rewrites.
	RRValue any

	// NewCNAME is the target of a CNAME rewrite.  If it's not empty, the
	// other fields are ignored.
	NewCNAME string

	text string

	// RCode is the response code, see [dns.RcodeSuccess] and others.
	RCode int

	// RRType is the type of the rewritten resource record.  It's zero for
	// RCODE-only rewrites.
	RRType uint16
}

// type check
var _ AdvancedModifier = (*DNSRewrite)(nil)

// Value implements the [AdvancedModifier] interface for *DNSRewrite.
func (rw *DNSRewrite) Value() (v string) {
	return rw.text
}

// isAdvancedModifier implements the [AdvancedModifier] interface for
// *DNSRewrite.
func (rw *DNSRewrite) isAdvancedModifier() {}

// parseDNSRewrite parses the value of $dnsrewrite.  It accepts the short
// forms "1.2.3.4", "::1", "host.example", and "REFUSED", as well as the full
// form "RCODE;RRTYPE;VALUE".
func parseDNSRewrite(value string) (rw *DNSRewrite, err error) {
	parts := strings.Split(value, ";")
	switch len(parts) {
	case 1:
		rw, err = parseDNSRewriteShort(value)
	case 3:
		rw, err = parseDNSRewriteFull(parts[0], parts[1], parts[2])
	default:
		err = errors.Error("expected one or three parts")
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", valueError("dnsrewrite", value, ErrInvalidValue), err)
	}

	rw.text = value

	return rw, nil
}

// parseDNSRewriteShort parses the short form of $dnsrewrite.
func parseDNSRewriteShort(value string) (rw *DNSRewrite, err error) {
	if rcode, ok := dns.StringToRcode[strings.ToUpper(value)]; ok {
		return &DNSRewrite{RCode: rcode}, nil
	}

	if ip, ipErr := netip.ParseAddr(value); ipErr == nil {
		rrType := dns.TypeAAAA
		if ip.Is4() {
			rrType = dns.TypeA
		}

		return &DNSRewrite{
			RRValue: ip,
			RCode:   dns.RcodeSuccess,
			RRType:  rrType,
		}, nil
	}

	err = netutil.ValidateDomainName(value)
	if err != nil {
		return nil, err
	}

	return &DNSRewrite{
		NewCNAME: strings.ToLower(value),
		RCode:    dns.RcodeSuccess,
		RRType:   dns.TypeCNAME,
	}, nil
}

// parseDNSRewriteFull parses the full form of $dnsrewrite.
func parseDNSRewriteFull(rcodeStr, rrTypeStr, valStr string) (rw *DNSRewrite, err error) {
	rcode, ok := dns.StringToRcode[strings.ToUpper(rcodeStr)]
	if !ok {
		return nil, fmt.Errorf("unknown rcode %q", rcodeStr)
	}

	if rcode != dns.RcodeSuccess {
		if rrTypeStr != "" || valStr != "" {
			return nil, fmt.Errorf("rcode %s with non-empty type or value", rcodeStr)
		}

		return &DNSRewrite{RCode: rcode}, nil
	}

	rrType, ok := dns.StringToType[strings.ToUpper(rrTypeStr)]
	if !ok {
		return nil, fmt.Errorf("unknown rr type %q", rrTypeStr)
	}

	rw = &DNSRewrite{
		RCode:  rcode,
		RRType: rrType,
	}

	if valStr == "" {
		return rw, nil
	}

	switch rrType {
	case dns.TypeA, dns.TypeAAAA:
		var ip netip.Addr
		ip, err = netip.ParseAddr(valStr)
		if err != nil {
			return nil, err
		} else if ip.Is4() != (rrType == dns.TypeA) {
			return nil, fmt.Errorf("address %s doesn't fit type %s", ip, rrTypeStr)
		}

		rw.RRValue = ip
	case dns.TypeCNAME:
		err = netutil.ValidateDomainName(valStr)
		if err != nil {
			return nil, err
		}

		rw.NewCNAME = strings.ToLower(valStr)
	case dns.TypeMX:
		rw.RRValue, err = parseDNSMX(valStr)
	case dns.TypePTR, dns.TypeNS:
		err = netutil.ValidateDomainName(strings.TrimSuffix(valStr, "."))
		rw.RRValue = dns.Fqdn(strings.ToLower(valStr))
	default:
		rw.RRValue = valStr
	}

	if err != nil {
		return nil, err
	}

	return rw, nil
}

// parseDNSMX parses the "preference exchange" value of an MX rewrite.
func parseDNSMX(s string) (mx *DNSMX, err error) {
	prefStr, exch, ok := strings.Cut(s, " ")
	if !ok {
		return nil, fmt.Errorf("bad mx value %q", s)
	}

	pref, err := strconv.ParseUint(prefStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("mx preference: %w", err)
	}

	err = netutil.ValidateDomainName(exch)
	if err != nil {
		return nil, err
	}

	return &DNSMX{
		Exchange:   strings.ToLower(exch),
		Preference: uint16(pref),
	}, nil
}
