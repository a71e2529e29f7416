package lookup

import (
	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/netfilter/rules"
)

// Domains indexes the rules by the plain domain names of their $domain
// modifiers.
type Domains struct {
	rules    []*rules.NetworkRule
	byDomain map[string][]int
	length   int
}

// type check
var _ Table = (*Domains)(nil)

// NewDomains returns a new empty domains table over rs.
func NewDomains(rs []*rules.NetworkRule) (t *Domains) {
	return &Domains{
		rules:    rs,
		byDomain: map[string][]int{},
	}
}

// TryAdd implements the [Table] interface for *Domains.  Only the rules with
// plain permitted domains are eligible.
func (t *Domains) TryAdd(idx int) (ok bool) {
	names, ok := t.rules[idx].PermittedDomainNames()
	if !ok {
		return false
	}

	for _, name := range names {
		t.byDomain[name] = append(t.byDomain[name], idx)
	}

	t.length++

	return true
}

// AppendMatched implements the [Table] interface for *Domains.  Documents are
// also looked up by their own hostname, since $domain may describe them.
func (t *Domains) AppendMatched(idxs []int, req *rules.Request) (res []int) {
	res = idxs

	seen := container.NewMapSet[int]()
	res = t.appendForHost(res, seen, req, req.SourceHostname)
	if req.RequestType == rules.TypeDocument {
		res = t.appendForHost(res, seen, req, req.Hostname)
	}

	return res
}

// appendForHost appends the matching rules indexed by host or any of its
// parent domains.
func (t *Domains) appendForHost(
	idxs []int,
	seen *container.MapSet[int],
	req *rules.Request,
	host string,
) (res []int) {
	res = idxs
	for _, sub := range netutil.Subdomains(host) {
		for _, idx := range t.byDomain[sub] {
			if seen.Has(idx) {
				continue
			}

			seen.Add(idx)
			if t.rules[idx].Match(req) {
				res = append(res, idx)
			}
		}
	}

	return res
}

// Len implements the [Table] interface for *Domains.
func (t *Domains) Len() (n int) { return t.length }
