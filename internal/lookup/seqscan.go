package lookup

import "github.com/AdguardTeam/netfilter/rules"

// SeqScan is the fallback table that checks every rule it holds.
type SeqScan struct {
	rules []*rules.NetworkRule
	idxs  []int
}

// type check
var _ Table = (*SeqScan)(nil)

// NewSeqScan returns a new empty sequential scan table over rs.
func NewSeqScan(rs []*rules.NetworkRule) (t *SeqScan) {
	return &SeqScan{
		rules: rs,
	}
}

// TryAdd implements the [Table] interface for *SeqScan.  All rules are
// eligible.
func (t *SeqScan) TryAdd(idx int) (ok bool) {
	t.idxs = append(t.idxs, idx)

	return true
}

// AppendMatched implements the [Table] interface for *SeqScan.
func (t *SeqScan) AppendMatched(idxs []int, req *rules.Request) (res []int) {
	res = idxs
	for _, idx := range t.idxs {
		if t.rules[idx].Match(req) {
			res = append(res, idx)
		}
	}

	return res
}

// Len implements the [Table] interface for *SeqScan.
func (t *SeqScan) Len() (n int) { return len(t.idxs) }
