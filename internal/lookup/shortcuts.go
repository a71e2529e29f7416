package lookup

import (
	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/netfilter/rules"
)

// shortcutLength is the length of the shortcut prefix used as the key.
const shortcutLength = 5

// Shortcuts indexes the rules by the first bytes of their shortcuts.
type Shortcuts struct {
	rules  []*rules.NetworkRule
	byKey  map[string][]int
	length int
}

// type check
var _ Table = (*Shortcuts)(nil)

// NewShortcuts returns a new empty shortcuts table over rs.
func NewShortcuts(rs []*rules.NetworkRule) (t *Shortcuts) {
	return &Shortcuts{
		rules: rs,
		byKey: map[string][]int{},
	}
}

// TryAdd implements the [Table] interface for *Shortcuts.  Rules with short
// shortcuts are not eligible.
func (t *Shortcuts) TryAdd(idx int) (ok bool) {
	s := t.rules[idx].Shortcut()
	if len(s) < shortcutLength {
		return false
	}

	key := s[:shortcutLength]
	t.byKey[key] = append(t.byKey[key], idx)
	t.length++

	return true
}

// AppendMatched implements the [Table] interface for *Shortcuts.
func (t *Shortcuts) AppendMatched(idxs []int, req *rules.Request) (res []int) {
	res = idxs

	u := req.URLLowerCase
	seen := container.NewMapSet[int]()
	for i := 0; i+shortcutLength <= len(u); i++ {
		for _, idx := range t.byKey[u[i:i+shortcutLength]] {
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

// Len implements the [Table] interface for *Shortcuts.
func (t *Shortcuts) Len() (n int) { return t.length }
