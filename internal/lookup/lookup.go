// Package lookup contains the indexes that narrow down the rules to check for
// a request.
package lookup

import "github.com/AdguardTeam/netfilter/rules"

// Table is an index over a slice of rules.  Rules are identified by their
// positions in that slice.
type Table interface {
	// TryAdd adds the rule at idx to the table and returns true if the rule
	// is eligible for it.
	TryAdd(idx int) (ok bool)

	// AppendMatched appends the positions of the rules of the table matching
	// req to idxs.  Each position is appended at most once.
	AppendMatched(idxs []int, req *rules.Request) (res []int)

	// Len returns the number of rules in the table.
	Len() (n int)
}
