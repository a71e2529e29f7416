package matching

import (
	"slices"

	"github.com/AdguardTeam/netfilter/rules"
)

// valueFunc returns the value of the category modifier of r.  An empty value
// of an allowlist rule cancels all blocking rules of the category.
type valueFunc func(r *rules.NetworkRule) (v string)

// overridePredicate returns true if the allowlist rule allow cancels the
// blocking rule block.
type overridePredicate func(allow, block *rules.NetworkRule) (ok bool)

// advancedValue is a [valueFunc] returning the advanced modifier value.
func advancedValue(r *rules.NetworkRule) (v string) {
	if m := r.AdvancedModifier(); m != nil {
		return m.Value()
	}

	return ""
}

// sameValue is an [overridePredicate] for modifiers compared by value.
func sameValue(allow, block *rules.NetworkRule) (ok bool) {
	return advancedValue(allow) == advancedValue(block)
}

// applyAllowlist replaces each blocking rule of rs with an allowlist rule of
// rs that is not lower in priority and either has an empty value or satisfies
// pred.  Blocking rules without such an allowlist rule are kept.  The result
// is deduplicated and keeps the order of rs.
func applyAllowlist(
	rs []*rules.NetworkRule,
	value valueFunc,
	pred overridePredicate,
) (res []*rules.NetworkRule) {
	var blocking, allowlist []*rules.NetworkRule
	var global *rules.NetworkRule
	for _, r := range rs {
		if !r.IsAllowlist() {
			blocking = append(blocking, r)

			continue
		}

		allowlist = append(allowlist, r)
		if value(r) == "" && (global == nil || r.IsHigherPriority(global)) {
			global = r
		}
	}

	if len(blocking) == 0 {
		return nil
	} else if len(allowlist) == 0 {
		return blocking
	}

	res = make([]*rules.NetworkRule, 0, len(blocking))
	for _, b := range blocking {
		res = append(res, findAllowlist(b, global, allowlist, pred))
	}

	return dedup(res)
}

// findAllowlist returns the rule that should be applied instead of the
// blocking rule b or b itself.
func findAllowlist(
	b *rules.NetworkRule,
	global *rules.NetworkRule,
	allowlist []*rules.NetworkRule,
	pred overridePredicate,
) (r *rules.NetworkRule) {
	if global != nil && !b.IsHigherPriority(global) {
		return global
	}

	i := slices.IndexFunc(allowlist, func(a *rules.NetworkRule) (ok bool) {
		return !b.IsHigherPriority(a) && pred(a, b)
	})
	if i >= 0 {
		return allowlist[i]
	}

	return b
}

// dedup removes the repeated rules from rs keeping the first occurrences.
func dedup(rs []*rules.NetworkRule) (res []*rules.NetworkRule) {
	res = rs[:0]
	seen := make(map[*rules.NetworkRule]struct{}, len(rs))
	for _, r := range rs {
		if _, ok := seen[r]; ok {
			continue
		}

		seen[r] = struct{}{}
		res = append(res, r)
	}

	return res
}

// removeBadfilterRules returns rs without the $badfilter rules and the rules
// they disable.
func removeBadfilterRules(rs []*rules.NetworkRule) (res []*rules.NetworkRule) {
	var badfilters []*rules.NetworkRule
	for _, r := range rs {
		if r.IsOptionEnabled(rules.OptionBadfilter) {
			badfilters = append(badfilters, r)
		}
	}

	if len(badfilters) == 0 {
		return rs
	}

	res = make([]*rules.NetworkRule, 0, len(rs))
	for _, r := range rs {
		if r.IsOptionEnabled(rules.OptionBadfilter) {
			continue
		}

		negated := slices.ContainsFunc(badfilters, func(b *rules.NetworkRule) (ok bool) {
			return b.NegatesBadfilter(r)
		})
		if !negated {
			res = append(res, r)
		}
	}

	return res
}

// highest returns the rule with the highest priority among rs, preferring the
// earlier ones on ties, or nil if rs has no non-nil rules.
func highest(rs ...*rules.NetworkRule) (best *rules.NetworkRule) {
	for _, r := range rs {
		if r != nil && (best == nil || r.IsHigherPriority(best)) {
			best = r
		}
	}

	return best
}
