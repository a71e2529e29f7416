package rules

import (
	"slices"
)

// NegatesBadfilter returns true if r is a $badfilter rule that disables other.
// Both rules must be identical up to the $badfilter modifier, except that r
// may list a subset of the permitted domains of other.
func (r *NetworkRule) NegatesBadfilter(other *NetworkRule) (ok bool) {
	switch {
	case
		r.enabled&OptionBadfilter == 0,
		r.allowlist != other.allowlist,
		r.pattern.text != other.pattern.text,
		r.permittedTypes != other.permittedTypes,
		r.restrictedTypes != other.restrictedTypes,
		r.enabled^OptionBadfilter != other.enabled,
		r.disabled != other.disabled:
		return false
	default:
		return equalUnordered(r.domains.Restricted(), other.domains.Restricted()) &&
			intersectOrBothEmpty(r.domains.Permitted(), other.domains.Permitted())
	}
}

// equalUnordered returns true if a and b contain the same elements.
func equalUnordered(a, b []string) (ok bool) {
	if len(a) != len(b) {
		return false
	}

	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)

	return slices.Equal(a, b)
}

// intersectOrBothEmpty returns true if a and b have a common element or are
// both empty.
func intersectOrBothEmpty(a, b []string) (ok bool) {
	if len(a) == 0 && len(b) == 0 {
		return true
	}

	return slices.ContainsFunc(a, func(s string) (found bool) { return slices.Contains(b, s) })
}
