package rules

import "math"

// Priority weight contributions of the rule properties.
const (
	weightBase            = 1
	weightRestriction     = 1
	weightTypesOrMethods  = 50
	weightHeader          = 50
	weightDomainsOrApps   = 100
	weightRedirect        = 1_000
	weightSpecificExclude = 10_000
	weightAllowlist       = 100_000
	weightImportant       = 1_000_000
)

// calculateWeight returns the priority weight of r.  The more specific the
// rule is, the higher is its weight.
func (r *NetworkRule) calculateWeight() (weight int) {
	w := float64(weightBase)

	// Tri-state options count whether they are enabled or disabled.
	w += float64(((r.enabled | r.disabled) & optionBasicWeighted).Count())

	if r.hasRestrictions() {
		w += weightRestriction
	}

	if n := r.permittedTypes.Count(); n > 0 {
		w += weightTypesOrMethods + weightTypesOrMethods/float64(n)
	}

	if n := len(r.methods.Permitted()); n > 0 {
		w += weightTypesOrMethods + weightTypesOrMethods/float64(n)
	}

	if r.header != nil {
		w += weightHeader
	}

	if n := len(r.domains.Permitted()) + len(r.apps.Permitted()); n > 0 {
		w += weightDomainsOrApps + weightDomainsOrApps/float64(n)
	}

	if r.enabled&OptionRedirect != 0 {
		w += weightRedirect
	}

	w += float64(weightSpecificExclude * (r.enabled & OptionDocumentExceptions).Count())

	if r.allowlist {
		w += weightAllowlist
	}

	if r.enabled&OptionImportant != 0 {
		w += weightImportant
	}

	return int(math.Ceil(w))
}

// hasRestrictions returns true if the rule has any negated or excluding
// constraint.
func (r *NetworkRule) hasRestrictions() (ok bool) {
	return len(r.domains.Restricted()) > 0 ||
		len(r.apps.Restricted()) > 0 ||
		len(r.methods.Restricted()) > 0 ||
		r.restrictedTypes != 0 ||
		r.denyAllow != nil ||
		r.to != nil
}
