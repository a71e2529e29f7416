// Package matching resolves the network rules matching a request into a single
// decision per modifier category.
package matching

import (
	"net/http"
	"slices"

	"github.com/AdguardTeam/netfilter/rules"
)

// Result is the set of rules matching a single request with the conflicts
// between them resolved.  It must not be shared between requests.
type Result struct {
	// basicRule is the rule that decides whether the request is blocked.
	basicRule *rules.NetworkRule

	// documentRule is the rule matching the document the request is made
	// from.
	documentRule *rules.NetworkRule

	// cosmeticExceptionRule is the rule that disables some cosmetic
	// filtering on the page.
	cosmeticExceptionRule *rules.NetworkRule

	// popupRule is the $popup rule that applies only to popups.
	popupRule *rules.NetworkRule

	cookieRules       []*rules.NetworkRule
	cspRules          []*rules.NetworkRule
	dnsRewriteRules   []*rules.NetworkRule
	headerRules       []*rules.NetworkRule
	permissionsRules  []*rules.NetworkRule
	redirectRules     []*rules.NetworkRule
	removeHeaderRules []*rules.NetworkRule
	removeParamRules  []*rules.NetworkRule
	replaceRules      []*rules.NetworkRule
	stealthRules      []*rules.NetworkRule
}

// NewResult returns the result for the rules matching the request.
// documentRule is the rule matching the document the request is made from,
// it may be nil.  On priority ties, the rule coming first in matched wins.
func NewResult(matched []*rules.NetworkRule, documentRule *rules.NetworkRule) (res *Result) {
	res = &Result{
		documentRule: documentRule,
	}

	for _, r := range removeBadfilterRules(matched) {
		if res.addToCategory(r) {
			continue
		}

		if r.EnabledOptions()&rules.OptionCosmeticExceptions != 0 {
			if res.cosmeticExceptionRule == nil || r.IsHigherPriority(res.cosmeticExceptionRule) {
				res.cosmeticExceptionRule = r
			}

			const alsoBasic = rules.OptionUrlblock | rules.OptionGenericblock | rules.OptionContent
			if r.EnabledOptions()&alsoBasic == 0 {
				continue
			}
		}

		if res.isGatedByDocument(r) {
			continue
		}

		if res.basicRule == nil || r.IsHigherPriority(res.basicRule) {
			res.basicRule = r
		}
	}

	return res
}

// addToCategory adds r to the list of its advanced category.  ok is false if
// r belongs to no such category.
func (res *Result) addToCategory(r *rules.NetworkRule) (ok bool) {
	switch opts := r.EnabledOptions(); {
	case opts&rules.OptionCookie != 0:
		res.cookieRules = append(res.cookieRules, r)
	case opts&rules.OptionReplace != 0:
		res.replaceRules = append(res.replaceRules, r)
	case opts&rules.OptionRemoveParam != 0:
		res.removeParamRules = append(res.removeParamRules, r)
	case opts&rules.OptionRemoveHeader != 0:
		res.removeHeaderRules = append(res.removeHeaderRules, r)
	case opts&rules.OptionRedirect != 0:
		res.redirectRules = append(res.redirectRules, r)
	case opts&rules.OptionCsp != 0:
		res.cspRules = append(res.cspRules, r)
	case opts&rules.OptionPermissions != 0:
		res.permissionsRules = append(res.permissionsRules, r)
	case opts&rules.OptionDNSRewrite != 0:
		res.dnsRewriteRules = append(res.dnsRewriteRules, r)
	case opts&rules.OptionStealth != 0:
		res.stealthRules = append(res.stealthRules, r)
	case opts&rules.OptionHeader != 0:
		res.headerRules = append(res.headerRules, r)
	case opts&rules.OptionPopup != 0 && r.PermittedRequestTypes() == rules.TypeDocument:
		if res.popupRule == nil || r.IsHigherPriority(res.popupRule) {
			res.popupRule = r
		}
	default:
		return false
	}

	return true
}

// isGatedByDocument returns true if the document rule disables the blocking
// rule r with $urlblock or, for generic rules, with $genericblock.
func (res *Result) isGatedByDocument(r *rules.NetworkRule) (ok bool) {
	d := res.documentRule
	if d == nil || !d.IsAllowlist() || r.IsAllowlist() || r.IsHigherPriority(d) {
		return false
	}

	return d.IsOptionEnabled(rules.OptionUrlblock) ||
		(d.IsOptionEnabled(rules.OptionGenericblock) && r.IsGeneric())
}

// disabledByDocument returns true if the basic or the document rule is an
// allowlist rule with opt enabled.
func (res *Result) disabledByDocument(opt rules.Option) (ok bool) {
	for _, r := range []*rules.NetworkRule{res.basicRule, res.documentRule} {
		if r != nil && r.IsAllowlist() && r.IsOptionEnabled(opt) {
			return true
		}
	}

	return false
}

// DocumentRule returns the rule matching the document of the request or nil.
func (res *Result) DocumentRule() (r *rules.NetworkRule) { return res.documentRule }

// GetBasicResult returns the rule deciding whether the request is blocked or
// nil if no rule applies.  An allowlist rule means that the request must not
// be blocked.
func (res *Result) GetBasicResult() (r *rules.NetworkRule) {
	basic := res.basicRule
	if ce := res.cosmeticExceptionRule; ce != nil && (basic == nil || ce.IsHigherPriority(basic)) {
		basic = ce
	}

	if basic == nil {
		const docOpts = rules.OptionUrlblock | rules.OptionGenericblock | rules.OptionContent
		if d := res.documentRule; d != nil && d.IsAllowlist() && d.EnabledOptions()&docOpts != 0 {
			basic = d
		}
	}

	// Defer the decision until the response body is available.
	if len(res.GetReplaceRules()) > 0 {
		const replaceOpts = rules.OptionReplace | rules.OptionContent
		if basic == nil || !basic.IsAllowlist() || basic.EnabledOptions()&replaceOpts == 0 {
			return nil
		}

		return basic
	}

	if redirect := res.resolveRedirect(basic); redirect != nil {
		if basic == nil || !basic.IsHigherPriority(redirect) {
			return redirect
		}
	}

	if basic == nil {
		return res.popupRule
	}

	return basic
}

// GetDocumentBlockingResult returns the rule blocking the document itself or
// nil.
func (res *Result) GetDocumentBlockingResult() (r *rules.NetworkRule) {
	r = res.GetBasicResult()
	if r == nil || r.IsAllowlist() || r.PermittedRequestTypes()&rules.TypeDocument == 0 {
		return nil
	}

	return r
}

// GetCosmeticOption returns the kinds of cosmetic filtering allowed on the
// page.
func (res *Result) GetCosmeticOption() (opt rules.CosmeticOption) {
	opt = rules.CosmeticOptionAll

	r := highest(res.cosmeticExceptionRule, res.basicRule, res.documentRule)
	if r == nil || !r.IsAllowlist() {
		return opt
	}

	if r.IsOptionEnabled(rules.OptionElemhide) {
		opt &^= rules.CosmeticOptionSpecificCSS | rules.CosmeticOptionGenericCSS
	}

	if r.IsOptionEnabled(rules.OptionGenerichide) {
		opt &^= rules.CosmeticOptionGenericCSS
	}

	if r.IsOptionEnabled(rules.OptionSpecifichide) {
		opt &^= rules.CosmeticOptionSpecificCSS
	}

	if r.IsOptionEnabled(rules.OptionJsinject) {
		opt &^= rules.CosmeticOptionJS
	}

	if r.IsOptionEnabled(rules.OptionContent) {
		opt &^= rules.CosmeticOptionHTML
	}

	return opt
}

// GetPopupRule returns the $popup rule that applies only to popups or nil.
func (res *Result) GetPopupRule() (r *rules.NetworkRule) { return res.popupRule }

// GetRedirectRule returns the $redirect rule to apply or nil.
func (res *Result) GetRedirectRule() (r *rules.NetworkRule) {
	return res.resolveRedirect(res.basicRule)
}

// resolveRedirect returns the highest-priority blocking redirect rule that
// isn't cancelled by an allowlist redirect rule.  $redirect-rule rules only
// apply if basic blocks the request.
func (res *Result) resolveRedirect(basic *rules.NetworkRule) (r *rules.NetworkRule) {
	if len(res.redirectRules) == 0 || res.disabledByDocument(rules.OptionUrlblock) {
		return nil
	}

	blocked := basic != nil && !basic.IsAllowlist()
	candidates := make([]*rules.NetworkRule, 0, len(res.redirectRules))
	for _, rr := range res.redirectRules {
		m, _ := rr.AdvancedModifier().(*rules.RedirectModifier)
		if rr.IsAllowlist() || m == nil || !m.OnlyIfBlocked() || blocked {
			candidates = append(candidates, rr)
		}
	}

	for _, rr := range applyAllowlist(candidates, advancedValue, sameValue) {
		if !rr.IsAllowlist() && (r == nil || rr.IsHigherPriority(r)) {
			r = rr
		}
	}

	return r
}

// GetCookieRules returns the $cookie rules to apply.
func (res *Result) GetCookieRules() (rs []*rules.NetworkRule) {
	if res.disabledByDocument(rules.OptionUrlblock) {
		return nil
	}

	return applyAllowlist(res.filterStealthCookieRules(res.cookieRules), advancedValue, cookieOverrides)
}

// GetCookieRulesForName returns the $cookie rules to apply to the cookie with
// the given name.
func (res *Result) GetCookieRulesForName(name string) (rs []*rules.NetworkRule) {
	if res.disabledByDocument(rules.OptionUrlblock) {
		return nil
	}

	var named []*rules.NetworkRule
	for _, r := range res.filterStealthCookieRules(res.cookieRules) {
		if m, ok := r.AdvancedModifier().(*rules.CookieModifier); ok && m.Match(name) {
			named = append(named, r)
		}
	}

	return applyAllowlist(named, advancedValue, func(allow, block *rules.NetworkRule) (ok bool) {
		m, _ := allow.AdvancedModifier().(*rules.CookieModifier)

		return sameValue(allow, block) || (m != nil && m.Match(name))
	})
}

// cookieOverrides is the [overridePredicate] for $cookie rules.
func cookieOverrides(allow, block *rules.NetworkRule) (ok bool) {
	if sameValue(allow, block) {
		return true
	}

	am, _ := allow.AdvancedModifier().(*rules.CookieModifier)
	bm, _ := block.AdvancedModifier().(*rules.CookieModifier)

	return am != nil && bm != nil && bm.Name() != "" && am.Match(bm.Name())
}

// filterStealthCookieRules removes the cookie rules synthesized by the stealth
// mode if a $stealth allowlist rule disables them.
func (res *Result) filterStealthCookieRules(rs []*rules.NetworkRule) (filtered []*rules.NetworkRule) {
	allow3p := res.GetStealthRule(rules.StealthBlockThirdPartyCookies) != nil
	allow1p := res.GetStealthRule(rules.StealthBlockFirstPartyCookies) != nil
	if !allow3p && !allow1p {
		return rs
	}

	for _, r := range rs {
		if r.FilterListID() == rules.StealthFilterListID {
			isThirdParty := r.IsOptionEnabled(rules.OptionThirdParty)
			if (isThirdParty && allow3p) || (!isThirdParty && allow1p) {
				continue
			}
		}

		filtered = append(filtered, r)
	}

	return filtered
}

// GetCSPRules returns the $csp rules to apply.  A global allowlist rule
// cancels all of them and is returned alone.
func (res *Result) GetCSPRules() (rs []*rules.NetworkRule) {
	if res.disabledByDocument(rules.OptionUrlblock) {
		return nil
	}

	var values []string
	blocking := map[string]*rules.NetworkRule{}
	allowlist := map[string]*rules.NetworkRule{}
	for _, r := range res.cspRules {
		v := advancedValue(r)
		if r.IsAllowlist() {
			if v == "" {
				return []*rules.NetworkRule{r}
			}

			if a := allowlist[v]; a == nil || r.IsHigherPriority(a) {
				allowlist[v] = r
			}

			continue
		}

		b, ok := blocking[v]
		if !ok {
			values = append(values, v)
		}

		if b == nil || r.IsHigherPriority(b) {
			blocking[v] = r
		}
	}

	for _, v := range values {
		r := blocking[v]
		if a := allowlist[v]; a != nil && a.IsHigherPriority(r) {
			r = a
		}

		rs = append(rs, r)
	}

	return rs
}

// GetReplaceRules returns the $replace rules to apply.
func (res *Result) GetReplaceRules() (rs []*rules.NetworkRule) {
	if res.disabledByDocument(rules.OptionContent) {
		return nil
	}

	return applyAllowlist(res.replaceRules, advancedValue, sameValue)
}

// GetRemoveParamRules returns the $removeparam rules to apply.
func (res *Result) GetRemoveParamRules() (rs []*rules.NetworkRule) {
	if res.disabledByDocument(rules.OptionUrlblock) {
		return nil
	}

	return applyAllowlist(res.removeParamRules, advancedValue, sameValue)
}

// GetRemoveHeaderRules returns the $removeheader rules to apply.
func (res *Result) GetRemoveHeaderRules() (rs []*rules.NetworkRule) {
	if res.disabledByDocument(rules.OptionUrlblock) {
		return nil
	}

	return applyAllowlist(res.removeHeaderRules, advancedValue, sameValue)
}

// GetPermissionsPolicyRules returns the $permissions rules to apply.  A global
// allowlist rule cancels all of them and is returned alone.
func (res *Result) GetPermissionsPolicyRules() (rs []*rules.NetworkRule) {
	if res.disabledByDocument(rules.OptionUrlblock) {
		return nil
	}

	for _, r := range res.permissionsRules {
		if r.IsAllowlist() && advancedValue(r) == "" {
			return []*rules.NetworkRule{r}
		}
	}

	return applyAllowlist(res.permissionsRules, advancedValue, func(allow, block *rules.NetworkRule) (ok bool) {
		return isSubdocumentScoped(allow) == isSubdocumentScoped(block) && sameValue(allow, block)
	})
}

// isSubdocumentScoped returns true if r only applies to subdocuments.
func isSubdocumentScoped(r *rules.NetworkRule) (ok bool) {
	return r.PermittedRequestTypes()&rules.TypeSubdocument != 0
}

// GetDNSRewriteRules returns the $dnsrewrite rules to apply.
func (res *Result) GetDNSRewriteRules() (rs []*rules.NetworkRule) {
	return applyAllowlist(res.dnsRewriteRules, advancedValue, sameValue)
}

// GetStealthRule returns the $stealth allowlist rule disabling opt, or a rule
// disabling the stealth mode entirely.  If opt is zero, only the latter is
// looked for.
func (res *Result) GetStealthRule(opt rules.StealthOption) (r *rules.NetworkRule) {
	candidates := res.stealthRules
	if d := res.documentRule; d != nil && d.IsAllowlist() && d.IsOptionEnabled(rules.OptionStealth) {
		candidates = append(candidates[:len(candidates):len(candidates)], d)
	}

	for _, c := range candidates {
		o := c.StealthOptions()
		if o == 0 || (opt != 0 && o&opt == opt) {
			return c
		}
	}

	return nil
}

// GetHeaderRules returns the $header rules that matched the request.  They
// still have to be checked against the response headers, see
// [Result.GetResponseHeadersResult].
func (res *Result) GetHeaderRules() (rs []*rules.NetworkRule) {
	return slices.Clone(res.headerRules)
}

// GetResponseHeadersResult returns the $header rule matching the response
// headers h, or the basic allowlist rule if it outranks it, or nil.
func (res *Result) GetResponseHeadersResult(h http.Header) (r *rules.NetworkRule) {
	var matched []*rules.NetworkRule
	for _, hr := range res.headerRules {
		if hr.MatchResponseHeaders(h) {
			matched = append(matched, hr)
		}
	}

	r = highest(applyAllowlist(matched, headerValue, sameHeader)...)
	if r == nil {
		return nil
	}

	if b := res.basicRule; b != nil && b.IsAllowlist() && b.IsHigherPriority(r) {
		return b
	}

	return r
}

// headerValue is the [valueFunc] for $header rules.  Header rules always
// have a value.
func headerValue(r *rules.NetworkRule) (v string) {
	return r.Header().String()
}

// sameHeader is the [overridePredicate] for $header rules.
func sameHeader(allow, block *rules.NetworkRule) (ok bool) {
	return headerValue(allow) == headerValue(block)
}
