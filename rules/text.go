package rules

import (
	"strings"

	"github.com/AdguardTeam/golibs/stringutil"
)

// flagOrder is the order of the boolean modifiers in the canonical text.
var flagOrder = []Option{
	OptionThirdParty,
	OptionMatchCase,
	OptionImportant,
	OptionBadfilter,
	OptionPopup,
	OptionNetwork,
	OptionElemhide,
	OptionGenerichide,
	OptionSpecifichide,
	OptionGenericblock,
	OptionJsinject,
	OptionUrlblock,
	OptionContent,
	OptionExtension,
}

// CanonicalText returns the rule text re-derived from the compiled rule.  The
// result compiles into a rule with the same matching behavior and weight,
// though it may differ from the original text.
func (r *NetworkRule) CanonicalText() (text string) {
	sb := &strings.Builder{}
	if r.allowlist {
		sb.WriteString(maskAllowlist)
	}

	sb.WriteString(r.pattern.text)

	opts := r.canonicalOptions()
	if len(opts) == 0 {
		return sb.String()
	}

	stringutil.WriteToBuilder(sb, string(optionsDelimiter), strings.Join(opts, ","))

	return sb.String()
}

// canonicalOptions returns the modifiers of r in the rule syntax.
func (r *NetworkRule) canonicalOptions() (opts []string) {
	isAll := !r.allowlist && r.permittedTypes == TypeAll && r.enabled&OptionPopup != 0

	for _, o := range flagOrder {
		switch {
		case o == OptionPopup && isAll:
			// Implied by $all.
		case r.enabled&o != 0:
			opts = append(opts, optionNames[o])
		case r.disabled&o != 0:
			opts = append(opts, negationPrefix+optionNames[o])
		}
	}

	if isAll {
		opts = append(opts, "all")
	} else {
		opts = append(opts, r.canonicalTypes()...)
	}

	lists := []struct {
		name  string
		value string
	}{
		{"domain", r.domains.String()},
		{"denyallow", r.denyAllow.String()},
		{"to", r.to.String()},
		{"method", r.methods.String()},
		{"app", r.apps.String()},
		{"client", r.clients.String()},
		{"ctag", r.ctags.String()},
		{"dnstype", r.dnsTypes.String()},
	}

	for _, l := range lists {
		if l.value != "" {
			opts = append(opts, l.name+"="+escapeOptionValue(l.value))
		}
	}

	if r.header != nil {
		opts = append(opts, "header="+escapeOptionValue(r.header.String()))
	}

	if r.enabled&OptionStealth != 0 {
		opts = append(opts, withValue("stealth", r.stealth.String()))
	}

	if r.advanced != nil {
		opts = append(opts, withValue(r.advancedName(), r.advanced.Value()))
	}

	return opts
}

// canonicalTypes returns the content-type modifiers of r.
func (r *NetworkRule) canonicalTypes() (opts []string) {
	// Document-level rules and pure $popup rules get the document type by
	// default, and $document would enable more options in allowlist rules.
	const documentLevel = OptionDocumentExceptions | OptionPopup
	if r.permittedTypes == TypeDocument && r.enabled&documentLevel != 0 {
		return typeNames(r.restrictedTypes, negationPrefix)
	}

	return append(typeNames(r.permittedTypes, ""), typeNames(r.restrictedTypes, negationPrefix)...)
}

// typeNames returns the prefixed modifier names of the types in t.
func typeNames(t RequestType, prefix string) (names []string) {
	if t == 0 {
		return nil
	}

	for name := range strings.SplitSeq(t.String(), ",") {
		names = append(names, prefix+name)
	}

	return names
}

// advancedName returns the modifier name of the advanced modifier of r.
func (r *NetworkRule) advancedName() (name string) {
	switch m := r.advanced.(type) {
	case *CookieModifier:
		return "cookie"
	case *CSPModifier:
		return "csp"
	case *ReplaceModifier:
		return "replace"
	case *RedirectModifier:
		if m.onlyIfBlocked {
			return "redirect-rule"
		}

		return "redirect"
	case *RemoveParamModifier:
		return "removeparam"
	case *RemoveHeaderModifier:
		return "removeheader"
	case *PermissionsModifier:
		return "permissions"
	default:
		return "dnsrewrite"
	}
}

// withValue returns "name=value" or just "name" if value is empty.
func withValue(name, value string) (opt string) {
	if value == "" {
		return name
	}

	return name + "=" + escapeOptionValue(value)
}

// escapeOptionValue escapes the separators in a modifier value.
func escapeOptionValue(value string) (escaped string) {
	return strings.NewReplacer(",", `\,`, "$", `\$`).Replace(value)
}
