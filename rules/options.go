package rules

import (
	"fmt"
	"strings"
)

// negationPrefix negates a modifier.
const negationPrefix = "~"

// loadOptions parses the comma-separated modifiers and validates their
// combination.
func (r *NetworkRule) loadOptions(options string) (err error) {
	for _, opt := range splitEscaped(options, ',') {
		name, value, _ := strings.Cut(opt, "=")
		value = strings.ReplaceAll(value, `\$`, string(optionsDelimiter))

		name, negated := strings.CutPrefix(name, negationPrefix)
		err = r.loadOption(name, value, negated)
		if err != nil {
			return err
		}
	}

	r.setDefaultRequestTypes()

	return r.validateOptions()
}

// loadOption parses a single modifier.
//
//nolint:gocyclo // The switch is the parser.
func (r *NetworkRule) loadOption(name, value string, negated bool) (err error) {
	if t, ok := contentTypeModifiers[name]; ok {
		return r.setRequestType(name, value, t, !negated)
	}

	if negated && !isNegatable(name) {
		return modifierError(name, ErrNotNegatable)
	}

	switch name {
	case "third-party", "3p":
		return r.setFlag(name, value, OptionThirdParty, !negated)
	case "first-party", "1p":
		return r.setFlag(name, value, OptionThirdParty, negated)
	case "match-case":
		return r.setFlag(name, value, OptionMatchCase, !negated)
	case "important":
		return r.setFlag(name, value, OptionImportant, true)
	case "badfilter":
		return r.setFlag(name, value, OptionBadfilter, true)
	case "popup":
		return r.setFlag(name, value, OptionPopup, true)
	case "network":
		return r.setFlag(name, value, OptionNetwork, true)
	case "extension":
		return r.setFlag(name, value, OptionExtension, !negated)
	case "elemhide", "ehide":
		return r.setFlag(name, value, OptionElemhide, true)
	case "generichide", "ghide":
		return r.setFlag(name, value, OptionGenerichide, true)
	case "specifichide", "shide":
		return r.setFlag(name, value, OptionSpecifichide, true)
	case "genericblock":
		return r.setFlag(name, value, OptionGenericblock, true)
	case "jsinject":
		return r.setFlag(name, value, OptionJsinject, true)
	case "urlblock":
		return r.setFlag(name, value, OptionUrlblock, true)
	case "content":
		return r.setFlag(name, value, OptionContent, true)
	case "document", "doc":
		return r.loadDocument(name, value, negated)
	case "all":
		return r.loadAll(value)
	case "stealth":
		return r.loadStealth(value)
	default:
		return r.loadListOption(name, value)
	}
}

// loadListOption parses the modifiers with list values.
func (r *NetworkRule) loadListOption(name, value string) (err error) {
	switch name {
	case "domain":
		r.domains, err = parseDomainList(
			name,
			value,
			domainListAllowNegation|domainListAllowWildcard,
		)
	case "denyallow":
		r.denyAllow, err = parseDomainList(name, value, 0)
	case "to":
		r.enabled |= OptionTo
		r.to, err = parseDomainList(name, value, domainListAllowNegation)
	case "method":
		r.enabled |= OptionMethod
		r.methods, err = parseValueList(name, value, normalizeMethod, false)
	case "app":
		r.enabled |= OptionApp
		r.apps, err = parseValueList(name, value, normalizeApp, false)
	case "header":
		r.enabled |= OptionHeader
		r.header, err = parseHeaderMatcher(value)
	case "client":
		r.enabled |= OptionClient
		r.clients, err = parseClientList(value)
	case "ctag":
		r.enabled |= OptionCtag
		r.ctags, err = parseValueList(name, value, normalizeCtag, true)
	case "dnstype":
		r.enabled |= OptionDNSType
		r.dnsTypes, err = parseDNSTypeList(value)
	default:
		return r.loadAdvancedOption(name, value)
	}

	return err
}

// loadAdvancedOption parses the advanced modifiers.
func (r *NetworkRule) loadAdvancedOption(name, value string) (err error) {
	var opt Option
	var m AdvancedModifier
	switch name {
	case "csp":
		opt = OptionCsp
		m, err = requireValue(name, value, r.allowlist, parseCSPModifier)
	case "replace":
		opt = OptionReplace
		m, err = requireValue(name, value, r.allowlist, parseReplaceModifier)
	case "cookie":
		opt = OptionCookie
		m, err = parseAdvanced(parseCookieModifier(value))
	case "redirect", "redirect-rule":
		opt = OptionRedirect
		m, err = requireValue(name, value, r.allowlist, func(v string) (*RedirectModifier, error) {
			return parseRedirectModifier(name, v, name == "redirect-rule")
		})
	case "removeparam":
		opt = OptionRemoveParam
		m, err = parseAdvanced(parseRemoveParamModifier(value))
	case "removeheader":
		opt = OptionRemoveHeader
		m, err = requireValue(name, value, r.allowlist, parseRemoveHeaderModifier)
	case "permissions":
		opt = OptionPermissions
		m, err = requireValue(name, value, r.allowlist, parsePermissionsModifier)
	case "dnsrewrite":
		opt = OptionDNSRewrite
		m, err = requireValue(name, value, r.allowlist, parseDNSRewrite)
	default:
		return modifierError(name, ErrUnknownModifier)
	}

	if err != nil {
		return err
	}

	if r.advanced != nil {
		return modifierError(name, ErrMultipleAdvanced)
	}

	r.advanced = m
	r.enabled |= opt

	return nil
}

// parseAdvanced converts the result of a modifier parser into an
// [AdvancedModifier] without creating a non-nil interface holding a nil
// pointer.
func parseAdvanced[T AdvancedModifier](m T, err error) (am AdvancedModifier, resErr error) {
	if err != nil {
		return nil, err
	}

	return m, nil
}

// requireValue parses value with parse unless it's empty.  Empty values are
// only allowed in allowlist rules, where they disable all modifiers of the
// kind.
func requireValue[T AdvancedModifier](
	name string,
	value string,
	allowlist bool,
	parse func(v string) (m T, err error),
) (m AdvancedModifier, err error) {
	if value != "" {
		return parseAdvanced(parse(value))
	}

	if !allowlist {
		return nil, modifierError(name, ErrEmptyValue)
	}

	switch name {
	case "csp":
		return &CSPModifier{}, nil
	case "replace":
		return &ReplaceModifier{}, nil
	case "redirect", "redirect-rule":
		return &RedirectModifier{onlyIfBlocked: name == "redirect-rule"}, nil
	case "removeheader":
		return &RemoveHeaderModifier{}, nil
	case "permissions":
		return &PermissionsModifier{}, nil
	default:
		return &DNSRewrite{}, nil
	}
}

// optionAliases are the options set by the modifiers with non-canonical
// names.
var optionAliases = map[string]Option{
	"3p":          OptionThirdParty,
	"first-party": OptionThirdParty,
	"1p":          OptionThirdParty,
	"ehide":       OptionElemhide,
	"ghide":       OptionGenerichide,
	"shide":       OptionSpecifichide,
}

// isNegatable returns true if the modifier name may be prefixed with "~".
func isNegatable(name string) (ok bool) {
	if name == "document" || name == "doc" {
		return true
	}

	if opt, found := optionAliases[name]; found {
		return optionNegatable.Has(opt)
	}

	for opt, optName := range optionNames {
		if optName == name {
			return optionNegatable.Has(opt)
		}
	}

	return false
}

// setFlag enables or disables the boolean modifier opt.
func (r *NetworkRule) setFlag(name, value string, opt Option, enabled bool) (err error) {
	if value != "" {
		return valueError(name, value, ErrInvalidValue)
	}

	if opt&OptionAllowlistOnly != 0 && !r.allowlist {
		return modifierError(name, ErrAllowlistOnly)
	}

	if enabled {
		r.enabled |= opt
	} else {
		r.disabled |= opt
	}

	return nil
}

// setRequestType permits or restricts the request type t.
func (r *NetworkRule) setRequestType(name, value string, t RequestType, permitted bool) (err error) {
	if value != "" {
		return valueError(name, value, ErrInvalidValue)
	}

	if permitted {
		r.permittedTypes |= t
	} else {
		r.restrictedTypes |= t
	}

	return nil
}

// loadDocument parses $document.  In allowlist rules it also disables
// cosmetic filtering, scripts, and URL blocking on the page.
func (r *NetworkRule) loadDocument(name, value string, negated bool) (err error) {
	err = r.setRequestType(name, value, TypeDocument, !negated)
	if err != nil || negated || !r.allowlist {
		return err
	}

	r.enabled |= OptionElemhide | OptionJsinject | OptionUrlblock | OptionContent

	return nil
}

// loadAll parses $all.
func (r *NetworkRule) loadAll(value string) (err error) {
	if value != "" {
		return valueError("all", value, ErrInvalidValue)
	} else if r.allowlist {
		return modifierError("all", ErrAllowlistForbidden)
	}

	r.permittedTypes |= TypeAll
	r.enabled |= OptionPopup

	return nil
}

// loadStealth parses $stealth.
func (r *NetworkRule) loadStealth(value string) (err error) {
	if !r.allowlist {
		return modifierError("stealth", ErrAllowlistOnly)
	}

	r.stealth, err = parseStealthOptions(value)
	if err != nil {
		return err
	}

	r.enabled |= OptionStealth

	return nil
}

// setDefaultRequestTypes restricts the document-level rules and the pure
// $popup rules to documents unless the types are set explicitly.
func (r *NetworkRule) setDefaultRequestTypes() {
	if r.permittedTypes != 0 {
		return
	}

	const documentLevel = OptionDocumentExceptions | OptionPopup
	if r.enabled&documentLevel != 0 {
		r.permittedTypes = TypeDocument
	}
}

// validateOptions returns an error if the modifiers can't be used together.
func (r *NetworkRule) validateOptions() (err error) {
	if r.to != nil && r.denyAllow != nil {
		return fmt.Errorf("$to and $denyallow: %w", ErrIncompatibleModifiers)
	}

	switch {
	case r.enabled&OptionRemoveParam != 0:
		return checkCompatible("removeparam", r.enabled, optionRemoveParamCompatible)
	case r.enabled&OptionRemoveHeader != 0:
		return checkCompatible("removeheader", r.enabled, optionRemoveHeaderCompatible)
	case r.enabled&OptionPermissions != 0:
		err = checkCompatible("permissions", r.enabled, optionPermissionsCompatible)
		if err != nil {
			return err
		}

		if r.permittedTypes&^TypeSubdocument != 0 || r.restrictedTypes != 0 {
			return fmt.Errorf("$permissions with content types: %w", ErrIncompatibleModifiers)
		}
	}

	return nil
}

// checkCompatible returns an error if enabled has options outside of
// compatible.
func checkCompatible(name string, enabled, compatible Option) (err error) {
	if extra := enabled &^ compatible; extra != 0 {
		return fmt.Errorf("$%s with $%s: %w", name, extra, ErrIncompatibleModifiers)
	}

	return nil
}
