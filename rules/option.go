package rules

import (
	"math/bits"
	"strings"
)

// Option is a set of boolean network rule modifiers.
type Option uint64

// Option values.
const (
	OptionThirdParty Option = 1 << iota
	OptionMatchCase
	OptionImportant
	OptionBadfilter

	// Document-level allowlist options.

	OptionElemhide
	OptionGenerichide
	OptionSpecifichide
	OptionGenericblock
	OptionJsinject
	OptionUrlblock
	OptionContent
	OptionExtension
	OptionStealth

	OptionPopup

	// Options carrying a value.

	OptionCsp
	OptionReplace
	OptionCookie
	OptionRedirect
	OptionRemoveParam
	OptionRemoveHeader
	OptionPermissions
	OptionHeader
	OptionMethod
	OptionTo
	OptionApp

	// DNS-level options.

	OptionNetwork
	OptionClient
	OptionCtag
	OptionDNSType
	OptionDNSRewrite
)

// Option masks.
const (
	// OptionAllowlistOnly are the options that can only be used in allowlist
	// rules.
	OptionAllowlistOnly = OptionElemhide |
		OptionGenerichide |
		OptionSpecifichide |
		OptionGenericblock |
		OptionJsinject |
		OptionUrlblock |
		OptionContent |
		OptionExtension |
		OptionStealth

	// OptionCosmeticExceptions are the options that disable some kind of
	// cosmetic filtering on a page.
	OptionCosmeticExceptions = OptionElemhide |
		OptionGenerichide |
		OptionSpecifichide |
		OptionJsinject |
		OptionContent

	// OptionAdvanced are the options that carry an [AdvancedModifier].
	OptionAdvanced = OptionCsp |
		OptionReplace |
		OptionCookie |
		OptionRedirect |
		OptionRemoveParam |
		OptionRemoveHeader |
		OptionPermissions |
		OptionDNSRewrite

	// OptionDocumentExceptions are the document-level exceptions that
	// contribute to the priority weight.
	OptionDocumentExceptions = OptionElemhide |
		OptionGenerichide |
		OptionSpecifichide |
		OptionContent |
		OptionUrlblock |
		OptionGenericblock |
		OptionJsinject |
		OptionExtension

	// optionBasicWeighted are the options that add to the priority weight
	// whether they are enabled or disabled.
	optionBasicWeighted = OptionThirdParty | OptionMatchCase | OptionDNSRewrite

	// optionNegatable are the options which may be prefixed with "~".
	optionNegatable = OptionThirdParty | OptionMatchCase | OptionExtension

	// optionRemoveParamCompatible are the options a $removeparam rule may
	// carry along with it.
	optionRemoveParamCompatible = OptionThirdParty |
		OptionImportant |
		OptionMatchCase |
		OptionRemoveParam |
		OptionBadfilter |
		OptionApp |
		OptionMethod |
		OptionTo

	// optionRemoveHeaderCompatible are the options a $removeheader rule may
	// carry along with it.
	optionRemoveHeaderCompatible = OptionThirdParty |
		OptionImportant |
		OptionMatchCase |
		OptionRemoveHeader |
		OptionBadfilter |
		OptionApp |
		OptionMethod |
		OptionTo

	// optionPermissionsCompatible are the options a $permissions rule may
	// carry along with it.
	optionPermissionsCompatible = OptionImportant |
		OptionPermissions |
		OptionBadfilter |
		OptionApp
)

// optionNames are the names of the options in the canonical form.
var optionNames = map[Option]string{
	OptionThirdParty:   "third-party",
	OptionMatchCase:    "match-case",
	OptionImportant:    "important",
	OptionBadfilter:    "badfilter",
	OptionElemhide:     "elemhide",
	OptionGenerichide:  "generichide",
	OptionSpecifichide: "specifichide",
	OptionGenericblock: "genericblock",
	OptionJsinject:     "jsinject",
	OptionUrlblock:     "urlblock",
	OptionContent:      "content",
	OptionExtension:    "extension",
	OptionStealth:      "stealth",
	OptionPopup:        "popup",
	OptionCsp:          "csp",
	OptionReplace:      "replace",
	OptionCookie:       "cookie",
	OptionRedirect:     "redirect",
	OptionRemoveParam:  "removeparam",
	OptionRemoveHeader: "removeheader",
	OptionPermissions:  "permissions",
	OptionHeader:       "header",
	OptionMethod:       "method",
	OptionTo:           "to",
	OptionApp:          "app",
	OptionNetwork:      "network",
	OptionClient:       "client",
	OptionCtag:         "ctag",
	OptionDNSType:      "dnstype",
	OptionDNSRewrite:   "dnsrewrite",
}

// Count returns the number of options set in o.
func (o Option) Count() (n int) {
	return bits.OnesCount64(uint64(o))
}

// Has returns true if all of other is set in o.
func (o Option) Has(other Option) (ok bool) {
	return o&other == other
}

// String implements the [fmt.Stringer] interface for Option.
func (o Option) String() (s string) {
	if o == 0 {
		return ""
	}

	var names []string
	for i := range 64 {
		bit := Option(1) << i
		if o&bit == 0 {
			continue
		}

		if name, ok := optionNames[bit]; ok {
			names = append(names, name)
		}
	}

	return strings.Join(names, ",")
}

// CosmeticOption is a set of cosmetic filtering kinds allowed on a page.
type CosmeticOption uint8

// CosmeticOption values.
const (
	CosmeticOptionGenericCSS CosmeticOption = 1 << iota
	CosmeticOptionSpecificCSS
	CosmeticOptionJS
	CosmeticOptionHTML

	CosmeticOptionNone CosmeticOption = 0
	CosmeticOptionAll                 = CosmeticOptionGenericCSS |
		CosmeticOptionSpecificCSS |
		CosmeticOptionJS |
		CosmeticOptionHTML
)
