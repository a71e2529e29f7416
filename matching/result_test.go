package matching_test

import (
	"net/http"
	"testing"

	"github.com/AdguardTeam/netfilter/matching"
	"github.com/AdguardTeam/netfilter/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testListID is the filter list ID for tests.
const testListID = 1

// newRule is a helper that compiles text.
func newRule(tb testing.TB, text string) (r *rules.NetworkRule) {
	tb.Helper()

	r, err := rules.NewNetworkRule(text, testListID)
	require.NoError(tb, err)

	return r
}

// newRules is a helper that compiles texts.
func newRules(tb testing.TB, texts ...string) (rs []*rules.NetworkRule) {
	tb.Helper()

	for _, text := range texts {
		rs = append(rs, newRule(tb, text))
	}

	return rs
}

// ruleTexts returns the texts of rs.
func ruleTexts(rs []*rules.NetworkRule) (texts []string) {
	for _, r := range rs {
		texts = append(texts, r.Text())
	}

	return texts
}

// textOf returns the text of r or an empty string if r is nil.
func textOf(r *rules.NetworkRule) (text string) {
	if r == nil {
		return ""
	}

	return r.Text()
}

func TestResult_GetBasicResult(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		doc   string
		want  string
		texts []string
	}{{
		name:  "empty",
		doc:   "",
		want:  "",
		texts: nil,
	}, {
		name:  "blocking",
		doc:   "",
		want:  "||example.org^",
		texts: []string{"||example.org^"},
	}, {
		name:  "allowlist",
		doc:   "",
		want:  "@@||example.org^",
		texts: []string{"||example.org^", "@@||example.org^"},
	}, {
		name:  "important",
		doc:   "",
		want:  "||example.org^$important",
		texts: []string{"@@||example.org^", "||example.org^$important"},
	}, {
		name:  "important_allowlist",
		doc:   "",
		want:  "@@||example.org^$important",
		texts: []string{"||example.org^$important", "@@||example.org^$important"},
	}, {
		name:  "badfilter",
		doc:   "",
		want:  "",
		texts: []string{"||example.org^", "||example.org^$badfilter"},
	}, {
		name:  "equal_weight_first_wins",
		doc:   "",
		want:  "||example.org^",
		texts: []string{"||example.org^", "/banner/"},
	}, {
		name:  "document_urlblock",
		doc:   "@@||example.com^$urlblock",
		want:  "@@||example.com^$urlblock",
		texts: []string{"||example.org^"},
	}, {
		name:  "document_urlblock_outranked",
		doc:   "@@||example.com^$urlblock",
		want:  "||example.org^$important",
		texts: []string{"||example.org^$important"},
	}, {
		name:  "document_genericblock_generic",
		doc:   "@@||example.com^$genericblock",
		want:  "@@||example.com^$genericblock",
		texts: []string{"||example.org^"},
	}, {
		name:  "document_genericblock_specific",
		doc:   "@@||example.com^$genericblock",
		want:  "||example.org^$domain=example.com",
		texts: []string{"||example.org^$domain=example.com"},
	}, {
		name:  "redirect",
		doc:   "",
		want:  "||example.org^$redirect=noopjs",
		texts: []string{"||example.org^", "||example.org^$redirect=noopjs"},
	}, {
		name:  "redirect_outranked",
		doc:   "",
		want:  "@@||example.org^$important",
		texts: []string{"@@||example.org^$important", "||example.org^$redirect=noopjs"},
	}, {
		name:  "redirect_rule_not_blocked",
		doc:   "",
		want:  "",
		texts: []string{"||example.org^$redirect-rule=noopjs"},
	}, {
		name:  "redirect_rule_blocked",
		doc:   "",
		want:  "||example.org^$redirect-rule=noopjs",
		texts: []string{"||example.org^", "||example.org^$redirect-rule=noopjs"},
	}, {
		name:  "redirect_allowlisted",
		doc:   "",
		want:  "||example.org^",
		texts: []string{"||example.org^", "||example.org^$redirect=noopjs", "@@||example.org^$redirect=noopjs"},
	}, {
		name:  "replace_deferred",
		doc:   "",
		want:  "",
		texts: []string{"||example.org^", "||example.org^$replace=/a/b/"},
	}, {
		name:  "replace_allowlist",
		doc:   "",
		want:  "@@||example.org^$content",
		texts: []string{"||example.org^$replace=/a/b/", "@@||example.org^$content"},
	}, {
		name:  "popup",
		doc:   "",
		want:  "||example.org^$popup",
		texts: []string{"||example.org^$popup"},
	}, {
		name:  "cosmetic_exception",
		doc:   "",
		want:  "@@||example.org^$elemhide",
		texts: []string{"||example.org^", "@@||example.org^$elemhide"},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var doc *rules.NetworkRule
			if tc.doc != "" {
				doc = newRule(t, tc.doc)
			}

			res := matching.NewResult(newRules(t, tc.texts...), doc)
			assert.Equal(t, tc.want, textOf(res.GetBasicResult()))
		})
	}
}

func TestResult_GetDocumentBlockingResult(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		want  string
		texts []string
	}{{
		name:  "any_type",
		want:  "",
		texts: []string{"||example.org^"},
	}, {
		name:  "document",
		want:  "||example.org^$document",
		texts: []string{"||example.org^$document"},
	}, {
		name:  "all",
		want:  "||example.org^$all",
		texts: []string{"||example.org^$all"},
	}, {
		name:  "allowlist",
		want:  "",
		texts: []string{"||example.org^$document", "@@||example.org^$document"},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res := matching.NewResult(newRules(t, tc.texts...), nil)
			assert.Equal(t, tc.want, textOf(res.GetDocumentBlockingResult()))
		})
	}
}

func TestResult_GetCosmeticOption(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		doc   string
		texts []string
		want  rules.CosmeticOption
	}{{
		name:  "none",
		doc:   "",
		texts: nil,
		want:  rules.CosmeticOptionAll,
	}, {
		name:  "blocking",
		doc:   "",
		texts: []string{"||example.org^"},
		want:  rules.CosmeticOptionAll,
	}, {
		name:  "elemhide",
		doc:   "",
		texts: []string{"@@||example.org^$elemhide"},
		want:  rules.CosmeticOptionJS | rules.CosmeticOptionHTML,
	}, {
		name:  "generichide",
		doc:   "",
		texts: []string{"@@||example.org^$generichide"},
		want:  rules.CosmeticOptionAll &^ rules.CosmeticOptionGenericCSS,
	}, {
		name:  "specifichide",
		doc:   "",
		texts: []string{"@@||example.org^$specifichide"},
		want:  rules.CosmeticOptionAll &^ rules.CosmeticOptionSpecificCSS,
	}, {
		name:  "jsinject_content",
		doc:   "",
		texts: []string{"@@||example.org^$jsinject,content"},
		want:  rules.CosmeticOptionGenericCSS | rules.CosmeticOptionSpecificCSS,
	}, {
		name:  "document_rule",
		doc:   "@@||example.org^$document",
		texts: nil,
		want:  rules.CosmeticOptionNone,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var doc *rules.NetworkRule
			if tc.doc != "" {
				doc = newRule(t, tc.doc)
			}

			res := matching.NewResult(newRules(t, tc.texts...), doc)
			assert.Equal(t, tc.want, res.GetCosmeticOption())
		})
	}
}

func TestResult_GetCookieRulesForName(t *testing.T) {
	t.Parallel()

	matched := newRules(t, "$cookie=/.+/", "@@||example.org^$cookie=c_user")
	res := matching.NewResult(matched, nil)

	t.Run("allowlisted", func(t *testing.T) {
		t.Parallel()

		got := res.GetCookieRulesForName("c_user")
		assert.Equal(t, []string{"@@||example.org^$cookie=c_user"}, ruleTexts(got))
	})

	t.Run("other_name", func(t *testing.T) {
		t.Parallel()

		got := res.GetCookieRulesForName("other_name")
		assert.Equal(t, []string{"$cookie=/.+/"}, ruleTexts(got))
	})
}

func TestResult_GetCookieRules(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		doc   string
		texts []string
		want  []string
	}{{
		name:  "blocking_only",
		doc:   "",
		texts: []string{"||example.org^$cookie=a", "||example.org^$cookie=b"},
		want:  []string{"||example.org^$cookie=a", "||example.org^$cookie=b"},
	}, {
		name:  "allowlist_only",
		doc:   "",
		texts: []string{"@@||example.org^$cookie=a"},
		want:  nil,
	}, {
		name:  "same_value",
		doc:   "",
		texts: []string{"||example.org^$cookie=a", "||example.org^$cookie=b", "@@||example.org^$cookie=a"},
		want:  []string{"@@||example.org^$cookie=a", "||example.org^$cookie=b"},
	}, {
		name:  "allowlist_regexp_name",
		doc:   "",
		texts: []string{"||example.org^$cookie=_ga", "@@||example.org^$cookie=/^_g/"},
		want:  []string{"@@||example.org^$cookie=/^_g/"},
	}, {
		name:  "global_allowlist",
		doc:   "",
		texts: []string{"||example.org^$cookie=a", "||example.org^$cookie=b", "@@||example.org^$cookie"},
		want:  []string{"@@||example.org^$cookie"},
	}, {
		name:  "important_not_overridden",
		doc:   "",
		texts: []string{"||example.org^$cookie=a,important", "@@||example.org^$cookie"},
		want:  []string{"||example.org^$cookie=a,important"},
	}, {
		name:  "document_urlblock",
		doc:   "@@||example.org^$urlblock",
		texts: []string{"||example.org^$cookie=a"},
		want:  nil,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var doc *rules.NetworkRule
			if tc.doc != "" {
				doc = newRule(t, tc.doc)
			}

			res := matching.NewResult(newRules(t, tc.texts...), doc)
			assert.Equal(t, tc.want, ruleTexts(res.GetCookieRules()))
		})
	}
}

func TestResult_GetCookieRules_stealth(t *testing.T) {
	t.Parallel()

	stealth3p, err := rules.NewNetworkRule("$cookie,third-party", rules.StealthFilterListID)
	require.NoError(t, err)

	stealth1p, err := rules.NewNetworkRule("$cookie", rules.StealthFilterListID)
	require.NoError(t, err)

	testCases := []struct {
		name  string
		allow string
		want  []string
	}{{
		name:  "no_allowlist",
		allow: "",
		want:  []string{"$cookie,third-party", "$cookie"},
	}, {
		name:  "third_party",
		allow: "@@||example.org^$stealth=3p-cookie",
		want:  []string{"$cookie"},
	}, {
		name:  "first_party",
		allow: "@@||example.org^$stealth=1p-cookie",
		want:  []string{"$cookie,third-party"},
	}, {
		name:  "whole_stealth",
		allow: "@@||example.org^$stealth",
		want:  nil,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			matched := []*rules.NetworkRule{stealth3p, stealth1p}
			if tc.allow != "" {
				matched = append(matched, newRule(t, tc.allow))
			}

			res := matching.NewResult(matched, nil)
			assert.Equal(t, tc.want, ruleTexts(res.GetCookieRules()))
		})
	}
}

func TestResult_GetCSPRules(t *testing.T) {
	t.Parallel()

	const (
		blockFrames     = "||example.org^$csp=frame-src 'none'"
		blockFramesDom  = "||example.org^$csp=frame-src 'none',domain=example.org"
		blockScripts    = "||example.org^$csp=script-src 'self'"
		allowFrames     = "@@||example.org^$csp=frame-src 'none'"
		allowAll        = "@@||example.org^$csp"
		importantFrames = "||example.org^$csp=frame-src 'none',important"
	)

	testCases := []struct {
		name  string
		texts []string
		want  []string
	}{{
		name:  "single",
		texts: []string{blockFrames},
		want:  []string{blockFrames},
	}, {
		name:  "same_directive",
		texts: []string{blockFrames, blockFramesDom},
		want:  []string{blockFramesDom},
	}, {
		name:  "different_directives",
		texts: []string{blockFrames, blockScripts},
		want:  []string{blockFrames, blockScripts},
	}, {
		name:  "allowlisted",
		texts: []string{blockFrames, blockScripts, allowFrames},
		want:  []string{allowFrames, blockScripts},
	}, {
		name:  "important_outranks_allowlist",
		texts: []string{importantFrames, allowFrames},
		want:  []string{importantFrames},
	}, {
		name:  "global_allowlist",
		texts: []string{blockFrames, blockScripts, allowAll, importantFrames},
		want:  []string{allowAll},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res := matching.NewResult(newRules(t, tc.texts...), nil)
			assert.Equal(t, tc.want, ruleTexts(res.GetCSPRules()))
		})
	}
}

func TestResult_GetPermissionsPolicyRules(t *testing.T) {
	t.Parallel()

	const (
		blockCam    = "||example.org^$permissions=camera=()"
		blockCamSub = "||example.org^$permissions=camera=(),subdocument"
		blockGeo    = "||example.org^$permissions=geolocation=()"
		allowCam    = "@@||example.org^$permissions=camera=()"
		allowAll    = "@@||example.org^$permissions"
	)

	testCases := []struct {
		name  string
		texts []string
		want  []string
	}{{
		name:  "blocking",
		texts: []string{blockCam, blockGeo},
		want:  []string{blockCam, blockGeo},
	}, {
		name:  "allowlisted",
		texts: []string{blockCam, blockGeo, allowCam},
		want:  []string{allowCam, blockGeo},
	}, {
		name:  "different_scope",
		texts: []string{blockCamSub, allowCam},
		want:  []string{blockCamSub},
	}, {
		name:  "global_allowlist",
		texts: []string{blockCam, blockGeo, allowAll},
		want:  []string{allowAll},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res := matching.NewResult(newRules(t, tc.texts...), nil)
			assert.Equal(t, tc.want, ruleTexts(res.GetPermissionsPolicyRules()))
		})
	}
}

func TestResult_valueCategories(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		get   func(res *matching.Result) (rs []*rules.NetworkRule)
		name  string
		texts []string
		want  []string
	}{{
		get:  (*matching.Result).GetRemoveParamRules,
		name: "removeparam",
		texts: []string{
			"||example.org^$removeparam=utm_source",
			"||example.org^$removeparam=utm_medium",
			"@@||example.org^$removeparam=utm_source",
		},
		want: []string{"@@||example.org^$removeparam=utm_source", "||example.org^$removeparam=utm_medium"},
	}, {
		get:  (*matching.Result).GetRemoveHeaderRules,
		name: "removeheader",
		texts: []string{
			"||example.org^$removeheader=refresh",
			"@@||example.org^$removeheader",
		},
		want: []string{"@@||example.org^$removeheader"},
	}, {
		get:  (*matching.Result).GetReplaceRules,
		name: "replace",
		texts: []string{
			"||example.org^$replace=/ads/x/",
			"||example.org^$replace=/x/y/",
			"@@||example.org^$replace=/x/y/",
		},
		want: []string{"||example.org^$replace=/ads/x/", "@@||example.org^$replace=/x/y/"},
	}, {
		get:  (*matching.Result).GetDNSRewriteRules,
		name: "dnsrewrite",
		texts: []string{
			"||example.org^$dnsrewrite=1.2.3.4",
			"||example.org^$dnsrewrite=1.2.3.5",
			"@@||example.org^$dnsrewrite=1.2.3.5",
		},
		want: []string{"||example.org^$dnsrewrite=1.2.3.4", "@@||example.org^$dnsrewrite=1.2.3.5"},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res := matching.NewResult(newRules(t, tc.texts...), nil)
			assert.Equal(t, tc.want, ruleTexts(tc.get(res)))
		})
	}
}

func TestResult_GetRedirectRule(t *testing.T) {
	t.Parallel()

	res := matching.NewResult(newRules(
		t,
		"||example.org^$redirect=noopjs",
		"||example.org^$redirect=noopjs,domain=example.com",
		"@@||example.org^$redirect=nooptext",
	), nil)

	assert.Equal(t, "||example.org^$redirect=noopjs,domain=example.com", textOf(res.GetRedirectRule()))
}

func TestResult_GetStealthRule(t *testing.T) {
	t.Parallel()

	t.Run("options", func(t *testing.T) {
		t.Parallel()

		res := matching.NewResult(newRules(t, "@@||example.org^$stealth=referrer|donottrack"), nil)

		assert.NotNil(t, res.GetStealthRule(rules.StealthHideReferrer))
		assert.NotNil(t, res.GetStealthRule(rules.StealthSendDoNotTrack))
		assert.Nil(t, res.GetStealthRule(rules.StealthBlockWebRTC))
		assert.Nil(t, res.GetStealthRule(0))
	})

	t.Run("global", func(t *testing.T) {
		t.Parallel()

		res := matching.NewResult(newRules(t, "@@||example.org^$stealth"), nil)

		assert.NotNil(t, res.GetStealthRule(0))
		assert.NotNil(t, res.GetStealthRule(rules.StealthBlockWebRTC))
	})

	t.Run("document", func(t *testing.T) {
		t.Parallel()

		res := matching.NewResult(nil, newRule(t, "@@||example.org^$stealth"))

		assert.NotNil(t, res.GetStealthRule(0))
	})
}

func TestResult_GetResponseHeadersResult(t *testing.T) {
	t.Parallel()

	const (
		blockHeader = "||example.org^$header=set-cookie:foo"
		allowHeader = "@@||example.org^$header=set-cookie:foo"
		blockOther  = "||example.org^$header=x-frame-options"
	)

	h := http.Header{}
	h.Set("Set-Cookie", "foo")

	testCases := []struct {
		name  string
		want  string
		texts []string
	}{{
		name:  "blocking",
		want:  blockHeader,
		texts: []string{blockHeader},
	}, {
		name:  "not_matched",
		want:  "",
		texts: []string{blockOther},
	}, {
		name:  "allowlisted",
		want:  allowHeader,
		texts: []string{blockHeader, allowHeader},
	}, {
		name:  "basic_allowlist",
		want:  "@@||example.org^$important",
		texts: []string{blockHeader, "@@||example.org^$important"},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res := matching.NewResult(newRules(t, tc.texts...), nil)
			assert.Equal(t, tc.want, textOf(res.GetResponseHeadersResult(h)))
			assert.NotEmpty(t, res.GetHeaderRules())
		})
	}
}
