package rules_test

import (
	"testing"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/testutil"
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

func TestNew(t *testing.T) {
	t.Parallel()

	r, err := rules.New(&rules.Config{
		Text:         "  @@||example.org^$third-party,script,~image,domain=example.com|~sub.example.com  ",
		FilterListID: 42,
		Index:        7,
	})
	require.NoError(t, err)

	assert.Equal(t, "@@||example.org^$third-party,script,~image,domain=example.com|~sub.example.com", r.Text())
	assert.Equal(t, 42, r.FilterListID())
	assert.Equal(t, 7, r.Index())
	assert.Equal(t, "||example.org^", r.Pattern())
	assert.Equal(t, "example.org", r.Shortcut())
	assert.True(t, r.IsAllowlist())
	assert.False(t, r.IsRegexRule())
	assert.True(t, r.IsOptionEnabled(rules.OptionThirdParty))
	assert.False(t, r.IsOptionDisabled(rules.OptionThirdParty))
	assert.Equal(t, rules.TypeScript, r.PermittedRequestTypes())
	assert.Equal(t, rules.TypeImage, r.RestrictedRequestTypes())
	assert.Equal(t, []string{"example.com"}, r.PermittedDomains())
	assert.Equal(t, []string{"sub.example.com"}, r.RestrictedDomains())
	assert.False(t, r.IsGeneric())
	assert.Nil(t, r.AdvancedModifier())
}

func TestNew_options(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		wantEnabled  rules.Option
		wantDisabled rules.Option
		wantTypes    rules.RequestType
		name         string
		text         string
	}{{
		wantEnabled:  0,
		wantDisabled: rules.OptionThirdParty,
		wantTypes:    0,
		name:         "first_party",
		text:         "||example.org^$1p",
	}, {
		wantEnabled:  rules.OptionElemhide | rules.OptionJsinject | rules.OptionUrlblock | rules.OptionContent,
		wantDisabled: 0,
		wantTypes:    rules.TypeDocument,
		name:         "allowlist_document",
		text:         "@@||example.org^$document",
	}, {
		wantEnabled:  0,
		wantDisabled: 0,
		wantTypes:    rules.TypeDocument,
		name:         "blocking_document",
		text:         "||example.org^$doc",
	}, {
		wantEnabled:  rules.OptionPopup,
		wantDisabled: 0,
		wantTypes:    rules.TypeAll,
		name:         "all",
		text:         "||example.org^$all",
	}, {
		wantEnabled:  rules.OptionGenerichide,
		wantDisabled: 0,
		wantTypes:    rules.TypeDocument,
		name:         "short_alias",
		text:         "@@||example.org^$ghide",
	}, {
		wantEnabled:  rules.OptionPopup,
		wantDisabled: 0,
		wantTypes:    rules.TypeDocument,
		name:         "popup",
		text:         "||example.org^$popup",
	}, {
		wantEnabled:  rules.OptionMatchCase | rules.OptionImportant,
		wantDisabled: rules.OptionExtension,
		wantTypes:    rules.TypeScript | rules.TypeStylesheet,
		name:         "flags",
		text:         "@@/Ads.js$match-case,important,~extension,script,stylesheet",
	}, {
		wantEnabled:  rules.OptionThirdParty,
		wantDisabled: 0,
		wantTypes:    0,
		name:         "negated_first_party",
		text:         "||example.org^$~1p",
	}, {
		wantEnabled:  0,
		wantDisabled: rules.OptionMatchCase,
		wantTypes:    0,
		name:         "negated_match_case",
		text:         "||example.org^$~match-case",
	}, {
		wantEnabled:  rules.OptionMethod | rules.OptionTo,
		wantDisabled: 0,
		wantTypes:    0,
		name:         "lists",
		text:         "/ads/*$method=get|post,to=example.org",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := newRule(t, tc.text)
			assert.Equal(t, tc.wantEnabled, r.EnabledOptions())
			assert.Equal(t, tc.wantDisabled, r.DisabledOptions())
			assert.Equal(t, tc.wantTypes, r.PermittedRequestTypes())
		})
	}
}

func TestNew_advanced(t *testing.T) {
	t.Parallel()

	t.Run("replace_with_dollar_template", func(t *testing.T) {
		t.Parallel()

		r := newRule(t, `||example.org^$replace=/(ad)s/${1}x/g`)
		m := testutil.RequireTypeAssert[*rules.ReplaceModifier](t, r.AdvancedModifier())

		assert.Equal(t, "||example.org^", r.Pattern())
		assert.Equal(t, "adx adx", m.Apply("ads ads"))
	})

	t.Run("regexp_rule_with_replace", func(t *testing.T) {
		t.Parallel()

		r := newRule(t, `/banner\d+/$replace=/banner/ad/`)
		m := testutil.RequireTypeAssert[*rules.ReplaceModifier](t, r.AdvancedModifier())

		assert.True(t, r.IsRegexRule())
		assert.Equal(t, "ad1 banner2", m.Apply("banner1 banner2"))
	})

	t.Run("regexp_rule_with_dollar", func(t *testing.T) {
		t.Parallel()

		r := newRule(t, `/ads$/`)

		assert.True(t, r.IsRegexRule())
		assert.Equal(t, `/ads$/`, r.Pattern())
	})

	t.Run("cookie", func(t *testing.T) {
		t.Parallel()

		r := newRule(t, "||example.org^$cookie=__utm;maxAge=3600;sameSite=lax")
		m := testutil.RequireTypeAssert[*rules.CookieModifier](t, r.AdvancedModifier())

		assert.True(t, r.IsOptionEnabled(rules.OptionCookie))
		assert.Equal(t, "__utm", m.Name())
		assert.Equal(t, 3600, m.MaxAge())
		assert.Equal(t, rules.CookieSameSiteLax, m.SameSite())
		assert.True(t, m.IsModifying())
		assert.True(t, m.Match("__utm"))
		assert.False(t, m.Match("__utmz"))
	})

	t.Run("redirect_rule", func(t *testing.T) {
		t.Parallel()

		r := newRule(t, "||example.org/ads.js$script,redirect-rule=noopjs")
		m := testutil.RequireTypeAssert[*rules.RedirectModifier](t, r.AdvancedModifier())

		assert.Equal(t, "noopjs", m.Resource())
		assert.True(t, m.OnlyIfBlocked())
	})

	t.Run("removeparam", func(t *testing.T) {
		t.Parallel()

		r := newRule(t, "$removeparam=~/^utm_/")
		m := testutil.RequireTypeAssert[*rules.RemoveParamModifier](t, r.AdvancedModifier())

		assert.False(t, m.MatchParam("utm_source"))
		assert.True(t, m.MatchParam("fbclid"))
	})

	t.Run("removeheader", func(t *testing.T) {
		t.Parallel()

		r := newRule(t, "||example.org^$removeheader=request:X-Client-Data")
		m := testutil.RequireTypeAssert[*rules.RemoveHeaderModifier](t, r.AdvancedModifier())

		assert.Equal(t, "x-client-data", m.HeaderName())
		assert.True(t, m.IsRequestHeader())
	})

	t.Run("permissions", func(t *testing.T) {
		t.Parallel()

		r := newRule(t, "$permissions=autoplay=()|geolocation=(self)")
		m := testutil.RequireTypeAssert[*rules.PermissionsModifier](t, r.AdvancedModifier())

		assert.Equal(t, "autoplay=(), geolocation=(self)", m.PolicyDirective())
	})

	t.Run("csp", func(t *testing.T) {
		t.Parallel()

		r := newRule(t, "||example.org^$csp=frame-src 'none'; script-src 'self'")
		m := testutil.RequireTypeAssert[*rules.CSPModifier](t, r.AdvancedModifier())

		assert.Equal(t, []string{"frame-src", "script-src"}, m.Directives())
	})
}

func TestNew_errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		wantErr error
		name    string
		text    string
	}{{
		wantErr: rules.ErrTooGeneral,
		name:    "empty",
		text:    "",
	}, {
		wantErr: rules.ErrTooGeneral,
		name:    "too_general",
		text:    "ads",
	}, {
		wantErr: rules.ErrUnknownModifier,
		name:    "unknown",
		text:    "||example.org^$unknown",
	}, {
		wantErr: rules.ErrNotNegatable,
		name:    "not_negatable",
		text:    "||example.org^$~important",
	}, {
		wantErr: rules.ErrNotNegatable,
		name:    "not_negatable_alias",
		text:    "@@||example.org^$~ehide",
	}, {
		wantErr: rules.ErrAllowlistOnly,
		name:    "allowlist_only",
		text:    "||example.org^$elemhide",
	}, {
		wantErr: rules.ErrAllowlistOnly,
		name:    "stealth_blocking",
		text:    "||example.org^$stealth",
	}, {
		wantErr: rules.ErrAllowlistForbidden,
		name:    "allowlist_all",
		text:    "@@||example.org^$all",
	}, {
		wantErr: rules.ErrMultipleAdvanced,
		name:    "multiple_advanced",
		text:    "||example.org^$csp=frame-src 'none',redirect=noopjs",
	}, {
		wantErr: rules.ErrIncompatibleModifiers,
		name:    "to_denyallow",
		text:    "/ads/*$to=example.org,denyallow=example.com",
	}, {
		wantErr: rules.ErrIncompatibleModifiers,
		name:    "removeparam_popup",
		text:    "$removeparam=utm,popup",
	}, {
		wantErr: rules.ErrIncompatibleModifiers,
		name:    "permissions_script",
		text:    "$permissions=camera=(),script",
	}, {
		wantErr: rules.ErrIncompatibleModifiers,
		name:    "mixed_methods",
		text:    "/ads/*$method=get|~post",
	}, {
		wantErr: rules.ErrEmptyValue,
		name:    "empty_csp",
		text:    "||example.org^$csp",
	}, {
		wantErr: rules.ErrEmptyValue,
		name:    "empty_domain",
		text:    "||example.org^$domain=",
	}, {
		wantErr: rules.ErrInvalidValue,
		name:    "flag_value",
		text:    "||example.org^$important=1",
	}, {
		wantErr: rules.ErrInvalidValue,
		name:    "bad_domain",
		text:    "||example.org^$domain=exa mple.org",
	}, {
		wantErr: rules.ErrInvalidValue,
		name:    "bad_domain_char",
		text:    "||example.org^$domain=exa+mple.org",
	}, {
		wantErr: rules.ErrInvalidValue,
		name:    "bad_to",
		text:    "/ads/*$to=exa..mple.org",
	}, {
		wantErr: rules.ErrInvalidValue,
		name:    "bad_denyallow",
		text:    "/ads/*$denyallow=exa mple.org",
	}, {
		wantErr: rules.ErrInvalidValue,
		name:    "csp_report",
		text:    "||example.org^$csp=report-uri /x",
	}, {
		wantErr: rules.ErrInvalidValue,
		name:    "bad_stealth",
		text:    "@@||example.org^$stealth=unknown",
	}, {
		wantErr: rules.ErrInvalidValue,
		name:    "bad_method",
		text:    "/ads/*$method=fetch",
	}, {
		wantErr: rules.ErrNotNegatable,
		name:    "negated_denyallow",
		text:    "/ads/*$denyallow=~example.org",
	}, {
		wantErr: rules.ErrInvalidPattern,
		name:    "bad_regexp",
		text:    "/ads(/",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r, err := rules.NewNetworkRule(tc.text, testListID)
			require.Error(t, err)

			assert.Nil(t, r)
			assert.ErrorIs(t, err, tc.wantErr)

			synErr := &rules.RuleSyntaxError{}
			require.True(t, errors.As(err, &synErr))

			assert.Equal(t, tc.text, synErr.RuleText)
		})
	}
}

func TestRuleSyntaxError_Error(t *testing.T) {
	t.Parallel()

	_, err := rules.NewNetworkRule("||example.org^$unknown", testListID)
	testutil.AssertErrorMsg(t, `rule "||example.org^$unknown": $unknown: unknown modifier`, err)
}

func TestNetworkRule_NegatesBadfilter(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		rule      string
		badfilter string
		want      assert.BoolAssertionFunc
	}{{
		name:      "same",
		rule:      "*$image,domain=example.org",
		badfilter: "*$image,domain=example.org,badfilter",
		want:      assert.True,
	}, {
		name:      "other_domain",
		rule:      "*$image,domain=example.org",
		badfilter: "*$image,domain=example.com,badfilter",
		want:      assert.False,
	}, {
		name:      "common_domain",
		rule:      "*$image,domain=example.org|example.net",
		badfilter: "*$image,domain=example.org,badfilter",
		want:      assert.True,
	}, {
		name:      "no_domains",
		rule:      "||example.org^",
		badfilter: "||example.org^$badfilter",
		want:      assert.True,
	}, {
		name:      "other_allowlist",
		rule:      "@@||example.org^",
		badfilter: "||example.org^$badfilter",
		want:      assert.False,
	}, {
		name:      "other_types",
		rule:      "||example.org^$script",
		badfilter: "||example.org^$image,badfilter",
		want:      assert.False,
	}, {
		name:      "other_options",
		rule:      "||example.org^$third-party",
		badfilter: "||example.org^$badfilter",
		want:      assert.False,
	}, {
		name:      "other_pattern",
		rule:      "||example.com^",
		badfilter: "||example.org^$badfilter",
		want:      assert.False,
	}, {
		name:      "restricted_domains",
		rule:      "*$image,domain=~example.org|~example.com",
		badfilter: "*$image,domain=~example.com|~example.org,badfilter",
		want:      assert.True,
	}, {
		name:      "not_badfilter",
		rule:      "||example.org^",
		badfilter: "||example.org^",
		want:      assert.False,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := newRule(t, tc.rule)
			b := newRule(t, tc.badfilter)
			tc.want(t, b.NegatesBadfilter(r))
		})
	}
}
