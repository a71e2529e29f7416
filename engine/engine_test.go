package engine_test

import (
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/netfilter/engine"
	"github.com/AdguardTeam/netfilter/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRuleTexts are the rules for the engine tests.
var testRuleTexts = []string{
	"||example.org^",
	"||ads.example.net^$third-party",
	"/banner/*.gif",
	`/track\d+\.js/`,
	"||cdn.example.com/adserver/*$script,domain=example.org|example.com",
	"*$image,domain=example.com",
	"@@||example.com^$urlblock",
	"||example.org^$cookie=_ga",
	"@@||example.org/allowed^",
	"||example.org^$badfilter,domain=example.com",
	"*$media,domain=example.*",
	"ad",
}

// newTestEngine is a helper that returns an engine with testRuleTexts.
func newTestEngine(tb testing.TB, ttl time.Duration) (e *engine.Engine) {
	tb.Helper()

	var rs []*rules.NetworkRule
	for i, text := range testRuleTexts {
		r, err := rules.New(&rules.Config{
			Text:         text,
			FilterListID: 1,
			Index:        i,
		})
		if err != nil {
			continue
		}

		rs = append(rs, r)
	}

	e = engine.New(&engine.Config{
		Logger:   slogutil.NewDiscardLogger(),
		Rules:    rs,
		CacheTTL: ttl,
	})
	require.Equal(tb, len(rs), e.Len())

	return e
}

// testRequests returns the requests for the engine tests.
func testRequests() (reqs []*rules.Request) {
	return []*rules.Request{
		rules.NewRequest("https://example.org/", "", rules.TypeDocument),
		rules.NewRequest("https://example.org/allowed", "https://example.org/", rules.TypeXmlhttprequest),
		rules.NewRequest("https://ads.example.net/x.js", "https://example.org/", rules.TypeScript),
		rules.NewRequest("https://static.example.net/banner/1.gif", "https://example.com/", rules.TypeImage),
		rules.NewRequest("https://cdn.example.com/adserver/a.js", "https://www.example.org/", rules.TypeScript),
		rules.NewRequest("https://other.net/track12.js", "https://example.co.uk/", rules.TypeScript),
		rules.NewRequest("https://other.net/movie.mp4", "https://www.example.co.uk/", rules.TypeMedia),
		rules.NewRequest("https://other.net/pic.png", "https://example.com/", rules.TypeImage),
		rules.NewRequestForHostname("example.org"),
		rules.NewRequestForHostname("ads.example.net"),
	}
}

func TestEngine_MatchAll(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 0)

	var all []*rules.NetworkRule
	for _, text := range testRuleTexts {
		r, err := rules.NewNetworkRule(text, 1)
		if err == nil {
			all = append(all, r)
		}
	}

	for _, req := range testRequests() {
		var want []string
		for _, r := range all {
			if r.Match(req) {
				want = append(want, r.Text())
			}
		}

		var got []string
		for _, r := range e.MatchAll(req) {
			got = append(got, r.Text())
		}

		assert.Equal(t, want, got, req.URL)
	}
}

func TestEngine_Match(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		req  *rules.Request
		name string
		want string
	}{{
		req:  rules.NewRequest("https://example.org/", "", rules.TypeDocument),
		name: "blocked",
		want: "||example.org^",
	}, {
		req:  rules.NewRequest("https://example.org/allowed", "", rules.TypeXmlhttprequest),
		name: "allowlisted",
		want: "@@||example.org/allowed^",
	}, {
		req:  rules.NewRequest("https://ads.example.net/x.js", "https://example.org/", rules.TypeScript),
		name: "third_party",
		want: "||ads.example.net^$third-party",
	}, {
		req:  rules.NewRequest("https://ads.example.net/x.js", "https://example.com/", rules.TypeScript),
		name: "document_urlblock",
		want: "@@||example.com^$urlblock",
	}, {
		req:  rules.NewRequest("https://other.net/index.html", "", rules.TypeDocument),
		name: "none",
		want: "",
	}, {
		req:  rules.NewRequest("https://example.org/", "https://example.com/", rules.TypeScript),
		name: "urlblock_same_host",
		want: "@@||example.com^$urlblock",
	}}

	e := newTestEngine(t, time.Minute)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			for range 2 {
				r := e.Match(tc.req).GetBasicResult()
				if tc.want == "" {
					assert.Nil(t, r)
				} else {
					require.NotNil(t, r)
					assert.Equal(t, tc.want, r.Text())
				}
			}
		})
	}
}

func TestEngine_Match_cookie(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 0)
	res := e.Match(rules.NewRequest("https://example.org/", "", rules.TypeDocument))

	got := res.GetCookieRulesForName("_ga")
	require.Len(t, got, 1)

	assert.Equal(t, "||example.org^$cookie=_ga", got[0].Text())
	assert.Empty(t, res.GetCookieRulesForName("_gid"))
}

func TestEngine_Match_cache(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, time.Minute)
	req := rules.NewRequest("https://other.net/movie.mp4", "https://www.example.co.uk/", rules.TypeMedia)

	r := e.Match(req).GetBasicResult()
	require.NotNil(t, r)

	assert.Equal(t, "*$media,domain=example.*", r.Text())

	other := *req
	other.SourceHostname = "other.net"
	other.SourceDomain = "other.net"
	assert.Nil(t, e.Match(&other).GetBasicResult())
}

func BenchmarkEngine_Match(b *testing.B) {
	e := newTestEngine(b, 0)
	req := rules.NewRequest("https://cdn.example.com/adserver/a.js", "https://www.example.org/", rules.TypeScript)

	b.ReportAllocs()
	for b.Loop() {
		_ = e.Match(req)
	}
}
