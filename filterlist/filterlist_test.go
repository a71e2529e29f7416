package filterlist_test

import (
	"bufio"
	"context"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/netfilter/filterlist"
	"github.com/AdguardTeam/netfilter/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testListID is the filter list ID for tests.
const testListID = 42

// testList is a filter list with every kind of line.
const testList = `[Adblock Plus 2.0]
! Title: Test list
# hosts comment

||example.org^
example.com##.banner
example.com#@#.banner
example.com#%#window.x = 1;
||example.net^$unknownmodifier
@@||example.org/allowed^
ad
/ads/*$script
`

// newConfig returns a new valid *filterlist.Config for tests.
func newConfig() (c *filterlist.Config) {
	return &filterlist.Config{
		Logger: slogutil.NewDiscardLogger(),
		ID:     testListID,
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	rs, st, err := filterlist.Parse(context.Background(), newConfig(), strings.NewReader(testList))
	require.NoError(t, err)

	assert.Equal(t, &filterlist.Stats{
		Total:    11,
		Compiled: 3,
		Skipped:  6,
		Errors:   2,
	}, st)

	require.Len(t, rs, 3)

	wantTexts := []string{"||example.org^", "@@||example.org/allowed^", "/ads/*$script"}
	wantIdxs := []int{4, 9, 11}
	for i, r := range rs {
		assert.Equal(t, wantTexts[i], r.Text())
		assert.Equal(t, wantIdxs[i], r.Index())
		assert.Equal(t, testListID, r.FilterListID())
	}
}

func TestParse_validatePattern(t *testing.T) {
	t.Parallel()

	c := newConfig()
	c.ValidatePattern = rules.NewComplexityValidator(&rules.ComplexityConfig{})

	const list = "/(a+)+b/$script\n||example.org^\n"

	rs, st, err := filterlist.Parse(context.Background(), c, strings.NewReader(list))
	require.NoError(t, err)
	require.Len(t, rs, 1)

	assert.Equal(t, "||example.org^", rs[0].Text())
	assert.Equal(t, 1, st.Errors)
	assert.Equal(t, 1, st.Compiled)
}

func TestParse_errors(t *testing.T) {
	t.Parallel()

	const errTest errors.Error = "test error"

	t.Run("nil_logger", func(t *testing.T) {
		t.Parallel()

		c := newConfig()
		c.Logger = nil

		_, _, err := filterlist.Parse(context.Background(), c, strings.NewReader(testList))
		assert.ErrorIs(t, err, errors.ErrNoValue)
	})

	t.Run("read", func(t *testing.T) {
		t.Parallel()

		r := iotest.ErrReader(errTest)
		_, _, err := filterlist.Parse(context.Background(), newConfig(), r)
		assert.ErrorIs(t, err, errTest)
	})

	t.Run("long_line", func(t *testing.T) {
		t.Parallel()

		long := "||example.org/" + strings.Repeat("a", filterlist.MaxLineLength)
		_, _, err := filterlist.Parse(context.Background(), newConfig(), strings.NewReader(long))
		assert.ErrorIs(t, err, bufio.ErrTooLong)
	})
}

func TestIsNetworkRule(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		line string
		want bool
	}{{
		name: "basic",
		line: "||example.org^",
		want: true,
	}, {
		name: "allowlist",
		line: "@@||example.org^$document",
		want: true,
	}, {
		name: "regexp",
		line: `/banner\d+/`,
		want: true,
	}, {
		name: "comment",
		line: "! comment",
		want: false,
	}, {
		name: "hosts_comment",
		line: "# comment",
		want: false,
	}, {
		name: "hash",
		line: "#",
		want: false,
	}, {
		name: "header",
		line: "[Adblock Plus 2.0]",
		want: false,
	}, {
		name: "element_hiding",
		line: "example.org##.banner",
		want: false,
	}, {
		name: "generic_element_hiding",
		line: "##.banner",
		want: false,
	}, {
		name: "extended_css",
		line: "example.org#?#div:has(> .ad)",
		want: false,
	}, {
		name: "css_injection",
		line: "example.org#$#body { padding: 0; }",
		want: false,
	}, {
		name: "script",
		line: "example.org#%#//scriptlet('abort-on-property-read', 'ads')",
		want: false,
	}, {
		name: "html_filtering",
		line: `example.org$$script[tag-content="ads"]`,
		want: false,
	}, {
		name: "html_filtering_exception",
		line: `example.org$@$script[tag-content="ads"]`,
		want: false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, filterlist.IsNetworkRule(tc.line))
		})
	}
}
