// Package engine matches requests against a set of compiled network rules.
package engine

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/AdguardTeam/netfilter/internal/lookup"
	"github.com/AdguardTeam/netfilter/matching"
	"github.com/AdguardTeam/netfilter/rules"
	gocache "github.com/patrickmn/go-cache"
)

// Engine finds the rules matching a request and resolves them into a
// [matching.Result].  It's safe for concurrent use.
type Engine struct {
	logger *slog.Logger

	// cache maps the request keys to *cachedMatch.  It's nil if caching is
	// disabled.
	cache *gocache.Cache

	rules []*rules.NetworkRule

	// tables are the lookup tables in the order rules are tried to be added
	// to them.  Each rule is added to exactly one table.
	tables []lookup.Table
}

// cachedMatch is the cached matching state of a request.
type cachedMatch struct {
	matched []*rules.NetworkRule
	doc     *rules.NetworkRule
}

// New returns a new engine with the rules from c.  c must be valid.
func New(c *Config) (e *Engine) {
	rs := slices.Clip(slices.Clone(c.Rules))
	e = &Engine{
		logger: c.Logger,
		rules:  rs,
		tables: []lookup.Table{
			lookup.NewShortcuts(rs),
			lookup.NewDomains(rs),
			lookup.NewSeqScan(rs),
		},
	}

	if c.CacheTTL > 0 {
		e.cache = gocache.New(c.CacheTTL, 2*c.CacheTTL)
	}

	for idx := range rs {
		for _, t := range e.tables {
			if t.TryAdd(idx) {
				break
			}
		}
	}

	e.logger.Debug(
		"engine initialized",
		"rules", len(rs),
		"shortcuts", e.tables[0].Len(),
		"domains", e.tables[1].Len(),
		"seqscan", e.tables[2].Len(),
	)

	return e
}

// Len returns the number of rules in e.
func (e *Engine) Len() (n int) {
	return len(e.rules)
}

// MatchAll returns all rules matching req in the order they were passed to
// [New].
func (e *Engine) MatchAll(req *rules.Request) (matched []*rules.NetworkRule) {
	var idxs []int
	for _, t := range e.tables {
		idxs = t.AppendMatched(idxs, req)
	}

	slices.Sort(idxs)

	matched = make([]*rules.NetworkRule, 0, len(idxs))
	for _, idx := range idxs {
		matched = append(matched, e.rules[idx])
	}

	return matched
}

// Match returns the resolved result for req.  If req has a source URL, the
// rule matching the source document is taken into account.
func (e *Engine) Match(req *rules.Request) (res *matching.Result) {
	var key string
	if e.cache != nil {
		key = cacheKey(req)
		if v, ok := e.cache.Get(key); ok {
			cm, isMatch := v.(*cachedMatch)
			if !isMatch {
				panic(fmt.Errorf("engine: bad type %T in cache", v))
			}

			return matching.NewResult(cm.matched, cm.doc)
		}
	}

	cm := &cachedMatch{
		matched: e.MatchAll(req),
		doc:     e.documentRule(req),
	}

	if e.cache != nil {
		e.cache.SetDefault(key, cm)
	}

	e.logger.Debug("matched", "url", req.URL, "rules", len(cm.matched))

	return matching.NewResult(cm.matched, cm.doc)
}

// documentRule returns the rule deciding on the source document of req or
// nil.
func (e *Engine) documentRule(req *rules.Request) (r *rules.NetworkRule) {
	if req.SourceURL == "" {
		return nil
	}

	docReq := rules.NewRequest(req.SourceURL, "", rules.TypeDocument)

	return matching.NewResult(e.MatchAll(docReq), nil).GetBasicResult()
}

// cacheKey returns the key identifying all the properties of req used in
// matching.
func cacheKey(req *rules.Request) (key string) {
	sb := &strings.Builder{}
	for _, s := range []string{
		req.URL,
		req.URLLowerCase,
		req.Hostname,
		req.Domain,
		req.SourceURL,
		req.SourceHostname,
		req.SourceDomain,
		req.Method,
		req.ClientName,
		req.ClientIP.String(),
		strings.Join(req.SortedClientTags, ","),
		strconv.FormatUint(uint64(req.RequestType), 16),
		strconv.FormatUint(uint64(req.DNSType), 16),
		strconv.FormatUint(uint64(req.ThirdParty), 16),
		strconv.FormatBool(req.IsHostnameRequest),
	} {
		sb.WriteString(s)
		sb.WriteByte(0)
	}

	return sb.String()
}
