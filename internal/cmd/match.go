package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/netfilter/engine"
	"github.com/AdguardTeam/netfilter/filterlist"
	"github.com/AdguardTeam/netfilter/matching"
	"github.com/AdguardTeam/netfilter/rules"
	"github.com/miekg/dns"
)

// inlineListID is the filter list ID of the rules from the configuration.
const inlineListID = 0

// runMatch loads the rules, matches the requests from conf, and writes a JSON
// decision for each of them to out, one per line.  l must not be nil.
func runMatch(ctx context.Context, l *slog.Logger, conf *configuration, out io.Writer) (err error) {
	rs, err := loadRules(ctx, l, conf)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	engConf := &engine.Config{
		Logger:   l.With(slogutil.KeyPrefix, "engine"),
		Rules:    rs,
		CacheTTL: time.Duration(conf.CacheTTL),
	}

	err = engConf.Validate()
	if err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	eng := engine.New(engConf)
	enc := json.NewEncoder(out)
	for _, req := range newRequests(conf) {
		err = enc.Encode(newDecision(req, eng.Match(req)))
		if err != nil {
			return fmt.Errorf("writing decision: %w", err)
		}
	}

	return nil
}

// loadRules compiles the inline rules and the filter lists from conf in the
// order of their filter list IDs.
func loadRules(
	ctx context.Context,
	l *slog.Logger,
	conf *configuration,
) (rs []*rules.NetworkRule, err error) {
	listConf := &filterlist.Config{
		Logger: l.With(slogutil.KeyPrefix, "filterlist"),
		ID:     inlineListID,
	}

	if conf.MaxPatternLength > 0 || conf.MaxAlternatives > 0 {
		listConf.ValidatePattern = rules.NewComplexityValidator(&rules.ComplexityConfig{
			MaxLength:       conf.MaxPatternLength,
			MaxAlternatives: conf.MaxAlternatives,
		})
	}

	if len(conf.Rules) > 0 {
		text := strings.Join(conf.Rules, "\n")
		rs, _, err = filterlist.Parse(ctx, listConf, strings.NewReader(text))
		if err != nil {
			return nil, fmt.Errorf("inline rules: %w", err)
		}
	}

	for i, path := range conf.FilterLists {
		listConf.ID = i + 1

		var listRules []*rules.NetworkRule
		listRules, err = loadFilterList(ctx, listConf, path)
		if err != nil {
			return nil, fmt.Errorf("filter list at index %d: %w", i, err)
		}

		rs = append(rs, listRules...)
	}

	l.InfoContext(ctx, "rules loaded", "count", len(rs), "lists", len(conf.FilterLists))

	return rs, nil
}

// loadFilterList compiles the filter list file at path.
func loadFilterList(
	ctx context.Context,
	c *filterlist.Config,
	path string,
) (rs []*rules.NetworkRule, err error) {
	// #nosec G304 -- Trust the file path that is given in the configuration.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, f.Close()) }()

	rs, _, err = filterlist.Parse(ctx, c, f)

	return rs, err
}

// newRequests returns the requests described by conf.  conf must be valid.
func newRequests(conf *configuration) (reqs []*rules.Request) {
	typ, _ := rules.ParseRequestType(conf.RequestType)
	for _, u := range conf.URLs {
		req := rules.NewRequest(u, conf.SourceURL, typ)
		req.Method = conf.Method
		reqs = append(reqs, req)
	}

	dnsType := dns.StringToType[strings.ToUpper(conf.DNSType)]
	clientIP, _ := netip.ParseAddr(conf.ClientIP)
	tags := slices.Sorted(slices.Values(conf.ClientTags))
	for _, host := range conf.Hostnames {
		req := rules.NewRequestForHostname(host)
		req.DNSType = dnsType
		req.ClientIP = clientIP
		req.ClientName = conf.ClientName
		req.SortedClientTags = tags
		reqs = append(reqs, req)
	}

	return reqs
}

// ruleInfo is the JSON representation of a rule in a decision.
type ruleInfo struct {
	Text   string `json:"text"`
	ListID int    `json:"list_id"`
	Index  int    `json:"index"`
}

// newRuleInfo returns the JSON representation of r or nil if r is nil.
func newRuleInfo(r *rules.NetworkRule) (ri *ruleInfo) {
	if r == nil {
		return nil
	}

	return &ruleInfo{
		Text:   r.Text(),
		ListID: r.FilterListID(),
		Index:  r.Index(),
	}
}

// newRuleInfos returns the JSON representations of rs.
func newRuleInfos(rs []*rules.NetworkRule) (ris []*ruleInfo) {
	for _, r := range rs {
		ris = append(ris, newRuleInfo(r))
	}

	return ris
}

// decision is the JSON representation of the matching result of a request.
type decision struct {
	Basic           *ruleInfo   `json:"basic,omitempty"`
	Document        *ruleInfo   `json:"document,omitempty"`
	Popup           *ruleInfo   `json:"popup,omitempty"`
	Redirect        *ruleInfo   `json:"redirect,omitempty"`
	URL             string      `json:"url"`
	Cosmetic        string      `json:"cosmetic"`
	Cookie          []*ruleInfo `json:"cookie,omitempty"`
	CSP             []*ruleInfo `json:"csp,omitempty"`
	DNSRewrite      []*ruleInfo `json:"dnsrewrite,omitempty"`
	Permissions     []*ruleInfo `json:"permissions,omitempty"`
	RemoveHeader    []*ruleInfo `json:"removeheader,omitempty"`
	RemoveParam     []*ruleInfo `json:"removeparam,omitempty"`
	Replace         []*ruleInfo `json:"replace,omitempty"`
	Blocked         bool        `json:"blocked"`
	DocumentBlocked bool        `json:"document_blocked"`
}

// newDecision returns the decision for req resolved from res.
func newDecision(req *rules.Request, res *matching.Result) (d *decision) {
	basic := res.GetBasicResult()
	d = &decision{
		Basic:           newRuleInfo(basic),
		Document:        newRuleInfo(res.DocumentRule()),
		Popup:           newRuleInfo(res.GetPopupRule()),
		Redirect:        newRuleInfo(res.GetRedirectRule()),
		URL:             req.URL,
		Cosmetic:        cosmeticString(res.GetCosmeticOption()),
		Cookie:          newRuleInfos(res.GetCookieRules()),
		CSP:             newRuleInfos(res.GetCSPRules()),
		DNSRewrite:      newRuleInfos(res.GetDNSRewriteRules()),
		Permissions:     newRuleInfos(res.GetPermissionsPolicyRules()),
		RemoveHeader:    newRuleInfos(res.GetRemoveHeaderRules()),
		RemoveParam:     newRuleInfos(res.GetRemoveParamRules()),
		Replace:         newRuleInfos(res.GetReplaceRules()),
		Blocked:         basic != nil && !basic.IsAllowlist(),
		DocumentBlocked: res.GetDocumentBlockingResult() != nil,
	}

	return d
}

// cosmeticString returns the comma-separated names of the cosmetic filtering
// kinds in opt.
func cosmeticString(opt rules.CosmeticOption) (s string) {
	var names []string
	for _, k := range []struct {
		name string
		opt  rules.CosmeticOption
	}{{
		name: "generic_css",
		opt:  rules.CosmeticOptionGenericCSS,
	}, {
		name: "specific_css",
		opt:  rules.CosmeticOptionSpecificCSS,
	}, {
		name: "js",
		opt:  rules.CosmeticOptionJS,
	}, {
		name: "html",
		opt:  rules.CosmeticOptionHTML,
	}} {
		if opt&k.opt != 0 {
			names = append(names, k.name)
		}
	}

	return strings.Join(names, ",")
}
