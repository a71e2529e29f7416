// Package filterlist compiles filter lists into network rules.
package filterlist

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/AdguardTeam/netfilter/rules"
)

// MaxLineLength is the maximum length of a single line of a filter list.
// Longer lines fail the whole list.
const MaxLineLength = 64 * 1024

// Config is the configuration for [Parse].
type Config struct {
	// Logger is used to log rules that fail to compile.  It must not be nil.
	Logger *slog.Logger

	// ValidatePattern, if not nil, is passed to every compiled rule.  See
	// [rules.Config.ValidatePattern].
	ValidatePattern rules.PatternValidator

	// ID is the ID of the filter list.  It's set as the filter list ID of
	// every compiled rule.
	ID int
}

// type check
var _ validate.Interface = (*Config)(nil)

// Validate implements the [validate.Interface] interface for *Config.
func (c *Config) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	return validate.NotNil("Logger", c.Logger)
}

// Stats is the statistics of a single [Parse] call.  Total is always the sum
// of the other fields.
type Stats struct {
	// Total is the number of non-empty lines.
	Total int

	// Compiled is the number of network rules compiled.
	Compiled int

	// Skipped is the number of comments, list headers and cosmetic rules.
	Skipped int

	// Errors is the number of network rules that failed to compile.
	Errors int
}

// Parse reads a filter list from r and compiles each line into a network rule.
// Lines that aren't network rules are skipped.  Rules that fail to compile are
// logged and counted, but don't fail the list.  The index of each rule is its
// zero-based line number.  err is only returned for invalid c and read errors.
func Parse(
	ctx context.Context,
	c *Config,
	r io.Reader,
) (rs []*rules.NetworkRule, st *Stats, err error) {
	err = c.Validate()
	if err != nil {
		return nil, nil, fmt.Errorf("filter list config: %w", err)
	}

	st = &Stats{}
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), MaxLineLength)

	for idx := 0; s.Scan(); idx++ {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}

		st.Total++
		if !IsNetworkRule(line) {
			st.Skipped++

			continue
		}

		var nr *rules.NetworkRule
		nr, err = rules.New(&rules.Config{
			ValidatePattern: c.ValidatePattern,
			Text:            line,
			FilterListID:    c.ID,
			Index:           idx,
		})
		if err != nil {
			st.Errors++
			c.Logger.DebugContext(
				ctx,
				"skipping rule",
				"list_id", c.ID,
				"line", idx+1,
				slogutil.KeyError, err,
			)

			continue
		}

		st.Compiled++
		rs = append(rs, nr)
	}

	err = s.Err()
	if err != nil {
		return nil, nil, fmt.Errorf("reading filter list %d: %w", c.ID, err)
	}

	c.Logger.InfoContext(
		ctx,
		"filter list compiled",
		"list_id", c.ID,
		"total", st.Total,
		"compiled", st.Compiled,
		"skipped", st.Skipped,
		"errors", st.Errors,
	)

	return rs, st, nil
}

// cosmeticMarkers are the separators of element hiding, CSS injection,
// scriptlet and HTML filtering rules, including their exceptions.
var cosmeticMarkers = []string{
	"##",
	"#@#",
	"#?#",
	"#@?#",
	"#$#",
	"#@$#",
	"#$?#",
	"#@$?#",
	"#%#",
	"#@%#",
	"$$",
	"$@$",
}

// IsNetworkRule returns true if the trimmed, non-empty line looks like a
// network rule rather than a comment, a list header or a cosmetic rule.
func IsNetworkRule(line string) (ok bool) {
	switch {
	case
		strings.HasPrefix(line, "!"),
		strings.HasPrefix(line, "["),
		isHostsComment(line):
		return false
	}

	for _, m := range cosmeticMarkers {
		if strings.Contains(line, m) {
			return false
		}
	}

	return true
}

// isHostsComment returns true if line is a hosts-file style comment, which is
// a "#" not followed by another cosmetic marker character.
func isHostsComment(line string) (ok bool) {
	if line[0] != '#' {
		return false
	}

	return len(line) == 1 || !strings.ContainsRune("#@?$%", rune(line[1]))
}
