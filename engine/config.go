package engine

import (
	"log/slog"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/AdguardTeam/netfilter/rules"
)

// Config is the configuration of an [Engine].
type Config struct {
	// Logger is used for logging the engine operation.  It must not be nil.
	Logger *slog.Logger

	// Rules are the compiled rules to match.  Rules that come first win ties
	// in priority, so they should be ordered by filter list and then by
	// position in the list.
	Rules []*rules.NetworkRule

	// CacheTTL is the time the rules matching a request are cached for.  If
	// it's zero, the results aren't cached.  It must not be negative.
	CacheTTL time.Duration
}

// type check
var _ validate.Interface = (*Config)(nil)

// Validate implements the [validate.Interface] interface for *Config.
func (c *Config) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	return errors.Join(
		validate.NotNil("Logger", c.Logger),
		validate.NotNegative("CacheTTL", c.CacheTTL),
	)
}
