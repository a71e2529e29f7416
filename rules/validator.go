package rules

import (
	"fmt"
	"regexp/syntax"

	"github.com/AdguardTeam/golibs/errors"
)

// Complexity errors.
const (
	errPatternTooLong     errors.Error = "pattern is too long"
	errTooManyAlternates  errors.Error = "too many alternatives"
	errNestedRepetition   errors.Error = "nested repetition"
	errUnsupportedRegexOp errors.Error = "unsupported regexp construct"
)

// ComplexityConfig is the configuration of the validator returned by
// [NewComplexityValidator].  Zero values disable the corresponding limits.
type ComplexityConfig struct {
	// MaxLength is the maximum length of a pattern in bytes.
	MaxLength int

	// MaxAlternatives is the maximum number of alternatives in a single
	// alternation group of a regexp pattern.
	MaxAlternatives int

	// AllowNestedRepetition allows quantifiers applied to expressions that
	// already contain quantifiers, like "(a+)+".
	AllowNestedRepetition bool

	// AllowBoundaries allows the "\b" and "\B" assertions.
	AllowBoundaries bool
}

// NewComplexityValidator returns a pattern validator that rejects patterns
// too costly to match.  c must not be nil.
func NewComplexityValidator(c *ComplexityConfig) (v PatternValidator) {
	conf := *c

	return func(pattern string) (err error) {
		if conf.MaxLength > 0 && len(pattern) > conf.MaxLength {
			return fmt.Errorf("%w: %d bytes, max %d", errPatternTooLong, len(pattern), conf.MaxLength)
		}

		if !isRegexPattern(pattern) {
			return nil
		}

		re, err := syntax.Parse(pattern[1:len(pattern)-1], syntax.Perl)
		if err != nil {
			return err
		}

		return conf.check(re, false)
	}
}

// check returns an error if re or its subexpressions break the limits.
// inRepeat is true if re is inside a quantified expression.
func (c *ComplexityConfig) check(re *syntax.Regexp, inRepeat bool) (err error) {
	switch re.Op {
	case syntax.OpAlternate:
		if c.MaxAlternatives > 0 && len(re.Sub) > c.MaxAlternatives {
			return fmt.Errorf("%w: %d, max %d", errTooManyAlternates, len(re.Sub), c.MaxAlternatives)
		}
	case syntax.OpStar, syntax.OpPlus, syntax.OpRepeat:
		if inRepeat && !c.AllowNestedRepetition {
			return fmt.Errorf("%w: %s", errNestedRepetition, re)
		}

		inRepeat = true
	case syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		if !c.AllowBoundaries {
			return fmt.Errorf("%w: %s", errUnsupportedRegexOp, re)
		}
	}

	for _, sub := range re.Sub {
		err = c.check(sub, inRepeat)
		if err != nil {
			return err
		}
	}

	return nil
}
