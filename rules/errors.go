package rules

import (
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
)

// Sentinel errors wrapped by [*RuleSyntaxError].  Use [errors.Is] to tell them
// apart.
const (
	// ErrTooGeneral is returned for rules without modifiers whose pattern is
	// too short to be safe.
	ErrTooGeneral errors.Error = "the rule is too general"

	// ErrUnknownModifier is returned for modifiers the parser doesn't know.
	ErrUnknownModifier errors.Error = "unknown modifier"

	// ErrNotNegatable is returned when a modifier that can't be negated is
	// prefixed with "~".
	ErrNotNegatable errors.Error = "modifier cannot be negated"

	// ErrAllowlistOnly is returned when an allowlist-only modifier is used in
	// a blocking rule.
	ErrAllowlistOnly errors.Error = "modifier can only be used in allowlist rules"

	// ErrAllowlistForbidden is returned when a modifier can't be used in
	// allowlist rules.
	ErrAllowlistForbidden errors.Error = "modifier cannot be used in allowlist rules"

	// ErrMultipleAdvanced is returned when a rule carries more than one
	// advanced modifier.
	ErrMultipleAdvanced errors.Error = "only one advanced modifier is allowed"

	// ErrIncompatibleModifiers is returned for forbidden combinations of
	// modifiers.
	ErrIncompatibleModifiers errors.Error = "incompatible modifiers"

	// ErrEmptyValue is returned when a modifier requires a value but has
	// none.
	ErrEmptyValue errors.Error = "empty modifier value"

	// ErrInvalidValue is returned when a modifier value can't be parsed.
	ErrInvalidValue errors.Error = "invalid modifier value"

	// ErrInvalidPattern is returned when the rule pattern can't be compiled.
	ErrInvalidPattern errors.Error = "invalid pattern"

	// ErrPatternRejected is returned when a [PatternValidator] rejects the
	// pattern.
	ErrPatternRejected errors.Error = "pattern rejected"
)

// RuleSyntaxError is the error returned when a rule text can't be compiled.
type RuleSyntaxError struct {
	// Err is the underlying error.  It wraps one of the sentinel errors of
	// this package.
	Err error

	// RuleText is the text of the rule that failed to compile.
	RuleText string
}

// type check
var _ errors.Wrapper = (*RuleSyntaxError)(nil)

// Error implements the error interface for *RuleSyntaxError.
func (e *RuleSyntaxError) Error() (msg string) {
	return fmt.Sprintf("rule %q: %s", e.RuleText, e.Err)
}

// Unwrap implements the [errors.Wrapper] interface for *RuleSyntaxError.
func (e *RuleSyntaxError) Unwrap() (err error) {
	return e.Err
}

// modifierError returns an error about the modifier name wrapping sentinel.
func modifierError(name string, sentinel error) (err error) {
	return fmt.Errorf("$%s: %w", name, sentinel)
}

// valueError returns an error about the invalid value of the modifier name.
func valueError(name, value string, sentinel error) (err error) {
	return fmt.Errorf("$%s=%s: %w", name, value, sentinel)
}
