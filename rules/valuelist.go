package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// ValueList is the parsed value of a list modifier like $method, $app, or
// $ctag.
type ValueList struct {
	permitted  []string
	restricted []string
}

// valueNormalizer returns the normalized value or an error if v is not valid.
type valueNormalizer func(v string) (norm string, err error)

// parseValueList parses the "|"-separated value of the modifier name.  If
// mixed is false, permitted and restricted entries can't be used together.
// The resulting lists are sorted.
func parseValueList(
	name string,
	value string,
	normalize valueNormalizer,
	mixed bool,
) (l *ValueList, err error) {
	if value == "" {
		return nil, modifierError(name, ErrEmptyValue)
	}

	l = &ValueList{}
	for v := range strings.SplitSeq(value, "|") {
		negated := strings.HasPrefix(v, "~")
		if negated {
			v = v[1:]
		}

		var norm string
		norm, err = normalize(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", valueError(name, value, ErrInvalidValue), err)
		}

		if negated {
			l.restricted = append(l.restricted, norm)
		} else {
			l.permitted = append(l.permitted, norm)
		}
	}

	if !mixed && len(l.permitted) > 0 && len(l.restricted) > 0 {
		return nil, valueError(name, value, ErrIncompatibleModifiers)
	}

	slices.Sort(l.permitted)
	slices.Sort(l.restricted)

	return l, nil
}

// Match returns true if v is allowed by the list.  A nil list allows anything.
// An empty v is only allowed by lists without permitted entries.
func (l *ValueList) Match(v string) (ok bool) {
	if l == nil {
		return true
	}

	if v == "" {
		return len(l.permitted) == 0
	}

	if _, found := slices.BinarySearch(l.restricted, v); found {
		return false
	}

	if len(l.permitted) == 0 {
		return true
	}

	_, found := slices.BinarySearch(l.permitted, v)

	return found
}

// MatchAny returns true if any of sorted values is allowed by the list and
// none of them is restricted.  A nil list allows anything.
func (l *ValueList) MatchAny(sorted []string) (ok bool) {
	if l == nil {
		return true
	}

	if intersectSorted(l.restricted, sorted) {
		return false
	}

	return len(l.permitted) == 0 || intersectSorted(l.permitted, sorted)
}

// Permitted returns the sorted permitted values.
func (l *ValueList) Permitted() (vals []string) {
	if l == nil {
		return nil
	}

	return l.permitted
}

// Restricted returns the sorted restricted values.
func (l *ValueList) Restricted() (vals []string) {
	if l == nil {
		return nil
	}

	return l.restricted
}

// String returns the list in the rule syntax.
func (l *ValueList) String() (s string) {
	if l == nil {
		return ""
	}

	vals := slices.Clone(l.permitted)
	for _, v := range l.restricted {
		vals = append(vals, "~"+v)
	}

	return strings.Join(vals, "|")
}

// intersectSorted returns true if sorted slices a and b have a common element.
func intersectSorted(a, b []string) (ok bool) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch c := strings.Compare(a[i], b[j]); {
		case c == 0:
			return true
		case c < 0:
			i++
		default:
			j++
		}
	}

	return false
}

// knownMethods are the HTTP methods allowed in $method.
var knownMethods = []string{
	"connect",
	"delete",
	"get",
	"head",
	"options",
	"patch",
	"post",
	"put",
	"trace",
}

// normalizeMethod is a [valueNormalizer] for $method.
func normalizeMethod(v string) (norm string, err error) {
	norm = strings.ToLower(v)
	if !slices.Contains(knownMethods, norm) {
		return "", fmt.Errorf("unknown method %q", v)
	}

	return norm, nil
}

// normalizeApp is a [valueNormalizer] for $app.
func normalizeApp(v string) (norm string, err error) {
	if v == "" || strings.ContainsAny(v, " \t") {
		return "", fmt.Errorf("bad app name %q", v)
	}

	return v, nil
}

// normalizeCtag is a [valueNormalizer] for $ctag.
func normalizeCtag(v string) (norm string, err error) {
	if v == "" {
		return "", errors.Error("empty tag")
	}

	return v, nil
}
