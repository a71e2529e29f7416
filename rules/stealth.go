package rules

import (
	"slices"
	"strings"
)

// StealthOption is a set of stealth mode features that a $stealth allowlist
// rule disables.
type StealthOption uint16

// StealthOption values.
const (
	StealthHideReferrer StealthOption = 1 << iota
	StealthHideSearchQueries
	StealthBlockChromeClientData
	StealthSendDoNotTrack
	StealthBlockThirdPartyCookies
	StealthBlockFirstPartyCookies
	StealthBlockWebRTC
	StealthPush
	StealthLocation
	StealthFlash
	StealthJava
)

// stealthOptionNames are the names of stealth options in $stealth.
var stealthOptionNames = map[string]StealthOption{
	"referrer":      StealthHideReferrer,
	"searchqueries": StealthHideSearchQueries,
	"xclientdata":   StealthBlockChromeClientData,
	"donottrack":    StealthSendDoNotTrack,
	"3p-cookie":     StealthBlockThirdPartyCookies,
	"1p-cookie":     StealthBlockFirstPartyCookies,
	"webrtc":        StealthBlockWebRTC,
	"push":          StealthPush,
	"location":      StealthLocation,
	"flash":         StealthFlash,
	"java":          StealthJava,
}

// parseStealthOptions parses the "|"-separated value of $stealth.  An empty
// value disables stealth mode entirely and results in a zero set.
func parseStealthOptions(value string) (opts StealthOption, err error) {
	if value == "" {
		return 0, nil
	}

	for name := range strings.SplitSeq(value, "|") {
		opt, ok := stealthOptionNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, valueError("stealth", value, ErrInvalidValue)
		}

		opts |= opt
	}

	return opts, nil
}

// String returns the options in the rule syntax.
func (o StealthOption) String() (s string) {
	var names []string
	for name, opt := range stealthOptionNames {
		if o&opt != 0 {
			names = append(names, name)
		}
	}

	slices.Sort(names)

	return strings.Join(names, "|")
}
