package cmd

import (
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/osutil"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/AdguardTeam/netfilter/internal/version"
)

// Indexes to help with the [commandLineOptions] initialization.
const (
	configPathIdx = iota
	logOutputIdx
	filterListsIdx
	rulesIdx
	urlsIdx
	sourceURLIdx
	requestTypeIdx
	methodIdx
	hostnamesIdx
	dnsTypeIdx
	clientIPIdx
	clientNameIdx
	clientTagsIdx
	cacheTTLIdx
	maxPatternLengthIdx
	maxAlternativesIdx
	helpIdx
	versionIdx
	verboseIdx
)

// commandLineOption contains information about a command-line option: its long
// and, if there is one, short forms, the value type, and the description.
type commandLineOption struct {
	description string
	long        string
	short       string
	valueType   string
}

// commandLineOptions are all command-line options currently supported by the
// binary.
var commandLineOptions = []*commandLineOption{
	configPathIdx: {
		description: "YAML configuration file.  Options passed through command line will " +
			"override the ones from this file.",
		long:      "config-path",
		short:     "",
		valueType: "path",
	},
	logOutputIdx: {
		description: "Path to the log file.  If not set, write to stderr.",
		long:        "output",
		short:       "o",
		valueType:   "path",
	},
	filterListsIdx: {
		description: "Path to a filter list file, can be specified multiple times.",
		long:        "filter-list",
		short:       "f",
		valueType:   "path",
	},
	rulesIdx: {
		description: "A network rule, can be specified multiple times.",
		long:        "rule",
		short:       "r",
		valueType:   "text",
	},
	urlsIdx: {
		description: "A URL to match, can be specified multiple times.",
		long:        "url",
		short:       "u",
		valueType:   "url",
	},
	sourceURLIdx: {
		description: "The URL of the document the requests are made from.",
		long:        "source-url",
		short:       "s",
		valueType:   "url",
	},
	requestTypeIdx: {
		description: "The type of the URL requests, for example script (default: document).",
		long:        "type",
		short:       "t",
		valueType:   "type",
	},
	methodIdx: {
		description: "The HTTP method of the URL requests.",
		long:        "method",
		short:       "m",
		valueType:   "method",
	},
	hostnamesIdx: {
		description: "A hostname to match as a DNS query, can be specified multiple times.",
		long:        "hostname",
		short:       "",
		valueType:   "name",
	},
	dnsTypeIdx: {
		description: "The RR type of the DNS queries, for example AAAA (default: A).",
		long:        "dns-type",
		short:       "",
		valueType:   "type",
	},
	clientIPIdx: {
		description: "The IP address of the client of the DNS queries.",
		long:        "client-ip",
		short:       "",
		valueType:   "address",
	},
	clientNameIdx: {
		description: "The name of the client of the DNS queries.",
		long:        "client-name",
		short:       "",
		valueType:   "name",
	},
	clientTagsIdx: {
		description: "A tag of the client of the DNS queries, can be specified multiple times.",
		long:        "client-tag",
		short:       "",
		valueType:   "tag",
	},
	cacheTTLIdx: {
		description: "The time matched rules are cached for in a human-readable form.  " +
			"Zero disables caching.",
		long:      "cache-ttl",
		short:     "",
		valueType: "duration",
	},
	maxPatternLengthIdx: {
		description: "If positive, rules with longer patterns are rejected.",
		long:        "max-pattern-length",
		short:       "",
		valueType:   "int",
	},
	maxAlternativesIdx: {
		description: "If positive, regexp rules with more alternatives in a group are rejected.",
		long:        "max-alternatives",
		short:       "",
		valueType:   "int",
	},
	helpIdx: {
		description: "Print this help message and quit.",
		long:        "help",
		short:       "h",
		valueType:   "",
	},
	versionIdx: {
		description: "Prints the program version.",
		long:        "version",
		short:       "",
		valueType:   "",
	},
	verboseIdx: {
		description: "Verbose output.",
		long:        "verbose",
		short:       "v",
		valueType:   "",
	},
}

// parseCmdLineOptions parses the command-line options into conf, overriding
// the values already set.  conf must not be nil.  output is used for the
// usage and parsing errors.
func parseCmdLineOptions(
	conf *configuration,
	cmdName string,
	args []string,
	output io.Writer,
) (err error) {
	flags := flag.NewFlagSet(cmdName, flag.ContinueOnError)
	flags.SetOutput(output)
	for i, fieldPtr := range []any{
		configPathIdx:       &conf.ConfigPath,
		logOutputIdx:        &conf.LogOutput,
		filterListsIdx:      &conf.FilterLists,
		rulesIdx:            &conf.Rules,
		urlsIdx:             &conf.URLs,
		sourceURLIdx:        &conf.SourceURL,
		requestTypeIdx:      &conf.RequestType,
		methodIdx:           &conf.Method,
		hostnamesIdx:        &conf.Hostnames,
		dnsTypeIdx:          &conf.DNSType,
		clientIPIdx:         &conf.ClientIP,
		clientNameIdx:       &conf.ClientName,
		clientTagsIdx:       &conf.ClientTags,
		cacheTTLIdx:         &conf.CacheTTL,
		maxPatternLengthIdx: &conf.MaxPatternLength,
		maxAlternativesIdx:  &conf.MaxAlternatives,
		helpIdx:             &conf.help,
		versionIdx:          &conf.Version,
		verboseIdx:          &conf.Verbose,
	} {
		addOption(flags, fieldPtr, commandLineOptions[i])
	}

	flags.Usage = func() { usage(cmdName, output) }

	err = flags.Parse(args)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	if flags.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %q", flags.Args())
	}

	return nil
}

// defineFlag defines a flag with specified setFlag function.  o must not be
// nil.
func defineFlag[T any](
	fieldPtr *T,
	o *commandLineOption,
	setFlag func(p *T, name string, value T, usage string),
) {
	setFlag(fieldPtr, o.long, *fieldPtr, o.description)
	if o.short != "" {
		setFlag(fieldPtr, o.short, *fieldPtr, o.description)
	}
}

// defineFlagVar defines a flag with the specified [flag.Value] value.  o must
// not be nil.
func defineFlagVar(flags *flag.FlagSet, value flag.Value, o *commandLineOption) {
	flags.Var(value, o.long, o.description)
	if o.short != "" {
		flags.Var(value, o.short, o.description)
	}
}

// defineTimeutilDurationFlag defines a flag with for the specified
// [*timeutil.Duration] pointer and command line option.  o must not be nil.
func defineTimeutilDurationFlag(
	flags *flag.FlagSet,
	fieldPtr *timeutil.Duration,
	o *commandLineOption,
) {
	flags.TextVar(fieldPtr, o.long, *fieldPtr, o.description)
	if o.short != "" {
		flags.TextVar(fieldPtr, o.short, *fieldPtr, o.description)
	}
}

// addOption adds the command-line option described by o to flags using fieldPtr
// as the pointer to the value.
func addOption(flags *flag.FlagSet, fieldPtr any, o *commandLineOption) {
	switch fieldPtr := fieldPtr.(type) {
	case *string:
		defineFlag(fieldPtr, o, flags.StringVar)
	case *bool:
		defineFlag(fieldPtr, o, flags.BoolVar)
	case *int:
		defineFlag(fieldPtr, o, flags.IntVar)
	case *[]string:
		defineFlagVar(flags, newStringSliceValue(fieldPtr), o)
	case *timeutil.Duration:
		defineTimeutilDurationFlag(flags, fieldPtr, o)
	default:
		panic(fmt.Errorf("unexpected field pointer type %T: %w", fieldPtr, errors.ErrBadEnumValue))
	}
}

// usage prints a usage message similar to the one printed by package flag but
// taking long vs. short versions into account as well as using more informative
// value hints.
func usage(cmdName string, output io.Writer) {
	options := slices.Clone(commandLineOptions)
	slices.SortStableFunc(options, func(a, b *commandLineOption) (res int) {
		return strings.Compare(a.long, b.long)
	})

	b := &strings.Builder{}
	_, _ = fmt.Fprintf(b, "Usage of %s:\n", cmdName)

	for _, o := range options {
		writeUsageLine(b, o)

		// Use four spaces before the tab to trigger good alignment for both 4-
		// and 8-space tab stops.
		_, _ = fmt.Fprintf(b, "    \t%s\n", o.description)
	}

	_, _ = io.WriteString(output, b.String())
}

// writeUsageLine writes the usage line for the provided command-line option.
func writeUsageLine(b *strings.Builder, o *commandLineOption) {
	if o.short == "" {
		if o.valueType == "" {
			_, _ = fmt.Fprintf(b, "  --%s\n", o.long)
		} else {
			_, _ = fmt.Fprintf(b, "  --%s=%s\n", o.long, o.valueType)
		}

		return
	}

	if o.valueType == "" {
		_, _ = fmt.Fprintf(b, "  --%s/-%s\n", o.long, o.short)
	} else {
		_, _ = fmt.Fprintf(b, "  --%[1]s=%[3]s/-%[2]s %[3]s\n", o.long, o.short, o.valueType)
	}
}

// processCmdLineOptions decides if netfilter should exit depending on the
// results of command-line option parsing.
func processCmdLineOptions(
	conf *configuration,
	cmdName string,
	output io.Writer,
	parseErr error,
) (exitCode int, needExit bool) {
	if parseErr != nil {
		// Assume that usage has already been printed.
		return osutil.ExitCodeArgumentError, true
	}

	if conf.help {
		usage(cmdName, output)

		return osutil.ExitCodeSuccess, true
	}

	if conf.Version {
		_, _ = fmt.Fprintf(output, "netfilter version %s\n", version.Version())

		return osutil.ExitCodeSuccess, true
	}

	return osutil.ExitCodeSuccess, false
}
