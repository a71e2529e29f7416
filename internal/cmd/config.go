package cmd

import (
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/osutil"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/AdguardTeam/netfilter/rules"
	"github.com/miekg/dns"
	"gopkg.in/yaml.v3"
)

// Defaults for the request options.
const (
	defaultRequestType = "document"
	defaultDNSType     = "A"
)

// Configuration errors.
const (
	errNoRequests errors.Error = "no urls or hostnames to match"
	errNoRules    errors.Error = "no filter lists or rules"
)

// configuration is the netfilter CLI configuration.  The fields set in the
// YAML file are overridden by the command-line options.
type configuration struct {
	// ConfigPath is the path to the YAML configuration file.  It's only read
	// from the command line.
	ConfigPath string `yaml:"-"`

	// LogOutput is the path to the log file.
	LogOutput string `yaml:"output"`

	// FilterLists are the paths to the filter list files.  The filter list ID
	// of each list is its position in FilterLists plus one.
	FilterLists []string `yaml:"filter-lists"`

	// Rules are the inline rules.  Their filter list ID is zero.
	Rules []string `yaml:"rules"`

	// URLs are the URLs to match.
	URLs []string `yaml:"urls"`

	// SourceURL is the URL of the document the requests are made from.
	SourceURL string `yaml:"source-url"`

	// RequestType is the name of the type of the URL requests.
	RequestType string `yaml:"request-type"`

	// Method is the HTTP method of the URL requests.
	Method string `yaml:"method"`

	// Hostnames are the hostnames to match as DNS queries.
	Hostnames []string `yaml:"hostnames"`

	// DNSType is the name of the RR type of the DNS queries.
	DNSType string `yaml:"dns-type"`

	// ClientIP is the IP address of the DNS client.
	ClientIP string `yaml:"client-ip"`

	// ClientName is the name of the DNS client.
	ClientName string `yaml:"client-name"`

	// ClientTags are the tags of the DNS client.
	ClientTags []string `yaml:"client-tags"`

	// CacheTTL is the TTL of the engine cache.
	CacheTTL timeutil.Duration `yaml:"cache-ttl"`

	// MaxPatternLength, if positive, is the maximum length of a rule pattern.
	MaxPatternLength int `yaml:"max-pattern-length"`

	// MaxAlternatives, if positive, is the maximum number of alternatives in a
	// regexp group of a rule pattern.
	MaxAlternatives int `yaml:"max-alternatives"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose"`

	// Version makes the CLI print the version and exit.
	Version bool `yaml:"-"`

	// help makes the CLI print the usage and exit.
	help bool
}

// newDefaultConfiguration returns the configuration with the default values.
func newDefaultConfiguration() (conf *configuration) {
	return &configuration{
		RequestType: defaultRequestType,
		DNSType:     defaultDNSType,
	}
}

// parseConfig returns the configuration from the file pointed by the
// --config-path option, if any, and args.  If conf is nil, the CLI must exit
// with exitCode.  output is used for the usage and version messages.
func parseConfig(
	cmdName string,
	args []string,
	output io.Writer,
) (conf *configuration, exitCode int, err error) {
	conf = newDefaultConfiguration()

	confPath := configPathFromArgs(args)
	if confPath != "" {
		err = parseConfigFile(conf, confPath)
		if err != nil {
			return nil, osutil.ExitCodeArgumentError, fmt.Errorf(
				"parsing config file %s: %w",
				confPath,
				err,
			)
		}
	}

	err = parseCmdLineOptions(conf, cmdName, args, output)
	exitCode, needExit := processCmdLineOptions(conf, cmdName, output, err)
	if needExit {
		return nil, exitCode, err
	}

	err = conf.validate()
	if err != nil {
		return nil, osutil.ExitCodeArgumentError, fmt.Errorf("validating configuration: %w", err)
	}

	return conf, osutil.ExitCodeSuccess, nil
}

// configPathFromArgs returns the value of the last --config-path option in
// args.  The configuration file must be read before the other options so that
// they override it.
func configPathFromArgs(args []string) (confPath string) {
	for i, arg := range args {
		name, val, hasVal := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != commandLineOptions[configPathIdx].long {
			continue
		}

		if hasVal {
			confPath = val
		} else if i+1 < len(args) {
			confPath = args[i+1]
		}
	}

	return confPath
}

// parseConfigFile fills conf with the settings from file read by the given
// path.
func parseConfigFile(conf *configuration, confPath string) (err error) {
	// #nosec G304 -- Trust the file path that is given in the args.
	b, err := os.ReadFile(confPath)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	err = yaml.Unmarshal(b, conf)
	if err != nil {
		return fmt.Errorf("unmarshalling file: %w", err)
	}

	return nil
}

// validate returns an error if conf can't be used to match requests.
func (conf *configuration) validate() (err error) {
	var errs []error
	if len(conf.URLs) == 0 && len(conf.Hostnames) == 0 {
		errs = append(errs, errNoRequests)
	}

	if len(conf.FilterLists) == 0 && len(conf.Rules) == 0 {
		errs = append(errs, errNoRules)
	}

	if _, ok := rules.ParseRequestType(conf.RequestType); !ok {
		errs = append(errs, fmt.Errorf("request-type: %w: %q", errors.ErrBadEnumValue, conf.RequestType))
	}

	if _, ok := dns.StringToType[strings.ToUpper(conf.DNSType)]; !ok {
		errs = append(errs, fmt.Errorf("dns-type: %w: %q", errors.ErrBadEnumValue, conf.DNSType))
	}

	if conf.ClientIP != "" {
		_, ipErr := netip.ParseAddr(conf.ClientIP)
		if ipErr != nil {
			errs = append(errs, fmt.Errorf("client-ip: %w", ipErr))
		}
	}

	return errors.Join(errs...)
}
