// Package cmd is the netfilter CLI entry point.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/osutil"
	"github.com/AdguardTeam/netfilter/internal/version"
)

// Main is the entrypoint of netfilter CLI.
func Main() {
	os.Exit(run(context.Background(), os.Args[0], os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args, matches the requests they describe, and returns the exit
// code.  The decisions are written to stdout, and the usage, errors, and logs
// are written to stderr unless a log file is configured.
func run(
	ctx context.Context,
	cmdName string,
	args []string,
	stdout io.Writer,
	stderr io.Writer,
) (exitCode int) {
	conf, exitCode, err := parseConfig(cmdName, args, stderr)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, fmt.Errorf("parsing options: %w", err))
	}

	if conf == nil {
		return exitCode
	}

	logOutput := stderr
	if conf.LogOutput != "" {
		// #nosec G302 -- Trust the file path that is given in the
		// configuration.
		f, fileErr := os.OpenFile(conf.LogOutput, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if fileErr != nil {
			_, _ = fmt.Fprintln(stderr, fmt.Errorf("cannot create a log file: %s", fileErr))

			return osutil.ExitCodeArgumentError
		}

		defer func() { _ = f.Close() }()

		logOutput = f
	}

	lvl := slog.LevelInfo
	if conf.Verbose {
		lvl = slog.LevelDebug
	}

	l := slogutil.New(&slogutil.Config{
		Output:       logOutput,
		Format:       slogutil.FormatDefault,
		Level:        lvl,
		AddTimestamp: true,
	})

	l.DebugContext(
		ctx,
		"netfilter starting",
		"version", version.Version(),
		"revision", version.Revision(),
		"branch", version.Branch(),
		"commit_time", version.CommitTime(),
	)

	err = runMatch(ctx, l, conf, stdout)
	if err != nil {
		l.ErrorContext(ctx, "matching requests", slogutil.KeyError, err)

		return osutil.ExitCodeFailure
	}

	return osutil.ExitCodeSuccess
}
