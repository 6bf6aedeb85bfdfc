package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/specialistvlad/questgrid/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments on top of the environment settings.
// It returns the validated settings, a boolean indicating if the program
// should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Settings, bool, error) {
	slog.Debug("CLI parser started.")

	base, err := app.SettingsFromEnv()
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	flagSet := flag.NewFlagSet("questgrid", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, `
questgrid - validates a test suite and the component registry.

With -check, every suite database is connected to on the worker pool while
the health check server (if enabled) reports progress.

Usage:
  questgrid [options] [SUITE_PATH]

Arguments:
  SUITE_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	suiteFlag := flagSet.String("suite", base.SuitePath, "Path to the suite file or directory.")
	sFlag := flagSet.String("s", "", "Path to the suite file or directory (shorthand).")
	logFormatFlag := flagSet.String("log-format", base.LogFormat, "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", base.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", base.Workers, "Number of concurrent workers for database checks.")
	healthPortFlag := flagSet.Int("healthcheck-port", base.HealthcheckPort, "Port for the HTTP health check server. 0 is disabled.")
	checkFlag := flagSet.Bool("check", base.CheckDatabases, "Connect to every suite database.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := *suiteFlag
	if *sFlag != "" {
		path = *sFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	if path == "" {
		slog.Debug("No suite path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	settings := *base
	settings.SuitePath = path
	settings.LogFormat = *logFormatFlag
	settings.LogLevel = *logLevelFlag
	settings.Workers = *workersFlag
	settings.HealthcheckPort = *healthPortFlag
	settings.CheckDatabases = *checkFlag

	out, err := app.NewSettings(settings)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("CLI parser finished successfully.", "suite", out.SuitePath)
	return out, false, nil
}
