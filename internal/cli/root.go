package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/mrscan/internal/config"
	"github.com/dshills/mrscan/internal/logging"
	"github.com/dshills/mrscan/internal/review"
	"github.com/dshills/mrscan/internal/scm"
)

const version = "0.1.0"

// Exit codes
const (
	ExitSuccess      = 0
	ExitFindings     = 1
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
)

var rootCmd = &cobra.Command{
	Use:   "mrscan",
	Short: "Rule-based merge request review bot",
	Long:  "mrscan scores merge request diffs against configurable rules, posts review reports to GitLab or GitHub, and approves changes that score well.",
}

// Run executes the root command and returns an exit code.
func Run() int {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}

	return exitCode
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print mrscan version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "mrscan version %s\n", version)
	},
}

// Logging flags shared by every command that loads config.
var (
	flagLogLevel  string
	flagLogFormat string
	flagRules     string
)

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&flagLogFormat, "log-format", "", "Log format (json, console)")
	cmd.Flags().StringVar(&flagRules, "rules", "", "Rules file path (YAML or JSON)")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagLogLevel != "" {
		m["log.level"] = flagLogLevel
	}
	if flagLogFormat != "" {
		m["log.format"] = flagLogFormat
	}
	if flagRules != "" {
		m["rulesFile"] = flagRules
	}
	return m
}

// loadConfig loads and validates the effective config, folding in extra
// overrides from command-specific flags.
func loadConfig(extra map[string]string) (config.Config, error) {
	overrides := buildOverrides()
	for k, v := range extra {
		overrides[k] = v
	}
	cfg, err := config.Load(overrides)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	return logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
}

// errMissingToken reports absent credentials.
var errMissingToken = errors.New("missing access token")

// exitCodeFor maps an error to the process exit code.
func exitCodeFor(err error) int {
	var ce *review.ConfigError
	var re *scm.RemoteError
	switch {
	case errors.Is(err, errMissingToken):
		return ExitAuthError
	case errors.As(err, &re) && (re.StatusCode == http.StatusUnauthorized || re.StatusCode == http.StatusForbidden):
		return ExitAuthError
	case errors.As(err, &ce):
		return ExitUsageError
	default:
		return ExitRuntimeError
	}
}

// fail prints err and records its exit code.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	exitCode = exitCodeFor(err)
}
