// Package cli implements the hdsweep command-line interface.
//
// Flags and the loaded configuration live in package variables, the usual
// layout for a cobra application. They are set up in PersistentPreRunE and
// released in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mrz1836/hdsweep/internal/config"
	"github.com/mrz1836/hdsweep/internal/output"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

var (
	// Global flags
	homeDir      string
	outputFormat string
	verbose      bool

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *config.Logger
	formatter *output.Formatter

	buildInfo = BuildInfo{}
)

// BuildInfo is the version stamp injected by the linker.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// SetBuildInfo records the binary's version stamp.
func SetBuildInfo(info BuildInfo) {
	buildInfo = info
}

// FormatVersion renders info as "v1.2.3 (commit: abc, built: date)".
func FormatVersion(info BuildInfo) string {
	version, commit, date := info.Version, info.Commit, info.Date
	if version == "" {
		version = "dev"
	}
	if commit == "" {
		commit = "unknown"
	}
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hdsweep",
	Short: "Recover the used addresses of an HD wallet",
	Long: `hdsweep finds every funded account and address of a BIP44 wallet.

For each network it derives the public root m/44'/<coin_type>'/0', then walks
subwallets and addresses until the gap limits say the rest is unused. Only
public keys leave the derivation step, and roots can be exported once and
scanned later without the mnemonic.

Example:
  hdsweep recover --input phrase.txt --networks BTC,ETH
  hdsweep roots --input phrase.txt > roots.json
  hdsweep recover --requests roots.json -o json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := initGlobals(cmd); err != nil {
			return err
		}
		SetCmdContext(cmd, NewCommandContext(cfg, logger, formatter))
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context, so a recovery in progress stops and reports what it found.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		format := output.FormatText
		if formatter != nil {
			format = formatter.Format()
		}
		_ = output.FormatError(os.Stderr, err, format)
		return err
	}
	return nil
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return sweeperr.ExitCode(err)
}

// initGlobals loads configuration, then applies the environment and flags on
// top of it.
func initGlobals(cmd *cobra.Command) error {
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	var err error
	if cfg, err = config.LoadOrDefault(config.Path(home)); err != nil {
		return err
	}
	cfg.Home = home

	config.ApplyEnvironment(cfg)

	if homeDir != "" {
		cfg.Home = homeDir
	}
	if verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if outputFormat != "" && outputFormat != string(output.FormatAuto) {
		cfg.Output.DefaultFormat = outputFormat
	}

	if err = cfg.Validate(); err != nil {
		return err
	}

	level := config.ParseLogLevel(cfg.GetLoggingLevel())
	if cfg.Logging.File == config.LogToStderr {
		logger = config.NewWriterLogger(level, cmd.ErrOrStderr())
	} else if logger, err = config.NewLogger(level, cfg.GetLoggingFile()); err != nil {
		logger = config.NullLogger()
	}
	if cfg.IsVerbose() && cfg.Logging.File != config.LogToStderr {
		if logger.Level() == config.LogLevelOff {
			logger.SetLevel(config.LogLevelDebug)
		}
		logger.Mirror(cmd.ErrOrStderr())
	}

	formatter = output.NewFormatter(output.ParseFormat(cfg.GetOutputFormat()), cmd.OutOrStdout())
	return nil
}

// cleanup releases resources.
func cleanup() {
	if logger != nil {
		_ = logger.Close()
	}
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "hdsweep data directory (default: ~/.hdsweep)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}
