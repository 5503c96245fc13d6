package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/hdsweep/internal/config"
	"github.com/mrz1836/hdsweep/internal/network"
	"github.com/mrz1836/hdsweep/internal/output"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and initialize hdsweep configuration.`,
}

// configInitCmd writes the default configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.hdsweep/config.yaml.

An existing file is kept unless --force is given.

Example:
  hdsweep config init
  hdsweep config init --force`,
	RunE: runConfigInit,
}

// configShowCmd shows the effective configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after defaults, the config file and
HDSWEEP_* environment variables are applied. API keys are masked.`,
	RunE: runConfigShow,
}

// configPathCmd prints the config file location.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, _ []string) error {
		outln(cmd.OutOrStdout(), config.Path(GetCmdContext(cmd).Config.GetHome()))
		return nil
	},
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	home := GetCmdContext(cmd).Config.GetHome()
	configPath := config.Path(home)

	if _, err := os.Stat(configPath); err == nil && !configForce {
		return sweeperr.WithSuggestion(
			sweeperr.ErrGeneral,
			fmt.Sprintf("configuration already exists at %s. Use --force to overwrite.", configPath),
		)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	defaults := config.Defaults()
	defaults.Home = home
	if err := config.Save(defaults, configPath); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	w := cmd.OutOrStdout()
	output.Infof(w, "Configuration initialized at %s", configPath)
	outln(w)
	outln(w, "Edit this file to configure:")
	outln(w, "  - recovery.chunk_size / recovery.subwallet_gap_limit: gap limits (default 3/3)")
	outln(w, "  - networks.<NAME>.backend / url: balance backend per network")
	outln(w, "  - networks.<NAME>.api_key: backend API key (optional)")
	outln(w, "  - logging.level: Log level (off/error/debug)")
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	shown := maskedConfig(cc.Config)

	if cc.Fmt.IsJSON() {
		return writeJSON(cmd.OutOrStdout(), shown)
	}

	w := cmd.OutOrStdout()
	out(w, "Home:    %s\n", shown.GetHome())
	out(w, "Format:  %s\n", shown.GetOutputFormat())
	out(w, "Logging: %s (%s)\n", shown.GetLoggingLevel(), shown.GetLoggingFile())
	outln(w)
	r := shown.Recovery
	out(w, "Recovery: chunk %d, subwallet gap %d, parallel %d, timeout %ds, mode %s\n",
		r.ChunkSize, r.SubwalletGapLimit, r.ParallelNetworks, r.TimeoutSeconds, r.Mode)
	outln(w)

	table := output.NewTable("NETWORK", "ENABLED", "BACKEND", "URL", "API KEY", "RATE")
	for _, name := range network.Names() {
		nc := shown.Networks[name]
		table.AddRow(name, strconv.FormatBool(nc.IsEnabled()), nc.Backend, nc.URL, nc.APIKey,
			strconv.FormatFloat(nc.RatePerSecond, 'g', -1, 64))
	}
	return table.Render(w)
}

// maskedConfig returns a copy of c with API keys reduced to a hint.
func maskedConfig(c *config.Config) *config.Config {
	shown := *c
	shown.Networks = make(map[string]config.NetworkConfig, len(c.Networks))
	for name, nc := range c.Networks {
		nc.APIKey = maskSecret(nc.APIKey)
		shown.Networks[name] = nc
	}
	return &shown
}

func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	default:
		return s[:4] + "****" + s[len(s)-4:]
	}
}
