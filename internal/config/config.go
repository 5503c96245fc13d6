// Package config provides configuration management for hdsweep.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/hdsweep/internal/chain"
	"github.com/mrz1836/hdsweep/internal/fileutil"
	"github.com/mrz1836/hdsweep/internal/network"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version  int                      `yaml:"version" json:"version"`
	Home     string                   `yaml:"home" json:"home"`
	Recovery RecoveryConfig           `yaml:"recovery" json:"recovery"`
	Networks map[string]NetworkConfig `yaml:"networks" json:"networks"`
	Output   OutputConfig             `yaml:"output" json:"output"`
	Logging  LoggingConfig            `yaml:"logging" json:"logging"`
}

// RecoveryConfig defines the gap limits and scan behavior.
type RecoveryConfig struct {
	ChunkSize         int    `yaml:"chunk_size" json:"chunk_size"`
	SubwalletGapLimit int    `yaml:"subwallet_gap_limit" json:"subwallet_gap_limit"`
	ParallelNetworks  int    `yaml:"parallel_networks" json:"parallel_networks"`
	TimeoutSeconds    int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	Mode              string `yaml:"mode" json:"mode"`
}

// NetworkConfig defines the balance backend for one network.
type NetworkConfig struct {
	Enabled       *bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Backend       string  `yaml:"backend,omitempty" json:"backend,omitempty"`
	URL           string  `yaml:"url,omitempty" json:"url,omitempty"`
	APIKey        string  `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	TokenContract string  `yaml:"token_contract,omitempty" json:"token_contract,omitempty"`
	RatePerSecond float64 `yaml:"rate_per_second,omitempty" json:"rate_per_second,omitempty"`
}

// IsEnabled reports whether the network is enabled. Unset means enabled.
func (n NetworkConfig) IsEnabled() bool {
	return n.Enabled == nil || *n.Enabled
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format" json:"default_format"`
	Verbose       bool   `yaml:"verbose" json:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Load reads configuration from the specified file. Settings missing from
// the file keep their defaults, per field within each network entry.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, sweeperr.WithDetails(sweeperr.ErrConfigNotFound, map[string]string{"path": path})
		}
		return nil, err
	}

	cfg := Defaults()
	defaults := cfg.Networks
	cfg.Networks = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, sweeperr.WithDetails(sweeperr.Cause(sweeperr.ErrConfigInvalid, err), map[string]string{"path": path})
	}
	cfg.Networks = mergeNetworks(defaults, cfg.Networks)

	return cfg, nil
}

// LoadOrDefault loads the file at path, or returns the defaults when it
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, sweeperr.ErrConfigNotFound) {
		return Defaults(), nil
	}
	return cfg, err
}

// mergeNetworks overlays the non-zero fields of user onto base.
func mergeNetworks(base, user map[string]NetworkConfig) map[string]NetworkConfig {
	out := make(map[string]NetworkConfig, len(base)+len(user))
	for name, nc := range base {
		out[name] = nc
	}
	for name, u := range user {
		nc := out[name]
		if u.Enabled != nil {
			nc.Enabled = u.Enabled
		}
		if u.Backend != "" {
			nc.Backend = u.Backend
		}
		if u.URL != "" {
			nc.URL = u.URL
		}
		if u.APIKey != "" {
			nc.APIKey = u.APIKey
		}
		if u.TokenContract != "" {
			nc.TokenContract = u.TokenContract
		}
		if u.RatePerSecond != 0 {
			nc.RatePerSecond = u.RatePerSecond
		}
		out[name] = nc
	}
	return out
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return fileutil.WriteAtomic(path, data, 0o600)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// Validate checks the configuration for values the scanner or the
// backends cannot run with.
//
//nolint:gocognit,gocyclo // one check per setting
func (c *Config) Validate() error {
	r := c.Recovery
	switch {
	case r.ChunkSize < 1:
		return invalid("recovery.chunk_size", "must be at least 1")
	case r.SubwalletGapLimit < 1:
		return invalid("recovery.subwallet_gap_limit", "must be at least 1")
	case r.ParallelNetworks < 1:
		return invalid("recovery.parallel_networks", "must be at least 1")
	case r.TimeoutSeconds < 0:
		return invalid("recovery.timeout_seconds", "must not be negative")
	case !chain.Mode(r.Mode).IsValid():
		return invalid("recovery.mode", "must be balance or activity")
	}

	switch c.Output.DefaultFormat {
	case "", "auto", "text", "json":
	default:
		return invalid("output.default_format", "must be auto, text or json")
	}

	for name, nc := range c.Networks {
		field := "networks." + name
		d, err := network.Lookup(name)
		if err != nil {
			return invalid(field, "unknown network")
		}
		if !nc.IsEnabled() {
			continue
		}
		backend, ok := chain.ParseBackend(nc.Backend)
		if !ok {
			return invalid(field+".backend", fmt.Sprintf("unknown backend %q", nc.Backend))
		}
		if backend != chain.BackendEtherscan && nc.URL == "" {
			return invalid(field+".url", "required")
		}
		if nc.URL != "" {
			if err := chain.ValidateURL(chain.Endpoint{Network: name, URL: nc.URL}); err != nil {
				return invalid(field+".url", "must be an absolute http or https URL")
			}
		}
		if backend == chain.BackendEsplora && d.Kind != network.KindUTXO {
			return invalid(field+".backend", "esplora serves UTXO networks only")
		}
		if (backend == chain.BackendRPC || backend == chain.BackendEtherscan) && d.Kind != network.KindAccount {
			return invalid(field+".backend", backend.String()+" serves account networks only")
		}
		if d.IsToken() && backend != chain.BackendIndexer && nc.TokenContract == "" {
			return invalid(field+".token_contract", "required for token networks")
		}
		if nc.RatePerSecond < 0 {
			return invalid(field+".rate_per_second", "must not be negative")
		}
	}
	return nil
}

func invalid(field, reason string) error {
	return sweeperr.WithDetails(sweeperr.ErrConfigInvalid, map[string]string{
		"field":  field,
		"reason": reason,
	})
}

// Endpoints returns the backend endpoint of every enabled network, in
// registry order. A non-empty only list restricts the result to those
// networks.
func (c *Config) Endpoints(only []string) []chain.Endpoint {
	want := make(map[string]bool, len(only))
	for _, name := range only {
		want[name] = true
	}

	var out []chain.Endpoint
	for _, name := range network.Names() {
		nc, ok := c.Networks[name]
		if !ok || !nc.IsEnabled() {
			continue
		}
		if len(want) > 0 && !want[name] {
			continue
		}
		backend, _ := chain.ParseBackend(nc.Backend)
		out = append(out, chain.Endpoint{
			Network:       name,
			Backend:       backend,
			URL:           nc.URL,
			APIKey:        nc.APIKey,
			TokenContract: nc.TokenContract,
			RatePerSecond: nc.RatePerSecond,
			Mode:          chain.Mode(c.Recovery.Mode),
		})
	}
	return out
}

// Timeout returns the recovery timeout. Zero means no timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Recovery.TimeoutSeconds) * time.Second
}

// GetHome returns the hdsweep home directory path.
func (c *Config) GetHome() string {
	return ExpandHome(c.Home)
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the configured log file path, defaulting to
// hdsweep.log under the home directory.
func (c *Config) GetLoggingFile() string {
	if c.Logging.File == "" {
		return filepath.Join(c.GetHome(), "hdsweep.log")
	}
	return ExpandHome(c.Logging.File)
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// DefaultHome returns the default hdsweep home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hdsweep"
	}
	return filepath.Join(home, ".hdsweep")
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
