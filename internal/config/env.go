package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/mrz1836/go-sanitize"

	"github.com/mrz1836/hdsweep/internal/chain"
	"github.com/mrz1836/hdsweep/internal/network"
)

// Environment variable names.
const (
	EnvHome            = "HDSWEEP_HOME"
	EnvOutputFormat    = "HDSWEEP_OUTPUT_FORMAT"
	EnvVerbose         = "HDSWEEP_VERBOSE"
	EnvLogLevel        = "HDSWEEP_LOG_LEVEL"
	EnvChunkSize       = "HDSWEEP_CHUNK_SIZE"
	EnvSubwalletGap    = "HDSWEEP_SUBWALLET_GAP"
	EnvParallel        = "HDSWEEP_PARALLEL"
	EnvTimeout         = "HDSWEEP_TIMEOUT"
	EnvMode            = "HDSWEEP_MODE"
	EnvEtherscanAPIKey = "HDSWEEP_ETHERSCAN_API_KEY" // #nosec G101 -- false positive, this is a const name not a credential
)

// NetworkEnvPrefix returns the per-network variable prefix, e.g.
// HDSWEEP_BTC_TESTNET_ for "BTC-Testnet". The URL, BACKEND and API_KEY
// suffixes override the matching network settings.
func NetworkEnvPrefix(name string) string {
	return "HDSWEEP_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_"
}

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	setPositiveInt(EnvChunkSize, &cfg.Recovery.ChunkSize)
	setPositiveInt(EnvSubwalletGap, &cfg.Recovery.SubwalletGapLimit)
	setPositiveInt(EnvParallel, &cfg.Recovery.ParallelNetworks)
	setPositiveInt(EnvTimeout, &cfg.Recovery.TimeoutSeconds)

	if v := os.Getenv(EnvMode); v != "" {
		cfg.Recovery.Mode = strings.ToLower(strings.TrimSpace(v))
	}

	if cfg.Networks == nil {
		cfg.Networks = DefaultNetworks()
	}
	etherscanKey := os.Getenv(EnvEtherscanAPIKey)
	for _, name := range network.Names() {
		nc := cfg.Networks[name]
		prefix := NetworkEnvPrefix(name)

		if v := os.Getenv(prefix + "URL"); v != "" {
			nc.URL = SanitizeURL(v)
		}
		if v := os.Getenv(prefix + "BACKEND"); v != "" {
			nc.Backend = strings.ToLower(strings.TrimSpace(v))
		}
		if v := os.Getenv(prefix + "API_KEY"); v != "" {
			nc.APIKey = v
		}
		if etherscanKey != "" && nc.APIKey == "" && nc.Backend == chain.BackendEtherscan.String() {
			nc.APIKey = etherscanKey
		}
		cfg.Networks[name] = nc
	}
}

func setPositiveInt(env string, dst *int) {
	v := os.Getenv(env)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
		*dst = n
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL cleans a URL string by removing invalid characters and trimming whitespace.
// This is useful for cleaning user-provided backend URLs that may contain copy-paste artifacts.
func SanitizeURL(url string) string {
	return sanitize.URL(strings.TrimSpace(url))
}
