package config

import (
	"github.com/mrz1836/hdsweep/internal/chain"
)

// Default backend endpoints. All are public and need no API key.
const (
	DefaultBTCEsploraURL        = "https://blockstream.info/api"
	DefaultBTCTestnetEsploraURL = "https://blockstream.info/testnet/api"
	DefaultETHRPCURL            = "https://ethereum-rpc.publicnode.com"
	DefaultRSKRPCURL            = "https://public-node.rsk.co"
	DefaultRSKTestnetRPCURL     = "https://public-node.testnet.rsk.co"
)

// Token contracts.
const (
	DAIContract        = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	RIFContract        = "0x2acc95758f8b5F583470bA265Eb685a8f45fC9D5"
	RIFTestnetContract = "0x19F64674D8A5B4E652319F5e239eFd3bc969A1fE"
)

// Recovery defaults.
const (
	DefaultChunkSize         = 3
	DefaultSubwalletGapLimit = 3
	DefaultParallelNetworks  = 1
	DefaultTimeoutSeconds    = 1800
)

func enabled(v bool) *bool {
	return &v
}

// DefaultNetworks returns the default backend of every registry network.
// The Ropsten networks are disabled; that chain is retired and needs an
// indexer to be useful.
func DefaultNetworks() map[string]NetworkConfig {
	rpc := chain.BackendRPC.String()
	return map[string]NetworkConfig{
		"BTC":         {Enabled: enabled(true), Backend: chain.BackendEsplora.String(), URL: DefaultBTCEsploraURL, RatePerSecond: 5},
		"BTC-Testnet": {Enabled: enabled(true), Backend: chain.BackendEsplora.String(), URL: DefaultBTCTestnetEsploraURL, RatePerSecond: 5},
		"ETH":         {Enabled: enabled(true), Backend: rpc, URL: DefaultETHRPCURL, RatePerSecond: 10},
		"ETH-Ropsten": {Enabled: enabled(false), Backend: chain.BackendIndexer.String()},
		"DAI":         {Enabled: enabled(true), Backend: rpc, URL: DefaultETHRPCURL, TokenContract: DAIContract, RatePerSecond: 10},
		"DAI-Ropsten": {Enabled: enabled(false), Backend: chain.BackendIndexer.String()},
		"RSK":         {Enabled: enabled(true), Backend: rpc, URL: DefaultRSKRPCURL, RatePerSecond: 5},
		"RSK-Testnet": {Enabled: enabled(true), Backend: rpc, URL: DefaultRSKTestnetRPCURL, RatePerSecond: 5},
		"RIF":         {Enabled: enabled(true), Backend: rpc, URL: DefaultRSKRPCURL, TokenContract: RIFContract, RatePerSecond: 5},
		"RIF-Testnet": {Enabled: enabled(true), Backend: rpc, URL: DefaultRSKTestnetRPCURL, TokenContract: RIFTestnetContract, RatePerSecond: 5},
	}
}

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.hdsweep",
		Recovery: RecoveryConfig{
			ChunkSize:         DefaultChunkSize,
			SubwalletGapLimit: DefaultSubwalletGapLimit,
			ParallelNetworks:  DefaultParallelNetworks,
			TimeoutSeconds:    DefaultTimeoutSeconds,
			Mode:              string(chain.ModeBalance),
		},
		Networks: DefaultNetworks(),
		Output: OutputConfig{
			DefaultFormat: "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
		},
	}
}
