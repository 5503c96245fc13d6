// Package chain provides the balance backends that answer funding queries
// during recovery, and the router that dispatches to them by network name.
package chain

import (
	"context"
	"math/big"
	"strings"
)

// Backend identifies a balance backend implementation.
type Backend string

// Supported backends.
const (
	BackendEsplora   Backend = "esplora"
	BackendRPC       Backend = "rpc"
	BackendEtherscan Backend = "etherscan"
	BackendIndexer   Backend = "indexer"
)

// String returns the backend identifier string.
func (b Backend) String() string {
	return string(b)
}

// IsValid returns true if the backend is a known implementation.
func (b Backend) IsValid() bool {
	switch b {
	case BackendEsplora, BackendRPC, BackendEtherscan, BackendIndexer:
		return true
	default:
		return false
	}
}

// ParseBackend parses a backend name, ignoring case.
func ParseBackend(s string) (Backend, bool) {
	b := Backend(strings.ToLower(strings.TrimSpace(s)))
	return b, b.IsValid()
}

// Mode selects what counts as a funded address.
type Mode string

// Funding modes.
const (
	// ModeBalance reports the current balance of each address.
	ModeBalance Mode = "balance"

	// ModeActivity reports 1 for any address with transaction history, even
	// when its balance is now zero.
	ModeActivity Mode = "activity"
)

// IsValid returns true if the mode is known.
func (m Mode) IsValid() bool {
	return m == ModeBalance || m == ModeActivity
}

// BatchBalanceReader answers funding queries for one network.
type BatchBalanceReader interface {
	// GetBalances returns one quantity per address, in order. Balances are
	// in the smallest unit (satoshis, wei, token base units).
	GetBalances(ctx context.Context, addresses []string) ([]*big.Int, error)
}

// Endpoint is the resolved backend configuration for one network.
type Endpoint struct {
	Network       string
	Backend       Backend
	URL           string
	APIKey        string
	TokenContract string
	RatePerSecond float64
	Mode          Mode
}

// IsToken returns true if balances are read from a token contract.
func (e Endpoint) IsToken() bool {
	return e.TokenContract != ""
}

// ClientCloser is implemented by readers that need cleanup.
type ClientCloser interface {
	Close()
}
