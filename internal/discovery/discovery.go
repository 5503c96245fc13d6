// Package discovery recovers the used part of an HD wallet's address space.
//
// Each network root m/44'/<coin_type>'/0' is scanned subwallet by subwallet
// (m/44'/c'/0'/<subwallet>), and each subwallet address by address
// (m/44'/c'/0'/<subwallet>/<index>). Both levels stop on a gap limit: a
// subwallet ends at the first address chunk with no funded address, and a
// wallet ends after a run of subwallets with no funded address. All balance
// lookups go through a BalanceOracle.
package discovery

import (
	"context"
	"math/big"
	"strconv"
	"time"

	"github.com/mrz1836/hdsweep/internal/keypath"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// Default scanning parameters.
const (
	// DefaultChunkSize is the number of addresses checked per oracle call.
	// A subwallet ends at the first chunk with no funded address, so this is
	// also the address gap limit. It is much tighter than the BIP44 gap of
	// 20; raise it for wallets that skipped addresses.
	DefaultChunkSize = 3

	// DefaultSubwalletGapLimit is the number of consecutive empty subwallets
	// that ends a wallet scan.
	DefaultSubwalletGapLimit = 3

	// DefaultParallelNetworks scans networks one after another.
	DefaultParallelNetworks = 1

	// DefaultTimeout bounds a whole recovery batch.
	DefaultTimeout = 30 * time.Minute
)

// Option errors.
var (
	ErrInvalidChunkSize = &sweeperr.Error{
		Code:     "INVALID_CHUNK_SIZE",
		Message:  "chunk size must be positive",
		ExitCode: sweeperr.ExitInput,
	}

	ErrInvalidGapLimit = &sweeperr.Error{
		Code:     "INVALID_GAP_LIMIT",
		Message:  "subwallet gap limit must be positive",
		ExitCode: sweeperr.ExitInput,
	}

	ErrInvalidParallelism = &sweeperr.Error{
		Code:     "INVALID_PARALLELISM",
		Message:  "parallel networks must be positive",
		ExitCode: sweeperr.ExitInput,
	}
)

// BalanceOracle answers "is this address funded" for a batch of addresses.
// It returns one quantity per address, in order. Zero means unfunded and any
// other value means funded; either real balances or 0/1 activity flags work.
type BalanceOracle interface {
	GetBalances(ctx context.Context, network string, addresses []string) ([]*big.Int, error)
}

// BalanceOracleFunc adapts a function to BalanceOracle.
type BalanceOracleFunc func(ctx context.Context, network string, addresses []string) ([]*big.Int, error)

// GetBalances calls f.
func (f BalanceOracleFunc) GetBalances(ctx context.Context, network string, addresses []string) ([]*big.Int, error) {
	return f(ctx, network, addresses)
}

// Logger is the interface for scan logging.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Progress phases.
const (
	PhaseChunk         = "chunk"
	PhaseSubwalletDone = "subwallet_done"
	PhaseNetworkDone   = "network_done"
	PhaseNetworkFailed = "network_failed"
)

// ProgressUpdate provides feedback during scanning.
type ProgressUpdate struct {
	Phase   string
	Network string

	// Subwallet is the subwallet index being scanned.
	Subwallet uint32

	// StartIndex is the first address index of the chunk (PhaseChunk).
	StartIndex uint32

	// Used lists funded address indices found in the chunk or subwallet.
	Used []uint32

	// Wallets is the number of recovered subwallets (PhaseNetworkDone).
	Wallets int

	Err error
}

// ProgressCallback is called during scanning to report progress.
// Calls are serialized even when networks are scanned in parallel.
type ProgressCallback func(ProgressUpdate)

// Options configures a recovery.
type Options struct {
	// ChunkSize is the number of addresses per oracle call and the address
	// gap limit. Default: DefaultChunkSize (3).
	ChunkSize int

	// SubwalletGapLimit is the number of consecutive empty subwallets that
	// ends a wallet scan. Default: DefaultSubwalletGapLimit (3).
	SubwalletGapLimit int

	// ParallelNetworks bounds how many networks are scanned at once.
	// Default: DefaultParallelNetworks (1, sequential).
	ParallelNetworks int

	// ProgressCallback receives updates during scanning.
	ProgressCallback ProgressCallback

	// Logger receives debug and error logs. Nil disables logging.
	Logger Logger
}

// DefaultOptions returns options with the default gap limits.
func DefaultOptions() *Options {
	return &Options{
		ChunkSize:         DefaultChunkSize,
		SubwalletGapLimit: DefaultSubwalletGapLimit,
		ParallelNetworks:  DefaultParallelNetworks,
	}
}

// Validate checks that the options are valid.
func (o *Options) Validate() error {
	if o.ChunkSize <= 0 {
		return sweeperr.WithDetails(ErrInvalidChunkSize, map[string]string{"value": strconv.Itoa(o.ChunkSize)})
	}
	if o.SubwalletGapLimit <= 0 {
		return sweeperr.WithDetails(ErrInvalidGapLimit, map[string]string{"value": strconv.Itoa(o.SubwalletGapLimit)})
	}
	if o.ParallelNetworks <= 0 {
		return sweeperr.WithDetails(ErrInvalidParallelism, map[string]string{"value": strconv.Itoa(o.ParallelNetworks)})
	}
	return nil
}

// UsesDefaultGapLimits reports whether both gap limits are at their defaults.
func (o *Options) UsesDefaultGapLimits() bool {
	return o.ChunkSize == DefaultChunkSize && o.SubwalletGapLimit == DefaultSubwalletGapLimit
}

// RecoveredWallet is a subwallet with at least one funded address.
type RecoveredWallet struct {
	SubwalletIndex uint32   `json:"subwallet_index"`
	UsedAddresses  []uint32 `json:"used_addresses"`
}

// RecoveredNetwork is a network with at least one recovered subwallet.
type RecoveredNetwork struct {
	Network string            `json:"network"`
	Wallets []RecoveredWallet `json:"wallets"`
}

// Request asks for one network to be recovered from its public root.
type Request struct {
	Network string       `json:"network"`
	Node    keypath.Pair `json:"node"`
}
