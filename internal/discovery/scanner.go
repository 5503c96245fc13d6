package discovery

import (
	"context"
	"strconv"
	"sync"

	"github.com/mrz1836/hdsweep/internal/keypath"
	"github.com/mrz1836/hdsweep/internal/metrics"
	"github.com/mrz1836/hdsweep/internal/network"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// Scanner walks the subwallets and addresses under one network root.
// A Scanner holds no per-scan state and may be shared across goroutines.
type Scanner struct {
	oracle     BalanceOracle
	opts       *Options
	progressMu sync.Mutex
}

// NewScanner creates a new scanner. Nil opts selects DefaultOptions.
func NewScanner(oracle BalanceOracle, opts *Options) *Scanner {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Scanner{
		oracle: oracle,
		opts:   opts,
	}
}

// ScanSubwallet returns the funded address indices under root, a subwallet
// node. Addresses are checked ChunkSize at a time and the scan stops at the
// first chunk where none is funded.
func (s *Scanner) ScanSubwallet(ctx context.Context, d network.Descriptor, root keypath.Pair) ([]uint32, error) {
	strategy := d.Strategy()
	chunk := uint32(s.opts.ChunkSize) //nolint:gosec // validated positive

	used := make([]uint32, 0)
	for start := uint32(0); ; start += chunk {
		if uint64(start)+uint64(chunk) > uint64(keypath.HardenedOffset) {
			return nil, exhausted(d.Name, root.Path)
		}

		addresses := make([]string, chunk)
		for i := uint32(0); i < chunk; i++ {
			node, err := strategy.DeriveChild(root.Key, start+i)
			if err != nil {
				return nil, sweeperr.Wrap(err, "derive %s", keypath.Join(root.Path, start+i))
			}
			if addresses[i], err = strategy.Address(node); err != nil {
				return nil, sweeperr.Wrap(err, "address %s", keypath.Join(root.Path, start+i))
			}
		}

		// The oracle call is the only suspension point.
		if err := ctx.Err(); err != nil {
			return nil, sweeperr.Cause(sweeperr.ErrScanCanceled, err)
		}

		balances, err := s.oracle.GetBalances(ctx, d.Name, addresses)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, sweeperr.Cause(sweeperr.ErrScanCanceled, ctxErr)
			}
			return nil, sweeperr.WithDetails(sweeperr.Cause(sweeperr.ErrOracle, err), map[string]string{
				"network": d.Name,
				"path":    keypath.Join(root.Path, start),
			})
		}
		if len(balances) != len(addresses) {
			return nil, sweeperr.WithDetails(sweeperr.ErrOracle, map[string]string{
				"network":  d.Name,
				"expected": strconv.Itoa(len(addresses)),
				"got":      strconv.Itoa(len(balances)),
			})
		}

		var found []uint32
		for i, balance := range balances {
			if balance != nil && balance.Sign() != 0 {
				found = append(found, start+uint32(i)) //nolint:gosec // i < chunk
			}
		}
		metrics.Global.RecordChunk(len(addresses), len(found))
		s.reportProgress(ProgressUpdate{
			Phase:      PhaseChunk,
			Network:    d.Name,
			StartIndex: start,
			Used:       found,
		})

		if len(found) == 0 {
			return used, nil
		}
		used = append(used, found...)
	}
}

// ScanWallet scans subwallets 0, 1, 2, ... under root, a network account
// root, and stops after SubwalletGapLimit consecutive empty subwallets.
func (s *Scanner) ScanWallet(ctx context.Context, d network.Descriptor, root keypath.Pair) ([]RecoveredWallet, error) {
	strategy := d.Strategy()

	wallets := make([]RecoveredWallet, 0)
	emptyRun := 0
	for sub := uint32(0); ; sub++ {
		if keypath.IsHardened(sub) {
			return nil, exhausted(d.Name, root.Path)
		}

		node, err := strategy.DeriveChild(root.Key, sub)
		if err != nil {
			return nil, sweeperr.Wrap(err, "derive %s", keypath.Join(root.Path, sub))
		}
		subRoot := root.Child(sub, node)

		s.debug("%s: scanning subwallet %s", d.Name, subRoot.Path)
		used, err := s.ScanSubwallet(ctx, d, subRoot)
		if err != nil {
			return nil, err
		}
		metrics.Global.RecordSubwallet()
		s.reportProgress(ProgressUpdate{
			Phase:     PhaseSubwalletDone,
			Network:   d.Name,
			Subwallet: sub,
			Used:      used,
		})

		if len(used) == 0 {
			emptyRun++
			if emptyRun >= s.opts.SubwalletGapLimit {
				return wallets, nil
			}
			continue
		}

		emptyRun = 0
		wallets = append(wallets, RecoveredWallet{SubwalletIndex: sub, UsedAddresses: used})
	}
}

// reportProgress calls the progress callback, one call at a time.
//
//nolint:funcorder // Helper method grouped with callers for readability
func (s *Scanner) reportProgress(update ProgressUpdate) {
	if s.opts.ProgressCallback == nil {
		return
	}
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	s.opts.ProgressCallback(update)
}

//nolint:funcorder // Helper method grouped with callers for readability
func (s *Scanner) debug(format string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Debug(format, args...)
	}
}

//nolint:funcorder // Helper method grouped with callers for readability
func (s *Scanner) logError(format string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Error(format, args...)
	}
}

func exhausted(networkName, path string) error {
	return sweeperr.WithDetails(sweeperr.ErrDerivation, map[string]string{
		"network": networkName,
		"path":    path,
		"reason":  "non-hardened index space exhausted",
	})
}
