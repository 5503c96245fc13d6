package discovery

import (
	"context"
	"time"

	"github.com/mrz1836/hdsweep/internal/metrics"
	"github.com/mrz1836/hdsweep/internal/network"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// NetworkFailure records why one network of a batch produced no result.
type NetworkFailure struct {
	Network string `json:"network"`
	Err     error  `json:"-"`
	Message string `json:"error"`
}

// Report is the full outcome of a recovery batch.
type Report struct {
	// Networks holds every network that yielded at least one wallet, in
	// request order.
	Networks []RecoveredNetwork `json:"networks"`

	// Skipped lists request network names missing from the registry.
	Skipped []string `json:"skipped,omitempty"`

	// Empty lists networks that were scanned and had no funded address.
	Empty []string `json:"empty,omitempty"`

	// Failed lists networks whose scan returned an error.
	Failed []NetworkFailure `json:"failed,omitempty"`

	// Canceled is set when the context ended before the batch finished.
	Canceled bool `json:"canceled,omitempty"`

	Duration time.Duration `json:"duration_ns"`
}

// Recoverer runs recovery batches against one balance oracle.
type Recoverer struct {
	scanner *Scanner
	opts    *Options
}

// NewRecoverer creates a recoverer. Nil opts selects DefaultOptions.
func NewRecoverer(oracle BalanceOracle, opts *Options) *Recoverer {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Recoverer{
		scanner: NewScanner(oracle, opts),
		opts:    opts,
	}
}

// outcome of one request.
type outcome struct {
	known   bool
	wallets []RecoveredWallet
	err     error
}

// Recover scans every request and partitions the results.
//
// Unknown networks are skipped, networks without funds are left out of
// Networks, and a network whose scan errors does not stop the batch. The
// call itself fails only when every request errored; the returned error
// then wraps ErrAllNetworksFailed and the last error in request order.
func (r *Recoverer) Recover(ctx context.Context, requests []Request) (*Report, error) {
	if err := r.opts.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	outcomes := make([]outcome, len(requests))

	if r.opts.ParallelNetworks <= 1 {
		for i, req := range requests {
			outcomes[i] = r.recoverOne(ctx, req)
		}
	} else {
		r.recoverParallel(ctx, requests, outcomes)
	}

	report := &Report{Networks: make([]RecoveredNetwork, 0)}
	var lastErr error
	failures := 0
	for i, req := range requests {
		o := outcomes[i]
		switch {
		case !o.known:
			report.Skipped = append(report.Skipped, req.Network)
		case o.err != nil:
			failures++
			lastErr = o.err
			report.Failed = append(report.Failed, NetworkFailure{
				Network: req.Network,
				Err:     o.err,
				Message: o.err.Error(),
			})
		case len(o.wallets) == 0:
			report.Empty = append(report.Empty, req.Network)
		default:
			report.Networks = append(report.Networks, RecoveredNetwork{
				Network: req.Network,
				Wallets: o.wallets,
			})
		}
	}
	report.Canceled = ctx.Err() != nil
	report.Duration = time.Since(start)

	if len(requests) > 0 && failures == len(requests) {
		return report, sweeperr.Cause(sweeperr.ErrAllNetworksFailed, lastErr)
	}
	return report, nil
}

func (r *Recoverer) recoverOne(ctx context.Context, req Request) outcome {
	d, err := network.Lookup(req.Network)
	if err != nil {
		r.scanner.debug("skipping unknown network %q", req.Network)
		return outcome{}
	}

	r.scanner.debug("%s: recovering from %s", d.Name, req.Node.Path)
	wallets, err := r.scanner.ScanWallet(ctx, d, req.Node)
	if err != nil {
		r.scanner.logError("%s: recovery failed: %v", d.Name, err)
		metrics.Global.RecordNetwork(metrics.OutcomeFailed)
		r.scanner.reportProgress(ProgressUpdate{Phase: PhaseNetworkFailed, Network: d.Name, Err: err})
		return outcome{known: true, err: err}
	}

	if len(wallets) == 0 {
		metrics.Global.RecordNetwork(metrics.OutcomeEmpty)
	} else {
		metrics.Global.RecordNetwork(metrics.OutcomeRecovered)
	}
	r.scanner.debug("%s: recovered %d subwallet(s)", d.Name, len(wallets))
	r.scanner.reportProgress(ProgressUpdate{Phase: PhaseNetworkDone, Network: d.Name, Wallets: len(wallets)})
	return outcome{known: true, wallets: wallets}
}

// RecoverAllWallets recovers every request and returns only the networks
// that yielded wallets. See Recoverer.Recover for the failure policy.
func RecoverAllWallets(ctx context.Context, oracle BalanceOracle, requests []Request, opts *Options) ([]RecoveredNetwork, error) {
	report, err := NewRecoverer(oracle, opts).Recover(ctx, requests)
	if err != nil {
		return nil, err
	}
	return report.Networks, nil
}
