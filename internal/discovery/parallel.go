package discovery

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// recoverParallel scans up to ParallelNetworks requests at once. Network
// scans share nothing but the oracle, and each goroutine writes only its own
// slot of outcomes, so results keep request order.
//
//nolint:funcorder // grouped with Recover in its own file
func (r *Recoverer) recoverParallel(ctx context.Context, requests []Request, outcomes []outcome) {
	var g errgroup.Group
	g.SetLimit(r.opts.ParallelNetworks)

	for i, req := range requests {
		g.Go(func() error {
			outcomes[i] = r.recoverOne(ctx, req)
			return nil
		})
	}

	// Failures are carried in outcomes, never returned to the group.
	_ = g.Wait()
}
