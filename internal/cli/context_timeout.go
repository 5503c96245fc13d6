package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// scanContext bounds a recovery run by timeout under the command's
// signal-aware context. A zero timeout leaves the run unbounded.
func scanContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, timeout)
}

// canceledError explains why a run stopped early.
func canceledError(ctx context.Context, timeout time.Duration) error {
	err := sweeperr.Cause(sweeperr.ErrScanCanceled, ctx.Err())
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return sweeperr.WithSuggestion(
			sweeperr.WithDetails(err, map[string]string{"timeout": timeout.String()}),
			"raise --timeout, or pass --timeout 0 to disable it",
		)
	}
	return err
}
