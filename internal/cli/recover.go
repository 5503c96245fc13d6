package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/hdsweep/internal/chain"
	"github.com/mrz1836/hdsweep/internal/config"
	"github.com/mrz1836/hdsweep/internal/discovery"
	"github.com/mrz1836/hdsweep/internal/metrics"
	"github.com/mrz1836/hdsweep/internal/output"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// recoverInput is a file holding the mnemonic, or "-" for stdin.
	recoverInput string
	// recoverPassphrase prompts for a BIP39 passphrase.
	recoverPassphrase bool
	// recoverNetworks restricts the scan to these networks.
	recoverNetworks []string
	// recoverRequests is an exported root list for watch-only recovery.
	recoverRequests string
	recoverChunk    int
	recoverGap      int
	recoverParallel int
	recoverTimeout  time.Duration
	recoverMode     string
	// recoverStats prints backend and scan counters to stderr.
	recoverStats bool
)

// recoverCmd scans networks for used subwallets and addresses.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Find the funded subwallets and addresses of a wallet",
	Long: `Recover the used part of an HD wallet's address space.

Every network root m/44'/<coin_type>'/0' is scanned subwallet by subwallet.
Addresses are checked in chunks; a subwallet ends at the first chunk with
no funded address, and a network ends after a run of empty subwallets.

The mnemonic is read from --input, from piped stdin, or from a hidden
prompt. With --requests, roots exported by "hdsweep roots" are scanned
instead and no mnemonic is needed.

Networks that fail do not stop the others. The command fails only when
every requested network failed.

Examples:
  hdsweep recover --input phrase.txt
  hdsweep recover --networks BTC,ETH,DAI --passphrase
  hdsweep recover --requests roots.json --chunk-size 20 --stats
  hdsweep recover --mode activity -o json < phrase.txt`,
	RunE: runRecover,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(recoverCmd)

	f := recoverCmd.Flags()
	f.StringVar(&recoverInput, "input", "", `file holding the mnemonic ("-" for stdin)`)
	f.BoolVar(&recoverPassphrase, "passphrase", false, "prompt for a BIP39 passphrase")
	f.StringSliceVar(&recoverNetworks, "networks", nil, "networks to scan (default: every enabled network)")
	f.StringVar(&recoverRequests, "requests", "", `JSON roots file from "hdsweep roots" ("-" for stdin)`)
	f.IntVar(&recoverChunk, "chunk-size", discovery.DefaultChunkSize, "addresses per balance lookup and address gap limit")
	f.IntVar(&recoverGap, "subwallet-gap", discovery.DefaultSubwalletGapLimit, "consecutive empty subwallets that end a network")
	f.IntVar(&recoverParallel, "parallel", discovery.DefaultParallelNetworks, "networks scanned at once")
	f.DurationVar(&recoverTimeout, "timeout", discovery.DefaultTimeout, "limit for the whole recovery (0 for none)")
	f.StringVar(&recoverMode, "mode", string(chain.ModeBalance), "funded test: balance or activity")
	f.BoolVar(&recoverStats, "stats", false, "print backend and scan counters to stderr")

	recoverCmd.MarkFlagsMutuallyExclusive("requests", "input")
	recoverCmd.MarkFlagsMutuallyExclusive("requests", "passphrase")
	_ = recoverCmd.RegisterFlagCompletionFunc("networks", completeNetworks)
}

func runRecover(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	opts, timeout, err := recoveryOptions(cmd, cc.Config)
	if err != nil {
		return err
	}

	requests, err := recoveryRequests(cc.Config)
	if err != nil {
		return err
	}

	router := cc.Backends.BuildRouter(cc.Config.Endpoints(requestNetworks(requests)))
	defer router.Close()

	stderr := cmd.ErrOrStderr()
	unavailable := router.Unavailable()
	names := make([]string, 0, len(unavailable))
	for name := range unavailable {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		output.Warnf(stderr, "%s: balance backend unavailable: %v", name, unavailable[name])
	}
	if opts.UsesDefaultGapLimits() {
		output.Warnf(stderr, "using the default gap limits (chunk %d, subwallet gap %d); funds past a longer gap are missed. Raise --chunk-size and --subwallet-gap for heavily used wallets.",
			discovery.DefaultChunkSize, discovery.DefaultSubwalletGapLimit)
	}

	opts.Logger = cc.Logger.With("recover")
	if !cc.Fmt.IsJSON() {
		opts.ProgressCallback = progressPrinter(stderr)
	}

	ctx, cancel := scanContext(cmd, timeout)
	defer cancel()

	report, recoverErr := discovery.NewRecoverer(router, opts).Recover(ctx, requests)
	if report == nil {
		return recoverErr
	}

	view := output.NewReportView(report, addressResolver(requests))
	if err := output.RenderReport(cmd.OutOrStdout(), view, cc.Fmt.Format()); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if recoverStats {
		if err := renderStats(stderr, metrics.Global.Snapshot(), cc.Fmt.Format()); err != nil {
			return fmt.Errorf("writing stats: %w", err)
		}
	}

	if recoverErr != nil {
		return recoverErr
	}
	if report.Canceled {
		return canceledError(ctx, timeout)
	}
	return nil
}

// recoveryOptions merges the config recovery section with explicit flags.
// Flags win only when set on the command line.
func recoveryOptions(cmd *cobra.Command, c *config.Config) (*discovery.Options, time.Duration, error) {
	flags := cmd.Flags()

	opts := &discovery.Options{
		ChunkSize:         c.Recovery.ChunkSize,
		SubwalletGapLimit: c.Recovery.SubwalletGapLimit,
		ParallelNetworks:  c.Recovery.ParallelNetworks,
	}
	if flags.Changed("chunk-size") {
		opts.ChunkSize = recoverChunk
	}
	if flags.Changed("subwallet-gap") {
		opts.SubwalletGapLimit = recoverGap
	}
	if flags.Changed("parallel") {
		opts.ParallelNetworks = recoverParallel
	}

	timeout := c.Timeout()
	if flags.Changed("timeout") {
		timeout = recoverTimeout
	}

	if flags.Changed("mode") {
		mode := chain.Mode(strings.ToLower(strings.TrimSpace(recoverMode)))
		if !mode.IsValid() {
			return nil, 0, sweeperr.WithDetails(
				sweeperr.WithSuggestion(sweeperr.ErrInvalidInput, "use --mode balance or --mode activity"),
				map[string]string{"mode": recoverMode},
			)
		}
		c.Recovery.Mode = string(mode)
	}

	if err := opts.Validate(); err != nil {
		return nil, 0, err
	}
	return opts, timeout, nil
}

// recoveryRequests loads exported roots, or derives them from a mnemonic.
func recoveryRequests(c *config.Config) ([]discovery.Request, error) {
	if recoverRequests != "" {
		requests, err := loadRequests(recoverRequests)
		if err != nil {
			return nil, err
		}
		if len(recoverNetworks) > 0 {
			requests = filterRequests(requests, selectNetworks(c, recoverNetworks))
		}
		return requests, nil
	}

	mnemonic, passphrase, err := readSecrets(recoverInput, recoverPassphrase)
	if err != nil {
		return nil, err
	}
	return deriveRequests(selectNetworks(c, recoverNetworks), mnemonic, passphrase)
}

// readSecrets reads and validates the mnemonic, then the passphrase when
// asked for.
func readSecrets(input string, withPassphrase bool) (string, string, error) {
	var raw string
	var err error
	if input != "" {
		raw, err = readMnemonicFile(input)
	} else {
		raw, err = promptMnemonicFn()
	}
	if err != nil {
		return "", "", err
	}

	mnemonic, err := checkedMnemonic(raw)
	if err != nil {
		return "", "", err
	}

	var passphrase string
	if withPassphrase {
		if passphrase, err = promptPassphrase(); err != nil {
			return "", "", err
		}
	}
	return mnemonic, passphrase, nil
}

// filterRequests keeps the requests whose network is in names.
func filterRequests(requests []discovery.Request, names []string) []discovery.Request {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	filtered := requests[:0:0]
	for _, req := range requests {
		if keep[req.Network] {
			filtered = append(filtered, req)
		}
	}
	return filtered
}

// progressPrinter reports subwallet and network results as they happen.
func progressPrinter(w io.Writer) discovery.ProgressCallback {
	return func(u discovery.ProgressUpdate) {
		switch u.Phase {
		case discovery.PhaseSubwalletDone:
			if len(u.Used) > 0 {
				out(w, "%s: subwallet %d has %d used address(es)\n", u.Network, u.Subwallet, len(u.Used))
			}
		case discovery.PhaseNetworkDone:
			out(w, "%s: done, %d subwallet(s) recovered\n", u.Network, u.Wallets)
		case discovery.PhaseNetworkFailed:
			out(w, "%s: failed: %v\n", u.Network, u.Err)
		}
	}
}
