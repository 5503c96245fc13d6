package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/hdsweep/internal/discovery"
	"github.com/mrz1836/hdsweep/internal/fileutil"
	"github.com/mrz1836/hdsweep/internal/output"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	rootsInput      string
	rootsPassphrase bool
	rootsNetworks   []string
	// rootsOut writes the roots to a file instead of stdout.
	rootsOut string
	// rootsQR renders each root as a QR code on a terminal.
	rootsQR bool
)

// rootsCmd exports public network roots for watch-only recovery.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var rootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "Export public network roots for watch-only recovery",
	Long: `Derive the public root m/44'/<coin_type>'/0' of each network and write
them as JSON. The file holds no private key material; feed it to
"hdsweep recover --requests" on any machine to scan without the mnemonic.

Examples:
  hdsweep roots --input phrase.txt > roots.json
  hdsweep roots --networks BTC,RSK --out roots.json
  hdsweep roots --networks BTC --qr`,
	RunE: runRoots,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(rootsCmd)

	f := rootsCmd.Flags()
	f.StringVar(&rootsInput, "input", "", `file holding the mnemonic ("-" for stdin)`)
	f.BoolVar(&rootsPassphrase, "passphrase", false, "prompt for a BIP39 passphrase")
	f.StringSliceVar(&rootsNetworks, "networks", nil, "networks to export (default: every enabled network)")
	f.StringVar(&rootsOut, "out", "", "write to this file instead of stdout")
	f.BoolVar(&rootsQR, "qr", false, "also show each root as a QR code (terminal only)")

	_ = rootsCmd.RegisterFlagCompletionFunc("networks", completeNetworks)
}

func runRoots(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	mnemonic, passphrase, err := readSecrets(rootsInput, rootsPassphrase)
	if err != nil {
		return err
	}

	requests, err := deriveRequests(selectNetworks(cc.Config, rootsNetworks), mnemonic, passphrase)
	if err != nil {
		return err
	}

	known := requests[:0:0]
	for _, req := range requests {
		if req.Node.Key == "" {
			output.Warnf(cmd.ErrOrStderr(), "skipping unknown network %q", req.Network)
			continue
		}
		known = append(known, req)
	}

	if err := writeRoots(cmd, known); err != nil {
		return err
	}

	if rootsQR {
		cfgQR := output.DefaultQRConfig()
		for _, req := range known {
			label := fmt.Sprintf("%s %s", req.Network, req.Node.Path)
			if err := output.RenderQR(cmd.ErrOrStderr(), label, req.Node.Key, cfgQR); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeRoots(cmd *cobra.Command, requests []discovery.Request) error {
	if rootsOut == "" {
		return writeJSON(cmd.OutOrStdout(), requests)
	}

	err := fileutil.WriteAtomicFunc(rootsOut, 0o600, func(w io.Writer) error {
		return writeJSON(w, requests)
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", rootsOut, err)
	}
	output.Infof(cmd.ErrOrStderr(), "Wrote %d root(s) to %s", len(requests), rootsOut)
	return nil
}
