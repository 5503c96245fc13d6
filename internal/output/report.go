package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mrz1836/hdsweep/internal/discovery"
)

// AddressResolver maps a used position of a network to its derivation path
// and address.
type AddressResolver func(network string, subwallet, index uint32) (path, address string, err error)

// AddressView is one used address of a recovered subwallet.
type AddressView struct {
	Index   uint32 `json:"index"`
	Path    string `json:"path,omitempty"`
	Address string `json:"address,omitempty"`
}

// WalletView is one recovered subwallet.
type WalletView struct {
	Subwallet uint32        `json:"subwallet"`
	Addresses []AddressView `json:"addresses"`
}

// NetworkView is one recovered network.
type NetworkView struct {
	Network string       `json:"network"`
	Wallets []WalletView `json:"wallets"`
}

// ReportView is the printable form of a recovery report.
type ReportView struct {
	Networks   []NetworkView              `json:"networks"`
	Skipped    []string                   `json:"skipped,omitempty"`
	Empty      []string                   `json:"empty,omitempty"`
	Failed     []discovery.NetworkFailure `json:"failed,omitempty"`
	Canceled   bool                       `json:"canceled,omitempty"`
	DurationMs int64                      `json:"duration_ms"`
}

// NewReportView builds a view of report. A nil resolver leaves paths and
// addresses empty; a resolver error is reported in place of the address.
func NewReportView(report *discovery.Report, resolve AddressResolver) ReportView {
	view := ReportView{
		Networks:   make([]NetworkView, 0, len(report.Networks)),
		Skipped:    report.Skipped,
		Empty:      report.Empty,
		Failed:     report.Failed,
		Canceled:   report.Canceled,
		DurationMs: report.Duration.Milliseconds(),
	}

	for _, rn := range report.Networks {
		nv := NetworkView{Network: rn.Network, Wallets: make([]WalletView, 0, len(rn.Wallets))}
		for _, w := range rn.Wallets {
			wv := WalletView{Subwallet: w.SubwalletIndex, Addresses: make([]AddressView, 0, len(w.UsedAddresses))}
			for _, idx := range w.UsedAddresses {
				av := AddressView{Index: idx}
				if resolve != nil {
					path, addr, err := resolve(rn.Network, w.SubwalletIndex, idx)
					if err != nil {
						addr = "<" + err.Error() + ">"
					}
					av.Path, av.Address = path, addr
				}
				wv.Addresses = append(wv.Addresses, av)
			}
			nv.Wallets = append(nv.Wallets, wv)
		}
		view.Networks = append(view.Networks, nv)
	}
	return view
}

// RenderReport writes view in the given format.
func RenderReport(w io.Writer, view ReportView, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, view)
	}

	if len(view.Networks) == 0 {
		if _, err := fmt.Fprintln(w, "No funded addresses found."); err != nil {
			return err
		}
	} else {
		table := NewTable("NETWORK", "SUBWALLET", "INDEX", "PATH", "ADDRESS").AlignRight(1, 2).MergeRepeats(0, 1)
		for _, nv := range view.Networks {
			for _, wv := range nv.Wallets {
				for _, av := range wv.Addresses {
					table.AddRow(nv.Network, strconv.FormatUint(uint64(wv.Subwallet), 10),
						strconv.FormatUint(uint64(av.Index), 10), av.Path, av.Address)
				}
			}
		}
		if err := table.Render(w); err != nil {
			return err
		}
	}

	return renderSummary(w, view)
}

func renderSummary(w io.Writer, view ReportView) error {
	var sb strings.Builder
	if len(view.Empty) > 0 {
		fmt.Fprintf(&sb, "\nNo funds: %s\n", strings.Join(view.Empty, ", "))
	}
	if len(view.Skipped) > 0 {
		fmt.Fprintf(&sb, "\nSkipped (unknown network): %s\n", strings.Join(view.Skipped, ", "))
	}
	if len(view.Failed) > 0 {
		sb.WriteString("\nFailed:\n")
		for _, f := range view.Failed {
			fmt.Fprintf(&sb, "  %s: %s\n", f.Network, f.Message)
		}
	}
	if view.Canceled {
		sb.WriteString("\nRecovery was interrupted; results are partial.\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
