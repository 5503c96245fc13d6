package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/hdsweep/internal/chain"
	"github.com/mrz1836/hdsweep/internal/network"
	"github.com/mrz1836/hdsweep/internal/output"
)

// networksCmd lists the supported networks.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List supported networks and their balance backends",
	RunE:  runNetworks,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(networksCmd)
}

// NetworkInfo describes one registry entry and its configured backend.
type NetworkInfo struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	CoinType   uint32 `json:"coin_type"`
	RootPath   string `json:"root_path"`
	Underlying string `json:"underlying,omitempty"`
	Backend    string `json:"backend,omitempty"`
	URL        string `json:"url,omitempty"`
	Enabled    bool   `json:"enabled"`
}

func runNetworks(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	descs := network.All()
	infos := make([]NetworkInfo, 0, len(descs))
	for _, d := range descs {
		nc := cc.Config.Networks[d.Name]
		infos = append(infos, NetworkInfo{
			Name:       d.Name,
			Kind:       d.Kind.String(),
			CoinType:   d.CoinType,
			RootPath:   d.RootPath(),
			Underlying: d.Underlying,
			Backend:    nc.Backend,
			URL:        nc.URL,
			Enabled:    nc.IsEnabled() && cc.Backends.IsSupported(chain.Backend(nc.Backend)),
		})
	}

	if cc.Fmt.IsJSON() {
		return writeJSON(cmd.OutOrStdout(), infos)
	}

	table := output.NewTable("NAME", "KIND", "COIN", "ROOT", "BACKEND", "ENABLED").AlignRight(2)
	for _, info := range infos {
		enabled := "no"
		if info.Enabled {
			enabled = "yes"
		}
		table.AddRow(info.Name, info.Kind, strconv.FormatUint(uint64(info.CoinType), 10), info.RootPath, info.Backend, enabled)
	}
	return table.Render(cmd.OutOrStdout())
}
