package cli

import (
	"runtime"

	"github.com/spf13/cobra"
)

// versionCmd prints the build version.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the hdsweep version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cc := GetCmdContext(cmd)
		if cc.Fmt.IsJSON() {
			return writeJSON(cmd.OutOrStdout(), struct {
				BuildInfo
				Go string `json:"go"`
			}{buildInfo, runtime.Version()})
		}
		outln(cmd.OutOrStdout(), "hdsweep "+FormatVersion(buildInfo))
		return nil
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(versionCmd)
}
