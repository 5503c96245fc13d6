package cli

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/mrz1836/hdsweep/internal/metrics"
	"github.com/mrz1836/hdsweep/internal/output"
)

// writeJSON encodes the value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderStats prints a metrics snapshot.
func renderStats(w io.Writer, s metrics.Snapshot, format output.Format) error {
	if format == output.FormatJSON {
		return writeJSON(w, struct {
			Stats metrics.Snapshot `json:"stats"`
		}{s})
	}

	itoa := func(n int64) string { return strconv.FormatInt(n, 10) }

	outln(w)
	table := output.NewTable("COUNTER", "VALUE").AlignRight(1)
	table.AddRow("oracle calls", itoa(s.OracleCallsTotal))
	table.AddRow("oracle errors", itoa(s.OracleErrorsTotal))
	if s.OracleCallsTotal > 0 {
		table.AddRow("avg latency (ms)", strconv.FormatFloat(s.OracleLatencyAvgMs(), 'f', 1, 64))
	}
	for _, name := range s.Backends() {
		table.AddRow("  "+name, itoa(s.BackendCalls[name]))
	}
	table.AddRow("addresses checked", itoa(s.AddressesChecked))
	table.AddRow("funded addresses", itoa(s.FundedAddresses))
	table.AddRow("subwallets scanned", itoa(s.SubwalletsScanned))
	table.AddRow("networks recovered", itoa(s.NetworksRecovered))
	table.AddRow("networks empty", itoa(s.NetworksEmpty))
	table.AddRow("networks failed", itoa(s.NetworksFailed))
	return table.Render(w)
}
