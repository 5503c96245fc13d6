// Package metrics provides process-wide recovery counters.
// This is a lightweight metrics foundation using atomic counters.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds recovery metrics using atomic counters for thread safety.
type Metrics struct {
	// Balance backend calls
	oracleCallsTotal   atomic.Int64
	oracleErrorsTotal  atomic.Int64
	oracleLatencyNanos atomic.Int64
	backendCalls       sync.Map // backend name -> *atomic.Int64

	// Scan progress
	addressesChecked  atomic.Int64
	fundedAddresses   atomic.Int64
	subwalletsScanned atomic.Int64

	// Per-network outcomes
	networksRecovered atomic.Int64
	networksEmpty     atomic.Int64
	networksFailed    atomic.Int64
}

// Global is the global metrics instance.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// RecordOracleCall records one balance backend call.
func (m *Metrics) RecordOracleCall(backend string, duration time.Duration, err error) {
	m.oracleCallsTotal.Add(1)
	m.oracleLatencyNanos.Add(duration.Nanoseconds())
	if err != nil {
		m.oracleErrorsTotal.Add(1)
	}

	counter, _ := m.backendCalls.LoadOrStore(backend, &atomic.Int64{})
	counter.(*atomic.Int64).Add(1) //nolint:forcetypeassert // only *atomic.Int64 is stored
}

// RecordChunk records one scanned address chunk and how many were funded.
func (m *Metrics) RecordChunk(checked, funded int) {
	m.addressesChecked.Add(int64(checked))
	m.fundedAddresses.Add(int64(funded))
}

// RecordSubwallet records one completed subwallet scan.
func (m *Metrics) RecordSubwallet() {
	m.subwalletsScanned.Add(1)
}

// Outcome of one network in a recovery batch.
type Outcome int

// Network outcomes.
const (
	OutcomeRecovered Outcome = iota
	OutcomeEmpty
	OutcomeFailed
)

// RecordNetwork records the outcome of one network scan.
func (m *Metrics) RecordNetwork(outcome Outcome) {
	switch outcome {
	case OutcomeRecovered:
		m.networksRecovered.Add(1)
	case OutcomeEmpty:
		m.networksEmpty.Add(1)
	case OutcomeFailed:
		m.networksFailed.Add(1)
	}
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	OracleCallsTotal   int64            `json:"oracle_calls_total"`
	OracleErrorsTotal  int64            `json:"oracle_errors_total"`
	OracleLatencyNanos int64            `json:"oracle_latency_nanos"`
	BackendCalls       map[string]int64 `json:"backend_calls,omitempty"`
	AddressesChecked   int64            `json:"addresses_checked"`
	FundedAddresses    int64            `json:"funded_addresses"`
	SubwalletsScanned  int64            `json:"subwallets_scanned"`
	NetworksRecovered  int64            `json:"networks_recovered"`
	NetworksEmpty      int64            `json:"networks_empty"`
	NetworksFailed     int64            `json:"networks_failed"`
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		OracleCallsTotal:   m.oracleCallsTotal.Load(),
		OracleErrorsTotal:  m.oracleErrorsTotal.Load(),
		OracleLatencyNanos: m.oracleLatencyNanos.Load(),
		BackendCalls:       make(map[string]int64),
		AddressesChecked:   m.addressesChecked.Load(),
		FundedAddresses:    m.fundedAddresses.Load(),
		SubwalletsScanned:  m.subwalletsScanned.Load(),
		NetworksRecovered:  m.networksRecovered.Load(),
		NetworksEmpty:      m.networksEmpty.Load(),
		NetworksFailed:     m.networksFailed.Load(),
	}
	m.backendCalls.Range(func(key, value any) bool {
		s.BackendCalls[key.(string)] = value.(*atomic.Int64).Load() //nolint:forcetypeassert // see RecordOracleCall
		return true
	})
	return s
}

// Backends returns the backend names with recorded calls, sorted.
func (s Snapshot) Backends() []string {
	names := make([]string, 0, len(s.BackendCalls))
	for name := range s.BackendCalls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OracleLatencyAvgMs returns the average backend latency in milliseconds,
// or 0 before the first call.
func (s Snapshot) OracleLatencyAvgMs() float64 {
	if s.OracleCallsTotal == 0 {
		return 0
	}
	return float64(s.OracleLatencyNanos) / float64(s.OracleCallsTotal) / 1e6
}

// Reset resets all metrics to zero.
// Useful for testing.
func (m *Metrics) Reset() {
	m.oracleCallsTotal.Store(0)
	m.oracleErrorsTotal.Store(0)
	m.oracleLatencyNanos.Store(0)
	m.backendCalls.Range(func(key, _ any) bool {
		m.backendCalls.Delete(key)
		return true
	})
	m.addressesChecked.Store(0)
	m.fundedAddresses.Store(0)
	m.subwalletsScanned.Store(0)
	m.networksRecovered.Store(0)
	m.networksEmpty.Store(0)
	m.networksFailed.Store(0)
}
