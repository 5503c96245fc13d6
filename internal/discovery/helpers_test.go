package discovery

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mrz1836/hdsweep/internal/keypath"
	"github.com/mrz1836/hdsweep/internal/network"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

var errMockOracle = errors.New("mock oracle error")

// mockOracle is a test double for BalanceOracle.
type mockOracle struct {
	mu       sync.Mutex
	balances map[string]*big.Int
	failFor  map[string]error
	calls    []oracleCall
	short    bool
	onCall   func(n int)
}

type oracleCall struct {
	network   string
	addresses []string
}

func newMockOracle() *mockOracle {
	return &mockOracle{
		balances: make(map[string]*big.Int),
		failFor:  make(map[string]error),
	}
}

func (m *mockOracle) Fund(address string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[address] = big.NewInt(amount)
}

func (m *mockOracle) FailNetwork(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFor[name] = err
}

func (m *mockOracle) GetBalances(_ context.Context, networkName string, addresses []string) ([]*big.Int, error) {
	m.mu.Lock()
	m.calls = append(m.calls, oracleCall{network: networkName, addresses: append([]string(nil), addresses...)})
	n := len(m.calls)
	hook := m.onCall
	err := m.failFor[networkName]
	out := make([]*big.Int, 0, len(addresses))
	for _, a := range addresses {
		if b, ok := m.balances[a]; ok {
			out = append(out, b)
		} else {
			out = append(out, new(big.Int))
		}
	}
	if m.short {
		out = out[:len(out)-1]
	}
	m.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *mockOracle) Calls() []oracleCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]oracleCall(nil), m.calls...)
}

func (m *mockOracle) CallsFor(networkName string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.network == networkName {
			n++
		}
	}
	return n
}

// mockLogger captures log lines.
type mockLogger struct {
	mu     sync.Mutex
	debugs int
	errors int
}

func (l *mockLogger) Debug(string, ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugs++
}

func (l *mockLogger) Error(string, ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors++
}

// fixture is a network root plus a precomputed address grid.
type fixture struct {
	desc  network.Descriptor
	root  keypath.Pair
	grid  [][]string // [subwallet][index]
	index map[string][2]uint32
}

func newFixture(t testing.TB, name string, subs, perSub int) *fixture {
	t.Helper()

	d, err := network.Lookup(name)
	require.NoError(t, err)
	root, err := network.RootFromPhrase(d, testMnemonic, "")
	require.NoError(t, err)

	f := &fixture{desc: d, root: root, index: make(map[string][2]uint32)}
	s := d.Strategy()
	for sub := 0; sub < subs; sub++ {
		subNode, err := s.DeriveChild(root.Key, uint32(sub)) //nolint:gosec // small test index
		require.NoError(t, err)
		row := make([]string, perSub)
		for i := 0; i < perSub; i++ {
			node, err := s.DeriveChild(subNode, uint32(i)) //nolint:gosec // small test index
			require.NoError(t, err)
			row[i], err = s.Address(node)
			require.NoError(t, err)
			f.index[row[i]] = [2]uint32{uint32(sub), uint32(i)} //nolint:gosec // small test index
		}
		f.grid = append(f.grid, row)
	}
	return f
}

func (f *fixture) request() Request {
	return Request{Network: f.desc.Name, Node: f.root}
}

// fixtures are expensive to derive, so each one is built once per package run.
//
//nolint:gochecknoglobals // test cache
var (
	fixtureMu    sync.Mutex
	fixtureCache = map[string]*fixture{}
)

func sharedFixture(t testing.TB, name string) *fixture {
	t.Helper()
	fixtureMu.Lock()
	defer fixtureMu.Unlock()
	if f, ok := fixtureCache[name]; ok {
		return f
	}
	f := newFixture(t, name, 16, 12)
	fixtureCache[name] = f
	return f
}
