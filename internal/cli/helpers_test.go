package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/hdsweep/internal/metrics"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

	// First BIP44 addresses of testMnemonic.
	testBTCAddr0 = "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA"
	testETHAddr0 = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
)

// resetFlags restores every flag of cmd and its children to its default,
// since cobra keeps parsed values between executions.
func resetFlags(cmd *cobra.Command) {
	for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
		fs.VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	}
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

// executeCommand runs the root command with args and returns stdout and
// stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// writeFile writes content under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// indexerServer is a fake indexer answering getBalances from a fixed table.
type indexerServer struct {
	*httptest.Server

	mu      sync.Mutex
	status  int
	funded  map[string]string
	queries []string
}

func newIndexerServer(t *testing.T, funded map[string]string) *indexerServer {
	t.Helper()
	s := &indexerServer{status: http.StatusOK, funded: funded}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *indexerServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = append(s.queries, r.URL.Query().Get("coin")+":"+r.URL.Query().Get("addresses"))
	if s.status != http.StatusOK {
		w.WriteHeader(s.status)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
		return
	}

	type row struct {
		Addr     string `json:"addr"`
		Quantity string `json:"quantity"`
	}
	var rows []row
	for _, addr := range strings.Split(r.URL.Query().Get("addresses"), ",") {
		q, ok := s.funded[addr]
		if !ok {
			q = "0"
		}
		rows = append(rows, row{Addr: addr, Quantity: q})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

func (s *indexerServer) setStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
}

func (s *indexerServer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

// testHome creates a home directory whose config routes BTC and ETH to
// the fake indexer.
func testHome(t *testing.T, indexerURL string) string {
	t.Helper()
	t.Setenv("HDSWEEP_HOME", "")
	metrics.Global.Reset()

	home := t.TempDir()
	writeFile(t, home, "config.yaml", `version: 1
logging:
  level: debug
networks:
  BTC:
    backend: indexer
    url: `+indexerURL+`
  ETH:
    backend: indexer
    url: `+indexerURL+`
`)
	return home
}
