package cli

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/hdsweep/internal/discovery"
	"github.com/mrz1836/hdsweep/internal/output"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

func decodeView(t *testing.T, stdout string) output.ReportView {
	t.Helper()
	var view output.ReportView
	require.NoError(t, json.Unmarshal([]byte(stdout), &view), stdout)
	return view
}

func TestRecover_FromMnemonicFile(t *testing.T) {
	srv := newIndexerServer(t, map[string]string{testBTCAddr0: "5000"})
	home := testHome(t, srv.URL)
	input := writeFile(t, t.TempDir(), "phrase.txt", testMnemonic+"\n")

	stdout, stderr, err := executeCommand(t, "--home", home, "-o", "json",
		"recover", "--input", input, "--networks", "BTC")
	require.NoError(t, err)

	view := decodeView(t, stdout)
	require.Len(t, view.Networks, 1)
	assert.Equal(t, "BTC", view.Networks[0].Network)
	require.Len(t, view.Networks[0].Wallets, 1)

	wallet := view.Networks[0].Wallets[0]
	assert.Equal(t, uint32(0), wallet.Subwallet)
	require.Len(t, wallet.Addresses, 1)
	assert.Equal(t, "m/44'/0'/0'/0/0", wallet.Addresses[0].Path)
	assert.Equal(t, testBTCAddr0, wallet.Addresses[0].Address)

	// Subwallet 0 takes two chunks, then three empty subwallets end the scan.
	assert.Equal(t, 5, srv.calls())
	assert.Contains(t, stderr, "warning: using the default gap limits")
	assert.FileExists(t, filepath.Join(home, "hdsweep.log"))
}

func TestRecover_CustomGapLimitsSuppressWarning(t *testing.T) {
	srv := newIndexerServer(t, nil)
	home := testHome(t, srv.URL)
	input := writeFile(t, t.TempDir(), "phrase.txt", testMnemonic)

	stdout, stderr, err := executeCommand(t, "--home", home, "-o", "json",
		"recover", "--input", input, "--networks", "BTC", "--chunk-size", "5", "--subwallet-gap", "1")
	require.NoError(t, err)

	view := decodeView(t, stdout)
	assert.Empty(t, view.Networks)
	assert.Equal(t, []string{"BTC"}, view.Empty)
	assert.NotContains(t, stderr, "default gap limits")
	assert.Equal(t, 1, srv.calls())
}

func TestRecover_WatchOnlyRoundTrip(t *testing.T) {
	srv := newIndexerServer(t, map[string]string{testETHAddr0: "1000000000000000000"})
	home := testHome(t, srv.URL)
	dir := t.TempDir()
	input := writeFile(t, dir, "phrase.txt", testMnemonic)
	rootsFile := filepath.Join(dir, "roots.json")

	_, stderr, err := executeCommand(t, "--home", home, "roots", "--input", input, "--networks", "BTC,ETH", "--out", rootsFile)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Wrote 2 root(s)")

	requests, err := loadRequests(rootsFile)
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, "m/44'/60'/0'", requests[1].Node.Path)

	stdout, _, err := executeCommand(t, "--home", home, "-o", "json", "recover", "--requests", rootsFile, "--networks", "ETH")
	require.NoError(t, err)

	view := decodeView(t, stdout)
	require.Len(t, view.Networks, 1)
	assert.Equal(t, "ETH", view.Networks[0].Network)
	assert.Equal(t, testETHAddr0, view.Networks[0].Wallets[0].Addresses[0].Address)
}

func TestRecover_UnknownNetworkSkipped(t *testing.T) {
	srv := newIndexerServer(t, map[string]string{testBTCAddr0: "1"})
	home := testHome(t, srv.URL)
	input := writeFile(t, t.TempDir(), "phrase.txt", testMnemonic)

	stdout, _, err := executeCommand(t, "--home", home, "-o", "json",
		"recover", "--input", input, "--networks", "DOGE,BTC")
	require.NoError(t, err)

	view := decodeView(t, stdout)
	assert.Equal(t, []string{"DOGE"}, view.Skipped)
	require.Len(t, view.Networks, 1)
}

func TestRecover_AllNetworksFail(t *testing.T) {
	srv := newIndexerServer(t, nil)
	srv.setStatus(http.StatusBadRequest)
	home := testHome(t, srv.URL)
	input := writeFile(t, t.TempDir(), "phrase.txt", testMnemonic)

	stdout, _, err := executeCommand(t, "--home", home, "-o", "json",
		"recover", "--input", input, "--networks", "BTC")
	require.Error(t, err)
	require.ErrorIs(t, err, sweeperr.ErrAllNetworksFailed)
	assert.Equal(t, sweeperr.ExitGeneral, ExitCode(err))

	view := decodeView(t, stdout)
	require.Len(t, view.Failed, 1)
	assert.Equal(t, "BTC", view.Failed[0].Network)
}

func TestRecover_UnavailableBackendFailsOnlyThatNetwork(t *testing.T) {
	t.Setenv("HDSWEEP_ETHERSCAN_API_KEY", "")
	t.Setenv("HDSWEEP_ETH_API_KEY", "")
	srv := newIndexerServer(t, map[string]string{testBTCAddr0: "1"})
	home := testHome(t, srv.URL)
	writeFile(t, home, "config.yaml", `version: 1
networks:
  BTC:
    backend: indexer
    url: `+srv.URL+`
  ETH:
    backend: etherscan
`)
	input := writeFile(t, t.TempDir(), "phrase.txt", testMnemonic)

	stdout, stderr, err := executeCommand(t, "--home", home, "-o", "json",
		"recover", "--input", input, "--networks", "BTC,ETH")
	require.NoError(t, err)
	assert.Contains(t, stderr, "ETH: balance backend unavailable")

	view := decodeView(t, stdout)
	require.Len(t, view.Networks, 1)
	assert.Equal(t, "BTC", view.Networks[0].Network)
	require.Len(t, view.Failed, 1)
	assert.Equal(t, "ETH", view.Failed[0].Network)
	assert.Contains(t, view.Failed[0].Message, "API key")
}

func TestRecover_TextOutputAndStats(t *testing.T) {
	srv := newIndexerServer(t, map[string]string{testBTCAddr0: "1"})
	home := testHome(t, srv.URL)
	input := writeFile(t, t.TempDir(), "phrase.txt", testMnemonic)

	stdout, stderr, err := executeCommand(t, "--home", home, "-o", "text",
		"recover", "--input", input, "--networks", "BTC", "--stats")
	require.NoError(t, err)

	assert.Contains(t, stdout, testBTCAddr0)
	assert.Contains(t, stdout, "m/44'/0'/0'/0/0")
	assert.Contains(t, stderr, "BTC: subwallet 0 has 1 used address(es)")
	assert.Contains(t, stderr, "BTC: done, 1 subwallet(s) recovered")
	assert.Contains(t, stderr, "oracle calls")
	assert.Contains(t, stderr, "indexer")
}

func TestRecover_VerboseMirrorsLog(t *testing.T) {
	srv := newIndexerServer(t, nil)
	home := testHome(t, srv.URL)
	input := writeFile(t, t.TempDir(), "phrase.txt", testMnemonic)

	_, stderr, err := executeCommand(t, "--home", home, "-o", "json", "-v",
		"recover", "--input", input, "--networks", "BTC")
	require.NoError(t, err)
	assert.Contains(t, stderr, "[DEBUG] recover: BTC: scanning subwallet m/44'/0'/0'/0")
}

func TestRecover_LogToStderr(t *testing.T) {
	srv := newIndexerServer(t, nil)
	home := t.TempDir()
	writeFile(t, home, "config.yaml", `version: 1
logging:
  level: error
  file: "-"
networks:
  BTC:
    backend: indexer
    url: `+srv.URL+`
`)
	srv.setStatus(http.StatusBadRequest)
	input := writeFile(t, t.TempDir(), "phrase.txt", testMnemonic)

	_, stderr, err := executeCommand(t, "--home", home, "-o", "json",
		"recover", "--input", input, "--networks", "BTC")
	require.ErrorIs(t, err, sweeperr.ErrAllNetworksFailed)
	assert.Contains(t, stderr, "[ERROR] recover: BTC: recovery failed")
	assert.NotContains(t, stderr, "[DEBUG]")
	assert.NoFileExists(t, filepath.Join(home, "hdsweep.log"))
}

func TestRecover_InvalidMnemonicSuggestsWord(t *testing.T) {
	srv := newIndexerServer(t, nil)
	home := testHome(t, srv.URL)
	input := writeFile(t, t.TempDir(), "phrase.txt",
		"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abuot")

	_, _, err := executeCommand(t, "--home", home, "recover", "--input", input)
	require.ErrorIs(t, err, sweeperr.ErrInvalidMnemonic)

	var se *sweeperr.Error
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Suggestion, "did you mean 'about'")
	assert.Zero(t, srv.calls())
}

func TestRecover_InvalidFlags(t *testing.T) {
	srv := newIndexerServer(t, nil)
	home := testHome(t, srv.URL)
	input := writeFile(t, t.TempDir(), "phrase.txt", testMnemonic)

	_, _, err := executeCommand(t, "--home", home, "recover", "--input", input, "--mode", "bogus")
	require.ErrorIs(t, err, sweeperr.ErrInvalidInput)

	_, _, err = executeCommand(t, "--home", home, "recover", "--input", input, "--chunk-size", "0")
	require.ErrorIs(t, err, discovery.ErrInvalidChunkSize)

	_, _, err = executeCommand(t, "--home", home, "recover", "--requests", "x.json", "--input", input)
	require.Error(t, err)
}

func TestRecover_MissingRequestsFile(t *testing.T) {
	srv := newIndexerServer(t, nil)
	home := testHome(t, srv.URL)

	_, _, err := executeCommand(t, "--home", home, "recover", "--requests", filepath.Join(t.TempDir(), "none.json"))
	require.ErrorIs(t, err, sweeperr.ErrNotFound)
}

func TestRecover_MnemonicFromPrompt(t *testing.T) {
	orig := promptMnemonicFn
	t.Cleanup(func() { promptMnemonicFn = orig })
	promptMnemonicFn = func() (string, error) { return "1. " + testMnemonic, nil }

	srv := newIndexerServer(t, map[string]string{testBTCAddr0: "1"})
	home := testHome(t, srv.URL)

	stdout, _, err := executeCommand(t, "--home", home, "-o", "json", "recover", "--networks", "BTC")
	require.NoError(t, err)
	assert.Len(t, decodeView(t, stdout).Networks, 1)
}

func TestRecover_ActivityModeFromConfigFlag(t *testing.T) {
	srv := newIndexerServer(t, nil)
	home := testHome(t, srv.URL)
	input := writeFile(t, t.TempDir(), "phrase.txt", testMnemonic)

	_, _, err := executeCommand(t, "--home", home, "-o", "json",
		"recover", "--input", input, "--networks", "BTC", "--mode", "activity", "--subwallet-gap", "1")
	require.NoError(t, err)

	// Activity mode asks the history endpoint once per address.
	assert.Equal(t, discovery.DefaultChunkSize, srv.calls())
}
