package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/hdsweep/internal/chain"
	"github.com/mrz1836/hdsweep/internal/config"
	"github.com/mrz1836/hdsweep/internal/network"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

func TestFormatVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		info BuildInfo
		want string
	}{
		{"all fields populated", BuildInfo{Version: "v1.2.3", Commit: "abc1234", Date: "2026-01-15"}, "v1.2.3 (commit: abc1234, built: 2026-01-15)"},
		{"all fields empty", BuildInfo{}, "dev (commit: unknown, built: unknown)"},
		{"only version empty", BuildInfo{Commit: "def5678", Date: "2026-02-20"}, "dev (commit: def5678, built: 2026-02-20)"},
		{"only date empty", BuildInfo{Version: "v3.0.0", Commit: "ghi9012"}, "v3.0.0 (commit: ghi9012, built: unknown)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, FormatVersion(tc.info))
		})
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, sweeperr.ExitSuccess, ExitCode(nil))
	assert.Equal(t, sweeperr.ExitInput, ExitCode(sweeperr.ErrInvalidMnemonic))
	assert.Equal(t, sweeperr.ExitCanceled, ExitCode(sweeperr.ErrScanCanceled))
}

func TestVersionCommand(t *testing.T) {
	home := t.TempDir()
	orig := buildInfo
	t.Cleanup(func() { SetBuildInfo(orig) })
	SetBuildInfo(BuildInfo{Version: "v0.3.0", Commit: "abc"})

	stdout, _, err := executeCommand(t, "--home", home, "-o", "text", "version")
	require.NoError(t, err)
	assert.Equal(t, "hdsweep v0.3.0 (commit: abc, built: unknown)\n", stdout)

	stdout, _, err = executeCommand(t, "--home", home, "-o", "json", "version")
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, "v0.3.0", got["version"])
	assert.NotEmpty(t, got["go"])
}

func TestNetworksCommand(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCommand(t, "--home", home, "-o", "json", "networks")
	require.NoError(t, err)

	var infos []NetworkInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &infos))
	require.Len(t, infos, len(network.Names()))

	byName := make(map[string]NetworkInfo, len(infos))
	for _, info := range infos {
		byName[info.Name] = info
	}
	assert.Equal(t, "m/44'/0'/0'", byName["BTC"].RootPath)
	assert.Equal(t, "esplora", byName["BTC"].Backend)
	assert.True(t, byName["BTC"].Enabled)
	assert.Equal(t, "ETH", byName["DAI"].Underlying)
	assert.False(t, byName["ETH-Ropsten"].Enabled)

	stdout, _, err = executeCommand(t, "--home", home, "-o", "text", "networks")
	require.NoError(t, err)
	assert.Contains(t, stdout, "RIF-Testnet")
	assert.Contains(t, stdout, "m/44'/37310'/0'")
}

func TestConfigInitShowPath(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCommand(t, "--home", home, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, config.Path(home)+"\n", stdout)

	_, _, err = executeCommand(t, "--home", home, "config", "init")
	require.NoError(t, err)
	assert.FileExists(t, config.Path(home))

	_, _, err = executeCommand(t, "--home", home, "config", "init")
	require.ErrorIs(t, err, sweeperr.ErrGeneral)

	_, _, err = executeCommand(t, "--home", home, "config", "init", "--force")
	require.NoError(t, err)

	t.Setenv(config.NetworkEnvPrefix("ETH")+"API_KEY", "ABCDEFGHIJKLMNOP")
	stdout, _, err = executeCommand(t, "--home", home, "-o", "json", "config", "show")
	require.NoError(t, err)

	var shown config.Config
	require.NoError(t, json.Unmarshal([]byte(stdout), &shown))
	assert.Equal(t, 3, shown.Recovery.ChunkSize)
	assert.Equal(t, "ABCD****MNOP", shown.Networks["ETH"].APIKey)
	assert.Empty(t, shown.Networks["BTC"].APIKey)
}

func TestInvalidConfigFileFails(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("recovery:\n  chunk_size: 0\n"), 0o600))

	_, _, err := executeCommand(t, "--home", home, "networks")
	require.ErrorIs(t, err, sweeperr.ErrConfigInvalid)

	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("recovery: [\n"), 0o600))
	_, _, err = executeCommand(t, "--home", home, "networks")
	require.ErrorIs(t, err, sweeperr.ErrConfigInvalid)
}

func TestCompletionCommand(t *testing.T) {
	stdout, _, err := executeCommand(t, "--home", t.TempDir(), "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, stdout, "hdsweep")
}

func TestCompleteNetworks(t *testing.T) {
	t.Parallel()

	names, _ := completeNetworks(nil, nil, "BTC,rs")
	assert.Equal(t, []string{"BTC,RSK", "BTC,RSK-Testnet"}, names)

	names, _ = completeNetworks(nil, nil, "dai")
	assert.Equal(t, []string{"DAI", "DAI-Ropsten"}, names)
}

func TestCommandContext(t *testing.T) {
	t.Parallel()

	cc := NewCommandContext(config.Defaults(), config.NullLogger(), nil)
	assert.Equal(t, []chain.Backend{
		chain.BackendEsplora, chain.BackendEtherscan, chain.BackendIndexer, chain.BackendRPC,
	}, cc.Backends.Backends())
}
