package esplora

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/hdsweep/internal/chain"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

const (
	fundedAddr = "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA"
	spentAddr  = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	emptyAddr  = "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2"
)

func fastRetry() *chain.RetryConfig {
	return &chain.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func statsServer(t *testing.T, stats map[string]addressInfo) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := strings.TrimPrefix(r.URL.Path, "/address/")
		info, ok := stats[addr]
		if !ok {
			info = addressInfo{Address: addr}
		}
		assert.NoError(t, json.NewEncoder(w).Encode(info))
	}))
}

func newTestClient(t *testing.T, url string, mode chain.Mode) *Client {
	t.Helper()
	c, err := NewClient(chain.Endpoint{
		Network:       "BTC",
		Backend:       chain.BackendEsplora,
		URL:           url,
		Mode:          mode,
		RatePerSecond: 1000,
	}, &ClientOptions{Retry: fastRetry()})
	require.NoError(t, err)
	return c
}

func TestGetBalances_Balance(t *testing.T) {
	t.Parallel()

	server := statsServer(t, map[string]addressInfo{
		fundedAddr: {ChainStats: addressStats{FundedTxoSum: 5000, SpentTxoSum: 1000, TxCount: 2}, MempoolStats: addressStats{FundedTxoSum: 250, TxCount: 1}},
		spentAddr:  {ChainStats: addressStats{FundedTxoSum: 800, SpentTxoSum: 800, TxCount: 2}},
	})
	defer server.Close()

	c := newTestClient(t, server.URL, chain.ModeBalance)
	got, err := c.GetBalances(context.Background(), []string{fundedAddr, spentAddr, emptyAddr})
	require.NoError(t, err)
	assert.Equal(t, []*big.Int{big.NewInt(4250), big.NewInt(0), big.NewInt(0)}, got)
}

func TestGetBalances_Activity(t *testing.T) {
	t.Parallel()

	server := statsServer(t, map[string]addressInfo{
		spentAddr: {ChainStats: addressStats{FundedTxoSum: 800, SpentTxoSum: 800, TxCount: 2}},
	})
	defer server.Close()

	c := newTestClient(t, server.URL+"/", chain.ModeActivity)
	got, err := c.GetBalances(context.Background(), []string{fundedAddr, spentAddr})
	require.NoError(t, err)
	assert.Equal(t, []*big.Int{big.NewInt(0), big.NewInt(1)}, got)
}

func TestGetBalances_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"chain_stats":{"funded_txo_sum":9,"tx_count":1}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, chain.ModeBalance)
	got, err := c.GetBalances(context.Background(), []string{fundedAddr})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(9), got[0])
	assert.Equal(t, int32(2), hits.Load())
}

func TestGetBalances_PermanentError(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "bad address", http.StatusBadRequest)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, chain.ModeBalance)
	_, err := c.GetBalances(context.Background(), []string{fundedAddr})
	require.ErrorIs(t, err, sweeperr.ErrNetworkError)
	assert.Equal(t, int32(1), hits.Load())
}

func TestGetBalances_InvalidAddress(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, "http://127.0.0.1:1", chain.ModeBalance)
	_, err := c.GetBalances(context.Background(), []string{"0x9858EfFD232B4033E47d90003D41EC34EcaEda94"})
	require.ErrorIs(t, err, sweeperr.ErrInvalidAddress)

	_, err = c.GetBalances(context.Background(), []string{"mipcBbFg9gMiCh81Kj8tqqdgoZub1ZJRfn"})
	require.ErrorIs(t, err, sweeperr.ErrInvalidAddress, "testnet address on mainnet client")
}

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(chain.Endpoint{Network: "ETH", URL: "https://x"}, nil)
	require.ErrorIs(t, err, sweeperr.ErrNotSupported)

	_, err = NewClient(chain.Endpoint{Network: "DOGE", URL: "https://x"}, nil)
	require.ErrorIs(t, err, sweeperr.ErrUnknownNetwork)

	_, err = NewClient(chain.Endpoint{Network: "BTC", URL: "not a url"}, nil)
	require.ErrorIs(t, err, sweeperr.ErrConfigInvalid)

	reader, err := New(chain.Endpoint{Network: "BTC-Testnet", URL: "https://blockstream.info/testnet/api"})
	require.NoError(t, err)
	assert.Equal(t, chain.ModeBalance, reader.(*Client).mode)
}
