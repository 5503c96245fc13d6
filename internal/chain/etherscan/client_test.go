package etherscan

import (
	"context"
	"encoding/json"
	"fmt"
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
)

const (
	addrA    = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	addrB    = "0x6Fac4D18c912343BF86fa7049364Dd4E424Ab9C0"
	daiToken = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
)

func fastRetry() *chain.RetryConfig {
	return &chain.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func newTestClient(t *testing.T, ep chain.Endpoint) *Client {
	t.Helper()
	if ep.APIKey == "" {
		ep.APIKey = "test-key"
	}
	if ep.Network == "" {
		ep.Network = "ETH"
	}
	ep.RatePerSecond = 1000
	c, err := NewClient(ep, &ClientOptions{Retry: fastRetry()})
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("requires an API key", func(t *testing.T) {
		t.Parallel()
		_, err := NewClient(chain.Endpoint{Network: "ETH"}, nil)
		require.ErrorIs(t, err, ErrAPIKeyRequired)
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		c, err := NewClient(chain.Endpoint{Network: "ETH", APIKey: "k"}, nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultBaseURL, c.baseURL)
		assert.Equal(t, DefaultChainID, c.chainID)
		assert.Equal(t, chain.ModeBalance, c.mode)
	})

	t.Run("chain ID follows network", func(t *testing.T) {
		t.Parallel()
		c, err := NewClient(chain.Endpoint{Network: "DAI-Ropsten", APIKey: "k", URL: "https://custom.api/"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "3", c.chainID)
		assert.Equal(t, "https://custom.api", c.baseURL)
	})

	t.Run("option overrides chain ID", func(t *testing.T) {
		t.Parallel()
		c, err := NewClient(chain.Endpoint{Network: "ETH", APIKey: "k"}, &ClientOptions{ChainID: "11155111"})
		require.NoError(t, err)
		assert.Equal(t, "11155111", c.chainID)
	})
}

func TestGetBalances_BalanceMulti(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api", r.URL.Path)
		assert.Equal(t, "balancemulti", q.Get("action"))
		assert.Equal(t, "1", q.Get("chainid"))
		assert.Empty(t, q.Get("apikey"), "key travels in the header")
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, addrA+","+addrB, q.Get("address"))

		writeJSON(t, w, map[string]any{
			"status":  "1",
			"message": "OK",
			"result": []map[string]string{
				{"account": strings.ToLower(addrB), "balance": "0"},
				{"account": strings.ToLower(addrA), "balance": "40891626854930000000"},
			},
		})
	}))
	defer server.Close()

	c := newTestClient(t, chain.Endpoint{URL: server.URL})
	got, err := c.GetBalances(context.Background(), []string{addrA, addrB})
	require.NoError(t, err)

	want, _ := new(big.Int).SetString("40891626854930000000", 10)
	assert.Equal(t, 0, want.Cmp(got[0]))
	assert.Equal(t, 0, got[1].Sign())
}

func TestGetBalances_SplitsLargeBatches(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		accounts := strings.Split(r.URL.Query().Get("address"), ",")
		assert.LessOrEqual(t, len(accounts), MaxBatch)
		rows := make([]map[string]string, 0, len(accounts))
		for _, a := range accounts {
			rows = append(rows, map[string]string{"account": a, "balance": "1"})
		}
		writeJSON(t, w, map[string]any{"status": "1", "message": "OK", "result": rows})
	}))
	defer server.Close()

	addresses := make([]string, MaxBatch+5)
	for i := range addresses {
		addresses[i] = fmt.Sprintf("0x%040x", i+1)
	}

	c := newTestClient(t, chain.Endpoint{URL: server.URL})
	got, err := c.GetBalances(context.Background(), addresses)
	require.NoError(t, err)
	assert.Len(t, got, len(addresses))
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetBalances_Token(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "tokenbalance", q.Get("action"))
		assert.Equal(t, daiToken, q.Get("contractaddress"))
		result := "0"
		if q.Get("address") == addrA {
			result = "135499"
		}
		writeJSON(t, w, map[string]any{"status": "1", "message": "OK", "result": result})
	}))
	defer server.Close()

	c := newTestClient(t, chain.Endpoint{Network: "DAI", URL: server.URL, TokenContract: daiToken})
	got, err := c.GetBalances(context.Background(), []string{addrA, addrB})
	require.NoError(t, err)
	assert.Equal(t, []*big.Int{big.NewInt(135499), big.NewInt(0)}, got)
}

func TestGetBalances_Activity(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "txlist", q.Get("action"))
		if q.Get("address") == addrB {
			writeJSON(t, w, map[string]any{"status": "1", "message": "OK", "result": []map[string]string{{"hash": "0x01"}}})
			return
		}
		writeJSON(t, w, map[string]any{"status": "0", "message": "No transactions found", "result": []any{}})
	}))
	defer server.Close()

	c := newTestClient(t, chain.Endpoint{URL: server.URL, Mode: chain.ModeActivity})
	got, err := c.GetBalances(context.Background(), []string{addrA, addrB})
	require.NoError(t, err)
	assert.Equal(t, []*big.Int{big.NewInt(0), big.NewInt(1)}, got)
}

func TestGetBalances_Errors(t *testing.T) {
	t.Parallel()

	t.Run("api error", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(t, w, map[string]any{"status": "0", "message": "NOTOK", "result": "Invalid API Key"})
		}))
		defer server.Close()

		c := newTestClient(t, chain.Endpoint{URL: server.URL})
		_, err := c.GetBalances(context.Background(), []string{addrA})
		require.ErrorIs(t, err, ErrAPIError)
		assert.Contains(t, err.Error(), "Invalid API Key")
	})

	t.Run("rate limit is retried", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				writeJSON(t, w, map[string]any{"status": "0", "message": "NOTOK", "result": "Max rate limit reached"})
				return
			}
			writeJSON(t, w, map[string]any{"status": "1", "message": "OK", "result": []map[string]string{{"account": addrA, "balance": "5"}}})
		}))
		defer server.Close()

		c := newTestClient(t, chain.Endpoint{URL: server.URL})
		got, err := c.GetBalances(context.Background(), []string{addrA})
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(5), got[0])
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("missing account", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(t, w, map[string]any{"status": "1", "message": "OK", "result": []map[string]string{}})
		}))
		defer server.Close()

		c := newTestClient(t, chain.Endpoint{URL: server.URL})
		_, err := c.GetBalances(context.Background(), []string{addrA})
		require.ErrorIs(t, err, ErrInvalidBalance)
	})

	t.Run("bad amount", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(t, w, map[string]any{"status": "1", "message": "OK", "result": []map[string]string{{"account": addrA, "balance": "1.5"}}})
		}))
		defer server.Close()

		c := newTestClient(t, chain.Endpoint{URL: server.URL})
		_, err := c.GetBalances(context.Background(), []string{addrA})
		require.ErrorIs(t, err, ErrInvalidBalance)
	})
}
