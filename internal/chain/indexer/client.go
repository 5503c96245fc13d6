// Package indexer reads balances from a wallet indexer service exposing
// GET /getBalances?addresses=a,b&coin=NETWORK.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mrz1836/hdsweep/internal/chain"
	"github.com/mrz1836/hdsweep/internal/metrics"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// ErrInvalidQuantity indicates a quantity in the response is not an integer.
var ErrInvalidQuantity = &sweeperr.Error{
	Code:     "INDEXER_INVALID_QUANTITY",
	Message:  "invalid quantity in indexer response",
	ExitCode: sweeperr.ExitGeneral,
}

// balance is one row of the getBalances response.
type balance struct {
	Addr     string      `json:"addr"`
	Quantity json.Number `json:"quantity"`
}

// Client is an indexer balance reader for one network.
type Client struct {
	network     string
	coin        string
	baseURL     string
	apiKey      string
	mode        chain.Mode
	httpClient  *http.Client
	rateLimiter *chain.RateLimiter
	retry       chain.RetryConfig
}

// ClientOptions configures the indexer client.
type ClientOptions struct {
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
	// Retry overrides the default retry configuration.
	Retry *chain.RetryConfig
	// Coin overrides the coin query value, which defaults to the network name.
	Coin string
}

// NewClient creates a client for ep.
func NewClient(ep chain.Endpoint, opts *ClientOptions) (*Client, error) {
	if err := chain.ValidateURL(ep); err != nil {
		return nil, err
	}

	c := &Client{
		network:     ep.Network,
		coin:        ep.Network,
		baseURL:     strings.TrimRight(ep.URL, "/"),
		apiKey:      ep.APIKey,
		mode:        ep.Mode,
		httpClient:  chain.NewHTTPClient(),
		rateLimiter: chain.RateLimiterFor(ep),
		retry:       chain.DefaultRetryConfig(),
	}
	if c.mode == "" {
		c.mode = chain.ModeBalance
	}

	if opts != nil {
		if opts.HTTPClient != nil {
			c.httpClient = opts.HTTPClient
		}
		if opts.Retry != nil {
			c.retry = *opts.Retry
		}
		if opts.Coin != "" {
			c.coin = opts.Coin
		}
	}
	return c, nil
}

// New is the chain.Creator for the indexer backend.
func New(ep chain.Endpoint) (chain.BatchBalanceReader, error) {
	return NewClient(ep, nil)
}

// GetBalances returns one quantity per address. The indexer answers every
// address it is asked about, so a missing row is an oracle error.
func (c *Client) GetBalances(ctx context.Context, addresses []string) ([]*big.Int, error) {
	start := time.Now()
	var out []*big.Int
	var err error
	if c.mode == chain.ModeActivity {
		out, err = c.activity(ctx, addresses)
	} else {
		out, err = c.balances(ctx, addresses)
	}
	metrics.Global.RecordOracleCall(chain.BackendIndexer.String(), time.Since(start), err)
	if err != nil {
		return nil, sweeperr.Wrap(err, "indexer %s", c.network)
	}
	return out, nil
}

func (c *Client) balances(ctx context.Context, addresses []string) ([]*big.Int, error) {
	query := url.Values{
		"addresses": {strings.Join(addresses, ",")},
		"coin":      {c.coin},
	}

	var rows []balance
	if err := c.get(ctx, "/getBalances", query, &rows); err != nil {
		return nil, err
	}

	// Account chains echo addresses without their checksum casing.
	byAddr := make(map[string]string, len(rows))
	for _, row := range rows {
		byAddr[strings.ToLower(row.Addr)] = row.Quantity.String()
	}

	out := make([]*big.Int, len(addresses))
	for i, addr := range addresses {
		value, ok := byAddr[strings.ToLower(addr)]
		if !ok {
			return nil, sweeperr.WithDetails(sweeperr.ErrOracle, map[string]string{
				"address": addr,
				"reason":  "missing from indexer response",
			})
		}
		if value == "" {
			out[i] = new(big.Int)
			continue
		}
		q, ok := new(big.Int).SetString(value, 10)
		if !ok {
			return nil, sweeperr.WithDetails(ErrInvalidQuantity, map[string]string{
				"address":  addr,
				"quantity": value,
			})
		}
		out[i] = q
	}
	return out, nil
}

// activity asks for one history record per address.
func (c *Client) activity(ctx context.Context, addresses []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(addresses))
	for i, addr := range addresses {
		query := url.Values{
			"addresses": {addr},
			"coin":      {c.coin},
			"skip":      {"0"},
			"take":      {"1"},
		}
		var history []json.RawMessage
		if err := c.get(ctx, "/getTransactionHistory", query, &history); err != nil {
			return nil, err
		}
		out[i] = new(big.Int)
		if len(history) > 0 {
			out[i].SetInt64(1)
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	var header http.Header
	if c.apiKey != "" {
		header = http.Header{"Authorization": {"Bearer " + c.apiKey}}
	}
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())

	_, err := chain.RetryWithConfig(ctx, c.retry, func() (struct{}, error) {
		if err := c.rateLimiter.Wait(ctx, c.network); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, chain.GetJSON(ctx, c.httpClient, reqURL, header, out)
	})
	return err
}
