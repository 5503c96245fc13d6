// Package esplora reads Bitcoin address balances from an Esplora REST API
// such as blockstream.info.
package esplora

import (
	"context"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/hdsweep/internal/chain"
	"github.com/mrz1836/hdsweep/internal/metrics"
	"github.com/mrz1836/hdsweep/internal/network"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// DefaultConcurrency bounds in-flight address lookups per chunk.
const DefaultConcurrency = 4

// addressStats mirrors the chain_stats and mempool_stats objects of GET /address/:addr.
type addressStats struct {
	FundedTxoCount int64 `json:"funded_txo_count"`
	FundedTxoSum   int64 `json:"funded_txo_sum"`
	SpentTxoCount  int64 `json:"spent_txo_count"`
	SpentTxoSum    int64 `json:"spent_txo_sum"`
	TxCount        int64 `json:"tx_count"`
}

type addressInfo struct {
	Address      string       `json:"address"`
	ChainStats   addressStats `json:"chain_stats"`
	MempoolStats addressStats `json:"mempool_stats"`
}

// balance is the confirmed plus unconfirmed balance in satoshis.
func (a addressInfo) balance() int64 {
	return a.ChainStats.FundedTxoSum - a.ChainStats.SpentTxoSum +
		a.MempoolStats.FundedTxoSum - a.MempoolStats.SpentTxoSum
}

func (a addressInfo) active() bool {
	return a.ChainStats.TxCount+a.MempoolStats.TxCount > 0
}

// Client is an Esplora balance reader for one network.
type Client struct {
	network     string
	baseURL     string
	params      *chaincfg.Params
	mode        chain.Mode
	httpClient  *http.Client
	rateLimiter *chain.RateLimiter
	retry       chain.RetryConfig
	concurrency int
}

// ClientOptions configures the Esplora client.
type ClientOptions struct {
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
	// Retry overrides the default retry configuration.
	Retry *chain.RetryConfig
	// Concurrency overrides DefaultConcurrency.
	Concurrency int
}

// NewClient creates a client for ep. The network must be a UTXO network.
func NewClient(ep chain.Endpoint, opts *ClientOptions) (*Client, error) {
	d, err := network.Lookup(ep.Network)
	if err != nil {
		return nil, err
	}
	if d.Kind != network.KindUTXO {
		return nil, sweeperr.WithDetails(sweeperr.ErrNotSupported, map[string]string{
			"network": ep.Network,
			"backend": chain.BackendEsplora.String(),
		})
	}
	if err := chain.ValidateURL(ep); err != nil {
		return nil, err
	}

	mode := ep.Mode
	if mode == "" {
		mode = chain.ModeBalance
	}

	c := &Client{
		network:     ep.Network,
		baseURL:     strings.TrimRight(ep.URL, "/"),
		params:      d.Params,
		mode:        mode,
		httpClient:  chain.NewHTTPClient(),
		rateLimiter: chain.RateLimiterFor(ep),
		retry:       chain.DefaultRetryConfig(),
		concurrency: DefaultConcurrency,
	}

	if opts != nil {
		if opts.HTTPClient != nil {
			c.httpClient = opts.HTTPClient
		}
		if opts.Retry != nil {
			c.retry = *opts.Retry
		}
		if opts.Concurrency > 0 {
			c.concurrency = opts.Concurrency
		}
	}

	return c, nil
}

// New is the chain.Creator for the esplora backend.
func New(ep chain.Endpoint) (chain.BatchBalanceReader, error) {
	return NewClient(ep, nil)
}

// GetBalances looks up every address concurrently. Esplora has no batch
// endpoint, so one chunk fans out into one request per address.
func (c *Client) GetBalances(ctx context.Context, addresses []string) ([]*big.Int, error) {
	for _, addr := range addresses {
		if err := c.validateAddress(addr); err != nil {
			return nil, err
		}
	}

	out := make([]*big.Int, len(addresses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, addr := range addresses {
		g.Go(func() error {
			q, err := c.addressQuantity(gctx, addr)
			if err != nil {
				return err
			}
			out[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) addressQuantity(ctx context.Context, addr string) (*big.Int, error) {
	start := time.Now()
	info, err := chain.RetryWithConfig(ctx, c.retry, func() (*addressInfo, error) {
		if err := c.rateLimiter.Wait(ctx, c.network); err != nil {
			return nil, err
		}
		var info addressInfo
		if err := chain.GetJSON(ctx, c.httpClient, c.baseURL+"/address/"+url.PathEscape(addr), nil, &info); err != nil {
			return nil, err
		}
		return &info, nil
	})
	metrics.Global.RecordOracleCall(chain.BackendEsplora.String(), time.Since(start), err)
	if err != nil {
		return nil, sweeperr.Wrap(err, "esplora %s", addr)
	}

	if c.mode == chain.ModeActivity {
		if info.active() {
			return big.NewInt(1), nil
		}
		return new(big.Int), nil
	}
	return big.NewInt(info.balance()), nil
}

func (c *Client) validateAddress(addr string) error {
	decoded, err := btcutil.DecodeAddress(addr, c.params)
	if err != nil || !decoded.IsForNet(c.params) {
		return sweeperr.WithDetails(sweeperr.ErrInvalidAddress, map[string]string{
			"network": c.network,
			"address": addr,
		})
	}
	return nil
}
