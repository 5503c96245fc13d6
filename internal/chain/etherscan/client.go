// Package etherscan provides an Etherscan API v2 balance reader.
package etherscan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mrz1836/hdsweep/internal/chain"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

const (
	// DefaultBaseURL is the Etherscan API v2 base URL.
	DefaultBaseURL = "https://api.etherscan.io/v2"

	// DefaultChainID is the Ethereum mainnet chain ID for the Etherscan v2 API.
	DefaultChainID = "1"

	// MaxBatch is the most addresses balancemulti accepts per call.
	MaxBatch = 20
)

// chainIDs maps network names onto Etherscan v2 chain IDs.
//
//nolint:gochecknoglobals // read-only lookup table
var chainIDs = map[string]string{
	"ETH":         "1",
	"DAI":         "1",
	"ETH-Ropsten": "3",
	"DAI-Ropsten": "3",
}

// Sentinel errors for Etherscan API.
var (
	// ErrAPIKeyRequired indicates the Etherscan API key was not provided.
	ErrAPIKeyRequired = &sweeperr.Error{
		Code:       "ETHERSCAN_API_KEY_REQUIRED",
		Message:    "Etherscan API key is required",
		Suggestion: "set networks.<name>.api_key or HDSWEEP_ETHERSCAN_API_KEY",
		ExitCode:   sweeperr.ExitInput,
	}

	// ErrAPIError indicates the Etherscan API returned an error response.
	ErrAPIError = &sweeperr.Error{
		Code:     "ETHERSCAN_API_ERROR",
		Message:  "Etherscan API returned an error",
		ExitCode: sweeperr.ExitGeneral,
	}
)

// apiResponse represents the standard Etherscan API response.
type apiResponse struct {
	Status  string          `json:"status"`  // "1" for success, "0" for error
	Message string          `json:"message"` // "OK" or error message
	Result  json.RawMessage `json:"result"`
}

// Client is an Etherscan API client for balance queries.
type Client struct {
	network     string
	apiKey      string
	baseURL     string
	chainID     string
	token       string
	mode        chain.Mode
	httpClient  *http.Client
	rateLimiter *chain.RateLimiter
	retry       chain.RetryConfig
}

// ClientOptions configures the Etherscan client.
type ClientOptions struct {
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
	// ChainID overrides the chain ID derived from the network name.
	ChainID string
	// Retry overrides the default retry configuration.
	Retry *chain.RetryConfig
}

// NewClient creates a new Etherscan API client. An empty endpoint URL
// selects DefaultBaseURL.
func NewClient(ep chain.Endpoint, opts *ClientOptions) (*Client, error) {
	if ep.APIKey == "" {
		return nil, ErrAPIKeyRequired
	}
	chainID, ok := chainIDs[ep.Network]
	if !ok {
		chainID = DefaultChainID
	}

	c := &Client{
		network:    ep.Network,
		apiKey:     ep.APIKey,
		baseURL:    DefaultBaseURL,
		chainID:    chainID,
		token:      ep.TokenContract,
		mode:       ep.Mode,
		httpClient: chain.NewHTTPClient(),
		// Etherscan free tier: 5 req/s.
		rateLimiter: chain.NewRateLimiter(5, 5),
		retry:       chain.DefaultRetryConfig(),
	}
	if ep.URL != "" {
		c.baseURL = strings.TrimRight(ep.URL, "/")
	}
	if ep.RatePerSecond > 0 {
		c.rateLimiter = chain.RateLimiterFor(ep)
	}
	if c.mode == "" {
		c.mode = chain.ModeBalance
	}

	if opts != nil {
		if opts.HTTPClient != nil {
			c.httpClient = opts.HTTPClient
		}
		if opts.ChainID != "" {
			c.chainID = opts.ChainID
		}
		if opts.Retry != nil {
			c.retry = *opts.Retry
		}
	}

	return c, nil
}

// New is the chain.Creator for the etherscan backend.
func New(ep chain.Endpoint) (chain.BatchBalanceReader, error) {
	return NewClient(ep, nil)
}

// doRequest performs a GET against the Etherscan API and returns the raw result.
func (c *Client) doRequest(ctx context.Context, params url.Values) (json.RawMessage, error) {
	return chain.RetryWithConfig(ctx, c.retry, func() (json.RawMessage, error) {
		if err := c.rateLimiter.Wait(ctx, "etherscan"); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		// Etherscan v2 API requires chainid on every request
		params.Set("chainid", c.chainID)
		reqURL := fmt.Sprintf("%s/api?%s", c.baseURL, params.Encode())

		// The API key goes in a header so it stays out of proxy logs.
		header := http.Header{"Authorization": {"Bearer " + c.apiKey}}

		var apiResp apiResponse
		if err := chain.GetJSON(ctx, c.httpClient, reqURL, header, &apiResp); err != nil {
			return nil, err
		}

		if apiResp.Status != "1" {
			var msg string
			_ = json.Unmarshal(apiResp.Result, &msg)
			if strings.Contains(msg, "rate limit") {
				return nil, sweeperr.WithDetails(chain.ErrRateLimited, map[string]string{"result": msg})
			}
			// An empty account list is reported as status 0 with an empty result.
			if apiResp.Message == "No transactions found" {
				return json.RawMessage(`[]`), nil
			}
			return nil, sweeperr.WithDetails(ErrAPIError, map[string]string{
				"message": apiResp.Message,
				"result":  chain.TruncateBody(msg, 256),
			})
		}

		return apiResp.Result, nil
	})
}
