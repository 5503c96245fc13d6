// Package ethrpc reads account and token balances from an Ethereum-style
// JSON-RPC node. It serves ETH, RSK and the ERC-20 tokens on them.
package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/mrz1836/hdsweep/internal/chain"
	"github.com/mrz1836/hdsweep/internal/metrics"
	"github.com/mrz1836/hdsweep/internal/network"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// balanceOfSelector is the ERC-20 balanceOf(address) selector.
const balanceOfSelector = "70a08231"

var (
	// ErrRPCResponse indicates an invalid RPC response.
	ErrRPCResponse = &sweeperr.Error{
		Code:     "RPC_INVALID_RESPONSE",
		Message:  "invalid RPC response",
		ExitCode: sweeperr.ExitGeneral,
	}

	// ErrRPCRequest indicates the node rejected a call.
	ErrRPCRequest = &sweeperr.Error{
		Code:     "RPC_REQUEST_FAILED",
		Message:  "RPC request failed",
		ExitCode: sweeperr.ExitGeneral,
	}
)

// Client batches balance queries into one JSON-RPC request per chunk.
type Client struct {
	network     string
	rpc         *rpc.Client
	token       *common.Address
	mode        chain.Mode
	rateLimiter *chain.RateLimiter
	retry       chain.RetryConfig
}

// ClientOptions configures the RPC client.
type ClientOptions struct {
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
	// Retry overrides the default retry configuration.
	Retry *chain.RetryConfig
}

// NewClient creates a client for ep. The network must be an account network.
func NewClient(ctx context.Context, ep chain.Endpoint, opts *ClientOptions) (*Client, error) {
	d, err := network.Lookup(ep.Network)
	if err != nil {
		return nil, err
	}
	if d.Kind != network.KindAccount {
		return nil, sweeperr.WithDetails(sweeperr.ErrNotSupported, map[string]string{
			"network": ep.Network,
			"backend": chain.BackendRPC.String(),
		})
	}
	if err := chain.ValidateURL(ep); err != nil {
		return nil, err
	}

	c := &Client{
		network:     ep.Network,
		mode:        ep.Mode,
		rateLimiter: chain.RateLimiterFor(ep),
		retry:       chain.DefaultRetryConfig(),
	}
	if c.mode == "" {
		c.mode = chain.ModeBalance
	}

	if d.IsToken() {
		if !common.IsHexAddress(ep.TokenContract) {
			return nil, sweeperr.WithDetails(sweeperr.ErrConfigInvalid, map[string]string{
				"network":        ep.Network,
				"token_contract": ep.TokenContract,
			})
		}
		token := common.HexToAddress(ep.TokenContract)
		c.token = &token
	}

	httpClient := chain.NewHTTPClient()
	if opts != nil {
		if opts.HTTPClient != nil {
			httpClient = opts.HTTPClient
		}
		if opts.Retry != nil {
			c.retry = *opts.Retry
		}
	}

	c.rpc, err = rpc.DialOptions(ctx, ep.URL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", ep.URL, err)
	}
	return c, nil
}

// New is the chain.Creator for the rpc backend.
func New(ep chain.Endpoint) (chain.BatchBalanceReader, error) {
	return NewClient(context.Background(), ep, nil)
}

// GetBalances fetches every address in a single batch request.
func (c *Client) GetBalances(ctx context.Context, addresses []string) ([]*big.Int, error) {
	for _, addr := range addresses {
		if !common.IsHexAddress(addr) {
			return nil, sweeperr.WithDetails(sweeperr.ErrInvalidAddress, map[string]string{
				"network": c.network,
				"address": addr,
			})
		}
	}

	start := time.Now()
	out, err := chain.RetryWithConfig(ctx, c.retry, func() ([]*big.Int, error) {
		if err := c.rateLimiter.Wait(ctx, c.network); err != nil {
			return nil, err
		}
		return c.batch(ctx, addresses)
	})
	metrics.Global.RecordOracleCall(chain.BackendRPC.String(), time.Since(start), err)
	if err != nil {
		return nil, sweeperr.Wrap(err, "%s rpc", c.network)
	}
	return out, nil
}

// elemsPer is the number of batch elements issued per address.
func (c *Client) elemsPer() int {
	if c.mode == chain.ModeActivity && c.token == nil {
		return 2
	}
	return 1
}

func (c *Client) batch(ctx context.Context, addresses []string) ([]*big.Int, error) {
	per := c.elemsPer()
	elems := make([]rpc.BatchElem, 0, len(addresses)*per)
	for _, addr := range addresses {
		// RSK nodes reject EIP-55 casing, so addresses go out in lower case.
		lower := strings.ToLower(addr)
		if c.token != nil {
			elems = append(elems, rpc.BatchElem{
				Method: "eth_call",
				Args:   []any{c.balanceOfCall(lower), "latest"},
				Result: new(hexutil.Bytes),
			})
			continue
		}
		elems = append(elems, rpc.BatchElem{
			Method: "eth_getBalance",
			Args:   []any{lower, "latest"},
			Result: new(hexutil.Big),
		})
		if per == 2 {
			elems = append(elems, rpc.BatchElem{
				Method: "eth_getTransactionCount",
				Args:   []any{lower, "latest"},
				Result: new(hexutil.Uint64),
			})
		}
	}

	if err := c.rpc.BatchCallContext(ctx, elems); err != nil {
		return nil, classify(ctx, err)
	}

	out := make([]*big.Int, len(addresses))
	for i := range addresses {
		group := elems[i*per : (i+1)*per]
		for _, e := range group {
			if e.Error != nil {
				return nil, classify(ctx, e.Error)
			}
		}

		q, err := c.quantity(group)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

func (c *Client) quantity(group []rpc.BatchElem) (*big.Int, error) {
	if c.token != nil {
		raw := *group[0].Result.(*hexutil.Bytes)
		if len(raw) > 32 {
			return nil, sweeperr.WithDetails(ErrRPCResponse, map[string]string{
				"method": "eth_call",
				"length": fmt.Sprint(len(raw)),
			})
		}
		// An empty result means no contract code at the address.
		return new(big.Int).SetBytes(raw), nil
	}

	balance := (*big.Int)(group[0].Result.(*hexutil.Big))
	if len(group) == 2 {
		nonce := uint64(*group[1].Result.(*hexutil.Uint64))
		if nonce > 0 || balance.Sign() != 0 {
			return big.NewInt(1), nil
		}
		return new(big.Int), nil
	}
	return new(big.Int).Set(balance), nil
}

func (c *Client) balanceOfCall(addr string) map[string]any {
	data := hexutil.MustDecode("0x" + balanceOfSelector + strings.Repeat("0", 24) + strings.TrimPrefix(addr, "0x"))
	return map[string]any{
		"to":   strings.ToLower(c.token.Hex()),
		"data": hexutil.Bytes(data),
	}
}

// classify maps RPC failures onto the retry sentinels.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		resp := &http.Response{StatusCode: httpErr.StatusCode, Header: http.Header{}}
		return chain.StatusError(resp, string(httpErr.Body))
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return sweeperr.WithDetails(sweeperr.Cause(ErrRPCRequest, err), map[string]string{
			"code": fmt.Sprint(rpcErr.ErrorCode()),
		})
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", chain.ErrTimeout, err)
	}
	return chain.WrapRetryable(err)
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	c.rpc.Close()
}
