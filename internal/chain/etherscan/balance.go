package etherscan

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/mrz1836/hdsweep/internal/chain"
	"github.com/mrz1836/hdsweep/internal/metrics"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// ErrInvalidBalance indicates a balance result could not be parsed.
var ErrInvalidBalance = &sweeperr.Error{
	Code:     "ETHERSCAN_INVALID_BALANCE",
	Message:  "invalid balance value in Etherscan response",
	ExitCode: sweeperr.ExitGeneral,
}

type accountBalance struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

// GetBalances returns one quantity per address. Native balances use
// balancemulti in batches of MaxBatch, token balances one tokenbalance
// call per address. In activity mode any transaction counts as funded.
func (c *Client) GetBalances(ctx context.Context, addresses []string) ([]*big.Int, error) {
	start := time.Now()
	out, err := c.getBalances(ctx, addresses)
	metrics.Global.RecordOracleCall(chain.BackendEtherscan.String(), time.Since(start), err)
	if err != nil {
		return nil, sweeperr.Wrap(err, "etherscan %s", c.network)
	}
	return out, nil
}

func (c *Client) getBalances(ctx context.Context, addresses []string) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(addresses))

	if c.mode == chain.ModeActivity {
		for _, addr := range addresses {
			q, err := c.activity(ctx, addr)
			if err != nil {
				return nil, err
			}
			out = append(out, q)
		}
		return out, nil
	}

	if c.token != "" {
		for _, addr := range addresses {
			q, err := c.tokenBalance(ctx, addr)
			if err != nil {
				return nil, err
			}
			out = append(out, q)
		}
		return out, nil
	}

	for start := 0; start < len(addresses); start += MaxBatch {
		end := min(start+MaxBatch, len(addresses))
		batch, err := c.balanceMulti(ctx, addresses[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (c *Client) balanceMulti(ctx context.Context, addresses []string) ([]*big.Int, error) {
	raw, err := c.doRequest(ctx, url.Values{
		"module":  {"account"},
		"action":  {"balancemulti"},
		"address": {strings.Join(addresses, ",")},
		"tag":     {"latest"},
	})
	if err != nil {
		return nil, err
	}

	var rows []accountBalance
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("parsing balancemulti result: %w", err)
	}

	// Etherscan may reorder or normalize the case of accounts.
	byAccount := make(map[string]string, len(rows))
	for _, row := range rows {
		byAccount[strings.ToLower(row.Account)] = row.Balance
	}

	out := make([]*big.Int, len(addresses))
	for i, addr := range addresses {
		value, ok := byAccount[strings.ToLower(addr)]
		if !ok {
			return nil, sweeperr.WithDetails(ErrInvalidBalance, map[string]string{"address": addr, "reason": "missing from response"})
		}
		if out[i], err = parseAmount(value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Client) tokenBalance(ctx context.Context, address string) (*big.Int, error) {
	raw, err := c.doRequest(ctx, url.Values{
		"module":          {"account"},
		"action":          {"tokenbalance"},
		"contractaddress": {c.token},
		"address":         {address},
		"tag":             {"latest"},
	})
	if err != nil {
		return nil, err
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("parsing tokenbalance result: %w", err)
	}
	return parseAmount(value)
}

// activity reports 1 when the address has at least one transaction.
func (c *Client) activity(ctx context.Context, address string) (*big.Int, error) {
	action := "txlist"
	params := url.Values{
		"module":  {"account"},
		"address": {address},
		"page":    {"1"},
		"offset":  {"1"},
		"sort":    {"asc"},
	}
	if c.token != "" {
		action = "tokentx"
		params.Set("contractaddress", c.token)
	}
	params.Set("action", action)

	raw, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, err
	}

	var txs []json.RawMessage
	if err := json.Unmarshal(raw, &txs); err != nil {
		return nil, fmt.Errorf("parsing %s result: %w", action, err)
	}
	if len(txs) > 0 {
		return big.NewInt(1), nil
	}
	return new(big.Int), nil
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, sweeperr.WithDetails(ErrInvalidBalance, map[string]string{
			"result": value,
		})
	}
	return amount, nil
}
