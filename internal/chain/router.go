package chain

import (
	"context"
	"math/big"
	"sort"
	"sync"

	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// Router dispatches balance queries to the reader registered for each
// network. It satisfies discovery.BalanceOracle.
type Router struct {
	mu          sync.RWMutex
	readers     map[string]BatchBalanceReader
	unavailable map[string]error
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		readers:     make(map[string]BatchBalanceReader),
		unavailable: make(map[string]error),
	}
}

// Register sets the reader for a network, replacing any previous one.
func (r *Router) Register(network string, reader BatchBalanceReader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readers[network] = reader
	delete(r.unavailable, network)
}

// RegisterUnavailable routes a network whose reader could not be built.
// Every query for it fails with err.
func (r *Router) RegisterUnavailable(network string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readers[network] = unavailableReader{err: err}
	r.unavailable[network] = err
}

// Unavailable returns the construction error of every network registered
// through RegisterUnavailable.
func (r *Router) Unavailable() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]error, len(r.unavailable))
	for name, err := range r.unavailable {
		out[name] = err
	}
	return out
}

// Networks returns the registered network names, sorted.
func (r *Router) Networks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.readers))
	for name := range r.readers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetBalances routes the query to the network's reader.
func (r *Router) GetBalances(ctx context.Context, network string, addresses []string) ([]*big.Int, error) {
	r.mu.RLock()
	reader, ok := r.readers[network]
	r.mu.RUnlock()
	if !ok {
		return nil, sweeperr.WithDetails(ErrUnsupportedChain, map[string]string{"network": network})
	}
	if len(addresses) == 0 {
		return []*big.Int{}, nil
	}
	return reader.GetBalances(ctx, addresses)
}

// Close closes every reader that holds resources.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reader := range r.readers {
		if c, ok := reader.(ClientCloser); ok {
			c.Close()
		}
	}
}

type unavailableReader struct {
	err error
}

func (u unavailableReader) GetBalances(context.Context, []string) ([]*big.Int, error) {
	return nil, u.err
}
