package chain

import (
	"sort"

	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// Factory errors.
var (
	// ErrUnsupportedChain indicates no backend serves the network.
	ErrUnsupportedChain = &sweeperr.Error{
		Code:       "UNSUPPORTED_CHAIN",
		Message:    "no balance backend configured for network",
		Suggestion: "enable the network in the config file or pass --networks",
		ExitCode:   sweeperr.ExitInput,
	}

	// ErrUnknownBackend indicates the endpoint names an unregistered backend.
	ErrUnknownBackend = &sweeperr.Error{
		Code:     "UNKNOWN_BACKEND",
		Message:  "unknown balance backend",
		ExitCode: sweeperr.ExitInput,
	}
)

// Creator builds a reader for one endpoint.
// Backend packages import chain, so they are registered from the CLI layer
// instead of being wired here.
type Creator func(ep Endpoint) (BatchBalanceReader, error)

// Factory builds readers from endpoints using registered creators.
type Factory struct {
	creators map[Backend]Creator
}

// NewFactory creates a new factory.
func NewFactory() *Factory {
	return &Factory{
		creators: make(map[Backend]Creator),
	}
}

// Register adds a creator for the given backend.
func (f *Factory) Register(b Backend, creator Creator) {
	f.creators[b] = creator
}

// NewReader creates a reader for the endpoint.
func (f *Factory) NewReader(ep Endpoint) (BatchBalanceReader, error) {
	creator, ok := f.creators[ep.Backend]
	if !ok {
		return nil, sweeperr.WithDetails(ErrUnknownBackend, map[string]string{
			"backend": ep.Backend.String(),
			"network": ep.Network,
		})
	}
	return creator(ep)
}

// IsSupported returns true if the backend has a registered creator.
func (f *Factory) IsSupported(b Backend) bool {
	_, ok := f.creators[b]
	return ok
}

// Backends returns all registered backends, sorted.
func (f *Factory) Backends() []Backend {
	out := make([]Backend, 0, len(f.creators))
	for b := range f.creators {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BuildRouter creates a reader for every endpoint and registers it under
// the endpoint's network. A network whose reader cannot be built stays
// routed but fails every query with the construction error, so only that
// network fails during recovery.
func (f *Factory) BuildRouter(endpoints []Endpoint) *Router {
	router := NewRouter()
	for _, ep := range endpoints {
		reader, err := f.NewReader(ep)
		if err != nil {
			router.RegisterUnavailable(ep.Network, err)
			continue
		}
		router.Register(ep.Network, reader)
	}
	return router
}
