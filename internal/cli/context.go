package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mrz1836/hdsweep/internal/chain"
	"github.com/mrz1836/hdsweep/internal/chain/esplora"
	"github.com/mrz1836/hdsweep/internal/chain/etherscan"
	"github.com/mrz1836/hdsweep/internal/chain/ethrpc"
	"github.com/mrz1836/hdsweep/internal/chain/indexer"
	"github.com/mrz1836/hdsweep/internal/config"
	"github.com/mrz1836/hdsweep/internal/output"
)

// CommandContext holds dependencies for CLI commands.
type CommandContext struct {
	Config   *config.Config
	Logger   *config.Logger
	Fmt      *output.Formatter
	Backends *chain.Factory
}

// NewCommandContext creates a context with every balance backend registered.
func NewCommandContext(
	cfg *config.Config,
	logger *config.Logger,
	formatter *output.Formatter,
) *CommandContext {
	return &CommandContext{
		Config:   cfg,
		Logger:   logger,
		Fmt:      formatter,
		Backends: NewBackendFactory(),
	}
}

// NewBackendFactory returns a factory that knows every built-in backend.
func NewBackendFactory() *chain.Factory {
	f := chain.NewFactory()
	f.Register(chain.BackendEsplora, esplora.New)
	f.Register(chain.BackendRPC, ethrpc.New)
	f.Register(chain.BackendEtherscan, etherscan.New)
	f.Register(chain.BackendIndexer, indexer.New)
	return f
}

type cmdContextKey struct{}

// SetCmdContext attaches cc to the command's context.
func SetCmdContext(cmd *cobra.Command, cc *CommandContext) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	cmd.SetContext(context.WithValue(base, cmdContextKey{}, cc))
}

// GetCmdContext returns the context attached by SetCmdContext, or one built
// from the package globals.
func GetCmdContext(cmd *cobra.Command) *CommandContext {
	if ctx := cmd.Context(); ctx != nil {
		if cc, ok := ctx.Value(cmdContextKey{}).(*CommandContext); ok {
			return cc
		}
	}
	return NewCommandContext(cfg, logger, formatter)
}
