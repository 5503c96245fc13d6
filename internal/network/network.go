// Package network holds the table of supported networks and the derivation
// strategy behind each one.
//
// Every network derives its account root at m/44'/<coin_type>'/0' once, with
// hardened steps, and returns it public-only. Everything below the root uses
// non-hardened derivation, so subwallets and addresses can be enumerated from
// the exported root without the private key.
package network

import (
	"sort"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/mrz1836/hdsweep/internal/keypath"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// Kind selects the derivation family of a network.
type Kind int

// Derivation families.
const (
	// KindUTXO is BIP32 extended keys serialized as xpub/tpub with legacy
	// P2PKH addresses.
	KindUTXO Kind = iota + 1

	// KindAccount is BIP32 over secp256k1 with a JSON node encoding and
	// keccak256 addresses.
	KindAccount
)

// String returns the family name.
func (k Kind) String() string {
	switch k {
	case KindUTXO:
		return "utxo"
	case KindAccount:
		return "account"
	default:
		return "unknown"
	}
}

// Strategy derives nodes and addresses for one network. Nodes are opaque
// strings whose encoding is owned by the strategy.
type Strategy interface {
	// MasterFromPhrase returns the private master node for a BIP39 phrase.
	MasterFromPhrase(mnemonic, passphrase string) (string, error)

	// RootFromMaster derives m/44'/<coin_type>'/0' from a private master
	// node and returns it public-only.
	RootFromMaster(master string) (keypath.Pair, error)

	// DeriveChild derives the non-hardened child index of node and returns
	// it public-only. node may be public or private.
	DeriveChild(node string, index uint32) (string, error)

	// DerivePath walks path from node, keeping the node's privacy.
	// Hardened steps require a private node.
	DerivePath(node, path string) (string, error)

	// Address resolves node to the network's native address string.
	Address(node string) (string, error)
}

// Descriptor identifies one supported network.
type Descriptor struct {
	Name     string
	CoinType uint32
	Kind     Kind

	// Underlying names the chain a token variant derives and lives on.
	// Empty for native networks.
	Underlying string

	// Params is set for KindUTXO.
	Params *chaincfg.Params

	// ChecksumChainID is the EIP-1191 chain id used to case addresses of
	// KindAccount networks. Zero selects plain EIP-55.
	ChecksumChainID uint64

	strategy Strategy
}

// Strategy returns the derivation strategy for the descriptor.
func (d Descriptor) Strategy() Strategy {
	return d.strategy
}

// RootPath returns m/44'/<coin_type>'/0'.
func (d Descriptor) RootPath() string {
	return keypath.RootPath(d.CoinType)
}

// IsToken reports whether the network aliases another chain.
func (d Descriptor) IsToken() bool {
	return d.Underlying != ""
}

func utxo(name string, coinType uint32, params *chaincfg.Params) Descriptor {
	return Descriptor{
		Name:     name,
		CoinType: coinType,
		Kind:     KindUTXO,
		Params:   params,
		strategy: utxoStrategy{params: params, coinType: coinType},
	}
}

func account(name string, coinType uint32, checksumChainID uint64, underlying string) Descriptor {
	return Descriptor{
		Name:            name,
		CoinType:        coinType,
		Kind:            KindAccount,
		Underlying:      underlying,
		ChecksumChainID: checksumChainID,
		strategy:        accountStrategy{coinType: coinType, checksumChainID: checksumChainID},
	}
}

// EIP-1191 chain ids for RSK.
const (
	rskMainnetChainID = 30
	rskTestnetChainID = 31
)

// registry is built once at package init and never written afterwards.
//
//nolint:gochecknoglobals // immutable network table
var registry = newTable(
	utxo("BTC", 0, &chaincfg.MainNetParams),
	utxo("BTC-Testnet", 1, &chaincfg.TestNet3Params),
	account("ETH", 60, 0, ""),
	account("ETH-Ropsten", 1, 0, ""),
	account("DAI", 60, 0, "ETH"),
	account("DAI-Ropsten", 1, 0, "ETH-Ropsten"),
	account("RSK", 137, rskMainnetChainID, ""),
	account("RSK-Testnet", 37310, rskTestnetChainID, ""),
	account("RIF", 137, rskMainnetChainID, "RSK"),
	account("RIF-Testnet", 37310, rskTestnetChainID, "RSK-Testnet"),
)

type table struct {
	ordered []Descriptor
	byName  map[string]int
}

func newTable(descs ...Descriptor) table {
	t := table{ordered: descs, byName: make(map[string]int, len(descs))}
	for i, d := range descs {
		if _, dup := t.byName[d.Name]; dup {
			panic("network: duplicate descriptor " + d.Name)
		}
		t.byName[d.Name] = i
	}
	return t
}

// Lookup returns the descriptor registered under name.
func Lookup(name string) (Descriptor, error) {
	i, ok := registry.byName[name]
	if !ok {
		return Descriptor{}, sweeperr.WithDetails(sweeperr.ErrUnknownNetwork, map[string]string{"network": name})
	}
	return registry.ordered[i], nil
}

// All returns every descriptor in registration order.
func All() []Descriptor {
	out := make([]Descriptor, len(registry.ordered))
	copy(out, registry.ordered)
	return out
}

// Names returns every network name in registration order.
func Names() []string {
	names := make([]string, len(registry.ordered))
	for i, d := range registry.ordered {
		names[i] = d.Name
	}
	return names
}

// SortedNames returns every network name sorted alphabetically.
func SortedNames() []string {
	names := Names()
	sort.Strings(names)
	return names
}

// RootFromPhrase derives the public account root of d for a phrase.
func RootFromPhrase(d Descriptor, mnemonic, passphrase string) (keypath.Pair, error) {
	master, err := d.Strategy().MasterFromPhrase(mnemonic, passphrase)
	if err != nil {
		return keypath.Pair{}, err
	}
	return d.Strategy().RootFromMaster(master)
}
