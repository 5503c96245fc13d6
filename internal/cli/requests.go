package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mrz1836/hdsweep/internal/config"
	"github.com/mrz1836/hdsweep/internal/discovery"
	"github.com/mrz1836/hdsweep/internal/keypath"
	"github.com/mrz1836/hdsweep/internal/network"
	"github.com/mrz1836/hdsweep/internal/output"
	"github.com/mrz1836/hdsweep/internal/wallet"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// selectNetworks returns the requested network names, or every enabled
// network of c when none were given. Names are trimmed and de-duplicated.
func selectNetworks(c *config.Config, requested []string) []string {
	if len(requested) == 0 {
		endpoints := c.Endpoints(nil)
		names := make([]string, len(endpoints))
		for i, ep := range endpoints {
			names[i] = ep.Network
		}
		return names
	}

	seen := make(map[string]bool, len(requested))
	names := make([]string, 0, len(requested))
	for _, name := range requested {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// checkedMnemonic normalizes and validates a phrase, turning unknown words
// into a typo suggestion.
func checkedMnemonic(raw string) (string, error) {
	mnemonic := wallet.NormalizeMnemonicInput(raw)
	if err := wallet.ValidateMnemonic(mnemonic); err != nil {
		if typos := wallet.DetectTypos(mnemonic); len(typos) > 0 {
			return "", sweeperr.WithSuggestion(err, wallet.FormatTypoSuggestions(typos))
		}
		return "", sweeperr.WithSuggestion(err, "check the word count and order; the last word carries a checksum")
	}
	return mnemonic, nil
}

// deriveRequests derives the public root of every named network. Unknown
// names are kept as requests without a node, so recovery reports them as
// skipped.
func deriveRequests(names []string, mnemonic, passphrase string) ([]discovery.Request, error) {
	requests := make([]discovery.Request, 0, len(names))
	for _, name := range names {
		d, err := network.Lookup(name)
		if err != nil {
			requests = append(requests, discovery.Request{Network: name})
			continue
		}
		root, err := network.RootFromPhrase(d, mnemonic, passphrase)
		if err != nil {
			return nil, sweeperr.Wrap(err, "deriving %s root", name)
		}
		requests = append(requests, discovery.Request{Network: name, Node: root})
	}
	return requests, nil
}

// loadRequests reads an exported request list.
func loadRequests(path string) ([]discovery.Request, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		// #nosec G304 -- path is supplied by the user on purpose
		f, err := os.Open(path)
		if err != nil {
			return nil, sweeperr.WithDetails(sweeperr.Cause(sweeperr.ErrNotFound, err), map[string]string{"path": path})
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	return decodeRequests(r)
}

func decodeRequests(r io.Reader) ([]discovery.Request, error) {
	var requests []discovery.Request
	if err := json.NewDecoder(r).Decode(&requests); err != nil {
		return nil, sweeperr.WithSuggestion(
			sweeperr.Cause(sweeperr.ErrInvalidInput, err),
			`expected a JSON array of {"network", "node": {"path", "public_key"}}, as written by "hdsweep roots"`,
		)
	}
	return requests, nil
}

// requestNetworks returns the network names of requests, in order.
func requestNetworks(requests []discovery.Request) []string {
	names := make([]string, len(requests))
	for i, req := range requests {
		names[i] = req.Network
	}
	return names
}

// addressResolver derives the path and address of a used position from the
// request roots.
func addressResolver(requests []discovery.Request) output.AddressResolver {
	roots := make(map[string]keypath.Pair, len(requests))
	for _, req := range requests {
		roots[req.Network] = req.Node
	}

	return func(name string, subwallet, index uint32) (string, string, error) {
		root, ok := roots[name]
		if !ok {
			return "", "", sweeperr.WithDetails(sweeperr.ErrUnknownNetwork, map[string]string{"network": name})
		}
		d, err := network.Lookup(name)
		if err != nil {
			return "", "", err
		}

		rel := fmt.Sprintf("%d/%d", subwallet, index)
		path := keypath.Join(keypath.Join(root.Path, subwallet), index)
		node, err := d.Strategy().DerivePath(root.Key, rel)
		if err != nil {
			return path, "", err
		}
		addr, err := d.Strategy().Address(node)
		return path, addr, err
	}
}
