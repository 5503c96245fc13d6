package network

import (
	"errors"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/mrz1836/hdsweep/internal/keypath"
	"github.com/mrz1836/hdsweep/internal/wallet"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// utxoStrategy serializes nodes as base58 extended keys (xprv/xpub on
// mainnet, tprv/tpub on testnet).
type utxoStrategy struct {
	params   *chaincfg.Params
	coinType uint32
}

func (s utxoStrategy) MasterFromPhrase(mnemonic, passphrase string) (string, error) {
	seed, err := wallet.MnemonicToSeed(mnemonic, passphrase)
	if err != nil {
		return "", err
	}
	defer wallet.ZeroBytes(seed)

	master, err := hdkeychain.NewMaster(seed, s.params)
	if err != nil {
		return "", sweeperr.Wrap(sweeperr.Cause(sweeperr.ErrDerivation, err), "master key")
	}
	return master.String(), nil
}

func (s utxoStrategy) RootFromMaster(master string) (keypath.Pair, error) {
	key, err := s.decode(master)
	if err != nil {
		return keypath.Pair{}, err
	}
	if !key.IsPrivate() {
		return keypath.Pair{}, hardenedFromPublic(keypath.HardenedOffset + keypath.Purpose)
	}

	path := keypath.RootPath(s.coinType)
	root, err := s.walk(key, path)
	if err != nil {
		return keypath.Pair{}, err
	}

	pub, err := root.Neuter()
	if err != nil {
		return keypath.Pair{}, sweeperr.Cause(sweeperr.ErrDerivation, err)
	}
	return keypath.Pair{Path: path, Key: pub.String()}, nil
}

func (s utxoStrategy) DeriveChild(node string, index uint32) (string, error) {
	if keypath.IsHardened(index) {
		return "", hardenedChild(index)
	}

	key, err := s.decode(node)
	if err != nil {
		return "", err
	}

	child, err := deriveExtended(key, index)
	if err != nil {
		return "", err
	}
	pub, err := child.Neuter()
	if err != nil {
		return "", sweeperr.Cause(sweeperr.ErrDerivation, err)
	}
	return pub.String(), nil
}

func (s utxoStrategy) DerivePath(node, path string) (string, error) {
	key, err := s.decode(node)
	if err != nil {
		return "", err
	}
	derived, err := s.walk(key, path)
	if err != nil {
		return "", err
	}
	return derived.String(), nil
}

func (s utxoStrategy) Address(node string) (string, error) {
	key, err := s.decode(node)
	if err != nil {
		return "", err
	}

	pub, err := key.ECPubKey()
	if err != nil {
		return "", sweeperr.Cause(sweeperr.ErrDeserialization, err)
	}

	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pub.SerializeCompressed()), s.params)
	if err != nil {
		return "", sweeperr.Cause(sweeperr.ErrDeserialization, err)
	}
	return addr.EncodeAddress(), nil
}

func (s utxoStrategy) decode(node string) (*hdkeychain.ExtendedKey, error) {
	key, err := hdkeychain.NewKeyFromString(node)
	if err != nil {
		return nil, sweeperr.Cause(sweeperr.ErrDeserialization, err)
	}
	if !key.IsForNet(s.params) {
		return nil, sweeperr.WithDetails(sweeperr.ErrDeserialization, map[string]string{
			"reason": "extended key is not for " + s.params.Name,
		})
	}
	return key, nil
}

func (s utxoStrategy) walk(key *hdkeychain.ExtendedKey, path string) (*hdkeychain.ExtendedKey, error) {
	indices, err := keypath.Parse(path)
	if err != nil {
		return nil, err
	}
	for _, index := range indices {
		if keypath.IsHardened(index) && !key.IsPrivate() {
			return nil, hardenedFromPublic(index)
		}
		if key, err = deriveExtended(key, index); err != nil {
			return nil, err
		}
	}
	return key, nil
}

func deriveExtended(key *hdkeychain.ExtendedKey, index uint32) (*hdkeychain.ExtendedKey, error) {
	child, err := key.Derive(index)
	if errors.Is(err, hdkeychain.ErrDeriveHardFromPublic) {
		return nil, hardenedFromPublic(index)
	}
	if err != nil {
		return nil, sweeperr.WithDetails(sweeperr.Cause(sweeperr.ErrDerivation, err), map[string]string{
			"index": strconv.FormatUint(uint64(index), 10),
		})
	}
	return child, nil
}

func hardenedFromPublic(index uint32) error {
	return sweeperr.WithDetails(sweeperr.ErrDerivation, map[string]string{
		"index":  strconv.FormatUint(uint64(index), 10),
		"reason": "hardened derivation needs a private node",
	})
}

func hardenedChild(index uint32) error {
	return sweeperr.WithDetails(sweeperr.ErrDerivation, map[string]string{
		"index":  strconv.FormatUint(uint64(index), 10),
		"reason": "child derivation below the account root is non-hardened only",
	})
}
