package network

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"

	"github.com/mrz1836/hdsweep/internal/keypath"
	"github.com/mrz1836/hdsweep/internal/wallet"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// accountNode is the JSON node encoding of account networks.
// Private nodes carry prk, public nodes carry the compressed puk.
type accountNode struct {
	Prk string `json:"prk,omitempty"`
	Puk string `json:"puk,omitempty"`
	CC  string `json:"cc"`
}

const (
	chainCodeLen  = 32
	privateKeyLen = 32
)

// accountStrategy derives Ethereum-style networks.
type accountStrategy struct {
	coinType        uint32
	checksumChainID uint64
}

func (s accountStrategy) MasterFromPhrase(mnemonic, passphrase string) (string, error) {
	seed, err := wallet.MnemonicToSeed(mnemonic, passphrase)
	if err != nil {
		return "", err
	}
	defer wallet.ZeroBytes(seed)

	// HMAC-SHA512 keyed "Bitcoin seed": left half private key, right half chain code.
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return "", sweeperr.Wrap(sweeperr.Cause(sweeperr.ErrDerivation, err), "master key")
	}
	return encodeAccountNode(master)
}

func (s accountStrategy) RootFromMaster(master string) (keypath.Pair, error) {
	key, err := decodeAccountNode(master)
	if err != nil {
		return keypath.Pair{}, err
	}
	if !key.IsPrivate {
		return keypath.Pair{}, hardenedFromPublic(keypath.HardenedOffset + keypath.Purpose)
	}

	path := keypath.RootPath(s.coinType)
	root, err := walkAccount(key, path)
	if err != nil {
		return keypath.Pair{}, err
	}

	pub, err := encodeAccountNode(root.PublicKey())
	if err != nil {
		return keypath.Pair{}, err
	}
	return keypath.Pair{Path: path, Key: pub}, nil
}

func (s accountStrategy) DeriveChild(node string, index uint32) (string, error) {
	if keypath.IsHardened(index) {
		return "", hardenedChild(index)
	}

	key, err := decodeAccountNode(node)
	if err != nil {
		return "", err
	}
	child, err := deriveAccount(key, index)
	if err != nil {
		return "", err
	}
	return encodeAccountNode(child.PublicKey())
}

func (s accountStrategy) DerivePath(node, path string) (string, error) {
	key, err := decodeAccountNode(node)
	if err != nil {
		return "", err
	}
	derived, err := walkAccount(key, path)
	if err != nil {
		return "", err
	}
	return encodeAccountNode(derived)
}

func (s accountStrategy) Address(node string) (string, error) {
	pub, err := accountPublicKey(node)
	if err != nil {
		return "", err
	}
	return ChecksumAddress(crypto.PubkeyToAddress(*pub), s.checksumChainID), nil
}

func walkAccount(key *bip32.Key, path string) (*bip32.Key, error) {
	indices, err := keypath.Parse(path)
	if err != nil {
		return nil, err
	}
	for _, index := range indices {
		if key, err = deriveAccount(key, index); err != nil {
			return nil, err
		}
	}
	return key, nil
}

func deriveAccount(key *bip32.Key, index uint32) (*bip32.Key, error) {
	if keypath.IsHardened(index) && !key.IsPrivate {
		return nil, hardenedFromPublic(index)
	}
	child, err := key.NewChildKey(index)
	if errors.Is(err, bip32.ErrHardnedChildPublicKey) {
		return nil, hardenedFromPublic(index)
	}
	if err != nil {
		return nil, sweeperr.WithDetails(sweeperr.Cause(sweeperr.ErrDerivation, err), map[string]string{
			"index": strconv.FormatUint(uint64(index), 10),
		})
	}
	return child, nil
}

func encodeAccountNode(key *bip32.Key) (string, error) {
	node := accountNode{CC: hex.EncodeToString(key.ChainCode)}
	if key.IsPrivate {
		node.Prk = hex.EncodeToString(key.Key)
	} else {
		node.Puk = hex.EncodeToString(key.Key)
	}
	data, err := json.Marshal(node)
	if err != nil {
		return "", sweeperr.Cause(sweeperr.ErrGeneral, err)
	}
	return string(data), nil
}

func parseAccountNode(s string) (accountNode, []byte, error) {
	var node accountNode
	if err := json.Unmarshal([]byte(s), &node); err != nil {
		return node, nil, sweeperr.Cause(sweeperr.ErrDeserialization, err)
	}
	cc, err := hex.DecodeString(node.CC)
	if err != nil || len(cc) != chainCodeLen {
		return node, nil, malformedNode("chain code must be 32 hex bytes")
	}
	return node, cc, nil
}

// decodeAccountNode rebuilds a bip32 key from the JSON encoding. The key
// sits at depth zero; depth and parent fingerprint are not serialized.
func decodeAccountNode(s string) (*bip32.Key, error) {
	node, cc, err := parseAccountNode(s)
	if err != nil {
		return nil, err
	}

	key := &bip32.Key{
		ChildNumber: []byte{0, 0, 0, 0},
		FingerPrint: []byte{0, 0, 0, 0},
		ChainCode:   cc,
	}

	switch {
	case node.Prk != "":
		prk, err := decodePrivateKey(node.Prk)
		if err != nil {
			return nil, err
		}
		key.Version = bip32.PrivateWalletVersion
		key.Key = prk
		key.IsPrivate = true
	case node.Puk != "":
		puk, err := hex.DecodeString(node.Puk)
		if err != nil {
			return nil, malformedNode("public key is not hex")
		}
		if _, err = crypto.DecompressPubkey(puk); err != nil {
			return nil, sweeperr.Cause(sweeperr.ErrDeserialization, err)
		}
		key.Version = bip32.PublicWalletVersion
		key.Key = puk
	default:
		return nil, malformedNode("node has neither prk nor puk")
	}
	return key, nil
}

func decodePrivateKey(h string) ([]byte, error) {
	prk, err := hex.DecodeString(h)
	if err != nil || len(prk) != privateKeyLen {
		return nil, malformedNode("private key must be 32 hex bytes")
	}
	if _, err = crypto.ToECDSA(prk); err != nil {
		return nil, sweeperr.Cause(sweeperr.ErrDeserialization, err)
	}
	return prk, nil
}

// accountPublicKey returns the public key of a private or public node.
func accountPublicKey(s string) (*ecdsa.PublicKey, error) {
	node, _, err := parseAccountNode(s)
	if err != nil {
		return nil, err
	}
	if node.Prk != "" {
		prk, err := decodePrivateKey(node.Prk)
		if err != nil {
			return nil, err
		}
		priv, err := crypto.ToECDSA(prk)
		if err != nil {
			return nil, sweeperr.Cause(sweeperr.ErrDeserialization, err)
		}
		return &priv.PublicKey, nil
	}

	puk, err := hex.DecodeString(node.Puk)
	if err != nil {
		return nil, malformedNode("public key is not hex")
	}
	pub, err := crypto.DecompressPubkey(puk)
	if err != nil {
		return nil, sweeperr.Cause(sweeperr.ErrDeserialization, err)
	}
	return pub, nil
}

func malformedNode(reason string) error {
	return sweeperr.WithDetails(sweeperr.ErrDeserialization, map[string]string{"reason": reason})
}
