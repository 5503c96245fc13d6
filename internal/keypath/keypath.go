// Package keypath holds the (derivation path, serialized key) value that
// flows through every derivation step, plus BIP32 path helpers.
package keypath

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"

	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// HardenedOffset is the first hardened child index (2^31).
const HardenedOffset = hdkeychain.HardenedKeyStart

// Purpose is the BIP44 purpose level used for every root path.
const Purpose = 44

// Pair is a derivation path together with the serialized key material found
// at that path. The key encoding belongs to the network strategy that
// produced it.
type Pair struct {
	Path string `json:"path"`
	Key  string `json:"public_key"`
}

// RootPath returns the hardened account root m/44'/<coinType>'/0'.
func RootPath(coinType uint32) string {
	return fmt.Sprintf("m/%d'/%d'/0'", Purpose, coinType)
}

// Join appends a non-hardened index to path.
func Join(path string, index uint32) string {
	return path + "/" + strconv.FormatUint(uint64(index), 10)
}

// Child returns the pair for child index of p holding key.
func (p Pair) Child(index uint32, key string) Pair {
	return Pair{Path: Join(p.Path, index), Key: key}
}

// IsHardened reports whether index is in the hardened range.
func IsHardened(index uint32) bool {
	return index >= HardenedOffset
}

// Parse converts a path such as "m/44'/0'/0'/0/5" or a relative path such as
// "0/5" into child indices. Hardened segments may be marked with ' or h.
// "m" alone yields no indices.
func Parse(path string) ([]uint32, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, invalidPath(path, "empty path")
	}
	if p == "m" || p == "M" {
		return []uint32{}, nil
	}
	if strings.HasPrefix(p, "m/") || strings.HasPrefix(p, "M/") {
		p = p[2:]
	}

	parts := strings.Split(p, "/")
	indices := make([]uint32, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, invalidPath(path, "empty segment")
		}
		hardened := strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h") || strings.HasSuffix(part, "H")
		if hardened {
			part = part[:len(part)-1]
		}
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, invalidPath(path, fmt.Sprintf("bad segment %q", part))
		}
		if v >= uint64(HardenedOffset) {
			return nil, invalidPath(path, fmt.Sprintf("segment %q out of range", part))
		}
		index := uint32(v)
		if hardened {
			index += HardenedOffset
		}
		indices = append(indices, index)
	}
	return indices, nil
}

func invalidPath(path, reason string) error {
	return sweeperr.WithDetails(sweeperr.ErrInvalidPath, map[string]string{
		"path":   path,
		"reason": reason,
	})
}
