package network

import (
	"encoding/hex"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// ChecksumAddress renders addr in mixed-case checksum form. chainID zero
// gives EIP-55. A non-zero chainID gives EIP-1191, which hashes
// "<chainID>0x<lowercase hex>" instead of the bare hex; RSK uses 30 and 31.
func ChecksumAddress(addr common.Address, chainID uint64) string {
	lower := hex.EncodeToString(addr[:])

	input := lower
	if chainID != 0 {
		input = strconv.FormatUint(chainID, 10) + "0x" + lower
	}

	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(input))
	digest := hash.Sum(nil)

	result := make([]byte, len(lower))
	for i := range lower {
		result[i] = checksumChar(lower[i], digest[i/2], i%2 == 1)
	}
	return "0x" + string(result)
}

// checksumChar upper-cases a hex letter when its hash nibble is >= 8.
func checksumChar(c, hashByte byte, isOddPosition bool) byte {
	if c >= '0' && c <= '9' {
		return c
	}

	nibble := hashByte >> 4
	if isOddPosition {
		nibble = hashByte & 0x0F
	}

	if nibble >= 8 {
		return c - 32
	}
	return c
}
