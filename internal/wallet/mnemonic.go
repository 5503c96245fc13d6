// Package wallet handles the recovery phrase: BIP39 normalization,
// validation with typo suggestions, and seed derivation.
package wallet

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/tyler-smith/go-bip39"

	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

var (
	// whitespaceRegex matches one or more whitespace characters.
	whitespaceRegex = regexp.MustCompile(`\s+`)

	// numberedListRegex matches numbered list prefixes like "1." "2)" "3:"
	numberedListRegex = regexp.MustCompile(`(?m)^\s*\d+[\.\)\:]\s*`)

	// bulletListRegex matches bullet prefixes like "- " "* " "• "
	bulletListRegex = regexp.MustCompile(`(?m)^\s*[-*•]\s*`)
)

// entropyBits maps supported BIP39 word counts to entropy sizes.
//
//nolint:gochecknoglobals // read-only lookup table
var entropyBits = map[int]int{
	12: 128,
	15: 160,
	18: 192,
	21: 224,
	24: 256,
}

// ValidateMnemonic checks word count, word validity and checksum.
func ValidateMnemonic(mnemonic string) error {
	normalized := NormalizeMnemonicInput(mnemonic)
	if normalized == "" {
		return sweeperr.ErrInvalidMnemonic
	}

	words := strings.Fields(normalized)
	if _, ok := entropyBits[len(words)]; !ok {
		return sweeperr.WithDetails(sweeperr.ErrInvalidMnemonic, map[string]string{
			"word_count": strconv.Itoa(len(words)),
		})
	}

	if _, err := bip39.MnemonicToByteArray(normalized); err != nil {
		return sweeperr.ErrInvalidMnemonic
	}

	return nil
}

// NormalizeMnemonicInput cleans pasted phrases: lowercases, drops list
// numbering and bullets, turns commas into spaces and collapses whitespace.
func NormalizeMnemonicInput(input string) string {
	input = strings.ToLower(input)
	input = numberedListRegex.ReplaceAllString(input, " ")
	input = bulletListRegex.ReplaceAllString(input, " ")
	input = strings.ReplaceAll(input, ",", " ")
	input = whitespaceRegex.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// MnemonicToSeed converts a BIP39 mnemonic phrase to a 64-byte seed.
// The passphrase is optional. Callers should ZeroBytes the seed when done.
func MnemonicToSeed(mnemonic, passphrase string) ([]byte, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}
	return bip39.NewSeed(NormalizeMnemonicInput(mnemonic), passphrase), nil
}

// IsValidWord checks if a word is in the BIP39 word list.
func IsValidWord(word string) bool {
	_, ok := bip39.GetWordIndex(strings.ToLower(word))
	return ok
}

// MaxTypoDistance is the maximum Levenshtein distance to consider a suggestion.
const MaxTypoDistance = 2

// TypoInfo describes a word that is not in the BIP39 list.
type TypoInfo struct {
	Index      int // 0-based word position
	Word       string
	Suggestion string // closest BIP39 word, empty if none within MaxTypoDistance
	Distance   int
}

// SuggestWord finds the closest BIP39 word to the input.
// Returns empty string if no word is within MaxTypoDistance.
func SuggestWord(input string) string {
	input = strings.ToLower(input)

	minDist := math.MaxInt
	var suggestion string
	for _, word := range bip39.GetWordList() {
		dist := levenshtein.ComputeDistance(input, word)
		if dist == 0 {
			return word
		}
		if dist < minDist {
			minDist = dist
			suggestion = word
		}
	}

	if minDist <= MaxTypoDistance {
		return suggestion
	}
	return ""
}

// DetectTypos returns every word of mnemonic that is not a BIP39 word.
func DetectTypos(mnemonic string) []TypoInfo {
	words := strings.Fields(NormalizeMnemonicInput(mnemonic))

	var typos []TypoInfo
	for i, word := range words {
		if IsValidWord(word) {
			continue
		}
		typo := TypoInfo{Index: i, Word: word, Suggestion: SuggestWord(word)}
		if typo.Suggestion != "" {
			typo.Distance = levenshtein.ComputeDistance(word, typo.Suggestion)
		}
		typos = append(typos, typo)
	}
	return typos
}

// FormatTypoSuggestions renders typos one per line, 1-indexed.
func FormatTypoSuggestions(typos []TypoInfo) string {
	lines := make([]string, 0, len(typos))
	for _, typo := range typos {
		line := "Word " + strconv.Itoa(typo.Index+1) + ": '" + typo.Word + "'"
		if typo.Suggestion != "" {
			line += " - did you mean '" + typo.Suggestion + "'?"
		} else {
			line += " is not a valid BIP39 word"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// ZeroBytes zeros out a byte slice.
func ZeroBytes(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
