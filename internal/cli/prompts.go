package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mrz1836/hdsweep/internal/wallet"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// Prompt hooks, replaced in tests.
//
//nolint:gochecknoglobals // swapped by tests
var (
	promptSecretFn   = promptSecret
	promptMnemonicFn = promptMnemonic
)

// stdinIsTerminal reports whether stdin is interactive.
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) //nolint:gosec // G115: Fd() returns uintptr, safe conversion for term.IsTerminal
}

// promptSecret prompts on stderr and reads a line with hidden input.
// The caller is responsible for zeroing the returned bytes after use.
func promptSecret(prompt string) ([]byte, error) {
	out(os.Stderr, "%s", prompt)

	secret, err := term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // G115: see stdinIsTerminal
	outln(os.Stderr)

	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return secret, nil
}

// promptMnemonic reads the phrase from a hidden prompt on a terminal, or
// from piped stdin otherwise.
func promptMnemonic() (string, error) {
	if !stdinIsTerminal() {
		return readMnemonic(os.Stdin)
	}

	outln(os.Stderr, "Enter your mnemonic phrase (12 to 24 words, input is hidden):")
	phrase, err := promptSecretFn("> ")
	if err != nil {
		return "", err
	}
	defer wallet.ZeroBytes(phrase)
	return string(phrase), nil
}

// promptPassphrase asks for the optional BIP39 passphrase.
func promptPassphrase() (string, error) {
	outln(os.Stderr, "BIP39 passphrase (the \"25th word\"). A wrong passphrase recovers an empty wallet.")
	passphrase, err := promptSecretFn("Enter passphrase: ")
	if err != nil {
		return "", err
	}
	defer wallet.ZeroBytes(passphrase)
	return string(passphrase), nil
}

// readMnemonic reads every line of r and joins them into one phrase, so
// both one-line and one-word-per-line input work.
func readMnemonic(r io.Reader) (string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		words = append(words, strings.Fields(scanner.Text())...)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading mnemonic: %w", err)
	}
	if len(words) == 0 {
		return "", sweeperr.WithSuggestion(sweeperr.ErrInvalidInput, "no mnemonic provided")
	}
	return strings.Join(words, " "), nil
}

// readMnemonicFile reads the phrase from path, or from stdin when path is
// "-".
func readMnemonicFile(path string) (string, error) {
	if path == "-" {
		return readMnemonic(os.Stdin)
	}

	// #nosec G304 -- path is supplied by the user on purpose
	f, err := os.Open(path)
	if err != nil {
		return "", sweeperr.WithDetails(sweeperr.Cause(sweeperr.ErrNotFound, err), map[string]string{"path": path})
	}
	defer func() { _ = f.Close() }()
	return readMnemonic(f)
}

// out is a helper for CLI output.
//
//nolint:errcheck // CLI output writes are intentionally unchecked
func out(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}

// outln is a helper for CLI output with newline.
//
//nolint:errcheck // CLI output writes are intentionally unchecked
func outln(w io.Writer, args ...any) {
	fmt.Fprintln(w, args...)
}
