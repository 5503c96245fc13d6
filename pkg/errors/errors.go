// Package errors provides structured error handling for hdsweep.
// It defines the error kinds raised by derivation, scanning and the
// balance backends, the CLI exit codes, and helpers for attaching
// details and suggestions to an error.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the hdsweep binary.
const (
	ExitSuccess  = 0 // Successful execution
	ExitGeneral  = 1 // General/unknown error
	ExitInput    = 2 // Invalid input
	ExitNotFound = 4 // Resource not found
	ExitCanceled = 6 // Canceled or timed out
)

// Error is the structured error type for hdsweep.
type Error struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *Error) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// General errors.
var (
	ErrGeneral = &Error{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &Error{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrNotFound = &Error{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	ErrInvalidMnemonic = &Error{
		Code:     "INVALID_MNEMONIC",
		Message:  "invalid mnemonic phrase",
		ExitCode: ExitInput,
	}
)

// Derivation errors.
var (
	// ErrUnknownNetwork is returned when a network name is not in the registry.
	ErrUnknownNetwork = &Error{
		Code:     "UNKNOWN_NETWORK",
		Message:  "unknown network",
		ExitCode: ExitInput,
	}

	// ErrDeserialization is returned for malformed serialized key material.
	ErrDeserialization = &Error{
		Code:     "DESERIALIZATION_ERROR",
		Message:  "malformed key material",
		ExitCode: ExitInput,
	}

	// ErrDerivation is returned for derivation requests the node cannot satisfy.
	ErrDerivation = &Error{
		Code:     "DERIVATION_ERROR",
		Message:  "invalid derivation request",
		ExitCode: ExitInput,
	}

	ErrInvalidPath = &Error{
		Code:     "INVALID_PATH",
		Message:  "invalid derivation path",
		ExitCode: ExitInput,
	}
)

// Scanning errors.
var (
	// ErrOracle is returned when a balance lookup fails.
	ErrOracle = &Error{
		Code:     "ORACLE_ERROR",
		Message:  "balance lookup failed",
		ExitCode: ExitGeneral,
	}

	// ErrAllNetworksFailed is returned when every network in a batch errored.
	ErrAllNetworksFailed = &Error{
		Code:     "ALL_NETWORKS_FAILED",
		Message:  "recovery failed for every requested network",
		ExitCode: ExitGeneral,
	}

	ErrScanCanceled = &Error{
		Code:     "SCAN_CANCELED",
		Message:  "recovery scan was canceled",
		ExitCode: ExitCanceled,
	}
)

// Backend and config errors.
var (
	ErrNetworkError = &Error{
		Code:     "NETWORK_ERROR",
		Message:  "network communication failed",
		ExitCode: ExitGeneral,
	}

	ErrNotSupported = &Error{
		Code:     "NOT_SUPPORTED",
		Message:  "operation not supported for this network",
		ExitCode: ExitInput,
	}

	ErrInvalidAddress = &Error{
		Code:     "INVALID_ADDRESS",
		Message:  "invalid address format",
		ExitCode: ExitInput,
	}

	ErrConfigNotFound = &Error{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &Error{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}
)

// New creates a new Error with the given code and message.
func New(code, message string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var he *Error
	if errors.As(err, &he) {
		return &Error{
			Code:       he.Code,
			Message:    fmt.Sprintf("%s: %s", msg, he.Message),
			Details:    he.Details,
			Suggestion: he.Suggestion,
			Cause:      err,
			ExitCode:   he.ExitCode,
		}
	}

	return &Error{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// Cause returns a copy of kind with cause attached, so that both kind and
// cause match errors.Is.
func Cause(kind *Error, cause error) error {
	if cause == nil {
		return kind
	}
	return &Error{
		Code:       kind.Code,
		Message:    kind.Message,
		Details:    kind.Details,
		Suggestion: kind.Suggestion,
		Cause:      cause,
		ExitCode:   kind.ExitCode,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var he *Error
	if errors.As(err, &he) {
		return &Error{
			Code:       he.Code,
			Message:    he.Message,
			Details:    details,
			Suggestion: he.Suggestion,
			Cause:      he.Cause,
			ExitCode:   he.ExitCode,
		}
	}

	return &Error{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var he *Error
	if errors.As(err, &he) {
		return &Error{
			Code:       he.Code,
			Message:    he.Message,
			Details:    he.Details,
			Suggestion: suggestion,
			Cause:      he.Cause,
			ExitCode:   he.ExitCode,
		}
	}

	return &Error{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var he *Error
	if errors.As(err, &he) {
		return he.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var he *Error
	if errors.As(err, &he) {
		return he.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
