// Copyright 2025 Certen Protocol
//
// Error kind taxonomy shared across every pre-processor component, per
// spec section 7. Individual packages still define their own sentinel
// errors for local conditions (see pkg/batch/errors.go in the original
// validator for the pattern); this package exists so the CLI boundary
// can recover a stable Kind from any wrapped error without each package
// re-declaring the same closed set.

package hdperrors

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds named in spec.md section 7. It is a
// closed string enum, not an open int const per package, so the CLI exit
// code mapping never silently falls through to "unknown".
type Kind string

const (
	InvalidEncoding    Kind = "InvalidEncoding"
	UnknownVariant     Kind = "UnknownVariant"
	FieldOutOfRange    Kind = "FieldOutOfRange"
	InvalidBlockRange  Kind = "InvalidBlockRange"
	InvalidMMR         Kind = "InvalidMMR"
	ProviderError      Kind = "ProviderError"
	Timeout            Kind = "Timeout"
	ClassHashMismatch  Kind = "ClassHashMismatch"
	ModuleNotFound     Kind = "ModuleNotFound"
	MissingChainConfig Kind = "MissingChainConfig"
	Overflow           Kind = "Overflow"
	EmptyAggregate     Kind = "EmptyAggregate"
	ProverMismatch     Kind = "ProverMismatch"
	ProverAborted      Kind = "ProverAborted"
)

// ExitCode maps a Kind to the process exit code from spec.md section 7:
// 0 success, 1 user error, 2 environment error, 3 consistency error.
func (k Kind) ExitCode() int {
	switch k {
	case InvalidEncoding, UnknownVariant, FieldOutOfRange, InvalidBlockRange,
		MissingChainConfig, EmptyAggregate, Overflow:
		return 1
	case ProviderError, Timeout, ModuleNotFound:
		return 2
	case InvalidMMR, ClassHashMismatch, ProverMismatch, ProverAborted:
		return 3
	default:
		return 1
	}
}

// Error is a structured error carrying a Kind, a message, and optionally
// the task or fetch key that triggered it, matching spec.md's "structured
// error with kind, message, and the offending task/fetch key" CLI surface.
type Error struct {
	Kind    Kind
	Message string
	// Offender is a human-readable identifier of the offending task or
	// fetch key (e.g. "task[3]" or "fetch-key header(sepolia,6127485)").
	Offender string
	Cause    error
}

func (e *Error) Error() string {
	if e.Offender != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Offender)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds a structured Error with no offender.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a structured Error around a lower-level cause.
func Wrap(kind Kind, offender string, cause error) *Error {
	return &Error{Kind: kind, Message: cause.Error(), Offender: offender, Cause: cause}
}

// KindOf recovers the Kind from any error in the chain, or "" if none of
// the wrapped errors is a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
