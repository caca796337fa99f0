// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package errs defines librarian's error taxonomy. Every fallible call in
// the core returns one of these kinds, wrapped with context via fmt.Errorf
// and "%w" — never a bare string and never a panic for control flow.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the subsystem condition it represents.
type Kind string

const (
	KindProviderUnavailable Kind = "provider_unavailable"
	KindBudgetExhausted     Kind = "budget_exhausted"
	KindStorageError        Kind = "storage_error"
	KindContextSession      Kind = "context_session"
	KindUnverifiedByTrace   Kind = "unverified_by_trace"
	KindPartialGeneration   Kind = "partial_generation"
	KindTimeout             Kind = "timeout"
)

// Error is a classified librarian error. Reason carries kind-specific
// detail (e.g. the tightest governor constraint name, or the defeater that
// fired) without inventing new Kind values per call site.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a classified error with an optional reason string.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap classifies an underlying error, preserving it for errors.Is/As.
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// Is reports whether err is a librarian *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ProviderUnavailable builds a provider_unavailable error for the given port.
func ProviderUnavailable(port string, err error) *Error {
	return Wrap(KindProviderUnavailable, port, err)
}

// BudgetExhausted builds a budget_exhausted error naming the tightest
// constraint that tripped it (e.g. "tokens_per_run").
func BudgetExhausted(constraint string) *Error {
	return New(KindBudgetExhausted, constraint)
}

// StorageError wraps a substrate failure.
func StorageError(op string, err error) *Error {
	return Wrap(KindStorageError, op, err)
}

// ContextSession builds a context_session_* error; reason should already
// carry the specific suffix, e.g. "limit_exceeded", "pack_cap", "invalid_question".
func ContextSession(reason string) *Error {
	return New(KindContextSession, reason)
}

// UnverifiedByTrace builds the tagged "could not verify" outcome. Callers
// must surface reason to the user rather than silently downgrading.
func UnverifiedByTrace(reason string) *Error {
	return New(KindUnverifiedByTrace, reason)
}

// PartialGeneration builds a partial_generation error naming the phase(s)
// that did not complete.
func PartialGeneration(reason string) *Error {
	return New(KindPartialGeneration, reason)
}

// Timeout builds a timeout error naming the phase that exceeded its deadline.
func Timeout(phase string) *Error {
	return New(KindTimeout, phase)
}
