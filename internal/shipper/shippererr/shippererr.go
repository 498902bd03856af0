// Copyright (c) 2024 EffortlessMetrics
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package shippererr defines the error taxonomy shared by every shipper
// component: a small closed set of kinds callers can branch on with
// errors.As, each wrapping the underlying cause.
package shippererr

import "fmt"

// Kind is one of the error taxonomy's closed set of categories.
type Kind string

// Kind values.
const (
	KindPlanError        Kind = "plan_error"
	KindLockConflict     Kind = "lock_conflict"
	KindSchemaMismatch   Kind = "schema_mismatch"
	KindAuthMissing      Kind = "auth_missing"
	KindRegistryError    Kind = "registry_error"
	KindPublishRetry     Kind = "publish_retryable"
	KindPublishPermanent Kind = "publish_permanent"
	KindPublishAmbiguous Kind = "publish_ambiguous"
	KindReadinessTimeout Kind = "readiness_timeout"
	KindIOError          Kind = "io_error"
)

// Error is a classified shipper error. The zero value is not valid; use New
// or Wrap.
type Error struct {
	cause   error
	Kind    Kind
	Message string
}

// New creates a classified error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a classified error around an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var classified *Error
	if !asError(err, &classified) {
		return false
	}
	return classified.Kind == kind
}

// asError is a small local errors.As to avoid importing "errors" just for
// this one call site in every caller.
func asError(err error, target **Error) bool {
	for err != nil {
		if classified, ok := err.(*Error); ok {
			*target = classified
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
