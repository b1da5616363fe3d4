// Package errs defines the coded error kinds forge reports to callers.
//
// Every failure that aborts a scaffolding run carries one of the kinds below
// so callers can branch with errors.Is without parsing messages:
//
//	if errors.Is(err, errs.ErrRuntimeUnavailable) { ... }
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a category of failure.
type Kind string

const (
	// KindUnknown is reported for errors that were not produced by this package.
	KindUnknown Kind = "UNKNOWN"

	// KindNotFound means a template root, template, plugin or file is missing.
	KindNotFound Kind = "NOT_FOUND"

	// KindIO covers filesystem read, write and traversal failures.
	KindIO Kind = "IO"

	// KindRuntimeUnavailable means a required external runtime failed its probe.
	KindRuntimeUnavailable Kind = "RUNTIME_UNAVAILABLE"

	// KindRenderFailed means a single file's render step failed.
	KindRenderFailed Kind = "RENDER_FAILED"

	// KindInvalidDescriptor means a plugin descriptor is malformed or invalid.
	KindInvalidDescriptor Kind = "INVALID_DESCRIPTOR"

	// KindInvalidInput covers bad user input such as malformed variables.
	KindInvalidInput Kind = "INVALID_INPUT"

	// KindAlreadyExists means a write would clobber existing state without --force.
	KindAlreadyExists Kind = "ALREADY_EXISTS"
)

// Sentinels for use with errors.Is. Matching is by kind only.
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrIO                 = &Error{Kind: KindIO}
	ErrRuntimeUnavailable = &Error{Kind: KindRuntimeUnavailable}
	ErrRenderFailed       = &Error{Kind: KindRenderFailed}
	ErrInvalidDescriptor  = &Error{Kind: KindInvalidDescriptor}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
	ErrAlreadyExists      = &Error{Kind: KindAlreadyExists}
)

// Error is a structured error with a kind, the subject it concerns and an
// optional cause.
type Error struct {
	Kind Kind
	// Op is a short verb phrase such as "read template" or "probe runtime".
	Op string
	// Subject is the path, runtime or plugin name the error is about.
	Subject string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Subject != "" {
		fmt.Fprintf(&b, " %q", e.Subject)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New creates an error of the given kind.
func New(kind Kind, op, subject string, err error) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: err}
}

// NotFound reports a missing path or named entity.
func NotFound(op, subject string, err error) *Error {
	return New(KindNotFound, op, subject, err)
}

// IO reports a filesystem failure on path.
func IO(op, path string, err error) *Error {
	return New(KindIO, op, path, err)
}

// RuntimeUnavailable reports that the named runtime could not be probed.
func RuntimeUnavailable(name string, err error) *Error {
	return New(KindRuntimeUnavailable, "probe runtime", name, err)
}

// RenderFailed reports that rendering path failed with cause.
func RenderFailed(path string, cause error) *Error {
	return New(KindRenderFailed, "render", path, cause)
}

// InvalidDescriptor reports a malformed plugin descriptor.
func InvalidDescriptor(subject string, err error) *Error {
	return New(KindInvalidDescriptor, "parse plugin descriptor", subject, err)
}

// InvalidInput reports bad user-provided input.
func InvalidInput(op, subject string, err error) *Error {
	return New(KindInvalidInput, op, subject, err)
}

// AlreadyExists reports that path exists and overwriting was not requested.
func AlreadyExists(op, path string) *Error {
	return New(KindAlreadyExists, op, path, nil)
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
