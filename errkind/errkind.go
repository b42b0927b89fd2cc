// Package errkind classifies the errors the build core can produce.
//
// A Kind never replaces a causal chain; it's attached to one with Wrap so
// callers can still see the original os/exec or http error via
// errors.Cause, while code that needs to branch on failure category can
// call Is.
package errkind

import (
	"github.com/pkg/errors"
)

// Kind is one of the error categories from the core's error handling design.
type Kind uint8

const (
	_ Kind = iota
	InvalidManifest
	InvalidLockfile
	InvalidSourceURL
	CannotDownload
	ChecksumMismatch
	PackageNotFound
	LockContention
	CompileFailed
	NotImplemented
	IO
)

func (k Kind) String() string {
	switch k {
	case InvalidManifest:
		return "invalid manifest"
	case InvalidLockfile:
		return "invalid lockfile"
	case InvalidSourceURL:
		return "invalid source url"
	case CannotDownload:
		return "cannot download"
	case ChecksumMismatch:
		return "checksum mismatch"
	case PackageNotFound:
		return "package not found"
	case LockContention:
		return "lock contention"
	case CompileFailed:
		return "compile failed"
	case NotImplemented:
		return "not implemented"
	case IO:
		return "io error"
	default:
		return "unknown error"
	}
}

// kindError tags an underlying error with a Kind, preserving the chain.
type kindError struct {
	kind  Kind
	cause error
}

func (e *kindError) Error() string { return e.kind.String() + ": " + e.cause.Error() }
func (e *kindError) Cause() error  { return e.cause }
func (e *kindError) Unwrap() error { return e.cause }

// Wrap attaches kind to err, annotating with msg the way errors.Wrap does.
// Returns nil if err is nil.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, cause: errors.Wrap(err, msg)}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, cause: errors.Wrapf(err, format, args...)}
}

// New creates a new error of kind with the given message.
func New(kind Kind, msg string) error {
	return &kindError{kind: kind, cause: errors.New(msg)}
}

// Newf is New with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &kindError{kind: kind, cause: errors.Errorf(format, args...)}
}

// Is reports whether err (or anything in its chain) was tagged with kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if ke, ok := err.(*kindError); ok {
			if ke.kind == kind {
				return true
			}
			err = ke.cause
			continue
		}
		cause := errors.Unwrap(err)
		if cause == nil {
			return false
		}
		err = cause
	}
	return false
}
