// Package diag holds the fatal error kinds raised while building and rendering
// conversion trees.
package diag

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedTypeMapping    = errors.New("unsupported type mapping")
	ErrMissingAliasTarget        = errors.New("missing alias target")
	ErrBinderNotFound            = errors.New("binder not found")
	ErrUnreachableTypeReferenced = errors.New("unreachable type referenced")
	ErrTooManyFlagBits           = errors.New("too many flag bits")
	ErrInvalidSignature          = errors.New("invalid signature")
	ErrInvalidEnumValue          = errors.New("invalid enum value")
	ErrDuplicateSymbol           = errors.New("duplicate native symbol")
)

// Error ties an error kind to the type or member that raised it.
type Error struct {
	Kind    error
	Subject string
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Subject, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Subject, e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Kind }

// Newf returns an *Error of the given kind for subject.
func Newf(kind error, subject, format string, args ...any) *Error {
	return &Error{Kind: kind, Subject: subject, Detail: fmt.Sprintf(format, args...)}
}

// SubjectOf returns the subject of the first *Error in err's chain.
func SubjectOf(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Subject, true
	}
	return "", false
}
