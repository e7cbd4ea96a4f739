// Package apperror defines the domain failure taxonomy shared by services and handlers.
package apperror

import "errors"

type Kind string

const (
	KindValidation       Kind = "validation"
	KindUnauthenticated  Kind = "unauthenticated"
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindInvalidOperation Kind = "invalid_operation"
	KindInternal         Kind = "internal"
)

// Error is a domain failure tagged with its Kind. Fields carries per-field
// detail for validation failures.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Validation builds a validation failure from field -> message pairs.
func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "Validation error", Fields: fields}
}

func (e *Error) Error() string {
	return e.Message
}

// KindOf reports the kind of the first *Error in err's chain; untagged errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
