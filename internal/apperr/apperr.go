// Package apperr defines the error kinds shared by the core services and the
// HTTP boundary.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the boundary can pick a status code.
type Kind int

const (
	Internal Kind = iota
	BadRequest
	Unauthorized
	Forbidden
	NotFound
	Conflict
	InvalidArgument
	Configuration
	Signing
	Persistence
)

var kindNames = map[Kind]string{
	Internal:        "internal",
	BadRequest:      "bad_request",
	Unauthorized:    "unauthorized",
	Forbidden:       "forbidden",
	NotFound:        "not_found",
	Conflict:        "conflict",
	InvalidArgument: "invalid_argument",
	Configuration:   "configuration",
	Signing:         "signing",
	Persistence:     "persistence",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error carries a human-readable Message for clients and a Detail string
// that ends up in the envelope's "error" field.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message, detail string) *Error {
	return &Error{Kind: kind, Message: message, Detail: detail}
}

func Wrap(kind Kind, message string, err error) *Error {
	e := &Error{Kind: kind, Message: message, Err: err}
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
