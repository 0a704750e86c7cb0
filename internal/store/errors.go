package store

import (
	"errors"
	"fmt"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/serializer"
)

// ErrorKind is the closed taxonomy every store error maps into.
type ErrorKind string

const (
	KindConnection       ErrorKind = "connection"
	KindSerialization    ErrorKind = "serialization"
	KindNotFound         ErrorKind = "not_found"
	KindPermissionDenied ErrorKind = "permission_denied"
	KindValidation       ErrorKind = "validation"
	KindInternal         ErrorKind = "internal"
)

// StoreError is the single error type surfaced by every store operation.
type StoreError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("store: %s: %s", e.Kind, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is matches two StoreErrors by kind, so errors.Is(err, ErrNotFound) works
// against any wrapped instance.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	return ok && t.Kind == e.Kind
}

// Sentinel instances for errors.Is checks.
var (
	ErrConnection       = &StoreError{Kind: KindConnection, Message: "connection failed"}
	ErrSerialization    = &StoreError{Kind: KindSerialization, Message: "serialization failed"}
	ErrNotFound         = &StoreError{Kind: KindNotFound, Message: "not found"}
	ErrPermissionDenied = &StoreError{Kind: KindPermissionDenied, Message: "permission denied"}
	ErrValidation       = &StoreError{Kind: KindValidation, Message: "validation failed"}
	ErrInternal         = &StoreError{Kind: KindInternal, Message: "internal error"}
)

func connectionErr(msg string, err error) *StoreError {
	return &StoreError{Kind: KindConnection, Message: msg, Err: err}
}

func serializationErr(msg string, err error) *StoreError {
	return &StoreError{Kind: KindSerialization, Message: msg, Err: err}
}

func notFoundErr(msg string) *StoreError {
	return &StoreError{Kind: KindNotFound, Message: msg}
}

func permissionErr(msg string) *StoreError {
	return &StoreError{Kind: KindPermissionDenied, Message: msg}
}

func validationErr(msg string, err error) *StoreError {
	return &StoreError{Kind: KindValidation, Message: msg, Err: err}
}

func internalErr(msg string, err error) *StoreError {
	return &StoreError{Kind: KindInternal, Message: msg, Err: err}
}

// Kind extracts the taxonomy kind from any error, defaulting to Internal.
func Kind(err error) ErrorKind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// codecErr maps serializer failures into the taxonomy: size-ceiling breaches
// are validation problems, everything else is a serialization problem.
func codecErr(err error) *StoreError {
	var sizeErr *serializer.SizeError
	if errors.As(err, &sizeErr) {
		return validationErr(sizeErr.Error(), nil)
	}
	return serializationErr("codec failure", err)
}
