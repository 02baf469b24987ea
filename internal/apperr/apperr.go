// Package apperr defines the failure taxonomy shared by the store, the image
// store and the command surface. Callers match with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: the id or image reference has no live row.
	ErrNotFound = errors.New("not found")
	// ErrPathRejected: an image reference failed the traversal, containment
	// or registration check.
	ErrPathRejected = errors.New("path rejected")
	// ErrSizeExceeded: an encoded image is over the configured limit.
	ErrSizeExceeded = errors.New("size exceeded")
	// ErrInvalidInput: a settings or exclusion value is out of bounds.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorage: the underlying I/O or transaction failed.
	ErrStorage = errors.New("storage failure")
	// ErrEncoding: a payload could not be losslessly encoded or decoded.
	ErrEncoding = errors.New("encoding failure")
)

// Kind names the taxonomy member an error belongs to.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindPathRejected Kind = "path_rejected"
	KindSizeExceeded Kind = "size_exceeded"
	KindInvalidInput Kind = "invalid_input"
	KindStorage      Kind = "storage_failure"
	KindEncoding     Kind = "encoding_failure"
	KindUnknown      Kind = "unknown"
)

// KindOf classifies err. Errors outside the taxonomy report KindUnknown.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPathRejected):
		return KindPathRejected
	case errors.Is(err, ErrSizeExceeded):
		return KindSizeExceeded
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrEncoding):
		return KindEncoding
	case errors.Is(err, ErrStorage):
		return KindStorage
	default:
		return KindUnknown
	}
}

// Storage wraps a driver or filesystem error as ErrStorage, keeping the
// original error reachable through errors.Is / errors.As.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// Encoding wraps a codec error as ErrEncoding.
func Encoding(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrEncoding, err)
}

// Invalid reports an out-of-bounds value.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
