// Package errors defines the sentinel errors shared by the indexer, the store
// backends and the consumer, plus an AppError that records the failing
// operation.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrGroupDataMissing   = errors.New("group data not available")
	ErrDecryption         = errors.New("decryption failed")
	ErrTransactionAborted = errors.New("transaction aborted")
	ErrTransactionClosed  = errors.New("transaction already finished")
	ErrReadOnly           = errors.New("transaction is read-only")
	ErrUnknownStore       = errors.New("object store not part of transaction")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrConflict           = errors.New("concurrent transaction conflict")
)

type AppError struct {
	Err     error
	Op      string
	Message string
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, op string, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Op:      op,
		Message: message,
	}
}

func Newf(sentinel error, op string, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Retryable reports whether err is a transient store failure that the caller
// may retry with the same IndexUpdate.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrConflict):
		return true
	default:
		return false
	}
}

// Op returns the operation recorded by the outermost AppError in err's chain.
func Op(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Op
	}
	return ""
}
