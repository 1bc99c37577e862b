// Package zaulterr defines the error taxonomy shared by every zault
// component. Every exported operation in the module fails with exactly one
// of the Codes below, wrapped in an *Error.
package zaulterr

import "fmt"

// Code identifies the class of failure. Callers dispatch on Code, never on
// the wrapped error text.
type Code string

const (
	NotFound          Code = "NOT_FOUND"
	InvalidArgument   Code = "INVALID_ARGUMENT"
	InvalidBlock      Code = "INVALID_BLOCK"
	InvalidMetadata   Code = "INVALID_METADATA"
	InvalidExportFile Code = "INVALID_EXPORT_FILE"
	AuthFailed        Code = "AUTH_FAILED"
	ShareExpired      Code = "SHARE_EXPIRED"
	StorageFailure    Code = "STORAGE_FAILURE"
	CryptoError       Code = "CRYPTO_ERROR"
	OutOfMemory       Code = "OUT_OF_MEMORY"
)

// Error is the concrete error type returned by every exported zault
// operation. Op names the failing operation ("vault.AddFile",
// "blockstore.Put", ...); Err, when non-nil, is the underlying cause.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds an *Error with no wrapped cause.
func New(code Code, op, msg string) *Error {
	if msg == "" {
		return &Error{Code: code, Op: op}
	}
	return &Error{Code: code, Op: op, Err: fmt.Errorf("%s", msg)}
}

// Wrap builds an *Error wrapping an underlying cause.
func Wrap(code Code, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Err: err}
}

// Is reports whether err is a *Error carrying the given code.
func Is(err error, code Code) bool {
	var e *Error
	if ok := asError(err, &e); !ok {
		return false
	}
	return e.Code == code
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
