// Package domainerrors defines the typed error union returned at service
// boundaries. Every operation's failure modes are drawn from the Code
// enumeration below; the HTTP layer performs a single exhaustive translation
// of codes to status responses instead of matching ad hoc error strings at
// call sites.
package domainerrors

import (
	"errors"
	"fmt"
	"time"
)

// Code classifies a domain failure.
type Code string

const (
	// CodeInvalidInput: malformed name, password, or request payload.
	CodeInvalidInput Code = "invalid_input"
	// CodeNotFound: no object with the supplied id.
	CodeNotFound Code = "not_found"
	// CodeConflict: object already in the requested state (name taken,
	// admin already logged in, record already present).
	CodeConflict Code = "conflict"
	// CodeUnauthorized: credential failure: wrong password, incorrect
	// challenge response.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden: authenticated but not permitted (missing grant,
	// subject inactive, acting on another user's resources).
	CodeForbidden Code = "forbidden"
	// CodeLocked: account lockout; distinct from CodeUnauthorized because
	// it carries the lock reason and expiry.
	CodeLocked Code = "locked"
	// CodeExpired: time-based invalidation, recoverable by
	// re-authenticating.
	CodeExpired Code = "expired"
	// CodeGone: object soft-deleted.
	CodeGone Code = "gone"
	// CodeInternal: invariant violation or persistence failure. Never
	// expected during correct operation; surfaced distinctly rather than
	// coerced into not_found.
	CodeInternal Code = "internal"
)

// Error is the concrete domain error. Services construct it with New or Wrap;
// nothing outside this package inspects Message for control flow.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a domain error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the domain code from err, defaulting to CodeInternal for
// errors that escaped the union.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the domain message, falling back to the raw error text.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// LockDetails carries lockout metadata alongside CodeLocked so callers can
// report the reason and expiry without string parsing.
type LockDetails struct {
	Reason string
	Expiry time.Time
}

func (d *LockDetails) Error() string {
	return fmt.Sprintf("locked until %s: %s", d.Expiry.Format(time.RFC3339), d.Reason)
}

// NewLocked builds a CodeLocked error carrying the lock reason and expiry.
func NewLocked(reason string, expiry time.Time) error {
	return &Error{
		Code:    CodeLocked,
		Message: "UserLocked",
		Err:     &LockDetails{Reason: reason, Expiry: expiry},
	}
}

// LockedDetails extracts lock metadata from a CodeLocked error.
func LockedDetails(err error) (*LockDetails, bool) {
	var d *LockDetails
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
