package orchestrator

import (
	"errors"
	"fmt"
)

var (
	ErrConflict               = errors.New("deployment already registered")
	ErrAllocation             = errors.New("instance allocation failed")
	ErrFunding                = errors.New("funding failed")
	ErrAllocationNotConfirmed = errors.New("allocation not confirmed")
	ErrHostUnreachable        = errors.New("host unreachable")
	ErrProvisioning           = errors.New("provisioning failed")
)

// Error is a failed deployment step. Kind is one of the sentinel errors of this package.
type Error struct {
	Kind error
	Err  error
}

func (err *Error) Error() string {
	return fmt.Sprintf("%s: %s", err.Kind, err.Err)
}

func (err *Error) Unwrap() []error {
	return []error{err.Kind, err.Err}
}

func Errorf(kind error, format string, args ...interface{}) *Error {
	return &Error{
		Kind: kind,
		Err:  fmt.Errorf(format, args...),
	}
}

func ErrorWrap(kind error, err error) *Error {
	return &Error{
		Kind: kind,
		Err:  err,
	}
}

// Reason returns a short label for the kind of err, for use in metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAllocation):
		return "allocation"
	case errors.Is(err, ErrFunding):
		return "funding"
	case errors.Is(err, ErrAllocationNotConfirmed):
		return "allocation_not_confirmed"
	case errors.Is(err, ErrHostUnreachable):
		return "host_unreachable"
	case errors.Is(err, ErrProvisioning):
		return "provisioning"
	default:
		return "internal"
	}
}
