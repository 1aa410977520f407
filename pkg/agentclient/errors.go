package agentclient

import (
	"errors"
	"fmt"
)

type ExitCode int

// Keep separate to avoid skewing exit codes
const (
	ExitSuccess ExitCode = iota
	ExitDeploymentError
	ExitRejected
	ExitNoDeployment
	ExitUnavailable
	ExitInvocationFailure
	ExitInternalError
	ExitTimeout
)

type Error struct {
	Code ExitCode
	Err  error
}

func (err *Error) Error() string {
	return err.Err.Error()
}

func (err *Error) Unwrap() error {
	return err.Err
}

func Errorf(exitCode ExitCode, format string, args ...interface{}) *Error {
	return &Error{
		Code: exitCode,
		Err:  fmt.Errorf(format, args...),
	}
}

func ErrorWrap(exitCode ExitCode, err error) *Error {
	return &Error{
		Code: exitCode,
		Err:  err,
	}
}

func ErrorExitCode(err error) ExitCode {
	if err == nil {
		return ExitSuccess
	}
	var e *Error
	if !errors.As(err, &e) {
		return ExitInternalError
	}
	return e.Code
}
