package cmd

import (
	"errors"

	"github.com/sarathm09/vibranium/packages/core/compiler"
	"github.com/sarathm09/vibranium/packages/core/config"
)

// Exit codes for the vibranium CLI
const (
	// ExitSuccess indicates every endpoint passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more endpoints failed
	ExitTestFailure = 1

	// ExitCompileError indicates scenarios could not be compiled
	ExitCompileError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// errEndpointsFailed is returned by run when the job did not pass. The
// formatter has already reported the details.
var errEndpointsFailed = errors.New("one or more endpoints failed")

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func exitCodeFor(err error) int {
	var ee *exitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &ee):
		return ee.code
	case errors.Is(err, config.ErrConfiguration):
		return ExitConfigError
	case errors.Is(err, compiler.ErrCompilation):
		return ExitCompileError
	}
	return ExitTestFailure
}
