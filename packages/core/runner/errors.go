package runner

import "errors"

var (
	ErrDependencyNotFound        = errors.New("dependency not found")
	ErrDependencyExecutionFailed = errors.New("dependency execution failed")
	ErrCyclicDependency          = errors.New("cyclic dependency")
	ErrNetwork                   = errors.New("network error")
	ErrScriptExecution           = errors.New("script execution failed")
)
