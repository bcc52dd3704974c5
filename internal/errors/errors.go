// Package errors provides centralized error definitions and error handling utilities
// for wsrun. It defines sentinel errors, the typed errors produced while planning
// and executing a run, and classification helpers used by the command layer to
// pick an exit code and decide what to print.
//
// # Error Types
//
// A run can fail in four distinct ways:
//   - ValidationError: the request itself is unusable (no script given, bad flags)
//   - CycleError: cycle rejection is enabled and selected packages form a cycle
//   - TaskError: the script exited abnormally in a single package
//   - RunError: bail was disabled and one or more packages failed
//
// ValidationError and CycleError are raised before any script is started.
// TaskError and RunError are raised by the runner after scheduling began.
//
// # Usage
//
//	// Check for specific sentinel errors
//	if errors.Is(err, errors.ErrDependencyCycle) { ... }
//
//	// Check for error types
//	var taskErr *errors.TaskError
//	if errors.As(err, &taskErr) {
//	    fmt.Println(taskErr.Package, taskErr.ExitCode)
//	}
//
//	// Map any error to a process exit status
//	os.Exit(errors.ExitCode(err))
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Request sentinel errors
var (
	// ErrNoScript indicates that no lifecycle script name was supplied.
	ErrNoScript = New("no lifecycle script specified")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// Workspace sentinel errors
var (
	// ErrDuplicatePackage indicates that two packages share the same name.
	ErrDuplicatePackage = New("duplicate package name")
	// ErrManifestInvalid indicates that a package manifest could not be parsed.
	ErrManifestInvalid = New("invalid package manifest")
)

// Scheduling sentinel errors
var (
	// ErrDependencyCycle indicates a circular dependency among selected packages.
	ErrDependencyCycle = New("dependency cycle detected")
	// ErrTaskFailed indicates that a package's script exited abnormally.
	ErrTaskFailed = New("task failed")
	// ErrCanceled indicates that the run was interrupted before completion.
	ErrCanceled = New("run canceled")
)

// -----------------------------------------------------------------------------
// ValidationError
// -----------------------------------------------------------------------------

// ValidationError is a configuration or request error. It is always fatal
// and is raised before any invocation starts.
type ValidationError struct {
	Code    string // short machine-readable code, e.g. "ENOSCRIPT"
	Message string
	cause   error
}

// NewValidationError creates a ValidationError with the given code and message.
func NewValidationError(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message, cause: ErrInvalidInput}
}

// NoScriptError is the error returned when the run command has no script.
func NoScriptError() *ValidationError {
	return &ValidationError{
		Code:    "ENOSCRIPT",
		Message: "You must specify a lifecycle script to run",
		cause:   ErrNoScript,
	}
}

func (e *ValidationError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the sentinel this error is classified under.
func (e *ValidationError) Unwrap() error {
	return e.cause
}

// -----------------------------------------------------------------------------
// CycleError
// -----------------------------------------------------------------------------

// CycleError is raised when cycle rejection is enabled and the selected
// packages cannot be ordered.
type CycleError struct {
	// Path is one concrete cycle, first element repeated at the end
	// (e.g. a -> b -> c -> a).
	Path []string
	// Packages lists every package left unresolved by the batcher.
	Packages []string
}

func (e *CycleError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%v: %s", ErrDependencyCycle, strings.Join(e.Path, " -> "))
	}
	return fmt.Sprintf("%v among packages: %s", ErrDependencyCycle, strings.Join(e.Packages, ", "))
}

// Unwrap allows errors.Is(err, ErrDependencyCycle).
func (e *CycleError) Unwrap() error {
	return ErrDependencyCycle
}

// -----------------------------------------------------------------------------
// TaskError
// -----------------------------------------------------------------------------

// TaskError records the failure of a script in a single package.
type TaskError struct {
	Package  string
	Script   string
	ExitCode int // -1 when the process never produced an exit status
	// Stdout and Stderr hold whatever the invocation captured before it
	// failed. Both are empty in streaming mode.
	Stdout []byte
	Stderr []byte
	cause  error
}

// NewTaskError creates a TaskError for pkg. The cause is kept for Unwrap.
func NewTaskError(pkg, script string, exitCode int, cause error) *TaskError {
	return &TaskError{
		Package:  pkg,
		Script:   script,
		ExitCode: exitCode,
		cause:    cause,
	}
}

// WithOutput attaches captured partial output to the error.
func (e *TaskError) WithOutput(stdout, stderr []byte) *TaskError {
	e.Stdout = stdout
	e.Stderr = stderr
	return e
}

func (e *TaskError) Error() string {
	msg := fmt.Sprintf("'%s' errored in '%s'", e.Script, e.Package)
	switch {
	case e.ExitCode > 0:
		// The cause only restates the exit status.
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	case e.cause != nil:
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *TaskError) Unwrap() error {
	return e.cause
}

// Is reports ErrTaskFailed for every TaskError, in addition to the cause chain.
func (e *TaskError) Is(target error) bool {
	return target == ErrTaskFailed
}

// HasOutput reports whether any partial output was captured.
func (e *TaskError) HasOutput() bool {
	return len(e.Stdout) > 0 || len(e.Stderr) > 0
}

// -----------------------------------------------------------------------------
// RunError
// -----------------------------------------------------------------------------

// RunError aggregates every package failure of a run that did not bail.
type RunError struct {
	Failures []*TaskError
	Total    int // number of packages that were invoked
}

func (e *RunError) Error() string {
	names := e.Packages()
	return fmt.Sprintf("%d of %d packages failed: %s", len(e.Failures), e.Total, strings.Join(names, ", "))
}

// Packages returns the names of the failing packages in failure order.
func (e *RunError) Packages() []string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Package
	}
	return names
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *RunError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// ExitCode maps an error to a process exit status. A nil error is 0.
// A single task failure propagates the task's own exit code when it has one.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var taskErr *TaskError
	var runErr *RunError
	switch {
	case As(err, &runErr):
		return 1
	case As(err, &taskErr) && taskErr.ExitCode > 0:
		return taskErr.ExitCode
	default:
		return 1
	}
}

// IsUserFacing reports whether the error message is meant for the user as-is,
// without an internal error prefix.
func IsUserFacing(err error) bool {
	var v *ValidationError
	var c *CycleError
	var t *TaskError
	var r *RunError
	return As(err, &v) || As(err, &c) || As(err, &t) || As(err, &r)
}
