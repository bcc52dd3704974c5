package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// ValidationError Tests
// -----------------------------------------------------------------------------

func TestNoScriptError(t *testing.T) {
	err := NoScriptError()

	if err.Code != "ENOSCRIPT" {
		t.Errorf("Code = %q, want %q", err.Code, "ENOSCRIPT")
	}
	if !errors.Is(err, ErrNoScript) {
		t.Error("errors.Is(err, ErrNoScript) = false, want true")
	}
	if !strings.Contains(err.Error(), "lifecycle script") {
		t.Errorf("Error() = %q, want mention of lifecycle script", err.Error())
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("EBADFLAG", "concurrency must be positive")

	if got := err.Error(); got != "EBADFLAG: concurrency must be positive" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("errors.Is(err, ErrInvalidInput) = false, want true")
	}
}

// -----------------------------------------------------------------------------
// CycleError Tests
// -----------------------------------------------------------------------------

func TestCycleError(t *testing.T) {
	tests := []struct {
		name string
		err  *CycleError
		want string
	}{
		{
			name: "with path",
			err:  &CycleError{Path: []string{"a", "b", "a"}, Packages: []string{"a", "b"}},
			want: "dependency cycle detected: a -> b -> a",
		},
		{
			name: "packages only",
			err:  &CycleError{Packages: []string{"a", "b"}},
			want: "dependency cycle detected among packages: a, b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, ErrDependencyCycle) {
				t.Error("errors.Is(err, ErrDependencyCycle) = false, want true")
			}
		})
	}
}

// -----------------------------------------------------------------------------
// TaskError Tests
// -----------------------------------------------------------------------------

func TestTaskError(t *testing.T) {
	cause := fmt.Errorf("exit status 2")
	err := NewTaskError("pkg-a", "build", 2, cause).WithOutput([]byte("out"), []byte("err"))

	if got := err.Error(); got != "'build' errored in 'pkg-a' (exit code 2)" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrTaskFailed) {
		t.Error("errors.Is(err, ErrTaskFailed) = false, want true")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if !err.HasOutput() {
		t.Error("HasOutput() = false, want true")
	}
}

func TestTaskError_CauseShownWithoutExitCode(t *testing.T) {
	err := NewTaskError("pkg-a", "build", -1, fmt.Errorf(`exec: "pnpm": executable file not found in $PATH`))

	want := `'build' errored in 'pkg-a': exec: "pnpm": executable file not found in $PATH`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestTaskError_NoOutput(t *testing.T) {
	err := NewTaskError("pkg-a", "test", -1, nil)

	if err.HasOutput() {
		t.Error("HasOutput() = true, want false")
	}
	if got := err.Error(); got != "'test' errored in 'pkg-a'" {
		t.Errorf("Error() = %q", got)
	}
}

// -----------------------------------------------------------------------------
// RunError Tests
// -----------------------------------------------------------------------------

func TestRunError(t *testing.T) {
	a := NewTaskError("a", "test", 1, nil)
	c := NewTaskError("c", "test", 3, nil)
	err := &RunError{Failures: []*TaskError{a, c}, Total: 4}

	if got := err.Error(); got != "2 of 4 packages failed: a, c" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrTaskFailed) {
		t.Error("errors.Is(err, ErrTaskFailed) = false, want true")
	}

	var taskErr *TaskError
	if !errors.As(err, &taskErr) || taskErr.Package != "a" {
		t.Errorf("errors.As should find the first failure, got %v", taskErr)
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", New("boom"), 1},
		{"validation", NoScriptError(), 1},
		{"task with code", NewTaskError("a", "build", 7, nil), 7},
		{"wrapped task", fmt.Errorf("run: %w", NewTaskError("a", "build", 4, nil)), 4},
		{"task without code", NewTaskError("a", "build", -1, nil), 1},
		{"run error", &RunError{Failures: []*TaskError{NewTaskError("a", "build", 9, nil)}, Total: 2}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsUserFacing(t *testing.T) {
	if !IsUserFacing(NoScriptError()) {
		t.Error("ValidationError should be user facing")
	}
	if !IsUserFacing(&CycleError{Packages: []string{"a"}}) {
		t.Error("CycleError should be user facing")
	}
	if IsUserFacing(New("internal")) {
		t.Error("plain error should not be user facing")
	}
}
