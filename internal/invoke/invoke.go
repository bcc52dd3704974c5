// Package invoke runs a lifecycle script in a single package.
//
// The scheduler only decides whether and when a package's script runs; this
// package owns how. It exposes one capability interface, [Invoker], with two
// variants chosen once at construction:
//
//   - [Streaming]: output is forwarded live, line by line, optionally prefixed
//     with the package name. Nothing is buffered and the [Result] is empty.
//   - [Capturing]: output is buffered (bounded) and returned in the [Result].
//     On failure the returned [*ExitError] still carries whatever was captured.
//
// Both variants run `<client> run <script> [-- args...]` in the package
// directory.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/Iron-Ham/wsrun/internal/workspace"
)

// DefaultClient is the package manager used when none is configured.
const DefaultClient = "npm"

// DefaultMaxOutputBytes bounds the output retained per stream in capturing mode.
const DefaultMaxOutputBytes = 1 << 20

// Invoker runs the configured script in one package. Implementations must be
// safe for concurrent use; the runner calls Invoke from many goroutines.
type Invoker interface {
	Invoke(ctx context.Context, pkg *workspace.Package) (*Result, error)
}

// Result is the settled output of a successful invocation. Both fields are
// empty in streaming mode.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// ExitError is returned when the script ran but did not succeed, or could not
// be started at all.
type ExitError struct {
	Package string
	Code    int // -1 when the process produced no exit status
	Stdout  []byte
	Stderr  []byte
	Err     error
}

func (e *ExitError) Error() string {
	if e.Code >= 0 {
		return fmt.Sprintf("%s: exit code %d", e.Package, e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Package, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the process exit status, or -1.
func (e *ExitError) ExitCode() int { return e.Code }

// CapturedOutput returns the partial output produced before the failure.
func (e *ExitError) CapturedOutput() (stdout, stderr []byte) { return e.Stdout, e.Stderr }

// Options configures an Invoker.
type Options struct {
	Script string
	Args   []string
	// Client is the package manager binary ("npm", "pnpm", "yarn").
	Client string
	// Root is the repository root, exported to scripts as WSRUN_ROOT.
	Root string
	// Stream selects the streaming variant.
	Stream bool
	// Prefix tags each streamed line with the package name.
	Prefix bool
	// Color enables colored prefixes.
	Color bool
	// MaxOutputBytes bounds each captured stream. Zero means DefaultMaxOutputBytes.
	MaxOutputBytes int
	// Stdout and Stderr receive streamed output. They default to os.Stdout
	// and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
	// Env is appended to the inherited environment.
	Env []string
}

func (o Options) withDefaults() Options {
	if o.Client == "" {
		o.Client = DefaultClient
	}
	if o.MaxOutputBytes <= 0 {
		o.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	return o
}

// New returns the Invoker variant selected by opts.Stream.
func New(opts Options) Invoker {
	opts = opts.withDefaults()
	if opts.Stream {
		return NewStreaming(opts)
	}
	return NewCapturing(opts)
}

// CommandLine returns the command run for opts, for logging.
func CommandLine(opts Options) string {
	opts = opts.withDefaults()
	return strings.Join(append([]string{opts.Client}, commandArgs(opts)...), " ")
}

func commandArgs(opts Options) []string {
	args := []string{"run", opts.Script}
	if len(opts.Args) > 0 {
		args = append(args, "--")
		args = append(args, opts.Args...)
	}
	return args
}

// command builds the exec.Cmd for pkg. Stdio is left to the caller.
func command(ctx context.Context, opts Options, pkg *workspace.Package) *exec.Cmd {
	cmd := exec.CommandContext(ctx, opts.Client, commandArgs(opts)...)
	cmd.Dir = pkg.Location
	cmd.Env = append(os.Environ(),
		"WSRUN_PACKAGE="+pkg.Name,
		"WSRUN_ROOT="+opts.Root,
	)
	cmd.Env = append(cmd.Env, opts.Env...)
	return cmd
}

// exitCode extracts the exit status from a Wait/Run error.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
