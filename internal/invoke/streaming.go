package invoke

import (
	"context"
	"sync"

	"github.com/Iron-Ham/wsrun/internal/tui/styles"
	"github.com/Iron-Ham/wsrun/internal/workspace"
)

// Streaming forwards script output live to the configured writers.
type Streaming struct {
	opts Options

	// mu serializes whole lines from concurrent packages onto the shared
	// writers so that prefixed lines never interleave mid-line.
	mu sync.Mutex

	colorMu sync.Mutex
	colors  map[string]int
}

// NewStreaming creates a streaming Invoker.
func NewStreaming(opts Options) *Streaming {
	return &Streaming{
		opts:   opts.withDefaults(),
		colors: make(map[string]int),
	}
}

// Invoke runs the script in pkg, streaming its output.
func (s *Streaming) Invoke(ctx context.Context, pkg *workspace.Package) (*Result, error) {
	cmd := command(ctx, s.opts, pkg)

	prefix := ""
	if s.opts.Prefix {
		prefix = s.prefixFor(pkg.Name)
	}
	stdout := newLineWriter(s.opts.Stdout, prefix, &s.mu)
	stderr := newLineWriter(s.opts.Stderr, prefix, &s.mu)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	stdout.Flush()
	stderr.Flush()

	if err != nil {
		return nil, &ExitError{Package: pkg.Name, Code: exitCode(err), Err: err}
	}
	return &Result{}, nil
}

// prefixFor returns the "name: " tag for a package, colored when enabled.
// Colors are assigned in first-seen order so each package keeps its color.
func (s *Streaming) prefixFor(name string) string {
	tag := name + ": "
	if !s.opts.Color {
		return tag
	}

	s.colorMu.Lock()
	idx, ok := s.colors[name]
	if !ok {
		idx = len(s.colors)
		s.colors[name] = idx
	}
	s.colorMu.Unlock()

	return styles.PrefixStyle(idx).Render(name) + ": "
}
