package invoke

import (
	"context"
	"sync"

	"github.com/Iron-Ham/wsrun/internal/workspace"
)

// Capturing buffers script output and returns it with the result.
type Capturing struct {
	opts Options
}

// NewCapturing creates a capturing Invoker.
func NewCapturing(opts Options) *Capturing {
	return &Capturing{opts: opts.withDefaults()}
}

// Invoke runs the script in pkg and returns its captured output. On failure
// the returned *ExitError carries the output captured so far.
func (c *Capturing) Invoke(ctx context.Context, pkg *workspace.Package) (*Result, error) {
	cmd := command(ctx, c.opts, pkg)

	stdout := newRingBuffer(c.opts.MaxOutputBytes)
	stderr := newRingBuffer(c.opts.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		return nil, &ExitError{
			Package: pkg.Name,
			Code:    exitCode(err),
			Stdout:  stdout.Bytes(),
			Stderr:  stderr.Bytes(),
			Err:     err,
		}
	}
	return &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
}

// ringBuffer keeps the most recent size bytes written to it. Long-running
// scripts can be very chatty; the tail is what matters for diagnosis.
type ringBuffer struct {
	mu    sync.Mutex
	data  []byte
	start int // index of the oldest byte
	n     int // bytes currently held
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{data: make([]byte, size)}
}

// Write implements io.Writer and always succeeds.
func (r *ringBuffer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	written := len(p)
	size := len(r.data)
	if len(p) >= size {
		copy(r.data, p[len(p)-size:])
		r.start, r.n = 0, size
		return written, nil
	}

	end := (r.start + r.n) % size
	k := copy(r.data[end:], p)
	copy(r.data, p[k:])

	r.n += len(p)
	if r.n > size {
		r.start = (r.start + r.n - size) % size
		r.n = size
	}
	return written, nil
}

// Bytes returns a copy of the retained data, oldest first.
func (r *ringBuffer) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]byte, r.n)
	k := copy(out, r.data[r.start:min(r.start+r.n, len(r.data))])
	copy(out[k:], r.data[:r.n-k])
	return out
}
