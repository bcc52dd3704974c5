package invoke

import (
	"bytes"
	"io"
	"sync"
)

// lineWriter buffers partial lines and writes complete ones, prefixed, to dst
// while holding a lock shared with the other writers of the run.
type lineWriter struct {
	dst    io.Writer
	prefix string
	mu     *sync.Mutex
	buf    bytes.Buffer
}

func newLineWriter(dst io.Writer, prefix string, mu *sync.Mutex) *lineWriter {
	return &lineWriter{dst: dst, prefix: prefix, mu: mu}
}

// Write implements io.Writer. It always consumes all of p.
func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)

	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// Incomplete line: keep it for the next write.
			w.buf.Reset()
			w.buf.Write(line)
			break
		}
		w.emit(line)
	}
	return len(p), nil
}

// Flush writes any trailing partial line with a newline appended.
func (w *lineWriter) Flush() {
	if w.buf.Len() == 0 {
		return
	}
	line := append(w.buf.Bytes(), '\n')
	w.buf.Reset()
	w.emit(line)
}

func (w *lineWriter) emit(line []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.prefix != "" {
		_, _ = io.WriteString(w.dst, w.prefix)
	}
	_, _ = w.dst.Write(line)
}
