package invoke_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Iron-Ham/wsrun/internal/invoke"
	"github.com/Iron-Ham/wsrun/internal/testutil"
	"github.com/Iron-Ham/wsrun/internal/workspace"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writes of a streaming run.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testPackage(t *testing.T, name string) *workspace.Package {
	t.Helper()
	return &workspace.Package{Name: name, Location: t.TempDir()}
}

func TestCommandLine(t *testing.T) {
	tests := []struct {
		name string
		opts invoke.Options
		want string
	}{
		{"default client", invoke.Options{Script: "build"}, "npm run build"},
		{"custom client", invoke.Options{Script: "test", Client: "pnpm"}, "pnpm run test"},
		{"with args", invoke.Options{Script: "test", Args: []string{"--watch", "x"}}, "npm run test -- --watch x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := invoke.CommandLine(tt.opts); got != tt.want {
				t.Errorf("CommandLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNew_SelectsVariant(t *testing.T) {
	if _, ok := invoke.New(invoke.Options{Stream: true}).(*invoke.Streaming); !ok {
		t.Error("New(Stream: true) should return *Streaming")
	}
	if _, ok := invoke.New(invoke.Options{}).(*invoke.Capturing); !ok {
		t.Error("New(Stream: false) should return *Capturing")
	}
}

func TestCapturing_Success(t *testing.T) {
	client := testutil.FakeClient(t)
	inv := invoke.NewCapturing(invoke.Options{Script: "ok", Client: client})

	res, err := inv.Invoke(context.Background(), testPackage(t, "pkg-a"))
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if got := string(res.Stdout); got != "hello from pkg-a\n" {
		t.Errorf("Stdout = %q", got)
	}
	if got := string(res.Stderr); got != "careful\n" {
		t.Errorf("Stderr = %q", got)
	}
}

func TestCapturing_Args(t *testing.T) {
	client := testutil.FakeClient(t)
	inv := invoke.NewCapturing(invoke.Options{Script: "args", Client: client, Args: []string{"--ci", "x"}})

	res, err := inv.Invoke(context.Background(), testPackage(t, "pkg-a"))
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if got := string(res.Stdout); got != "args: --ci x\n" {
		t.Errorf("Stdout = %q", got)
	}
}

func TestCapturing_FailureKeepsOutput(t *testing.T) {
	client := testutil.FakeClient(t)
	inv := invoke.NewCapturing(invoke.Options{Script: "fail", Client: client})

	res, err := inv.Invoke(context.Background(), testPackage(t, "pkg-a"))
	if res != nil {
		t.Errorf("Invoke() result = %+v, want nil on failure", res)
	}

	var exitErr *invoke.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Invoke() error = %T %v, want *invoke.ExitError", err, err)
	}
	if exitErr.ExitCode() != 3 {
		t.Errorf("ExitCode() = %d, want 3", exitErr.ExitCode())
	}
	stdout, stderr := exitErr.CapturedOutput()
	if string(stdout) != "partial output\n" || string(stderr) != "boom\n" {
		t.Errorf("CapturedOutput() = %q, %q", stdout, stderr)
	}
}

func TestCapturing_BoundedOutput(t *testing.T) {
	client := testutil.FakeClient(t)
	inv := invoke.NewCapturing(invoke.Options{Script: "loud", Client: client, MaxOutputBytes: 16})

	res, err := inv.Invoke(context.Background(), testPackage(t, "pkg-a"))
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if len(res.Stdout) != 16 {
		t.Fatalf("len(Stdout) = %d, want 16", len(res.Stdout))
	}
	if !strings.HasSuffix(string(res.Stdout), "line 199\n") {
		t.Errorf("Stdout = %q, want the tail of the output", res.Stdout)
	}
}

func TestCapturing_MissingClient(t *testing.T) {
	inv := invoke.NewCapturing(invoke.Options{Script: "ok", Client: "/nonexistent/wsrun-client"})

	_, err := inv.Invoke(context.Background(), testPackage(t, "pkg-a"))
	var exitErr *invoke.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Invoke() error = %v, want *invoke.ExitError", err)
	}
	if exitErr.ExitCode() != -1 {
		t.Errorf("ExitCode() = %d, want -1 when the process never started", exitErr.ExitCode())
	}
}

func TestStreaming_Prefixed(t *testing.T) {
	client := testutil.FakeClient(t)
	var stdout, stderr syncBuffer
	inv := invoke.NewStreaming(invoke.Options{
		Script: "ok",
		Client: client,
		Prefix: true,
		Stdout: &stdout,
		Stderr: &stderr,
	})

	res, err := inv.Invoke(context.Background(), testPackage(t, "pkg-a"))
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if len(res.Stdout) != 0 || len(res.Stderr) != 0 {
		t.Errorf("streaming result should carry no output, got %+v", res)
	}
	if got := stdout.String(); got != "pkg-a: hello from pkg-a\n" {
		t.Errorf("stdout = %q", got)
	}
	if got := stderr.String(); got != "pkg-a: careful\n" {
		t.Errorf("stderr = %q", got)
	}
}

func TestStreaming_NoPrefixFlushesPartialLine(t *testing.T) {
	client := testutil.FakeClient(t)
	var stdout syncBuffer
	inv := invoke.NewStreaming(invoke.Options{Script: "nonl", Client: client, Stdout: &stdout, Stderr: &syncBuffer{}})

	if _, err := inv.Invoke(context.Background(), testPackage(t, "pkg-a")); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if got := stdout.String(); got != "no newline\n" {
		t.Errorf("stdout = %q, want %q", got, "no newline\n")
	}
}

func TestStreaming_Failure(t *testing.T) {
	client := testutil.FakeClient(t)
	inv := invoke.NewStreaming(invoke.Options{Script: "fail", Client: client, Stdout: &syncBuffer{}, Stderr: &syncBuffer{}})

	_, err := inv.Invoke(context.Background(), testPackage(t, "pkg-a"))
	var exitErr *invoke.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Invoke() error = %v, want *invoke.ExitError", err)
	}
	if exitErr.ExitCode() != 3 {
		t.Errorf("ExitCode() = %d, want 3", exitErr.ExitCode())
	}
	if stdout, stderr := exitErr.CapturedOutput(); len(stdout) != 0 || len(stderr) != 0 {
		t.Error("streaming failures should not carry captured output")
	}
}

func TestStreaming_ConcurrentLinesDoNotInterleave(t *testing.T) {
	client := testutil.FakeClient(t)
	var stdout syncBuffer
	inv := invoke.NewStreaming(invoke.Options{Script: "loud", Client: client, Prefix: true, Stdout: &stdout, Stderr: &syncBuffer{}})

	pkgs := []*workspace.Package{testPackage(t, "a"), testPackage(t, "b"), testPackage(t, "c")}
	var wg sync.WaitGroup
	for _, pkg := range pkgs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := inv.Invoke(context.Background(), pkg); err != nil {
				t.Errorf("Invoke(%s) error = %v", pkg.Name, err)
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n")
	if len(lines) != 600 {
		t.Fatalf("got %d lines, want 600", len(lines))
	}
	for _, line := range lines {
		if !(strings.HasPrefix(line, "a: line ") || strings.HasPrefix(line, "b: line ") || strings.HasPrefix(line, "c: line ")) {
			t.Fatalf("malformed line %q", line)
		}
	}
}
