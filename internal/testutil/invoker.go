package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Iron-Ham/wsrun/internal/invoke"
	"github.com/Iron-Ham/wsrun/internal/workspace"
)

// FakeInvoker is a scriptable invoke.Invoker. Each package's invocation can
// be made to fail, and can be held open until the test releases it, which
// lets tests observe the scheduler while invocations are in flight.
type FakeInvoker struct {
	// Fail maps package name to the exit code its invocation fails with.
	Fail map[string]int
	// Output maps package name to the stdout returned (or attached to the
	// failure).
	Output map[string]string
	// Hold lists packages whose invocation blocks until Release is called
	// for them.
	Hold map[string]bool

	mu       sync.Mutex
	started  []string
	settled  []string
	gates    map[string]chan struct{}
	startedC chan string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

// NewFakeInvoker creates a FakeInvoker whose Started channel buffers up to
// capacity start notifications.
func NewFakeInvoker(capacity int) *FakeInvoker {
	return &FakeInvoker{
		Fail:     map[string]int{},
		Output:   map[string]string{},
		Hold:     map[string]bool{},
		gates:    map[string]chan struct{}{},
		startedC: make(chan string, capacity),
	}
}

// Invoke implements invoke.Invoker.
func (f *FakeInvoker) Invoke(ctx context.Context, pkg *workspace.Package) (*invoke.Result, error) {
	n := f.inFlight.Add(1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.started = append(f.started, pkg.Name)
	hold := f.Hold[pkg.Name]
	gate := f.gate(pkg.Name)
	f.mu.Unlock()

	f.startedC <- pkg.Name

	if hold {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}

	f.inFlight.Add(-1)

	f.mu.Lock()
	f.settled = append(f.settled, pkg.Name)
	code, fail := f.Fail[pkg.Name]
	out := f.Output[pkg.Name]
	f.mu.Unlock()

	if fail {
		return nil, &invoke.ExitError{
			Package: pkg.Name,
			Code:    code,
			Stdout:  []byte(out),
			Err:     fmt.Errorf("exit status %d", code),
		}
	}
	return &invoke.Result{Stdout: []byte(out)}, nil
}

// gate returns the release channel for name. Callers hold f.mu.
func (f *FakeInvoker) gate(name string) chan struct{} {
	g, ok := f.gates[name]
	if !ok {
		g = make(chan struct{})
		f.gates[name] = g
	}
	return g
}

// Release unblocks a held package's invocation.
func (f *FakeInvoker) Release(name string) {
	f.mu.Lock()
	g := f.gate(name)
	f.mu.Unlock()
	close(g)
}

// Started delivers package names as their invocations start.
func (f *FakeInvoker) Started() <-chan string {
	return f.startedC
}

// StartedNames returns the packages invoked so far, in start order.
func (f *FakeInvoker) StartedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.started...)
}

// SettledNames returns the packages whose invocation returned, in order.
func (f *FakeInvoker) SettledNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.settled...)
}

// MaxInFlight returns the highest number of concurrent invocations observed.
func (f *FakeInvoker) MaxInFlight() int {
	return int(f.maxInFlight.Load())
}
