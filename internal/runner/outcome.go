package runner

import (
	"slices"
	"sync"
	"time"

	"github.com/Iron-Ham/wsrun/internal/errors"
	"github.com/Iron-Ham/wsrun/internal/invoke"
)

// Status is the settled state of one package in a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Outcome is what happened to one package.
type Outcome struct {
	Package  string
	Batch    int // -1 in parallel mode
	Status   Status
	Duration time.Duration
	// Stdout and Stderr hold captured output; both are empty when streaming.
	Stdout []byte
	Stderr []byte
	Err    *errors.TaskError // set when Status is StatusFailed
}

// Report summarizes a run. It is a snapshot: invocations still running when
// a parallel run returns early are not reflected in it.
type Report struct {
	Script string
	// Packages lists every package the run was asked to execute, in plan
	// order (batch by batch).
	Packages []string
	// Outcomes lists settled and skipped packages in the order they settled.
	Outcomes []Outcome
	Duration time.Duration
}

// Succeeded returns the packages that succeeded, in plan order.
func (r *Report) Succeeded() []string {
	return r.withStatus(StatusSucceeded)
}

// Failed returns the packages that failed, in plan order.
func (r *Report) Failed() []string {
	return r.withStatus(StatusFailed)
}

// Skipped returns the packages that were never started, in plan order.
func (r *Report) Skipped() []string {
	return r.withStatus(StatusSkipped)
}

// Outcome returns the recorded outcome of a package.
func (r *Report) Outcome(name string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Package == name {
			return o, true
		}
	}
	return Outcome{}, false
}

func (r *Report) withStatus(status Status) []string {
	var names []string
	for _, name := range r.Packages {
		if o, ok := r.Outcome(name); ok && o.Status == status {
			names = append(names, name)
		}
	}
	return names
}

// outcomes aggregates settle notifications from concurrent invocations.
type outcomes struct {
	script   string
	packages []string

	mu       sync.Mutex
	settled  []Outcome
	failures []*errors.TaskError
	invoked  int
}

func newOutcomes(script string, packages []string) *outcomes {
	return &outcomes{script: script, packages: packages}
}

// started counts an invocation that was actually begun.
func (o *outcomes) started() {
	o.mu.Lock()
	o.invoked++
	o.mu.Unlock()
}

// record stores the settlement of one invocation and returns its outcome.
func (o *outcomes) record(pkg string, batch int, duration time.Duration, res *invoke.Result, err error) Outcome {
	out := Outcome{Package: pkg, Batch: batch, Duration: duration}
	if err == nil {
		out.Status = StatusSucceeded
		if res != nil {
			out.Stdout, out.Stderr = res.Stdout, res.Stderr
		}
	} else {
		out.Status = StatusFailed
		out.Err = o.taskError(pkg, err)
		out.Stdout, out.Stderr = out.Err.Stdout, out.Err.Stderr
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.settled = append(o.settled, out)
	if out.Err != nil {
		o.failures = append(o.failures, out.Err)
	}
	return out
}

// taskError converts whatever the invoker returned into a TaskError,
// carrying across an exit code and captured output when the error exposes
// them.
func (o *outcomes) taskError(pkg string, err error) *errors.TaskError {
	code := -1
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		code = coder.ExitCode()
	}

	taskErr := errors.NewTaskError(pkg, o.script, code, err)

	var carrier interface{ CapturedOutput() ([]byte, []byte) }
	if errors.As(err, &carrier) {
		taskErr.WithOutput(carrier.CapturedOutput())
	}
	return taskErr
}

// skip records a package that was never started.
func (o *outcomes) skip(pkg string, batch int) Outcome {
	out := Outcome{Package: pkg, Batch: batch, Status: StatusSkipped}
	o.mu.Lock()
	o.settled = append(o.settled, out)
	o.mu.Unlock()
	return out
}

func (o *outcomes) failed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.failures) > 0
}

// err returns the run's error: the first failure when bailing, every
// failure otherwise.
func (o *outcomes) err(bail bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case len(o.failures) == 0:
		return nil
	case bail:
		return o.failures[0]
	default:
		return &errors.RunError{
			Failures: slices.Clone(o.failures),
			Total:    o.invoked,
		}
	}
}

// counts returns the number of succeeded, failed and skipped packages.
func (o *outcomes) counts() (succeeded, failed, skipped int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, out := range o.settled {
		switch out.Status {
		case StatusSucceeded:
			succeeded++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return succeeded, failed, skipped
}

func (o *outcomes) report(duration time.Duration) *Report {
	o.mu.Lock()
	defer o.mu.Unlock()
	return &Report{
		Script:   o.script,
		Packages: slices.Clone(o.packages),
		Outcomes: slices.Clone(o.settled),
		Duration: duration,
	}
}
