// Package event carries run lifecycle notifications from the runner to the
// components that present them: the report printer, the progress view, the
// metrics collector and the debug log.
//
// Event types follow the pattern "category.action":
//   - run.started, run.finished
//   - batch.started, batch.finished
//   - package.started, package.finished, package.skipped
package event

import "time"

// Event type identifiers.
const (
	TypeRunStarted      = "run.started"
	TypeRunFinished     = "run.finished"
	TypeBatchStarted    = "batch.started"
	TypeBatchFinished   = "batch.finished"
	TypePackageStarted  = "package.started"
	TypePackageFinished = "package.finished"
	TypePackageSkipped  = "package.skipped"
)

// Event is the interface that all events implement.
type Event interface {
	// EventType returns the "category.action" identifier of the event.
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// Mode names how a run schedules its packages.
type Mode string

const (
	ModeBatched  Mode = "batched"
	ModeParallel Mode = "parallel"
)

// -----------------------------------------------------------------------------
// Run Events
// -----------------------------------------------------------------------------

// RunStartedEvent is emitted once before the first invocation.
type RunStartedEvent struct {
	baseEvent
	Script   string
	Mode     Mode
	Packages []string // every package that will be scheduled, in plan order
	Batches  int      // 1 in parallel mode
}

// NewRunStartedEvent creates a RunStartedEvent.
func NewRunStartedEvent(script string, mode Mode, packages []string, batches int) RunStartedEvent {
	return RunStartedEvent{
		baseEvent: newBaseEvent(TypeRunStarted),
		Script:    script,
		Mode:      mode,
		Packages:  packages,
		Batches:   batches,
	}
}

// RunFinishedEvent is emitted once the runner returns.
type RunFinishedEvent struct {
	baseEvent
	Script    string
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
	Err       error // nil when every package succeeded
}

// NewRunFinishedEvent creates a RunFinishedEvent.
func NewRunFinishedEvent(script string, succeeded, failed, skipped int, duration time.Duration, err error) RunFinishedEvent {
	return RunFinishedEvent{
		baseEvent: newBaseEvent(TypeRunFinished),
		Script:    script,
		Succeeded: succeeded,
		Failed:    failed,
		Skipped:   skipped,
		Duration:  duration,
		Err:       err,
	}
}

// Success reports whether the run finished without error.
func (e RunFinishedEvent) Success() bool { return e.Err == nil }

// -----------------------------------------------------------------------------
// Batch Events
// -----------------------------------------------------------------------------

// BatchStartedEvent is emitted before the first member of a batch is scheduled.
type BatchStartedEvent struct {
	baseEvent
	Index    int // zero-based
	Total    int
	Packages []string
}

// NewBatchStartedEvent creates a BatchStartedEvent.
func NewBatchStartedEvent(index, total int, packages []string) BatchStartedEvent {
	return BatchStartedEvent{
		baseEvent: newBaseEvent(TypeBatchStarted),
		Index:     index,
		Total:     total,
		Packages:  packages,
	}
}

// BatchFinishedEvent is emitted after every scheduled member of a batch has
// settled.
type BatchFinishedEvent struct {
	baseEvent
	Index    int
	Failed   int
	Duration time.Duration
}

// NewBatchFinishedEvent creates a BatchFinishedEvent.
func NewBatchFinishedEvent(index, failed int, duration time.Duration) BatchFinishedEvent {
	return BatchFinishedEvent{
		baseEvent: newBaseEvent(TypeBatchFinished),
		Index:     index,
		Failed:    failed,
		Duration:  duration,
	}
}

// -----------------------------------------------------------------------------
// Package Events
// -----------------------------------------------------------------------------

// PackageStartedEvent is emitted when a package's invocation begins.
type PackageStartedEvent struct {
	baseEvent
	Package string
	Batch   int // -1 in parallel mode
}

// NewPackageStartedEvent creates a PackageStartedEvent.
func NewPackageStartedEvent(pkg string, batch int) PackageStartedEvent {
	return PackageStartedEvent{
		baseEvent: newBaseEvent(TypePackageStarted),
		Package:   pkg,
		Batch:     batch,
	}
}

// PackageFinishedEvent is emitted when a package's invocation settles.
type PackageFinishedEvent struct {
	baseEvent
	Package  string
	Batch    int
	ExitCode int // 0 on success
	Duration time.Duration
	Stdout   []byte // captured output, empty when streaming
	Stderr   []byte
	Err      error // nil on success
}

// NewPackageFinishedEvent creates a PackageFinishedEvent.
func NewPackageFinishedEvent(pkg string, batch, exitCode int, duration time.Duration, stdout, stderr []byte, err error) PackageFinishedEvent {
	return PackageFinishedEvent{
		baseEvent: newBaseEvent(TypePackageFinished),
		Package:   pkg,
		Batch:     batch,
		ExitCode:  exitCode,
		Duration:  duration,
		Stdout:    stdout,
		Stderr:    stderr,
		Err:       err,
	}
}

// Success reports whether the invocation succeeded.
func (e PackageFinishedEvent) Success() bool { return e.Err == nil }

// PackageSkippedEvent is emitted for each package that was never started
// because the run bailed or was canceled first.
type PackageSkippedEvent struct {
	baseEvent
	Package string
	Reason  string
}

// NewPackageSkippedEvent creates a PackageSkippedEvent.
func NewPackageSkippedEvent(pkg, reason string) PackageSkippedEvent {
	return PackageSkippedEvent{
		baseEvent: newBaseEvent(TypePackageSkipped),
		Package:   pkg,
		Reason:    reason,
	}
}
