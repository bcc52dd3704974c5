// Package runner executes a lifecycle script across packages.
//
// Two schedules are supported. RunBatches walks dependency-ordered batches,
// running each batch's members concurrently under a run-wide concurrency
// limit, and never starts a batch before the previous one has settled.
// RunAll starts every package at once with no limit and no ordering.
//
// Bail means "stop starting new work": once a package has failed, nothing
// further is scheduled and the run returns the failure right away.
// Invocations already in flight are not killed; they finish in the
// background and are still logged and published. Nothing is ever retried.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/semaphore"

	"github.com/Iron-Ham/wsrun/internal/batch"
	"github.com/Iron-Ham/wsrun/internal/errors"
	"github.com/Iron-Ham/wsrun/internal/event"
	"github.com/Iron-Ham/wsrun/internal/invoke"
	"github.com/Iron-Ham/wsrun/internal/logging"
	"github.com/Iron-Ham/wsrun/internal/workspace"
)

// Skip reasons published with event.PackageSkippedEvent.
const (
	SkipBail     = "bail"
	SkipCanceled = "canceled"
)

// Options configures a Runner.
type Options struct {
	Script string
	// Bail stops scheduling after the first failure. RunAll always bails.
	Bail bool
	// Concurrency is the maximum number of simultaneous invocations in
	// RunBatches. Values below 1 are treated as 1; the caller resolves any
	// "one per CPU" default.
	Concurrency int
}

// Runner schedules invocations of one script.
type Runner struct {
	opts    Options
	invoker invoke.Invoker
	bus     *event.Bus
	logger  *logging.Logger
	sem     *semaphore.Weighted
}

// New creates a Runner. bus and logger may be nil.
func New(opts Options, invoker invoke.Invoker, bus *event.Bus, logger *logging.Logger) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if bus == nil {
		bus = event.NewBus()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Runner{
		opts:    opts,
		invoker: invoker,
		bus:     bus,
		logger:  logger,
		sem:     semaphore.NewWeighted(int64(opts.Concurrency)),
	}
}

// RunBatches runs batches in order. All members of a batch run concurrently,
// subject to the concurrency limit shared across the whole run.
//
// With Bail, the error is the first failure's *errors.TaskError, returned as
// soon as it is observed; siblings still in flight are not awaited and are
// missing from the Report. Without Bail, every package runs and the error is
// an *errors.RunError naming all failures. A canceled ctx stops scheduling
// the same way a failure does under Bail.
func (r *Runner) RunBatches(ctx context.Context, batches [][]*workspace.Package) (*Report, error) {
	start := time.Now()
	agg := newOutcomes(r.opts.Script, planNames(batches))
	r.bus.Publish(event.NewRunStartedEvent(r.opts.Script, event.ModeBatched, agg.packages, len(batches)))
	r.logger.Info("run started",
		"script", r.opts.Script,
		"mode", event.ModeBatched,
		"packages", len(agg.packages),
		"batches", len(batches),
		"concurrency", r.opts.Concurrency,
		"bail", r.opts.Bail)

	for i, b := range batches {
		if reason, stop := r.stopReason(ctx, agg); stop {
			for j, rest := range batches[i:] {
				r.skipAll(agg, rest, i+j, reason)
			}
			break
		}
		r.runBatch(ctx, agg, i, len(batches), b)
	}

	return r.finish(ctx, agg, start, r.opts.Bail)
}

func (r *Runner) runBatch(ctx context.Context, agg *outcomes, index, total int, members []*workspace.Package) {
	batchStart := time.Now()
	r.bus.Publish(event.NewBatchStartedEvent(index, total, workspace.Names(members)))

	_, failedBefore, _ := agg.counts()
	wg := conc.NewWaitGroup()
	// failed is closed once a member of this batch has failed and its
	// events have been published.
	failed := make(chan struct{})
	var failOnce sync.Once

	for _, pkg := range members {
		if reason, stop := r.stopReason(ctx, agg); stop {
			r.skip(agg, pkg, index, reason)
			continue
		}
		if err := r.sem.Acquire(ctx, 1); err != nil {
			r.skip(agg, pkg, index, SkipCanceled)
			continue
		}
		// A sibling may have failed while we waited for a slot.
		if reason, stop := r.stopReason(ctx, agg); stop {
			r.sem.Release(1)
			r.skip(agg, pkg, index, reason)
			continue
		}

		wg.Go(func() {
			defer r.sem.Release(1)
			if out := r.invoke(ctx, agg, pkg, index); out.Status == StatusFailed {
				failOnce.Do(func() { close(failed) })
			}
		})
	}

	settled := make(chan struct{})
	go func() {
		wg.Wait()
		close(settled)
	}()

	if r.opts.Bail {
		// Siblings still running finish on their own and keep recording
		// into agg, but the batch no longer waits for them.
		select {
		case <-settled:
		case <-failed:
		}
	} else {
		<-settled
	}

	_, failedNow, _ := agg.counts()
	r.bus.Publish(event.NewBatchFinishedEvent(index, failedNow-failedBefore, time.Since(batchStart)))
}

// RunAll starts every package at once, ignoring dependency order and the
// concurrency limit. The first failure is returned as soon as it is observed;
// the remaining invocations are neither canceled nor awaited.
func (r *Runner) RunAll(ctx context.Context, pkgs []*workspace.Package) (*Report, error) {
	start := time.Now()
	agg := newOutcomes(r.opts.Script, workspace.Names(pkgs))
	r.bus.Publish(event.NewRunStartedEvent(r.opts.Script, event.ModeParallel, agg.packages, 1))
	r.logger.Info("run started",
		"script", r.opts.Script,
		"mode", event.ModeParallel,
		"packages", len(pkgs))

	// Buffered so invocations settling after an early return never block.
	settled := make(chan Outcome, len(pkgs))
	for _, pkg := range pkgs {
		go func() {
			settled <- r.invoke(ctx, agg, pkg, -1)
		}()
	}

	for range pkgs {
		select {
		case out := <-settled:
			if out.Status == StatusFailed {
				return r.finish(ctx, agg, start, true)
			}
		case <-ctx.Done():
			return r.finish(ctx, agg, start, true)
		}
	}
	return r.finish(ctx, agg, start, true)
}

// invoke runs one package and records its outcome. A panicking invoker is
// recorded as a failure of that package.
func (r *Runner) invoke(ctx context.Context, agg *outcomes, pkg *workspace.Package, batch int) Outcome {
	logger := r.logger.WithPackage(pkg.Name)
	agg.started()
	r.bus.Publish(event.NewPackageStartedEvent(pkg.Name, batch))
	logger.Debug("invocation started", "batch", batch, "dir", pkg.Location)

	began := time.Now()
	var (
		res *invoke.Result
		err error
	)
	var catcher panics.Catcher
	catcher.Try(func() {
		res, err = r.invoker.Invoke(ctx, pkg)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		res, err = nil, recovered.AsError()
	}
	duration := time.Since(began)

	out := agg.record(pkg.Name, batch, duration, res, err)
	if out.Err != nil {
		logger.Warn("invocation failed", "exit_code", out.Err.ExitCode, "duration", duration, "error", err)
	} else {
		logger.Info("invocation succeeded", "duration", duration)
	}

	var (
		exitCode int
		evErr    error
	)
	if out.Err != nil {
		exitCode, evErr = out.Err.ExitCode, out.Err
	}
	r.bus.Publish(event.NewPackageFinishedEvent(pkg.Name, batch, exitCode, duration, out.Stdout, out.Stderr, evErr))
	return out
}

// stopReason reports whether scheduling must stop, and why.
func (r *Runner) stopReason(ctx context.Context, agg *outcomes) (string, bool) {
	if ctx.Err() != nil {
		return SkipCanceled, true
	}
	if r.opts.Bail && agg.failed() {
		return SkipBail, true
	}
	return "", false
}

func (r *Runner) skip(agg *outcomes, pkg *workspace.Package, batch int, reason string) {
	agg.skip(pkg.Name, batch)
	r.bus.Publish(event.NewPackageSkippedEvent(pkg.Name, reason))
	r.logger.WithPackage(pkg.Name).Debug("package skipped", "reason", reason)
}

func (r *Runner) skipAll(agg *outcomes, pkgs []*workspace.Package, batch int, reason string) {
	for _, pkg := range pkgs {
		r.skip(agg, pkg, batch, reason)
	}
}

// finish publishes the end of the run and builds its result. A run that was
// canceled without any package failing reports errors.ErrCanceled.
func (r *Runner) finish(ctx context.Context, agg *outcomes, start time.Time, bail bool) (*Report, error) {
	duration := time.Since(start)
	err := agg.err(bail)
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", errors.ErrCanceled, ctx.Err())
	}

	succeeded, failed, skipped := agg.counts()
	r.bus.Publish(event.NewRunFinishedEvent(r.opts.Script, succeeded, failed, skipped, duration, err))
	r.logger.Info("run finished",
		"succeeded", succeeded,
		"failed", failed,
		"skipped", skipped,
		"duration", duration,
		"error", err)

	return agg.report(duration), err
}

func planNames(batches [][]*workspace.Package) []string {
	return workspace.Names(batch.Flatten(batches))
}
