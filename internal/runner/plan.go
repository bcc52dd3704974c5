package runner

import (
	"context"
	"strings"

	"github.com/Iron-Ham/wsrun/internal/batch"
	"github.com/Iron-Ham/wsrun/internal/errors"
	"github.com/Iron-Ham/wsrun/internal/workspace"
)

// PlanOptions selects how a Plan schedules its packages.
type PlanOptions struct {
	// Sort honors dependency order. Without it every selected package lands
	// in a single batch.
	Sort bool
	// RejectCycles fails planning when the selected packages contain a
	// dependency cycle.
	RejectCycles bool
	// Parallel ignores ordering entirely; see Runner.RunAll.
	Parallel bool
}

// Plan is a validated run: the script, the packages that define it, and the
// order they will run in. It is computed before anything is started, so a
// Plan error means no invocation took place.
type Plan struct {
	Script   string
	Selected []*workspace.Package
	// Batches is nil in parallel mode.
	Batches  [][]*workspace.Package
	Parallel bool
	// Cycle is a dependency cycle among Selected that was collapsed into a
	// single unordered batch, first name repeated at the end. Nil when the
	// batches honor every dependency.
	Cycle []string
}

// NewPlan validates the request and schedules pkgs for script.
//
// An empty script is an ENOSCRIPT *errors.ValidationError. A script no package
// defines yields an empty Plan, not an error. With Sort and RejectCycles, a
// cycle among the selected packages is an *errors.CycleError.
func NewPlan(pkgs []*workspace.Package, script string, opts PlanOptions) (*Plan, error) {
	if strings.TrimSpace(script) == "" {
		return nil, errors.NoScriptError()
	}

	plan := &Plan{
		Script:   script,
		Selected: workspace.Select(pkgs, script),
		Parallel: opts.Parallel,
	}
	if len(plan.Selected) == 0 || opts.Parallel {
		return plan, nil
	}

	if !opts.Sort {
		plan.Batches = batch.Single(plan.Selected)
		return plan, nil
	}

	batches, err := batch.Packages(plan.Selected, opts.RejectCycles)
	if err != nil {
		return nil, err
	}
	plan.Batches = batches
	plan.Cycle = batch.FindCycle(plan.Selected)
	return plan, nil
}

// Empty reports whether no package defines the script.
func (p *Plan) Empty() bool {
	return len(p.Selected) == 0
}

// Names returns the selected package names in execution order.
func (p *Plan) Names() []string {
	if p.Parallel || p.Batches == nil {
		return workspace.Names(p.Selected)
	}
	return planNames(p.Batches)
}

// Execute runs the plan on r. An empty plan succeeds without invoking
// anything.
func (p *Plan) Execute(ctx context.Context, r *Runner) (*Report, error) {
	if p.Empty() {
		return &Report{Script: p.Script}, nil
	}
	if p.Parallel {
		return r.RunAll(ctx, p.Selected)
	}
	return r.RunBatches(ctx, p.Batches)
}
