// Package batch partitions workspace packages into dependency-ordered batches.
//
// A batch is a set of packages with no dependency relationship among
// themselves. Batches are returned in execution order: no package depends,
// directly or through other selected packages, on a package in the same or a
// later batch. Only edges between packages of the input set count; a
// dependency on anything outside it is irrelevant to ordering.
//
// Batches are derived data. They are recomputed for every run and never
// persisted.
//
// Usage:
//
//	batches, err := batch.Packages(selected, rejectCycles)
//	if err != nil {
//	    // *errors.CycleError, only when rejectCycles is set
//	}
//	for i, b := range batches {
//	    // every package in b may run concurrently
//	}
package batch

import (
	"github.com/Iron-Ham/wsrun/internal/errors"
	"github.com/Iron-Ham/wsrun/internal/workspace"
)

// Packages computes the execution batches for pkgs.
//
// Batches are extracted level by level: every package whose dependencies
// within the set are already scheduled forms the next batch. When packages
// remain but none is free of unresolved dependencies, they contain a cycle.
// With rejectCycles the call fails with a *errors.CycleError. Otherwise the
// whole remainder is collapsed into one final batch, which loses ordering
// among its members but never drops a package.
//
// Within a batch, packages keep their input order.
func Packages(pkgs []*workspace.Package, rejectCycles bool) ([][]*workspace.Package, error) {
	if len(pkgs) == 0 {
		return nil, nil
	}

	g := newGraph(pkgs)
	inDegree := make([]int, len(pkgs))
	for i := range pkgs {
		inDegree[i] = len(g.deps[i])
	}

	var batches [][]*workspace.Package
	remaining := len(pkgs)
	done := make([]bool, len(pkgs))

	for remaining > 0 {
		var level []int
		for i := range pkgs {
			if !done[i] && inDegree[i] == 0 {
				level = append(level, i)
			}
		}

		if len(level) == 0 {
			left := make([]int, 0, remaining)
			for i := range pkgs {
				if !done[i] {
					left = append(left, i)
				}
			}
			if rejectCycles {
				return nil, g.cycleError(left)
			}
			batches = append(batches, g.packagesAt(left))
			break
		}

		for _, i := range level {
			done[i] = true
			for _, dependent := range g.dependents[i] {
				inDegree[dependent]--
			}
		}
		remaining -= len(level)
		batches = append(batches, g.packagesAt(level))
	}

	return batches, nil
}

// Single returns pkgs as one batch, for runs that ignore dependency order.
func Single(pkgs []*workspace.Package) [][]*workspace.Package {
	if len(pkgs) == 0 {
		return nil
	}
	return [][]*workspace.Package{append([]*workspace.Package(nil), pkgs...)}
}

// FindCycle returns one dependency cycle among pkgs as a list of package
// names with the first name repeated at the end, or nil if pkgs are acyclic.
func FindCycle(pkgs []*workspace.Package) []string {
	return newGraph(pkgs).findCycle(nil)
}

// Flatten concatenates batches into a single execution-ordered list.
func Flatten(batches [][]*workspace.Package) []*workspace.Package {
	var out []*workspace.Package
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}

// cycleError builds the error for the unresolved packages at indexes left.
func (g *graph) cycleError(left []int) *errors.CycleError {
	return &errors.CycleError{
		Path:     g.findCycle(left),
		Packages: workspace.Names(g.packagesAt(left)),
	}
}
