package batch

import "github.com/Iron-Ham/wsrun/internal/workspace"

// graph is the dependency graph restricted to one package set. Nodes are
// indexes into pkgs so that input order can be preserved cheaply.
type graph struct {
	pkgs []*workspace.Package
	// deps[i] lists the indexes package i depends on.
	deps [][]int
	// dependents[i] lists the indexes that depend on package i.
	dependents [][]int
}

func newGraph(pkgs []*workspace.Package) *graph {
	index := make(map[string]int, len(pkgs))
	for i, p := range pkgs {
		index[p.Name] = i
	}

	g := &graph{
		pkgs:       pkgs,
		deps:       make([][]int, len(pkgs)),
		dependents: make([][]int, len(pkgs)),
	}
	for i, p := range pkgs {
		for _, name := range p.Dependencies {
			j, ok := index[name]
			// A self-reference is not an ordering constraint.
			if !ok || j == i {
				continue
			}
			g.deps[i] = append(g.deps[i], j)
			g.dependents[j] = append(g.dependents[j], i)
		}
	}
	return g
}

func (g *graph) packagesAt(idx []int) []*workspace.Package {
	out := make([]*workspace.Package, len(idx))
	for k, i := range idx {
		out[k] = g.pkgs[i]
	}
	return out
}

// findCycle runs a depth-first search over the nodes in within (every node
// when within is nil) and returns the first cycle found as package names,
// first name repeated at the end.
func (g *graph) findCycle(within []int) []string {
	allowed := make([]bool, len(g.pkgs))
	if within == nil {
		for i := range allowed {
			allowed[i] = true
		}
	} else {
		for _, i := range within {
			allowed[i] = true
		}
	}

	visited := make([]bool, len(g.pkgs))
	onStack := make([]bool, len(g.pkgs))
	parent := make([]int, len(g.pkgs))

	var dfs func(i int) []int
	dfs = func(i int) []int {
		visited[i] = true
		onStack[i] = true

		for _, dep := range g.deps[i] {
			if !allowed[dep] {
				continue
			}
			if !visited[dep] {
				parent[dep] = i
				if cycle := dfs(dep); cycle != nil {
					return cycle
				}
			} else if onStack[dep] {
				// Walk back from i to dep to reconstruct the cycle.
				cycle := []int{dep}
				for cur := i; cur != dep; cur = parent[cur] {
					cycle = append([]int{cur}, cycle...)
				}
				return append([]int{dep}, cycle...)
			}
		}

		onStack[i] = false
		return nil
	}

	for i := range g.pkgs {
		if allowed[i] && !visited[i] {
			if cycle := dfs(i); cycle != nil {
				return workspace.Names(g.packagesAt(cycle))
			}
		}
	}
	return nil
}
