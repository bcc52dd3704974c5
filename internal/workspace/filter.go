package workspace

import (
	"fmt"

	"github.com/gobwas/glob"
)

// AllPackagesScript is the script name that selects every package regardless
// of whether it defines the script. It is used for introspection tasks such
// as printing each package's environment.
const AllPackagesScript = "env"

// Filter narrows the discovered packages before selection.
type Filter struct {
	// Scope keeps only packages whose name matches at least one glob.
	// Empty means every package is in scope.
	Scope []string
	// Ignore drops packages whose name matches any glob.
	Ignore []string
	// NoPrivate drops packages marked "private": true.
	NoPrivate bool
}

// Apply returns the packages that pass the filter, preserving order.
func (f Filter) Apply(pkgs []*Package) ([]*Package, error) {
	scope, err := compileGlobs(f.Scope)
	if err != nil {
		return nil, fmt.Errorf("invalid --scope: %w", err)
	}
	ignore, err := compileGlobs(f.Ignore)
	if err != nil {
		return nil, fmt.Errorf("invalid --ignore: %w", err)
	}

	var out []*Package
	for _, p := range pkgs {
		if f.NoPrivate && p.Private {
			continue
		}
		if len(scope) > 0 && !matchAny(scope, p.Name) {
			continue
		}
		if matchAny(ignore, p.Name) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Select returns the packages that define script. The special script
// AllPackagesScript selects every package. The result may be empty; an empty
// selection is not an error.
func Select(pkgs []*Package, script string) []*Package {
	if script == AllPackagesScript {
		return append([]*Package(nil), pkgs...)
	}
	var selected []*Package
	for _, p := range pkgs {
		if p.HasScript(script) {
			selected = append(selected, p)
		}
	}
	return selected
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		// '/' separates npm scope from name and must be matchable by '*'.
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func matchAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}
