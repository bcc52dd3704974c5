// Package workspace discovers the packages of a monorepo and selects the ones
// that take part in a run.
//
// A workspace is described by a list of directory globs (from wsrun.yaml,
// pnpm-workspace.yaml, or the "workspaces" field of the root package.json).
// Every matched directory that holds a package.json is a [Package].
//
// Packages are read-only once discovered; the batcher and runner never mutate
// them.
package workspace

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/wsrun/internal/errors"
)

// ManifestFile is the name of the per-package manifest.
const ManifestFile = "package.json"

// Package is a single workspace package.
type Package struct {
	Name     string
	Version  string
	Location string // absolute directory containing the manifest
	Private  bool

	// Dependencies holds the names of every declared dependency of any kind,
	// sorted and de-duplicated. Most of them are external; only names that
	// match another workspace package form graph edges.
	Dependencies []string

	// Scripts maps a lifecycle script name to its command line.
	Scripts map[string]string
}

// HasScript reports whether the package defines the named script with a
// non-empty command.
func (p *Package) HasScript(script string) bool {
	return p.Scripts[script] != ""
}

// DependsOn reports whether name is among the package's declared dependencies.
func (p *Package) DependsOn(name string) bool {
	_, found := slices.BinarySearch(p.Dependencies, name)
	return found
}

func (p *Package) String() string {
	if p.Version == "" {
		return p.Name
	}
	return p.Name + "@" + p.Version
}

// manifest mirrors the subset of package.json fields wsrun reads.
type manifest struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Private              bool              `json:"private"`
	Scripts              map[string]string `json:"scripts"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	Workspaces           json.RawMessage   `json:"workspaces"`
}

func readManifest(fs afero.Fs, path string) (*manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrManifestInvalid, path, err)
	}
	return &m, nil
}

// LoadPackage reads the manifest in dir and builds a Package from it.
func LoadPackage(fs afero.Fs, dir string) (*Package, error) {
	m, err := readManifest(fs, filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	if m.Name == "" {
		return nil, fmt.Errorf("%w: %s has no name", errors.ErrManifestInvalid, filepath.Join(dir, ManifestFile))
	}

	scripts := m.Scripts
	if scripts == nil {
		scripts = map[string]string{}
	}

	return &Package{
		Name:     m.Name,
		Version:  m.Version,
		Location: dir,
		Private:  m.Private,
		Scripts:  scripts,
		Dependencies: mergeDependencyNames(
			m.Dependencies,
			m.DevDependencies,
			m.PeerDependencies,
			m.OptionalDependencies,
		),
	}, nil
}

func mergeDependencyNames(sets ...map[string]string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, set := range sets {
		for name := range set {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	return names
}

// Names returns the package names in order.
func Names(pkgs []*Package) []string {
	names := make([]string, len(pkgs))
	for i, p := range pkgs {
		names[i] = p.Name
	}
	return names
}
