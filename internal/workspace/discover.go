package workspace

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/wsrun/internal/errors"
)

// Workspace definition files, checked in this order.
const (
	WorkspaceFile     = "wsrun.yaml"
	PnpmWorkspaceFile = "pnpm-workspace.yaml"
)

// DefaultPackageGlobs is used when no workspace definition lists globs.
var DefaultPackageGlobs = []string{"packages/*"}

// workspaceFile is the YAML shape shared by wsrun.yaml and pnpm-workspace.yaml.
// wsrun.yaml may also carry config keys; they are read by the config layer.
type workspaceFile struct {
	Packages []string `yaml:"packages"`
}

// Workspace is the set of discovered packages under a root directory.
type Workspace struct {
	Root     string
	Globs    []string
	Packages []*Package // sorted by location for stable output
}

// Discover finds every package under root. When globs is non-empty it
// overrides any workspace definition on disk.
func Discover(fs afero.Fs, root string, globs []string) (*Workspace, error) {
	if len(globs) == 0 {
		var err error
		globs, err = PackageGlobs(fs, root)
		if err != nil {
			return nil, err
		}
	}

	ws := &Workspace{Root: root, Globs: globs}
	byName := make(map[string]*Package)
	seenDir := make(map[string]bool)

	for _, pattern := range globs {
		matches, err := afero.Glob(fs, filepath.Join(root, filepath.FromSlash(pattern)))
		if err != nil {
			return nil, fmt.Errorf("invalid package glob %q: %w", pattern, err)
		}
		slices.Sort(matches)

		for _, dir := range matches {
			if seenDir[dir] {
				continue
			}
			seenDir[dir] = true

			if ok, _ := afero.IsDir(fs, dir); !ok {
				continue
			}
			if ok, _ := afero.Exists(fs, filepath.Join(dir, ManifestFile)); !ok {
				continue
			}

			pkg, err := LoadPackage(fs, dir)
			if err != nil {
				return nil, err
			}
			if prev, dup := byName[pkg.Name]; dup {
				return nil, fmt.Errorf("%w %q: %s and %s", errors.ErrDuplicatePackage, pkg.Name, prev.Location, pkg.Location)
			}
			byName[pkg.Name] = pkg
			ws.Packages = append(ws.Packages, pkg)
		}
	}

	slices.SortFunc(ws.Packages, func(a, b *Package) int {
		return cmp.Compare(a.Location, b.Location)
	})
	return ws, nil
}

// PackageGlobs reads the package globs of the workspace rooted at root.
// It checks wsrun.yaml, pnpm-workspace.yaml and the root package.json in that
// order, and falls back to DefaultPackageGlobs when none lists any.
func PackageGlobs(fs afero.Fs, root string) ([]string, error) {
	for _, name := range []string{WorkspaceFile, PnpmWorkspaceFile} {
		globs, err := readYAMLGlobs(fs, filepath.Join(root, name))
		if err != nil {
			return nil, err
		}
		if len(globs) > 0 {
			return globs, nil
		}
	}

	globs, err := readManifestGlobs(fs, filepath.Join(root, ManifestFile))
	if err != nil {
		return nil, err
	}
	if len(globs) > 0 {
		return globs, nil
	}
	return DefaultPackageGlobs, nil
}

func readYAMLGlobs(fs afero.Fs, path string) ([]string, error) {
	data, err := afero.ReadFile(fs, path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var wf workspaceFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return wf.Packages, nil
}

// readManifestGlobs reads the "workspaces" field of a root package.json. Both
// the array form and the object form ({"packages": [...]}) are accepted.
func readManifestGlobs(fs afero.Fs, path string) ([]string, error) {
	m, err := readManifest(fs, path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(m.Workspaces) == 0 {
		return nil, nil
	}

	var list []string
	if err := json.Unmarshal(m.Workspaces, &list); err == nil {
		return list, nil
	}
	var obj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(m.Workspaces, &obj); err != nil {
		return nil, fmt.Errorf("%w: %s: unsupported workspaces field", errors.ErrManifestInvalid, path)
	}
	return obj.Packages, nil
}
