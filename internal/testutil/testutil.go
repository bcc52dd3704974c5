// Package testutil provides testing utilities for wsrun tests.
package testutil

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

// PackageSpec describes a package written by SetupTestWorkspace.
type PackageSpec struct {
	Name         string
	Dependencies []string          // workspace or external dependency names
	Scripts      map[string]string // script name -> command
	Private      bool
}

// SetupTestWorkspace creates a temporary monorepo with a wsrun.yaml listing
// "packages/*" and one directory per package under packages/. Returns the
// repository root. The directory is cleaned up when the test completes.
func SetupTestWorkspace(t *testing.T, pkgs ...PackageSpec) string {
	t.Helper()

	dir := t.TempDir()
	WriteFile(t, dir, "wsrun.yaml", "packages:\n  - packages/*\n")

	for _, p := range pkgs {
		deps := make(map[string]string, len(p.Dependencies))
		for _, d := range p.Dependencies {
			deps[d] = "*"
		}
		manifest := map[string]any{
			"name":         p.Name,
			"version":      "1.0.0",
			"private":      p.Private,
			"scripts":      p.Scripts,
			"dependencies": deps,
		}
		data, err := json.MarshalIndent(manifest, "", "  ")
		if err != nil {
			t.Fatalf("failed to encode manifest for %s: %v", p.Name, err)
		}
		WriteFile(t, dir, filepath.Join("packages", filepath.Base(p.Name), "package.json"), string(data))
	}

	return dir
}

// WriteFile writes content to path relative to dir, creating parent
// directories as needed.
func WriteFile(t *testing.T, dir, path, content string) {
	t.Helper()

	fullPath := filepath.Join(dir, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
}

// fakeClient stands in for npm: it accepts `run <script> [-- args...]` and
// behaves according to the script name.
const fakeClient = `#!/bin/sh
shift
script="$1"
shift
[ "$1" = "--" ] && shift
case "$script" in
  ok)
    echo "hello from $WSRUN_PACKAGE"
    echo "careful" >&2
    ;;
  args)
    echo "args: $*"
    ;;
  fail)
    echo "partial output"
    echo "boom" >&2
    exit 3
    ;;
  nonl)
    printf 'no newline'
    ;;
  loud)
    i=0
    while [ $i -lt 200 ]; do echo "line $i"; i=$((i+1)); done
    ;;
  *)
    echo "missing script: $script" >&2
    exit 1
    ;;
esac
`

// FakeClient writes an executable fake package manager into a temp
// directory and returns its path. Tests using it are skipped on Windows and
// when /bin/sh is unavailable.
func FakeClient(t *testing.T) string {
	t.Helper()
	SkipIfNoShell(t)

	path := filepath.Join(t.TempDir(), "fake-npm")
	if err := os.WriteFile(path, []byte(fakeClient), 0755); err != nil {
		t.Fatalf("failed to write fake client: %v", err)
	}
	return path
}

// SkipIfNoShell skips the test if a POSIX shell is not available.
func SkipIfNoShell(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell scripts are not supported on windows, skipping test")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH, skipping test")
	}
}
