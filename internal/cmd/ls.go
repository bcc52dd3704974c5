package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/wsrun/internal/batch"
	"github.com/Iron-Ham/wsrun/internal/tui/styles"
	"github.com/Iron-Ham/wsrun/internal/workspace"
)

type lsOptions struct {
	graph  bool
	script string
	json   bool
	filter workspace.Filter
}

// lsPackage is the JSON form of a listed package.
type lsPackage struct {
	Name         string   `json:"name"`
	Version      string   `json:"version,omitempty"`
	Location     string   `json:"location"`
	Private      bool     `json:"private"`
	Dependencies []string `json:"dependencies"`
}

// lsOutput is the JSON document printed by ls --json.
type lsOutput struct {
	Packages []lsPackage `json:"packages"`
	Batches  [][]string  `json:"batches,omitempty"`
	Cycle    []string    `json:"cycle,omitempty"`
}

func newLsCmd(a *app) *cobra.Command {
	var opts lsOptions

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List workspace packages and the order they run in",
		Long: `List the packages of the workspace after filtering.

With --script, only packages defining that script are listed. With --graph,
packages are grouped into the batches a run would execute, in order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.ls(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.graph, "graph", false, "group packages into run batches")
	cmd.Flags().StringVar(&opts.script, "script", "", "only list packages that define this script")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print JSON")
	cmd.Flags().StringArrayVar(&opts.filter.Scope, "scope", nil, "only list packages whose name matches the glob (repeatable)")
	cmd.Flags().StringArrayVar(&opts.filter.Ignore, "ignore", nil, "skip packages whose name matches the glob (repeatable)")
	cmd.Flags().BoolVar(&opts.filter.NoPrivate, "no-private", false, "skip packages marked private")
	return cmd
}

func (a *app) ls(w io.Writer, opts lsOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	root, err := a.root()
	if err != nil {
		return err
	}
	pkgs, err := a.loadPackages(cfg, root, opts.filter)
	if err != nil {
		return err
	}
	if opts.script != "" {
		pkgs = workspace.Select(pkgs, opts.script)
	}

	out := lsOutput{Packages: make([]lsPackage, 0, len(pkgs))}
	for _, p := range pkgs {
		out.Packages = append(out.Packages, lsPackage{
			Name:         p.Name,
			Version:      p.Version,
			Location:     relativeTo(root, p.Location),
			Private:      p.Private,
			Dependencies: localDependencies(p, pkgs),
		})
	}

	var batches [][]*workspace.Package
	if opts.graph {
		out.Cycle = batch.FindCycle(pkgs)
		batches, err = batch.Packages(pkgs, false)
		if err != nil {
			return err
		}
		for _, b := range batches {
			out.Batches = append(out.Batches, workspace.Names(b))
		}
	}

	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if !opts.graph {
		for _, p := range out.Packages {
			line := p.Name
			if p.Version != "" {
				line += " " + styles.Muted.Render("v"+p.Version)
			}
			if p.Private {
				line += " " + styles.Warning.Render("(private)")
			}
			fmt.Fprintf(w, "%s  %s\n", line, styles.Muted.Render(p.Location))
		}
		return nil
	}

	if out.Cycle != nil {
		fmt.Fprintln(w, styles.WarningMsg.Render("Dependency cycle: "+strings.Join(out.Cycle, " -> ")))
	}
	for i, names := range out.Batches {
		fmt.Fprintf(w, "%s %s\n", styles.Title.Render(fmt.Sprintf("Batch %d:", i+1)), strings.Join(names, ", "))
	}
	return nil
}

// localDependencies returns the dependencies of p that are among pkgs.
func localDependencies(p *workspace.Package, pkgs []*workspace.Package) []string {
	deps := []string{}
	for _, other := range pkgs {
		if other != p && p.DependsOn(other.Name) {
			deps = append(deps, other.Name)
		}
	}
	return deps
}

func relativeTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}
