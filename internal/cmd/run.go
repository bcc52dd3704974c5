package cmd

import (
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/wsrun/internal/config"
	"github.com/Iron-Ham/wsrun/internal/event"
	"github.com/Iron-Ham/wsrun/internal/invoke"
	"github.com/Iron-Ham/wsrun/internal/logging"
	"github.com/Iron-Ham/wsrun/internal/metrics"
	"github.com/Iron-Ham/wsrun/internal/runner"
	"github.com/Iron-Ham/wsrun/internal/tui"
	"github.com/Iron-Ham/wsrun/internal/workspace"
)

type runFlags struct {
	noBail   bool
	noSort   bool
	noPrefix bool
	scope    []string
	ignore   []string
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run <script> [-- args...]",
		Short: "Run a lifecycle script in every package that defines it",
		Long: `Run the named script in each package whose package.json defines it.

By default packages run in dependency order: a package starts only after the
workspace packages it depends on have finished. Packages with no ordering
between them run at the same time, up to --concurrency at once. Arguments
after "--" are passed through to the script.`,
		Example: `  wsrun run build
  wsrun run test --concurrency 4 --no-bail
  wsrun run lint --parallel --scope '@acme/*'
  wsrun run test -- --coverage`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []string
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				extra = args[dash:]
				args = args[:dash]
			}
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one script name, got %d", len(args))
			}
			a.applyNegatedFlags(cmd, f)
			return a.run(cmd, args[0], extra, workspace.Filter{Scope: f.scope, Ignore: f.ignore})
		},
	}

	flags := cmd.Flags()
	flags.Bool("bail", true, "stop scheduling packages after the first failure")
	flags.BoolVar(&f.noBail, "no-bail", false, "run every package even after failures")
	flags.Bool("parallel", false, "run all packages at once, ignoring dependency order (implies --stream)")
	flags.Int("concurrency", 0, "maximum packages run at once (0 = number of CPUs)")
	flags.Bool("reject-cycles", false, "fail if the selected packages have a dependency cycle")
	flags.Bool("stream", false, "stream output as it is produced instead of printing it per package")
	flags.BoolVar(&f.noSort, "no-sort", false, "ignore dependency order")
	flags.BoolVar(&f.noPrefix, "no-prefix", false, "do not prefix streamed lines with the package name")
	flags.String("npm-client", "", "package manager used to run scripts (default npm)")
	flags.StringArrayVar(&f.scope, "scope", nil, "only run packages whose name matches the glob (repeatable)")
	flags.StringArrayVar(&f.ignore, "ignore", nil, "skip packages whose name matches the glob (repeatable)")
	flags.Bool("no-private", false, "skip packages marked private")
	flags.Bool("progress", false, "show a live progress view when stdout is a terminal")
	flags.String("metrics-file", "", "write Prometheus metrics for the run to this file")

	for key, name := range map[string]string{
		"run.bail":                 "bail",
		"run.parallel":             "parallel",
		"run.concurrency":          "concurrency",
		"run.reject_cycles":        "reject-cycles",
		"run.stream":               "stream",
		"run.npm_client":           "npm-client",
		"workspace.ignore_private": "no-private",
		"ui.progress":              "progress",
		"metrics.textfile":         "metrics-file",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(name))
	}

	return cmd
}

// applyNegatedFlags maps the --no-* switches onto their config keys. They
// only apply when given, so a config file can still turn the setting off.
func (a *app) applyNegatedFlags(cmd *cobra.Command, f runFlags) {
	if cmd.Flags().Changed("no-bail") && f.noBail {
		a.v.Set("run.bail", false)
	}
	if cmd.Flags().Changed("no-sort") && f.noSort {
		a.v.Set("run.sort", false)
	}
	if cmd.Flags().Changed("no-prefix") && f.noPrefix {
		a.v.Set("run.prefix", false)
	}
}

func (a *app) run(cmd *cobra.Command, script string, extra []string, filter workspace.Filter) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	root, err := a.root()
	if err != nil {
		return err
	}

	logger, err := a.newLogger(cfg, root, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()
	logger = logger.WithRun(uuid.NewString())

	pkgs, err := a.loadPackages(cfg, root, filter)
	if err != nil {
		return err
	}

	plan, err := runner.NewPlan(pkgs, script, runner.PlanOptions{
		Sort:         cfg.Run.Sort,
		RejectCycles: cfg.Run.RejectCycles,
		Parallel:     cfg.Run.Parallel,
	})
	if err != nil {
		return err
	}
	if plan.Empty() {
		logger.Info("no packages define script", "script", script)
		printNoPackages(stdout, script)
		return nil
	}
	if plan.Cycle != nil {
		logger.Warn("dependency cycle collapsed into one batch", "code", "ECYCLE", "cycle", plan.Cycle)
		printCycleWarning(stderr, plan.Cycle)
	}

	opts := a.runOptions(cfg, script, stdout)
	invokeOpts := invoke.Options{
		Script:         script,
		Args:           extra,
		Client:         cfg.Run.NPMClient,
		Root:           root,
		Stream:         opts.stream,
		Prefix:         cfg.Run.Prefix,
		Color:          a.isTerminal(stdout),
		MaxOutputBytes: cfg.Run.MaxOutputBytes,
		Stdout:         stdout,
		Stderr:         stderr,
	}
	logger.Info("planned run",
		"command", invoke.CommandLine(invokeOpts),
		"packages", plan.Names(),
		"batches", len(plan.Batches),
		"parallel", plan.Parallel,
		"concurrency", opts.runner.Concurrency,
	)

	bus := event.NewBus()
	bus.SetLogger(logger.Slog())
	subscribeLog(bus, logger)

	var collector *metrics.Collector
	if cfg.Metrics.Textfile != "" {
		collector = metrics.NewCollector(script)
		collector.Subscribe(bus)
	}

	var progress *tui.Progress
	if opts.progress {
		progress = tui.StartProgress(bus, script, stdout)
	} else if !opts.stream {
		subscribeOutput(bus, stdout)
	}

	r := runner.New(opts.runner, invoke.New(invokeOpts), bus, logger)
	report, runErr := plan.Execute(cmd.Context(), r)
	// Packages left running after a bail keep publishing; only the log
	// should see them from here on.
	bus.Clear()
	subscribeLog(bus, logger)

	if progress != nil {
		if _, err := progress.Wait(); err != nil {
			logger.Warn("progress view failed", "error", err)
		}
	}
	if collector != nil {
		collector.Unsubscribe()
		if err := collector.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Error("failed to write metrics", "path", cfg.Metrics.Textfile, "error", err)
			if runErr == nil {
				return err
			}
		}
	}

	if runErr != nil {
		logger.Error("run failed", "error", runErr)
		return runErr
	}
	printSuccess(stdout, report)
	return nil
}

// resolvedRun is the run configuration after ambient defaults are applied.
type resolvedRun struct {
	runner   runner.Options
	stream   bool
	progress bool
}

func (a *app) runOptions(cfg *config.Config, script string, stdout io.Writer) resolvedRun {
	concurrency := cfg.Run.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	// Parallel runs have no batches to report per package, so output is
	// always streamed.
	stream := cfg.Run.Stream || cfg.Run.Parallel
	return resolvedRun{
		runner: runner.Options{
			Script:      script,
			Bail:        cfg.Run.Bail,
			Concurrency: concurrency,
		},
		stream:   stream,
		progress: cfg.UI.Progress && !stream && a.isTerminal(stdout),
	}
}

// subscribeOutput prints each successful package's captured output as it
// settles. Failed packages' output is printed with the error.
func subscribeOutput(bus *event.Bus, out io.Writer) {
	var mu sync.Mutex
	bus.Subscribe(event.TypePackageFinished, func(e event.Event) {
		finished, ok := e.(event.PackageFinishedEvent)
		if !ok || !finished.Success() {
			return
		}
		if len(finished.Stdout) == 0 && len(finished.Stderr) == 0 {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		printPackageOutput(out, finished.Package, finished.Stdout, finished.Stderr)
	})
}

// subscribeLog mirrors batch boundaries into the debug log. Package events
// are logged by the runner itself.
func subscribeLog(bus *event.Bus, logger *logging.Logger) {
	bus.Subscribe(event.TypeBatchStarted, func(e event.Event) {
		if started, ok := e.(event.BatchStartedEvent); ok {
			logger.WithBatch(started.Index).Debug("batch started", "packages", started.Packages)
		}
	})
	bus.Subscribe(event.TypeBatchFinished, func(e event.Event) {
		if finished, ok := e.(event.BatchFinishedEvent); ok {
			logger.WithBatch(finished.Index).Debug("batch finished",
				"failed", finished.Failed,
				"duration_ms", finished.Duration.Milliseconds(),
			)
		}
	})
}
