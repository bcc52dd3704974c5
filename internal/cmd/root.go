// Package cmd implements the wsrun command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Iron-Ham/wsrun/internal/config"
	"github.com/Iron-Ham/wsrun/internal/errors"
	"github.com/Iron-Ham/wsrun/internal/logging"
	"github.com/Iron-Ham/wsrun/internal/workspace"
)

// Version is reported by --version.
var Version = "dev"

// app holds state shared by every command of one invocation.
type app struct {
	v  *viper.Viper
	fs afero.Fs

	configFile string
	cwd        string
	// logLevelSet records an explicit --log-level.
	logLevelSet bool

	// isTerminal reports whether w is an interactive terminal.
	isTerminal func(w io.Writer) bool
}

func newApp() *app {
	return &app{
		v:          config.NewViper(),
		fs:         afero.NewOsFs(),
		isTerminal: isTerminal,
	}
}

// NewRootCmd builds the wsrun command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(newApp())
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "wsrun",
		Short: "Run a package script across a monorepo in dependency order",
		Long: `wsrun runs a lifecycle script (an entry of "scripts" in package.json)
in every package of a monorepo that defines it. Packages run in batches so that
a package never starts before the workspace packages it depends on have
finished, with as many packages per batch running at once as the concurrency
limit allows.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.logLevelSet = cmd.Flags().Changed("log-level")
			return a.initConfig()
		},
	}

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (default is $HOME/.config/wsrun/config.yaml merged with ./wsrun.yaml)")
	root.PersistentFlags().StringVar(&a.cwd, "cwd", "", "workspace root (default is the current directory)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = a.v.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newLsCmd(a))
	root.AddCommand(newConfigCmd(a))
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		printError(root.ErrOrStderr(), err)
	}
	return errors.ExitCode(err)
}

// initConfig layers config files over the defaults. An explicit --config
// must exist; the user and workspace files are optional.
func (a *app) initConfig() error {
	if a.configFile != "" {
		a.v.SetConfigFile(a.configFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", a.configFile, err)
		}
		return nil
	}

	root, err := a.root()
	if err != nil {
		return err
	}
	for _, path := range []string{config.ConfigFile(), filepath.Join(root, workspace.WorkspaceFile)} {
		if ok, _ := afero.Exists(a.fs, path); !ok {
			continue
		}
		a.v.SetConfigFile(path)
		if err := a.v.MergeInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return nil
}

// root returns the absolute workspace root.
func (a *app) root() (string, error) {
	dir := a.cwd
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	return abs, nil
}

// loadConfig unmarshals and validates the layered configuration.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.v)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger opens the debug log for the workspace at root. Logging to a file
// is opt-in; otherwise only warnings and errors reach stderr.
func (a *app) newLogger(cfg *config.Config, root string, stderr io.Writer) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		level := logging.LevelWarn
		if a.logLevelSet {
			level = cfg.Logging.Level
		}
		return logging.New(logging.Options{Level: level, Stderr: stderr})
	}
	return logging.New(logging.Options{
		Dir:   logging.Dir(root),
		Level: cfg.Logging.Level,
		Fs:    a.fs,
		Rotation: logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		},
	})
}

// loadPackages discovers the workspace's packages and applies filter.
func (a *app) loadPackages(cfg *config.Config, root string, filter workspace.Filter) ([]*workspace.Package, error) {
	globs := cfg.Workspace.Packages
	if len(globs) == 0 {
		var err error
		globs, err = workspace.PackageGlobs(a.fs, root)
		if err != nil {
			return nil, err
		}
	}

	ws, err := workspace.Discover(a.fs, root, globs)
	if err != nil {
		return nil, err
	}
	filter.NoPrivate = filter.NoPrivate || cfg.Workspace.IgnorePrivate
	return filter.Apply(ws.Packages)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
