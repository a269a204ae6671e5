// Command idlesim simulates idle-game purchase strategies.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/talgya/idle-sim/internal/catalog"
	"github.com/talgya/idle-sim/internal/config"
	"github.com/talgya/idle-sim/internal/engine"
	"github.com/talgya/idle-sim/internal/logging"
	"github.com/talgya/idle-sim/internal/persistence"
	"github.com/talgya/idle-sim/internal/report"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "idlesim",
		Short: "Idle game purchase strategy simulator",
		Long: `idlesim simulates an idle game where a resource accumulates over time and
is spent on items that raise the production rate. It runs purchase
strategies against an item catalog and reports what each one produces.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.idlesim/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: warn, info, debug, trace")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newCompareCmd(),
		newCatalogCmd(),
		newRunsCmd(),
		newServeCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "idlesim version %s\n", version)
			}
		},
	}
}

// env is the per-invocation setup shared by subcommands.
type env struct {
	cfg     *config.Config
	out     io.Writer
	jsonOut bool
	format  report.Formatter
}

// setup loads configuration, installs the logger and picks the output mode.
func setup(cmd *cobra.Command) (*env, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	logOut := cmd.ErrOrStderr()
	if jsonOut {
		slog.SetDefault(logging.NewJSONLogger(cfg.Logging.Level, logOut))
	} else {
		slog.SetDefault(logging.NewLogger(cfg.Logging.Level, logOut))
	}

	out := cmd.OutOrStdout()
	return &env{
		cfg:     cfg,
		out:     out,
		jsonOut: jsonOut,
		format:  report.Formatter{Pretty: isTerminal(out)},
	}, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (e *env) catalog() (*catalog.BuildInfo, error) {
	cat, err := e.cfg.BuildCatalog()
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	return cat, nil
}

func (e *env) engine(strict bool) *engine.Engine {
	return engine.New(engine.Options{
		Strict: strict || e.cfg.Simulation.Strict,
		Logger: slog.Default(),
	})
}

// archive opens the run archive, or returns nil when storage is disabled.
func (e *env) archive() (*persistence.DB, error) {
	path := e.cfg.Storage.Path
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}
	db, err := persistence.Open(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("archive opened", "path", path)
	return db, nil
}

// duration returns the --duration flag when set, else the configured one.
func (e *env) duration(cmd *cobra.Command) float64 {
	if cmd.Flags().Changed("duration") {
		d, _ := cmd.Flags().GetFloat64("duration")
		return d
	}
	return e.cfg.Simulation.Duration
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
