package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/talgya/idle-sim/internal/engine"
	"github.com/talgya/idle-sim/internal/persistence"
	"github.com/talgya/idle-sim/internal/report"
	"github.com/talgya/idle-sim/internal/strategy"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [strategy]",
		Short: "Simulate one strategy",
		Long: `Runs a single strategy against the catalog and prints the final state.

Strategies: none, cursor, cheap, expensive, best, or fixed:<item>.
Defaults to the first configured strategy.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			name := "cursor"
			if len(args) == 1 {
				name = args[0]
			} else if len(e.cfg.Simulation.Strategies) > 0 {
				name = e.cfg.Simulation.Strategies[0]
			}
			ledger, _ := cmd.Flags().GetBool("ledger")
			strict, _ := cmd.Flags().GetBool("strict")
			return runOne(cmd, e, name, ledger, strict)
		},
	}

	cmd.Flags().Float64("duration", 0, "Simulated time budget (default from config)")
	cmd.Flags().Bool("ledger", false, "Print every purchase")
	cmd.Flags().Bool("strict", false, "Fail when the strategy picks an item it cannot afford in time")
	return cmd
}

type runOutput struct {
	ID      string                `json:"id,omitempty"`
	Summary report.Summary        `json:"summary"`
	History []engine.HistoryEntry `json:"history,omitempty"`
}

func runOne(cmd *cobra.Command, e *env, name string, ledger, strict bool) error {
	fn, err := strategy.Lookup(name)
	if err != nil {
		return err
	}
	cat, err := e.catalog()
	if err != nil {
		return err
	}
	duration := e.duration(cmd)

	res, err := e.engine(strict).With("strategy", name).Run(cat, duration, fn)
	if err != nil {
		return fmt.Errorf("run %s: %w", name, err)
	}
	history := res.State.History()

	output := runOutput{Summary: report.Summarize(name, res)}
	if ledger {
		output.History = history
	}

	db, err := e.archive()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		run := persistence.NewRun(name, duration, res)
		if err := db.SaveRun(run, history); err != nil {
			return fmt.Errorf("archive run: %w", err)
		}
		output.ID = run.ID
	}

	if e.jsonOut {
		return writeJSON(e.out, output)
	}
	if err := e.format.WriteSummary(e.out, output.Summary); err != nil {
		return err
	}
	if output.ID != "" {
		fmt.Fprintf(e.out, "archived as %s\n", output.ID)
	}
	if ledger {
		fmt.Fprintln(e.out)
		return e.format.WriteLedger(e.out, history)
	}
	return nil
}

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [strategy...]",
		Short: "Run several strategies and rank them",
		Long: `Runs each strategy against its own copy of the catalog, concurrently,
and ranks them by total production. Without arguments the configured
strategy list is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				names = e.cfg.Simulation.Strategies
			}
			if len(names) == 0 {
				return errors.New("no strategies to compare")
			}
			strict, _ := cmd.Flags().GetBool("strict")
			return runCompare(cmd, e, names, strict)
		},
	}

	cmd.Flags().Float64("duration", 0, "Simulated time budget (default from config)")
	cmd.Flags().Bool("strict", false, "Fail when a strategy picks an item it cannot afford in time")
	return cmd
}

func runCompare(cmd *cobra.Command, e *env, names []string, strict bool) error {
	entries := make([]engine.Entry, len(names))
	for i, name := range names {
		fn, err := strategy.Lookup(name)
		if err != nil {
			return err
		}
		entries[i] = engine.Entry{Name: name, Strategy: fn}
	}
	cat, err := e.catalog()
	if err != nil {
		return err
	}

	outcomes := e.engine(strict).Compare(cat, e.duration(cmd), entries)

	var summaries []report.Summary
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			slog.Error("strategy failed", "strategy", o.Name, "error", o.Err)
			errs = append(errs, fmt.Errorf("%s: %w", o.Name, o.Err))
			continue
		}
		summaries = append(summaries, report.Summarize(o.Name, o.Result))
	}

	if e.jsonOut {
		if err := writeJSON(e.out, map[string]any{"ranking": report.Rank(summaries)}); err != nil {
			return err
		}
	} else if err := e.format.WriteComparison(e.out, summaries); err != nil {
		return err
	}
	return errors.Join(errs...)
}
