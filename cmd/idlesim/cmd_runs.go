package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/idle-sim/internal/persistence"
	"github.com/talgya/idle-sim/internal/report"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "List archived runs or show one",
		Long: `Without an ID, lists the most recent archived runs. With an ID, prints
that run's summary and purchase ledger.

Requires storage.path (or IDLESIM_DB) to be set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			db, err := e.archive()
			if err != nil {
				return err
			}
			if db == nil {
				return errors.New("run archive disabled: set storage.path or IDLESIM_DB")
			}
			defer db.Close()

			if len(args) == 1 {
				return showRun(e, db, args[0])
			}
			limit, _ := cmd.Flags().GetInt("limit")
			return listRuns(e, db, limit)
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to list")
	return cmd
}

func listRuns(e *env, db *persistence.DB, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}
	runs, err := db.RecentRuns(limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if e.jsonOut {
		return writeJSON(e.out, map[string]any{"runs": runs})
	}
	if len(runs) == 0 {
		fmt.Fprintln(e.out, "No archived runs.")
		return nil
	}

	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "id\tcreated\tstrategy\tduration\ttotal produced\tpurchases")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Strategy,
			e.format.Num(r.Duration), e.format.Num(r.TotalProduced), e.format.Int(r.Purchases))
	}
	return tw.Flush()
}

func showRun(e *env, db *persistence.DB, id string) error {
	run, err := db.LoadRun(id)
	if err != nil {
		return err
	}
	history, err := db.LoadPurchases(id)
	if err != nil {
		return err
	}

	if e.jsonOut {
		return writeJSON(e.out, map[string]any{"run": run, "history": history})
	}

	summary := report.Summary{
		Strategy:      run.Strategy,
		Resource:      run.Resource,
		Rate:          run.Rate,
		Time:          run.Time,
		TotalProduced: run.TotalProduced,
		Purchases:     run.Purchases,
		StopReason:    run.StopReason,
	}
	fmt.Fprintf(e.out, "run %s (%s, duration %s)\n", run.ID, run.CreatedAt.Local().Format(time.DateTime), e.format.Num(run.Duration))
	if err := e.format.WriteSummary(e.out, summary); err != nil {
		return err
	}
	fmt.Fprintln(e.out)
	return e.format.WriteLedger(e.out, history)
}
