package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talgya/idle-sim/internal/api"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Starts the HTTP API. Simulations requested over HTTP use the configured
catalog and are archived when storage is enabled. Stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				e.cfg.API.Port, _ = cmd.Flags().GetInt("port")
			}

			cat, err := e.catalog()
			if err != nil {
				return err
			}
			db, err := e.archive()
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}

			srv := &api.Server{
				Catalog:           cat,
				Engine:            e.engine(false),
				DB:                db,
				Duration:          e.cfg.Simulation.Duration,
				Port:              e.cfg.API.Port,
				SimulatePerMinute: e.cfg.API.SimulatePerMinute,
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = srv.ListenAndServe(ctx)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			slog.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().Int("port", 8080, "Listen port (default from config)")
	return cmd
}
