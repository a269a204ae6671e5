package main

import (
	"github.com/spf13/cobra"
)

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Show the item catalog",
		Long: `Prints the catalog that runs use, after applying the configured
catalog file, growth override and cost jitter.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			cat, err := e.catalog()
			if err != nil {
				return err
			}
			if e.jsonOut {
				return writeJSON(e.out, map[string]any{
					"growth": cat.Growth(),
					"items":  cat.Snapshot(),
				})
			}
			return e.format.WriteCatalog(e.out, cat.Growth(), cat.Snapshot())
		},
	}
}
