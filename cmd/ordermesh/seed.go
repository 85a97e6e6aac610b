package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/ordermesh"
	"github.com/hupe1980/ordermesh/catalog"
	"github.com/hupe1980/ordermesh/catalog/sqlite"
)

func newSeedCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a YAML catalog into a SQLite database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(from)
			if err != nil {
				return err
			}
			defer f.Close()

			fixture, err := catalog.LoadYAML(f)
			if err != nil {
				return err
			}

			db, err := sqlite.Open(to)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Seed(cmd.Context(), fixture); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d products and %d rules into %s\n", len(fixture.Products), len(fixture.Rules), to)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "catalog.yaml", "YAML catalog to read")
	cmd.Flags().StringVar(&to, "to", "catalog.db", "SQLite database to write")
	return cmd
}

func newIndexCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Embed the catalog into the configured vector index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			cfg.Vector.IndexOnStart = true

			app, err := ordermesh.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return app.Close()
		},
	}
}
