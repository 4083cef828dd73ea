package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"brainport/backend/internal/services"
	"brainport/backend/pkg/logger"
)

var planFile string

var importCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Run all import stages against the export in dir",
	Long: `Runs the schema, metadata, root linking, label loading and bulk load
stages in order. dir defaults to EXPORT_DIR. With --plan the statements are
recorded into a SQLite file instead of being sent to Neo4j.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) == 1 {
			dir = args[0]
		}
		if planFile != "" {
			cfg.PlanPath = planFile
		}
		return runImport(cmd.Context(), dir)
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create constraints and indexes only",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sm, err := services.NewServiceManager(ctx, cfg, logger.Get())
		if err != nil {
			return err
		}
		defer sm.Close(ctx)

		report := sm.Pipeline("").EnsureSchema(ctx)
		fmt.Printf("schema: %d applied, %d skipped\n", report.Written, len(report.Skipped))
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:   "plan <dir> <file>",
	Short: "Record the write plan for the export in dir into a SQLite file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.PlanPath = args[1]
		return runImport(cmd.Context(), args[0])
	},
}

func init() {
	importCmd.Flags().StringVar(&planFile, "plan", "", "Record statements into this SQLite file instead of Neo4j")
}
