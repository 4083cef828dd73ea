package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"brainport/backend/internal/importer"
	"brainport/backend/internal/services"
	"brainport/backend/pkg/config"
	"brainport/backend/pkg/logger"
)

var (
	cfg        *config.Config
	jsonOutput bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "brainport",
	Short: "Import a personal knowledge graph export into Neo4j",
	Long: `brainport reads the thoughts and links NDJSON files of a brain export
and writes them into Neo4j as labeled nodes and typed relationships,
resolving the type hierarchy into composite labels.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		return logger.Init(cfg.Env)
	},
}

// Execute runs the CLI. The first fatal error is logged once and the
// process exits non-zero.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		logger.Sync()
		return
	}

	fields := []zap.Field{zap.Error(err)}
	if cfg == nil || cfg.IsDevelopment() {
		fields = append(fields, zap.Stack("stack"))
	}
	logger.Get().Error("brainport failed", fields...)
	logger.Sync()
	stop()
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print the import report as JSON")
	rootCmd.AddCommand(importCmd, schemaCmd, planCmd)
}

// runImport opens the configured store and imports the export in dir
func runImport(ctx context.Context, dir string) error {
	log := logger.Get()
	sm, err := services.NewServiceManager(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer sm.Close(context.WithoutCancel(ctx))

	report, err := sm.Pipeline(dir).Run(ctx)
	if report != nil {
		printReport(report)
	}
	return err
}

func printReport(report *importer.Report) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		return
	}
	fmt.Printf("run %s (%s)\n", report.RunID, report.Duration)
	for _, s := range report.Stages {
		fmt.Printf("  %-14s read=%-6d filtered=%-6d written=%-6d created=%-6d updated=%-6d skipped=%d\n",
			s.Stage, s.Read, s.Filtered, s.Written, s.Created, s.Updated, len(s.Skipped))
	}
}
