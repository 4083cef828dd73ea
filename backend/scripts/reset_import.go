package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"brainport/backend/internal/graph"
	"brainport/backend/internal/importer"
	"brainport/backend/pkg/config"
	"brainport/backend/pkg/logger"
)

func main() {
	skipConfirm := flag.Bool("y", false, "Skip confirmation prompt")
	dropSchema := flag.Bool("drop-schema", false, "Also drop every constraint and index before recreating the import schema")
	flag.Parse()

	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting import reset...")

	if !*skipConfirm {
		log.Warn("WARNING: This will DELETE every imported thought from Neo4j!")
		log.Warn("This action cannot be undone.")
		fmt.Print("Are you sure you want to continue? (yes/no): ")
		var response string
		fmt.Scanln(&response)
		if response != "yes" && response != "y" {
			log.Info("Aborted.")
			os.Exit(0)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()
	store, err := graph.NewNeo4jStore(ctx, graph.Neo4jConfig{
		URI:      cfg.Neo4jURI,
		Username: cfg.Neo4jUser,
		Password: cfg.Neo4jPassword,
		Database: cfg.Neo4jDatabase,
	})
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	defer store.Close(ctx)

	log.Info("Step 1: Deleting imported thoughts...")
	deleted, err := deleteThoughts(ctx, store.Driver(), cfg.Neo4jDatabase)
	if err != nil {
		log.Fatal("Failed to delete thoughts", zap.Error(err))
	}
	log.Info("Thoughts deleted", zap.Int64("nodes", deleted))

	if *dropSchema {
		log.Info("Step 2: Dropping constraints and indexes...")
		if err := dropConstraintsAndIndexes(ctx, store.Driver(), cfg.Neo4jDatabase, log); err != nil {
			log.Warn("Some constraints/indexes may not have been dropped", zap.Error(err))
		}
	}

	log.Info("Step 3: Recreating import schema...")
	report := importer.NewPipeline(store, nil, cfg.StreamBuffer).WithLogger(log).EnsureSchema(ctx)

	log.Info("Import reset completed",
		zap.Int("schema_applied", report.Written),
		zap.Int("schema_skipped", len(report.Skipped)),
	)
}

// deleteThoughts removes imported thoughts and roots along with their relationships
func deleteThoughts(ctx context.Context, driver neo4j.DriverWithContext, database string) (int64, error) {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: database})
	defer session.Close(ctx)

	result, err := session.Run(ctx, "MATCH (n:"+graph.LabelThought+") DETACH DELETE n", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to delete thoughts: %w", err)
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete thoughts: %w", err)
	}
	return int64(summary.Counters().NodesDeleted()), nil
}

// dropConstraintsAndIndexes drops every constraint and then every remaining index
func dropConstraintsAndIndexes(ctx context.Context, driver neo4j.DriverWithContext, database string, log *zap.Logger) error {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: database})
	defer session.Close(ctx)

	for _, kind := range []string{"CONSTRAINT", "INDEX"} {
		names, err := showNames(ctx, session, "SHOW "+kind+"S")
		if err != nil {
			return err
		}
		for _, name := range names {
			if _, err := session.Run(ctx, fmt.Sprintf("DROP %s %s IF EXISTS", kind, name), nil); err != nil {
				log.Warn("Failed to drop "+kind, zap.String("name", name), zap.Error(err))
			}
		}
		log.Info("Dropped", zap.String("kind", kind), zap.Int("count", len(names)))
	}
	return nil
}

func showNames(ctx context.Context, session neo4j.SessionWithContext, query string) ([]string, error) {
	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", query, err)
	}

	var names []string
	for result.Next(ctx) {
		if name, ok := result.Record().Get("name"); ok {
			if s, ok := name.(string); ok {
				names = append(names, s)
			}
		}
	}
	return names, result.Err()
}
