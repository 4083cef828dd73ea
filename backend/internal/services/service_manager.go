package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"brainport/backend/internal/graph"
	"brainport/backend/internal/importer"
	"brainport/backend/internal/source"
	"brainport/backend/pkg/config"
)

// ServiceManager owns the graph store for a process and builds pipelines
// against it
type ServiceManager struct {
	cfg    *config.Config
	store  graph.Store
	logger *zap.Logger

	closeOnce sync.Once
}

// NewServiceManager opens the store selected by cfg: the SQLite plan store
// when PlanPath is set, Neo4j otherwise.
func NewServiceManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ServiceManager, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewServiceManagerWithStore(cfg, store, logger), nil
}

// NewServiceManagerWithStore wraps an already opened store
func NewServiceManagerWithStore(cfg *config.Config, store graph.Store, logger *zap.Logger) *ServiceManager {
	return &ServiceManager{cfg: cfg, store: store, logger: logger}
}

// OpenStore opens the graph store selected by cfg
func OpenStore(ctx context.Context, cfg *config.Config) (graph.Store, error) {
	if cfg.PlanPath != "" {
		store, err := graph.OpenPlanStore(cfg.PlanPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open plan store: %w", err)
		}
		return store, nil
	}
	return graph.NewNeo4jStore(ctx, graph.Neo4jConfig{
		URI:      cfg.Neo4jURI,
		Username: cfg.Neo4jUser,
		Password: cfg.Neo4jPassword,
		Database: cfg.Neo4jDatabase,
	})
}

// Store returns the managed store
func (sm *ServiceManager) Store() graph.Store {
	return sm.store
}

// Pipeline builds an import pipeline reading the export in dir. An empty
// dir falls back to the configured export directory.
func (sm *ServiceManager) Pipeline(dir string) *importer.Pipeline {
	if dir == "" {
		dir = sm.cfg.ExportDir
	}
	src := source.NewDir(dir, sm.cfg.SourcePattern)
	return importer.NewPipeline(sm.store, src, sm.cfg.StreamBuffer).
		WithLogger(sm.logger.Named("importer"))
}

// Import runs a full import of dir; it matches api.ImportFunc
func (sm *ServiceManager) Import(ctx context.Context, runID, dir string) (*importer.Report, error) {
	sm.logger.Info("Import requested", zap.String("run_id", runID), zap.String("dir", dir))
	return sm.Pipeline(dir).RunWithID(ctx, runID)
}

// Close releases the store once
func (sm *ServiceManager) Close(ctx context.Context) error {
	var err error
	sm.closeOnce.Do(func() {
		err = sm.store.Close(ctx)
	})
	return err
}
