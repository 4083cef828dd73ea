package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"brainport/backend/pkg/logger"
	apperrors "brainport/backend/pkg/errors"
)

// Neo4jConfig holds Neo4j connection configuration
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// Neo4jStore writes the import into Neo4j
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// NewNeo4jStore connects to Neo4j and verifies connectivity
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, apperrors.NewGraphConnectionFailed(cfg.URI, err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, apperrors.NewGraphConnectionFailed(cfg.URI, err)
	}

	return NewNeo4jStoreWithDriver(driver, cfg.Database), nil
}

// NewNeo4jStoreWithDriver wraps an existing driver
func NewNeo4jStoreWithDriver(driver neo4j.DriverWithContext, database string) *Neo4jStore {
	return &Neo4jStore{
		driver:   driver,
		database: database,
		logger:   logger.Named("neo4j"),
	}
}

// Close closes the Neo4j driver connection
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Driver exposes the underlying driver for operator scripts
func (s *Neo4jStore) Driver() neo4j.DriverWithContext {
	return s.driver
}

// Begin opens a write session with one explicit transaction
func (s *Neo4jStore) Begin(ctx context.Context) (Tx, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		_ = session.Close(ctx)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &neo4jTx{session: session, tx: tx}, nil
}

// SupertypeChains runs the bounded chain query in a read transaction
func (s *Neo4jStore) SupertypeChains(ctx context.Context, rootID string, maxDepth int) ([][]string, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	stmt := SupertypeChains(maxDepth)
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, stmt.Text, map[string]any{"root": rootID})
		if err != nil {
			return nil, err
		}

		var chains [][]string
		for result.Next(ctx) {
			chains = append(chains, getStringSliceFromRecord(result.Record(), "chain"))
		}
		return chains, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read supertype chains: %w", err)
	}

	chains, _ := result.([][]string)
	s.logger.Debug("Supertype chains loaded",
		zap.String("root", rootID),
		zap.Int("chains", len(chains)),
	)
	return chains, nil
}

type neo4jTx struct {
	session neo4j.SessionWithContext
	tx      neo4j.ExplicitTransaction
}

func (t *neo4jTx) Run(ctx context.Context, stmt Statement, params map[string]any) (Result, error) {
	result, err := t.tx.Run(ctx, stmt.Text, params)
	if err != nil {
		return Result{}, err
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return Result{}, err
	}
	counters := summary.Counters()
	return Result{
		NodesCreated:         counters.NodesCreated(),
		RelationshipsCreated: counters.RelationshipsCreated(),
		PropertiesSet:        counters.PropertiesSet(),
		LabelsAdded:          counters.LabelsAdded(),
	}, nil
}

func (t *neo4jTx) Commit(ctx context.Context) error {
	defer t.session.Close(ctx)
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *neo4jTx) Rollback(ctx context.Context) error {
	defer t.session.Close(ctx)
	return t.tx.Rollback(ctx)
}
