package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"brainport/backend/pkg/logger"
)

// PlanStore records the write plan in SQLite instead of applying it to a
// graph. It tracks node and _SUPER identities so created counts and chain
// queries match what Neo4j would report for the same statements.
type PlanStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// PlannedStatement is one recorded statement
type PlannedStatement struct {
	Seq     int64
	BatchID int64
	Name    string
	Text    string
	Labels  []string
	Params  map[string]any
}

// OpenPlanStore opens or creates a plan database at path
func OpenPlanStore(path string) (*PlanStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create plan directory: %w", err)
		}
	}

	// Pragmas in the DSN apply to every pooled connection. Chain reads use a
	// second connection while a batch is open.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open plan database: %w", err)
	}
	if _, err := db.Exec(planSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create plan schema: %w", err)
	}

	return &PlanStore{db: db, path: path, logger: logger.Named("plan")}, nil
}

// Path returns the database file path
func (p *PlanStore) Path() string {
	return p.path
}

// Close closes the plan database
func (p *PlanStore) Close(ctx context.Context) error {
	return p.db.Close()
}

// Begin starts a batch backed by one SQLite transaction
func (p *PlanStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin plan batch: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO plan_batches (started_at) VALUES (?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to record plan batch: %w", err)
	}
	batchID, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return &planTx{tx: tx, batchID: batchID, logger: p.logger}, nil
}

// SupertypeChains answers the chain query from recorded _SUPER edges
func (p *PlanStore) SupertypeChains(ctx context.Context, rootID string, maxDepth int) ([][]string, error) {
	rows, err := p.db.QueryContext(ctx, chainsQuery, maxDepth, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to query supertype chains: %w", err)
	}
	defer rows.Close()

	var chains [][]string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		chains = append(chains, strings.Split(path, "\x1f"))
	}
	return chains, rows.Err()
}

// Statements returns every committed statement in execution order
func (p *PlanStore) Statements(ctx context.Context) ([]PlannedStatement, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT s.seq, s.batch_id, s.name, s.text, s.labels, s.params
		FROM plan_statements s
		JOIN plan_batches b ON b.id = s.batch_id
		WHERE b.status = 'committed'
		ORDER BY s.seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan statements: %w", err)
	}
	defer rows.Close()

	var out []PlannedStatement
	for rows.Next() {
		var (
			ps     PlannedStatement
			labels string
			params string
		)
		if err := rows.Scan(&ps.Seq, &ps.BatchID, &ps.Name, &ps.Text, &labels, &params); err != nil {
			return nil, err
		}
		if labels != "" {
			ps.Labels = strings.Split(labels, ":")
		}
		if err := json.Unmarshal([]byte(params), &ps.Params); err != nil {
			return nil, fmt.Errorf("statement %d has invalid params: %w", ps.Seq, err)
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

type planTx struct {
	tx      *sql.Tx
	batchID int64
	logger  *zap.Logger
}

func (t *planTx) Run(ctx context.Context, stmt Statement, params map[string]any) (Result, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode params for %s: %w", stmt.Name, err)
	}
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO plan_statements (batch_id, name, text, labels, params) VALUES (?, ?, ?, ?, ?)`,
		t.batchID, stmt.Name, stmt.Text, strings.Join(stmt.Labels, ":"), string(encoded),
	); err != nil {
		return Result{}, fmt.Errorf("failed to record %s: %w", stmt.Name, err)
	}

	switch stmt.Name {
	case NameUpsertNode, NameUpsertRoot:
		id, _ := params["id"].(string)
		kind := ""
		if len(stmt.Labels) > 0 {
			kind = stmt.Labels[0]
		}
		n, err := t.insertIgnore(ctx, `INSERT OR IGNORE INTO plan_entities (id, kind) VALUES (?, ?)`, id, kind)
		if err != nil {
			return Result{}, err
		}
		return Result{NodesCreated: n, LabelsAdded: n * len(stmt.Labels), PropertiesSet: propCount(params)}, nil
	case NameLinkSuper:
		child, _ := params["child"].(string)
		parent, _ := params["parent"].(string)
		n, err := t.insertIgnore(ctx, `INSERT OR IGNORE INTO plan_supers (child, parent) VALUES (?, ?)`, child, parent)
		if err != nil {
			return Result{}, err
		}
		return Result{RelationshipsCreated: n, PropertiesSet: propCount(params)}, nil
	case NameUpsertLink:
		id, _ := params["id"].(string)
		n, err := t.insertIgnore(ctx, `INSERT OR IGNORE INTO plan_entities (id, kind) VALUES (?, ?)`, "link:"+id, "Link")
		if err != nil {
			return Result{}, err
		}
		return Result{RelationshipsCreated: n, PropertiesSet: propCount(params)}, nil
	}
	return Result{}, nil
}

// propCount mirrors SET += $props, which sets every key on each run
func propCount(params map[string]any) int {
	props, _ := params["props"].(map[string]any)
	return len(props)
}

func (t *planTx) insertIgnore(ctx context.Context, query string, args ...any) (int, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (t *planTx) Commit(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, `UPDATE plan_batches SET status = 'committed' WHERE id = ?`, t.batchID); err != nil {
		_ = t.tx.Rollback()
		return fmt.Errorf("failed to close plan batch: %w", err)
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit plan batch: %w", err)
	}
	t.logger.Debug("Plan batch committed", zap.Int64("batch_id", t.batchID))
	return nil
}

func (t *planTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback()
}
