package graph

import "context"

// Store is the destination graph. Writes happen inside transactions; the
// only read is the bounded supertype-chain query.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	// SupertypeChains returns, for every type reachable from rootID through at
	// most maxDepth _SUPER hops, the ids from that type up to and including
	// rootID, shortest chains first.
	SupertypeChains(ctx context.Context, rootID string, maxDepth int) ([][]string, error)
	Close(ctx context.Context) error
}

// Tx runs statements against one transactional context
type Tx interface {
	Run(ctx context.Context, stmt Statement, params map[string]any) (Result, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Result summarizes the effect of one statement
type Result struct {
	NodesCreated         int
	RelationshipsCreated int
	PropertiesSet        int
	LabelsAdded          int
}

// Created reports whether the statement inserted anything
func (r Result) Created() bool {
	return r.NodesCreated > 0 || r.RelationshipsCreated > 0
}
