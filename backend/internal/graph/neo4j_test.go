package graph

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a running Neo4j instance.
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD environment variables.
func openTestNeo4j(t *testing.T) *Neo4jStore {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		t.Skip("NEO4J_URI not set")
	}

	ctx := context.Background()
	store, err := NewNeo4jStore(ctx, Neo4jConfig{
		URI:      uri,
		Username: envOr("NEO4J_USER", "neo4j"),
		Password: envOr("NEO4J_PASSWORD", "password"),
		Database: os.Getenv("NEO4J_DATABASE"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(ctx) })
	return store
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestNeo4jStore_UpsertAndChains(t *testing.T) {
	store := openTestNeo4j(t)
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000")
	root, mid, leaf := "root-"+suffix, "mid-"+suffix, "leaf-"+suffix

	defer func() {
		session := store.Driver().NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, _ = session.Run(ctx, "MATCH (n:Thought) WHERE n.id IN $ids DETACH DELETE n",
			map[string]any{"ids": []string{root, mid, leaf}})
	}()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	res, err := tx.Run(ctx, UpsertRoot, map[string]any{"id": root, "props": map[string]any{"name": "root"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NodesCreated)
	for _, id := range []string{mid, leaf} {
		_, err := tx.Run(ctx, UpsertNode("Type"), map[string]any{"id": id, "props": map[string]any{"name": id}})
		require.NoError(t, err)
	}
	for _, edge := range [][2]string{{mid, root}, {leaf, mid}} {
		_, err := tx.Run(ctx, LinkSuper, map[string]any{"child": edge[0], "parent": edge[1], "props": map[string]any{}})
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit(ctx))

	chains, err := store.SupertypeChains(ctx, root, 10)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{mid, root}, {leaf, mid, root}}, chains)

	tx, err = store.Begin(ctx)
	require.NoError(t, err)
	res, err = tx.Run(ctx, UpsertNode("Type"), map[string]any{"id": mid, "props": map[string]any{"name": mid}})
	require.NoError(t, err)
	assert.Zero(t, res.NodesCreated, "merge does not duplicate")
	require.NoError(t, tx.Rollback(ctx))
}
