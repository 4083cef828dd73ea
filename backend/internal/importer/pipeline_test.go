package importer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"brainport/backend/internal/graph"
	"brainport/backend/internal/graph/graphtest"
	"brainport/backend/internal/source"
	apperrors "brainport/backend/pkg/errors"
)

var (
	typeRoot = `{"Id":"root","Kind":2,"Name":"Node","TagIds":[]}`
	typeT1   = `{"Id":"t1","Kind":2,"Name":"Intelligence","TypeId":"root","TagIds":[]}`
	tagG1    = `{"Id":"g1","Kind":4,"Name":"todo","TagIds":[]}`
	nodeN1   = `{"Id":"n1","Kind":1,"Name":"GPT","TypeId":"t1","TagIds":[],"CreationDateTime":"2021-03-04T05:06:07Z"}`
	nodeN2   = `{"Id":"n2","Kind":1,"Name":"Transformers","TagIds":[]}`

	subtypeL1 = `{"Id":"l1","ThoughtIdA":"t1","ThoughtIdB":"root","Meaning":3,"Relation":1,"Direction":-1}`
	protoLT1  = `{"Id":"lt1","ThoughtIdA":"root","ThoughtIdB":"root","Meaning":0,"Relation":0,"Direction":-1,"Name":"relates to"}`
	normalL2  = `{"Id":"l2","ThoughtIdA":"n1","ThoughtIdB":"n2","Meaning":1,"Relation":3,"Direction":1,"TypeId":"lt1"}`
)

func newSource(t *testing.T, thoughts, links []string) *source.Memory {
	t.Helper()
	src := source.NewMemory()
	// a blank line registers the name even with no records
	require.NoError(t, src.Add(source.Thoughts, ""))
	require.NoError(t, src.Add(source.Links, ""))
	for _, line := range thoughts {
		require.NoError(t, src.Add(source.Thoughts, line))
	}
	for _, line := range links {
		require.NoError(t, src.Add(source.Links, line))
	}
	return src
}

func fixtureSource(t *testing.T) *source.Memory {
	return newSource(t,
		[]string{typeRoot, typeT1, tagG1, nodeN1, nodeN2},
		[]string{subtypeL1, protoLT1, normalL2},
	)
}

func newPipeline(store graph.Store, src source.Source) *Pipeline {
	return NewPipeline(store, src, 4).WithLogger(zap.NewNop())
}

func TestPipeline_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store := graphtest.New()
	ictx := NewImportContext()

	report, err := newPipeline(store, fixtureSource(t)).RunContext(ctx, ictx, "run-1")
	require.NoError(t, err)
	require.Len(t, report.Stages, len(Stages))
	for i, name := range Stages {
		assert.Equal(t, name, report.Stages[i].Stage)
	}

	assert.Equal(t, "Node", ictx.Types["root"].Labels)
	assert.Equal(t, "Node:Intelligence", ictx.Types["t1"].Labels)
	assert.True(t, ictx.Types["t1"].HasSuper)
	assert.Equal(t, "relates_to", ictx.LinkTypes["lt1"].LinkLabel)

	n1, ok := store.Node("n1")
	require.True(t, ok)
	assert.True(t, n1.HasLabels("Thought", "Node", "Intelligence"))
	assert.Equal(t, "GPT", n1.Props["name"])
	assert.Equal(t, "t1", n1.Props["brain_TypeId"])

	n2, ok := store.Node("n2")
	require.True(t, ok)
	assert.True(t, n2.HasLabels("Thought", "Node"))
	assert.False(t, n2.Labels["Intelligence"])

	for _, root := range []string{RootType, RootTag, RootSpecial, RootLinkType} {
		n, ok := store.Node(root)
		require.True(t, ok, root)
		assert.True(t, n.HasLabels("Root"))
	}

	links := store.Edges("relates_to")
	require.Len(t, links, 1)
	assert.Equal(t, "n1", links[0].From)
	assert.Equal(t, "n2", links[0].To)
	assert.Equal(t, true, links[0].Props["shown"])

	var supers []string
	for _, e := range store.Edges(graph.RelSuper) {
		supers = append(supers, e.From+"->"+e.To)
	}
	assert.ElementsMatch(t, []string{
		"root->" + RootType,
		"t1->root",
		"g1->" + RootTag,
		"lt1->" + RootLinkType,
	}, supers)

	bulk, ok := report.Stage(StageBulkLoad)
	require.True(t, ok)
	assert.Equal(t, 3, bulk.Written)
	assert.Equal(t, 3, bulk.Created)
	assert.Empty(t, bulk.Skipped)
}

func TestPipeline_PlanStore(t *testing.T) {
	ctx := context.Background()
	store, err := graph.OpenPlanStore(filepath.Join(t.TempDir(), "plan.db"))
	require.NoError(t, err)
	defer store.Close(ctx)

	ictx := NewImportContext()
	_, err = newPipeline(store, fixtureSource(t)).RunContext(ctx, ictx, "plan")
	require.NoError(t, err)
	assert.Equal(t, "Node:Intelligence", ictx.Types["t1"].Labels)

	stmts, err := store.Statements(ctx)
	require.NoError(t, err)
	assert.Equal(t, graph.NameSchema, stmts[0].Name)
	assert.Equal(t, graph.NameUpsertLink, stmts[len(stmts)-1].Name)
}

func TestPipeline_UnknownKindAbortsNodeMetadata(t *testing.T) {
	ctx := context.Background()
	store := graphtest.New()
	src := newSource(t, []string{
		`{"Id":"a","Kind":2,"Name":"A","TagIds":[]}`,
		`{"Id":"bad","Kind":99,"Name":"Bad","TagIds":[]}`,
		`{"Id":"b","Kind":2,"Name":"B","TagIds":[]}`,
	}, nil)

	report, err := newPipeline(store, src).Run(ctx)
	require.Error(t, err)

	var unknown *apperrors.ErrUnknownKind
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, 99, unknown.Kind)
	assert.Equal(t, "bad", unknown.RecordID)

	var stageErr *apperrors.ErrStageFailed
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageNodeMetadata, stageErr.Stage)

	for _, call := range store.Attempted() {
		assert.NotEqual(t, "b", call.Params["id"], "nothing after the failing record is written")
	}
	_, ok := store.Node("a")
	assert.False(t, ok, "the stage rolled back")
	assert.Equal(t, 1, store.Rollbacks())
	assert.Len(t, report.Stages, 2)
}

func TestPipeline_BulkLoadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := graphtest.New()
	src := fixtureSource(t)

	first, err := newPipeline(store, src).Run(ctx)
	require.NoError(t, err)
	nodes := store.NodeCount()

	second, err := newPipeline(store, src).Run(ctx)
	require.NoError(t, err)

	firstBulk, _ := first.Stage(StageBulkLoad)
	secondBulk, _ := second.Stage(StageBulkLoad)
	assert.Equal(t, firstBulk.Written, secondBulk.Written)
	assert.Zero(t, secondBulk.Created, "second run only updates")
	assert.Equal(t, firstBulk.Written, secondBulk.Updated)
	assert.Zero(t, second.Created())
	assert.Equal(t, nodes, store.NodeCount())
}

func TestPipeline_PlanStoreRerunUpdates(t *testing.T) {
	ctx := context.Background()
	store, err := graph.OpenPlanStore(filepath.Join(t.TempDir(), "plan.db"))
	require.NoError(t, err)
	defer store.Close(ctx)
	src := fixtureSource(t)

	first, err := newPipeline(store, src).Run(ctx)
	require.NoError(t, err)

	core, logs := observer.New(zap.WarnLevel)
	second, err := NewPipeline(store, src, 4).WithLogger(zap.New(core)).Run(ctx)
	require.NoError(t, err)

	firstBulk, _ := first.Stage(StageBulkLoad)
	secondBulk, _ := second.Stage(StageBulkLoad)
	assert.Equal(t, 3, firstBulk.Created)
	assert.Zero(t, secondBulk.Created)
	assert.Equal(t, secondBulk.Written, secondBulk.Updated)
	assert.Zero(t, logs.FilterMessage("Statement matched nothing").Len())
}

func TestPipeline_BulkLoadSkipsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	store := graphtest.New()
	src := newSource(t,
		[]string{
			typeRoot, typeT1, nodeN1, nodeN2,
			`{"Id":"","Kind":1,"Name":"blank","TagIds":[]}`,
			`{"Id":"n3","Kind":1,"Name":"late","TagIds":[],"CreationDateTime":"yesterday"}`,
		},
		[]string{
			subtypeL1, protoLT1, normalL2,
			`{"Id":"l4","ThoughtIdA":"n1","ThoughtIdB":"","Meaning":1,"Relation":3,"Direction":1}`,
		},
	)

	report, err := NewPipeline(store, src, 4).WithLogger(zap.New(core)).Run(ctx)
	require.NoError(t, err)

	bulk, ok := report.Stage(StageBulkLoad)
	require.True(t, ok)
	assert.Len(t, bulk.Skipped, 3)
	for _, skipped := range bulk.SkippedErrors() {
		assert.True(t, apperrors.IsRecoverable(skipped))
	}
	assert.Equal(t, 3, bulk.Written)
	assert.Equal(t, 3, logs.FilterMessage("Skipping invalid record").Len())

	_, ok = store.Node("n3")
	assert.False(t, ok)
}

func TestPipeline_MissingLinkTypeIsFatal(t *testing.T) {
	ctx := context.Background()
	store := graphtest.New()
	src := newSource(t,
		[]string{typeRoot, nodeN2},
		[]string{`{"Id":"l9","ThoughtIdA":"n2","ThoughtIdB":"n2","Meaning":1,"Relation":3,"Direction":1,"TypeId":"nope"}`},
	)

	_, err := newPipeline(store, src).Run(ctx)
	var missing *apperrors.ErrMissingTypeDefinition
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, "nope", missing.TypeID)
	assert.Equal(t, "l9", missing.RecordID)

	_, ok := store.Node("n2")
	assert.False(t, ok, "bulk load rolled back")
	_, ok = store.Node("root")
	assert.True(t, ok, "earlier stages stay committed")
}

func TestPipeline_UnknownNodeTypeIsFatal(t *testing.T) {
	store := graphtest.New()
	src := newSource(t, []string{typeRoot, nodeN1}, nil)

	_, err := newPipeline(store, src).Run(context.Background())
	var missing *apperrors.ErrMissingTypeDefinition
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, "t1", missing.TypeID)
	assert.Equal(t, "n1", missing.RecordID)
}

func TestPipeline_SubtypeBetweenUnknownTypes(t *testing.T) {
	store := graphtest.New()
	src := newSource(t,
		[]string{typeRoot},
		[]string{`{"Id":"l8","ThoughtIdA":"ghost","ThoughtIdB":"root","Meaning":3,"Relation":1,"Direction":-1}`},
	)

	_, err := newPipeline(store, src).Run(context.Background())
	var missing *apperrors.ErrMissingTypeDefinition
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, "ghost", missing.TypeID)

	var stageErr *apperrors.ErrStageFailed
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageLinkMetadata, stageErr.Stage)
}

func TestPipeline_UnknownMeaningIsFatal(t *testing.T) {
	store := graphtest.New()
	src := newSource(t,
		[]string{typeRoot},
		[]string{`{"Id":"l7","ThoughtIdA":"root","ThoughtIdB":"root","Meaning":7,"Relation":3,"Direction":1}`},
	)

	_, err := newPipeline(store, src).Run(context.Background())
	var unknown *apperrors.ErrUnknownMeaning
	require.True(t, errors.As(err, &unknown), "got %v", err)
	assert.Equal(t, 7, unknown.Meaning)
}

func TestPipeline_WriteFailureRollsBackStage(t *testing.T) {
	ctx := context.Background()
	store := graphtest.New()
	rejected := errors.New("constraint violated")
	store.FailOn = func(stmt graph.Statement, _ map[string]any) error {
		if stmt.Name == graph.NameLinkSuper {
			return rejected
		}
		return nil
	}

	_, err := newPipeline(store, fixtureSource(t)).Run(ctx)
	require.ErrorIs(t, err, rejected)

	var writeErr *apperrors.ErrWriteAdapter
	require.True(t, errors.As(err, &writeErr))

	var stageErr *apperrors.ErrStageFailed
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageLinkMetadata, stageErr.Stage)

	_, ok := store.Node("lt1")
	assert.False(t, ok, "link types from the failed stage are discarded")
	_, ok = store.Node("t1")
	assert.True(t, ok)
}

func TestPipeline_SchemaFailuresAreSkipped(t *testing.T) {
	store := graphtest.New()
	store.FailOn = func(stmt graph.Statement, _ map[string]any) error {
		if stmt.Name == graph.NameSchema {
			return errors.New("unsupported")
		}
		return nil
	}

	report, err := newPipeline(store, fixtureSource(t)).Run(context.Background())
	require.NoError(t, err)

	schema, ok := report.Stage(StageSchema)
	require.True(t, ok)
	assert.Len(t, schema.Skipped, len(graph.SchemaStatements))
	assert.Zero(t, schema.Written)
}

func TestPipeline_MissingSource(t *testing.T) {
	src := source.NewMemory()
	require.NoError(t, src.Add(source.Thoughts, typeRoot))

	_, err := newPipeline(graphtest.New(), src).Run(context.Background())
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeSource), "got %v", err)
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPipeline(graphtest.New(), fixtureSource(t)).Run(ctx)
	require.Error(t, err)
}
