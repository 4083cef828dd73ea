package importer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"brainport/backend/internal/brain"
	"brainport/backend/internal/graph"
	"brainport/backend/internal/source"
	"brainport/backend/internal/stream"
	apperrors "brainport/backend/pkg/errors"
)

// ============================================================================
// Steps
// ============================================================================

var parseNode = stream.Step[*item]{
	Name: "parse_node",
	Apply: func(_ context.Context, it *item) (*item, bool, error) {
		if err := it.rec.Decode(&it.node); err != nil {
			return it, false, apperrors.NewDecodeValidation(it.rec.String(), "record", "is not a thought", err)
		}
		return it, true, nil
	},
}

var parseLink = stream.Step[*item]{
	Name: "parse_link",
	Apply: func(_ context.Context, it *item) (*item, bool, error) {
		if err := it.rec.Decode(&it.link); err != nil {
			return it, false, apperrors.NewDecodeValidation(it.rec.String(), "record", "is not a link", err)
		}
		return it, true, nil
	},
}

var decodeNode = stream.Step[*item]{
	Name: "decode_node",
	Apply: func(_ context.Context, it *item) (*item, bool, error) {
		intent, err := brain.DecodeNode(it.node)
		if err != nil {
			return it, false, err
		}
		it.intent = intent
		return it, true, nil
	},
}

// knownMeaning rejects links whose Meaning has no descriptor before any
// meaning-based filter can drop them
var knownMeaning = stream.Step[*item]{
	Name: "known_meaning",
	Apply: func(_ context.Context, it *item) (*item, bool, error) {
		if _, err := brain.Describe(it.link.Meaning); err != nil {
			return it, false, err
		}
		return it, true, nil
	},
}

func meaningIs(meanings ...brain.Meaning) func(*item) bool {
	return func(it *item) bool {
		for _, m := range meanings {
			if it.link.Meaning == m {
				return true
			}
		}
		return false
	}
}

func decodeLink(ictx *ImportContext) stream.Step[*item] {
	return stream.Step[*item]{
		Name: "decode_link",
		Apply: func(_ context.Context, it *item) (*item, bool, error) {
			intent, err := brain.DecodeLink(it.link, ictx)
			if err != nil {
				return it, false, err
			}
			it.intent = intent
			return it, true, nil
		},
	}
}

func nodeParams(intent brain.WriteIntent) map[string]any {
	return map[string]any{"id": intent.ID, "props": intent.Properties}
}

// ============================================================================
// Stages
// ============================================================================

// EnsureSchema runs only the schema stage
func (p *Pipeline) EnsureSchema(ctx context.Context) StageReport {
	return p.schema(ctx, p.logger)
}

// schema runs each statement in its own transaction. Failures are logged
// and skipped; the statements are idempotent and a rerun retries them.
func (p *Pipeline) schema(ctx context.Context, log *zap.Logger) StageReport {
	report := StageReport{Stage: StageSchema}
	start := time.Now()
	log = log.With(zap.String("stage", StageSchema))

	for _, stmt := range graph.SchemaStatements {
		report.Read++
		if err := p.schemaStatement(ctx, stmt); err != nil {
			log.Warn("Schema statement failed", zap.String("statement", stmt.Text), zap.Error(err))
			report.skip(err)
			continue
		}
		report.Written++
	}

	report.Duration = time.Since(start)
	log.Info("Stage completed",
		zap.Int("written", report.Written),
		zap.Int("skipped", len(report.Skipped)),
		zap.Duration("duration", report.Duration),
	)
	return report
}

func (p *Pipeline) schemaStatement(ctx context.Context, stmt graph.Statement) error {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Run(ctx, stmt, nil); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return apperrors.NewWriteAdapter(stmt.Name, err)
	}
	return tx.Commit(ctx)
}

// nodeMetadata writes TYPE, TAG and SPECIAL thoughts and records them.
// Plain nodes wait for bulkLoad.
func (p *Pipeline) nodeMetadata(ctx context.Context, ictx *ImportContext, st *stage) error {
	chain := p.chain(StageNodeMetadata, st.logger).Through(
		parseNode,
		stream.Filter("metadata_only", func(it *item) bool { return it.node.Kind != brain.KindNode }),
		decodeNode,
	)

	return p.pass(ctx, st, source.Thoughts, chain, func(ctx context.Context, it *item) error {
		intent := it.intent
		stmt := ictx.Statement("bucket:"+intent.Bucket, func() graph.Statement {
			return graph.UpsertNode(intent.Bucket)
		})
		if _, err := st.run(ctx, stmt, nodeParams(intent)); err != nil {
			return err
		}

		switch it.node.Kind {
		case brain.KindType:
			ictx.Types[intent.ID] = &TypeRecord{Name: it.node.Name, TypeID: it.node.TypeID()}
		case brain.KindTag:
			ictx.Tags[intent.ID] = &ThoughtRecord{Name: it.node.Name, TypeID: it.node.TypeID()}
		case brain.KindSpecial:
			ictx.Specials[intent.ID] = &ThoughtRecord{Name: it.node.Name, TypeID: it.node.TypeID()}
		}
		return nil
	})
}

// linkMetadata records prototype links, then writes SUBTYPE links as
// _SUPER edges. The second pass needs the first pass's link types.
func (p *Pipeline) linkMetadata(ctx context.Context, ictx *ImportContext, st *stage) error {
	protos := p.chain(StageLinkMetadata+".proto", st.logger).Through(
		parseLink,
		knownMeaning,
		stream.Filter("proto_only", meaningIs(brain.MeaningProto)),
		stream.Step[*item]{Name: "decode_link_type", Apply: func(_ context.Context, it *item) (*item, bool, error) {
			intent, err := brain.DecodeLinkType(it.link)
			if err != nil {
				return it, false, err
			}
			it.intent = intent
			return it, true, nil
		}},
	)
	err := p.pass(ctx, st, source.Links, protos, func(ctx context.Context, it *item) error {
		intent := it.intent
		stmt := ictx.Statement("bucket:"+intent.Bucket, func() graph.Statement {
			return graph.UpsertNode(intent.Bucket)
		})
		if _, err := st.run(ctx, stmt, nodeParams(intent)); err != nil {
			return err
		}
		name, _ := intent.Properties["name"].(string)
		ictx.LinkTypes[intent.ID] = &LinkTypeRecord{Name: name, TypeID: it.link.TypeID()}
		return nil
	})
	if err != nil {
		return err
	}

	subtypes := p.chain(StageLinkMetadata+".subtype", st.logger).Through(
		parseLink,
		stream.Filter("subtype_only", meaningIs(brain.MeaningSubtype)),
		decodeLink(ictx),
		stream.Step[*item]{Name: "known_types", Apply: func(_ context.Context, it *item) (*item, bool, error) {
			for _, id := range []string{it.intent.FromID, it.intent.ToID} {
				if _, ok := ictx.Types[id]; !ok {
					return it, false, missingType(it.intent.ID, id)
				}
			}
			return it, true, nil
		}},
	)
	return p.pass(ctx, st, source.Links, subtypes, func(ctx context.Context, it *item) error {
		// Canonical orientation puts the parent first
		parent, child := it.intent.FromID, it.intent.ToID
		params := map[string]any{"child": child, "parent": parent, "props": it.intent.Properties}
		if _, err := st.run(ctx, graph.LinkSuper, params); err != nil {
			return err
		}
		ictx.Types[child].HasSuper = true
		return nil
	})
}

// rootLinking creates the category roots and hangs every metadata record
// off its declared supertype or, lacking one, its category root.
func (p *Pipeline) rootLinking(ctx context.Context, ictx *ImportContext, st *stage) error {
	for _, root := range []string{RootType, RootTag, RootSpecial, RootLinkType} {
		props := map[string]any{"id": root, "name": root, "label": root}
		if _, err := st.run(ctx, graph.UpsertRoot, map[string]any{"id": root, "props": props}); err != nil {
			return err
		}
	}

	items, err := superLinks(ictx)
	if err != nil {
		return err
	}

	chain := p.chain(StageRootLinking, st.logger)
	stats, err := chain.Describe(describeItem).Run(ctx, &sliceSource{items: items}, func(ctx context.Context, it *item) error {
		params := map[string]any{
			"child":  it.child,
			"parent": it.parent,
			"props":  map[string]any{"inferred": isRoot(it.parent)},
		}
		_, err := st.run(ctx, graph.LinkSuper, params)
		return err
	})
	st.absorb(stats)
	return err
}

// superLinks lists child to parent edges in a stable order
func superLinks(ictx *ImportContext) ([]*item, error) {
	var items []*item
	add := func(child, parent string) {
		items = append(items, &item{child: child, parent: parent})
	}

	for _, id := range sortedKeys(ictx.Types) {
		rec := ictx.Types[id]
		switch {
		case rec.TypeID != "":
			if _, ok := ictx.Types[rec.TypeID]; !ok {
				return nil, missingType(id, rec.TypeID)
			}
			add(id, rec.TypeID)
		case !rec.HasSuper:
			add(id, RootType)
		}
	}

	thoughts := []struct {
		table map[string]*ThoughtRecord
		root  string
	}{
		{ictx.Tags, RootTag},
		{ictx.Specials, RootSpecial},
	}
	for _, t := range thoughts {
		for _, id := range sortedKeys(t.table) {
			rec := t.table[id]
			if rec.TypeID == "" {
				add(id, t.root)
				continue
			}
			if !ictx.Known(rec.TypeID) {
				return nil, missingType(id, rec.TypeID)
			}
			add(id, rec.TypeID)
		}
	}

	for _, id := range sortedKeys(ictx.LinkTypes) {
		if id == RootLinkType {
			continue
		}
		rec := ictx.LinkTypes[id]
		if rec.TypeID == "" {
			add(id, RootLinkType)
			continue
		}
		if _, ok := ictx.LinkTypes[rec.TypeID]; !ok {
			return nil, missingType(id, rec.TypeID)
		}
		add(id, rec.TypeID)
	}
	return items, nil
}

func isRoot(id string) bool {
	switch id {
	case RootType, RootTag, RootSpecial, RootLinkType:
		return true
	}
	return false
}

// labelLoading reads supertype chains back from the store and caches
// composite labels on every reachable type.
func (p *Pipeline) labelLoading(ctx context.Context, ictx *ImportContext, st *stage) error {
	chains, err := p.store.SupertypeChains(ctx, RootType, MaxSupertypeDepth)
	if err != nil {
		return err
	}
	st.report.Read = len(chains)

	projection := Project(ictx.Types, chains, RootType)
	for id, labels := range projection.Labels {
		ictx.Types[id].Labels = labels
		st.report.Written++
	}
	for _, id := range projection.Unreachable {
		st.logger.Warn("Type has no supertype chain within depth bound",
			zap.String("type_id", id),
			zap.Int("max_depth", MaxSupertypeDepth),
		)
	}

	for _, rec := range ictx.LinkTypes {
		rec.LinkLabel = brain.SanitizeRelationshipType(rec.Name)
	}
	return nil
}

// bulkLoad writes plain nodes with their type labels, then every link that
// is not metadata. Invalid records are skipped and reported.
func (p *Pipeline) bulkLoad(ctx context.Context, ictx *ImportContext, st *stage) error {
	nodes := p.chain(StageBulkLoad+".nodes", st.logger).SkipRecoverable().Through(
		parseNode,
		stream.Filter("nodes_only", func(it *item) bool { return it.node.Kind == brain.KindNode }),
		decodeNode,
		stream.Step[*item]{Name: "resolve_labels", Apply: func(_ context.Context, it *item) (*item, bool, error) {
			labels, err := ictx.NodeLabels(it.intent.ID, it.node.TypeID())
			if err != nil {
				return it, false, err
			}
			it.labels = labels
			return it, true, nil
		}},
	)
	err := p.pass(ctx, st, source.Thoughts, nodes, func(ctx context.Context, it *item) error {
		labels := it.labels
		stmt := ictx.Statement("node:"+it.node.TypeID(), func() graph.Statement {
			return graph.UpsertNode(labels...)
		})
		_, err := st.run(ctx, stmt, nodeParams(it.intent))
		return err
	})
	if err != nil {
		return err
	}

	links := p.chain(StageBulkLoad+".links", st.logger).SkipRecoverable().Through(
		parseLink,
		stream.Filter("not_metadata", func(it *item) bool {
			return !meaningIs(brain.MeaningProto, brain.MeaningSubtype)(it)
		}),
		decodeLink(ictx),
	)
	return p.pass(ctx, st, source.Links, links, func(ctx context.Context, it *item) error {
		intent := it.intent
		stmt := ictx.Statement("link:"+intent.Bucket, func() graph.Statement {
			return graph.UpsertLink(intent.Bucket)
		})
		params := map[string]any{
			"id":    intent.ID,
			"from":  intent.FromID,
			"to":    intent.ToID,
			"props": intent.Properties,
		}
		_, err := st.run(ctx, stmt, params)
		return err
	})
}
