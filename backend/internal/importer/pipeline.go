package importer

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"brainport/backend/internal/brain"
	"brainport/backend/internal/graph"
	"brainport/backend/internal/source"
	"brainport/backend/internal/stream"
	"brainport/backend/pkg/logger"
	apperrors "brainport/backend/pkg/errors"
)

// DefaultBuffer is the channel capacity between chain steps
const DefaultBuffer = 64

// Pipeline drives the six import stages against one store
type Pipeline struct {
	store  graph.Store
	source source.Source
	buffer int
	logger *zap.Logger
}

// NewPipeline creates an import pipeline
func NewPipeline(store graph.Store, src source.Source, buffer int) *Pipeline {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Pipeline{
		store:  store,
		source: src,
		buffer: buffer,
		logger: logger.Named("importer"),
	}
}

// WithLogger replaces the pipeline logger
func (p *Pipeline) WithLogger(l *zap.Logger) *Pipeline {
	p.logger = l
	return p
}

// Run executes every stage in order with a fresh ImportContext
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	return p.RunWithID(ctx, uuid.New().String())
}

// RunWithID is Run with a caller-chosen run id
func (p *Pipeline) RunWithID(ctx context.Context, runID string) (*Report, error) {
	ictx := NewImportContext()
	defer ictx.Release()
	return p.RunContext(ctx, ictx, runID)
}

// RunContext executes every stage against the given side tables. The caller
// owns ictx and may inspect it afterwards.
func (p *Pipeline) RunContext(ctx context.Context, ictx *ImportContext, runID string) (*Report, error) {
	report := &Report{RunID: runID, StartedAt: time.Now().UTC()}
	log := p.logger.With(zap.String("run_id", runID))
	log.Info("Import started")

	stages := []struct {
		name string
		fn   func(context.Context, *ImportContext, *stage) error
	}{
		{StageNodeMetadata, p.nodeMetadata},
		{StageLinkMetadata, p.linkMetadata},
		{StageRootLinking, p.rootLinking},
		{StageLabelLoading, p.labelLoading},
		{StageBulkLoad, p.bulkLoad},
	}

	schemaReport := p.schema(ctx, log)
	report.Stages = append(report.Stages, schemaReport)

	for _, s := range stages {
		sr, err := p.runStage(ctx, log, s.name, func(ctx context.Context, st *stage) error {
			return s.fn(ctx, ictx, st)
		})
		report.Stages = append(report.Stages, sr)
		if err != nil {
			report.Duration = time.Since(report.StartedAt)
			return report, err
		}
	}

	report.Duration = time.Since(report.StartedAt)
	log.Info("Import completed",
		zap.Int("created", report.Created()),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// stage is the write capability of one running stage
type stage struct {
	tx     graph.Tx
	report *StageReport
	logger *zap.Logger
}

// run executes one statement and tallies its effect
func (s *stage) run(ctx context.Context, stmt graph.Statement, params map[string]any) (graph.Result, error) {
	res, err := s.tx.Run(ctx, stmt, params)
	if err != nil {
		return res, apperrors.NewWriteAdapter(stmt.Name, err)
	}
	switch {
	case res.Created():
		s.report.Created++
	case res.PropertiesSet > 0 || res.LabelsAdded > 0:
		s.report.Updated++
	default:
		s.logger.Warn("Statement matched nothing",
			zap.String("statement", stmt.Name),
			zap.Any("id", params["id"]),
		)
	}
	return res, nil
}

// absorb adds chain statistics to the stage report
func (s *stage) absorb(stats stream.Stats) {
	s.report.Read += stats.Read
	s.report.Filtered += stats.Filtered
	s.report.Written += stats.Written
	s.report.skip(stats.Skipped...)
}

func (p *Pipeline) runStage(ctx context.Context, log *zap.Logger, name string, body func(context.Context, *stage) error) (StageReport, error) {
	report := StageReport{Stage: name}
	start := time.Now()
	log = log.With(zap.String("stage", name))
	log.Info("Stage started")

	tx, err := p.store.Begin(ctx)
	if err != nil {
		report.Duration = time.Since(start)
		return report, apperrors.NewStageFailed(name, err)
	}

	st := &stage{tx: tx, report: &report, logger: log}
	if err := body(ctx, st); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			log.Warn("Rollback failed", zap.Error(rbErr))
		}
		report.Duration = time.Since(start)
		log.Warn("Stage rolled back",
			zap.Int("read", report.Read),
			zap.Int("written", report.Written),
		)
		return report, apperrors.NewStageFailed(name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		report.Duration = time.Since(start)
		return report, apperrors.NewStageFailed(name, err)
	}

	report.Duration = time.Since(start)
	log.Info("Stage completed",
		zap.Int("read", report.Read),
		zap.Int("filtered", report.Filtered),
		zap.Int("written", report.Written),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// pass streams one named source through chain into sink
func (p *Pipeline) pass(ctx context.Context, st *stage, name string, chain *stream.Chain[*item], sink stream.Sink[*item]) error {
	s, err := p.source.Open(ctx, name)
	if err != nil {
		return err
	}
	defer s.Close()

	st.logger.Debug("Streaming source", zap.String("source", name), zap.String("path", s.Path()))
	stats, err := chain.Describe(describeItem).Run(ctx, &recordSource{stream: s}, sink)
	st.absorb(stats)
	return err
}

func (p *Pipeline) chain(name string, log *zap.Logger) *stream.Chain[*item] {
	return stream.New[*item](name, log, p.buffer)
}

// item carries one record through a chain, annotated by each step
type item struct {
	rec    source.Record
	node   brain.RawNode
	link   brain.RawLink
	intent brain.WriteIntent
	labels []string

	// root linking
	child  string
	parent string
}

func describeItem(it *item) string {
	if it.rec.Path != "" {
		return it.rec.String()
	}
	return it.child + "->" + it.parent
}

type recordSource struct {
	stream *source.Stream
}

func (r *recordSource) Next(ctx context.Context) (*item, error) {
	rec, err := r.stream.Next(ctx)
	if err != nil {
		return nil, err
	}
	return &item{rec: rec}, nil
}

func (r *recordSource) Destroy(err error) {
	r.stream.Destroy(err)
}

// sliceSource feeds items already held in memory
type sliceSource struct {
	mu        sync.Mutex
	items     []*item
	pos       int
	destroyed error
}

func (s *sliceSource) Next(ctx context.Context) (*item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed != nil {
		return nil, s.destroyed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.items) {
		return nil, io.EOF
	}
	it := s.items[s.pos]
	s.pos++
	return it, nil
}

func (s *sliceSource) Destroy(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed == nil {
		s.destroyed = err
	}
}

func missingType(recordID, typeID string) error {
	return apperrors.NewMissingTypeDefinition(recordID, typeID)
}
