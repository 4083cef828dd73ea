package stream

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apperrors "brainport/backend/pkg/errors"
)

// Source is pulled one value at a time; io.EOF ends it
type Source[T any] interface {
	Next(ctx context.Context) (T, error)
	Destroy(err error)
}

// Step annotates or filters a value. keep=false drops it.
type Step[T any] struct {
	Name  string
	Apply func(ctx context.Context, v T) (out T, keep bool, err error)
}

// Filter builds a step that only drops values
func Filter[T any](name string, keep func(v T) bool) Step[T] {
	return Step[T]{
		Name: name,
		Apply: func(_ context.Context, v T) (T, bool, error) {
			return v, keep(v), nil
		},
	}
}

// Sink consumes values at the end of a chain
type Sink[T any] func(ctx context.Context, v T) error

// Stats summarizes one chain run
type Stats struct {
	Read     int
	Filtered int
	Written  int
	Late     int
	Skipped  []error
}

// Chain connects a source, steps and a sink through bounded channels.
// A blocked sink stalls every upstream goroutine.
type Chain[T any] struct {
	name            string
	buffer          int
	skipRecoverable bool
	describe        func(T) string
	logger          *zap.Logger
	steps           []Step[T]
}

// New creates a chain; buffer is the capacity of each channel between steps
func New[T any](name string, logger *zap.Logger, buffer int) *Chain[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &Chain[T]{name: name, buffer: buffer, logger: logger}
}

// Through appends steps
func (c *Chain[T]) Through(steps ...Step[T]) *Chain[T] {
	c.steps = append(c.steps, steps...)
	return c
}

// SkipRecoverable lets record-level validation failures be logged and
// skipped instead of failing the chain.
func (c *Chain[T]) SkipRecoverable() *Chain[T] {
	c.skipRecoverable = true
	return c
}

// Describe sets how values are identified in log lines
func (c *Chain[T]) Describe(fn func(T) string) *Chain[T] {
	c.describe = fn
	return c
}

type run[T any] struct {
	chain *Chain[T]
	src   Source[T]

	mu    sync.Mutex
	stats Stats

	failOnce sync.Once
	failErr  error
	cancel   context.CancelCauseFunc
}

// Run drains src through the steps into sink. The first fatal error destroys
// the source, cancels the chain and is returned; values still in flight are
// logged as late and dropped.
func (c *Chain[T]) Run(ctx context.Context, src Source[T], sink Sink[T]) (Stats, error) {
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	r := &run[T]{chain: c, src: src, cancel: cancel}
	g, gctx := errgroup.WithContext(runCtx)

	head := make(chan T, c.buffer)
	g.Go(func() error {
		defer close(head)
		for {
			v, err := src.Next(gctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				if gctx.Err() == nil {
					r.fail(err)
				}
				return nil
			}
			r.count(func(s *Stats) { s.Read++ })
			select {
			case head <- v:
			case <-gctx.Done():
				r.late("source", v)
			}
		}
	})

	in := head
	for _, step := range c.steps {
		upstream := in
		out := make(chan T, c.buffer)
		g.Go(func() error {
			defer close(out)
			for v := range upstream {
				if gctx.Err() != nil {
					r.late(step.Name, v)
					continue
				}
				next, keep, err := step.Apply(gctx, v)
				if err != nil {
					r.handle(step.Name, v, err)
					continue
				}
				if !keep {
					r.count(func(s *Stats) { s.Filtered++ })
					continue
				}
				select {
				case out <- next:
				case <-gctx.Done():
					r.late(step.Name, next)
				}
			}
			return nil
		})
		in = out
	}

	last := in
	g.Go(func() error {
		for v := range last {
			if gctx.Err() != nil {
				r.late("sink", v)
				continue
			}
			if err := sink(gctx, v); err != nil {
				r.handle("sink", v, err)
				continue
			}
			r.count(func(s *Stats) { s.Written++ })
		}
		return nil
	})

	_ = g.Wait()

	r.mu.Lock()
	stats := r.stats
	r.mu.Unlock()

	if r.failErr != nil {
		return stats, r.failErr
	}
	if err := ctx.Err(); err != nil {
		src.Destroy(err)
		return stats, apperrors.NewContextCancelled(c.name, err)
	}
	return stats, nil
}

func (r *run[T]) handle(step string, v T, err error) {
	if r.chain.skipRecoverable && apperrors.IsRecoverable(err) {
		r.count(func(s *Stats) { s.Skipped = append(s.Skipped, err) })
		r.chain.logger.Warn("Skipping invalid record",
			zap.String("chain", r.chain.name),
			zap.String("step", step),
			zap.String("record", r.chain.describeValue(v)),
			zap.Error(err),
		)
		return
	}
	r.fail(err)
}

func (r *run[T]) fail(err error) {
	r.failOnce.Do(func() {
		r.failErr = err
		r.src.Destroy(err)
		r.cancel(err)
	})
}

func (r *run[T]) late(step string, v T) {
	r.count(func(s *Stats) { s.Late++ })
	r.chain.logger.Warn("Skipping record after chain failure",
		zap.String("chain", r.chain.name),
		zap.String("step", step),
		zap.String("record", r.chain.describeValue(v)),
	)
}

func (r *run[T]) count(update func(*Stats)) {
	r.mu.Lock()
	update(&r.stats)
	r.mu.Unlock()
}

func (c *Chain[T]) describeValue(v T) string {
	if c.describe == nil {
		return ""
	}
	return c.describe(v)
}
