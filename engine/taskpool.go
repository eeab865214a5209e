package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const tracerName = "aviatorServer/engine"

// Task is a unit of background I/O.
type Task func(ctx context.Context) error

// PoolStats counts what happened to submitted tasks.
type PoolStats struct {
	Completed  int64
	Failed     int64
	Dropped    int64
	Overflowed int64
}

// TaskPool runs side effects of the state machine off the tick path with a
// bounded number of concurrent tasks. Submissions never block the caller.
type TaskPool struct {
	group *errgroup.Group
	// inflight counts every accepted task from submission until it returns,
	// including tasks submitted by other tasks.
	inflight sync.WaitGroup
	tracer   trace.Tracer
	logger   *zap.Logger

	completed  atomic.Int64
	failed     atomic.Int64
	dropped    atomic.Int64
	overflowed atomic.Int64
}

func NewTaskPool(limit int, logger *zap.Logger) *TaskPool {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := new(errgroup.Group)
	if limit > 0 {
		g.SetLimit(limit)
	}
	return &TaskPool{
		group:  g,
		tracer: otel.Tracer(tracerName),
		logger: logger,
	}
}

// TryGo runs task if a slot is free and drops it otherwise. Only work that
// is safe to lose goes through here.
func (p *TaskPool) TryGo(name string, timeout time.Duration, task Task) bool {
	p.inflight.Add(1)
	if p.group.TryGo(p.wrap(name, timeout, task)) {
		return true
	}
	p.inflight.Done()
	p.dropped.Add(1)
	p.logger.Debug("🗑️ Dropped background task, pool saturated", zap.String("task", name))
	return false
}

// Go always runs task. When the pool is saturated the task runs on a tracked
// overflow goroutine instead of waiting for a slot.
func (p *TaskPool) Go(name string, timeout time.Duration, task Task) {
	p.inflight.Add(1)
	fn := p.wrap(name, timeout, task)
	if p.group.TryGo(fn) {
		return
	}
	n := p.overflowed.Add(1)
	if n == 1 || n%100 == 0 {
		p.logger.Warn("⚠️ Task pool saturated, running on overflow goroutine",
			zap.String("task", name), zap.Int64("overflowed", n))
	}
	go fn()
}

// Wait blocks until every submitted task has finished, including tasks that
// running tasks submit while Wait is blocked.
func (p *TaskPool) Wait() {
	p.inflight.Wait()
}

func (p *TaskPool) Stats() PoolStats {
	return PoolStats{
		Completed:  p.completed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
		Overflowed: p.overflowed.Load(),
	}
}

func (p *TaskPool) wrap(name string, timeout time.Duration, task Task) func() error {
	return func() (err error) {
		defer p.inflight.Done()
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		ctx, span := p.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("task.name", name)))
		defer span.End()

		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
			if err != nil {
				p.failed.Add(1)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				p.logger.Warn("⚠️ Background task failed", zap.String("task", name), zap.Error(err))
			} else {
				p.completed.Add(1)
			}
			// The group must never see an error: tasks are independent.
			err = nil
		}()

		return task(ctx)
	}
}
