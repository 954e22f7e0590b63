// Package tasks runs index maintenance off the write path. Database writes
// finish regardless of index health; the queue retries transient index
// failures and logs what it cannot recover.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/openlangarchive/langsearch/internal/index"
)

// Op is the kind of index maintenance a task performs.
type Op string

const (
	OpSync        Op = "sync"
	OpRemove      Op = "remove"
	OpRebuildSite Op = "rebuild_site"
	OpPurgeSite   Op = "purge_site"
)

const (
	maxAttempts    = 3
	initialBackoff = 3 * time.Second
	backoffStep    = time.Second
)

// Task is one unit of index maintenance, routed by manager tag.
type Task struct {
	Op  Op
	Tag string
	ID  string
}

var (
	tasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "langsearch_tasks_processed_total",
		Help: "Completed index maintenance tasks by operation and outcome.",
	}, []string{"op", "outcome"})

	taskRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "langsearch_task_retries_total",
		Help: "Task attempts retried after a failure.",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "langsearch_task_queue_depth",
		Help: "Tasks waiting in the queue.",
	})
)

// Queue is a fixed-size worker pool over a buffered task channel. Tasks for
// the same entity may be processed out of order under concurrency; every
// task rebuilds from current database state, so the final task wins.
type Queue struct {
	registry *index.Registry
	log      *zap.Logger
	workers  int

	mu     sync.Mutex
	tasks  chan Task
	closed bool
	wg     sync.WaitGroup
}

// NewQueue builds a queue over the manager registry. Start must be called
// before tasks are processed.
func NewQueue(registry *index.Registry, workers int, log *zap.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		registry: registry,
		log:      log,
		workers:  workers,
		tasks:    make(chan Task, 1024),
	}
}

// Start launches the worker pool. Workers exit when the queue is stopped or
// the context is canceled.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task, ok := <-q.tasks:
					if !ok {
						return
					}
					queueDepth.Dec()
					q.process(ctx, task)
				}
			}
		}()
	}
}

// Stop closes the queue and waits for in-flight tasks to finish. Enqueues
// after Stop are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// enqueue never blocks: a full queue drops the task with a warning instead of
// holding the lock Stop needs. A periodic rebuild converges dropped work.
func (q *Queue) enqueue(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.log.Warn("task dropped, queue stopped", zap.String("op", string(t.Op)), zap.String("tag", t.Tag), zap.String("id", t.ID))
		return
	}
	select {
	case q.tasks <- t:
		queueDepth.Inc()
	default:
		q.log.Warn("task dropped, queue full", zap.String("op", string(t.Op)), zap.String("tag", t.Tag), zap.String("id", t.ID))
	}
}

// EnqueueSync schedules a document re-sync for one entity.
func (q *Queue) EnqueueSync(tag, id string) {
	q.enqueue(Task{Op: OpSync, Tag: tag, ID: id})
}

// EnqueueRemove schedules a document removal for one entity.
func (q *Queue) EnqueueRemove(tag, id string) {
	q.enqueue(Task{Op: OpRemove, Tag: tag, ID: id})
}

// EnqueueSiteRebuild schedules a re-sync of every document of one type on a
// site.
func (q *Queue) EnqueueSiteRebuild(tag, siteID string) {
	q.enqueue(Task{Op: OpRebuildSite, Tag: tag, ID: siteID})
}

// EnqueuePurgeSite schedules removal of all documents belonging to a deleted
// site.
func (q *Queue) EnqueuePurgeSite(siteID string) {
	q.enqueue(Task{Op: OpPurgeSite, ID: siteID})
}

// process runs one task with bounded retries. A task that exhausts its
// attempts is logged and dropped; the next write or rebuild converges the
// index.
func (q *Queue) process(ctx context.Context, t Task) {
	run, err := q.resolve(t)
	if err != nil {
		q.log.Error("unroutable task", zap.String("op", string(t.Op)), zap.String("tag", t.Tag), zap.String("id", t.ID), zap.Error(err))
		tasksProcessed.WithLabelValues(string(t.Op), "unroutable").Inc()
		return
	}

	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = run(ctx); err == nil {
			tasksProcessed.WithLabelValues(string(t.Op), "ok").Inc()
			return
		}
		if attempt == maxAttempts {
			break
		}
		taskRetries.Inc()
		q.log.Warn("task failed, retrying",
			zap.String("op", string(t.Op)),
			zap.String("tag", t.Tag),
			zap.String("id", t.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff += backoffStep
	}

	tasksProcessed.WithLabelValues(string(t.Op), "failed").Inc()
	q.log.Error("task failed permanently",
		zap.String("op", string(t.Op)),
		zap.String("tag", t.Tag),
		zap.String("id", t.ID),
		zap.Error(err))
}

func (q *Queue) resolve(t Task) (func(context.Context) error, error) {
	if t.Op == OpPurgeSite {
		return func(ctx context.Context) error {
			return q.registry.PurgeSite(ctx, t.ID)
		}, nil
	}
	m, ok := q.registry.Get(t.Tag)
	if !ok {
		return nil, fmt.Errorf("unknown manager tag %q", t.Tag)
	}
	switch t.Op {
	case OpSync:
		return func(ctx context.Context) error { return m.SyncInIndex(ctx, t.ID) }, nil
	case OpRemove:
		return func(ctx context.Context) error { return m.RemoveFromIndex(ctx, t.ID) }, nil
	case OpRebuildSite:
		return func(ctx context.Context) error { return m.RebuildSite(ctx, t.ID) }, nil
	}
	return nil, fmt.Errorf("unknown operation %q", t.Op)
}
