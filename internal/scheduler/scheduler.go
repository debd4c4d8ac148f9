// Package scheduler implements the Scheduler: a worker pool used by the
// Recheck Engine to fan parsing and type-checking out to goroutines, plus a
// low-priority task queue for background work. Workers consume read-only configuration and the Shared Heap and
// return plain data — they never touch ServerState.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is a unit of low-priority background work.
type Task struct {
	Name    string
	Execute func() error
}

// Scheduler owns a low-priority task queue plus the parallel gate the
// Recheck Engine consults before fanning analysis work out.
type Scheduler struct {
	taskQueue       chan Task
	lowPriorityLock sync.Mutex
	stopChan        chan struct{}
	wg              sync.WaitGroup

	maxJobs int
}

// Gate is the per-batch parallel flag the Recheck Engine derives from
// WithParallel. It carries no lock: unlike Scheduler itself, a Gate is
// safe to copy by value once per Recheck without a go vet copylocks
// defect.
type Gate struct {
	parallel bool
	maxJobs  int
}

// New creates a Scheduler with the specified low-priority queue size.
func New(queueSize int, maxJobs int) *Scheduler {
	return &Scheduler{
		taskQueue: make(chan Task, queueSize),
		stopChan:  make(chan struct{}),
		maxJobs:   maxJobs,
	}
}

// WithParallel derives a Gate for one Recheck batch; the Recheck Engine
// computes parallel = len(check) > threshold per batch.
func (s *Scheduler) WithParallel(parallel bool) Gate {
	return Gate{parallel: parallel, maxJobs: s.maxJobs}
}

// RunParallel runs fn once per item in items. When gate.parallel is false
// (small batch), items run sequentially on the calling goroutine — fanning
// a handful of files out isn't worth the scheduling overhead. When true,
// it fans out through an errgroup capped at gate.maxJobs concurrent
// workers, grounded on the same errgroup.WithContext + SetLimit idiom used
// to fan parsing out across files.
func RunParallel[T any](ctx context.Context, gate Gate, items []T, fn func(context.Context, T) error) error {
	if !gate.parallel || len(items) <= 1 {
		for _, item := range items {
			if err := fn(ctx, item); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	limit := gate.maxJobs
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	g.SetLimit(limit)

	for _, item := range items {
		item := item
		g.Go(func() error {
			return fn(gctx, item)
		})
	}
	return g.Wait()
}

// Start begins draining the low-priority task queue in the background.
func (s *Scheduler) Start() {
	go func() {
		for {
			select {
			case task, ok := <-s.taskQueue:
				if !ok {
					return
				}
				log.Printf("scheduler: executing %s", task.Name)
				if err := task.Execute(); err != nil {
					log.Printf("scheduler: %s failed: %v", task.Name, err)
				}
				s.wg.Done()
			case <-s.stopChan:
				for task := range s.taskQueue {
					log.Printf("scheduler: draining %s", task.Name)
					task.Execute()
					s.wg.Done()
				}
				return
			}
		}
	}()
}

// SchedulePeriodic periodically enqueues lowTask without blocking the
// caller; a full queue skips that tick rather than blocking.
func (s *Scheduler) SchedulePeriodic(interval time.Duration, lowTask Task) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				go func() {
					s.lowPriorityLock.Lock()
					defer s.lowPriorityLock.Unlock()
					select {
					case s.taskQueue <- lowTask:
						s.wg.Add(1)
					default:
						log.Printf("scheduler: skipped %s, queue full", lowTask.Name)
					}
				}()
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Schedule enqueues a task for the background worker, blocking if the
// queue is full.
func (s *Scheduler) Schedule(task Task) {
	s.wg.Add(1)
	s.taskQueue <- task
}

// Stop drains the queue and waits for all in-flight tasks to finish (spec
// §5: "StopRequest is the only graceful termination signal; in-flight work
// completes before shutdown").
func (s *Scheduler) Stop() {
	close(s.stopChan)
	close(s.taskQueue)
	s.wg.Wait()
}
