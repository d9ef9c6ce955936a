package wait

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/chazu/litekube/pkg/metrics"
)

// Task is one independent condition awaited by AwaitAll
type Task struct {
	// Description names what the task waits for, e.g. "pod default/web-0 to run"
	Description string

	// Condition is polled until true
	Condition ConditionFunc
}

// AwaitAll waits for every task, each with the poller's timeout.
//
// Up to SequentialThreshold tasks are awaited one after another by the caller.
// Larger batches are split into min(MaxWorkers, len(tasks)) contiguous groups
// of near-equal size; each group is handled by one worker which awaits its
// tasks in order. Every task is attempted exactly once, even when an earlier
// task of the same group failed. The error of the first failing task, in input
// order, is returned once all workers have finished.
func (p *Poller) AwaitAll(ctx context.Context, tasks []Task) error {
	start := time.Now()
	err := p.awaitAll(ctx, tasks)
	metrics.RecordWait(metrics.OperationAwaitAll, metrics.ResultFor(err), time.Since(start).Seconds())
	return err
}

func (p *Poller) awaitAll(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	// errs[i] is written only by the worker owning task i
	errs := make([]error, len(tasks))

	if len(tasks) <= p.config.SequentialThreshold {
		for i, task := range tasks {
			errs[i] = p.await(ctx, task.Description, task.Condition)
		}
		return firstError(ctx, errs)
	}

	indices := make([]int, len(tasks))
	for i := range indices {
		indices[i] = i
	}
	groups := Partition(indices, min(p.config.MaxWorkers, len(tasks)))

	log.FromContext(ctx).V(1).Info("Waiting for tasks concurrently",
		"tasks", len(tasks), "workers", len(groups))

	workers := pool.New().WithMaxGoroutines(len(groups))
	for _, group := range groups {
		workers.Go(func() {
			metrics.WorkerStarted()
			defer metrics.WorkerFinished()

			for _, i := range group {
				errs[i] = p.await(ctx, tasks[i].Description, tasks[i].Condition)
			}
		})
	}
	workers.Wait()

	return firstError(ctx, errs)
}

// firstError returns the first non-nil error and logs how many tasks failed
func firstError(ctx context.Context, errs []error) error {
	var first error
	failed := 0
	for _, err := range errs {
		if err == nil {
			continue
		}
		if first == nil {
			first = err
		}
		failed++
	}
	if failed > 1 {
		log.FromContext(ctx).Info("Multiple wait tasks failed", "failed", failed, "total", len(errs))
	}
	return first
}

// Partition splits items into at most groups contiguous slices whose sizes
// differ by at most one. Order is preserved and no item is dropped or
// duplicated. groups is clamped to [1, len(items)].
func Partition[T any](items []T, groups int) [][]T {
	if len(items) == 0 {
		return nil
	}
	groups = max(1, min(groups, len(items)))

	size, extra := len(items)/groups, len(items)%groups
	out := make([][]T, 0, groups)
	start := 0
	for g := 0; g < groups; g++ {
		end := start + size
		if g < extra {
			end++
		}
		out = append(out, items[start:end:end])
		start = end
	}
	return out
}
