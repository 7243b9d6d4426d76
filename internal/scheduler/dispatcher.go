package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"taskscheduler-go/internal/metrics"
	"taskscheduler-go/internal/storage"
)

const (
	// DefaultIdlePoll bounds how long the dispatcher sleeps with no live
	// tasks. It is also the liveness backstop for dropped wake-ups.
	DefaultIdlePoll = time.Hour

	// pollErrorBackoff is the fixed retry delay after a failed poll.
	pollErrorBackoff = 5 * time.Second
)

// Dispatcher is the single cooperative worker that fires due tasks. One
// goroutine runs the loop; producers only touch the wake channel.
type Dispatcher struct {
	store    Store
	service  *TaskService
	wake     <-chan struct{}
	idlePoll time.Duration
	log      *zap.SugaredLogger
}

// NewDispatcher creates a Dispatcher. idlePoll falls back to DefaultIdlePoll
// when zero or negative.
func NewDispatcher(store Store, service *TaskService, wake <-chan struct{}, idlePoll time.Duration, log *zap.SugaredLogger) *Dispatcher {
	if idlePoll <= 0 {
		idlePoll = DefaultIdlePoll
	}
	return &Dispatcher{
		store:    store,
		service:  service,
		wake:     wake,
		idlePoll: idlePoll,
		log:      log,
	}
}

// Run executes the dispatch loop until ctx is cancelled. Each iteration
// re-queries the store rather than trusting an in-memory queue: any wake-up
// may mean a task earlier than the current snapshot exists now.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Infow("dispatcher started", "idle_poll", d.idlePoll)

	for {
		task, err := d.store.GetNextPending(ctx)
		if err != nil {
			if ctx.Err() != nil {
				d.log.Infow("dispatcher stopped")
				return
			}
			metrics.DispatcherPollErrors.Inc()
			d.log.Errorw("failed to fetch next task", "error", err)
			if !sleepCtx(ctx, pollErrorBackoff) {
				d.log.Infow("dispatcher stopped")
				return
			}
			continue
		}

		wait := d.sleepFor(task)
		d.log.Debugw("dispatcher sleeping", "duration", wait, "next_task", taskName(task))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			d.log.Infow("dispatcher stopped")
			return

		case <-d.wake:
			// Re-query: a newly created task may be due sooner than the
			// snapshot this sleep was computed from.
			timer.Stop()
			metrics.DispatcherWakeups.Inc()
			d.log.Debugw("wake-up signal received")

		case <-timer.C:
			if task != nil && !task.TriggerAt.After(time.Now()) {
				if err := d.service.ProcessTask(ctx, task); err != nil {
					d.log.Errorw("error processing task", "task_id", task.ID, "error", err)
				}
			}
		}
	}
}

// sleepFor computes how long to wait before acting on the snapshot.
func (d *Dispatcher) sleepFor(task *storage.Task) time.Duration {
	if task == nil {
		return d.idlePoll
	}
	wait := time.Until(task.TriggerAt)
	if wait < 0 {
		return 0
	}
	return wait
}

// sleepCtx waits for dur unless ctx is cancelled first. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, dur time.Duration) bool {
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func taskName(task *storage.Task) string {
	if task == nil {
		return ""
	}
	return task.Name
}
