package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"taskscheduler-go/internal/metrics"
	"taskscheduler-go/internal/storage"
)

// ErrValidation marks requests rejected before touching storage. Handlers
// map it to 400 with the wrapped rule message.
var ErrValidation = errors.New("validation error")

// Store is the persistence capability the service and dispatcher need.
type Store interface {
	InsertTask(ctx context.Context, task *storage.Task) error
	GetTask(ctx context.Context, id string) (*storage.Task, error)
	SoftDeleteTask(ctx context.Context, id string) (int64, error)
	GetNextPending(ctx context.Context) (*storage.Task, error)
	ListTasks(ctx context.Context) ([]*storage.Task, error)
	ListExecutions(ctx context.Context, taskID string) ([]*storage.Execution, error)
	BeginTx(ctx context.Context) (*storage.Transaction, error)
}

// CreateTaskRequest is the inbound shape for task creation.
type CreateTaskRequest struct {
	Name            string          `json:"name"`
	TaskType        string          `json:"task_type"`
	TriggerAt       time.Time       `json:"trigger_at"`
	IntervalSeconds *int64          `json:"interval_seconds,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
}

// TaskService validates mutations, commits them, and nudges the dispatcher.
// It is safe for concurrent use; writes serialize at the storage layer.
type TaskService struct {
	store    Store
	executor ActionExecutor
	wake     chan<- struct{}
	log      *zap.SugaredLogger
}

// NewTaskService creates a TaskService. The wake channel is shared with the
// dispatcher; sends are always non-blocking.
func NewTaskService(store Store, executor ActionExecutor, wake chan<- struct{}, log *zap.SugaredLogger) *TaskService {
	return &TaskService{
		store:    store,
		executor: executor,
		wake:     wake,
		log:      log,
	}
}

// CreateTask validates the request, persists the task, and notifies the
// dispatcher. The task is visible to GetNextPending before this returns.
func (s *TaskService) CreateTask(ctx context.Context, req CreateTaskRequest) (string, error) {
	var taskType storage.TaskType
	switch req.TaskType {
	case "once":
		taskType = storage.TaskTypeOnce
	case "interval":
		taskType = storage.TaskTypeInterval
	default:
		return "", fmt.Errorf("%w: invalid task_type, use 'once' or 'interval'", ErrValidation)
	}

	if taskType == storage.TaskTypeInterval {
		switch {
		case req.IntervalSeconds == nil:
			return "", fmt.Errorf("%w: interval_seconds is required for interval tasks", ErrValidation)
		case *req.IntervalSeconds < 1:
			// at least 1 second, to rule out hot loops
			return "", fmt.Errorf("%w: interval_seconds must be at least 1 second", ErrValidation)
		}
	}

	payload := req.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	var task *storage.Task
	if taskType == storage.TaskTypeOnce {
		task = storage.NewOnceTask(req.Name, req.TriggerAt, payload)
	} else {
		task = storage.NewIntervalTask(req.Name, req.TriggerAt, *req.IntervalSeconds, payload)
	}

	if err := s.store.InsertTask(ctx, task); err != nil {
		return "", err
	}
	metrics.TasksCreated.WithLabelValues(string(taskType)).Inc()

	s.notifyDispatcher()

	s.log.Infow("task created",
		"task_id", task.ID,
		"name", task.Name,
		"task_type", task.Type,
		"trigger_at", task.TriggerAt)

	return task.ID, nil
}

// DeleteTask retires a task. Returns storage.ErrNotFound when the id did
// not match a live task. The dispatcher is not notified; it tolerates
// stale snapshots.
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	rows, err := s.store.SoftDeleteTask(ctx, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: task %s", storage.ErrNotFound, id)
	}
	metrics.TasksDeleted.Inc()
	s.log.Infow("task deleted", "task_id", id)
	return nil
}

// ProcessTask executes the task's action and commits the resulting state
// transition atomically: the execution record plus either retirement (once)
// or a new trigger of now+interval (interval, wall clock from completion).
//
// Action failures are recorded on the execution row, never returned. If the
// task row vanished between dispatch and insert the foreign key fires; that
// case rolls back quietly and returns nil.
func (s *TaskService) ProcessTask(ctx context.Context, task *storage.Task) error {
	s.log.Infow("processing task", "task_id", task.ID, "name", task.Name)

	start := time.Now()
	defer func() {
		metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	}()

	var output json.RawMessage
	var status storage.ExecutionStatus
	result, err := s.executor.Execute(ctx, task)
	if err != nil {
		errOutput, _ := json.Marshal(map[string]string{"error": err.Error()})
		output = errOutput
		status = storage.ExecutionFailure
	} else {
		output = result
		status = storage.ExecutionSuccess
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	exec := storage.NewExecution(task.ID, output, status)
	if err := tx.InsertExecution(exec); err != nil {
		if storage.IsForeignKeyViolation(err) {
			s.log.Warnw("task deleted during execution, dropping record", "task_id", task.ID)
			return nil
		}
		return err
	}

	switch task.Type {
	case storage.TaskTypeOnce:
		if _, err := tx.SoftDeleteTask(task.ID); err != nil {
			return err
		}
	case storage.TaskTypeInterval:
		if task.IntervalSeconds != nil {
			nextTrigger := time.Now().UTC().Add(time.Duration(*task.IntervalSeconds) * time.Second)
			if _, err := tx.UpdateTrigger(task.ID, nextTrigger); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	metrics.ExecutionsRecorded.WithLabelValues(string(status)).Inc()

	s.log.Infow("task processed", "task_id", task.ID, "status", status)
	return nil
}

// notifyDispatcher sends a best-effort wake-up. A full channel means a wake
// is already pending, so dropping the signal loses nothing.
func (s *TaskService) notifyDispatcher() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
