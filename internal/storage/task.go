package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskType distinguishes one-shot tasks from recurring ones.
type TaskType string

const (
	TaskTypeOnce     TaskType = "once"
	TaskTypeInterval TaskType = "interval"
)

// ExecutionStatus records the outcome of a single dispatch attempt.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailure ExecutionStatus = "failure"
)

// Task is a persistent scheduling record. Copies handed to the dispatcher
// are snapshots; the database row is the authority.
type Task struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Type            TaskType        `json:"task_type"`
	TriggerAt       time.Time       `json:"trigger_at"`
	IntervalSeconds *int64          `json:"interval_seconds,omitempty"`
	Payload         json.RawMessage `json:"payload"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Retired reports whether the task has been taken out of dispatch.
func (t *Task) Retired() bool {
	return t.DeletedAt != nil
}

// NewOnceTask builds a one-shot task with a fresh id.
func NewOnceTask(name string, triggerAt time.Time, payload json.RawMessage) *Task {
	return &Task{
		ID:        uuid.New().String(),
		Name:      name,
		Type:      TaskTypeOnce,
		TriggerAt: triggerAt.UTC(),
		Payload:   payload,
	}
}

// NewIntervalTask builds a recurring task with a fresh id.
func NewIntervalTask(name string, triggerAt time.Time, intervalSeconds int64, payload json.RawMessage) *Task {
	return &Task{
		ID:              uuid.New().String(),
		Name:            name,
		Type:            TaskTypeInterval,
		TriggerAt:       triggerAt.UTC(),
		IntervalSeconds: &intervalSeconds,
		Payload:         payload,
	}
}

// Execution is the immutable record of one dispatch attempt.
type Execution struct {
	ID         string          `json:"id"`
	TaskID     string          `json:"task_id"`
	ExecutedAt time.Time       `json:"executed_at"`
	Output     json.RawMessage `json:"output"`
	Status     ExecutionStatus `json:"status"`
}

// NewExecution builds an execution record stamped with the current time.
func NewExecution(taskID string, output json.RawMessage, status ExecutionStatus) *Execution {
	return &Execution{
		ID:         uuid.New().String(),
		TaskID:     taskID,
		ExecutedAt: time.Now().UTC(),
		Output:     output,
		Status:     status,
	}
}
