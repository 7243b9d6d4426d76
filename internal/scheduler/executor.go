package scheduler

import (
	"context"
	"encoding/json"

	"taskscheduler-go/internal/storage"
)

// ActionExecutor turns a task into an outcome. Implementations may perform
// arbitrary I/O and may be slow; the dispatcher will not pick up the next
// task until the call returns. An error here is data, not a fault: the
// service records it on the execution row and moves on.
type ActionExecutor interface {
	Execute(ctx context.Context, task *storage.Task) (json.RawMessage, error)
}

// ActionExecutorFunc adapts a plain function to the ActionExecutor interface.
type ActionExecutorFunc func(ctx context.Context, task *storage.Task) (json.RawMessage, error)

func (f ActionExecutorFunc) Execute(ctx context.Context, task *storage.Task) (json.RawMessage, error) {
	return f(ctx, task)
}
