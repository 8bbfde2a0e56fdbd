package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type (
	// Handler executes jobs dispatched on Name.
	Handler interface {
		Name() string
		Handle(ctx context.Context, job *Job) error
	}

	// TaskHandlerFunc receives the job and its decoded payload.
	TaskHandlerFunc[T any] func(ctx context.Context, job *Job, payload T) error
)

// NewTaskHandler builds a Handler that decodes the JSON payload into T.
// An empty name falls back to T's qualified type name, matching what
// Enqueue derives when no task name is given.
func NewTaskHandler[T any](name string, handler TaskHandlerFunc[T]) Handler {
	if name == "" {
		var payload T
		name = qualifiedStructName(payload)
	}
	return &taskHandler[T]{
		name:    name,
		handler: handler,
	}
}

type taskHandler[T any] struct {
	name    string
	handler TaskHandlerFunc[T]
}

func (h *taskHandler[T]) Name() string {
	return h.name
}

func (h *taskHandler[T]) Handle(ctx context.Context, job *Job) error {
	var payload T
	if err := json.Unmarshal(job.Payload(), &payload); err != nil {
		return errors.Join(ErrPayloadUnmarshal, fmt.Errorf("task %q: %w", h.name, err))
	}
	return h.handler(ctx, job, payload)
}

// qualifiedStructName returns "pkg.Type" for v, dereferencing pointers.
func qualifiedStructName(v any) string {
	return strings.TrimLeft(fmt.Sprintf("%T", v), "*")
}
