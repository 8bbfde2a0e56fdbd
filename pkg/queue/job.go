package queue

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// AckFunc acknowledges a job so the storage forgets about it.
type AckFunc func(ctx context.Context) error

// Job is a claimed task handed to a Handler. A handler acknowledges the
// job with Delete once its work is done; returning an error instead leaves
// the task to the storage's retry and dead letter policy.
type Job struct {
	task Task
	ack  AckFunc

	mu      sync.Mutex
	deleted bool
}

// NewJob wraps a task with its acknowledgement callback.
// A nil ack makes Delete a local no-op, which is handy in tests.
func NewJob(task Task, ack AckFunc) *Job {
	return &Job{task: task, ack: ack}
}

// ID returns the task id.
func (j *Job) ID() uuid.UUID { return j.task.ID }

// Name returns the task name the job was dispatched on.
func (j *Job) Name() string { return j.task.TaskName }

// Queue returns the queue the job was claimed from.
func (j *Job) Queue() string { return j.task.Queue }

// Attempts returns how many times the job has been handed to a handler, this one included.
func (j *Job) Attempts() int { return int(j.task.RetryCount) + 1 }

// Payload returns the raw JSON payload.
func (j *Job) Payload() json.RawMessage { return json.RawMessage(j.task.Payload) }

// Task returns a copy of the underlying task.
func (j *Job) Task() Task { return j.task }

// Delete acknowledges the job. It is idempotent.
func (j *Job) Delete(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.deleted {
		return nil
	}
	if j.ack != nil {
		if err := j.ack(ctx); err != nil {
			return err
		}
	}
	j.deleted = true
	return nil
}

// IsDeleted reports whether Delete succeeded.
func (j *Job) IsDeleted() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.deleted
}
