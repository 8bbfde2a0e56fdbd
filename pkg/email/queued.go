package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/sesmailer/pkg/queue"
)

// QueuedMessageTask is the job name queued messages are pushed under.
const QueuedMessageTask = "email.queued_message"

// QueuedMessage is the job payload: the inputs of Send, not the message.
type QueuedMessage struct {
	View     View               `json:"view"`
	Data     map[string]any     `json:"data,omitempty"`
	Callback CallbackDescriptor `json:"callback"`
}

// Queue defers Send to a worker on the default queue.
func (m *Mailer) Queue(ctx context.Context, view any, data map[string]any, cb Callback) error {
	return m.QueueOn(ctx, m.defaultQueue, view, data, cb)
}

// QueueOn defers Send to a worker on the named queue.
func (m *Mailer) QueueOn(ctx context.Context, queueName string, view any, data map[string]any, cb Callback) error {
	payload, err := m.queuedMessage(view, data, cb)
	if err != nil {
		return err
	}
	return m.enqueuer.Push(ctx, QueuedMessageTask, payload, queueName)
}

// Later defers Send by delay on the default queue.
func (m *Mailer) Later(ctx context.Context, delay time.Duration, view any, data map[string]any, cb Callback) error {
	return m.LaterOn(ctx, m.defaultQueue, delay, view, data, cb)
}

// LaterOn defers Send by delay on the named queue.
func (m *Mailer) LaterOn(ctx context.Context, queueName string, delay time.Duration, view any, data map[string]any, cb Callback) error {
	payload, err := m.queuedMessage(view, data, cb)
	if err != nil {
		return err
	}
	return m.enqueuer.Later(ctx, delay, QueuedMessageTask, payload, queueName)
}

func (m *Mailer) queuedMessage(view any, data map[string]any, cb Callback) (QueuedMessage, error) {
	if m.enqueuer == nil {
		return QueuedMessage{}, ErrQueueNotSet
	}

	v, err := ParseView(view)
	if err != nil {
		return QueuedMessage{}, err
	}

	desc, err := cb.Descriptor()
	if err != nil {
		return QueuedMessage{}, err
	}

	return QueuedMessage{View: v, Data: data, Callback: desc}, nil
}

// HandleQueuedMessage runs a queued Send and acknowledges the job.
// Errors are returned to the worker, which owns retries.
func (m *Mailer) HandleQueuedMessage(ctx context.Context, job *queue.Job, msg QueuedMessage) error {
	cb, err := msg.Callback.Callback()
	if err != nil {
		return errors.Join(ErrInvalidQueuedMessage, err)
	}
	if msg.View.IsZero() {
		return fmt.Errorf("%w: missing view", ErrInvalidQueuedMessage)
	}

	if _, err := m.Send(ctx, msg.View, msg.Data, cb); err != nil {
		return err
	}

	return job.Delete(ctx)
}

// QueueHandler exposes HandleQueuedMessage to a queue worker.
func (m *Mailer) QueueHandler() queue.Handler {
	return queue.NewTaskHandler(QueuedMessageTask, m.HandleQueuedMessage)
}
