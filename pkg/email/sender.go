package email

import (
	"context"
	"time"
)

// EmailSender submits an assembled payload to an email API.
type EmailSender interface {
	SendEmail(ctx context.Context, payload Payload) (*Response, error)
}

// Response is what the email API returned for an accepted message.
// It is empty in pretend mode.
type Response struct {
	MessageID string `json:"message_id,omitempty"`
	Provider  string `json:"provider,omitempty"`
}

// Renderer turns a named view and its data into a body.
type Renderer interface {
	Render(ctx context.Context, view string, data map[string]any) (string, error)
}

// Enqueuer pushes named jobs onto a queue; *queue.Enqueuer satisfies it.
// An empty queue name selects the enqueuer's default queue.
type Enqueuer interface {
	Push(ctx context.Context, name string, payload any, queueName string) error
	Later(ctx context.Context, delay time.Duration, name string, payload any, queueName string) error
}
