package email

import (
	"context"

	"github.com/dmitrymomot/sesmailer/pkg/broadcast"
)

// Event names fired around every submission, pretend mode included.
const (
	EventSending = "mailer.sending"
	EventSent    = "mailer.sent"
)

// Event describes a message about to be sent or just sent.
// Response is set for EventSent only.
type Event struct {
	Name     string
	Message  *Message
	Response *Response
}

// Notifier receives mailer events. Errors are logged by the Mailer and
// never fail a send.
type Notifier interface {
	Fire(ctx context.Context, e Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event) error

// Fire implements Notifier.
func (f NotifierFunc) Fire(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// BroadcastNotifier publishes events on a broadcaster so any number of
// listeners can observe them.
type BroadcastNotifier struct {
	b broadcast.Broadcaster[Event]
}

// NewBroadcastNotifier wraps b.
func NewBroadcastNotifier(b broadcast.Broadcaster[Event]) *BroadcastNotifier {
	return &BroadcastNotifier{b: b}
}

// Fire implements Notifier.
func (n *BroadcastNotifier) Fire(ctx context.Context, e Event) error {
	return n.b.Broadcast(ctx, broadcast.Message[Event]{Data: e})
}

// Listen calls fn for every event named name (all events when name is
// empty) until ctx is done or the broadcaster closes. It blocks.
func Listen(ctx context.Context, b broadcast.Broadcaster[Event], name string, fn func(context.Context, Event)) {
	sub := b.Subscribe(ctx)
	defer sub.Close()

	ch := sub.Receive(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if name == "" || msg.Data.Name == name {
				fn(ctx, msg.Data)
			}
		}
	}
}
