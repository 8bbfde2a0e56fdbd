// Package broadcast provides a typed, non-blocking fan-out used to publish
// mailer events to any number of listeners.
//
//	b := broadcast.NewMemoryBroadcaster[email.Event](64)
//	defer b.Close()
//
//	sub := b.Subscribe(ctx)
//	for msg := range sub.Receive(ctx) {
//	    // msg.Data
//	}
//
// Delivery is best effort: a subscriber that falls behind loses messages
// and is unsubscribed rather than slowing down the publisher.
package broadcast
