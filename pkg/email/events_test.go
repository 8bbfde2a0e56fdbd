package email_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sesmailer/pkg/broadcast"
	"github.com/dmitrymomot/sesmailer/pkg/email"
)

func TestBroadcastNotifier(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[email.Event](10)
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var (
		mu       sync.Mutex
		received []email.Event
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		email.Listen(ctx, b, email.EventSent, func(_ context.Context, e email.Event) {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, e)
		})
	}()

	require.Eventually(t, func() bool { return b.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	sender := &MockEmailSender{}
	sender.On("SendEmail", mock.Anything, mock.Anything).Return(&email.Response{MessageID: "msg-1"}, nil)

	m, err := email.New(sender, &viewRenderer{}, email.WithNotifier(email.NewBroadcastNotifier(b)))
	require.NoError(t, err)

	_, err = m.Send(context.Background(), "welcome", nil, email.Func(toAlice))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, email.EventSent, received[0].Name)
	assert.Equal(t, "msg-1", received[0].Response.MessageID)
	mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after cancel")
	}
}

func TestListenStopsWhenBroadcasterCloses(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[email.Event](1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		email.Listen(context.Background(), b, "", func(context.Context, email.Event) {})
	}()

	require.Eventually(t, func() bool { return b.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, b.Close())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after Close")
	}
}
