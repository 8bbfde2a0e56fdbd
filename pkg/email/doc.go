// Package email composes messages with a fluent builder and dispatches them
// through an email API, either synchronously or from a queued job.
//
// # Building messages
//
// A Message accumulates an SES-shaped Payload. Recipient slots can be
// replaced as a whole (SetRecipients, Cc, Bcc) or appended to one address
// at a time (AddRecipient, To). Addresses with a display name are formatted
// as "name<email>".
//
// # Sending
//
// The Mailer renders a view through a Renderer, lets a Callback populate the
// message and submits the payload through an EmailSender:
//
//	mailer, err := email.New(sender, registry,
//	    email.WithFrom("noreply@example.com", "Example"),
//	    email.WithLogger(logger),
//	)
//
//	_, err = mailer.Send(ctx, email.View{HTML: "welcome", Text: "welcome_text"},
//	    map[string]any{"name": "Alice"},
//	    email.Func(func(ctx context.Context, m *email.Message) error {
//	        m.To("alice@example.com", "Alice").SetSubject("Welcome")
//	        return nil
//	    }),
//	)
//
// A callback is one of:
//   - Func: an in-process function
//   - Service: a Collaborator resolved by name from the container
//   - Named: a builder registered with RegisterBuilder plus JSON arguments
//
// # Queueing
//
// Queue, QueueOn, Later and LaterOn serialize the view, data and callback
// descriptor into a job handled by Mailer.QueueHandler. Closures cannot
// cross the queue boundary; register them as named builders instead:
//
//	builders := email.NewBuilders()
//	email.MustRegisterBuilder(builders, "welcome", func(ctx context.Context, m *email.Message, a WelcomeArgs) error {
//	    m.To(a.Email, a.Name).SetSubject("Welcome")
//	    return nil
//	})
//	err := mailer.Queue(ctx, "welcome", data, email.MustNamed("welcome", WelcomeArgs{...}))
//
// # Transports
//
// SESClient (AWS SES v2), PostmarkClient and DevSender implement
// EmailSender. S3Archive stores sent messages in a bucket when attached as a
// Notifier or run with Listen.
//
// # Events
//
// Every submission fires mailer.sending before and mailer.sent after the
// API call, pretend mode included. Notifier failures are logged and never
// fail the send.
package email
