package sesmailer_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sesmailer/pkg/container"
	"github.com/dmitrymomot/sesmailer/pkg/email"
	"github.com/dmitrymomot/sesmailer/pkg/queue"
	"github.com/dmitrymomot/sesmailer/pkg/sesmailer"
)

type recordingSender struct {
	payloads []email.Payload
}

func (s *recordingSender) SendEmail(_ context.Context, p email.Payload) (*email.Response, error) {
	s.payloads = append(s.payloads, p)
	return &email.Response{MessageID: "id"}, nil
}

type staticRenderer struct{}

func (staticRenderer) Render(_ context.Context, view string, _ map[string]any) (string, error) {
	return "<p>" + view + "</p>", nil
}

type welcomeMail struct{}

func (welcomeMail) Mail(_ context.Context, m *email.Message) error {
	m.To("alice@x.com", "Alice").SetSubject("Welcome")
	return nil
}

func newContainer(sender email.EmailSender) *container.Container {
	c := container.New()
	c.Instance(sesmailer.SenderService, sender)
	c.Instance(sesmailer.RendererService, staticRenderer{})
	return c
}

func TestRegister(t *testing.T) {
	t.Parallel()

	t.Run("applies from and resolves collaborators from the container", func(t *testing.T) {
		t.Parallel()

		sender := &recordingSender{}
		c := newContainer(sender)
		c.Instance("mail.welcome", welcomeMail{})
		sesmailer.Register(c, email.Config{FromAddress: "noreply@x.com", FromName: "Example", Charset: "UTF-8"})

		m, err := sesmailer.Mailer(c)
		require.NoError(t, err)
		assert.False(t, m.Pretending())

		_, err = m.Send(context.Background(), "welcome", nil, email.Service("mail.welcome"))
		require.NoError(t, err)

		require.Len(t, sender.payloads, 1)
		p := sender.payloads[0]
		assert.Equal(t, "Example<noreply@x.com>", p.Source)
		assert.Equal(t, []string{"Alice<alice@x.com>"}, p.Destination.ToAddresses)
		assert.Equal(t, "UTF-8", p.Message.Subject.Charset)
	})

	t.Run("no from address leaves the sender unset", func(t *testing.T) {
		t.Parallel()

		c := newContainer(&recordingSender{})
		sesmailer.Register(c, email.Config{FromName: "Ignored"})

		m, err := sesmailer.Mailer(c)
		require.NoError(t, err)
		address, name := m.From()
		assert.Empty(t, address)
		assert.Empty(t, name)
	})

	t.Run("singleton with alias", func(t *testing.T) {
		t.Parallel()

		c := newContainer(&recordingSender{})
		sesmailer.Register(c, email.Config{})

		first, err := sesmailer.Mailer(c)
		require.NoError(t, err)
		second, err := container.Resolve[*email.Mailer](c, sesmailer.MailerAlias)
		require.NoError(t, err)
		assert.Same(t, first, second)
	})

	t.Run("pretend mode logs through the container logger", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		sender := &recordingSender{}
		c := newContainer(sender)
		c.Instance(sesmailer.LoggerService, slog.New(slog.NewTextHandler(&buf, nil)))
		c.Instance("mail.welcome", welcomeMail{})
		sesmailer.Register(c, email.Config{Pretend: true})

		m, err := sesmailer.Mailer(c)
		require.NoError(t, err)
		assert.True(t, m.Pretending())

		_, err = m.Send(context.Background(), "welcome", nil, email.Service("mail.welcome"))
		require.NoError(t, err)
		assert.Empty(t, sender.payloads)
		assert.Contains(t, buf.String(), "Pretending to mail message to: Alice<alice@x.com>")
	})

	t.Run("optional notifier and enqueuer", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		t.Cleanup(func() { _ = storage.Close() })
		enqueuer, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)

		var fired []string
		c := newContainer(&recordingSender{})
		c.Instance(sesmailer.EnqueuerService, enqueuer)
		c.Instance(sesmailer.NotifierService, email.NotifierFunc(func(_ context.Context, e email.Event) error {
			fired = append(fired, e.Name)
			return nil
		}))
		c.Instance(sesmailer.BuildersService, email.NewBuilders())
		c.Instance("mail.welcome", welcomeMail{})
		sesmailer.Register(c, email.Config{Queue: "mail"})

		m, err := sesmailer.Mailer(c)
		require.NoError(t, err)

		require.NoError(t, m.Later(context.Background(), time.Minute, "welcome", nil, email.Service("mail.welcome")))
		pending := storage.Tasks(queue.TaskStatusPending)
		require.Len(t, pending, 1)
		assert.Equal(t, "mail", pending[0].Queue)

		_, err = m.Send(context.Background(), "welcome", nil, email.Service("mail.welcome"))
		require.NoError(t, err)
		assert.Equal(t, []string{email.EventSending, email.EventSent}, fired)
	})

	t.Run("missing sender", func(t *testing.T) {
		t.Parallel()

		c := container.New()
		c.Instance(sesmailer.RendererService, staticRenderer{})
		sesmailer.Register(c, email.Config{})

		_, err := sesmailer.Mailer(c)
		require.ErrorIs(t, err, container.ErrServiceFactory)
		require.ErrorIs(t, err, container.ErrServiceNotFound)
	})

	t.Run("wrong service type", func(t *testing.T) {
		t.Parallel()

		c := newContainer(&recordingSender{})
		c.Instance(sesmailer.LoggerService, "not a logger")
		sesmailer.Register(c, email.Config{})

		_, err := sesmailer.Mailer(c)
		require.ErrorIs(t, err, container.ErrServiceType)
	})
}

func TestNewSender(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	sender, err := sesmailer.NewSender(ctx, email.Config{Driver: sesmailer.DriverFile, DevDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &email.DevSender{}, sender)

	sender, err = sesmailer.NewSender(ctx, email.Config{
		Driver:   sesmailer.DriverPostmark,
		Postmark: email.PostmarkConfig{ServerToken: "token"},
	})
	require.NoError(t, err)
	assert.IsType(t, &email.PostmarkClient{}, sender)

	sender, err = sesmailer.NewSender(ctx, email.Config{
		Driver: sesmailer.DriverSES,
		SES:    email.SESConfig{Region: "eu-west-1", AccessKeyID: "AKID", SecretAccessKey: "SECRET"},
	})
	require.NoError(t, err)
	assert.IsType(t, &email.SESClient{}, sender)

	_, err = sesmailer.NewSender(ctx, email.Config{Driver: sesmailer.DriverPostmark})
	require.ErrorIs(t, err, email.ErrInvalidConfig)

	_, err = sesmailer.NewSender(ctx, email.Config{Driver: "smtp"})
	require.ErrorIs(t, err, email.ErrInvalidConfig)
}

func TestNewArchive(t *testing.T) {
	t.Parallel()

	archive, err := sesmailer.NewArchive(context.Background(), email.Config{})
	require.NoError(t, err)
	assert.Nil(t, archive)

	archive, err = sesmailer.NewArchive(context.Background(), email.Config{
		SES:     email.SESConfig{Region: "eu-west-1", AccessKeyID: "AKID", SecretAccessKey: "SECRET"},
		Archive: email.ArchiveConfig{Bucket: "mail", Prefix: "sent"},
	})
	require.NoError(t, err)
	assert.NotNil(t, archive)
}
