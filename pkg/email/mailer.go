package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/dmitrymomot/sesmailer/pkg/logger"
)

// Mailer renders views, lets a callback populate the message and submits it
// through an EmailSender, either right away or from a queued job.
// A Mailer is immutable after New and safe for concurrent use.
type Mailer struct {
	sender   EmailSender
	renderer Renderer

	fromAddress string
	fromName    string
	charset     string
	pretend     bool

	logger       *slog.Logger
	notifier     Notifier
	container    Resolver
	enqueuer     Enqueuer
	builders     *Builders
	defaultQueue string
}

// Option configures a Mailer.
type Option func(*Mailer)

// WithFrom sets the sender applied to every new message.
func WithFrom(address, name string) Option {
	return func(m *Mailer) {
		m.fromAddress = address
		m.fromName = name
	}
}

// WithCharset sets the charset attached to subject and body data.
func WithCharset(charset string) Option {
	return func(m *Mailer) {
		m.charset = charset
	}
}

// WithPretend disables submission; messages are logged instead.
func WithPretend(pretend bool) Option {
	return func(m *Mailer) {
		m.pretend = pretend
	}
}

// WithLogger sets the logger used for pretend mode and notifier failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mailer) {
		m.logger = logger
	}
}

// WithNotifier sets the sink for mailer.sending and mailer.sent events.
func WithNotifier(n Notifier) Option {
	return func(m *Mailer) {
		m.notifier = n
	}
}

// WithContainer sets the service lookup used by Service callbacks.
func WithContainer(r Resolver) Option {
	return func(m *Mailer) {
		m.container = r
	}
}

// WithEnqueuer enables Queue and Later.
func WithEnqueuer(e Enqueuer) Option {
	return func(m *Mailer) {
		m.enqueuer = e
	}
}

// WithBuilders sets the registry used by Named callbacks.
func WithBuilders(b *Builders) Option {
	return func(m *Mailer) {
		m.builders = b
	}
}

// WithDefaultQueue sets the queue used by Queue and Later.
// Empty defers to the enqueuer's default.
func WithDefaultQueue(name string) Option {
	return func(m *Mailer) {
		m.defaultQueue = name
	}
}

// New creates a Mailer. Sender and renderer are required.
func New(sender EmailSender, renderer Renderer, opts ...Option) (*Mailer, error) {
	if sender == nil {
		return nil, fmt.Errorf("%w: email sender is required", ErrInvalidConfig)
	}
	if renderer == nil {
		return nil, fmt.Errorf("%w: renderer is required", ErrInvalidConfig)
	}

	m := &Mailer{
		sender:   sender,
		renderer: renderer,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Pretending reports whether submission is disabled.
func (m *Mailer) Pretending() bool {
	return m.pretend
}

// From returns the default sender address and name.
func (m *Mailer) From() (address, name string) {
	return m.fromAddress, m.fromName
}

// Send renders view with data, lets cb populate the message and submits it.
// Views are rendered with data plus the message under the "message" key.
// Errors from the email API are returned unchanged.
func (m *Mailer) Send(ctx context.Context, view any, data map[string]any, cb Callback) (*Response, error) {
	v, err := ParseView(view)
	if err != nil {
		return nil, err
	}

	msg := m.createMessage()

	if err := m.callMessageBuilder(ctx, cb, msg); err != nil {
		return nil, err
	}

	viewData := make(map[string]any, len(data)+1)
	maps.Copy(viewData, data)
	viewData["message"] = msg

	if err := m.addContent(ctx, msg, v, viewData); err != nil {
		return nil, err
	}

	return m.sendMessage(ctx, msg)
}

func (m *Mailer) createMessage() *Message {
	msg := NewMessage().WithCharset(m.charset)
	if m.fromAddress != "" {
		msg.SetSender(m.fromAddress, m.fromName)
	}
	return msg
}

func (m *Mailer) callMessageBuilder(ctx context.Context, cb Callback, msg *Message) error {
	switch cb.kind {
	case callbackFunc:
		return cb.fn(ctx, msg)
	case callbackService:
		return m.callCollaborator(ctx, cb.name, msg)
	case callbackBuilder:
		return m.builders.build(ctx, cb.name, msg, cb.args)
	default:
		return ErrInvalidCallback
	}
}

func (m *Mailer) callCollaborator(ctx context.Context, name string, msg *Message) error {
	if m.container == nil {
		return ErrContainerNotSet
	}

	svc, err := m.container.Resolve(name)
	if err != nil {
		return errors.Join(fmt.Errorf("%w: %s", ErrCollaboratorNotFound, name), err)
	}

	collaborator, ok := svc.(Collaborator)
	if !ok {
		return fmt.Errorf("%w: %s is %T", ErrNotCollaborator, name, svc)
	}

	return collaborator.Mail(ctx, msg)
}

func (m *Mailer) addContent(ctx context.Context, msg *Message, v View, data map[string]any) error {
	if v.HTML != "" {
		html, err := m.renderer.Render(ctx, v.HTML, data)
		if err != nil {
			return errors.Join(fmt.Errorf("%w: %s", ErrFailedToRender, v.HTML), err)
		}
		msg.SetHTMLBody(html)
	}

	if v.Text != "" {
		text, err := m.renderer.Render(ctx, v.Text, data)
		if err != nil {
			return errors.Join(fmt.Errorf("%w: %s", ErrFailedToRender, v.Text), err)
		}
		msg.SetTextBody(text)
	}

	return nil
}

func (m *Mailer) sendMessage(ctx context.Context, msg *Message) (*Response, error) {
	m.fire(ctx, Event{Name: EventSending, Message: msg})

	resp := &Response{}
	if !m.pretend {
		var err error
		resp, err = m.sender.SendEmail(ctx, msg.Payload())
		if err != nil {
			return nil, err
		}
		if resp == nil {
			resp = &Response{}
		}
	} else if m.logger != nil {
		m.logMessage(ctx, msg)
	}

	m.fire(ctx, Event{Name: EventSent, Message: msg, Response: resp})

	return resp, nil
}

func (m *Mailer) logMessage(ctx context.Context, msg *Message) {
	to := msg.Recipients(RecipientTo)
	m.logger.InfoContext(ctx, "Pretending to mail message to: "+strings.Join(to, ", "),
		logger.Recipients(to),
		logger.Subject(msg.Payload().Subject()),
	)
}

func (m *Mailer) fire(ctx context.Context, e Event) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Fire(ctx, e); err != nil && m.logger != nil {
		m.logger.WarnContext(ctx, "mailer notifier failed",
			logger.Event(e.Name),
			logger.Error(err),
		)
	}
}
