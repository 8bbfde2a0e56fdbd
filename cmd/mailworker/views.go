package main

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/sesmailer/pkg/email"
	"github.com/dmitrymomot/sesmailer/pkg/email/templates"
)

// Views and builder registered by the worker. Producers that enqueue from
// other processes pre-render bodies and pass them as view data, so the
// worker only needs passthrough views.
const (
	viewRawHTML     = "raw.html"
	viewRawText     = "raw.text"
	builderEnvelope = "envelope"
)

// envelope carries the addressing of a queued message.
type envelope struct {
	From     string   `json:"from,omitempty"`
	FromName string   `json:"from_name,omitempty"`
	To       []string `json:"to"`
	Cc       []string `json:"cc,omitempty"`
	Bcc      []string `json:"bcc,omitempty"`
	Subject  string   `json:"subject"`
}

func newViews() *templates.Registry {
	return templates.NewRegistry().
		MustRegister(viewRawHTML, func(data map[string]any) templ.Component {
			return templ.Raw(stringValue(data, "html_body"))
		}).
		MustRegister(viewRawText, func(data map[string]any) templ.Component {
			text := stringValue(data, "text_body")
			return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
				_, err := io.WriteString(w, text)
				return err
			})
		})
}

func registerBuilders(b *email.Builders) {
	email.MustRegisterBuilder(b, builderEnvelope, buildEnvelope)
}

func buildEnvelope(_ context.Context, m *email.Message, env envelope) error {
	if len(env.To) == 0 {
		return fmt.Errorf("%w: envelope has no recipients", email.ErrInvalidArgument)
	}
	if env.From != "" {
		m.SetSender(env.From, env.FromName)
	}
	m.SetRecipients(email.RecipientTo, env.To)
	if len(env.Cc) > 0 {
		m.Cc(env.Cc...)
	}
	if len(env.Bcc) > 0 {
		m.Bcc(env.Bcc...)
	}
	m.SetSubject(env.Subject)
	return nil
}

func stringValue(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}
