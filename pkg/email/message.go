package email

import (
	"fmt"
	"slices"
	"strings"
)

// RecipientKind selects one of the destination slots.
type RecipientKind string

const (
	RecipientTo  RecipientKind = "to"
	RecipientCc  RecipientKind = "cc"
	RecipientBcc RecipientKind = "bcc"
)

// ParseRecipientKind converts a string into a RecipientKind.
func ParseRecipientKind(s string) (RecipientKind, error) {
	switch k := RecipientKind(strings.ToLower(strings.TrimSpace(s))); k {
	case RecipientTo, RecipientCc, RecipientBcc:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRecipientKind, s)
	}
}

// Message accumulates a provider-ready Payload through a fluent API.
// It performs no I/O and never fails; a message is not safe for concurrent
// mutation and is meant to live for a single send.
type Message struct {
	payload Payload
	charset string
}

// NewMessage returns an empty message.
func NewMessage() *Message {
	return &Message{}
}

// WithCharset sets the charset attached to subject and body data set afterwards.
func (m *Message) WithCharset(charset string) *Message {
	m.charset = charset
	return m
}

// SetSender sets the Source address. The last call wins.
func (m *Message) SetSender(email, name string) *Message {
	m.payload.Source = FormatAddress(email, name)
	return m
}

// From is an alias of SetSender.
func (m *Message) From(email, name string) *Message {
	return m.SetSender(email, name)
}

// Sender returns the formatted Source address.
func (m *Message) Sender() string {
	return m.payload.Source
}

// SetRecipients replaces the whole slot with the given addresses.
// Addresses are stored as given, no formatting is applied.
func (m *Message) SetRecipients(kind RecipientKind, addresses []string) *Message {
	slot := m.slot(kind)
	if slot == nil {
		return m
	}
	*slot = slices.Clone(addresses)
	if *slot == nil {
		*slot = []string{}
	}
	return m
}

// AddRecipient appends a single formatted address to the slot, creating it if absent.
// An empty name stores the bare address without angle brackets.
func (m *Message) AddRecipient(kind RecipientKind, address, name string) *Message {
	slot := m.slot(kind)
	if slot == nil {
		return m
	}
	*slot = append(*slot, FormatAddress(address, name))
	return m
}

// To appends a single recipient to the "to" slot. With an empty name the
// bare address is stored, e.g. "jane@example.com".
func (m *Message) To(address, name string) *Message {
	return m.AddRecipient(RecipientTo, address, name)
}

// Cc replaces the "cc" slot.
func (m *Message) Cc(addresses ...string) *Message {
	return m.SetRecipients(RecipientCc, addresses)
}

// Bcc replaces the "bcc" slot.
func (m *Message) Bcc(addresses ...string) *Message {
	return m.SetRecipients(RecipientBcc, addresses)
}

// Recipients returns a copy of the slot, or an empty slice when unset.
func (m *Message) Recipients(kind RecipientKind) []string {
	if m.payload.Destination == nil {
		return []string{}
	}
	var src []string
	switch kind {
	case RecipientTo:
		src = m.payload.Destination.ToAddresses
	case RecipientCc:
		src = m.payload.Destination.CcAddresses
	case RecipientBcc:
		src = m.payload.Destination.BccAddresses
	}
	if len(src) == 0 {
		return []string{}
	}
	return slices.Clone(src)
}

// SetSubject stores the subject.
func (m *Message) SetSubject(text string) *Message {
	m.content().Subject = m.data(text)
	return m
}

// SetTextBody stores the plain text body, leaving the html body untouched.
func (m *Message) SetTextBody(text string) *Message {
	m.body().Text = m.data(text)
	return m
}

// SetHTMLBody stores the html body, leaving the plain text body untouched.
func (m *Message) SetHTMLBody(html string) *Message {
	m.body().Html = m.data(html)
	return m
}

// Payload returns a deep copy of the assembled payload.
func (m *Message) Payload() Payload {
	return m.payload.clone()
}

// FormatAddress renders "name<email>" when a name is given, otherwise the bare email.
func FormatAddress(email, name string) string {
	if name == "" {
		return email
	}
	return name + "<" + email + ">"
}

func (m *Message) slot(kind RecipientKind) *[]string {
	switch kind {
	case RecipientTo, RecipientCc, RecipientBcc:
	default:
		return nil
	}
	if m.payload.Destination == nil {
		m.payload.Destination = &Destination{}
	}
	switch kind {
	case RecipientCc:
		return &m.payload.Destination.CcAddresses
	case RecipientBcc:
		return &m.payload.Destination.BccAddresses
	default:
		return &m.payload.Destination.ToAddresses
	}
}

func (m *Message) content() *Content {
	if m.payload.Message == nil {
		m.payload.Message = &Content{}
	}
	return m.payload.Message
}

func (m *Message) body() *Body {
	c := m.content()
	if c.Body == nil {
		c.Body = &Body{}
	}
	return c.Body
}

func (m *Message) data(s string) *Data {
	return &Data{Data: s, Charset: m.charset}
}
