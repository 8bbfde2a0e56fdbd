package email

import "slices"

// Payload is the provider-shaped envelope submitted to the email API.
// Field names follow the SES SendEmail request so the JSON form can be
// handed to any client that speaks that envelope.
type Payload struct {
	Source      string       `json:"Source,omitempty"`
	Destination *Destination `json:"Destination,omitempty"`
	Message     *Content     `json:"Message,omitempty"`
}

// Destination holds the recipient slots. A slot is nil until populated.
type Destination struct {
	ToAddresses  []string `json:"ToAddresses,omitempty"`
	CcAddresses  []string `json:"CcAddresses,omitempty"`
	BccAddresses []string `json:"BccAddresses,omitempty"`
}

// Content holds the subject and the body variants.
type Content struct {
	Subject *Data `json:"Subject,omitempty"`
	Body    *Body `json:"Body,omitempty"`
}

// Body holds the optional text and html variants.
type Body struct {
	Text *Data `json:"Text,omitempty"`
	Html *Data `json:"Html,omitempty"`
}

// Data is the charset/data envelope the provider requires around every string.
type Data struct {
	Data    string `json:"Data"`
	Charset string `json:"Charset,omitempty"`
}

// Recipients returns every address in the destination, in to/cc/bcc order.
func (p Payload) Recipients() []string {
	if p.Destination == nil {
		return nil
	}
	out := make([]string, 0, len(p.Destination.ToAddresses)+len(p.Destination.CcAddresses)+len(p.Destination.BccAddresses))
	out = append(out, p.Destination.ToAddresses...)
	out = append(out, p.Destination.CcAddresses...)
	out = append(out, p.Destination.BccAddresses...)
	return out
}

// Subject returns the subject text or an empty string.
func (p Payload) Subject() string {
	if p.Message == nil || p.Message.Subject == nil {
		return ""
	}
	return p.Message.Subject.Data
}

// TextBody returns the plain text body or an empty string.
func (p Payload) TextBody() string {
	if p.Message == nil || p.Message.Body == nil || p.Message.Body.Text == nil {
		return ""
	}
	return p.Message.Body.Text.Data
}

// HTMLBody returns the html body or an empty string.
func (p Payload) HTMLBody() string {
	if p.Message == nil || p.Message.Body == nil || p.Message.Body.Html == nil {
		return ""
	}
	return p.Message.Body.Html.Data
}

func (p Payload) clone() Payload {
	out := Payload{Source: p.Source}
	if p.Destination != nil {
		out.Destination = &Destination{
			ToAddresses:  slices.Clone(p.Destination.ToAddresses),
			CcAddresses:  slices.Clone(p.Destination.CcAddresses),
			BccAddresses: slices.Clone(p.Destination.BccAddresses),
		}
	}
	if p.Message != nil {
		out.Message = &Content{
			Subject: p.Message.Subject.clone(),
		}
		if p.Message.Body != nil {
			out.Message.Body = &Body{
				Text: p.Message.Body.Text.clone(),
				Html: p.Message.Body.Html.clone(),
			}
		}
	}
	return out
}

func (d *Data) clone() *Data {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
