package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mrz1836/postmark"
)

// ProviderPostmark names the Postmark transport in responses.
const ProviderPostmark = "postmark"

// PostmarkAPI is the Postmark operation used by PostmarkClient.
// *postmark.Client satisfies it.
type PostmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// PostmarkClient submits payloads through Postmark's transactional API.
type PostmarkClient struct {
	api PostmarkAPI
	tag string
}

// PostmarkOption configures a PostmarkClient.
type PostmarkOption func(*PostmarkClient)

// WithPostmarkAPI replaces the Postmark client, typically with a test double.
func WithPostmarkAPI(api PostmarkAPI) PostmarkOption {
	return func(c *PostmarkClient) {
		c.api = api
	}
}

// NewPostmarkClient creates a Postmark transport. The server token is
// required unless a client is injected.
func NewPostmarkClient(cfg PostmarkConfig, opts ...PostmarkOption) (*PostmarkClient, error) {
	c := &PostmarkClient{tag: cfg.Tag}
	for _, opt := range opts {
		opt(c)
	}
	if c.api != nil {
		return c, nil
	}

	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	c.api = postmark.NewClient(cfg.ServerToken, cfg.AccountToken)

	return c, nil
}

// SendEmail implements EmailSender. Postmark takes comma separated address
// lists, so each recipient slot is joined.
func (c *PostmarkClient) SendEmail(ctx context.Context, payload Payload) (*Response, error) {
	if payload.Source == "" {
		return nil, fmt.Errorf("%w: message has no sender", ErrInvalidArgument)
	}
	if len(payload.Recipients()) == 0 {
		return nil, fmt.Errorf("%w: message has no recipients", ErrInvalidArgument)
	}

	msg := postmark.Email{
		From:       payload.Source,
		Subject:    payload.Subject(),
		HTMLBody:   payload.HTMLBody(),
		TextBody:   payload.TextBody(),
		Tag:        c.tag,
		TrackOpens: payload.HTMLBody() != "",
	}
	if d := payload.Destination; d != nil {
		msg.To = strings.Join(d.ToAddresses, ",")
		msg.Cc = strings.Join(d.CcAddresses, ",")
		msg.Bcc = strings.Join(d.BccAddresses, ",")
	}

	resp, err := c.api.SendEmail(ctx, msg)
	if err != nil {
		return nil, errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return nil, errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}

	return &Response{MessageID: resp.MessageID, Provider: ProviderPostmark}, nil
}
