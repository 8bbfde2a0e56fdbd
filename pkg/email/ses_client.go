package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"
)

// ProviderSES names the SES transport in responses.
const ProviderSES = "ses"

// SendEmailAPI is the SES v2 operation used by SESClient.
// *sesv2.Client satisfies it.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESClient submits payloads through the SES v2 SendEmail API.
type SESClient struct {
	api              SendEmailAPI
	configurationSet string
}

// SESOption configures an SESClient.
type SESOption func(*SESClient)

// WithSESAPI replaces the SES client, typically with a test double.
// No AWS configuration is loaded when it is set.
func WithSESAPI(api SendEmailAPI) SESOption {
	return func(c *SESClient) {
		c.api = api
	}
}

// NewSESClient creates an SES transport. Static credentials are used when
// both keys are set, otherwise the default AWS credential chain applies.
func NewSESClient(ctx context.Context, cfg SESConfig, opts ...SESOption) (*SESClient, error) {
	c := &SESClient{configurationSet: cfg.ConfigurationSet}
	for _, opt := range opts {
		opt(c)
	}
	if c.api != nil {
		return c, nil
	}

	if cfg.Region == "" {
		return nil, fmt.Errorf("%w: SES region is required", ErrInvalidConfig)
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("failed to load AWS config: %w", err))
	}

	c.api = sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return c, nil
}

// SendEmail implements EmailSender.
func (c *SESClient) SendEmail(ctx context.Context, payload Payload) (*Response, error) {
	if payload.Source == "" {
		return nil, fmt.Errorf("%w: message has no sender", ErrInvalidArgument)
	}
	if len(payload.Recipients()) == 0 {
		return nil, fmt.Errorf("%w: message has no recipients", ErrInvalidArgument)
	}

	out, err := c.api.SendEmail(ctx, c.buildInput(payload))
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return nil, errors.Join(ErrFailedToSendEmail,
				fmt.Errorf("ses %s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage()), err)
		}
		return nil, errors.Join(ErrFailedToSendEmail, err)
	}

	return &Response{MessageID: aws.ToString(out.MessageId), Provider: ProviderSES}, nil
}

func (c *SESClient) buildInput(p Payload) *sesv2.SendEmailInput {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(p.Source),
		Content: &types.EmailContent{
			Simple: &types.Message{},
		},
	}

	if p.Destination != nil {
		input.Destination = &types.Destination{
			ToAddresses:  p.Destination.ToAddresses,
			CcAddresses:  p.Destination.CcAddresses,
			BccAddresses: p.Destination.BccAddresses,
		}
	}

	if p.Message != nil {
		simple := input.Content.Simple
		simple.Subject = sesContent(p.Message.Subject)
		if simple.Subject == nil {
			simple.Subject = &types.Content{Data: aws.String("")}
		}
		if p.Message.Body != nil {
			simple.Body = &types.Body{
				Text: sesContent(p.Message.Body.Text),
				Html: sesContent(p.Message.Body.Html),
			}
		}
	}

	if c.configurationSet != "" {
		input.ConfigurationSetName = aws.String(c.configurationSet)
	}

	return input
}

func sesContent(d *Data) *types.Content {
	if d == nil {
		return nil
	}
	content := &types.Content{Data: aws.String(d.Data)}
	if d.Charset != "" {
		content.Charset = aws.String(d.Charset)
	}
	return content
}
