package sesmailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/sesmailer/pkg/container"
	"github.com/dmitrymomot/sesmailer/pkg/email"
)

// ServiceName is the container name of the mailer.
const ServiceName = "sesmailer"

// Container names the mailer resolves its collaborators from.
const (
	MailerAlias     = "email.mailer"
	SenderService   = "email.sender"
	RendererService = "email.renderer"
	NotifierService = "email.notifier"
	BuildersService = "email.builders"
	LoggerService   = "logger"
	EnqueuerService = "queue.enqueuer"
)

// Drivers accepted by NewSender.
const (
	DriverSES      = "ses"
	DriverPostmark = "postmark"
	DriverFile     = "file"
)

// Register binds the mailer as a singleton under ServiceName and aliases
// MailerAlias to it. The sender and renderer must be registered; the
// notifier, logger, enqueuer and builders are used when present.
func Register(c *container.Container, cfg email.Config) {
	c.Singleton(ServiceName, func(c *container.Container) (any, error) {
		return build(c, cfg)
	})
	c.Alias(MailerAlias, ServiceName)
}

// Mailer resolves the registered mailer.
func Mailer(c *container.Container) (*email.Mailer, error) {
	return container.Resolve[*email.Mailer](c, ServiceName)
}

func build(c *container.Container, cfg email.Config) (*email.Mailer, error) {
	sender, err := container.Resolve[email.EmailSender](c, SenderService)
	if err != nil {
		return nil, err
	}
	renderer, err := container.Resolve[email.Renderer](c, RendererService)
	if err != nil {
		return nil, err
	}

	opts := []email.Option{
		email.WithPretend(cfg.Pretend),
		email.WithCharset(cfg.Charset),
		email.WithDefaultQueue(cfg.Queue),
		email.WithContainer(c),
	}
	if cfg.FromAddress != "" {
		opts = append(opts, email.WithFrom(cfg.FromAddress, cfg.FromName))
	}

	notifier, err := container.Optional[email.Notifier](c, NotifierService)
	if err != nil {
		return nil, err
	}
	if notifier != nil {
		opts = append(opts, email.WithNotifier(notifier))
	}

	logger, err := container.Optional[*slog.Logger](c, LoggerService)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		opts = append(opts, email.WithLogger(logger))
	}

	enqueuer, err := container.Optional[email.Enqueuer](c, EnqueuerService)
	if err != nil {
		return nil, err
	}
	if enqueuer != nil {
		opts = append(opts, email.WithEnqueuer(enqueuer))
	}

	builders, err := container.Optional[*email.Builders](c, BuildersService)
	if err != nil {
		return nil, err
	}
	if builders != nil {
		opts = append(opts, email.WithBuilders(builders))
	}

	return email.New(sender, renderer, opts...)
}

// NewSender creates the transport selected by cfg.Driver.
func NewSender(ctx context.Context, cfg email.Config) (email.EmailSender, error) {
	switch cfg.Driver {
	case DriverSES, "":
		return email.NewSESClient(ctx, cfg.SES)
	case DriverPostmark:
		return email.NewPostmarkClient(cfg.Postmark)
	case DriverFile:
		return email.NewDevSender(cfg.DevDir), nil
	default:
		return nil, fmt.Errorf("%w: unknown mail driver %q", email.ErrInvalidConfig, cfg.Driver)
	}
}

// NewArchive creates the S3 archive of sent messages, or nil when no bucket
// is configured. The archive falls back to the SES region and credentials.
func NewArchive(ctx context.Context, cfg email.Config) (*email.S3Archive, error) {
	if cfg.Archive.Bucket == "" {
		return nil, nil
	}

	archiveCfg := cfg.Archive
	if archiveCfg.Region == "" {
		archiveCfg.Region = cfg.SES.Region
	}

	var opts []email.S3ArchiveOption
	if cfg.SES.AccessKeyID != "" && cfg.SES.SecretAccessKey != "" {
		opts = append(opts, email.WithArchiveCredentials(cfg.SES.AccessKeyID, cfg.SES.SecretAccessKey))
	}

	return email.NewS3Archive(ctx, archiveCfg, opts...)
}
