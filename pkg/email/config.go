package email

// Config holds the mailer configuration.
// FromAddress is optional; without it every callback must set a sender.
type Config struct {
	Driver      string `env:"MAIL_DRIVER" envDefault:"ses"` // ses, postmark or file
	FromAddress string `env:"MAIL_FROM_ADDRESS"`
	FromName    string `env:"MAIL_FROM_NAME"`
	Pretend     bool   `env:"MAIL_PRETEND" envDefault:"false"`
	Queue       string `env:"MAIL_QUEUE" envDefault:"mail"`
	Charset     string `env:"MAIL_CHARSET" envDefault:"UTF-8"`

	SES      SESConfig
	Postmark PostmarkConfig
	DevDir   string `env:"MAIL_DEV_DIR" envDefault:"./tmp/mail"`
	Archive  ArchiveConfig
}

// SESConfig configures the SES v2 transport. Empty credentials fall back to
// the default AWS credential chain.
type SESConfig struct {
	Region           string `env:"AWS_REGION" envDefault:"us-east-1"`
	AccessKeyID      string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey  string `env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint         string `env:"SES_ENDPOINT"`
	ConfigurationSet string `env:"SES_CONFIGURATION_SET"`
}

// PostmarkConfig configures the Postmark transport.
type PostmarkConfig struct {
	ServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	AccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	Tag          string `env:"POSTMARK_TAG"`
}

// ArchiveConfig configures the S3 archive of sent messages. Empty Bucket
// disables it.
type ArchiveConfig struct {
	Bucket         string `env:"MAIL_ARCHIVE_BUCKET"`
	Prefix         string `env:"MAIL_ARCHIVE_PREFIX" envDefault:"sent"`
	Region         string `env:"MAIL_ARCHIVE_REGION"`
	Endpoint       string `env:"MAIL_ARCHIVE_ENDPOINT"`
	ForcePathStyle bool   `env:"MAIL_ARCHIVE_FORCE_PATH_STYLE"`
}
