package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3PutObjectAPI is the S3 operation used by S3Archive.
type S3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive stores every sent message as a JSON object in a bucket.
// It is a Notifier that only reacts to EventSent; register it directly or
// run it with Listen on a broadcaster.
type S3Archive struct {
	client S3PutObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

// S3ArchiveOption configures an S3Archive.
type S3ArchiveOption func(*s3ArchiveOptions)

type s3ArchiveOptions struct {
	client          S3PutObjectAPI
	accessKeyID     string
	secretAccessKey string
}

// WithS3PutObjectAPI replaces the S3 client, typically with a test double.
func WithS3PutObjectAPI(client S3PutObjectAPI) S3ArchiveOption {
	return func(o *s3ArchiveOptions) {
		o.client = client
	}
}

// WithArchiveCredentials uses static credentials instead of the default chain.
func WithArchiveCredentials(accessKeyID, secretAccessKey string) S3ArchiveOption {
	return func(o *s3ArchiveOptions) {
		o.accessKeyID = accessKeyID
		o.secretAccessKey = secretAccessKey
	}
}

// NewS3Archive creates an archive writing to cfg.Bucket.
func NewS3Archive(ctx context.Context, cfg ArchiveConfig, opts ...S3ArchiveOption) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: archive bucket is required", ErrInvalidConfig)
	}

	options := &s3ArchiveOptions{}
	for _, opt := range opts {
		opt(options)
	}

	a := &S3Archive{
		client: options.client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		now:    time.Now,
	}
	if a.client != nil {
		return a, nil
	}

	if cfg.Region == "" {
		return nil, fmt.Errorf("%w: archive region is required", ErrInvalidConfig)
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if options.accessKeyID != "" && options.secretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(options.accessKeyID, options.secretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("failed to load AWS config: %w", err))
	}

	a.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return a, nil
}

type archiveRecord struct {
	MessageID  string    `json:"message_id,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	ArchivedAt time.Time `json:"archived_at"`
	Payload    Payload   `json:"payload"`
}

// Fire implements Notifier.
func (a *S3Archive) Fire(ctx context.Context, e Event) error {
	if e.Name != EventSent || e.Message == nil {
		return nil
	}
	_, err := a.Store(ctx, e.Message.Payload(), e.Response)
	return err
}

// Store writes payload and resp under prefix/YYYY/MM/DD/<id>.json and
// returns the object key. Pretend sends have no message id; a random one
// is used.
func (a *S3Archive) Store(ctx context.Context, payload Payload, resp *Response) (string, error) {
	now := a.now().UTC()
	record := archiveRecord{ArchivedAt: now, Payload: payload}
	if resp != nil {
		record.MessageID = resp.MessageID
		record.Provider = resp.Provider
	}

	id := record.MessageID
	if id == "" {
		id = uuid.NewString()
	}
	key := path.Join(a.prefix, now.Format("2006/01/02"), id+".json")

	body, err := json.Marshal(record)
	if err != nil {
		return "", errors.Join(ErrArchiveFailed, err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", errors.Join(ErrArchiveFailed, fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err))
	}

	return key, nil
}
