package writer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "clawdash/config"
	"clawdash/logger"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer mirrors the snapshot to a single object key.
type S3Writer struct {
	client putObjectAPI
	bucket string
	key    string
	log    *logger.Entry
}

func NewS3Writer(ctx context.Context, cfg appconfig.S3Config) (*S3Writer, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	w := newS3Writer(client, cfg.Bucket, cfg.Key)
	w.log.WithFields(logger.Fields{
		"bucket":     cfg.Bucket,
		"key":        cfg.Key,
		"region":     cfg.Region,
		"endpoint":   cfg.Endpoint,
		"path_style": cfg.PathStyle,
	}).Info("s3 writer initialized")
	return w, nil
}

func newS3Writer(client putObjectAPI, bucket, key string) *S3Writer {
	return &S3Writer{
		client: client,
		bucket: bucket,
		key:    key,
		log:    logger.GetLogger().WithComponent("s3_writer"),
	}
}

func (w *S3Writer) Name() string { return "s3" }

func (w *S3Writer) Publish(ctx context.Context, payload []byte, meta Meta) error {
	input := &s3.PutObjectInput{
		Bucket:       aws.String(w.bucket),
		Key:          aws.String(w.key),
		Body:         bytes.NewReader(payload),
		ContentType:  aws.String("application/json"),
		CacheControl: aws.String("no-cache"),
		Metadata: map[string]string{
			"run-id":           meta.RunID,
			"snapshot-time":    meta.Timestamp,
			"clawdash-version": meta.Version,
		},
	}
	if _, err := w.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload to S3 bucket %s: %w", w.bucket, err)
	}
	w.log.WithRun(meta.RunID).WithFields(logger.Fields{"s3_key": w.key, "data_size": len(payload)}).Debug("snapshot uploaded")
	return nil
}

func (w *S3Writer) Close() error { return nil }
