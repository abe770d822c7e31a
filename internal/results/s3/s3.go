// Package s3 archives run reports as JSON objects in an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/fruitsalade/renterprobe/internal/harness"
	"github.com/fruitsalade/renterprobe/internal/logging"
)

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string // empty for AWS itself
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Region    string
}

// Archive writes reports to a bucket.
type Archive struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// New creates an archive. Static credentials are used when an access key is
// configured, the default AWS chain otherwise.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // MinIO
		}
	})

	a := &Archive{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, logger: logger}
	if err := a.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Archive) ensureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}
	if _, createErr := a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)}); createErr != nil {
		return fmt.Errorf("bucket %s does not exist and cannot create: %w", a.bucket, createErr)
	}
	a.logger.Info("created report bucket", logging.String("bucket", a.bucket))
	return nil
}

// Name implements results.Sink.
func (a *Archive) Name() string { return "s3" }

// Key returns the object key a report is stored under:
// <prefix>/<yyyy>/<mm>/<dd>/<run id>.json.
func Key(prefix string, rep *harness.Report) string {
	return path.Join(prefix, rep.StartedAt.UTC().Format("2006/01/02"), rep.RunID+".json")
}

// Save uploads the report.
func (a *Archive) Save(ctx context.Context, rep *harness.Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	key := Key(a.prefix, rep)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	a.logger.Info("report archived",
		logging.String("bucket", a.bucket),
		logging.String("key", key),
	)
	return nil
}

// Load reads back a stored report.
func (a *Archive) Load(ctx context.Context, key string) (*harness.Report, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	var rep harness.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &rep, nil
}
