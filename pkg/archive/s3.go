package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// S3Config holds bucket and endpoint settings. Credentials come from the
// default AWS chain.
type S3Config struct {
	Region    string
	Bucket    string
	Endpoint  string // optional, e.g. MinIO
	PathStyle bool
}

// S3 archives uploads to an S3-compatible bucket.
type S3 struct {
	client *s3.Client
	bucket string
	logger ectologger.Logger
}

var _ Archive = (*S3)(nil)

func NewS3(ctx context.Context, cfg S3Config, logger ectologger.Logger, optFns ...func(*s3.Options)) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		for _, fn := range optFns {
			fn(o)
		}
	})
	return &S3{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

func (s *S3) Put(ctx context.Context, upload Upload) (Object, error) {
	ctx, span := tracing.StartSpan(ctx, "S3Archive.Put")
	defer span.End()

	key := Key(upload, uuid.New())
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(upload.Data),
		ContentLength: aws.Int64(int64(len(upload.Data))),
		Metadata: map[string]string{
			"kind":     string(upload.Kind),
			"filename": upload.Filename,
		},
	}
	if upload.ContentType != "" {
		input.ContentType = aws.String(upload.ContentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		span.RecordError(err)
		metrics.ArchiveUploadsTotal.WithLabelValues(string(DriverS3), "error").Inc()
		s.logger.WithContext(ctx).WithError(err).Errorf("failed to archive %s upload to s3://%s/%s", upload.Kind, s.bucket, key)
		return Object{}, fmt.Errorf("put %s: %w", key, err)
	}

	metrics.ArchiveUploadsTotal.WithLabelValues(string(DriverS3), "success").Inc()
	s.logger.WithContext(ctx).Debugf("Archived %s upload to s3://%s/%s", upload.Kind, s.bucket, key)
	return Object{Key: key, Size: int64(len(upload.Data))}, nil
}
