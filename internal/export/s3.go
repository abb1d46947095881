package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// S3Config holds the export bucket settings.
type S3Config struct {
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	PresignExpiry   time.Duration
}

// S3Uploader stores score exports in S3 and hands out presigned download links.
type S3Uploader struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewS3Uploader uses static credentials when both keys are set, otherwise the default chain.
func NewS3Uploader(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3Uploader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("export bucket not configured")
	}
	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	logger.Info("score export to s3 enabled", zap.String("bucket", cfg.Bucket), zap.String("region", cfg.Region))
	return &S3Uploader{
		client:   client,
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// ObjectKey returns {prefix}/scores-YYYYMMDD-HHMMSS.csv for the given time.
func ObjectKey(prefix string, at time.Time) string {
	return path.Join(prefix, "scores-"+at.UTC().Format("20060102-150405")+".csv")
}

// Upload stores body and returns a presigned GET URL for it.
func (u *S3Uploader) Upload(ctx context.Context, body []byte) (string, error) {
	key := ObjectKey(u.cfg.Prefix, u.now())
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	expiry := u.cfg.PresignExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	req, err := s3.NewPresignClient(u.client).PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	u.logger.Info("score export uploaded", zap.String("key", key), zap.Int("bytes", len(body)))
	return req.URL, nil
}
