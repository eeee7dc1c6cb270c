package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3MirrorConfig configures archival mirroring of written artifacts.
type S3MirrorConfig struct {
	BucketName  string
	Region      string
	AccessKeyID string
	SecretKey   string
	Endpoint    string
	PathPrefix  string
}

// S3Mirror uploads a copy of an on-disk artifact or report file under a
// date-partitioned key. Only files passed to Upload are mirrored;
// Write/WriteReport do not call it.
type S3Mirror struct {
	config S3MirrorConfig
	client *s3.Client
}

// NewS3Mirror builds an S3 client from cfg the same way the teacher's S3
// logging callback does: explicit static credentials when given, otherwise
// the default AWS credential chain, with an optional custom endpoint for
// S3-compatible stores.
func NewS3Mirror(ctx context.Context, cfg S3MirrorConfig) (*S3Mirror, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("artifacts: s3 mirror bucket_name is required")
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("artifacts: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Mirror{
		config: cfg,
		client: s3.NewFromConfig(awsCfg, s3Opts...),
	}, nil
}

// Upload reads localPath and mirrors it to the bucket under a
// date-partitioned key derived from name.
func (m *S3Mirror) Upload(ctx context.Context, localPath, provider, name string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("artifacts: read %s for mirroring: %w", localPath, err)
	}

	now := time.Now().UTC()
	key := m.generateKey(now, provider, name)

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.config.BucketName),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("artifacts: upload %s: %w", key, err)
	}
	return nil
}

func (m *S3Mirror) generateKey(t time.Time, provider, name string) string {
	datePrefix := fmt.Sprintf("year=%d/month=%02d/day=%02d", t.Year(), t.Month(), t.Day())
	filename := fmt.Sprintf("%s/%s", provider, name)
	if m.config.PathPrefix != "" {
		return path.Join(m.config.PathPrefix, datePrefix, filename)
	}
	return path.Join(datePrefix, filename)
}
