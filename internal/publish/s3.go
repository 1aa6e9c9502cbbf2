// Package publish copies run artifacts to object storage.
package publish

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"ragbench/internal/config"
)

// objectPutter is the part of the S3 client used here.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads files under s3://bucket/prefix/.
type S3 struct {
	client objectPutter
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3 builds a client from the default AWS credential chain.
func NewS3(ctx context.Context, cfg config.S3Config, logger *zap.Logger) (*S3, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3{client: s3.NewFromConfig(awsCfg), bucket: cfg.Bucket, prefix: cfg.Prefix, logger: logger}, nil
}

// Key returns the object key for file in the run directory rel.
func (p *S3) Key(rel, file string) string {
	return path.Join(p.prefix, filepath.ToSlash(rel), filepath.Base(file))
}

// Upload puts each existing file under prefix/rel. Missing files are skipped.
func (p *S3) Upload(ctx context.Context, rel string, files []string) (int, error) {
	n := 0
	for _, file := range files {
		f, err := os.Open(file)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return n, err
		}
		key := p.Key(rel, file)
		_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
			Body:   f,
		})
		f.Close()
		if err != nil {
			return n, fmt.Errorf("put s3://%s/%s: %w", p.bucket, key, err)
		}
		p.logger.Debug("artifact uploaded", zap.String("bucket", p.bucket), zap.String("key", key))
		n++
	}
	return n, nil
}
