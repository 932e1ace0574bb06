// Package backup implements the backup collaborator: it archives the
// store's SQLite file and uploads it to an S3-compatible bucket
// (R2-style), grounded on the teacher's internal/reliability package
// but adapted from a multi-database Cloudflare R2 client to a single
// store file and any S3-compatible endpoint (spec §4.1, §4.7, §4.8).
package backup

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig describes the S3-compatible endpoint backups are
// shipped to. Endpoint/ForcePathStyle exist so the same client works
// against Cloudflare R2, MinIO, or plain AWS S3.
type ClientConfig struct {
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	ForcePathStyle bool
}

// s3Client wraps the AWS SDK client and the default bucket name.
type s3Client struct {
	s3     *s3.Client
	bucket string
}

func newS3Client(ctx context.Context, cfg ClientConfig) (*s3Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("backup: bucket name is required")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("backup: load aws config: %w", err)
	}

	var opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := normaliseEndpoint(cfg.Endpoint, cfg.UseSSL)
		opts = append(opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(endpoint) })
	}
	if cfg.ForcePathStyle {
		opts = append(opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return &s3Client{s3: s3.NewFromConfig(awsCfg, opts...), bucket: cfg.Bucket}, nil
}

func normaliseEndpoint(endpoint string, useSSL bool) string {
	parsed, err := url.Parse(endpoint)
	if err == nil && parsed.Scheme != "" {
		return endpoint
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + endpoint
}

func (c *s3Client) upload(ctx context.Context, key string, body io.Reader) error {
	uploader := manager.NewUploader(c.s3)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("backup: upload %s: %w", key, err)
	}
	return nil
}

func (c *s3Client) list(ctx context.Context, prefix string) ([]objectInfo, error) {
	out, err := c.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("backup: list objects: %w", err)
	}
	infos := make([]objectInfo, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if obj.Key == nil {
			continue
		}
		var size int64
		if obj.Size != nil {
			size = *obj.Size
		}
		infos = append(infos, objectInfo{Key: *obj.Key, Size: size})
	}
	return infos, nil
}

func (c *s3Client) delete(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("backup: delete %s: %w", key, err)
	}
	return nil
}
