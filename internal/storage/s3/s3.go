// Package s3 archives finalized recordings in an S3 compatible object store.
package s3

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/zanzhit/ppe_monitor/internal/config"
)

type Client struct {
	client     *minio.Client
	bucket     string
	presignTTL time.Duration
}

func New(cfg config.S3) (*Client, error) {
	const op = "storage.s3.New"

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &Client{
		client:     client,
		bucket:     cfg.Bucket,
		presignTTL: ttl,
	}, nil
}

func (c *Client) EnsureBucket(ctx context.Context) error {
	const op = "storage.s3.EnsureBucket"

	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if exists {
		return nil
	}

	if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Upload copies the file at filePath to the object key.
func (c *Client) Upload(ctx context.Context, key, filePath string) error {
	const op = "storage.s3.Upload"

	_, err := c.client.FPutObject(ctx, c.bucket, key, filePath, minio.PutObjectOptions{
		ContentType: contentType(filePath),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Presign returns a time limited link that plays the object inline.
func (c *Client) Presign(ctx context.Context, key string) (string, error) {
	const op = "storage.s3.Presign"

	params := make(url.Values)
	params.Set("response-content-disposition", fmt.Sprintf("inline; filename=%q", filepath.Base(key)))

	u, err := c.client.PresignedGetObject(ctx, c.bucket, key, c.presignTTL, params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return u.String(), nil
}

func contentType(filePath string) string {
	switch filepath.Ext(filePath) {
	case ".mp4":
		return "video/mp4"
	case ".avi":
		return "video/x-msvideo"
	default:
		return "application/octet-stream"
	}
}
