// Package media stores user-uploaded images (avatars, cover images) in
// S3-compatible object storage and hands back public URLs.
package media

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	appcfg "vidstream/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type Object struct {
	Key string
	URL string
}

type Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

func New(ctx context.Context, cfg *appcfg.Config) (*Store, error) {
	const op = "media.New"

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.S3.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3.AccessKey,
			cfg.S3.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		o.UsePathStyle = true
	})

	return &Store{
		client:  client,
		bucket:  cfg.S3.Bucket,
		baseURL: strings.TrimRight(cfg.S3.PublicBaseURL, "/"),
	}, nil
}

func storageKey(kind string) string {
	d := time.Now()
	return fmt.Sprintf("%s/%d/%d/%d/%v", kind, d.Year(), d.Month(), d.Day(), uuid.New())
}

// Upload writes the object under a fresh random key and returns the key and
// its public URL. kind namespaces the key ("avatars", "covers").
func (s *Store) Upload(ctx context.Context, kind, contentType string, body io.Reader) (Object, error) {
	const op = "media.Upload"

	key := storageKey(kind)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return Object{}, fmt.Errorf("%s: %w", op, err)
	}

	return Object{
		Key: key,
		URL: fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key),
	}, nil
}

// Delete removes a previously uploaded object. Callers treat failures as
// best-effort cleanup; an empty key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	const op = "media.Delete"

	if key == "" {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
