// Package storage uploads chat attachments to S3-compatible object storage
// and hands back publicly retrievable URLs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"classboard-service/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Store struct {
	uploader *manager.Uploader
	bucket   string
	region   string
	baseURL  string
}

// NewS3Store reads S3_REGION, S3_BUCKET and optional S3_PUBLIC_URL (base URL
// for MinIO-style deployments). Credentials come from the default AWS chain.
func NewS3Store(ctx context.Context) (*S3Store, error) {
	bucket := config.Config("S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is not configured")
	}
	region := config.Config("S3_REGION")

	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3Store{
		uploader: manager.NewUploader(s3.NewFromConfig(cfg)),
		bucket:   bucket,
		region:   region,
		baseURL:  strings.TrimSuffix(config.Config("S3_PUBLIC_URL"), "/"),
	}, nil
}

// Upload puts the object under key and returns its public URL.
func (s *S3Store) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	escaped := strings.Join(segments, "/")

	if s.baseURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, escaped), nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escaped), nil
}
