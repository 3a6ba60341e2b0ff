package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config holds configuration for the document signer.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string // Optional custom endpoint (MinIO, LocalStack, Supabase storage)
}

// Signer presigns GET requests for objects in one bucket.
type Signer struct {
	presign *s3.PresignClient
	bucket  string
}

// NewSigner loads the default AWS credential chain and builds a signer.
func NewSigner(ctx context.Context, cfg Config) (*Signer, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSignerFromClient(s3.NewFromConfig(awsCfg, endpointOption(cfg.Endpoint)), cfg.Bucket), nil
}

// NewSignerFromClient wraps an existing client.
func NewSignerFromClient(client *s3.Client, bucket string) *Signer {
	return &Signer{presign: s3.NewPresignClient(client), bucket: bucket}
}

func (s *Signer) SignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	key := strings.TrimPrefix(path, "/")
	if key == "" {
		return "", errors.New("document path is empty")
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}

func endpointOption(endpoint string) func(*s3.Options) {
	return func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}
}
