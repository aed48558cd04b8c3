package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by Uploader.
type S3API interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader archives report files to S3.
type Uploader struct {
	client S3API
	bucket string
	prefix string
}

// UploaderOption configures an Uploader.
type UploaderOption func(*Uploader)

// WithS3Client sets a custom S3 client (useful for testing).
func WithS3Client(c S3API) UploaderOption {
	return func(u *Uploader) { u.client = c }
}

// NewUploader creates an S3 report uploader.
func NewUploader(bucket, prefix string, opts ...UploaderOption) (*Uploader, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket name required")
	}
	u := &Uploader{
		bucket: bucket,
		prefix: strings.TrimRight(prefix, "/"),
	}
	for _, o := range opts {
		o(u)
	}
	if u.client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		u.client = s3.NewFromConfig(cfg)
	}
	return u, nil
}

// Upload stores one report file and returns its object key.
// Key format: {prefix}/{date}/{runID}/{filename}
func (u *Uploader) Upload(ctx context.Context, runID, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	key := fmt.Sprintf("%s/%s/%s/%s",
		u.prefix, time.Now().UTC().Format("2006-01-02"), runID, filepath.Base(path))
	key = strings.TrimLeft(key, "/")

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(path)),
	})
	if err != nil {
		return "", fmt.Errorf("putting %s to S3: %w", filepath.Base(path), err)
	}
	return key, nil
}

func contentType(path string) string {
	switch filepath.Ext(path) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
