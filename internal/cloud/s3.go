package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrObjectNotFound is returned when the requested key does not exist.
var ErrObjectNotFound = errors.New("s3 object not found")

// ObjectAPI is the subset of the S3 API used by S3Client. *s3.Client satisfies it.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Client wraps object reads and writes for a single bucket.
type S3Client struct {
	api    ObjectAPI
	bucket string
}

// NewS3Client creates an S3 client for the given bucket using the default
// AWS credential chain.
func NewS3Client(ctx context.Context, bucket, region string) (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewS3ClientWithAPI(s3.NewFromConfig(cfg), bucket), nil
}

// NewS3ClientWithAPI wraps an existing ObjectAPI implementation.
func NewS3ClientWithAPI(api ObjectAPI, bucket string) *S3Client {
	return &S3Client{api: api, bucket: bucket}
}

// Bucket returns the bucket name.
func (c *S3Client) Bucket() string {
	return c.bucket
}

// Open returns a reader for the object body. The caller must close it.
func (c *S3Client) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("s3://%s/%s: %w", c.bucket, key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("getting S3 object %s: %w", key, err)
	}
	return resp.Body, nil
}

// Download reads the whole object into memory.
func (c *S3Client) Download(ctx context.Context, key string) ([]byte, error) {
	body, err := c.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading S3 object %s: %w", key, err)
	}
	return data, nil
}

// Upload replaces the object at key with data.
func (c *S3Client) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("putting S3 object %s: %w", key, err)
	}
	return nil
}

// ParseS3URL splits an s3://bucket/key URL. ok is false for anything else.
func ParseS3URL(u string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(u, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
