// Package catalog loads the provider catalog from a local file or S3 object.
// Catalogs are re-read on every call so edits take effect without a restart.
package catalog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/pgzip"

	"github.com/gyeh/carenet/internal/cloud"
	"github.com/gyeh/carenet/internal/provider"
)

// Source supplies the full provider collection.
type Source interface {
	Load(ctx context.Context) ([]provider.Provider, error)
}

// FileSource reads a JSON (optionally gzipped) catalog from disk.
type FileSource struct {
	Path string
}

// Load implements Source.
func (s FileSource) Load(ctx context.Context) ([]provider.Provider, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()

	providers, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", s.Path, err)
	}
	return providers, nil
}

// S3Source reads a JSON (optionally gzipped) catalog from an S3 object.
type S3Source struct {
	Client *cloud.S3Client
	Key    string
}

// Load implements Source.
func (s S3Source) Load(ctx context.Context) ([]provider.Provider, error) {
	body, err := s.Client.Open(ctx, s.Key)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer body.Close()

	providers, err := decode(body)
	if err != nil {
		return nil, fmt.Errorf("loading s3://%s/%s: %w", s.Client.Bucket(), s.Key, err)
	}
	return providers, nil
}

// NewSource picks an S3Source for s3://bucket/key locations and a FileSource
// for everything else.
func NewSource(ctx context.Context, location, region string) (Source, error) {
	bucket, key, ok := cloud.ParseS3URL(location)
	if !ok {
		return FileSource{Path: location}, nil
	}
	client, err := cloud.NewS3Client(ctx, bucket, region)
	if err != nil {
		return nil, fmt.Errorf("creating S3 client: %w", err)
	}
	return S3Source{Client: client, Key: key}, nil
}

func decode(r io.Reader) ([]provider.Provider, error) {
	rc, err := maybeGunzip(r)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return provider.Decode(rc)
}

// maybeGunzip sniffs the gzip magic bytes and wraps r in a pgzip reader when
// they are present.
func maybeGunzip(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil || magic[0] != 0x1f || magic[1] != 0x8b {
		return io.NopCloser(br), nil
	}
	gz, err := pgzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	return gz, nil
}
