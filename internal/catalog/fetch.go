package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gyeh/carenet/internal/cloud"
	"github.com/gyeh/carenet/internal/output"
	"github.com/gyeh/carenet/internal/progress"
	"github.com/gyeh/carenet/internal/provider"
)

var httpClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	},
	Timeout: 5 * time.Minute,
}

// Fetcher opens catalogs from local paths, http(s) URLs and s3://bucket/key
// locations. Each fetch is a single attempt.
type Fetcher struct {
	HTTP *http.Client
	// S3 builds a client for bucket. Defaults to cloud.NewS3Client in Region.
	S3     func(ctx context.Context, bucket string) (*cloud.S3Client, error)
	Region string
}

// Open returns the raw (possibly compressed) body at from and its size, or
// -1 when the size is not known up front.
func (f *Fetcher) Open(ctx context.Context, from string) (io.ReadCloser, int64, error) {
	if bucket, key, ok := cloud.ParseS3URL(from); ok {
		newClient := f.S3
		if newClient == nil {
			newClient = func(ctx context.Context, bucket string) (*cloud.S3Client, error) {
				return cloud.NewS3Client(ctx, bucket, f.Region)
			}
		}
		client, err := newClient(ctx, bucket)
		if err != nil {
			return nil, 0, fmt.Errorf("creating S3 client: %w", err)
		}
		body, err := client.Open(ctx, key)
		if err != nil {
			return nil, 0, err
		}
		return body, -1, nil
	}

	if strings.HasPrefix(from, "http://") || strings.HasPrefix(from, "https://") {
		return f.get(ctx, from)
	}

	file, err := os.Open(from)
	if err != nil {
		return nil, 0, fmt.Errorf("opening catalog: %w", err)
	}
	size := int64(-1)
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}
	return file, size, nil
}

func (f *Fetcher) get(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	client := f.HTTP
	if client == nil {
		client = httpClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("downloading %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("downloading %s: HTTP %d", url, resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}

// ImportResult describes a completed import.
type ImportResult struct {
	Providers       int
	CompressedBytes int64
}

// Import fetches the catalog at from, validates every record and writes the
// records to out as indented JSON. Record contents are written as received.
func (f *Fetcher) Import(ctx context.Context, from, out string, tracker progress.Tracker) (*ImportResult, error) {
	defer tracker.Done()

	tracker.SetStage("downloading")
	body, total, err := f.Open(ctx, from)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	counter := &countingReader{reader: &progressReader{
		reader:   body,
		total:    total,
		callback: tracker.SetProgress,
	}}
	rc, err := maybeGunzip(counter)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	if total > 0 && counter.n != total {
		return nil, fmt.Errorf("download truncated: got %d of %d bytes", counter.n, total)
	}

	tracker.SetStage("validating")
	providers, err := provider.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding providers: %w", err)
	}

	tracker.SetStage("writing")
	if err := output.WriteJSON(out, records); err != nil {
		return nil, fmt.Errorf("writing %s: %w", out, err)
	}

	return &ImportResult{Providers: len(providers), CompressedBytes: counter.n}, nil
}

type countingReader struct {
	reader io.Reader
	n      int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.reader.Read(p)
	cr.n += int64(n)
	return n, err
}

type progressReader struct {
	reader     io.Reader
	downloaded int64
	total      int64
	callback   func(downloaded, total int64)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.downloaded += int64(n)
		pr.callback(pr.downloaded, pr.total)
	}
	return n, err
}
