// Package cloudtest provides an in-memory stand-in for the S3 object API.
package cloudtest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Objects implements cloud.ObjectAPI over a map keyed by "bucket/key".
type Objects struct {
	mu      sync.Mutex
	objects map[string][]byte
	Puts    int
}

// NewObjects returns an empty object store.
func NewObjects() *Objects {
	return &Objects{objects: make(map[string][]byte)}
}

// Set stores data directly, bypassing PutObject accounting.
func (o *Objects) Set(bucket, key string, data []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[bucket+"/"+key] = append([]byte(nil), data...)
}

// Get returns the stored object and whether it exists.
func (o *Objects) Get(bucket, key string) ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[bucket+"/"+key]
	return data, ok
}

func (o *Objects) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := o.Get(aws.ToString(params.Bucket), aws.ToString(params.Key))
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (o *Objects) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if params.Body == nil {
		return nil, fmt.Errorf("nil body")
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	o.Set(aws.ToString(params.Bucket), aws.ToString(params.Key), data)
	o.mu.Lock()
	o.Puts++
	o.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}
