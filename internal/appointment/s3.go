package appointment

import (
	"context"
	"errors"

	"github.com/gyeh/carenet/internal/cloud"
	"github.com/gyeh/carenet/internal/output"
)

// S3Store keeps the collection as one JSON array object in a bucket.
type S3Store struct {
	client *cloud.S3Client
	key    string
}

// NewS3Store returns a store backed by the object at key.
func NewS3Store(client *cloud.S3Client, key string) *S3Store {
	return &S3Store{client: client, key: key}
}

func (s *S3Store) Load(ctx context.Context) ([]Appointment, error) {
	data, err := s.client.Download(ctx, s.key)
	if err != nil {
		if errors.Is(err, cloud.ErrObjectNotFound) {
			return []Appointment{}, nil
		}
		return nil, err
	}
	return decodeLenient(data), nil
}

func (s *S3Store) Save(ctx context.Context, appts []Appointment) error {
	if appts == nil {
		appts = []Appointment{}
	}
	data, err := output.Marshal(appts)
	if err != nil {
		return err
	}
	return s.client.Upload(ctx, s.key, data, "application/json")
}

func (s *S3Store) Create(ctx context.Context, a Appointment) error {
	return loadSaveCreate(ctx, s, a)
}

func (s *S3Store) Get(ctx context.Context, id string) (Appointment, error) {
	appts, err := s.Load(ctx)
	if err != nil {
		return Appointment{}, err
	}
	return find(appts, id)
}

var _ Store = (*S3Store)(nil)
