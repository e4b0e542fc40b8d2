package appointment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gyeh/carenet/internal/output"
)

// FileStore keeps appointments as a 2-space indented JSON array in one file.
// It does no locking.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. The file is created on the
// first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load(ctx context.Context) ([]Appointment, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Appointment{}, nil
		}
		return nil, fmt.Errorf("reading appointments: %w", err)
	}
	return decodeLenient(data), nil
}

func (f *FileStore) Save(ctx context.Context, appts []Appointment) error {
	if appts == nil {
		appts = []Appointment{}
	}
	data, err := output.Marshal(appts)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("writing appointments: %w", err)
	}
	return nil
}

func (f *FileStore) Create(ctx context.Context, a Appointment) error {
	return loadSaveCreate(ctx, f, a)
}

func (f *FileStore) Get(ctx context.Context, id string) (Appointment, error) {
	appts, err := f.Load(ctx)
	if err != nil {
		return Appointment{}, err
	}
	return find(appts, id)
}

var _ Store = (*FileStore)(nil)
