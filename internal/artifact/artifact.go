package artifact

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/printmate/order-service/pkg/logger"
)

// Store keeps uploaded artifacts on the local filesystem for the
// lifetime of their orders. Refs are opaque to callers.
type Store struct {
	logger logger.Logger
	dir    string
}

func NewStore(dir string, logger logger.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("artifact directory must be set")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	return &Store{dir: dir, logger: logger}, nil
}

// Save writes the artifact under a fresh ref and returns it.
func (s *Store) Save(r io.Reader, filename string) (string, error) {
	ref := uuid.NewString() + filepath.Ext(filepath.Base(filename))

	f, err := os.Create(filepath.Join(s.dir, ref))
	if err != nil {
		return "", fmt.Errorf("create artifact file: %w", err)
	}

	if _, err = io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write artifact: %w", err)
	}

	if err = f.Close(); err != nil {
		return "", fmt.Errorf("close artifact file: %w", err)
	}

	return ref, nil
}

// Path resolves a ref to its location on disk.
func (s *Store) Path(ref string) string {
	return filepath.Join(s.dir, filepath.Base(ref))
}

// Open returns the artifact contents for dispatching.
func (s *Store) Open(ref string) (io.ReadCloser, error) {
	f, err := os.Open(s.Path(ref))
	if err != nil {
		return nil, fmt.Errorf("open artifact %q: %w", ref, err)
	}
	return f, nil
}

// Release frees the artifact resource. Releasing an already-released
// ref is a no-op.
func (s *Store) Release(ref string) error {
	if ref == "" {
		return nil
	}

	if err := os.Remove(s.Path(ref)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release artifact %q: %w", ref, err)
	}

	return nil
}
