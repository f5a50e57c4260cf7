package backup

import (
	"context"
	"os"

	"github.com/tessera-db/tessera/internal/errs"
)

// FileStore persists snapshots as a single JSON file on the local
// filesystem. Write overwrites; Read fails with a serialization error on a
// missing or malformed file.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Write persists the snapshot, replacing any existing file.
func (s *FileStore) Write(_ context.Context, snap Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return errs.Wrap(errs.KindSerialization, "write snapshot file", err)
	}
	return nil
}

// Read loads and parses the snapshot file.
func (s *FileStore) Read(_ context.Context) (Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errs.Wrap(errs.KindSerialization, "read snapshot file", err)
	}
	return Decode(data)
}
