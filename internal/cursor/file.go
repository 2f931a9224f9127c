package cursor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// legacyLayout is the naive ISO timestamp the first version of the tool
// wrote (Python datetime.isoformat without a zone).
const legacyLayout = "2006-01-02T15:04:05.999999"

type fileRecord struct {
	SchemaVersion int    `json:"schema_version,omitempty"`
	LastSync      string `json:"last_sync"`
}

// FileStore keeps the cursor in a small JSON file.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Read(_ context.Context) (time.Time, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, ErrNoCursor
	}
	if err != nil {
		return time.Time{}, &StoreError{Op: "read", Err: err}
	}

	var record fileRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return time.Time{}, &StoreError{Op: "decode", Err: err}
	}
	if record.SchemaVersion > SchemaVersion {
		return time.Time{}, &StoreError{Op: "decode", Err: fmt.Errorf("%w %d", ErrUnsupportedSchema, record.SchemaVersion)}
	}
	if record.LastSync == "" {
		return time.Time{}, &StoreError{Op: "decode", Err: errors.New("last_sync is empty")}
	}

	cursor, err := parseTimestamp(record.LastSync)
	if err != nil {
		return time.Time{}, &StoreError{Op: "decode", Err: err}
	}
	return cursor, nil
}

// Write replaces the cursor file atomically: the new content is written to a
// temporary file in the same directory, synced and renamed over the old one.
func (s *FileStore) Write(_ context.Context, cursor time.Time) error {
	data, err := json.MarshalIndent(fileRecord{
		SchemaVersion: SchemaVersion,
		LastSync:      cursor.UTC().Format(time.RFC3339Nano),
	}, "", "  ")
	if err != nil {
		return &StoreError{Op: "encode", Err: err}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &StoreError{Op: "write", Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &StoreError{Op: "write", Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &StoreError{Op: "write", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &StoreError{Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &StoreError{Op: "write", Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return &StoreError{Op: "write", Err: err}
	}
	return nil
}

func parseTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(legacyLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cursor timestamp %q", value)
	}
	return t, nil
}

// Reset removes the cursor file. A missing file is not an error.
func (s *FileStore) Reset(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &StoreError{Op: "reset", Err: err}
	}
	return nil
}
