package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

type filePersister struct {
	path string
	lock *flock.Flock
}

// NewFileBackend stores the cache as one indented JSON file at path. Writes
// are atomic renames under an advisory lock shared with other processes.
func NewFileBackend(path string) Backend {
	return newSnapshotBackend(&filePersister{path: path, lock: flock.New(path + ".lock")}, true)
}

func (f *filePersister) name() string { return "file" }

func (f *filePersister) load(ctx context.Context) ([]byte, error) {
	if _, err := os.Stat(f.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err := f.lock.RLock(); err != nil {
		return nil, fmt.Errorf("locking %s: %w", f.path, err)
	}
	defer f.lock.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func (f *filePersister) save(ctx context.Context, data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("locking %s: %w", f.path, err)
	}
	defer f.lock.Unlock()

	tmp, err := os.CreateTemp(dir, ".articles-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
