package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

var (
	lockTimeout       = 3 * time.Second
	lockRetryInterval = 100 * time.Millisecond
)

// JsonFileBackend stores the collection as one pretty-printed JSON array.
//
// Layout:
//
//	data_dir/
//	  items.json       # the collection
//	  items.json.lock  # held by the owning process while open
//
// Saves go through a temp file and a rename, so readers of items.json always
// see a complete collection.
type JsonFileBackend struct {
	path string
	lock *flock.Flock
}

// NewJsonFileBackend opens path for exclusive use by this process. It fails
// with ErrLocked if another process holds the file.
func NewJsonFileBackend(path string) (*JsonFileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	lock := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("failed to acquire lock on %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &JsonFileBackend{path: path, lock: lock}, nil
}

// Path returns the location of the JSON file.
func (b *JsonFileBackend) Path() string {
	return b.path
}

func (b *JsonFileBackend) Load() ([]Item, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrStorageUnreadable, b.path)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnreadable, err)
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStorageUnreadable, b.path, err)
	}
	return items, nil
}

func (b *JsonFileBackend) Save(items []Item) error {
	if items == nil {
		items = []Item{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(b.path, append(data, '\n'), 0o644)
}

// Close releases the file lock.
func (b *JsonFileBackend) Close() error {
	return b.lock.Unlock()
}

// writeFileAtomic writes data to a temp file beside path and renames it over
// path once it is synced.
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), perm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
