// Package file is a storage.Backend over a flat directory of files,
// one per key.
package file

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/JupiterMetaLabs/chronomerkle/storage"
)

// Backend persists each key as a file under Dir.
type Backend struct {
	Dir string
}

// New returns a Backend rooted at dir, creating it if necessary.
func New(dir string) (*Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "file: create directory %q", dir)
	}
	return &Backend{Dir: dir}, nil
}

func (b *Backend) path(key string) string {
	return filepath.Join(b.Dir, filepath.Base(key))
}

func (b *Backend) Save(_ context.Context, key string, data []byte) error {
	if err := os.WriteFile(b.path(key), data, 0o644); err != nil {
		return errors.Wrapf(err, "file: save key %q", key)
	}
	return nil
}

func (b *Backend) Load(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(b.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "file: load key %q", key)
	}
	return data, true, nil
}

func (b *Backend) Delete(_ context.Context, key string) error {
	err := os.Remove(b.path(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "file: delete key %q", key)
	}
	return nil
}

func (b *Backend) ListKeys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "file: list directory %q", b.Dir)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		keys = append(keys, e.Name())
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *Backend) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(b.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "file: stat key %q", key)
	}
	return true, nil
}

var _ storage.Backend = (*Backend)(nil)
