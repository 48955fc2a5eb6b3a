package persist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// FileDurable stores one file per key under a profile directory. Writes go
// through a temp file and rename, so a crash never leaves a torn snapshot.
type FileDurable struct {
	dir string
}

func NewFileDurable(dir string) (*FileDurable, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create durable dir: %w", err)
	}
	return &FileDurable{dir: dir}, nil
}

// path escapes the key so arbitrary key names stay inside dir.
func (f *FileDurable) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

func (f *FileDurable) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (f *FileDurable) Put(ctx context.Context, key string, data []byte) error {
	if err := atomic.WriteFile(f.path(key), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (f *FileDurable) Delete(ctx context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
