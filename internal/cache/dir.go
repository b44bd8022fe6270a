package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Dir keeps one file per key under a root directory, fanned out by the
// first two hex digits.
type Dir struct {
	root string
}

func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("cache dir: %w", err)
	}
	return &Dir{root: root}, nil
}

func (c *Dir) path(key Key) (string, error) {
	if len(key) < 3 || filepath.Base(string(key)) != string(key) {
		return "", fmt.Errorf("invalid cache key %q", key)
	}
	return filepath.Join(c.root, string(key[:2]), string(key)), nil
}

func (c *Dir) Get(_ context.Context, key Key) ([]byte, error) {
	p, err := c.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrMiss
	}
	return b, err
}

// Put writes through a temp file and rename so readers never see a partial
// entry.
func (c *Dir) Put(_ context.Context, key Key, value []byte) error {
	p, err := c.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(value); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (c *Dir) Invalidate(_ context.Context, key Key) error {
	p, err := c.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
