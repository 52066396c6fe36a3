package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// in-flight uploads carry this prefix and are hidden from List
const tempPrefix = ".upload-"

// LocalStorage keeps objects as files below a base directory
type LocalStorage struct {
	root string
}

// NewLocalStorage creates the root directory when missing and returns a store rooted there
func NewLocalStorage(root string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", root, err)
	}
	return &LocalStorage{root: root}, nil
}

func (s *LocalStorage) resolve(key string) (cleaned, file string, err error) {
	if cleaned, err = CleanKey(key); err != nil {
		return "", "", err
	}
	return cleaned, filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// Upload writes to a temp file and renames it into place, so readers never see a partial object
func (s *LocalStorage) Upload(_ context.Context, key, _ string, data io.Reader) (string, int64, error) {
	cleaned, file, err := s.resolve(key)
	if err != nil {
		return "", 0, err
	}
	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	n, err := io.Copy(tmp, data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), file)
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to store %s: %w", cleaned, err)
	}
	return cleaned, n, nil
}

// Download opens the file stored under key. The caller closes it.
func (s *LocalStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	cleaned, file, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(file)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, cleaned)
	case err != nil:
		return nil, fmt.Errorf("failed to open %s: %w", cleaned, err)
	}
	return f, nil
}

// Delete is idempotent
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	cleaned, file, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", cleaned, err)
	}
	return nil
}

// List returns the objects whose key starts with prefix, ordered by key
func (s *LocalStorage) List(_ context.Context, prefix string) ([]Object, error) {
	objects := []Object{}
	walk := func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, Object{Key: key, Size: info.Size(), LastModified: info.ModTime().UTC()})
		return nil
	}
	if err := filepath.WalkDir(s.root, walk); err != nil {
		return nil, fmt.Errorf("failed to list %q: %w", prefix, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}
