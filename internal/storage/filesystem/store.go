// Package filesystem implements blob.Store on a local directory.
package filesystem

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"

	"github.com/xenking/product-catalog/internal/domain/blob"
)

var _ blob.Store = (*Store)(nil)

// Store keeps objects as files below a root directory. Object paths are
// slash-separated and relative to the root.
type Store struct {
	root string
}

// New returns a Store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create storage root %q", root)
	}
	return &Store{root: root}, nil
}

// Put writes obj to a new file under dir. The file is written to a temporary
// name and renamed so readers never observe a partial object.
func (s *Store) Put(_ context.Context, dir string, obj blob.Object) (string, error) {
	p := blob.NewPath(dir, obj.Extension)
	full := s.full(p)

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", errors.Wrapf(err, "create directory for %q", p)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(obj.Data); err != nil {
		_ = tmp.Close()
		return "", errors.Wrapf(err, "write %q", p)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrapf(err, "close %q", p)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", errors.Wrapf(err, "rename into %q", p)
	}
	return p, nil
}

// Delete removes the file at path. Missing files are not an error.
func (s *Store) Delete(_ context.Context, path string) error {
	clean, err := blob.CleanPath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(s.full(clean)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "remove %q", clean)
	}
	return nil
}

// Exists reports whether a regular file exists at path.
func (s *Store) Exists(_ context.Context, path string) (bool, error) {
	clean, err := blob.CleanPath(path)
	if err != nil {
		return false, err
	}
	fi, err := os.Stat(s.full(clean))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	case err != nil:
		return false, errors.Wrapf(err, "stat %q", clean)
	}
	return fi.Mode().IsRegular(), nil
}

// Writable checks that the root accepts new files. It is used as a
// readiness check.
func (s *Store) Writable(_ context.Context) error {
	f, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return errors.Wrap(err, "probe storage root")
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func (s *Store) full(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(p))
}
