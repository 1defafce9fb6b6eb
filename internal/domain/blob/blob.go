// Package blob defines the object storage used for uploaded files.
package blob

import (
	"context"
	"path"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a path does not exist in the store.
var ErrNotFound = errors.New("blob not found")

// Object is a file to be stored.
type Object struct {
	Data        []byte
	ContentType string
	Extension   string
}

// Store persists objects under store-generated names.
//
// Delete of a path that does not exist succeeds: callers treat deletion as
// best-effort cleanup.
type Store interface {
	// Put stores obj under dir and returns the generated path.
	Put(ctx context.Context, dir string, obj Object) (string, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// NewPath generates a collision-free object path under dir. Names are random
// rather than content hashes so that re-uploading identical bytes never
// resolves to the path that is about to be deleted as the "old" image.
func NewPath(dir, ext string) string {
	name := uuid.New().String()
	if ext != "" {
		name += "." + ext
	}
	return path.Join(dir, name)
}

// CleanPath normalizes p and rejects absolute paths and parent traversal.
func CleanPath(p string) (string, error) {
	if p == "" {
		return "", errors.New("empty path")
	}
	c := path.Clean("/" + p)[1:]
	if c == "" || c != p {
		return "", errors.Errorf("invalid blob path %q", p)
	}
	return c, nil
}
