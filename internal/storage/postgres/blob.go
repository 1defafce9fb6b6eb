package postgres

import (
	"context"
	"fmt"

	"github.com/xenking/product-catalog/internal/domain/blob"
)

const (
	insertBlobSQL = `INSERT INTO blobs (path, content_type, size_bytes, data) VALUES ($1, $2, $3, $4)`

	deleteBlobSQL = `DELETE FROM blobs WHERE path = $1`

	blobExistsSQL = `SELECT EXISTS (SELECT 1 FROM blobs WHERE path = $1)`
)

var _ blob.Store = (*BlobStore)(nil)

// BlobStore keeps objects in the blobs table. It lets a deployment run
// without a shared filesystem.
type BlobStore struct {
	db DB
}

// NewBlobStore returns a BlobStore that uses the given pool.
func NewBlobStore(db DB) *BlobStore {
	return &BlobStore{db: db}
}

// Put inserts obj under a generated path in dir.
func (s *BlobStore) Put(ctx context.Context, dir string, obj blob.Object) (string, error) {
	p := blob.NewPath(dir, obj.Extension)
	if _, err := s.db.Exec(ctx, insertBlobSQL, p, obj.ContentType, len(obj.Data), obj.Data); err != nil {
		return "", fmt.Errorf("inserting blob %q: %w", p, err)
	}
	return p, nil
}

// Delete removes the blob at path. Missing paths are not an error.
func (s *BlobStore) Delete(ctx context.Context, path string) error {
	if _, err := s.db.Exec(ctx, deleteBlobSQL, path); err != nil {
		return fmt.Errorf("deleting blob %q: %w", path, err)
	}
	return nil
}

// Exists reports whether a blob is stored at path.
func (s *BlobStore) Exists(ctx context.Context, path string) (bool, error) {
	var ok bool
	if err := s.db.QueryRow(ctx, blobExistsSQL, path).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking blob %q: %w", path, err)
	}
	return ok, nil
}
