package qrlink

import (
	"context"
	"io"
)

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// Put writes the object under key, overwriting any previous bytes.
	// The returned object carries the public URL when the backend has one.
	Put(ctx context.Context, key string, reader io.Reader, params PutParams) (*StorageObject, error)

	// List returns objects whose key starts with params.Prefix, in backend order,
	// at most params.Limit entries.
	List(ctx context.Context, params ListParams) ([]StorageObject, error)

	// Download opens the object for direct serving
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// PutParams contains parameters for storing an object
type PutParams struct {
	ContentType string
	Size        int64
}

// ListParams contains parameters for a prefix listing
type ListParams struct {
	Prefix string
	Limit  int
}

// Index is an exact-match lookup from content key to stored object. It only
// accelerates lookups; the backend listing remains authoritative.
type Index interface {
	// Put records the object stored for contentKey
	Put(ctx context.Context, contentKey string, object StorageObject) error

	// Get returns ErrNotFound when contentKey has no entry
	Get(ctx context.Context, contentKey string) (*StorageObject, error)
}

// Storer persists an upload. StorageClient satisfies it locally and the HTTP
// client satisfies it against a remote gateway.
type Storer interface {
	Store(ctx context.Context, contentKey, displayName, mimeType string, data []byte) (*StoreResult, error)
}
