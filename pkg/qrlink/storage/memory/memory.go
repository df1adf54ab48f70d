// Package memory is an in-process, non-persistent blob store for local
// development. Objects are lost on restart and have no public URL, so the
// file gateway serves their bytes directly.
package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/qrlink/pkg/qrlink"
)

type object struct {
	data        []byte
	contentType string
	uploadedAt  time.Time
}

// Backend is an in-memory implementation of the qrlink.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
	}
}

// Put stores a copy of the reader contents under key
func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, params qrlink.PutParams) (*qrlink.StorageObject, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	contentType := params.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	obj := object{data: data, contentType: contentType, uploadedAt: time.Now()}
	b.objects[key] = obj
	return toStorageObject(key, obj), nil
}

// List returns objects with the given prefix in key order
func (b *Backend) List(ctx context.Context, params qrlink.ListParams) ([]qrlink.StorageObject, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		if strings.HasPrefix(key, params.Prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if params.Limit > 0 && len(keys) > params.Limit {
		keys = keys[:params.Limit]
	}

	result := make([]qrlink.StorageObject, 0, len(keys))
	for _, key := range keys {
		result = append(result, *toStorageObject(key, b.objects[key]))
	}
	return result, nil
}

// Download returns the stored bytes
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, qrlink.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func toStorageObject(key string, obj object) *qrlink.StorageObject {
	return &qrlink.StorageObject{
		Pathname:    key,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		UploadedAt:  obj.uploadedAt,
	}
}
