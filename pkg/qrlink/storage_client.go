package qrlink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// StorageClient persists uploads under their canonical key.
type StorageClient struct {
	store       BlobStore
	backendName string
	index       Index
	observer    Observer
}

// StorageClientOption configures a StorageClient.
type StorageClientOption func(*StorageClient)

// WithStoreIndex records every successful store in idx.
func WithStoreIndex(idx Index) StorageClientOption {
	return func(c *StorageClient) {
		c.index = idx
	}
}

// WithStoreObserver reports store telemetry to o.
func WithStoreObserver(o Observer) StorageClientOption {
	return func(c *StorageClient) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithBackendName labels errors with the backend name.
func WithBackendName(name string) StorageClientOption {
	return func(c *StorageClient) {
		c.backendName = name
	}
}

// NewStorageClient creates a client over store. A nil store behaves as unconfigured.
func NewStorageClient(store BlobStore, opts ...StorageClientOption) *StorageClient {
	c := &StorageClient{
		store:       store,
		backendName: "default",
		observer:    nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store writes data under "{contentKey}.{displayName}" and returns its public URL.
// Storing the same bytes under the same key again overwrites the object.
func (c *StorageClient) Store(ctx context.Context, contentKey, displayName, mimeType string, data []byte) (result *StoreResult, err error) {
	key := CanonicalKey(contentKey, displayName)
	ctx, span := tracer.Start(ctx, "qrlink.Store")
	span.SetAttributes(
		attribute.String("qrlink.key", key),
		attribute.Int("qrlink.size", len(data)),
	)
	start := time.Now()
	defer func() {
		c.observer.RecordStore(time.Since(start), int64(len(data)), err)
		endSpan(span, err)
	}()

	if contentKey == "" {
		return nil, &ValidationError{Field: "fileId", Reason: "content key is required"}
	}
	if displayName == "" {
		return nil, &ValidationError{Field: "name", Reason: "display name is required"}
	}
	if c.store == nil {
		return nil, &StorageError{Backend: c.backendName, Key: key, Op: "store", Err: ErrStorageUnavailable}
	}

	object, err := c.store.Put(ctx, key, bytes.NewReader(data), PutParams{
		ContentType: mimeType,
		Size:        int64(len(data)),
	})
	if err != nil {
		if errors.Is(err, ErrStorageUnavailable) {
			return nil, &StorageError{Backend: c.backendName, Key: key, Op: "store", Err: err}
		}
		return nil, &StorageError{Backend: c.backendName, Key: key, Op: "store", Err: fmt.Errorf("%w: %w", ErrStoreFailed, err)}
	}

	if c.index != nil {
		if err := c.index.Put(ctx, contentKey, *object); err != nil {
			slog.Warn("Failed to index stored object", "content_key", contentKey, "key", key, "error", err)
		}
	}

	slog.Info("Stored object", "content_key", contentKey, "key", key, "size", len(data), "url", object.URL)
	return &StoreResult{
		ContentKey: contentKey,
		Pathname:   object.Pathname,
		URL:        object.URL,
	}, nil
}
