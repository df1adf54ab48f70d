// Package unavailable provides the blob store used when no storage backend is
// configured. Every operation fails with qrlink.ErrStorageUnavailable so the
// gateway reports misconfiguration instead of crashing or claiming a miss.
package unavailable

import (
	"context"
	"fmt"
	"io"

	"github.com/tendant/qrlink/pkg/qrlink"
)

// Backend rejects every operation.
type Backend struct {
	reason string
}

// New returns a backend that explains why storage is unavailable.
func New(reason string) *Backend {
	return &Backend{reason: reason}
}

func (b *Backend) err() error {
	return fmt.Errorf("%w: %s", qrlink.ErrStorageUnavailable, b.reason)
}

func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, params qrlink.PutParams) (*qrlink.StorageObject, error) {
	return nil, b.err()
}

func (b *Backend) List(ctx context.Context, params qrlink.ListParams) ([]qrlink.StorageObject, error) {
	return nil, b.err()
}

func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, b.err()
}
