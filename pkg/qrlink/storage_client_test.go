package qrlink_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/qrlink/pkg/qrlink"
	memoryindex "github.com/tendant/qrlink/pkg/qrlink/index/memory"
	"github.com/tendant/qrlink/pkg/qrlink/storage/memory"
	"github.com/tendant/qrlink/pkg/qrlink/storage/unavailable"
)

type rejectingStore struct {
	listingStore
	err error
}

func (s *rejectingStore) Put(ctx context.Context, key string, reader io.Reader, params qrlink.PutParams) (*qrlink.StorageObject, error) {
	return nil, s.err
}

func TestStorageClient_Store(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	idx, err := memoryindex.New(8)
	require.NoError(t, err)
	client := qrlink.NewStorageClient(store, qrlink.WithStoreIndex(idx), qrlink.WithBackendName("memory"))

	result, err := client.Store(ctx, "file_1_abc", "report.pdf", "application/pdf", []byte("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, "file_1_abc", result.ContentKey)
	assert.Equal(t, "file_1_abc.report.pdf", result.Pathname)

	rc, err := store.Download(ctx, "file_1_abc.report.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "%PDF-1.7", string(data))

	indexed, err := idx.Get(ctx, "file_1_abc")
	require.NoError(t, err)
	assert.Equal(t, "file_1_abc.report.pdf", indexed.Pathname)
	assert.Equal(t, "application/pdf", indexed.ContentType)
}

func TestStorageClient_StoreOverwrites(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	client := qrlink.NewStorageClient(store)

	_, err := client.Store(ctx, "k", "a.txt", "text/plain", []byte("one"))
	require.NoError(t, err)
	_, err = client.Store(ctx, "k", "a.txt", "text/plain", []byte("one"))
	require.NoError(t, err)

	listing, err := store.List(ctx, qrlink.ListParams{Prefix: "k"})
	require.NoError(t, err)
	assert.Len(t, listing, 1)
}

func TestStorageClient_StoreErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		client  *qrlink.StorageClient
		key     string
		display string
		target  error
	}{
		{"missing key", qrlink.NewStorageClient(memory.New()), "", "a.txt", qrlink.ErrValidation},
		{"missing name", qrlink.NewStorageClient(memory.New()), "k", "", qrlink.ErrValidation},
		{"nil store", qrlink.NewStorageClient(nil), "k", "a.txt", qrlink.ErrStorageUnavailable},
		{"unconfigured store", qrlink.NewStorageClient(unavailable.New("no credentials")), "k", "a.txt", qrlink.ErrStorageUnavailable},
		{"backend failure", qrlink.NewStorageClient(&rejectingStore{err: errors.New("disk full")}), "k", "a.txt", qrlink.ErrStoreFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.client.Store(ctx, tt.key, tt.display, "text/plain", []byte("x"))
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestStorageClient_IndexFailureIsNotFatal(t *testing.T) {
	client := qrlink.NewStorageClient(memory.New(), qrlink.WithStoreIndex(failingIndex{}))
	result, err := client.Store(context.Background(), "k", "a.txt", "text/plain", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "k.a.txt", result.Pathname)
}

func TestStorageClient_StoreThenLookup(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	client := qrlink.NewStorageClient(store)
	lookup := qrlink.NewLookupService(store)

	_, err := client.Store(ctx, "file_1700000000000_abc123xyz", "report.pdf", "application/pdf", make([]byte, 4096))
	require.NoError(t, err)

	object, err := lookup.Resolve(ctx, "file_1700000000000_abc123xyz")
	require.NoError(t, err)
	assert.Equal(t, "file_1700000000000_abc123xyz.report.pdf", object.Pathname)
	assert.EqualValues(t, 4096, object.Size)
}
