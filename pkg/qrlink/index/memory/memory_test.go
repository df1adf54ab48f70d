package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/qrlink/pkg/qrlink"
)

func TestIndex(t *testing.T) {
	ctx := context.Background()
	idx, err := New(2)
	require.NoError(t, err)

	_, err = idx.Get(ctx, "missing")
	assert.ErrorIs(t, err, qrlink.ErrNotFound)

	require.NoError(t, idx.Put(ctx, "a", qrlink.StorageObject{Pathname: "a.one.txt"}))
	require.NoError(t, idx.Put(ctx, "b", qrlink.StorageObject{Pathname: "b.two.txt"}))

	got, err := idx.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a.one.txt", got.Pathname)

	// "b" is now least recently used and gets evicted.
	require.NoError(t, idx.Put(ctx, "c", qrlink.StorageObject{Pathname: "c.three.txt"}))
	_, err = idx.Get(ctx, "b")
	assert.ErrorIs(t, err, qrlink.ErrNotFound)
}

func TestNew_DefaultSize(t *testing.T) {
	idx, err := New(0)
	require.NoError(t, err)
	assert.NotNil(t, idx.cache)
}
