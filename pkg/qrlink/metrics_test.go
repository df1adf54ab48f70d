package qrlink_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/qrlink/pkg/qrlink"
	"github.com/tendant/qrlink/pkg/qrlink/storage/memory"
	"github.com/tendant/qrlink/pkg/qrlink/storage/unavailable"
)

func TestPrometheusObserver(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	observer, err := qrlink.NewPrometheusObserver("test", reg)
	require.NoError(t, err)

	store := memory.New()
	client := qrlink.NewStorageClient(store, qrlink.WithStoreObserver(observer))
	_, err = client.Store(ctx, "k", "a.txt", "text/plain", []byte("hello"))
	require.NoError(t, err)

	_, err = qrlink.NewStorageClient(unavailable.New("unset"), qrlink.WithStoreObserver(observer)).
		Store(ctx, "k", "a.txt", "text/plain", []byte("hello"))
	require.Error(t, err)

	lookup := qrlink.NewLookupService(store, qrlink.WithLookupObserver(observer))
	_, err = lookup.Resolve(ctx, "k")
	require.NoError(t, err)
	_, err = lookup.Resolve(ctx, "missing")
	require.ErrorIs(t, err, qrlink.ErrNotFound)

	metrics, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(metrics))
	for _, m := range metrics {
		names = append(names, m.GetName())
	}
	assert.Contains(t, names, "test_operation_duration_seconds")
	assert.Contains(t, names, "test_stored_bytes_total")

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "test_store_errors_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "test_lookups_total"))
}

func TestNewPrometheusObserver_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := qrlink.NewPrometheusObserver("shared", reg)
	require.NoError(t, err)
	second, err := qrlink.NewPrometheusObserver("shared", reg)
	require.NoError(t, err)

	first.RecordLookup(0, qrlink.OutcomeCanonical)
	second.RecordLookup(0, qrlink.OutcomeCanonical)
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "shared_lookups_total"))
}
