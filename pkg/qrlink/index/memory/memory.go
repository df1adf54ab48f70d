// Package memory is a bounded in-process content key index.
package memory

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tendant/qrlink/pkg/qrlink"
)

const defaultSize = 4096

// Index keeps the most recently stored content keys.
type Index struct {
	cache *lru.Cache[string, qrlink.StorageObject]
}

// New creates an index holding at most size entries.
func New(size int) (*Index, error) {
	if size <= 0 {
		size = defaultSize
	}
	cache, err := lru.New[string, qrlink.StorageObject](size)
	if err != nil {
		return nil, fmt.Errorf("create lru index: %w", err)
	}
	return &Index{cache: cache}, nil
}

func (i *Index) Put(ctx context.Context, contentKey string, object qrlink.StorageObject) error {
	i.cache.Add(contentKey, object)
	return nil
}

func (i *Index) Get(ctx context.Context, contentKey string) (*qrlink.StorageObject, error) {
	object, ok := i.cache.Get(contentKey)
	if !ok {
		return nil, qrlink.ErrNotFound
	}
	return &object, nil
}
