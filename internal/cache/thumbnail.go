package cache

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/matteoveglia/AstraNotes-sub002/internal/remote"
)

// Thumbnail is a resolved thumbnail image for one component at one
// requested size.
type Thumbnail struct {
	ComponentID string
	Size        string
	Data        []byte
}

// ThumbnailCache is the thumbnail instantiation of the read-through
// cache. Thumbnails are content-addressed by component id, assumed
// immutable, and therefore carry no TTL; a refresh requires an explicit
// ForceRefresh.
type ThumbnailCache struct {
	cache  *Cache[Thumbnail]
	client remote.AssetClient
}

// NewThumbnailCache creates the cache for a session. interacting may be
// nil if no interaction signal is available.
func NewThumbnailCache(client remote.AssetClient, interacting func() bool, logger *log.Logger) *ThumbnailCache {
	tc := &ThumbnailCache{client: client}
	tc.cache = New[Thumbnail](
		tc.fetchThumbnail,
		WithInteracting[Thumbnail](interacting),
		WithLogger[Thumbnail](logger),
	)
	return tc
}

// Resolve returns the thumbnail for a component at the requested size,
// coalescing concurrent callers into a single fetch.
func (tc *ThumbnailCache) Resolve(ctx context.Context, componentID, size string) (Thumbnail, error) {
	return tc.cache.Resolve(ctx, Key(componentID, size))
}

// Get returns the cached thumbnail without fetching.
func (tc *ThumbnailCache) Get(componentID, size string) (Thumbnail, bool) {
	return tc.cache.Get(Key(componentID, size))
}

// ForceRefresh discards the cached thumbnail and fetches it again.
func (tc *ThumbnailCache) ForceRefresh(ctx context.Context, componentID, size string) (Thumbnail, error) {
	return tc.cache.ForceRefresh(ctx, Key(componentID, size))
}

// WarmLatest warms the thumbnails for the given components, cancelling
// any previous warm run (e.g. after a playlist switch).
func (tc *ThumbnailCache) WarmLatest(componentIDs []string, size string) {
	keys := make([]string, len(componentIDs))
	for i, id := range componentIDs {
		keys[i] = Key(id, size)
	}
	tc.cache.WarmLatest(keys)
}

// Clear drops all cached thumbnails and stops warming. Used on logout.
func (tc *ThumbnailCache) Clear() {
	tc.cache.Clear()
}

// Len returns the number of resolved thumbnails.
func (tc *ThumbnailCache) Len() int {
	return tc.cache.Len()
}

func (tc *ThumbnailCache) fetchThumbnail(ctx context.Context, key string) (Thumbnail, error) {
	componentID, size := splitKey(key)
	data, err := tc.client.FetchAsset(ctx, componentID, remote.AssetOptions{Size: size})
	if err != nil {
		return Thumbnail{}, fmt.Errorf("thumbnail %s: %w", componentID, err)
	}
	return Thumbnail{ComponentID: componentID, Size: size, Data: data}, nil
}

func splitKey(key string) (id, variant string) {
	if i := strings.IndexByte(key, '|'); i >= 0 {
		return key[:i], key[i+1:]
	}
	return key, ""
}
