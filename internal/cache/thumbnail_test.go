package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matteoveglia/AstraNotes-sub002/internal/remote"
)

// fakeAssetClient serves deterministic bytes after an optional delay.
type fakeAssetClient struct {
	fetches atomic.Int32
	delay   time.Duration
}

func (f *fakeAssetClient) FetchAsset(ctx context.Context, componentID string, opts remote.AssetOptions) ([]byte, error) {
	f.fetches.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []byte(componentID + ":" + opts.Size), nil
}

func TestThumbnailConcurrentRequestsShareOneFetch(t *testing.T) {
	client := &fakeAssetClient{delay: 30 * time.Millisecond}
	tc := NewThumbnailCache(client, nil, nil)

	var wg sync.WaitGroup
	thumbs := make([]Thumbnail, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			th, err := tc.Resolve(context.Background(), "c1", "256")
			assert.NoError(t, err)
			thumbs[i] = th
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), client.fetches.Load(),
		"two requests in quick succession must issue one fetch")
	assert.Equal(t, thumbs[0].Data, thumbs[1].Data)
}

func TestThumbnailVariantsAreDistinctKeys(t *testing.T) {
	client := &fakeAssetClient{}
	tc := NewThumbnailCache(client, nil, nil)
	ctx := context.Background()

	small, err := tc.Resolve(ctx, "c1", "256")
	require.NoError(t, err)
	large, err := tc.Resolve(ctx, "c1", "720")
	require.NoError(t, err)

	assert.NotEqual(t, small.Data, large.Data)
	assert.Equal(t, int32(2), client.fetches.Load())
	assert.Equal(t, 2, tc.Len())
}

func TestThumbnailClear(t *testing.T) {
	client := &fakeAssetClient{}
	tc := NewThumbnailCache(client, nil, nil)

	_, err := tc.Resolve(context.Background(), "c1", "")
	require.NoError(t, err)
	require.Equal(t, 1, tc.Len())

	tc.Clear()
	assert.Equal(t, 0, tc.Len())

	_, ok := tc.Get("c1", "")
	assert.False(t, ok)
}
