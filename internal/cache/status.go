package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/matteoveglia/AstraNotes-sub002/internal/remote"
)

// StatusCache is the entity-status instantiation of the read-through
// cache. Remote status can change out-of-band, so entries expire after a
// short TTL instead of living until invalidation.
//
// UpdateStatus applies the chosen status to the cache optimistically and
// rolls the entry back if the remote update fails: an unconfirmed
// optimistic value masquerading as ground truth is worse than a brief
// loading state.
type StatusCache struct {
	cache  *Cache[*remote.EntityStatus]
	client remote.StatusClient
}

// DefaultStatusTTL is how long a cached entity status is trusted.
const DefaultStatusTTL = 30 * time.Second

// NewStatusCache creates the cache for a session.
func NewStatusCache(client remote.StatusClient, interacting func() bool, logger *log.Logger) *StatusCache {
	sc := &StatusCache{client: client}
	sc.cache = New[*remote.EntityStatus](
		sc.fetchStatus,
		WithTTL[*remote.EntityStatus](DefaultStatusTTL),
		WithInteracting[*remote.EntityStatus](interacting),
		WithLogger[*remote.EntityStatus](logger),
	)
	return sc
}

// Resolve returns the status view for an entity, fetching on miss or
// after TTL expiry.
func (sc *StatusCache) Resolve(ctx context.Context, entityType, entityID string) (*remote.EntityStatus, error) {
	return sc.cache.Resolve(ctx, Key(entityID, entityType))
}

// Get returns the cached status view without fetching.
func (sc *StatusCache) Get(entityType, entityID string) (*remote.EntityStatus, bool) {
	return sc.cache.Get(Key(entityID, entityType))
}

// ForceRefresh bypasses the cache and fetches a fresh status view.
func (sc *StatusCache) ForceRefresh(ctx context.Context, entityType, entityID string) (*remote.EntityStatus, error) {
	return sc.cache.ForceRefresh(ctx, Key(entityID, entityType))
}

// WarmLatest warms the statuses for the given entities, cancelling any
// previous warm run.
func (sc *StatusCache) WarmLatest(entityType string, entityIDs []string) {
	keys := make([]string, len(entityIDs))
	for i, id := range entityIDs {
		keys[i] = Key(id, entityType)
	}
	sc.cache.WarmLatest(keys)
}

// Clear drops all cached statuses and stops warming.
func (sc *StatusCache) Clear() {
	sc.cache.Clear()
}

// UpdateStatus sets an entity's current status on the remote service.
// The cached view is updated optimistically so the UI reflects the choice
// immediately; on remote failure the previous view is restored.
func (sc *StatusCache) UpdateStatus(ctx context.Context, entityType, entityID, statusID string) error {
	key := Key(entityID, entityType)

	prev, hadPrev := sc.cache.Get(key)
	if hadPrev {
		chosen, ok := findStatus(prev.Applicable, statusID)
		if !ok {
			return fmt.Errorf("status %s is not applicable to %s/%s", statusID, entityType, entityID)
		}
		optimistic := &remote.EntityStatus{Current: chosen, Applicable: prev.Applicable}
		sc.cache.Invalidate(key)
		sc.cache.store(key, optimistic, sc.cache.generation(key))
	}

	if err := sc.client.UpdateEntityStatus(ctx, entityType, entityID, statusID); err != nil {
		if hadPrev {
			sc.cache.Invalidate(key)
			sc.cache.store(key, prev, sc.cache.generation(key))
		}
		return fmt.Errorf("update status for %s/%s: %w", entityType, entityID, err)
	}
	return nil
}

func (sc *StatusCache) fetchStatus(ctx context.Context, key string) (*remote.EntityStatus, error) {
	entityID, entityType := splitKey(key)
	st, err := sc.client.FetchStatusesForEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("status %s/%s: %w", entityType, entityID, err)
	}
	return st, nil
}

func findStatus(statuses []remote.Status, id string) (remote.Status, bool) {
	for _, s := range statuses {
		if s.ID == id {
			return s, true
		}
	}
	return remote.Status{}, false
}
