// Package remote defines the boundary to the production-tracking service:
// publishing notes, reading and updating entity statuses, and fetching
// thumbnail assets. The engine only ever talks to these interfaces; the
// HTTP client in this package is one implementation.
package remote

import (
	"context"

	"github.com/matteoveglia/AstraNotes-sub002/internal/note"
)

// Status is a workflow status as defined by the remote service.
type Status struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// EntityStatus is the status view of one entity: its current status plus
// the statuses its workflow schema allows.
type EntityStatus struct {
	Current    Status   `json:"current"`
	Applicable []Status `json:"applicable"`
}

// PublishRequest carries one draft to the remote service.
type PublishRequest struct {
	PlaylistID  string            `json:"playlist_id"`
	EntityID    string            `json:"entity_id"`
	Content     string            `json:"content"`
	LabelID     string            `json:"label_id,omitempty"`
	Attachments []note.Attachment `json:"attachments,omitempty"`
}

// Publisher publishes notes. A publish is invoked at most once per
// successful local transition to Published; the pipeline guarantees this
// by checking status before calling.
type Publisher interface {
	// Publish sends the note and returns the remote note identifier.
	// An empty identifier with a nil error is treated as a failure by
	// the caller.
	Publish(ctx context.Context, req PublishRequest) (string, error)
}

// StatusClient reads and writes entity statuses.
type StatusClient interface {
	FetchStatusesForEntity(ctx context.Context, entityType, entityID string) (*EntityStatus, error)
	UpdateEntityStatus(ctx context.Context, entityType, entityID, statusID string) error
}

// AssetOptions selects a variant of a fetched asset.
type AssetOptions struct {
	// Size is a variant discriminator such as "256" or "720"; empty
	// means the service default.
	Size string
}

// AssetClient fetches binary review assets (thumbnails).
type AssetClient interface {
	FetchAsset(ctx context.Context, componentID string, opts AssetOptions) ([]byte, error)
}
