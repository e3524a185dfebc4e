package draft

import (
	"sync"

	"github.com/google/uuid"
	"github.com/matteoveglia/AstraNotes-sub002/internal/note"
)

// PreviewRegistry tracks the transient preview handles granted to
// attachments while an editor displays them. Handles must be revoked when
// a draft is cleared, an attachment is replaced, or the manager shuts
// down; a handle left open is a resource leak.
type PreviewRegistry struct {
	mu   sync.Mutex
	open map[string]string // handle -> attachment id
}

// NewPreviewRegistry creates an empty registry.
func NewPreviewRegistry() *PreviewRegistry {
	return &PreviewRegistry{
		open: make(map[string]string),
	}
}

// Grant issues a fresh preview handle and records it on the attachment.
func (r *PreviewRegistry) Grant(att *note.Attachment) string {
	handle := "preview://" + uuid.NewString()

	r.mu.Lock()
	r.open[handle] = att.ID
	r.mu.Unlock()

	att.PreviewHandle = handle
	return handle
}

// Revoke releases a single handle. Revoking an unknown or already-revoked
// handle is a no-op.
func (r *PreviewRegistry) Revoke(handle string) {
	if handle == "" {
		return
	}
	r.mu.Lock()
	delete(r.open, handle)
	r.mu.Unlock()
}

// RevokeAll releases the handles of every attachment in the list.
func (r *PreviewRegistry) RevokeAll(attachments []note.Attachment) {
	r.mu.Lock()
	for _, att := range attachments {
		if att.PreviewHandle != "" {
			delete(r.open, att.PreviewHandle)
		}
	}
	r.mu.Unlock()
}

// OpenCount returns the number of outstanding handles. A non-zero count
// after teardown indicates a leak.
func (r *PreviewRegistry) OpenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}
