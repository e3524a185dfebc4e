// Package note defines the draft data model shared by the storage,
// persistence, and publish layers.
//
// A draft is identified by its (playlist, entity) pair. Its status is
// derived from content and attachment presence by NextStatus, with one
// exception: a published draft stays published until an explicit clear.
package note

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a note draft.
type Status int

const (
	// StatusEmpty indicates no content and no attachments.
	StatusEmpty Status = iota
	// StatusDraft indicates unpublished local content.
	StatusDraft
	// StatusPublished indicates the note has been accepted by the remote
	// service. Published is absorbing: content edits never leave it.
	StatusPublished
)

// String returns the persisted representation of the status.
func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusDraft:
		return "draft"
	case StatusPublished:
		return "published"
	default:
		return "unknown"
	}
}

// ParseStatus converts a persisted status string back to a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "empty":
		return StatusEmpty, nil
	case "draft":
		return StatusDraft, nil
	case "published":
		return StatusPublished, nil
	default:
		return StatusEmpty, fmt.Errorf("unknown status %q", s)
	}
}

// NextStatus computes the status that follows a content or attachment
// mutation. Published is absorbing; only an explicit clear (which resets
// the draft wholesale) leaves it. Whitespace-only content does not count
// as content, but a draft with zero text and one attachment is a draft.
func NextStatus(current Status, hasContent, hasAttachments bool) Status {
	if current == StatusPublished {
		return StatusPublished
	}
	if hasContent || hasAttachments {
		return StatusDraft
	}
	return StatusEmpty
}

// Attachment is a file attached to a draft. The draft exclusively owns its
// attachment list. PreviewHandle is a transient display handle granted by
// the persistence layer while an editor holds the attachment; it is never
// persisted.
type Attachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`

	// PreviewHandle is set while a preview is open and revoked when the
	// draft is cleared, the attachment is replaced, or the editor closes.
	PreviewHandle string `json:"-"`

	// Source data: either raw bytes or a path into the local filesystem.
	// Exactly one is expected to be set.
	Data     []byte `json:"data,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

// NewAttachment builds an attachment with a generated id, inferring the
// mime type from the file name when mimeType is empty.
func NewAttachment(name, mimeType string, data []byte) Attachment {
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(name))
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return Attachment{
		ID:       uuid.NewString(),
		Name:     name,
		MimeType: mimeType,
		Data:     data,
	}
}

// NewFileAttachment builds an attachment referencing a file on disk
// instead of carrying raw bytes.
func NewFileAttachment(path string) Attachment {
	att := NewAttachment(filepath.Base(path), "", nil)
	att.FilePath = path
	return att
}

// Draft is the in-progress note for one (playlist, entity) pair.
type Draft struct {
	PlaylistID  string       `json:"playlist_id"`
	EntityID    string       `json:"entity_id"`
	Content     string       `json:"content"`
	LabelID     string       `json:"label_id,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Status      Status       `json:"-"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// HasContent reports whether the draft carries non-whitespace text.
func (d *Draft) HasContent() bool {
	return strings.TrimSpace(d.Content) != ""
}

// HasAttachments reports whether the draft carries at least one attachment.
func (d *Draft) HasAttachments() bool {
	return len(d.Attachments) > 0
}

// Clone returns a deep copy safe to hand to observers and writers while
// the original keeps mutating.
func (d *Draft) Clone() *Draft {
	c := *d
	if d.Attachments != nil {
		c.Attachments = make([]Attachment, len(d.Attachments))
		copy(c.Attachments, d.Attachments)
	}
	return &c
}

// Validate checks the identifying fields required before any persistence.
func (d *Draft) Validate() error {
	if d.PlaylistID == "" {
		return fmt.Errorf("playlist id is required")
	}
	if d.EntityID == "" {
		return fmt.Errorf("entity id is required")
	}
	return nil
}
