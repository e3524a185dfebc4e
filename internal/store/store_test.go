package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/matteoveglia/AstraNotes-sub002/internal/note"
)

// setupTestStore creates a temporary database for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "drafts.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	return s
}

func TestPutContentAndGetDraft(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.PutContent(ctx, "pl-1", "v1", "fix lighting", "lbl-2"); err != nil {
		t.Fatalf("PutContent failed: %v", err)
	}

	draft, err := s.GetDraft(ctx, "pl-1", "v1")
	if err != nil {
		t.Fatalf("GetDraft failed: %v", err)
	}

	if draft.Content != "fix lighting" {
		t.Errorf("Content = %q, want %q", draft.Content, "fix lighting")
	}
	if draft.LabelID != "lbl-2" {
		t.Errorf("LabelID = %q, want %q", draft.LabelID, "lbl-2")
	}
	if draft.Status != note.StatusEmpty {
		t.Errorf("Status = %v, want empty before PutStatus", draft.Status)
	}
}

func TestGetDraftNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetDraft(context.Background(), "pl-1", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPutStatus(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.PutContent(ctx, "pl-1", "v1", "note", ""); err != nil {
		t.Fatalf("PutContent failed: %v", err)
	}
	if err := s.PutStatus(ctx, "pl-1", "v1", note.StatusPublished); err != nil {
		t.Fatalf("PutStatus failed: %v", err)
	}

	draft, err := s.GetDraft(ctx, "pl-1", "v1")
	if err != nil {
		t.Fatalf("GetDraft failed: %v", err)
	}
	if draft.Status != note.StatusPublished {
		t.Errorf("Status = %v, want published", draft.Status)
	}

	// Status writes must not clobber content.
	if draft.Content != "note" {
		t.Errorf("Content = %q, want %q", draft.Content, "note")
	}
}

func TestPutAttachmentsPreservesOrder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.PutContent(ctx, "pl-1", "v1", "", ""); err != nil {
		t.Fatalf("PutContent failed: %v", err)
	}

	atts := []note.Attachment{
		note.NewAttachment("z.png", "image/png", []byte{1}),
		note.NewAttachment("a.jpg", "image/jpeg", []byte{2}),
		note.NewAttachment("m.pdf", "application/pdf", nil),
	}
	atts[2].FilePath = "/tmp/m.pdf"

	if err := s.PutAttachments(ctx, "pl-1", "v1", atts); err != nil {
		t.Fatalf("PutAttachments failed: %v", err)
	}

	draft, err := s.GetDraft(ctx, "pl-1", "v1")
	if err != nil {
		t.Fatalf("GetDraft failed: %v", err)
	}
	if len(draft.Attachments) != 3 {
		t.Fatalf("got %d attachments, want 3", len(draft.Attachments))
	}
	for i, want := range []string{"z.png", "a.jpg", "m.pdf"} {
		if draft.Attachments[i].Name != want {
			t.Errorf("attachment %d = %q, want %q", i, draft.Attachments[i].Name, want)
		}
	}
	if draft.Attachments[2].FilePath != "/tmp/m.pdf" {
		t.Errorf("FilePath = %q, want /tmp/m.pdf", draft.Attachments[2].FilePath)
	}
}

func TestPutAttachmentsReplacesList(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.PutContent(ctx, "pl-1", "v1", "", ""); err != nil {
		t.Fatalf("PutContent failed: %v", err)
	}
	if err := s.PutAttachments(ctx, "pl-1", "v1", []note.Attachment{
		note.NewAttachment("old.png", "image/png", nil),
	}); err != nil {
		t.Fatalf("PutAttachments failed: %v", err)
	}
	if err := s.PutAttachments(ctx, "pl-1", "v1", nil); err != nil {
		t.Fatalf("PutAttachments (empty) failed: %v", err)
	}

	draft, err := s.GetDraft(ctx, "pl-1", "v1")
	if err != nil {
		t.Fatalf("GetDraft failed: %v", err)
	}
	if len(draft.Attachments) != 0 {
		t.Errorf("got %d attachments, want 0 after replace", len(draft.Attachments))
	}
}

func TestDeleteDraftCascades(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.PutContent(ctx, "pl-1", "v1", "bye", ""); err != nil {
		t.Fatalf("PutContent failed: %v", err)
	}
	if err := s.PutAttachments(ctx, "pl-1", "v1", []note.Attachment{
		note.NewAttachment("a.png", "image/png", nil),
	}); err != nil {
		t.Fatalf("PutAttachments failed: %v", err)
	}

	if err := s.DeleteDraft(ctx, "pl-1", "v1"); err != nil {
		t.Fatalf("DeleteDraft failed: %v", err)
	}

	if _, err := s.GetDraft(ctx, "pl-1", "v1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Idempotent on missing key.
	if err := s.DeleteDraft(ctx, "pl-1", "v1"); err != nil {
		t.Errorf("second DeleteDraft failed: %v", err)
	}
}

func TestListByPlaylist(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, e := range []string{"v1", "v2"} {
		if err := s.PutContent(ctx, "pl-1", e, "note for "+e, ""); err != nil {
			t.Fatalf("PutContent failed: %v", err)
		}
	}
	if err := s.PutContent(ctx, "pl-2", "v9", "other playlist", ""); err != nil {
		t.Fatalf("PutContent failed: %v", err)
	}

	drafts, err := s.ListByPlaylist(ctx, "pl-1")
	if err != nil {
		t.Fatalf("ListByPlaylist failed: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("got %d drafts, want 2", len(drafts))
	}

	count, err := s.CountDrafts(ctx)
	if err != nil {
		t.Fatalf("CountDrafts failed: %v", err)
	}
	if count != 3 {
		t.Errorf("CountDrafts = %d, want 3", count)
	}
}
