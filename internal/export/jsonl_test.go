package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matteoveglia/AstraNotes-sub002/internal/note"
)

// fakeStore records imports and serves a fixed draft list for exports.
type fakeStore struct {
	drafts []*note.Draft

	contents    map[string]string
	statuses    map[string]note.Status
	attachments map[string][]note.Attachment

	failEntity string
}

func newFakeStore(drafts ...*note.Draft) *fakeStore {
	return &fakeStore{
		drafts:      drafts,
		contents:    make(map[string]string),
		statuses:    make(map[string]note.Status),
		attachments: make(map[string][]note.Attachment),
	}
}

func (f *fakeStore) ListByPlaylist(_ context.Context, playlistID string) ([]*note.Draft, error) {
	var out []*note.Draft
	for _, d := range f.drafts {
		if d.PlaylistID == playlistID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) PutContent(_ context.Context, playlistID, entityID, content, labelID string) error {
	if entityID == f.failEntity {
		return fmt.Errorf("disk full")
	}
	f.contents[playlistID+"/"+entityID] = content
	return nil
}

func (f *fakeStore) PutStatus(_ context.Context, playlistID, entityID string, status note.Status) error {
	f.statuses[playlistID+"/"+entityID] = status
	return nil
}

func (f *fakeStore) PutAttachments(_ context.Context, playlistID, entityID string, attachments []note.Attachment) error {
	f.attachments[playlistID+"/"+entityID] = attachments
	return nil
}

func sampleDrafts() []*note.Draft {
	return []*note.Draft{
		{
			PlaylistID: "pl-1",
			EntityID:   "v1",
			Content:    "tighten the key light",
			LabelID:    "lbl-note",
			Status:     note.StatusDraft,
			UpdatedAt:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
			Attachments: []note.Attachment{
				{ID: "att-1", Name: "ref.png", MimeType: "image/png", Data: []byte{1, 2, 3}},
			},
		},
		{
			PlaylistID: "pl-1",
			EntityID:   "v2",
			Content:    "approved",
			Status:     note.StatusPublished,
			UpdatedAt:  time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		},
	}
}

func TestExportImportRoundtrip(t *testing.T) {
	ctx := context.Background()
	src := newFakeStore(sampleDrafts()...)
	path := filepath.Join(t.TempDir(), "pl-1.jsonl")

	exported, err := Export(ctx, src, "pl-1", path)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if exported.DraftsWritten != 2 {
		t.Errorf("DraftsWritten = %d, want 2", exported.DraftsWritten)
	}

	dst := newFakeStore()
	imported, err := Import(ctx, dst, ImportOptions{FromJSONL: path})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if imported.DraftsImported != 2 {
		t.Errorf("DraftsImported = %d, want 2", imported.DraftsImported)
	}
	if len(imported.Errors) != 0 {
		t.Errorf("unexpected errors: %v", imported.Errors)
	}

	if got := dst.contents["pl-1/v1"]; got != "tighten the key light" {
		t.Errorf("v1 content = %q", got)
	}
	if got := dst.statuses["pl-1/v2"]; got != note.StatusPublished {
		t.Errorf("v2 status = %v, want Published", got)
	}
	atts := dst.attachments["pl-1/v1"]
	if len(atts) != 1 || atts[0].Name != "ref.png" || string(atts[0].Data) != "\x01\x02\x03" {
		t.Errorf("v1 attachments not preserved: %+v", atts)
	}
}

func TestExportLeavesNoTempFile(t *testing.T) {
	src := newFakeStore(sampleDrafts()...)
	path := filepath.Join(t.TempDir(), "out.jsonl")

	if _, err := Export(context.Background(), src, "pl-1", path); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("export file missing: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind")
	}
}

func TestExportEmptyPlaylist(t *testing.T) {
	src := newFakeStore()
	path := filepath.Join(t.TempDir(), "empty.jsonl")

	result, err := Export(context.Background(), src, "pl-none", path)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.DraftsWritten != 0 {
		t.Errorf("DraftsWritten = %d, want 0", result.DraftsWritten)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("empty export should still produce a file: %v", err)
	}
}

func TestImportSkipsBadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.jsonl")
	lines := []string{
		`{"playlist_id":"pl-1","entity_id":"v1","content":"good","status":"draft","updated_at":"2026-03-14T09:30:00Z"}`,
		`{"playlist_id":"pl-1","entity_id":"v2","content":"bad status","status":"archived","updated_at":"2026-03-14T09:31:00Z"}`,
		`{"playlist_id":"pl-1","entity_id":"","content":"no entity","status":"draft","updated_at":"2026-03-14T09:32:00Z"}`,
		`{"playlist_id":"pl-1","entity_id":"v4","content":"also good","status":"published","updated_at":"2026-03-14T09:33:00Z"}`,
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	dst := newFakeStore()
	result, err := Import(context.Background(), dst, ImportOptions{FromJSONL: path})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if result.DraftsImported != 2 {
		t.Errorf("DraftsImported = %d, want 2", result.DraftsImported)
	}
	if len(result.Errors) != 2 {
		t.Errorf("Errors = %v, want 2 entries", result.Errors)
	}
	if _, ok := dst.contents["pl-1/v1"]; !ok {
		t.Error("v1 should have imported")
	}
	if _, ok := dst.contents["pl-1/v2"]; ok {
		t.Error("v2 with unknown status should have been skipped")
	}
}

func TestImportIsolatesStoreFailures(t *testing.T) {
	ctx := context.Background()
	src := newFakeStore(sampleDrafts()...)
	path := filepath.Join(t.TempDir(), "pl-1.jsonl")
	if _, err := Export(ctx, src, "pl-1", path); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	dst := newFakeStore()
	dst.failEntity = "v1"

	result, err := Import(ctx, dst, ImportOptions{FromJSONL: path})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.DraftsImported != 1 {
		t.Errorf("DraftsImported = %d, want 1", result.DraftsImported)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v, want 1 entry", result.Errors)
	}
	if _, ok := dst.contents["pl-1/v2"]; !ok {
		t.Error("v2 should have imported despite v1 failure")
	}
}

func TestImportDryRun(t *testing.T) {
	ctx := context.Background()
	src := newFakeStore(sampleDrafts()...)
	path := filepath.Join(t.TempDir(), "pl-1.jsonl")
	if _, err := Export(ctx, src, "pl-1", path); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	dst := newFakeStore()
	result, err := Import(ctx, dst, ImportOptions{FromJSONL: path, DryRun: true})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.DraftsImported != 2 {
		t.Errorf("DraftsImported = %d, want 2", result.DraftsImported)
	}
	if len(dst.contents) != 0 {
		t.Errorf("dry run wrote to store: %v", dst.contents)
	}
}

func TestImportBackup(t *testing.T) {
	ctx := context.Background()
	src := newFakeStore(sampleDrafts()...)
	dir := t.TempDir()
	path := filepath.Join(dir, "pl-1.jsonl")
	if _, err := Export(ctx, src, "pl-1", path); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	result, err := Import(ctx, newFakeStore(), ImportOptions{FromJSONL: path, Backup: true})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.BackupCreated == "" {
		t.Fatal("expected a backup path")
	}
	if _, err := os.Stat(result.BackupCreated); err != nil {
		t.Errorf("backup file missing: %v", err)
	}
}

func TestImportMissingFile(t *testing.T) {
	_, err := Import(context.Background(), newFakeStore(), ImportOptions{
		FromJSONL: filepath.Join(t.TempDir(), "nope.jsonl"),
	})
	if err == nil {
		t.Fatal("expected error for missing input")
	}
}
