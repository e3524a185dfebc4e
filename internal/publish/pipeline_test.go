package publish

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/matteoveglia/AstraNotes-sub002/internal/draft"
	"github.com/matteoveglia/AstraNotes-sub002/internal/note"
	"github.com/matteoveglia/AstraNotes-sub002/internal/remote"
)

// fakePublisher counts remote calls and fails configured entities.
type fakePublisher struct {
	mu       sync.Mutex
	calls    map[string]int
	failFor  map[string]bool
	emptyFor map[string]bool
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		calls:    make(map[string]int),
		failFor:  make(map[string]bool),
		emptyFor: make(map[string]bool),
	}
}

func (f *fakePublisher) Publish(_ context.Context, req remote.PublishRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.EntityID]++
	if f.failFor[req.EntityID] {
		return "", errors.New("injected publish failure")
	}
	if f.emptyFor[req.EntityID] {
		return "", nil
	}
	return "note-" + req.EntityID, nil
}

func (f *fakePublisher) callCount(entityID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[entityID]
}

// nullStore is a draft.Store that accepts everything; the pipeline tests
// exercise publish logic, not persistence.
type nullStore struct{}

func (nullStore) PutContent(context.Context, string, string, string, string) error { return nil }
func (nullStore) PutStatus(context.Context, string, string, note.Status) error     { return nil }
func (nullStore) PutAttachments(context.Context, string, string, []note.Attachment) error {
	return nil
}
func (nullStore) DeleteDraft(context.Context, string, string) error { return nil }
func (nullStore) ListByPlaylist(context.Context, string) ([]*note.Draft, error) {
	return nil, nil
}

func newTestPipeline(t *testing.T) (*Pipeline, *draft.Manager, *fakePublisher) {
	t.Helper()

	cfg := draft.DefaultConfig()
	cfg.IdleDebounce = time.Millisecond
	cfg.RetryBackoff = time.Millisecond
	cfg.Logger = log.New(os.Stderr, "[draft-test] ", 0)

	m, err := draft.New(nullStore{}, "pl-1", cfg)
	if err != nil {
		t.Fatalf("draft.New failed: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	pub := newFakePublisher()
	p, err := New(m, pub, log.New(os.Stderr, "[publish-test] ", 0))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p, m, pub
}

func TestPublishSuccessMarksPublished(t *testing.T) {
	p, m, pub := newTestPipeline(t)
	ctx := context.Background()

	m.Save("v1", "Looks good", "",
		[]note.Attachment{note.NewAttachment("ref.png", "image/png", []byte{1})})

	result := p.PublishSequential(ctx, []string{"v1"}, nil)
	if !result.FullySuccessful() {
		t.Fatalf("publish failed: %+v", result.Items)
	}
	if result.Items[0].RemoteID != "note-v1" {
		t.Errorf("RemoteID = %q, want note-v1", result.Items[0].RemoteID)
	}

	d, _ := m.Get("v1")
	if d.Status != note.StatusPublished {
		t.Errorf("Status = %v, want published", d.Status)
	}

	// Second publish is an idempotent no-op: no additional remote call.
	result = p.PublishSequential(ctx, []string{"v1"}, nil)
	if !result.FullySuccessful() {
		t.Fatal("second publish was not a success")
	}
	if n := pub.callCount("v1"); n != 1 {
		t.Errorf("remote calls = %d, want 1", n)
	}
}

func TestPublishEmptyDraftIsSuccessWithoutRemoteCall(t *testing.T) {
	p, m, pub := newTestPipeline(t)

	m.Save("v1", "   ", "", nil)

	result := p.PublishBatch(context.Background(), []string{"v1", "never-edited"})
	if !result.FullySuccessful() {
		t.Fatalf("empty drafts must not fail a bulk publish: %+v", result.Items)
	}
	if n := pub.callCount("v1"); n != 0 {
		t.Errorf("remote calls for empty draft = %d, want 0", n)
	}

	// Empty drafts are not promoted to published.
	if d, _ := m.Get("v1"); d.Status != note.StatusEmpty {
		t.Errorf("Status = %v, want empty", d.Status)
	}
}

func TestBatchPartialFailure(t *testing.T) {
	p, m, pub := newTestPipeline(t)
	pub.failFor["v2"] = true

	for _, id := range []string{"v1", "v2", "v3"} {
		m.Save(id, "note for "+id, "", nil)
	}

	result := p.PublishBatch(context.Background(), []string{"v1", "v2", "v3"})

	if len(result.Success) != 2 || result.Success[0] != "v1" || result.Success[1] != "v3" {
		t.Errorf("Success = %v, want [v1 v3]", result.Success)
	}
	if len(result.Failed) != 1 || result.Failed[0] != "v2" {
		t.Errorf("Failed = %v, want [v2]", result.Failed)
	}
	if got := result.Summary(); got != "Published 2, 1 failed" {
		t.Errorf("Summary = %q", got)
	}

	// Failed draft is preserved unchanged and retryable.
	d, _ := m.Get("v2")
	if d.Status != note.StatusDraft {
		t.Errorf("v2 Status = %v, want draft", d.Status)
	}
	if d.Content != "note for v2" {
		t.Errorf("v2 Content = %q, changed by failed publish", d.Content)
	}

	for _, id := range []string{"v1", "v3"} {
		if d, _ := m.Get(id); d.Status != note.StatusPublished {
			t.Errorf("%s Status = %v, want published", id, d.Status)
		}
	}
}

func TestMissingRemoteIdentifierIsFailure(t *testing.T) {
	p, m, pub := newTestPipeline(t)
	pub.emptyFor["v1"] = true

	m.Save("v1", "note", "", nil)

	result := p.PublishSequential(context.Background(), []string{"v1"}, nil)
	if len(result.Failed) != 1 {
		t.Fatalf("expected failure on missing identifier, got %+v", result.Items)
	}
	if d, _ := m.Get("v1"); d.Status != note.StatusDraft {
		t.Errorf("Status = %v, want draft preserved", d.Status)
	}
}

func TestSequentialProgressReporting(t *testing.T) {
	p, m, pub := newTestPipeline(t)
	pub.failFor["v2"] = true

	for _, id := range []string{"v1", "v2", "v3"} {
		m.Save(id, "note", "", nil)
	}

	type tick struct {
		index, total int
		label, step  string
	}
	var ticks []tick
	p.PublishSequential(context.Background(), []string{"v1", "v2", "v3"},
		func(index, total int, label, step string) {
			ticks = append(ticks, tick{index, total, label, step})
		})

	want := []tick{
		{1, 3, "v1", "published"},
		{2, 3, "v2", "failed"},
		{3, 3, "v3", "published"},
	}
	if len(ticks) != len(want) {
		t.Fatalf("got %d progress ticks, want %d", len(ticks), len(want))
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Errorf("tick %d = %+v, want %+v", i, ticks[i], want[i])
		}
	}
}

func TestSelectionClearedOnlyOnFullSuccess(t *testing.T) {
	p, m, pub := newTestPipeline(t)
	ctx := context.Background()

	m.Save("v1", "a", "", nil)
	m.Save("v2", "b", "", nil)

	pub.failFor["v2"] = true
	p.Select("v1", "v2")

	result := p.PublishSelected(ctx)
	if result.FullySuccessful() {
		t.Fatal("expected partial failure")
	}
	if got := p.Selection(); len(got) != 2 {
		t.Errorf("Selection = %v, want preserved on partial failure", got)
	}

	pub.failFor["v2"] = false
	result = p.PublishSelected(ctx)
	if !result.FullySuccessful() {
		t.Fatalf("retry failed: %+v", result.Items)
	}
	if got := p.Selection(); len(got) != 0 {
		t.Errorf("Selection = %v, want cleared on full success", got)
	}
}

func TestSequentialStopsOnCancelledContext(t *testing.T) {
	p, m, _ := newTestPipeline(t)

	m.Save("v1", "a", "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := p.PublishSequential(ctx, []string{"v1"}, nil)
	if len(result.Items) != 0 {
		t.Errorf("cancelled run processed %d items, want 0", len(result.Items))
	}
}
