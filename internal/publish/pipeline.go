// Package publish drains local drafts to the remote service.
//
// The pipeline has two modes built on the same per-item logic: sequential
// (ordered, with per-item progress reporting) and batch (unordered, for
// bulk actions). Per-item failure is isolated: one rejected note never
// rolls back or stops the others, so partial success is a valid terminal
// outcome.
package publish

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matteoveglia/AstraNotes-sub002/internal/draft"
	"github.com/matteoveglia/AstraNotes-sub002/internal/note"
	"github.com/matteoveglia/AstraNotes-sub002/internal/remote"
)

// Outcome classifies the result of publishing one entity.
type Outcome int

const (
	// OutcomeSuccess covers accepted publishes, already-published
	// entities, and empty drafts with nothing to send.
	OutcomeSuccess Outcome = iota
	// OutcomeSkipped is reserved for callers that filter candidates
	// before invoking the pipeline.
	OutcomeSkipped
	// OutcomeFailed means the remote rejected the note or was
	// unreachable. The local draft is preserved unchanged.
	OutcomeFailed
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ItemResult is the per-entity outcome of a publish run.
type ItemResult struct {
	EntityID string
	Outcome  Outcome
	RemoteID string
	Err      error
}

// Result aggregates a publish run. A non-empty Failed list does not roll
// back the successful items.
type Result struct {
	Success []string
	Failed  []string
	Items   []ItemResult
}

// Summary returns the count-based summary surfaced to the user,
// e.g. "Published 4, 1 failed".
func (r *Result) Summary() string {
	if len(r.Failed) == 0 {
		return fmt.Sprintf("Published %d", len(r.Success))
	}
	return fmt.Sprintf("Published %d, %d failed", len(r.Success), len(r.Failed))
}

// FullySuccessful reports whether every item succeeded.
func (r *Result) FullySuccessful() bool {
	return len(r.Failed) == 0
}

// ProgressFunc reports sequential-mode progress after each item.
type ProgressFunc func(index, total int, entityLabel, step string)

// Pipeline publishes drafts from one manager to the remote service. It
// also owns the active selection set used by bulk actions.
type Pipeline struct {
	drafts *draft.Manager
	remote remote.Publisher
	logger *log.Logger

	// batchLimit bounds concurrent remote calls in batch mode.
	batchLimit int

	selMu    sync.Mutex
	selected map[string]bool
}

// New creates a pipeline. If logger is nil, a default logger writing to
// stderr is used.
func New(drafts *draft.Manager, publisher remote.Publisher, logger *log.Logger) (*Pipeline, error) {
	if drafts == nil {
		return nil, fmt.Errorf("draft manager cannot be nil")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher cannot be nil")
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[publish] ", log.LstdFlags)
	}

	return &Pipeline{
		drafts:     drafts,
		remote:     publisher,
		logger:     logger,
		batchLimit: 4,
		selected:   make(map[string]bool),
	}, nil
}

// Select adds entities to the active selection.
func (p *Pipeline) Select(entityIDs ...string) {
	p.selMu.Lock()
	for _, id := range entityIDs {
		p.selected[id] = true
	}
	p.selMu.Unlock()
}

// Deselect removes entities from the active selection.
func (p *Pipeline) Deselect(entityIDs ...string) {
	p.selMu.Lock()
	for _, id := range entityIDs {
		delete(p.selected, id)
	}
	p.selMu.Unlock()
}

// Selection returns the selected entity ids, sorted.
func (p *Pipeline) Selection() []string {
	p.selMu.Lock()
	ids := make([]string, 0, len(p.selected))
	for id := range p.selected {
		ids = append(ids, id)
	}
	p.selMu.Unlock()

	sort.Strings(ids)
	return ids
}

// PublishSequential publishes entities one at a time in the given order,
// reporting progress after each item. Used when the caller drives a
// progress UI.
func (p *Pipeline) PublishSequential(ctx context.Context, entityIDs []string, progress ProgressFunc) *Result {
	result := &Result{}
	total := len(entityIDs)

	for i, entityID := range entityIDs {
		if ctx.Err() != nil {
			p.logger.Printf("sequential publish cancelled after %d of %d", i, total)
			break
		}

		item := p.publishOne(ctx, entityID)
		result.record(item)

		step := "published"
		if item.Outcome == OutcomeFailed {
			step = "failed"
		}
		if progress != nil {
			progress(i+1, total, entityID, step)
		}
	}

	p.finish(result)
	return result
}

// PublishBatch publishes entities with no ordering guarantee, bounding
// remote fan-out. Used for bulk actions without a progress UI.
func (p *Pipeline) PublishBatch(ctx context.Context, entityIDs []string) *Result {
	result := &Result{}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.batchLimit)

	for _, entityID := range entityIDs {
		g.Go(func() error {
			item := p.publishOne(ctx, entityID)
			mu.Lock()
			result.record(item)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(result.Success)
	sort.Strings(result.Failed)
	p.finish(result)
	return result
}

// PublishSelected publishes the current selection as a batch.
func (p *Pipeline) PublishSelected(ctx context.Context) *Result {
	return p.PublishBatch(ctx, p.Selection())
}

// publishOne runs the per-item algorithm:
//  1. Already published: Success without a remote call (idempotent).
//  2. Nothing to publish: Success, so bulk runs don't report failures
//     merely because some drafts are empty.
//  3. Otherwise call the remote service; a missing identifier counts as
//     failure.
//  4. On success persist Published; on failure leave the draft untouched
//     so retry is simply "publish again".
func (p *Pipeline) publishOne(ctx context.Context, entityID string) ItemResult {
	d, ok := p.drafts.Get(entityID)
	if !ok {
		return ItemResult{EntityID: entityID, Outcome: OutcomeSuccess}
	}

	if d.Status == note.StatusPublished {
		return ItemResult{EntityID: entityID, Outcome: OutcomeSuccess}
	}

	if !d.HasContent() && !d.HasAttachments() {
		return ItemResult{EntityID: entityID, Outcome: OutcomeSuccess}
	}

	remoteID, err := p.remote.Publish(ctx, remote.PublishRequest{
		PlaylistID:  d.PlaylistID,
		EntityID:    d.EntityID,
		Content:     d.Content,
		LabelID:     d.LabelID,
		Attachments: d.Attachments,
	})
	if err != nil {
		p.logger.Printf("publish failed for %s: %v", entityID, err)
		return ItemResult{EntityID: entityID, Outcome: OutcomeFailed, Err: err}
	}
	if remoteID == "" {
		err := fmt.Errorf("remote returned no note identifier")
		p.logger.Printf("publish failed for %s: %v", entityID, err)
		return ItemResult{EntityID: entityID, Outcome: OutcomeFailed, Err: err}
	}

	// The remote accepted the note; a failure to persist locally is
	// logged but does not demote the outcome.
	if err := p.drafts.MarkPublished(ctx, entityID); err != nil {
		p.logger.Printf("warning: %v", err)
	}

	return ItemResult{EntityID: entityID, Outcome: OutcomeSuccess, RemoteID: remoteID}
}

// finish applies the selection policy: a fully-successful run clears the
// selection, a partial failure leaves it for the user to reassess.
func (p *Pipeline) finish(result *Result) {
	p.logger.Printf("%s", result.Summary())
	if result.FullySuccessful() {
		p.selMu.Lock()
		p.selected = make(map[string]bool)
		p.selMu.Unlock()
	}
}

func (r *Result) record(item ItemResult) {
	r.Items = append(r.Items, item)
	switch item.Outcome {
	case OutcomeFailed:
		r.Failed = append(r.Failed, item.EntityID)
	case OutcomeSuccess:
		r.Success = append(r.Success, item.EntityID)
	}
}
