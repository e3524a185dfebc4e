// Package draft implements the in-memory draft state and the debounced,
// retrying durable write path.
//
// The manager:
//  1. Applies every edit to in-memory state synchronously
//  2. Derives the note status on each mutation (published is absorbing)
//  3. Coalesces rapid saves per entity into one debounced durable write
//  4. Retries failed writes, then degrades to a content-only save
//  5. Notifies subscribers after each visible state change
//
// Writes for the same entity are serialized by the debounce coalescing
// plus a per-entity write lock; writes for different entities may run
// concurrently.
package draft

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matteoveglia/AstraNotes-sub002/internal/note"
)

// Store is the durable persistence consumed by the manager. *store.Store
// satisfies it; tests substitute failure-injecting fakes.
type Store interface {
	PutContent(ctx context.Context, playlistID, entityID, content, labelID string) error
	PutStatus(ctx context.Context, playlistID, entityID string, status note.Status) error
	PutAttachments(ctx context.Context, playlistID, entityID string, attachments []note.Attachment) error
	DeleteDraft(ctx context.Context, playlistID, entityID string) error
	ListByPlaylist(ctx context.Context, playlistID string) ([]*note.Draft, error)
}

// EventKind identifies what changed about a draft.
type EventKind int

const (
	// EventSaved indicates content, label, or attachments changed.
	EventSaved EventKind = iota
	// EventStatusChanged indicates the derived status moved.
	EventStatusChanged
	// EventCleared indicates an explicit clear reset the draft.
	EventCleared
	// EventDegraded indicates attachments were dropped by a degraded save.
	EventDegraded
	// EventPublished indicates the draft reached published status.
	EventPublished
)

// String returns a wire-friendly name for the event kind.
func (k EventKind) String() string {
	switch k {
	case EventSaved:
		return "saved"
	case EventStatusChanged:
		return "status_changed"
	case EventCleared:
		return "cleared"
	case EventDegraded:
		return "degraded"
	case EventPublished:
		return "published"
	default:
		return "unknown"
	}
}

// Event describes a draft mutation. Events are emitted after the
// in-memory state is fully updated, so observers never see a
// partially-applied change.
type Event struct {
	PlaylistID string
	EntityID   string
	Kind       EventKind
	Status     note.Status
}

// Config holds tuning knobs for the manager.
type Config struct {
	// IdleDebounce is the write delay when the user is not interacting.
	IdleDebounce time.Duration

	// TypingDebounce is the longer write delay used while continuous
	// input is detected, so fast typing doesn't saturate the store.
	TypingDebounce time.Duration

	// WriteRetries is how many additional attempts follow a failed write
	// before degrading to a content-only save.
	WriteRetries int

	// RetryBackoff is the fixed delay between write attempts.
	RetryBackoff time.Duration

	// Logger for write activity. Nil means a stderr default.
	Logger *log.Logger
}

// DefaultConfig returns the tuning used by the application.
func DefaultConfig() *Config {
	return &Config{
		IdleDebounce:   150 * time.Millisecond,
		TypingDebounce: 350 * time.Millisecond,
		WriteRetries:   2,
		RetryBackoff:   300 * time.Millisecond,
		Logger:         log.New(os.Stderr, "[draft] ", log.LstdFlags),
	}
}

// Manager owns the drafts of one playlist.
type Manager struct {
	store      Store
	playlistID string
	cfg        *Config
	logger     *log.Logger

	mu            sync.Mutex
	drafts        map[string]*note.Draft
	timers        map[string]*time.Timer
	writeLocks    map[string]*sync.Mutex
	durableStatus map[string]note.Status
	// revs counts in-memory mutations per entity. A write snapshot
	// carries the revision it saw; a degrade whose snapshot was
	// superseded by a newer edit must not clobber that edit.
	revs map[string]uint64
	// cleared marks entities whose draft was explicitly cleared and not
	// edited since; pending write snapshots for them are dropped.
	cleared map[string]bool
	closed  bool

	interacting atomic.Bool
	previews    *PreviewRegistry

	subsMu  sync.Mutex
	subs    map[int]func(Event)
	nextSub int

	wg sync.WaitGroup
}

// New creates a manager for the given playlist.
func New(st Store, playlistID string, cfg *Config) (*Manager, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if playlistID == "" {
		return nil, fmt.Errorf("playlistID cannot be empty")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[draft] ", log.LstdFlags)
	}

	return &Manager{
		store:         st,
		playlistID:    playlistID,
		cfg:           cfg,
		logger:        logger,
		drafts:        make(map[string]*note.Draft),
		timers:        make(map[string]*time.Timer),
		writeLocks:    make(map[string]*sync.Mutex),
		durableStatus: make(map[string]note.Status),
		revs:          make(map[string]uint64),
		cleared:       make(map[string]bool),
		previews:      NewPreviewRegistry(),
		subs:          make(map[int]func(Event)),
	}, nil
}

// PlaylistID returns the playlist this manager is bound to.
func (m *Manager) PlaylistID() string {
	return m.playlistID
}

// Load hydrates in-memory state from the store. Call once on startup
// before accepting edits.
func (m *Manager) Load(ctx context.Context) error {
	drafts, err := m.store.ListByPlaylist(ctx, m.playlistID)
	if err != nil {
		return fmt.Errorf("failed to load drafts for playlist %s: %w", m.playlistID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range drafts {
		for i := range d.Attachments {
			m.previews.Grant(&d.Attachments[i])
		}
		m.drafts[d.EntityID] = d
		m.durableStatus[d.EntityID] = d.Status
	}
	return nil
}

// Save applies an edit to in-memory state immediately and schedules a
// coalesced durable write. A new save cancels any pending write for the
// same entity and restarts the debounce window.
//
// Preview handles: attachments removed by this edit are revoked;
// attachments without a handle are granted one.
func (m *Manager) Save(entityID, content, labelID string, attachments []note.Attachment) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	d, ok := m.drafts[entityID]
	if !ok {
		d = &note.Draft{PlaylistID: m.playlistID, EntityID: entityID}
		m.drafts[entityID] = d
	}

	kept := make(map[string]bool, len(attachments))
	for _, att := range attachments {
		kept[att.ID] = true
	}
	for _, old := range d.Attachments {
		if !kept[old.ID] {
			m.previews.Revoke(old.PreviewHandle)
		}
	}
	for i := range attachments {
		if attachments[i].PreviewHandle == "" {
			m.previews.Grant(&attachments[i])
		}
	}

	d.Content = content
	d.LabelID = labelID
	d.Attachments = attachments
	d.UpdatedAt = time.Now().UTC()
	m.revs[entityID]++
	delete(m.cleared, entityID)

	prev := d.Status
	d.Status = note.NextStatus(prev, d.HasContent(), d.HasAttachments())
	statusChanged := d.Status != prev
	status := d.Status

	m.scheduleWrite(entityID)
	m.mu.Unlock()

	m.notify(Event{PlaylistID: m.playlistID, EntityID: entityID, Kind: EventSaved, Status: status})
	if statusChanged {
		m.notify(Event{PlaylistID: m.playlistID, EntityID: entityID, Kind: EventStatusChanged, Status: status})
	}
}

// SetInteracting records whether continuous input is in progress. While
// interacting the debounce window widens; on interaction end all pending
// writes flush immediately instead of waiting out their windows.
func (m *Manager) SetInteracting(interacting bool) {
	was := m.interacting.Swap(interacting)
	if was && !interacting {
		m.FlushPending()
	}
}

// FlushPending starts the durable write for every entity with a pending
// debounce timer, without waiting for the windows to elapse.
func (m *Manager) FlushPending() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	ids := make([]string, 0, len(m.timers))
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
		ids = append(ids, id)
	}
	m.wg.Add(len(ids))
	m.mu.Unlock()

	for _, id := range ids {
		go func(entityID string) {
			defer m.wg.Done()
			m.persistEntity(entityID)
		}(id)
	}
}

// Clear resets a draft to empty content, no label, no attachments, and
// status Empty, revoking any open preview handles. This is the only
// transition out of Published. The durable delete is retried like any
// other write; an error is returned if it ultimately fails.
func (m *Manager) Clear(ctx context.Context, entityID string) error {
	// Hold the per-entity write lock so an in-flight persist finishes
	// before the delete; otherwise its write would land after the delete
	// and resurrect the draft on the next restart.
	lock := m.writeLock(entityID)
	lock.Lock()

	m.mu.Lock()
	if t, ok := m.timers[entityID]; ok {
		t.Stop()
		delete(m.timers, entityID)
	}

	d, ok := m.drafts[entityID]
	wasNonEmpty := ok && d.Status != note.StatusEmpty
	if ok {
		m.previews.RevokeAll(d.Attachments)
		d.Content = ""
		d.LabelID = ""
		d.Attachments = nil
		d.Status = note.StatusEmpty
		d.UpdatedAt = time.Now().UTC()
	}
	m.durableStatus[entityID] = note.StatusEmpty
	m.revs[entityID]++
	m.cleared[entityID] = true
	m.mu.Unlock()

	var err error
	for attempt := 0; attempt <= m.cfg.WriteRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(m.cfg.RetryBackoff)
		}
		if err = m.store.DeleteDraft(ctx, m.playlistID, entityID); err == nil {
			break
		}
		m.logger.Printf("clear of %s failed (attempt %d): %v", entityID, attempt+1, err)
	}
	lock.Unlock()

	m.notify(Event{PlaylistID: m.playlistID, EntityID: entityID, Kind: EventCleared, Status: note.StatusEmpty})
	if wasNonEmpty {
		m.notify(Event{PlaylistID: m.playlistID, EntityID: entityID, Kind: EventStatusChanged, Status: note.StatusEmpty})
	}

	if err != nil {
		return fmt.Errorf("failed to clear draft %s: %w", entityID, err)
	}
	return nil
}

// MarkPublished transitions a draft to Published and persists the status
// on the durable path, bypassing the debounce. The in-memory transition
// sticks even if the durable write fails, since the remote service has
// already accepted the note.
func (m *Manager) MarkPublished(ctx context.Context, entityID string) error {
	m.mu.Lock()
	d, ok := m.drafts[entityID]
	if !ok {
		d = &note.Draft{PlaylistID: m.playlistID, EntityID: entityID}
		m.drafts[entityID] = d
	}
	if d.Status == note.StatusPublished {
		m.mu.Unlock()
		return nil
	}
	d.Status = note.StatusPublished
	d.UpdatedAt = time.Now().UTC()
	m.revs[entityID]++
	delete(m.cleared, entityID)
	m.mu.Unlock()

	m.notify(Event{PlaylistID: m.playlistID, EntityID: entityID, Kind: EventStatusChanged, Status: note.StatusPublished})
	m.notify(Event{PlaylistID: m.playlistID, EntityID: entityID, Kind: EventPublished, Status: note.StatusPublished})

	var err error
	for attempt := 0; attempt <= m.cfg.WriteRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(m.cfg.RetryBackoff)
		}
		if err = m.store.PutStatus(ctx, m.playlistID, entityID, note.StatusPublished); err == nil {
			m.mu.Lock()
			m.durableStatus[entityID] = note.StatusPublished
			m.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("failed to persist published status for %s: %w", entityID, err)
}

// Get returns a snapshot of the draft for an entity.
func (m *Manager) Get(entityID string) (*note.Draft, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[entityID]
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

// All returns snapshots of every draft, ordered by entity id.
func (m *Manager) All() []*note.Draft {
	m.mu.Lock()
	out := make([]*note.Draft, 0, len(m.drafts))
	for _, d := range m.drafts {
		out = append(out, d.Clone())
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// OpenPreviewCount returns the number of outstanding preview handles.
func (m *Manager) OpenPreviewCount() int {
	return m.previews.OpenCount()
}

// Subscribe registers an observer for draft events. The returned function
// removes the subscription.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.subsMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subsMu.Unlock()

	return func() {
		m.subsMu.Lock()
		delete(m.subs, id)
		m.subsMu.Unlock()
	}
}

// Close flushes pending writes, waits for in-flight ones, and revokes all
// preview handles. The manager accepts no edits afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true

	ids := make([]string, 0, len(m.timers))
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.persistEntity(id)
	}
	m.wg.Wait()

	m.mu.Lock()
	for _, d := range m.drafts {
		m.previews.RevokeAll(d.Attachments)
	}
	m.mu.Unlock()

	return nil
}

// scheduleWrite (re)starts the debounce timer for an entity. Caller must
// hold m.mu.
func (m *Manager) scheduleWrite(entityID string) {
	if t, ok := m.timers[entityID]; ok {
		t.Stop()
	}
	interval := m.cfg.IdleDebounce
	if m.interacting.Load() {
		interval = m.cfg.TypingDebounce
	}
	m.timers[entityID] = time.AfterFunc(interval, func() {
		m.timerFired(entityID)
	})
}

func (m *Manager) timerFired(entityID string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	delete(m.timers, entityID)
	m.wg.Add(1)
	m.mu.Unlock()

	defer m.wg.Done()
	m.persistEntity(entityID)
}

// persistEntity snapshots the current draft and runs the durable write.
// The per-entity lock serializes a flush racing a later timer fire.
func (m *Manager) persistEntity(entityID string) {
	lock := m.writeLock(entityID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	d, ok := m.drafts[entityID]
	if !ok || m.cleared[entityID] {
		// A clear superseded this write; the row is already deleted.
		m.mu.Unlock()
		return
	}
	snapshot := d.Clone()
	rev := m.revs[entityID]
	durable, haveDurable := m.durableStatus[entityID]
	m.mu.Unlock()

	statusChanged := !haveDurable || durable != snapshot.Status
	m.persist(snapshot, rev, statusChanged)
}

func (m *Manager) writeLock(entityID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.writeLocks[entityID]
	if !ok {
		lock = &sync.Mutex{}
		m.writeLocks[entityID] = lock
	}
	return lock
}

// persist runs the attempt loop: full write, fixed-backoff retries, then
// the degraded content-only fallback. Write failures are never fatal; a
// user's text must survive transient storage errors.
func (m *Manager) persist(snapshot *note.Draft, rev uint64, statusChanged bool) {
	ctx := context.Background()

	var err error
	for attempt := 0; attempt <= m.cfg.WriteRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(m.cfg.RetryBackoff)
		}
		if err = m.writeDraft(ctx, snapshot, statusChanged); err == nil {
			m.mu.Lock()
			m.durableStatus[snapshot.EntityID] = snapshot.Status
			m.mu.Unlock()
			return
		}
		m.logger.Printf("write for %s failed (attempt %d): %v", snapshot.EntityID, attempt+1, err)
	}

	m.logger.Printf("write for %s exhausted retries, degrading to content-only save: %v", snapshot.EntityID, err)
	m.degrade(ctx, snapshot, rev)
}

// writeDraft performs the durable write: content and label first, then
// status when it moved, then the attachment list.
func (m *Manager) writeDraft(ctx context.Context, d *note.Draft, statusChanged bool) error {
	if err := m.store.PutContent(ctx, d.PlaylistID, d.EntityID, d.Content, d.LabelID); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	if statusChanged {
		if err := m.store.PutStatus(ctx, d.PlaylistID, d.EntityID, d.Status); err != nil {
			return fmt.Errorf("status: %w", err)
		}
	}
	if err := m.store.PutAttachments(ctx, d.PlaylistID, d.EntityID, d.Attachments); err != nil {
		return fmt.Errorf("attachments: %w", err)
	}
	return nil
}

// degrade persists text content and label only, drops the attachments,
// and recomputes status without attachment credit. In-memory state is
// updated to reflect what is actually durable, so the UI never claims an
// attachment survived that didn't.
//
// The in-memory clobber applies only if the draft still matches the
// snapshot's revision. When a newer edit arrived during the retries, the
// degraded write is stale: that edit's own pending write (serialized
// behind this one) will persist the newer state, so wiping its
// attachments here would lose it.
func (m *Manager) degrade(ctx context.Context, snapshot *note.Draft, rev uint64) {
	if err := m.store.PutContent(ctx, snapshot.PlaylistID, snapshot.EntityID, snapshot.Content, snapshot.LabelID); err != nil {
		m.logger.Printf("degraded save for %s failed: %v", snapshot.EntityID, err)
		return
	}

	status := note.NextStatus(snapshot.Status, snapshot.HasContent(), false)
	if err := m.store.PutStatus(ctx, snapshot.PlaylistID, snapshot.EntityID, status); err != nil {
		m.logger.Printf("degraded status write for %s failed: %v", snapshot.EntityID, err)
	}
	if err := m.store.PutAttachments(ctx, snapshot.PlaylistID, snapshot.EntityID, nil); err != nil {
		m.logger.Printf("degraded attachment clear for %s failed: %v", snapshot.EntityID, err)
	}

	m.mu.Lock()
	d, ok := m.drafts[snapshot.EntityID]
	superseded := m.revs[snapshot.EntityID] != rev
	statusChanged := false
	if ok && !superseded {
		m.previews.RevokeAll(d.Attachments)
		d.Attachments = nil
		statusChanged = d.Status != status
		d.Status = status
	}
	m.durableStatus[snapshot.EntityID] = status
	m.mu.Unlock()

	if superseded {
		m.logger.Printf("degraded save for %s superseded by a newer edit, keeping in-memory state", snapshot.EntityID)
		return
	}

	m.notify(Event{PlaylistID: m.playlistID, EntityID: snapshot.EntityID, Kind: EventDegraded, Status: status})
	if statusChanged {
		m.notify(Event{PlaylistID: m.playlistID, EntityID: snapshot.EntityID, Kind: EventStatusChanged, Status: status})
	}
}

func (m *Manager) notify(ev Event) {
	m.subsMu.Lock()
	fns := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
