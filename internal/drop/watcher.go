// Package drop watches a drop folder and turns files placed there into
// attachments on the active draft.
//
// This is the headless equivalent of dragging a file into the note
// editor: the watcher queues file events, waits for writes to settle,
// then appends the file to the targeted entity's draft through the
// normal save path (so status derivation and debounced persistence apply
// unchanged).
package drop

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/matteoveglia/AstraNotes-sub002/internal/draft"
	"github.com/matteoveglia/AstraNotes-sub002/internal/note"
)

// Config holds configuration for the watcher.
type Config struct {
	// SettleInterval is how long a file must be quiet before it is
	// ingested. This batches the rapid write events emitted while a
	// file is still being copied in.
	SettleInterval time.Duration

	// Logger for watcher activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SettleInterval: 250 * time.Millisecond,
		Logger:         log.New(os.Stderr, "[drop] ", log.LstdFlags),
	}
}

// Watcher monitors one drop directory.
type Watcher struct {
	dir    string
	drafts *draft.Manager
	config *Config

	watcher *fsnotify.Watcher

	queueMu sync.Mutex
	queue   map[string]time.Time // filepath -> last event time

	targetMu sync.Mutex
	target   string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher for dir that attaches dropped files to drafts
// owned by the given manager.
func New(drafts *draft.Manager, dir string, config *Config) (*Watcher, error) {
	if drafts == nil {
		return nil, fmt.Errorf("draft manager cannot be nil")
	}
	if dir == "" {
		return nil, fmt.Errorf("dir cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		dir:     dir,
		drafts:  drafts,
		config:  config,
		watcher: fw,
		queue:   make(map[string]time.Time),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// SetTarget selects the entity whose draft receives dropped files.
// An empty target means dropped files are ignored.
func (w *Watcher) SetTarget(entityID string) {
	w.targetMu.Lock()
	w.target = entityID
	w.targetMu.Unlock()
}

// Target returns the currently targeted entity.
func (w *Watcher) Target() string {
	w.targetMu.Lock()
	defer w.targetMu.Unlock()
	return w.target
}

// Start begins watching the drop directory. It returns immediately; use
// Stop to shut down.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch drop directory %s: %w", w.dir, err)
	}

	w.config.Logger.Printf("Watching drop folder: %s", w.dir)

	w.wg.Add(2)
	go w.watchFileEvents()
	go w.processQueue()

	return nil
}

// Stop shuts the watcher down and waits for its goroutines to exit.
func (w *Watcher) Stop() error {
	w.cancel()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.wg.Wait()
	return nil
}

// watchFileEvents queues create/write events for later ingestion.
func (w *Watcher) watchFileEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}

			w.queueMu.Lock()
			w.queue[event.Name] = time.Now()
			w.queueMu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// processQueue ingests files whose events have settled.
func (w *Watcher) processQueue() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.SettleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.ingestSettled()
		}
	}
}

func (w *Watcher) ingestSettled() {
	now := time.Now()

	w.queueMu.Lock()
	var ready []string
	for path, queuedAt := range w.queue {
		if now.Sub(queuedAt) < w.config.SettleInterval {
			continue
		}
		ready = append(ready, path)
		delete(w.queue, path)
	}
	w.queueMu.Unlock()

	for _, path := range ready {
		if err := w.ingest(path); err != nil {
			w.config.Logger.Printf("Failed to ingest %s: %v", path, err)
		}
	}
}

// ingest appends one dropped file to the targeted draft as a
// path-referencing attachment.
func (w *Watcher) ingest(path string) error {
	target := w.Target()
	if target == "" {
		w.config.Logger.Printf("No target entity, ignoring drop: %s", path)
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		// Deleted or renamed before settling.
		return nil
	}
	if info.IsDir() {
		return nil
	}

	att := note.NewFileAttachment(path)

	content, labelID := "", ""
	attachments := []note.Attachment{att}
	if d, ok := w.drafts.Get(target); ok {
		content = d.Content
		labelID = d.LabelID
		attachments = append(d.Attachments, att)
	}

	w.drafts.Save(target, content, labelID, attachments)
	w.config.Logger.Printf("Attached %s to %s", filepath.Base(path), target)
	return nil
}
