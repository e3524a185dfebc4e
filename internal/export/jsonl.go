// Package export moves playlist drafts in and out of JSONL snapshots.
//
// Snapshots are the interchange format for backing up a review session or
// carrying unpublished drafts between machines. Export writes one JSON
// record per line, atomically via a temp file; import replays records
// into a store with per-line failure isolation so one corrupt line never
// sinks the rest.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/matteoveglia/AstraNotes-sub002/internal/note"
)

// Store is the subset of the draft store the exporter needs.
type Store interface {
	ListByPlaylist(ctx context.Context, playlistID string) ([]*note.Draft, error)
	PutContent(ctx context.Context, playlistID, entityID, content, labelID string) error
	PutStatus(ctx context.Context, playlistID, entityID string, status note.Status) error
	PutAttachments(ctx context.Context, playlistID, entityID string, attachments []note.Attachment) error
}

// Record is the JSONL line format for one draft.
type Record struct {
	PlaylistID  string            `json:"playlist_id"`
	EntityID    string            `json:"entity_id"`
	Content     string            `json:"content,omitempty"`
	LabelID     string            `json:"label_id,omitempty"`
	Status      string            `json:"status"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Attachments []note.Attachment `json:"attachments,omitempty"`
}

// ExportResult contains statistics about an export.
type ExportResult struct {
	DraftsWritten int
	Path          string
}

// ImportOptions contains configuration for an import.
type ImportOptions struct {
	FromJSONL string // Input JSONL file path
	DryRun    bool   // Preview without writing
	Backup    bool   // Copy the input aside before importing
}

// ImportResult contains statistics about an import.
type ImportResult struct {
	DraftsImported int
	BackupCreated  string
	Errors         []string
}

// RecordFromDraft converts a draft to its JSONL record.
func RecordFromDraft(d *note.Draft) Record {
	return Record{
		PlaylistID:  d.PlaylistID,
		EntityID:    d.EntityID,
		Content:     d.Content,
		LabelID:     d.LabelID,
		Status:      d.Status.String(),
		UpdatedAt:   d.UpdatedAt,
		Attachments: d.Attachments,
	}
}

// Draft converts a record back into a draft.
func (r Record) Draft() (*note.Draft, error) {
	status, err := note.ParseStatus(r.Status)
	if err != nil {
		return nil, err
	}
	return &note.Draft{
		PlaylistID:  r.PlaylistID,
		EntityID:    r.EntityID,
		Content:     r.Content,
		LabelID:     r.LabelID,
		Status:      status,
		UpdatedAt:   r.UpdatedAt,
		Attachments: r.Attachments,
	}, nil
}

// Export writes every draft in the playlist to jsonlPath, one record per
// line. The file appears atomically: records go to a temp file first and
// are renamed into place only once all drafts are written.
func Export(ctx context.Context, st Store, playlistID, jsonlPath string) (*ExportResult, error) {
	drafts, err := st.ListByPlaylist(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}

	tmpPath := jsonlPath + ".tmp"
	// #nosec G304 - controlled path from CLI
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	encoder := json.NewEncoder(file)
	result := &ExportResult{Path: jsonlPath}

	for _, d := range drafts {
		if err := encoder.Encode(RecordFromDraft(d)); err != nil {
			file.Close()
			_ = os.Remove(tmpPath)
			return nil, fmt.Errorf("failed to encode draft %s: %w", d.EntityID, err)
		}
		result.DraftsWritten++
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, jsonlPath); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to rename temp file: %w", err)
	}

	return result, nil
}

// ReadRecords parses a JSONL file into records.
func ReadRecords(jsonlPath string) ([]Record, error) {
	// #nosec G304 - controlled path from CLI
	file, err := os.Open(jsonlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL file: %w", err)
	}
	defer file.Close()

	var records []Record
	decoder := json.NewDecoder(file)
	lineNum := 0

	for {
		var rec Record
		if err := decoder.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("invalid JSON at line %d: %w", lineNum+1, err)
		}
		lineNum++
		records = append(records, rec)
	}

	return records, nil
}

// Import replays a JSONL snapshot into the store. Records that fail to
// validate or persist are reported in the result and skipped; the rest
// import normally.
func Import(ctx context.Context, st Store, opts ImportOptions) (*ImportResult, error) {
	result := &ImportResult{}

	if _, err := os.Stat(opts.FromJSONL); err != nil {
		return nil, fmt.Errorf("input file does not exist: %w", err)
	}

	if opts.Backup && !opts.DryRun {
		backupPath := opts.FromJSONL + ".backup." + time.Now().Format("20060102-150405")
		input, err := os.ReadFile(opts.FromJSONL)
		if err != nil {
			return nil, fmt.Errorf("failed to read input for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0600); err != nil {
			return nil, fmt.Errorf("failed to create backup: %w", err)
		}
		result.BackupCreated = backupPath
	}

	records, err := ReadRecords(opts.FromJSONL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSONL: %w", err)
	}

	for _, rec := range records {
		d, err := rec.Draft()
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("invalid record %s/%s: %v", rec.PlaylistID, rec.EntityID, err))
			continue
		}
		if err := d.Validate(); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("invalid record %s/%s: %v", rec.PlaylistID, rec.EntityID, err))
			continue
		}

		if opts.DryRun {
			result.DraftsImported++
			continue
		}

		if err := importDraft(ctx, st, d); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("failed to import %s/%s: %v", d.PlaylistID, d.EntityID, err))
			continue
		}
		result.DraftsImported++
	}

	return result, nil
}

func importDraft(ctx context.Context, st Store, d *note.Draft) error {
	if err := st.PutContent(ctx, d.PlaylistID, d.EntityID, d.Content, d.LabelID); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	if err := st.PutStatus(ctx, d.PlaylistID, d.EntityID, d.Status); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if err := st.PutAttachments(ctx, d.PlaylistID, d.EntityID, d.Attachments); err != nil {
		return fmt.Errorf("attachments: %w", err)
	}
	return nil
}
