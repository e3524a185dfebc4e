// Package store provides the embedded SQLite draft store.
//
// Drafts are keyed by (playlist_id, entity_id). The store holds no
// business logic: status derivation, debouncing, and retry policy live in
// the draft package. The database runs in embedded mode with WAL so the
// UI-facing readers are never blocked by a write.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/matteoveglia/AstraNotes-sub002/internal/note"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned when no draft exists for the requested key.
var ErrNotFound = errors.New("draft not found")

// Store wraps the SQLite connection with draft-specific operations.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a new database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist, it will be created; call InitSchema before
// first use. The caller MUST call Close() when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		conn: conn,
		path: path,
	}

	// WAL keeps readers concurrent with the debounced writer.
	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := s.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return s, nil
}

// RawDB returns the underlying sql.DB connection.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// Idempotent; safe to call on every startup.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS drafts (
		playlist_id TEXT NOT NULL,
		entity_id   TEXT NOT NULL,
		content     TEXT NOT NULL DEFAULT '',
		label_id    TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'empty',
		updated_at  TEXT NOT NULL,
		PRIMARY KEY (playlist_id, entity_id)
	);

	CREATE TABLE IF NOT EXISTS attachments (
		playlist_id TEXT NOT NULL,
		entity_id   TEXT NOT NULL,
		id          TEXT NOT NULL,
		position    INTEGER NOT NULL,
		name        TEXT NOT NULL,
		mime_type   TEXT NOT NULL,
		file_path   TEXT NOT NULL DEFAULT '',
		data        BLOB,
		PRIMARY KEY (playlist_id, entity_id, id),
		FOREIGN KEY (playlist_id, entity_id)
			REFERENCES drafts(playlist_id, entity_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_drafts_playlist ON drafts(playlist_id);
	CREATE INDEX IF NOT EXISTS idx_drafts_status ON drafts(status);
	CREATE INDEX IF NOT EXISTS idx_attachments_entity
	    ON attachments(playlist_id, entity_id, position);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// PutContent inserts or updates the text content and label for a draft.
// The draft row is created on first write with status 'empty'; status is
// persisted separately by PutStatus.
func (s *Store) PutContent(ctx context.Context, playlistID, entityID, content, labelID string) error {
	query := `
	INSERT INTO drafts (playlist_id, entity_id, content, label_id, status, updated_at)
	VALUES (?, ?, ?, ?, 'empty', ?)
	ON CONFLICT(playlist_id, entity_id) DO UPDATE SET
		content = excluded.content,
		label_id = excluded.label_id,
		updated_at = excluded.updated_at
	`

	_, err := s.conn.ExecContext(ctx, query,
		playlistID,
		entityID,
		content,
		labelID,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to put content for %s/%s: %w", playlistID, entityID, err)
	}

	return nil
}

// PutStatus persists the draft status.
func (s *Store) PutStatus(ctx context.Context, playlistID, entityID string, status note.Status) error {
	query := `
	INSERT INTO drafts (playlist_id, entity_id, status, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(playlist_id, entity_id) DO UPDATE SET
		status = excluded.status,
		updated_at = excluded.updated_at
	`

	_, err := s.conn.ExecContext(ctx, query,
		playlistID,
		entityID,
		status.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to put status for %s/%s: %w", playlistID, entityID, err)
	}

	return nil
}

// PutAttachments replaces the attachment list for a draft in one
// transaction, preserving list order via the position column.
func (s *Store) PutAttachments(ctx context.Context, playlistID, entityID string, attachments []note.Attachment) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	del := `DELETE FROM attachments WHERE playlist_id = ? AND entity_id = ?`
	if _, err := tx.ExecContext(ctx, del, playlistID, entityID); err != nil {
		return fmt.Errorf("failed to clear attachments for %s/%s: %w", playlistID, entityID, err)
	}

	ins := `
	INSERT INTO attachments (playlist_id, entity_id, id, position, name, mime_type, file_path, data)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, att := range attachments {
		if _, err := tx.ExecContext(ctx, ins,
			playlistID,
			entityID,
			att.ID,
			i,
			att.Name,
			att.MimeType,
			att.FilePath,
			att.Data,
		); err != nil {
			return fmt.Errorf("failed to insert attachment %s: %w", att.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit attachments: %w", err)
	}

	return nil
}

// GetDraft returns the draft for the given key, including its attachments
// in list order. Returns ErrNotFound if no draft row exists.
func (s *Store) GetDraft(ctx context.Context, playlistID, entityID string) (*note.Draft, error) {
	query := `
	SELECT content, label_id, status, updated_at
	FROM drafts
	WHERE playlist_id = ? AND entity_id = ?
	`

	var (
		content, labelID, statusStr, updatedAt string
	)
	err := s.conn.QueryRowContext(ctx, query, playlistID, entityID).
		Scan(&content, &labelID, &statusStr, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft %s/%s: %w", playlistID, entityID, err)
	}

	draft, err := buildDraft(playlistID, entityID, content, labelID, statusStr, updatedAt)
	if err != nil {
		return nil, err
	}

	draft.Attachments, err = s.getAttachments(ctx, playlistID, entityID)
	if err != nil {
		return nil, err
	}

	return draft, nil
}

// DeleteDraft removes a draft and, via cascade, its attachments.
// Returns nil if the draft doesn't exist (idempotent).
func (s *Store) DeleteDraft(ctx context.Context, playlistID, entityID string) error {
	query := `DELETE FROM drafts WHERE playlist_id = ? AND entity_id = ?`
	_, err := s.conn.ExecContext(ctx, query, playlistID, entityID)
	if err != nil {
		return fmt.Errorf("failed to delete draft %s/%s: %w", playlistID, entityID, err)
	}
	return nil
}

// ListByPlaylist returns all drafts for a playlist with their attachments.
func (s *Store) ListByPlaylist(ctx context.Context, playlistID string) ([]*note.Draft, error) {
	query := `
	SELECT entity_id, content, label_id, status, updated_at
	FROM drafts
	WHERE playlist_id = ?
	ORDER BY entity_id
	`

	rows, err := s.conn.QueryContext(ctx, query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts for playlist %s: %w", playlistID, err)
	}
	defer rows.Close()

	var drafts []*note.Draft
	for rows.Next() {
		var entityID, content, labelID, statusStr, updatedAt string
		if err := rows.Scan(&entityID, &content, &labelID, &statusStr, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan draft row: %w", err)
		}

		draft, err := buildDraft(playlistID, entityID, content, labelID, statusStr, updatedAt)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate drafts: %w", err)
	}

	for _, draft := range drafts {
		draft.Attachments, err = s.getAttachments(ctx, playlistID, draft.EntityID)
		if err != nil {
			return nil, err
		}
	}

	return drafts, nil
}

// CountDrafts returns the total number of draft rows.
func (s *Store) CountDrafts(ctx context.Context) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM drafts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count drafts: %w", err)
	}
	return count, nil
}

func (s *Store) getAttachments(ctx context.Context, playlistID, entityID string) ([]note.Attachment, error) {
	query := `
	SELECT id, name, mime_type, file_path, data
	FROM attachments
	WHERE playlist_id = ? AND entity_id = ?
	ORDER BY position
	`

	rows, err := s.conn.QueryContext(ctx, query, playlistID, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments for %s/%s: %w", playlistID, entityID, err)
	}
	defer rows.Close()

	var attachments []note.Attachment
	for rows.Next() {
		var att note.Attachment
		if err := rows.Scan(&att.ID, &att.Name, &att.MimeType, &att.FilePath, &att.Data); err != nil {
			return nil, fmt.Errorf("failed to scan attachment row: %w", err)
		}
		attachments = append(attachments, att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attachments: %w", err)
	}

	return attachments, nil
}

func buildDraft(playlistID, entityID, content, labelID, statusStr, updatedAt string) (*note.Draft, error) {
	status, err := note.ParseStatus(statusStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt status for %s/%s: %w", playlistID, entityID, err)
	}

	ts, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt timestamp for %s/%s: %w", playlistID, entityID, err)
	}

	return &note.Draft{
		PlaylistID: playlistID,
		EntityID:   entityID,
		Content:    content,
		LabelID:    labelID,
		Status:     status,
		UpdatedAt:  ts,
	}, nil
}
