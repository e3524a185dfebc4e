package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/matteoveglia/AstraNotes-sub002/internal/config"
	"github.com/matteoveglia/AstraNotes-sub002/internal/draft"
	"github.com/matteoveglia/AstraNotes-sub002/internal/remote"
	"github.com/matteoveglia/AstraNotes-sub002/internal/store"
)

// loadConfig resolves configuration plus the --playlist override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if playlistFlag != "" {
		cfg.PlaylistID = playlistFlag
	}
	return cfg, nil
}

// newLogger returns a prefixed logger. With log_path set, output goes to
// a rotating file as well as stderr.
func newLogger(cfg *config.Config, prefix string) *log.Logger {
	var w io.Writer = os.Stderr
	if cfg.LogPath != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogPath,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	return log.New(w, prefix, log.LstdFlags)
}

// openStore opens the draft database and ensures the schema exists.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open draft database: %w", err)
	}
	if err := st.InitSchema(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return st, nil
}

// newManager creates a draft manager for the configured playlist and
// hydrates it from the store.
func newManager(ctx context.Context, cfg *config.Config, st *store.Store) (*draft.Manager, error) {
	if cfg.PlaylistID == "" {
		return nil, fmt.Errorf("no playlist selected (use --playlist or set playlist_id in config)")
	}

	dc := draft.DefaultConfig()
	dc.Logger = newLogger(cfg, "[draft] ")

	m, err := draft.New(st, cfg.PlaylistID, dc)
	if err != nil {
		return nil, err
	}
	if err := m.Load(ctx); err != nil {
		m.Close()
		return nil, fmt.Errorf("failed to load drafts: %w", err)
	}
	return m, nil
}

// newRemote builds the tracking service client.
func newRemote(cfg *config.Config) (*remote.Client, error) {
	if err := cfg.ValidateRemote(); err != nil {
		return nil, err
	}
	return remote.NewClient(cfg.ServerURL, cfg.APIKey, newLogger(cfg, "[remote] "))
}
