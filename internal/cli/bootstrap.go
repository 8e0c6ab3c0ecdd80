// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jeranaias/iachat/internal/app"
	"github.com/jeranaias/iachat/internal/commands"
	"github.com/jeranaias/iachat/internal/config"
	"github.com/jeranaias/iachat/internal/export"
	"github.com/jeranaias/iachat/internal/gemini"
	"github.com/jeranaias/iachat/internal/logging"
	"github.com/jeranaias/iachat/internal/media"
	"github.com/jeranaias/iachat/internal/speech"
	"github.com/jeranaias/iachat/internal/storage"
)

const (
	logFileName    = "iachat.log"
	storeDirName   = "store"
	sqliteFileName = "iachat.db"
)

// bootOptions selects the optional services a command needs.
type bootOptions struct {
	// speech starts the text-to-speech engine.
	speech bool
	// watch follows store changes made by other iachat processes.
	watch bool
}

// runtime is everything a command needs, wired from the config.
type runtime struct {
	cfg      *config.Config
	log      logging.Logger
	store    storage.Store
	player   *speech.Player
	ctrl     *app.Controller
	env      *commands.Env
	registry *commands.Registry

	logCloser io.Closer
}

// bootstrap loads the config and starts the controller. The caller must
// Close the runtime.
func bootstrap(ctx context.Context, g *globalOptions, opts bootOptions) (*runtime, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	logOpts := logging.Options{Level: level}
	if g.verbose {
		logOpts.Mirror = os.Stderr
	}
	log, logCloser, err := logging.OpenFile(filepath.Join(dataDir, logFileName), logOpts)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, dataDir)
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	if cfg.Backend.APIKey == "" {
		log.Warn(ctx, "no API key configured; replies will fail")
	}
	client := gemini.NewClient(&gemini.ClientConfig{
		BaseURL:           cfg.Backend.BaseURL,
		APIKey:            cfg.Backend.APIKey,
		Model:             cfg.Backend.Model,
		SystemInstruction: cfg.Backend.SystemInstruction,
	})

	// A nil *CommandEngine must not become a non-nil Engine.
	var engine speech.Engine
	if opts.speech {
		if e, err := speech.NewCommandEngine(cfg.Speech.Command); err == nil {
			engine = e
		} else {
			log.Info(ctx, "speech disabled", "error", err)
		}
	}
	player := speech.NewPlayer(engine, cfg.Speech.Locale, cfg.Speech.Rate, log)

	ctrl := app.New(app.Config{
		Store:       store,
		Backend:     app.NewGeminiBackend(client),
		Speaker:     player,
		Logger:      log,
		NarrowWidth: cfg.UI.NarrowWidth,
	})
	if err := ctrl.Start(ctx); err != nil {
		store.Close()
		logCloser.Close()
		return nil, err
	}

	exportOpts := export.DefaultOptions()
	rt := &runtime{
		cfg:    cfg,
		log:    log,
		store:  store,
		player: player,
		ctrl:   ctrl,
		env: &commands.Env{
			App: ctrl,
			Capturer: &media.Capturer{
				CameraCommand:     cfg.Media.CameraCommand,
				MicrophoneCommand: cfg.Media.MicrophoneCommand,
			},
			Export: exportOpts,
		},
		registry:  commands.NewRegistry(),
		logCloser: logCloser,
	}

	if opts.watch {
		if fs, ok := store.(*storage.FileStore); ok {
			if err := fs.Watch(ctx, func(key string) { ctrl.StoreChanged(ctx, key) }); err != nil {
				log.Warn(ctx, "store watch unavailable", "error", err)
			}
		}
	}
	log.Debug(ctx, "started", "driver", cfg.Storage.Driver, "data_dir", dataDir, "model", cfg.Backend.Model)
	return rt, nil
}

// openStore opens the configured storage driver under dataDir.
func openStore(ctx context.Context, cfg *config.Config, dataDir string) (storage.Store, error) {
	quota := cfg.Storage.QuotaBytes
	switch cfg.Storage.Driver {
	case "memory":
		return storage.NewMemoryStore(quota), nil
	case "sqlite":
		return storage.OpenSQLite(ctx, filepath.Join(dataDir, sqliteFileName), storage.WithSQLiteQuota(quota))
	case "file", "":
		return storage.NewFileStore(filepath.Join(dataDir, storeDirName), storage.WithFileQuota(quota))
	default:
		return nil, usageErrorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// Close stops speech and releases the store and log file.
func (rt *runtime) Close() error {
	rt.ctrl.StopSpeech()
	rt.player.Wait()
	return errors.Join(rt.store.Close(), rt.logCloser.Close())
}

// requireUser returns the active user's state or app.ErrNotLoggedIn.
func (rt *runtime) requireUser() (app.State, error) {
	s := rt.ctrl.Snapshot()
	if !s.LoggedIn() {
		return s, app.ErrNotLoggedIn
	}
	return s, nil
}
