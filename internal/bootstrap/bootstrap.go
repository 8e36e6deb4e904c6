// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kraklabs/ueindex/internal/config"
	"github.com/kraklabs/ueindex/internal/mirror"
	"github.com/kraklabs/ueindex/pkg/graph"
	"github.com/kraklabs/ueindex/pkg/index"
	"github.com/kraklabs/ueindex/pkg/storage"
)

// Runtime bundles the opened core components: store, memory index,
// inheritance graph, and mirror tree.
type Runtime struct {
	Config *config.Config
	Store  *storage.Store
	Index  *index.Index
	Graph  *graph.Graph
	Mirror *mirror.Mirror
}

// InitData creates the storage locations and runs the schema migration
// once, so a fresh checkout has a valid store before the first serve.
// Idempotent: calling it on an initialized tree is safe.
func InitData(cfg *config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for _, dir := range []string{filepath.Dir(cfg.Data.DBPath), cfg.Data.MirrorDir, cfg.Data.IndexDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	store, err := storage.Open(cfg.Data.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	logger.Info("bootstrap.init.done", "db", cfg.Data.DBPath, "mirror", cfg.Data.MirrorDir)
	return nil
}

// Open brings up the runtime: opens the store (migrating the schema as
// needed), bulk-loads the memory index, rebuilds the inheritance graph
// from the loaded contents, and records the bootstrap marker.
func Open(cfg *config.Config, version string, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Data.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := storage.Open(cfg.Data.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	mir, err := mirror.New(cfg.Data.MirrorDir)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open mirror: %w", err)
	}

	start := time.Now()
	ix := index.New(logger)
	if err := ix.Load(store); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load memory index: %w", err)
	}

	g := graph.New()
	g.Rebuild(ix)

	stats := ix.Stats()
	logger.Info("bootstrap.open.done",
		"files", stats.Files,
		"types", stats.Types,
		"members", stats.Members,
		"assets", stats.Assets,
		"elapsed", time.Since(start),
	)

	if err := mir.WriteMarker(mirror.Marker{
		Version: version,
		Files:   stats.Files,
		Assets:  stats.Assets,
	}); err != nil {
		logger.Warn("bootstrap.marker.write", "err", err)
	}

	return &Runtime{
		Config: cfg,
		Store:  store,
		Index:  ix,
		Graph:  g,
		Mirror: mir,
	}, nil
}

// Close releases the store handle.
func (r *Runtime) Close() error {
	return r.Store.Close()
}
