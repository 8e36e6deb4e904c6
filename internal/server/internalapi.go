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

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/kraklabs/ueindex/internal/contract"
	qerr "github.com/kraklabs/ueindex/internal/errors"
	"github.com/kraklabs/ueindex/pkg/ingestion"
	"github.com/kraklabs/ueindex/pkg/tools"
)

// handleIngest applies one batch: deletes first, then per-file
// transactional upserts, memory-index sync before the response returns.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.ingestor == nil {
		s.writeError(w, qerr.NewNotAvailable("ingest", nil))
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, int64(contract.SoftLimitBytes())+1))
	if err != nil {
		s.writeError(w, qerr.NewInvalidParameter("body", "unreadable request body"))
		return
	}
	if len(raw) > contract.SoftLimitBytes() {
		s.writeError(w, qerr.NewInvalidParameter("body", "batch body exceeds the soft limit"))
		return
	}
	var batch ingestion.Batch
	if err := json.Unmarshal(raw, &batch); err != nil {
		s.writeError(w, qerr.NewInvalidParameter("body", "malformed JSON"))
		return
	}
	result := s.ingestor.Apply(batch)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var hb ingestion.Heartbeat
	if err := json.NewDecoder(r.Body).Decode(&hb); err != nil {
		s.writeError(w, qerr.NewInvalidParameter("body", "malformed JSON"))
		return
	}
	if hb.Source == "" {
		s.writeError(w, qerr.NewInvalidParameter("source", "source must not be empty"))
		return
	}
	s.heartbeats.Beat(hb)
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleInternalStatus(w http.ResponseWriter, _ *http.Request) {
	statuses, err := s.store.IndexStatuses()
	if err != nil {
		s.writeError(w, qerr.NewInternal("read index statuses", err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"statuses":   statuses,
		"heartbeats": s.heartbeats.Active(),
		"loaded":     s.ix.Loaded(),
	})
}

// handleFileMtimes serves the watcher's change detection: path → mtime
// for one language, or all languages when the filter is absent.
func (s *Server) handleFileMtimes(w http.ResponseWriter, r *http.Request) {
	mtimes, err := s.store.FileMtimes(r.URL.Query().Get("language"))
	if err != nil {
		s.writeError(w, qerr.NewInternal("read file mtimes", err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"mtimes": mtimes})
}

func (s *Server) handleAssetMtimes(w http.ResponseWriter, _ *http.Request) {
	mtimes, err := s.store.AssetMtimes()
	if err != nil {
		s.writeError(w, qerr.NewInternal("read asset mtimes", err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"mtimes": mtimes})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Dispatch(r.Context(), tools.StatsQuery{})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleSummary aggregates the top-level shape of the index: entity
// counts, configured projects, module and folder counts, last build.
func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.store.GetStats()
	if err != nil {
		s.writeError(w, qerr.NewInternal("read stats", err))
		return
	}
	lastBuild, err := s.store.LastBuild()
	if err != nil {
		s.writeError(w, qerr.NewInternal("read last build", err))
		return
	}
	summary := map[string]any{
		"stats":        stats,
		"modules":      len(s.ix.ModuleNames()),
		"assetFolders": len(s.ix.AssetFolders()),
		"loaded":       s.ix.Loaded(),
		"version":      s.version,
	}
	if s.cfg != nil {
		summary["projects"] = s.cfg.ProjectNames()
	}
	if !lastBuild.IsZero() {
		summary["lastBuild"] = lastBuild.UnixMilli()
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	statuses, err := s.store.IndexStatuses()
	if err != nil {
		s.writeError(w, qerr.NewInternal("read index statuses", err))
		return
	}
	payload := map[string]any{
		"version":    s.version,
		"uptime":     time.Since(s.startedAt).Round(time.Second).String(),
		"loaded":     s.ix.Loaded(),
		"statuses":   statuses,
		"heartbeats": s.heartbeats.Active(),
		"memory":     s.ix.Stats(),
		"interned":   s.ix.InternedStrings(),
	}
	if s.cfg != nil {
		payload["zoektEnabled"] = s.cfg.Zoekt.Enabled
	}
	s.writeJSON(w, http.StatusOK, payload)
}
