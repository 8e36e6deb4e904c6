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

// Package server exposes the query façade, the grep pipeline and the
// ingest protocol over JSON/HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kraklabs/ueindex/internal/config"
	qerr "github.com/kraklabs/ueindex/internal/errors"
	"github.com/kraklabs/ueindex/pkg/graph"
	"github.com/kraklabs/ueindex/pkg/grep"
	"github.com/kraklabs/ueindex/pkg/index"
	"github.com/kraklabs/ueindex/pkg/ingestion"
	"github.com/kraklabs/ueindex/pkg/storage"
	"github.com/kraklabs/ueindex/pkg/tools"
)

// Server wires the HTTP surface over the core components.
type Server struct {
	cfg        *config.Config
	svc        *tools.Service
	grep       *grep.Pipeline
	ingestor   *ingestion.Ingestor
	heartbeats *ingestion.HeartbeatTracker
	store      *storage.Store
	ix         *index.Index
	g          *graph.Graph
	logger     *slog.Logger
	version    string
	startedAt  time.Time
}

// Options carries the components the server serves.
type Options struct {
	Config     *config.Config
	Service    *tools.Service
	Grep       *grep.Pipeline
	Ingestor   *ingestion.Ingestor
	Heartbeats *ingestion.HeartbeatTracker
	Store      *storage.Store
	Index      *index.Index
	Graph      *graph.Graph
	Logger     *slog.Logger
	Version    string
}

// New assembles a server. Grep may be nil when the full-text engine is
// disabled; the endpoint then answers NotAvailable.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Heartbeats == nil {
		opts.Heartbeats = ingestion.NewHeartbeatTracker()
	}
	return &Server{
		cfg:        opts.Config,
		svc:        opts.Service,
		grep:       opts.Grep,
		ingestor:   opts.Ingestor,
		heartbeats: opts.Heartbeats,
		store:      opts.Store,
		ix:         opts.Index,
		g:          opts.Graph,
		logger:     logger,
		version:    opts.Version,
		startedAt:  time.Now(),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /find-type", s.instrument("findType", s.handleFindType))
	mux.HandleFunc("GET /find-children", s.instrument("findChildren", s.handleFindChildren))
	mux.HandleFunc("GET /find-member", s.instrument("findMember", s.handleFindMember))
	mux.HandleFunc("GET /find-file", s.instrument("findFile", s.handleFindFile))
	mux.HandleFunc("GET /find-asset", s.instrument("findAsset", s.handleFindAsset))
	mux.HandleFunc("GET /browse-module", s.instrument("browseModule", s.handleBrowseModule))
	mux.HandleFunc("GET /list-modules", s.instrument("listModules", s.handleListModules))
	mux.HandleFunc("GET /browse-assets", s.instrument("browseAssets", s.handleBrowseAssets))
	mux.HandleFunc("GET /list-asset-folders", s.instrument("listAssetFolders", s.handleListAssetFolders))
	mux.HandleFunc("GET /grep", s.instrument("grep", s.handleGrep))
	mux.HandleFunc("GET /explain-type", s.instrument("explainType", s.handleExplainType))
	mux.HandleFunc("POST /batch", s.instrument("batch", s.handleBatch))

	mux.HandleFunc("POST /internal/ingest", s.instrument("ingest", s.handleIngest))
	mux.HandleFunc("POST /internal/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("GET /internal/status", s.handleInternalStatus)
	mux.HandleFunc("GET /internal/file-mtimes", s.handleFileMtimes)
	mux.HandleFunc("GET /internal/asset-mtimes", s.handleAssetMtimes)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.instrument("stats", s.handleStats))
	mux.HandleFunc("GET /summary", s.handleSummary)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// ListenAndServe binds addr and serves until the listener fails. The
// http.Server it builds is not returned, so it has no graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("server.listen", "addr", addr, "version", s.version)
	return srv.ListenAndServe()
}

// writeJSON encodes one success payload.
func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("server.encode", "err", err)
	}
}

// writeError maps an error onto its HTTP status and structured payload.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var qe *qerr.QueryError
	if !errors.As(err, &qe) {
		qe = qerr.NewInternal("internal error", err)
	}
	if qe.Kind == qerr.KindInternal {
		s.logger.Error("server.internal", "err", err)
	}
	s.writeJSON(w, qe.HTTPStatus(), qe.ToJSON())
}

// instrument counts and times one endpoint.
func (s *Server) instrument(kind string, fn http.HandlerFunc) http.HandlerFunc {
	srvMetrics.init()
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		fn(w, r)
		srvMetrics.requests.WithLabelValues(kind).Inc()
		srvMetrics.duration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
}
