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

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/ueindex/internal/bootstrap"
	"github.com/kraklabs/ueindex/internal/config"
	"github.com/kraklabs/ueindex/internal/server"
	"github.com/kraklabs/ueindex/internal/ui"
	"github.com/kraklabs/ueindex/pkg/grep"
	"github.com/kraklabs/ueindex/pkg/ingestion"
	"github.com/kraklabs/ueindex/pkg/tools"
)

const (
	grepCacheSize   = 200
	grepCacheTTL    = 30 * time.Second
	grepWallBudget  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func runServe(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	host := fs.String("host", "", "Override the configured bind host")
	port := fs.Int("port", 0, "Override the configured bind port")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ueindex serve [options]

Starts the HTTP query service: loads the store into memory, opens the
read-only worker pool, and serves the query and ingest endpoints.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	logger := newLogger()
	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err, globals.JSON)
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}

	rt, err := bootstrap.Open(cfg, version, logger)
	if err != nil {
		fatal(err, globals.JSON)
	}
	defer rt.Close()

	pool, err := tools.NewPool(cfg.Data.DBPath, 0, logger)
	if err != nil {
		fatal(err, globals.JSON)
	}
	defer pool.Close()

	var pipeline *grep.Pipeline
	var invalidator ingestion.CacheInvalidator
	if cfg.Zoekt.Enabled {
		engine := grep.NewZoektClient(cfg.ZoektBaseURL(), time.Duration(cfg.Zoekt.SearchTimeoutMs)*time.Millisecond)
		pipeline = grep.NewPipeline(engine, rt.Store, grep.NewCache(grepCacheSize, grepCacheTTL), grepWallBudget, logger)
		invalidator = pipeline
	}

	ingestor := ingestion.New(rt.Store, rt.Index, rt.Graph, rt.Mirror, invalidator, ingestion.WatcherBodyCap, logger)
	if err := ingestor.ComputeDepthsIfNeeded(); err != nil {
		logger.Warn("serve.depth_compute", "err", err)
	}

	svc := tools.NewService(rt.Store, rt.Index, rt.Graph, pool, cfg.ProjectNames(), logger)
	srv := server.New(server.Options{
		Config:   cfg,
		Service:  svc,
		Grep:     pipeline,
		Ingestor: ingestor,
		Store:    rt.Store,
		Index:    rt.Index,
		Graph:    rt.Graph,
		Logger:   logger,
		Version:  version,
	})

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server.listen", "addr", addr, "version", version)
		errCh <- httpSrv.ListenAndServe()
	}()

	if !globals.Quiet {
		ui.Successf("Serving on http://%s", addr)
	}

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(err, globals.JSON)
		}
	case <-ctx.Done():
		logger.Info("server.shutdown.begin")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server.shutdown.forced", "err", err)
		}
	}
	logger.Info("server.shutdown.done")
}
