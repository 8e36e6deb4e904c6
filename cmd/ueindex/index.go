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
	"fmt"
	"os"
	"os/signal"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/ueindex/internal/bootstrap"
	"github.com/kraklabs/ueindex/internal/config"
	"github.com/kraklabs/ueindex/internal/output"
	"github.com/kraklabs/ueindex/internal/ui"
	"github.com/kraklabs/ueindex/pkg/ingestion"
)

func runIndex(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	parserMode := fs.String("parser", "auto", "Header parser: treesitter, simplified, or auto")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ueindex index [options]

Walks the configured project trees, parses headers, and ingests files
through the same path the watcher uses. Unchanged files (same mtime)
are skipped.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  ueindex index
  ueindex index --parser simplified
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	logger := newLogger()
	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err, globals.JSON)
	}
	if len(cfg.Projects) == 0 {
		fatal(fmt.Errorf("no projects configured in %s", configPath), globals.JSON)
	}

	rt, err := bootstrap.Open(cfg, version, logger)
	if err != nil {
		fatal(err, globals.JSON)
	}
	defer rt.Close()

	ingestor := ingestion.New(rt.Store, rt.Index, rt.Graph, rt.Mirror, nil, ingestion.LocalBodyCap, logger)
	parser := ingestion.NewHeaderParser(ingestion.ParserMode(*parserMode), logger)
	pipeline := ingestion.NewLocalPipeline(cfg, ingestor, parser, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	progress := NewProgressConfig(globals)
	spinner := NewSpinner(progress, "Indexing")

	start := time.Now()
	err = pipeline.Run(ctx)
	if spinner != nil {
		_ = spinner.Finish()
	}
	if err != nil {
		fatal(err, globals.JSON)
	}
	if err := ingestor.ComputeDepthsIfNeeded(); err != nil {
		logger.Warn("index.depth_compute", "err", err)
	}
	if err := rt.Store.SetLastBuild(time.Now()); err != nil {
		logger.Warn("index.last_build", "err", err)
	}

	stats, err := rt.Store.GetStats()
	if err != nil {
		fatal(err, globals.JSON)
	}

	if globals.JSON {
		_ = output.JSON(map[string]any{
			"stats":   stats,
			"elapsed": time.Since(start).String(),
		})
		return
	}
	ui.Successf("Indexed in %s", time.Since(start).Round(time.Millisecond))
	fmt.Printf("  files:   %s\n", ui.CountText(int(stats.TotalFiles)))
	fmt.Printf("  types:   %s\n", ui.CountText(int(stats.TotalTypes)))
	fmt.Printf("  members: %s\n", ui.CountText(int(stats.TotalMembers)))
	fmt.Printf("  assets:  %s\n", ui.CountText(int(stats.TotalAssets)))
}
