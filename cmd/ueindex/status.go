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
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/ueindex/internal/config"
	"github.com/kraklabs/ueindex/internal/mirror"
	"github.com/kraklabs/ueindex/internal/output"
	"github.com/kraklabs/ueindex/internal/ui"
	"github.com/kraklabs/ueindex/pkg/storage"
)

func runStatus(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	slow := fs.Int("slow", 0, "Also list the N slowest recorded queries")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ueindex status [options]

Reads the store directly and reports entity counts, per-language
indexing phases, and the last build time.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err, globals.JSON)
	}

	store, err := storage.OpenReadOnly(cfg.Data.DBPath, newLogger())
	if err != nil {
		fatal(fmt.Errorf("open store (run 'ueindex index' first?): %w", err), globals.JSON)
	}
	defer store.Close()

	stats, err := store.GetStats()
	if err != nil {
		fatal(err, globals.JSON)
	}
	statuses, err := store.IndexStatuses()
	if err != nil {
		fatal(err, globals.JSON)
	}
	lastBuild, err := store.LastBuild()
	if err != nil {
		fatal(err, globals.JSON)
	}

	var marker *mirror.Marker
	if m, err := mirror.New(cfg.Data.MirrorDir); err == nil {
		marker, _ = m.ReadMarker()
	}

	if globals.JSON {
		payload := map[string]any{
			"stats":    stats,
			"statuses": statuses,
			"projects": cfg.ProjectNames(),
		}
		if !lastBuild.IsZero() {
			payload["lastBuild"] = lastBuild.UnixMilli()
		}
		if marker != nil {
			payload["marker"] = marker
		}
		if *slow > 0 {
			if queries, err := store.SlowQueries(*slow); err == nil {
				payload["slowQueries"] = queries
			}
		}
		_ = output.JSON(payload)
		return
	}

	ui.Header("Index Status")
	fmt.Printf("%s %s\n", ui.Label("Database:"), cfg.Data.DBPath)
	fmt.Printf("%s %s\n", ui.Label("Files:"), ui.CountText(int(stats.TotalFiles)))
	fmt.Printf("%s %s\n", ui.Label("Types:"), ui.CountText(int(stats.TotalTypes)))
	fmt.Printf("%s %s\n", ui.Label("Members:"), ui.CountText(int(stats.TotalMembers)))
	fmt.Printf("%s %s\n", ui.Label("Assets:"), ui.CountText(int(stats.TotalAssets)))
	fmt.Printf("%s %s\n", ui.Label("Bodies:"), ui.CountText(int(stats.TotalBodies)))
	if !lastBuild.IsZero() {
		fmt.Printf("%s %s\n", ui.Label("Last build:"), lastBuild.Format(time.RFC3339))
	}

	if len(statuses) > 0 {
		ui.SubHeader("Languages")
		for _, st := range statuses {
			line := fmt.Sprintf("%s %s (%d/%d)", ui.Label(st.Language+":"), st.Phase, st.FilesDone, st.FilesTotal)
			if st.Phase == storage.PhaseError && st.Message != "" {
				line += " " + ui.DimText(st.Message)
			}
			fmt.Println(line)
		}
	}

	if *slow > 0 {
		queries, err := store.SlowQueries(*slow)
		if err == nil && len(queries) > 0 {
			ui.SubHeader("Slowest queries")
			for _, q := range queries {
				fmt.Printf("  %7.1fms  %s %s\n", q.DurationMs, q.Kind, ui.DimText(q.Args))
			}
		}
	}
}
