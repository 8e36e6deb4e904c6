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

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/ueindex/internal/config"
	"github.com/kraklabs/ueindex/internal/ui"
)

func runReset(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	confirm := fs.Bool("yes", false, "Confirm the reset (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ueindex reset [options]

Deletes the store and the mirror tree, clearing all indexed data.
This is useful before a full re-index to ensure a clean slate.

WARNING: This operation is destructive and cannot be undone!

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if !*confirm {
		fmt.Fprintln(os.Stderr, "Error: you must pass --yes to confirm the reset")
		fmt.Fprintln(os.Stderr, "This will delete the store and the mirror tree.")
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err, globals.JSON)
	}

	removed := 0
	// The store keeps WAL sidecars beside the database file.
	for _, p := range []string{cfg.Data.DBPath, cfg.Data.DBPath + "-wal", cfg.Data.DBPath + "-shm"} {
		if err := os.Remove(p); err == nil {
			removed++
		} else if !os.IsNotExist(err) {
			fatal(fmt.Errorf("delete %s: %w", p, err), globals.JSON)
		}
	}
	if err := os.RemoveAll(cfg.Data.MirrorDir); err != nil {
		fatal(fmt.Errorf("delete mirror: %w", err), globals.JSON)
	}

	if removed == 0 {
		fmt.Println("No indexed data found; nothing to delete.")
		return
	}

	ui.Success("Reset complete. All indexed data has been deleted.")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  ueindex index    Rebuild the index")
}
