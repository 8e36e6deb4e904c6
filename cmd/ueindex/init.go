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

	"github.com/kraklabs/ueindex/internal/bootstrap"
	"github.com/kraklabs/ueindex/internal/config"
	"github.com/kraklabs/ueindex/internal/ui"
)

// starterConfig is the template written by `ueindex init`.
const starterConfig = `# ueindex configuration
host: 127.0.0.1
port: 27015

projects:
  - name: game
    paths:
      - %q
    language: cpp

# Paths the ingest walk skips (doublestar globs).
exclude:
  - "**/Intermediate/**"
  - "**/Saved/**"
  - "**/Binaries/**"

data:
  dbPath: data/index.db
  mirrorDir: data/mirror
  indexDir: data

zoekt:
  enabled: false
  webPort: 6070
  searchTimeoutMs: 10000

watcher:
  debounceMs: 500
`

func runInit(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing configuration")
	projectPath := fs.String("path", ".", "Project source path for the starter config")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ueindex init [options]

Writes a starter configuration and creates the data directories.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if _, err := os.Stat(configPath); err == nil && !*force {
		fatal(fmt.Errorf("%s already exists (use --force to overwrite)", configPath), globals.JSON)
	}

	if err := os.WriteFile(configPath, []byte(fmt.Sprintf(starterConfig, *projectPath)), 0o644); err != nil {
		fatal(fmt.Errorf("write config: %w", err), globals.JSON)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err, globals.JSON)
	}
	if err := bootstrap.InitData(cfg, newLogger()); err != nil {
		fatal(err, globals.JSON)
	}

	ui.Successf("Wrote %s", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit the projects section to point at your source trees")
	fmt.Println("  2. ueindex index    Build the index")
	fmt.Println("  3. ueindex serve    Serve the HTTP API")
}
