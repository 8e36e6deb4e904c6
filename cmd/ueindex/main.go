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

// Package main implements the ueindex CLI for serving and maintaining the
// Unreal code index.
//
// Usage:
//
//	ueindex init                  Create ueindex.yaml configuration
//	ueindex serve                 Start the HTTP query service
//	ueindex index                 Index the configured projects locally
//	ueindex [--json] status       Show index status
//	ueindex reset --yes           Delete all indexed data
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/kraklabs/ueindex/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// GlobalFlags are shared by every subcommand.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
}

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		configPath  = flag.String("config", "ueindex.yaml", "Path to the configuration file")
		jsonOut     = flag.Bool("json", false, "Machine-readable JSON output")
		quiet       = flag.Bool("q", false, "Suppress progress output")
		noColor     = flag.Bool("no-color", false, "Disable colored output")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `ueindex - Unreal Engine code index service

Usage:
  ueindex <command> [options]

Commands:
  init          Create ueindex.yaml configuration
  serve         Start the HTTP query service
  index         Index the configured projects locally
  status        Show index status
  reset         Delete all indexed data (destructive!)

Global Options:
  --config      Path to the configuration file (default: ueindex.yaml)
  --json        Machine-readable JSON output
  --no-color    Disable colored output
  -q            Suppress progress output
  --version     Show version and exit

Examples:
  ueindex init                       Write a starter configuration
  ueindex index                      Index the configured projects
  ueindex serve                      Serve the HTTP API
  ueindex --json status              Status for scripts and tools

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("ueindex version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	globals := GlobalFlags{JSON: *jsonOut, Quiet: *quiet || *jsonOut, NoColor: *noColor}
	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, *configPath, globals)
	case "serve":
		runServe(cmdArgs, *configPath, globals)
	case "index":
		runIndex(cmdArgs, *configPath, globals)
	case "status":
		runStatus(cmdArgs, *configPath, globals)
	case "reset":
		runReset(cmdArgs, *configPath, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

// newLogger builds the process logger: text to stderr, debug when
// UEINDEX_DEBUG is set.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("UEINDEX_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// fatal prints an error in the requested shape and exits non-zero.
func fatal(err error, jsonOut bool) {
	if jsonOut {
		fmt.Printf("{\"error\": %q}\n", err.Error())
	} else {
		ui.Errorf("%v", err)
	}
	os.Exit(1)
}
