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

// Package bootstrap handles service initialization and runtime assembly.
//
// It owns the transition from configuration to a running core: creating
// the storage locations, opening the SQLite store (which migrates its
// schema idempotently), bulk-loading the in-memory index, and rebuilding
// the inheritance graph from the loaded contents.
//
// # Workflow
//
// A typical startup:
//
//	cfg, err := config.Load("ueindex.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rt, err := bootstrap.Open(cfg, version, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
// The returned Runtime carries the store, the memory index, the
// inheritance graph, and the mirror tree; the serve command hands these
// to the query façade and the ingestor.
//
// # Idempotency
//
// InitData may be called repeatedly: directory creation and schema
// migration are both no-ops on an already-initialized tree. Open writes
// a bootstrap marker beside the mirror recording the version, time, and
// entity counts of the load.
package bootstrap
