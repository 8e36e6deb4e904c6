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

// Package ingestion applies batches of file, type, member and asset records
// to the store, the in-memory index, the mirror tree and the inheritance
// graph, keeping all four in lock-step.
//
// The wire protocol is deletes-first, then per-file transactional upserts
// guarded by mtime, then asset upserts. Per-file failures collect into the
// batch result without aborting the rest. The package also carries a local
// ingest pipeline that walks configured project trees and parses C++
// headers directly, for bootstrapping without the external watcher.
package ingestion
