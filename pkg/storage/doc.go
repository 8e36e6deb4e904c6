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

// Package storage implements the persistent code index.
//
// The index lives in a single WAL-journaled SQLite database holding files,
// types, members, assets, compressed file bodies, content trigrams for the
// grep prefilter and name trigrams for fuzzy lookup. All ingest writes go
// through a single writer; any number of read-only handles may be open
// concurrently (see OpenReadOnly), which is what the query worker pool uses.
//
// Deleting a file cascades to its types, members, body and trigram rows, so
// no posting ever references a dead entity.
package storage
