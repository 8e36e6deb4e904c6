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

package index

import (
	"fmt"
	"time"

	"github.com/kraklabs/ueindex/pkg/storage"
)

// Load bulk-populates the mirror from the store. The tables are streamed in
// dependency order over the store's single connection; rebuilding the sorted
// arrays happens once at the end.
func (ix *Index) Load(store *storage.Store) error {
	start := time.Now()

	err := store.AllFiles(func(f storage.File) error {
		ix.mu.Lock()
		ix.addFileLocked(f)
		ix.mu.Unlock()
		return nil
	})
	if err != nil {
		return fmt.Errorf("load files: %w", err)
	}
	err = store.AllTypes(func(t storage.Type) error {
		ix.mu.Lock()
		ix.addTypeLocked(t)
		ix.mu.Unlock()
		return nil
	})
	if err != nil {
		return fmt.Errorf("load types: %w", err)
	}
	err = store.AllMembers(func(m storage.Member) error {
		ix.mu.Lock()
		ix.addMemberLocked(m)
		ix.mu.Unlock()
		return nil
	})
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}

	var assets []storage.Asset
	err = store.AllAssets(func(a storage.Asset) error {
		assets = append(assets, a)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load assets: %w", err)
	}
	ix.UpsertAssets(assets)

	ix.mu.Lock()
	ix.rebuildSortedLocked()
	ix.loaded = true
	stats := ix.stats
	ix.mu.Unlock()

	ix.logger.Info("index.load.done",
		"files", stats.Files,
		"types", stats.Types,
		"members", stats.Members,
		"assets", stats.Assets,
		"interned", ix.InternedStrings(),
		"elapsed", time.Since(start),
	)
	return nil
}
