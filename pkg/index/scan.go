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
	"sort"
	"strings"

	"github.com/kraklabs/ueindex/internal/trigram"
	"github.com/kraklabs/ueindex/pkg/storage"
)

// sortedArrays holds the lowercase-sorted key arrays used for binary-search
// prefix scanning. They are rebuilt lazily after any mutation.
type sortedArrays struct {
	dirty        bool
	typeNames    []string
	memberNames  []string
	assetNames   []string
	basenames    []string
	moduleNames  []string
}

func (sa *sortedArrays) markDirty() {
	sa.dirty = true
}

// rebuildSortedLocked re-derives every sorted array from the multimap keys.
// Caller holds the write lock.
func (ix *Index) rebuildSortedLocked() {
	ix.sorted.typeNames = sortedKeys(ix.typesByNameLower)
	ix.sorted.memberNames = sortedKeys(ix.membersByNameLower)
	ix.sorted.assetNames = sortedKeys(ix.assetsByNameLower)
	ix.sorted.basenames = sortedKeys(ix.filesByBase)
	ix.sorted.moduleNames = sortedKeys(ix.filesByModule)
	ix.sorted.dirty = false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		// Multimap buckets can be emptied by removals; skip dead keys.
		if ids, ok := any(v).([]int64); ok && len(ids) == 0 {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RefreshSorted rebuilds the prefix arrays if any mutation dirtied them.
// The ingest path calls this once per batch, after the store commit.
func (ix *Index) RefreshSorted() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.sorted.dirty {
		ix.rebuildSortedLocked()
	}
}

func (ix *Index) ensureSortedLocked() {
	if ix.sorted.dirty {
		ix.rebuildSortedLocked()
	}
}

// prefixScan binary-searches the lower bound of prefix in sorted and
// linearly extends while entries keep the prefix. Results are in
// lexicographic order.
func prefixScan(sorted []string, prefix string, limit int) []string {
	if prefix == "" {
		return nil
	}
	lo := sort.SearchStrings(sorted, prefix)
	var out []string
	for i := lo; i < len(sorted); i++ {
		if !strings.HasPrefix(sorted[i], prefix) {
			break
		}
		out = append(out, sorted[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Entity kinds accepted by the scan methods.
type EntityKind int

const (
	EntityType EntityKind = iota
	EntityMember
	EntityAsset
)

// NamesWithPrefix returns lowercase names of the given entity kind starting
// with prefix, in lexicographic order.
func (ix *Index) NamesWithPrefix(kind EntityKind, prefix string, limit int) []string {
	ix.mu.Lock()
	ix.ensureSortedLocked()
	var sorted []string
	switch kind {
	case EntityType:
		sorted = ix.sorted.typeNames
	case EntityMember:
		sorted = ix.sorted.memberNames
	case EntityAsset:
		sorted = ix.sorted.assetNames
	}
	ix.mu.Unlock()
	return prefixScan(sorted, strings.ToLower(prefix), limit)
}

// NamesContaining scans the full sorted array for substring matches. This is
// the fallback for queries too short to carry a trigram.
func (ix *Index) NamesContaining(kind EntityKind, needle string, limit int) []string {
	ix.mu.Lock()
	ix.ensureSortedLocked()
	var sorted []string
	switch kind {
	case EntityType:
		sorted = ix.sorted.typeNames
	case EntityMember:
		sorted = ix.sorted.memberNames
	case EntityAsset:
		sorted = ix.sorted.assetNames
	}
	ix.mu.Unlock()

	needle = strings.ToLower(needle)
	var out []string
	for _, name := range sorted {
		if strings.Contains(name, needle) {
			out = append(out, name)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// ModulesWithPrefix returns module names starting with prefix.
func (ix *Index) ModulesWithPrefix(prefix string, limit int) []string {
	ix.mu.Lock()
	ix.ensureSortedLocked()
	sorted := ix.sorted.moduleNames
	ix.mu.Unlock()
	return prefixScan(sorted, strings.ToLower(prefix), limit)
}

// BasenamesWithPrefix returns file basenames starting with prefix.
func (ix *Index) BasenamesWithPrefix(prefix string, limit int) []string {
	ix.mu.Lock()
	ix.ensureSortedLocked()
	sorted := ix.sorted.basenames
	ix.mu.Unlock()
	return prefixScan(sorted, strings.ToLower(prefix), limit)
}

// IDsForName returns the entity ids filed under an exact lowercase name.
func (ix *Index) IDsForName(kind EntityKind, lowerName string) []int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var ids []int64
	switch kind {
	case EntityType:
		ids = ix.typesByNameLower[lowerName]
	case EntityMember:
		ids = ix.membersByNameLower[lowerName]
	case EntityAsset:
		ids = ix.assetsByNameLower[lowerName]
	}
	return append([]int64(nil), ids...)
}

// IDsForTrigram returns the posting list of one trigram.
func (ix *Index) IDsForTrigram(kind EntityKind, t trigram.Trigram) []int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var ids []int64
	switch kind {
	case EntityType:
		ids = ix.typeTrigrams[t]
	case EntityMember:
		ids = ix.memberTrigrams[t]
	}
	return append([]int64(nil), ids...)
}

// TypeByID returns a mirrored type row.
func (ix *Index) TypeByID(id int64) (storage.Type, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t, ok := ix.types[id]
	return t, ok
}

// MemberByID returns a mirrored member row.
func (ix *Index) MemberByID(id int64) (storage.Member, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	m, ok := ix.members[id]
	return m, ok
}

// AssetByID returns a mirrored asset row.
func (ix *Index) AssetByID(id int64) (storage.Asset, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	a, ok := ix.assets[id]
	return a, ok
}

// FileByID returns a mirrored file row.
func (ix *Index) FileByID(id int64) (storage.File, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	f, ok := ix.files[id]
	return f, ok
}

// FileIDByPath resolves an absolute path to its file id.
func (ix *Index) FileIDByPath(p string) (int64, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	id, ok := ix.fileIDByPath[p]
	return id, ok
}

// TypeHit joins a mirrored type with its file, matching the store's shape so
// both query paths produce identical results.
func (ix *Index) TypeHit(id int64) (storage.TypeHit, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t, ok := ix.types[id]
	if !ok {
		return storage.TypeHit{}, false
	}
	f := ix.files[t.FileID]
	return storage.TypeHit{
		Type:     t,
		FilePath: f.Path,
		Module:   f.Module,
		Project:  f.Project,
		Language: f.Language,
	}, true
}

// MemberHit joins a mirrored member with its file and owning type.
func (ix *Index) MemberHit(id int64) (storage.MemberHit, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	m, ok := ix.members[id]
	if !ok {
		return storage.MemberHit{}, false
	}
	f := ix.files[m.FileID]
	var typeName string
	if m.TypeID != 0 {
		if t, ok := ix.types[m.TypeID]; ok {
			typeName = t.Name
		}
	}
	return storage.MemberHit{
		Member:   m,
		TypeName: typeName,
		FilePath: f.Path,
		Project:  f.Project,
		Language: f.Language,
	}, true
}

// TypeIDsForFile returns the type ids declared in one file.
func (ix *Index) TypeIDsForFile(fileID int64) []int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]int64(nil), ix.typesByFile[fileID]...)
}

// MemberIDsForType returns the member ids owned by one type.
func (ix *Index) MemberIDsForType(typeID int64) []int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]int64(nil), ix.membersByType[typeID]...)
}

// TypeIDsByParent returns the source types whose textual parent equals name.
func (ix *Index) TypeIDsByParent(name string) []int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]int64(nil), ix.typesByParent[name]...)
}

// AssetIDsByParentClass returns the Blueprint assets whose parent class
// equals name.
func (ix *Index) AssetIDsByParentClass(name string) []int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]int64(nil), ix.assetsByParentClass[name]...)
}

// EachParentEdge yields (child name, parent name) for every source type and
// Blueprint asset carrying a parent. The graph layer rebuilds from this.
func (ix *Index) EachParentEdge(fn func(child, parent string, isAsset bool)) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for _, t := range ix.types {
		if t.Parent == "" {
			continue
		}
		switch t.Kind {
		case storage.KindClass, storage.KindStruct, storage.KindInterface:
			fn(t.Name, t.Parent, false)
		}
	}
	for _, a := range ix.assets {
		if a.ParentClass != "" && a.AssetClass != "" {
			fn(a.Name, a.ParentClass, true)
		}
	}
}

// SetTypeDepths stores computed inheritance depths on the mirrored rows.
func (ix *Index) SetTypeDepths(depths map[int64]int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for id, depth := range depths {
		if t, ok := ix.types[id]; ok {
			t.Depth = depth
			ix.types[id] = t
		}
	}
}

// FileIDsForBasename returns the file ids filed under a lower basename.
func (ix *Index) FileIDsForBasename(lower string) []int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]int64(nil), ix.filesByBase[lower]...)
}

// FileIDsForModule returns the file ids of one module.
func (ix *Index) FileIDsForModule(module string) []int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]int64(nil), ix.filesByModule[module]...)
}

// AssetIDsForFolder returns the asset ids directly inside one folder.
func (ix *Index) AssetIDsForFolder(folder string) []int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]int64(nil), ix.assetsByFolder[folder]...)
}

// AssetFolders returns the distinct asset folders in lexicographic order.
func (ix *Index) AssetFolders() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	folders := make([]string, 0, len(ix.assetsByFolder))
	for folder, ids := range ix.assetsByFolder {
		if len(ids) > 0 {
			folders = append(folders, folder)
		}
	}
	sort.Strings(folders)
	return folders
}

// ModuleNames returns the distinct module names in lexicographic order.
func (ix *Index) ModuleNames() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	modules := make([]string, 0, len(ix.filesByModule))
	for module, ids := range ix.filesByModule {
		if len(ids) > 0 {
			modules = append(modules, module)
		}
	}
	sort.Strings(modules)
	return modules
}

// InternedStrings reports the intern table size for diagnostics.
func (ix *Index) InternedStrings() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.intern.size()
}
