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

// Package index keeps a full in-memory mirror of the persistent store: id
// maps, multimaps, trigram postings and sorted lowercase-name arrays for
// binary-search prefix scanning. It is the sub-millisecond query path; the
// store-backed worker pool is the fallback while the mirror is loading.
//
// The mirror is mutated only by the ingest path and read under an RWMutex.
// Each mutation method takes the write lock on its own, so a reader never
// sees half of one call; the ingest path syncs a file through several calls
// (RemoveFile, AddFile, AddTypes, AddMembers), and a reader between them
// sees that file, and its batch, partly applied.
package index

import (
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/kraklabs/ueindex/internal/trigram"
	"github.com/kraklabs/ueindex/pkg/storage"
)

// Index is the in-memory acceleration layer.
type Index struct {
	mu     sync.RWMutex
	logger *slog.Logger
	intern *internTable

	files          map[int64]storage.File
	fileIDByPath   map[string]int64
	filesByBase    map[string][]int64 // lower basename -> file ids
	filesByModule  map[string][]int64
	filesByProject map[string][]int64

	types            map[int64]storage.Type
	typesByName      map[string][]int64
	typesByNameLower map[string][]int64
	typesByFile      map[int64][]int64
	typesByParent    map[string][]int64

	members            map[int64]storage.Member
	membersByNameLower map[string][]int64
	membersByFile      map[int64][]int64
	membersByType      map[int64][]int64

	assets              map[int64]storage.Asset
	assetIDByPath       map[string]int64
	assetsByNameLower   map[string][]int64
	assetsByFolder      map[string][]int64
	assetsByParentClass map[string][]int64

	typeTrigrams   map[trigram.Trigram][]int64
	memberTrigrams map[trigram.Trigram][]int64

	sorted sortedArrays

	loaded bool
	stats  Counters
}

// Counters are live entity counts, maintained on every add and remove so
// stats never need a full scan.
type Counters struct {
	Files   int64 `json:"files"`
	Types   int64 `json:"types"`
	Members int64 `json:"members"`
	Assets  int64 `json:"assets"`
}

// New creates an empty, unloaded index.
func New(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		logger: logger,
		intern: newInternTable(),

		files:          make(map[int64]storage.File),
		fileIDByPath:   make(map[string]int64),
		filesByBase:    make(map[string][]int64),
		filesByModule:  make(map[string][]int64),
		filesByProject: make(map[string][]int64),

		types:            make(map[int64]storage.Type),
		typesByName:      make(map[string][]int64),
		typesByNameLower: make(map[string][]int64),
		typesByFile:      make(map[int64][]int64),
		typesByParent:    make(map[string][]int64),

		members:            make(map[int64]storage.Member),
		membersByNameLower: make(map[string][]int64),
		membersByFile:      make(map[int64][]int64),
		membersByType:      make(map[int64][]int64),

		assets:              make(map[int64]storage.Asset),
		assetIDByPath:       make(map[string]int64),
		assetsByNameLower:   make(map[string][]int64),
		assetsByFolder:      make(map[string][]int64),
		assetsByParentClass: make(map[string][]int64),

		typeTrigrams:   make(map[trigram.Trigram][]int64),
		memberTrigrams: make(map[trigram.Trigram][]int64),
	}
}

// Loaded reports whether Load completed; the façade falls back to the
// worker pool until then.
func (ix *Index) Loaded() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.loaded
}

// Stats returns the live counters.
func (ix *Index) Stats() Counters {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.stats
}

func baseLower(p string) string {
	return strings.ToLower(path.Base(strings.ReplaceAll(p, "\\", "/")))
}

// AddFile mirrors a file row. An existing row at the same id is replaced.
func (ix *Index) AddFile(f storage.File) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.addFileLocked(f)
}

func (ix *Index) addFileLocked(f storage.File) {
	if _, exists := ix.files[f.ID]; exists {
		ix.removeFileLocked(f.ID)
	}
	f.Project = ix.intern.intern(f.Project)
	f.Module = ix.intern.intern(f.Module)
	f.Language = ix.intern.intern(f.Language)
	ix.files[f.ID] = f
	ix.fileIDByPath[f.Path] = f.ID
	base := baseLower(f.Path)
	ix.filesByBase[base] = append(ix.filesByBase[base], f.ID)
	if f.Module != "" {
		ix.filesByModule[f.Module] = append(ix.filesByModule[f.Module], f.ID)
	}
	if f.Project != "" {
		ix.filesByProject[f.Project] = append(ix.filesByProject[f.Project], f.ID)
	}
	ix.stats.Files++
	ix.sorted.markDirty()
}

// AddTypes mirrors freshly inserted type rows (ids already assigned by the
// store) and extends the trigram postings.
func (ix *Index) AddTypes(types []storage.Type) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, t := range types {
		ix.addTypeLocked(t)
	}
}

func (ix *Index) addTypeLocked(t storage.Type) {
	t.Kind = ix.intern.intern(t.Kind)
	ix.types[t.ID] = t
	lower := strings.ToLower(t.Name)
	ix.typesByName[t.Name] = append(ix.typesByName[t.Name], t.ID)
	ix.typesByNameLower[lower] = append(ix.typesByNameLower[lower], t.ID)
	ix.typesByFile[t.FileID] = append(ix.typesByFile[t.FileID], t.ID)
	if t.Parent != "" {
		ix.typesByParent[t.Parent] = append(ix.typesByParent[t.Parent], t.ID)
	}
	for _, tri := range trigram.ExtractString(lower) {
		ix.typeTrigrams[tri] = append(ix.typeTrigrams[tri], t.ID)
	}
	ix.stats.Types++
	ix.sorted.markDirty()
}

// AddMembers mirrors freshly inserted member rows.
func (ix *Index) AddMembers(members []storage.Member) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, m := range members {
		ix.addMemberLocked(m)
	}
}

func (ix *Index) addMemberLocked(m storage.Member) {
	m.MemberKind = ix.intern.intern(m.MemberKind)
	ix.members[m.ID] = m
	lower := strings.ToLower(m.Name)
	ix.membersByNameLower[lower] = append(ix.membersByNameLower[lower], m.ID)
	ix.membersByFile[m.FileID] = append(ix.membersByFile[m.FileID], m.ID)
	if m.TypeID != 0 {
		ix.membersByType[m.TypeID] = append(ix.membersByType[m.TypeID], m.ID)
	}
	for _, tri := range trigram.ExtractString(lower) {
		ix.memberTrigrams[tri] = append(ix.memberTrigrams[tri], m.ID)
	}
	ix.stats.Members++
	ix.sorted.markDirty()
}

// RemoveFile drops a file and its types and members from every map.
func (ix *Index) RemoveFile(id int64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeFileLocked(id)
}

func (ix *Index) removeFileLocked(id int64) {
	f, ok := ix.files[id]
	if !ok {
		return
	}
	for _, typeID := range ix.typesByFile[id] {
		ix.removeTypeLocked(typeID)
	}
	delete(ix.typesByFile, id)
	for _, memberID := range ix.membersByFile[id] {
		ix.removeMemberLocked(memberID)
	}
	delete(ix.membersByFile, id)

	delete(ix.files, id)
	delete(ix.fileIDByPath, f.Path)
	base := baseLower(f.Path)
	ix.filesByBase[base] = removeID(ix.filesByBase[base], id)
	if f.Module != "" {
		ix.filesByModule[f.Module] = removeID(ix.filesByModule[f.Module], id)
	}
	if f.Project != "" {
		ix.filesByProject[f.Project] = removeID(ix.filesByProject[f.Project], id)
	}
	ix.stats.Files--
	ix.sorted.markDirty()
}

func (ix *Index) removeTypeLocked(id int64) {
	t, ok := ix.types[id]
	if !ok {
		return
	}
	lower := strings.ToLower(t.Name)
	delete(ix.types, id)
	ix.typesByName[t.Name] = removeID(ix.typesByName[t.Name], id)
	ix.typesByNameLower[lower] = removeID(ix.typesByNameLower[lower], id)
	if t.Parent != "" {
		ix.typesByParent[t.Parent] = removeID(ix.typesByParent[t.Parent], id)
	}
	for _, tri := range trigram.ExtractString(lower) {
		ix.typeTrigrams[tri] = removeID(ix.typeTrigrams[tri], id)
	}
	for _, memberID := range ix.membersByType[id] {
		if m, ok := ix.members[memberID]; ok {
			m.TypeID = 0
			ix.members[memberID] = m
		}
	}
	delete(ix.membersByType, id)
	ix.stats.Types--
}

func (ix *Index) removeMemberLocked(id int64) {
	m, ok := ix.members[id]
	if !ok {
		return
	}
	lower := strings.ToLower(m.Name)
	delete(ix.members, id)
	ix.membersByNameLower[lower] = removeID(ix.membersByNameLower[lower], id)
	if m.TypeID != 0 {
		ix.membersByType[m.TypeID] = removeID(ix.membersByType[m.TypeID], id)
	}
	for _, tri := range trigram.ExtractString(lower) {
		ix.memberTrigrams[tri] = removeID(ix.memberTrigrams[tri], id)
	}
	ix.stats.Members--
}

// UpsertAssets mirrors a batch of asset rows.
func (ix *Index) UpsertAssets(assets []storage.Asset) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, a := range assets {
		if existing, ok := ix.assetIDByPath[a.Path]; ok {
			ix.removeAssetLocked(existing)
		}
		a.Project = ix.intern.intern(a.Project)
		a.Extension = ix.intern.intern(a.Extension)
		a.AssetClass = ix.intern.intern(a.AssetClass)
		ix.assets[a.ID] = a
		ix.assetIDByPath[a.Path] = a.ID
		lower := strings.ToLower(a.Name)
		ix.assetsByNameLower[lower] = append(ix.assetsByNameLower[lower], a.ID)
		if a.Folder != "" {
			ix.assetsByFolder[a.Folder] = append(ix.assetsByFolder[a.Folder], a.ID)
		}
		if a.ParentClass != "" && a.AssetClass != "" {
			ix.assetsByParentClass[a.ParentClass] = append(ix.assetsByParentClass[a.ParentClass], a.ID)
		}
		ix.stats.Assets++
	}
	ix.sorted.markDirty()
}

// RemoveAssetByPath drops one asset; reports whether it existed.
func (ix *Index) RemoveAssetByPath(p string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	id, ok := ix.assetIDByPath[p]
	if !ok {
		return false
	}
	ix.removeAssetLocked(id)
	return true
}

func (ix *Index) removeAssetLocked(id int64) {
	a, ok := ix.assets[id]
	if !ok {
		return
	}
	delete(ix.assets, id)
	delete(ix.assetIDByPath, a.Path)
	lower := strings.ToLower(a.Name)
	ix.assetsByNameLower[lower] = removeID(ix.assetsByNameLower[lower], id)
	if a.Folder != "" {
		ix.assetsByFolder[a.Folder] = removeID(ix.assetsByFolder[a.Folder], id)
	}
	if a.ParentClass != "" {
		ix.assetsByParentClass[a.ParentClass] = removeID(ix.assetsByParentClass[a.ParentClass], id)
	}
	ix.stats.Assets--
	ix.sorted.markDirty()
}

func removeID(ids []int64, id int64) []int64 {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
