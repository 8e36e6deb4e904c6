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

package tools

import (
	"fmt"
	"sort"
	"strings"

	qerr "github.com/kraklabs/ueindex/internal/errors"
	"github.com/kraklabs/ueindex/internal/trigram"
	"github.com/kraklabs/ueindex/internal/uename"
	"github.com/kraklabs/ueindex/pkg/search"
	"github.com/kraklabs/ueindex/pkg/storage"
)

// answerFromStore is the worker-path twin of Service.answer: the same
// query kinds resolved against a read-only store handle while the memory
// index is still loading. Workers never touch the memory index.
func answerFromStore(store *storage.Store, q Query) (any, error) {
	switch v := q.(type) {
	case FindTypeQuery:
		return storeFindType(store, v)
	case FindMemberQuery:
		return storeFindMember(store, v)
	case FindFileQuery:
		return storeFindFile(store, v)
	case FindAssetQuery:
		return storeFindAsset(store, v)
	case FindChildrenQuery:
		return storeFindChildren(store, v)
	case ListModulesQuery:
		modules, err := store.ListModules(storage.Filter{Project: v.Project})
		if err != nil {
			return nil, qerr.NewInternal("list modules", err)
		}
		return ListModulesResult{Modules: modules}, nil
	case BrowseModuleQuery:
		return storeBrowseModule(store, v)
	case BrowseAssetsQuery:
		return storeBrowseAssets(store, v)
	case ListAssetFoldersQuery:
		folders, err := store.ListAssetFolders(storage.Filter{Project: v.Project})
		if err != nil {
			return nil, qerr.NewInternal("list asset folders", err)
		}
		return ListAssetFoldersResult{Folders: folders}, nil
	case ExplainTypeQuery:
		return storeExplainType(store, v)
	case StatsQuery:
		stats, err := store.GetStats()
		if err != nil {
			return nil, qerr.NewInternal("read stats", err)
		}
		return StatsResult{Store: stats}, nil
	default:
		return nil, qerr.NewInvalidParameter("method", fmt.Sprintf("unknown query kind %T", q))
	}
}

func storeFilter(project, language, kind string, maxResults int) storage.Filter {
	return storage.Filter{Project: project, Language: language, Kind: kind, MaxResults: maxResults}
}

func storeFindType(store *storage.Store, q FindTypeQuery) (FindTypeResult, error) {
	if q.Name == "" {
		return FindTypeResult{}, qerr.NewInvalidParameter("name", "name must not be empty")
	}
	filter := storeFilter(q.Project, q.Language, q.Kind, q.MaxResults)

	var matches []search.TypeMatch
	if q.Fuzzy {
		hits, err := storeFuzzyTypes(store, q.Name, filter)
		if err != nil {
			return FindTypeResult{}, err
		}
		matches = hits
	} else {
		for _, variant := range uename.Variants(q.Name) {
			hits, err := store.FindTypeByName(variant, filter)
			if err != nil {
				return FindTypeResult{}, qerr.NewInternal("find type", err)
			}
			reason := search.ReasonExact
			if !strings.EqualFold(variant, q.Name) {
				reason = search.ReasonPrefixVariant
			}
			for _, hit := range hits {
				matches = append(matches, search.TypeMatch{TypeHit: hit, Score: 1.0, Reason: reason})
			}
			if len(matches) > 0 {
				break
			}
		}
	}

	out := FindTypeResult{Results: make([]TypeResult, 0, len(matches))}
	for _, match := range matches {
		tr := TypeResult{TypeMatch: match}
		if q.ContextLines > 0 {
			tr.Context = storeContextWindow(store, match.FileID, match.Line, q.ContextLines)
		}
		out.Results = append(out.Results, tr)
	}

	if q.IncludeAssets || !q.Fuzzy {
		assets, err := store.FindAssetByName(q.Name, storage.Filter{Project: q.Project, MaxResults: q.MaxResults})
		if err != nil {
			return FindTypeResult{}, qerr.NewInternal("find asset", err)
		}
		for _, asset := range assets {
			out.Assets = append(out.Assets, search.AssetMatch{Asset: asset, Score: 1.0, Reason: search.ReasonExact})
		}
	}

	if len(out.Results) == 0 && len(out.Assets) == 0 {
		out.Hints = storeLookupHints(q.Fuzzy, q.Project)
	}
	return out, nil
}

// storeFuzzyTypes gathers candidates from the persisted name-trigram
// postings and ranks them with the shared scorer. Queries too short to
// carry a trigram fall back to the exact variants only.
func storeFuzzyTypes(store *storage.Store, name string, filter storage.Filter) ([]search.TypeMatch, error) {
	ids, err := storeTrigramGather(store, "type", name)
	if err != nil {
		return nil, err
	}
	limit := filter.MaxResults
	if limit <= 0 {
		limit = 20
	}

	var matches []search.TypeMatch
	seen := make(map[int64]struct{})
	consider := func(hits []storage.TypeHit, force float64, forceReason string) {
		for _, hit := range hits {
			if _, dup := seen[hit.ID]; dup {
				continue
			}
			seen[hit.ID] = struct{}{}
			score, reason := force, forceReason
			if force == 0 {
				score, reason = search.Score(name, hit.Name)
			}
			if score < 0.40 {
				continue
			}
			matches = append(matches, search.TypeMatch{TypeHit: hit, Score: score, Reason: reason})
		}
	}

	for _, variant := range uename.Variants(name) {
		hits, err := store.FindTypeByName(variant, filter)
		if err != nil {
			return nil, qerr.NewInternal("find type", err)
		}
		reason := search.ReasonExact
		if !strings.EqualFold(variant, name) {
			reason = search.ReasonPrefixVariant
		}
		consider(hits, 1.0, reason)
	}
	if len(ids) > 0 {
		hits, err := store.TypesByIDs(ids)
		if err != nil {
			return nil, qerr.NewInternal("load type candidates", err)
		}
		filtered := hits[:0]
		for _, hit := range hits {
			if typeHitInFilter(hit, filter) {
				filtered = append(filtered, hit)
			}
		}
		consider(filtered, 0, "")
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func typeHitInFilter(hit storage.TypeHit, filter storage.Filter) bool {
	if filter.Project != "" && hit.Project != filter.Project {
		return false
	}
	if filter.Language != "" && hit.Language != filter.Language {
		return false
	}
	if filter.Kind != "" && hit.Kind != filter.Kind {
		return false
	}
	return true
}

// storeTrigramGather intersects the name-trigram postings the way the
// memory matcher does, with the same length-dependent threshold.
func storeTrigramGather(store *storage.Store, entityType, name string) ([]int64, error) {
	queryTrigrams := trigram.ExtractString(strings.ToLower(name))
	if len(queryTrigrams) == 0 {
		return nil, nil
	}
	need := len(queryTrigrams)
	switch {
	case need <= 2:
		// keep need
	case need <= 4:
		need--
	default:
		need = (need*3 + 3) / 4
	}

	counts := make(map[int64]int)
	for _, tri := range queryTrigrams {
		ids, err := store.NameTrigramIDs(tri, entityType)
		if err != nil {
			return nil, qerr.NewInternal("read trigram postings", err)
		}
		for _, id := range ids {
			counts[id]++
		}
	}
	matched := make([]int64, 0, len(counts))
	for id, n := range counts {
		if n >= need {
			matched = append(matched, id)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i] < matched[j] })
	if len(matched) > 200 {
		matched = matched[:200]
	}
	return matched, nil
}

func storeFindMember(store *storage.Store, q FindMemberQuery) (FindMemberResult, error) {
	if q.Name == "" {
		return FindMemberResult{}, qerr.NewInvalidParameter("name", "name must not be empty")
	}
	var containing []string
	if q.ContainingType != "" {
		containing = storeContainingTypeSet(store, q.ContainingType, q.ContainingTypeHierarchy)
	}
	filter := storeFilter(q.Project, q.Language, "", q.MaxResults)

	hits, err := store.FindMember(q.Name, containing, q.MemberKind, filter)
	if err != nil {
		return FindMemberResult{}, qerr.NewInternal("find member", err)
	}
	out := FindMemberResult{Results: make([]MemberResult, 0, len(hits))}
	for _, hit := range hits {
		mr := MemberResult{MemberMatch: search.MemberMatch{MemberHit: hit, Score: 1.0, Reason: search.ReasonExact}}
		if q.ContextLines > 0 {
			mr.Context = storeContextWindow(store, hit.FileID, hit.Line, q.ContextLines)
		}
		if q.IncludeSignatures {
			mr.Signature = storeSignatureLine(store, hit.FileID, hit.Line)
		}
		out.Results = append(out.Results, mr)
	}

	if q.Fuzzy && len(out.Results) == 0 {
		ids, err := storeTrigramGather(store, "member", q.Name)
		if err != nil {
			return FindMemberResult{}, err
		}
		candidates, err := store.MembersByIDs(ids)
		if err != nil {
			return FindMemberResult{}, qerr.NewInternal("load member candidates", err)
		}
		for _, hit := range candidates {
			if q.MemberKind != "" && hit.MemberKind != q.MemberKind {
				continue
			}
			if filter.Project != "" && hit.Project != filter.Project {
				continue
			}
			if len(containing) > 0 && !nameInSet(hit.TypeName, containing) {
				continue
			}
			score, reason := search.Score(q.Name, hit.Name)
			if score < 0.15 {
				continue
			}
			out.Results = append(out.Results, MemberResult{
				MemberMatch: search.MemberMatch{MemberHit: hit, Score: score, Reason: reason},
			})
		}
		sort.SliceStable(out.Results, func(i, j int) bool { return out.Results[i].Score > out.Results[j].Score })
		if limit := q.MaxResults; limit > 0 && len(out.Results) > limit {
			out.Results = out.Results[:limit]
		}
	}

	if len(out.Results) == 0 {
		out.Hints = storeLookupHints(q.Fuzzy, q.Project)
	}
	return out, nil
}

func nameInSet(name string, set []string) bool {
	for _, s := range set {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// storeContainingTypeSet expands a type to itself plus its ancestors via
// the stored parent names, the worker-path twin of the graph walk.
func storeContainingTypeSet(store *storage.Store, name string, hierarchy bool) []string {
	out := []string{name}
	if !hierarchy {
		return out
	}
	seen := map[string]struct{}{name: {}}
	current := name
	for depth := 0; depth < 64; depth++ {
		hits, err := store.FindTypeByName(current, storage.Filter{MaxResults: 1})
		if err != nil || len(hits) == 0 || hits[0].Parent == "" {
			break
		}
		parent := hits[0].Parent
		if _, dup := seen[parent]; dup {
			break
		}
		seen[parent] = struct{}{}
		out = append(out, parent)
		current = parent
	}
	return out
}

func storeFindFile(store *storage.Store, q FindFileQuery) (FindFileResult, error) {
	if q.Filename == "" {
		return FindFileResult{}, qerr.NewInvalidParameter("filename", "filename must not be empty")
	}
	files, err := store.FindFileByName(q.Filename, storeFilter(q.Project, q.Language, "", q.MaxResults))
	if err != nil {
		return FindFileResult{}, qerr.NewInternal("find file", err)
	}
	out := FindFileResult{Results: files}
	if len(files) == 0 {
		out.Hints = storeLookupHints(false, q.Project)
	}
	return out, nil
}

func storeFindAsset(store *storage.Store, q FindAssetQuery) (FindAssetResult, error) {
	if q.Name == "" {
		return FindAssetResult{}, qerr.NewInvalidParameter("name", "name must not be empty")
	}
	assets, err := store.FindAssetByName(q.Name, storage.Filter{Project: q.Project, MaxResults: q.MaxResults})
	if err != nil {
		return FindAssetResult{}, qerr.NewInternal("find asset", err)
	}
	out := FindAssetResult{}
	for _, asset := range assets {
		if q.Folder != "" && asset.Folder != q.Folder && !strings.HasPrefix(asset.Folder, q.Folder+"/") {
			continue
		}
		out.Results = append(out.Results, search.AssetMatch{Asset: asset, Score: 1.0, Reason: search.ReasonExact})
	}
	if len(out.Results) == 0 {
		out.Hints = storeLookupHints(q.Fuzzy, q.Project)
	}
	return out, nil
}

func storeFindChildren(store *storage.Store, q FindChildrenQuery) (FindChildrenResult, error) {
	if q.Parent == "" {
		return FindChildrenResult{}, qerr.NewInvalidParameter("parent", "parent must not be empty")
	}
	limit := q.MaxResults
	if limit <= 0 {
		limit = 100
	}

	parents, err := store.FindTypeByName(q.Parent, storage.Filter{MaxResults: 1})
	if err != nil {
		return FindChildrenResult{}, qerr.NewInternal("find parent", err)
	}
	out := FindChildrenResult{ParentFound: len(parents) > 0}

	// BFS over stored parent names; each frontier name is consulted both
	// prefixed and stripped because assets store parents un-prefixed.
	seen := map[string]struct{}{}
	frontier := []string{q.Parent}
	var typeHits []storage.TypeHit
	var assetHits []storage.Asset
	for len(frontier) > 0 {
		lookup := make([]string, 0, len(frontier)*2)
		for _, name := range frontier {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			lookup = append(lookup, name)
			if stripped := uename.Strip(name); stripped != name {
				lookup = append(lookup, stripped)
			}
		}
		if len(lookup) == 0 {
			break
		}
		children, err := store.FindChildrenOf(lookup)
		if err != nil {
			return FindChildrenResult{}, qerr.NewInternal("find children", err)
		}
		assets, err := store.AssetsByParentClasses(lookup)
		if err != nil {
			return FindChildrenResult{}, qerr.NewInternal("find asset children", err)
		}
		frontier = frontier[:0]
		for _, child := range children {
			typeHits = append(typeHits, child)
			if q.Recursive {
				frontier = append(frontier, child.Name)
			}
		}
		for _, asset := range assets {
			if asset.AssetClass == "" {
				continue
			}
			assetHits = append(assetHits, asset)
			if q.Recursive {
				frontier = append(frontier, asset.Name)
			}
		}
		if !q.Recursive {
			break
		}
	}

	// Filters apply to the output only; the walk above crossed projects
	// and languages freely.
	for _, hit := range typeHits {
		if q.Project != "" && hit.Project != q.Project {
			continue
		}
		if q.Language != "" && hit.Language != q.Language {
			continue
		}
		out.TotalChildren++
		if len(out.Results) < limit {
			out.Results = append(out.Results, ChildEntry{
				Name:     hit.Name,
				Source:   "type",
				Kind:     hit.Kind,
				FilePath: hit.FilePath,
				Project:  hit.Project,
				Language: hit.Language,
			})
		}
	}
	for _, asset := range assetHits {
		if q.Project != "" && asset.Project != q.Project {
			continue
		}
		out.TotalChildren++
		if len(out.Results) < limit {
			out.Results = append(out.Results, ChildEntry{
				Name:        asset.Name,
				Source:      "asset",
				FilePath:    asset.Path,
				ContentPath: asset.ContentPath,
				Project:     asset.Project,
				AssetClass:  asset.AssetClass,
			})
		}
	}
	out.Truncated = out.TotalChildren > len(out.Results)
	if !out.ParentFound {
		out.Hints = []string{"parent type not found; check the spelling or try find-type first"}
	}
	return out, nil
}

func storeBrowseModule(store *storage.Store, q BrowseModuleQuery) (BrowseModuleResult, error) {
	if q.Module == "" {
		return BrowseModuleResult{}, qerr.NewInvalidParameter("module", "module must not be empty")
	}
	files, err := store.BrowseModule(q.Module, storage.Filter{Project: q.Project})
	if err != nil {
		return BrowseModuleResult{}, qerr.NewInternal("browse module", err)
	}
	out := BrowseModuleResult{Module: q.Module}
	for _, f := range files {
		mf := ModuleFile{Path: f.Path}
		types, err := store.TypesForFile(f.ID)
		if err != nil {
			return BrowseModuleResult{}, qerr.NewInternal("list file types", err)
		}
		for _, t := range types {
			mf.Types = append(mf.Types, t.Name)
		}
		out.Files = append(out.Files, mf)
	}
	if len(out.Files) == 0 {
		out.Hints = []string{"module not found; use list-modules to see what exists"}
	}
	return out, nil
}

func storeBrowseAssets(store *storage.Store, q BrowseAssetsQuery) (BrowseAssetsResult, error) {
	if q.Folder == "" {
		return BrowseAssetsResult{}, qerr.NewInvalidParameter("folder", "folder must not be empty")
	}
	assets, err := store.BrowseAssetFolder(q.Folder, storage.Filter{Project: q.Project, MaxResults: q.MaxResults})
	if err != nil {
		return BrowseAssetsResult{}, qerr.NewInternal("browse assets", err)
	}
	out := BrowseAssetsResult{Folder: q.Folder, Assets: assets}
	if len(out.Assets) == 0 {
		out.Hints = []string{"folder empty or unknown; use list-asset-folders to see what exists"}
	}
	return out, nil
}

func storeExplainType(store *storage.Store, q ExplainTypeQuery) (ExplainTypeResult, error) {
	types, err := storeFindType(store, FindTypeQuery{Name: q.Name, Project: q.Project, Language: q.Language, MaxResults: 1})
	if err != nil {
		return ExplainTypeResult{}, err
	}
	if len(types.Results) == 0 {
		return ExplainTypeResult{Hints: types.Hints}, nil
	}
	primary := types.Results[0]
	out := ExplainTypeResult{Type: &primary}

	members, err := store.ListMembersForType(primary.ID)
	if err != nil {
		return ExplainTypeResult{}, qerr.NewInternal("list members", err)
	}
	for _, hit := range members {
		out.Members = append(out.Members, MemberResult{
			MemberMatch: search.MemberMatch{MemberHit: hit, Score: 1.0, Reason: search.ReasonExact},
		})
	}

	children, err := storeFindChildren(store, FindChildrenQuery{Parent: primary.Name, MaxResults: 50})
	if err == nil && children.TotalChildren > 0 {
		out.Children = &children
	}
	return out, nil
}

func storeContextWindow(store *storage.Store, fileID int64, line, n int) []string {
	body, err := store.ContentForFile(fileID)
	if err != nil || body == nil {
		return nil
	}
	lines := strings.Split(string(body), "\n")
	if line < 1 || line > len(lines) {
		return nil
	}
	lo := max(0, line-1-n)
	hi := min(len(lines), line+n)
	window := make([]string, 0, hi-lo)
	for _, l := range lines[lo:hi] {
		window = append(window, strings.TrimRight(l, "\r"))
	}
	return window
}

func storeSignatureLine(store *storage.Store, fileID int64, line int) string {
	body, err := store.ContentForFile(fileID)
	if err != nil || body == nil {
		return ""
	}
	lines := strings.Split(string(body), "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(lines[line-1], "\r"))
}

// storeLookupHints is the worker-path hint builder: no index to sample
// for near-miss names, so only the parameter guidance applies.
func storeLookupHints(fuzzy bool, project string) []string {
	var hints []string
	if !fuzzy {
		hints = append(hints, "try fuzzy=true for approximate matching")
	}
	if project != "" {
		hints = append(hints, "try removing the project filter")
	}
	return hints
}
