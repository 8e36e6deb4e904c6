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

// Package tools is the query façade: every read query is a typed Query
// variant dispatched through one function, answered from the in-memory
// index when it is loaded or from the read-only worker pool against the
// store while it is not.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	qerr "github.com/kraklabs/ueindex/internal/errors"
	"github.com/kraklabs/ueindex/internal/uename"
	"github.com/kraklabs/ueindex/pkg/graph"
	"github.com/kraklabs/ueindex/pkg/index"
	"github.com/kraklabs/ueindex/pkg/search"
	"github.com/kraklabs/ueindex/pkg/storage"
)

// slowQueryThreshold is when a query earns a slow-query log line and an
// analytics row.
const slowQueryThreshold = 100 * time.Millisecond

// Service answers read queries.
type Service struct {
	store    *storage.Store
	ix       *index.Index
	g        *graph.Graph
	matcher  *search.Matcher
	pool     *Pool
	logger   *slog.Logger
	projects []string
}

// NewService wires the façade. pool may be nil (memory-only deployments
// and tests); projects is the configured project-name list used for
// UnknownProject errors.
func NewService(store *storage.Store, ix *index.Index, g *graph.Graph, pool *Pool, projects []string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		ix:       ix,
		g:        g,
		matcher:  search.NewMatcher(ix, g),
		pool:     pool,
		logger:   logger,
		projects: projects,
	}
}

// Dispatch answers one query: validation, route selection, slow-query
// timing and analytics.
func (s *Service) Dispatch(ctx context.Context, q Query) (any, error) {
	if err := s.validateProject(q); err != nil {
		return nil, err
	}
	return s.timed(ctx, q, func(ctx context.Context) (any, error) {
		if !s.ix.Loaded() && s.pool != nil {
			return s.pool.Do(ctx, q)
		}
		return s.answer(ctx, q)
	})
}

// timed wraps a query execution with duration measurement. Queries over
// the threshold are logged and recorded in analytics; analytics failures
// are swallowed inside the store.
func (s *Service) timed(ctx context.Context, q Query, fn func(context.Context) (any, error)) (any, error) {
	start := time.Now()
	result, err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed >= slowQueryThreshold {
		args, _ := json.Marshal(q)
		s.logger.Warn("query.slow",
			"kind", q.QueryKind(),
			"elapsed", elapsed,
			"args", string(args),
		)
		s.store.LogQuery(storage.QueryRecord{
			Kind:       string(q.QueryKind()),
			Args:       string(args),
			DurationMs: float64(elapsed.Microseconds()) / 1000,
		})
	}
	return result, err
}

func (s *Service) validateProject(q Query) error {
	project := ""
	switch v := q.(type) {
	case FindTypeQuery:
		project = v.Project
	case FindMemberQuery:
		project = v.Project
	case FindFileQuery:
		project = v.Project
	case FindAssetQuery:
		project = v.Project
	case FindChildrenQuery:
		project = v.Project
	case ListModulesQuery:
		project = v.Project
	case BrowseModuleQuery:
		project = v.Project
	case BrowseAssetsQuery:
		project = v.Project
	case ListAssetFoldersQuery:
		project = v.Project
	case ExplainTypeQuery:
		project = v.Project
	}
	if project == "" || len(s.projects) == 0 {
		return nil
	}
	for _, known := range s.projects {
		if known == project {
			return nil
		}
	}
	return qerr.NewUnknownProject(project, s.projects)
}

// answer is the single sum-type-matching dispatch over the memory index.
func (s *Service) answer(ctx context.Context, q Query) (any, error) {
	switch v := q.(type) {
	case FindTypeQuery:
		return s.findType(v)
	case FindMemberQuery:
		return s.findMember(v)
	case FindFileQuery:
		return s.findFile(v)
	case FindAssetQuery:
		return s.findAsset(v)
	case FindChildrenQuery:
		return s.findChildren(v)
	case ListModulesQuery:
		return ListModulesResult{Modules: s.ix.ModuleNames()}, nil
	case BrowseModuleQuery:
		return s.browseModule(v)
	case BrowseAssetsQuery:
		return s.browseAssets(v)
	case ListAssetFoldersQuery:
		return ListAssetFoldersResult{Folders: s.ix.AssetFolders()}, nil
	case ExplainTypeQuery:
		return s.explainType(ctx, v)
	case StatsQuery:
		storeStats, err := s.store.GetStats()
		if err != nil {
			return nil, qerr.NewInternal("read stats", err)
		}
		mem := s.ix.Stats()
		return StatsResult{
			Memory: storage.Stats{
				TotalFiles:   mem.Files,
				TotalTypes:   mem.Types,
				TotalMembers: mem.Members,
				TotalAssets:  mem.Assets,
			},
			Store:  storeStats,
			Loaded: s.ix.Loaded(),
		}, nil
	default:
		return nil, qerr.NewInvalidParameter("method", fmt.Sprintf("unknown query kind %T", q))
	}
}

func (s *Service) findType(q FindTypeQuery) (FindTypeResult, error) {
	if q.Name == "" {
		return FindTypeResult{}, qerr.NewInvalidParameter("name", "name must not be empty")
	}
	opts := search.Options{
		Fuzzy:      q.Fuzzy,
		Project:    q.Project,
		Language:   q.Language,
		Kind:       q.Kind,
		MaxResults: q.MaxResults,
	}
	matches := s.matcher.FindTypes(q.Name, opts)
	out := FindTypeResult{Results: make([]TypeResult, 0, len(matches))}
	for _, match := range matches {
		tr := TypeResult{TypeMatch: match}
		if q.ContextLines > 0 {
			tr.Context = s.contextWindow(match.FileID, match.Line, q.ContextLines)
		}
		out.Results = append(out.Results, tr)
	}

	// Assets default-include in exact mode and opt in for fuzzy.
	if q.IncludeAssets || !q.Fuzzy {
		out.Assets = s.matcher.FindAssets(q.Name, search.Options{
			Fuzzy:      q.Fuzzy && q.IncludeAssets,
			Project:    q.Project,
			MaxResults: q.MaxResults,
		})
	}

	if len(out.Results) == 0 && len(out.Assets) == 0 {
		out.Hints = s.lookupHints(index.EntityType, q.Name, q.Fuzzy, q.Project)
	}
	return out, nil
}

func (s *Service) findMember(q FindMemberQuery) (FindMemberResult, error) {
	if q.Name == "" {
		return FindMemberResult{}, qerr.NewInvalidParameter("name", "name must not be empty")
	}
	opts := search.Options{
		Fuzzy:          q.Fuzzy,
		Project:        q.Project,
		Language:       q.Language,
		MemberKind:     q.MemberKind,
		MaxResults:     q.MaxResults,
		ContainingType: q.ContainingType,
	}
	if q.ContainingType != "" {
		opts.ContainingTypes = s.containingTypeSet(q.ContainingType, q.ContainingTypeHierarchy)
	}
	matches := s.matcher.FindMembers(q.Name, opts)
	out := FindMemberResult{Results: make([]MemberResult, 0, len(matches))}
	for _, match := range matches {
		mr := MemberResult{MemberMatch: match}
		if !match.Synthetic {
			if q.ContextLines > 0 {
				mr.Context = s.contextWindow(match.FileID, match.Line, q.ContextLines)
			}
			if q.IncludeSignatures {
				mr.Signature = s.signatureLine(match.FileID, match.Line)
			}
		}
		out.Results = append(out.Results, mr)
	}
	if len(out.Results) == 0 {
		out.Hints = s.lookupHints(index.EntityMember, q.Name, q.Fuzzy, q.Project)
	}
	return out, nil
}

// containingTypeSet expands a containing type to itself plus, for
// hierarchy-aware lookup, every ancestor reachable through the graph.
func (s *Service) containingTypeSet(name string, hierarchy bool) []string {
	out := []string{name}
	if !hierarchy {
		return out
	}
	seen := map[string]struct{}{name: {}}
	current := name
	for {
		parent, ok := s.g.Parent(current)
		if !ok {
			parent, ok = s.g.Parent(uename.Strip(current))
			if !ok {
				break
			}
		}
		if _, dup := seen[parent]; dup {
			break
		}
		seen[parent] = struct{}{}
		out = append(out, parent)
		current = parent
	}
	return out
}

func (s *Service) findFile(q FindFileQuery) (FindFileResult, error) {
	if q.Filename == "" {
		return FindFileResult{}, qerr.NewInvalidParameter("filename", "filename must not be empty")
	}
	files := s.matcher.FindFiles(q.Filename, search.Options{
		Project:    q.Project,
		Language:   q.Language,
		MaxResults: q.MaxResults,
	})
	out := FindFileResult{Results: files}
	if len(files) == 0 {
		out.Hints = s.lookupHints(index.EntityType, q.Filename, false, q.Project)
	}
	return out, nil
}

func (s *Service) findAsset(q FindAssetQuery) (FindAssetResult, error) {
	if q.Name == "" {
		return FindAssetResult{}, qerr.NewInvalidParameter("name", "name must not be empty")
	}
	matches := s.matcher.FindAssets(q.Name, search.Options{
		Fuzzy:      q.Fuzzy,
		Project:    q.Project,
		MaxResults: q.MaxResults,
	})
	if q.Folder != "" {
		filtered := matches[:0]
		for _, match := range matches {
			if match.Folder == q.Folder || strings.HasPrefix(match.Folder, q.Folder+"/") {
				filtered = append(filtered, match)
			}
		}
		matches = filtered
	}
	out := FindAssetResult{Results: matches}
	if len(matches) == 0 {
		out.Hints = s.lookupHints(index.EntityAsset, q.Name, q.Fuzzy, q.Project)
	}
	return out, nil
}

func (s *Service) findChildren(q FindChildrenQuery) (FindChildrenResult, error) {
	if q.Parent == "" {
		return FindChildrenResult{}, qerr.NewInvalidParameter("parent", "parent must not be empty")
	}
	limit := q.MaxResults
	if limit <= 0 {
		limit = 100
	}

	var names []string
	if q.Recursive {
		names = s.g.Descendants(q.Parent)
	} else {
		names = s.g.DirectChildren(q.Parent)
	}

	out := FindChildrenResult{
		ParentFound: s.g.Known(q.Parent) || len(s.ix.IDsForName(index.EntityType, strings.ToLower(q.Parent))) > 0,
	}

	// Filters apply to the output only; the traversal above already
	// crossed projects and languages freely.
	for _, name := range names {
		for _, id := range s.ix.IDsForName(index.EntityType, strings.ToLower(name)) {
			hit, ok := s.ix.TypeHit(id)
			if !ok || hit.Name != name {
				continue
			}
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
		for _, id := range s.ix.IDsForName(index.EntityAsset, strings.ToLower(name)) {
			asset, ok := s.ix.AssetByID(id)
			if !ok || asset.Name != name || asset.AssetClass == "" {
				continue
			}
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
	}
	out.Truncated = out.TotalChildren > len(out.Results)
	if !out.ParentFound {
		out.Hints = []string{"parent type not found; check the spelling or try find-type first"}
	}
	return out, nil
}

func (s *Service) browseModule(q BrowseModuleQuery) (BrowseModuleResult, error) {
	if q.Module == "" {
		return BrowseModuleResult{}, qerr.NewInvalidParameter("module", "module must not be empty")
	}
	out := BrowseModuleResult{Module: q.Module}
	for _, fileID := range s.ix.FileIDsForModule(q.Module) {
		f, ok := s.ix.FileByID(fileID)
		if !ok {
			continue
		}
		if q.Project != "" && f.Project != q.Project {
			continue
		}
		mf := ModuleFile{Path: f.Path}
		for _, typeID := range s.ix.TypeIDsForFile(fileID) {
			if t, ok := s.ix.TypeByID(typeID); ok {
				mf.Types = append(mf.Types, t.Name)
			}
		}
		out.Files = append(out.Files, mf)
	}
	if len(out.Files) == 0 {
		out.Hints = []string{"module not found; use list-modules to see what exists"}
	}
	return out, nil
}

func (s *Service) browseAssets(q BrowseAssetsQuery) (BrowseAssetsResult, error) {
	if q.Folder == "" {
		return BrowseAssetsResult{}, qerr.NewInvalidParameter("folder", "folder must not be empty")
	}
	limit := q.MaxResults
	if limit <= 0 {
		limit = 200
	}
	out := BrowseAssetsResult{Folder: q.Folder}
	for _, id := range s.ix.AssetIDsForFolder(q.Folder) {
		asset, ok := s.ix.AssetByID(id)
		if !ok {
			continue
		}
		if q.Project != "" && asset.Project != q.Project {
			continue
		}
		out.Assets = append(out.Assets, asset)
		if len(out.Assets) >= limit {
			break
		}
	}
	if len(out.Assets) == 0 {
		out.Hints = []string{"folder empty or unknown; use list-asset-folders to see what exists"}
	}
	return out, nil
}

func (s *Service) explainType(ctx context.Context, q ExplainTypeQuery) (ExplainTypeResult, error) {
	types, err := s.findType(FindTypeQuery{Name: q.Name, Project: q.Project, Language: q.Language, MaxResults: 1})
	if err != nil {
		return ExplainTypeResult{}, err
	}
	if len(types.Results) == 0 {
		return ExplainTypeResult{Hints: types.Hints}, nil
	}
	primary := types.Results[0]
	out := ExplainTypeResult{Type: &primary}

	for _, memberID := range s.ix.MemberIDsForType(primary.ID) {
		if hit, ok := s.ix.MemberHit(memberID); ok {
			out.Members = append(out.Members, MemberResult{
				MemberMatch: search.MemberMatch{MemberHit: hit, Score: 1.0, Reason: search.ReasonExact},
			})
		}
	}

	children, err := s.findChildren(FindChildrenQuery{Parent: primary.Name, Recursive: false, MaxResults: 50})
	if err == nil && children.TotalChildren > 0 {
		out.Children = &children
	}
	_ = ctx
	return out, nil
}

// contextWindow returns +-n lines around a 1-based line from the stored
// body; nil when no body is stored.
func (s *Service) contextWindow(fileID int64, line, n int) []string {
	body, err := s.store.ContentForFile(fileID)
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

// signatureLine returns the trimmed definition line of a member.
func (s *Service) signatureLine(fileID int64, line int) string {
	body, err := s.store.ContentForFile(fileID)
	if err != nil || body == nil {
		return ""
	}
	lines := strings.Split(string(body), "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(lines[line-1], "\r"))
}
