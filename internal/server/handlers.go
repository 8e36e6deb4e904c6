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

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kraklabs/ueindex/internal/contract"
	qerr "github.com/kraklabs/ueindex/internal/errors"
	"github.com/kraklabs/ueindex/pkg/grep"
	"github.com/kraklabs/ueindex/pkg/tools"
)

// qBool parses an optional boolean query parameter; absent means false.
func qBool(values url.Values, key string) (bool, error) {
	raw := values.Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, qerr.NewInvalidParameter(key, "must be true or false")
	}
	return v, nil
}

// qInt parses an optional non-negative integer query parameter.
func qInt(values url.Values, key string) (int, error) {
	raw := values.Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, qerr.NewInvalidParameter(key, "must be a non-negative integer")
	}
	return v, nil
}

// queryFromValues builds the typed query for one GET endpoint. The same
// decoding runs for /batch entries via queryFromJSON.
func queryFromValues(kind tools.Kind, values url.Values) (tools.Query, error) {
	fuzzy, err := qBool(values, "fuzzy")
	if err != nil {
		return nil, err
	}
	maxResults, err := qInt(values, "maxResults")
	if err != nil {
		return nil, err
	}
	contextLines, err := qInt(values, "contextLines")
	if err != nil {
		return nil, err
	}

	switch kind {
	case tools.KindFindType:
		includeAssets, err := qBool(values, "includeAssets")
		if err != nil {
			return nil, err
		}
		return tools.FindTypeQuery{
			Name:          values.Get("name"),
			Fuzzy:         fuzzy,
			Project:       values.Get("project"),
			Language:      values.Get("language"),
			Kind:          values.Get("kind"),
			MaxResults:    maxResults,
			IncludeAssets: includeAssets,
			ContextLines:  contextLines,
		}, nil
	case tools.KindFindMember:
		hierarchy, err := qBool(values, "containingTypeHierarchy")
		if err != nil {
			return nil, err
		}
		includeSignatures, err := qBool(values, "includeSignatures")
		if err != nil {
			return nil, err
		}
		return tools.FindMemberQuery{
			Name:                    values.Get("name"),
			Fuzzy:                   fuzzy,
			ContainingType:          values.Get("containingType"),
			ContainingTypeHierarchy: hierarchy,
			MemberKind:              values.Get("memberKind"),
			Project:                 values.Get("project"),
			Language:                values.Get("language"),
			MaxResults:              maxResults,
			ContextLines:            contextLines,
			IncludeSignatures:       includeSignatures,
		}, nil
	case tools.KindFindFile:
		return tools.FindFileQuery{
			Filename:   values.Get("filename"),
			Project:    values.Get("project"),
			Language:   values.Get("language"),
			MaxResults: maxResults,
		}, nil
	case tools.KindFindAsset:
		return tools.FindAssetQuery{
			Name:       values.Get("name"),
			Fuzzy:      fuzzy,
			Project:    values.Get("project"),
			Folder:     values.Get("folder"),
			MaxResults: maxResults,
		}, nil
	case tools.KindFindChildren:
		recursive, err := qBool(values, "recursive")
		if err != nil {
			return nil, err
		}
		return tools.FindChildrenQuery{
			Parent:     values.Get("parent"),
			Recursive:  recursive,
			Project:    values.Get("project"),
			Language:   values.Get("language"),
			MaxResults: maxResults,
		}, nil
	case tools.KindListModules:
		return tools.ListModulesQuery{Project: values.Get("project")}, nil
	case tools.KindBrowseModule:
		return tools.BrowseModuleQuery{
			Module:  values.Get("module"),
			Project: values.Get("project"),
		}, nil
	case tools.KindBrowseAssets:
		return tools.BrowseAssetsQuery{
			Folder:     values.Get("folder"),
			Project:    values.Get("project"),
			MaxResults: maxResults,
		}, nil
	case tools.KindListAssetFolders:
		return tools.ListAssetFoldersQuery{Project: values.Get("project")}, nil
	case tools.KindExplainType:
		return tools.ExplainTypeQuery{
			Name:     values.Get("name"),
			Project:  values.Get("project"),
			Language: values.Get("language"),
		}, nil
	default:
		return nil, qerr.NewInvalidParameter("method", "unknown query method "+string(kind))
	}
}

// queryFromJSON decodes one /batch entry's args into the typed query.
func queryFromJSON(method string, args json.RawMessage) (tools.Query, error) {
	decode := func(dst tools.Query) (tools.Query, error) {
		if len(args) == 0 {
			return dst, nil
		}
		// Round-trip through a pointer so json.Unmarshal can fill it.
		switch v := dst.(type) {
		case tools.FindTypeQuery:
			err := json.Unmarshal(args, &v)
			return v, err
		case tools.FindMemberQuery:
			err := json.Unmarshal(args, &v)
			return v, err
		case tools.FindFileQuery:
			err := json.Unmarshal(args, &v)
			return v, err
		case tools.FindAssetQuery:
			err := json.Unmarshal(args, &v)
			return v, err
		case tools.FindChildrenQuery:
			err := json.Unmarshal(args, &v)
			return v, err
		case tools.ListModulesQuery:
			err := json.Unmarshal(args, &v)
			return v, err
		case tools.BrowseModuleQuery:
			err := json.Unmarshal(args, &v)
			return v, err
		case tools.BrowseAssetsQuery:
			err := json.Unmarshal(args, &v)
			return v, err
		case tools.ListAssetFoldersQuery:
			err := json.Unmarshal(args, &v)
			return v, err
		case tools.ExplainTypeQuery:
			err := json.Unmarshal(args, &v)
			return v, err
		default:
			return dst, nil
		}
	}

	switch tools.Kind(method) {
	case tools.KindFindType:
		return decode(tools.FindTypeQuery{})
	case tools.KindFindMember:
		return decode(tools.FindMemberQuery{})
	case tools.KindFindFile:
		return decode(tools.FindFileQuery{})
	case tools.KindFindAsset:
		return decode(tools.FindAssetQuery{})
	case tools.KindFindChildren:
		return decode(tools.FindChildrenQuery{})
	case tools.KindListModules:
		return decode(tools.ListModulesQuery{})
	case tools.KindBrowseModule:
		return decode(tools.BrowseModuleQuery{})
	case tools.KindBrowseAssets:
		return decode(tools.BrowseAssetsQuery{})
	case tools.KindListAssetFolders:
		return decode(tools.ListAssetFoldersQuery{})
	case tools.KindExplainType:
		return decode(tools.ExplainTypeQuery{})
	default:
		return nil, qerr.NewInvalidParameter("method", "unknown query method "+method)
	}
}

// dispatch runs one typed query and normalizes every path in its result.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, kind tools.Kind) {
	q, err := queryFromValues(kind, r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := s.svc.Dispatch(r.Context(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.normalizeResult(result)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFindType(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, tools.KindFindType)
}

func (s *Server) handleFindMember(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, tools.KindFindMember)
}

func (s *Server) handleFindFile(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, tools.KindFindFile)
}

func (s *Server) handleFindAsset(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, tools.KindFindAsset)
}

func (s *Server) handleFindChildren(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, tools.KindFindChildren)
}

func (s *Server) handleBrowseModule(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, tools.KindBrowseModule)
}

func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, tools.KindListModules)
}

func (s *Server) handleBrowseAssets(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, tools.KindBrowseAssets)
}

func (s *Server) handleListAssetFolders(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, tools.KindListAssetFolders)
}

func (s *Server) handleExplainType(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, tools.KindExplainType)
}

func (s *Server) handleGrep(w http.ResponseWriter, r *http.Request) {
	if s.grep == nil {
		s.writeError(w, qerr.NewNotAvailable("full-text engine", nil))
		return
	}
	values := r.URL.Query()
	caseSensitive, err := qBool(values, "caseSensitive")
	if err != nil {
		s.writeError(w, err)
		return
	}
	grouped, err := qBool(values, "grouped")
	if err != nil {
		s.writeError(w, err)
		return
	}
	includeAssets, err := qBool(values, "includeAssets")
	if err != nil {
		s.writeError(w, err)
		return
	}
	symbols, err := qBool(values, "symbols")
	if err != nil {
		s.writeError(w, err)
		return
	}
	maxResults, err := qInt(values, "maxResults")
	if err != nil {
		s.writeError(w, err)
		return
	}
	contextLines, err := qInt(values, "contextLines")
	if err != nil {
		s.writeError(w, err)
		return
	}

	if project := values.Get("project"); project != "" && s.cfg != nil && s.cfg.ProjectByName(project) == nil {
		s.writeError(w, qerr.NewUnknownProject(project, s.cfg.ProjectNames()))
		return
	}

	resp, err := s.grep.Run(r.Context(), grep.Request{
		Pattern:       values.Get("pattern"),
		Project:       values.Get("project"),
		Language:      values.Get("language"),
		CaseSensitive: caseSensitive,
		MaxResults:    maxResults,
		ContextLines:  contextLines,
		Grouped:       grouped,
		IncludeAssets: includeAssets,
		Symbols:       symbols,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// batchEntry is one query inside a /batch request.
type batchEntry struct {
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

type batchRequest struct {
	Queries []batchEntry `json:"queries"`
}

// batchItem is the per-query outcome; exactly one field is set.
type batchItem struct {
	Result any            `json:"result,omitempty"`
	Error  map[string]any `json:"error,omitempty"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, int64(contract.SoftLimitBytes())+1))
	if err != nil {
		s.writeError(w, qerr.NewInvalidParameter("body", "unreadable request body"))
		return
	}
	var req batchRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.writeError(w, qerr.NewInvalidParameter("body", "malformed JSON"))
		return
	}
	if vr := contract.ValidateBatch(len(req.Queries), len(raw)); !vr.OK {
		s.writeError(w, qerr.NewInvalidParameter("queries", vr.Message))
		return
	}

	out := make([]batchItem, 0, len(req.Queries))
	for _, entry := range req.Queries {
		if !contract.BatchMethodAllowed(entry.Method) {
			qe := qerr.NewInvalidParameter("method", "method not allowed in batch: "+entry.Method)
			out = append(out, batchItem{Error: qe.ToJSON()})
			continue
		}
		q, err := queryFromJSON(entry.Method, entry.Args)
		if err != nil {
			out = append(out, batchItem{Error: s.errorPayload(err)})
			continue
		}
		result, err := s.svc.Dispatch(r.Context(), q)
		if err != nil {
			out = append(out, batchItem{Error: s.errorPayload(err)})
			continue
		}
		s.normalizeResult(result)
		out = append(out, batchItem{Result: result})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) errorPayload(err error) map[string]any {
	if qe, ok := err.(*qerr.QueryError); ok {
		return qe.ToJSON()
	}
	return qerr.NewInternal("internal error", err).ToJSON()
}

// normalizeResult rewrites the absolute store paths in a query result
// into the response form: forward slashes, project prefix stripped,
// project name prepended.
func (s *Server) normalizeResult(result any) {
	if s.cfg == nil {
		return
	}
	norm := s.cfg.NormalizePath
	switch v := result.(type) {
	case tools.FindTypeResult:
		for i := range v.Results {
			v.Results[i].FilePath = norm(v.Results[i].FilePath)
		}
		for i := range v.Assets {
			v.Assets[i].Path = norm(v.Assets[i].Path)
		}
	case tools.FindMemberResult:
		for i := range v.Results {
			v.Results[i].FilePath = norm(v.Results[i].FilePath)
		}
	case tools.FindFileResult:
		for i := range v.Results {
			v.Results[i].Path = norm(v.Results[i].Path)
		}
	case tools.FindAssetResult:
		for i := range v.Results {
			v.Results[i].Path = norm(v.Results[i].Path)
		}
	case tools.FindChildrenResult:
		for i := range v.Results {
			v.Results[i].FilePath = norm(v.Results[i].FilePath)
		}
	case tools.BrowseModuleResult:
		for i := range v.Files {
			v.Files[i].Path = norm(v.Files[i].Path)
		}
	case tools.BrowseAssetsResult:
		for i := range v.Assets {
			v.Assets[i].Path = norm(v.Assets[i].Path)
		}
	case tools.ExplainTypeResult:
		if v.Type != nil {
			v.Type.FilePath = norm(v.Type.FilePath)
		}
		for i := range v.Members {
			v.Members[i].FilePath = norm(v.Members[i].FilePath)
		}
		if v.Children != nil {
			for i := range v.Children.Results {
				v.Children.Results[i].FilePath = norm(v.Children.Results[i].FilePath)
			}
		}
	}
}
