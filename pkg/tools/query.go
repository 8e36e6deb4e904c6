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
	"github.com/kraklabs/ueindex/pkg/search"
	"github.com/kraklabs/ueindex/pkg/storage"
)

// Kind enumerates the query kinds the façade dispatches. Every query is a
// typed args struct implementing Query; a type switch in Service.answer
// (and its worker-path twin answerFromStore) matches on the concrete type.
type Kind string

const (
	KindFindType         Kind = "findType"
	KindFindMember       Kind = "findMember"
	KindFindFile         Kind = "findFile"
	KindFindAsset        Kind = "findAsset"
	KindFindChildren     Kind = "findChildren"
	KindListModules      Kind = "listModules"
	KindBrowseModule     Kind = "browseModule"
	KindBrowseAssets     Kind = "browseAssets"
	KindListAssetFolders Kind = "listAssetFolders"
	KindExplainType      Kind = "explainType"
	KindStats            Kind = "stats"
)

// Query is the sealed sum of query argument variants.
type Query interface {
	QueryKind() Kind
}

// FindTypeQuery resolves a type name.
type FindTypeQuery struct {
	Name          string `json:"name"`
	Fuzzy         bool   `json:"fuzzy,omitempty"`
	Project       string `json:"project,omitempty"`
	Language      string `json:"language,omitempty"`
	Kind          string `json:"kind,omitempty"`
	MaxResults    int    `json:"maxResults,omitempty"`
	IncludeAssets bool   `json:"includeAssets,omitempty"`
	ContextLines  int    `json:"contextLines,omitempty"`
}

func (FindTypeQuery) QueryKind() Kind { return KindFindType }

// FindMemberQuery resolves a member name, optionally within a type or its
// inheritance chain.
type FindMemberQuery struct {
	Name                    string `json:"name"`
	Fuzzy                   bool   `json:"fuzzy,omitempty"`
	ContainingType          string `json:"containingType,omitempty"`
	ContainingTypeHierarchy bool   `json:"containingTypeHierarchy,omitempty"`
	MemberKind              string `json:"memberKind,omitempty"`
	Project                 string `json:"project,omitempty"`
	Language                string `json:"language,omitempty"`
	MaxResults              int    `json:"maxResults,omitempty"`
	ContextLines            int    `json:"contextLines,omitempty"`
	IncludeSignatures       bool   `json:"includeSignatures,omitempty"`
}

func (FindMemberQuery) QueryKind() Kind { return KindFindMember }

// FindFileQuery resolves a filename by basename.
type FindFileQuery struct {
	Filename   string `json:"filename"`
	Project    string `json:"project,omitempty"`
	Language   string `json:"language,omitempty"`
	MaxResults int    `json:"maxResults,omitempty"`
}

func (FindFileQuery) QueryKind() Kind { return KindFindFile }

// FindAssetQuery resolves an asset name.
type FindAssetQuery struct {
	Name       string `json:"name"`
	Fuzzy      bool   `json:"fuzzy,omitempty"`
	Project    string `json:"project,omitempty"`
	Folder     string `json:"folder,omitempty"`
	MaxResults int    `json:"maxResults,omitempty"`
}

func (FindAssetQuery) QueryKind() Kind { return KindFindAsset }

// FindChildrenQuery lists the children of a type, optionally transitively.
type FindChildrenQuery struct {
	Parent     string `json:"parent"`
	Recursive  bool   `json:"recursive,omitempty"`
	Project    string `json:"project,omitempty"`
	Language   string `json:"language,omitempty"`
	MaxResults int    `json:"maxResults,omitempty"`
}

func (FindChildrenQuery) QueryKind() Kind { return KindFindChildren }

// ListModulesQuery lists dotted module names.
type ListModulesQuery struct {
	Project string `json:"project,omitempty"`
}

func (ListModulesQuery) QueryKind() Kind { return KindListModules }

// BrowseModuleQuery lists the files and types of one module.
type BrowseModuleQuery struct {
	Module  string `json:"module"`
	Project string `json:"project,omitempty"`
}

func (BrowseModuleQuery) QueryKind() Kind { return KindBrowseModule }

// BrowseAssetsQuery lists the assets of one folder.
type BrowseAssetsQuery struct {
	Folder     string `json:"folder"`
	Project    string `json:"project,omitempty"`
	MaxResults int    `json:"maxResults,omitempty"`
}

func (BrowseAssetsQuery) QueryKind() Kind { return KindBrowseAssets }

// ListAssetFoldersQuery lists the distinct asset folders.
type ListAssetFoldersQuery struct {
	Project string `json:"project,omitempty"`
}

func (ListAssetFoldersQuery) QueryKind() Kind { return KindListAssetFolders }

// ExplainTypeQuery aggregates a type with its members and children.
type ExplainTypeQuery struct {
	Name     string `json:"name"`
	Project  string `json:"project,omitempty"`
	Language string `json:"language,omitempty"`
}

func (ExplainTypeQuery) QueryKind() Kind { return KindExplainType }

// StatsQuery reads the live entity counters.
type StatsQuery struct{}

func (StatsQuery) QueryKind() Kind { return KindStats }

// TypeResult is one type hit with optional context attachment.
type TypeResult struct {
	search.TypeMatch
	Context []string `json:"context,omitempty"`
}

// FindTypeResult is the find-type response.
type FindTypeResult struct {
	Results []TypeResult         `json:"results"`
	Assets  []search.AssetMatch  `json:"assets,omitempty"`
	Hints   []string             `json:"hints,omitempty"`
}

// MemberResult is one member hit with optional context and signature.
type MemberResult struct {
	search.MemberMatch
	Context   []string `json:"context,omitempty"`
	Signature string   `json:"signature,omitempty"`
}

// FindMemberResult is the find-member response.
type FindMemberResult struct {
	Results []MemberResult `json:"results"`
	Hints   []string       `json:"hints,omitempty"`
}

// FindFileResult is the find-file response.
type FindFileResult struct {
	Results []storage.File `json:"results"`
	Hints   []string       `json:"hints,omitempty"`
}

// FindAssetResult is the find-asset response.
type FindAssetResult struct {
	Results []search.AssetMatch `json:"results"`
	Hints   []string            `json:"hints,omitempty"`
}

// ChildEntry is one child in a find-children response, either a source
// type or a Blueprint asset.
type ChildEntry struct {
	Name        string `json:"name"`
	Source      string `json:"source"` // "type" or "asset"
	Kind        string `json:"kind,omitempty"`
	FilePath    string `json:"filePath,omitempty"`
	ContentPath string `json:"contentPath,omitempty"`
	Project     string `json:"project,omitempty"`
	Language    string `json:"language,omitempty"`
	AssetClass  string `json:"assetClass,omitempty"`
}

// FindChildrenResult is the find-children response.
type FindChildrenResult struct {
	Results       []ChildEntry `json:"results"`
	Truncated     bool         `json:"truncated"`
	TotalChildren int          `json:"totalChildren"`
	ParentFound   bool         `json:"parentFound"`
	Hints         []string     `json:"hints,omitempty"`
}

// ModuleFile is one file inside a browsed module.
type ModuleFile struct {
	Path  string   `json:"path"`
	Types []string `json:"types,omitempty"`
}

// BrowseModuleResult is the browse-module response.
type BrowseModuleResult struct {
	Module string       `json:"module"`
	Files  []ModuleFile `json:"files"`
	Hints  []string     `json:"hints,omitempty"`
}

// ListModulesResult is the list-modules response.
type ListModulesResult struct {
	Modules []string `json:"modules"`
}

// BrowseAssetsResult is the browse-assets response.
type BrowseAssetsResult struct {
	Folder string          `json:"folder"`
	Assets []storage.Asset `json:"assets"`
	Hints  []string        `json:"hints,omitempty"`
}

// ListAssetFoldersResult is the list-asset-folders response.
type ListAssetFoldersResult struct {
	Folders []string `json:"folders"`
}

// ExplainTypeResult aggregates one type.
type ExplainTypeResult struct {
	Type     *TypeResult          `json:"type,omitempty"`
	Members  []MemberResult       `json:"members,omitempty"`
	Children *FindChildrenResult  `json:"children,omitempty"`
	Hints    []string             `json:"hints,omitempty"`
}

// StatsResult reports the live counters plus store-cached totals.
type StatsResult struct {
	Memory storage.Stats `json:"memory"`
	Store  storage.Stats `json:"store"`
	Loaded bool          `json:"loaded"`
}
