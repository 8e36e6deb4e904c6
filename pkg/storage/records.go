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

package storage

// Language discriminators stored on file rows. LanguageAsset marks the
// synthetic per-asset entries used for full-text asset search.
const (
	LanguageAngelScript = "angelscript"
	LanguageCpp         = "cpp"
	LanguageConfig      = "config"
	LanguageAsset       = "asset"
)

// Type kinds.
const (
	KindClass     = "class"
	KindStruct    = "struct"
	KindEnum      = "enum"
	KindInterface = "interface"
	KindEvent     = "event"
	KindDelegate  = "delegate"
	KindNamespace = "namespace"
)

// Member kinds.
const (
	MemberFunction  = "function"
	MemberProperty  = "property"
	MemberEnumValue = "enum_value"
)

// File is a stored file row. Path is absolute and unique; Module is the
// dotted organizational path derived from the file's location.
type File struct {
	ID           int64  `json:"id"`
	Path         string `json:"path"`
	Project      string `json:"project"`
	Module       string `json:"module"`
	Language     string `json:"language"`
	Mtime        int64  `json:"mtime"`
	RelativePath string `json:"relativePath,omitempty"`
}

// Type is a stored type row. Parent is a textual base-class name; inheritance
// across projects is resolved by name, never by foreign key. Depth is the
// computed distance from an inheritance root, -1 when not yet computed.
type Type struct {
	ID     int64  `json:"id"`
	FileID int64  `json:"fileId"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Parent string `json:"parent,omitempty"`
	Line   int    `json:"line"`
	Depth  int    `json:"depth,omitempty"`
}

// Member is a stored member row. TypeID is zero for free functions and
// global enum values.
type Member struct {
	ID         int64  `json:"id"`
	FileID     int64  `json:"fileId"`
	TypeID     int64  `json:"typeId,omitempty"`
	Name       string `json:"name"`
	MemberKind string `json:"memberKind"`
	Line       int    `json:"line"`
	IsStatic   bool   `json:"isStatic,omitempty"`
	Specifiers string `json:"specifiers,omitempty"`
}

// Asset is a stored asset row. Blueprint assets carry a non-empty AssetClass
// and ParentClass and participate in the inheritance graph.
type Asset struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	Name        string `json:"name"`
	ContentPath string `json:"contentPath"`
	Folder      string `json:"folder"`
	Project     string `json:"project"`
	Extension   string `json:"extension"`
	Mtime       int64  `json:"mtime"`
	AssetClass  string `json:"assetClass,omitempty"`
	ParentClass string `json:"parentClass,omitempty"`
}

// TypeRecord is the parser-produced input form of a type.
type TypeRecord struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Parent string `json:"parent,omitempty"`
	Line   int    `json:"line"`
}

// MemberRecord is the parser-produced input form of a member. TypeName binds
// the member to a type ingested in the same batch; empty means a free
// function or global enum value.
type MemberRecord struct {
	Name       string `json:"name"`
	MemberKind string `json:"memberKind"`
	TypeName   string `json:"typeName,omitempty"`
	Line       int    `json:"line"`
	IsStatic   bool   `json:"isStatic,omitempty"`
	Specifiers string `json:"specifiers,omitempty"`
}

// TypeHit is a type joined with its file row for responses.
type TypeHit struct {
	Type
	FilePath string `json:"filePath"`
	Module   string `json:"module,omitempty"`
	Project  string `json:"project,omitempty"`
	Language string `json:"language,omitempty"`
}

// MemberHit is a member joined with its file and owning type.
type MemberHit struct {
	Member
	TypeName string `json:"typeName,omitempty"`
	FilePath string `json:"filePath"`
	Project  string `json:"project,omitempty"`
	Language string `json:"language,omitempty"`
}

// Candidate is a grep prefilter hit: a file whose body contains every
// required trigram.
type Candidate struct {
	FileID   int64
	Path     string
	Project  string
	Language string
	Mtime    int64
}

// IndexStatus is the per-language indexing phase record.
type IndexStatus struct {
	Language   string `json:"language"`
	Phase      string `json:"phase"`
	FilesTotal int    `json:"filesTotal"`
	FilesDone  int    `json:"filesDone"`
	Message    string `json:"message,omitempty"`
	UpdatedAt  int64  `json:"updatedAt"`
}

// Indexing phases.
const (
	PhasePending  = "pending"
	PhaseIndexing = "indexing"
	PhaseReady    = "ready"
	PhaseError    = "error"
)

// Stats are live entity counts served from the metadata cache, never from a
// full table scan.
type Stats struct {
	TotalFiles   int64 `json:"totalFiles"`
	TotalTypes   int64 `json:"totalTypes"`
	TotalMembers int64 `json:"totalMembers"`
	TotalAssets  int64 `json:"totalAssets"`
	TotalBodies  int64 `json:"totalBodies"`
}

// Filter narrows a lookup. Zero values mean no filtering; MaxResults of zero
// means the caller's default.
type Filter struct {
	Project    string
	Language   string
	Kind       string
	Folder     string
	MaxResults int
}

// Metadata keys for process-wide named slots.
const (
	MetaLastBuild              = "lastBuild"
	MetaTrigramBuildNeeded     = "trigramBuildNeeded"
	MetaNameTrigramBuildNeeded = "nameTrigramBuildNeeded"
	MetaDepthComputeNeeded     = "depthComputeNeeded"

	metaCountFiles   = "countFiles"
	metaCountTypes   = "countTypes"
	metaCountMembers = "countMembers"
	metaCountAssets  = "countAssets"
	metaCountBodies  = "countBodies"
)
