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

package ingestion

import (
	"log/slog"

	"github.com/kraklabs/ueindex/pkg/storage"
)

// ParseResult is what a header parser extracts from one source file.
type ParseResult struct {
	Types   []storage.TypeRecord
	Members []storage.MemberRecord
}

// HeaderParser extracts identifier-level records from C++ header text.
// This only serves the local bootstrap pipeline; the watcher ships
// pre-parsed records and never goes through it.
type HeaderParser interface {
	ParseHeader(content []byte, path string) (*ParseResult, error)
}

// ParserMode selects a parser implementation.
type ParserMode string

const (
	// ParserModeTreeSitter uses Tree-sitter for AST-based parsing.
	// Requires CGO.
	ParserModeTreeSitter ParserMode = "treesitter"

	// ParserModeSimplified uses line and regex matching. No CGO, but
	// limited with heavily templated code.
	ParserModeSimplified ParserMode = "simplified"

	// ParserModeAuto selects Tree-sitter; it does not fall back to the
	// simplified parser.
	ParserModeAuto ParserMode = "auto"
)

// NewHeaderParser creates the parser for a mode.
func NewHeaderParser(mode ParserMode, logger *slog.Logger) HeaderParser {
	if logger == nil {
		logger = slog.Default()
	}
	switch mode {
	case ParserModeSimplified:
		return newSimplifiedParser(logger)
	case ParserModeTreeSitter, ParserModeAuto, "":
		return newTreeSitterParser(logger)
	default:
		logger.Warn("ingest.parser.unknown_mode", "mode", mode)
		return newSimplifiedParser(logger)
	}
}
