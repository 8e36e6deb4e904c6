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
	"regexp"
	"strings"

	"github.com/kraklabs/ueindex/pkg/storage"
)

// SimplifiedParser extracts types and members with line matching. It
// misses template edge cases Tree-sitter handles, but runs without CGO and
// copes fine with the regular shape of UE headers.
type SimplifiedParser struct {
	logger *slog.Logger
}

func newSimplifiedParser(logger *slog.Logger) *SimplifiedParser {
	return &SimplifiedParser{logger: logger}
}

var (
	simpleTypeRe = regexp.MustCompile(
		`^\s*(class|struct|enum(?:\s+class)?)\s+(?:[A-Z_]+_API\s+)?([A-Za-z_]\w*)\s*(?::\s*(?:public|protected|private)?\s*([A-Za-z_]\w*))?`)
	simpleMethodRe = regexp.MustCompile(
		`^\s*(?:virtual\s+|static\s+|inline\s+|explicit\s+)*[\w:<>,*&\s]+?\s+([A-Za-z_]\w*)\s*\([^)]*\)?`)
	simplePropertyRe = regexp.MustCompile(
		`^\s*(?:static\s+|mutable\s+)?[\w:<>,*&]+\s+([A-Za-z_]\w*)\s*(?:=[^;]*)?;`)
	simpleEnumValueRe = regexp.MustCompile(
		`^\s*([A-Za-z_]\w*)\s*(?:=\s*[^,]+)?,?\s*(?://.*)?$`)
	simpleMacroRe = regexp.MustCompile(`^\s*(UFUNCTION|UPROPERTY)\s*\(([^)]*)\)`)
)

// ParseHeader scans line by line, tracking the innermost open type.
func (p *SimplifiedParser) ParseHeader(content []byte, path string) (*ParseResult, error) {
	result := &ParseResult{}
	lines := strings.Split(string(content), "\n")

	var currentType string
	var currentKind string
	var braceDepth, typeDepth int
	var pendingSpecifiers string
	var typePending bool // type declared, waiting for its opening brace

	for i, raw := range lines {
		lineNo := i + 1
		line := stripLineComment(raw)
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := simpleMacroRe.FindStringSubmatch(trimmed); m != nil {
			pendingSpecifiers = macroSummary(m[1] + "(" + m[2] + ")")
			continue
		}

		if m := simpleTypeRe.FindStringSubmatch(line); m != nil && currentType == "" {
			kind := m[1]
			if strings.HasPrefix(kind, "enum") {
				kind = storage.KindEnum
			}
			name := m[2]
			if kind == storage.KindClass && len(name) > 1 && name[0] == 'I' && name[1] >= 'A' && name[1] <= 'Z' {
				kind = storage.KindInterface
			}
			// Forward declarations carry no body.
			if strings.HasSuffix(trimmed, ";") && !strings.Contains(trimmed, "{") {
				braceDepth += strings.Count(line, "{") - strings.Count(line, "}")
				continue
			}
			result.Types = append(result.Types, storage.TypeRecord{
				Name:   name,
				Kind:   kind,
				Parent: m[3],
				Line:   lineNo,
			})
			currentType = name
			currentKind = kind
			typeDepth = braceDepth
			typePending = !strings.Contains(line, "{")
			braceDepth += strings.Count(line, "{") - strings.Count(line, "}")
			continue
		}

		opens := strings.Count(line, "{")
		closes := strings.Count(line, "}")

		if currentType != "" && !typePending && braceDepth == typeDepth+1 {
			p.extractMember(trimmed, lineNo, currentType, currentKind, pendingSpecifiers, result)
			pendingSpecifiers = ""
		}

		braceDepth += opens - closes
		if typePending && opens > 0 {
			typePending = false
		}
		if currentType != "" && braceDepth <= typeDepth {
			currentType = ""
			currentKind = ""
		}
	}
	return result, nil
}

func (p *SimplifiedParser) extractMember(trimmed string, lineNo int, typeName, typeKind, specifiers string, result *ParseResult) {
	switch {
	case typeKind == storage.KindEnum:
		if m := simpleEnumValueRe.FindStringSubmatch(trimmed); m != nil && !isAccessLabel(trimmed) {
			result.Members = append(result.Members, storage.MemberRecord{
				Name:       m[1],
				MemberKind: storage.MemberEnumValue,
				TypeName:   typeName,
				Line:       lineNo,
			})
		}
	case isAccessLabel(trimmed) || strings.HasPrefix(trimmed, "GENERATED_"):
		// public:/private:/protected: and GENERATED_BODY() lines.
	case strings.Contains(trimmed, "("):
		if m := simpleMethodRe.FindStringSubmatch(trimmed); m != nil && m[1] != typeName {
			result.Members = append(result.Members, storage.MemberRecord{
				Name:       m[1],
				MemberKind: storage.MemberFunction,
				TypeName:   typeName,
				Line:       lineNo,
				IsStatic:   strings.Contains(trimmed, "static "),
				Specifiers: specifiers,
			})
		}
	default:
		if m := simplePropertyRe.FindStringSubmatch(trimmed); m != nil {
			result.Members = append(result.Members, storage.MemberRecord{
				Name:       m[1],
				MemberKind: storage.MemberProperty,
				TypeName:   typeName,
				Line:       lineNo,
				IsStatic:   strings.Contains(trimmed, "static "),
				Specifiers: specifiers,
			})
		}
	}
}

func isAccessLabel(trimmed string) bool {
	switch strings.TrimSuffix(trimmed, ":") {
	case "public", "private", "protected":
		return strings.HasSuffix(trimmed, ":")
	}
	return false
}

func stripLineComment(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		return line[:i]
	}
	return line
}
