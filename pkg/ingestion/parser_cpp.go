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
	"context"
	"fmt"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/kraklabs/ueindex/pkg/storage"
)

// TreeSitterParser extracts types and members from C++ headers via the
// tree-sitter C++ grammar. Tree-sitter is error-tolerant, so UE macro soup
// degrades to partial results rather than failures.
type TreeSitterParser struct {
	parser *sitter.Parser
	logger *slog.Logger
}

func newTreeSitterParser(logger *slog.Logger) *TreeSitterParser {
	p := sitter.NewParser()
	p.SetLanguage(cpp.GetLanguage())
	return &TreeSitterParser{parser: p, logger: logger}
}

// ParseHeader walks the AST collecting class/struct/enum declarations with
// their base classes, methods, fields and enumerators.
func (p *TreeSitterParser) ParseHeader(content []byte, path string) (*ParseResult, error) {
	tree, err := p.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		p.logger.Debug("ingest.parser.syntax_errors", "path", path)
	}

	result := &ParseResult{}
	p.walk(root, content, result, "")
	return result, nil
}

func (p *TreeSitterParser) walk(node *sitter.Node, content []byte, result *ParseResult, enclosing string) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "class_specifier":
		p.extractType(node, content, result, storage.KindClass)
		return
	case "struct_specifier":
		p.extractType(node, content, result, storage.KindStruct)
		return
	case "enum_specifier":
		p.extractEnum(node, content, result)
		return
	case "namespace_definition":
		if name := fieldText(node, "name", content); name != "" {
			result.Types = append(result.Types, storage.TypeRecord{
				Name: name,
				Kind: storage.KindNamespace,
				Line: line(node),
			})
		}
	case "function_definition", "declaration":
		// Free functions at file scope.
		if enclosing == "" {
			if name := declaratorName(node, content); name != "" && node.Type() == "function_definition" {
				result.Members = append(result.Members, storage.MemberRecord{
					Name:       name,
					MemberKind: storage.MemberFunction,
					Line:       line(node),
				})
			}
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		p.walk(node.Child(i), content, result, enclosing)
	}
}

func (p *TreeSitterParser) extractType(node *sitter.Node, content []byte, result *ParseResult, kind string) {
	name := fieldText(node, "name", content)
	if name == "" {
		return
	}
	rec := storage.TypeRecord{Name: name, Kind: kind, Line: line(node)}
	if kind == storage.KindClass && strings.HasPrefix(name, "I") && len(name) > 1 && name[1] >= 'A' && name[1] <= 'Z' {
		rec.Kind = storage.KindInterface
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child.Type() == "base_class_clause" {
			rec.Parent = baseClassName(child, content)
			break
		}
	}
	result.Types = append(result.Types, rec)

	if body := node.ChildByFieldName("body"); body != nil {
		p.extractMembers(body, content, result, name)
	}
}

func (p *TreeSitterParser) extractMembers(body *sitter.Node, content []byte, result *ParseResult, typeName string) {
	specifiers := collectSpecifiers(body, content)
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		switch child.Type() {
		case "field_declaration", "declaration":
			name := declaratorName(child, content)
			if name == "" {
				continue
			}
			kind := storage.MemberProperty
			if hasFunctionDeclarator(child) {
				kind = storage.MemberFunction
			}
			result.Members = append(result.Members, storage.MemberRecord{
				Name:       name,
				MemberKind: kind,
				TypeName:   typeName,
				Line:       line(child),
				IsStatic:   strings.Contains(nodeText(child, content), "static "),
				Specifiers: specifiers[line(child)],
			})
		case "function_definition":
			name := declaratorName(child, content)
			if name == "" {
				continue
			}
			result.Members = append(result.Members, storage.MemberRecord{
				Name:       name,
				MemberKind: storage.MemberFunction,
				TypeName:   typeName,
				Line:       line(child),
				IsStatic:   strings.Contains(nodeText(child, content), "static "),
				Specifiers: specifiers[line(child)],
			})
		}
	}
}

func (p *TreeSitterParser) extractEnum(node *sitter.Node, content []byte, result *ParseResult) {
	name := fieldText(node, "name", content)
	if name == "" {
		return
	}
	result.Types = append(result.Types, storage.TypeRecord{
		Name: name,
		Kind: storage.KindEnum,
		Line: line(node),
	})
	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			child := body.Child(i)
			if child.Type() != "enumerator" {
				continue
			}
			if value := fieldText(child, "name", content); value != "" {
				result.Members = append(result.Members, storage.MemberRecord{
					Name:       value,
					MemberKind: storage.MemberEnumValue,
					TypeName:   name,
					Line:       line(child),
				})
			}
		}
	}
}

// collectSpecifiers maps member lines to the UE reflection macro that
// precedes them (UFUNCTION/UPROPERTY argument text).
func collectSpecifiers(body *sitter.Node, content []byte) map[int]string {
	out := make(map[int]string)
	var pending string
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		text := strings.TrimSpace(nodeText(child, content))
		if strings.HasPrefix(text, "UFUNCTION") || strings.HasPrefix(text, "UPROPERTY") {
			pending = macroSummary(text)
			continue
		}
		switch child.Type() {
		case "field_declaration", "declaration", "function_definition":
			if pending != "" {
				out[line(child)] = pending
				pending = ""
			}
		}
	}
	return out
}

// macroSummary reduces "UFUNCTION(BlueprintCallable, Category=\"X\")" to
// "UFUNCTION,BlueprintCallable".
func macroSummary(text string) string {
	open := strings.IndexByte(text, '(')
	if open < 0 {
		return text
	}
	name := text[:open]
	inner := text[open+1:]
	if close := strings.LastIndexByte(inner, ')'); close >= 0 {
		inner = inner[:close]
	}
	parts := []string{name}
	for _, arg := range strings.Split(inner, ",") {
		arg = strings.TrimSpace(arg)
		if arg == "" || strings.ContainsAny(arg, "=\"") {
			continue
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, ",")
}

func nodeText(node *sitter.Node, content []byte) string {
	return node.Content(content)
}

func fieldText(node *sitter.Node, field string, content []byte) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return child.Content(content)
}

func line(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}

// baseClassName finds the first type identifier in a base_class_clause,
// skipping access specifiers.
func baseClassName(clause *sitter.Node, content []byte) string {
	for i := 0; i < int(clause.ChildCount()); i++ {
		child := clause.Child(i)
		switch child.Type() {
		case "type_identifier", "qualified_identifier", "template_type":
			name := child.Content(content)
			// Template bases keep only the head: TBase<T> -> TBase.
			if lt := strings.IndexByte(name, '<'); lt > 0 {
				name = name[:lt]
			}
			return name
		}
	}
	return ""
}

// declaratorName digs through declarator nesting for the identifier.
func declaratorName(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	switch node.Type() {
	case "identifier", "field_identifier", "destructor_name":
		return node.Content(content)
	}
	if decl := node.ChildByFieldName("declarator"); decl != nil {
		if name := declaratorName(decl, content); name != "" {
			return name
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "function_declarator", "pointer_declarator", "reference_declarator",
			"identifier", "field_identifier", "array_declarator", "init_declarator":
			if name := declaratorName(child, content); name != "" {
				return name
			}
		}
	}
	return ""
}

func hasFunctionDeclarator(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	if node.Type() == "function_declarator" {
		return true
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if hasFunctionDeclarator(node.Child(i)) {
			return true
		}
	}
	return false
}
