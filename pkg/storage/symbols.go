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

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/kraklabs/ueindex/internal/trigram"
)

// Name-trigram entity discriminators.
const (
	EntityTypeType   = "type"
	EntityTypeMember = "member"
)

// InsertTypesTx batch-inserts the types of one file inside tx, writing a
// name-trigram posting row for every distinct trigram of each lowered name.
// The returned slice carries the assigned ids in input order.
func InsertTypesTx(tx *sql.Tx, fileID int64, records []TypeRecord) ([]Type, error) {
	if len(records) == 0 {
		return nil, nil
	}
	insert, err := tx.Prepare(
		`INSERT INTO types (file_id, name, kind, parent, line) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare type insert: %w", err)
	}
	defer insert.Close()

	out := make([]Type, 0, len(records))
	for _, rec := range records {
		res, err := insert.Exec(fileID, rec.Name, rec.Kind, nullable(rec.Parent), rec.Line)
		if err != nil {
			return nil, fmt.Errorf("insert type %s: %w", rec.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		if err := insertNameTrigrams(tx, EntityTypeType, id, rec.Name); err != nil {
			return nil, err
		}
		out = append(out, Type{
			ID:     id,
			FileID: fileID,
			Name:   rec.Name,
			Kind:   rec.Kind,
			Parent: rec.Parent,
			Line:   rec.Line,
			Depth:  -1,
		})
	}
	if err := bumpCount(tx, metaCountTypes, int64(len(out))); err != nil {
		return nil, err
	}
	return out, nil
}

// InsertMembersTx batch-inserts the members of one file inside tx. typeIDs
// maps a type name from the same batch to its assigned id; a member whose
// TypeName is absent from the map becomes a free member.
func InsertMembersTx(tx *sql.Tx, fileID int64, records []MemberRecord, typeIDs map[string]int64) ([]Member, error) {
	if len(records) == 0 {
		return nil, nil
	}
	insert, err := tx.Prepare(
		`INSERT INTO members (file_id, type_id, name, member_kind, line, is_static, specifiers)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare member insert: %w", err)
	}
	defer insert.Close()

	out := make([]Member, 0, len(records))
	for _, rec := range records {
		var typeID any
		var bound int64
		if id, ok := typeIDs[rec.TypeName]; ok && rec.TypeName != "" {
			typeID = id
			bound = id
		}
		res, err := insert.Exec(fileID, typeID, rec.Name, rec.MemberKind, rec.Line, rec.IsStatic, nullable(rec.Specifiers))
		if err != nil {
			return nil, fmt.Errorf("insert member %s: %w", rec.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		if err := insertNameTrigrams(tx, EntityTypeMember, id, rec.Name); err != nil {
			return nil, err
		}
		out = append(out, Member{
			ID:         id,
			FileID:     fileID,
			TypeID:     bound,
			Name:       rec.Name,
			MemberKind: rec.MemberKind,
			Line:       rec.Line,
			IsStatic:   rec.IsStatic,
			Specifiers: rec.Specifiers,
		})
	}
	if err := bumpCount(tx, metaCountMembers, int64(len(out))); err != nil {
		return nil, err
	}
	return out, nil
}

func insertNameTrigrams(tx *sql.Tx, entityType string, entityID int64, name string) error {
	for _, t := range trigram.ExtractString(name) {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO name_trigrams (trigram, entity_type, entity_id) VALUES (?, ?, ?)`,
			int64(t), entityType, entityID); err != nil {
			return fmt.Errorf("insert name trigram: %w", err)
		}
	}
	return nil
}

// ClearTypesForFileTx deletes the members, then the types, of a file, along
// with their name-trigram posting rows. The entity ids are looked up before
// the delete so the posting cleanup cannot miss rows.
func ClearTypesForFileTx(tx *sql.Tx, fileID int64) error {
	types, members, err := countSymbols(tx, fileID)
	if err != nil {
		return err
	}
	if err := clearNameTrigrams(tx, fileID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM members WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("clear members: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM types WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("clear types: %w", err)
	}
	if err := bumpCount(tx, metaCountTypes, -types); err != nil {
		return err
	}
	return bumpCount(tx, metaCountMembers, -members)
}

func clearNameTrigrams(tx *sql.Tx, fileID int64) error {
	if _, err := tx.Exec(
		`DELETE FROM name_trigrams WHERE entity_type = ? AND entity_id IN
		   (SELECT id FROM types WHERE file_id = ?)`, EntityTypeType, fileID); err != nil {
		return fmt.Errorf("clear type name trigrams: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM name_trigrams WHERE entity_type = ? AND entity_id IN
		   (SELECT id FROM members WHERE file_id = ?)`, EntityTypeMember, fileID); err != nil {
		return fmt.Errorf("clear member name trigrams: %w", err)
	}
	return nil
}

const typeHitColumns = `t.id, t.file_id, t.name, t.kind, COALESCE(t.parent, ''), t.line,
	COALESCE(t.depth, -1), f.path, f.module, f.project, f.language`

func scanTypeHit(row interface{ Scan(...any) error }) (TypeHit, error) {
	var h TypeHit
	err := row.Scan(&h.ID, &h.FileID, &h.Name, &h.Kind, &h.Parent, &h.Line,
		&h.Depth, &h.FilePath, &h.Module, &h.Project, &h.Language)
	return h, err
}

// headerFirstOrder sorts header files ahead of implementation files, then by
// path for a stable order.
const headerFirstOrder = `ORDER BY CASE
	WHEN f.path LIKE '%.h' OR f.path LIKE '%.hpp' OR f.path LIKE '%.hxx' THEN 0
	ELSE 1 END, f.path`

// FindTypeByName returns types equal to name, case-insensitively, header
// files first.
func (s *Store) FindTypeByName(name string, filter Filter) ([]TypeHit, error) {
	limit := filter.MaxResults
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + typeHitColumns + ` FROM types t JOIN files f ON f.id = t.file_id
		WHERE lower(t.name) = lower(?)`
	args := []any{name}
	if filter.Kind != "" {
		query += ` AND t.kind = ?`
		args = append(args, filter.Kind)
	}
	if filter.Project != "" {
		query += ` AND f.project = ?`
		args = append(args, filter.Project)
	}
	if filter.Language != "" {
		query += ` AND f.language = ?`
		args = append(args, filter.Language)
	}
	query += " " + headerFirstOrder + ` LIMIT ?`
	args = append(args, limit)

	return s.queryTypeHits(query, args...)
}

// TypesByIDs returns the joined rows for a set of type ids, used to flesh out
// fuzzy-match candidates.
func (s *Store) TypesByIDs(ids []int64) ([]TypeHit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + typeHitColumns + ` FROM types t JOIN files f ON f.id = t.file_id
		WHERE t.id IN (` + placeholders(len(ids)) + `)`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.queryTypeHits(query, args...)
}

// FindChildrenOf returns the types whose textual parent is any of names.
// Filters are NOT applied here: traversal must cross projects, the caller
// filters the final output.
func (s *Store) FindChildrenOf(names []string) ([]TypeHit, error) {
	if len(names) == 0 {
		return nil, nil
	}
	query := `SELECT ` + typeHitColumns + ` FROM types t JOIN files f ON f.id = t.file_id
		WHERE t.parent IN (` + placeholders(len(names)) + `)
		AND t.kind IN ('class', 'struct', 'interface')`
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}
	return s.queryTypeHits(query, args...)
}

func (s *Store) queryTypeHits(query string, args ...any) ([]TypeHit, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query types: %w", err)
	}
	defer rows.Close()
	var out []TypeHit
	for rows.Next() {
		h, err := scanTypeHit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

const memberHitColumns = `m.id, m.file_id, COALESCE(m.type_id, 0), m.name, m.member_kind,
	m.line, m.is_static, COALESCE(m.specifiers, ''), COALESCE(t.name, ''), f.path, f.project, f.language`

func scanMemberHit(row interface{ Scan(...any) error }) (MemberHit, error) {
	var h MemberHit
	err := row.Scan(&h.ID, &h.FileID, &h.TypeID, &h.Name, &h.MemberKind,
		&h.Line, &h.IsStatic, &h.Specifiers, &h.TypeName, &h.FilePath, &h.Project, &h.Language)
	return h, err
}

// FindMember returns members equal to name, optionally restricted to a set
// of containing type names (used for hierarchy-aware member lookup).
func (s *Store) FindMember(name string, containingTypes []string, memberKind string, filter Filter) ([]MemberHit, error) {
	limit := filter.MaxResults
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + memberHitColumns + ` FROM members m
		JOIN files f ON f.id = m.file_id
		LEFT JOIN types t ON t.id = m.type_id
		WHERE lower(m.name) = lower(?)`
	args := []any{name}
	if len(containingTypes) > 0 {
		query += ` AND t.name IN (` + placeholders(len(containingTypes)) + `)`
		for _, tn := range containingTypes {
			args = append(args, tn)
		}
	}
	if memberKind != "" {
		query += ` AND m.member_kind = ?`
		args = append(args, memberKind)
	}
	if filter.Project != "" {
		query += ` AND f.project = ?`
		args = append(args, filter.Project)
	}
	if filter.Language != "" {
		query += ` AND f.language = ?`
		args = append(args, filter.Language)
	}
	query += " " + headerFirstOrder + ` LIMIT ?`
	args = append(args, limit)

	return s.queryMemberHits(query, args...)
}

// MembersByIDs returns the joined rows for a set of member ids.
func (s *Store) MembersByIDs(ids []int64) ([]MemberHit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + memberHitColumns + ` FROM members m
		JOIN files f ON f.id = m.file_id
		LEFT JOIN types t ON t.id = m.type_id
		WHERE m.id IN (` + placeholders(len(ids)) + `)`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.queryMemberHits(query, args...)
}

// ListMembersForType returns every member of one type ordered by line.
func (s *Store) ListMembersForType(typeID int64) ([]MemberHit, error) {
	query := `SELECT ` + memberHitColumns + ` FROM members m
		JOIN files f ON f.id = m.file_id
		LEFT JOIN types t ON t.id = m.type_id
		WHERE m.type_id = ? ORDER BY m.line`
	return s.queryMemberHits(query, typeID)
}

func (s *Store) queryMemberHits(query string, args ...any) ([]MemberHit, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()
	var out []MemberHit
	for rows.Next() {
		h, err := scanMemberHit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// TypesForFile returns every type declared in one file ordered by line.
func (s *Store) TypesForFile(fileID int64) ([]TypeHit, error) {
	query := `SELECT ` + typeHitColumns + ` FROM types t JOIN files f ON f.id = t.file_id
		WHERE t.file_id = ? ORDER BY t.line`
	return s.queryTypeHits(query, fileID)
}

// AllTypes streams every type row to fn, used by the memory index load.
func (s *Store) AllTypes(fn func(Type) error) error {
	rows, err := s.db.Query(
		`SELECT id, file_id, name, kind, COALESCE(parent, ''), line, COALESCE(depth, -1) FROM types`)
	if err != nil {
		return fmt.Errorf("all types: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t Type
		if err := rows.Scan(&t.ID, &t.FileID, &t.Name, &t.Kind, &t.Parent, &t.Line, &t.Depth); err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return rows.Err()
}

// AllMembers streams every member row to fn, used by the memory index load.
func (s *Store) AllMembers(fn func(Member) error) error {
	rows, err := s.db.Query(
		`SELECT id, file_id, COALESCE(type_id, 0), name, member_kind, line, is_static, COALESCE(specifiers, '') FROM members`)
	if err != nil {
		return fmt.Errorf("all members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.FileID, &m.TypeID, &m.Name, &m.MemberKind, &m.Line, &m.IsStatic, &m.Specifiers); err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return rows.Err()
}

// UpdateTypeDepths writes computed inheritance depths in one transaction.
func (s *Store) UpdateTypeDepths(depths map[int64]int) error {
	if len(depths) == 0 {
		return nil
	}
	return s.Transaction(func(tx *sql.Tx) error {
		update, err := tx.Prepare(`UPDATE types SET depth = ? WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("prepare depth update: %w", err)
		}
		defer update.Close()
		for id, depth := range depths {
			if _, err := update.Exec(depth, id); err != nil {
				return fmt.Errorf("update depth for %d: %w", id, err)
			}
		}
		return nil
	})
}
