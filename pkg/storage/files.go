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
	"errors"
	"fmt"
	"path"
	"strings"
)

const fileColumns = `id, path, project, module, language, mtime, COALESCE(relative_path, '')`

func scanFile(row interface{ Scan(...any) error }) (File, error) {
	var f File
	err := row.Scan(&f.ID, &f.Path, &f.Project, &f.Module, &f.Language, &f.Mtime, &f.RelativePath)
	return f, err
}

// UpsertFileTx inserts or updates a file row by its unique path inside tx and
// returns the stable file id.
func UpsertFileTx(tx *sql.Tx, f File) (int64, error) {
	var existing int64
	err := tx.QueryRow(`SELECT id FROM files WHERE path = ?`, f.Path).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.Exec(
			`INSERT INTO files (path, project, module, language, mtime, relative_path)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			f.Path, f.Project, f.Module, f.Language, f.Mtime, nullable(f.RelativePath))
		if err != nil {
			return 0, fmt.Errorf("insert file %s: %w", f.Path, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}
		if err := bumpCount(tx, metaCountFiles, 1); err != nil {
			return 0, err
		}
		return id, nil
	case err != nil:
		return 0, fmt.Errorf("lookup file %s: %w", f.Path, err)
	default:
		_, err := tx.Exec(
			`UPDATE files SET project = ?, module = ?, language = ?, mtime = ?, relative_path = ? WHERE id = ?`,
			f.Project, f.Module, f.Language, f.Mtime, nullable(f.RelativePath), existing)
		if err != nil {
			return 0, fmt.Errorf("update file %s: %w", f.Path, err)
		}
		return existing, nil
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// FileByPath returns the file row for an absolute path.
func (s *Store) FileByPath(p string) (*File, error) {
	f, err := scanFile(s.db.QueryRow(`SELECT `+fileColumns+` FROM files WHERE path = ?`, p))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return &f, nil
}

// FileByID returns the file row for an id.
func (s *Store) FileByID(id int64) (*File, error) {
	f, err := scanFile(s.db.QueryRow(`SELECT `+fileColumns+` FROM files WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return &f, nil
}

// DeleteFile cascade-removes the file at path along with its types, members,
// body and trigram postings. Returns false when no such file exists.
func (s *Store) DeleteFile(p string) (bool, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM files WHERE path = ?`, p).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup file %s: %w", p, err)
	}
	return true, s.DeleteFileByID(id)
}

// DeleteFileByID cascade-removes a file by id.
func (s *Store) DeleteFileByID(id int64) error {
	return s.Transaction(func(tx *sql.Tx) error {
		return deleteFileTx(tx, id)
	})
}

// deleteFileTx removes the file and everything hanging off it. Name-trigram
// rows have no foreign key (entity_id is polymorphic) so they are deleted
// explicitly before the cascading file delete.
func deleteFileTx(tx *sql.Tx, id int64) error {
	types, members, err := countSymbols(tx, id)
	if err != nil {
		return err
	}
	hadBody, err := hasBody(tx, id)
	if err != nil {
		return err
	}
	if err := clearNameTrigrams(tx, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete file %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return nil
	}
	if err := bumpCount(tx, metaCountFiles, -1); err != nil {
		return err
	}
	if err := bumpCount(tx, metaCountTypes, -types); err != nil {
		return err
	}
	if err := bumpCount(tx, metaCountMembers, -members); err != nil {
		return err
	}
	if hadBody {
		if err := bumpCount(tx, metaCountBodies, -1); err != nil {
			return err
		}
	}
	return nil
}

func countSymbols(q dbtx, fileID int64) (types, members int64, err error) {
	if err = q.QueryRow(`SELECT COUNT(*) FROM types WHERE file_id = ?`, fileID).Scan(&types); err != nil {
		return 0, 0, fmt.Errorf("count types: %w", err)
	}
	if err = q.QueryRow(`SELECT COUNT(*) FROM members WHERE file_id = ?`, fileID).Scan(&members); err != nil {
		return 0, 0, fmt.Errorf("count members: %w", err)
	}
	return types, members, nil
}

func hasBody(q dbtx, fileID int64) (bool, error) {
	var n int
	if err := q.QueryRow(`SELECT COUNT(*) FROM file_content WHERE file_id = ?`, fileID).Scan(&n); err != nil {
		return false, fmt.Errorf("probe body: %w", err)
	}
	return n > 0, nil
}

// FindFileByName matches files whose basename starts with filename,
// case-insensitively, with exact-basename hits first.
func (s *Store) FindFileByName(filename string, filter Filter) ([]File, error) {
	limit := filter.MaxResults
	if limit <= 0 {
		limit = 50
	}
	lowered := strings.ToLower(filename)
	query := `SELECT ` + fileColumns + ` FROM files WHERE `
	args := []any{}
	conds := []string{`(lower(path) LIKE '%/' || ? || '%' OR lower(path) LIKE ? || '%')`}
	args = append(args, lowered, lowered)
	conds, args = applyFileFilter(conds, args, filter)
	query += strings.Join(conds, " AND ") + ` ORDER BY path LIMIT ?`
	args = append(args, limit*4)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("find file: %w", err)
	}
	defer rows.Close()

	var exact, prefix []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		base := strings.ToLower(path.Base(filepathToSlash(f.Path)))
		switch {
		case base == lowered || strings.TrimSuffix(base, path.Ext(base)) == lowered:
			exact = append(exact, f)
		case strings.HasPrefix(base, lowered):
			prefix = append(prefix, f)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := append(exact, prefix...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func applyFileFilter(conds []string, args []any, filter Filter) ([]string, []any) {
	if filter.Project != "" {
		conds = append(conds, `project = ?`)
		args = append(args, filter.Project)
	}
	if filter.Language != "" {
		conds = append(conds, `language = ?`)
		args = append(args, filter.Language)
	}
	return conds, args
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// FileByProjectRelative resolves a mirror-layout path (project plus
// project-relative path) back to the stored file row.
func (s *Store) FileByProjectRelative(project, relative string) (*File, error) {
	f, err := scanFile(s.db.QueryRow(
		`SELECT `+fileColumns+` FROM files WHERE project = ? AND relative_path = ?`,
		project, relative))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by project relative: %w", err)
	}
	return &f, nil
}

// FileMtimes returns path -> mtime for every file of a language, used by the
// watcher to decide what needs re-ingest.
func (s *Store) FileMtimes(language string) (map[string]int64, error) {
	query := `SELECT path, mtime FROM files`
	var args []any
	if language != "" {
		query += ` WHERE language = ?`
		args = append(args, language)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("file mtimes: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var p string
		var mtime int64
		if err := rows.Scan(&p, &mtime); err != nil {
			return nil, err
		}
		out[p] = mtime
	}
	return out, rows.Err()
}

// AllFiles streams every file row to fn, used by the memory index load.
func (s *Store) AllFiles(fn func(File) error) error {
	rows, err := s.db.Query(`SELECT ` + fileColumns + ` FROM files`)
	if err != nil {
		return fmt.Errorf("all files: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ListModules returns the distinct dotted module names, optionally filtered
// by project, in lexicographic order.
func (s *Store) ListModules(filter Filter) ([]string, error) {
	query := `SELECT DISTINCT module FROM files WHERE module != ''`
	var args []any
	if filter.Project != "" {
		query += ` AND project = ?`
		args = append(args, filter.Project)
	}
	query += ` ORDER BY module`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// BrowseModule lists the files of one module with their types.
func (s *Store) BrowseModule(module string, filter Filter) ([]File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE module = ?`
	args := []any{module}
	if filter.Project != "" {
		query += ` AND project = ?`
		args = append(args, filter.Project)
	}
	query += ` ORDER BY path`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("browse module: %w", err)
	}
	defer rows.Close()
	var out []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
