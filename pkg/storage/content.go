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
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/kraklabs/ueindex/internal/trigram"
)

// Compress DEFLATE-compresses a file body for inline storage.
func Compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		return nil, fmt.Errorf("flate writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress inflates a stored file body.
func Decompress(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return raw, nil
}

// UpsertFileContentTx replaces the stored body of a file inside tx: the
// compressed blob, the 64-bit content hash and the body trigram postings
// used by the grep prefilter.
func UpsertFileContentTx(tx *sql.Tx, fileID int64, raw []byte) error {
	compressed, err := Compress(raw)
	if err != nil {
		return err
	}
	hash := trigram.ContentHash(raw)

	had, err := hasBody(tx, fileID)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT INTO file_content (file_id, compressed, content_hash) VALUES (?, ?, ?)
		 ON CONFLICT(file_id) DO UPDATE SET compressed = excluded.compressed, content_hash = excluded.content_hash`,
		fileID, compressed, hash); err != nil {
		return fmt.Errorf("upsert body: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM trigrams WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("clear body trigrams: %w", err)
	}
	insert, err := tx.Prepare(`INSERT OR IGNORE INTO trigrams (trigram, file_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare trigram insert: %w", err)
	}
	defer insert.Close()
	for _, t := range trigram.Extract(raw) {
		if _, err := insert.Exec(int64(t), fileID); err != nil {
			return fmt.Errorf("insert body trigram: %w", err)
		}
	}

	if !had {
		return bumpCount(tx, metaCountBodies, 1)
	}
	return nil
}

// ContentForFile returns the decompressed body, or nil when none is stored.
func (s *Store) ContentForFile(fileID int64) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(`SELECT compressed FROM file_content WHERE file_id = ?`, fileID).Scan(&compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return Decompress(compressed)
}

// ContentHashForFile returns the stored content hash and whether a body
// exists, used by the ingest mtime guard.
func (s *Store) ContentHashForFile(fileID int64) (int64, bool, error) {
	var hash int64
	err := s.db.QueryRow(`SELECT content_hash FROM file_content WHERE file_id = ?`, fileID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read content hash: %w", err)
	}
	return hash, true, nil
}

// QueryTrigramCandidates returns the files whose body contains every
// supplied trigram, via intersection over the posting rows. A nil or empty
// trigram set means the pattern was unindexable: the result is nil and the
// caller must fall back to the external engine or an exhaustive scan. An
// empty non-nil slice means the index answered: no file can match.
func (s *Store) QueryTrigramCandidates(trigrams []trigram.Trigram, filter Filter) ([]Candidate, error) {
	if len(trigrams) == 0 {
		return nil, nil
	}
	query := `SELECT f.id, f.path, f.project, f.language, f.mtime
		FROM trigrams g JOIN files f ON f.id = g.file_id
		WHERE g.trigram IN (` + placeholders(len(trigrams)) + `)`
	args := make([]any, 0, len(trigrams)+3)
	for _, t := range trigrams {
		args = append(args, int64(t))
	}
	if filter.Project != "" {
		query += ` AND f.project = ?`
		args = append(args, filter.Project)
	}
	if filter.Language != "" {
		query += ` AND f.language = ?`
		args = append(args, filter.Language)
	}
	query += ` GROUP BY f.id HAVING COUNT(DISTINCT g.trigram) = ?`
	args = append(args, len(trigrams))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("trigram candidates: %w", err)
	}
	defer rows.Close()
	out := []Candidate{}
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.FileID, &c.Path, &c.Project, &c.Language, &c.Mtime); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TrigramRowsForFile counts the body trigram rows that reference the file,
// used by cascade tests.
func (s *Store) TrigramRowsForFile(fileID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM trigrams WHERE file_id = ?`, fileID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count trigram rows: %w", err)
	}
	return n, nil
}

// NameTrigramIDs returns the entity ids posted under one trigram, used by
// the slow (store-backed) fuzzy path and by invariant tests.
func (s *Store) NameTrigramIDs(t trigram.Trigram, entityType string) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT entity_id FROM name_trigrams WHERE trigram = ? AND entity_type = ?`,
		int64(t), entityType)
	if err != nil {
		return nil, fmt.Errorf("name trigram ids: %w", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SymbolAtLine returns the name of a type or member recorded at the given
// file and line, used as a grep ranking signal. Empty when nothing matches.
func (s *Store) SymbolAtLine(path string, line int) (string, error) {
	var name string
	err := s.db.QueryRow(
		`SELECT t.name FROM types t JOIN files f ON f.id = t.file_id
		 WHERE f.path = ? AND t.line = ? LIMIT 1`, path, line).Scan(&name)
	if err == nil {
		return name, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("symbol at line: %w", err)
	}
	err = s.db.QueryRow(
		`SELECT m.name FROM members m JOIN files f ON f.id = m.file_id
		 WHERE f.path = ? AND m.line = ? LIMIT 1`, path, line).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("symbol at line: %w", err)
	}
	return name, nil
}

// LanguageFromExtension maps a file extension to the stored language
// discriminator; empty when unknown.
func LanguageFromExtension(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "as":
		return LanguageAngelScript
	case "h", "hpp", "hxx", "c", "cc", "cpp", "cxx", "inl":
		return LanguageCpp
	case "ini", "cfg":
		return LanguageConfig
	case "uasset", "umap":
		return LanguageAsset
	default:
		return ""
	}
}
