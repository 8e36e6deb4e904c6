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
)

// baseSchema creates the current shape of every table. Statements are all
// IF NOT EXISTS so a fresh database and an already-current one both pass.
var baseSchema = []string{
	`CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		project TEXT NOT NULL DEFAULT '',
		module TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		mtime INTEGER NOT NULL DEFAULT 0,
		relative_path TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS types (
		id INTEGER PRIMARY KEY,
		file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		parent TEXT,
		line INTEGER NOT NULL DEFAULT 0,
		depth INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS members (
		id INTEGER PRIMARY KEY,
		file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		type_id INTEGER REFERENCES types(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		member_kind TEXT NOT NULL,
		line INTEGER NOT NULL DEFAULT 0,
		is_static INTEGER NOT NULL DEFAULT 0,
		specifiers TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS assets (
		id INTEGER PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		content_path TEXT NOT NULL DEFAULT '',
		folder TEXT NOT NULL DEFAULT '',
		project TEXT NOT NULL DEFAULT '',
		extension TEXT NOT NULL DEFAULT '',
		mtime INTEGER NOT NULL DEFAULT 0,
		asset_class TEXT,
		parent_class TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS file_content (
		file_id INTEGER PRIMARY KEY REFERENCES files(id) ON DELETE CASCADE,
		compressed BLOB NOT NULL,
		content_hash INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS trigrams (
		trigram INTEGER NOT NULL,
		file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		PRIMARY KEY (trigram, file_id)
	) WITHOUT ROWID`,
	`CREATE TABLE IF NOT EXISTS name_trigrams (
		trigram INTEGER NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id INTEGER NOT NULL,
		PRIMARY KEY (trigram, entity_type, entity_id)
	) WITHOUT ROWID`,
	`CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS index_status (
		language TEXT PRIMARY KEY,
		phase TEXT NOT NULL,
		files_total INTEGER NOT NULL DEFAULT 0,
		files_done INTEGER NOT NULL DEFAULT 0,
		message TEXT,
		updated_at INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS query_analytics (
		id INTEGER PRIMARY KEY,
		kind TEXT NOT NULL,
		args TEXT,
		duration_ms REAL NOT NULL,
		result_count INTEGER NOT NULL DEFAULT 0,
		truncated INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT 0
	)`,
}

var schemaIndices = []string{
	`CREATE INDEX IF NOT EXISTS idx_files_path ON files(path)`,
	`CREATE INDEX IF NOT EXISTS idx_files_project ON files(project)`,
	`CREATE INDEX IF NOT EXISTS idx_files_module ON files(module)`,
	`CREATE INDEX IF NOT EXISTS idx_files_language ON files(language)`,
	`CREATE INDEX IF NOT EXISTS idx_types_name ON types(name)`,
	`CREATE INDEX IF NOT EXISTS idx_types_name_lower ON types(lower(name))`,
	`CREATE INDEX IF NOT EXISTS idx_types_parent ON types(parent)`,
	`CREATE INDEX IF NOT EXISTS idx_types_kind ON types(kind)`,
	`CREATE INDEX IF NOT EXISTS idx_types_parent_kind ON types(parent, kind)`,
	`CREATE INDEX IF NOT EXISTS idx_types_file ON types(file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_members_name ON members(name)`,
	`CREATE INDEX IF NOT EXISTS idx_members_name_lower ON members(lower(name))`,
	`CREATE INDEX IF NOT EXISTS idx_members_type ON members(type_id)`,
	`CREATE INDEX IF NOT EXISTS idx_members_file ON members(file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_members_kind ON members(member_kind)`,
	`CREATE INDEX IF NOT EXISTS idx_assets_name ON assets(name)`,
	`CREATE INDEX IF NOT EXISTS idx_assets_name_lower ON assets(lower(name))`,
	`CREATE INDEX IF NOT EXISTS idx_assets_folder ON assets(folder)`,
	`CREATE INDEX IF NOT EXISTS idx_assets_project ON assets(project)`,
	`CREATE INDEX IF NOT EXISTS idx_assets_parent_class ON assets(parent_class)`,
	`CREATE INDEX IF NOT EXISTS idx_trigrams_file ON trigrams(file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_name_trigrams_entity ON name_trigrams(entity_type, entity_id)`,
}

// columnProbe describes a column introduced after the table first shipped.
// clearTable forces a re-ingest when the added column invalidates existing
// rows, as with the asset class columns.
type columnProbe struct {
	table      string
	column     string
	ddl        string
	clearTable bool
}

var columnProbes = []columnProbe{
	{table: "files", column: "language", ddl: `ALTER TABLE files ADD COLUMN language TEXT NOT NULL DEFAULT ''`},
	{table: "files", column: "relative_path", ddl: `ALTER TABLE files ADD COLUMN relative_path TEXT`},
	{table: "types", column: "depth", ddl: `ALTER TABLE types ADD COLUMN depth INTEGER`},
	{table: "assets", column: "asset_class", ddl: `ALTER TABLE assets ADD COLUMN asset_class TEXT`, clearTable: true},
	{table: "assets", column: "parent_class", ddl: `ALTER TABLE assets ADD COLUMN parent_class TEXT`, clearTable: true},
}

// migrate brings the schema up to date. It first probes populated tables for
// columns introduced since the row shape last changed, then applies the
// IF NOT EXISTS base schema and indices. Probing runs first so an old
// database gains its missing columns before any statement references them.
func (s *Store) migrate() error {
	for _, probe := range columnProbes {
		exists, err := s.tableExists(probe.table)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		has, err := s.columnExists(probe.table, probe.column)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		s.logger.Info("store.migrate.column", "table", probe.table, "column", probe.column)
		if _, err := s.db.Exec(probe.ddl); err != nil {
			return fmt.Errorf("add %s.%s: %w", probe.table, probe.column, err)
		}
		if probe.clearTable {
			// Existing rows predate the column and cannot be
			// backfilled; clear them so the watcher re-ingests.
			s.logger.Warn("store.migrate.clear_table", "table", probe.table, "reason", probe.column)
			if _, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", probe.table)); err != nil {
				return fmt.Errorf("clear %s: %w", probe.table, err)
			}
		}
	}

	for _, stmt := range baseSchema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	for _, stmt := range schemaIndices {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func (s *Store) tableExists(name string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("probe table %s: %w", name, err)
	}
	return n > 0, nil
}

func (s *Store) columnExists(table, column string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notnull    int
			dflt       sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &primaryKey); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
