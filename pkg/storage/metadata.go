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
	"strconv"
	"time"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so metadata helpers can run
// inside or outside a transaction.
type dbtx interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
}

func setMeta(q dbtx, key, value string) error {
	_, err := q.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}

func getMeta(q dbtx, key string) (string, bool, error) {
	var value string
	err := q.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value, true, nil
}

// SetFlag sets a named boolean slot such as MetaDepthComputeNeeded.
func (s *Store) SetFlag(key string, set bool) error {
	return setMeta(s.db, key, strconv.FormatBool(set))
}

// Flag reads a named boolean slot; absent means false.
func (s *Store) Flag(key string) (bool, error) {
	value, ok, err := getMeta(s.db, key)
	if err != nil || !ok {
		return false, err
	}
	return value == "true", nil
}

// SetLastBuild records the last-build timestamp in milliseconds.
func (s *Store) SetLastBuild(t time.Time) error {
	return setMeta(s.db, MetaLastBuild, strconv.FormatInt(t.UnixMilli(), 10))
}

// LastBuild reads the last-build timestamp; zero time when never built.
func (s *Store) LastBuild() (time.Time, error) {
	value, ok, err := getMeta(s.db, MetaLastBuild)
	if err != nil || !ok {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse lastBuild: %w", err)
	}
	return time.UnixMilli(ms), nil
}

// bumpCount adjusts a cached count inside the ingest transaction so the
// cache and the table commit together.
func bumpCount(q dbtx, key string, delta int64) error {
	if delta == 0 {
		return nil
	}
	current, _, err := getMeta(q, key)
	if err != nil {
		return err
	}
	n, _ := strconv.ParseInt(current, 10, 64)
	return setMeta(q, key, strconv.FormatInt(n+delta, 10))
}

func cachedCount(q dbtx, key string) (int64, error) {
	value, ok, err := getMeta(q, key)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

// RecountAll refreshes every cached count from a real table count. Run at
// open; afterwards the ingest path keeps the cache in step incrementally.
func (s *Store) RecountAll() error {
	counts := map[string]string{
		metaCountFiles:   "files",
		metaCountTypes:   "types",
		metaCountMembers: "members",
		metaCountAssets:  "assets",
		metaCountBodies:  "file_content",
	}
	for key, table := range counts {
		var n int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return fmt.Errorf("count %s: %w", table, err)
		}
		if err := setMeta(s.db, key, strconv.FormatInt(n, 10)); err != nil {
			return err
		}
	}
	return nil
}

// GetStats serves entity counts from the metadata cache.
func (s *Store) GetStats() (Stats, error) {
	var stats Stats
	var err error
	if stats.TotalFiles, err = cachedCount(s.db, metaCountFiles); err != nil {
		return stats, err
	}
	if stats.TotalTypes, err = cachedCount(s.db, metaCountTypes); err != nil {
		return stats, err
	}
	if stats.TotalMembers, err = cachedCount(s.db, metaCountMembers); err != nil {
		return stats, err
	}
	if stats.TotalAssets, err = cachedCount(s.db, metaCountAssets); err != nil {
		return stats, err
	}
	if stats.TotalBodies, err = cachedCount(s.db, metaCountBodies); err != nil {
		return stats, err
	}
	return stats, nil
}

// SetIndexStatus upserts the per-language indexing phase record.
func (s *Store) SetIndexStatus(st IndexStatus) error {
	if st.UpdatedAt == 0 {
		st.UpdatedAt = time.Now().UnixMilli()
	}
	_, err := s.db.Exec(
		`INSERT INTO index_status (language, phase, files_total, files_done, message, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(language) DO UPDATE SET
		   phase = excluded.phase,
		   files_total = excluded.files_total,
		   files_done = excluded.files_done,
		   message = excluded.message,
		   updated_at = excluded.updated_at`,
		st.Language, st.Phase, st.FilesTotal, st.FilesDone, st.Message, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("set index status: %w", err)
	}
	return nil
}

// IndexStatuses lists every per-language status record.
func (s *Store) IndexStatuses() ([]IndexStatus, error) {
	rows, err := s.db.Query(
		`SELECT language, phase, files_total, files_done, COALESCE(message, ''), updated_at
		 FROM index_status ORDER BY language`)
	if err != nil {
		return nil, fmt.Errorf("list index status: %w", err)
	}
	defer rows.Close()
	var out []IndexStatus
	for rows.Next() {
		var st IndexStatus
		if err := rows.Scan(&st.Language, &st.Phase, &st.FilesTotal, &st.FilesDone, &st.Message, &st.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
