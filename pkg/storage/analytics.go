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
	"fmt"
	"time"
)

// QueryRecord is one slow-query analytics row.
type QueryRecord struct {
	Kind        string  `json:"kind"`
	Args        string  `json:"args,omitempty"`
	DurationMs  float64 `json:"durationMs"`
	ResultCount int     `json:"resultCount"`
	Truncated   bool    `json:"truncated"`
	CreatedAt   int64   `json:"createdAt"`
}

// LogQuery records one analytics row. Failures are logged and swallowed:
// analytics must never break a query.
func (s *Store) LogQuery(rec QueryRecord) {
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.db.Exec(
		`INSERT INTO query_analytics (kind, args, duration_ms, result_count, truncated, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Kind, nullable(rec.Args), rec.DurationMs, rec.ResultCount, rec.Truncated, rec.CreatedAt)
	if err != nil {
		s.logger.Warn("store.analytics.write_failed", "kind", rec.Kind, "err", err)
	}
}

// SlowQueries returns the slowest recorded queries, slowest first.
func (s *Store) SlowQueries(limit int) ([]QueryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT kind, COALESCE(args, ''), duration_ms, result_count, truncated, created_at
		 FROM query_analytics ORDER BY duration_ms DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("slow queries: %w", err)
	}
	defer rows.Close()
	var out []QueryRecord
	for rows.Next() {
		var r QueryRecord
		if err := rows.Scan(&r.Kind, &r.Args, &r.DurationMs, &r.ResultCount, &r.Truncated, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneAnalytics drops analytics rows older than the retention window.
func (s *Store) PruneAnalytics(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	if _, err := s.db.Exec(`DELETE FROM query_analytics WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("prune analytics: %w", err)
	}
	return nil
}
