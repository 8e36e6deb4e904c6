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
)

const assetColumns = `id, path, name, content_path, folder, project, extension, mtime,
	COALESCE(asset_class, ''), COALESCE(parent_class, '')`

func scanAsset(row interface{ Scan(...any) error }) (Asset, error) {
	var a Asset
	err := row.Scan(&a.ID, &a.Path, &a.Name, &a.ContentPath, &a.Folder, &a.Project,
		&a.Extension, &a.Mtime, &a.AssetClass, &a.ParentClass)
	return a, err
}

// UpsertAssets inserts or updates a batch of assets by their unique paths in
// one transaction, returning the rows with assigned ids.
func (s *Store) UpsertAssets(assets []Asset) ([]Asset, error) {
	if len(assets) == 0 {
		return nil, nil
	}
	out := make([]Asset, 0, len(assets))
	err := s.Transaction(func(tx *sql.Tx) error {
		var inserted int64
		for _, a := range assets {
			var existing int64
			err := tx.QueryRow(`SELECT id FROM assets WHERE path = ?`, a.Path).Scan(&existing)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				res, err := tx.Exec(
					`INSERT INTO assets (path, name, content_path, folder, project, extension, mtime, asset_class, parent_class)
					 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					a.Path, a.Name, a.ContentPath, a.Folder, a.Project, a.Extension, a.Mtime,
					nullable(a.AssetClass), nullable(a.ParentClass))
				if err != nil {
					return fmt.Errorf("insert asset %s: %w", a.Path, err)
				}
				a.ID, err = res.LastInsertId()
				if err != nil {
					return err
				}
				inserted++
			case err != nil:
				return fmt.Errorf("lookup asset %s: %w", a.Path, err)
			default:
				a.ID = existing
				if _, err := tx.Exec(
					`UPDATE assets SET name = ?, content_path = ?, folder = ?, project = ?,
					 extension = ?, mtime = ?, asset_class = ?, parent_class = ? WHERE id = ?`,
					a.Name, a.ContentPath, a.Folder, a.Project, a.Extension, a.Mtime,
					nullable(a.AssetClass), nullable(a.ParentClass), existing); err != nil {
					return fmt.Errorf("update asset %s: %w", a.Path, err)
				}
			}
			out = append(out, a)
		}
		return bumpCount(tx, metaCountAssets, inserted)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAssetByPath removes one asset; returns false when absent.
func (s *Store) DeleteAssetByPath(p string) (bool, error) {
	var deleted bool
	err := s.Transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM assets WHERE path = ?`, p)
		if err != nil {
			return fmt.Errorf("delete asset %s: %w", p, err)
		}
		n, _ := res.RowsAffected()
		deleted = n > 0
		if deleted {
			return bumpCount(tx, metaCountAssets, -1)
		}
		return nil
	})
	return deleted, err
}

// FindAssetByName returns assets equal to name, case-insensitively.
func (s *Store) FindAssetByName(name string, filter Filter) ([]Asset, error) {
	limit := filter.MaxResults
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + assetColumns + ` FROM assets WHERE lower(name) = lower(?)`
	args := []any{name}
	query, args = applyAssetFilter(query, args, filter)
	query += ` ORDER BY path LIMIT ?`
	args = append(args, limit)
	return s.queryAssets(query, args...)
}

func applyAssetFilter(query string, args []any, filter Filter) (string, []any) {
	if filter.Project != "" {
		query += ` AND project = ?`
		args = append(args, filter.Project)
	}
	if filter.Folder != "" {
		query += ` AND (folder = ? OR folder LIKE ? || '/%')`
		args = append(args, filter.Folder, filter.Folder)
	}
	return query, args
}

// BrowseAssetFolder lists the assets directly inside one folder.
func (s *Store) BrowseAssetFolder(folder string, filter Filter) ([]Asset, error) {
	limit := filter.MaxResults
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT ` + assetColumns + ` FROM assets WHERE folder = ?`
	args := []any{folder}
	if filter.Project != "" {
		query += ` AND project = ?`
		args = append(args, filter.Project)
	}
	query += ` ORDER BY name LIMIT ?`
	args = append(args, limit)
	return s.queryAssets(query, args...)
}

// ListAssetFolders returns the distinct asset folders in lexicographic order.
func (s *Store) ListAssetFolders(filter Filter) ([]string, error) {
	query := `SELECT DISTINCT folder FROM assets WHERE folder != ''`
	var args []any
	if filter.Project != "" {
		query += ` AND project = ?`
		args = append(args, filter.Project)
	}
	query += ` ORDER BY folder`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list asset folders: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// AssetMtimes returns path -> mtime for every asset.
func (s *Store) AssetMtimes() (map[string]int64, error) {
	rows, err := s.db.Query(`SELECT path, mtime FROM assets`)
	if err != nil {
		return nil, fmt.Errorf("asset mtimes: %w", err)
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

// AllAssets streams every asset row to fn, used by the memory index load.
func (s *Store) AllAssets(fn func(Asset) error) error {
	rows, err := s.db.Query(`SELECT ` + assetColumns + ` FROM assets`)
	if err != nil {
		return fmt.Errorf("all assets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) queryAssets(query string, args ...any) ([]Asset, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()
	var out []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AssetsByParentClasses returns the Blueprint assets whose parent_class is
// any of names. Like FindChildrenOf, no filter applies here: the caller
// filters the traversal output.
func (s *Store) AssetsByParentClasses(names []string) ([]Asset, error) {
	if len(names) == 0 {
		return nil, nil
	}
	query := `SELECT ` + assetColumns + ` FROM assets
		WHERE parent_class IN (` + placeholders(len(names)) + `) AND asset_class IS NOT NULL`
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}
	return s.queryAssets(query, args...)
}
