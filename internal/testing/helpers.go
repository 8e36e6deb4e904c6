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

package testing

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/kraklabs/ueindex/pkg/graph"
	"github.com/kraklabs/ueindex/pkg/index"
	"github.com/kraklabs/ueindex/pkg/storage"
)

// SetupTestStore creates a file-backed store in a temp directory. The
// store is closed when the test finishes.
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    store := testing.SetupTestStore(t)
//	    fileID := testing.SeedFile(t, store, nil, testing.FileFixture{
//	        Path: "/proj/Actor.h", Project: "engine", Language: "cpp",
//	        Types: []storage.TypeRecord{{Name: "AActor", Kind: "class", Line: 10}},
//	    })
//	    _ = fileID
//	}
func SetupTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "index.db"), nil)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// SetupTestRuntime creates the read side of the service: a store, a
// loaded memory index, and a graph built over it. Seed through SeedFile
// and SeedAsset with the index passed so both layers stay in step, then
// call graph.Rebuild if parents were seeded after setup.
func SetupTestRuntime(t *testing.T) (*storage.Store, *index.Index, *graph.Graph) {
	t.Helper()
	s := SetupTestStore(t)
	ix := index.New(nil)
	if err := ix.Load(s); err != nil {
		t.Fatalf("load test index: %v", err)
	}
	g := graph.New()
	g.Rebuild(ix)
	return s, ix, g
}

// FileFixture describes one seeded file with its symbols and body.
type FileFixture struct {
	Path         string
	Project      string
	Module       string
	Language     string
	Mtime        int64
	RelativePath string
	Body         []byte
	Types        []storage.TypeRecord
	Members      []storage.MemberRecord
}

// SeedFile writes a file with its types, members and optional body the
// way the ingest path does, then mirrors the rows into ix when non-nil.
// Returns the file id.
func SeedFile(t *testing.T, s *storage.Store, ix *index.Index, fx FileFixture) int64 {
	t.Helper()
	if fx.Language == "" {
		fx.Language = "cpp"
	}
	if fx.Mtime == 0 {
		fx.Mtime = 1
	}
	var fileID int64
	var insertedTypes []storage.Type
	var insertedMembers []storage.Member
	err := s.Transaction(func(tx *sql.Tx) error {
		var err error
		fileID, err = storage.UpsertFileTx(tx, storage.File{
			Path:         fx.Path,
			Project:      fx.Project,
			Module:       fx.Module,
			Language:     fx.Language,
			Mtime:        fx.Mtime,
			RelativePath: fx.RelativePath,
		})
		if err != nil {
			return err
		}
		if err := storage.ClearTypesForFileTx(tx, fileID); err != nil {
			return err
		}
		insertedTypes, err = storage.InsertTypesTx(tx, fileID, fx.Types)
		if err != nil {
			return err
		}
		typeIDs := make(map[string]int64, len(insertedTypes))
		for _, ty := range insertedTypes {
			typeIDs[ty.Name] = ty.ID
		}
		insertedMembers, err = storage.InsertMembersTx(tx, fileID, fx.Members, typeIDs)
		if err != nil {
			return err
		}
		if fx.Body != nil {
			return storage.UpsertFileContentTx(tx, fileID, fx.Body)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed file %s: %v", fx.Path, err)
	}
	if ix != nil {
		ix.RemoveFile(fileID)
		f, err := s.FileByID(fileID)
		if err != nil || f == nil {
			t.Fatalf("read back seeded file %s: %v", fx.Path, err)
		}
		ix.AddFile(*f)
		ix.AddTypes(insertedTypes)
		ix.AddMembers(insertedMembers)
	}
	return fileID
}

// SeedAsset upserts one asset into the store and, when non-nil, the
// index.
func SeedAsset(t *testing.T, s *storage.Store, ix *index.Index, asset storage.Asset) {
	t.Helper()
	inserted, err := s.UpsertAssets([]storage.Asset{asset})
	if err != nil {
		t.Fatalf("seed asset %s: %v", asset.Path, err)
	}
	if ix != nil {
		ix.UpsertAssets(inserted)
	}
}
