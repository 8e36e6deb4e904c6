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

package index

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/ueindex/internal/trigram"
	"github.com/kraklabs/ueindex/pkg/storage"
)

func seedIndex(t *testing.T) *Index {
	t.Helper()
	ix := New(nil)
	ix.AddFile(storage.File{ID: 1, Path: "/e/Actor.h", Project: "Engine", Module: "Engine.Runtime", Language: storage.LanguageCpp})
	ix.AddFile(storage.File{ID: 2, Path: "/g/Hero.h", Project: "Game", Module: "Game.Core", Language: storage.LanguageCpp})
	ix.AddTypes([]storage.Type{
		{ID: 10, FileID: 1, Name: "AActor", Kind: storage.KindClass, Line: 5},
		{ID: 11, FileID: 2, Name: "AHero", Kind: storage.KindClass, Parent: "AActor", Line: 7},
	})
	ix.AddMembers([]storage.Member{
		{ID: 20, FileID: 1, TypeID: 10, Name: "Destroy", MemberKind: storage.MemberFunction, Line: 12},
		{ID: 21, FileID: 2, TypeID: 11, Name: "DoHeroics", MemberKind: storage.MemberFunction, Line: 14},
	})
	ix.UpsertAssets([]storage.Asset{{
		ID: 30, Path: "/c/BP_Hero.uasset", Name: "BP_Hero",
		Folder: "/Game/Blueprints", AssetClass: "Blueprint", ParentClass: "Hero",
	}})
	ix.RefreshSorted()
	return ix
}

func TestPrefixScanLexicographic(t *testing.T) {
	ix := seedIndex(t)
	names := ix.NamesWithPrefix(EntityType, "a", 0)
	assert.Equal(t, []string{"aactor", "ahero"}, names)

	names = ix.NamesWithPrefix(EntityType, "ah", 0)
	assert.Equal(t, []string{"ahero"}, names)

	assert.Empty(t, ix.NamesWithPrefix(EntityType, "zz", 0))
}

func TestTrigramPostingsFollowMutations(t *testing.T) {
	ix := seedIndex(t)
	tri := trigram.ExtractString("aactor")[0] // "aac"
	assert.Equal(t, []int64{10}, ix.IDsForTrigram(EntityType, tri))

	ix.RemoveFile(1)
	assert.Empty(t, ix.IDsForTrigram(EntityType, tri))

	// The member postings of the removed file are gone too.
	des := trigram.ExtractString("destroy")[0]
	assert.Empty(t, ix.IDsForTrigram(EntityMember, des))
}

func TestRemoveFileDropsEverything(t *testing.T) {
	ix := seedIndex(t)
	before := ix.Stats()
	require.EqualValues(t, 2, before.Files)
	require.EqualValues(t, 2, before.Types)

	ix.RemoveFile(2)
	after := ix.Stats()
	assert.EqualValues(t, 1, after.Files)
	assert.EqualValues(t, 1, after.Types)
	assert.EqualValues(t, 1, after.Members)

	_, ok := ix.TypeByID(11)
	assert.False(t, ok)
	assert.Empty(t, ix.IDsForName(EntityType, "ahero"))
	assert.Empty(t, ix.TypeIDsByParent("AActor"))

	ix.RefreshSorted()
	assert.Equal(t, []string{"aactor"}, ix.NamesWithPrefix(EntityType, "a", 0))
}

func TestReaddKeepsMapsConsistent(t *testing.T) {
	ix := seedIndex(t)
	// Re-adding a file with the same id (the ingest resync path) must not
	// duplicate multimap entries.
	ix.AddFile(storage.File{ID: 1, Path: "/e/Actor.h", Project: "Engine", Module: "Engine.Runtime", Language: storage.LanguageCpp})
	ix.AddTypes([]storage.Type{{ID: 40, FileID: 1, Name: "AActor", Kind: storage.KindClass, Line: 5}})

	stats := ix.Stats()
	assert.EqualValues(t, 2, stats.Files)
	ids := ix.IDsForName(EntityType, "aactor")
	assert.Equal(t, []int64{40}, ids)
}

func TestHitShapesMatchStore(t *testing.T) {
	ix := seedIndex(t)
	hit, ok := ix.TypeHit(11)
	require.True(t, ok)
	assert.Equal(t, "AHero", hit.Name)
	assert.Equal(t, "/g/Hero.h", hit.FilePath)
	assert.Equal(t, "Game", hit.Project)

	mhit, ok := ix.MemberHit(21)
	require.True(t, ok)
	assert.Equal(t, "AHero", mhit.TypeName)
	assert.Equal(t, "/g/Hero.h", mhit.FilePath)
}

func TestAssetMaps(t *testing.T) {
	ix := seedIndex(t)
	assert.Equal(t, []int64{30}, ix.AssetIDsByParentClass("Hero"))
	assert.Equal(t, []string{"bp_hero"}, ix.NamesWithPrefix(EntityAsset, "bp", 0))

	removed := ix.RemoveAssetByPath("/c/BP_Hero.uasset")
	assert.True(t, removed)
	assert.False(t, ix.RemoveAssetByPath("/c/BP_Hero.uasset"))
	assert.Empty(t, ix.AssetIDsByParentClass("Hero"))
	assert.Zero(t, ix.Stats().Assets)
}

func TestParentEdges(t *testing.T) {
	ix := seedIndex(t)
	edges := map[string]string{}
	assets := map[string]bool{}
	ix.EachParentEdge(func(child, parent string, isAsset bool) {
		edges[child] = parent
		assets[child] = isAsset
	})
	assert.Equal(t, "AActor", edges["AHero"])
	assert.Equal(t, "Hero", edges["BP_Hero"])
	assert.False(t, assets["AHero"])
	assert.True(t, assets["BP_Hero"])
}

func TestLoadFromStore(t *testing.T) {
	s, err := storage.Open(filepath.Join(t.TempDir(), "index.db"), nil)
	require.NoError(t, err)
	defer s.Close()

	var fileID int64
	err = s.Transaction(func(tx *sql.Tx) error {
		fileID, err = storage.UpsertFileTx(tx, storage.File{Path: "/l/Load.h", Project: "Game", Language: storage.LanguageCpp})
		if err != nil {
			return err
		}
		_, err = storage.InsertTypesTx(tx, fileID, []storage.TypeRecord{{Name: "ALoaded", Kind: storage.KindClass, Line: 1}})
		return err
	})
	require.NoError(t, err)

	ix := New(nil)
	require.NoError(t, ix.Load(s))
	assert.True(t, ix.Loaded())
	assert.EqualValues(t, 1, ix.Stats().Files)
	assert.Equal(t, []string{"aloaded"}, ix.NamesWithPrefix(EntityType, "aload", 0))
}
