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

package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/ueindex/pkg/graph"
	"github.com/kraklabs/ueindex/pkg/index"
	"github.com/kraklabs/ueindex/pkg/storage"
)

func testMatcher(t *testing.T) (*Matcher, *index.Index, *graph.Graph) {
	t.Helper()
	ix := index.New(nil)
	g := graph.New()

	ix.AddFile(storage.File{ID: 1, Path: "/e/Actor.h", Project: "Engine", Language: storage.LanguageCpp})
	ix.AddFile(storage.File{ID: 2, Path: "/e/Actor.cpp", Project: "Engine", Language: storage.LanguageCpp})
	ix.AddFile(storage.File{ID: 3, Path: "/g/GameMode.h", Project: "Game", Language: storage.LanguageCpp})
	ix.AddTypes([]storage.Type{
		{ID: 10, FileID: 1, Name: "AActor", Kind: storage.KindClass, Parent: "UObject", Line: 5},
		{ID: 11, FileID: 1, Name: "Actor", Kind: storage.KindClass, Line: 40},
		{ID: 12, FileID: 1, Name: "UActor", Kind: storage.KindClass, Line: 80},
		{ID: 13, FileID: 3, Name: "AEmbarkGameMode", Kind: storage.KindClass, Parent: "AGameModeBase", Line: 9},
		{ID: 14, FileID: 2, Name: "AActor", Kind: storage.KindClass, Line: 1},
		{ID: 15, FileID: 1, Name: "UHealthComponent", Kind: storage.KindClass, Parent: "UActorComponent", Line: 120},
	})
	ix.AddMembers([]storage.Member{
		{ID: 20, FileID: 1, TypeID: 15, Name: "GetHealth", MemberKind: storage.MemberFunction, Line: 124, Specifiers: "UFUNCTION,BlueprintCallable"},
		{ID: 21, FileID: 1, TypeID: 15, Name: "SetHealth", MemberKind: storage.MemberFunction, Line: 125},
		{ID: 22, FileID: 1, TypeID: 10, Name: "Destroy", MemberKind: storage.MemberFunction, Line: 30},
	})
	ix.UpsertAssets([]storage.Asset{
		{ID: 30, Path: "/c/BP_Hero.uasset", Name: "BP_Hero", Folder: "/Game", Project: "Game", AssetClass: "Blueprint", ParentClass: "Actor"},
	})
	ix.RefreshSorted()
	g.Rebuild(ix)
	return NewMatcher(ix, g), ix, g
}

func TestExactTypeLookup(t *testing.T) {
	m, _, _ := testMatcher(t)
	got := m.FindTypes("AActor", Options{})
	require.NotEmpty(t, got)
	assert.Equal(t, "AActor", got[0].Name)
	assert.Equal(t, ReasonExact, got[0].Reason)
	// Header file dedup-preferred over the .cpp entry.
	assert.Equal(t, "/e/Actor.h", got[0].FilePath)
}

func TestPrefixVariantExactFallback(t *testing.T) {
	m, _, _ := testMatcher(t)
	got := m.FindTypes("EmbarkGameMode", Options{})
	require.Len(t, got, 1)
	assert.Equal(t, "AEmbarkGameMode", got[0].Name)
	assert.Equal(t, ReasonPrefixVariant, got[0].Reason)
}

func TestFuzzyRankingOrder(t *testing.T) {
	m, _, _ := testMatcher(t)
	got := m.FindTypes("AActor", Options{Fuzzy: true, MaxResults: 10})
	require.GreaterOrEqual(t, len(got), 3)
	assert.Equal(t, "AActor", got[0].Name)
	assert.Equal(t, ReasonExact, got[0].Reason)
	assert.Equal(t, "Actor", got[1].Name)
	assert.Equal(t, ReasonExactStripped, got[1].Reason)
	assert.Equal(t, "UActor", got[2].Name)
	assert.Equal(t, ReasonPrefixStripped, got[2].Reason)
}

func TestScoreTable(t *testing.T) {
	cases := []struct {
		query, candidate string
		score            float64
		reason           string
	}{
		{"AActor", "AActor", 1.00, ReasonExact},
		{"AActor", "Actor", 0.98, ReasonExactStripped},
		{"Actor", "AActor", 0.98, ReasonExactStripped},
		{"AActor", "UActor", 0.93, ReasonPrefixStripped},
		{"AAct", "AActor", 0.95, ReasonPrefix},
		{"ctorcomp", "ActorComponent", 0.85, ReasonSubstring},
		{"Health", "GetHealth", 0.88, ReasonGetterSetter},
		{"GetHealth", "SetHealth", 0.88, ReasonGetterSetter},
		{"HealthComponentWidget", "WidgetComponent", 0.50, ReasonWordMatchMost},
	}
	for _, tc := range cases {
		score, reason := scoreName(tc.query, tc.candidate)
		assert.InDelta(t, tc.score, score, 0.001, "%s vs %s", tc.query, tc.candidate)
		assert.Equal(t, tc.reason, reason, "%s vs %s", tc.query, tc.candidate)
	}
}

func TestTypeDedupPrefersParentedHeader(t *testing.T) {
	m, _, _ := testMatcher(t)
	got := m.FindTypes("AActor", Options{Fuzzy: true})
	count := 0
	for _, match := range got {
		if match.Name == "AActor" {
			count++
			assert.Equal(t, "/e/Actor.h", match.FilePath)
			assert.Equal(t, "UObject", match.Parent)
		}
	}
	assert.Equal(t, 1, count)
}

func TestShortQuerySubstringFallback(t *testing.T) {
	m, _, _ := testMatcher(t)
	// Two characters: no trigram, substring path only.
	got := m.FindTypes("ct", Options{Fuzzy: true, MaxResults: 50})
	names := map[string]bool{}
	for _, match := range got {
		names[match.Name] = true
	}
	// "ct" is a substring of every actor variant, so those score as
	// substring matches (0.85). Whatever comes back must clear the type
	// floor.
	for _, match := range got {
		assert.GreaterOrEqual(t, match.Score, typeScoreFloor)
	}
	_ = names
}

func TestProjectAndKindFilters(t *testing.T) {
	m, _, _ := testMatcher(t)
	got := m.FindTypes("AActor", Options{Project: "Game"})
	assert.Empty(t, got)

	got = m.FindTypes("AActor", Options{Kind: storage.KindStruct})
	assert.Empty(t, got)
}

func TestMemberSearchSpecifierBoost(t *testing.T) {
	m, _, _ := testMatcher(t)
	got := m.FindMembers("Health", Options{Fuzzy: true})
	require.GreaterOrEqual(t, len(got), 2)
	// GetHealth carries UFUNCTION/BlueprintCallable specifiers, so it must
	// outrank SetHealth.
	assert.Equal(t, "GetHealth", got[0].Name)
	assert.Equal(t, "SetHealth", got[1].Name)
}

func TestMemberContainingTypeRestriction(t *testing.T) {
	m, _, _ := testMatcher(t)
	got := m.FindMembers("Destroy", Options{ContainingTypes: []string{"UHealthComponent"}})
	assert.Empty(t, got)

	got = m.FindMembers("Destroy", Options{ContainingTypes: []string{"AActor"}})
	require.Len(t, got, 1)
	assert.Equal(t, "AActor", got[0].TypeName)
}

func TestSyntheticComponentAccessors(t *testing.T) {
	m, _, _ := testMatcher(t)
	got := m.FindMembers("Get", Options{Fuzzy: true, ContainingType: "UHealthComponent"})
	var synthetic []string
	for _, match := range got {
		if match.Synthetic {
			synthetic = append(synthetic, match.Name)
			assert.Equal(t, ReasonSyntheticComponent, match.Reason)
		}
	}
	assert.ElementsMatch(t, []string{"Get", "GetOrCreate"}, synthetic)

	// A non-component containing type earns no synthetic accessors.
	got = m.FindMembers("Get", Options{Fuzzy: true, ContainingType: "AActor"})
	for _, match := range got {
		assert.False(t, match.Synthetic)
	}
}

func TestAssetExactAndFuzzy(t *testing.T) {
	m, _, _ := testMatcher(t)
	got := m.FindAssets("BP_Hero", Options{})
	require.Len(t, got, 1)
	assert.Equal(t, ReasonExact, got[0].Reason)

	// The BlueprintGeneratedClass suffix is trimmed on miss.
	got = m.FindAssets("BP_Hero_C", Options{})
	require.Len(t, got, 1)
	assert.Equal(t, "BP_Hero", got[0].Name)

	got = m.FindAssets("Hero", Options{Fuzzy: true})
	require.NotEmpty(t, got)
	assert.Equal(t, "BP_Hero", got[0].Name)
}

func TestFindFilesBasename(t *testing.T) {
	m, _, _ := testMatcher(t)
	got := m.FindFiles("Actor", Options{})
	require.NotEmpty(t, got)
	// Exact basename (extension ignored) sorts ahead of prefix matches.
	assert.Contains(t, []string{"/e/Actor.h", "/e/Actor.cpp"}, got[0].Path)

	got = m.FindFiles("Actor", Options{Language: storage.LanguageAngelScript})
	assert.Empty(t, got)
}

func TestTrigramThreshold(t *testing.T) {
	assert.Equal(t, 1, trigramThreshold(1))
	assert.Equal(t, 2, trigramThreshold(2))
	assert.Equal(t, 2, trigramThreshold(3))
	assert.Equal(t, 3, trigramThreshold(4))
	assert.Equal(t, 6, trigramThreshold(8))
}
