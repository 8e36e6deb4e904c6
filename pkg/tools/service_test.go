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

package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerr "github.com/kraklabs/ueindex/internal/errors"
	itest "github.com/kraklabs/ueindex/internal/testing"
	"github.com/kraklabs/ueindex/pkg/graph"
	"github.com/kraklabs/ueindex/pkg/index"
	"github.com/kraklabs/ueindex/pkg/storage"
)

type serviceEnv struct {
	store *storage.Store
	ix    *index.Index
	g     *graph.Graph
	svc   *Service
}

func setupService(t *testing.T) *serviceEnv {
	t.Helper()
	s, ix, g := itest.SetupTestRuntime(t)
	svc := NewService(s, ix, g, nil, []string{"engine", "game"}, nil)
	return &serviceEnv{store: s, ix: ix, g: g, svc: svc}
}

func (env *serviceEnv) seedActorHierarchy(t *testing.T) {
	t.Helper()
	itest.SeedFile(t, env.store, env.ix, itest.FileFixture{
		Path:    "/ue/Engine/Actor.h",
		Project: "engine",
		Module:  "Engine.Source",
		Types:   []storage.TypeRecord{{Name: "AActor", Kind: "class", Line: 20}},
		Members: []storage.MemberRecord{
			{Name: "GetOwner", MemberKind: "function", TypeName: "AActor", Line: 31},
			{Name: "Destroy", MemberKind: "function", TypeName: "AActor", Line: 44},
		},
	})
	itest.SeedFile(t, env.store, env.ix, itest.FileFixture{
		Path:    "/game/Source/Hero.h",
		Project: "game",
		Module:  "Source",
		Types:   []storage.TypeRecord{{Name: "AHero", Kind: "class", Parent: "AActor", Line: 8}},
		Members: []storage.MemberRecord{{Name: "Respawn", MemberKind: "function", TypeName: "AHero", Line: 15}},
	})
	env.g.Rebuild(env.ix)
}

func TestDispatchFindTypeExact(t *testing.T) {
	env := setupService(t)
	env.seedActorHierarchy(t)

	result, err := env.svc.Dispatch(context.Background(), FindTypeQuery{Name: "AActor"})
	require.NoError(t, err)
	out := result.(FindTypeResult)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "AActor", out.Results[0].Name)
	assert.Equal(t, "exact", out.Results[0].Reason)
}

func TestDispatchRejectsUnknownProject(t *testing.T) {
	env := setupService(t)
	_, err := env.svc.Dispatch(context.Background(), FindTypeQuery{Name: "AActor", Project: "nope"})
	var qe *qerr.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, qerr.KindUnknownProject, qe.Kind)
	assert.Contains(t, qe.Hints, "known project: engine")
}

func TestDispatchFindChildrenThroughHierarchy(t *testing.T) {
	env := setupService(t)
	env.seedActorHierarchy(t)

	result, err := env.svc.Dispatch(context.Background(), FindChildrenQuery{Parent: "AActor", Recursive: true})
	require.NoError(t, err)
	out := result.(FindChildrenResult)
	assert.True(t, out.ParentFound)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "AHero", out.Results[0].Name)
}

func TestDispatchMemberHierarchyLookup(t *testing.T) {
	env := setupService(t)
	env.seedActorHierarchy(t)

	// GetOwner lives on AActor; the hierarchy flag finds it from AHero.
	result, err := env.svc.Dispatch(context.Background(), FindMemberQuery{
		Name:                    "GetOwner",
		ContainingType:          "AHero",
		ContainingTypeHierarchy: true,
	})
	require.NoError(t, err)
	out := result.(FindMemberResult)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "GetOwner", out.Results[0].Name)

	// Without the flag the member is out of scope.
	result, err = env.svc.Dispatch(context.Background(), FindMemberQuery{
		Name:           "GetOwner",
		ContainingType: "AHero",
	})
	require.NoError(t, err)
	assert.Empty(t, result.(FindMemberResult).Results)
}

func TestZeroResultHintsCarryGuidance(t *testing.T) {
	env := setupService(t)
	env.seedActorHierarchy(t)

	result, err := env.svc.Dispatch(context.Background(), FindTypeQuery{Name: "AActer", Project: "engine"})
	require.NoError(t, err)
	out := result.(FindTypeResult)
	assert.Empty(t, out.Results)
	assert.Contains(t, out.Hints, "try fuzzy=true for approximate matching")
	assert.Contains(t, out.Hints, "try removing the project filter")
}

func TestExplainTypeAggregatesMembersAndChildren(t *testing.T) {
	env := setupService(t)
	env.seedActorHierarchy(t)

	result, err := env.svc.Dispatch(context.Background(), ExplainTypeQuery{Name: "AActor"})
	require.NoError(t, err)
	out := result.(ExplainTypeResult)
	require.NotNil(t, out.Type)
	assert.Equal(t, "AActor", out.Type.Name)
	assert.Len(t, out.Members, 2)
	require.NotNil(t, out.Children)
	assert.Equal(t, 1, out.Children.TotalChildren)
}

// The memory path and the worker store path must agree on what they
// return for the same query.
func TestMemoryAndStoreAnswersAgree(t *testing.T) {
	env := setupService(t)
	env.seedActorHierarchy(t)

	queries := []Query{
		FindTypeQuery{Name: "AActor"},
		FindTypeQuery{Name: "Actor"}, // prefix-variant path
		FindChildrenQuery{Parent: "AActor", Recursive: true},
		FindFileQuery{Filename: "Hero.h"},
		ListModulesQuery{},
		BrowseModuleQuery{Module: "Source"},
	}
	for _, q := range queries {
		memResult, err := env.svc.answer(context.Background(), q)
		require.NoError(t, err, "memory answer for %T", q)
		storeResult, err := answerFromStore(env.store, q)
		require.NoError(t, err, "store answer for %T", q)

		switch mem := memResult.(type) {
		case FindTypeResult:
			st := storeResult.(FindTypeResult)
			require.Equal(t, len(mem.Results), len(st.Results), "result count for %+v", q)
			for i := range mem.Results {
				assert.Equal(t, mem.Results[i].Name, st.Results[i].Name)
				assert.Equal(t, mem.Results[i].FilePath, st.Results[i].FilePath)
				assert.Equal(t, mem.Results[i].Reason, st.Results[i].Reason)
			}
		case FindChildrenResult:
			st := storeResult.(FindChildrenResult)
			assert.Equal(t, mem.TotalChildren, st.TotalChildren)
			assert.Equal(t, mem.ParentFound, st.ParentFound)
		case FindFileResult:
			st := storeResult.(FindFileResult)
			require.Equal(t, len(mem.Results), len(st.Results))
			for i := range mem.Results {
				assert.Equal(t, mem.Results[i].Path, st.Results[i].Path)
			}
		case ListModulesResult:
			st := storeResult.(ListModulesResult)
			assert.ElementsMatch(t, mem.Modules, st.Modules)
		case BrowseModuleResult:
			st := storeResult.(BrowseModuleResult)
			require.Equal(t, len(mem.Files), len(st.Files))
		}
	}
}

func TestFuzzyRankingEndToEnd(t *testing.T) {
	env := setupService(t)
	itest.SeedFile(t, env.store, env.ix, itest.FileFixture{
		Path:    "/ue/Engine/Actors.h",
		Project: "engine",
		Types: []storage.TypeRecord{
			{Name: "Actor", Kind: "class", Line: 1},
			{Name: "AActor", Kind: "class", Line: 10},
			{Name: "UActor", Kind: "class", Line: 20},
		},
	})
	env.ix.RefreshSorted()

	result, err := env.svc.Dispatch(context.Background(), FindTypeQuery{Name: "AActor", Fuzzy: true})
	require.NoError(t, err)
	out := result.(FindTypeResult)
	require.GreaterOrEqual(t, len(out.Results), 3)
	assert.Equal(t, "AActor", out.Results[0].Name)
	assert.Equal(t, "Actor", out.Results[1].Name)
	assert.Equal(t, "UActor", out.Results[2].Name)
}
