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

package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/ueindex/internal/config"
	"github.com/kraklabs/ueindex/internal/mirror"
	itest "github.com/kraklabs/ueindex/internal/testing"
	"github.com/kraklabs/ueindex/pkg/graph"
	"github.com/kraklabs/ueindex/pkg/index"
	"github.com/kraklabs/ueindex/pkg/ingestion"
	"github.com/kraklabs/ueindex/pkg/storage"
	"github.com/kraklabs/ueindex/pkg/tools"
)

type serverEnv struct {
	store  *storage.Store
	ix     *index.Index
	g      *graph.Graph
	server *httptest.Server
}

func setupServer(t *testing.T) *serverEnv {
	t.Helper()
	s, ix, g := itest.SetupTestRuntime(t)

	cfg := &config.Config{
		Projects: []config.Project{
			{Name: "engine", Paths: []string{"/ue/Engine"}, Language: "cpp"},
			{Name: "game", Paths: []string{"/game"}, Language: "cpp"},
		},
	}
	m, err := mirror.New(t.TempDir())
	require.NoError(t, err)
	ing := ingestion.New(s, ix, g, m, nil, ingestion.WatcherBodyCap, nil)
	svc := tools.NewService(s, ix, g, nil, cfg.ProjectNames(), nil)

	srv := New(Options{
		Config:   cfg,
		Service:  svc,
		Ingestor: ing,
		Store:    s,
		Index:    ix,
		Graph:    g,
		Version:  "test",
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &serverEnv{store: s, ix: ix, g: g, server: ts}
}

func getJSON(t *testing.T, env *serverEnv, path string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(env.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func postJSON(t *testing.T, env *serverEnv, path string, payload any, out any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(env.server.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestFindTypePrefixVariantEndToEnd(t *testing.T) {
	env := setupServer(t)
	itest.SeedFile(t, env.store, env.ix, itest.FileFixture{
		Path:    "/game/Source/GameMode.h",
		Project: "game",
		Types:   []storage.TypeRecord{{Name: "AEmbarkGameMode", Kind: "class", Parent: "AGameModeBase", Line: 9}},
	})

	var out struct {
		Results []struct {
			Name        string `json:"name"`
			MatchReason string `json:"matchReason"`
			FilePath    string `json:"filePath"`
		} `json:"results"`
	}
	resp := getJSON(t, env, "/find-type?name=EmbarkGameMode", &out)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "AEmbarkGameMode", out.Results[0].Name)
	assert.Equal(t, "prefix-variant", out.Results[0].MatchReason)
	// Normalized: project prefix stripped, project name prepended.
	assert.Equal(t, "game/Source/GameMode.h", out.Results[0].FilePath)
}

func TestIngestThenQuerySeesEffects(t *testing.T) {
	env := setupServer(t)

	batch := ingestion.Batch{
		Files: []ingestion.FileUpsert{{
			Path:     "/game/Source/Hero.h",
			Project:  "game",
			Module:   "Source",
			Language: "cpp",
			Mtime:    100,
			Types:    []storage.TypeRecord{{Name: "AHero", Kind: "class", Parent: "AActor", Line: 5}},
			Members:  []storage.MemberRecord{{Name: "Respawn", MemberKind: "function", TypeName: "AHero", Line: 11}},
		}},
	}
	var result ingestion.Result
	resp := postJSON(t, env, "/internal/ingest", batch, &result)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, result.Processed)
	assert.Empty(t, result.Errors)

	var out struct {
		Results []struct {
			Name string `json:"name"`
		} `json:"results"`
	}
	getJSON(t, env, "/find-member?name=Respawn&containingType=AHero", &out)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "Respawn", out.Results[0].Name)

	// Idempotent re-ingest: the mtime guard skips the file.
	postJSON(t, env, "/internal/ingest", batch, &result)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Skipped)
}

func TestCrossLanguageChildrenOverHTTP(t *testing.T) {
	env := setupServer(t)
	itest.SeedFile(t, env.store, env.ix, itest.FileFixture{
		Path:    "/ue/Engine/Actor.h",
		Project: "engine",
		Types:   []storage.TypeRecord{{Name: "AActor", Kind: "class", Line: 1}},
	})
	itest.SeedAsset(t, env.store, env.ix, storage.Asset{
		Path:        "/game/Content/BP_Hero.uasset",
		Name:        "BP_Hero",
		ContentPath: "/Game/BP_Hero",
		Folder:      "/Game",
		Project:     "game",
		Extension:   "uasset",
		Mtime:       1,
		AssetClass:  "Blueprint",
		ParentClass: "Actor",
	})
	env.g.Rebuild(env.ix)

	var out struct {
		Results []struct {
			Name   string `json:"name"`
			Source string `json:"source"`
		} `json:"results"`
		ParentFound bool `json:"parentFound"`
	}
	getJSON(t, env, "/find-children?parent=AActor&recursive=true", &out)
	assert.True(t, out.ParentFound)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "BP_Hero", out.Results[0].Name)
	assert.Equal(t, "asset", out.Results[0].Source)
}

func TestMissingNameIsInvalidParameter(t *testing.T) {
	env := setupServer(t)
	var out struct {
		Kind string `json:"kind"`
	}
	resp := getJSON(t, env, "/find-type?name=", &out)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "InvalidParameter", out.Kind)
}

func TestUnknownProjectCarriesKnownList(t *testing.T) {
	env := setupServer(t)
	var out struct {
		Kind  string   `json:"kind"`
		Hints []string `json:"hints"`
	}
	resp := getJSON(t, env, "/find-type?name=AActor&project="+url.QueryEscape("nope"), &out)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "UnknownProject", out.Kind)
	assert.Contains(t, out.Hints, "known project: engine")
	assert.Contains(t, out.Hints, "known project: game")
}

func TestGrepWithoutEngineIsNotAvailable(t *testing.T) {
	env := setupServer(t)
	var out struct {
		Kind string `json:"kind"`
	}
	resp := getJSON(t, env, "/grep?pattern=Destroy", &out)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "NotAvailable", out.Kind)
}

func TestBatchWhitelistAndLimit(t *testing.T) {
	env := setupServer(t)
	itest.SeedFile(t, env.store, env.ix, itest.FileFixture{
		Path:    "/game/Source/Hero.h",
		Project: "game",
		Types:   []storage.TypeRecord{{Name: "AHero", Kind: "class", Line: 3}},
	})

	var items []struct {
		Result json.RawMessage `json:"result"`
		Error  map[string]any  `json:"error"`
	}
	resp := postJSON(t, env, "/batch", map[string]any{
		"queries": []map[string]any{
			{"method": "findType", "args": map[string]any{"name": "AHero"}},
			{"method": "stats"},
		},
	}, &items)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, items, 2)
	assert.NotNil(t, items[0].Result)
	require.NotNil(t, items[1].Error, "stats is not batch-whitelisted")
	assert.Equal(t, "InvalidParameter", items[1].Error["kind"])

	// Over the entry limit: the whole batch is rejected.
	over := make([]map[string]any, 11)
	for i := range over {
		over[i] = map[string]any{"method": "listModules"}
	}
	var errOut struct {
		Kind string `json:"kind"`
	}
	resp = postJSON(t, env, "/batch", map[string]any{"queries": over}, &errOut)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "InvalidParameter", errOut.Kind)
}

func TestHeartbeatSurfacesInStatus(t *testing.T) {
	env := setupServer(t)
	resp := postJSON(t, env, "/internal/heartbeat", ingestion.Heartbeat{Source: "watcher-1", Language: "cpp"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Heartbeats []ingestion.Heartbeat `json:"heartbeats"`
		Loaded     bool                  `json:"loaded"`
	}
	getJSON(t, env, "/internal/status", &out)
	require.Len(t, out.Heartbeats, 1)
	assert.Equal(t, "watcher-1", out.Heartbeats[0].Source)
	assert.True(t, out.Loaded)
}

func TestFileMtimesRoundTrip(t *testing.T) {
	env := setupServer(t)
	itest.SeedFile(t, env.store, env.ix, itest.FileFixture{
		Path: "/game/Source/Hero.h", Project: "game", Mtime: 4242,
	})
	var out struct {
		Mtimes map[string]int64 `json:"mtimes"`
	}
	getJSON(t, env, "/internal/file-mtimes?language=cpp", &out)
	assert.Equal(t, int64(4242), out.Mtimes["/game/Source/Hero.h"])
}

func TestHealthAndSummary(t *testing.T) {
	env := setupServer(t)
	var health struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	resp := getJSON(t, env, "/health", &health)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)

	var summary struct {
		Projects []string      `json:"projects"`
		Stats    storage.Stats `json:"stats"`
	}
	getJSON(t, env, "/summary", &summary)
	assert.Equal(t, []string{"engine", "game"}, summary.Projects)
}

func TestExplainTypeAggregates(t *testing.T) {
	env := setupServer(t)
	itest.SeedFile(t, env.store, env.ix, itest.FileFixture{
		Path:    "/game/Source/Hero.h",
		Project: "game",
		Types:   []storage.TypeRecord{{Name: "AHero", Kind: "class", Parent: "AActor", Line: 3}},
		Members: []storage.MemberRecord{
			{Name: "Respawn", MemberKind: "function", TypeName: "AHero", Line: 8},
			{Name: "Health", MemberKind: "property", TypeName: "AHero", Line: 12},
		},
	})

	var out struct {
		Type *struct {
			Name string `json:"name"`
		} `json:"type"`
		Members []struct {
			Name string `json:"name"`
		} `json:"members"`
	}
	getJSON(t, env, "/explain-type?name=AHero", &out)
	require.NotNil(t, out.Type)
	assert.Equal(t, "AHero", out.Type.Name)
	names := make([]string, 0, len(out.Members))
	for _, m := range out.Members {
		names = append(names, m.Name)
	}
	assert.ElementsMatch(t, []string{"Respawn", "Health"}, names)
}

func TestIngestDeleteCascadesOverHTTP(t *testing.T) {
	env := setupServer(t)

	postJSON(t, env, "/internal/ingest", ingestion.Batch{
		Files: []ingestion.FileUpsert{{
			Path: "/game/Source/X.h", Project: "game", Language: "cpp", Mtime: 1,
			Types: []storage.TypeRecord{{Name: "FWidget", Kind: "struct", Line: 2}},
		}},
	}, nil)

	var found struct {
		Results []json.RawMessage `json:"results"`
		Hints   []string          `json:"hints"`
	}
	getJSON(t, env, "/find-type?name=FWidget", &found)
	require.Len(t, found.Results, 1)

	postJSON(t, env, "/internal/ingest", ingestion.Batch{Deletes: []string{"/game/Source/X.h"}}, nil)

	getJSON(t, env, "/find-type?name=FWidget", &found)
	assert.Empty(t, found.Results)
	assert.NotEmpty(t, found.Hints, "zero-result responses carry hints")
}

func TestContextLinesAttachment(t *testing.T) {
	env := setupServer(t)
	body := []byte(strings.Join([]string{
		"#pragma once", "", "class AHero", "{", "public:", "    void Respawn();", "};",
	}, "\n"))
	postJSON(t, env, "/internal/ingest", ingestion.Batch{
		Files: []ingestion.FileUpsert{{
			Path: "/game/Source/Hero.h", Project: "game", Language: "cpp", Mtime: 1,
			Body:  body,
			Types: []storage.TypeRecord{{Name: "AHero", Kind: "class", Line: 3}},
		}},
	}, nil)

	var out struct {
		Results []struct {
			Context []string `json:"context"`
		} `json:"results"`
	}
	getJSON(t, env, "/find-type?name=AHero&contextLines=1", &out)
	require.Len(t, out.Results, 1)
	assert.Equal(t, []string{"", "class AHero", "{"}, out.Results[0].Context)
}

func TestMethodNotAllowedOnWrongVerb(t *testing.T) {
	env := setupServer(t)
	resp, err := http.Post(env.server.URL+"/find-type", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestQueryParamValidation(t *testing.T) {
	env := setupServer(t)
	for _, bad := range []string{
		"/find-type?name=A&fuzzy=banana",
		"/find-type?name=A&maxResults=-3",
		"/find-member?name=A&contextLines=x",
	} {
		var out struct {
			Kind string `json:"kind"`
		}
		resp := getJSON(t, env, bad, &out)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, fmt.Sprintf("url %s", bad))
		assert.Equal(t, "InvalidParameter", out.Kind)
	}
}
