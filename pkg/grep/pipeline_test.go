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

package grep

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerr "github.com/kraklabs/ueindex/internal/errors"
	"github.com/kraklabs/ueindex/pkg/storage"
)

// fakeEngine serves canned results and records the queries it saw.
type fakeEngine struct {
	results map[string]*EngineResult // keyed by substring of the query
	calls   atomic.Int64
	mu      sync.Mutex
	queries []string
	err     error
}

func (f *fakeEngine) Search(_ context.Context, query string, _ EngineOptions) (*EngineResult, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for needle, result := range f.results {
		if strings.Contains(query, needle) {
			return result, nil
		}
	}
	return &EngineResult{}, nil
}

func engineResult(file string, lines ...EngineLineMatch) *EngineResult {
	return &EngineResult{Files: []EngineFile{{FileName: file, LineMatches: lines}}}
}

func TestBuildQuery(t *testing.T) {
	q, err := buildQuery(Request{Pattern: "DestroyActor", Project: "Game", Language: storage.LanguageCpp, CaseSensitive: true}, false)
	require.NoError(t, err)
	assert.Contains(t, q, "DestroyActor")
	assert.Contains(t, q, "case:yes")
	assert.Contains(t, q, `file:\.(h|hpp|hxx|c|cc|cpp|cxx|inl)$`)
	assert.Contains(t, q, "file:^Game/")
	assert.Contains(t, q, "-file:^_assets/")

	q, err = buildQuery(Request{Pattern: "Destroy", Symbols: true}, false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(q, "sym:Destroy"))

	q, err = buildQuery(Request{Pattern: "Hero"}, true)
	require.NoError(t, err)
	assert.Contains(t, q, "file:^_assets/")
	assert.NotContains(t, q, "-file:^_assets/")
}

func TestGrepAssetLanguageUnsupported(t *testing.T) {
	p := NewPipeline(&fakeEngine{}, nil, nil, 0, nil)
	_, err := p.Run(context.Background(), Request{Pattern: "x", Language: storage.LanguageAsset})
	var qe *qerr.QueryError
	require.True(t, stderrors.As(err, &qe))
	assert.Equal(t, qerr.KindUnsupportedLanguage, qe.Kind)
}

func TestMultiWordProximitySameLine(t *testing.T) {
	engine := &fakeEngine{results: map[string]*EngineResult{
		"class AActor": engineResult("Engine/Actor.h",
			EngineLineMatch{LineNumber: 5, Line: []byte("class AActor : public UObject")},
			EngineLineMatch{LineNumber: 30, Line: []byte("AActor* Spawn();")},
		),
	}}
	p := NewPipeline(engine, nil, nil, 0, nil)

	resp, err := p.Run(context.Background(), Request{Pattern: "class AActor"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 5, resp.Results[0].Line)
	// The line with only "AActor" and no linking context was filtered.
	assert.Equal(t, 1, resp.TotalMatches)
}

func TestMultiWordProximityContextWindow(t *testing.T) {
	hit := Hit{
		Text:   "    AActor* Owner;",
		Before: []string{"class Inventory {"},
	}
	assert.True(t, multiWordProximity([]string{"class", "AActor"}, hit, false))

	lone := Hit{Text: "AActor* Owner;"}
	assert.False(t, multiWordProximity([]string{"class", "AActor"}, lone, false))
}

func TestDefinitionLineOutranksUsage(t *testing.T) {
	engine := &fakeEngine{results: map[string]*EngineResult{
		"AActor": engineResult("Engine/Actor.h",
			EngineLineMatch{LineNumber: 90, Line: []byte("    DoThing(MyActor);")},
			EngineLineMatch{LineNumber: 12, Line: []byte("class AActor : public UObject")},
		),
	}}
	p := NewPipeline(engine, nil, nil, 0, nil)

	resp, err := p.Run(context.Background(), Request{Pattern: "AActor"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 12, resp.Results[0].Line)
	assert.Greater(t, resp.Results[0].Score, resp.Results[1].Score)
}

func TestCacheShortCircuitsAndInvalidates(t *testing.T) {
	engine := &fakeEngine{results: map[string]*EngineResult{
		"Destroy": engineResult("Engine/Actor.h",
			EngineLineMatch{LineNumber: 3, Line: []byte("void Destroy();")}),
	}}
	p := NewPipeline(engine, nil, NewCache(10, time.Minute), 0, nil)

	req := Request{Pattern: "Destroy"}
	_, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), req)
	require.NoError(t, err)
	assert.EqualValues(t, 1, engine.calls.Load())

	// A different parameter tuple misses.
	_, err = p.Run(context.Background(), Request{Pattern: "Destroy", Grouped: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, engine.calls.Load())

	p.InvalidateCache()
	_, err = p.Run(context.Background(), req)
	require.NoError(t, err)
	assert.EqualValues(t, 3, engine.calls.Load())
}

func TestEngineFailureNotCached(t *testing.T) {
	engine := &fakeEngine{err: qerr.NewNotAvailable("full-text engine", stderrors.New("refused"))}
	p := NewPipeline(engine, nil, NewCache(10, time.Minute), 0, nil)

	_, err := p.Run(context.Background(), Request{Pattern: "x"})
	var qe *qerr.QueryError
	require.True(t, stderrors.As(err, &qe))
	assert.Equal(t, qerr.KindNotAvailable, qe.Kind)

	engine.err = nil
	engine.results = map[string]*EngineResult{"x": {}}
	_, err = p.Run(context.Background(), Request{Pattern: "x"})
	require.NoError(t, err)
	// Second call reached the engine: the failure was not cached.
	assert.EqualValues(t, 2, engine.calls.Load())
}

func TestAssetsSearchedInParallel(t *testing.T) {
	engine := &fakeEngine{results: map[string]*EngineResult{
		" file:^_assets/": engineResult("_assets/Game/BP_Hero.uasset.txt",
			EngineLineMatch{LineNumber: 1, Line: []byte("ParentClass=Actor")}),
	}}
	p := NewPipeline(engine, nil, nil, 0, nil)

	resp, err := p.Run(context.Background(), Request{Pattern: "ParentClass", IncludeAssets: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, engine.calls.Load())
	require.Len(t, resp.Assets, 1)
	assert.Equal(t, "Game/BP_Hero.uasset.txt", resp.Assets[0].Path)
}

func TestNewlinePatternRejected(t *testing.T) {
	p := NewPipeline(&fakeEngine{}, nil, nil, 0, nil)
	_, err := p.Run(context.Background(), Request{Pattern: "a\nb"})
	var qe *qerr.QueryError
	require.True(t, stderrors.As(err, &qe))
	assert.Equal(t, qerr.KindInvalidParameter, qe.Kind)
}

func TestZeroResultHints(t *testing.T) {
	p := NewPipeline(&fakeEngine{}, nil, nil, 0, nil)
	resp, err := p.Run(context.Background(), Request{Pattern: "NothingHere", Project: "Game"})
	require.NoError(t, err)
	assert.Zero(t, resp.TotalMatches)
	assert.NotEmpty(t, resp.Hints)
}

func TestGroupedShaping(t *testing.T) {
	engine := &fakeEngine{results: map[string]*EngineResult{
		"Tick": {Files: []EngineFile{
			{FileName: "Engine/Actor.h", LineMatches: []EngineLineMatch{
				{LineNumber: 1, Line: []byte("virtual void Tick(float Dt);")},
				{LineNumber: 9, Line: []byte("// Tick helpers")},
			}},
			{FileName: "Game/Hero.h", LineMatches: []EngineLineMatch{
				{LineNumber: 4, Line: []byte("void Tick(float Dt) override;")},
			}},
		}},
	}}
	p := NewPipeline(engine, nil, nil, 0, nil)

	resp, err := p.Run(context.Background(), Request{Pattern: "Tick", Grouped: true})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	require.Len(t, resp.Groups, 2)
	total := 0
	for _, g := range resp.Groups {
		total += len(g.Matches)
	}
	assert.Equal(t, 3, total)
}

func TestRecencyScore(t *testing.T) {
	now := time.Now()
	fresh := recencyScore(now.Add(-time.Hour).UnixMilli(), now)
	old := recencyScore(now.Add(-300*24*time.Hour).UnixMilli(), now)
	ancient := recencyScore(now.Add(-400*24*time.Hour).UnixMilli(), now)
	assert.Greater(t, fresh, old)
	assert.Zero(t, ancient)
	assert.Zero(t, recencyScore(0, now))
	assert.LessOrEqual(t, fresh, 10.0)
}

func TestCacheEviction(t *testing.T) {
	c := NewCache(2, time.Minute)
	k1 := c.Key(Request{Pattern: "a"})
	k2 := c.Key(Request{Pattern: "b"})
	k3 := c.Key(Request{Pattern: "c"})
	c.Put(k1, &Response{})
	c.Put(k2, &Response{})
	c.Put(k3, &Response{})
	assert.Equal(t, 2, c.Len())
	assert.Nil(t, c.Get(k1))
	assert.NotNil(t, c.Get(k3))
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCache(10, 10*time.Millisecond)
	k := c.Key(Request{Pattern: "a"})
	c.Put(k, &Response{})
	require.NotNil(t, c.Get(k))
	time.Sleep(20 * time.Millisecond)
	assert.Nil(t, c.Get(k))
}
