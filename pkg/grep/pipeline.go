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

// Package grep orchestrates content search: query construction for the
// external full-text engine, parallel source and asset calls, multi-word
// proximity filtering, rank merging with index-derived signals, and a
// bounded LRU+TTL result cache.
package grep

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	qerr "github.com/kraklabs/ueindex/internal/errors"
	"github.com/kraklabs/ueindex/pkg/storage"
)

// assetTreePrefix is where the mirror keeps synthetic asset text files.
const assetTreePrefix = "_assets/"

// Request is one grep call.
type Request struct {
	Pattern       string
	Project       string
	Language      string
	CaseSensitive bool
	MaxResults    int
	ContextLines  int
	Grouped       bool
	IncludeAssets bool
	Symbols       bool
}

func (r Request) limit() int {
	if r.MaxResults <= 0 {
		return 50
	}
	return r.MaxResults
}

// Hit is one ranked match.
type Hit struct {
	Project string   `json:"project,omitempty"`
	Path    string   `json:"path"`
	Line    int      `json:"line"`
	Text    string   `json:"text"`
	Before  []string `json:"before,omitempty"`
	After   []string `json:"after,omitempty"`
	Score   float64  `json:"score"`
	Symbol  string   `json:"symbol,omitempty"`
}

// FileGroup shapes grouped responses.
type FileGroup struct {
	Path    string `json:"path"`
	Matches []Hit  `json:"matches"`
}

// Response is the pipeline output.
type Response struct {
	Results      []Hit       `json:"results,omitempty"`
	Groups       []FileGroup `json:"groups,omitempty"`
	Assets       []Hit       `json:"assets,omitempty"`
	TotalMatches int         `json:"totalMatches"`
	Truncated    bool        `json:"truncated"`
	Hints        []string    `json:"hints,omitempty"`
}

// SymbolResolver maps a hit location back to an indexed symbol, the
// cross-reference ranking signal. The store implements it.
type SymbolResolver interface {
	FileByProjectRelative(project, relative string) (*storage.File, error)
	SymbolAtLine(path string, line int) (string, error)
}

// Pipeline executes grep requests.
type Pipeline struct {
	engine   Engine
	resolver SymbolResolver
	cache    *Cache
	logger   *slog.Logger
	budget   time.Duration
}

// NewPipeline wires the grep pipeline. budget is the wall-clock limit for a
// whole request (default 30s).
func NewPipeline(engine Engine, resolver SymbolResolver, cache *Cache, budget time.Duration, logger *slog.Logger) *Pipeline {
	if budget <= 0 {
		budget = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = NewCache(0, 0)
	}
	return &Pipeline{engine: engine, resolver: resolver, cache: cache, logger: logger, budget: budget}
}

// InvalidateCache drops cached responses; the ingest path calls this.
func (p *Pipeline) InvalidateCache() {
	p.cache.Invalidate()
}

// languageFileFilter maps a language filter to the engine's file-name
// regex atom.
func languageFileFilter(language string) (string, error) {
	switch language {
	case "":
		return "", nil
	case storage.LanguageAngelScript:
		return `file:\.as$`, nil
	case storage.LanguageCpp:
		return `file:\.(h|hpp|hxx|c|cc|cpp|cxx|inl)$`, nil
	case storage.LanguageConfig:
		return `file:\.(ini|cfg)$`, nil
	case storage.LanguageAsset:
		return "", qerr.NewUnsupportedLanguage(language, "grep")
	default:
		return "", qerr.NewInvalidParameter("language", fmt.Sprintf("unknown language %q", language))
	}
}

// buildQuery assembles the engine query string for the source or the asset
// side of a request.
func buildQuery(req Request, assets bool) (string, error) {
	var parts []string

	pattern := req.Pattern
	if req.Symbols {
		pattern = "sym:" + pattern
	}
	parts = append(parts, pattern)

	if req.CaseSensitive {
		parts = append(parts, "case:yes")
	} else {
		parts = append(parts, "case:no")
	}

	if assets {
		parts = append(parts, "file:^"+assetTreePrefix)
	} else {
		parts = append(parts, "-file:^"+assetTreePrefix)
		filter, err := languageFileFilter(req.Language)
		if err != nil {
			return "", err
		}
		if filter != "" {
			parts = append(parts, filter)
		}
		if req.Project != "" {
			parts = append(parts, "file:^"+req.Project+"/")
		}
	}
	return strings.Join(parts, " "), nil
}

// Run executes the pipeline: cache probe, parallel engine calls, proximity
// filter, rank merge, shaping.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Response, error) {
	if req.Pattern == "" {
		return nil, qerr.NewInvalidParameter("pattern", "pattern must not be empty")
	}
	if strings.Contains(req.Pattern, "\n") {
		return nil, qerr.NewInvalidParameter("pattern",
			"contains \\n which line-based grep cannot match")
	}

	key := p.cache.Key(req)
	if cached := p.cache.Get(key); cached != nil {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.budget)
	defer cancel()

	sourceQuery, err := buildQuery(req, false)
	if err != nil {
		return nil, err
	}
	opts := EngineOptions{MaxDocs: req.limit() * 4, NumContextLines: req.ContextLines}

	var sourceResult, assetResult *EngineResult
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		sourceResult, err = p.engine.Search(egCtx, sourceQuery, opts)
		return err
	})
	if req.IncludeAssets {
		assetQuery, err := buildQuery(req, true)
		if err != nil {
			return nil, err
		}
		eg.Go(func() error {
			var err error
			assetResult, err = p.engine.Search(egCtx, assetQuery, opts)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		// Engine failures are cached neither as success nor failure.
		return nil, err
	}

	words := literalWords(req.Pattern)
	hits := p.collect(sourceResult, req, words)
	resp := &Response{TotalMatches: len(hits)}
	if len(hits) > req.limit() {
		hits = hits[:req.limit()]
		resp.Truncated = true
	}
	if req.Grouped {
		resp.Groups = groupByFile(hits)
	} else {
		resp.Results = hits
	}
	if assetResult != nil {
		assetHits := p.collect(assetResult, req, words)
		if len(assetHits) > req.limit() {
			assetHits = assetHits[:req.limit()]
			resp.Truncated = true
		}
		resp.Assets = assetHits
		resp.TotalMatches += len(assetHits)
	}
	if resp.TotalMatches == 0 {
		resp.Hints = zeroResultHints(req)
	}

	p.cache.Put(key, resp)
	return resp, nil
}

// collect converts an engine result into ranked, filtered, sorted hits.
func (p *Pipeline) collect(result *EngineResult, req Request, words []string) []Hit {
	if result == nil {
		return nil
	}
	now := time.Now()
	var hits []Hit
	for _, file := range result.Files {
		display := strings.ReplaceAll(file.FileName, "\\", "/")
		project, relative := splitMirrorPath(display)
		hitPath := display
		if strings.HasPrefix(display, assetTreePrefix) {
			hitPath = relative
		}

		var mtime int64
		var absPath string
		if p.resolver != nil && !strings.HasPrefix(display, assetTreePrefix) {
			if f, err := p.resolver.FileByProjectRelative(project, relative); err == nil && f != nil {
				mtime = f.Mtime
				absPath = f.Path
			}
		}

		fileMatches := len(file.LineMatches)
		for _, lm := range file.LineMatches {
			h := Hit{
				Project: project,
				Path:    hitPath,
				Line:    lm.LineNumber,
				Text:    strings.TrimRight(string(lm.Line), "\r\n"),
				Before:  splitContext(lm.Before),
				After:   splitContext(lm.After),
			}
			if len(words) > 1 && !multiWordProximity(words, h, req.CaseSensitive) {
				continue
			}
			var symbol string
			if p.resolver != nil && absPath != "" {
				symbol, _ = p.resolver.SymbolAtLine(absPath, lm.LineNumber)
			}
			rankHit(&h, fileMatches, mtime, symbol, now)
			hits = append(hits, h)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Path != hits[j].Path {
			return hits[i].Path < hits[j].Path
		}
		return hits[i].Line < hits[j].Line
	})
	return hits
}

// splitMirrorPath separates the leading project segment of a mirror path.
func splitMirrorPath(display string) (project, relative string) {
	if strings.HasPrefix(display, assetTreePrefix) {
		return "", strings.TrimPrefix(display, assetTreePrefix)
	}
	if i := strings.IndexByte(display, '/'); i > 0 {
		return display[:i], display[i+1:]
	}
	return "", display
}

func splitContext(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}

func groupByFile(hits []Hit) []FileGroup {
	order := []string{}
	byFile := map[string][]Hit{}
	for _, h := range hits {
		if _, seen := byFile[h.Path]; !seen {
			order = append(order, h.Path)
		}
		byFile[h.Path] = append(byFile[h.Path], h)
	}
	out := make([]FileGroup, 0, len(order))
	for _, path := range order {
		out = append(out, FileGroup{Path: path, Matches: byFile[path]})
	}
	return out
}

func zeroResultHints(req Request) []string {
	var hints []string
	if req.Project != "" {
		hints = append(hints, "try removing the project filter")
	}
	if req.Language != "" {
		hints = append(hints, "try removing the language filter")
	}
	if req.CaseSensitive {
		hints = append(hints, "try caseSensitive=false")
	}
	if !req.IncludeAssets {
		hints = append(hints, "try includeAssets=true to search asset text")
	}
	if len(hints) == 0 {
		hints = append(hints, "try a shorter or simpler pattern")
	}
	return hints
}
