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

// Package search implements name lookup over the in-memory index: exact
// match with UE prefix-variant fallback, and fuzzy match with three-phase
// candidate gathering (prefix scan, prefix-variant scan, trigram
// intersection) followed by camelCase-aware scoring.
package search

import (
	"math"
	"sort"
	"strings"

	"github.com/kraklabs/ueindex/internal/trigram"
	"github.com/kraklabs/ueindex/internal/uename"
	"github.com/kraklabs/ueindex/pkg/graph"
	"github.com/kraklabs/ueindex/pkg/index"
	"github.com/kraklabs/ueindex/pkg/storage"
)

// maxCandidates bounds the fuzzy gathering phases; scoring never sees more.
const maxCandidates = 200

// Matcher looks names up in the memory index and ranks them.
type Matcher struct {
	ix *index.Index
	g  *graph.Graph
}

// NewMatcher wires a matcher over the live index and inheritance graph.
func NewMatcher(ix *index.Index, g *graph.Graph) *Matcher {
	return &Matcher{ix: ix, g: g}
}

// Options narrow a lookup.
type Options struct {
	Fuzzy         bool
	Project       string
	Language      string
	Kind          string
	MemberKind    string
	MaxResults    int
	IncludeAssets bool

	// ContainingTypes restricts member hits to these owning type names.
	ContainingTypes []string
	// ContainingType is the original containing type, used for synthetic
	// component accessors.
	ContainingType string
}

func (o Options) limit() int {
	if o.MaxResults <= 0 {
		return 20
	}
	return o.MaxResults
}

// TypeMatch is a ranked type hit.
type TypeMatch struct {
	storage.TypeHit
	Score  float64 `json:"score"`
	Reason string  `json:"matchReason"`
}

// MemberMatch is a ranked member hit.
type MemberMatch struct {
	storage.MemberHit
	Score     float64 `json:"score"`
	Reason    string  `json:"matchReason"`
	Synthetic bool    `json:"synthetic,omitempty"`
}

// AssetMatch is a ranked asset hit.
type AssetMatch struct {
	storage.Asset
	Score  float64 `json:"score"`
	Reason string  `json:"matchReason"`
}

// FindTypes resolves a type name. Exact mode tries the name then its UE
// prefix variants, stopping at the first variant with hits; fuzzy mode runs
// the full candidate gathering and scoring pipeline.
func (m *Matcher) FindTypes(query string, opts Options) []TypeMatch {
	if opts.Fuzzy {
		return m.fuzzyTypes(query, opts)
	}
	return m.exactTypes(query, opts)
}

func (m *Matcher) exactTypes(query string, opts Options) []TypeMatch {
	var out []TypeMatch
	for _, variant := range uename.Variants(query) {
		ids := m.ix.IDsForName(index.EntityType, strings.ToLower(variant))
		for _, id := range ids {
			hit, ok := m.ix.TypeHit(id)
			if !ok || !typeHitAllowed(hit, opts) {
				continue
			}
			reason := ReasonExact
			if !strings.EqualFold(variant, query) {
				reason = ReasonPrefixVariant
			}
			out = append(out, TypeMatch{TypeHit: hit, Score: 1.0, Reason: reason})
		}
		if len(out) > 0 {
			break
		}
	}
	out = dedupTypes(out)
	sortTypeMatches(out)
	if len(out) > opts.limit() {
		out = out[:opts.limit()]
	}
	return out
}

func (m *Matcher) fuzzyTypes(query string, opts Options) []TypeMatch {
	ids := m.gather(index.EntityType, query, true)
	var out []TypeMatch
	for _, id := range ids {
		hit, ok := m.ix.TypeHit(id)
		if !ok || !typeHitAllowed(hit, opts) {
			continue
		}
		score, reason := scoreName(query, hit.Name)
		if score < typeScoreFloor {
			continue
		}
		score += kindWeight(hit.Kind) + depthBonus(hit.Depth)
		if score > 1.0 {
			score = 1.0
		}
		out = append(out, TypeMatch{TypeHit: hit, Score: score, Reason: reason})
	}
	out = dedupTypes(out)
	sortTypeMatches(out)
	if len(out) > opts.limit() {
		out = out[:opts.limit()]
	}
	return out
}

func typeHitAllowed(hit storage.TypeHit, opts Options) bool {
	if opts.Kind != "" && hit.Kind != opts.Kind {
		return false
	}
	if opts.Project != "" && hit.Project != opts.Project {
		return false
	}
	if opts.Language != "" && hit.Language != opts.Language {
		return false
	}
	return true
}

// dedupTypes collapses entries sharing (name, kind), preferring the one
// with a known parent, then a header-file path.
func dedupTypes(matches []TypeMatch) []TypeMatch {
	type key struct{ name, kind string }
	best := make(map[key]int, len(matches))
	var out []TypeMatch
	for _, match := range matches {
		k := key{match.Name, match.Kind}
		at, seen := best[k]
		if !seen {
			best[k] = len(out)
			out = append(out, match)
			continue
		}
		if preferType(match, out[at]) {
			out[at] = match
		}
	}
	return out
}

func preferType(a, b TypeMatch) bool {
	if (a.Parent != "") != (b.Parent != "") {
		return a.Parent != ""
	}
	if isHeader(a.FilePath) != isHeader(b.FilePath) {
		return isHeader(a.FilePath)
	}
	return a.Score > b.Score
}

func isHeader(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".h") || strings.HasSuffix(lower, ".hpp") || strings.HasSuffix(lower, ".hxx")
}

func sortTypeMatches(matches []TypeMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Name != matches[j].Name {
			return matches[i].Name < matches[j].Name
		}
		return matches[i].FilePath < matches[j].FilePath
	})
}

// FindMembers resolves a member name, optionally restricted to containing
// types, with specifier boosts and synthetic component accessors.
func (m *Matcher) FindMembers(query string, opts Options) []MemberMatch {
	allowed := map[string]struct{}{}
	for _, t := range opts.ContainingTypes {
		allowed[t] = struct{}{}
	}

	var out []MemberMatch
	consider := func(id int64) {
		hit, ok := m.ix.MemberHit(id)
		if !ok || !memberHitAllowed(hit, opts, allowed) {
			return
		}
		var score float64
		var reason string
		if opts.Fuzzy {
			score, reason = scoreName(query, hit.Name)
			if score < memberScoreFloor {
				return
			}
			score += specifierBoost(hit.Member)
			if score > 1.0 {
				score = 1.0
			}
		} else {
			if !strings.EqualFold(hit.Name, query) {
				return
			}
			score, reason = 1.0, ReasonExact
		}
		out = append(out, MemberMatch{MemberHit: hit, Score: score, Reason: reason})
	}

	if opts.Fuzzy {
		for _, id := range m.gather(index.EntityMember, query, false) {
			consider(id)
		}
	} else {
		for _, id := range m.ix.IDsForName(index.EntityMember, strings.ToLower(query)) {
			consider(id)
		}
	}

	out = append(out, m.syntheticComponentMembers(query, opts)...)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].FilePath < out[j].FilePath
	})
	if len(out) > opts.limit() {
		out = out[:opts.limit()]
	}
	return out
}

func memberHitAllowed(hit storage.MemberHit, opts Options, allowed map[string]struct{}) bool {
	if len(allowed) > 0 {
		if _, ok := allowed[hit.TypeName]; !ok {
			return false
		}
	}
	if opts.MemberKind != "" && hit.MemberKind != opts.MemberKind {
		return false
	}
	if opts.Project != "" && hit.Project != opts.Project {
		return false
	}
	if opts.Language != "" && hit.Language != opts.Language {
		return false
	}
	return true
}

// syntheticComponentMembers appends the Get / GetOrCreate accessors every
// component descendant carries, when the containing type inherits from
// UActorComponent and the query matches them.
func (m *Matcher) syntheticComponentMembers(query string, opts Options) []MemberMatch {
	if opts.ContainingType == "" || !m.inheritsFromComponent(opts.ContainingType) {
		return nil
	}
	ql := strings.ToLower(query)
	var out []MemberMatch
	for _, name := range []string{"Get", "GetOrCreate"} {
		nl := strings.ToLower(name)
		var score float64
		switch {
		case nl == ql:
			score = 1.0
		case strings.HasPrefix(nl, ql) && opts.Fuzzy:
			score = 0.95
		default:
			continue
		}
		out = append(out, MemberMatch{
			MemberHit: storage.MemberHit{
				Member:   storage.Member{Name: name, MemberKind: storage.MemberFunction, IsStatic: true},
				TypeName: opts.ContainingType,
			},
			Score:     score,
			Reason:    ReasonSyntheticComponent,
			Synthetic: true,
		})
	}
	return out
}

// inheritsFromComponent ascends the parent chain from name looking for
// UActorComponent, in prefixed or stripped form.
func (m *Matcher) inheritsFromComponent(name string) bool {
	const limit = 64 // cycle guard
	current := name
	for range limit {
		if current == "UActorComponent" || current == "ActorComponent" {
			return true
		}
		parent, ok := m.g.Parent(current)
		if !ok {
			parent, ok = m.g.Parent(uename.Strip(current))
			if !ok {
				return false
			}
		}
		current = parent
	}
	return false
}

// FindAssets resolves an asset name; exact by default, fuzzy on request.
func (m *Matcher) FindAssets(query string, opts Options) []AssetMatch {
	var out []AssetMatch
	consider := func(id int64) {
		asset, ok := m.ix.AssetByID(id)
		if !ok {
			return
		}
		if opts.Project != "" && asset.Project != opts.Project {
			return
		}
		var score float64
		var reason string
		if opts.Fuzzy {
			score, reason = scoreName(query, asset.Name)
			if score < typeScoreFloor {
				return
			}
		} else {
			if !strings.EqualFold(asset.Name, query) && !strings.EqualFold(uename.TrimBlueprintSuffix(query), asset.Name) {
				return
			}
			score, reason = 1.0, ReasonExact
		}
		out = append(out, AssetMatch{Asset: asset, Score: score, Reason: reason})
	}

	if opts.Fuzzy {
		for _, id := range m.gatherAssets(query) {
			consider(id)
		}
	} else {
		for _, id := range m.ix.IDsForName(index.EntityAsset, strings.ToLower(query)) {
			consider(id)
		}
		if len(out) == 0 {
			if trimmed := uename.TrimBlueprintSuffix(query); trimmed != query {
				for _, id := range m.ix.IDsForName(index.EntityAsset, strings.ToLower(trimmed)) {
					consider(id)
				}
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > opts.limit() {
		out = out[:opts.limit()]
	}
	return out
}

// gather runs the phased candidate collection for types and members:
// prefix scan, prefix-variant scan (types only), trigram intersection,
// substring fallback for sub-trigram queries. At most maxCandidates ids
// come back, first-seen order preserved.
func (m *Matcher) gather(kind index.EntityKind, query string, variants bool) []int64 {
	ql := strings.ToLower(query)
	seen := make(map[int64]struct{}, maxCandidates)
	var out []int64
	add := func(ids []int64) bool {
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
			if len(out) >= maxCandidates {
				return true
			}
		}
		return false
	}
	addNames := func(names []string) bool {
		for _, name := range names {
			if add(m.ix.IDsForName(kind, name)) {
				return true
			}
		}
		return false
	}

	// Phase 1: prefix scan.
	if addNames(m.ix.NamesWithPrefix(kind, ql, maxCandidates)) {
		return out
	}

	// Phase 2: prefix-variant scan over the stripped query.
	if variants {
		stripped := strings.ToLower(uename.Strip(query))
		for _, p := range uename.TypePrefixes {
			variant := strings.ToLower(p) + stripped
			if variant == ql {
				continue
			}
			if addNames(m.ix.NamesWithPrefix(kind, variant, maxCandidates-len(out))) {
				return out
			}
		}
	}

	// Phase 3: trigram intersection, or substring fallback for queries too
	// short to carry a trigram.
	queryTrigrams := trigram.ExtractString(ql)
	if len(queryTrigrams) == 0 {
		addNames(m.ix.NamesContaining(kind, ql, maxCandidates-len(out)))
		return out
	}
	need := trigramThreshold(len(queryTrigrams))
	counts := make(map[int64]int)
	for _, tri := range queryTrigrams {
		for _, id := range m.ix.IDsForTrigram(kind, tri) {
			counts[id]++
		}
	}
	matched := make([]int64, 0, len(counts))
	for id, n := range counts {
		if n >= need {
			matched = append(matched, id)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i] < matched[j] })
	add(matched)
	return out
}

// trigramThreshold is the minimum posting overlap a candidate needs: short
// queries require an absolute minimum, longer ones three quarters of their
// trigrams.
func trigramThreshold(n int) int {
	if n <= 2 {
		return n
	}
	if n <= 4 {
		return n - 1
	}
	return int(math.Ceil(0.75 * float64(n)))
}

func (m *Matcher) gatherAssets(query string) []int64 {
	ql := strings.ToLower(query)
	seen := make(map[int64]struct{}, maxCandidates)
	var out []int64
	for _, name := range m.ix.NamesWithPrefix(index.EntityAsset, ql, maxCandidates) {
		for _, id := range m.ix.IDsForName(index.EntityAsset, name) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	if len(out) < maxCandidates {
		for _, name := range m.ix.NamesContaining(index.EntityAsset, ql, maxCandidates-len(out)) {
			for _, id := range m.ix.IDsForName(index.EntityAsset, name) {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}

// FindFiles resolves a filename by basename prefix, exact basenames first.
func (m *Matcher) FindFiles(filename string, opts Options) []storage.File {
	fl := strings.ToLower(filename)
	var exact, prefixed []storage.File
	for _, base := range m.ix.BasenamesWithPrefix(fl, maxCandidates) {
		for _, id := range m.ix.FileIDsForBasename(base) {
			f, ok := m.ix.FileByID(id)
			if !ok {
				continue
			}
			if opts.Project != "" && f.Project != opts.Project {
				continue
			}
			if opts.Language != "" && f.Language != opts.Language {
				continue
			}
			noExt := strings.TrimSuffix(base, pathExt(base))
			if base == fl || noExt == fl {
				exact = append(exact, f)
			} else {
				prefixed = append(prefixed, f)
			}
		}
	}
	out := append(exact, prefixed...)
	if len(out) > opts.limit() {
		out = out[:opts.limit()]
	}
	return out
}

func pathExt(base string) string {
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		return base[i:]
	}
	return ""
}
