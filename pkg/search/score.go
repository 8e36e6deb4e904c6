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
	"strings"

	"github.com/kraklabs/ueindex/internal/uename"
	"github.com/kraklabs/ueindex/pkg/storage"
)

// Match reason tags. The scoreName tags run in descending score order;
// prefix-variant (exact-mode fallback, 1.0) and synthetic-component come
// from other paths and close the list.
const (
	ReasonExact              = "exact"
	ReasonExactStripped      = "exact-stripped"
	ReasonPrefix             = "prefix"
	ReasonPrefixStripped     = "prefix-stripped"
	ReasonGetterSetter       = "getter-setter"
	ReasonSubstring          = "substring"
	ReasonSubstringStripped  = "substring-stripped"
	ReasonGetterSetterNear   = "getter-setter-partial"
	ReasonWordMatchAll       = "word-match-all"
	ReasonWordMatchMost      = "word-match-most"
	ReasonWordMatchSome      = "word-match-some"
	ReasonTrigram            = "trigram"
	ReasonPrefixVariant      = "prefix-variant"
	ReasonSyntheticComponent = "synthetic-component"
)

// Score assigns the primary relevance score in [0,1] for a candidate name
// against the query, with the reason tag. Exported for the store-backed
// worker path, which ranks with the same table as the memory path.
func Score(query, candidate string) (float64, string) {
	return scoreName(query, candidate)
}

// scoreName assigns the primary relevance score in [0,1] for a candidate
// name against the query. Both arguments keep their original case; prefix
// stripping needs it.
func scoreName(query, candidate string) (float64, string) {
	ql := strings.ToLower(query)
	cl := strings.ToLower(candidate)
	qStripped := strings.ToLower(uename.Strip(query))
	cStripped := strings.ToLower(uename.Strip(candidate))

	switch {
	case cl == ql:
		return 1.00, ReasonExact
	case cStripped == ql || cl == qStripped:
		return 0.98, ReasonExactStripped
	case strings.HasPrefix(cl, ql):
		return 0.95, ReasonPrefix
	case strings.HasPrefix(cStripped, qStripped):
		return 0.93, ReasonPrefixStripped
	}

	if score, reason, ok := accessorScore(ql, cl); ok {
		return score, reason
	}

	switch {
	case strings.Contains(cl, ql):
		return 0.85, ReasonSubstring
	case strings.Contains(cStripped, qStripped):
		return 0.80, ReasonSubstringStripped
	}

	return wordScore(query, candidate)
}

// accessorScore compares getter/setter variants: both sides lose a leading
// accessor verb before comparison, so "Health" finds "GetHealth" and
// "GetHealth" finds "SetHealth".
func accessorScore(ql, cl string) (float64, string, bool) {
	qBase, qHad := uename.StripAccessor(ql)
	cBase, cHad := uename.StripAccessor(cl)
	if !qHad && !cHad {
		return 0, "", false
	}
	if qBase == cBase {
		return 0.88, ReasonGetterSetter, true
	}
	if strings.HasPrefix(cBase, qBase) || strings.HasPrefix(qBase, cBase) {
		return 0.75, ReasonGetterSetterNear, true
	}
	return 0, "", false
}

// wordScore grades by camelCase word overlap: all query words present in the
// candidate, most of them, or some of them.
func wordScore(query, candidate string) (float64, string) {
	queryWords := uename.SplitWords(query)
	if len(queryWords) == 0 {
		return 0.30, ReasonTrigram
	}
	candidateWords := make(map[string]struct{})
	for _, w := range uename.SplitWords(candidate) {
		candidateWords[w] = struct{}{}
	}
	cl := strings.ToLower(candidate)
	matched := 0
	for _, w := range queryWords {
		if _, ok := candidateWords[w]; ok {
			matched++
			continue
		}
		// Compound words in the candidate still count ("gamemode"
		// contains "game").
		if len(w) >= 3 && strings.Contains(cl, w) {
			matched++
		}
	}
	ratio := float64(matched) / float64(len(queryWords))
	switch {
	case matched == len(queryWords) && matched > 1:
		return 0.70, ReasonWordMatchAll
	case ratio >= 2.0/3.0 && matched > 0:
		return 0.50, ReasonWordMatchMost
	case ratio >= 0.5 && matched > 0:
		return 0.40, ReasonWordMatchSome
	default:
		return 0.30, ReasonTrigram
	}
}

// kindWeight is the small additive boost ordering type kinds.
func kindWeight(kind string) float64 {
	switch kind {
	case storage.KindClass:
		return 0.030
	case storage.KindStruct:
		return 0.025
	case storage.KindInterface:
		return 0.022
	case storage.KindEnum:
		return 0.020
	case storage.KindNamespace:
		return 0.010
	case storage.KindEvent, storage.KindDelegate:
		return 0.005
	default:
		return 0
	}
}

// depthBonus rewards shallow inheritance: max(0, 0.03 - 0.005*depth).
// Unknown depth (negative) earns nothing.
func depthBonus(depth int) float64 {
	if depth < 0 {
		return 0
	}
	bonus := 0.03 - 0.005*float64(depth)
	if bonus < 0 {
		return 0
	}
	return bonus
}

// specifierBoost rewards members that are reflected, public or non-static,
// the ones a caller most likely wants.
func specifierBoost(m storage.Member) float64 {
	boost := 0.0
	specs := strings.ToLower(m.Specifiers)
	if strings.Contains(specs, "ufunction") || strings.Contains(specs, "uproperty") {
		boost += 0.04
	}
	if strings.Contains(specs, "blueprintcallable") || strings.Contains(specs, "blueprintreadwrite") {
		boost += 0.02
	}
	if strings.Contains(specs, "public") {
		boost += 0.03
	}
	if !m.IsStatic {
		boost += 0.01
	}
	return boost
}

// Score thresholds: types drop weak matches, members admit noisier ones.
const (
	typeScoreFloor   = 0.40
	memberScoreFloor = 0.15
)
