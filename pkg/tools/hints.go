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
	"fmt"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/kraklabs/ueindex/internal/uename"
	"github.com/kraklabs/ueindex/pkg/index"
)

// hintSampleCap bounds how many indexed names feed the edit-distance
// suggestion pass.
const hintSampleCap = 2000

// lookupHints builds the guidance array for a zero-result lookup:
// actionable parameter changes first, then closest-name suggestions.
func (s *Service) lookupHints(kind index.EntityKind, query string, fuzzy bool, project string) []string {
	var hints []string
	if !fuzzy {
		hints = append(hints, "try fuzzy=true for approximate matching")
	}
	if project != "" {
		hints = append(hints, "try removing the project filter")
	}
	for _, suggestion := range s.didYouMean(kind, query) {
		hints = append(hints, fmt.Sprintf("did you mean %q?", suggestion))
	}
	return hints
}

// didYouMean finds the closest indexed names by edit distance. The sample
// is the prefix-array neighborhood of the query's first letter plus its
// stripped form, capped to keep the pass cheap.
func (s *Service) didYouMean(kind index.EntityKind, query string) []string {
	if len(query) < 2 {
		return nil
	}
	lower := strings.ToLower(query)
	sample := s.ix.NamesWithPrefix(kind, lower[:1], hintSampleCap)
	if stripped := strings.ToLower(uename.Strip(query)); stripped != lower && len(stripped) > 0 {
		sample = append(sample, s.ix.NamesWithPrefix(kind, stripped[:1], hintSampleCap-len(sample))...)
	}
	if len(sample) == 0 {
		return nil
	}

	matches, err := edlib.FuzzySearchSetThreshold(lower, sample, 3, 0.7, edlib.Levenshtein)
	if err != nil {
		return nil
	}
	var out []string
	for _, m := range matches {
		if m != "" && m != lower {
			out = append(out, m)
		}
	}
	return out
}
