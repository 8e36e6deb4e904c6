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
	"regexp"
	"strings"
	"time"
)

// definitionPatterns detect that a matched line IS the definition of the
// thing searched for rather than a use of it. Small and fast on purpose.
var definitionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*(?:template\s*<[^>]*>\s*)?(?:class|struct|enum(?:\s+class)?|namespace)\s+\w`),
	regexp.MustCompile(`^\s*U(?:CLASS|STRUCT|ENUM|INTERFACE|FUNCTION|PROPERTY|DELEGATE)\s*\(`),
	regexp.MustCompile(`^\s*DECLARE_(?:DYNAMIC_)?(?:MULTICAST_)?DELEGATE`),
	regexp.MustCompile(`^\s*(?:virtual\s+|static\s+|inline\s+)*[\w:<>,*&][\w:<>,\s*&]*\s+\w+\s*\([^;]*\)\s*(?:const\s*)?(?:override\s*)?[{;]?\s*$`),
	regexp.MustCompile(`^\s*(?:void|int|float|bool)\s+\w+\s*\(`),
}

// isDefinitionLine reports whether line looks like a type, macro or method
// definition.
func isDefinitionLine(line string) bool {
	for _, p := range definitionPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// recencyScore maps a file mtime to 0..10, fresher is higher. Files older
// than a year score zero.
func recencyScore(mtimeMs int64, now time.Time) float64 {
	if mtimeMs <= 0 {
		return 0
	}
	age := now.Sub(time.UnixMilli(mtimeMs))
	if age < 0 {
		age = 0
	}
	const year = 365 * 24 * time.Hour
	if age >= year {
		return 0
	}
	return 10 * (1 - float64(age)/float64(year))
}

// pathBoost rewards header files and public include trees, the places a
// definition usually lives.
func pathBoost(path string) float64 {
	lower := strings.ToLower(path)
	boost := 0.0
	if strings.HasSuffix(lower, ".h") || strings.HasSuffix(lower, ".hpp") || strings.HasSuffix(lower, ".hxx") {
		boost += 2
	}
	if strings.Contains(lower, "/public/") || strings.Contains(lower, "/classes/") {
		boost += 1
	}
	if strings.Contains(lower, "/intermediate/") || strings.Contains(lower, "/thirdparty/") {
		boost -= 2
	}
	return boost
}

// rankHit computes the merged rank for one hit. fileMatches is how many
// hits landed in the same file; symbol is the cross-referenced symbol name
// at the hit location, empty when none.
func rankHit(h *Hit, fileMatches int, mtimeMs int64, symbol string, now time.Time) {
	score := 0.0
	if fileMatches > 1 {
		score += float64(min(fileMatches, 10))
	}
	score += pathBoost(h.Path)
	score += recencyScore(mtimeMs, now)
	if isDefinitionLine(h.Text) {
		score += 15
	}
	if symbol != "" {
		score += 5
		h.Symbol = symbol
	}
	h.Score = score
}

// multiWordProximity implements the multi-word literal filter: every word
// must share the hit line, or all words must appear somewhere in the
// line-plus-context window.
func multiWordProximity(words []string, h Hit, caseSensitive bool) bool {
	line := h.Text
	window := strings.Join(append(append(append([]string{}, h.Before...), h.Text), h.After...), "\n")
	if !caseSensitive {
		line = strings.ToLower(line)
		window = strings.ToLower(window)
	}
	allIn := func(s string) bool {
		for _, w := range words {
			if !caseSensitive {
				w = strings.ToLower(w)
			}
			if !strings.Contains(s, w) {
				return false
			}
		}
		return true
	}
	return allIn(line) || allIn(window)
}

// literalWords splits a non-regex pattern into its words; nil when the
// pattern is not a multi-word literal.
func literalWords(pattern string) []string {
	if !strings.Contains(pattern, " ") {
		return nil
	}
	if strings.ContainsAny(pattern, `\.+*?()[]{}^$|`) {
		return nil
	}
	return strings.Fields(pattern)
}
