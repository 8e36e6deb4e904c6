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

package trigram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trigramOf(s string) Trigram {
	return Trigram(s[0])<<16 | Trigram(s[1])<<8 | Trigram(s[2])
}

func TestExtractLowercasesAndDedups(t *testing.T) {
	ts := ExtractString("AbAbA")
	// "ababa" -> aba, bab, aba -> {aba, bab}
	require.Len(t, ts, 2)
	assert.Equal(t, trigramOf("aba"), ts[0])
	assert.Equal(t, trigramOf("bab"), ts[1])
}

func TestExtractSkipsLineBreaks(t *testing.T) {
	ts := Extract([]byte("ab\ncd"))
	// Every window overlaps the newline.
	assert.Empty(t, ts)

	ts = Extract([]byte("abcd\nwxyz"))
	for _, tri := range ts {
		s := String(tri)
		assert.NotContains(t, s, "\n")
	}
	assert.Contains(t, tristrings(ts), "abc")
	assert.Contains(t, tristrings(ts), "xyz")
	assert.NotContains(t, tristrings(ts), "d\nw")
}

func tristrings(ts []Trigram) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = String(t)
	}
	return out
}

func TestExtractShortInput(t *testing.T) {
	assert.Nil(t, ExtractString(""))
	assert.Nil(t, ExtractString("ab"))
	assert.Len(t, ExtractString("abc"), 1)
}

func TestContentHashStable(t *testing.T) {
	h1 := ContentHash([]byte("class AActor"))
	h2 := ContentHash([]byte("class AActor"))
	h3 := ContentHash([]byte("class AActor "))
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestRequiredForPatternLiteral(t *testing.T) {
	ts := RequiredForPattern("DestroyActor")
	require.NotNil(t, ts)
	assert.Contains(t, tristrings(ts), "des")
	assert.Contains(t, tristrings(ts), "tor")
}

func TestRequiredForPatternAlternationIntersects(t *testing.T) {
	ts := RequiredForPattern("DestroyActor|DestroyPawn")
	require.NotNil(t, ts)
	strs := tristrings(ts)
	// Only the common "destroy" trigrams survive the intersection.
	assert.Contains(t, strs, "des")
	assert.Contains(t, strs, "str")
	assert.NotContains(t, strs, "tor")
	assert.NotContains(t, strs, "awn")
}

func TestRequiredForPatternUnindexable(t *testing.T) {
	// Metacharacters beyond alternation.
	assert.Nil(t, RequiredForPattern(`Destroy.*Actor`))
	assert.Nil(t, RequiredForPattern(`^\w+$`))
	// Disjoint alternation has an empty intersection.
	assert.Nil(t, RequiredForPattern("abc|xyz"))
	// A branch too short to carry a trigram.
	assert.Nil(t, RequiredForPattern("DestroyActor|ab"))
	assert.Nil(t, RequiredForPattern(""))
	assert.Nil(t, RequiredForPattern("ab"))
}
