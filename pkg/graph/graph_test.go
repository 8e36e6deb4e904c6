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

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type edgeList []struct {
	child, parent string
	isAsset       bool
}

func (e edgeList) EachParentEdge(fn func(child, parent string, isAsset bool)) {
	for _, edge := range e {
		fn(edge.child, edge.parent, edge.isAsset)
	}
}

func hierarchy() edgeList {
	return edgeList{
		{"AActor", "UObject", false},
		{"APawn", "AActor", false},
		{"ACharacter", "APawn", false},
		// Blueprint assets record parents without the UE prefix.
		{"BP_Hero", "Character", true},
		{"BP_Boss", "BP_Hero", true},
	}
}

func TestDescendantsCrossesStrippedPrefix(t *testing.T) {
	g := New()
	g.Rebuild(hierarchy())

	desc := g.Descendants("AActor")
	assert.ElementsMatch(t, []string{"APawn", "ACharacter", "BP_Hero", "BP_Boss"}, desc)

	// BP_Hero hangs off "Character", found while visiting ACharacter.
	desc = g.Descendants("ACharacter")
	assert.ElementsMatch(t, []string{"BP_Hero", "BP_Boss"}, desc)
}

func TestDescendantsMemoized(t *testing.T) {
	g := New()
	g.Rebuild(hierarchy())

	first := g.Descendants("UObject")
	second := g.Descendants("UObject")
	// Memoized: identical backing slice.
	require.Len(t, second, len(first))
	assert.Equal(t, first, second)
}

func TestRebuildDropsClosure(t *testing.T) {
	g := New()
	g.Rebuild(hierarchy())
	require.Len(t, g.Descendants("APawn"), 3)

	g.Rebuild(edgeList{{"APawn", "AActor", false}})
	assert.Empty(t, g.Descendants("APawn"))
}

func TestParentAndKnown(t *testing.T) {
	g := New()
	g.Rebuild(hierarchy())

	p, ok := g.Parent("ACharacter")
	require.True(t, ok)
	assert.Equal(t, "APawn", p)

	assert.True(t, g.Known("AActor"))
	assert.True(t, g.Known("BP_Boss"))
	// "ACharacter" is known via its stripped form as a parent of BP_Hero.
	assert.True(t, g.Known("Character"))
	assert.False(t, g.Known("SWidget"))
}

func TestComputeDepths(t *testing.T) {
	g := New()
	g.Rebuild(hierarchy())

	depths := g.ComputeDepths()
	assert.Equal(t, 0, depths["UObject"])
	assert.Equal(t, 1, depths["AActor"])
	assert.Equal(t, 2, depths["APawn"])
	assert.Equal(t, 3, depths["ACharacter"])
	assert.Equal(t, 4, depths["BP_Hero"])
	assert.Equal(t, 5, depths["BP_Boss"])
}

func TestCycleDoesNotHang(t *testing.T) {
	g := New()
	g.Rebuild(edgeList{
		{"B", "A", false},
		{"A", "B", false},
	})
	desc := g.Descendants("A")
	assert.ElementsMatch(t, []string{"B"}, desc)
}
