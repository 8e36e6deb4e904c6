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

package uename

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasTypePrefix(t *testing.T) {
	assert.True(t, HasTypePrefix("AActor"))
	assert.True(t, HasTypePrefix("UObject"))
	assert.True(t, HasTypePrefix("FVector"))
	assert.True(t, HasTypePrefix("EMovementMode"))
	assert.False(t, HasTypePrefix("Actor"))
	assert.False(t, HasTypePrefix("Array"))  // lower-case second letter
	assert.False(t, HasTypePrefix("BP_Hero"))
	assert.False(t, HasTypePrefix("A"))
}

func TestStrip(t *testing.T) {
	assert.Equal(t, "Actor", Strip("AActor"))
	assert.Equal(t, "Actor", Strip("Actor"))
	assert.Equal(t, "GameMode", Strip("AGameMode"))
}

func TestVariantsOrderAndDedup(t *testing.T) {
	v := Variants("GameMode")
	assert.Equal(t, "GameMode", v[0])
	assert.Contains(t, v, "AGameMode")
	assert.Contains(t, v, "UGameMode")

	v = Variants("AActor")
	assert.Equal(t, "AActor", v[0])
	assert.Contains(t, v, "Actor")
	// No duplicate of AActor from re-prepending A to the stripped form.
	count := 0
	for _, name := range v {
		if name == "AActor" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestVariantsBlueprintSuffix(t *testing.T) {
	assert.Contains(t, Variants("BP_Hero_C"), "BP_Hero")
}

func TestSplitWords(t *testing.T) {
	assert.Equal(t, []string{"get", "health", "component"}, SplitWords("GetHealthComponent"))
	assert.Equal(t, []string{"http", "server"}, SplitWords("HTTPServer"))
	assert.Equal(t, []string{"bp", "hero"}, SplitWords("BP_Hero"))
	assert.Equal(t, []string{"actor"}, SplitWords("actor"))
}

func TestStripAccessor(t *testing.T) {
	got, ok := StripAccessor("gethealth")
	assert.True(t, ok)
	assert.Equal(t, "health", got)

	got, ok = StripAccessor("shouldtick")
	assert.True(t, ok)
	assert.Equal(t, "tick", got)

	_, ok = StripAccessor("health")
	assert.False(t, ok)

	// The verb alone is not an accessor form.
	_, ok = StripAccessor("get")
	assert.False(t, ok)
}
