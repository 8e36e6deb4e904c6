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

package mirror

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateAndDelete(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	rel := SourcePath("Game", "Heroes/Hero.h")
	require.NoError(t, m.UpdateFile(rel, []byte("class AHero {};")))

	raw, err := os.ReadFile(filepath.Join(m.Root(), "Game", "Heroes", "Hero.h"))
	require.NoError(t, err)
	assert.Equal(t, "class AHero {};", string(raw))

	require.NoError(t, m.DeleteFile(rel))
	_, err = os.Stat(filepath.Join(m.Root(), "Game", "Heroes", "Hero.h"))
	assert.True(t, os.IsNotExist(err))

	// Deleting again is fine.
	require.NoError(t, m.DeleteFile(rel))
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "Game/Source/A.h", SourcePath("Game", "Source/A.h"))
	assert.Equal(t, "Game/Source/A.h", SourcePath("Game", `\Source\A.h`))
	assert.Equal(t, "_assets/Game/BP_Hero.uasset", AssetPath("/Game/BP_Hero", "uasset"))
}

func TestEscapeRejected(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, m.UpdateFile("../outside.txt", []byte("x")))
	assert.Error(t, m.UpdateFile("/abs.txt", []byte("x")))
}

func TestMarkerRoundTrip(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	none, err := m.ReadMarker()
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, m.WriteMarker(Marker{Version: "1.2.3", Files: 10}))
	got, err := m.ReadMarker()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1.2.3", got.Version)
	assert.EqualValues(t, 10, got.Files)
	assert.NotZero(t, got.BuiltAt)
}
