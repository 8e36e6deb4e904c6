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

package ui

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withNoColor(t *testing.T, noColor bool) {
	t.Helper()
	prev := color.NoColor
	InitColors(noColor)
	t.Cleanup(func() { color.NoColor = prev })
}

func TestInitColorsTogglesGlobal(t *testing.T) {
	withNoColor(t, true)
	assert.True(t, color.NoColor)
	InitColors(false)
	assert.False(t, color.NoColor)
}

func TestInlineFormattersPlainWhenDisabled(t *testing.T) {
	withNoColor(t, true)
	assert.Equal(t, "Files:", Label("Files:"))
	assert.Equal(t, "/tmp/data", DimText("/tmp/data"))
	assert.Equal(t, "42", CountText(42))
}

func TestInlineFormattersCarryEscapesWhenEnabled(t *testing.T) {
	withNoColor(t, false)
	require.Contains(t, Label("Files:"), "Files:")
	require.Contains(t, DimText("path"), "path")
	require.Contains(t, CountText(7), "7")
	// With colors on, output is longer than the bare text.
	assert.Greater(t, len(Label("x")), 1)
}

func TestStylesInitialized(t *testing.T) {
	for name, c := range map[string]*color.Color{
		"Red": Red, "Yellow": Yellow, "Green": Green,
		"Cyan": Cyan, "Bold": Bold, "Dim": Dim,
	} {
		require.NotNil(t, c, name)
	}
}

func TestMessageFunctionsDoNotPanic(t *testing.T) {
	withNoColor(t, true)
	Success("done")
	Successf("done %d", 1)
	Warning("careful")
	Warningf("careful %s", "now")
	Error("broken")
	Errorf("broken %v", "badly")
	Info("fyi")
	Infof("fyi %d%%", 50)
	Header("Index Status")
	SubHeader("Languages")
}

func TestEmptyStringsAreSafe(t *testing.T) {
	withNoColor(t, true)
	assert.Equal(t, "", Label(""))
	assert.Equal(t, "", DimText(""))
	Header("")
	SubHeader("")
}
