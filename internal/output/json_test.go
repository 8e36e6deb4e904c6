// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONToPrettyPrints(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONTo(&buf, map[string]any{"project": "game", "files": 42}))

	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Contains(t, out, "  \"files\": 42")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "game", decoded["project"])
}

func TestJSONCompactToSingleLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONCompactTo(&buf, map[string]int{"types": 7}))
	assert.Equal(t, "{\"types\":7}\n", buf.String())
}

func TestJSONRespectsStructTags(t *testing.T) {
	type stats struct {
		Project string `json:"project"`
		Bodies  int    `json:"bodies,omitempty"`
		hidden  string //nolint:unused
	}
	var buf bytes.Buffer
	require.NoError(t, JSONTo(&buf, stats{Project: "engine"}))
	assert.Contains(t, buf.String(), "\"project\": \"engine\"")
	assert.NotContains(t, buf.String(), "bodies")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestJSONErrorEnvelope(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONErrorTo(&buf, errors.New("store unreachable")))

	var envelope ErrorJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &envelope))
	assert.Equal(t, "store unreachable", envelope.Error)
	assert.Empty(t, envelope.Code)
}

func TestJSONSpecialCharactersSurvive(t *testing.T) {
	var buf bytes.Buffer
	payload := map[string]string{"path": "C:\\Game\\Source", "line": "a\tb \"quoted\""}
	require.NoError(t, JSONCompactTo(&buf, payload))

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, payload, decoded)
}

func TestJSONNilValue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONTo(&buf, nil))
	assert.Equal(t, "null\n", buf.String())
}

func TestJSONUnencodableTypeFails(t *testing.T) {
	var buf bytes.Buffer
	err := JSONTo(&buf, make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSON encoding failed")
}
