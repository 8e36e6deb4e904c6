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
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	qerr "github.com/kraklabs/ueindex/internal/errors"
	itest "github.com/kraklabs/ueindex/internal/testing"
	"github.com/kraklabs/ueindex/pkg/storage"
)

func poolFixture(t *testing.T) (string, *storage.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "index.db")
	s, err := storage.Open(dbPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	itest.SeedFile(t, s, nil, itest.FileFixture{
		Path:    "/ue/Engine/Actor.h",
		Project: "engine",
		Module:  "Engine.Source",
		Types:   []storage.TypeRecord{{Name: "AActor", Kind: "class", Line: 4}},
	})
	return dbPath, s
}

func TestPoolAnswersFromReadOnlyHandles(t *testing.T) {
	dbPath, _ := poolFixture(t)
	pool, err := NewPool(dbPath, 2, nil)
	require.NoError(t, err)
	defer pool.Close()

	result, err := pool.Do(context.Background(), FindTypeQuery{Name: "AActor"})
	require.NoError(t, err)
	out := result.(FindTypeResult)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "AActor", out.Results[0].Name)
}

func TestPoolCallerCancellation(t *testing.T) {
	dbPath, _ := poolFixture(t)
	pool, err := NewPool(dbPath, 1, nil)
	require.NoError(t, err)
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pool.Do(ctx, FindTypeQuery{Name: "AActor"})
	var qe *qerr.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, qerr.KindTimeout, qe.Kind)
}

func TestPoolDoAfterCloseFails(t *testing.T) {
	dbPath, _ := poolFixture(t)
	pool, err := NewPool(dbPath, 1, nil)
	require.NoError(t, err)
	pool.Close()

	_, err = pool.Do(context.Background(), FindTypeQuery{Name: "AActor"})
	require.Error(t, err)
}

func TestPoolShutdownLeaksNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	dbPath := filepath.Join(t.TempDir(), "index.db")
	s, err := storage.Open(dbPath, nil)
	require.NoError(t, err)
	itest.SeedFile(t, s, nil, itest.FileFixture{
		Path:    "/ue/Engine/Actor.h",
		Project: "engine",
		Types:   []storage.TypeRecord{{Name: "AActor", Kind: "class", Line: 4}},
	})
	require.NoError(t, s.Close())

	pool, err := NewPool(dbPath, 3, nil)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		_, err := pool.Do(context.Background(), FindTypeQuery{Name: "AActor"})
		require.NoError(t, err)
	}
	pool.Close()

	// Give the worker goroutines a beat to unwind before goleak looks.
	time.Sleep(10 * time.Millisecond)
}

func TestPoolSizeBounds(t *testing.T) {
	size := PoolSize()
	assert.GreaterOrEqual(t, size, 1)
	assert.LessOrEqual(t, size, 5)
}
