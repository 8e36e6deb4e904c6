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
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	qerr "github.com/kraklabs/ueindex/internal/errors"
	"github.com/kraklabs/ueindex/pkg/storage"
)

// poolQueueDepth bounds the request channel; past it, callers block.
const poolQueueDepth = 64

// PoolSize is the read-only worker count: min(5, cpu count - 1), never
// below one.
func PoolSize() int {
	n := runtime.NumCPU() - 1
	if n > 5 {
		n = 5
	}
	if n < 1 {
		n = 1
	}
	return n
}

// workerRequest is the typed message a worker consumes.
type workerRequest struct {
	id    uint64
	query Query
	resp  chan workerResponse
}

// workerResponse carries the result or a typed error plus the duration.
type workerResponse struct {
	id       uint64
	result   any
	err      error
	duration time.Duration
}

// Pool runs read-only store queries on dedicated workers, each holding an
// independent read-only handle so they never contend with the writer.
type Pool struct {
	requests chan workerRequest
	stores   []*storage.Store
	logger   *slog.Logger
	nextID   atomic.Uint64
	wg       sync.WaitGroup
	closed   atomic.Bool
}

// NewPool opens size read-only handles to the database at dbPath and
// starts the workers. Size zero means PoolSize().
func NewPool(dbPath string, size int, logger *slog.Logger) (*Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if size <= 0 {
		size = PoolSize()
	}
	p := &Pool{
		requests: make(chan workerRequest, poolQueueDepth),
		logger:   logger,
	}
	for i := 0; i < size; i++ {
		store, err := storage.OpenReadOnly(dbPath, logger)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("open worker store %d: %w", i, err)
		}
		p.stores = append(p.stores, store)
		p.wg.Add(1)
		go p.worker(i, store)
	}
	return p, nil
}

// Do runs one query on a worker and waits for its answer or the caller's
// cancellation.
func (p *Pool) Do(ctx context.Context, q Query) (any, error) {
	if p.closed.Load() {
		return nil, qerr.NewInternal("worker pool closed", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, qerr.NewTimeout("query worker", err)
	}
	req := workerRequest{
		id:    p.nextID.Add(1),
		query: q,
		resp:  make(chan workerResponse, 1),
	}
	select {
	case p.requests <- req:
	case <-ctx.Done():
		return nil, qerr.NewTimeout("query worker", ctx.Err())
	}
	select {
	case resp := <-req.resp:
		return resp.result, resp.err
	case <-ctx.Done():
		// The worker still finishes; its answer lands in the buffered
		// channel and is dropped.
		return nil, qerr.NewTimeout("query worker", ctx.Err())
	}
}

func (p *Pool) worker(id int, store *storage.Store) {
	defer p.wg.Done()
	for req := range p.requests {
		start := time.Now()
		result, err := answerFromStore(store, req.query)
		req.resp <- workerResponse{
			id:       req.id,
			result:   result,
			err:      err,
			duration: time.Since(start),
		}
	}
	p.logger.Debug("worker.stopped", "worker", id)
}

// Close stops the workers and releases their store handles.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.requests)
	p.wg.Wait()
	for _, store := range p.stores {
		store.Close()
	}
}
