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

package ingestion

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kraklabs/ueindex/internal/mirror"
	"github.com/kraklabs/ueindex/pkg/graph"
	"github.com/kraklabs/ueindex/pkg/index"
	"github.com/kraklabs/ueindex/pkg/storage"
)

// Body size caps: the watcher may ship larger bodies than local ingest.
const (
	WatcherBodyCap = 2 << 20  // 2 MB
	LocalBodyCap   = 500 << 10 // 500 KB
)

// FileUpsert is one file in a batch, with its parsed symbols and an
// optional raw body.
type FileUpsert struct {
	Path         string                  `json:"path"`
	Project      string                  `json:"project"`
	Module       string                  `json:"module"`
	Language     string                  `json:"language"`
	Mtime        int64                   `json:"mtime"`
	RelativePath string                  `json:"relativePath,omitempty"`
	Body         []byte                  `json:"body,omitempty"`
	Types        []storage.TypeRecord    `json:"types,omitempty"`
	Members      []storage.MemberRecord  `json:"members,omitempty"`
}

// Batch is one ingest request: deletes apply before upserts.
type Batch struct {
	Files   []FileUpsert    `json:"files,omitempty"`
	Assets  []storage.Asset `json:"assets,omitempty"`
	Deletes []string        `json:"deletes,omitempty"`
}

// BatchError is a per-file failure collected into the result.
type BatchError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Result reports what a batch did.
type Result struct {
	Processed int          `json:"processed"`
	Skipped   int          `json:"skipped"`
	Deleted   int          `json:"deleted"`
	Errors    []BatchError `json:"errors,omitempty"`
}

// CacheInvalidator is implemented by the grep pipeline.
type CacheInvalidator interface {
	InvalidateCache()
}

// Ingestor applies batches and keeps every layer synchronized.
type Ingestor struct {
	store   *storage.Store
	ix      *index.Index
	g       *graph.Graph
	mirror  *mirror.Mirror
	grep    CacheInvalidator
	logger  *slog.Logger
	bodyCap int64
}

// New wires an ingestor. mirror and grep may be nil (tests, cold
// bootstrap); bodyCap bounds stored bodies (WatcherBodyCap when zero).
func New(store *storage.Store, ix *index.Index, g *graph.Graph, m *mirror.Mirror, grep CacheInvalidator, bodyCap int64, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	if bodyCap <= 0 {
		bodyCap = WatcherBodyCap
	}
	ingMetrics.init()
	return &Ingestor{store: store, ix: ix, g: g, mirror: m, grep: grep, logger: logger, bodyCap: bodyCap}
}

// Apply runs one batch: deletes first, then per-file transactional
// upserts, then assets. Per-file errors collect into the result; the batch
// continues. After the store commits each file, the in-memory index is
// synchronized before the next file, so a response is never returned with
// the mirror maps behind the store.
func (ing *Ingestor) Apply(batch Batch) Result {
	start := time.Now()
	var res Result

	for _, path := range batch.Deletes {
		if err := ing.deletePath(path); err != nil {
			res.Errors = append(res.Errors, BatchError{Path: path, Error: err.Error()})
			ingMetrics.fileErrors.Inc()
			continue
		}
		res.Deleted++
	}

	for _, f := range batch.Files {
		fileStart := time.Now()
		skipped, err := ing.applyFile(f)
		ingMetrics.fileDuration.Observe(time.Since(fileStart).Seconds())
		if err != nil {
			ing.logger.Error("ingest.file.failed", "path", f.Path, "err", err)
			res.Errors = append(res.Errors, BatchError{Path: f.Path, Error: err.Error()})
			ingMetrics.fileErrors.Inc()
			continue
		}
		res.Processed++
		if skipped {
			res.Skipped++
			ingMetrics.filesSkipped.Inc()
		}
	}

	if len(batch.Assets) > 0 {
		if err := ing.applyAssets(batch.Assets); err != nil {
			ing.logger.Error("ingest.assets.failed", "count", len(batch.Assets), "err", err)
			res.Errors = append(res.Errors, BatchError{Path: "<assets>", Error: err.Error()})
		} else {
			res.Processed += len(batch.Assets)
		}
	}

	ing.afterBatch()
	ingMetrics.batchDuration.Observe(time.Since(start).Seconds())
	ing.logger.Info("ingest.batch.done",
		"files", len(batch.Files),
		"assets", len(batch.Assets),
		"deletes", len(batch.Deletes),
		"skipped", res.Skipped,
		"errors", len(res.Errors),
		"elapsed", time.Since(start),
	)
	return res
}

// deletePath tries a source-file delete, then an asset delete, then a
// best-effort mirror delete.
func (ing *Ingestor) deletePath(path string) error {
	f, err := ing.store.FileByPath(path)
	if err != nil {
		return err
	}
	if f != nil {
		if err := ing.store.DeleteFileByID(f.ID); err != nil {
			return err
		}
		ing.ix.RemoveFile(f.ID)
		ingMetrics.filesDeleted.Inc()
		if f.RelativePath != "" {
			ing.mirrorDelete(mirror.SourcePath(f.Project, f.RelativePath))
		}
		return nil
	}

	deleted, err := ing.store.DeleteAssetByPath(path)
	if err != nil {
		return err
	}
	if deleted {
		ing.ix.RemoveAssetByPath(path)
		ingMetrics.assetsDeleted.Inc()
	}
	return nil
}

// applyFile upserts one file under its own transaction, then resyncs the
// memory index from the rows the store returned so ids always agree.
func (ing *Ingestor) applyFile(f FileUpsert) (skipped bool, err error) {
	if f.Path == "" {
		return false, fmt.Errorf("file upsert without path")
	}
	if int64(len(f.Body)) > ing.bodyCap {
		// Oversized bodies lose their text but keep their symbols.
		f.Body = nil
	}

	// Idempotency guard: same path, same mtime, and a body supplied iff
	// one is already stored.
	existing, err := ing.store.FileByPath(f.Path)
	if err != nil {
		return false, err
	}
	if existing != nil && existing.Mtime == f.Mtime && f.Mtime != 0 {
		_, hasBody, err := ing.store.ContentHashForFile(existing.ID)
		if err != nil {
			return false, err
		}
		if hasBody == (f.Body != nil) {
			return true, nil
		}
	}

	var (
		fileID   int64
		newTypes []storage.Type
		newMems  []storage.Member
	)
	err = ing.store.Transaction(func(tx *sql.Tx) error {
		var err error
		fileID, err = storage.UpsertFileTx(tx, storage.File{
			Path:         f.Path,
			Project:      f.Project,
			Module:       f.Module,
			Language:     f.Language,
			Mtime:        f.Mtime,
			RelativePath: f.RelativePath,
		})
		if err != nil {
			return err
		}
		if err := storage.ClearTypesForFileTx(tx, fileID); err != nil {
			return err
		}
		newTypes, err = storage.InsertTypesTx(tx, fileID, f.Types)
		if err != nil {
			return err
		}
		typeIDs := make(map[string]int64, len(newTypes))
		for _, t := range newTypes {
			typeIDs[t.Name] = t.ID
		}
		newMems, err = storage.InsertMembersTx(tx, fileID, f.Members, typeIDs)
		if err != nil {
			return err
		}
		if f.Body != nil {
			return storage.UpsertFileContentTx(tx, fileID, f.Body)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	// Post-commit memory sync: drop the old mirror of the file, re-add
	// with store-assigned ids.
	ing.ix.RemoveFile(fileID)
	ing.ix.AddFile(storage.File{
		ID:           fileID,
		Path:         f.Path,
		Project:      f.Project,
		Module:       f.Module,
		Language:     f.Language,
		Mtime:        f.Mtime,
		RelativePath: f.RelativePath,
	})
	ing.ix.AddTypes(newTypes)
	ing.ix.AddMembers(newMems)

	ingMetrics.filesUpserted.Inc()
	ingMetrics.typesInserted.Add(float64(len(newTypes)))
	ingMetrics.membersInserted.Add(float64(len(newMems)))

	if f.Body != nil && f.RelativePath != "" && f.Project != "" {
		ing.mirrorUpdate(mirror.SourcePath(f.Project, f.RelativePath), f.Body)
	}
	return false, nil
}

func (ing *Ingestor) applyAssets(assets []storage.Asset) error {
	stored, err := ing.store.UpsertAssets(assets)
	if err != nil {
		return err
	}
	ing.ix.UpsertAssets(stored)
	ingMetrics.assetsUpserted.Add(float64(len(stored)))
	return nil
}

// afterBatch sets the post-batch flags: lazy depth recompute, grep cache
// invalidation, inheritance graph rebuild, sorted-array refresh.
func (ing *Ingestor) afterBatch() {
	if err := ing.store.SetFlag(storage.MetaDepthComputeNeeded, true); err != nil {
		ing.logger.Warn("ingest.flag.failed", "flag", storage.MetaDepthComputeNeeded, "err", err)
	}
	if ing.grep != nil {
		ing.grep.InvalidateCache()
	}
	ing.ix.RefreshSorted()
	if ing.g != nil {
		ing.g.Rebuild(ing.ix)
	}
}

// mirrorUpdate writes a mirror file; failures are logged, never fatal.
func (ing *Ingestor) mirrorUpdate(relative string, content []byte) {
	if ing.mirror == nil {
		return
	}
	if err := ing.mirror.UpdateFile(relative, content); err != nil {
		ing.logger.Warn("ingest.mirror.update_failed", "path", relative, "err", err)
		ingMetrics.mirrorErrors.Inc()
		return
	}
	ingMetrics.mirrorWrites.Inc()
}

func (ing *Ingestor) mirrorDelete(relative string) {
	if ing.mirror == nil {
		return
	}
	if err := ing.mirror.DeleteFile(relative); err != nil {
		ing.logger.Warn("ingest.mirror.delete_failed", "path", relative, "err", err)
		ingMetrics.mirrorErrors.Inc()
		return
	}
	ingMetrics.mirrorWrites.Inc()
}

// ComputeDepthsIfNeeded runs the lazy depth pass when flagged: walks the
// graph, writes per-type depths to the store and the index, clears the
// flag.
func (ing *Ingestor) ComputeDepthsIfNeeded() error {
	needed, err := ing.store.Flag(storage.MetaDepthComputeNeeded)
	if err != nil || !needed {
		return err
	}
	byName := ing.g.ComputeDepths()
	depths := make(map[int64]int)
	ing.ix.EachParentEdge(func(child, parent string, isAsset bool) {
		if isAsset {
			return
		}
		depth, ok := byName[child]
		if !ok {
			return
		}
		for _, id := range ing.ix.IDsForName(index.EntityType, strings.ToLower(child)) {
			depths[id] = depth
		}
	})
	if err := ing.store.UpdateTypeDepths(depths); err != nil {
		return err
	}
	ing.ix.SetTypeDepths(depths)
	return ing.store.SetFlag(storage.MetaDepthComputeNeeded, false)
}
