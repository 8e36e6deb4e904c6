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
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kraklabs/ueindex/internal/config"
	"github.com/kraklabs/ueindex/pkg/storage"
)

// batchSize bounds how many files one local batch carries before applying.
const batchSize = 200

// LocalPipeline walks configured project trees, parses headers and drives
// the regular ingest path. This is the bootstrap alternative to the
// external watcher.
type LocalPipeline struct {
	cfg      *config.Config
	ingestor *Ingestor
	parser   HeaderParser
	logger   *slog.Logger
}

// NewLocalPipeline wires the walker over an ingestor.
func NewLocalPipeline(cfg *config.Config, ingestor *Ingestor, parser HeaderParser, logger *slog.Logger) *LocalPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalPipeline{cfg: cfg, ingestor: ingestor, parser: parser, logger: logger}
}

// Run indexes every configured project. mtimes from the store skip
// unchanged files before any read happens.
func (lp *LocalPipeline) Run(ctx context.Context) error {
	for i := range lp.cfg.Projects {
		project := &lp.cfg.Projects[i]
		if err := lp.runProject(ctx, project); err != nil {
			return fmt.Errorf("index project %s: %w", project.Name, err)
		}
	}
	return nil
}

func (lp *LocalPipeline) runProject(ctx context.Context, project *config.Project) error {
	start := time.Now()
	known, err := lp.ingestor.store.FileMtimes(project.Language)
	if err != nil {
		return err
	}
	lp.setPhase(project.Language, storage.PhaseIndexing, 0, 0, "")

	var batch Batch
	var total, skipped int
	flush := func() {
		if len(batch.Files) == 0 {
			return
		}
		res := lp.ingestor.Apply(batch)
		for _, e := range res.Errors {
			lp.logger.Warn("ingest.local.file_error", "path", e.Path, "err", e.Error)
		}
		batch = Batch{}
	}

	for _, root := range project.Paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rel := strings.ReplaceAll(strings.TrimPrefix(strings.TrimPrefix(path, root), string(filepath.Separator)), "\\", "/")
			if d.IsDir() {
				if lp.excluded(rel + "/") {
					return filepath.SkipDir
				}
				return nil
			}
			if lp.excluded(rel) || !lp.wantedExtension(project, path) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return err
			}
			mtime := info.ModTime().UnixMilli()
			total++
			if prev, ok := known[path]; ok && prev == mtime {
				skipped++
				return nil
			}

			upsert, err := lp.buildUpsert(project, root, path, mtime)
			if err != nil {
				lp.logger.Warn("ingest.local.parse_failed", "path", path, "err", err)
				return nil
			}
			batch.Files = append(batch.Files, *upsert)
			if len(batch.Files) >= batchSize {
				flush()
			}
			return nil
		})
		if err != nil {
			lp.setPhase(project.Language, storage.PhaseError, total, total-skipped, err.Error())
			return err
		}
	}
	flush()
	lp.setPhase(project.Language, storage.PhaseReady, total, total-skipped, "")

	lp.logger.Info("ingest.local.project_done",
		"project", project.Name,
		"files", total,
		"unchanged", skipped,
		"elapsed", time.Since(start),
	)
	return nil
}

// setPhase records the per-language indexing phase; failures only log.
func (lp *LocalPipeline) setPhase(language, phase string, total, done int, message string) {
	err := lp.ingestor.store.SetIndexStatus(storage.IndexStatus{
		Language:   language,
		Phase:      phase,
		FilesTotal: total,
		FilesDone:  done,
		Message:    message,
	})
	if err != nil {
		lp.logger.Warn("ingest.local.status", "language", language, "err", err)
	}
}

func (lp *LocalPipeline) excluded(rel string) bool {
	for _, pattern := range lp.cfg.Exclude {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func (lp *LocalPipeline) wantedExtension(project *config.Project, path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if len(project.Extensions) > 0 {
		for _, want := range project.Extensions {
			if strings.TrimPrefix(strings.ToLower(want), ".") == ext {
				return true
			}
		}
		return false
	}
	return storage.LanguageFromExtension(ext) == project.Language
}

func (lp *LocalPipeline) buildUpsert(project *config.Project, root, path string, mtime int64) (*FileUpsert, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	upsert := &FileUpsert{
		Path:         path,
		Project:      project.Name,
		Module:       moduleFor(root, path),
		Language:     project.Language,
		Mtime:        mtime,
		RelativePath: project.RelativeWithin(path),
	}
	if int64(len(raw)) <= LocalBodyCap {
		upsert.Body = raw
	}

	if project.Language == storage.LanguageCpp && lp.parser != nil {
		parsed, err := lp.parser.ParseHeader(raw, path)
		if err != nil {
			return nil, err
		}
		upsert.Types = parsed.Types
		upsert.Members = parsed.Members
	}
	return upsert, nil
}

// moduleFor derives the dotted module path from a file location under its
// project root: Source/Runtime/Engine/Actor.h -> Source.Runtime.Engine.
func moduleFor(root, path string) string {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return ""
	}
	return strings.ReplaceAll(strings.ReplaceAll(rel, "\\", "/"), "/", ".")
}
