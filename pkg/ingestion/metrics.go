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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsIngestion holds Prometheus metrics for the ingest subsystem.
type metricsIngestion struct {
	once sync.Once

	filesUpserted prometheus.Counter
	filesSkipped  prometheus.Counter
	filesDeleted  prometheus.Counter
	fileErrors    prometheus.Counter

	typesInserted   prometheus.Counter
	membersInserted prometheus.Counter
	assetsUpserted  prometheus.Counter
	assetsDeleted   prometheus.Counter

	mirrorWrites prometheus.Counter
	mirrorErrors prometheus.Counter

	batchDuration prometheus.Histogram
	fileDuration  prometheus.Histogram
}

var ingMetrics metricsIngestion

func (m *metricsIngestion) init() {
	m.once.Do(func() {
		m.filesUpserted = prometheus.NewCounter(prometheus.CounterOpts{Name: "ueindex_ingest_files_upserted_total", Help: "Files inserted or replaced"})
		m.filesSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "ueindex_ingest_files_skipped_total", Help: "Files skipped by the mtime guard"})
		m.filesDeleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "ueindex_ingest_files_deleted_total", Help: "Files removed by delete requests"})
		m.fileErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "ueindex_ingest_file_errors_total", Help: "Per-file ingest failures"})

		m.typesInserted = prometheus.NewCounter(prometheus.CounterOpts{Name: "ueindex_ingest_types_total", Help: "Type rows inserted"})
		m.membersInserted = prometheus.NewCounter(prometheus.CounterOpts{Name: "ueindex_ingest_members_total", Help: "Member rows inserted"})
		m.assetsUpserted = prometheus.NewCounter(prometheus.CounterOpts{Name: "ueindex_ingest_assets_upserted_total", Help: "Assets inserted or replaced"})
		m.assetsDeleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "ueindex_ingest_assets_deleted_total", Help: "Assets removed by delete requests"})

		m.mirrorWrites = prometheus.NewCounter(prometheus.CounterOpts{Name: "ueindex_ingest_mirror_writes_total", Help: "Mirror files written or deleted"})
		m.mirrorErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "ueindex_ingest_mirror_errors_total", Help: "Mirror write failures (non-fatal)"})

		m.batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "ueindex_ingest_batch_seconds", Help: "Whole-batch ingest duration", Buckets: prometheus.DefBuckets})
		m.fileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "ueindex_ingest_file_seconds", Help: "Per-file ingest duration", Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12)})

		prometheus.MustRegister(
			m.filesUpserted, m.filesSkipped, m.filesDeleted, m.fileErrors,
			m.typesInserted, m.membersInserted, m.assetsUpserted, m.assetsDeleted,
			m.mirrorWrites, m.mirrorErrors,
			m.batchDuration, m.fileDuration,
		)
	})
}
