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

package server

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsServer holds Prometheus metrics for the HTTP query surface.
type metricsServer struct {
	once sync.Once

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var srvMetrics metricsServer

func (m *metricsServer) init() {
	m.once.Do(func() {
		m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ueindex_query_requests_total",
			Help: "Query requests by kind",
		}, []string{"kind"})
		m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ueindex_query_seconds",
			Help:    "Query duration by kind",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"kind"})

		prometheus.MustRegister(m.requests, m.duration)
	})
}
