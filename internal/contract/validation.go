// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package contract

import (
	"os"
	"strconv"
)

const (
	// DefaultSoftLimitBytes is the baseline soft limit for request bodies.
	DefaultSoftLimitBytes = 64 << 20 // 64 MiB

	// MaxBatchQueries is the most queries one /batch request may carry.
	MaxBatchQueries = 10
)

// batchMethods is the whitelist of query methods /batch accepts. Ingest
// and diagnostics stay off it; batching exists for read lookups only.
var batchMethods = map[string]struct{}{
	"findType":         {},
	"findMember":       {},
	"findFile":         {},
	"findAsset":        {},
	"findChildren":     {},
	"listModules":      {},
	"browseModule":     {},
	"browseAssets":     {},
	"listAssetFolders": {},
	"explainType":      {},
}

// BatchMethodAllowed reports whether a /batch entry may name the method.
func BatchMethodAllowed(method string) bool {
	_, ok := batchMethods[method]
	return ok
}

// SoftLimitBytes returns the effective soft limit for request body size.
// Controlled via env UEINDEX_SOFT_LIMIT_BYTES; falls back to
// DefaultSoftLimitBytes.
func SoftLimitBytes() int {
	if v := os.Getenv("UEINDEX_SOFT_LIMIT_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultSoftLimitBytes
}

// ValidationResult represents the result of a validation check.
type ValidationResult struct {
	OK      bool
	Message string
}

// ValidateBatch checks the shape of a /batch request before any query in
// it runs.
func ValidateBatch(queryCount, bodyBytes int) *ValidationResult {
	if queryCount == 0 {
		return &ValidationResult{Message: "batch carries no queries"}
	}
	if queryCount > MaxBatchQueries {
		return &ValidationResult{Message: "batch exceeds the query limit"}
	}
	if bodyBytes > SoftLimitBytes() {
		return &ValidationResult{Message: "batch body exceeds the soft limit"}
	}
	return &ValidationResult{OK: true}
}
