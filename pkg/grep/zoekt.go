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

package grep

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	qerr "github.com/kraklabs/ueindex/internal/errors"
)

// Engine is the full-text search contract: a query string plus limits in,
// line-level hits with optional context out. The production implementation
// talks to a zoekt web server; tests substitute a fake.
type Engine interface {
	Search(ctx context.Context, query string, opts EngineOptions) (*EngineResult, error)
}

// EngineOptions bound one engine call.
type EngineOptions struct {
	MaxDocs         int
	NumContextLines int
}

// EngineResult is the raw engine response.
type EngineResult struct {
	Files []EngineFile
}

// EngineFile is one matched file.
type EngineFile struct {
	FileName    string
	LineMatches []EngineLineMatch
}

// EngineLineMatch is one matched line with its context window.
type EngineLineMatch struct {
	LineNumber int
	Line       []byte
	Before     []byte
	After      []byte
}

// ZoektClient calls a zoekt web server's JSON search API.
type ZoektClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewZoektClient creates a client with a per-call timeout (default 10s).
func NewZoektClient(baseURL string, timeout time.Duration) *ZoektClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ZoektClient{
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{},
	}
}

type zoektRequest struct {
	Q    string       `json:"Q"`
	Opts zoektOptions `json:"Opts"`
}

type zoektOptions struct {
	MaxDocDisplayCount int  `json:"MaxDocDisplayCount"`
	NumContextLines    int  `json:"NumContextLines"`
	Whole              bool `json:"Whole"`
}

type zoektResponse struct {
	Result struct {
		Files []struct {
			FileName    string `json:"FileName"`
			LineMatches []struct {
				Line       []byte `json:"Line"`
				LineNumber int    `json:"LineNumber"`
				Before     []byte `json:"Before"`
				After      []byte `json:"After"`
			} `json:"LineMatches"`
		} `json:"Files"`
	} `json:"Result"`
}

// Search issues one engine call under the per-call timeout. Connection
// failures surface as NotAvailable, deadline hits as Timeout.
func (z *ZoektClient) Search(ctx context.Context, query string, opts EngineOptions) (*EngineResult, error) {
	ctx, cancel := context.WithTimeout(ctx, z.timeout)
	defer cancel()

	payload, err := json.Marshal(zoektRequest{
		Q: query,
		Opts: zoektOptions{
			MaxDocDisplayCount: opts.MaxDocs,
			NumContextLines:    opts.NumContextLines,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal zoekt request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.baseURL+"/api/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build zoekt request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := z.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, qerr.NewTimeout("full-text engine", err)
		}
		return nil, qerr.NewNotAvailable("full-text engine", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, qerr.NewNotAvailable("full-text engine",
			fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body)))
	}

	var decoded zoektResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, qerr.NewInternal("decode full-text engine response", err)
	}

	out := &EngineResult{}
	for _, f := range decoded.Result.Files {
		ef := EngineFile{FileName: f.FileName}
		for _, lm := range f.LineMatches {
			ef.LineMatches = append(ef.LineMatches, EngineLineMatch{
				LineNumber: lm.LineNumber,
				Line:       lm.Line,
				Before:     lm.Before,
				After:      lm.After,
			})
		}
		out.Files = append(out.Files, ef)
	}
	return out, nil
}
