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

// Package config loads and validates the service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	Projects []Project `yaml:"projects"`
	Exclude  []string  `yaml:"exclude"`

	Data    Data    `yaml:"data"`
	Zoekt   Zoekt   `yaml:"zoekt"`
	Watcher Watcher `yaml:"watcher"`
}

// Project is one indexed source tree.
type Project struct {
	Name        string   `yaml:"name"`
	Paths       []string `yaml:"paths"`
	Language    string   `yaml:"language"`
	Extensions  []string `yaml:"extensions"`
	ContentRoot string   `yaml:"contentRoot"`
}

// Data holds the storage locations.
type Data struct {
	DBPath    string `yaml:"dbPath"`
	MirrorDir string `yaml:"mirrorDir"`
	IndexDir  string `yaml:"indexDir"`
}

// Zoekt configures the external full-text engine.
type Zoekt struct {
	Enabled           bool   `yaml:"enabled"`
	WebPort           int    `yaml:"webPort"`
	Parallelism       int    `yaml:"parallelism"`
	FileLimitBytes    int64  `yaml:"fileLimitBytes"`
	ReindexDebounceMs int    `yaml:"reindexDebounceMs"`
	SearchTimeoutMs   int    `yaml:"searchTimeoutMs"`
	ZoektBin          string `yaml:"zoektBin"`
}

// Watcher configures ingest coalescing for the external watcher.
type Watcher struct {
	DebounceMs int `yaml:"debounceMs"`
}

// Defaults applied when the file leaves fields unset.
const (
	DefaultHost    = "127.0.0.1"
	DefaultPort    = 27015
	DefaultWebPort = 6070
)

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults(baseDir string) {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Zoekt.WebPort == 0 {
		c.Zoekt.WebPort = DefaultWebPort
	}
	if c.Zoekt.SearchTimeoutMs == 0 {
		c.Zoekt.SearchTimeoutMs = 10000
	}
	if c.Watcher.DebounceMs == 0 {
		c.Watcher.DebounceMs = 500
	}
	if c.Data.DBPath == "" {
		c.Data.DBPath = filepath.Join(baseDir, "data", "index.db")
	}
	if c.Data.MirrorDir == "" {
		c.Data.MirrorDir = filepath.Join(baseDir, "data", "mirror")
	}
	if c.Data.IndexDir == "" {
		c.Data.IndexDir = filepath.Join(baseDir, "data")
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	seen := map[string]struct{}{}
	for i, p := range c.Projects {
		if p.Name == "" {
			return fmt.Errorf("projects[%d]: name is required", i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("projects[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = struct{}{}
		if len(p.Paths) == 0 {
			return fmt.Errorf("project %q: at least one path is required", p.Name)
		}
	}
	return nil
}

// ProjectNames returns the configured project names in order.
func (c *Config) ProjectNames() []string {
	names := make([]string, 0, len(c.Projects))
	for _, p := range c.Projects {
		names = append(names, p.Name)
	}
	return names
}

// ProjectByName returns the named project, or nil.
func (c *Config) ProjectByName(name string) *Project {
	for i := range c.Projects {
		if c.Projects[i].Name == name {
			return &c.Projects[i]
		}
	}
	return nil
}

// ZoektBaseURL is the engine endpoint derived from the web port.
func (c *Config) ZoektBaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", c.Zoekt.WebPort)
}

// NormalizePath rewrites an absolute source path into the response form:
// forward slashes, the owning project's path prefix stripped, the project
// name prepended. Paths under no configured project keep their absolute
// form with slashes normalized.
func (c *Config) NormalizePath(abs string) string {
	slashed := strings.ReplaceAll(abs, "\\", "/")
	var bestProject string
	var bestPrefix string
	for _, p := range c.Projects {
		for _, root := range p.Paths {
			prefix := strings.TrimSuffix(strings.ReplaceAll(root, "\\", "/"), "/")
			if strings.HasPrefix(slashed, prefix+"/") && len(prefix) > len(bestPrefix) {
				bestProject = p.Name
				bestPrefix = prefix
			}
		}
	}
	if bestPrefix != "" {
		return bestProject + slashed[len(bestPrefix):]
	}
	return slashed
}

// RelativeWithin returns the project-relative form of abs within project
// root paths; empty when abs is outside every root.
func (p *Project) RelativeWithin(abs string) string {
	slashed := strings.ReplaceAll(abs, "\\", "/")
	roots := append([]string(nil), p.Paths...)
	// Longest root wins when roots nest.
	sort.Slice(roots, func(i, j int) bool { return len(roots[i]) > len(roots[j]) })
	for _, root := range roots {
		prefix := strings.TrimSuffix(strings.ReplaceAll(root, "\\", "/"), "/")
		if strings.HasPrefix(slashed, prefix+"/") {
			return strings.TrimPrefix(slashed[len(prefix):], "/")
		}
	}
	return ""
}
