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

package index

// internTable dedups highly repeated strings (project, module, language,
// kind) so a million rows share one backing string per distinct value.
type internTable struct {
	table map[string]string
}

func newInternTable() *internTable {
	return &internTable{table: make(map[string]string, 256)}
}

func (it *internTable) intern(s string) string {
	if s == "" {
		return ""
	}
	if canonical, ok := it.table[s]; ok {
		return canonical
	}
	it.table[s] = s
	return s
}

func (it *internTable) size() int {
	return len(it.table)
}
