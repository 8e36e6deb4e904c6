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

// Package uename encodes Unreal type-naming conventions: the single-letter
// type prefixes (AActor, UObject, FVector, EMyEnum, SWidget, IInterface),
// the _C suffix of BlueprintGeneratedClass names, and camelCase word
// splitting for the fuzzy matcher.
package uename

import (
	"strings"
	"unicode"
)

// TypePrefixes are the single-letter conventions tried by exact-match
// fallback, in preference order.
var TypePrefixes = []string{"A", "U", "F", "E", "S", "I"}

// BlueprintClassSuffix marks a BlueprintGeneratedClass name.
const BlueprintClassSuffix = "_C"

// HasTypePrefix reports whether name starts with a UE type prefix followed
// by another upper-case letter, the shape that distinguishes "AActor" from
// "Actor" or "Array".
func HasTypePrefix(name string) bool {
	if len(name) < 2 {
		return false
	}
	for _, p := range TypePrefixes {
		if name[0] == p[0] && name[1] >= 'A' && name[1] <= 'Z' {
			return true
		}
	}
	return false
}

// Strip removes a UE type prefix when present: "AActor" -> "Actor". Names
// without a prefix come back unchanged.
func Strip(name string) string {
	if HasTypePrefix(name) {
		return name[1:]
	}
	return name
}

// TrimBlueprintSuffix removes a trailing "_C": "BP_Hero_C" -> "BP_Hero".
func TrimBlueprintSuffix(name string) string {
	return strings.TrimSuffix(name, BlueprintClassSuffix)
}

// Variants returns the lookup names to try for an exact match, in order:
// the name itself, each prefix prepended, then the stripped form and each
// prefix re-prepended to it. Duplicates are removed while keeping the first
// occurrence.
func Variants(name string) []string {
	out := []string{name}
	for _, p := range TypePrefixes {
		out = append(out, p+name)
	}
	stripped := Strip(name)
	if stripped != name {
		out = append(out, stripped)
		for _, p := range TypePrefixes {
			out = append(out, p+stripped)
		}
	}
	if trimmed := TrimBlueprintSuffix(name); trimmed != name {
		out = append(out, trimmed)
	}
	seen := make(map[string]struct{}, len(out))
	deduped := out[:0]
	for _, v := range out {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		deduped = append(deduped, v)
	}
	return deduped
}

// SplitWords splits a camelCase or snake_case identifier into lowercase
// words: "GetHealthComponent" -> ["get", "health", "component"]. Runs of
// upper case stay one word ("HTTPServer" -> ["http", "server"]).
func SplitWords(name string) []string {
	var words []string
	runes := []rune(name)
	start := 0
	flush := func(end int) {
		if end > start {
			words = append(words, strings.ToLower(string(runes[start:end])))
		}
		start = end
	}
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		switch {
		case cur == '_' || cur == '-':
			flush(i)
			start = i + 1
		case unicode.IsUpper(cur) && unicode.IsLower(prev):
			flush(i)
		case unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
			flush(i)
		case unicode.IsDigit(cur) != unicode.IsDigit(prev):
			flush(i)
		}
	}
	flush(len(runes))
	return words
}

// AccessorPrefixes are the getter/setter verb prefixes the matcher strips
// when comparing accessor variants.
var AccessorPrefixes = []string{"get", "set", "is", "has", "can", "should"}

// StripAccessor removes a leading accessor verb from a lowercased name:
// "gethealth" -> "health". Returns the input and false when no verb leads.
func StripAccessor(lower string) (string, bool) {
	for _, p := range AccessorPrefixes {
		if len(lower) > len(p) && strings.HasPrefix(lower, p) {
			return lower[len(p):], true
		}
	}
	return lower, false
}
