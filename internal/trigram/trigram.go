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

// Package trigram implements the byte-trigram primitives shared by the name
// index, the content prefilter and the grep pipeline.
//
// A trigram is a 24-bit integer encoding three consecutive lowercased bytes:
// (c[0]<<16)|(c[1]<<8)|c[2]. Trigrams containing a newline, carriage return
// or NUL are skipped so that a match can never cross a line boundary.
package trigram

import (
	"crypto/md5"
	"encoding/binary"
	"strings"
)

// Trigram is a 24-bit encoding of three consecutive lowercased bytes.
type Trigram = uint32

// lowerByte folds ASCII upper case without touching other bytes.
func lowerByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

// breaksLine reports whether c may not appear inside a trigram.
func breaksLine(c byte) bool {
	return c == '\n' || c == '\r' || c == 0
}

// Extract returns the set of distinct trigrams in data, in first-seen order.
// Inputs shorter than three bytes yield nil.
func Extract(data []byte) []Trigram {
	if len(data) < 3 {
		return nil
	}
	seen := make(map[Trigram]struct{}, len(data))
	out := make([]Trigram, 0, len(data)-2)
	for i := 0; i+2 < len(data); i++ {
		a, b, c := data[i], data[i+1], data[i+2]
		if breaksLine(a) || breaksLine(b) || breaksLine(c) {
			continue
		}
		t := Trigram(lowerByte(a))<<16 | Trigram(lowerByte(b))<<8 | Trigram(lowerByte(c))
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ExtractString is Extract over a string, used for identifier names.
func ExtractString(s string) []Trigram {
	return Extract([]byte(s))
}

// String renders a trigram back to its three bytes, for diagnostics.
func String(t Trigram) string {
	return string([]byte{byte(t >> 16), byte(t >> 8), byte(t)})
}

// ContentHash returns the 64-bit content hash of data: the first eight
// little-endian bytes of an MD5 digest, reinterpreted as a signed integer so
// it round-trips through the store's INTEGER column.
func ContentHash(data []byte) int64 {
	sum := md5.Sum(data)
	return int64(binary.LittleEndian.Uint64(sum[:8]))
}

// metaChars are the regex metacharacters that make a pattern unindexable.
// '|' is absent: alternation of pure literals is reduced separately.
const metaChars = `\.+*?()[]{}^$`

// isPureLiteral reports whether s contains no regex metacharacters at all.
func isPureLiteral(s string) bool {
	return !strings.ContainsAny(s, metaChars+"|")
}

// RequiredForPattern reduces a user regex to the set of trigrams every match
// must contain, used to prune the candidate file set before running the real
// pattern.
//
// A pure literal yields its own trigram set. An alternation of pure literals
// yields the intersection of the branch sets. Everything else, and any
// reduction that ends up empty, is unindexable and yields nil: the caller
// must fall back to the external engine or an exhaustive scan. nil means
// unindexable; a non-nil result is always non-empty.
func RequiredForPattern(pattern string) []Trigram {
	if pattern == "" {
		return nil
	}
	if isPureLiteral(pattern) {
		return nonEmpty(ExtractString(pattern))
	}
	if !strings.ContainsAny(pattern, metaChars) {
		// Alternation of pure literals: every branch must itself reduce,
		// and a match is only guaranteed to contain the common trigrams.
		branches := strings.Split(pattern, "|")
		var common []Trigram
		for i, branch := range branches {
			ts := ExtractString(branch)
			if len(ts) == 0 {
				return nil
			}
			if i == 0 {
				common = ts
				continue
			}
			common = intersect(common, ts)
			if len(common) == 0 {
				return nil
			}
		}
		return nonEmpty(common)
	}
	return nil
}

func nonEmpty(ts []Trigram) []Trigram {
	if len(ts) == 0 {
		return nil
	}
	return ts
}

func intersect(a, b []Trigram) []Trigram {
	in := make(map[Trigram]struct{}, len(b))
	for _, t := range b {
		in[t] = struct{}{}
	}
	out := a[:0]
	for _, t := range a {
		if _, ok := in[t]; ok {
			out = append(out, t)
		}
	}
	return out
}
