// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/twsaputra/petabanjir/utils"
)

// Administrative-unit markers stripped before querying. Citizens write
// "Desa Ampel, Kecamatan Ampel, Kabupaten Boyolali"; the provider matches
// better on the bare names.
var adminPrefixes = map[string]bool{
	"desa":      true,
	"dusun":     true,
	"kelurahan": true,
	"kel":       true,
	"kecamatan": true,
	"kec":       true,
	"kabupaten": true,
	"kab":       true,
	"kota":      true,
	"provinsi":  true,
	"prov":      true,
}

// Tokens shorter than this carry no signal (RT/RW numbers, stray particles).
const minTokenLen = 3

// NormalizedQuery is the cleaned form of a raw address: a query string for
// the provider and the ordered tokens used for candidate scoring.
// Ordering follows the raw text left to right, so village-level terms come
// first and the province last.
type NormalizedQuery struct {
	Query  string
	Tokens []string
}

// IsEmpty reports whether normalization produced no usable tokens.
func (q NormalizedQuery) IsEmpty() bool {
	return len(q.Tokens) == 0
}

// Normalize cleans raw address text into a NormalizedQuery. It folds case
// and accents, splits on comma/whitespace/punctuation boundaries, and drops
// administrative prefixes wherever they appear as standalone tokens.
// Normalizing an already-normalized query string is a no-op. Malformed
// input never fails; it just yields fewer tokens.
func Normalize(raw string) NormalizedQuery {
	folded := utils.LowerASCIIFolding(raw)

	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := make([]string, 0, len(fields))

	for _, field := range fields {
		if adminPrefixes[field] {
			continue
		}

		if utf8.RuneCountInString(field) < minTokenLen {
			continue
		}

		tokens = append(tokens, field)
	}

	return NormalizedQuery{
		Query:  strings.Join(tokens, ", "),
		Tokens: tokens,
	}
}
