// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"sort"
	"strings"

	"github.com/twsaputra/petabanjir/utils"
)

// Hand-tuned additive scoring weights. Changing them without re-checking
// the resolution quality on the report corpus is a regression waiting to
// happen.
const (
	countryBonus      = 30.0
	tokenMatchBonus   = 20.0
	multiMatchBase    = 15.0
	multiMatchStep    = 5.0
	multiMatchCap     = 30.0
	exactVillageBonus = 35.0
	exactDistrictLvl  = 30.0
	exactAdminBonus   = 25.0
	importanceWeight  = 25.0
)

// Contribution is one audited scoring component.
type Contribution struct {
	Label  string
	Points float64
}

// ScoredCandidate pairs a candidate with its disambiguation score and the
// contributions that produced it.
type ScoredCandidate struct {
	Candidate
	Score         float64
	Contributions []Contribution

	specificity float64 // retained for tie-breaking
}

// ScoreCandidates filters out candidates that do not resolve to Indonesia,
// scores the rest against the normalized tokens, and returns them sorted
// best first. An empty result means no in-country candidate existed.
// Scoring is deterministic: equal totals are broken by specificity, then
// raw provider importance, then the provider's original ordering.
func ScoreCandidates(tokens []string, candidates []Candidate) []ScoredCandidate {
	scored := make([]ScoredCandidate, 0, len(candidates))

	for _, c := range candidates {
		if !inIndonesia(c) {
			// Hard filter: a "Jakarta" in another country must never win,
			// not even when it is the only candidate.
			continue
		}

		sc := ScoredCandidate{Candidate: c}
		sc.add("country", countryBonus)

		matched := matchedTokens(tokens, c)
		if matched > 0 {
			sc.add("token match", float64(matched)*tokenMatchBonus)
		}

		if bonus := multiTokenBonus(matched); bonus > 0 {
			sc.add("multi-level agreement", bonus)
		}

		sc.specificity = specificityBonus(c)
		if sc.specificity > 0 {
			sc.add("specificity", sc.specificity)
		}

		if bonus := exactComponentBonus(tokens, c); bonus > 0 {
			sc.add("exact component", bonus)
		}

		if c.Importance > 0 {
			sc.add("importance", c.Importance*importanceWeight)
		}

		scored = append(scored, sc)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}

		if a.specificity != b.specificity {
			return a.specificity > b.specificity
		}

		return a.Importance > b.Importance
	})

	return scored
}

func (sc *ScoredCandidate) add(label string, points float64) {
	sc.Contributions = append(sc.Contributions, Contribution{Label: label, Points: points})
	sc.Score += points
}

func inIndonesia(c Candidate) bool {
	if cc, ok := c.Address["country_code"]; ok {
		return strings.EqualFold(cc, "id")
	}

	if country, ok := c.Address["country"]; ok {
		return strings.Contains(utils.LowerASCIIFolding(country), "indonesia")
	}

	return strings.Contains(utils.LowerASCIIFolding(c.DisplayName), "indonesia")
}

// matchedTokens counts tokens found in the display name or equal to an
// address component value.
func matchedTokens(tokens []string, c Candidate) int {
	display := utils.LowerASCIIFolding(c.DisplayName)

	matched := 0

	for _, token := range tokens {
		if strings.Contains(display, token) {
			matched++

			continue
		}

		for _, value := range c.Address {
			if utils.LowerASCIIFolding(value) == token {
				matched++

				break
			}
		}
	}

	return matched
}

// multiTokenBonus rewards multi-level address agreement over a single
// coincidental word hit. It kicks in at three simultaneous matches and
// grows linearly with the match count up to the cap.
func multiTokenBonus(matched int) float64 {
	if matched < 3 {
		return 0
	}

	bonus := multiMatchBase + multiMatchStep*float64(matched-3)
	if bonus > multiMatchCap {
		bonus = multiMatchCap
	}

	return bonus
}

// specificityBonus reflects how administratively precise the candidate is.
// Desa/dusun beat kelurahan beat kecamatan beat kota beat kabupaten beat
// provinsi.
func specificityBonus(c Candidate) float64 {
	rank := placeRank(c.Type)
	if r := placeRank(c.AddressType); r > rank {
		rank = r
	}

	return rank
}

func placeRank(placeType string) float64 {
	switch placeType {
	case "village", "hamlet":
		return 40
	case "suburb", "neighbourhood":
		return 35
	case "city_district", "district":
		return 30
	case "city", "town":
		return 20
	case "county":
		return 15
	case "state":
		return 10
	default:
		return 0
	}
}

// exactComponentBonus rewards tokens that exactly equal an address
// component value, weighted by the component's administrative level. Each
// exactly matching token adds its own bonus, so multi-component agreement
// scales the total.
func exactComponentBonus(tokens []string, c Candidate) float64 {
	var total float64

	for _, token := range tokens {
		var best float64

		for key, value := range c.Address {
			if utils.LowerASCIIFolding(value) != token {
				continue
			}

			var bonus float64

			switch key {
			case "village", "hamlet", "suburb", "neighbourhood":
				bonus = exactVillageBonus
			case "city_district", "district":
				bonus = exactDistrictLvl
			case "city", "town", "county", "state", "municipality":
				bonus = exactAdminBonus
			}

			if bonus > best {
				best = bonus
			}
		}

		total += best
	}

	return total
}
