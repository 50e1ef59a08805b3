// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"fmt"

	"github.com/twsaputra/petabanjir/spatial"
)

// ValidateIndonesia verifies that a coordinate is plausible and falls
// within Indonesia's bounding envelope. Candidates outside the envelope
// are rejected regardless of score: otherwise a name collision with a
// place abroad would be persisted as a success.
func ValidateIndonesia(p spatial.Point) error {
	if !p.Valid() {
		return &GeocodingError{
			Type:    ErrorTypeOutOfBounds,
			Message: fmt.Sprintf("invalid coordinate %s", p),
		}
	}

	if !p.InIndonesia() {
		return &GeocodingError{
			Type: ErrorTypeOutOfBounds,
			Message: fmt.Sprintf("coordinate %s outside Indonesia (lat %g to %g, lng %g to %g)",
				p, spatial.IndonesiaMinLat, spatial.IndonesiaMaxLat,
				spatial.IndonesiaMinLng, spatial.IndonesiaMaxLng),
		}
	}

	return nil
}

// ConfidenceFor derives the confidence tier from the winning candidate's
// address components.
//
// HIGH means a building-level match, MEDIUM street through sub-district,
// LOW city and above.
func ConfidenceFor(c Candidate) string {
	for _, key := range []string{"house_number", "building", "shop", "amenity"} {
		if _, ok := c.Address[key]; ok {
			return ConfidenceHigh
		}
	}

	for _, key := range []string{"road", "village", "hamlet", "suburb", "neighbourhood", "city_district", "district"} {
		if _, ok := c.Address[key]; ok {
			return ConfidenceMedium
		}
	}

	return ConfidenceLow
}
