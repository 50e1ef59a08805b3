// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/twsaputra/petabanjir/spatial"
)

// validMethods are the geocoding methods allowed on persisted outcomes.
var validMethods = map[string]bool{
	"osm":         true,
	"google_maps": true,
	"manual":      true,
}

// validConfidence are the confidence tiers allowed on persisted outcomes.
var validConfidence = map[string]bool{
	"HIGH":   true,
	"MEDIUM": true,
	"LOW":    true,
}

// validateOutcome is the repository's last line of defense: a coordinate
// outside Indonesia must never be persisted as a success, no matter which
// geocoder produced it.
func validateOutcome(p spatial.Point, confidence, method string) error {
	if !p.Valid() {
		return fmt.Errorf("invalid coordinate %s", p)
	}

	if !p.InIndonesia() {
		return fmt.Errorf("coordinate %s outside Indonesia's bounding envelope", p)
	}

	if !validConfidence[confidence] {
		return fmt.Errorf("invalid confidence tier: %q", confidence)
	}

	if !validMethods[method] {
		return fmt.Errorf("invalid geocoding method: %q", method)
	}

	return nil
}

func validateReport(r *Report) error {
	if r == nil {
		return errors.New("report can't be nil")
	}

	if strings.TrimSpace(r.Address) == "" {
		return errors.New("address can't be empty")
	}

	if len(r.Address) > 500 {
		return errors.New("address too long (max 500 characters)")
	}

	if r.Point != nil {
		if err := validateOutcome(*r.Point, r.Confidence, r.Method); err != nil {
			return err
		}
	}

	return nil
}
