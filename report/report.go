// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

// Package report persists citizen flood reports and their geocoding
// outcomes.
package report

import (
	"fmt"
	"time"

	"github.com/twsaputra/petabanjir/spatial"
	"github.com/uber/h3-go/v4"
)

// Geocoding status of a report.
const (
	StatusPending  = 0
	StatusResolved = 1
	StatusFailed   = -1
)

// Report is one citizen flood report. The engine only ever reads the raw
// address and the geocoding fields, and only ever writes the latter.
type Report struct {
	ID         int64          `json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	Address    string         `json:"address"`
	WaterLevel string         `json:"water_level,omitempty"`
	Reporter   string         `json:"reporter,omitempty"`
	Point      *spatial.Point `json:"point,omitempty"`
	Confidence string         `json:"confidence,omitempty"` // HIGH, MEDIUM, LOW
	Method     string         `json:"method,omitempty"`     // osm, google_maps, manual
	GeocodedAt *time.Time     `json:"geocoded_at,omitempty"`
	Status     int            `json:"status"`
	H3Res6     int64          `json:"-"`
	H3Res7     int64          `json:"-"`
	H3Res8     int64          `json:"-"`
	H3Res9     int64          `json:"-"`
}

// IsResolved reports whether a successful outcome is already recorded.
func (r *Report) IsResolved() bool {
	return r.Status == StatusResolved && r.Point != nil
}

// Resolutions 6-9 cover province-level down to neighbourhood-level map
// clustering.
func (r *Report) computeH3() error {
	cells := [4]*int64{&r.H3Res6, &r.H3Res7, &r.H3Res8, &r.H3Res9}

	if r.Point == nil {
		for _, cell := range cells {
			*cell = 0
		}

		return nil
	}

	latLng := h3.NewLatLng(r.Point.Lat, r.Point.Lng)

	for i, cell := range cells {
		res := 6 + i

		c, err := h3.LatLngToCell(latLng, res)
		if err != nil {
			return fmt.Errorf("converting to h3 cell at res %d: %w", res, err)
		}

		*cell = int64(c)
	}

	return nil
}
