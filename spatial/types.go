// Copyright 2025 The PetaBanjir Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"fmt"
	"math"
)

const earthRadius = 6371e3 // meters

// Indonesia's bounding envelope. Matches against identically named places
// abroad are rejected with these limits.
const (
	IndonesiaMinLat = -11.0
	IndonesiaMaxLat = 6.0
	IndonesiaMinLng = 95.0
	IndonesiaMaxLng = 141.0
)

// Point represents a geographical point with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns a string representation of the Point.
func (p Point) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lng)
}

// OSMURL returns an OpenStreetMap permalink centered on the point.
func (p Point) OSMURL() string {
	return fmt.Sprintf("https://www.openstreetmap.org/?mlat=%f&mlon=%f", p.Lat, p.Lng)
}

// Valid reports whether the point lies within global coordinate ranges.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// InIndonesia reports whether the point lies within Indonesia's bounding envelope.
func (p Point) InIndonesia() bool {
	return p.Lat >= IndonesiaMinLat && p.Lat <= IndonesiaMaxLat &&
		p.Lng >= IndonesiaMinLng && p.Lng <= IndonesiaMaxLng
}

// HaversineDistance calculates the distance between two points on Earth in meters.
func (p *Point) HaversineDistance(other *Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLng := (other.Lng - p.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
