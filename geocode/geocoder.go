// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocode resolves free-text Indonesian administrative addresses
// into validated coordinates.
package geocode

import (
	"context"
	"time"

	"github.com/twsaputra/petabanjir/spatial"
)

// Confidence tiers attached to a resolved coordinate.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// Geocoding methods recorded on persisted outcomes.
const (
	MethodOSM    = "osm"
	MethodGoogle = "google_maps"
	MethodManual = "manual"
)

// Candidate is one geocoding result returned by the provider for a query.
type Candidate struct {
	Point       spatial.Point
	DisplayName string
	Importance  float64 // provider-assigned, in [0,1]
	Class       string
	Type        string
	AddressType string
	Address     map[string]string
}

// Outcome is the terminal artifact of a successful resolution.
type Outcome struct {
	Point       spatial.Point
	Confidence  string // HIGH, MEDIUM, LOW
	Method      string
	DisplayName string
	GeocodedAt  time.Time
}

// Geocoder resolves an address to a validated outcome.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Outcome, error)
}
