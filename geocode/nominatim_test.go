// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ampelSearchResponse = `[
	{
		"lat": "-7.4513",
		"lon": "110.6532",
		"display_name": "Ampel, Boyolali, Jawa Tengah, Indonesia",
		"importance": 0.35,
		"class": "place",
		"type": "village",
		"addresstype": "village",
		"address": {
			"village": "Desa Ampel",
			"county": "Kabupaten Boyolali",
			"state": "Jawa Tengah",
			"country": "Indonesia",
			"country_code": "id"
		}
	}
]`

// newTestGeocoder builds a geocoder whose rate limiter does not slow the
// test down and registers httpmock on its internal client.
func newTestGeocoder(t *testing.T, clock clockwork.Clock) *NominatimGeocoder {
	t.Helper()

	limiter := NewRateLimiter(time.Millisecond)
	g := newNominatimGeocoder(&ClientOptions{UserAgent: "petabanjir/test"}, limiter, clock)

	httpmock.ActivateNonDefault(g.client)
	t.Cleanup(httpmock.DeactivateAndReset)

	return g
}

func TestNominatimGeocodeSuccess(t *testing.T) {
	g := newTestGeocoder(t, clockwork.NewRealClock())

	httpmock.RegisterResponder(http.MethodGet, DefaultBaseURL+"/search",
		httpmock.NewStringResponder(http.StatusOK, ampelSearchResponse))

	outcome, err := g.Geocode(context.Background(), "Desa Ampel, Kabupaten Boyolali")
	require.NoError(t, err)

	assert.InDelta(t, -7.4513, outcome.Point.Lat, 0.0001)
	assert.InDelta(t, 110.6532, outcome.Point.Lng, 0.0001)
	assert.Equal(t, ConfidenceMedium, outcome.Confidence)
	assert.Equal(t, MethodOSM, outcome.Method)
	assert.Equal(t, "Ampel, Boyolali, Jawa Tengah, Indonesia", outcome.DisplayName)
	assert.False(t, outcome.GeocodedAt.IsZero())

	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestNominatimGeocodeNoResults(t *testing.T) {
	g := newTestGeocoder(t, clockwork.NewRealClock())

	httpmock.RegisterResponder(http.MethodGet, DefaultBaseURL+"/search",
		httpmock.NewStringResponder(http.StatusOK, `[]`))

	_, err := g.Geocode(context.Background(), "Desa Antah Berantah")
	assert.True(t, IsNoMatch(err), "expected no-match error, got %v", err)
}

func TestNominatimGeocodeEmptyAddress(t *testing.T) {
	g := newTestGeocoder(t, clockwork.NewRealClock())

	_, err := g.Geocode(context.Background(), "RT 01 RW 02")
	assert.True(t, IsNoMatch(err), "expected no-match error, got %v", err)

	// Never hit the network for an empty query.
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestNominatimGeocodeForeignOnlyCandidate(t *testing.T) {
	g := newTestGeocoder(t, clockwork.NewRealClock())

	httpmock.RegisterResponder(http.MethodGet, DefaultBaseURL+"/search",
		httpmock.NewStringResponder(http.StatusOK, `[
			{
				"lat": "39.05",
				"lon": "-95.67",
				"display_name": "Jakarta, Hamilton County, United States",
				"importance": 0.5,
				"type": "hamlet",
				"address": {"country": "United States", "country_code": "us"}
			}
		]`))

	_, err := g.Geocode(context.Background(), "Jakarta")
	assert.True(t, IsNoMatch(err), "expected no-match error, got %v", err)
}

func TestNominatimSearchRetriesServerErrors(t *testing.T) {
	clock := clockwork.NewFakeClock()
	g := newTestGeocoder(t, clock)

	httpmock.RegisterResponder(http.MethodGet, DefaultBaseURL+"/search",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "overloaded"))

	done := make(chan error, 1)
	go func() {
		_, err := g.Search(context.Background(), Normalize("Ampel, Boyolali"))
		done <- err
	}()

	// Two backoff waits between the three attempts.
	for range 2 {
		clock.BlockUntil(1)
		clock.Advance(2 * time.Second)
	}

	err := <-done
	require.Error(t, err)
	assert.True(t, IsNetworkError(err), "expected network error, got %v", err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, httpmock.GetTotalCallCount())
}

func TestNominatimSearchDoesNotRetryBadRequest(t *testing.T) {
	g := newTestGeocoder(t, clockwork.NewRealClock())

	httpmock.RegisterResponder(http.MethodGet, DefaultBaseURL+"/search",
		httpmock.NewStringResponder(http.StatusBadRequest, "bad query"))

	_, err := g.Search(context.Background(), Normalize("Ampel"))

	var geoErr *GeocodingError

	require.ErrorAs(t, err, &geoErr)
	assert.Equal(t, ErrorTypeInvalidRequest, geoErr.Type)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

// The public Nominatim instance requires an identifying User-Agent, so
// the full transport stack is exercised against a real listener here.
func TestNominatimRequestShape(t *testing.T) {
	var captured *http.Request

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(context.Background())

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(ampelSearchResponse))
	}))
	defer server.Close()

	limiter := NewRateLimiter(time.Millisecond)
	g := NewNominatimGeocoder(&ClientOptions{
		BaseURL:   server.URL,
		UserAgent: "petabanjir/test (+https://example.invalid)",
	}, limiter)

	_, err := g.Geocode(context.Background(), "Desa Ampel, Kabupaten Boyolali")
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, "petabanjir/test (+https://example.invalid)", captured.Header.Get("User-Agent"))

	query := captured.URL.Query()
	assert.Equal(t, "ampel, boyolali, Indonesia", query.Get("q"))
	assert.Equal(t, "json", query.Get("format"))
	assert.Equal(t, "id", query.Get("countrycodes"))
	assert.Equal(t, "5", query.Get("limit"))
	assert.Equal(t, "1", query.Get("addressdetails"))
}

func TestNominatimStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/status.php" {
			w.WriteHeader(http.StatusOK)

			return
		}

		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	g := NewNominatimGeocoder(&ClientOptions{BaseURL: server.URL}, NewRateLimiter(time.Millisecond))

	assert.NoError(t, g.Status(context.Background()))
}
