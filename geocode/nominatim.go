// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/twsaputra/petabanjir/spatial"
	"github.com/twsaputra/petabanjir/utils/httputils"
)

// DefaultBaseURL is the public Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

const (
	maxCandidates  = 5
	maxAttempts    = 3
	initialBackoff = time.Second
	requestTimeout = 15 * time.Second
)

// ClientOptions configures the Nominatim client.
type ClientOptions struct {
	// BaseURL of a Nominatim-compatible instance. Defaults to the public one.
	BaseURL string

	// UserAgent identifies this client, required by the Nominatim usage policy.
	UserAgent string

	// Enables light tracing of HTTP requests and responses
	EnableHTTPTrace bool

	// Enables full HTTP body tracing
	EnableHTTPBodyTrace bool
}

// NominatimGeocoder resolves addresses through a Nominatim-compatible
// search endpoint. All outbound requests funnel through the shared rate
// limiter, one in flight at a time.
type NominatimGeocoder struct {
	baseURL string
	client  *http.Client
	limiter *RateLimiter
	clock   clockwork.Clock
}

// NewNominatimGeocoder creates a client around the shared rate limiter.
func NewNominatimGeocoder(options *ClientOptions, limiter *RateLimiter) *NominatimGeocoder {
	return newNominatimGeocoder(options, limiter, clockwork.NewRealClock())
}

func newNominatimGeocoder(options *ClientOptions, limiter *RateLimiter, clock clockwork.Clock) *NominatimGeocoder {
	if options == nil {
		options = &ClientOptions{}
	}

	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	userAgent := options.UserAgent
	if userAgent == "" {
		userAgent = "petabanjir/unknown"
	}

	var httpLogWriter io.Writer
	if options.EnableHTTPTrace {
		httpLogWriter = os.Stderr
	}

	transport := &http.Transport{
		MaxIdleConns:          4,
		MaxConnsPerHost:       1,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: requestTimeout,
	}

	loggingTransport := &httputils.LoggingRoundTripper{
		Writer:    httpLogWriter,
		DumpBody:  options.EnableHTTPBodyTrace,
		Transport: transport,
	}

	headerTransport := &httputils.AppendRequestHeadersRoundTripper{
		Headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     "application/json",
		},
		Transport: loggingTransport,
	}

	return &NominatimGeocoder{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   requestTimeout,
			Transport: headerTransport,
		},
		limiter: limiter,
		clock:   clock,
	}
}

// nominatimResult is the subset of a /search entry the engine consumes.
// Nominatim serializes coordinates as strings.
type nominatimResult struct {
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	DisplayName string            `json:"display_name"`
	Importance  float64           `json:"importance"`
	Class       string            `json:"class"`
	Type        string            `json:"type"`
	AddressType string            `json:"addresstype"`
	Address     map[string]string `json:"address"`
}

// Status checks that the provider is reachable before a batch run.
func (g *NominatimGeocoder) Status(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/status.php", nil)
	if err != nil {
		return fmt.Errorf("building status request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider status check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider status check: HTTP %d", resp.StatusCode)
	}

	return nil
}

// Search issues one geocoding request for the normalized query and returns
// up to 5 candidates in provider order. A well-formed empty result is an
// empty slice, not an error. Transient failures are retried with bounded
// exponential backoff; every attempt advances the shared rate-limit clock.
func (g *NominatimGeocoder) Search(ctx context.Context, query NormalizedQuery) ([]Candidate, error) {
	if query.IsEmpty() {
		return nil, &GeocodingError{Type: ErrorTypeNoMatch, Message: "empty query"}
	}

	params := url.Values{}
	params.Set("q", query.Query+", Indonesia")
	params.Set("format", "json")
	params.Set("countrycodes", "id")
	params.Set("limit", strconv.Itoa(maxCandidates))
	params.Set("addressdetails", "1")

	searchURL := g.baseURL + "/search?" + params.Encode()

	var lastErr error

	for attempt := range maxAttempts {
		if attempt > 0 {
			backoff := initialBackoff << (attempt - 1)

			timer := g.clock.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()

				return nil, ctx.Err()
			case <-timer.Chan():
			}
		}

		if err := g.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		candidates, err := g.search(ctx, searchURL)
		if err == nil {
			return candidates, nil
		}

		if !retryable(err) {
			return nil, err
		}

		lastErr = err
	}

	return nil, &GeocodingError{
		Type:    ErrorTypeNetwork,
		Message: fmt.Sprintf("provider unreachable after %d attempts", maxAttempts),
		Err:     lastErr,
	}
}

func (g *NominatimGeocoder) search(ctx context.Context, searchURL string) ([]Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, &GeocodingError{Type: ErrorTypeInvalidRequest, Message: "building search request", Err: err}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPError(resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, &GeocodingError{Type: ErrorTypeUnknown, Message: "decoding search response", Err: err}
	}

	candidates := make([]Candidate, 0, len(results))

	for _, r := range results {
		lat, latErr := strconv.ParseFloat(r.Lat, 64)
		lng, lngErr := strconv.ParseFloat(r.Lon, 64)

		if latErr != nil || lngErr != nil {
			continue // malformed entry, the remaining candidates still count
		}

		candidates = append(candidates, Candidate{
			Point:       spatial.Point{Lat: lat, Lng: lng},
			DisplayName: r.DisplayName,
			Importance:  r.Importance,
			Class:       r.Class,
			Type:        r.Type,
			AddressType: r.AddressType,
			Address:     r.Address,
		})
	}

	return candidates, nil
}

func classifyTransportError(err error) *GeocodingError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &GeocodingError{Type: ErrorTypeTimeout, Message: "provider request timed out", Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &GeocodingError{Type: ErrorTypeTimeout, Message: "provider request timed out", Err: err}
	}

	return &GeocodingError{Type: ErrorTypeNetwork, Message: "provider request failed", Err: err}
}

// Geocode runs the full resolution pipeline for one raw address:
// normalize, query the provider, score the candidates, and validate the
// winner against Indonesia's bounding envelope.
func (g *NominatimGeocoder) Geocode(ctx context.Context, address string) (*Outcome, error) {
	query := Normalize(address)
	if query.IsEmpty() {
		return nil, &GeocodingError{Type: ErrorTypeNoMatch, Message: "address has no usable tokens"}
	}

	candidates, err := g.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	scored := ScoreCandidates(query.Tokens, candidates)
	if len(scored) == 0 {
		return nil, &GeocodingError{Type: ErrorTypeNoMatch, Message: "no candidate resolves to Indonesia"}
	}

	best := scored[0]
	if err := ValidateIndonesia(best.Point); err != nil {
		return nil, err
	}

	return &Outcome{
		Point:       best.Point,
		Confidence:  ConfidenceFor(best.Candidate),
		Method:      MethodOSM,
		DisplayName: best.DisplayName,
		GeocodedAt:  g.clock.Now(),
	}, nil
}
