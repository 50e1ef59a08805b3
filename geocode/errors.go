// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// GeocodingError represents geocoding specific failures.
type GeocodingError struct {
	Type    ErrorType
	Message string
	Err     error
}

// ErrorType defines the kinds of geocoding failures.
type ErrorType int

const (
	// ErrorTypeUnknown unclassified failure.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeRateLimit provider rate limit reached.
	ErrorTypeRateLimit
	// ErrorTypeTimeout connection timed out.
	ErrorTypeTimeout
	// ErrorTypeNetwork connection failed.
	ErrorTypeNetwork
	// ErrorTypeNoMatch provider returned no usable in-country candidate.
	ErrorTypeNoMatch
	// ErrorTypeOutOfBounds best candidate resolves outside Indonesia.
	ErrorTypeOutOfBounds
	// ErrorTypeInvalidRequest malformed request.
	ErrorTypeInvalidRequest
)

func (e *GeocodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *GeocodingError) Unwrap() error {
	return e.Err
}

func errorType(err error) (ErrorType, bool) {
	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type, true
	}

	return ErrorTypeUnknown, false
}

// IsNoMatch reports whether the error means no candidate survived
// filtering and scoring.
func IsNoMatch(err error) bool {
	t, ok := errorType(err)

	return ok && t == ErrorTypeNoMatch
}

// IsOutOfBounds reports whether the error means the winning candidate
// lies outside Indonesia's bounding envelope.
func IsOutOfBounds(err error) bool {
	t, ok := errorType(err)

	return ok && t == ErrorTypeOutOfBounds
}

// IsNetworkError reports whether the error is a transport-level failure,
// including exhausted retries.
func IsNetworkError(err error) bool {
	if t, ok := errorType(err); ok {
		return t == ErrorTypeNetwork || t == ErrorTypeTimeout || t == ErrorTypeRateLimit
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "deadline exceeded")
}

// retryable reports whether another attempt may succeed.
func retryable(err error) bool {
	t, ok := errorType(err)

	return ok && (t == ErrorTypeNetwork || t == ErrorTypeTimeout || t == ErrorTypeRateLimit)
}

// ClassifyHTTPError maps an HTTP status code to a geocoding error.
func ClassifyHTTPError(statusCode int) *GeocodingError {
	switch statusCode {
	case http.StatusTooManyRequests: // 429
		return &GeocodingError{
			Type:    ErrorTypeRateLimit,
			Message: "provider rate limit reached",
		}
	case http.StatusBadRequest: // 400
		return &GeocodingError{
			Type:    ErrorTypeInvalidRequest,
			Message: "invalid request",
		}
	case http.StatusNotFound: // 404
		return &GeocodingError{
			Type:    ErrorTypeNoMatch,
			Message: "location not found",
		}
	case http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return &GeocodingError{
			Type:    ErrorTypeNetwork,
			Message: fmt.Sprintf("service unavailable (status %d)", statusCode),
		}
	default:
		return &GeocodingError{
			Type:    ErrorTypeUnknown,
			Message: fmt.Sprintf("HTTP error %d", statusCode),
		}
	}
}
