// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

package review

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twsaputra/petabanjir/geocode"
	"github.com/twsaputra/petabanjir/report"
	"github.com/twsaputra/petabanjir/spatial"
)

// stubGeocoder returns a fixed outcome for every address.
type stubGeocoder struct {
	outcome *geocode.Outcome
	err     error
}

func (s *stubGeocoder) Geocode(_ context.Context, _ string) (*geocode.Outcome, error) {
	return s.outcome, s.err
}

func setupServerTest(t *testing.T, geocoder geocode.Geocoder) (*gin.Engine, report.Repository) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := report.NewRepository(db)
	require.NoError(t, repo.CreateSchema())

	server := NewServer(repo, geocoder)

	router := gin.Default()
	router.GET("/api/stats", server.getStats)
	router.GET("/api/reports", server.listReports)
	router.GET("/api/reports/failed", server.listFailed)
	router.GET("/api/reports/review", server.listReview)
	router.GET("/api/reports/:id", server.getReport)
	router.GET("/api/reports/:id/suggest", server.suggestLocation)
	router.POST("/api/reports/:id/location", server.setLocation)

	return router, repo
}

func seedResolvedReport(t *testing.T, repo report.Repository, address, confidence string) *report.Report {
	t.Helper()

	r := &report.Report{Address: address}
	require.NoError(t, repo.Insert(r))

	err := repo.SaveOutcome(r.ID, spatial.Point{Lat: -6.2, Lng: 106.8}, confidence, "osm", time.Now())
	require.NoError(t, err)

	return r
}

func TestStatsAPI(t *testing.T) {
	router, repo := setupServerTest(t, nil)

	seedResolvedReport(t, repo, "Menteng, Jakarta Pusat", "HIGH")
	require.NoError(t, repo.Insert(&report.Report{Address: "Desa Ampel, Boyolali"}))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/stats", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var stats report.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Geocoded)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.High)
}

func TestReviewQueueListsOnlyLowConfidence(t *testing.T) {
	router, repo := setupServerTest(t, nil)

	seedResolvedReport(t, repo, "Menteng, Jakarta Pusat", "HIGH")
	low := seedResolvedReport(t, repo, "Tebet", "LOW")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/reports/review", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Reports []*report.Report `json:"reports"`
		Count   int              `json:"count"`
	}

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Equal(t, 1, response.Count)
	assert.Equal(t, low.ID, response.Reports[0].ID)
}

func TestListReportsConfidenceFilter(t *testing.T) {
	router, repo := setupServerTest(t, nil)

	seedResolvedReport(t, repo, "Menteng, Jakarta Pusat", "HIGH")
	seedResolvedReport(t, repo, "Tebet", "MEDIUM")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/reports?confidence=MEDIUM", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Reports []*report.Report `json:"reports"`
	}

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Reports, 1)
	assert.Equal(t, "Tebet", response.Reports[0].Address)
}

func TestListReportsRejectsBadPagination(t *testing.T) {
	router, _ := setupServerTest(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/reports?limit=banana", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetReportAPI(t *testing.T) {
	router, repo := setupServerTest(t, nil)

	r := seedResolvedReport(t, repo, "Menteng, Jakarta Pusat", "HIGH")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("/api/reports/%d", r.ID), nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var got report.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, "Menteng, Jakarta Pusat", got.Address)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/reports/9999", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetLocationAPI(t *testing.T) {
	router, repo := setupServerTest(t, nil)

	r := &report.Report{Address: "Gang Buntu, entah di mana"}
	require.NoError(t, repo.Insert(r))
	require.NoError(t, repo.MarkFailed(r.ID))

	body, _ := json.Marshal(map[string]float64{
		"latitude":  -6.2251,
		"longitude": 106.8530,
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("/api/reports/%d/location", r.ID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	stored, err := repo.Get(r.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsResolved())
	assert.Equal(t, "manual", stored.Method)
	assert.Equal(t, "HIGH", stored.Confidence)
	assert.InDelta(t, -6.2251, stored.Point.Lat, 0.000001)
}

func TestSetLocationRejectsForeignCoordinates(t *testing.T) {
	router, repo := setupServerTest(t, nil)

	r := &report.Report{Address: "Menteng"}
	require.NoError(t, repo.Insert(r))

	body, _ := json.Marshal(map[string]float64{
		"latitude":  -34.9,
		"longitude": -56.16,
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("/api/reports/%d/location", r.ID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	stored, err := repo.Get(r.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsResolved())
}

func TestSuggestLocationAPI(t *testing.T) {
	geocoder := &stubGeocoder{outcome: &geocode.Outcome{
		Point:       spatial.Point{Lat: -7.45, Lng: 110.65},
		Confidence:  "MEDIUM",
		Method:      "osm",
		DisplayName: "Ampel, Boyolali, Jawa Tengah, Indonesia",
		GeocodedAt:  time.Now(),
	}}

	router, repo := setupServerTest(t, geocoder)

	r := &report.Report{Address: "Desa Ampel, Boyolali"}
	require.NoError(t, repo.Insert(r))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("/api/reports/%d/suggest", r.ID), nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Found      bool    `json:"found"`
		Latitude   float64 `json:"latitude"`
		Longitude  float64 `json:"longitude"`
		Confidence string  `json:"confidence"`
	}

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Found)
	assert.InDelta(t, -7.45, response.Latitude, 0.001)
	assert.Equal(t, "MEDIUM", response.Confidence)
}

func TestSuggestLocationWithoutGeocoder(t *testing.T) {
	router, repo := setupServerTest(t, nil)

	r := &report.Report{Address: "Desa Ampel, Boyolali"}
	require.NoError(t, repo.Insert(r))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("/api/reports/%d/suggest", r.ID), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
