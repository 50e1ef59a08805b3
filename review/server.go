// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

// Package review exposes the geocoding results over HTTP so a human can
// inspect low confidence matches and pin locations by hand.
package review

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/twsaputra/petabanjir/geocode"
	"github.com/twsaputra/petabanjir/report"
	"github.com/twsaputra/petabanjir/spatial"
)

type Server struct {
	repo     report.Repository
	geocoder geocode.Geocoder
}

// NewServer creates a review server. geocoder may be nil, in which case
// the suggest endpoint is disabled.
func NewServer(repo report.Repository, geocoder geocode.Geocoder) *Server {
	return &Server{
		repo:     repo,
		geocoder: geocoder,
	}
}

// Run serves the review API on the given address until the listener fails.
func (s *Server) Run(listen string) error {
	r := gin.Default()

	r.GET("/api/stats", s.getStats)
	r.GET("/api/reports", s.listReports)
	r.GET("/api/reports/failed", s.listFailed)
	r.GET("/api/reports/review", s.listReview)
	r.GET("/api/reports/:id", s.getReport)
	r.GET("/api/reports/:id/suggest", s.suggestLocation)
	r.POST("/api/reports/:id/location", s.setLocation)

	return r.Run(listen)
}

func (s *Server) getStats(ctx *gin.Context) {
	stats, err := s.repo.Stats()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, stats)
}

func (s *Server) listReports(ctx *gin.Context) {
	confidence := ctx.Query("confidence")

	limit, err := intQuery(ctx, "limit", 100)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})

		return
	}

	offset, err := intQuery(ctx, "offset", 0)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset parameter"})

		return
	}

	reports, err := s.repo.ListGeocoded(confidence, limit, offset)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

func intQuery(ctx *gin.Context, name string, fallback int) (int, error) {
	raw := ctx.Query(name)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, errors.New("not a non-negative integer")
	}

	return value, nil
}

func (s *Server) listFailed(ctx *gin.Context) {
	reports, err := s.repo.ListFailed()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

// listReview returns the queue of low confidence matches awaiting a
// human decision.
func (s *Server) listReview(ctx *gin.Context) {
	reports, err := s.repo.ListGeocoded(geocode.ConfidenceLow, 0, 0)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

func (s *Server) getReport(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})

		return
	}

	record, err := s.repo.Get(id)
	if errors.Is(err, sql.ErrNoRows) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "report not found"})

		return
	}

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, record)
}

func (s *Server) suggestLocation(ctx *gin.Context) {
	if s.geocoder == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "no geocoding provider configured"})

		return
	}

	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})

		return
	}

	record, err := s.repo.Get(id)
	if errors.Is(err, sql.ErrNoRows) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "report not found"})

		return
	}

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	outcome, err := s.geocoder.Geocode(ctx.Request.Context(), record.Address)
	if geocode.IsNoMatch(err) {
		ctx.JSON(http.StatusOK, gin.H{"found": false})

		return
	}

	if err != nil {
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"found":        true,
		"latitude":     outcome.Point.Lat,
		"longitude":    outcome.Point.Lng,
		"confidence":   outcome.Confidence,
		"display_name": outcome.DisplayName,
	})
}

// SetLocationRequest carries a manually pinned coordinate.
type SetLocationRequest struct {
	Latitude  float64 `json:"latitude" binding:"required"`
	Longitude float64 `json:"longitude" binding:"required"`
}

// setLocation stores a human supplied coordinate. Manual locations are
// trusted, so they land with high confidence.
func (s *Server) setLocation(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})

		return
	}

	var req SetLocationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	point := spatial.Point{Lat: req.Latitude, Lng: req.Longitude}
	if !point.InIndonesia() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "coordinate is outside Indonesia"})

		return
	}

	err = s.repo.SaveOutcome(id, point, geocode.ConfidenceHigh, geocode.MethodManual, time.Now())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
