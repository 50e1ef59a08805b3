// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/twsaputra/petabanjir/spatial"
)

// Stats summarizes geocoding coverage across all reports.
type Stats struct {
	Total             int `json:"total"`
	Geocoded          int `json:"geocoded"`
	Failed            int `json:"failed"`
	Pending           int `json:"pending"`
	High              int `json:"high"`
	Medium            int `json:"medium"`
	Low               int `json:"low"`
	DistinctAddresses int `json:"distinct_addresses"`
}

// Repository handles persistence of flood reports and their outcomes.
type Repository interface {
	// CreateSchema creates the flood_reports table
	CreateSchema() error

	// Insert stores a new report and assigns its ID
	Insert(r *Report) error

	// Get returns one report by ID
	Get(id int64) (*Report, error)

	// ListPending returns reports awaiting geocoding, oldest first
	ListPending(limit int) ([]*Report, error)

	// ListByIDs returns the reports with the given IDs, in ID order
	ListByIDs(ids []int64) ([]*Report, error)

	// ListAll returns every report
	ListAll() ([]*Report, error)

	// ListFailed returns reports whose last geocoding attempt failed
	ListFailed() ([]*Report, error)

	// ListGeocoded returns resolved reports, optionally filtered by confidence tier
	ListGeocoded(confidence string, limit, offset int) ([]*Report, error)

	// SaveOutcome writes a validated outcome onto a report
	SaveOutcome(id int64, p spatial.Point, confidence, method string, at time.Time) error

	// MarkFailed records that geocoding was attempted and failed
	MarkFailed(id int64) error

	// Stats returns geocoding coverage counters
	Stats() (*Stats, error)

	// DB returns the underlying database connection
	DB() *sql.DB
}

type sqlReportRepository struct {
	db *sql.DB
}

// NewRepository creates a report repository on the given database.
func NewRepository(db *sql.DB) Repository {
	return &sqlReportRepository{db: db}
}

// DB returns the underlying database connection for advanced queries.
func (r *sqlReportRepository) DB() *sql.DB {
	return r.db
}

func (r *sqlReportRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE SEQUENCE IF NOT EXISTS flood_reports_seq START 1;

		CREATE TABLE IF NOT EXISTS flood_reports (
			id INTEGER PRIMARY KEY DEFAULT nextval('flood_reports_seq'),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			address VARCHAR NOT NULL,
			water_level VARCHAR,
			reporter VARCHAR,
			latitude DOUBLE,
			longitude DOUBLE,
			geocode_confidence VARCHAR,
			geocode_method VARCHAR,
			geocoded_at TIMESTAMP,
			geocode_status TINYINT NOT NULL DEFAULT 0,
			h3_res6 UBIGINT,
			h3_res7 UBIGINT,
			h3_res8 UBIGINT,
			h3_res9 UBIGINT
		);
	`)

	return err
}

func (r *sqlReportRepository) Insert(report *Report) error {
	if err := validateReport(report); err != nil {
		return err
	}

	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}

	if err := report.computeH3(); err != nil {
		return err
	}

	var lat, lng any
	if report.Point != nil {
		lat, lng = report.Point.Lat, report.Point.Lng
	}

	return r.db.QueryRow(`
		INSERT INTO flood_reports(
			created_at, address, water_level, reporter,
			latitude, longitude, geocode_confidence, geocode_method,
			geocoded_at, geocode_status,
			h3_res6, h3_res7, h3_res8, h3_res9
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
		report.CreatedAt,
		report.Address,
		nullString(report.WaterLevel),
		nullString(report.Reporter),
		lat,
		lng,
		nullString(report.Confidence),
		nullString(report.Method),
		report.GeocodedAt,
		report.Status,
		report.H3Res6,
		report.H3Res7,
		report.H3Res8,
		report.H3Res9,
	).Scan(&report.ID)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}

	return s
}

var baseSelect = `
	SELECT id, created_at, address, water_level, reporter,
	       latitude, longitude, geocode_confidence, geocode_method,
	       geocoded_at, geocode_status,
	       h3_res6, h3_res7, h3_res8, h3_res9
	FROM flood_reports
`

func (r *sqlReportRepository) list(query string, args []any) ([]*Report, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*Report

	for rows.Next() {
		report, err := scanReport(rows.Scan)
		if err != nil {
			return nil, err
		}

		reports = append(reports, report)
	}

	return reports, rows.Err()
}

func scanReport(scan func(...any) error) (*Report, error) {
	report := &Report{}

	var (
		waterLevel sql.NullString
		reporter   sql.NullString
		lat, lng   sql.NullFloat64
		confidence sql.NullString
		method     sql.NullString
		geocodedAt sql.NullTime
		h3Cells    [4]sql.NullInt64
	)

	err := scan(
		&report.ID,
		&report.CreatedAt,
		&report.Address,
		&waterLevel,
		&reporter,
		&lat,
		&lng,
		&confidence,
		&method,
		&geocodedAt,
		&report.Status,
		&h3Cells[0],
		&h3Cells[1],
		&h3Cells[2],
		&h3Cells[3],
	)
	if err != nil {
		return nil, err
	}

	report.WaterLevel = waterLevel.String
	report.Reporter = reporter.String
	report.Confidence = confidence.String
	report.Method = method.String

	if lat.Valid && lng.Valid {
		report.Point = &spatial.Point{Lat: lat.Float64, Lng: lng.Float64}
	}

	if geocodedAt.Valid {
		report.GeocodedAt = &geocodedAt.Time
	}

	targets := [4]*int64{&report.H3Res6, &report.H3Res7, &report.H3Res8, &report.H3Res9}
	for i, cell := range h3Cells {
		if cell.Valid {
			*targets[i] = cell.Int64
		}
	}

	return report, nil
}

func (r *sqlReportRepository) Get(id int64) (*Report, error) {
	reports, err := r.list(baseSelect+" WHERE id = ?", []any{id})
	if err != nil {
		return nil, err
	}

	if len(reports) == 0 {
		return nil, sql.ErrNoRows
	}

	return reports[0], nil
}

func (r *sqlReportRepository) ListPending(limit int) ([]*Report, error) {
	query := baseSelect + `
		WHERE (latitude IS NULL OR longitude IS NULL)
		AND geocode_status = 0
		ORDER BY id
	`

	args := []any{}

	if limit > 0 {
		query += " LIMIT ?"

		args = append(args, limit)
	}

	return r.list(query, args)
}

func (r *sqlReportRepository) ListByIDs(ids []int64) ([]*Report, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	return r.list(baseSelect+" WHERE id IN ("+placeholders+") ORDER BY id", args)
}

func (r *sqlReportRepository) ListAll() ([]*Report, error) {
	return r.list(baseSelect+" ORDER BY id", []any{})
}

func (r *sqlReportRepository) ListFailed() ([]*Report, error) {
	return r.list(baseSelect+" WHERE geocode_status = ? ORDER BY id", []any{StatusFailed})
}

func (r *sqlReportRepository) ListGeocoded(confidence string, limit, offset int) ([]*Report, error) {
	query := baseSelect + " WHERE geocode_status = ?"

	args := []any{StatusResolved}

	if confidence != "" {
		query += " AND geocode_confidence = ?"

		args = append(args, confidence)
	}

	query += " ORDER BY geocoded_at DESC"

	if limit > 0 {
		query += " LIMIT ? OFFSET ?"

		args = append(args, limit, offset)
	}

	return r.list(query, args)
}

func (r *sqlReportRepository) SaveOutcome(id int64, p spatial.Point, confidence, method string, at time.Time) error {
	if err := validateOutcome(p, confidence, method); err != nil {
		return err
	}

	// H3 cells are derived from the coordinate, so they are refreshed on
	// every outcome write.
	stub := &Report{Point: &p}
	if err := stub.computeH3(); err != nil {
		return err
	}

	result, err := r.db.Exec(`
		UPDATE flood_reports
		SET latitude = ?, longitude = ?, geocode_confidence = ?,
		    geocode_method = ?, geocoded_at = ?, geocode_status = ?,
		    h3_res6 = ?, h3_res7 = ?, h3_res8 = ?, h3_res9 = ?
		WHERE id = ?
	`,
		p.Lat,
		p.Lng,
		confidence,
		method,
		at,
		StatusResolved,
		stub.H3Res6,
		stub.H3Res7,
		stub.H3Res8,
		stub.H3Res9,
		id,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return fmt.Errorf("report %d not found", id)
	}

	return nil
}

func (r *sqlReportRepository) MarkFailed(id int64) error {
	result, err := r.db.Exec(
		"UPDATE flood_reports SET geocode_status = ? WHERE id = ?",
		StatusFailed, id,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return fmt.Errorf("report %d not found", id)
	}

	return nil
}

func (r *sqlReportRepository) Stats() (*Stats, error) {
	stats := &Stats{}

	err := r.db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE geocode_status = 1),
			COUNT(*) FILTER (WHERE geocode_status = -1),
			COUNT(*) FILTER (WHERE geocode_status = 0),
			COUNT(*) FILTER (WHERE geocode_confidence = 'HIGH'),
			COUNT(*) FILTER (WHERE geocode_confidence = 'MEDIUM'),
			COUNT(*) FILTER (WHERE geocode_confidence = 'LOW'),
			COUNT(DISTINCT address)
		FROM flood_reports
	`).Scan(
		&stats.Total,
		&stats.Geocoded,
		&stats.Failed,
		&stats.Pending,
		&stats.High,
		&stats.Medium,
		&stats.Low,
		&stats.DistinctAddresses,
	)
	if err != nil {
		return nil, fmt.Errorf("counting reports: %w", err)
	}

	return stats, nil
}
