// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/spf13/cobra"
	"github.com/twsaputra/petabanjir/geocode"
	"github.com/twsaputra/petabanjir/report"
	"github.com/twsaputra/petabanjir/utils"
)

const dbFile = "petabanjir.duckdb"

type geocodeFlags struct {
	DbPath      string
	Provider    string
	RateLimit   time.Duration
	DryRun      bool
	Force       bool
	Interactive bool
	Limit       int
	IDs         string

	EnableHTTPTrace     bool
	EnableHTTPBodyTrace bool
}

var geocodeOptions geocodeFlags

func openDatabase(mustExist bool) (*sql.DB, error) {
	if err := os.MkdirAll(geocodeOptions.DbPath, 0o750); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	dbpath := filepath.Join(geocodeOptions.DbPath, dbFile)

	if mustExist {
		if _, err := os.Stat(dbpath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("database not found at %s - run 'report import' first", dbpath)
		}
	}

	db, err := sql.Open("duckdb", dbpath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return db, nil
}

func openRepository(mustExist bool) (*sql.DB, report.Repository, error) {
	db, err := openDatabase(mustExist)
	if err != nil {
		return nil, nil, err
	}

	repo := report.NewRepository(db)
	if err := repo.CreateSchema(); err != nil {
		db.Close()

		return nil, nil, fmt.Errorf("creating schema: %w", err)
	}

	return db, repo, nil
}

func buildGeocoder(ctx context.Context) (geocode.Geocoder, error) {
	switch geocodeOptions.Provider {
	case "osm":
		limiter := geocode.NewRateLimiter(geocodeOptions.RateLimit)

		return geocode.NewNominatimGeocoder(&geocode.ClientOptions{
			UserAgent:           fmt.Sprintf("petabanjir/%s (+https://github.com/twsaputra/petabanjir)", Version),
			EnableHTTPTrace:     geocodeOptions.EnableHTTPTrace,
			EnableHTTPBodyTrace: geocodeOptions.EnableHTTPBodyTrace,
		}, limiter), nil
	case "google":
		apiKey := os.Getenv("GOOGLE_MAPS_API_KEY")
		if apiKey == "" {
			log.Print("GOOGLE_MAPS_API_KEY is not set, attempting to retrieve via ADC...")

			var err error

			apiKey, err = geocode.APIKeyFromADC(ctx)
			if err != nil {
				return nil, fmt.Errorf("no Google Maps API key available: %w", err)
			}
		}

		return geocode.NewGoogleMapsGeocoder(apiKey), nil
	default:
		return nil, fmt.Errorf("unknown provider %q, expected osm or google", geocodeOptions.Provider)
	}
}

func parseIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}

	var ids []int64

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid report id %q", part)
		}

		ids = append(ids, id)
	}

	return ids, nil
}

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Resolve pending report addresses to coordinates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ids, err := parseIDs(geocodeOptions.IDs)
		if err != nil {
			return err
		}

		db, repo, err := openRepository(true)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		geocoder, err := buildGeocoder(ctx)
		if err != nil {
			return err
		}

		// Fail fast when the provider is down rather than per record.
		if ng, ok := geocoder.(*geocode.NominatimGeocoder); ok {
			if err := ng.Status(ctx); err != nil {
				return fmt.Errorf("provider unavailable: %w", err)
			}
		}

		processor := geocode.NewProcessor(repo, geocoder, geocode.Options{
			DryRun:      geocodeOptions.DryRun,
			Force:       geocodeOptions.Force,
			Interactive: geocodeOptions.Interactive,
			Limit:       geocodeOptions.Limit,
			IDs:         ids,
		})

		_, err = processor.Run(ctx)
		if errors.Is(err, ctx.Err()) && ctx.Err() != nil {
			log.Print("Interrupted, progress so far is saved")

			return nil
		}

		return err
	},
}

var geocodeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show geocoding coverage",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		db, repo, err := openRepository(true)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := repo.Stats()
		if err != nil {
			return err
		}

		fmt.Printf("Reports:            %s\n", utils.FormatInt(stats.Total))
		fmt.Printf("Distinct addresses: %s\n", utils.FormatInt(stats.DistinctAddresses))
		fmt.Printf("Geocoded:           %s\n", utils.FormatInt(stats.Geocoded))
		fmt.Printf("  high confidence:  %s\n", utils.FormatInt(stats.High))
		fmt.Printf("  medium:           %s\n", utils.FormatInt(stats.Medium))
		fmt.Printf("  low:              %s\n", utils.FormatInt(stats.Low))
		fmt.Printf("Failed:             %s\n", utils.FormatInt(stats.Failed))
		fmt.Printf("Pending:            %s\n", utils.FormatInt(stats.Pending))

		return nil
	},
}

var geocodeFailedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List reports whose address could not be resolved",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		db, repo, err := openRepository(true)
		if err != nil {
			return err
		}
		defer db.Close()

		reports, err := repo.ListFailed()
		if err != nil {
			return err
		}

		for _, r := range reports {
			fmt.Printf("#%d\t%s\n", r.ID, r.Address)
		}

		if len(reports) > 0 {
			fmt.Printf("\n%s failed reports. Retry with --force --ids, or pin them with 'petabanjir serve'\n",
				utils.FormatInt(len(reports)))
		}

		return nil
	},
}

var geocodeViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show one report and its geocoding outcome",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid report id %q", args[0])
		}

		db, repo, err := openRepository(true)
		if err != nil {
			return err
		}
		defer db.Close()

		r, err := repo.Get(id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("report %d not found", id)
		}

		if err != nil {
			return err
		}

		fmt.Printf("Report #%d\n", r.ID)
		fmt.Printf("  Created:     %s\n", r.CreatedAt.Format(time.RFC3339))
		fmt.Printf("  Address:     %s\n", r.Address)

		if r.WaterLevel != "" {
			fmt.Printf("  Water level: %s\n", r.WaterLevel)
		}

		if r.Reporter != "" {
			fmt.Printf("  Reporter:    %s\n", r.Reporter)
		}

		switch {
		case r.IsResolved():
			fmt.Printf("  Location:    %s\n", r.Point)
			fmt.Printf("  Map:         %s\n", r.Point.OSMURL())
			fmt.Printf("  Confidence:  %s via %s\n", r.Confidence, r.Method)

			if r.GeocodedAt != nil {
				fmt.Printf("  Geocoded:    %s\n", r.GeocodedAt.Format(time.RFC3339))
			}
		case r.Status == report.StatusFailed:
			fmt.Printf("  Location:    geocoding failed\n")
		default:
			fmt.Printf("  Location:    pending\n")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
	geocodeCmd.AddCommand(geocodeStatsCmd)
	geocodeCmd.AddCommand(geocodeFailedCmd)
	geocodeCmd.AddCommand(geocodeViewCmd)

	rootCmd.PersistentFlags().StringVar(
		&geocodeOptions.DbPath,
		"db-path",
		"db",
		"Base directory holding the database",
	)
	geocodeCmd.Flags().StringVar(
		&geocodeOptions.Provider,
		"provider",
		"osm",
		"Geocoding provider: osm or google",
	)
	geocodeCmd.Flags().DurationVar(
		&geocodeOptions.RateLimit,
		"rate-limit",
		geocode.DefaultRateInterval,
		"Minimum delay between Nominatim requests",
	)
	geocodeCmd.Flags().BoolVar(
		&geocodeOptions.DryRun,
		"dry-run",
		false,
		"Resolve addresses without writing anything",
	)
	geocodeCmd.Flags().BoolVar(
		&geocodeOptions.Force,
		"force",
		false,
		"Re-geocode reports that already have a location",
	)
	geocodeCmd.Flags().BoolVar(
		&geocodeOptions.Interactive,
		"interactive",
		false,
		"Confirm every location before storing it",
	)
	geocodeCmd.Flags().IntVar(
		&geocodeOptions.Limit,
		"limit",
		0,
		"Maximum number of reports to process (0 = all)",
	)
	geocodeCmd.Flags().StringVar(
		&geocodeOptions.IDs,
		"ids",
		"",
		"Comma separated report IDs to process",
	)
	geocodeCmd.Flags().BoolVar(
		&geocodeOptions.EnableHTTPTrace,
		"trace-http",
		false,
		"Log provider HTTP requests and responses",
	)
	geocodeCmd.Flags().BoolVar(
		&geocodeOptions.EnableHTTPBodyTrace,
		"trace-http-body",
		false,
		"Include bodies when logging provider HTTP traffic",
	)
}
