// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/twsaputra/petabanjir/geocode"
	"github.com/twsaputra/petabanjir/review"
)

var serveFlags struct {
	Listen string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review web server (local only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, repo, err := openRepository(true)
		if err != nil {
			return err
		}
		defer db.Close()

		geocoder, err := buildGeocoder(cmd.Context())
		if err != nil {
			log.Printf("Suggest endpoint disabled: %v", err)

			geocoder = nil
		}

		server := review.NewServer(repo, geocoder)

		fmt.Printf("Review server listening on http://%s\n", serveFlags.Listen)
		fmt.Println("Local only - not exposed to the internet")

		return server.Run(serveFlags.Listen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(
		&serveFlags.Listen,
		"listen",
		"127.0.0.1:8080",
		"Address to listen on",
	)
	serveCmd.Flags().StringVar(
		&geocodeOptions.Provider,
		"provider",
		"osm",
		"Geocoding provider backing the suggest endpoint: osm or google",
	)
	serveCmd.Flags().DurationVar(
		&geocodeOptions.RateLimit,
		"rate-limit",
		geocode.DefaultRateInterval,
		"Minimum delay between Nominatim requests",
	)
}
