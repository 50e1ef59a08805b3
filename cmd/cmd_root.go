// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

var rootCmd = &cobra.Command{
	Use:   "petabanjir",
	Short: "crowd-sourced flood report mapping for Indonesia",
	Long: `
petabanjir turns free-text Indonesian flood reports into mappable
coordinates: it geocodes report addresses through OpenStreetMap
Nominatim (or Google Maps), scores the candidates, and stores the
results with a confidence tier for later review.
`,
}

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
