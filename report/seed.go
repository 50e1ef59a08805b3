// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SeedData represents the JSON seed file format.
type SeedData struct {
	Version     string    `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
	Reports     []*Report `json:"reports"`
}

// ExportToJSON exports all reports to a JSON file.
func ExportToJSON(repo Repository, filepath string) error {
	reports, err := repo.ListAll()
	if err != nil {
		return fmt.Errorf("listing reports: %w", err)
	}

	seed := &SeedData{
		Version:     "1.0",
		LastUpdated: time.Now(),
		Reports:     reports,
	}

	data, err := json.MarshalIndent(seed, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}

	err = os.WriteFile(filepath, data, 0o600)
	if err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}

// ImportFromJSON imports reports from a JSON file.
func ImportFromJSON(repo Repository, filepath string) (int, error) {
	data, err := os.ReadFile(filepath) // #nosec G304 - filepath is provided by admin
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}

	var seed SeedData
	if err := json.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("parsing JSON: %w", err)
	}

	imported := 0

	for _, report := range seed.Reports {
		report.ID = 0
		if err := repo.Insert(report); err != nil {
			return imported, fmt.Errorf("saving report %q: %w", report.Address, err)
		}

		imported++
	}

	return imported, nil
}
