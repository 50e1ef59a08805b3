// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/twsaputra/petabanjir/report"
	"github.com/twsaputra/petabanjir/utils"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Manage the flood report inventory",
}

var reportAddFlags struct {
	WaterLevel string
	Reporter   string
}

var reportAddCmd = &cobra.Command{
	Use:   "add <address>",
	Short: "Register a flood report for later geocoding",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		db, repo, err := openRepository(false)
		if err != nil {
			return err
		}
		defer db.Close()

		r := &report.Report{
			Address:    args[0],
			WaterLevel: reportAddFlags.WaterLevel,
			Reporter:   reportAddFlags.Reporter,
		}

		if err := repo.Insert(r); err != nil {
			return fmt.Errorf("inserting report: %w", err)
		}

		log.Printf("Registered report #%d", r.ID)

		return nil
	},
}

var reportImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Import reports from a JSON seed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		db, repo, err := openRepository(false)
		if err != nil {
			return err
		}
		defer db.Close()

		imported, err := report.ImportFromJSON(repo, args[0])
		if err != nil {
			return err
		}

		log.Printf("Imported %s reports from %s", utils.FormatInt(imported), args[0])

		return nil
	},
}

var reportExportCmd = &cobra.Command{
	Use:   "export <file.json>",
	Short: "Export all reports to a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		db, repo, err := openRepository(true)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := report.ExportToJSON(repo, args[0]); err != nil {
			return err
		}

		log.Printf("Exported reports to %s", args[0])

		return nil
	},
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all reports",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		db, repo, err := openRepository(true)
		if err != nil {
			return err
		}
		defer db.Close()

		reports, err := repo.ListAll()
		if err != nil {
			return err
		}

		for _, r := range reports {
			location := "pending"

			switch {
			case r.IsResolved():
				location = fmt.Sprintf("%s [%s]", r.Point, r.Confidence)
			case r.Status == report.StatusFailed:
				location = "failed"
			}

			fmt.Printf("#%d\t%s\t%s\n", r.ID, r.Address, location)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportAddCmd)
	reportCmd.AddCommand(reportImportCmd)
	reportCmd.AddCommand(reportExportCmd)
	reportCmd.AddCommand(reportListCmd)

	reportAddCmd.Flags().StringVar(
		&reportAddFlags.WaterLevel,
		"water-level",
		"",
		"Reported water level, free text (e.g. 'selutut', '50cm')",
	)
	reportAddCmd.Flags().StringVar(
		&reportAddFlags.Reporter,
		"reporter",
		"",
		"Name or handle of the reporter",
	)
}
