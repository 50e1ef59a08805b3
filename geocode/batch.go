// Copyright 2025 The PetaBanjir Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/twsaputra/petabanjir/report"
	"github.com/twsaputra/petabanjir/utils"
)

// ConfirmFunc decides whether a resolved location should be stored.
// It is consulted only in interactive mode.
type ConfirmFunc func(r *report.Report, o *Outcome) (bool, error)

// Options controls a batch geocoding run.
type Options struct {
	// DryRun resolves addresses but writes nothing to the database
	DryRun bool

	// Force re-geocodes reports that already have a location or that
	// previously failed
	Force bool

	// Interactive asks for confirmation before storing each location
	Interactive bool

	// Limit caps the number of reports processed, 0 means no cap
	Limit int

	// IDs restricts the run to specific reports
	IDs []int64

	// Confirm overrides the stdin prompt, mainly for tests
	Confirm ConfirmFunc
}

// BatchStats summarizes a batch geocoding run.
type BatchStats struct {
	Processed int
	Resolved  int
	Failed    int
	Skipped   int
	Declined  int

	High   int
	Medium int
	Low    int

	NoMatch     int
	OutOfBounds int
	Network     int
}

// Processor walks pending reports and resolves them through a Geocoder.
type Processor struct {
	repo     report.Repository
	geocoder Geocoder
	opts     Options
}

// NewProcessor creates a batch processor.
func NewProcessor(repo report.Repository, geocoder Geocoder, opts Options) *Processor {
	if opts.Confirm == nil {
		opts.Confirm = stdinConfirm(os.Stdin)
	}

	return &Processor{
		repo:     repo,
		geocoder: geocoder,
		opts:     opts,
	}
}

func stdinConfirm(in io.Reader) ConfirmFunc {
	scanner := bufio.NewScanner(in)

	return func(r *report.Report, o *Outcome) (bool, error) {
		fmt.Printf("\n#%d %q\n  -> %s [%s] %s\n  Accept? [y/N]: ",
			r.ID, r.Address, o.Point, o.Confidence, o.DisplayName)

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return false, err
			}

			return false, io.EOF
		}

		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))

		return answer == "y" || answer == "yes", nil
	}
}

func (p *Processor) selectReports() ([]*report.Report, error) {
	if len(p.opts.IDs) > 0 {
		return p.repo.ListByIDs(p.opts.IDs)
	}

	if p.opts.Force {
		reports, err := p.repo.ListAll()
		if err != nil {
			return nil, err
		}

		if p.opts.Limit > 0 && len(reports) > p.opts.Limit {
			reports = reports[:p.opts.Limit]
		}

		return reports, nil
	}

	return p.repo.ListPending(p.opts.Limit)
}

// Run processes the selected reports one by one, honoring the provider
// rate limit through the Geocoder itself. It stops early when ctx is
// canceled or when the database rejects a write.
func (p *Processor) Run(ctx context.Context) (*BatchStats, error) {
	reports, err := p.selectReports()
	if err != nil {
		return nil, fmt.Errorf("selecting reports: %w", err)
	}

	stats := &BatchStats{}

	if len(reports) == 0 {
		log.Printf("Nothing to geocode")

		return stats, nil
	}

	var bar *progressbar.ProgressBar
	if !p.opts.Interactive && isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(reports),
			progressbar.OptionSetDescription("Geocoding"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	for _, r := range reports {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if err := p.processOne(ctx, r, stats); err != nil {
			return stats, err
		}

		if bar != nil {
			if err := bar.Add(1); err != nil {
				return stats, fmt.Errorf("updating progress bar: %w", err)
			}
		}
	}

	p.logSummary(stats)

	return stats, nil
}

func (p *Processor) processOne(ctx context.Context, r *report.Report, stats *BatchStats) error {
	if r.IsResolved() && !p.opts.Force {
		stats.Skipped++

		return nil
	}

	stats.Processed++

	outcome, err := p.geocoder.Geocode(ctx, r.Address)
	if err != nil {
		return p.recordFailure(ctx, r, err, stats)
	}

	// The geocoder already validated the coordinate, but the outcome
	// crosses a package boundary before reaching the database, so it is
	// checked once more right before the write.
	if err := ValidateIndonesia(outcome.Point); err != nil {
		return p.recordFailure(ctx, r, err, stats)
	}

	if p.opts.Interactive {
		ok, err := p.opts.Confirm(r, outcome)
		if err != nil {
			return fmt.Errorf("reading confirmation: %w", err)
		}

		if !ok {
			stats.Declined++
			log.Printf("#%d declined, left pending", r.ID)

			return nil
		}
	}

	if p.opts.DryRun {
		log.Printf("#%d %q -> %s [%s] (dry-run)", r.ID, r.Address, outcome.Point, outcome.Confidence)
	} else {
		err := p.repo.SaveOutcome(r.ID, outcome.Point, outcome.Confidence, outcome.Method, outcome.GeocodedAt)
		if err != nil {
			return fmt.Errorf("saving outcome for report %d: %w", r.ID, err)
		}
	}

	stats.Resolved++

	switch outcome.Confidence {
	case ConfidenceHigh:
		stats.High++
	case ConfidenceMedium:
		stats.Medium++
	case ConfidenceLow:
		stats.Low++
	}

	return nil
}

// recordFailure converts a resolution error into a per-record failed
// outcome. Only context cancellation and database errors stop the batch.
func (p *Processor) recordFailure(ctx context.Context, r *report.Report, cause error, stats *BatchStats) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	reason := "error"

	switch {
	case IsNoMatch(cause):
		stats.NoMatch++

		reason = "no match"
	case IsOutOfBounds(cause):
		stats.OutOfBounds++

		reason = "out of bounds"
	case IsNetworkError(cause):
		stats.Network++

		reason = "network"
	}

	stats.Failed++
	log.Printf("#%d %q failed (%s): %v", r.ID, r.Address, reason, cause)

	if p.opts.DryRun {
		return nil
	}

	if err := p.repo.MarkFailed(r.ID); err != nil {
		return fmt.Errorf("marking report %d as failed: %w", r.ID, err)
	}

	return nil
}

func (p *Processor) logSummary(stats *BatchStats) {
	log.Printf("Processed %s reports: %s resolved (%s high / %s medium / %s low), %s failed, %s skipped",
		utils.FormatInt(stats.Processed),
		utils.FormatInt(stats.Resolved),
		utils.FormatInt(stats.High),
		utils.FormatInt(stats.Medium),
		utils.FormatInt(stats.Low),
		utils.FormatInt(stats.Failed),
		utils.FormatInt(stats.Skipped),
	)

	if stats.Declined > 0 {
		log.Printf("%s locations declined interactively, still pending", utils.FormatInt(stats.Declined))
	}

	if stats.Network > 0 {
		log.Printf("%s reports failed on provider errors, retry them with --ids", utils.FormatInt(stats.Network))
	}

	if stats.NoMatch > 0 {
		log.Printf("Tip: inspect unmatched addresses with `petabanjir geocode failed`")
	}

	if stats.Low > 0 {
		log.Printf("Tip: review low confidence locations with `petabanjir serve`")
	}
}
