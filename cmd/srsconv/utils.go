package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/eikowagenknecht/srs-converter-sub002/pkg/anki"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/issues"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/srs"
)

var errConversionFailed = errors.New("conversion failed")

// runSummary is what every conversion command reports.
type runSummary struct {
	Status     issues.Status  `json:"status"`
	Counts     *srs.Counts    `json:"counts,omitempty"`
	MediaFiles int            `json:"mediaFiles,omitempty"`
	Output     string         `json:"output,omitempty"`
	Issues     []issues.Issue `json:"issues"`
}

func (s *runSummary) merge(status issues.Status, list []issues.Issue) {
	if status == issues.StatusFailure || (status == issues.StatusPartial && s.Status == issues.StatusSuccess) {
		s.Status = status
	}
	s.Issues = append(s.Issues, list...)
}

func (s runSummary) err() error {
	if s.Status == issues.StatusFailure {
		return errConversionFailed
	}
	return nil
}

func exitCode(err error) int {
	if errors.Is(err, errConversionFailed) {
		return 2
	}
	return 1
}

func converterOptions() []anki.Option {
	opts := []anki.Option{
		anki.WithErrorHandling(cfg.ErrorHandling),
		anki.WithCompaction(cfg.Compact),
		anki.WithLogger(logger),
	}
	if cfg.TempDir != "" {
		opts = append(opts, anki.WithTempDir(cfg.TempDir))
	}
	return opts
}

func hasExtension(path string) bool {
	return filepath.Ext(path) != ""
}

func statusLabel(s issues.Status) string {
	switch s {
	case issues.StatusSuccess:
		return color.New(color.FgGreen).Sprint("SUCCESS")
	case issues.StatusPartial:
		return color.New(color.FgYellow).Sprint("PARTIAL")
	default:
		return color.New(color.FgRed).Sprint("FAILURE")
	}
}

func severityLabel(s issues.Severity) string {
	switch s {
	case issues.SeverityCritical:
		return color.New(color.FgRed, color.Bold).Sprint("critical")
	case issues.SeverityError:
		return color.New(color.FgRed).Sprint("error   ")
	default:
		return color.New(color.FgYellow).Sprint("warning ")
	}
}

func printSummary(w io.Writer, s runSummary, quiet bool) {
	fmt.Fprintf(w, "Status: %s\n", statusLabel(s.Status))
	if s.Output != "" {
		fmt.Fprintf(w, "Output: %s\n", s.Output)
	}
	if s.Counts != nil {
		fmt.Fprintf(w, "Decks: %d  Note types: %d  Notes: %d  Cards: %d  Reviews: %d\n",
			s.Counts.Decks, s.Counts.NoteTypes, s.Counts.Notes, s.Counts.Cards, s.Counts.Reviews)
	}
	if s.MediaFiles > 0 {
		fmt.Fprintf(w, "Media files: %d\n", s.MediaFiles)
	}

	shown := 0
	for _, issue := range s.Issues {
		if quiet && issue.Severity == issues.SeverityWarning {
			continue
		}
		if shown == 0 {
			fmt.Fprintln(w, "Issues:")
		}
		shown++
		if issue.Details.ItemType != "" {
			fmt.Fprintf(w, "  %s [%s] %s\n", severityLabel(issue.Severity), issue.Details.ItemType, issue.Message)
		} else {
			fmt.Fprintf(w, "  %s %s\n", severityLabel(issue.Severity), issue.Message)
		}
	}
	if hidden := len(s.Issues) - shown; hidden > 0 {
		fmt.Fprintf(w, "(%d warnings hidden)\n", hidden)
	}
}
