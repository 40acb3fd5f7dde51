// Package report renders run results for people and publishes them to
// external sinks.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/use-agent/opinionprobe/models"
)

var rule = strings.Repeat("=", 80)

// WriteSummary prints the per-configuration outcome and the totals.
func WriteSummary(w io.Writer, rep *models.RunReport) error {
	ew := &errWriter{w: w}

	ew.printf("\n%s\nTEST RESULTS SUMMARY\n%s\n", rule, rule)
	for _, r := range rep.Results {
		symbol := "✗"
		if r.Status == models.StatusPassed {
			symbol = "✓"
		}
		ew.printf("\n%s %s\n", symbol, r.Label)
		ew.printf("  Status: %s\n", r.Status)
		ew.printf("  Articles Scraped: %d\n", r.ArticlesScraped)
		if r.DurationSeconds > 0 {
			ew.printf("  Duration: %.2fs\n", r.DurationSeconds)
		}
		if r.Error != "" {
			ew.printf("  Error: %s\n", r.Error)
		}
	}

	s := rep.Summary
	ew.printf("\n%s\n", rule)
	ew.printf("Total Tests: %d\n", s.Total)
	ew.printf("Passed: %d\n", s.Passed)
	ew.printf("Partial: %d\n", s.Partial)
	ew.printf("Failed: %d\n", s.Failed)
	ew.printf("%s\n", rule)
	return ew.err
}

// WriteDetails prints the articles, translated headlines and repeated words
// of each configuration that produced any.
func WriteDetails(w io.Writer, rep *models.RunReport) error {
	ew := &errWriter{w: w}

	for _, r := range rep.Results {
		if len(r.Articles) == 0 {
			continue
		}
		ew.printf("\n%s\n%s\n%s\n", rule, r.Label, rule)

		for _, a := range r.Articles {
			ew.printf("\nArticle %d\n", a.Ordinal)
			ew.printf("Title: %s\n", a.Title)
			ew.printf("URL: %s\n", a.URL)
			ew.printf("Content:\n%s\n", a.Content)
			if a.HasImage() {
				ew.printf("Image: %s\n", a.ImageRef)
			}
		}

		if len(r.TranslatedTitles) > 0 {
			ew.printf("\nTranslated headers:\n")
			for i, t := range r.TranslatedTitles {
				ew.printf("%d. %s\n", i+1, t)
			}
		}

		if len(r.RepeatedWords) == 0 {
			ew.printf("\nNo words repeated more than twice\n")
			continue
		}
		ew.printf("\nWords repeated more than twice:\n")
		for _, e := range r.RepeatedWords {
			ew.printf("%s: %d occurrences\n", e.Word, e.Count)
		}
	}
	return ew.err
}

// errWriter remembers the first write error and skips later writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
