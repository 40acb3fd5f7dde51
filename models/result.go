package models

import "time"

// Status is the outcome classification of one configuration run.
type Status string

const (
	StatusPassed  Status = "Passed"
	StatusPartial Status = "Partial"
	StatusFailed  Status = "Failed"
)

// PassThreshold is the minimum number of extracted articles for a pass.
const PassThreshold = 3

// StatusFor classifies a run that completed without a fatal error.
func StatusFor(articles int) Status {
	if articles >= PassThreshold {
		return StatusPassed
	}
	return StatusPartial
}

// ConfigurationResult is the outcome of running the pipeline once against a
// single configuration.
type ConfigurationResult struct {
	Label           string  `json:"label"`
	Status          Status  `json:"status"`
	ArticlesScraped int     `json:"articles_scraped"`
	Error           string  `json:"error,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`

	// Reporting extras. They never influence Status.
	Articles         []ArticleRecord      `json:"articles,omitempty"`
	TranslatedTitles []string             `json:"translated_titles,omitempty"`
	RepeatedWords    []WordFrequencyEntry `json:"repeated_words,omitempty"`
}

// Summary aggregates result counts. All fields are plain sums, so the values
// do not depend on result order.
type Summary struct {
	Total           int `json:"total"`
	Passed          int `json:"passed"`
	Partial         int `json:"partial"`
	Failed          int `json:"failed"`
	ArticlesScraped int `json:"articles_scraped"`
}

// Summarize computes the aggregate counts for a set of results.
func Summarize(results []ConfigurationResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusPassed:
			s.Passed++
		case StatusPartial:
			s.Partial++
		case StatusFailed:
			s.Failed++
		}
		s.ArticlesScraped += r.ArticlesScraped
	}
	return s
}

// RunReport is the aggregated report for one orchestrator run.
type RunReport struct {
	ID         string                `json:"id"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Results    []ConfigurationResult `json:"results"`
	Summary    Summary               `json:"summary"`
}
