// Package orchestrator runs the scrape pipeline against many browser
// configurations in parallel and collects one result per configuration.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/opinionprobe/models"
	"github.com/use-agent/opinionprobe/session"
	"github.com/use-agent/opinionprobe/translate"
	"github.com/use-agent/opinionprobe/wordfreq"
)

// DefaultMaxWorkers bounds concurrent configurations when none is set.
const DefaultMaxWorkers = 5

// Pipeline scrapes articles inside an acquired session.
type Pipeline interface {
	Run(ctx context.Context, sess session.Session) ([]models.ArticleRecord, error)
}

// Runner executes configurations through a bounded worker pool.
// It is safe for concurrent use.
type Runner struct {
	Factory  session.Factory
	Pipeline Pipeline

	// Translator converts titles for reporting. Nil keeps titles unchanged.
	Translator     translate.Translator
	SourceLanguage string
	TargetLanguage string

	// MaxWorkers caps configurations in flight across all runs; zero means
	// DefaultMaxWorkers. It must not change after the first run.
	MaxWorkers int

	// TaskTimeout bounds each configuration. Zero disables the bound.
	TaskTimeout time.Duration

	active atomic.Int32

	slotsOnce sync.Once
	slots     chan struct{}
}

// ActiveTasks returns the number of configurations currently running.
func (r *Runner) ActiveTasks() int {
	return int(r.active.Load())
}

// sem returns the worker slots shared by every RunAll call on r.
func (r *Runner) sem() chan struct{} {
	r.slotsOnce.Do(func() {
		r.slots = make(chan struct{}, r.Workers())
	})
	return r.slots
}

// Workers returns the effective worker bound.
func (r *Runner) Workers() int {
	if r.MaxWorkers <= 0 {
		return DefaultMaxWorkers
	}
	return r.MaxWorkers
}

// Run executes every configuration and wraps the results in a report.
func (r *Runner) Run(ctx context.Context, configs []models.ConfigurationDescriptor) *models.RunReport {
	rep := &models.RunReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	slog.Info("run started", "id", rep.ID, "configurations", len(configs), "workers", r.Workers())

	rep.Results = r.RunAll(ctx, configs)
	rep.FinishedAt = time.Now().UTC()
	rep.Summary = models.Summarize(rep.Results)

	slog.Info("run finished",
		"id", rep.ID,
		"passed", rep.Summary.Passed,
		"partial", rep.Summary.Partial,
		"failed", rep.Summary.Failed,
		"articles", rep.Summary.ArticlesScraped,
	)
	return rep
}

// RunAll executes every configuration and returns one result per input, in
// completion order. It blocks until all configurations have finished.
// Concurrent calls share the same MaxWorkers slots.
func (r *Runner) RunAll(ctx context.Context, configs []models.ConfigurationDescriptor) []models.ConfigurationResult {
	sem := r.sem()
	results := make(chan models.ConfigurationResult, len(configs))

	var wg sync.WaitGroup
	for _, desc := range configs {
		wg.Add(1)
		go func(desc models.ConfigurationDescriptor) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results <- r.runOne(ctx, desc)
		}(desc)
	}

	wg.Wait()
	close(results)

	out := make([]models.ConfigurationResult, 0, len(configs))
	for res := range results {
		out = append(out, res)
	}
	return out
}

// runOne runs a single configuration. Nothing that happens inside it,
// panics included, escapes to sibling tasks.
func (r *Runner) runOne(ctx context.Context, desc models.ConfigurationDescriptor) (res models.ConfigurationResult) {
	start := time.Now()
	r.active.Add(1)
	defer r.active.Add(-1)

	res = models.ConfigurationResult{Label: desc.Label, Status: models.StatusFailed}
	defer func() {
		if p := recover(); p != nil {
			res = models.ConfigurationResult{
				Label:  desc.Label,
				Status: models.StatusFailed,
				Error:  models.NewScrapeError(models.ErrCodeInternal, fmt.Sprintf("panic: %v", p), nil).Error(),
			}
		}
		res.DurationSeconds = time.Since(start).Seconds()
		logResult(res)
	}()

	if r.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.TaskTimeout)
		defer cancel()
	}

	slog.Info("starting configuration", "label", desc.Label)

	sess, err := r.Factory.Acquire(ctx, desc)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer release(desc, sess)

	records, err := r.Pipeline.Run(ctx, sess)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.ArticlesScraped = len(records)
	res.Status = models.StatusFor(len(records))
	res.Articles = records

	titles := make([]string, len(records))
	for i, rec := range records {
		titles[i] = rec.Title
	}
	if r.Translator != nil {
		res.TranslatedTitles = translate.TranslateAll(ctx, r.Translator, titles, r.SourceLanguage, r.TargetLanguage)
	} else {
		res.TranslatedTitles = titles
	}
	res.RepeatedWords = wordfreq.Analyze(res.TranslatedTitles)
	return res
}

// release closes the session, logging and swallowing any error or panic.
func release(desc models.ConfigurationDescriptor, sess session.Session) {
	defer func() {
		if p := recover(); p != nil {
			slog.Warn("session release panicked", "label", desc.Label, "panic", p)
		}
	}()
	if err := sess.Close(); err != nil {
		slog.Warn("session release failed", "label", desc.Label, "error", err)
	}
}

func logResult(res models.ConfigurationResult) {
	attrs := []any{
		"label", res.Label,
		"status", res.Status,
		"articles", res.ArticlesScraped,
		"duration", fmt.Sprintf("%.2fs", res.DurationSeconds),
	}
	if res.Error != "" {
		slog.Warn("configuration finished", append(attrs, "error", res.Error)...)
		return
	}
	slog.Info("configuration finished", attrs...)
}
