package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/opinionprobe/models"
	"github.com/use-agent/opinionprobe/session"
)

// Pipeline runs a full listing-to-records scrape in one session.
type Pipeline struct {
	ListingURL  string
	ConsentWait time.Duration
	Links       *LinkResolver
	Articles    *Extractor
}

// Run navigates to the listing, resolves links and extracts each article.
// A listing navigation failure or a cancelled ctx is an error; failed
// articles are skipped.
func (p *Pipeline) Run(ctx context.Context, sess session.Session) ([]models.ArticleRecord, error) {
	if err := sess.Navigate(ctx, p.ListingURL); err != nil {
		return nil, err
	}

	if d, ok := sess.(session.ConsentDismisser); ok && p.ConsentWait > 0 {
		if err := d.DismissConsent(ctx, p.ConsentWait); err != nil {
			slog.Debug("no cookie consent dialog dismissed", "error", err)
		} else {
			slog.Debug("cookie consent accepted")
		}
	}

	links := p.Links.Resolve(ctx, sess)
	slog.Info("opinion links resolved", "count", len(links))

	records := make([]models.ArticleRecord, 0, len(links))
	for i, link := range links {
		if err := ctx.Err(); err != nil {
			return records, interrupted(err, len(records), len(links))
		}
		rec, err := p.extractOne(ctx, sess, link, i+1)
		if err != nil {
			slog.Warn("article skipped", "url", link, "ordinal", i+1, "error", err)
			continue
		}
		records = append(records, rec)
	}
	// A cancellation during the last article still ends the run early.
	if err := ctx.Err(); err != nil {
		return records, interrupted(err, len(records), len(links))
	}
	return records, nil
}

func interrupted(err error, done, total int) error {
	return models.NewScrapeError(models.ErrCodeTimeout,
		fmt.Sprintf("run interrupted after %d of %d articles", done, total), err)
}

func (p *Pipeline) extractOne(ctx context.Context, sess session.Session, link string, ordinal int) (rec models.ArticleRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = models.NewScrapeError(models.ErrCodeExtraction,
				fmt.Sprintf("panic extracting article: %v", r), nil)
		}
	}()
	return p.Articles.Extract(ctx, sess, link, ordinal)
}
