package extract

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/use-agent/opinionprobe/models"
	"github.com/use-agent/opinionprobe/session"
)

// Default selectors for article pages.
var (
	DefaultTitleFallbacks     = []string{".a_t", ".article-header h1", "h1"}
	DefaultParagraphSelectors = []string{"article p", ".a_c p", ".article-body p"}
	DefaultImageSelectors     = []string{"article img", ".a_m img", "figure img", "img[src*='cloudfront']", "img[src*='elpais']"}
	DefaultImageHosts         = []string{"cloudfront", "elpais"}
)

// ImageSaver persists a cover image and returns its local path.
type ImageSaver interface {
	Save(ctx context.Context, url string, ordinal int) (string, error)
}

// Extractor pulls one ArticleRecord out of an article page.
type Extractor struct {
	// TitleSelector is waited for up to TitleWait.
	TitleSelector string
	TitleWait     time.Duration

	// TitleFallbacks are tried in order, without waiting.
	TitleFallbacks []string

	// ParagraphSelectors are matched as one group in document order.
	ParagraphSelectors []string

	// MinParagraphLen is exclusive: a paragraph needs more runes than this.
	MinParagraphLen int
	MaxParagraphs   int

	ImageSelectors []string
	ImageHosts     []string

	// Images saves cover images. Nil disables image capture.
	Images ImageSaver

	// Readability enables the readability content fallback.
	Readability bool
}

// DefaultExtractor returns an extractor for El País article pages.
func DefaultExtractor(images ImageSaver) *Extractor {
	return &Extractor{
		TitleSelector:      "h1",
		TitleWait:          10 * time.Second,
		TitleFallbacks:     DefaultTitleFallbacks,
		ParagraphSelectors: DefaultParagraphSelectors,
		MinParagraphLen:    50,
		MaxParagraphs:      5,
		ImageSelectors:     DefaultImageSelectors,
		ImageHosts:         DefaultImageHosts,
		Images:             images,
	}
}

// Validate checks every configured selector compiles.
func (x *Extractor) Validate() error {
	sels := []string{x.TitleSelector, unionSelector(x.ParagraphSelectors)}
	sels = append(sels, x.TitleFallbacks...)
	sels = append(sels, x.ImageSelectors...)
	return validateSelectors(sels...)
}

// Extract navigates to url and builds its record. Only a navigation failure
// is an error; every field falls back to its sentinel independently.
func (x *Extractor) Extract(ctx context.Context, sess session.Session, url string, ordinal int) (models.ArticleRecord, error) {
	if err := sess.Navigate(ctx, url); err != nil {
		return models.ArticleRecord{}, err
	}

	rec := models.ArticleRecord{Ordinal: ordinal, URL: url}
	rec.Title = guarded("title", url, models.TitleNotFound, func() string {
		return x.title(ctx, sess)
	})
	rec.Content = guarded("content", url, models.ContentNotAvailable, func() string {
		return x.content(ctx, sess, url)
	})
	rec.ImageRef = guarded("image", url, "", func() string {
		return x.image(ctx, sess, url, ordinal)
	})
	return rec, nil
}

// guarded runs one field extractor, turning a panic into the fallback value.
func guarded(field, url, fallback string, fn func() string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("field extraction panicked", "field", field, "url", url, "panic", r)
			out = fallback
		}
	}()
	return fn()
}

func (x *Extractor) title(ctx context.Context, sess session.Session) string {
	if el, err := sess.WaitElement(ctx, x.TitleSelector, x.TitleWait); err == nil {
		if t := trimmedText(el); t != "" {
			return t
		}
	}
	for _, sel := range x.TitleFallbacks {
		els, err := sess.Elements(ctx, sel)
		if err != nil || len(els) == 0 {
			continue
		}
		if t := trimmedText(els[0]); t != "" {
			return t
		}
	}
	return models.TitleNotFound
}

func (x *Extractor) content(ctx context.Context, sess session.Session, url string) string {
	var texts []string
	if els, err := sess.Elements(ctx, unionSelector(x.ParagraphSelectors)); err == nil {
		for _, el := range els {
			texts = append(texts, trimmedText(el))
		}
	}

	paras := x.qualify(texts)
	if len(paras) == 0 && x.Readability {
		paras = x.qualify(x.readabilityFallback(ctx, sess, url))
	}
	if len(paras) == 0 {
		return models.ContentNotAvailable
	}
	return strings.Join(paras, "\n\n")
}

// qualify keeps paragraphs longer than MinParagraphLen, up to MaxParagraphs.
func (x *Extractor) qualify(texts []string) []string {
	var out []string
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if utf8.RuneCountInString(t) <= x.MinParagraphLen {
			continue
		}
		out = append(out, t)
		if x.MaxParagraphs > 0 && len(out) == x.MaxParagraphs {
			break
		}
	}
	return out
}

func (x *Extractor) readabilityFallback(ctx context.Context, sess session.Session, url string) []string {
	raw, err := sess.HTML(ctx)
	if err != nil {
		slog.Debug("readability fallback: no HTML", "url", url, "error", err)
		return nil
	}
	paras, err := readabilityParagraphs(raw, url)
	if err != nil {
		slog.Debug("readability fallback failed", "url", url, "error", err)
		return nil
	}
	return paras
}

func trimmedText(el session.Element) string {
	t, err := el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(t)
}
