package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/opinionprobe/fetch"
	"github.com/use-agent/opinionprobe/models"
	"golang.org/x/net/html"
)

// Loader returns the HTML of a URL.
type Loader func(ctx context.Context, url string) (string, error)

// MapLoader serves pages from memory. Unknown URLs fail.
func MapLoader(pages map[string]string) Loader {
	return func(_ context.Context, u string) (string, error) {
		body, ok := pages[u]
		if !ok {
			return "", fmt.Errorf("no page for %s", u)
		}
		return body, nil
	}
}

// StaticFactory acquires sessions that fetch pages over plain HTTP and query
// the unrendered DOM. No JavaScript runs, so it suits server-rendered pages
// and tests.
type StaticFactory struct {
	load Loader
}

// NewStaticFactory creates a factory whose sessions load pages with load.
func NewStaticFactory(load Loader) *StaticFactory {
	return &StaticFactory{load: load}
}

// NewHTTPStaticFactory creates a StaticFactory backed by client.
func NewHTTPStaticFactory(client *http.Client, acceptLanguage string) *StaticFactory {
	return NewStaticFactory(fetch.HTMLLoader(client, acceptLanguage))
}

func (f *StaticFactory) Acquire(_ context.Context, desc models.ConfigurationDescriptor) (Session, error) {
	if err := desc.Validate(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeSessionAcquire, "invalid configuration", err)
	}
	return NewStaticSession(f.load), nil
}

// StaticSession is a Session over a parsed HTML document.
type StaticSession struct {
	load Loader

	mu     sync.Mutex
	doc    *goquery.Document
	base   *url.URL
	closed bool
}

// NewStaticSession creates an empty session that loads pages with load.
func NewStaticSession(load Loader) *StaticSession {
	return &StaticSession{load: load}
}

func (s *StaticSession) Navigate(ctx context.Context, rawURL string) error {
	if s.isClosed() {
		return models.NewScrapeError(models.ErrCodeNavigation, "session closed", nil)
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeNavigation, "invalid URL", err)
	}

	body, err := s.load(ctx, rawURL)
	if err != nil {
		return categorizeError(err, "navigation to "+rawURL+" failed")
	}
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return models.NewScrapeError(models.ErrCodeNavigation, "failed to parse page", err)
	}

	s.mu.Lock()
	s.doc = goquery.NewDocumentFromNode(root)
	s.base = base
	s.mu.Unlock()
	return nil
}

func (s *StaticSession) current() (*goquery.Document, *url.URL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, nil, ErrNotLoaded
	}
	return s.doc, s.base, nil
}

func (s *StaticSession) Elements(_ context.Context, selector string) ([]Element, error) {
	doc, base, err := s.current()
	if err != nil {
		return nil, err
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}

	matches := doc.FindMatcher(sel)
	out := make([]Element, 0, matches.Length())
	matches.Each(func(_ int, m *goquery.Selection) {
		out = append(out, staticElement{sel: m, base: base})
	})
	return out, nil
}

// WaitElement returns the first match immediately; a static document never changes.
func (s *StaticSession) WaitElement(ctx context.Context, selector string, _ time.Duration) (Element, error) {
	els, err := s.Elements(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, ErrNoElement
	}
	return els[0], nil
}

func (s *StaticSession) HTML(_ context.Context) (string, error) {
	doc, _, err := s.current()
	if err != nil {
		return "", err
	}
	return goquery.OuterHtml(doc.Selection)
}

func (s *StaticSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.doc = nil
	s.mu.Unlock()
	return nil
}

func (s *StaticSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type staticElement struct {
	sel  *goquery.Selection
	base *url.URL
}

func (e staticElement) Text() (string, error) {
	return e.sel.Text(), nil
}

func (e staticElement) Attr(name string) (string, error) {
	v, ok := e.sel.Attr(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", nil
	}
	if (name == "href" || name == "src") && e.base != nil {
		ref, err := url.Parse(strings.TrimSpace(v))
		if err != nil {
			return v, nil
		}
		return e.base.ResolveReference(ref).String(), nil
	}
	return v, nil
}
