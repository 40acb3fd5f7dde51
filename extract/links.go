package extract

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/use-agent/opinionprobe/fetch"
	"github.com/use-agent/opinionprobe/session"
)

// MaxArticleLinks is the hard cap on links returned by Resolve.
const MaxArticleLinks = 5

// DefaultLinkSelectors match headline anchors on the listing page.
var DefaultLinkSelectors = []string{"article h2 a", "article h3 a", ".c_h a"}

// LinkResolver finds article URLs on the listing page.
type LinkResolver struct {
	// SectionPath must appear in every returned URL.
	SectionPath string

	// Selectors locate headline anchors for the primary strategy.
	Selectors []string

	// ScanLimit caps how many headline anchors are inspected; values below 1
	// are treated as 1.
	ScanLimit int

	// MaxLinks caps the result. It is clamped to 1..MaxArticleLinks.
	MaxLinks int

	// FeedURL enables the feed strategy when both DOM strategies come up empty.
	FeedURL string

	// FeedClient fetches the feed; nil uses http.DefaultClient.
	FeedClient *http.Client
}

// DefaultLinkResolver returns a resolver for the opinion section.
func DefaultLinkResolver() *LinkResolver {
	return &LinkResolver{
		SectionPath: "/opinion/",
		Selectors:   DefaultLinkSelectors,
		ScanLimit:   10,
		MaxLinks:    5,
	}
}

// Validate checks the selectors compile.
func (r *LinkResolver) Validate() error {
	return validateSelectors(unionSelector(r.Selectors))
}

// Resolve returns up to MaxLinks distinct URLs containing SectionPath.
func (r *LinkResolver) Resolve(ctx context.Context, sess session.Session) []string {
	strategies := []Strategy[string]{
		{Name: "headlines", Run: func(ctx context.Context) ([]string, error) {
			return r.fromElements(ctx, sess, unionSelector(r.Selectors), r.EffectiveScanLimit())
		}},
		{Name: "all-anchors", Run: func(ctx context.Context) ([]string, error) {
			return r.fromElements(ctx, sess, "a", 0)
		}},
	}
	if r.FeedURL != "" {
		strategies = append(strategies, Strategy[string]{Name: "feed", Run: r.fromFeed})
	}
	return FirstNonEmpty(ctx, strategies...)
}

// fromElements reads href from the first scanLimit matches (all when zero).
func (r *LinkResolver) fromElements(ctx context.Context, sess session.Session, selector string, scanLimit int) ([]string, error) {
	els, err := sess.Elements(ctx, selector)
	if err != nil {
		return nil, err
	}
	if scanLimit > 0 && len(els) > scanLimit {
		els = els[:scanLimit]
	}

	c := r.collector()
	for _, el := range els {
		href, err := el.Attr("href")
		if err != nil {
			continue
		}
		if c.add(href) {
			break
		}
	}
	return c.links, nil
}

func (r *LinkResolver) fromFeed(ctx context.Context) ([]string, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = fetch.UserAgent
	if r.FeedClient != nil {
		fp.Client = r.FeedClient
	}
	feed, err := fp.ParseURLWithContext(r.FeedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	c := r.collector()
	for _, item := range feed.Items {
		if c.add(item.Link) {
			break
		}
	}
	return c.links, nil
}

// EffectiveMaxLinks returns MaxLinks clamped to 1..MaxArticleLinks.
func (r *LinkResolver) EffectiveMaxLinks() int {
	return min(max(r.MaxLinks, 1), MaxArticleLinks)
}

// EffectiveScanLimit returns ScanLimit, at least 1.
func (r *LinkResolver) EffectiveScanLimit() int {
	return max(r.ScanLimit, 1)
}

func (r *LinkResolver) collector() *linkCollector {
	return &linkCollector{
		section: r.SectionPath,
		max:     r.EffectiveMaxLinks(),
		seen:    make(map[string]struct{}),
	}
}

// linkCollector applies the section filter, dedup and cap.
type linkCollector struct {
	section string
	max     int
	seen    map[string]struct{}
	links   []string
}

// add records href if it qualifies and reports whether the cap is reached.
func (c *linkCollector) add(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" || !strings.Contains(href, c.section) {
		return c.full()
	}
	if _, dup := c.seen[href]; dup {
		return c.full()
	}
	c.seen[href] = struct{}{}
	c.links = append(c.links, href)
	return c.full()
}

func (c *linkCollector) full() bool {
	return len(c.links) >= c.max
}
