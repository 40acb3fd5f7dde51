// Package session abstracts the browser environment a configuration runs in.
//
// A Factory turns a configuration descriptor into a live Session. Sessions are
// owned by exactly one task and released once via Close.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/use-agent/opinionprobe/models"
)

// ErrNoElement is returned by WaitElement when nothing matched.
var ErrNoElement = errors.New("session: no matching element")

// ErrNotLoaded is returned when a page is queried before any navigation.
var ErrNotLoaded = errors.New("session: no page loaded")

// Element is a single DOM element of the current page.
type Element interface {
	// Text returns the element's visible text.
	Text() (string, error)

	// Attr returns an attribute value, or "" when absent. For "href" and
	// "src" the value is resolved to an absolute URL the way the browser's
	// DOM property would be.
	Attr(name string) (string, error)
}

// Session is a live browser environment.
type Session interface {
	// Navigate loads url and waits for the document to settle.
	Navigate(ctx context.Context, url string) error

	// Elements returns all elements matching a CSS selector in document order.
	// An empty result is not an error.
	Elements(ctx context.Context, selector string) ([]Element, error)

	// WaitElement waits up to timeout for the first element matching selector.
	WaitElement(ctx context.Context, selector string, timeout time.Duration) (Element, error)

	// HTML returns the rendered HTML of the current page.
	HTML(ctx context.Context) (string, error)

	// Close releases the session and every resource it holds.
	Close() error
}

// ConsentDismisser is implemented by sessions that can click through a
// cookie consent dialog.
type ConsentDismisser interface {
	DismissConsent(ctx context.Context, wait time.Duration) error
}

// Factory acquires sessions for configuration descriptors.
type Factory interface {
	Acquire(ctx context.Context, desc models.ConfigurationDescriptor) (Session, error)
}

// categorizeError wraps raw errors into typed ScrapeErrors so callers can
// tell timeouts from other navigation failures.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
