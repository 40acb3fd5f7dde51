package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/use-agent/opinionprobe/session"
)

// image finds the cover image and saves it, returning the local path or "".
func (x *Extractor) image(ctx context.Context, sess session.Session, pageURL string, ordinal int) string {
	if x.Images == nil {
		return ""
	}
	src := x.findImage(ctx, sess)
	if src == "" {
		slog.Debug("no cover image found", "url", pageURL)
		return ""
	}
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		slog.Debug("cover image URL not absolute", "url", pageURL, "src", src)
		return ""
	}

	path, err := x.Images.Save(ctx, src, ordinal)
	if err != nil {
		slog.Warn("cover image download failed", "url", pageURL, "src", src, "error", err)
		return ""
	}
	slog.Debug("cover image saved", "url", pageURL, "path", path)
	return path
}

// findImage returns the first acceptable image URL, scanning selectors in
// order and elements in document order.
func (x *Extractor) findImage(ctx context.Context, sess session.Session) string {
	for _, sel := range x.ImageSelectors {
		els, err := sess.Elements(ctx, sel)
		if err != nil {
			continue
		}
		for _, el := range els {
			if src := imageSource(el); x.acceptImage(src) {
				return src
			}
		}
	}
	return ""
}

// imageSource reads src, falling back to the lazy-load data-src attribute.
func imageSource(el session.Element) string {
	if src, err := el.Attr("src"); err == nil && src != "" {
		return src
	}
	src, _ := el.Attr("data-src")
	return src
}

func (x *Extractor) acceptImage(src string) bool {
	if src == "" || strings.HasSuffix(strings.ToLower(src), ".svg") {
		return false
	}
	for _, h := range x.ImageHosts {
		if strings.Contains(src, h) {
			return true
		}
	}
	return false
}
