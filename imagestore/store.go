// Package imagestore downloads article cover images and writes them to disk.
package imagestore

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/use-agent/opinionprobe/fetch"
	"github.com/use-agent/opinionprobe/models"
)

// Image is a downloaded image body.
type Image struct {
	Data        []byte
	ContentType string
}

// Fetcher downloads an image.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Image, error)
}

// HTTPFetcher fetches images over HTTP. Any status other than 200 is an error.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher using client.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Image, error) {
	resp, err := fetch.Get(ctx, f.client, url, map[string]string{
		"Accept": "image/avif,image/webp,image/png,image/jpeg,*/*;q=0.8",
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image request returned %d", resp.StatusCode)
	}
	return &Image{Data: resp.Body, ContentType: resp.ContentType}, nil
}

// Store saves cover images under Dir.
type Store struct {
	Dir     string
	Fetcher Fetcher
}

// New creates a store writing to dir.
func New(dir string, fetcher Fetcher) *Store {
	return &Store{Dir: dir, Fetcher: fetcher}
}

// ExtensionFor returns "png" for PNG content types and "jpg" for anything else.
func ExtensionFor(contentType string) string {
	if strings.Contains(strings.ToLower(contentType), "image/png") {
		return "png"
	}
	return "jpg"
}

// FileName returns the file name for an article's cover image.
func FileName(ordinal int, ext string) string {
	return fmt.Sprintf("article_%d_cover.%s", ordinal, ext)
}

// Save downloads url and writes it as article_<ordinal>_cover.<ext>,
// returning the written path. The write is atomic: readers never observe a
// partial file even when several configurations save the same ordinal.
func (s *Store) Save(ctx context.Context, url string, ordinal int) (string, error) {
	img, err := s.Fetcher.Fetch(ctx, url)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeImageFetch, "failed to download image", err)
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create images dir: %w", err)
	}

	path := filepath.Join(s.Dir, FileName(ordinal, ExtensionFor(img.ContentType)))
	if err := writeAtomic(s.Dir, path, img.Data); err != nil {
		return "", err
	}
	return path, nil
}

func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".cover-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close image: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename image: %w", err)
	}
	return nil
}
