package translate

import (
	"context"

	"github.com/use-agent/opinionprobe/cache"
	"github.com/use-agent/opinionprobe/models"
	"golang.org/x/time/rate"
)

// Cached serves repeated translations from memory.
type Cached struct {
	next  Translator
	cache *cache.Cache
}

// NewCached wraps next with c.
func NewCached(next Translator, c *cache.Cache) *Cached {
	return &Cached{next: next, cache: c}
}

func (t *Cached) Translate(ctx context.Context, text, source, target string) (string, error) {
	key := cache.Key(source, target, text)
	if v, ok := t.cache.Get(key); ok {
		return v, nil
	}
	v, err := t.next.Translate(ctx, text, source, target)
	if err != nil {
		return "", err
	}
	t.cache.Set(key, v)
	return v, nil
}

// Limited throttles calls to next with a token bucket shared by all callers.
type Limited struct {
	next    Translator
	limiter *rate.Limiter
}

// NewLimited wraps next with a limiter of rps requests per second and burst.
func NewLimited(next Translator, rps float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *Limited) Translate(ctx context.Context, text, source, target string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", models.NewScrapeError(models.ErrCodeRateLimited, "translation rate limit wait aborted", err)
	}
	return t.next.Translate(ctx, text, source, target)
}
