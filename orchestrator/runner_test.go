package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/opinionprobe/extract"
	"github.com/use-agent/opinionprobe/models"
	"github.com/use-agent/opinionprobe/session"
)

// countingFactory hands out static sessions and counts acquire/release.
type countingFactory struct {
	load      session.Loader
	failFor   map[string]bool
	closeErr  error
	acquired  atomic.Int32
	released  atomic.Int32
	perConfig sync.Map // label -> *atomic.Int32 (releases)
}

func (f *countingFactory) Acquire(_ context.Context, desc models.ConfigurationDescriptor) (session.Session, error) {
	if f.failFor[desc.Label] {
		return nil, models.NewScrapeError(models.ErrCodeSessionAcquire, "hub refused session", nil)
	}
	f.acquired.Add(1)
	counter, _ := f.perConfig.LoadOrStore(desc.Label, new(atomic.Int32))
	return &countedSession{
		Session: session.NewStaticSession(f.load),
		label:   desc.Label,
		onClose: func() error {
			f.released.Add(1)
			counter.(*atomic.Int32).Add(1)
			return f.closeErr
		},
	}, nil
}

type countedSession struct {
	session.Session
	label   string
	onClose func() error
}

func (s *countedSession) Close() error {
	_ = s.Session.Close()
	return s.onClose()
}

// funcPipeline adapts a function to Pipeline.
type funcPipeline func(ctx context.Context, sess session.Session) ([]models.ArticleRecord, error)

func (p funcPipeline) Run(ctx context.Context, sess session.Session) ([]models.ArticleRecord, error) {
	return p(ctx, sess)
}

func nRecords(n int) []models.ArticleRecord {
	out := make([]models.ArticleRecord, n)
	for i := range out {
		out[i] = models.ArticleRecord{Ordinal: i + 1, Title: fmt.Sprintf("Title %d", i+1)}
	}
	return out
}

func descriptors(n int) []models.ConfigurationDescriptor {
	out := make([]models.ConfigurationDescriptor, n)
	for i := range out {
		out[i] = models.ConfigurationDescriptor{
			Label:   fmt.Sprintf("config-%d", i),
			Desktop: &models.DesktopTarget{OS: "Windows", OSVersion: "10", Browser: "Chrome", BrowserVersion: "latest"},
		}
	}
	return out
}

func byLabel(results []models.ConfigurationResult) map[string]models.ConfigurationResult {
	m := make(map[string]models.ConfigurationResult, len(results))
	for _, r := range results {
		m[r.Label] = r
	}
	return m
}

func TestRunAll_StatusFromArticleCount(t *testing.T) {
	counts := map[string]int{"config-0": 0, "config-1": 2, "config-2": 3, "config-3": 5}
	r := &Runner{
		Factory: &countingFactory{load: session.MapLoader(nil)},
		Pipeline: funcPipeline(func(_ context.Context, sess session.Session) ([]models.ArticleRecord, error) {
			return nRecords(counts[sess.(*countedSession).label]), nil
		}),
	}

	got := byLabel(r.RunAll(context.Background(), descriptors(4)))
	require.Len(t, got, 4)

	assert.Equal(t, models.StatusPartial, got["config-0"].Status)
	assert.Equal(t, models.StatusPartial, got["config-1"].Status)
	assert.Equal(t, models.StatusPassed, got["config-2"].Status)
	assert.Equal(t, models.StatusPassed, got["config-3"].Status)
	for label, res := range got {
		assert.Equal(t, counts[label], res.ArticlesScraped, label)
		assert.Empty(t, res.Error, label)
		assert.GreaterOrEqual(t, res.DurationSeconds, 0.0)
	}
}

func TestRunAll_ReleaseExactlyOncePerAcquire(t *testing.T) {
	tests := []struct {
		name       string
		pipeline   funcPipeline
		closeErr   error
		wantStatus models.Status
		wantErr    string
	}{
		{
			name: "success",
			pipeline: func(context.Context, session.Session) ([]models.ArticleRecord, error) {
				return nRecords(3), nil
			},
			wantStatus: models.StatusPassed,
		},
		{
			name: "pipeline error",
			pipeline: func(context.Context, session.Session) ([]models.ArticleRecord, error) {
				return nil, errors.New("listing unreachable")
			},
			wantStatus: models.StatusFailed,
			wantErr:    "listing unreachable",
		},
		{
			name: "pipeline panic",
			pipeline: func(context.Context, session.Session) ([]models.ArticleRecord, error) {
				panic("driver exploded")
			},
			wantStatus: models.StatusFailed,
			wantErr:    models.ErrCodeInternal + ": panic: driver exploded",
		},
		{
			name: "release error is swallowed",
			pipeline: func(context.Context, session.Session) ([]models.ArticleRecord, error) {
				return nRecords(1), nil
			},
			closeErr:   errors.New("quit failed"),
			wantStatus: models.StatusPartial,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &countingFactory{load: session.MapLoader(nil), closeErr: tt.closeErr}
			r := &Runner{Factory: f, Pipeline: tt.pipeline}

			results := r.RunAll(context.Background(), descriptors(3))
			require.Len(t, results, 3)

			assert.Equal(t, int32(3), f.acquired.Load())
			assert.Equal(t, int32(3), f.released.Load())
			f.perConfig.Range(func(key, value any) bool {
				assert.Equal(t, int32(1), value.(*atomic.Int32).Load(), key)
				return true
			})
			for _, res := range results {
				assert.Equal(t, tt.wantStatus, res.Status)
				assert.Contains(t, res.Error, tt.wantErr)
				if res.Status == models.StatusFailed {
					assert.Zero(t, res.ArticlesScraped)
				}
			}
		})
	}
}

// faultyTranslator fails or panics on every call.
type faultyTranslator struct {
	panics bool
}

func (f faultyTranslator) Translate(context.Context, string, string, string) (string, error) {
	if f.panics {
		panic("translation backend crashed")
	}
	return "", errors.New("translation backend down")
}

func TestRunAll_TranslatorFaults(t *testing.T) {
	tests := []struct {
		name       string
		translator faultyTranslator
		wantStatus models.Status
		wantErr    string
	}{
		{
			name:       "error keeps original titles and status",
			translator: faultyTranslator{},
			wantStatus: models.StatusPassed,
		},
		{
			name:       "panic fails the configuration",
			translator: faultyTranslator{panics: true},
			wantStatus: models.StatusFailed,
			wantErr:    "panic: translation backend crashed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &countingFactory{load: session.MapLoader(nil)}
			r := &Runner{
				Factory: f,
				Pipeline: funcPipeline(func(context.Context, session.Session) ([]models.ArticleRecord, error) {
					return nRecords(3), nil
				}),
				Translator: tt.translator,
			}

			results := r.RunAll(context.Background(), descriptors(2))
			require.Len(t, results, 2)

			assert.Equal(t, int32(2), f.acquired.Load())
			assert.Equal(t, int32(2), f.released.Load())
			f.perConfig.Range(func(key, value any) bool {
				assert.Equal(t, int32(1), value.(*atomic.Int32).Load(), key)
				return true
			})
			for _, res := range results {
				assert.Equal(t, tt.wantStatus, res.Status)
				if tt.wantErr == "" {
					assert.Empty(t, res.Error)
					assert.Equal(t, 3, res.ArticlesScraped)
					assert.Equal(t, []string{"Title 1", "Title 2", "Title 3"}, res.TranslatedTitles)
					continue
				}
				assert.Contains(t, res.Error, tt.wantErr)
				assert.Contains(t, res.Error, models.ErrCodeInternal)
			}
		})
	}
}

func TestRunAll_AcquireFailureNeverReleases(t *testing.T) {
	f := &countingFactory{
		load:    session.MapLoader(nil),
		failFor: map[string]bool{"config-1": true},
	}
	r := &Runner{Factory: f, Pipeline: funcPipeline(func(context.Context, session.Session) ([]models.ArticleRecord, error) {
		return nRecords(4), nil
	})}

	got := byLabel(r.RunAll(context.Background(), descriptors(3)))

	assert.Equal(t, models.StatusFailed, got["config-1"].Status)
	assert.Contains(t, got["config-1"].Error, "hub refused session")
	assert.Zero(t, got["config-1"].ArticlesScraped)
	assert.Equal(t, models.StatusPassed, got["config-0"].Status)
	assert.Equal(t, int32(2), f.acquired.Load())
	assert.Equal(t, int32(2), f.released.Load())
}

func TestRunAll_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	r := &Runner{
		Factory: &countingFactory{load: session.MapLoader(nil)},
		Pipeline: funcPipeline(func(context.Context, session.Session) ([]models.ArticleRecord, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			inFlight.Add(-1)
			return nRecords(3), nil
		}),
		MaxWorkers: 5,
	}

	results := r.RunAll(context.Background(), descriptors(8))

	assert.Len(t, results, 8)
	assert.LessOrEqual(t, peak.Load(), int32(5))
	assert.Equal(t, int32(5), peak.Load())
	assert.Zero(t, r.ActiveTasks())
}

func TestRunAll_ConcurrentRunsShareWorkerSlots(t *testing.T) {
	var inFlight, peak atomic.Int32
	r := &Runner{
		Factory: &countingFactory{load: session.MapLoader(nil)},
		Pipeline: funcPipeline(func(context.Context, session.Session) ([]models.ArticleRecord, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			inFlight.Add(-1)
			return nRecords(3), nil
		}),
		MaxWorkers: 3,
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, r.RunAll(context.Background(), descriptors(4)), 4)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Zero(t, r.ActiveTasks())
}

func TestRunAll_TaskTimeout(t *testing.T) {
	r := &Runner{
		Factory: &countingFactory{load: session.MapLoader(nil)},
		Pipeline: funcPipeline(func(ctx context.Context, _ session.Session) ([]models.ArticleRecord, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
		TaskTimeout: 20 * time.Millisecond,
	}

	results := r.RunAll(context.Background(), descriptors(2))
	for _, res := range results {
		assert.Equal(t, models.StatusFailed, res.Status)
		assert.Contains(t, res.Error, "deadline exceeded")
	}
}

// TestRunAll_TaskTimeoutAfterListing expires the task while an article page
// is still loading; the configuration fails even though the listing worked.
func TestRunAll_TaskTimeoutAfterListing(t *testing.T) {
	const listing = "https://elpais.com/opinion/"
	load := func(ctx context.Context, u string) (string, error) {
		if u == listing {
			return `<html><body><article><h2><a href="/opinion/lenta.html">x</a></h2></article></body></html>`, nil
		}
		<-ctx.Done()
		return "", ctx.Err()
	}
	f := &countingFactory{load: load}
	r := &Runner{
		Factory: f,
		Pipeline: &extract.Pipeline{
			ListingURL: listing,
			Links:      extract.DefaultLinkResolver(),
			Articles:   extract.DefaultExtractor(nil),
		},
		TaskTimeout: 30 * time.Millisecond,
	}

	results := r.RunAll(context.Background(), descriptors(2))
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Equal(t, models.StatusFailed, res.Status)
		assert.Contains(t, res.Error, models.ErrCodeTimeout)
		assert.Zero(t, res.ArticlesScraped)
	}
	assert.Equal(t, int32(2), f.released.Load())
}

func TestRunAll_Empty(t *testing.T) {
	r := &Runner{Factory: &countingFactory{}, Pipeline: funcPipeline(nil)}
	assert.Empty(t, r.RunAll(context.Background(), nil))
}

// upperTranslator translates by upper-casing.
type upperTranslator struct{}

func (upperTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	return strings.ToUpper(text), nil
}

// TestRun_EndToEnd drives the real extraction pipeline over static pages:
// one configuration cannot start, the other four scrape three articles each.
func TestRun_EndToEnd(t *testing.T) {
	const listing = "https://elpais.com/opinion/"
	pages := map[string]string{
		listing: `<html><body>
<article><h2><a href="/opinion/crisis-uno.html">1</a></h2></article>
<article><h2><a href="/opinion/crisis-dos.html">2</a></h2></article>
<article><h2><a href="/opinion/crisis-tres.html">3</a></h2></article>
<article><h2><a href="/cultura/otra.html">x</a></h2></article>
</body></html>`,
	}
	for _, slug := range []string{"uno", "dos", "tres"} {
		pages["https://elpais.com/opinion/crisis-"+slug+".html"] = `<html><body><article>
<h1>Crisis of trust ` + slug + `</h1>
<p>` + strings.Repeat("Texto de la columna de opinión. ", 3) + `</p>
</article></body></html>`
	}

	configs := models.DefaultTargets()
	f := &countingFactory{
		load:    session.MapLoader(pages),
		failFor: map[string]bool{configs[2].Label: true},
	}
	r := &Runner{
		Factory: f,
		Pipeline: &extract.Pipeline{
			ListingURL: listing,
			Links:      extract.DefaultLinkResolver(),
			Articles:   extract.DefaultExtractor(nil),
		},
		Translator:     upperTranslator{},
		SourceLanguage: "es",
		TargetLanguage: "en",
	}

	rep := r.Run(context.Background(), configs)

	require.Len(t, rep.Results, 5)
	assert.NotEmpty(t, rep.ID)
	assert.False(t, rep.FinishedAt.Before(rep.StartedAt))
	assert.Equal(t, models.Summary{Total: 5, Passed: 4, Partial: 0, Failed: 1, ArticlesScraped: 12}, rep.Summary)

	got := byLabel(rep.Results)
	assert.Equal(t, models.StatusFailed, got[configs[2].Label].Status)

	ok := got[configs[0].Label]
	require.Len(t, ok.Articles, 3)
	assert.Equal(t, "Crisis of trust uno", ok.Articles[0].Title)
	assert.Equal(t, "CRISIS OF TRUST UNO", ok.TranslatedTitles[0])
	assert.Equal(t, []models.WordFrequencyEntry{
		{Word: "crisis", Count: 3},
		{Word: "trust", Count: 3},
	}, ok.RepeatedWords)

	assert.Equal(t, int32(4), f.acquired.Load())
	assert.Equal(t, int32(4), f.released.Load())
}
