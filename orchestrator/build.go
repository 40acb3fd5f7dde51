package orchestrator

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/use-agent/opinionprobe/cache"
	"github.com/use-agent/opinionprobe/config"
	"github.com/use-agent/opinionprobe/extract"
	"github.com/use-agent/opinionprobe/fetch"
	"github.com/use-agent/opinionprobe/imagestore"
	"github.com/use-agent/opinionprobe/session"
	"github.com/use-agent/opinionprobe/translate"
)

// Build wires a Runner from configuration. The returned cleanup releases
// shared resources (local browser, cache janitor) and must be called once
// the Runner is no longer used.
func Build(cfg *config.Config) (*Runner, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	pageClient := fetch.NewClient(fetch.Options{Timeout: cfg.Scraper.NavigationTimeout, Proxy: cfg.Browser.Proxy})
	imageClient := fetch.NewClient(fetch.Options{Timeout: cfg.Storage.FetchTimeout, Proxy: cfg.Browser.Proxy})

	pipeline, err := buildPipeline(cfg, pageClient, imageClient)
	if err != nil {
		return nil, cleanup, err
	}

	var factory session.Factory
	switch cfg.Remote.Mode {
	case config.ModeStatic:
		factory = session.NewHTTPStaticFactory(pageClient, cfg.Browser.AcceptLanguage)
	case config.ModeRemote, config.ModeLocal:
		rf := session.NewRodFactory(cfg.Remote, cfg.Browser, cfg.Scraper.NavigationTimeout)
		cleanups = append(cleanups, rf.Close)
		factory = rf
	default:
		return nil, cleanup, fmt.Errorf("unknown session mode %q", cfg.Remote.Mode)
	}

	tr, trCache, err := buildTranslator(cfg.Translate)
	if err != nil {
		return nil, cleanup, err
	}
	cleanups = append(cleanups, trCache.Close)

	return &Runner{
		Factory:        factory,
		Pipeline:       pipeline,
		Translator:     tr,
		SourceLanguage: cfg.Translate.Source,
		TargetLanguage: cfg.Translate.Target,
		MaxWorkers:     cfg.Orchestrator.MaxWorkers,
		TaskTimeout:    cfg.Orchestrator.TaskTimeout,
	}, cleanup, nil
}

func buildPipeline(cfg *config.Config, pageClient, imageClient *http.Client) (*extract.Pipeline, error) {
	links := extract.DefaultLinkResolver()
	links.SectionPath = cfg.Scraper.SectionPath
	links.ScanLimit = cfg.Scraper.LinkScanLimit
	links.MaxLinks = cfg.Scraper.MaxArticles
	links.FeedURL = cfg.Scraper.FeedURL
	links.FeedClient = pageClient
	if err := links.Validate(); err != nil {
		return nil, err
	}
	if n := links.EffectiveMaxLinks(); n != cfg.Scraper.MaxArticles {
		slog.Warn("max articles out of range, clamped",
			"configured", cfg.Scraper.MaxArticles, "effective", n)
	}
	if n := links.EffectiveScanLimit(); n != cfg.Scraper.LinkScanLimit {
		slog.Warn("link scan limit out of range, clamped",
			"configured", cfg.Scraper.LinkScanLimit, "effective", n)
	}

	store := imagestore.New(cfg.Storage.ImagesDir, imagestore.NewHTTPFetcher(imageClient))
	articles := extract.DefaultExtractor(store)
	articles.TitleWait = cfg.Scraper.TitleWait
	articles.ImageHosts = cfg.Scraper.ImageHosts
	articles.Readability = cfg.Scraper.ReadabilityFallback
	if err := articles.Validate(); err != nil {
		return nil, err
	}

	return &extract.Pipeline{
		ListingURL:  cfg.Scraper.ListingURL,
		ConsentWait: cfg.Scraper.ConsentWait,
		Links:       links,
		Articles:    articles,
	}, nil
}

// buildTranslator stacks the configured backend under a rate limiter and a
// cache: cache hits never consume rate budget.
func buildTranslator(cfg config.TranslateConfig) (translate.Translator, *cache.Cache, error) {
	client := &http.Client{Timeout: cfg.Timeout}

	var backend translate.Translator
	switch cfg.Provider {
	case "lingva":
		backend = translate.NewLingvaClient(client, cfg.Instances)
	case "openai":
		if cfg.LLMAPIKey == "" {
			return nil, nil, fmt.Errorf("openai translation requires OPINION_LLM_API_KEY")
		}
		backend = translate.NewOpenAIClient(client, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMBaseURL)
	default:
		return nil, nil, fmt.Errorf("unknown translation provider %q", cfg.Provider)
	}

	if cfg.RequestsPerSecond > 0 {
		backend = translate.NewLimited(backend, cfg.RequestsPerSecond, cfg.Burst)
	}
	c := cache.New(cfg.CacheEntries, 0)
	return translate.NewCached(backend, c), c, nil
}
