package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Placeholder credentials. Running remote sessions with these values is refused.
const (
	PlaceholderUsername  = "your_username"
	PlaceholderAccessKey = "your_access_key"
)

// Session modes.
const (
	ModeRemote = "remote" // CDP hub (BrowserStack)
	ModeLocal  = "local"  // locally launched Chromium
	ModeStatic = "static" // plain HTTP fetch, no JavaScript
)

// Config holds all application configuration.
type Config struct {
	Remote       RemoteConfig
	Browser      BrowserConfig
	Scraper      ScraperConfig
	Storage      StorageConfig
	Translate    TranslateConfig
	Orchestrator OrchestratorConfig
	Report       ReportConfig
	Server       ServerConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	Log          LogConfig
}

// RemoteConfig controls how browser sessions are acquired.
type RemoteConfig struct {
	// Mode is one of "remote", "local" or "static"; default: "remote".
	Mode string

	// Endpoint is the CDP websocket endpoint of the remote hub.
	Endpoint string // default: "wss://cdp.browserstack.com/puppeteer"

	Username  string
	AccessKey string

	// Project and Build are reported to the hub for grouping sessions.
	Project string // default: "El Pais Scraper"
	Build   string // default: "v1.0"

	// Debug enables hub-side console and network logs.
	Debug bool // default: true
}

// HasPlaceholderCredentials reports whether either credential still holds
// its placeholder value.
func (r RemoteConfig) HasPlaceholderCredentials() bool {
	return r.Username == PlaceholderUsername || r.AccessKey == PlaceholderAccessKey
}

// BrowserConfig controls the Rod browser instance (local mode) and per-page setup.
type BrowserConfig struct {
	// Headless controls whether a local browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for local browsers and plain HTTP fetches.
	Proxy string

	// Stealth enables anti-bot-detection evasions on every page.
	Stealth bool // default: false

	// BlockAds blocks well-known ad and tracking domains.
	BlockAds bool // default: true

	// BlockedResourceTypes lists resource types to block.
	// Images are never blocked by default: cover images are read from the DOM
	// and lazy loaders may depend on them. default: ["Font", "Media"]
	BlockedResourceTypes []string

	// AcceptLanguage is sent as an extra header on every request.
	AcceptLanguage string // default: "es-ES,es;q=0.9"
}

// ScraperConfig controls link resolution and article extraction.
type ScraperConfig struct {
	// ListingURL is the opinion section page.
	ListingURL string // default: "https://elpais.com/opinion/"

	// SectionPath is the path segment every article URL must contain.
	SectionPath string // default: "/opinion/"

	// FeedURL enables the feed-based link strategy when set.
	FeedURL string

	// MaxArticles caps the number of articles extracted per run.
	MaxArticles int // default: 5

	// LinkScanLimit caps the headline anchors inspected by the primary strategy.
	LinkScanLimit int // default: 10

	// NavigationTimeout bounds a single page navigation.
	NavigationTimeout time.Duration // default: 30s

	// TitleWait bounds the wait for the primary heading.
	TitleWait time.Duration // default: 10s

	// ConsentWait bounds the wait for the cookie consent button.
	ConsentWait time.Duration // default: 5s

	// ImageHosts are substrings an accepted cover image URL must contain.
	ImageHosts []string // default: ["cloudfront", "elpais"]

	// ReadabilityFallback enables the readability content strategy.
	ReadabilityFallback bool // default: false
}

// StorageConfig controls cover image persistence.
type StorageConfig struct {
	// ImagesDir is the directory cover images are written to.
	ImagesDir string // default: "article_images"

	// FetchTimeout bounds a single image download.
	FetchTimeout time.Duration // default: 10s
}

// TranslateConfig controls headline translation.
type TranslateConfig struct {
	// Provider is "lingva" or "openai"; default: "lingva".
	Provider string

	Source string // default: "es"
	Target string // default: "en"

	// Instances lists Lingva base URLs tried in order.
	Instances []string

	// LLM settings for the "openai" provider (any OpenAI-compatible API).
	LLMAPIKey  string
	LLMModel   string // default: "gpt-4o-mini"
	LLMBaseURL string // default: "https://api.openai.com/v1"

	// Timeout bounds a single translation request.
	Timeout time.Duration // default: 10s

	// RequestsPerSecond and Burst throttle calls shared by all workers.
	RequestsPerSecond float64 // default: 5
	Burst             int     // default: 5

	// CacheEntries is the maximum number of cached translations.
	CacheEntries int // default: 500
}

// OrchestratorConfig controls the parallel run.
type OrchestratorConfig struct {
	// MaxWorkers is the maximum number of configurations in flight.
	MaxWorkers int // default: 5

	// TaskTimeout bounds one configuration run. Zero disables the bound.
	TaskTimeout time.Duration // default: 0

	// TargetsFile is an optional YAML file with the configuration list.
	TargetsFile string
}

// ReportConfig controls where finished reports are published.
type ReportConfig struct {
	WebhookURL    string
	WebhookSecret string

	KafkaBrokers []string
	KafkaTopic   string // default: "opinionprobe.reports"
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting on the API.
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 1
	Burst             int     // default: 3
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Remote: RemoteConfig{
			Mode:      envOr("OPINION_SESSION_MODE", ModeRemote),
			Endpoint:  envOr("OPINION_CDP_ENDPOINT", "wss://cdp.browserstack.com/puppeteer"),
			Username:  envOr("BROWSERSTACK_USERNAME", PlaceholderUsername),
			AccessKey: envOr("BROWSERSTACK_ACCESS_KEY", PlaceholderAccessKey),
			Project:   envOr("OPINION_PROJECT", "El Pais Scraper"),
			Build:     envOr("OPINION_BUILD", "v1.0"),
			Debug:     envBoolOr("OPINION_REMOTE_DEBUG", true),
		},
		Browser: BrowserConfig{
			Headless:             envBoolOr("OPINION_HEADLESS", true),
			NoSandbox:            envBoolOr("OPINION_NO_SANDBOX", false),
			BrowserBin:           os.Getenv("OPINION_BROWSER_BIN"),
			Proxy:                os.Getenv("OPINION_PROXY"),
			Stealth:              envBoolOr("OPINION_STEALTH", false),
			BlockAds:             envBoolOr("OPINION_BLOCK_ADS", true),
			BlockedResourceTypes: envSliceOr("OPINION_BLOCKED_RESOURCES", []string{"Font", "Media"}),
			AcceptLanguage:       envOr("OPINION_ACCEPT_LANGUAGE", "es-ES,es;q=0.9"),
		},
		Scraper: ScraperConfig{
			ListingURL:          envOr("OPINION_LISTING_URL", "https://elpais.com/opinion/"),
			SectionPath:         envOr("OPINION_SECTION_PATH", "/opinion/"),
			FeedURL:             os.Getenv("OPINION_FEED_URL"),
			MaxArticles:         envIntOr("OPINION_MAX_ARTICLES", 5),
			LinkScanLimit:       envIntOr("OPINION_LINK_SCAN_LIMIT", 10),
			NavigationTimeout:   envDurationOr("OPINION_NAV_TIMEOUT", 30*time.Second),
			TitleWait:           envDurationOr("OPINION_TITLE_WAIT", 10*time.Second),
			ConsentWait:         envDurationOr("OPINION_CONSENT_WAIT", 5*time.Second),
			ImageHosts:          envSliceOr("OPINION_IMAGE_HOSTS", []string{"cloudfront", "elpais"}),
			ReadabilityFallback: envBoolOr("OPINION_READABILITY_FALLBACK", false),
		},
		Storage: StorageConfig{
			ImagesDir:    envOr("OPINION_IMAGES_DIR", "article_images"),
			FetchTimeout: envDurationOr("OPINION_IMAGE_TIMEOUT", 10*time.Second),
		},
		Translate: TranslateConfig{
			Provider:          envOr("OPINION_TRANSLATE_PROVIDER", "lingva"),
			Source:            envOr("OPINION_TRANSLATE_SOURCE", "es"),
			Target:            envOr("OPINION_TRANSLATE_TARGET", "en"),
			Instances:         envSliceOr("OPINION_LINGVA_INSTANCES", []string{"https://translate.plausibility.cloud", "https://lingva.ml"}),
			LLMAPIKey:         os.Getenv("OPINION_LLM_API_KEY"),
			LLMModel:          envOr("OPINION_LLM_MODEL", "gpt-4o-mini"),
			LLMBaseURL:        envOr("OPINION_LLM_BASE_URL", "https://api.openai.com/v1"),
			Timeout:           envDurationOr("OPINION_TRANSLATE_TIMEOUT", 10*time.Second),
			RequestsPerSecond: envFloatOr("OPINION_TRANSLATE_RPS", 5.0),
			Burst:             envIntOr("OPINION_TRANSLATE_BURST", 5),
			CacheEntries:      envIntOr("OPINION_TRANSLATE_CACHE", 500),
		},
		Orchestrator: OrchestratorConfig{
			MaxWorkers:  envIntOr("OPINION_MAX_WORKERS", 5),
			TaskTimeout: envDurationOr("OPINION_TASK_TIMEOUT", 0),
			TargetsFile: os.Getenv("OPINION_TARGETS_FILE"),
		},
		Report: ReportConfig{
			WebhookURL:    os.Getenv("OPINION_WEBHOOK_URL"),
			WebhookSecret: os.Getenv("OPINION_WEBHOOK_SECRET"),
			KafkaBrokers:  envSliceOr("OPINION_KAFKA_BROKERS", nil),
			KafkaTopic:    envOr("OPINION_KAFKA_TOPIC", "opinionprobe.reports"),
		},
		Server: ServerConfig{
			Host: envOr("OPINION_HOST", "0.0.0.0"),
			Port: envIntOr("OPINION_PORT", 8080),
			Mode: envOr("OPINION_SERVER_MODE", "release"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("OPINION_AUTH_ENABLED", true),
			APIKeys: envSliceOr("OPINION_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("OPINION_RATE_RPS", 1.0),
			Burst:             envIntOr("OPINION_RATE_BURST", 3),
		},
		Log: LogConfig{
			Level:  envOr("OPINION_LOG_LEVEL", "info"),
			Format: envOr("OPINION_LOG_FORMAT", "text"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
