package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/opinionprobe/config"
	"github.com/use-agent/opinionprobe/fetch"
	"github.com/use-agent/opinionprobe/session"
)

func TestBuild_StaticMode(t *testing.T) {
	t.Setenv("OPINION_SESSION_MODE", config.ModeStatic)
	t.Setenv("OPINION_MAX_WORKERS", "3")
	cfg := config.Load()

	r, cleanup, err := Build(cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &session.StaticFactory{}, r.Factory)
	assert.Equal(t, 3, r.Workers())
	assert.Equal(t, "es", r.SourceLanguage)
	assert.Equal(t, "en", r.TargetLanguage)
	assert.NotNil(t, r.Translator)
}

func TestBuild_RemoteModeDoesNotConnect(t *testing.T) {
	cfg := config.Load()
	cfg.Remote.Mode = config.ModeRemote

	r, cleanup, err := Build(cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &session.RodFactory{}, r.Factory)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown mode", func(c *config.Config) { c.Remote.Mode = "carrier-pigeon" }},
		{"unknown provider", func(c *config.Config) { c.Translate.Provider = "babelfish" }},
		{"openai without key", func(c *config.Config) {
			c.Translate.Provider = "openai"
			c.Translate.LLMAPIKey = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Load()
			cfg.Remote.Mode = config.ModeStatic
			tt.mutate(cfg)

			_, cleanup, err := Build(cfg)
			cleanup()
			assert.Error(t, err)
		})
	}
}

func TestBuildPipeline_ArticleCapFromConfig(t *testing.T) {
	const listing = "https://elpais.com/opinion/"
	var b strings.Builder
	b.WriteString("<html><body>")
	pages := map[string]string{}
	for i := 0; i < 8; i++ {
		u := fmt.Sprintf("https://elpais.com/opinion/%d.html", i)
		b.WriteString(`<article><h2><a href="` + u + `">x</a></h2></article>`)
		pages[u] = "<html><body><h1>Titular</h1></body></html>"
	}
	b.WriteString("</body></html>")
	pages[listing] = b.String()

	tests := []struct {
		maxArticles string
		scanLimit   string
		want        int
	}{
		{"0", "10", 1},
		{"8", "10", 5},
		{"3", "10", 3},
		{"5", "0", 1}, // a zero scan limit still inspects the first headline
	}
	for _, tt := range tests {
		t.Run("max="+tt.maxArticles+"/scan="+tt.scanLimit, func(t *testing.T) {
			t.Setenv("OPINION_MAX_ARTICLES", tt.maxArticles)
			t.Setenv("OPINION_LINK_SCAN_LIMIT", tt.scanLimit)
			cfg := config.Load()
			cfg.Scraper.ListingURL = listing
			cfg.Storage.ImagesDir = t.TempDir()
			client := fetch.NewClient(fetch.Options{PlainTLS: true})

			p, err := buildPipeline(cfg, client, client)
			require.NoError(t, err)

			sess := session.NewStaticSession(session.MapLoader(pages))
			records, err := p.Run(context.Background(), sess)
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
		})
	}
}
