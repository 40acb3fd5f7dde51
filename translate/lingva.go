package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/use-agent/opinionprobe/models"
)

// LingvaClient translates through the Lingva Translate API, trying each
// instance in order.
type LingvaClient struct {
	httpClient *http.Client
	instances  []string
}

// NewLingvaClient creates a client for the given instance base URLs.
func NewLingvaClient(httpClient *http.Client, instances []string) *LingvaClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &LingvaClient{httpClient: httpClient, instances: instances}
}

type lingvaResponse struct {
	Translation string `json:"translation"`
	Error       string `json:"error"`
}

func (c *LingvaClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if source == "" {
		source = "auto"
	}
	if len(c.instances) == 0 {
		return "", models.NewScrapeError(models.ErrCodeTranslation, "no lingva instances configured", nil)
	}

	encoded := url.PathEscape(text)

	var lastErr error
	for _, instance := range c.instances {
		reqURL := fmt.Sprintf("%s/api/v1/%s/%s/%s", strings.TrimRight(instance, "/"), source, target, encoded)
		translated, err := c.get(ctx, reqURL)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", instance, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return translated, nil
	}

	return "", models.NewScrapeError(models.ErrCodeTranslation, "all lingva instances failed", lastErr)
}

func (c *LingvaClient) get(ctx context.Context, reqURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("returned %d", resp.StatusCode)
	}

	var result lingvaResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}
	if result.Error != "" {
		return "", fmt.Errorf("lingva error: %s", result.Error)
	}
	if result.Translation == "" {
		return "", fmt.Errorf("empty translation")
	}
	return result.Translation, nil
}
