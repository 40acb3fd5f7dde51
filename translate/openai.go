package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/use-agent/opinionprobe/models"
)

// OpenAIClient translates with any OpenAI-compatible chat completion API.
// It uses net/http directly; no SDK is needed for one endpoint.
type OpenAIClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string // e.g. "https://api.openai.com/v1"
}

// NewOpenAIClient creates a client. Pass nil to use a default http.Client.
func NewOpenAIClient(httpClient *http.Client, apiKey, model, baseURL string) *OpenAIClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OpenAIClient{httpClient: httpClient, apiKey: apiKey, model: model, baseURL: baseURL}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OpenAIClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(source, target)},
			{Role: "user", Content: text},
		},
		Temperature: 0,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeTranslation, "LLM request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeTranslation, "failed to read LLM response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyLLMError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", models.NewScrapeError(models.ErrCodeTranslation, "failed to parse LLM response", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", models.NewScrapeError(models.ErrCodeTranslation, "LLM returned no choices", nil)
	}

	out := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if out == "" {
		return "", models.NewScrapeError(models.ErrCodeTranslation, "LLM returned empty translation", nil)
	}
	return out, nil
}

func systemPrompt(source, target string) string {
	return fmt.Sprintf(`You are a news headline translator. Translate the user's headline from %q to %q.

Rules:
- Return ONLY the translated headline, no quotes or explanation.
- Keep proper nouns as they are.`, source, target)
}

// classifyLLMError maps HTTP status codes to error codes.
func classifyLLMError(statusCode int, body []byte) *models.ScrapeError {
	var errResp chatErrorResponse
	msg := "LLM API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.NewScrapeError(models.ErrCodeUnauthorized, msg, nil)
	case http.StatusTooManyRequests:
		return models.NewScrapeError(models.ErrCodeRateLimited, msg, nil)
	default:
		return models.NewScrapeError(models.ErrCodeTranslation, fmt.Sprintf("LLM API returned %d: %s", statusCode, msg), nil)
	}
}
