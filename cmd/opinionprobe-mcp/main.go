package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// runResponse mirrors the API response for POST /api/v1/runs.
type runResponse struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Total  int       `json:"total"`
	Error  *apiError `json:"error"`
}

// runStatusResponse mirrors the API response for GET /api/v1/runs/:id.
type runStatusResponse struct {
	ID     string     `json:"id"`
	Status string     `json:"status"`
	Total  int        `json:"total"`
	Report *runReport `json:"report"`
	Error  *apiError  `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type runReport struct {
	Results []struct {
		Label            string   `json:"label"`
		Status           string   `json:"status"`
		ArticlesScraped  int      `json:"articles_scraped"`
		Error            string   `json:"error"`
		DurationSeconds  float64  `json:"duration_seconds"`
		TranslatedTitles []string `json:"translated_titles"`
		RepeatedWords    []struct {
			Word  string `json:"word"`
			Count int    `json:"count"`
		} `json:"repeated_words"`
	} `json:"results"`
	Summary struct {
		Total           int `json:"total"`
		Passed          int `json:"passed"`
		Partial         int `json:"partial"`
		Failed          int `json:"failed"`
		ArticlesScraped int `json:"articles_scraped"`
	} `json:"summary"`
}

func main() {
	apiURL := os.Getenv("OPINION_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("OPINION_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "OPINION_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"opinionprobe",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	startTool := mcp.NewTool("start_probe_run",
		mcp.WithDescription("Scrape the El País opinion section on every configured browser/device and report how many articles each configuration extracted, the translated headlines and repeated words."),
		mcp.WithArray("labels",
			mcp.Description("Optional subset of configuration labels to run, e.g. 'Chrome Windows 10'. Default: all."),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Wait for the run to finish and return the report (default: true). When false, only the run ID is returned."),
		),
	)
	s.AddTool(startTool, handleStartRun(apiURL, apiKey))

	getTool := mcp.NewTool("get_probe_run",
		mcp.WithDescription("Fetch the status and report of a run started with start_probe_run."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The run ID"),
		),
	)
	s.AddTool(getTool, handleGetRun(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// apiGet sends a GET request to the API and returns the response body.
func apiGet(ctx context.Context, client *http.Client, apiURL, apiKey, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollRun polls the run endpoint until status is no longer "processing" or ctx is cancelled.
func pollRun(ctx context.Context, client *http.Client, apiURL, apiKey, id string) ([]byte, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			body, err := apiGet(ctx, client, apiURL, apiKey, "/api/v1/runs/"+id)
			if err != nil {
				return nil, err
			}

			var status struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}
			if status.Status != "processing" {
				return body, nil
			}
		}
	}
}

func handleStartRun(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload := map[string]any{}
		if labels, err := request.RequireStringSlice("labels"); err == nil && len(labels) > 0 {
			payload["labels"] = labels
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/runs", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run request failed: %v", err)), nil
		}

		var runResp runResponse
		if err := json.Unmarshal(respBody, &runResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse run response: %v", err)), nil
		}
		if runResp.Error != nil {
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", runResp.Error.Code, runResp.Error.Message)), nil
		}
		if runResp.ID == "" {
			return mcp.NewToolResultError("run creation failed"), nil
		}

		if !request.GetBool("wait", true) {
			return mcp.NewToolResultText(fmt.Sprintf("Run %s started with %d configurations.", runResp.ID, runResp.Total)), nil
		}

		resultBody, err := pollRun(ctx, client, apiURL, apiKey, runResp.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling run failed: %v", err)), nil
		}
		return formatStatus(resultBody)
	}
}

func handleGetRun(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}

		body, err := apiGet(ctx, client, apiURL, apiKey, "/api/v1/runs/"+id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("status request failed: %v", err)), nil
		}
		return formatStatus(body)
	}
}

func formatStatus(body []byte) (*mcp.CallToolResult, error) {
	var st runStatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse run status: %v", err)), nil
	}
	if st.Error != nil {
		return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", st.Error.Code, st.Error.Message)), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run %s: %s (%d configurations)\n", st.ID, st.Status, st.Total))
	if st.Report == nil {
		return mcp.NewToolResultText(sb.String()), nil
	}

	sm := st.Report.Summary
	sb.WriteString(fmt.Sprintf("Passed: %d  Partial: %d  Failed: %d  Articles: %d\n\n",
		sm.Passed, sm.Partial, sm.Failed, sm.ArticlesScraped))

	for _, r := range st.Report.Results {
		sb.WriteString(fmt.Sprintf("--- %s: %s (%d articles, %.2fs) ---\n", r.Label, r.Status, r.ArticlesScraped, r.DurationSeconds))
		if r.Error != "" {
			sb.WriteString("Error: " + r.Error + "\n")
		}
		for i, t := range r.TranslatedTitles {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, t))
		}
		if len(r.RepeatedWords) > 0 {
			words := make([]string, len(r.RepeatedWords))
			for i, w := range r.RepeatedWords {
				words[i] = fmt.Sprintf("%s (%d)", w.Word, w.Count)
			}
			sb.WriteString("Repeated: " + strings.Join(words, ", ") + "\n")
		}
		sb.WriteString("\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}
