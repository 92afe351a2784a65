package ideas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abelbrown/momentum/internal/logging"
)

const defaultAPIURL = "https://api.anthropic.com/v1/messages"

// ClaudeGenerator generates content suggestions via Anthropic's Claude
type ClaudeGenerator struct {
	apiKey string
	model  string
	apiURL string
	client *http.Client
}

// NewClaudeGenerator creates a new Claude generator
func NewClaudeGenerator(apiKey, model string) *ClaudeGenerator {
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	return &ClaudeGenerator{
		apiKey: apiKey,
		model:  model,
		apiURL: defaultAPIURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// SetAPIURL overrides the API endpoint. Used by tests.
func (c *ClaudeGenerator) SetAPIURL(url string) {
	c.apiURL = url
}

func (c *ClaudeGenerator) Name() string {
	return "claude"
}

func (c *ClaudeGenerator) Available() bool {
	return c.apiKey != ""
}

const systemPrompt = `You are a content strategist for a short-form video creator.
Given a trending topic, respond with ONLY a JSON object, no other text:
{"title": "...", "opening_line": "...", "steps": ["...", "..."], "tags": ["#..."]}
Title is a punchy video concept. Steps are 2-4 concrete production steps.
Keep everything filmable on a phone within an hour.`

func (c *ClaudeGenerator) Suggest(ctx context.Context, topic, summary string) (Suggestion, error) {
	if !c.Available() {
		return Suggestion{}, fmt.Errorf("claude generator not configured")
	}

	logging.Debug("Claude suggestion request starting", "model", c.model, "topic", topic)

	prompt := fmt.Sprintf("Trending now: %s", topic)
	if summary != "" {
		prompt += fmt.Sprintf("\nContext: %s", summary)
	}

	body := map[string]interface{}{
		"model":      c.model,
		"max_tokens": 1024,
		"system":     systemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Suggestion{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(jsonBody))
	if err != nil {
		return Suggestion{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Suggestion{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Suggestion{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logging.Error("Claude API error", "status", resp.StatusCode, "body", string(respBody))
		return Suggestion{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content"`
		Model      string `json:"model"`
		StopReason string `json:"stop_reason"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		return Suggestion{}, fmt.Errorf("failed to parse response: %w", err)
	}

	var text string
	for _, block := range result.Content {
		if block.Type == "text" && block.Text != "" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return Suggestion{}, fmt.Errorf("empty response from model")
	}

	suggestion, err := extractSuggestion(text)
	if err != nil {
		logging.Warn("Claude response was not valid suggestion JSON", "error", err, "text", text)
		return Suggestion{}, err
	}

	logging.Debug("Claude suggestion parsed", "model", result.Model, "title", suggestion.Title)
	return suggestion, nil
}

// extractSuggestion pulls the JSON object out of the model's text, tolerating
// surrounding prose or markdown fences.
func extractSuggestion(text string) (Suggestion, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Suggestion{}, fmt.Errorf("no JSON object in response")
	}

	var s Suggestion
	if err := json.Unmarshal([]byte(text[start:end+1]), &s); err != nil {
		return Suggestion{}, fmt.Errorf("unmarshal suggestion: %w", err)
	}
	if s.Title == "" {
		return Suggestion{}, fmt.Errorf("suggestion missing title")
	}
	return s, nil
}
