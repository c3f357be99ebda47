// Package summarizer produces the optional narrative block for a report by
// calling the Anthropic Messages API. Failures here are never fatal; the
// caller publishes without a narrative instead.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"nstr_report/internal/domain"
)

const apiVersion = "2023-06-01"

// Config holds summarizer configuration.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger.With("component", "summarizer"),
	}
}

// Summarize turns the day's discussions into a short narrative. With no new
// posts there is nothing to narrate and it returns an empty string without
// calling the API.
func (c *Client) Summarize(ctx context.Context, topics []domain.Topic) (string, error) {
	postCount := 0
	for _, t := range topics {
		postCount += len(t.Posts)
	}
	if postCount == 0 {
		return "", nil
	}

	text, err := c.doRequest(ctx, buildPrompt(topics, postCount))
	if err != nil {
		return "", fmt.Errorf("summarize activity: %w", err)
	}

	c.logger.Debug("summary generated", "chars", len(text))
	return text, nil
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) doRequest(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Anthropic-Version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("api error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	for _, block := range out.Content {
		if block.Type == "text" {
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", errors.New("no text content in response")
}

func buildPrompt(topics []domain.Topic, postCount int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are summarizing daily activity from the Bitcoin Network Operations Collective (BNOC) forum - a technical forum for Bitcoin network operators and developers.\n\n")
	fmt.Fprintf(&b, "In the past 24 hours, there were %d new posts across %d topic(s).\n\n", postCount, len(topics))
	fmt.Fprintf(&b, "Here is the full content of the discussions:\n\n%s\n\n", digest(topics))
	b.WriteString("Write a concise but informative summary for Bitcoin developers and network operators. Include:\n")
	b.WriteString("1. Key observations or findings reported\n")
	b.WriteString("2. Any security concerns or attacks discussed\n")
	b.WriteString("3. Notable technical details or data shared\n")
	b.WriteString("4. Action items or recommendations if any\n\n")
	b.WriteString("Keep the summary under 280 characters if there's only 1-2 posts, otherwise keep it under 500 characters. Be direct and technical. Do not use emojis. Do not use markdown formatting.")

	return b.String()
}

// digest renders every topic and its new posts as plain text sections for
// the prompt.
func digest(topics []domain.Topic) string {
	sections := make([]string, 0, len(topics))
	for _, t := range topics {
		var b strings.Builder

		fmt.Fprintf(&b, "## Topic: %s\n", t.Title)
		tags := "none"
		if len(t.Tags) > 0 {
			tags = strings.Join(t.Tags, ", ")
		}
		fmt.Fprintf(&b, "Tags: %s\n", tags)
		fmt.Fprintf(&b, "URL: %s\n", t.URL)

		for _, p := range t.Posts {
			fmt.Fprintf(&b, "\n### Post by %s (%s):\n%s\n",
				p.Author,
				p.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"),
				p.Text,
			)
		}
		sections = append(sections, b.String())
	}
	return strings.Join(sections, "\n---\n\n")
}
