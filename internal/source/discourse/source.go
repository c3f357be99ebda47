// Package discourse fetches recent forum activity from a Discourse site.
package discourse

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"nstr_report/internal/domain"
)

// Config holds Discourse source configuration.
type Config struct {
	BaseURL        string
	Lookback       time.Duration
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Source reads topics bumped within the lookback window, together with the
// posts added in that window.
type Source struct {
	httpClient *http.Client
	baseURL    string
	lookback   time.Duration

	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration

	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

// New creates a new Discourse source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		lookback:       cfg.Lookback,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		sanitizer:      bluemonday.StrictPolicy(),
		logger:         logger.With("source", "discourse"),
	}
}

// FetchTopics returns the topics with activity inside the lookback window,
// most recently bumped first. Malformed records are skipped, not fatal.
func (s *Source) FetchTopics(ctx context.Context) ([]domain.Topic, error) {
	cutoff := time.Now().UTC().Add(-s.lookback)

	var latest LatestResponse
	if err := s.getJSON(ctx, s.baseURL+"/latest.json", &latest); err != nil {
		return nil, fmt.Errorf("fetch latest topics: %w", err)
	}

	users := make(map[int64]string, len(latest.Users))
	for _, u := range latest.Users {
		users[u.ID] = u.Username
	}

	var topics []domain.Topic
	for _, raw := range latest.TopicList.Topics {
		topic, ok := s.transform(raw, users, cutoff)
		if !ok {
			continue
		}

		posts, err := s.fetchPosts(ctx, raw.Slug, raw.ID, cutoff)
		if err != nil {
			s.logger.Warn("fetch posts failed, keeping topic without posts",
				"topic", topic.ID,
				"error", err,
			)
		} else {
			topic.Posts = posts
		}
		topics = append(topics, topic)
	}

	sort.Slice(topics, func(i, j int) bool {
		return topics[i].BumpedAt.After(topics[j].BumpedAt)
	})

	s.logger.Debug("fetched topics",
		"listed", len(latest.TopicList.Topics),
		"recent", len(topics),
	)
	return topics, nil
}

func (s *Source) transform(raw APITopic, users map[int64]string, cutoff time.Time) (domain.Topic, bool) {
	if raw.ID == 0 || raw.Title == "" || raw.Slug == "" {
		s.logger.Warn("skipping malformed topic",
			"id", raw.ID,
			"title", raw.Title,
			"slug", raw.Slug,
		)
		return domain.Topic{}, false
	}

	bumpedAt, err := time.Parse(time.RFC3339, raw.BumpedAt)
	if err != nil {
		s.logger.Warn("failed to parse bumped_at", "topic", raw.ID, "date", raw.BumpedAt)
		return domain.Topic{}, false
	}
	if bumpedAt.Before(cutoff) {
		return domain.Topic{}, false
	}

	createdAt, err := time.Parse(time.RFC3339, raw.CreatedAt)
	if err != nil {
		s.logger.Warn("failed to parse created_at", "topic", raw.ID, "date", raw.CreatedAt)
		return domain.Topic{}, false
	}

	author := "unknown"
	for _, p := range raw.Posters {
		if strings.Contains(p.Description, "Original Poster") {
			if name, ok := users[p.UserID]; ok {
				author = name
			}
			break
		}
	}

	return domain.Topic{
		ID:        fmt.Sprintf("%s/%d", raw.Slug, raw.ID),
		Title:     raw.Title,
		Slug:      raw.Slug,
		Author:    author,
		Tags:      raw.Tags,
		URL:       fmt.Sprintf("%s/t/%s/%d", s.baseURL, raw.Slug, raw.ID),
		CreatedAt: createdAt,
		BumpedAt:  bumpedAt,
	}, true
}

func (s *Source) fetchPosts(ctx context.Context, slug string, id int64, cutoff time.Time) ([]domain.Post, error) {
	url := fmt.Sprintf("%s/t/%s/%d.json", s.baseURL, slug, id)

	var resp TopicResponse
	if err := s.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	var posts []domain.Post
	for _, raw := range resp.PostStream.Posts {
		createdAt, err := time.Parse(time.RFC3339, raw.CreatedAt)
		if err != nil {
			s.logger.Warn("failed to parse post date", "post", raw.ID, "date", raw.CreatedAt)
			continue
		}
		if createdAt.Before(cutoff) {
			continue
		}

		posts = append(posts, domain.Post{
			ID:        raw.ID,
			Author:    raw.Username,
			Text:      s.flatten(raw.Cooked),
			Number:    raw.PostNumber,
			CreatedAt: createdAt,
		})
	}
	return posts, nil
}

var (
	imgAltPattern = regexp.MustCompile(`<img[^>]*alt="([^"]*)"[^>]*>`)
	blockEnd      = regexp.MustCompile(`(?i)</(?:p|div|li|ul|ol|h[1-6]|blockquote|pre|tr)>|<br\s*/?>`)
)

// flatten turns Discourse "cooked" HTML into plain text: image alt text is
// kept in brackets, block boundaries become spaces, every other tag is
// dropped and entities are unescaped.
func (s *Source) flatten(cooked string) string {
	text := imgAltPattern.ReplaceAllString(cooked, "[$1]")
	text = blockEnd.ReplaceAllString(text, " ")
	text = s.sanitizer.Sanitize(text)
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}

func (s *Source) getJSON(ctx context.Context, url string, out any) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.doRequest(ctx, url, out)
		if err == nil {
			return nil
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"url", url,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
}

func (s *Source) doRequest(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "nstr-report/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}
