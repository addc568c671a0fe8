package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultNewsQuery = "Artificial Intelligence"
	defaultNewsLimit = 5
	maxNewsLimit     = 100
)

// NewsAPIQuery is a search entry of a sources file
type NewsAPIQuery struct {
	Query string `yaml:"query"`
	Limit int    `yaml:"limit,omitempty"`
}

type newsAPISource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type newsAPIArticle struct {
	Source      newsAPISource `json:"source"`
	Title       string        `json:"title"`
	URL         string        `json:"url"`
	PublishedAt string        `json:"publishedAt"`
}

type newsAPIResponse struct {
	Status       string           `json:"status"`
	Code         string           `json:"code"`
	Message      string           `json:"message"`
	TotalResults int              `json:"totalResults"`
	Articles     []newsAPIArticle `json:"articles"`
}

// NewsAPIClient searches the NewsAPI "everything" endpoint for articles
type NewsAPIClient struct {
	settings NewsAPISettings
	client   *http.Client
}

// NewNewsAPIClient creates a search client. The API key falls back to
// NEWS_API_KEY and is only required once a search runs.
func NewNewsAPIClient(settings NewsAPISettings) *NewsAPIClient {
	if settings.APIKey == "" {
		settings.APIKey = os.Getenv("NEWS_API_KEY")
	}
	return &NewsAPIClient{
		settings: settings,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Search returns the articles matching query as URL source items. Removed
// articles and results without a URL are dropped.
func (c *NewsAPIClient) Search(ctx context.Context, query string, limit int) ([]SourceItem, error) {
	if c.settings.APIKey == "" {
		return nil, fmt.Errorf("NewsAPI key missing: set newsapi.api_key or NEWS_API_KEY")
	}
	if strings.TrimSpace(query) == "" {
		query = defaultNewsQuery
	}
	if limit <= 0 {
		limit = defaultNewsLimit
	}
	if limit > maxNewsLimit {
		limit = maxNewsLimit
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.settings.BaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building NewsAPI request: %w", err)
	}
	q := req.URL.Query()
	q.Set("q", query)
	q.Set("language", c.settings.Language)
	q.Set("pageSize", strconv.Itoa(limit))
	req.URL.RawQuery = q.Encode()
	// Key goes in a header so it stays out of logged URLs
	req.Header.Set("X-Api-Key", c.settings.APIKey)

	slog.Info("→ Searching news", "query", query, "limit", limit)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching NewsAPI: %w", err)
	}
	defer resp.Body.Close()

	var body newsAPIResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusOK {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, URL: c.settings.BaseURL}
		if decodeErr == nil && body.Message != "" {
			return nil, fmt.Errorf("NewsAPI %s: %s: %w", body.Code, body.Message, httpErr)
		}
		return nil, httpErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decoding NewsAPI response: %w", decodeErr)
	}
	if body.Status != "ok" {
		return nil, fmt.Errorf("NewsAPI %s: %s", body.Code, body.Message)
	}

	seen := make(map[string]bool, len(body.Articles))
	items := make([]SourceItem, 0, len(body.Articles))
	for _, article := range body.Articles {
		url := strings.TrimSpace(article.URL)
		if article.Title == "[Removed]" || url == "" || seen[url] {
			continue
		}
		seen[url] = true
		items = append(items, SourceItem{URL: url, Title: strings.TrimSpace(article.Title)})
	}

	slog.Info("✓ News search done", "query", query, "results", len(body.Articles), "kept", len(items))
	return items, nil
}
