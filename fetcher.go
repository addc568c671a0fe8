package main

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/google/uuid"
)

// ContentResult represents the result of fetching content
type ContentResult struct {
	Title string // Title found in the content, if any
	Text  string // Markdown text content
}

// ContentFetcher handles fetching and processing content from URLs
type ContentFetcher struct {
	handlers []ContentHandler
	client   *http.Client
}

// NewContentFetcher creates a new content fetcher with default handlers
func NewContentFetcher(youtube YouTubeSettings) *ContentFetcher {
	f := &ContentFetcher{
		client: &http.Client{Timeout: 30 * time.Second},
	}

	// Register handlers (most specific first)
	f.AddHandler(&YouTubeHandler{settings: youtube})
	f.AddHandler(&HTMLHandler{converter: md.NewConverter("", true, nil)}) // fallback

	return f
}

// AddHandler adds a content handler to the chain
func (f *ContentFetcher) AddHandler(handler ContentHandler) {
	f.handlers = append(f.handlers, handler)
}

// FetchContent fetches and processes content using handler chain
func (f *ContentFetcher) FetchContent(ctx context.Context, url string) (*ContentResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	// Find handler based on URL + response headers
	for _, handler := range f.handlers {
		if handler.CanHandle(url, resp) {
			return handler.Handle(url, resp)
		}
	}

	return nil, fmt.Errorf("no handler found for %s", url)
}

// FetchArticle fetches url and turns it into a RawArticle. The id is a
// name-based UUID of the URL, so refetching a URL yields the same id.
func (f *ContentFetcher) FetchArticle(ctx context.Context, url string) (*RawArticle, error) {
	content, err := f.FetchContent(ctx, url)
	if err != nil {
		return nil, err
	}

	title := content.Title
	if title == "" {
		title = extractTitle(content.Text)
	}
	if title == "" {
		title = extractDomain(url)
	}

	return &RawArticle{
		ID:      articleIDForURL(url),
		Title:   title,
		Content: strings.TrimSpace(content.Text),
		URL:     url,
	}, nil
}

// articleIDForURL returns the stable article id for a URL
func articleIDForURL(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}

var headingRegex = regexp.MustCompile(`(?m)^\s*#\s+(.+?)\s*$`)

// extractTitle returns the first level-one markdown heading
func extractTitle(content string) string {
	matches := headingRegex.FindStringSubmatch(content)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

var domainRegex = regexp.MustCompile(`https?://(?:www\.)?([^/]+)`)

// extractDomain extracts the domain name from a URL
func extractDomain(url string) string {
	matches := domainRegex.FindStringSubmatch(url)
	if len(matches) >= 2 {
		return matches[1]
	}
	return url
}
