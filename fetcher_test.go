package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// Mock handler for testing
type mockHandler struct {
	canHandleResult bool
	handleResult    *ContentResult
	handleError     error
}

func (m *mockHandler) CanHandle(url string, resp *http.Response) bool {
	return m.canHandleResult
}

func (m *mockHandler) Handle(url string, resp *http.Response) (*ContentResult, error) {
	return m.handleResult, m.handleError
}

func TestNewContentFetcher(t *testing.T) {
	fetcher := NewContentFetcher(YouTubeSettings{})

	if fetcher.client == nil {
		t.Error("NewContentFetcher() did not initialize HTTP client")
	}

	if len(fetcher.handlers) != 2 {
		t.Fatalf("NewContentFetcher() registered %d handlers, want 2", len(fetcher.handlers))
	}
	if _, ok := fetcher.handlers[0].(*YouTubeHandler); !ok {
		t.Errorf("first handler = %T, want *YouTubeHandler", fetcher.handlers[0])
	}
	if _, ok := fetcher.handlers[1].(*HTMLHandler); !ok {
		t.Errorf("fallback handler = %T, want *HTMLHandler", fetcher.handlers[1])
	}
}

func TestAddHandler(t *testing.T) {
	fetcher := &ContentFetcher{}

	mockH := &mockHandler{canHandleResult: true}
	fetcher.AddHandler(mockH)

	if len(fetcher.handlers) != 1 || fetcher.handlers[0] != mockH {
		t.Error("AddHandler() did not add handler to the end of the chain")
	}
}

func TestFetchContentHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := &ContentFetcher{client: server.Client()}

	result, err := fetcher.FetchContent(context.Background(), server.URL)
	if result != nil {
		t.Error("FetchContent() should return nil result on HTTP error")
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("FetchContent() error = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("HTTPError.StatusCode = %d, want %d", httpErr.StatusCode, http.StatusNotFound)
	}
	if httpErr.URL != server.URL {
		t.Errorf("HTTPError.URL = %q, want %q", httpErr.URL, server.URL)
	}
}

func TestFetchContentHandlerChain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<h1>Test HTML</h1>"))
	}))
	defer server.Close()

	fetcher := &ContentFetcher{
		client: server.Client(),
		handlers: []ContentHandler{
			&mockHandler{canHandleResult: false},
			&mockHandler{canHandleResult: true, handleResult: &ContentResult{Text: "handler2 result"}},
			&mockHandler{canHandleResult: true, handleResult: &ContentResult{Text: "handler3 result"}},
		},
	}

	result, err := fetcher.FetchContent(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchContent() error = %v", err)
	}
	if result.Text != "handler2 result" {
		t.Errorf("FetchContent() used the wrong handler, got %q", result.Text)
	}
}

func TestFetchContentNoMatchingHandler(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("some content"))
	}))
	defer server.Close()

	fetcher := &ContentFetcher{
		client:   server.Client(),
		handlers: []ContentHandler{&mockHandler{}, &mockHandler{}},
	}

	result, err := fetcher.FetchContent(context.Background(), server.URL)
	if result != nil {
		t.Error("FetchContent() should return nil when no handler matches")
	}
	if err == nil {
		t.Fatal("FetchContent() should return error when no handler matches")
	}

	expectedMsg := "no handler found for " + server.URL
	if err.Error() != expectedMsg {
		t.Errorf("FetchContent() error = %q, want %q", err.Error(), expectedMsg)
	}
}

func TestFetchContentCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request sent with a canceled context")
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := NewContentFetcher(YouTubeSettings{})
	if _, err := fetcher.FetchContent(ctx, server.URL); !errors.Is(err, context.Canceled) {
		t.Errorf("FetchContent() error = %v, want context.Canceled", err)
	}
}

func TestFetchArticle(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantTitle string
	}{
		{"title from page title", "<html><head><title> Chip report </title></head><body><h1>Chips get smaller</h1><p>Foundries report progress.</p></body></html>", "Chip report"},
		{"title from heading", "<html><body><h1>Chips get smaller</h1><p>Foundries report progress.</p></body></html>", "Chips get smaller"},
		{"title falls back to domain", "<html><body><p>No heading here.</p></body></html>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			fetcher := NewContentFetcher(YouTubeSettings{})
			url := server.URL + "/news/1"

			article, err := fetcher.FetchArticle(context.Background(), url)
			if err != nil {
				t.Fatalf("FetchArticle() error = %v", err)
			}
			if article.ID != articleIDForURL(url) {
				t.Errorf("ID = %q, want %q", article.ID, articleIDForURL(url))
			}
			if article.URL != url {
				t.Errorf("URL = %q, want %q", article.URL, url)
			}
			wantTitle := tt.wantTitle
			if wantTitle == "" {
				wantTitle = extractDomain(url)
			}
			if article.Title != wantTitle {
				t.Errorf("Title = %q, want %q", article.Title, wantTitle)
			}
			if article.Content == "" {
				t.Error("Content is empty")
			}
		})
	}
}

func TestHTMLHandlerKeepsTitleOutOfBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><head><title>Site | Chip report</title></head><body><p>Foundries report progress.</p></body></html>"))
	}))
	defer server.Close()

	result, err := NewContentFetcher(YouTubeSettings{}).FetchContent(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchContent() error = %v", err)
	}
	if result.Title != "Site | Chip report" {
		t.Errorf("Title = %q", result.Title)
	}
	if strings.Contains(result.Text, "Chip report") {
		t.Errorf("page title leaked into the body: %q", result.Text)
	}
	if !strings.Contains(result.Text, "Foundries report progress.") {
		t.Errorf("body text missing: %q", result.Text)
	}
}

func TestArticleIDForURL(t *testing.T) {
	a := articleIDForURL("https://example.com/a")
	b := articleIDForURL("https://example.com/b")

	if a != articleIDForURL("https://example.com/a") {
		t.Error("same URL produced different ids")
	}
	if a == b {
		t.Error("different URLs produced the same id")
	}
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{"first heading", "# Title\nsome content", "Title"},
		{"with spaces", "  # Spaced Title  \n", "Spaced Title"},
		{"multiple headings", "# First\n## Second\n# Third", "First"},
		{"no heading", "just text\nno heading", ""},
		{"empty content", "", ""},
		{"heading with prefix", "text\n# Real Title\nmore", "Real Title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := extractTitle(tt.content); result != tt.expected {
				t.Errorf("extractTitle() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://www.example.com/news/1", "example.com"},
		{"http://news.example.org", "news.example.org"},
		{"not a url", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if result := extractDomain(tt.url); result != tt.expected {
				t.Errorf("extractDomain() = %q, want %q", result, tt.expected)
			}
		})
	}
}
