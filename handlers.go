package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// ContentHandler processes URLs based on response inspection
type ContentHandler interface {
	CanHandle(url string, resp *http.Response) bool
	Handle(url string, resp *http.Response) (*ContentResult, error)
}

// YouTubeHandler handles YouTube videos by fetching their transcript
type YouTubeHandler struct {
	settings YouTubeSettings
}

func (h *YouTubeHandler) CanHandle(url string, resp *http.Response) bool {
	return strings.Contains(url, "youtube.com/watch") ||
		strings.Contains(url, "youtu.be/")
}

func (h *YouTubeHandler) Handle(url string, resp *http.Response) (*ContentResult, error) {
	settings := h.settings
	if settings.TranscriptAPIKey == "" {
		settings.TranscriptAPIKey = os.Getenv("YOUTUBE_TRANSCRIPT_API_KEY")
	}
	if settings.TranscriptAPIURL == "" {
		settings.TranscriptAPIURL = os.Getenv("YOUTUBE_TRANSCRIPT_API_URL")
	}

	if settings.TranscriptAPIKey == "" || settings.TranscriptAPIURL == "" {
		return nil, fmt.Errorf("YouTube API configuration missing: set youtube.transcript_api_key and youtube.transcript_api_url")
	}

	transcript, err := GetTranscript(url, settings)
	if err != nil {
		return nil, fmt.Errorf("fetching YouTube transcript: %w", err)
	}

	return &ContentResult{Text: transcript}, nil
}

// HTMLHandler handles regular HTML content (fallback)
type HTMLHandler struct {
	converter *md.Converter
}

func (h *HTMLHandler) CanHandle(url string, resp *http.Response) bool {
	return true // Always handles as fallback
}

func (h *HTMLHandler) Handle(url string, resp *http.Response) (*ContentResult, error) {
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	// The page title is kept out of the body text
	title := strings.TrimSpace(doc.Find("head title").First().Text())
	doc.Find("head").Remove()

	markdown := h.converter.Convert(doc.Selection)
	slog.Debug("converted HTML to markdown", "url", url, "title", title, "chars", len(markdown))

	return &ContentResult{Title: title, Text: markdown}, nil
}
