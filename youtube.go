package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Global rate limiter for transcript API calls
var (
	youtubeMutex     sync.Mutex
	lastYouTubeCall  time.Time
	youtubeCallDelay = 2 * time.Second // Minimum delay between API calls
)

var transcriptCacheDir = filepath.Join(".cache", "youtube")

// GetTranscript fetches a YouTube transcript, using a local cache if available.
func GetTranscript(videoURL string, settings YouTubeSettings) (string, error) {
	videoID, err := extractVideoID(videoURL)
	if err != nil {
		return "", fmt.Errorf("extracting video ID: %w", err)
	}

	cachePath := filepath.Join(transcriptCacheDir, videoID)
	if content, err := os.ReadFile(cachePath); err == nil {
		return string(content), nil
	}

	retries := settings.Retries
	if retries < 1 {
		retries = 1
	}
	transcript, err := fetchTranscriptWithRetries(videoID, settings, retries)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		slog.Warn("could not create transcript cache", "error", err)
		return transcript, nil
	}
	if err := os.WriteFile(cachePath, []byte(transcript), 0644); err != nil {
		slog.Warn("could not cache transcript", "video", videoID, "error", err)
	}

	return transcript, nil
}

func extractVideoID(videoURL string) (string, error) {
	parsedURL, err := url.Parse(videoURL)
	if err != nil {
		return "", err
	}

	// Validate YouTube domain
	if !strings.Contains(parsedURL.Host, "youtube.com") && !strings.Contains(parsedURL.Host, "youtu.be") {
		return "", fmt.Errorf("not a YouTube URL")
	}

	// Handle youtu.be URLs
	if strings.Contains(parsedURL.Host, "youtu.be") {
		videoID := strings.TrimPrefix(parsedURL.Path, "/")
		if videoID == "" {
			return "", fmt.Errorf("no video ID found in URL")
		}
		return videoID, nil
	}

	// Handle youtube.com URLs
	videoID := parsedURL.Query().Get("v")
	if videoID == "" {
		return "", fmt.Errorf("no video ID found in URL")
	}
	return videoID, nil
}

func fetchTranscriptWithRetries(videoID string, settings YouTubeSettings, retries int) (string, error) {
	var lastErr error
	for i := 0; i < retries; i++ {
		transcript, err := fetchTranscript(videoID, settings)
		if err == nil {
			return transcript, nil
		}
		lastErr = err

		httpErr, ok := err.(*HTTPError)
		if !ok || httpErr.StatusCode != http.StatusTooManyRequests {
			return "", err
		}

		if i < retries-1 {
			backoff := time.Duration(1<<uint(i)) * time.Second
			slog.Debug("transcript API rate limited, backing off", "video", videoID, "backoff", backoff)
			time.Sleep(backoff)
		}
	}
	return "", fmt.Errorf("exceeded max retries after %d attempts: %w", retries, lastErr)
}

func fetchTranscript(videoID string, settings YouTubeSettings) (string, error) {
	// Rate limit transcript API calls
	youtubeMutex.Lock()
	timeSinceLastCall := time.Since(lastYouTubeCall)
	if timeSinceLastCall < youtubeCallDelay {
		time.Sleep(youtubeCallDelay - timeSinceLastCall)
	}
	lastYouTubeCall = time.Now()
	youtubeMutex.Unlock()

	videoURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)

	req, err := http.NewRequest(http.MethodGet, settings.TranscriptAPIURL, nil)
	if err != nil {
		return "", err
	}

	q := req.URL.Query()
	q.Add("url", videoURL)
	q.Add("api_key", settings.TranscriptAPIKey)
	q.Add("text", "true")
	req.URL.RawQuery = q.Encode()

	client := &http.Client{
		Timeout: 30 * time.Second,
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	slog.Debug("transcript API response", "status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{StatusCode: resp.StatusCode, URL: videoURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return string(body), nil
}
