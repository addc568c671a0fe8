package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"
)

// SourceItem is one entry of a sources file: either a URL to fetch or an
// inline article.
type SourceItem struct {
	URL     string `yaml:"url,omitempty"`
	ID      string `yaml:"id,omitempty"`
	Title   string `yaml:"title,omitempty"`
	Content string `yaml:"content,omitempty"`
}

// SourcesFile is the YAML document listing the articles of one digest.
// A newsapi entry adds the results of a news search to the listed items.
type SourcesFile struct {
	NewsAPI *NewsAPIQuery `yaml:"newsapi,omitempty"`
	Items   []SourceItem  `yaml:"items"`
}

// Digest is the data rendered into a digest file
type Digest struct {
	Title            string
	Summary          string
	CreatedAt        time.Time
	Approved         bool
	Forced           bool
	Iterations       int
	ResearcherModel  string
	EditorModel      string
	ArticleIDs       []string
	SourceArticleIDs []string
	SourceURLs       []string
}

// DigestProcessor handles the main workflow: load sources, fetch articles,
// run the researcher/editor loop and save the digest.
type DigestProcessor struct {
	workflow  *Workflow
	fetcher   *ContentFetcher
	newsAPI   *NewsAPIClient
	settings  *Settings
	template  string
	overwrite bool
	logger    *slog.Logger
}

// NewDigestProcessor creates a new processor with configured agents
func NewDigestProcessor(apiKey string, overrides *ConfigOverrides, logger *slog.Logger) (*DigestProcessor, error) {
	if err := ensureConfigExists(defaultConfigDir); err != nil {
		return nil, fmt.Errorf("ensuring config files exist: %w", err)
	}

	settings, err := LoadSettings(overrides)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	prompts, err := LoadPrompts(overrides)
	if err != nil {
		return nil, fmt.Errorf("loading prompts: %w", err)
	}

	tmpl, err := LoadTemplate(overrides)
	if err != nil {
		return nil, fmt.Errorf("loading template: %w", err)
	}

	backends, err := NewBackends(apiKey, settings)
	if err != nil {
		return nil, fmt.Errorf("creating backends: %w", err)
	}

	workflow := NewWorkflow(backends, prompts, settings.ExcerptChars, logger)
	return newDigestProcessor(workflow, NewContentFetcher(settings.YouTube), settings, tmpl, logger), nil
}

func newDigestProcessor(workflow *Workflow, fetcher *ContentFetcher, settings *Settings, tmpl string, logger *slog.Logger) *DigestProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DigestProcessor{
		workflow: workflow,
		fetcher:  fetcher,
		newsAPI:  NewNewsAPIClient(settings.NewsAPI),
		settings: settings,
		template: tmpl,
		logger:   logger,
	}
}

// SetOverwrite sets the overwrite flag
func (dp *DigestProcessor) SetOverwrite(overwrite bool) {
	dp.overwrite = overwrite
}

// Workflow returns the researcher/editor workflow used by the processor
func (dp *DigestProcessor) Workflow() *Workflow {
	return dp.workflow
}

// ProcessSources builds one digest from a sources file path or CSV URL
func (dp *DigestProcessor) ProcessSources(ctx context.Context, source string) ProcessingResult {
	sources, err := dp.loadSources(ctx, source)
	if err != nil {
		return ProcessingResult{Source: source, Status: StatusError, Error: fmt.Errorf("loading sources: %w", err)}
	}

	articles := dp.collectArticles(ctx, sources.Items)
	return dp.ProcessArticles(ctx, source, articles)
}

// ProcessQuery builds one digest from the results of a news search
func (dp *DigestProcessor) ProcessQuery(ctx context.Context, query string, limit int) ProcessingResult {
	source := "newsapi:" + query
	items, err := dp.newsAPI.Search(ctx, query, limit)
	if err != nil {
		return ProcessingResult{Source: source, Status: StatusError, Error: fmt.Errorf("searching news: %w", err)}
	}
	if len(items) == 0 {
		return ProcessingResult{Source: source, Status: StatusError, Error: fmt.Errorf("news search %q returned no articles", query)}
	}

	articles := dp.collectArticles(ctx, items)
	return dp.ProcessArticles(ctx, source, articles)
}

// ProcessArticles runs the workflow on articles and saves the digest
func (dp *DigestProcessor) ProcessArticles(ctx context.Context, source string, articles []RawArticle) ProcessingResult {
	hash := digestHash(articleIDs(articles))

	// Skip if a digest of the same article set already exists and overwrite is false
	if len(articles) > 0 && !dp.overwrite {
		if existing := dp.findExistingDigest(hash); existing != "" {
			dp.logger.Info("Skipping: digest exists", "source", source, "file", existing)
			return ProcessingResult{Source: source, Status: StatusSkipped, Filename: existing}
		}
	}

	result, err := dp.workflow.Run(ctx, articles)
	if err != nil {
		return ProcessingResult{Source: source, Status: StatusError, Error: fmt.Errorf("generating digest: %w", err)}
	}

	digest := dp.newDigest(result, articles)
	filename := dp.generateFilename(digest.Title, hash)

	dp.logger.Info("→ Saving digest", "file", filename)
	if err := dp.saveDigest(filename, digest); err != nil {
		return ProcessingResult{Source: source, Status: StatusError, Result: result, Error: fmt.Errorf("saving digest: %w", err)}
	}
	if dp.settings.RenderHTML {
		if err := saveDigestHTML(strings.TrimSuffix(filename, ".md")+".html", digest); err != nil {
			return ProcessingResult{Source: source, Status: StatusError, Filename: filename, Result: result, Error: fmt.Errorf("saving HTML digest: %w", err)}
		}
	}

	return ProcessingResult{Source: source, Status: StatusSuccess, Filename: filename, Result: result}
}

// newDigest links the workflow result back to the stored articles
func (dp *DigestProcessor) newDigest(result *WorkflowResult, articles []RawArticle) *Digest {
	byID := make(map[string]RawArticle, len(articles))
	for _, article := range articles {
		byID[article.ID] = article
	}

	var urls []string
	for _, id := range result.Story.SourceArticleIDs {
		if article, ok := byID[id]; ok && article.URL != "" {
			urls = append(urls, article.URL)
		}
	}

	return &Digest{
		Title:            result.Story.Title,
		Summary:          result.Story.Summary,
		CreatedAt:        time.Now(),
		Approved:         result.Approved,
		Forced:           result.Forced,
		Iterations:       result.Iterations,
		ResearcherModel:  dp.settings.Agents.Researcher.Model,
		EditorModel:      dp.settings.Agents.Editor.Model,
		ArticleIDs:       articleIDs(articles),
		SourceArticleIDs: result.Story.SourceArticleIDs,
		SourceURLs:       urls,
	}
}

// loadSources loads a YAML sources file or a CSV of URLs over HTTP
func (dp *DigestProcessor) loadSources(ctx context.Context, source string) (*SourcesFile, error) {
	var sources *SourcesFile
	var err error
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		sources, err = loadSourcesFromURL(ctx, source)
	} else {
		sources, err = loadSourcesFromFile(source)
	}
	if err != nil {
		return nil, err
	}
	if err := validateSources(sources, source); err != nil {
		return nil, err
	}

	if sources.NewsAPI != nil {
		found, err := dp.newsAPI.Search(ctx, sources.NewsAPI.Query, sources.NewsAPI.Limit)
		if err != nil {
			return nil, fmt.Errorf("newsapi search: %w", err)
		}
		sources.Items = appendNewItems(sources.Items, found)
		if len(sources.Items) == 0 {
			return nil, fmt.Errorf("%s lists no articles and the news search returned none", source)
		}
	}
	return sources, nil
}

// appendNewItems appends the found items whose URL is not listed yet
func appendNewItems(items, found []SourceItem) []SourceItem {
	listed := make(map[string]bool, len(items))
	for _, item := range items {
		listed[item.URL] = true
	}
	for _, item := range found {
		if !listed[item.URL] {
			listed[item.URL] = true
			items = append(items, item)
		}
	}
	return items
}

// loadSourcesFromFile loads the YAML sources file
func loadSourcesFromFile(path string) (*SourcesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sources SourcesFile
	if err := yaml.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &sources, nil
}

// loadSourcesFromURL loads sources from a CSV URL
func loadSourcesFromURL(ctx context.Context, url string) (*SourcesFile, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching CSV from URL: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching CSV from URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	records, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}

	// Skip header row if it exists (check if first row contains "url" header)
	startIdx := 0
	if len(records) > 0 && len(records[0]) > 0 && strings.ToLower(strings.TrimSpace(records[0][0])) == "url" {
		startIdx = 1
	}

	sources := &SourcesFile{}
	for _, row := range records[startIdx:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue // Skip empty rows
		}
		sources.Items = append(sources.Items, SourceItem{URL: strings.TrimSpace(row[0])})
	}
	return sources, nil
}

// validateSources checks that every item can produce an article
func validateSources(sources *SourcesFile, source string) error {
	if len(sources.Items) == 0 && sources.NewsAPI == nil {
		return fmt.Errorf("%s lists no articles", source)
	}
	if sources.NewsAPI != nil && (sources.NewsAPI.Limit < 0 || sources.NewsAPI.Limit > maxNewsLimit) {
		return fmt.Errorf("newsapi limit %d out of range (1-%d)", sources.NewsAPI.Limit, maxNewsLimit)
	}
	for i, item := range sources.Items {
		url := strings.TrimSpace(item.URL)
		if url == "" && strings.TrimSpace(item.Content) == "" {
			return fmt.Errorf("item %d has neither url nor content", i+1)
		}
		if url != "" && !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return fmt.Errorf("item %d has invalid URL %q (must start with http:// or https://)", i+1, url)
		}
	}
	return nil
}

// collectArticles turns source items into articles, fetching URL items.
// Items that cannot be fetched or carry no content are skipped.
func (dp *DigestProcessor) collectArticles(ctx context.Context, items []SourceItem) []RawArticle {
	articles := make([]RawArticle, 0, len(items))
	for i, item := range items {
		article, err := dp.articleFromItem(ctx, item)
		if err != nil {
			dp.logger.Warn("✗ Skipping source", "item", i+1, "url", item.URL, "error", err)
			continue
		}
		if article.Title == "[Removed]" || strings.TrimSpace(article.Content) == "" {
			dp.logger.Warn("✗ Skipping source without content", "item", i+1, "url", item.URL)
			continue
		}
		dp.logger.Info("✓ Article ready", "id", article.ID, "title", article.Title)
		articles = append(articles, *article)
	}
	return articles
}

func (dp *DigestProcessor) articleFromItem(ctx context.Context, item SourceItem) (*RawArticle, error) {
	if strings.TrimSpace(item.Content) == "" {
		dp.logger.Info("→ Fetching", "url", item.URL)
		article, err := dp.fetcher.FetchArticle(ctx, item.URL)
		if err != nil {
			return nil, err
		}
		if item.ID != "" {
			article.ID = item.ID
		}
		if item.Title != "" {
			article.Title = item.Title
		}
		return article, nil
	}

	article := &RawArticle{
		ID:      item.ID,
		Title:   item.Title,
		Content: strings.TrimSpace(item.Content),
		URL:     item.URL,
	}
	if article.ID == "" {
		if item.URL != "" {
			article.ID = articleIDForURL(item.URL)
		} else {
			article.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(item.Title+"\n"+item.Content)).String()
		}
	}
	if article.Title == "" {
		article.Title = extractTitle(article.Content)
	}
	return article, nil
}

func articleIDs(articles []RawArticle) []string {
	ids := make([]string, 0, len(articles))
	for _, article := range articles {
		ids = append(ids, article.ID)
	}
	return ids
}

// digestHash identifies an article set independent of order
func digestHash(ids []string) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	h := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return fmt.Sprintf("%x", h)[:8]
}

// generateFilename creates a YYYY/MM/<slug>-<hash>.md path in the output directory
func (dp *DigestProcessor) generateFilename(title, hash string) string {
	now := time.Now()
	slug := generateSlug(title)
	if slug == "" {
		slug = "digest"
	}
	return filepath.Join(dp.settings.OutputDirectory, now.Format("2006"), now.Format("01"), fmt.Sprintf("%s-%s.md", slug, hash))
}

// findExistingDigest looks for a digest file with the given hash in the output directory
func (dp *DigestProcessor) findExistingDigest(hash string) string {
	var found string
	suffix := "-" + hash + ".md"
	filepath.WalkDir(dp.settings.OutputDirectory, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Continue on errors
		}
		if !d.IsDir() && strings.HasSuffix(path, suffix) {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

// saveDigest saves the digest to a markdown file using the template
func (dp *DigestProcessor) saveDigest(filename string, digest *Digest) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}

	tmpl, err := template.New("digest").Parse(dp.template)
	if err != nil {
		return fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, digest); err != nil {
		return fmt.Errorf("executing template: %w", err)
	}

	return os.WriteFile(filename, buf.Bytes(), 0644)
}

// saveDigestHTML renders the digest summary to a standalone HTML page
func saveDigestHTML(filename string, digest *Digest) error {
	body, err := renderMarkdown(digest.Summary)
	if err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}

	title := html.EscapeString(digest.Title)
	page := fmt.Sprintf("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n<h1>%s</h1>\n%s</body>\n</html>\n", title, title, body)
	return os.WriteFile(filename, []byte(page), 0644)
}

func renderMarkdown(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var (
	slugInvalidRegex = regexp.MustCompile(`[^a-z0-9]+`)
	slugDashRegex    = regexp.MustCompile(`-+`)
)

// generateSlug creates a URL slug from a digest title
func generateSlug(title string) string {
	slug := strings.ToLower(title)
	slug = slugInvalidRegex.ReplaceAllString(slug, "-")
	slug = slugDashRegex.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	// Limit length to avoid filesystem issues
	if len(slug) > 50 {
		slug = slug[:50]
		slug = strings.Trim(slug, "-")
	}

	return slug
}

// addURLToSources adds a URL to the YAML sources file, creating it if needed
func addURLToSources(sourcesPath, url string) error {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("invalid URL format: %s (must start with http:// or https://)", url)
	}

	sources := &SourcesFile{Items: []SourceItem{}}
	if _, err := os.Stat(sourcesPath); err == nil {
		loaded, err := loadSourcesFromFile(sourcesPath)
		if err != nil {
			return fmt.Errorf("reading sources file: %w", err)
		}
		sources = loaded
	}

	for _, item := range sources.Items {
		if item.URL == url {
			return fmt.Errorf("URL already exists in sources: %s", url)
		}
	}
	sources.Items = append(sources.Items, SourceItem{URL: url})

	data, err := yaml.Marshal(sources)
	if err != nil {
		return fmt.Errorf("marshaling sources: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(sourcesPath), 0755); err != nil {
		return fmt.Errorf("creating sources directory: %w", err)
	}
	if err := os.WriteFile(sourcesPath, data, 0644); err != nil {
		return fmt.Errorf("writing sources file: %w", err)
	}

	return nil
}

// writeDefaultSources writes the example sources file unless it exists
func writeDefaultSources(sourcesPath string) error {
	if _, err := os.Stat(sourcesPath); err == nil {
		return fmt.Errorf("%s already exists", sourcesPath)
	}
	return os.WriteFile(sourcesPath, []byte(defaultSourcesYAML), 0644)
}
