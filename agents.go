package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// approvalToken is the exact editor reply that approves a draft
const approvalToken = "APPROVED"

const defaultExcerptChars = 1000

var errNoArticles = errors.New("no articles supplied")

// researchUpdate is the part of WorkflowState written by the researcher
type researchUpdate struct {
	Draft          *SynthesizedStory
	IterationCount int
}

// reviewUpdate is the part of WorkflowState written by the editor.
// Feedback is empty when the draft was approved.
type reviewUpdate struct {
	IsApproved bool
	Feedback   string
}

// Researcher drafts a digest from raw articles
type Researcher struct {
	backend      GenerationBackend
	systemPrompt string
	schema       string
	excerptChars int
	logger       *slog.Logger
}

// NewResearcher creates a researcher agent. excerptChars bounds how much of
// each article body goes into the prompt.
func NewResearcher(backend GenerationBackend, prompts *Prompts, excerptChars int, logger *slog.Logger) *Researcher {
	if excerptChars <= 0 {
		excerptChars = defaultExcerptChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Researcher{
		backend:      backend,
		systemPrompt: prompts.ResearcherSystem,
		schema:       prompts.DigestSchema,
		excerptChars: excerptChars,
		logger:       logger,
	}
}

// Research produces a new draft from the articles, addressing feedback when it
// is non-empty, and advances the iteration count by one.
func (r *Researcher) Research(ctx context.Context, articles []RawArticle, feedback string, iterationCount int) (researchUpdate, error) {
	if len(articles) == 0 {
		return researchUpdate{}, newWorkflowError(InputError, AwaitingResearch, errNoArticles)
	}

	r.logger.Info("→ Researching...", "articles", len(articles), "iteration", iterationCount+1, "revision", feedback != "")
	userPrompt := buildResearchPrompt(articles, feedback, r.excerptChars)

	raw, err := r.backend.GenerateStructured(ctx, r.systemPrompt, userPrompt, r.schema)
	if err != nil {
		return researchUpdate{}, newWorkflowError(GenerationError, AwaitingResearch, fmt.Errorf("researcher agent failed: %w", err))
	}

	story, err := parseStory(raw, articles)
	if err != nil {
		return researchUpdate{}, newWorkflowError(ValidationError, AwaitingResearch, err)
	}

	r.logger.Info("✓ Draft ready", "title", story.Title, "sources", story.SourceArticleIDs)
	return researchUpdate{Draft: story, IterationCount: iterationCount + 1}, nil
}

// buildResearchPrompt formats the article contexts and optional feedback
func buildResearchPrompt(articles []RawArticle, feedback string, excerptChars int) string {
	var sb strings.Builder
	sb.WriteString("Here are the articles:\n")
	for _, article := range articles {
		writeArticleContext(&sb, article, excerptChars)
	}
	if feedback != "" {
		sb.WriteString("\nEDITOR FEEDBACK TO ADDRESS: ")
		sb.WriteString(feedback)
	}
	return sb.String()
}

func writeArticleContext(sb *strings.Builder, article RawArticle, excerptChars int) {
	fmt.Fprintf(sb, "ID: %s\nTitle: %s\nContent: %s\n\n", article.ID, article.Title, limitExcerpt(article.Content, excerptChars))
}

// limitExcerpt truncates content to maxChars runes, marking the cut with "..."
func limitExcerpt(content string, maxChars int) string {
	runes := []rune(content)
	if len(runes) <= maxChars {
		return content
	}
	return string(runes[:maxChars]) + "..."
}

// parseStory decodes a structured researcher response. Anything short of a
// complete story citing known articles is rejected.
func parseStory(raw string, articles []RawArticle) (*SynthesizedStory, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(raw))))
	dec.DisallowUnknownFields()

	var story SynthesizedStory
	if err := dec.Decode(&story); err != nil {
		return nil, fmt.Errorf("parsing researcher structured response: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("parsing researcher structured response: trailing data after story")
	}

	story.Title = strings.TrimSpace(story.Title)
	story.Summary = strings.TrimSpace(story.Summary)
	if story.Title == "" {
		return nil, fmt.Errorf("story title is empty")
	}
	if story.Summary == "" {
		return nil, fmt.Errorf("story summary is empty")
	}
	if len(story.SourceArticleIDs) == 0 {
		return nil, fmt.Errorf("story cites no source articles")
	}

	known := make(map[string]bool, len(articles))
	for _, article := range articles {
		known[article.ID] = true
	}
	seen := make(map[string]bool, len(story.SourceArticleIDs))
	ids := make([]string, 0, len(story.SourceArticleIDs))
	for _, id := range story.SourceArticleIDs {
		id = strings.TrimSpace(id)
		if !known[id] {
			return nil, fmt.Errorf("story cites unknown article id %q", id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	story.SourceArticleIDs = ids

	return &story, nil
}

// Editor reviews drafts and either approves them or returns feedback
type Editor struct {
	backend      GenerationBackend
	systemPrompt string
	excerptChars int
	logger       *slog.Logger
}

// NewEditor creates an editor agent
func NewEditor(backend GenerationBackend, prompts *Prompts, excerptChars int, logger *slog.Logger) *Editor {
	if excerptChars <= 0 {
		excerptChars = defaultExcerptChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{
		backend:      backend,
		systemPrompt: prompts.EditorSystem,
		excerptChars: excerptChars,
		logger:       logger,
	}
}

// Review asks the editor model to judge draft against the articles it cites
func (e *Editor) Review(ctx context.Context, draft *SynthesizedStory, articles []RawArticle) (reviewUpdate, error) {
	if draft == nil {
		return reviewUpdate{}, newWorkflowError(PreconditionError, AwaitingReview, errors.New("editor invoked without a draft"))
	}

	e.logger.Info("→ Reviewing draft...", "title", draft.Title)
	userPrompt := buildReviewPrompt(draft, articles, e.excerptChars)

	response, err := e.backend.GenerateText(ctx, e.systemPrompt, userPrompt)
	if err != nil {
		return reviewUpdate{}, newWorkflowError(GenerationError, AwaitingReview, fmt.Errorf("editor agent failed: %w", err))
	}

	update, err := parseEditorResponse(response)
	if err != nil {
		return reviewUpdate{}, newWorkflowError(GenerationError, AwaitingReview, err)
	}

	if update.IsApproved {
		e.logger.Info("✓ Draft approved")
	} else {
		e.logger.Info("✗ Revision needed", "feedback", update.Feedback)
	}
	return update, nil
}

// buildReviewPrompt presents the draft followed by the articles it cites
func buildReviewPrompt(draft *SynthesizedStory, articles []RawArticle, excerptChars int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "DRAFT TITLE: %s\n\nDRAFT SUMMARY:\n%s\n\n", draft.Title, draft.Summary)

	cited := make(map[string]bool, len(draft.SourceArticleIDs))
	for _, id := range draft.SourceArticleIDs {
		cited[id] = true
	}
	if len(cited) > 0 {
		sb.WriteString("CITED SOURCE ARTICLES:\n")
		for _, article := range articles {
			if cited[article.ID] {
				writeArticleContext(&sb, article, excerptChars)
			}
		}
	}

	sb.WriteString("Do you approve?")
	return sb.String()
}

// parseEditorResponse maps the editor's reply to a decision. Only the
// approval token itself (any case) approves; anything else is feedback.
func parseEditorResponse(response string) (reviewUpdate, error) {
	text := strings.TrimSpace(response)
	if text == "" {
		return reviewUpdate{}, errors.New("editor returned an empty response")
	}
	if strings.EqualFold(text, approvalToken) {
		return reviewUpdate{IsApproved: true}, nil
	}
	return reviewUpdate{IsApproved: false, Feedback: text}, nil
}
