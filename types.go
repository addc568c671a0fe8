package main

// RawArticle is a single source article handed to the digest workflow
type RawArticle struct {
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
}

// SynthesizedStory is the digest produced by the researcher agent
type SynthesizedStory struct {
	Title            string   `json:"title"`
	Summary          string   `json:"summary"`
	SourceArticleIDs []string `json:"source_article_ids"`
}

// Round records the outcome of one researcher/editor exchange
type Round struct {
	Iteration  int    `json:"iteration"`
	DraftTitle string `json:"draft_title"`
	Approved   bool   `json:"approved"`
	Feedback   string `json:"feedback,omitempty"`
}

// WorkflowResult is the outcome of a completed digest workflow.
//
// Forced is set when the iteration ceiling published the last draft without
// editor approval; Approved is true in that case as well.
type WorkflowResult struct {
	Story      *SynthesizedStory `json:"story"`
	Approved   bool              `json:"approved"`
	Forced     bool              `json:"forced"`
	Iterations int               `json:"iterations"`
	Rounds     []Round           `json:"rounds"`
}

// ProcessingStatus represents the outcome status of processing a sources file
type ProcessingStatus string

const (
	StatusSuccess ProcessingStatus = "success"
	StatusSkipped ProcessingStatus = "skipped"
	StatusError   ProcessingStatus = "error"
)

// ProcessingResult tracks the outcome of producing one digest
type ProcessingResult struct {
	Source   string
	Status   ProcessingStatus
	Filename string
	Result   *WorkflowResult
	Error    error
}
