package main

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// MaxIterations is the number of researcher drafts after which the latest
// draft is published even without editor approval.
const MaxIterations = 3

// Stage is a state of the digest workflow
type Stage string

const (
	AwaitingResearch Stage = "AWAITING_RESEARCH"
	AwaitingReview   Stage = "AWAITING_REVIEW"
	Published        Stage = "PUBLISHED"
)

// WorkflowState is threaded through every step of one digest request.
// EditorFeedback is empty when no revision is pending.
type WorkflowState struct {
	RawArticles    []RawArticle
	Draft          *SynthesizedStory
	EditorFeedback string
	IsApproved     bool
	IterationCount int
}

func newWorkflowState(articles []RawArticle) *WorkflowState {
	return &WorkflowState{RawArticles: slices.Clone(articles)}
}

func (s *WorkflowState) applyResearch(update researchUpdate) {
	s.Draft = update.Draft
	s.IterationCount = update.IterationCount
}

func (s *WorkflowState) applyReview(update reviewUpdate) {
	s.IsApproved = update.IsApproved
	if update.IsApproved {
		s.EditorFeedback = ""
		return
	}
	s.EditorFeedback = update.Feedback
}

// nextStage decides where the workflow goes after a review. The iteration
// ceiling wins over a revision request, including on the last allowed round.
func nextStage(state *WorkflowState) (stage Stage, forced bool) {
	if state.IsApproved {
		return Published, false
	}
	if state.IterationCount >= MaxIterations {
		return Published, true
	}
	return AwaitingResearch, false
}

// Workflow runs the researcher/editor revision loop
type Workflow struct {
	researcher *Researcher
	editor     *Editor
	logger     *slog.Logger
}

// NewWorkflow creates a workflow from configured backends and prompts
func NewWorkflow(backends *Backends, prompts *Prompts, excerptChars int, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		researcher: NewResearcher(backends.Researcher, prompts, excerptChars, logger.With("agent", "researcher")),
		editor:     NewEditor(backends.Editor, prompts, excerptChars, logger.With("agent", "editor")),
		logger:     logger,
	}
}

// Run drafts and reviews a digest of articles until the editor approves it or
// the iteration ceiling forces publication. Any step failure aborts the run
// and no partial result is returned.
func (w *Workflow) Run(ctx context.Context, articles []RawArticle) (*WorkflowResult, error) {
	if len(articles) == 0 {
		return nil, newWorkflowError(InputError, AwaitingResearch, errNoArticles)
	}

	state := newWorkflowState(articles)
	stage := AwaitingResearch
	forced := false
	var rounds []Round

	for stage != Published {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("digest workflow aborted in %s: %w", stage, err)
		}

		switch stage {
		case AwaitingResearch:
			update, err := w.researcher.Research(ctx, state.RawArticles, state.EditorFeedback, state.IterationCount)
			if err != nil {
				return nil, err
			}
			state.applyResearch(update)
			stage = AwaitingReview

		case AwaitingReview:
			update, err := w.editor.Review(ctx, state.Draft, state.RawArticles)
			if err != nil {
				return nil, err
			}
			state.applyReview(update)
			rounds = append(rounds, Round{
				Iteration:  state.IterationCount,
				DraftTitle: state.Draft.Title,
				Approved:   state.IsApproved,
				Feedback:   state.EditorFeedback,
			})

			stage, forced = nextStage(state)
			if forced {
				w.logger.Warn("⚠ Max iterations reached, forcing publication", "iterations", state.IterationCount, "feedback", state.EditorFeedback)
			}

		default:
			return nil, fmt.Errorf("digest workflow in unknown stage %q", stage)
		}
	}

	w.logger.Info("✓ Digest published", "title", state.Draft.Title, "iterations", state.IterationCount, "forced", forced)
	return &WorkflowResult{
		Story:      state.Draft,
		Approved:   true,
		Forced:     forced,
		Iterations: state.IterationCount,
		Rounds:     rounds,
	}, nil
}
