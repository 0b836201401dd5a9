// Package pipeline orchestrates one evaluation run: OCR over every
// page, one matching call, solution resolution, one grading call, then
// aggregation. Stages fail soft internally; only run-level problems
// (nothing legible, no question paper) surface as errors.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gradepipe/gradepipe/internal/grader"
	"github.com/gradepipe/gradepipe/internal/i18n"
	"github.com/gradepipe/gradepipe/internal/matcher"
	"github.com/gradepipe/gradepipe/internal/model"
	"github.com/gradepipe/gradepipe/internal/ocr"
	"github.com/gradepipe/gradepipe/internal/report"
	"github.com/gradepipe/gradepipe/internal/solution"
)

// ErrEmptyTranscript is returned when every page of the answer sheet
// came back illegible: there is nothing to grade, and grading empty
// content would produce a misleading zero-score report.
var ErrEmptyTranscript = errors.New("pipeline: no legible text on any page")

// ErrNoQuestionPaper is returned when the submission carries no question
// paper text to match against.
var ErrNoQuestionPaper = errors.New("pipeline: question paper text is required")

// Submission is one evaluation request.
type Submission struct {
	Pages         []model.Page
	QuestionPaper string
	SolutionKey   string
}

// Pipeline wires the stages of a run together.
type Pipeline struct {
	ocr     *ocr.Reader
	matcher *matcher.Matcher
	grader  *grader.Grader
}

// New creates a Pipeline from its stages.
func New(o *ocr.Reader, m *matcher.Matcher, g *grader.Grader) *Pipeline {
	return &Pipeline{ocr: o, matcher: m, grader: g}
}

// Evaluate runs the full pipeline for one submission. Pages are read
// strictly in order; each stage completes before the next starts. The
// returned report always contains exactly one detail item: the whole
// transcript is matched to its single best question.
func (p *Pipeline) Evaluate(ctx context.Context, sub Submission) (model.Report, error) {
	if strings.TrimSpace(sub.QuestionPaper) == "" {
		return model.Report{}, ErrNoQuestionPaper
	}

	transcript := p.transcribePages(ctx, sub.Pages)
	if strings.TrimSpace(transcript) == "" {
		return model.Report{}, ErrEmptyTranscript
	}

	match := p.matcher.Match(ctx, transcript, sub.QuestionPaper)
	slog.Info("matching complete", "question_number", match.QuestionNumber)

	item := p.gradeMatch(ctx, match, transcript, sub.SolutionKey)
	return report.Aggregate([]model.GradedItem{item}), nil
}

// transcribePages OCRs each page in order and assembles the transcript.
// Illegible pages are dropped from the concatenation, not retried.
func (p *Pipeline) transcribePages(ctx context.Context, pages []model.Page) string {
	var b strings.Builder
	for _, page := range pages {
		text := p.ocr.Transcribe(ctx, page)
		if text == model.Illegible {
			slog.Warn("page was illegible, skipping", "page", page.Index)
			continue
		}
		fmt.Fprintf(&b, "\n--- Page %d ---\n%s", page.Index, text)
	}
	return b.String()
}

// gradeMatch turns a match result into the single graded item. An
// unidentified match never reaches the grading model: it becomes a
// zero-score item with explanatory feedback.
func (p *Pipeline) gradeMatch(ctx context.Context, match model.MatchResult, transcript, solutionKey string) model.GradedItem {
	if match.QuestionNumber == model.Unidentified {
		return model.GradedItem{
			QuestionNumber: model.Unidentified,
			QuestionText:   "",
			StudentAnswer:  transcript,
			MarksAwarded:   0.0,
			MaxMarks:       0,
			Feedback:       i18n.T(ctx, "feedback.unmatched"),
		}
	}

	sol := solution.Resolve(match.QuestionNumber, solutionKey)
	slog.Info("solution resolved",
		"question_number", match.QuestionNumber,
		"structured", sol.Structured,
		"max_marks", sol.MaxMarks)

	result := p.grader.Grade(ctx, transcript, sol.Text, sol.MaxMarks)
	return model.GradedItem{
		QuestionNumber: match.QuestionNumber,
		QuestionText:   match.QuestionText,
		StudentAnswer:  transcript,
		MarksAwarded:   result.MarksAwarded,
		MaxMarks:       sol.MaxMarks,
		Feedback:       result.Feedback,
	}
}
