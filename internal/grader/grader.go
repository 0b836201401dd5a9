// Package grader scores a student's answer against the resolved
// solution using a hosted reasoning model.
package grader

import (
	"context"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gradepipe/gradepipe/internal/gateway"
	"github.com/gradepipe/gradepipe/internal/jsonutil"
	"github.com/gradepipe/gradepipe/internal/model"
	"github.com/gradepipe/gradepipe/internal/prompts"
)

// DefaultEndpoint is the reasoning model used for grading.
const DefaultEndpoint = "https://router.huggingface.co/hf-inference/models/IQuest-Coder-V1-14B-Instruct"

const (
	maxTokens = 512
	// Slightly above the transcription temperature, still near-deterministic
	// so repeated runs score consistently.
	temperature = 0.2
)

// ErrorFeedback is the user-visible note attached when grading degrades
// to a zero score.
const ErrorFeedback = "Error during grading."

// Grader scores answers.
type Grader struct {
	gw       *gateway.Client
	endpoint string
	variant  prompts.Variant
}

// New creates a Grader. An empty endpoint selects the default; an
// unknown variant falls back to standard grading.
func New(gw *gateway.Client, endpoint string, variant prompts.Variant) *Grader {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Grader{gw: gw, endpoint: endpoint, variant: variant}
}

// Grade evaluates studentText against solutionText for maxMarks. On any
// transport or parse failure it returns a zero score with ErrorFeedback
// rather than an error: a failed grading call must downgrade the run,
// not abort it. Awarded marks are clamped to [0, maxMarks].
func (g *Grader) Grade(ctx context.Context, studentText, solutionText string, maxMarks float64) model.GradeResult {
	failed := model.GradeResult{MarksAwarded: 0, Feedback: ErrorFeedback}

	userPrompt, err := prompts.GradeUser(prompts.GradeData{
		MaxMarks:      maxMarks,
		Solution:      solutionText,
		StudentAnswer: studentText,
	})
	if err != nil {
		slog.Error("building grade prompt failed", "error", err)
		return failed
	}

	payload := gateway.Payload{
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompts.GradeSystem(g.variant)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	raw, err := g.gw.Invoke(ctx, payload, g.endpoint)
	if err != nil {
		slog.Error("grading call failed", "error", err)
		return failed
	}

	obj, ok := jsonutil.TryParseObject(gateway.Normalize(raw))
	if !ok {
		slog.Warn("grading response was not valid JSON")
		return failed
	}

	marks, _ := jsonutil.ToFloat(obj["marks_awarded"])
	feedback, _ := obj["feedback"].(string)

	return model.GradeResult{
		MarksAwarded: clamp(marks, 0, maxMarks),
		Feedback:     feedback,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
