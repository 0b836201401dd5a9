// Package matcher attributes transcribed answer text to a single
// question from the question paper, using a hosted reasoning model.
package matcher

import (
	"context"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gradepipe/gradepipe/internal/gateway"
	"github.com/gradepipe/gradepipe/internal/jsonutil"
	"github.com/gradepipe/gradepipe/internal/model"
	"github.com/gradepipe/gradepipe/internal/prompts"
)

// DefaultEndpoint is the reasoning model used for matching.
const DefaultEndpoint = "https://router.huggingface.co/hf-inference/models/IQuest-Coder-V1-14B-Instruct"

const (
	maxTokens   = 512
	temperature = 0.1
)

// Matcher identifies the best-matching question for an answer.
type Matcher struct {
	gw       *gateway.Client
	endpoint string
}

// New creates a Matcher. An empty endpoint selects the default.
func New(gw *gateway.Client, endpoint string) *Matcher {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Matcher{gw: gw, endpoint: endpoint}
}

// Match asks the model which question the answer text belongs to. Any
// transport or parse failure degrades to the Unidentified sentinel so
// the orchestrator can emit a zero-score report instead of aborting.
// The model is trusted not to fabricate identifiers (the prompt forbids
// it); a fabricated one is passed through as-is and later falls into
// free-text solution resolution.
func (m *Matcher) Match(ctx context.Context, answerText, questionPaperText string) model.MatchResult {
	unidentified := model.MatchResult{QuestionNumber: model.Unidentified, QuestionText: ""}

	userPrompt, err := prompts.MatchUser(prompts.MatchData{
		QuestionPaper: questionPaperText,
		StudentAnswer: answerText,
	})
	if err != nil {
		slog.Error("building match prompt failed", "error", err)
		return unidentified
	}

	payload := gateway.Payload{
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompts.MatchSystem()},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	raw, err := m.gw.Invoke(ctx, payload, m.endpoint)
	if err != nil {
		slog.Error("matching call failed", "error", err)
		return unidentified
	}

	obj, ok := jsonutil.TryParseObject(gateway.Normalize(raw))
	if !ok {
		slog.Warn("matching response was not valid JSON")
		return unidentified
	}

	number := jsonutil.Stringify(obj["question_number"])
	if number == "" {
		return unidentified
	}
	return model.MatchResult{
		QuestionNumber: number,
		QuestionText:   jsonutil.Stringify(obj["question_text"]),
	}
}
