// Package ocr transcribes answer-sheet page images through a hosted
// vision model, with a backup model behind the primary. OCR is the only
// stage allowed to lose data: a page both models fail on degrades to the
// Illegible sentinel so the rest of the pipeline can skip it.
package ocr

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gradepipe/gradepipe/internal/gateway"
	"github.com/gradepipe/gradepipe/internal/model"
	"github.com/gradepipe/gradepipe/internal/prompts"
)

// Default vision endpoints on the Hugging Face inference router.
const (
	DefaultPrimaryEndpoint = "https://router.huggingface.co/hf-inference/models/Qwen/Qwen2.5-VL-7B-Instruct"
	DefaultBackupEndpoint  = "https://router.huggingface.co/hf-inference/models/OpenGVLab/InternVL2-8B"
)

const (
	maxTokens = 1024
	// Transcription must be near-deterministic.
	temperature = 0.1
)

// Reader runs OCR over single pages.
type Reader struct {
	gw      *gateway.Client
	primary string
	backup  string
}

// New creates a Reader. Empty endpoint strings select the defaults.
func New(gw *gateway.Client, primary, backup string) *Reader {
	if primary == "" {
		primary = DefaultPrimaryEndpoint
	}
	if backup == "" {
		backup = DefaultBackupEndpoint
	}
	return &Reader{gw: gw, primary: primary, backup: backup}
}

// Transcribe extracts the handwritten text of one page. The same payload
// is sent to the primary endpoint and, on any failure or empty result,
// retried once against the backup. If both fail it returns the Illegible
// sentinel; it never returns an error, because a bad page must not abort
// the evaluation.
func (r *Reader) Transcribe(ctx context.Context, page model.Page) string {
	payload := r.buildPayload(page)

	text, err := r.attempt(ctx, payload, r.primary)
	if err == nil {
		return text
	}
	slog.Warn("primary OCR failed, switching to backup",
		"page", page.Index, "endpoint", r.primary, "error", err)

	text, err = r.attempt(ctx, payload, r.backup)
	if err == nil {
		return text
	}
	slog.Error("backup OCR also failed",
		"page", page.Index, "endpoint", r.backup, "error", err)
	return model.Illegible
}

func (r *Reader) buildPayload(page model.Page) gateway.Payload {
	mime := page.MIME
	if mime == "" {
		mime = "image/jpeg"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(page.Data)

	return gateway.Payload{
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompts.OCRInstruction(),
					},
				},
			},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

type emptyTranscriptionError struct{}

func (emptyTranscriptionError) Error() string { return "ocr: model returned empty transcription" }

func (r *Reader) attempt(ctx context.Context, payload gateway.Payload, endpoint string) (string, error) {
	raw, err := r.gw.Invoke(ctx, payload, endpoint)
	if err != nil {
		return "", err
	}
	text := gateway.Normalize(raw)
	if strings.TrimSpace(text) == "" {
		return "", emptyTranscriptionError{}
	}
	return text, nil
}
