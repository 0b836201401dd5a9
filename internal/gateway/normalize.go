package gateway

import (
	"encoding/json"
	"strings"
)

// Normalize extracts the model's text from the raw response body.
// Endpoints disagree about the envelope: some return a list of records
// with a "generated_text" field, chat-style ones return "choices" with a
// nested message content, and a few return a bare JSON string. Anything
// unrecognized degrades to the body as-is. This function never fails on
// a malformed shape.
func Normalize(raw []byte) string {
	var list []struct {
		GeneratedText *string `json:"generated_text"`
	}
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 && list[0].GeneratedText != nil {
		return *list[0].GeneratedText
	}

	var chat struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &chat); err == nil && len(chat.Choices) > 0 {
		return chat.Choices[0].Message.Content
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	return strings.TrimSpace(string(raw))
}
