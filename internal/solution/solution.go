// Package solution resolves the grading reference for a matched
// question from a solution key. The key is whatever the examiner
// uploaded: ideally a JSON map of question number to {text, marks},
// but frequently plain prose, and resolution must cope with both.
package solution

import (
	"strconv"
	"strings"

	"github.com/gradepipe/gradepipe/internal/jsonutil"
	"github.com/gradepipe/gradepipe/internal/model"
)

// DefaultMaxMarks applies when the key carries no marks allocation for
// the question.
const DefaultMaxMarks = 10

// Resolve finds the solution text and maximum marks for questionID in
// rawKey. Structured lookup is tried first; if the key does not parse as
// a JSON object, or the question is absent, the whole raw key becomes
// the solution text with DefaultMaxMarks. Resolve never fails; an
// unusable key just means unstructured mode.
func Resolve(questionID, rawKey string) model.Solution {
	unstructured := model.Solution{Text: rawKey, MaxMarks: DefaultMaxMarks}

	obj, ok := jsonutil.TryParseObject(rawKey)
	if !ok {
		return unstructured
	}

	entry, found := lookup(obj, questionID)
	if !found {
		return unstructured
	}

	record, ok := entry.(map[string]any)
	if !ok {
		return unstructured
	}

	sol := model.Solution{Text: rawKey, MaxMarks: DefaultMaxMarks, Structured: true}
	if text, ok := record["text"].(string); ok {
		sol.Text = text
	}
	if marks, ok := jsonutil.ToFloat(record["marks"]); ok {
		sol.MaxMarks = marks
	}
	return sol
}

// lookup probes the key map with the identifier as given and with
// equivalent representations, so a numeric-looking id like "2" still
// finds an entry keyed "2" or "2.0" and vice versa.
func lookup(obj map[string]any, questionID string) (any, bool) {
	id := strings.TrimSpace(questionID)
	if entry, ok := obj[id]; ok {
		return entry, true
	}
	if f, err := strconv.ParseFloat(id, 64); err == nil {
		canonical := strconv.FormatFloat(f, 'f', -1, 64)
		if entry, ok := obj[canonical]; ok {
			return entry, true
		}
		for k, entry := range obj {
			if kf, err := strconv.ParseFloat(strings.TrimSpace(k), 64); err == nil && kf == f {
				return entry, true
			}
		}
	}
	return nil, false
}
