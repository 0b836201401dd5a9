package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gradepipe/gradepipe/internal/gateway"
	"github.com/gradepipe/gradepipe/internal/grader"
	"github.com/gradepipe/gradepipe/internal/i18n"
	"github.com/gradepipe/gradepipe/internal/matcher"
	"github.com/gradepipe/gradepipe/internal/model"
	"github.com/gradepipe/gradepipe/internal/ocr"
	"github.com/gradepipe/gradepipe/internal/prompts"
)

var initOnce sync.Once

func initTestDeps(t *testing.T) {
	t.Helper()
	initOnce.Do(func() {
		if err := prompts.Load(); err != nil {
			t.Fatalf("load prompts: %v", err)
		}
		if err := i18n.Init("en"); err != nil {
			t.Fatalf("init i18n: %v", err)
		}
	})
}

func modelReply(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func failing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}
}

// stageServers bundles one httptest server per remote endpoint.
type stageServers struct {
	ocrPrimary *httptest.Server
	ocrBackup  *httptest.Server
	match      *httptest.Server
	grade      *httptest.Server
}

func (s *stageServers) close() {
	s.ocrPrimary.Close()
	s.ocrBackup.Close()
	s.match.Close()
	s.grade.Close()
}

func newTestPipeline(t *testing.T, ocrPrimary, ocrBackup, match, grade http.HandlerFunc) (*Pipeline, *stageServers) {
	t.Helper()
	initTestDeps(t)

	srvs := &stageServers{
		ocrPrimary: httptest.NewServer(ocrPrimary),
		ocrBackup:  httptest.NewServer(ocrBackup),
		match:      httptest.NewServer(match),
		grade:      httptest.NewServer(grade),
	}

	gw, err := gateway.New(gateway.Config{Token: "hf_test"})
	if err != nil {
		t.Fatalf("gateway.New: %v", err)
	}

	p := New(
		ocr.New(gw, srvs.ocrPrimary.URL, srvs.ocrBackup.URL),
		matcher.New(gw, srvs.match.URL),
		grader.New(gw, srvs.grade.URL, prompts.VariantStandard),
	)
	return p, srvs
}

func pages(n int) []model.Page {
	var out []model.Page
	for i := 1; i <= n; i++ {
		out = append(out, model.Page{Index: i, MIME: "image/jpeg", Data: []byte("img")})
	}
	return out
}

func TestEvaluateEndToEnd(t *testing.T) {
	p, srvs := newTestPipeline(t,
		modelReply("v = d/t = 100/5 = 20 m/s"),
		failing(),
		modelReply(`{"question_number": "2", "question_text": "Calculate velocity..."}`),
		modelReply(`{"marks_awarded": 4, "feedback": "Correct method, right answer."}`),
	)
	defer srvs.close()

	rep, err := p.Evaluate(context.Background(), Submission{
		Pages:         pages(1),
		QuestionPaper: "Q1. Define Force.\nQ2. Calculate velocity of a car traveling 100m in 5s.",
		SolutionKey:   `{"2": {"text": "v=20m/s", "marks": 5}}`,
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if len(rep.Details) != 1 {
		t.Fatalf("got %d detail items, want 1", len(rep.Details))
	}
	d := rep.Details[0]
	if d.QuestionNumber != "2" {
		t.Errorf("QuestionNumber = %q, want 2", d.QuestionNumber)
	}
	if d.MaxMarks != 5 {
		t.Errorf("MaxMarks = %v, want 5 from the solution key", d.MaxMarks)
	}
	if !strings.Contains(d.StudentResponse, "--- Page 1 ---") {
		t.Errorf("StudentResponse should carry the page marker, got %q", d.StudentResponse)
	}
	wantPct := d.MarksAwarded / 5 * 100
	if rep.Summary.Percentage != wantPct {
		t.Errorf("Percentage = %v, want %v", rep.Summary.Percentage, wantPct)
	}
}

func TestEvaluateRequiresQuestionPaper(t *testing.T) {
	p, srvs := newTestPipeline(t, modelReply("text"), failing(), failing(), failing())
	defer srvs.close()

	_, err := p.Evaluate(context.Background(), Submission{Pages: pages(1), QuestionPaper: "   "})
	if err != ErrNoQuestionPaper {
		t.Fatalf("Evaluate = %v, want ErrNoQuestionPaper", err)
	}
}

func TestEvaluateAllIllegible(t *testing.T) {
	p, srvs := newTestPipeline(t, failing(), failing(),
		modelReply(`{"question_number": "1", "question_text": "..."}`),
		modelReply(`{"marks_awarded": 5, "feedback": "ok"}`),
	)
	defer srvs.close()

	_, err := p.Evaluate(context.Background(), Submission{
		Pages:         pages(3),
		QuestionPaper: "Q1. Define Force.",
	})
	if err != ErrEmptyTranscript {
		t.Fatalf("Evaluate = %v, want ErrEmptyTranscript", err)
	}
}

func TestEvaluateSkipsIllegiblePages(t *testing.T) {
	// Page OCR alternates: the primary succeeds only on odd calls, and
	// the backup always fails, so page 2 degrades to the sentinel.
	var mu sync.Mutex
	call := 0
	flaky := func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		call++
		n := call
		mu.Unlock()
		if n == 2 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		modelReply("legible text")(w, r)
	}

	p, srvs := newTestPipeline(t, flaky, failing(),
		modelReply(`{"question_number": "1", "question_text": "Define Force."}`),
		modelReply(`{"marks_awarded": 3, "feedback": "ok"}`),
	)
	defer srvs.close()

	rep, err := p.Evaluate(context.Background(), Submission{
		Pages:         pages(3),
		QuestionPaper: "Q1. Define Force.",
		SolutionKey:   "F = ma",
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	transcript := rep.Details[0].StudentResponse
	if strings.Contains(transcript, model.Illegible) {
		t.Error("transcript must not contain the illegible sentinel")
	}
	if strings.Contains(transcript, "--- Page 2 ---") {
		t.Error("illegible page 2 should be excluded from the transcript")
	}
	for _, marker := range []string{"--- Page 1 ---", "--- Page 3 ---"} {
		if !strings.Contains(transcript, marker) {
			t.Errorf("transcript missing %q", marker)
		}
	}
	if strings.Index(transcript, "--- Page 1 ---") > strings.Index(transcript, "--- Page 3 ---") {
		t.Error("pages out of order in transcript")
	}
}

func TestEvaluateUnidentifiedSkipsGrading(t *testing.T) {
	gradeCalled := false
	p, srvs := newTestPipeline(t,
		modelReply("doodles"),
		failing(),
		modelReply(`{"question_number": "UNIDENTIFIED", "question_text": ""}`),
		func(w http.ResponseWriter, r *http.Request) {
			gradeCalled = true
			modelReply(`{"marks_awarded": 5, "feedback": "should not happen"}`)(w, r)
		},
	)
	defer srvs.close()

	rep, err := p.Evaluate(context.Background(), Submission{
		Pages:         pages(1),
		QuestionPaper: "Q1. Define Force.",
		SolutionKey:   "F = ma",
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if gradeCalled {
		t.Error("grading model must not be called for an unidentified match")
	}
	d := rep.Details[0]
	if d.QuestionNumber != model.Unidentified || d.MarksAwarded != 0 || d.MaxMarks != 0 {
		t.Errorf("detail = %+v, want zero-score unidentified item", d)
	}
	if d.Feedback == "" {
		t.Error("unidentified item should carry explanatory feedback")
	}
	if rep.Summary.Percentage != 0 {
		t.Errorf("Percentage = %v, want 0", rep.Summary.Percentage)
	}
}

func TestEvaluateFreeTextKeyUsesDefaultMarks(t *testing.T) {
	p, srvs := newTestPipeline(t,
		modelReply("some answer"),
		failing(),
		modelReply(`{"question_number": "3", "question_text": "What is photosynthesis?"}`),
		modelReply(`{"marks_awarded": 8, "feedback": "good"}`),
	)
	defer srvs.close()

	rep, err := p.Evaluate(context.Background(), Submission{
		Pages:         pages(1),
		QuestionPaper: "Q3. What is photosynthesis?",
		SolutionKey:   "Photosynthesis converts light energy into chemical energy.",
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rep.Details[0].MaxMarks != 10 {
		t.Errorf("MaxMarks = %v, want default 10 for free-text key", rep.Details[0].MaxMarks)
	}
}
