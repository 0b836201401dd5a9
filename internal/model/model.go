package model

import "time"

// Sentinel values signaling graceful degradation. They are ordinary
// strings rather than errors: a failed page or an unmatched answer
// downgrades the result, it never aborts the run.
const (
	// Illegible is returned by the OCR stage when both the primary and
	// backup models failed to transcribe a page.
	Illegible = "ILLEGIBLE"
	// Unidentified is returned by the matching stage when the answer
	// text cannot be attributed to any question in the paper.
	Unidentified = "UNIDENTIFIED"
	// UnknownQuestion is the question number used in reports for items
	// that arrive without one.
	UnknownQuestion = "UNKNOWN"
)

// Page is a single answer-sheet page image, ready for OCR.
type Page struct {
	Index int    // 1-based page number
	MIME  string // e.g. "image/jpeg"
	Data  []byte // raw encoded image bytes
}

// MatchResult identifies the question a student's answer belongs to.
// QuestionNumber is never fabricated by this code: it is either grounded
// in the question paper text by the matching model or the Unidentified
// sentinel (with empty QuestionText).
type MatchResult struct {
	QuestionNumber string `json:"question_number"`
	QuestionText   string `json:"question_text"`
}

// Solution is the resolved grading reference for one question.
type Solution struct {
	Text       string
	MaxMarks   float64
	Structured bool // true when resolved from a per-question key entry
}

// GradeResult is the grading stage's verdict for one answer.
type GradeResult struct {
	MarksAwarded float64 `json:"marks_awarded"`
	Feedback     string  `json:"feedback"`
}

// GradedItem is one grading outcome paired with its match context,
// as consumed by the report aggregator. MarksAwarded is deliberately
// loose-typed: remote models sometimes emit the number as a string,
// and aggregation owns the coercion.
type GradedItem struct {
	QuestionNumber string
	QuestionText   string
	StudentAnswer  string
	MarksAwarded   any
	MaxMarks       float64
	Feedback       string
}

// Summary holds the report totals.
type Summary struct {
	TotalMarksObtained float64 `json:"total_marks_obtained"`
	TotalPossibleMarks float64 `json:"total_possible_marks"`
	Percentage         float64 `json:"percentage"`
}

// ReportItem is the per-question breakdown in the final report.
type ReportItem struct {
	QuestionNumber  string  `json:"question_number"`
	QuestionText    string  `json:"question_text"`
	StudentResponse string  `json:"student_response"`
	MarksAwarded    float64 `json:"marks_awarded"`
	MaxMarks        float64 `json:"max_marks"`
	Feedback        string  `json:"feedback"`
}

// Report is the final evaluation result. It is created once per run by
// the aggregator and never mutated afterwards.
type Report struct {
	Summary Summary      `json:"summary"`
	Details []ReportItem `json:"details"`
}

// QuestionPaper is a stored question paper in the input library.
type QuestionPaper struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// SolutionKey is a stored solution key in the input library. Body is
// either a JSON map of question number to {text, marks} or free text.
type SolutionKey struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
