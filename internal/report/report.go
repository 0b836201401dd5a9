// Package report aggregates graded items into the final evaluation
// report. It is pure and fully deterministic: no network, no state.
package report

import (
	"github.com/gradepipe/gradepipe/internal/jsonutil"
	"github.com/gradepipe/gradepipe/internal/model"
)

// Aggregate combines graded items into a report: summed totals, a
// percentage, and a per-item breakdown in input order. Marks arriving as
// strings are coerced, anything non-numeric counts as zero, and a run
// with no possible marks reports a zero percentage.
func Aggregate(items []model.GradedItem) model.Report {
	var obtained, possible float64
	details := make([]model.ReportItem, 0, len(items))

	for _, item := range items {
		marks, ok := jsonutil.ToFloat(item.MarksAwarded)
		if !ok {
			marks = 0
		}

		obtained += marks
		possible += item.MaxMarks

		number := item.QuestionNumber
		if number == "" {
			number = model.UnknownQuestion
		}

		details = append(details, model.ReportItem{
			QuestionNumber:  number,
			QuestionText:    item.QuestionText,
			StudentResponse: item.StudentAnswer,
			MarksAwarded:    marks,
			MaxMarks:        item.MaxMarks,
			Feedback:        item.Feedback,
		})
	}

	percentage := 0.0
	if possible > 0 {
		percentage = obtained / possible * 100
	}

	return model.Report{
		Summary: model.Summary{
			TotalMarksObtained: obtained,
			TotalPossibleMarks: possible,
			Percentage:         percentage,
		},
		Details: details,
	}
}
