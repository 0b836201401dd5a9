// Package prompts owns the instruction text sent to the remote models.
// Static instructions and user-turn templates live in embedded files so
// they can be reviewed and tuned without touching stage code.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"sync"
	"text/template"
)

//go:embed templates/*.txt
var templateFS embed.FS

// Variant selects how harshly the grading model is told to score.
type Variant string

const (
	// VariantStrict penalizes every deviation from the solution key.
	VariantStrict Variant = "strict"
	// VariantStandard is the default grading behavior.
	VariantStandard Variant = "standard"
	// VariantLenient rewards method even with sloppy execution.
	VariantLenient Variant = "lenient"
)

var validVariants = map[Variant]bool{
	VariantStrict:   true,
	VariantStandard: true,
	VariantLenient:  true,
}

// IsValidVariant checks if a grading variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[Variant(v)]
}

var (
	loadOnce     sync.Once
	loadErr      error
	ocrText      string
	matchSystem  string
	matchUser    *template.Template
	gradeUser    *template.Template
	gradeSystems map[Variant]string
)

// Load parses all embedded prompt files. It uses sync.Once so repeated
// calls are cheap; every builder below requires it to have succeeded.
func Load() error {
	loadOnce.Do(func() {
		read := func(name string) string {
			if loadErr != nil {
				return ""
			}
			b, err := templateFS.ReadFile("templates/" + name)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", name, err)
				return ""
			}
			return string(b)
		}

		ocrText = read("ocr.txt")
		matchSystem = read("match_system.txt")

		gradeSystems = make(map[Variant]string)
		for _, v := range []Variant{VariantStrict, VariantStandard, VariantLenient} {
			gradeSystems[v] = read("grade_" + string(v) + ".txt")
		}

		if loadErr != nil {
			return
		}

		matchUser, loadErr = template.New("match_user").Parse(read("match_user.txt"))
		if loadErr != nil {
			loadErr = fmt.Errorf("parse match_user template: %w", loadErr)
			return
		}
		gradeUser, loadErr = template.New("grade_user").Parse(read("grade_user.txt"))
		if loadErr != nil {
			loadErr = fmt.Errorf("parse grade_user template: %w", loadErr)
		}
	})
	return loadErr
}

// OCRInstruction is the fixed transcription instruction sent alongside
// each page image.
func OCRInstruction() string { return ocrText }

// MatchSystem is the system prompt for the matching stage.
func MatchSystem() string { return matchSystem }

// GradeSystem returns the grading system prompt for the variant,
// falling back to the standard variant for unknown names.
func GradeSystem(v Variant) string {
	if s, ok := gradeSystems[v]; ok {
		return s
	}
	return gradeSystems[VariantStandard]
}

// MatchData feeds the matching user-turn template.
type MatchData struct {
	QuestionPaper string
	StudentAnswer string
}

// MatchUser builds the matching stage's user turn.
func MatchUser(d MatchData) (string, error) {
	if matchUser == nil {
		return "", errors.New("prompts not initialized: call Load first")
	}
	var buf bytes.Buffer
	if err := matchUser.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// GradeData feeds the grading user-turn template.
type GradeData struct {
	MaxMarks      float64
	Solution      string
	StudentAnswer string
}

// GradeUser builds the grading stage's user turn.
func GradeUser(d GradeData) (string, error) {
	if gradeUser == nil {
		return "", errors.New("prompts not initialized: call Load first")
	}
	var buf bytes.Buffer
	if err := gradeUser.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}
