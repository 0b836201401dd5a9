package prompts

import (
	"strings"
	"testing"
)

func mustLoad(t *testing.T) {
	t.Helper()
	if err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestOCRInstruction(t *testing.T) {
	mustLoad(t)
	instr := OCRInstruction()
	if !strings.Contains(instr, "exactly as written") {
		t.Error("OCR instruction should demand verbatim transcription")
	}
	if !strings.Contains(instr, "Do not solve") {
		t.Error("OCR instruction should forbid solving")
	}
}

func TestMatchPrompts(t *testing.T) {
	mustLoad(t)

	sys := MatchSystem()
	if !strings.Contains(sys, "NEVER invent a question number") {
		t.Error("match system prompt should forbid fabricated identifiers")
	}
	if !strings.Contains(sys, `"UNIDENTIFIED"`) {
		t.Error("match system prompt should name the sentinel")
	}

	user, err := MatchUser(MatchData{
		QuestionPaper: "Q2. Calculate velocity...",
		StudentAnswer: "v = d/t = 20 m/s",
	})
	if err != nil {
		t.Fatalf("MatchUser: %v", err)
	}
	if !strings.Contains(user, "Q2. Calculate velocity...") {
		t.Error("user prompt should contain the question paper text")
	}
	if !strings.Contains(user, "v = d/t = 20 m/s") {
		t.Error("user prompt should contain the student answer")
	}
}

func TestGradePrompts(t *testing.T) {
	mustLoad(t)

	for _, v := range []Variant{VariantStrict, VariantStandard, VariantLenient} {
		t.Run(string(v), func(t *testing.T) {
			sys := GradeSystem(v)
			if !strings.Contains(sys, `"marks_awarded"`) {
				t.Error("grade system prompt should request marks_awarded")
			}
			if !strings.Contains(sys, `"feedback"`) {
				t.Error("grade system prompt should request feedback")
			}
			if !strings.Contains(sys, "DO NOT hallucinate") {
				t.Error("grade system prompt should forbid fabrication")
			}
		})
	}

	if GradeSystem(Variant("bogus")) != GradeSystem(VariantStandard) {
		t.Error("unknown variant should fall back to standard")
	}

	user, err := GradeUser(GradeData{MaxMarks: 5, Solution: "v=20m/s", StudentAnswer: "v = 20 m/s"})
	if err != nil {
		t.Fatalf("GradeUser: %v", err)
	}
	if !strings.Contains(user, "Max Marks: 5") {
		t.Error("user prompt should contain the max marks")
	}
	if !strings.Contains(user, "v=20m/s") {
		t.Error("user prompt should contain the solution text")
	}
}

func TestIsValidVariant(t *testing.T) {
	for _, v := range []string{"strict", "standard", "lenient"} {
		if !IsValidVariant(v) {
			t.Errorf("IsValidVariant(%q) = false, want true", v)
		}
	}
	if IsValidVariant("harsh") {
		t.Error("IsValidVariant(harsh) = true, want false")
	}
}
