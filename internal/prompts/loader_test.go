package prompts

import (
	"strings"
	"testing"

	"solver/internal/domain"
)

func TestLoaderParsesEveryRolePrompt(t *testing.T) {
	loader, err := NewPromptLoader()
	if err != nil {
		t.Fatalf("NewPromptLoader returned error: %v", err)
	}
	want := []string{
		CriticSystem, CriticUser,
		GeneratorSystem, GeneratorUser,
		PlannerSystem, PlannerUser,
		SynthesizerSystem, SynthesizerUser,
	}
	got := loader.ListPrompts()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("ListPrompts() = %v, want %v", got, want)
	}
}

func TestRenderGeneratorPrompt(t *testing.T) {
	loader := MustNewPromptLoader()
	prompt, err := loader.Render(GeneratorUser, GenerateData{
		Query:       "Tom has 15 apples",
		Number:      2,
		Description: "Add the apples bought",
		Bindings:    []Binding{{Name: "step_1_result", Value: 8}},
		Feedback:    "Incorrect: 21",
		Expected:    "21",
	})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	for _, fragment := range []string{
		"Problem: Tom has 15 apples\n",
		"Step 2: Add the apples bought",
		"step_1_result = 8\n",
		"Feedback: Incorrect: 21",
		"The reviewer expects 21.",
	} {
		if !strings.Contains(prompt, fragment) {
			t.Fatalf("expected %q in prompt, got:\n%s", fragment, prompt)
		}
	}
	if !strings.HasSuffix(prompt, "Program:") {
		t.Fatalf("prompt should end with the program cue, got:\n%s", prompt)
	}
}

func TestRenderGeneratorPromptOmitsEmptySections(t *testing.T) {
	prompt, err := MustNewPromptLoader().Render(GeneratorUser, GenerateData{Query: "2+2", Number: 1, Description: "add"})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	for _, absent := range []string{"earlier steps", "Feedback", "expects"} {
		if strings.Contains(prompt, absent) {
			t.Fatalf("did not expect %q in prompt:\n%s", absent, prompt)
		}
	}
}

func TestRenderSynthesizerPromptListsResultsInOrder(t *testing.T) {
	results := []domain.StepResult{
		{Binding: "step_1_result", Value: 8},
		{Binding: "step_2_result", Value: 21},
	}
	prompt, err := MustNewPromptLoader().Render(SynthesizerUser, SynthesisData{
		Query:   "How many apples?",
		Results: BindingsFrom(results),
	})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	first := strings.Index(prompt, "step_1_result = 8")
	second := strings.Index(prompt, "step_2_result = 21")
	if first < 0 || second < first {
		t.Fatalf("expected ordered results in prompt, got:\n%s", prompt)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	if _, err := MustNewPromptLoader().Render("nope", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestFormatValue(t *testing.T) {
	tests := map[float64]string{
		21:      "21",
		0.5:     "0.5",
		-3:      "-3",
		1234567: "1234567",
	}
	for in, want := range tests {
		if got := FormatValue(in); got != want {
			t.Errorf("FormatValue(%v) = %q, want %q", in, got, want)
		}
	}
}
