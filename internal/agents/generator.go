package agents

import (
	"context"
	"strings"

	"solver/internal/domain"
	"solver/internal/prompts"
	"solver/internal/tokenutil"
)

// GenerateInput is everything the generator sees for one attempt.
type GenerateInput struct {
	Query    domain.Query
	Step     domain.Step
	Accepted []domain.StepResult
	// Feedback is the most recent critique or failure diagnostic.
	Feedback string
	Expected *float64
}

// CodeGenerator produces a candidate program for a step.
type CodeGenerator struct {
	base
	feedbackTokens int
}

// Generate returns the candidate program text. Markdown fences are removed
// and common indentation is stripped; a blank program is a parse error.
func (g *CodeGenerator) Generate(ctx context.Context, in GenerateInput) (string, error) {
	data := prompts.GenerateData{
		Query:       in.Query.String(),
		Number:      in.Step.Number,
		Description: in.Step.Description,
		Bindings:    prompts.BindingsFrom(in.Accepted),
		Feedback:    tokenutil.TruncateToTokens(in.Feedback, g.feedbackTokens),
	}
	if in.Expected != nil {
		data.Expected = prompts.FormatValue(*in.Expected)
	}
	reply, err := g.complete(ctx, prompts.GeneratorSystem, prompts.GeneratorUser, data)
	if err != nil {
		return "", err
	}
	code := ExtractCode(reply)
	if code == "" {
		return "", domain.ParseErrorf("generator returned no code for step %d", in.Step.Number)
	}
	return code, nil
}

// ExtractCode pulls program text out of a model reply.
func ExtractCode(reply string) string {
	return strings.TrimSpace(dedent(stripFences(reply)))
}
