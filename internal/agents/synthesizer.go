package agents

import (
	"context"

	"solver/internal/domain"
	"solver/internal/prompts"
)

// Synthesizer writes the final answer from the accepted step values.
type Synthesizer struct {
	base
}

// Synthesize returns the trimmed answer text. An empty reply is a parse error.
func (s *Synthesizer) Synthesize(ctx context.Context, query domain.Query, results []domain.StepResult) (string, error) {
	reply, err := s.complete(ctx, prompts.SynthesizerSystem, prompts.SynthesizerUser, prompts.SynthesisData{
		Query:   query.String(),
		Results: prompts.BindingsFrom(results),
	})
	if err != nil {
		return "", err
	}
	if reply == "" {
		return "", domain.ParseErrorf("synthesizer returned an empty answer")
	}
	return reply, nil
}
