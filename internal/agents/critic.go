package agents

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"solver/internal/domain"
	"solver/internal/prompts"
)

var (
	incorrectMarker = regexp.MustCompile(`(?i)incorrect:`)
	numberPattern   = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)
)

// CritiqueInput is a successful attempt presented to the critic.
type CritiqueInput struct {
	Query    domain.Query
	Step     domain.Step
	Code     string
	Value    float64
	Accepted []domain.StepResult
}

// Critic judges successful attempts.
type Critic struct {
	base
}

// Critique asks the provider for a verdict on the attempt.
func (c *Critic) Critique(ctx context.Context, in CritiqueInput) (domain.Verdict, error) {
	reply, err := c.complete(ctx, prompts.CriticSystem, prompts.CriticUser, prompts.CritiqueData{
		Query:       in.Query.String(),
		Description: in.Step.Description,
		Code:        in.Code,
		Output:      in.Value,
		Bindings:    prompts.BindingsFrom(in.Accepted),
	})
	if err != nil {
		return domain.Verdict{}, err
	}
	return ParseVerdict(reply), nil
}

// ParseVerdict reads a critic reply. A reply starting with "Correct" in any
// case accepts; everything else revises with the reply as feedback. The last
// number after an "Incorrect:" marker is surfaced as the expected value.
func ParseVerdict(reply string) domain.Verdict {
	reply = strings.TrimSpace(reply)
	if strings.HasPrefix(strings.ToLower(reply), "correct") {
		return domain.Verdict{Decision: domain.Accept}
	}
	verdict := domain.Verdict{Decision: domain.Revise, Feedback: reply}
	if verdict.Feedback == "" {
		verdict.Feedback = "The critic rejected the result without feedback."
	}
	if loc := incorrectMarker.FindStringIndex(reply); loc != nil {
		numbers := numberPattern.FindAllString(reply[loc[1]:], -1)
		if len(numbers) > 0 {
			if v, err := strconv.ParseFloat(strings.ReplaceAll(numbers[len(numbers)-1], ",", ""), 64); err == nil {
				verdict.Expected = &v
			}
		}
	}
	return verdict
}
