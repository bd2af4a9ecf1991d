package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solver/internal/domain"
	"solver/internal/llm"
)

func newTeam(scripts map[string][]llm.Reply) (*Team, *llm.Scripted) {
	provider := llm.NewScripted(scripts)
	models := Models{Planner: "plan-model", Generator: "gen-model", Critic: "critic-model", Synthesizer: "synth-model"}
	return NewTeam(provider, models, 64), provider
}

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []domain.Step
	}{
		{
			name:  "plain json",
			reply: `{"plan":[{"step_num":1,"type":"calculation","description":"15 - 7"},{"step_num":2,"type":"calculation","description":"add 13"}]}`,
			want: []domain.Step{
				{Index: 0, Number: 1, Kind: domain.StepCalculation, Description: "15 - 7"},
				{Index: 1, Number: 2, Kind: domain.StepCalculation, Description: "add 13"},
			},
		},
		{
			name:  "fenced with prose",
			reply: "Here is the plan:\n```json\n{\"plan\": [{\"type\": \"data_lookup\", \"description\": \"find price\"}]}\n```\nDone.",
			want:  []domain.Step{{Index: 0, Number: 1, Kind: domain.StepDataLookup, Description: "find price"}},
		},
		{
			name:  "defaults",
			reply: `{"plan":[{"description":"a"},{"description":"b"}]}`,
			want: []domain.Step{
				{Index: 0, Number: 1, Kind: domain.StepCalculation, Description: "a"},
				{Index: 1, Number: 2, Kind: domain.StepCalculation, Description: "b"},
			},
		},
		{
			name:  "repaired trailing comma",
			reply: `{"plan":[{"step_num":1,"description":"a",},]}`,
			want:  []domain.Step{{Index: 0, Number: 1, Kind: domain.StepCalculation, Description: "a"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := ParsePlan(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan.Steps)
		})
	}
}

func TestParsePlanRejects(t *testing.T) {
	tests := map[string]string{
		"no json":             "I cannot help with that.",
		"missing plan":        `{"steps": []}`,
		"empty plan":          `{"plan": []}`,
		"missing description": `{"plan":[{"step_num":1,"type":"calculation"}]}`,
		"blank description":   `{"plan":[{"description":"   "}]}`,
		"unknown type":        `{"plan":[{"type":"guess","description":"a"}]}`,
		"only synthesis":      `{"plan":[{"type":"final_synthesis","description":"answer"}]}`,
	}
	for name, reply := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePlan(reply)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrParse), "got %v", err)
		})
	}
}

func TestExtractCode(t *testing.T) {
	tests := map[string]string{
		"x = 1\nx":                              "x = 1\nx",
		"```python\nresult = 15 - 7\n```":       "result = 15 - 7",
		"Sure:\n```\n  a = 1\n  b = a + 1\n```": "a = 1\nb = a + 1",
		"```python\n```":                        "",
		"   ":                                   "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExtractCode(in), "input %q", in)
	}
}

func TestParseVerdict(t *testing.T) {
	accept := ParseVerdict("Correct.")
	assert.True(t, accept.Accepted())
	assert.Empty(t, accept.Feedback)

	assert.True(t, ParseVerdict("  correct, well done").Accepted())

	revise := ParseVerdict("Incorrect: 21")
	assert.False(t, revise.Accepted())
	assert.Equal(t, "Incorrect: 21", revise.Feedback)
	require.NotNil(t, revise.Expected)
	assert.Equal(t, 21.0, *revise.Expected)

	withCommas := ParseVerdict("Incorrect: the total should be 1,250.5 dollars")
	require.NotNil(t, withCommas.Expected)
	assert.Equal(t, 1250.5, *withCommas.Expected)

	prose := ParseVerdict("The subtraction is wrong")
	assert.False(t, prose.Accepted())
	assert.Nil(t, prose.Expected)

	empty := ParseVerdict("")
	assert.False(t, empty.Accepted())
	assert.NotEmpty(t, empty.Feedback)
}

func TestAgentsUseTheirOwnModels(t *testing.T) {
	team, provider := newTeam(map[string][]llm.Reply{
		llm.RolePlanner:     llm.Texts(`{"plan":[{"description":"15 - 7"}]}`),
		llm.RoleGenerator:   llm.Texts("```python\nresult = 15 - 7\n```"),
		llm.RoleCritic:      llm.Texts("Correct"),
		llm.RoleSynthesizer: llm.Texts("  Tom has 8 apples.  "),
	})
	ctx := context.Background()
	query := domain.Query("Tom has 15 apples and eats 7.")

	plan, err := team.Planner.Plan(ctx, query)
	require.NoError(t, err)
	step := plan.Steps[0]

	code, err := team.Generator.Generate(ctx, GenerateInput{Query: query, Step: step})
	require.NoError(t, err)
	assert.Equal(t, "result = 15 - 7", code)

	verdict, err := team.Critic.Critique(ctx, CritiqueInput{Query: query, Step: step, Code: code, Value: 8})
	require.NoError(t, err)
	assert.True(t, verdict.Accepted())

	answer, err := team.Synthesizer.Synthesize(ctx, query, []domain.StepResult{{Binding: "step_1_result", Value: 8}})
	require.NoError(t, err)
	assert.Equal(t, "Tom has 8 apples.", answer)

	models := map[string]string{}
	for _, req := range provider.Requests() {
		models[req.Role] = req.Model
		assert.NotEmpty(t, req.System, "role %s", req.Role)
		assert.Equal(t, req.Role == llm.RolePlanner, req.JSON, "role %s", req.Role)
	}
	assert.Equal(t, map[string]string{
		llm.RolePlanner:     "plan-model",
		llm.RoleGenerator:   "gen-model",
		llm.RoleCritic:      "critic-model",
		llm.RoleSynthesizer: "synth-model",
	}, models)
}

func TestGeneratorPromptCarriesFeedbackAndBindings(t *testing.T) {
	team, provider := newTeam(map[string][]llm.Reply{
		llm.RoleGenerator: llm.Texts("result = step_1_result + 13"),
	})
	expected := 21.0
	_, err := team.Generator.Generate(context.Background(), GenerateInput{
		Query:    "apples",
		Step:     domain.Step{Number: 2, Description: "add 13"},
		Accepted: []domain.StepResult{{Binding: "step_1_result", Value: 8}},
		Feedback: "Incorrect: 21",
		Expected: &expected,
	})
	require.NoError(t, err)

	prompt := provider.Requests()[0].Prompt
	assert.Contains(t, prompt, "Problem: apples")
	assert.Contains(t, prompt, "step_1_result = 8")
	assert.Contains(t, prompt, "Feedback: Incorrect: 21")
	assert.Contains(t, prompt, "expects 21")
}

func TestGeneratorTruncatesLongFeedback(t *testing.T) {
	team, provider := newTeam(map[string][]llm.Reply{llm.RoleGenerator: llm.Texts("x = 1")})
	long := strings.Repeat("the subtraction is wrong ", 200)
	_, err := team.Generator.Generate(context.Background(), GenerateInput{Step: domain.Step{Number: 1}, Feedback: long})
	require.NoError(t, err)
	assert.NotContains(t, provider.Requests()[0].Prompt, long)
}

func TestAgentErrors(t *testing.T) {
	team, _ := newTeam(map[string][]llm.Reply{
		llm.RolePlanner:     llm.Texts("no plan here"),
		llm.RoleGenerator:   llm.Texts("```\n```"),
		llm.RoleCritic:      {{Err: &llm.ProviderError{Kind: llm.KindAuthFailed, Status: 401}}},
		llm.RoleSynthesizer: llm.Texts("   "),
	})
	ctx := context.Background()

	_, err := team.Planner.Plan(ctx, "q")
	assert.ErrorIs(t, err, domain.ErrParse)

	_, err = team.Generator.Generate(ctx, GenerateInput{Step: domain.Step{Number: 1}})
	assert.ErrorIs(t, err, domain.ErrParse)

	_, err = team.Critic.Critique(ctx, CritiqueInput{})
	var perr *llm.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, llm.KindAuthFailed, perr.Kind)

	_, err = team.Synthesizer.Synthesize(ctx, "q", nil)
	assert.ErrorIs(t, err, domain.ErrParse)
}
