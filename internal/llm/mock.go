package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var (
	problemLine   = regexp.MustCompile(`(?m)^Problem:\s*(.+)$`)
	arithmeticRun = regexp.MustCompile(`[-+*/%().\d\s]*\d[-+*/%().\d\s]*`)
	resultLine    = regexp.MustCompile(`(?m)^step_\d+_result = (\S+)`)
)

const mockPlan = `{"plan": [{"step_num": 1, "type": "calculation", "description": "Evaluate the arithmetic in the problem"}]}`

// Mock is an offline provider used when no API key is configured. It plans a
// single step, answers with the arithmetic found in the problem text, always
// accepts, and reports the last step value.
type Mock struct{}

// NewMock returns the offline provider.
func NewMock() Mock {
	return Mock{}
}

func (Mock) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch req.Role {
	case RolePlanner:
		return mockPlan, nil
	case RoleGenerator:
		return "```python\nresult = " + mockExpression(req.Prompt) + "\n```", nil
	case RoleCritic:
		return "Correct", nil
	case RoleSynthesizer:
		matches := resultLine.FindAllStringSubmatch(req.Prompt, -1)
		if len(matches) == 0 {
			return "No result was computed.", nil
		}
		return fmt.Sprintf("The answer is %s.", matches[len(matches)-1][1]), nil
	}
	return "", &ProviderError{Kind: KindMalformed, Model: req.Model, Err: fmt.Errorf("mock provider has no behaviour for role %q", req.Role)}
}

// mockExpression picks the longest arithmetic-looking run of the problem.
func mockExpression(prompt string) string {
	problem := prompt
	if m := problemLine.FindStringSubmatch(prompt); m != nil {
		problem = m[1]
	}
	best := ""
	for _, run := range arithmeticRun.FindAllString(problem, -1) {
		run = strings.TrimSpace(run)
		if len(run) > len(best) {
			best = run
		}
	}
	best = strings.TrimRight(best, ".")
	if best == "" {
		return "0"
	}
	return best
}
