package agents

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonrepair"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"solver/internal/domain"
	"solver/internal/prompts"
)

const planSchema = `{
  "type": "object",
  "required": ["plan"],
  "properties": {
    "plan": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["description"],
        "properties": {
          "step_num": {"type": "integer", "minimum": 1},
          "type": {"type": "string", "enum": ["calculation", "data_lookup", "final_synthesis"]},
          "description": {"type": "string"}
        }
      }
    }
  }
}`

var (
	planSchemaOnce     sync.Once
	planSchemaCompiled *jsonschema.Schema
	planSchemaErr      error
)

func compiledPlanSchema() (*jsonschema.Schema, error) {
	planSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("plan.json", strings.NewReader(planSchema)); err != nil {
			planSchemaErr = err
			return
		}
		planSchemaCompiled, planSchemaErr = c.Compile("plan.json")
	})
	return planSchemaCompiled, planSchemaErr
}

// Planner decomposes a query into ordered steps.
type Planner struct {
	base
}

// Plan asks the provider for a plan and parses it. Unparseable or empty
// plans are reported as parse errors.
func (p *Planner) Plan(ctx context.Context, query domain.Query) (domain.Plan, error) {
	reply, err := p.complete(ctx, prompts.PlannerSystem, prompts.PlannerUser, prompts.PlanData{Query: query.String()})
	if err != nil {
		return domain.Plan{}, err
	}
	plan, err := ParsePlan(reply)
	if err != nil {
		p.logger.Warn("planner reply rejected: %v", err)
		return domain.Plan{}, err
	}
	return plan, nil
}

type rawStep struct {
	Number      *int    `json:"step_num"`
	Kind        *string `json:"type"`
	Description *string `json:"description"`
}

// ParsePlan extracts a plan from a model reply. Code fences and prose around
// the JSON object are ignored and malformed JSON is repaired before it is
// validated. Missing step numbers default to the 1-based position and
// missing types to calculation.
func ParsePlan(reply string) (domain.Plan, error) {
	text := extractJSONObject(stripFences(reply))
	if text == "" {
		return domain.Plan{}, domain.ParseErrorf("no JSON object in planner reply")
	}

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(text)
		if repairErr != nil {
			return domain.Plan{}, domain.ParseErrorf("planner reply is not JSON: %v", err)
		}
		if err := json.Unmarshal([]byte(repaired), &doc); err != nil {
			return domain.Plan{}, domain.ParseErrorf("planner reply is not JSON after repair: %v", err)
		}
		text = repaired
	}

	schema, err := compiledPlanSchema()
	if err != nil {
		return domain.Plan{}, err
	}
	if err := schema.Validate(doc); err != nil {
		return domain.Plan{}, domain.ParseErrorf("plan does not match schema: %v", err)
	}

	var parsed struct {
		Plan []rawStep `json:"plan"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return domain.Plan{}, domain.ParseErrorf("decode plan: %v", err)
	}

	plan := domain.Plan{Steps: make([]domain.Step, 0, len(parsed.Plan))}
	for i, raw := range parsed.Plan {
		if raw.Description == nil || strings.TrimSpace(*raw.Description) == "" {
			return domain.Plan{}, domain.ParseErrorf("step %d missing description", i)
		}
		step := domain.Step{
			Index:       i,
			Number:      i + 1,
			Kind:        domain.StepCalculation,
			Description: strings.TrimSpace(*raw.Description),
		}
		if raw.Number != nil {
			step.Number = *raw.Number
		}
		if raw.Kind != nil {
			step.Kind = domain.StepKind(*raw.Kind)
		}
		plan.Steps = append(plan.Steps, step)
	}
	if plan.Empty() {
		return domain.Plan{}, domain.ParseErrorf("plan has no executable steps")
	}
	return plan, nil
}
