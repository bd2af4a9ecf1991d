package domain

import (
	"fmt"
	"strings"
)

// Query is the raw problem text submitted by the user.
type Query string

func (q Query) String() string {
	return string(q)
}

// Blank reports whether the query has no visible content.
func (q Query) Blank() bool {
	return strings.TrimSpace(string(q)) == ""
}

// StepKind tags what a plan step is expected to produce.
type StepKind string

const (
	StepCalculation    StepKind = "calculation"
	StepDataLookup     StepKind = "data_lookup"
	StepFinalSynthesis StepKind = "final_synthesis"
)

// Valid reports whether k is one of the known kinds.
func (k StepKind) Valid() bool {
	switch k {
	case StepCalculation, StepDataLookup, StepFinalSynthesis:
		return true
	}
	return false
}

// Step is one unit of work in a plan.
type Step struct {
	// Index is the 0-based position in the plan.
	Index int `json:"index"`
	// Number is the 1-based step number used in bindings and prompts.
	Number      int      `json:"step_num"`
	Kind        StepKind `json:"type"`
	Description string   `json:"description"`
}

// Binding is the name under which later steps see this step's value.
func (s Step) Binding() string {
	return BindingName(s.Number)
}

// Executable reports whether the step is solved by running a program.
// Final synthesis steps are covered by the synthesizer instead.
func (s Step) Executable() bool {
	return s.Kind != StepFinalSynthesis
}

// BindingName returns the scope variable for step number n.
func BindingName(n int) string {
	return fmt.Sprintf("step_%d_result", n)
}

// Plan is the ordered decomposition of a query. It is not modified after
// the planner returns it.
type Plan struct {
	Steps []Step `json:"steps"`
}

// Executable returns the steps that need a program, in order.
func (p Plan) Executable() []Step {
	out := make([]Step, 0, len(p.Steps))
	for _, step := range p.Steps {
		if step.Executable() {
			out = append(out, step)
		}
	}
	return out
}

// Empty reports whether the plan has no executable step.
func (p Plan) Empty() bool {
	return len(p.Executable()) == 0
}
