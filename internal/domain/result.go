package domain

import (
	"time"

	"solver/internal/sandbox"
)

// Decision is the critic's judgement on a successful attempt.
type Decision string

const (
	Accept Decision = "accept"
	Revise Decision = "revise"
)

// Verdict is the outcome of critiquing an attempt. A failed sandbox run
// produces an implicit Revise whose feedback is the failure diagnostic.
type Verdict struct {
	Decision Decision `json:"decision"`
	Feedback string   `json:"feedback,omitempty"`
	// Expected is the value the critic believes is correct, when it gave one.
	Expected *float64 `json:"expected,omitempty"`
}

// Accepted reports whether the verdict accepts the attempt.
func (v Verdict) Accepted() bool {
	return v.Decision == Accept
}

// Attempt records one generate/evaluate/critique cycle. Attempts are
// appended in order and never changed afterwards.
type Attempt struct {
	Number  int             `json:"number"`
	Code    string          `json:"code"`
	Outcome sandbox.Outcome `json:"outcome"`
	Verdict Verdict         `json:"verdict"`
	// Diff is the change from the previous attempt's code, empty for the first.
	Diff string `json:"diff,omitempty"`
	// Digest is the hex BLAKE3 digest of Code.
	Digest   string        `json:"digest"`
	Duration time.Duration `json:"duration"`
}

// StepResult is the accepted value of a step.
type StepResult struct {
	Step     Step      `json:"step"`
	Value    float64   `json:"value"`
	Binding  string    `json:"binding"`
	Code     string    `json:"code"`
	Attempts []Attempt `json:"attempts"`
}

// FinalAnswer is the synthesized response for a run.
type FinalAnswer struct {
	RunID string       `json:"run_id"`
	Query Query        `json:"query"`
	Text  string       `json:"text"`
	Plan  Plan         `json:"plan"`
	Steps []StepResult `json:"steps"`
}

// Bindings returns the scope made of every accepted step value.
func Bindings(results []StepResult) sandbox.Scope {
	scope := make(sandbox.Scope, len(results))
	for _, r := range results {
		scope[r.Binding] = r.Value
	}
	return scope
}
