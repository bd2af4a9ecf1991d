package sandbox

import (
	"fmt"
	"sort"
	"strings"
)

// FailureKind classifies why an evaluation did not produce a value.
type FailureKind string

const (
	// FailureDisallowedConstruct reports a syntax node outside the arithmetic grammar.
	FailureDisallowedConstruct FailureKind = "DisallowedConstruct"
	// FailureUndefinedVariable reports a reference to a name absent from scope.
	FailureUndefinedVariable FailureKind = "UndefinedVariable"
	// FailureArithmetic reports division by zero, domain errors and overflow.
	FailureArithmetic FailureKind = "ArithmeticError"
	// FailureSyntax reports text that cannot be tokenised or parsed.
	FailureSyntax FailureKind = "SyntaxError"
	// FailureEmptyProgram reports a program without statements.
	FailureEmptyProgram FailureKind = "EmptyProgram"
	// FailureLimitExceeded reports a program over the evaluator's size limits.
	FailureLimitExceeded FailureKind = "LimitExceeded"
)

// Pos is a 1-based source position. The zero value means unknown.
type Pos struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

func (p Pos) String() string {
	if p.Line == 0 {
		return "unknown position"
	}
	return fmt.Sprintf("line %d, col %d", p.Line, p.Col)
}

// Failure describes a rejected or aborted evaluation. It implements error so
// callers can wrap it, but the evaluator itself returns it inside an Outcome.
type Failure struct {
	Kind FailureKind `json:"kind"`
	// Detail is a human readable explanation.
	Detail string `json:"detail,omitempty"`
	// NodeKind names the offending syntax node for DisallowedConstruct.
	NodeKind string `json:"node_kind,omitempty"`
	// Name is the missing identifier for UndefinedVariable.
	Name string `json:"name,omitempty"`
	Pos  Pos    `json:"pos"`
}

// Error returns the diagnostic text fed back to code generation.
func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString(string(f.Kind))
	switch f.Kind {
	case FailureDisallowedConstruct:
		fmt.Fprintf(&b, ": %s is not permitted", f.NodeKind)
	case FailureUndefinedVariable:
		fmt.Fprintf(&b, ": name %q is not defined", f.Name)
	}
	if f.Detail != "" {
		b.WriteString(": ")
		b.WriteString(f.Detail)
	}
	if f.Pos.Line > 0 {
		fmt.Fprintf(&b, " (%s)", f.Pos)
	}
	return b.String()
}

// Outcome is the result of one evaluation: either a value with the final
// scope, or a Failure. Exactly one side is populated.
type Outcome struct {
	Value   float64  `json:"value"`
	Trace   Scope    `json:"trace,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
}

// OK reports whether the evaluation succeeded.
func (o Outcome) OK() bool {
	return o.Failure == nil
}

// Diagnostic returns the failure text, or an empty string on success.
func (o Outcome) Diagnostic() string {
	if o.Failure == nil {
		return ""
	}
	return o.Failure.Error()
}

func succeeded(value float64, trace Scope) Outcome {
	return Outcome{Value: value, Trace: trace}
}

func failed(f *Failure) Outcome {
	return Outcome{Failure: f}
}

// Scope maps variable names to numeric values.
type Scope map[string]float64

// Clone returns an independent copy. A nil scope clones to an empty one.
func (s Scope) Clone() Scope {
	out := make(Scope, len(s))
	for name, value := range s {
		out[name] = value
	}
	return out
}

// Names returns the bound names in sorted order.
func (s Scope) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
