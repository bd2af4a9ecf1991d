package sandbox

import (
	"fmt"
	"math"
)

// Limits bounds the programs an Evaluator accepts. Zero fields disable the
// corresponding check.
type Limits struct {
	MaxSourceBytes int `mapstructure:"max_source_bytes" yaml:"max_source_bytes" validate:"gte=0"`
	MaxStatements  int `mapstructure:"max_statements" yaml:"max_statements" validate:"gte=0"`
	MaxDepth       int `mapstructure:"max_depth" yaml:"max_depth" validate:"gte=0"`
}

// DefaultLimits returns limits generous enough for any single reasoning step.
func DefaultLimits() Limits {
	return Limits{
		MaxSourceBytes: 16 * 1024,
		MaxStatements:  200,
		MaxDepth:       100,
	}
}

// Evaluator runs restricted arithmetic programs. It holds no mutable state
// and is safe for concurrent use.
type Evaluator struct {
	limits Limits
}

// NewEvaluator returns an Evaluator enforcing limits.
func NewEvaluator(limits Limits) *Evaluator {
	return &Evaluator{limits: limits}
}

var defaultEvaluator = NewEvaluator(DefaultLimits())

// Evaluate runs code with the default limits.
func Evaluate(code string, bindings Scope) Outcome {
	return defaultEvaluator.Evaluate(code, bindings)
}

// Compile parses and validates code without running it.
func (e *Evaluator) Compile(code string) (*Program, *Failure) {
	if e.limits.MaxSourceBytes > 0 && len(code) > e.limits.MaxSourceBytes {
		return nil, &Failure{
			Kind:   FailureLimitExceeded,
			Detail: fmt.Sprintf("source is %d bytes, limit is %d", len(code), e.limits.MaxSourceBytes),
		}
	}
	nodes, f := parse(code, e.limits)
	if f != nil {
		return nil, f
	}
	if len(nodes) == 0 {
		return nil, &Failure{Kind: FailureEmptyProgram, Detail: "no statements to evaluate"}
	}
	return lower(nodes)
}

// Evaluate validates code in full and, only if every construct is
// permitted, executes it against a copy of bindings. The caller's map is
// never modified.
func (e *Evaluator) Evaluate(code string, bindings Scope) Outcome {
	prog, f := e.Compile(code)
	if f != nil {
		return failed(f)
	}
	return prog.Run(bindings)
}

// Run executes a compiled program against a copy of bindings. The value is
// that of the last statement.
func (p *Program) Run(bindings Scope) Outcome {
	scope := bindings.Clone()
	var last float64
	for _, stmt := range p.Stmts {
		var (
			value float64
			f     *Failure
		)
		switch s := stmt.(type) {
		case *Assign:
			value, f = eval(s.Value, scope)
			if f == nil {
				scope[s.Target] = value
			}
		case *ExprStmt:
			value, f = eval(s.X, scope)
		}
		if f != nil {
			return failed(f)
		}
		last = value
	}
	return succeeded(last, scope)
}

func eval(x Expr, scope Scope) (float64, *Failure) {
	switch e := x.(type) {
	case *Number:
		return e.Value, nil
	case *Name:
		value, ok := scope[e.Ident]
		if !ok {
			return 0, &Failure{Kind: FailureUndefinedVariable, Name: e.Ident, Pos: e.Pos}
		}
		return value, nil
	case *Paren:
		return eval(e.X, scope)
	case *Neg:
		value, f := eval(e.X, scope)
		if f != nil {
			return 0, f
		}
		return -value, nil
	case *Binary:
		left, f := eval(e.Left, scope)
		if f != nil {
			return 0, f
		}
		right, f := eval(e.Right, scope)
		if f != nil {
			return 0, f
		}
		value, detail := apply(e.Op, left, right)
		if detail != "" {
			return 0, &Failure{Kind: FailureArithmetic, Detail: detail, Pos: e.Pos}
		}
		return value, nil
	}
	panic(fmt.Sprintf("sandbox: unexpected expression %T", x))
}

// apply computes left op right. A non-empty detail reports an arithmetic
// failure.
func apply(op Op, left, right float64) (float64, string) {
	var value float64
	switch op {
	case OpAdd:
		value = left + right
	case OpSub:
		value = left - right
	case OpMul:
		value = left * right
	case OpDiv:
		if right == 0 {
			return 0, "division by zero"
		}
		value = left / right
	case OpFloorDiv:
		if right == 0 {
			return 0, "floor division by zero"
		}
		value, _ = floorDivMod(left, right)
	case OpMod:
		if right == 0 {
			return 0, "modulo by zero"
		}
		_, value = floorDivMod(left, right)
	case OpPow:
		if left == 0 && right < 0 {
			return 0, "zero cannot be raised to a negative power"
		}
		if left < 0 && right != math.Trunc(right) {
			return 0, "negative number cannot be raised to a fractional power"
		}
		value = math.Pow(left, right)
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, "numeric result out of range"
	}
	return value, ""
}

// floorDivMod returns the quotient rounded toward negative infinity and a
// remainder carrying the sign of the divisor, so that
// div*right + mod == left up to rounding.
func floorDivMod(left, right float64) (div, mod float64) {
	mod = math.Mod(left, right)
	div = (left - mod) / right
	if mod != 0 {
		if (right < 0) != (mod < 0) {
			mod += right
			div -= 1
		}
	} else {
		mod = math.Copysign(0, right)
	}
	if div != 0 {
		floor := math.Floor(div)
		if div-floor > 0.5 {
			floor++
		}
		div = floor
	} else {
		div = math.Copysign(0, left/right)
	}
	return div, mod
}
