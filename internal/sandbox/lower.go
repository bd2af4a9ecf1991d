package sandbox

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// lower converts the untyped tree into a Program. It walks every node before
// anything runs and stops at the first construct outside the arithmetic
// grammar.
func lower(nodes []*syntaxNode) (*Program, *Failure) {
	prog := &Program{Stmts: make([]Stmt, 0, len(nodes))}
	for _, node := range nodes {
		stmt, f := lowerStmt(node)
		if f != nil {
			return nil, f
		}
		prog.Stmts = append(prog.Stmts, stmt)
	}
	return prog, nil
}

func disallowed(nodeKind string, pos Pos, detail string) *Failure {
	return &Failure{Kind: FailureDisallowedConstruct, NodeKind: nodeKind, Pos: pos, Detail: detail}
}

func lowerStmt(node *syntaxNode) (Stmt, *Failure) {
	switch node.kind {
	case kindAssign:
		if len(node.children) > 2 {
			return nil, disallowed(node.kind.String(), node.pos, "chained assignment")
		}
		target, value := node.children[0], node.children[1]
		if target.kind != kindName {
			return nil, disallowed(target.kind.String(), target.pos, "assignment target must be a plain name")
		}
		x, f := lowerExpr(value)
		if f != nil {
			return nil, f
		}
		return &Assign{Target: target.text, Value: x, Pos: node.pos}, nil
	case kindExprStmt:
		x, f := lowerExpr(node.children[0])
		if f != nil {
			return nil, f
		}
		return &ExprStmt{X: x, Pos: node.pos}, nil
	}
	return nil, disallowed(node.kind.String(), node.pos, "")
}

func lowerExpr(node *syntaxNode) (Expr, *Failure) {
	switch node.kind {
	case kindConstant:
		return lowerConstant(node)
	case kindName:
		return &Name{Ident: node.text, Pos: node.pos}, nil
	case kindParen:
		x, f := lowerExpr(node.children[0])
		if f != nil {
			return nil, f
		}
		return &Paren{X: x, Pos: node.pos}, nil
	case kindUnaryOp:
		if node.op != "-" {
			return nil, disallowed(unaryOpNames[node.op], node.pos, "")
		}
		x, f := lowerExpr(node.children[0])
		if f != nil {
			return nil, f
		}
		return &Neg{X: x, Pos: node.pos}, nil
	case kindBinOp:
		op, ok := allowedBinaryOps[node.op]
		if !ok {
			return nil, disallowed(binaryOpNames[node.op], node.pos, "")
		}
		left, f := lowerExpr(node.children[0])
		if f != nil {
			return nil, f
		}
		right, f := lowerExpr(node.children[1])
		if f != nil {
			return nil, f
		}
		return &Binary{Op: op, Left: left, Right: right, Pos: node.pos}, nil
	}
	return nil, disallowed(node.kind.String(), node.pos, "")
}

func lowerConstant(node *syntaxNode) (Expr, *Failure) {
	text := node.text
	switch {
	case text == "True" || text == "False" || text == "None":
		return nil, disallowed(node.kind.String(), node.pos, text+" literal")
	case text == "...":
		return nil, disallowed(node.kind.String(), node.pos, "Ellipsis literal")
	case text == "" || !(isDigit(rune(text[0])) || text[0] == '.'):
		return nil, disallowed(node.kind.String(), node.pos, "string literal")
	case strings.HasSuffix(text, "j") || strings.HasSuffix(text, "J"):
		return nil, disallowed(node.kind.String(), node.pos, "complex literal")
	}
	value, f := parseNumber(text, node.pos)
	if f != nil {
		return nil, f
	}
	return &Number{Value: value, Pos: node.pos}, nil
}

// parseNumber converts a numeric literal to float64. Integer literals of any
// size are accepted and rounded to the nearest float.
func parseNumber(text string, pos Pos) (float64, *Failure) {
	invalid := func() (float64, *Failure) {
		return 0, &Failure{Kind: FailureSyntax, Detail: fmt.Sprintf("invalid numeric literal %q", text), Pos: pos}
	}
	digits, ok := stripSeparators(text)
	if !ok {
		return invalid()
	}

	isInt := !strings.ContainsAny(digits, ".eE") || isPrefixed(digits)
	if isInt {
		if !isPrefixed(digits) && len(digits) > 1 && digits[0] == '0' && strings.Trim(digits, "0") != "" {
			return 0, &Failure{
				Kind:   FailureSyntax,
				Detail: "leading zeros in decimal integer literals are not permitted",
				Pos:    pos,
			}
		}
		n, ok := new(big.Int).SetString(digits, 0)
		if !ok {
			return invalid()
		}
		value, _ := new(big.Float).SetInt(n).Float64()
		if math.IsInf(value, 0) {
			return 0, &Failure{Kind: FailureArithmetic, Detail: "integer literal too large to convert to float", Pos: pos}
		}
		return value, nil
	}

	value, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && math.IsInf(value, 0) {
			return 0, &Failure{Kind: FailureArithmetic, Detail: "float literal out of range", Pos: pos}
		}
		if !errors.Is(err, strconv.ErrRange) {
			return invalid()
		}
	}
	return value, nil
}

func isPrefixed(digits string) bool {
	if len(digits) < 2 || digits[0] != '0' {
		return false
	}
	switch digits[1] {
	case 'x', 'X', 'o', 'O', 'b', 'B':
		return true
	}
	return false
}

// stripSeparators removes '_' digit separators, which must sit between two
// digits (or directly after a base prefix).
func stripSeparators(text string) (string, bool) {
	if !strings.Contains(text, "_") {
		return text, true
	}
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '_' {
			b.WriteByte(c)
			continue
		}
		if i == 0 || i == len(text)-1 {
			return "", false
		}
		prev, next := rune(text[i-1]), rune(text[i+1])
		afterPrefix := i == 2 && isPrefixed(text)
		if !(isAlnum(prev) || afterPrefix) || !isAlnum(next) || prev == '.' {
			return "", false
		}
		if !afterPrefix && (prev == 'e' || prev == 'E') && !isPrefixed(text) {
			return "", false
		}
	}
	return b.String(), true
}
