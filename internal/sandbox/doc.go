// Package sandbox evaluates untrusted arithmetic programs.
//
// Programs use a small expression syntax: assignments to plain names, bare
// expressions, numeric literals, parentheses, unary minus and the operators
// + - * / // % **. Source is parsed into a broad surface tree so that any
// other construct (imports, calls, attribute access, loops, literals of other
// types) is recognised and reported by name. The whole program is validated
// before the first statement runs, so a rejected program has no effect.
//
// Arithmetic is performed on float64. Floor division and modulo round toward
// negative infinity and the remainder takes the sign of the divisor.
package sandbox
