package sandbox

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokNewline
	tokNumber
	tokName
	tokString
	tokOp
)

type token struct {
	typ  tokenType
	text string
	pos  Pos
	// lineStart marks the first token of a logical line.
	lineStart bool
}

func (t token) is(op string) bool {
	return t.typ == tokOp && t.text == op
}

func (t token) keyword(word string) bool {
	return t.typ == tokName && t.text == word
}

func (t token) describe() string {
	switch t.typ {
	case tokEOF:
		return "end of input"
	case tokNewline:
		return "end of line"
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

// Longest operators first so prefix matching picks the longest form.
var operators = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"->", ":=", "**", "//", "<<", ">>", "<=", ">=", "==", "!=",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=",
	"+", "-", "*", "/", "%", "@", "&", "|", "^", "~", "<", ">",
	"(", ")", "[", "]", "{", "}", ",", ":", ".", ";", "=",
}

var stringPrefixes = map[string]bool{
	"r": true, "u": true, "b": true, "f": true,
	"br": true, "rb": true, "fr": true, "rf": true,
}

type lexer struct {
	src    string
	off    int
	line   int
	col    int
	depth  int
	tokens []token
	atLine bool
}

// tokenize splits src into tokens. Newlines inside brackets and after a
// backslash continuation are not significant.
func tokenize(src string) ([]token, *Failure) {
	lx := &lexer{src: src, line: 1, col: 1, atLine: true}
	for {
		if f := lx.next(); f != nil {
			return nil, f
		}
		if n := len(lx.tokens); n > 0 && lx.tokens[n-1].typ == tokEOF {
			return lx.tokens, nil
		}
	}
}

func (lx *lexer) pos() Pos {
	return Pos{Line: lx.line, Col: lx.col}
}

func (lx *lexer) peekRune(ahead int) rune {
	off := lx.off
	for i := 0; i <= ahead; i++ {
		if off >= len(lx.src) {
			return 0
		}
		r, size := utf8.DecodeRuneInString(lx.src[off:])
		if i == ahead {
			return r
		}
		off += size
	}
	return 0
}

func (lx *lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(lx.src[lx.off:])
	lx.off += size
	if r == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return r
}

func (lx *lexer) emit(typ tokenType, text string, pos Pos) {
	tok := token{typ: typ, text: text, pos: pos}
	if typ != tokNewline && typ != tokEOF && lx.atLine {
		tok.lineStart = true
		lx.atLine = false
	}
	if typ == tokNewline {
		lx.atLine = true
	}
	lx.tokens = append(lx.tokens, tok)
}

func (lx *lexer) syntaxError(pos Pos, format string, args ...any) *Failure {
	return &Failure{Kind: FailureSyntax, Detail: fmt.Sprintf(format, args...), Pos: pos}
}

func (lx *lexer) next() *Failure {
	for lx.off < len(lx.src) {
		r := lx.peekRune(0)
		switch {
		case r == '\n':
			pos := lx.pos()
			lx.advance()
			if lx.depth == 0 && !lx.atLine {
				lx.emit(tokNewline, "", pos)
			}
			return nil
		case r == '\\' && lx.peekRune(1) == '\n':
			lx.advance()
			lx.advance()
		case r == '\\' && lx.peekRune(1) == '\r' && lx.peekRune(2) == '\n':
			lx.advance()
			lx.advance()
			lx.advance()
		case r == '#':
			for lx.off < len(lx.src) && lx.peekRune(0) != '\n' {
				lx.advance()
			}
		case unicode.IsSpace(r):
			lx.advance()
		default:
			return lx.scanToken()
		}
	}
	if lx.depth > 0 {
		return lx.syntaxError(lx.pos(), "unexpected end of input inside brackets")
	}
	if !lx.atLine {
		lx.emit(tokNewline, "", lx.pos())
	}
	lx.emit(tokEOF, "", lx.pos())
	return nil
}

func (lx *lexer) scanToken() *Failure {
	start := lx.pos()
	r := lx.peekRune(0)
	switch {
	case isDigit(r) || (r == '.' && isDigit(lx.peekRune(1))):
		lx.emit(tokNumber, lx.scanNumber(), start)
		return nil
	case r == '_' || unicode.IsLetter(r):
		word := lx.scanName()
		if q := lx.peekRune(0); (q == '\'' || q == '"') && stringPrefixes[strings.ToLower(word)] {
			text, f := lx.scanString(start)
			if f != nil {
				return f
			}
			lx.emit(tokString, word+text, start)
			return nil
		}
		lx.emit(tokName, word, start)
		return nil
	case r == '\'' || r == '"':
		text, f := lx.scanString(start)
		if f != nil {
			return f
		}
		lx.emit(tokString, text, start)
		return nil
	}
	rest := lx.src[lx.off:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			for range op {
				lx.advance()
			}
			switch op {
			case "(", "[", "{":
				lx.depth++
			case ")", "]", "}":
				if lx.depth == 0 {
					return lx.syntaxError(start, "unmatched %q", op)
				}
				lx.depth--
			}
			lx.emit(tokOp, op, start)
			return nil
		}
	}
	return lx.syntaxError(start, "invalid character %q", r)
}

func (lx *lexer) scanName() string {
	begin := lx.off
	for lx.off < len(lx.src) {
		r := lx.peekRune(0)
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		lx.advance()
	}
	return lx.src[begin:lx.off]
}

// scanNumber accepts decimal, hex, octal and binary integers, floats with
// exponents, digit separators and an imaginary suffix. Validity of the
// literal is checked when it is lowered.
func (lx *lexer) scanNumber() string {
	begin := lx.off
	if lx.peekRune(0) == '0' && strings.ContainsRune("xXoObB", lx.peekRune(1)) {
		lx.advance()
		lx.advance()
		for isAlnum(lx.peekRune(0)) || lx.peekRune(0) == '_' {
			lx.advance()
		}
		return lx.src[begin:lx.off]
	}
	for isDigit(lx.peekRune(0)) || lx.peekRune(0) == '_' {
		lx.advance()
	}
	if lx.peekRune(0) == '.' && lx.peekRune(1) != '.' {
		lx.advance()
		for isDigit(lx.peekRune(0)) || lx.peekRune(0) == '_' {
			lx.advance()
		}
	}
	if r := lx.peekRune(0); r == 'e' || r == 'E' {
		next := lx.peekRune(1)
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(lx.peekRune(2))) {
			lx.advance()
			if next == '+' || next == '-' {
				lx.advance()
			}
			for isDigit(lx.peekRune(0)) || lx.peekRune(0) == '_' {
				lx.advance()
			}
		}
	}
	if r := lx.peekRune(0); r == 'j' || r == 'J' {
		lx.advance()
	}
	return lx.src[begin:lx.off]
}

func (lx *lexer) scanString(start Pos) (string, *Failure) {
	begin := lx.off
	quote := lx.peekRune(0)
	triple := lx.peekRune(1) == quote && lx.peekRune(2) == quote
	width := 1
	if triple {
		width = 3
	}
	for i := 0; i < width; i++ {
		lx.advance()
	}
	for lx.off < len(lx.src) {
		r := lx.peekRune(0)
		switch {
		case r == '\\':
			lx.advance()
			if lx.off < len(lx.src) {
				lx.advance()
			}
		case r == '\n' && !triple:
			return "", lx.syntaxError(start, "unterminated string literal")
		case r == quote && (!triple || (lx.peekRune(1) == quote && lx.peekRune(2) == quote)):
			for i := 0; i < width; i++ {
				lx.advance()
			}
			return lx.src[begin:lx.off], nil
		default:
			lx.advance()
		}
	}
	return "", lx.syntaxError(start, "unterminated string literal")
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isAlnum(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
