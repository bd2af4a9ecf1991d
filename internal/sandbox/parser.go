package sandbox

import "fmt"

// reservedWords cannot appear where an identifier is expected.
var reservedWords = map[string]bool{
	"and": true, "as": true, "assert": true, "async": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true, "elif": true,
	"else": true, "except": true, "finally": true, "for": true, "from": true,
	"global": true, "if": true, "import": true, "in": true, "is": true,
	"nonlocal": true, "or": true, "pass": true, "raise": true, "return": true,
	"try": true, "while": true, "with": true,
}

var simpleStatements = map[string]nodeKind{
	"import":   kindImport,
	"from":     kindImportFrom,
	"return":   kindReturn,
	"pass":     kindPass,
	"break":    kindBreak,
	"continue": kindContinue,
	"raise":    kindRaise,
	"assert":   kindAssert,
	"del":      kindDelete,
	"global":   kindGlobal,
	"nonlocal": kindNonlocal,
}

var compoundStatements = map[string]nodeKind{
	"if":      kindIf,
	"elif":    kindIf,
	"else":    kindIf,
	"for":     kindFor,
	"while":   kindWhile,
	"def":     kindFunctionDef,
	"async":   kindAsyncFunctionDef,
	"class":   kindClassDef,
	"try":     kindTry,
	"except":  kindTry,
	"finally": kindTry,
	"with":    kindWith,
}

var augmentedOps = map[string]bool{
	"+=": true, "-=": true, "*=": true, "/=": true, "//=": true, "%=": true,
	"**=": true, "@=": true, "&=": true, "|=": true, "^=": true, "<<=": true, ">>=": true,
}

var compareOps = map[string]bool{
	"<": true, ">": true, "==": true, ">=": true, "<=": true, "!=": true,
}

// bailout is raised with panic to unwind the recursive descent on the first
// error and recovered in parse.
type bailout struct {
	failure *Failure
}

type parser struct {
	tokens   []token
	i        int
	depth    int
	maxDepth int
	maxStmts int
}

// parse builds the untyped syntax tree for src.
func parse(src string, limits Limits) (stmts []*syntaxNode, failure *Failure) {
	tokens, f := tokenize(src)
	if f != nil {
		return nil, f
	}
	p := &parser{tokens: tokens, maxDepth: limits.MaxDepth, maxStmts: limits.MaxStatements}
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			stmts, failure = nil, b.failure
		}
	}()
	return p.parseProgram(), nil
}

func (p *parser) peek() token {
	return p.tokens[p.i]
}

func (p *parser) peekAt(ahead int) token {
	if p.i+ahead >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.i+ahead]
}

func (p *parser) consume() token {
	tok := p.tokens[p.i]
	if tok.typ != tokEOF {
		p.i++
	}
	return tok
}

func (p *parser) fail(pos Pos, format string, args ...any) {
	panic(bailout{failure: &Failure{Kind: FailureSyntax, Detail: fmt.Sprintf(format, args...), Pos: pos}})
}

func (p *parser) expect(op string) token {
	tok := p.peek()
	if !tok.is(op) {
		p.fail(tok.pos, "expected %q, found %s", op, tok.describe())
	}
	return p.consume()
}

func (p *parser) enter(pos Pos) {
	p.depth++
	if p.maxDepth > 0 && p.depth > p.maxDepth {
		panic(bailout{failure: &Failure{
			Kind:   FailureLimitExceeded,
			Detail: fmt.Sprintf("expression nesting deeper than %d", p.maxDepth),
			Pos:    pos,
		}})
	}
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) atStatementEnd() bool {
	tok := p.peek()
	return tok.typ == tokNewline || tok.typ == tokEOF || tok.is(";")
}

func (p *parser) parseProgram() []*syntaxNode {
	var stmts []*syntaxNode
	for {
		for p.peek().typ == tokNewline || p.peek().is(";") {
			p.consume()
		}
		tok := p.peek()
		if tok.typ == tokEOF {
			return stmts
		}
		if tok.lineStart && tok.pos.Col > 1 {
			p.fail(tok.pos, "unexpected indent")
		}
		if p.maxStmts > 0 && len(stmts) >= p.maxStmts {
			panic(bailout{failure: &Failure{
				Kind:   FailureLimitExceeded,
				Detail: fmt.Sprintf("more than %d statements", p.maxStmts),
				Pos:    tok.pos,
			}})
		}
		stmts = append(stmts, p.parseStatement())
		// Block statements stop at the first token of the next line.
		if !p.atStatementEnd() && !p.peek().lineStart {
			p.fail(p.peek().pos, "unexpected %s", p.peek().describe())
		}
	}
}

func (p *parser) parseStatement() *syntaxNode {
	tok := p.peek()
	if tok.typ == tokName {
		if kind, ok := simpleStatements[tok.text]; ok {
			return p.skipSimple(kind)
		}
		if kind, ok := compoundStatements[tok.text]; ok {
			return p.skipCompound(kind)
		}
		if tok.text == "match" && p.lineEndsWithColon() {
			return p.skipCompound(kindMatch)
		}
	}
	if tok.is("@") {
		return p.skipSimple(kindDecorator)
	}

	first := p.parseExprList()
	next := p.peek()
	switch {
	case next.is("="):
		parts := []*syntaxNode{first}
		for p.peek().is("=") {
			p.consume()
			parts = append(parts, p.parseExprList())
		}
		return newNode(kindAssign, first.pos, parts...)
	case next.typ == tokOp && augmentedOps[next.text]:
		p.consume()
		node := newNode(kindAugAssign, first.pos, first, p.parseExprList())
		node.op = next.text
		return node
	case next.is(":"):
		p.skipSimple(kindAnnAssign)
		return newNode(kindAnnAssign, first.pos, first)
	}
	return newNode(kindExprStmt, first.pos, first)
}

// skipSimple consumes a statement that is recognised only by its keyword.
func (p *parser) skipSimple(kind nodeKind) *syntaxNode {
	start := p.peek()
	for !p.atStatementEnd() {
		p.consume()
	}
	return &syntaxNode{kind: kind, pos: start.pos, text: start.text}
}

func (p *parser) lineEndsWithColon() bool {
	var last token
	for j := p.i; j < len(p.tokens); j++ {
		tok := p.tokens[j]
		if tok.typ == tokNewline || tok.typ == tokEOF {
			break
		}
		last = tok
	}
	return last.is(":")
}

// skipCompound consumes a block statement header and its indented suite.
func (p *parser) skipCompound(kind nodeKind) *syntaxNode {
	header := p.peek()
	var last token
	for p.peek().typ != tokNewline && p.peek().typ != tokEOF {
		last = p.consume()
	}
	if last.is(":") {
		p.consume()
		next := p.peek()
		if next.typ == tokEOF || !next.lineStart || next.pos.Col <= header.pos.Col {
			p.fail(next.pos, "expected an indented block after %q", header.text)
		}
	}
	for {
		next := p.peek()
		if next.typ == tokNewline {
			p.consume()
			continue
		}
		if next.typ == tokEOF || !next.lineStart || next.pos.Col <= header.pos.Col {
			break
		}
		for p.peek().typ != tokNewline && p.peek().typ != tokEOF {
			p.consume()
		}
	}
	return &syntaxNode{kind: kind, pos: header.pos, text: header.text}
}

// skipBalanced consumes tokens up to and including the bracket closing the
// one just consumed. It reports whether a comprehension "for" appeared at
// the outer level.
func (p *parser) skipBalanced() (sawFor bool) {
	depth := 1
	for depth > 0 {
		tok := p.consume()
		switch {
		case tok.typ == tokEOF:
			p.fail(tok.pos, "unexpected end of input inside brackets")
		case tok.is("(") || tok.is("[") || tok.is("{"):
			depth++
		case tok.is(")") || tok.is("]") || tok.is("}"):
			depth--
		case depth == 1 && tok.keyword("for"):
			sawFor = true
		}
	}
	return sawFor
}

func canStartExpr(tok token) bool {
	switch tok.typ {
	case tokNumber, tokString:
		return true
	case tokName:
		return !reservedWords[tok.text] || tok.text == "not"
	case tokOp:
		switch tok.text {
		case "(", "[", "{", "-", "+", "~", "*", "...":
			return true
		}
	}
	return false
}

func (p *parser) parseExprList() *syntaxNode {
	first := p.parseExpr()
	if !p.peek().is(",") {
		return first
	}
	items := []*syntaxNode{first}
	for p.peek().is(",") {
		p.consume()
		if !canStartExpr(p.peek()) {
			break
		}
		items = append(items, p.parseExpr())
	}
	return newNode(kindTuple, first.pos, items...)
}

func (p *parser) parseExpr() *syntaxNode {
	tok := p.peek()
	p.enter(tok.pos)
	defer p.leave()

	switch {
	case tok.keyword("lambda"):
		p.consume()
		for !p.peek().is(":") {
			if p.atStatementEnd() {
				p.fail(p.peek().pos, "expected ':' in lambda")
			}
			p.consume()
		}
		p.consume()
		return newNode(kindLambda, tok.pos, p.parseExpr())
	case tok.keyword("yield"):
		p.consume()
		if p.peek().keyword("from") {
			p.consume()
		}
		node := newNode(kindYield, tok.pos)
		if canStartExpr(p.peek()) {
			node.children = append(node.children, p.parseExprList())
		}
		return node
	case tok.is("*"):
		p.consume()
		return newNode(kindStarred, tok.pos, p.parseOr())
	}

	cond := p.parseOr()
	switch {
	case p.peek().keyword("if"):
		p.consume()
		test := p.parseOr()
		if !p.peek().keyword("else") {
			p.fail(p.peek().pos, "expected 'else' in conditional expression")
		}
		p.consume()
		return newNode(kindIfExp, cond.pos, cond, test, p.parseExpr())
	case p.peek().is(":="):
		p.consume()
		return newNode(kindNamedExpr, cond.pos, cond, p.parseExpr())
	}
	return cond
}

func (p *parser) parseOr() *syntaxNode {
	left := p.parseAnd()
	for p.peek().keyword("or") {
		p.consume()
		left = newNode(kindBoolOp, left.pos, left, p.parseAnd())
	}
	return left
}

func (p *parser) parseAnd() *syntaxNode {
	left := p.parseNot()
	for p.peek().keyword("and") {
		p.consume()
		left = newNode(kindBoolOp, left.pos, left, p.parseNot())
	}
	return left
}

func (p *parser) parseNot() *syntaxNode {
	tok := p.peek()
	if tok.keyword("not") {
		p.consume()
		p.enter(tok.pos)
		defer p.leave()
		node := newNode(kindUnaryOp, tok.pos, p.parseNot())
		node.op = "not"
		return node
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() *syntaxNode {
	left := p.parseBinary(0)
	for {
		tok := p.peek()
		switch {
		case tok.typ == tokOp && compareOps[tok.text]:
			p.consume()
		case tok.keyword("in"):
			p.consume()
		case tok.keyword("is"):
			p.consume()
			if p.peek().keyword("not") {
				p.consume()
			}
		case tok.keyword("not") && p.peekAt(1).keyword("in"):
			p.consume()
			p.consume()
		default:
			return left
		}
		left = newNode(kindCompare, left.pos, left, p.parseBinary(0))
	}
}

// binaryLevels lists left-associative operators from loosest to tightest.
var binaryLevels = [][]string{
	{"|"},
	{"^"},
	{"&"},
	{"<<", ">>"},
	{"+", "-"},
	{"*", "/", "//", "%", "@"},
}

func (p *parser) parseBinary(level int) *syntaxNode {
	if level == len(binaryLevels) {
		return p.parseFactor()
	}
	left := p.parseBinary(level + 1)
	for {
		tok := p.peek()
		if tok.typ != tokOp || !containsOp(binaryLevels[level], tok.text) {
			return left
		}
		p.consume()
		node := newNode(kindBinOp, tok.pos, left, p.parseBinary(level+1))
		node.op = tok.text
		left = node
	}
}

func containsOp(ops []string, op string) bool {
	for _, candidate := range ops {
		if candidate == op {
			return true
		}
	}
	return false
}

func (p *parser) parseFactor() *syntaxNode {
	tok := p.peek()
	if tok.is("-") || tok.is("+") || tok.is("~") {
		p.consume()
		p.enter(tok.pos)
		defer p.leave()
		node := newNode(kindUnaryOp, tok.pos, p.parseFactor())
		node.op = tok.text
		return node
	}
	return p.parsePower()
}

func (p *parser) parsePower() *syntaxNode {
	base := p.parseAwait()
	tok := p.peek()
	if !tok.is("**") {
		return base
	}
	p.consume()
	p.enter(tok.pos)
	defer p.leave()
	node := newNode(kindBinOp, tok.pos, base, p.parseFactor())
	node.op = "**"
	return node
}

func (p *parser) parseAwait() *syntaxNode {
	tok := p.peek()
	if tok.keyword("await") {
		p.consume()
		return newNode(kindAwait, tok.pos, p.parsePrimary())
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() *syntaxNode {
	node := p.parseAtom()
	for {
		tok := p.peek()
		switch {
		case tok.is("("):
			p.consume()
			p.skipBalanced()
			node = newNode(kindCall, node.pos, node)
		case tok.is("["):
			p.consume()
			p.skipBalanced()
			node = newNode(kindSubscript, node.pos, node)
		case tok.is("."):
			p.consume()
			attr := p.peek()
			if attr.typ != tokName {
				p.fail(attr.pos, "expected attribute name, found %s", attr.describe())
			}
			p.consume()
			node = newNode(kindAttribute, node.pos, node)
			node.text = attr.text
		default:
			return node
		}
	}
}

func (p *parser) parseAtom() *syntaxNode {
	tok := p.peek()
	switch tok.typ {
	case tokNumber:
		p.consume()
		return &syntaxNode{kind: kindConstant, pos: tok.pos, text: tok.text}
	case tokString:
		kind := kindConstant
		for p.peek().typ == tokString {
			s := p.consume()
			if isFormatString(s.text) {
				kind = kindJoinedStr
			}
		}
		return &syntaxNode{kind: kind, pos: tok.pos, text: tok.text}
	case tokName:
		switch {
		case tok.text == "True" || tok.text == "False" || tok.text == "None":
			p.consume()
			return &syntaxNode{kind: kindConstant, pos: tok.pos, text: tok.text}
		case reservedWords[tok.text]:
			p.fail(tok.pos, "invalid syntax near %q", tok.text)
		}
		p.consume()
		return &syntaxNode{kind: kindName, pos: tok.pos, text: tok.text}
	case tokOp:
		switch tok.text {
		case "(":
			return p.parseParen()
		case "[":
			p.consume()
			return p.parseSequence(tok, "]", kindList, kindListComp)
		case "{":
			p.consume()
			return p.parseBrace(tok)
		case "...":
			p.consume()
			return &syntaxNode{kind: kindConstant, pos: tok.pos, text: tok.text}
		}
	}
	p.fail(tok.pos, "invalid syntax near %s", tok.describe())
	return nil
}

func (p *parser) parseParen() *syntaxNode {
	open := p.consume()
	if p.peek().is(")") {
		p.consume()
		return newNode(kindTuple, open.pos)
	}
	first := p.parseExpr()
	switch {
	case p.peek().keyword("for"):
		p.skipBalanced()
		return newNode(kindGeneratorExp, open.pos)
	case p.peek().is(","):
		items := []*syntaxNode{first}
		for p.peek().is(",") {
			p.consume()
			if p.peek().is(")") {
				break
			}
			items = append(items, p.parseExpr())
		}
		p.expect(")")
		return newNode(kindTuple, open.pos, items...)
	}
	p.expect(")")
	return newNode(kindParen, open.pos, first)
}

func (p *parser) parseSequence(open token, closer string, kind, comp nodeKind) *syntaxNode {
	if p.peek().is(closer) {
		p.consume()
		return newNode(kind, open.pos)
	}
	first := p.parseExpr()
	if p.peek().keyword("for") {
		p.skipBalanced()
		return newNode(comp, open.pos)
	}
	items := []*syntaxNode{first}
	for p.peek().is(",") {
		p.consume()
		if p.peek().is(closer) {
			break
		}
		items = append(items, p.parseExpr())
	}
	p.expect(closer)
	return newNode(kind, open.pos, items...)
}

func (p *parser) parseBrace(open token) *syntaxNode {
	if p.peek().is("}") {
		p.consume()
		return newNode(kindDict, open.pos)
	}
	if p.peek().is("**") {
		p.skipBalanced()
		return newNode(kindDict, open.pos)
	}
	first := p.parseExpr()
	if p.peek().is(":") {
		if p.skipBalanced() {
			return newNode(kindDictComp, open.pos)
		}
		return newNode(kindDict, open.pos, first)
	}
	if p.peek().keyword("for") {
		p.skipBalanced()
		return newNode(kindSetComp, open.pos)
	}
	items := []*syntaxNode{first}
	for p.peek().is(",") {
		p.consume()
		if p.peek().is("}") {
			break
		}
		items = append(items, p.parseExpr())
	}
	p.expect("}")
	return newNode(kindSet, open.pos, items...)
}

func isFormatString(text string) bool {
	for i, r := range text {
		if r == '\'' || r == '"' {
			return false
		}
		if r == 'f' || r == 'F' {
			return i < 2
		}
	}
	return false
}
