package sandbox

// Op is one of the seven binary operators the evaluator executes.
type Op int

// Binary operators. OpDiv is true division; OpFloorDiv and OpMod round
// toward negative infinity.
const (
	OpAdd      Op = iota + 1 // +
	OpSub                    // -
	OpMul                    // *
	OpDiv                    // /
	OpFloorDiv               // //
	OpMod                    // %
	OpPow                    // **
)

var opSymbols = map[Op]string{
	OpAdd:      "+",
	OpSub:      "-",
	OpMul:      "*",
	OpDiv:      "/",
	OpFloorDiv: "//",
	OpMod:      "%",
	OpPow:      "**",
}

// String returns the operator as written in source.
func (o Op) String() string {
	if s, ok := opSymbols[o]; ok {
		return s
	}
	return "?"
}

var allowedBinaryOps = map[string]Op{
	"+":  OpAdd,
	"-":  OpSub,
	"*":  OpMul,
	"/":  OpDiv,
	"//": OpFloorDiv,
	"%":  OpMod,
	"**": OpPow,
}

// Program is a validated arithmetic program. Every node in it is one of the
// closed set of Stmt and Expr implementations below, so evaluation never
// meets a construct it does not understand.
type Program struct {
	Stmts []Stmt
}

// Stmt is implemented by *Assign and *ExprStmt.
type Stmt interface {
	stmt()
	Position() Pos
}

// Expr is implemented by *Number, *Name, *Neg, *Binary and *Paren.
type Expr interface {
	expr()
	Position() Pos
}

// Assign binds the value of an expression to a name.
type Assign struct {
	Target string
	Value  Expr
	Pos    Pos
}

// ExprStmt is a bare expression; its value becomes the program value.
type ExprStmt struct {
	X   Expr
	Pos Pos
}

// Number is a numeric literal.
type Number struct {
	Value float64
	Pos   Pos
}

// Name reads a variable from the scope.
type Name struct {
	Ident string
	Pos   Pos
}

// Neg is unary negation.
type Neg struct {
	X   Expr
	Pos Pos
}

// Binary applies Op to two operands.
type Binary struct {
	Op    Op
	Left  Expr
	Right Expr
	Pos   Pos
}

// Paren is a parenthesized expression.
type Paren struct {
	X   Expr
	Pos Pos
}

func (*Assign) stmt()   {}
func (*ExprStmt) stmt() {}

func (*Number) expr() {}
func (*Name) expr()   {}
func (*Neg) expr()    {}
func (*Binary) expr() {}
func (*Paren) expr()  {}

func (s *Assign) Position() Pos   { return s.Pos }
func (s *ExprStmt) Position() Pos { return s.Pos }
func (e *Number) Position() Pos   { return e.Pos }
func (e *Name) Position() Pos     { return e.Pos }
func (e *Neg) Position() Pos      { return e.Pos }
func (e *Binary) Position() Pos   { return e.Pos }
func (e *Paren) Position() Pos    { return e.Pos }
