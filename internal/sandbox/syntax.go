package sandbox

// nodeKind enumerates every surface construct the parser recognises. Only a
// handful of them are executable; lowering rejects the rest by name.
type nodeKind int

const (
	kindInvalid nodeKind = iota

	// Statements.
	kindAssign
	kindAugAssign
	kindAnnAssign
	kindExprStmt
	kindImport
	kindImportFrom
	kindIf
	kindFor
	kindWhile
	kindFunctionDef
	kindAsyncFunctionDef
	kindClassDef
	kindReturn
	kindPass
	kindBreak
	kindContinue
	kindRaise
	kindTry
	kindWith
	kindAssert
	kindDelete
	kindGlobal
	kindNonlocal
	kindDecorator
	kindMatch

	// Expressions.
	kindConstant
	kindName
	kindBinOp
	kindUnaryOp
	kindParen
	kindBoolOp
	kindCompare
	kindCall
	kindAttribute
	kindSubscript
	kindIfExp
	kindLambda
	kindList
	kindTuple
	kindDict
	kindSet
	kindListComp
	kindSetComp
	kindDictComp
	kindGeneratorExp
	kindStarred
	kindNamedExpr
	kindYield
	kindAwait
	kindJoinedStr
)

var kindNames = map[nodeKind]string{
	kindAssign:           "Assign",
	kindAugAssign:        "AugAssign",
	kindAnnAssign:        "AnnAssign",
	kindExprStmt:         "Expr",
	kindImport:           "Import",
	kindImportFrom:       "ImportFrom",
	kindIf:               "If",
	kindFor:              "For",
	kindWhile:            "While",
	kindFunctionDef:      "FunctionDef",
	kindAsyncFunctionDef: "AsyncFunctionDef",
	kindClassDef:         "ClassDef",
	kindReturn:           "Return",
	kindPass:             "Pass",
	kindBreak:            "Break",
	kindContinue:         "Continue",
	kindRaise:            "Raise",
	kindTry:              "Try",
	kindWith:             "With",
	kindAssert:           "Assert",
	kindDelete:           "Delete",
	kindGlobal:           "Global",
	kindNonlocal:         "Nonlocal",
	kindDecorator:        "Decorator",
	kindMatch:            "Match",
	kindConstant:         "Constant",
	kindName:             "Name",
	kindBinOp:            "BinOp",
	kindUnaryOp:          "UnaryOp",
	kindParen:            "Paren",
	kindBoolOp:           "BoolOp",
	kindCompare:          "Compare",
	kindCall:             "Call",
	kindAttribute:        "Attribute",
	kindSubscript:        "Subscript",
	kindIfExp:            "IfExp",
	kindLambda:           "Lambda",
	kindList:             "List",
	kindTuple:            "Tuple",
	kindDict:             "Dict",
	kindSet:              "Set",
	kindListComp:         "ListComp",
	kindSetComp:          "SetComp",
	kindDictComp:         "DictComp",
	kindGeneratorExp:     "GeneratorExp",
	kindStarred:          "Starred",
	kindNamedExpr:        "NamedExpr",
	kindYield:            "Yield",
	kindAwait:            "Await",
	kindJoinedStr:        "JoinedStr",
}

func (k nodeKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Invalid"
}

// Operator names follow the conventional AST spelling so diagnostics read
// the same as what code generators are used to.
var binaryOpNames = map[string]string{
	"+":  "Add",
	"-":  "Sub",
	"*":  "Mult",
	"/":  "Div",
	"//": "FloorDiv",
	"%":  "Mod",
	"**": "Pow",
	"@":  "MatMult",
	"<<": "LShift",
	">>": "RShift",
	"&":  "BitAnd",
	"|":  "BitOr",
	"^":  "BitXor",
}

var unaryOpNames = map[string]string{
	"-":   "USub",
	"+":   "UAdd",
	"~":   "Invert",
	"not": "Not",
}

// syntaxNode is the untyped tree produced by the parser. It is never
// evaluated directly.
type syntaxNode struct {
	kind nodeKind
	pos  Pos
	// op is the operator token for BinOp, UnaryOp and AugAssign.
	op string
	// text is the identifier or literal source text.
	text     string
	children []*syntaxNode
}

func newNode(kind nodeKind, pos Pos, children ...*syntaxNode) *syntaxNode {
	return &syntaxNode{kind: kind, pos: pos, children: children}
}
