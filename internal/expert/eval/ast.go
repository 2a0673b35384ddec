package eval

// Node is one node of the parsed expression tree. The set of node types
// is closed: anything the parser cannot produce cannot be evaluated,
// which is what keeps user-authored rule text safe.
type Node interface {
	node()
}

// Literal is a constant: number, string, boolean or null.
type Literal struct {
	Val Value
}

// ListLit is a list literal, e.g. ['ART', 'Permiso Gremial'].
type ListLit struct {
	Elems []Node
}

// Ident resolves against the fact environment. Unknown identifiers
// evaluate to null rather than failing.
type Ident struct {
	Name string
}

// Call invokes an allow-listed builtin or a pre-registered callable
// from the environment. The callee is always a plain name.
type Call struct {
	Name string
	Args []Node
}

type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpPos
	OpNot
)

type Unary struct {
	Op UnaryOp
	X  Node
}

type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpAnd
	OpOr
)

type Binary struct {
	Op BinOp
	L  Node
	R  Node
}

type CmpOp int

const (
	CmpLT CmpOp = iota
	CmpLE
	CmpGT
	CmpGE
	CmpEQ
	CmpNE
	CmpIn
	CmpNotIn
)

// Compare holds a comparison chain: a < b < c keeps b evaluated once
// and means a<b and b<c, matching chained mathematical notation.
type Compare struct {
	First Node
	Ops   []CmpOp
	Rest  []Node
}

func (Literal) node() {}
func (ListLit) node() {}
func (Ident) node()   {}
func (Call) node()    {}
func (Unary) node()   {}
func (Binary) node()  {}
func (Compare) node() {}
