// Package syntax defines the parsed tree the detector consumes.
//
// The node set is closed: walkers dispatch with a type switch over the
// variants below, and AllKinds lists every one of them so tests can check
// that a walker handles them all.
package syntax

// Pos is a source position. Lines and columns are 1-based.
type Pos struct {
	Line    int
	Col     int
	EndLine int
}

// Node is implemented by every tree node.
type Node interface {
	Position() Pos
	node()
}

// Base is embedded by every node.
type Base struct {
	P Pos
}

func (b Base) Position() Pos { return b.P }
func (Base) node()           {}

// At returns a Base positioned at p.
func At(p Pos) Base { return Base{P: p} }

// Comment is a source comment kept for line-level exclusions.
type Comment struct {
	Line int
	Col  int
	Text string
}

// Module is the root of a file's tree.
type Module struct {
	Base
	Body     []Node
	Comments []Comment
	// HasErrors is set when the parser recovered from syntax errors.
	HasErrors bool
}

// Alias is one name of an import statement.
type Alias struct {
	Base
	Name   string
	AsName string
}

type Import struct {
	Base
	Names []*Alias
}

type ImportFrom struct {
	Base
	Module string
	Level  int
	Names  []*Alias
	Star   bool
}

// ParamKind distinguishes the parameter forms.
type ParamKind int

const (
	ParamPlain ParamKind = iota
	ParamVarArgs
	ParamKwArgs
	// ParamPosOnlyMarker is the bare "/" separator.
	ParamPosOnlyMarker
	// ParamKwOnlyMarker is the bare "*" separator.
	ParamKwOnlyMarker
	// ParamTuple is a parenthesized "(a, b)" parameter.
	ParamTuple
)

type Param struct {
	Base
	Name       string
	ParamKind  ParamKind
	Annotation Node
	Default    Node
}

type FunctionDef struct {
	Base
	Name       string
	Async      bool
	TypeParams bool
	Params     []*Param
	Returns    Node
	Decorators []Node
	Body       []Node
}

type ClassDef struct {
	Base
	Name       string
	TypeParams bool
	Bases      []Node
	Keywords   []*Keyword
	Decorators []Node
	Body       []Node
}

type Lambda struct {
	Base
	Params []*Param
	Body   Node
}

// Assign covers plain, augmented and annotated assignments.
type Assign struct {
	Base
	Targets    []Node
	Value      Node
	Annotation Node
	// Op is "=" for plain assignments and the operator otherwise ("+=").
	Op string
}

type TypeAlias struct {
	Base
	Name  Node
	Value Node
}

type ExprStmt struct {
	Base
	Value Node
}

type If struct {
	Base
	Test Node
	Body []Node
	Else []Node
}

type For struct {
	Base
	Async  bool
	Target Node
	Iter   Node
	Body   []Node
	Else   []Node
}

type While struct {
	Base
	Test Node
	Body []Node
	Else []Node
}

type WithItem struct {
	Base
	Context Node
	Target  Node
}

type With struct {
	Base
	Async bool
	Items []*WithItem
	Body  []Node
}

type ExceptHandler struct {
	Base
	Type Node
	Name string
	Body []Node
	// Group is set for "except*" clauses.
	Group bool
	// Legacy is set for the "except E, name:" form.
	Legacy bool
}

type Try struct {
	Base
	Body     []Node
	Handlers []*ExceptHandler
	Else     []Node
	Finally  []Node
}

type MatchCase struct {
	Base
	Pattern Node
	Guard   Node
	Body    []Node
}

type Match struct {
	Base
	Subject Node
	Cases   []*MatchCase
}

// Print is the statement form of print.
type Print struct {
	Base
	Values []Node
	// Dest is the ">>file" target, when given.
	Dest Node
}

// Exec is the statement form of exec.
type Exec struct {
	Base
	Code    Node
	Globals []Node
}

type Raise struct {
	Base
	Exc   Node
	Cause Node
	// Legacy is set for the "raise E, V" form; Exc then holds the tuple.
	Legacy bool
}

type Return struct {
	Base
	Value Node
}

type Delete struct {
	Base
	Targets []Node
}

type Assert struct {
	Base
	Test Node
	Msg  Node
}

// Scope covers global and nonlocal declarations.
type Scope struct {
	Base
	Nonlocal bool
	Names    []string
}

// KeywordStmt is a bare keyword statement: pass, break or continue.
type KeywordStmt struct {
	Base
	Word string
}

type Name struct {
	Base
	ID string
}

type Attribute struct {
	Base
	Value Node
	Attr  string
}

type Keyword struct {
	Base
	// Arg is empty for "**kwargs" unpacking.
	Arg   string
	Value Node
}

type Call struct {
	Base
	Func     Node
	Args     []Node
	Keywords []*Keyword
}

type Starred struct {
	Base
	Value  Node
	Double bool
}

// Str is a string literal or one part of an implicitly concatenated one.
type Str struct {
	Base
	Prefix string
	Value  string
	// Interpolations holds the expressions of an f-string.
	Interpolations []*Interpolation
}

type Interpolation struct {
	Base
	Expr Node
	// SelfDoc is set for the "{expr=}" form.
	SelfDoc bool
}

type Num struct {
	Base
	Text string
}

// Constant covers True, False, None and the ellipsis.
type Constant struct {
	Base
	Value string
}

type BinOp struct {
	Base
	Op    string
	Left  Node
	Right Node
}

type BoolOp struct {
	Base
	Op     string
	Values []Node
}

type Compare struct {
	Base
	Ops   []string
	Exprs []Node
}

type UnaryOp struct {
	Base
	Op      string
	Operand Node
}

type Subscript struct {
	Base
	Value Node
	Index []Node
}

type Slice struct {
	Base
	Lower Node
	Upper Node
	Step  Node
}

type IfExp struct {
	Base
	Test Node
	Body Node
	Else Node
}

// Repr is the backtick form of repr().
type Repr struct {
	Base
	Value Node
}

type Await struct {
	Base
	Value Node
}

type Yield struct {
	Base
	Value Node
	From  bool
}

type NamedExpr struct {
	Base
	Target Node
	Value  Node
}

// CollectionKind names the literal display types.
type CollectionKind string

const (
	ListKind  CollectionKind = "list"
	TupleKind CollectionKind = "tuple"
	SetKind   CollectionKind = "set"
	DictKind  CollectionKind = "dict"
)

// Collection is a list, tuple, set or dict display. Dict entries are
// stored as Pair nodes or double Starred nodes.
type Collection struct {
	Base
	Type  CollectionKind
	Elems []Node
}

type Pair struct {
	Base
	Key   Node
	Value Node
}

type ComprehensionClause struct {
	Base
	Async  bool
	Target Node
	Iter   Node
	Ifs    []Node
}

// Comprehension covers list, set and dict comprehensions and generator
// expressions (Type is empty for generators).
type Comprehension struct {
	Base
	Type    CollectionKind
	Elem    Node
	Clauses []*ComprehensionClause
}

// Opaque is a construct the parser does not model. Its children are still
// walked.
type Opaque struct {
	Base
	Type     string
	Children []Node
}
