package syntax

import (
	"fmt"
	"io"
	"reflect"
	"strings"
)

// AllKinds returns one zero value of every node variant.
func AllKinds() []Node {
	return []Node{
		&Module{}, &Alias{}, &Import{}, &ImportFrom{}, &Param{}, &FunctionDef{},
		&ClassDef{}, &Lambda{}, &Assign{}, &TypeAlias{}, &ExprStmt{}, &If{},
		&For{}, &While{}, &WithItem{}, &With{}, &ExceptHandler{}, &Try{},
		&MatchCase{}, &Match{}, &Print{}, &Exec{}, &Raise{}, &Return{},
		&Delete{}, &Assert{}, &Scope{}, &KeywordStmt{}, &Name{}, &Attribute{},
		&Keyword{}, &Call{}, &Starred{}, &Str{}, &Interpolation{}, &Num{},
		&Constant{}, &BinOp{}, &BoolOp{}, &Compare{}, &UnaryOp{}, &Subscript{},
		&Slice{}, &IfExp{}, &Repr{}, &Await{}, &Yield{}, &NamedExpr{},
		&Collection{}, &Pair{}, &ComprehensionClause{}, &Comprehension{},
		&Opaque{},
	}
}

// KindOf returns the variant name of n.
func KindOf(n Node) string {
	switch n := n.(type) {
	case *Module:
		return "Module"
	case *Alias:
		return "Alias"
	case *Import:
		return "Import"
	case *ImportFrom:
		return "ImportFrom"
	case *Param:
		return "Param"
	case *FunctionDef:
		return "FunctionDef"
	case *ClassDef:
		return "ClassDef"
	case *Lambda:
		return "Lambda"
	case *Assign:
		return "Assign"
	case *TypeAlias:
		return "TypeAlias"
	case *ExprStmt:
		return "ExprStmt"
	case *If:
		return "If"
	case *For:
		return "For"
	case *While:
		return "While"
	case *WithItem:
		return "WithItem"
	case *With:
		return "With"
	case *ExceptHandler:
		return "ExceptHandler"
	case *Try:
		return "Try"
	case *MatchCase:
		return "MatchCase"
	case *Match:
		return "Match"
	case *Print:
		return "Print"
	case *Exec:
		return "Exec"
	case *Raise:
		return "Raise"
	case *Return:
		return "Return"
	case *Delete:
		return "Delete"
	case *Assert:
		return "Assert"
	case *Scope:
		return "Scope"
	case *KeywordStmt:
		return "KeywordStmt"
	case *Name:
		return "Name"
	case *Attribute:
		return "Attribute"
	case *Keyword:
		return "Keyword"
	case *Call:
		return "Call"
	case *Starred:
		return "Starred"
	case *Str:
		return "Str"
	case *Interpolation:
		return "Interpolation"
	case *Num:
		return "Num"
	case *Constant:
		return "Constant"
	case *BinOp:
		return "BinOp"
	case *BoolOp:
		return "BoolOp"
	case *Compare:
		return "Compare"
	case *UnaryOp:
		return "UnaryOp"
	case *Subscript:
		return "Subscript"
	case *Slice:
		return "Slice"
	case *IfExp:
		return "IfExp"
	case *Repr:
		return "Repr"
	case *Await:
		return "Await"
	case *Yield:
		return "Yield"
	case *NamedExpr:
		return "NamedExpr"
	case *Collection:
		return "Collection"
	case *Pair:
		return "Pair"
	case *ComprehensionClause:
		return "ComprehensionClause"
	case *Comprehension:
		return "Comprehension"
	case *Opaque:
		return "Opaque"
	case nil:
		return "nil"
	default:
		panic(fmt.Sprintf("syntax: unknown node %T", n))
	}
}

// Children returns the direct children of n in source order. Nil children
// are skipped.
func Children(n Node) []Node {
	var out []Node
	add := func(ns ...Node) {
		for _, c := range ns {
			if !IsNil(c) {
				out = append(out, c)
			}
		}
	}
	params := func(ps []*Param) {
		for _, p := range ps {
			add(p)
		}
	}
	keywords := func(ks []*Keyword) {
		for _, k := range ks {
			add(k)
		}
	}

	switch n := n.(type) {
	case *Module:
		add(n.Body...)
	case *Import:
		for _, a := range n.Names {
			add(a)
		}
	case *ImportFrom:
		for _, a := range n.Names {
			add(a)
		}
	case *Param:
		add(n.Annotation, n.Default)
	case *FunctionDef:
		add(n.Decorators...)
		params(n.Params)
		add(n.Returns)
		add(n.Body...)
	case *ClassDef:
		add(n.Decorators...)
		add(n.Bases...)
		keywords(n.Keywords)
		add(n.Body...)
	case *Lambda:
		params(n.Params)
		add(n.Body)
	case *Assign:
		add(n.Targets...)
		add(n.Annotation, n.Value)
	case *TypeAlias:
		add(n.Name, n.Value)
	case *ExprStmt:
		add(n.Value)
	case *If:
		add(n.Test)
		add(n.Body...)
		add(n.Else...)
	case *For:
		add(n.Target, n.Iter)
		add(n.Body...)
		add(n.Else...)
	case *While:
		add(n.Test)
		add(n.Body...)
		add(n.Else...)
	case *WithItem:
		add(n.Context, n.Target)
	case *With:
		for _, it := range n.Items {
			add(it)
		}
		add(n.Body...)
	case *ExceptHandler:
		add(n.Type)
		add(n.Body...)
	case *Try:
		add(n.Body...)
		for _, h := range n.Handlers {
			add(h)
		}
		add(n.Else...)
		add(n.Finally...)
	case *MatchCase:
		add(n.Pattern, n.Guard)
		add(n.Body...)
	case *Match:
		add(n.Subject)
		for _, c := range n.Cases {
			add(c)
		}
	case *Print:
		add(n.Dest)
		add(n.Values...)
	case *Exec:
		add(n.Code)
		add(n.Globals...)
	case *Raise:
		add(n.Exc, n.Cause)
	case *Return:
		add(n.Value)
	case *Delete:
		add(n.Targets...)
	case *Assert:
		add(n.Test, n.Msg)
	case *Attribute:
		add(n.Value)
	case *Keyword:
		add(n.Value)
	case *Call:
		add(n.Func)
		add(n.Args...)
		keywords(n.Keywords)
	case *Starred:
		add(n.Value)
	case *Str:
		for _, in := range n.Interpolations {
			add(in)
		}
	case *Interpolation:
		add(n.Expr)
	case *BinOp:
		add(n.Left, n.Right)
	case *BoolOp:
		add(n.Values...)
	case *Compare:
		add(n.Exprs...)
	case *UnaryOp:
		add(n.Operand)
	case *Subscript:
		add(n.Value)
		add(n.Index...)
	case *Slice:
		add(n.Lower, n.Upper, n.Step)
	case *IfExp:
		add(n.Test, n.Body, n.Else)
	case *Repr:
		add(n.Value)
	case *Await:
		add(n.Value)
	case *Yield:
		add(n.Value)
	case *NamedExpr:
		add(n.Target, n.Value)
	case *Collection:
		add(n.Elems...)
	case *Pair:
		add(n.Key, n.Value)
	case *ComprehensionClause:
		add(n.Target, n.Iter)
		add(n.Ifs...)
	case *Comprehension:
		add(n.Elem)
		for _, c := range n.Clauses {
			add(c)
		}
	case *Opaque:
		add(n.Children...)
	case *Alias, *Scope, *KeywordStmt, *Name, *Num, *Constant:
	}
	return out
}

// IsNil reports whether n is nil or a typed nil pointer.
func IsNil(n Node) bool {
	if n == nil {
		return true
	}
	rv := reflect.ValueOf(n)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// Inspect walks the tree rooted at n depth-first, calling f for every
// node. If f returns false the node's children are skipped.
func Inspect(n Node, f func(Node) bool) {
	if IsNil(n) || !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

// Dump writes an indented outline of the tree to w.
func Dump(w io.Writer, n Node) error {
	var err error
	var walk func(n Node, depth int)
	walk = func(n Node, depth int) {
		if err != nil {
			return
		}
		p := n.Position()
		_, err = fmt.Fprintf(w, "%s%s%s @%d:%d\n", strings.Repeat("  ", depth), KindOf(n), detail(n), p.Line, p.Col)
		for _, c := range Children(n) {
			walk(c, depth+1)
		}
	}
	walk(n, 0)
	return err
}

func detail(n Node) string {
	switch n := n.(type) {
	case *Name:
		return " " + n.ID
	case *Attribute:
		return " ." + n.Attr
	case *Alias:
		if n.AsName != "" {
			return " " + n.Name + " as " + n.AsName
		}
		return " " + n.Name
	case *ImportFrom:
		return " " + strings.Repeat(".", n.Level) + n.Module
	case *FunctionDef:
		return " " + n.Name
	case *ClassDef:
		return " " + n.Name
	case *Str:
		return " " + n.Prefix + "'...'"
	case *Num:
		return " " + n.Text
	case *Constant:
		return " " + n.Value
	case *BinOp:
		return " " + n.Op
	case *Keyword:
		return " " + n.Arg
	case *Opaque:
		return " " + n.Type
	}
	return ""
}
