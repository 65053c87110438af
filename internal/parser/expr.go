package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/gnolang/minver/internal/syntax"
)

// expr converts an expression node. A nil node converts to a nil Node.
func (c *converter) expr(n *sitter.Node) syntax.Node {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier":
		return &syntax.Name{Base: c.base(n), ID: c.text(n)}
	case "attribute":
		return &syntax.Attribute{
			Base:  c.base(n),
			Value: c.expr(field(n, "object")),
			Attr:  c.text(field(n, "attribute")),
		}
	case "call":
		call := &syntax.Call{Base: c.base(n), Func: c.expr(field(n, "function"))}
		args := field(n, "arguments")
		if args != nil && args.Type() == "generator_expression" {
			call.Args = []syntax.Node{c.comprehension(args, "")}
		} else {
			call.Args, call.Keywords = c.arguments(args)
		}
		return call
	case "string":
		return c.str(n)
	case "concatenated_string":
		o := &syntax.Opaque{Base: c.base(n), Type: n.Type()}
		for _, ch := range named(n) {
			o.Children = append(o.Children, c.str(ch))
		}
		return o
	case "integer", "float":
		return &syntax.Num{Base: c.base(n), Text: c.text(n)}
	case "true":
		return &syntax.Constant{Base: c.base(n), Value: "True"}
	case "false":
		return &syntax.Constant{Base: c.base(n), Value: "False"}
	case "none":
		return &syntax.Constant{Base: c.base(n), Value: "None"}
	case "ellipsis":
		return &syntax.Constant{Base: c.base(n), Value: "..."}
	case "binary_operator":
		return &syntax.BinOp{
			Base:  c.base(n),
			Op:    c.operator(n),
			Left:  c.expr(field(n, "left")),
			Right: c.expr(field(n, "right")),
		}
	case "boolean_operator":
		return &syntax.BoolOp{
			Base:   c.base(n),
			Op:     c.operator(n),
			Values: []syntax.Node{c.expr(field(n, "left")), c.expr(field(n, "right"))},
		}
	case "not_operator":
		return &syntax.UnaryOp{Base: c.base(n), Op: "not", Operand: c.expr(field(n, "argument"))}
	case "unary_operator":
		return &syntax.UnaryOp{Base: c.base(n), Op: c.operator(n), Operand: c.expr(field(n, "argument"))}
	case "comparison_operator":
		cmp := &syntax.Compare{Base: c.base(n)}
		for i := 0; i < int(n.ChildCount()); i++ {
			ch := n.Child(i)
			if ch == nil || ch.Type() == "comment" {
				continue
			}
			if ch.IsNamed() {
				cmp.Exprs = append(cmp.Exprs, c.expr(ch))
			} else {
				cmp.Ops = append(cmp.Ops, ch.Type())
			}
		}
		return cmp
	case "subscript":
		args := named(n)
		sub := &syntax.Subscript{Base: c.base(n), Value: c.expr(field(n, "value"))}
		for _, a := range args[1:] {
			sub.Index = append(sub.Index, c.expr(a))
		}
		return sub
	case "slice":
		return c.slice(n)
	case "conditional_expression":
		args := named(n)
		if len(args) != 3 {
			return c.opaque(n)
		}
		return &syntax.IfExp{Base: c.base(n), Body: c.expr(args[0]), Test: c.expr(args[1]), Else: c.expr(args[2])}
	case "await":
		a := &syntax.Await{Base: c.base(n)}
		if args := named(n); len(args) > 0 {
			a.Value = c.expr(args[0])
		}
		return a
	case "yield":
		y := &syntax.Yield{Base: c.base(n), From: hasToken(n, "from")}
		if args := named(n); len(args) > 0 {
			y.Value = c.expr(args[0])
		}
		return y
	case "named_expression":
		return &syntax.NamedExpr{
			Base:   c.base(n),
			Target: c.expr(field(n, "name")),
			Value:  c.expr(field(n, "value")),
		}
	case "lambda":
		return &syntax.Lambda{
			Base:   c.base(n),
			Params: c.params(field(n, "parameters")),
			Body:   c.expr(field(n, "body")),
		}
	case "list", "list_pattern":
		return c.collection(n, syntax.ListKind, named(n))
	case "tuple":
		if c.reprs[n.StartByte()] {
			return c.repr(n)
		}
		return c.collection(n, syntax.TupleKind, named(n))
	case "tuple_pattern", "expression_list", "pattern_list":
		return c.collection(n, syntax.TupleKind, named(n))
	case "set":
		return c.collection(n, syntax.SetKind, named(n))
	case "dictionary":
		return c.collection(n, syntax.DictKind, named(n))
	case "pair":
		return &syntax.Pair{Base: c.base(n), Key: c.expr(field(n, "key")), Value: c.expr(field(n, "value"))}
	case "list_splat", "list_splat_pattern", "parenthesized_list_splat":
		return c.starred(n, false)
	case "dictionary_splat", "dictionary_splat_pattern":
		return c.starred(n, true)
	case "parenthesized_expression":
		if c.reprs[n.StartByte()] {
			return c.repr(n)
		}
		if args := named(n); len(args) == 1 {
			return c.expr(args[0])
		}
		return c.opaque(n)
	case "list_comprehension":
		return c.comprehension(n, syntax.ListKind)
	case "set_comprehension":
		return c.comprehension(n, syntax.SetKind)
	case "dictionary_comprehension":
		return c.comprehension(n, syntax.DictKind)
	case "generator_expression":
		return c.comprehension(n, "")
	case "type":
		return c.typeExpr(n)
	case "keyword_argument":
		return &syntax.Keyword{Base: c.base(n), Arg: c.text(field(n, "name")), Value: c.expr(field(n, "value"))}
	case "assignment":
		// Only reached through unusual nesting, e.g. error recovery.
		return &syntax.Opaque{Base: c.base(n), Type: n.Type(), Children: []syntax.Node{c.assignment(n)}}
	}
	return c.opaque(n)
}

// repr converts a backtick expression, which the parser sees as the
// parenthesized form it was rewritten to.
func (c *converter) repr(n *sitter.Node) *syntax.Repr {
	r := &syntax.Repr{Base: c.base(n)}
	switch args := named(n); {
	case n.Type() == "tuple":
		r.Value = c.collection(n, syntax.TupleKind, args)
	case len(args) == 1:
		r.Value = c.expr(args[0])
	}
	return r
}

// operator returns the text of the "operator" field of n.
func (c *converter) operator(n *sitter.Node) string {
	if op := field(n, "operator"); op != nil {
		return op.Type()
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if ch := n.Child(i); ch != nil && !ch.IsNamed() {
			return ch.Type()
		}
	}
	return ""
}

// arguments converts an argument list into positional arguments and
// keywords. "**x" becomes a keyword without a name.
func (c *converter) arguments(n *sitter.Node) ([]syntax.Node, []*syntax.Keyword) {
	var args []syntax.Node
	var kws []*syntax.Keyword
	for _, ch := range named(n) {
		switch ch.Type() {
		case "keyword_argument":
			kws = append(kws, &syntax.Keyword{
				Base:  c.base(ch),
				Arg:   c.text(field(ch, "name")),
				Value: c.expr(field(ch, "value")),
			})
		case "dictionary_splat":
			var value syntax.Node
			if inner := named(ch); len(inner) > 0 {
				value = c.expr(inner[0])
			}
			kws = append(kws, &syntax.Keyword{Base: c.base(ch), Value: value})
		default:
			args = append(args, c.expr(ch))
		}
	}
	return args, kws
}

func (c *converter) starred(n *sitter.Node, double bool) *syntax.Starred {
	s := &syntax.Starred{Base: c.base(n), Double: double}
	if inner := named(n); len(inner) > 0 {
		s.Value = c.expr(inner[0])
	}
	return s
}

func (c *converter) collection(n *sitter.Node, kind syntax.CollectionKind, elems []*sitter.Node) *syntax.Collection {
	col := &syntax.Collection{Base: c.base(n), Type: kind}
	for _, e := range elems {
		col.Elems = append(col.Elems, c.expr(e))
	}
	return col
}

func (c *converter) comprehension(n *sitter.Node, kind syntax.CollectionKind) *syntax.Comprehension {
	comp := &syntax.Comprehension{Base: c.base(n), Type: kind, Elem: c.expr(field(n, "body"))}
	var last *syntax.ComprehensionClause
	for _, ch := range named(n) {
		switch ch.Type() {
		case "for_in_clause":
			last = &syntax.ComprehensionClause{
				Base:   c.base(ch),
				Async:  hasToken(ch, "async"),
				Target: c.expr(field(ch, "left")),
				Iter:   c.expr(field(ch, "right")),
			}
			comp.Clauses = append(comp.Clauses, last)
		case "if_clause":
			if last == nil {
				continue
			}
			if args := named(ch); len(args) > 0 {
				last.Ifs = append(last.Ifs, c.expr(args[0]))
			}
		}
	}
	return comp
}

func (c *converter) slice(n *sitter.Node) *syntax.Slice {
	s := &syntax.Slice{Base: c.base(n)}
	colons := 0
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		if ch == nil || ch.Type() == "comment" {
			continue
		}
		if !ch.IsNamed() {
			if ch.Type() == ":" {
				colons++
			}
			continue
		}
		switch colons {
		case 0:
			s.Lower = c.expr(ch)
		case 1:
			s.Upper = c.expr(ch)
		default:
			s.Step = c.expr(ch)
		}
	}
	return s
}

// str converts a single string literal. The prefix is everything before
// the opening quote.
func (c *converter) str(n *sitter.Node) *syntax.Str {
	text := c.text(n)
	q := strings.IndexAny(text, `'"`)
	if q < 0 {
		q = 0
	}
	s := &syntax.Str{Base: c.base(n), Prefix: text[:q], Value: unquote(text[q:])}
	for _, ch := range named(n) {
		if ch.Type() != "interpolation" {
			continue
		}
		in := &syntax.Interpolation{Base: c.base(ch), SelfDoc: hasToken(ch, "=")}
		expr := field(ch, "expression")
		if expr == nil {
			for _, a := range named(ch) {
				if t := a.Type(); t != "type_conversion" && t != "format_specifier" {
					expr = a
					break
				}
			}
		}
		in.Expr = c.expr(expr)
		s.Interpolations = append(s.Interpolations, in)
	}
	return s
}

// unquote strips the quotes of a literal body. Escapes are kept as
// written.
func unquote(body string) string {
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(body) >= 2*len(q) && strings.HasPrefix(body, q) && strings.HasSuffix(body, q) {
			return body[len(q) : len(body)-len(q)]
		}
	}
	return body
}
