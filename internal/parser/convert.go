package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/gnolang/minver/internal/syntax"
)

type converter struct {
	src []byte
	// reprs holds the offsets of backtick expressions rewritten to
	// parentheses.
	reprs map[uint32]bool
}

func (c *converter) base(n *sitter.Node) syntax.Base {
	s, e := n.StartPoint(), n.EndPoint()
	return syntax.At(syntax.Pos{
		Line:    int(s.Row) + 1,
		Col:     int(s.Column) + 1,
		EndLine: int(e.Row) + 1,
	})
}

func (c *converter) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(c.src)
}

// named returns the named children of n, comments excluded.
func named(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		ch := n.NamedChild(i)
		if ch != nil && ch.Type() != "comment" {
			out = append(out, ch)
		}
	}
	return out
}

// hasToken reports whether n has a direct anonymous child of type tok.
func hasToken(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		if ch != nil && !ch.IsNamed() && ch.Type() == tok {
			return true
		}
	}
	return false
}

func field(n *sitter.Node, name string) *sitter.Node {
	if n == nil {
		return nil
	}
	return n.ChildByFieldName(name)
}

func (c *converter) comments(root *sitter.Node) []syntax.Comment {
	var out []syntax.Comment
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "comment" {
			p := n.StartPoint()
			out = append(out, syntax.Comment{Line: int(p.Row) + 1, Col: int(p.Column) + 1, Text: c.text(n)})
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if ch := n.Child(i); ch != nil {
				walk(ch)
			}
		}
	}
	walk(root)
	return out
}

// block converts the statements of a module or block node.
func (c *converter) block(n *sitter.Node) []syntax.Node {
	var out []syntax.Node
	for _, ch := range named(n) {
		out = append(out, c.stmt(ch)...)
	}
	return out
}

// body converts the block stored in field of n.
func (c *converter) body(n *sitter.Node, name string) []syntax.Node {
	return c.block(field(n, name))
}

func (c *converter) stmt(n *sitter.Node) []syntax.Node {
	switch n.Type() {
	case "expression_statement":
		return []syntax.Node{c.expressionStatement(n)}
	case "import_statement":
		imp := &syntax.Import{Base: c.base(n)}
		for _, ch := range named(n) {
			imp.Names = append(imp.Names, c.alias(ch))
		}
		return []syntax.Node{imp}
	case "import_from_statement", "future_import_statement":
		return []syntax.Node{c.importFrom(n)}
	case "print_statement":
		p := &syntax.Print{Base: c.base(n)}
		for _, ch := range named(n) {
			if ch.Type() == "chevron" {
				if args := named(ch); len(args) > 0 {
					p.Dest = c.expr(args[0])
				}
				continue
			}
			p.Values = append(p.Values, c.expr(ch))
		}
		return []syntax.Node{p}
	case "exec_statement":
		e := &syntax.Exec{Base: c.base(n)}
		for i, ch := range named(n) {
			if i == 0 {
				e.Code = c.expr(ch)
				continue
			}
			e.Globals = append(e.Globals, c.expr(ch))
		}
		return []syntax.Node{e}
	case "function_definition":
		return []syntax.Node{c.functionDef(n, nil)}
	case "class_definition":
		return []syntax.Node{c.classDef(n, nil)}
	case "decorated_definition":
		var decorators []syntax.Node
		for _, ch := range named(n) {
			if ch.Type() == "decorator" {
				if args := named(ch); len(args) > 0 {
					decorators = append(decorators, c.expr(args[0]))
				}
			}
		}
		def := field(n, "definition")
		switch {
		case def == nil:
			return []syntax.Node{c.opaque(n)}
		case def.Type() == "class_definition":
			return []syntax.Node{c.classDef(def, decorators)}
		default:
			return []syntax.Node{c.functionDef(def, decorators)}
		}
	case "if_statement":
		return []syntax.Node{c.ifStatement(n)}
	case "for_statement":
		return []syntax.Node{&syntax.For{
			Base:   c.base(n),
			Async:  hasToken(n, "async"),
			Target: c.expr(field(n, "left")),
			Iter:   c.expr(field(n, "right")),
			Body:   c.body(n, "body"),
			Else:   c.elseBody(field(n, "alternative")),
		}}
	case "while_statement":
		return []syntax.Node{&syntax.While{
			Base: c.base(n),
			Test: c.expr(field(n, "condition")),
			Body: c.body(n, "body"),
			Else: c.elseBody(field(n, "alternative")),
		}}
	case "try_statement":
		return []syntax.Node{c.tryStatement(n)}
	case "with_statement":
		return []syntax.Node{c.withStatement(n)}
	case "match_statement":
		return []syntax.Node{c.matchStatement(n)}
	case "return_statement":
		r := &syntax.Return{Base: c.base(n)}
		if args := named(n); len(args) > 0 {
			r.Value = c.expr(args[0])
		}
		return []syntax.Node{r}
	case "delete_statement":
		d := &syntax.Delete{Base: c.base(n)}
		for _, ch := range named(n) {
			d.Targets = append(d.Targets, c.expr(ch))
		}
		return []syntax.Node{d}
	case "raise_statement":
		r := &syntax.Raise{Base: c.base(n), Cause: c.expr(field(n, "cause"))}
		if args := named(n); len(args) > 0 && (r.Cause == nil || len(args) > 1) {
			r.Exc = c.expr(args[0])
			r.Legacy = args[0].Type() == "expression_list"
		}
		return []syntax.Node{r}
	case "assert_statement":
		a := &syntax.Assert{Base: c.base(n)}
		args := named(n)
		if len(args) > 0 {
			a.Test = c.expr(args[0])
		}
		if len(args) > 1 {
			a.Msg = c.expr(args[1])
		}
		return []syntax.Node{a}
	case "global_statement", "nonlocal_statement":
		s := &syntax.Scope{Base: c.base(n), Nonlocal: n.Type() == "nonlocal_statement"}
		for _, ch := range named(n) {
			s.Names = append(s.Names, c.text(ch))
		}
		return []syntax.Node{s}
	case "pass_statement", "break_statement", "continue_statement":
		return []syntax.Node{&syntax.KeywordStmt{Base: c.base(n), Word: strings.TrimSuffix(n.Type(), "_statement")}}
	case "type_alias_statement":
		args := named(n)
		ta := &syntax.TypeAlias{Base: c.base(n)}
		if len(args) > 0 {
			ta.Name = c.expr(args[0])
			ta.Value = c.expr(args[len(args)-1])
		}
		return []syntax.Node{ta}
	case "block":
		return c.block(n)
	}
	return []syntax.Node{c.opaque(n)}
}

func (c *converter) expressionStatement(n *sitter.Node) syntax.Node {
	args := named(n)
	switch {
	case len(args) == 0:
		return c.opaque(n)
	case len(args) > 1:
		return &syntax.ExprStmt{Base: c.base(n), Value: c.collection(n, syntax.TupleKind, args)}
	}
	switch a := args[0]; a.Type() {
	case "assignment":
		return c.assignment(a)
	case "augmented_assignment":
		return &syntax.Assign{
			Base:    c.base(a),
			Targets: []syntax.Node{c.expr(field(a, "left"))},
			Value:   c.expr(field(a, "right")),
			Op:      c.text(field(a, "operator")),
		}
	default:
		return &syntax.ExprStmt{Base: c.base(n), Value: c.expr(a)}
	}
}

func (c *converter) assignment(n *sitter.Node) *syntax.Assign {
	as := &syntax.Assign{Base: c.base(n), Op: "=", Annotation: c.typeExpr(field(n, "type"))}
	for cur := n; cur != nil; {
		as.Targets = append(as.Targets, c.expr(field(cur, "left")))
		right := field(cur, "right")
		if right != nil && right.Type() == "assignment" {
			cur = right
			continue
		}
		as.Value = c.expr(right)
		cur = nil
	}
	return as
}

func (c *converter) alias(n *sitter.Node) *syntax.Alias {
	a := &syntax.Alias{Base: c.base(n)}
	if n.Type() == "aliased_import" {
		a.Name = c.text(field(n, "name"))
		a.AsName = c.text(field(n, "alias"))
		return a
	}
	a.Name = c.text(n)
	return a
}

func (c *converter) importFrom(n *sitter.Node) *syntax.ImportFrom {
	imp := &syntax.ImportFrom{Base: c.base(n)}
	args := named(n)
	if n.Type() == "future_import_statement" {
		imp.Module = "__future__"
	} else if len(args) > 0 {
		mod := args[0]
		args = args[1:]
		if mod.Type() == "relative_import" {
			for _, ch := range named(mod) {
				switch ch.Type() {
				case "import_prefix":
					imp.Level = len(strings.TrimSpace(c.text(ch)))
				case "dotted_name":
					imp.Module = c.text(ch)
				}
			}
		} else {
			imp.Module = c.text(mod)
		}
	}
	for _, ch := range args {
		switch ch.Type() {
		case "wildcard_import":
			imp.Star = true
		case "dotted_name", "aliased_import":
			imp.Names = append(imp.Names, c.alias(ch))
		}
	}
	return imp
}

func (c *converter) functionDef(n *sitter.Node, decorators []syntax.Node) *syntax.FunctionDef {
	return &syntax.FunctionDef{
		Base:       c.base(n),
		Name:       c.text(field(n, "name")),
		Async:      hasToken(n, "async"),
		TypeParams: field(n, "type_parameters") != nil,
		Params:     c.params(field(n, "parameters")),
		Returns:    c.typeExpr(field(n, "return_type")),
		Decorators: decorators,
		Body:       c.body(n, "body"),
	}
}

func (c *converter) classDef(n *sitter.Node, decorators []syntax.Node) *syntax.ClassDef {
	cd := &syntax.ClassDef{
		Base:       c.base(n),
		Name:       c.text(field(n, "name")),
		TypeParams: field(n, "type_parameters") != nil,
		Decorators: decorators,
		Body:       c.body(n, "body"),
	}
	args, kws := c.arguments(field(n, "superclasses"))
	cd.Bases = args
	cd.Keywords = kws
	return cd
}

func (c *converter) params(n *sitter.Node) []*syntax.Param {
	var out []*syntax.Param
	for _, ch := range named(n) {
		p := &syntax.Param{Base: c.base(ch)}
		switch ch.Type() {
		case "identifier":
			p.Name = c.text(ch)
		case "tuple_pattern", "list_pattern":
			p.ParamKind = syntax.ParamTuple
		case "keyword_separator":
			p.ParamKind = syntax.ParamKwOnlyMarker
		case "positional_separator":
			p.ParamKind = syntax.ParamPosOnlyMarker
		case "list_splat_pattern", "dictionary_splat_pattern":
			c.splatParam(p, ch)
		case "default_parameter":
			if name := field(ch, "name"); name != nil && name.Type() != "identifier" {
				p.ParamKind = syntax.ParamTuple
			} else {
				p.Name = c.text(name)
			}
			p.Default = c.expr(field(ch, "value"))
		case "typed_parameter":
			if inner := named(ch); len(inner) > 0 {
				if t := inner[0].Type(); t == "list_splat_pattern" || t == "dictionary_splat_pattern" {
					c.splatParam(p, inner[0])
				} else {
					p.Name = c.text(inner[0])
				}
			}
			p.Annotation = c.typeExpr(field(ch, "type"))
		case "typed_default_parameter":
			p.Name = c.text(field(ch, "name"))
			p.Annotation = c.typeExpr(field(ch, "type"))
			p.Default = c.expr(field(ch, "value"))
		}
		out = append(out, p)
	}
	return out
}

func (c *converter) splatParam(p *syntax.Param, n *sitter.Node) {
	p.ParamKind = syntax.ParamVarArgs
	if n.Type() == "dictionary_splat_pattern" {
		p.ParamKind = syntax.ParamKwArgs
	}
	if inner := named(n); len(inner) > 0 {
		p.Name = c.text(inner[0])
	}
}

// typeExpr unwraps the "type" node tree-sitter puts around annotations.
func (c *converter) typeExpr(n *sitter.Node) syntax.Node {
	if n == nil {
		return nil
	}
	if n.Type() == "type" {
		if inner := named(n); len(inner) == 1 {
			return c.expr(inner[0])
		}
		return c.opaque(n)
	}
	return c.expr(n)
}

func (c *converter) ifStatement(n *sitter.Node) *syntax.If {
	root := &syntax.If{
		Base: c.base(n),
		Test: c.expr(field(n, "condition")),
		Body: c.body(n, "consequence"),
	}
	cur := root
	for _, ch := range named(n) {
		switch ch.Type() {
		case "elif_clause":
			elif := &syntax.If{
				Base: c.base(ch),
				Test: c.expr(field(ch, "condition")),
				Body: c.body(ch, "consequence"),
			}
			cur.Else = []syntax.Node{elif}
			cur = elif
		case "else_clause":
			cur.Else = c.elseBody(ch)
		}
	}
	return root
}

func (c *converter) elseBody(n *sitter.Node) []syntax.Node {
	if n == nil {
		return nil
	}
	if b := field(n, "body"); b != nil {
		return c.block(b)
	}
	for _, ch := range named(n) {
		if ch.Type() == "block" {
			return c.block(ch)
		}
	}
	return nil
}

func (c *converter) tryStatement(n *sitter.Node) *syntax.Try {
	t := &syntax.Try{Base: c.base(n), Body: c.body(n, "body")}
	for _, ch := range named(n) {
		switch ch.Type() {
		case "except_clause", "except_group_clause":
			t.Handlers = append(t.Handlers, c.exceptClause(ch))
		case "else_clause":
			t.Else = c.elseBody(ch)
		case "finally_clause":
			t.Finally = c.elseBody(ch)
		}
	}
	return t
}

func (c *converter) exceptClause(n *sitter.Node) *syntax.ExceptHandler {
	h := &syntax.ExceptHandler{
		Base:  c.base(n),
		Group: n.Type() == "except_group_clause" || hasToken(n, "except*") || hasToken(n, "*"),
		// "except (A, B):" keeps its comma inside the tuple node.
		Legacy: hasToken(n, ","),
	}
	var exprs []*sitter.Node
	for _, ch := range named(n) {
		if ch.Type() == "block" {
			h.Body = c.block(ch)
			continue
		}
		exprs = append(exprs, ch)
	}
	if len(exprs) == 1 && exprs[0].Type() == "as_pattern" {
		inner := named(exprs[0])
		exprs = inner
		if len(inner) == 2 {
			exprs = []*sitter.Node{inner[0], asTarget(inner[1])}
		}
	}
	if len(exprs) > 0 {
		h.Type = c.expr(exprs[0])
	}
	if len(exprs) > 1 && exprs[1] != nil {
		h.Name = c.text(exprs[1])
	}
	return h
}

// asTarget unwraps the target node of an "as" pattern.
func asTarget(n *sitter.Node) *sitter.Node {
	if n != nil && n.Type() == "as_pattern_target" {
		if inner := named(n); len(inner) == 1 {
			return inner[0]
		}
	}
	return n
}

func (c *converter) withStatement(n *sitter.Node) *syntax.With {
	w := &syntax.With{Base: c.base(n), Async: hasToken(n, "async"), Body: c.body(n, "body")}
	var items func(n *sitter.Node)
	items = func(n *sitter.Node) {
		for _, ch := range named(n) {
			switch ch.Type() {
			case "with_clause":
				items(ch)
			case "with_item":
				w.Items = append(w.Items, c.withItem(ch))
			}
		}
	}
	items(n)
	return w
}

func (c *converter) withItem(n *sitter.Node) *syntax.WithItem {
	it := &syntax.WithItem{Base: c.base(n)}
	value := field(n, "value")
	if value == nil {
		if args := named(n); len(args) > 0 {
			value = args[0]
		}
	}
	if value != nil && value.Type() == "as_pattern" {
		inner := named(value)
		if len(inner) > 0 {
			it.Context = c.expr(inner[0])
		}
		if len(inner) > 1 {
			it.Target = c.expr(asTarget(inner[1]))
		}
		return it
	}
	it.Context = c.expr(value)
	it.Target = c.expr(asTarget(field(n, "alias")))
	return it
}

func (c *converter) matchStatement(n *sitter.Node) *syntax.Match {
	m := &syntax.Match{Base: c.base(n), Subject: c.expr(field(n, "subject"))}
	var cases func(n *sitter.Node)
	cases = func(n *sitter.Node) {
		for _, ch := range named(n) {
			switch ch.Type() {
			case "block":
				cases(ch)
			case "case_clause":
				m.Cases = append(m.Cases, c.caseClause(ch))
			}
		}
	}
	cases(n)
	return m
}

func (c *converter) caseClause(n *sitter.Node) *syntax.MatchCase {
	mc := &syntax.MatchCase{Base: c.base(n), Body: c.body(n, "consequence")}
	var patterns []syntax.Node
	for _, ch := range named(n) {
		switch ch.Type() {
		case "case_pattern":
			patterns = append(patterns, c.opaque(ch))
		case "if_clause":
			if args := named(ch); len(args) > 0 {
				mc.Guard = c.expr(args[0])
			}
		}
	}
	if len(patterns) == 1 {
		mc.Pattern = patterns[0]
	} else if len(patterns) > 1 {
		mc.Pattern = &syntax.Opaque{Base: c.base(n), Type: "case_patterns", Children: patterns}
	}
	if g := field(n, "guard"); g != nil && mc.Guard == nil {
		if args := named(g); len(args) > 0 {
			mc.Guard = c.expr(args[0])
		}
	}
	return mc
}

// opaque keeps an unmodeled node and converts its named children.
func (c *converter) opaque(n *sitter.Node) *syntax.Opaque {
	o := &syntax.Opaque{Base: c.base(n), Type: n.Type()}
	for _, ch := range named(n) {
		if isStatement(ch.Type()) {
			o.Children = append(o.Children, c.stmt(ch)...)
			continue
		}
		o.Children = append(o.Children, c.expr(ch))
	}
	return o
}

func isStatement(t string) bool {
	return strings.HasSuffix(t, "_statement") || strings.HasSuffix(t, "_definition") || t == "block"
}
