package detect

import (
	"fmt"
	"strings"

	"github.com/gnolang/minver/internal/exclusion"
	"github.com/gnolang/minver/internal/rules"
	"github.com/gnolang/minver/internal/syntax"
	"github.com/gnolang/minver/internal/types"
	"github.com/gnolang/minver/internal/version"
)

// Detect returns the requirement facts of every construct in tree.
func Detect(tree *syntax.Module, ctx *Context) []types.Requirement {
	facts, _ := Analyze(tree, ctx)
	return facts
}

// Analyze is Detect plus the advisory tips gathered along the way.
// It never fails on a structurally valid tree.
func Analyze(tree *syntax.Module, ctx *Context) ([]types.Requirement, []string) {
	if tree == nil || ctx == nil {
		return nil, nil
	}
	v := &visitor{
		ctx:   ctx,
		scope: collectScope(tree),
		novm:  exclusion.ParseComments(tree),
		seen:  make(map[string]bool),
	}
	v.visit(tree)
	return v.facts, v.tips
}

type funcState struct {
	async     bool
	generator bool
}

type visitor struct {
	ctx   *Context
	scope *scope
	novm  *exclusion.Scopes

	facts []types.Requirement
	tips  []string
	seen  map[string]bool

	conditional   int
	annotation    int
	subscript     int
	comprehension int
	target        int
	inFinally     bool
	funcs         []funcState
}

func exclusionKind(k rules.Kind) (exclusion.Kind, bool) {
	switch k {
	case rules.KindModule, rules.KindMember, rules.KindAttr:
		return exclusion.Member, true
	case rules.KindKwarg:
		return exclusion.Kwarg, true
	case rules.KindEncoding:
		return exclusion.Encoding, true
	case rules.KindErrorHandler:
		return exclusion.ErrorHandler, true
	}
	return 0, false
}

// match emits the facts of every rule stored under kind:name. It reports
// whether any rule matched, even when the facts were then excluded.
func (v *visitor) match(n syntax.Node, kind rules.Kind, name string) bool {
	rs := v.ctx.DB.Lookup(rules.Key(kind, name))
	if len(rs) == 0 {
		return false
	}
	p := n.Position()
	if v.novm.Covers(p.Line) {
		return true
	}
	if ek, ok := exclusionKind(kind); ok && v.ctx.Exclusions.IsExcluded(name, ek) {
		return true
	}
	for _, r := range rs {
		v.emit(p, r)
	}
	return true
}

func (v *visitor) emit(p syntax.Pos, r rules.Rule) {
	key := fmt.Sprintf("%s|%s|%d:%d", r.Pattern(), r.Describe(), p.Line, p.Col)
	if v.seen[key] {
		return
	}
	v.seen[key] = true

	reqs := v.ctx.Backports.Effective(r)
	certain := !r.Uncertain && !(v.ctx.lax && v.conditional > 0)
	for _, f := range version.Families {
		m := reqs[f]
		if m.IsNone() {
			continue
		}
		v.facts = append(v.facts, types.Requirement{
			Family:      f,
			Minimum:     m,
			Certain:     certain,
			Line:        p.Line,
			Col:         p.Col,
			Identifier:  r.Name,
			Kind:        string(r.Kind),
			Description: r.Describe(),
		})
	}
}

func (v *visitor) construct(n syntax.Node, tag string) {
	v.match(n, rules.KindSyntax, tag)
}

func (v *visitor) tip(format string, args ...any) {
	t := fmt.Sprintf(format, args...)
	for _, o := range v.tips {
		if o == t {
			return
		}
	}
	v.tips = append(v.tips, t)
}

func (v *visitor) visitAll(ns []syntax.Node) {
	for _, n := range ns {
		v.visit(n)
	}
}

func (v *visitor) visit(n syntax.Node) {
	if syntax.IsNil(n) {
		return
	}
	switch n := n.(type) {
	case *syntax.Module:
		v.visitAll(n.Body)
	case *syntax.Alias:
		// Reported by the enclosing import.
	case *syntax.Import:
		for _, a := range n.Names {
			if a != nil {
				v.importModule(a, a.Name)
			}
		}
	case *syntax.ImportFrom:
		v.importFrom(n)
	case *syntax.Param:
		v.params([]*syntax.Param{n})
	case *syntax.FunctionDef:
		v.functionDef(n)
	case *syntax.ClassDef:
		v.classDef(n)
	case *syntax.Lambda:
		v.params(n.Params)
		v.body(funcState{}, func() { v.visit(n.Body) })
	case *syntax.Assign:
		v.assign(n)
	case *syntax.TypeAlias:
		v.construct(n, "type_alias_statement")
		v.visit(n.Value)
	case *syntax.ExprStmt:
		v.visit(n.Value)
	case *syntax.If:
		v.conditional++
		v.visit(n.Test)
		v.visitAll(n.Body)
		v.visitAll(n.Else)
		v.conditional--
	case *syntax.For:
		if n.Async {
			v.construct(n, "async_for")
		}
		v.asTarget(n.Target)
		v.visit(n.Iter)
		v.loop(n.Body)
		v.visitAll(n.Else)
	case *syntax.While:
		v.conditional++
		v.visit(n.Test)
		v.loop(n.Body)
		v.visitAll(n.Else)
		v.conditional--
	case *syntax.WithItem:
		v.visit(n.Context)
		v.asTarget(n.Target)
	case *syntax.With:
		if n.Async {
			v.construct(n, "async_with")
		} else {
			v.construct(n, "with_statement")
		}
		if len(n.Items) > 1 {
			v.construct(n, "multiple_context_managers")
		}
		v.conditional++
		for _, it := range n.Items {
			v.visit(it)
		}
		v.visitAll(n.Body)
		v.conditional--
	case *syntax.ExceptHandler:
		if n.Group {
			v.construct(n, "except_star")
		}
		if n.Legacy {
			v.construct(n, "except_comma")
		}
		v.visit(n.Type)
		v.visitAll(n.Body)
	case *syntax.Try:
		v.try(n)
	case *syntax.MatchCase:
		v.visit(n.Pattern)
		v.visit(n.Guard)
		v.visitAll(n.Body)
	case *syntax.Match:
		v.construct(n, "match_statement")
		v.visit(n.Subject)
		v.conditional++
		for _, c := range n.Cases {
			v.visit(c)
		}
		v.conditional--
	case *syntax.Print:
		v.construct(n, "print_statement")
		v.visit(n.Dest)
		v.visitAll(n.Values)
	case *syntax.Exec:
		v.construct(n, "exec_statement")
		v.visit(n.Code)
		v.visitAll(n.Globals)
	case *syntax.Raise:
		if !syntax.IsNil(n.Cause) {
			v.construct(n, "raise_from")
		}
		if n.Legacy {
			v.construct(n, "raise_comma")
		}
		v.visit(n.Exc)
		v.visit(n.Cause)
	case *syntax.Return:
		if fs, ok := v.currentFunc(); ok && fs.generator && !fs.async && !syntax.IsNil(n.Value) {
			v.construct(n, "return_in_generator")
		}
		v.visit(n.Value)
	case *syntax.Delete:
		v.visitAll(n.Targets)
	case *syntax.Assert:
		v.visit(n.Test)
		v.visit(n.Msg)
	case *syntax.Scope:
		if n.Nonlocal {
			v.construct(n, "nonlocal")
		}
	case *syntax.KeywordStmt:
		if n.Word == "continue" && v.inFinally {
			v.construct(n, "continue_in_finally")
		}
	case *syntax.Name:
		v.name(n)
	case *syntax.Attribute:
		v.attribute(n)
	case *syntax.Keyword:
		v.visit(n.Value)
	case *syntax.Call:
		v.call(n)
	case *syntax.Starred:
		v.visit(n.Value)
	case *syntax.Str:
		v.str(n)
	case *syntax.Interpolation:
		v.visit(n.Expr)
	case *syntax.Num:
		v.num(n)
	case *syntax.Constant:
		if n.Value == "..." && v.subscript == 0 {
			v.construct(n, "ellipsis_literal")
		}
	case *syntax.BinOp:
		v.binOp(n)
	case *syntax.BoolOp:
		v.conditional++
		v.visitAll(n.Values)
		v.conditional--
	case *syntax.Compare:
		for _, op := range n.Ops {
			if op == "<>" {
				v.construct(n, "not_equal_diamond")
				break
			}
		}
		v.visitAll(n.Exprs)
	case *syntax.UnaryOp:
		v.visit(n.Operand)
	case *syntax.Subscript:
		v.subscriptExpr(n)
	case *syntax.Slice:
		v.visit(n.Lower)
		v.visit(n.Upper)
		v.visit(n.Step)
	case *syntax.IfExp:
		v.construct(n, "conditional_expression")
		v.conditional++
		v.visit(n.Test)
		v.visit(n.Body)
		v.visit(n.Else)
		v.conditional--
	case *syntax.Repr:
		v.construct(n, "backtick_repr")
		v.visit(n.Value)
	case *syntax.Await:
		v.construct(n, "await")
		if v.comprehension > 0 {
			v.construct(n, "await_in_comprehension")
		}
		v.visit(n.Value)
	case *syntax.Yield:
		if n.From {
			v.construct(n, "yield_from")
		}
		v.visit(n.Value)
	case *syntax.NamedExpr:
		v.construct(n, "walrus")
		v.asTarget(n.Target)
		v.visit(n.Value)
	case *syntax.Collection:
		v.collection(n)
	case *syntax.Pair:
		v.visit(n.Key)
		v.visit(n.Value)
	case *syntax.ComprehensionClause:
		if n.Async {
			v.construct(n, "async_comprehension")
		}
		v.asTarget(n.Target)
		v.visit(n.Iter)
		v.visitAll(n.Ifs)
	case *syntax.Comprehension:
		switch n.Type {
		case syntax.SetKind:
			v.construct(n, "set_comprehension")
		case syntax.DictKind:
			v.construct(n, "dict_comprehension")
		case "":
			v.construct(n, "generator_expression")
		}
		v.comprehension++
		v.visit(n.Elem)
		for _, c := range n.Clauses {
			v.visit(c)
		}
		v.comprehension--
	case *syntax.Opaque:
		v.visitAll(n.Children)
	default:
		panic(fmt.Sprintf("detect: unhandled node %T", n))
	}
}

func (v *visitor) importModule(n syntax.Node, name string) {
	parts := strings.Split(name, ".")
	for i := range parts {
		v.match(n, rules.KindModule, strings.Join(parts[:i+1], "."))
	}
}

func (v *visitor) importFrom(n *syntax.ImportFrom) {
	if n.Level > 0 || n.Module == "" {
		return
	}
	v.importModule(n, n.Module)
	for _, a := range n.Names {
		if a == nil {
			continue
		}
		full := n.Module + "." + a.Name
		v.match(a, rules.KindModule, full)
		v.match(a, rules.KindMember, full)
	}
}

func (v *visitor) currentFunc() (funcState, bool) {
	if len(v.funcs) == 0 {
		return funcState{}, false
	}
	return v.funcs[len(v.funcs)-1], true
}

// body runs f as the body of a new function scope.
func (v *visitor) body(fs funcState, f func()) {
	savedFinally, savedComp := v.inFinally, v.comprehension
	v.inFinally, v.comprehension = false, 0
	v.funcs = append(v.funcs, fs)
	f()
	v.funcs = v.funcs[:len(v.funcs)-1]
	v.inFinally, v.comprehension = savedFinally, savedComp
}

func (v *visitor) loop(body []syntax.Node) {
	saved := v.inFinally
	v.inFinally = false
	v.visitAll(body)
	v.inFinally = saved
}

func (v *visitor) asTarget(n syntax.Node) {
	v.target++
	v.visit(n)
	v.target--
}

func (v *visitor) decorators(ds []syntax.Node, tag string) {
	for _, d := range ds {
		v.construct(d, tag)
		if !simpleDecorator(d) {
			v.construct(d, "relaxed_decorators")
		}
		v.visit(d)
	}
}

// simpleDecorator reports whether d is a dotted name, optionally called.
func simpleDecorator(d syntax.Node) bool {
	if c, ok := d.(*syntax.Call); ok {
		return dotted(c.Func)
	}
	return dotted(d)
}

func (v *visitor) functionDef(n *syntax.FunctionDef) {
	if n.Async {
		v.construct(n, "async_def")
	}
	v.decorators(n.Decorators, "function_decorators")
	if n.TypeParams {
		v.construct(n, "type_parameters")
	}
	v.params(n.Params)
	if !syntax.IsNil(n.Returns) {
		v.construct(n.Returns, "function_annotations")
		v.annotate(n.Returns)
	}
	fs := funcState{async: n.Async, generator: containsYield(n.Body)}
	if fs.async && fs.generator {
		v.construct(n, "async_generator")
	}
	v.body(fs, func() { v.visitAll(n.Body) })
}

func (v *visitor) classDef(n *syntax.ClassDef) {
	v.decorators(n.Decorators, "class_decorators")
	if n.TypeParams {
		v.construct(n, "type_parameters")
	}
	for _, kw := range n.Keywords {
		if kw != nil && kw.Arg != "" {
			v.construct(n, "class_keywords")
			break
		}
	}
	v.visitAll(n.Bases)
	for _, kw := range n.Keywords {
		v.visit(kw)
	}
	v.body(funcState{}, func() { v.visitAll(n.Body) })
}

func (v *visitor) params(ps []*syntax.Param) {
	afterVarArgs := false
	for _, p := range ps {
		if p == nil {
			continue
		}
		switch p.ParamKind {
		case syntax.ParamPosOnlyMarker:
			v.construct(p, "pos_only_params")
		case syntax.ParamKwOnlyMarker:
			v.construct(p, "kw_only_params")
			afterVarArgs = true
		case syntax.ParamVarArgs:
			afterVarArgs = true
		case syntax.ParamTuple:
			v.construct(p, "tuple_parameters")
		case syntax.ParamPlain:
			if afterVarArgs {
				v.construct(p, "kw_only_params")
			}
		}
		if !syntax.IsNil(p.Annotation) {
			v.construct(p, "function_annotations")
			v.annotate(p.Annotation)
		}
		v.visit(p.Default)
	}
}

// annotate visits an annotation. Unless annotations are evaluated only
// the fact that one is present counts.
func (v *visitor) annotate(n syntax.Node) {
	if syntax.IsNil(n) {
		return
	}
	if !v.ctx.evalAnnotations {
		if v.needsEvaluation(n) {
			v.tip("annotations are not analyzed; use --eval-annotations if they are evaluated at runtime")
		}
		return
	}
	v.annotation++
	v.visit(n)
	v.annotation--
}

// needsEvaluation reports whether an annotation holds constructs whose
// requirement only applies when it is evaluated.
func (v *visitor) needsEvaluation(n syntax.Node) bool {
	found := false
	syntax.Inspect(n, func(c syntax.Node) bool {
		switch c := c.(type) {
		case *syntax.Subscript:
			if v.builtinGeneric(c) {
				found = true
			}
		case *syntax.BinOp:
			if c.Op == "|" {
				found = true
			}
		}
		return !found
	})
	return found
}

func (v *visitor) assign(n *syntax.Assign) {
	if !syntax.IsNil(n.Annotation) {
		v.construct(n, "variable_annotations")
		v.annotate(n.Annotation)
	}
	switch n.Op {
	case "@=":
		v.construct(n, "matmul_assign")
	case "|=":
		if dictLike(n.Value) {
			v.construct(n, "dict_union_merge")
		}
	}
	for _, t := range n.Targets {
		if hasStarred(t) {
			v.construct(t, "starred_assignment")
			break
		}
	}
	v.target++
	v.visitAll(n.Targets)
	v.target--
	v.visit(n.Value)
}

func hasStarred(n syntax.Node) bool {
	switch n := n.(type) {
	case *syntax.Starred:
		return !n.Double
	case *syntax.Collection:
		for _, e := range n.Elems {
			if hasStarred(e) {
				return true
			}
		}
	}
	return false
}

func (v *visitor) try(n *syntax.Try) {
	if len(n.Handlers) > 0 && len(n.Finally) > 0 {
		v.construct(n, "try_except_finally")
	}
	v.conditional++
	v.visitAll(n.Body)
	for _, h := range n.Handlers {
		v.visit(h)
	}
	v.visitAll(n.Else)
	v.conditional--

	saved := v.inFinally
	v.inFinally = true
	v.visitAll(n.Finally)
	v.inFinally = saved
}

func (v *visitor) name(n *syntax.Name) {
	if _, ok := v.scope.aliases[n.ID]; ok {
		return
	}
	if v.scope.defined[n.ID] || v.target > 0 {
		return
	}
	v.match(n, rules.KindMember, n.ID)
}

func (v *visitor) attribute(n *syntax.Attribute) {
	q, k := v.scope.qualify(n)
	matched := false
	if k.known() {
		matched = v.match(n, rules.KindMember, q)
	}
	if !matched && !k.known() && v.target == 0 {
		v.match(n, rules.KindAttr, n.Attr)
	}
	v.visit(n.Value)
}

func (v *visitor) call(n *syntax.Call) {
	q, k := v.scope.qualify(n.Func)
	if k.known() || k == rootFree {
		for _, kw := range n.Keywords {
			if kw != nil && kw.Arg != "" {
				v.match(kw, rules.KindKwarg, rules.KwargName(q, kw.Arg))
			}
		}
	}
	if k == rootFree {
		switch {
		case q == "super" && len(n.Args) == 0 && len(n.Keywords) == 0:
			v.construct(n, "super_no_args")
		case q == "pow" && len(n.Args) == 3 && negative(n.Args[1]):
			v.construct(n, "modular_inverse_pow")
		}
	}

	single, double := 0, 0
	for _, a := range n.Args {
		if s, ok := a.(*syntax.Starred); ok && s != nil {
			if s.Double {
				double++
			} else {
				single++
			}
		}
	}
	for _, kw := range n.Keywords {
		if kw != nil && kw.Arg == "" {
			double++
		}
	}
	if single > 1 || double > 1 {
		v.construct(n, "unpacking_generalization")
	}

	encodings, handlers := v.codecArgs(n)
	for _, s := range encodings {
		v.match(s, rules.KindEncoding, rules.NormalizeEncoding(s.Value))
	}
	for _, s := range handlers {
		v.match(s, rules.KindErrorHandler, strings.ToLower(s.Value))
	}

	v.visit(n.Func)
	v.visitAll(n.Args)
	for _, kw := range n.Keywords {
		v.visit(kw)
	}
}

func negative(n syntax.Node) bool {
	u, ok := n.(*syntax.UnaryOp)
	return ok && u != nil && u.Op == "-"
}

func (v *visitor) str(n *syntax.Str) {
	prefix := strings.ToLower(n.Prefix)
	if strings.Contains(prefix, "f") {
		v.construct(n, "fstring")
		for _, in := range n.Interpolations {
			if in == nil || !in.SelfDoc {
				continue
			}
			if v.ctx.selfDoc {
				v.construct(in, "fstring_self_doc")
			} else {
				v.tip("self-documenting f-strings are not detected; use --feature %s", FeatureFStringSelfDoc)
			}
		}
	}
	if b := strings.Index(prefix, "b"); b >= 0 {
		v.construct(n, "bytes_literal")
		if r := strings.Index(prefix, "r"); r >= 0 && r < b {
			v.construct(n, "raw_bytes_rb")
		}
	}
	if strings.Contains(prefix, "u") {
		if strings.Contains(prefix, "r") {
			v.construct(n, "raw_unicode_ur")
		} else {
			v.construct(n, "unicode_literal")
		}
	}
	for _, in := range n.Interpolations {
		v.visit(in)
	}
}

func (v *visitor) num(n *syntax.Num) {
	t := strings.ToLower(n.Text)
	switch {
	case strings.HasSuffix(t, "l"):
		v.construct(n, "long_int")
	case strings.HasPrefix(t, "0b"):
		v.construct(n, "binary_literal")
	case strings.HasPrefix(t, "0o"):
		v.construct(n, "octal_literal")
	case legacyOctal(t):
		v.construct(n, "octal_legacy")
	}
	if strings.Contains(t, "_") {
		v.construct(n, "numeric_underscore")
	}
}

// legacyOctal matches "0777": a leading zero followed by digits that are
// not all zero.
func legacyOctal(t string) bool {
	if len(t) < 2 || t[0] != '0' {
		return false
	}
	nonZero := false
	for _, c := range t[1:] {
		if c < '0' || c > '9' {
			return false
		}
		if c != '0' {
			nonZero = true
		}
	}
	return nonZero
}

func (v *visitor) binOp(n *syntax.BinOp) {
	switch n.Op {
	case "@":
		v.construct(n, "matmul")
	case "|":
		v.union(n)
	}
	v.visit(n.Left)
	v.visit(n.Right)
}

func (v *visitor) union(n *syntax.BinOp) {
	if dictLike(n.Left) && dictLike(n.Right) {
		v.construct(n, "dict_union")
		return
	}
	l, r := v.typeLike(n.Left), v.typeLike(n.Right)
	if !(l && r) && !(v.annotation > 0 && (l || r)) {
		return
	}
	if v.ctx.unionTypes {
		v.construct(n, "union_types")
		return
	}
	v.tip("possible type union at line %d is not detected; use --feature %s", n.Position().Line, FeatureUnionTypes)
}

var unionTypeNames = map[string]bool{
	"bool": true, "bytearray": true, "bytes": true, "complex": true, "dict": true,
	"float": true, "frozenset": true, "int": true, "list": true, "object": true,
	"set": true, "str": true, "tuple": true, "type": true,
}

// typeLike reports whether n looks like a type expression.
func (v *visitor) typeLike(n syntax.Node) bool {
	switch n := n.(type) {
	case *syntax.Constant:
		return n.Value == "None"
	case *syntax.Name:
		return unionTypeNames[n.ID] && !v.scope.defined[n.ID]
	case *syntax.Subscript:
		return v.typeLike(n.Value)
	case *syntax.BinOp:
		return n.Op == "|" && v.typeLike(n.Left) && v.typeLike(n.Right)
	}
	return false
}

func dictLike(n syntax.Node) bool {
	switch n := n.(type) {
	case *syntax.Collection:
		return n.Type == syntax.DictKind
	case *syntax.Comprehension:
		return n.Type == syntax.DictKind
	}
	return false
}

var genericBuiltins = map[string]bool{
	"dict": true, "frozenset": true, "list": true, "set": true, "tuple": true, "type": true,
}

func (v *visitor) builtinGeneric(n *syntax.Subscript) bool {
	name, ok := n.Value.(*syntax.Name)
	if !ok || name == nil || !genericBuiltins[name.ID] {
		return false
	}
	_, aliased := v.scope.aliases[name.ID]
	return !aliased && !v.scope.defined[name.ID]
}

func (v *visitor) subscriptExpr(n *syntax.Subscript) {
	if v.builtinGeneric(n) {
		v.construct(n, "builtin_generic_annotation")
	}
	v.visit(n.Value)
	v.subscript++
	v.visitAll(n.Index)
	v.subscript--
}

func (v *visitor) collection(n *syntax.Collection) {
	if n.Type == syntax.SetKind {
		v.construct(n, "set_literal")
	}
	if v.target == 0 {
		for _, e := range n.Elems {
			if _, ok := e.(*syntax.Starred); ok {
				v.construct(n, "unpacking_generalization")
				break
			}
		}
	}
	v.visitAll(n.Elems)
}

// containsYield reports whether body yields, ignoring nested scopes.
func containsYield(body []syntax.Node) bool {
	found := false
	for _, stmt := range body {
		syntax.Inspect(stmt, func(n syntax.Node) bool {
			switch n.(type) {
			case *syntax.Yield:
				found = true
			case *syntax.FunctionDef, *syntax.Lambda, *syntax.ClassDef:
				return false
			}
			return !found
		})
		if found {
			return true
		}
	}
	return false
}
