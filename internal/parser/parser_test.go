package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/minver/internal/syntax"
)

func parse(t *testing.T, src string) *syntax.Module {
	t.Helper()
	mod, err := Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	require.NotNil(t, mod)
	return mod
}

func TestParseImports(t *testing.T) {
	t.Parallel()

	mod := parse(t, "import os.path as p, sys\nfrom collections import OrderedDict as OD\nfrom . import sibling\n")
	require.Len(t, mod.Body, 3)

	imp, ok := mod.Body[0].(*syntax.Import)
	require.True(t, ok)
	require.Len(t, imp.Names, 2)
	assert.Equal(t, "os.path", imp.Names[0].Name)
	assert.Equal(t, "p", imp.Names[0].AsName)
	assert.Equal(t, "sys", imp.Names[1].Name)
	assert.Empty(t, imp.Names[1].AsName)

	from, ok := mod.Body[1].(*syntax.ImportFrom)
	require.True(t, ok)
	assert.Equal(t, "collections", from.Module)
	assert.Equal(t, 0, from.Level)
	require.Len(t, from.Names, 1)
	assert.Equal(t, "OrderedDict", from.Names[0].Name)
	assert.Equal(t, "OD", from.Names[0].AsName)

	rel, ok := mod.Body[2].(*syntax.ImportFrom)
	require.True(t, ok)
	assert.Equal(t, 1, rel.Level)
	assert.Empty(t, rel.Module)
}

func TestParseFunctionParams(t *testing.T) {
	t.Parallel()

	mod := parse(t, "async def f(a, /, *, b: int = 1) -> None:\n    pass\n")
	require.Len(t, mod.Body, 1)

	fn, ok := mod.Body[0].(*syntax.FunctionDef)
	require.True(t, ok)
	assert.Equal(t, "f", fn.Name)
	assert.True(t, fn.Async)
	assert.NotNil(t, fn.Returns)

	var kinds []syntax.ParamKind
	for _, p := range fn.Params {
		kinds = append(kinds, p.ParamKind)
	}
	assert.Equal(t, []syntax.ParamKind{
		syntax.ParamPlain,
		syntax.ParamPosOnlyMarker,
		syntax.ParamKwOnlyMarker,
		syntax.ParamPlain,
	}, kinds)

	b := fn.Params[3]
	assert.Equal(t, "b", b.Name)
	assert.NotNil(t, b.Annotation)
	assert.NotNil(t, b.Default)
}

func TestParseCallAndAttribute(t *testing.T) {
	t.Parallel()

	mod := parse(t, "os.makedirs(path, exist_ok=True)\n")
	require.Len(t, mod.Body, 1)

	stmt, ok := mod.Body[0].(*syntax.ExprStmt)
	require.True(t, ok)
	call, ok := stmt.Value.(*syntax.Call)
	require.True(t, ok)

	fn, ok := call.Func.(*syntax.Attribute)
	require.True(t, ok)
	assert.Equal(t, "makedirs", fn.Attr)
	recv, ok := fn.Value.(*syntax.Name)
	require.True(t, ok)
	assert.Equal(t, "os", recv.ID)

	require.Len(t, call.Args, 1)
	require.Len(t, call.Keywords, 1)
	assert.Equal(t, "exist_ok", call.Keywords[0].Arg)
	c, ok := call.Keywords[0].Value.(*syntax.Constant)
	require.True(t, ok)
	assert.Equal(t, "True", c.Value)
	assert.Equal(t, syntax.Pos{Line: 1, Col: 1, EndLine: 1}, call.Position())
}

func TestParseStrings(t *testing.T) {
	t.Parallel()

	mod := parse(t, "x = rb'abc'\ny = f\"{a}\"\n")
	require.Len(t, mod.Body, 2)

	bytesLit, ok := mod.Body[0].(*syntax.Assign).Value.(*syntax.Str)
	require.True(t, ok)
	assert.Equal(t, "rb", bytesLit.Prefix)
	assert.Equal(t, "abc", bytesLit.Value)

	fstr, ok := mod.Body[1].(*syntax.Assign).Value.(*syntax.Str)
	require.True(t, ok)
	assert.Equal(t, "f", fstr.Prefix)
	require.Len(t, fstr.Interpolations, 1)
	name, ok := fstr.Interpolations[0].Expr.(*syntax.Name)
	require.True(t, ok)
	assert.Equal(t, "a", name.ID)
}

func TestParsePython2Forms(t *testing.T) {
	t.Parallel()

	mod := parse(t, "try:\n    pass\nexcept E, e:\n    pass\nexcept (A, B):\n    pass\n")
	try, ok := mod.Body[0].(*syntax.Try)
	require.True(t, ok)
	require.Len(t, try.Handlers, 2)
	assert.True(t, try.Handlers[0].Legacy)
	assert.Equal(t, "e", try.Handlers[0].Name)
	assert.False(t, try.Handlers[1].Legacy)

	mod = parse(t, "raise E, 'msg'\nraise E('msg')\n")
	require.Len(t, mod.Body, 2)
	assert.True(t, mod.Body[0].(*syntax.Raise).Legacy)
	assert.False(t, mod.Body[1].(*syntax.Raise).Legacy)

	mod = parse(t, "def f((a, b), c):\n    pass\n")
	fn, ok := mod.Body[0].(*syntax.FunctionDef)
	require.True(t, ok)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, syntax.ParamTuple, fn.Params[0].ParamKind)
	assert.Equal(t, "c", fn.Params[1].Name)
}

func TestParseBacktickRepr(t *testing.T) {
	t.Parallel()

	mod := parse(t, "x = `a`\ns = '`'  # `\n")
	require.Len(t, mod.Body, 2)

	r, ok := mod.Body[0].(*syntax.Assign).Value.(*syntax.Repr)
	require.True(t, ok)
	assert.Equal(t, 5, r.Position().Col)
	name, ok := r.Value.(*syntax.Name)
	require.True(t, ok)
	assert.Equal(t, "a", name.ID)

	lit, ok := mod.Body[1].(*syntax.Assign).Value.(*syntax.Str)
	require.True(t, ok)
	assert.Equal(t, "`", lit.Value)
	assert.Equal(t, "# `", mod.Comments[0].Text)

	_, err := Parse(context.Background(), []byte("x = `a\n"))
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestParseComments(t *testing.T) {
	t.Parallel()

	mod := parse(t, "x = 1  # novm\n# plain\n")
	require.Len(t, mod.Comments, 2)
	assert.Equal(t, "# novm", mod.Comments[0].Text)
	assert.Equal(t, 1, mod.Comments[0].Line)
	assert.Equal(t, 2, mod.Comments[1].Line)
}

func TestParseSyntaxError(t *testing.T) {
	t.Parallel()

	mod, err := Parse(context.Background(), []byte("def f(:\n    pass\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSyntax))
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Line)
	require.NotNil(t, mod)
	assert.True(t, mod.HasErrors)
}

func TestParseCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mod, err := Parse(ctx, []byte("x = 1\n"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, mod)
}

func TestParseEverythingIsWalkable(t *testing.T) {
	t.Parallel()

	src := `
import sys
from __future__ import print_function

@decorator
class C(Base, metaclass=Meta):
    x: int = 0

    def method(self, *args, **kwargs):
        with open(p) as f, lock:
            yield from f
        return [i for i in range(10) if i]

try:
    pass
except (ValueError, TypeError) as e:
    raise RuntimeError() from e
finally:
    del x

while True:
    if (n := 1) > 0:
        break
    elif not n:
        continue
    else:
        assert n, "msg"

match command:
    case [x, y]:
        pass
    case _:
        pass

value = a[1:2:3] if b else {k: v for k, v in d.items()}
total = lambda *a: sum(a)
print(*items, sep="")
`
	mod := parse(t, src)
	count := 0
	syntax.Inspect(mod, func(n syntax.Node) bool {
		count++
		return true
	})
	assert.Greater(t, count, 50)
}
