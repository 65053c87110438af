// Package parser turns Python source into the syntax tree the detector
// walks. Parsing is done by tree-sitter; this package only maps its
// concrete tree onto the closed syntax node set.
package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/gnolang/minver/internal/syntax"
)

var ErrSyntax = errors.New("syntax error")

// SyntaxError reports the first position tree-sitter could not parse.
type SyntaxError struct {
	Line int
	Col  int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d, column %d", e.Line, e.Col)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// Parse parses src. Like go/parser, it returns a best-effort tree along
// with a *SyntaxError when the source does not parse cleanly; any other
// error means no tree could be built.
//
// Parse is safe for concurrent use: every call gets its own tree-sitter
// parser.
func Parse(ctx context.Context, src []byte) (*syntax.Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(python.GetLanguage())

	tree, err := parseTree(ctx, p, src)
	if err != nil {
		return nil, err
	}
	defer func() { tree.Close() }()

	root := tree.RootNode()
	if root == nil {
		return nil, errors.New("tree-sitter returned no tree")
	}

	c := &converter{src: src}
	if ticks := backticks(root, src); len(ticks) > 0 && len(ticks)%2 == 0 {
		rewritten, reprs := rewriteBackticks(src, ticks)
		retry, err := parseTree(ctx, p, rewritten)
		if err != nil {
			return nil, err
		}
		if r := retry.RootNode(); r != nil && !r.HasError() {
			tree.Close()
			tree, root = retry, r
			c = &converter{src: rewritten, reprs: reprs}
		} else {
			retry.Close()
		}
	}

	mod := &syntax.Module{
		Base:      c.base(root),
		Body:      c.block(root),
		Comments:  c.comments(root),
		HasErrors: root.HasError(),
	}
	if mod.HasErrors {
		line, col := firstError(root)
		return mod, &SyntaxError{Line: line, Col: col}
	}
	return mod, nil
}

func parseTree(ctx context.Context, p *sitter.Parser, src []byte) (*sitter.Tree, error) {
	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("tree-sitter: %w", err)
	}
	return tree, nil
}

// backticks returns the offsets of the backticks of src that are outside
// strings and comments, in source order.
func backticks(root *sitter.Node, src []byte) []uint32 {
	if bytes.IndexByte(src, '`') < 0 {
		return nil
	}
	type span struct{ start, end uint32 }
	var literals []span
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "string", "comment":
			literals = append(literals, span{n.StartByte(), n.EndByte()})
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if ch := n.Child(i); ch != nil {
				walk(ch)
			}
		}
	}
	walk(root)

	var out []uint32
	j := 0
	for i, b := range src {
		if b != '`' {
			continue
		}
		off := uint32(i)
		for j < len(literals) && literals[j].end <= off {
			j++
		}
		if j < len(literals) && literals[j].start <= off {
			continue
		}
		out = append(out, off)
	}
	return out
}

// rewriteBackticks turns each pair of backticks into parentheses. Offsets
// are unchanged, so positions still refer to the original source.
func rewriteBackticks(src []byte, ticks []uint32) ([]byte, map[uint32]bool) {
	out := bytes.Clone(src)
	reprs := make(map[uint32]bool, len(ticks)/2)
	for i := 0; i+1 < len(ticks); i += 2 {
		out[ticks[i]] = '('
		out[ticks[i+1]] = ')'
		reprs[ticks[i]] = true
	}
	return out, reprs
}

// firstError returns the position of the first ERROR or missing node.
func firstError(n *sitter.Node) (int, int) {
	if n.IsError() || n.IsMissing() {
		p := n.StartPoint()
		return int(p.Row) + 1, int(p.Column) + 1
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && (c.HasError() || c.IsMissing()) {
			return firstError(c)
		}
	}
	p := n.StartPoint()
	return int(p.Row) + 1, int(p.Column) + 1
}
