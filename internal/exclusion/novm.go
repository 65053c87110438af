package exclusion

import (
	"regexp"

	"github.com/gnolang/minver/internal/syntax"
)

// novmRE matches "# novm" and "# novermin", optionally followed by more
// comment text.
var novmRE = regexp.MustCompile(`^#\s*(novm|novermin)\b`)

// Scopes holds the line ranges silenced by novm comments in one file.
type Scopes struct {
	ranges []lineRange
}

type lineRange struct {
	start, end int
}

// ParseComments finds the novm comments of mod and determines the range
// each one covers:
//
//   - trailing a statement, the whole statement (a compound statement
//     header covers its block)
//   - on its own line, the statement that starts on the next line
//   - otherwise just its own line
func ParseComments(mod *syntax.Module) *Scopes {
	s := &Scopes{}
	if mod == nil || len(mod.Comments) == 0 {
		return s
	}
	stmts := indexStatementsByLine(mod)
	for _, c := range mod.Comments {
		if !novmRE.MatchString(c.Text) {
			continue
		}
		s.ranges = append(s.ranges, scopeOf(c, stmts))
	}
	return s
}

func scopeOf(c syntax.Comment, stmts map[int]syntax.Node) lineRange {
	if stmt, ok := stmts[c.Line]; ok && stmt.Position().Col < c.Col {
		return spanOf(stmt)
	}
	if stmt, ok := stmts[c.Line+1]; ok {
		r := spanOf(stmt)
		r.start = c.Line
		return r
	}
	return lineRange{start: c.Line, end: c.Line}
}

func spanOf(n syntax.Node) lineRange {
	p := n.Position()
	end := p.EndLine
	if end < p.Line {
		end = p.Line
	}
	return lineRange{start: p.Line, end: end}
}

// indexStatementsByLine maps each line to the first statement starting on
// it.
func indexStatementsByLine(mod *syntax.Module) map[int]syntax.Node {
	out := make(map[int]syntax.Node)
	syntax.Inspect(mod, func(n syntax.Node) bool {
		if isStatement(n) {
			line := n.Position().Line
			if _, exists := out[line]; !exists {
				out[line] = n
			}
		}
		return true
	})
	return out
}

func isStatement(n syntax.Node) bool {
	switch n.(type) {
	case *syntax.Import, *syntax.ImportFrom, *syntax.FunctionDef, *syntax.ClassDef,
		*syntax.Assign, *syntax.TypeAlias, *syntax.ExprStmt, *syntax.If, *syntax.For,
		*syntax.While, *syntax.With, *syntax.Try, *syntax.ExceptHandler, *syntax.Match,
		*syntax.MatchCase, *syntax.Print, *syntax.Exec, *syntax.Raise, *syntax.Return,
		*syntax.Delete, *syntax.Assert, *syntax.Scope, *syntax.KeywordStmt:
		return true
	}
	return false
}

// Covers reports whether line is silenced.
func (s *Scopes) Covers(line int) bool {
	if s == nil {
		return false
	}
	for _, r := range s.ranges {
		if line >= r.start && line <= r.end {
			return true
		}
	}
	return false
}

// Len returns the number of novm comments found.
func (s *Scopes) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ranges)
}
