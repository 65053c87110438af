package detect

import (
	"strings"

	"github.com/gnolang/minver/internal/rules"
	"github.com/gnolang/minver/internal/syntax"
)

// rootKind says what the leftmost name of a dotted expression refers to.
type rootKind int

const (
	rootNone rootKind = iota
	// rootImport is a name bound by an import.
	rootImport
	// rootBuiltin is an unbound name that is a builtin type.
	rootBuiltin
	// rootLiteral is a literal whose type is known.
	rootLiteral
	// rootFree is an unbound name, possibly a builtin function.
	rootFree
	// rootUser is a name the file defines itself.
	rootUser
)

// known reports whether the qualified name can be matched against member
// rules with certainty.
func (k rootKind) known() bool {
	return k == rootImport || k == rootBuiltin || k == rootLiteral
}

// scope records the names a file binds. It is built in a first pass so
// that uses before the binding statement resolve the same way.
type scope struct {
	// aliases maps a bound name to the module path it refers to.
	aliases map[string]string
	// defined holds names bound by def, class, assignments and
	// parameters.
	defined map[string]bool
}

func collectScope(mod *syntax.Module) *scope {
	s := &scope{aliases: make(map[string]string), defined: make(map[string]bool)}
	syntax.Inspect(mod, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.Import:
			for _, a := range n.Names {
				if a.AsName != "" {
					s.aliases[a.AsName] = a.Name
					continue
				}
				root, _, _ := strings.Cut(a.Name, ".")
				s.aliases[root] = root
			}
		case *syntax.ImportFrom:
			for _, a := range n.Names {
				local := a.AsName
				if local == "" {
					local = a.Name
				}
				if n.Level > 0 || n.Module == "" {
					s.defined[local] = true
					continue
				}
				s.aliases[local] = n.Module + "." + a.Name
			}
		case *syntax.FunctionDef:
			s.defined[n.Name] = true
		case *syntax.ClassDef:
			s.defined[n.Name] = true
		case *syntax.Param:
			if n.Name != "" {
				s.defined[n.Name] = true
			}
		case *syntax.Assign:
			for _, t := range n.Targets {
				s.bindTarget(t)
			}
		case *syntax.For:
			s.bindTarget(n.Target)
		case *syntax.WithItem:
			s.bindTarget(n.Target)
		case *syntax.ComprehensionClause:
			s.bindTarget(n.Target)
		case *syntax.NamedExpr:
			s.bindTarget(n.Target)
		case *syntax.ExceptHandler:
			if n.Name != "" {
				s.defined[n.Name] = true
			}
		}
		return true
	})
	return s
}

func (s *scope) bindTarget(n syntax.Node) {
	switch n := n.(type) {
	case *syntax.Name:
		s.defined[n.ID] = true
	case *syntax.Starred:
		s.bindTarget(n.Value)
	case *syntax.Collection:
		for _, e := range n.Elems {
			s.bindTarget(e)
		}
	}
}

// qualify resolves a Name/Attribute chain to a dotted path, replacing an
// import alias at its root by the module it names. Literal receivers
// resolve to their type name.
func (s *scope) qualify(n syntax.Node) (string, rootKind) {
	switch n := n.(type) {
	case *syntax.Name:
		if target, ok := s.aliases[n.ID]; ok {
			return target, rootImport
		}
		if s.defined[n.ID] {
			return n.ID, rootUser
		}
		if rules.IsBuiltinType(n.ID) {
			return n.ID, rootBuiltin
		}
		return n.ID, rootFree
	case *syntax.Attribute:
		q, k := s.qualify(n.Value)
		if k == rootNone {
			return "", rootNone
		}
		return q + "." + n.Attr, k
	}
	if t := literalType(n); t != "" {
		return t, rootLiteral
	}
	return "", rootNone
}

// literalType returns the builtin type of a literal node.
func literalType(n syntax.Node) string {
	switch n := n.(type) {
	case *syntax.Str:
		if strings.ContainsAny(n.Prefix, "bB") {
			return "bytes"
		}
		return "str"
	case *syntax.Num:
		return numType(n.Text)
	case *syntax.Collection:
		return string(n.Type)
	case *syntax.Comprehension:
		return string(n.Type)
	}
	return ""
}

func numType(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.HasSuffix(t, "j"):
		return "complex"
	case strings.HasPrefix(t, "0x"), strings.HasPrefix(t, "0o"), strings.HasPrefix(t, "0b"):
		return "int"
	case strings.ContainsAny(t, ".e"):
		return "float"
	}
	return "int"
}

// dotted reports whether n is a plain dotted name.
func dotted(n syntax.Node) bool {
	switch n := n.(type) {
	case *syntax.Name:
		return true
	case *syntax.Attribute:
		return dotted(n.Value)
	}
	return false
}
