// Package rules holds the static table mapping Python constructs and
// standard library usages to the versions that introduced them.
package rules

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/gnolang/minver/internal/version"
)

// Kind is the namespace of a rule pattern.
type Kind string

const (
	KindModule       Kind = "module"
	KindMember       Kind = "member"
	KindKwarg        Kind = "kwarg"
	KindEncoding     Kind = "encoding"
	KindErrorHandler Kind = "error-handler"
	KindSyntax       Kind = "syntax"
	// KindAttr is the derived index of builtin type members by their
	// trailing attribute name. Matches through it are uncertain.
	KindAttr Kind = "attr"
)

// Key builds the lookup pattern for name in the kind namespace.
func Key(kind Kind, name string) string {
	return string(kind) + ":" + name
}

// KwargName joins a callable and a parameter into the kwarg rule name,
// e.g. "open(encoding)".
func KwargName(callable, param string) string {
	return callable + "(" + param + ")"
}

// NormalizeEncoding applies the codec registry's name normalization.
func NormalizeEncoding(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("-", "_", " ", "_").Replace(name)
}

// Rule associates one pattern with its per-family requirements.
type Rule struct {
	Kind        Kind
	Name        string
	Requires    version.Requirements
	Backports   []string
	Uncertain   bool
	Description string
}

// Pattern returns the key the rule is stored under.
func (r Rule) Pattern() string {
	return Key(r.Kind, r.Name)
}

// Describe returns a human readable label for the construct.
func (r Rule) Describe() string {
	if r.Description != "" {
		return r.Description
	}
	switch r.Kind {
	case KindModule:
		return fmt.Sprintf("'%s' module", r.Name)
	case KindMember, KindAttr:
		return fmt.Sprintf("'%s' member", r.Name)
	case KindKwarg:
		return fmt.Sprintf("'%s' keyword argument", r.Name)
	case KindEncoding:
		return fmt.Sprintf("codecs encoding '%s'", r.Name)
	case KindErrorHandler:
		return fmt.Sprintf("codecs error handler '%s'", r.Name)
	}
	return r.Name
}

// Database is an immutable rule table. It is safe for concurrent use.
type Database struct {
	byKey map[string][]Rule
}

// Lookup returns every rule stored under pattern. Unknown patterns yield
// nil; the returned slice must not be modified.
func (db *Database) Lookup(pattern string) []Rule {
	return db.byKey[pattern]
}

// Has reports whether any rule is stored under pattern.
func (db *Database) Has(pattern string) bool {
	return len(db.byKey[pattern]) > 0
}

// Len returns the number of stored patterns.
func (db *Database) Len() int {
	return len(db.byKey)
}

// Patterns returns all stored patterns of kind, sorted.
func (db *Database) Patterns(kind Kind) []string {
	prefix := string(kind) + ":"
	var out []string
	for k := range db.byKey {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// builtinTypes are the owners whose members feed the attr index.
var builtinTypes = map[string]bool{
	"str": true, "bytes": true, "bytearray": true, "int": true, "float": true,
	"complex": true, "dict": true, "list": true, "set": true, "frozenset": true,
	"tuple": true, "memoryview": true, "object": true, "type": true, "range": true,
}

// IsBuiltinType reports whether name is a builtin type whose members are
// tracked.
func IsBuiltinType(name string) bool {
	return builtinTypes[name]
}

//go:embed data/*.yaml
var dataFS embed.FS

var (
	defaultOnce sync.Once
	defaultDB   *Database
)

// Default returns the built-in rule table, loading it on first use.
func Default() *Database {
	defaultOnce.Do(func() {
		files := make(map[string][]byte)
		entries, err := dataFS.ReadDir("data")
		if err != nil {
			panic(fmt.Sprintf("rules: read embedded data: %v", err))
		}
		for _, e := range entries {
			b, err := dataFS.ReadFile(path.Join("data", e.Name()))
			if err != nil {
				panic(fmt.Sprintf("rules: read %s: %v", e.Name(), err))
			}
			files[e.Name()] = b
		}
		db, err := Load(files)
		if err != nil {
			panic(fmt.Sprintf("rules: %v", err))
		}
		defaultDB = db
	})
	return defaultDB
}

// entry is one rule as written in the data files. It accepts either a
// bare requirement string or a mapping.
type entry struct {
	Requires    string   `yaml:"requires"`
	Backports   []string `yaml:"backports"`
	Uncertain   bool     `yaml:"uncertain"`
	Description string   `yaml:"desc"`
}

func (e *entry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		e.Requires = value.Value
		return nil
	}
	type plain entry
	return value.Decode((*plain)(e))
}

// document is the layout of a data file.
type document struct {
	Modules       map[string]entry `yaml:"modules"`
	Members       map[string]entry `yaml:"members"`
	Kwargs        map[string]entry `yaml:"kwargs"`
	Encodings     map[string]entry `yaml:"encodings"`
	ErrorHandlers map[string]entry `yaml:"error_handlers"`
	Syntax        map[string]entry `yaml:"syntax"`
}

// Load builds a Database from data files keyed by name.
func Load(files map[string][]byte) (*Database, error) {
	db := &Database{byKey: make(map[string][]Rule)}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var doc document
		if err := yaml.Unmarshal(files[name], &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		sections := []struct {
			kind    Kind
			entries map[string]entry
		}{
			{KindModule, doc.Modules},
			{KindMember, doc.Members},
			{KindKwarg, doc.Kwargs},
			{KindEncoding, doc.Encodings},
			{KindErrorHandler, doc.ErrorHandlers},
			{KindSyntax, doc.Syntax},
		}
		for _, s := range sections {
			for key, e := range s.entries {
				if err := db.add(s.kind, key, e); err != nil {
					return nil, fmt.Errorf("%s: %w", name, err)
				}
			}
		}
	}
	db.indexAttributes()
	return db, nil
}

func (db *Database) add(kind Kind, name string, e entry) error {
	if kind == KindEncoding {
		name = NormalizeEncoding(name)
	}
	if name == "" {
		return fmt.Errorf("empty %s rule name", kind)
	}
	reqs, err := version.ParseRequirements(e.Requires)
	if err != nil {
		return fmt.Errorf("%s %q: %w", kind, name, err)
	}
	rule := Rule{
		Kind:        kind,
		Name:        name,
		Requires:    reqs,
		Backports:   e.Backports,
		Uncertain:   e.Uncertain,
		Description: e.Description,
	}
	key := rule.Pattern()
	db.byKey[key] = append(db.byKey[key], rule)
	return nil
}

// indexAttributes derives the attr index from members of builtin types.
func (db *Database) indexAttributes() {
	var derived []Rule
	for _, rs := range db.byKey {
		for _, r := range rs {
			if r.Kind != KindMember {
				continue
			}
			owner, attr, ok := splitLast(r.Name)
			if !ok || !builtinTypes[owner] {
				continue
			}
			d := r
			d.Kind = KindAttr
			d.Name = attr
			d.Uncertain = true
			d.Description = fmt.Sprintf("'%s' member (possibly '%s.%s')", attr, owner, attr)
			derived = append(derived, d)
		}
	}
	sort.Slice(derived, func(i, j int) bool { return derived[i].Description < derived[j].Description })
	for _, d := range derived {
		key := Key(KindAttr, d.Name)
		db.byKey[key] = append(db.byKey[key], d)
	}
}

func splitLast(dotted string) (string, string, bool) {
	i := strings.LastIndexByte(dotted, '.')
	if i <= 0 || i == len(dotted)-1 {
		return "", "", false
	}
	return dotted[:i], dotted[i+1:], true
}
