// Package exclusion decides which detected constructs the user asked to
// ignore, either by name or with "# novm" comments in the source.
package exclusion

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/gnolang/minver/internal/rules"
)

var ErrInvalidPattern = errors.New("invalid exclusion pattern")

// Kind is the namespace an identifier is matched in.
type Kind int

const (
	Member Kind = iota
	Kwarg
	Encoding
	ErrorHandler
)

func (k Kind) String() string {
	switch k {
	case Member:
		return "member"
	case Kwarg:
		return "kwarg"
	case Encoding:
		return "codec-encoding"
	case ErrorHandler:
		return "codec-error-handler"
	}
	return "unknown"
}

const (
	encodingPrefix     = "ce="
	errorHandlerPrefix = "ceh="
)

var (
	kwargRE  = regexp.MustCompile(`^[A-Za-z_][\w.]*\([A-Za-z_]\w*\)$`)
	memberRE = regexp.MustCompile(`^[A-Za-z_][\w]*(\.[A-Za-z_][\w]*)*$`)
)

// Pattern is one parsed exclusion.
type Pattern struct {
	Kind  Kind
	Value string
}

// ParsePattern classifies s as "ce=<encoding>", "ceh=<handler>",
// "callable(param)" or a dotted member name.
func ParsePattern(s string) (Pattern, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Pattern{}, fmt.Errorf("%w: empty", ErrInvalidPattern)
	}
	switch {
	case strings.HasPrefix(s, errorHandlerPrefix):
		v := strings.TrimSpace(s[len(errorHandlerPrefix):])
		if v == "" {
			return Pattern{}, fmt.Errorf("%w: %q names no error handler", ErrInvalidPattern, s)
		}
		return Pattern{Kind: ErrorHandler, Value: strings.ToLower(v)}, nil
	case strings.HasPrefix(s, encodingPrefix):
		v := strings.TrimSpace(s[len(encodingPrefix):])
		if v == "" {
			return Pattern{}, fmt.Errorf("%w: %q names no encoding", ErrInvalidPattern, s)
		}
		return Pattern{Kind: Encoding, Value: rules.NormalizeEncoding(v)}, nil
	case strings.ContainsAny(s, "()"):
		if !kwargRE.MatchString(s) {
			return Pattern{}, fmt.Errorf("%w: %q is not of the form callable(param)", ErrInvalidPattern, s)
		}
		return Pattern{Kind: Kwarg, Value: s}, nil
	}
	if !memberRE.MatchString(s) {
		return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidPattern, s)
	}
	return Pattern{Kind: Member, Value: s}, nil
}

func (p Pattern) String() string {
	switch p.Kind {
	case Encoding:
		return encodingPrefix + p.Value
	case ErrorHandler:
		return errorHandlerPrefix + p.Value
	}
	return p.Value
}

// Filter is an immutable set of exclusions.
type Filter struct {
	byKind map[Kind]map[string]struct{}
}

// NewFilter parses every pattern; the first malformed one fails the set.
func NewFilter(patterns []string) (*Filter, error) {
	f := &Filter{byKind: make(map[Kind]map[string]struct{})}
	for _, s := range patterns {
		p, err := ParsePattern(s)
		if err != nil {
			return nil, err
		}
		set, ok := f.byKind[p.Kind]
		if !ok {
			set = make(map[string]struct{})
			f.byKind[p.Kind] = set
		}
		set[p.Value] = struct{}{}
	}
	return f, nil
}

// IsExcluded reports whether identifier is excluded in the kind namespace.
// Members and kwargs match exactly; codec names ignore case.
func (f *Filter) IsExcluded(identifier string, kind Kind) bool {
	if f == nil {
		return false
	}
	set := f.byKind[kind]
	if len(set) == 0 {
		return false
	}
	switch kind {
	case Encoding:
		identifier = rules.NormalizeEncoding(identifier)
	case ErrorHandler:
		identifier = strings.ToLower(identifier)
	}
	_, ok := set[identifier]
	return ok
}

// Len returns the number of distinct exclusions.
func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	n := 0
	for _, set := range f.byKind {
		n += len(set)
	}
	return n
}

// Patterns returns the exclusions in their textual form, sorted.
func (f *Filter) Patterns() []string {
	if f == nil {
		return nil
	}
	var out []string
	for k, set := range f.byKind {
		for v := range set {
			out = append(out, Pattern{Kind: k, Value: v}.String())
		}
	}
	sort.Strings(out)
	return out
}
