package types

import (
	"fmt"

	"github.com/gnolang/minver/internal/version"
)

// Requirement is one fact produced by the detector: the construct at
// Line:Col needs Minimum in Family. Uncertain facts come from heuristic
// matches and never decide a verdict on their own.
type Requirement struct {
	Family      version.Family  `json:"family"`
	Minimum     version.Minimum `json:"minimum"`
	Certain     bool            `json:"certain"`
	Line        int             `json:"line"`
	Col         int             `json:"col"`
	Identifier  string          `json:"identifier"`
	Kind        string          `json:"kind"`
	Description string          `json:"description"`
}

func (r Requirement) String() string {
	s := fmt.Sprintf("L%d C%d: %s requires %s", r.Line, r.Col, r.Description, r.Minimum.Format(r.Family))
	if !r.Certain {
		s += " (uncertain)"
	}
	return s
}

// Violation records a family whose minimum does not satisfy its target.
type Violation struct {
	Family  version.Family  `json:"family"`
	Target  version.Target  `json:"target"`
	Minimum version.Minimum `json:"minimum"`
}

func (v Violation) String() string {
	return fmt.Sprintf("target %s not met: minimum is %s", v.Target, v.Minimum.Format(v.Family))
}

// Minimums maps each family to its minimum. A missing family has no
// requirement.
type Minimums map[version.Family]version.Minimum

// Get returns the minimum of f, defaulting to no requirement.
func (m Minimums) Get(f version.Family) version.Minimum {
	return m[f]
}

// Clone returns an independent copy of m.
func (m Minimums) Clone() Minimums {
	out := make(Minimums, len(m))
	for f, v := range m {
		out[f] = v
	}
	return out
}

// IncompatibleWithAll reports whether every family is incompatible.
func (m Minimums) IncompatibleWithAll() bool {
	for _, f := range version.Families {
		if !m.Get(f).IsIncompatible() {
			return false
		}
	}
	return true
}

// String renders m as "2.7, 3.6" or "!2, 3.6"; families without
// requirement show as "~2".
func (m Minimums) String() string {
	s := ""
	for i, f := range version.Families {
		if i > 0 {
			s += ", "
		}
		s += m.Get(f).Format(f)
	}
	return s
}

// FileVerdict is the combined result for one file.
type FileVerdict struct {
	Minimums Minimums `json:"minimums"`
	// Possible holds the minimums implied by uncertain facts when they are
	// stricter than the authoritative ones.
	Possible   Minimums    `json:"possible,omitempty"`
	Unknown    bool        `json:"unknown"`
	Violations []Violation `json:"violations,omitempty"`
}

// FileResult is everything the pipeline knows about one file.
type FileResult struct {
	Path    string        `json:"path"`
	Verdict FileVerdict   `json:"verdict"`
	Facts   []Requirement `json:"facts,omitempty"`
	Tips    []string      `json:"tips,omitempty"`
	// Visits is the syntax tree outline, filled when visits are printed.
	Visits string `json:"visits,omitempty"`
	Err    error  `json:"-"`
}

// FileError is a per-file failure kept in the run verdict.
type FileError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// RunVerdict aggregates the verdicts of a multi-file run.
type RunVerdict struct {
	Minimums   Minimums    `json:"minimums"`
	Unknown    bool        `json:"unknown"`
	Files      int         `json:"files"`
	Errors     []FileError `json:"errors,omitempty"`
	Violations []Violation `json:"violations,omitempty"`
}
