package version

import (
	"fmt"
	"sort"
	"strings"
)

// Target is a user-asserted constraint on the computed minimum of one
// family. An exact target accepts only that version; an inexact one
// accepts the version or anything older in the same family.
type Target struct {
	Exact   bool    `json:"exact"`
	Version Version `json:"version"`
}

func (t Target) Family() Family {
	return t.Version.Family()
}

func (t Target) String() string {
	if t.Exact {
		return t.Version.String()
	}
	return t.Version.String() + "-"
}

// ParseTarget reads "2.7", "2,7", "3" or any of those suffixed with "-".
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	exact := true
	if strings.HasSuffix(s, "-") {
		exact = false
		s = strings.TrimSuffix(s, "-")
	}
	v, err := Parse(s)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if !v.InRange() {
		return Target{}, fmt.Errorf("%w: %s is not a known release", ErrInvalidTarget, v)
	}
	return Target{Exact: exact, Version: v}, nil
}

// Targets is a validated set of at most two targets, one per family.
type Targets []Target

// AddTarget returns ts with t appended, rejecting a second target for the
// same family or a third target overall.
func (ts Targets) AddTarget(t Target) (Targets, error) {
	if len(ts) >= len(Families) {
		return ts, fmt.Errorf("%w: at most %d targets allowed", ErrInvalidTarget, len(Families))
	}
	if !t.Version.InRange() {
		return ts, fmt.Errorf("%w: %s is not a known release", ErrInvalidTarget, t.Version)
	}
	for _, o := range ts {
		if o.Family() == t.Family() {
			return ts, fmt.Errorf("%w: more than one target for family %s", ErrInvalidTarget, t.Family())
		}
	}
	out := make(Targets, 0, len(ts)+1)
	out = append(out, ts...)
	out = append(out, t)
	sort.Slice(out, func(i, j int) bool { return out[i].Version.Less(out[j].Version) })
	return out, nil
}

// ParseTargets parses and validates every entry in specs.
func ParseTargets(specs []string) (Targets, error) {
	var ts Targets
	for _, s := range specs {
		t, err := ParseTarget(s)
		if err != nil {
			return nil, err
		}
		if ts, err = ts.AddTarget(t); err != nil {
			return nil, err
		}
	}
	return ts, nil
}

// For returns the target configured for f, if any.
func (ts Targets) For(f Family) (Target, bool) {
	for _, t := range ts {
		if t.Family() == f {
			return t, true
		}
	}
	return Target{}, false
}

func (ts Targets) Strings() []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}
