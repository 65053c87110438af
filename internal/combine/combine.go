// Package combine folds the facts of one file into its verdict.
package combine

import (
	"github.com/gnolang/minver/internal/types"
	"github.com/gnolang/minver/internal/version"
)

// Combine computes the per-family minimums of facts and checks them
// against targets.
//
// Within a family the minimum is the strictest certain fact. A fact above
// the newest known release of its family makes the family incompatible.
// Uncertain facts are only reported through Possible, and only when they
// are stricter than the certain minimum.
func Combine(facts []types.Requirement, targets version.Targets) types.FileVerdict {
	certain := empty()
	possible := empty()
	anyCertain := false

	for _, f := range facts {
		if !f.Family.Valid() {
			continue
		}
		m := clamp(f.Family, f.Minimum)
		if f.Certain {
			anyCertain = true
			certain[f.Family] = certain.Get(f.Family).Max(m)
		} else {
			possible[f.Family] = possible.Get(f.Family).Max(m)
		}
	}

	var tips types.Minimums
	for _, fam := range version.Families {
		p := possible.Get(fam)
		if p.Compare(certain.Get(fam)) > 0 {
			if tips == nil {
				tips = make(types.Minimums)
			}
			tips[fam] = p
		}
	}

	return types.FileVerdict{
		Minimums:   certain,
		Possible:   tips,
		Unknown:    !anyCertain,
		Violations: CheckTargets(certain, targets),
	}
}

func empty() types.Minimums {
	m := make(types.Minimums, len(version.Families))
	for _, f := range version.Families {
		m[f] = version.Minimum{}
	}
	return m
}

// clamp turns a requirement beyond the family's newest release into
// incompatibility.
func clamp(f version.Family, m version.Minimum) version.Minimum {
	if m.State == version.Required && f.Highest().Less(m.Version) {
		return version.Never()
	}
	return m
}

// CheckTargets returns the targets mins does not satisfy. A family
// without requirement satisfies any target; an incompatible family
// satisfies none.
func CheckTargets(mins types.Minimums, targets version.Targets) []types.Violation {
	var out []types.Violation
	for _, t := range targets {
		f := t.Family()
		m := mins.Get(f)
		if !Satisfies(m, t) {
			out = append(out, types.Violation{Family: f, Target: t, Minimum: m})
		}
	}
	return out
}

// Satisfies reports whether m meets t. Exact targets need the same
// version; inexact ones accept any version up to the target.
func Satisfies(m version.Minimum, t version.Target) bool {
	switch m.State {
	case version.NoRequirement:
		return true
	case version.Incompatible:
		return false
	}
	if t.Exact {
		return m.Version == t.Version
	}
	return !t.Version.Less(m.Version)
}
