package version

import (
	"encoding/json"
	"fmt"
	"strings"
)

// State orders the possible outcomes for one family:
// NoRequirement < Required(v) < Incompatible.
type State int

const (
	NoRequirement State = iota
	Required
	Incompatible
)

func (s State) String() string {
	switch s {
	case NoRequirement:
		return "none"
	case Required:
		return "required"
	case Incompatible:
		return "incompatible"
	}
	return "unknown"
}

// Minimum is the verdict for a single family.
type Minimum struct {
	State   State
	Version Version
}

// Require returns a Minimum requiring v.
func Require(v Version) Minimum {
	return Minimum{State: Required, Version: v}
}

// Never returns the incompatible Minimum.
func Never() Minimum {
	return Minimum{State: Incompatible}
}

func (m Minimum) IsIncompatible() bool { return m.State == Incompatible }
func (m Minimum) IsNone() bool         { return m.State == NoRequirement }

// Compare orders minimums by state first and version second.
func (m Minimum) Compare(o Minimum) int {
	switch {
	case m.State < o.State:
		return -1
	case m.State > o.State:
		return 1
	case m.State == Required:
		return m.Version.Compare(o.Version)
	}
	return 0
}

// Max returns the stricter of m and o.
func (m Minimum) Max(o Minimum) Minimum {
	if o.Compare(m) > 0 {
		return o
	}
	return m
}

// Min returns the weaker of m and o.
func (m Minimum) Min(o Minimum) Minimum {
	if o.Compare(m) < 0 {
		return o
	}
	return m
}

// Format renders m for family f the way reports show it: "3.6", "!2" or
// "~3".
func (m Minimum) Format(f Family) string {
	switch m.State {
	case Required:
		return m.Version.String()
	case Incompatible:
		return "!" + f.String()
	}
	return "~" + f.String()
}

func (m Minimum) MarshalJSON() ([]byte, error) {
	switch m.State {
	case Required:
		return json.Marshal(m.Version.String())
	case Incompatible:
		return json.Marshal("incompatible")
	}
	return []byte("null"), nil
}

// Requirements maps each family to its Minimum.
type Requirements map[Family]Minimum

// ParseRequirements reads the compact notation used by the rule tables:
// a comma-separated list naming every family exactly once, where "X.Y"
// requires that release and "!X" marks the family as lacking the
// construct. Example: "!2, 3.6".
func ParseRequirements(s string) (Requirements, error) {
	out := make(Requirements, len(Families))
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("%w: empty component in %q", ErrInvalidVersion, s)
		}
		if strings.HasPrefix(part, "!") {
			v, err := Parse(part[1:])
			if err != nil {
				return nil, err
			}
			f := Family(v.Major)
			if !f.Valid() || v.Minor != 0 {
				return nil, fmt.Errorf("%w: bad family %q in %q", ErrInvalidVersion, part, s)
			}
			if _, dup := out[f]; dup {
				return nil, fmt.Errorf("%w: family %s given twice in %q", ErrInvalidVersion, f, s)
			}
			out[f] = Never()
			continue
		}
		v, err := Parse(part)
		if err != nil {
			return nil, err
		}
		f := v.Family()
		if !f.Valid() {
			return nil, fmt.Errorf("%w: bad family in %q", ErrInvalidVersion, s)
		}
		if _, dup := out[f]; dup {
			return nil, fmt.Errorf("%w: family %s given twice in %q", ErrInvalidVersion, f, s)
		}
		out[f] = Require(v)
	}
	for _, f := range Families {
		if _, ok := out[f]; !ok {
			return nil, fmt.Errorf("%w: family %s missing in %q", ErrInvalidVersion, f, s)
		}
	}
	return out, nil
}

// String renders rs in the same notation ParseRequirements reads.
func (rs Requirements) String() string {
	parts := make([]string, 0, len(Families))
	for _, f := range Families {
		m, ok := rs[f]
		if !ok {
			continue
		}
		parts = append(parts, m.Format(f))
	}
	return strings.Join(parts, ", ")
}
