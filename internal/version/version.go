package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Family is a syntax-incompatible major release line. Its value is the
// major version number itself.
type Family int

const (
	Py2 Family = 2
	Py3 Family = 3
)

// Families lists every known family in ascending order.
var Families = []Family{Py2, Py3}

// Valid reports whether f is a known family.
func (f Family) Valid() bool {
	return f == Py2 || f == Py3
}

func (f Family) String() string {
	return strconv.Itoa(int(f))
}

// Lowest returns the oldest supported release of the family.
func (f Family) Lowest() Version {
	return Version{Major: int(f), Minor: 0}
}

// Highest returns the newest known release of the family.
func (f Family) Highest() Version {
	switch f {
	case Py2:
		return Version{Major: 2, Minor: 7}
	case Py3:
		return Version{Major: 3, Minor: 14}
	}
	return Version{}
}

// Version is a (major, minor) pair ordered lexicographically.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

// V is shorthand for Version{major, minor}.
func V(major, minor int) Version {
	return Version{Major: major, Minor: minor}
}

func (v Version) Family() Family {
	return Family(v.Major)
}

func (v Version) IsZero() bool {
	return v.Major == 0 && v.Minor == 0
}

// Compare returns -1, 0 or 1.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major < o.Major:
		return -1
	case v.Major > o.Major:
		return 1
	case v.Minor < o.Minor:
		return -1
	case v.Minor > o.Minor:
		return 1
	}
	return 0
}

func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// InRange reports whether v lies between the lowest and highest known
// releases of its family.
func (v Version) InRange() bool {
	f := v.Family()
	if !f.Valid() {
		return false
	}
	return !v.Less(f.Lowest()) && !f.Highest().Less(v)
}

var (
	ErrInvalidVersion = errors.New("invalid version")
	ErrInvalidTarget  = errors.New("invalid target")
)

// Parse reads "M", "M.m" or "M,m".
func Parse(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("%w: empty", ErrInvalidVersion)
	}
	sep := "."
	if strings.Contains(s, ",") {
		sep = ","
	}
	parts := strings.Split(s, sep)
	if len(parts) > 2 {
		return Version{}, fmt.Errorf("%w: %q has too many components", ErrInvalidVersion, s)
	}
	nums := make([]int, 2)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1]}, nil
}
