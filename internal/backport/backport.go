// Package backport knows the third-party modules that bring newer standard
// library features to older interpreters.
package backport

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gnolang/minver/internal/rules"
	"github.com/gnolang/minver/internal/version"
)

var ErrUnknownBackport = errors.New("unknown backport")

// Backport is a known backport module. Baselines holds the oldest release
// of each family the backport installs on; families it does not target are
// absent.
type Backport struct {
	Name      string
	Baselines map[version.Family]version.Version
}

func py2(minor int) version.Version { return version.V(2, minor) }
func py3(minor int) version.Version { return version.V(3, minor) }

func both(p2, p3 version.Version) map[version.Family]version.Version {
	return map[version.Family]version.Version{version.Py2: p2, version.Py3: p3}
}

func only(v version.Version) map[version.Family]version.Version {
	return map[version.Family]version.Version{v.Family(): v}
}

var known = map[string]Backport{
	"argparse":            {"argparse", both(py2(3), py3(1))},
	"asyncio":             {"asyncio", only(py3(3))},
	"configparser":        {"configparser", only(py2(6))},
	"contextvars":         {"contextvars", only(py3(6))},
	"dataclasses":         {"dataclasses", only(py3(6))},
	"enum":                {"enum", both(py2(4), py3(3))},
	"faulthandler":        {"faulthandler", both(py2(5), py3(0))},
	"importlib":           {"importlib", both(py2(3), py3(0))},
	"importlib_metadata":  {"importlib_metadata", both(py2(7), py3(5))},
	"importlib_resources": {"importlib_resources", both(py2(7), py3(4))},
	"ipaddress":           {"ipaddress", both(py2(6), py3(2))},
	"mock":                {"mock", only(py2(6))},
	"statistics":          {"statistics", both(py2(6), py3(0))},
	"typing":              {"typing", both(py2(7), py3(2))},
	"typing_extensions":   {"typing_extensions", both(py2(7), py3(6))},
	"zoneinfo":            {"zoneinfo", only(py3(6))},
}

// Names returns every known backport name, sorted.
func Names() []string {
	out := make([]string, 0, len(known))
	for n := range known {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the backport called name.
func Lookup(name string) (Backport, bool) {
	b, ok := known[name]
	return b, ok
}

// Describe renders b as "name - 2.7, 3.2" for listings.
func (b Backport) Describe() string {
	var parts []string
	for _, f := range version.Families {
		if v, ok := b.Baselines[f]; ok {
			parts = append(parts, v.String())
		}
	}
	return b.Name + " - " + strings.Join(parts, ", ")
}

// Resolver applies a fixed set of active backports to rule requirements.
// It is immutable and safe for concurrent use.
type Resolver struct {
	active map[string]Backport
}

// NewResolver validates names eagerly; an unknown name fails the whole set.
func NewResolver(names []string) (*Resolver, error) {
	r := &Resolver{active: make(map[string]Backport, len(names))}
	for _, n := range names {
		b, ok := known[n]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownBackport, n)
		}
		r.active[n] = b
	}
	return r, nil
}

// Active returns the sorted names of the active backports.
func (r *Resolver) Active() []string {
	out := make([]string, 0, len(r.active))
	for n := range r.active {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Applies reports whether any backport of rule is active.
func (r *Resolver) Applies(rule rules.Rule) bool {
	if r == nil {
		return false
	}
	for _, n := range rule.Backports {
		if _, ok := r.active[n]; ok {
			return true
		}
	}
	return false
}

// Effective returns the requirements of rule once active backports are
// taken into account. In a family where an active backport has a baseline
// the requirement is the weaker of the baseline and the native one; other
// families keep the native requirement. The rule itself is not modified.
func (r *Resolver) Effective(rule rules.Rule) version.Requirements {
	if !r.Applies(rule) {
		return rule.Requires
	}
	out := make(version.Requirements, len(rule.Requires))
	for f, m := range rule.Requires {
		out[f] = m
	}
	for _, n := range rule.Backports {
		b, ok := r.active[n]
		if !ok {
			continue
		}
		for f, base := range b.Baselines {
			native, ok := out[f]
			if !ok {
				continue
			}
			out[f] = native.Min(version.Require(base))
		}
	}
	return out
}
