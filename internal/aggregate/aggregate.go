// Package aggregate merges per-file verdicts into the verdict of a run.
package aggregate

import (
	"sort"
	"sync"

	"github.com/gnolang/minver/internal/combine"
	"github.com/gnolang/minver/internal/types"
	"github.com/gnolang/minver/internal/version"
)

// Empty returns the identity of Merge: no files, no requirement.
func Empty() types.RunVerdict {
	m := make(types.Minimums, len(version.Families))
	for _, f := range version.Families {
		m[f] = version.Minimum{}
	}
	return types.RunVerdict{Minimums: m, Unknown: true}
}

// FromFile lifts a file verdict into a run of one file.
func FromFile(v types.FileVerdict) types.RunVerdict {
	r := Empty()
	for _, f := range version.Families {
		r.Minimums[f] = v.Minimums.Get(f)
	}
	r.Unknown = v.Unknown
	r.Files = 1
	return r
}

// Merge folds verdicts into one run verdict. The per-family minimum is the
// maximum over all files and incompatibility dominates, so the result does
// not depend on the order of verdicts.
func Merge(verdicts ...types.FileVerdict) types.RunVerdict {
	out := Empty()
	for _, v := range verdicts {
		out = MergeRuns(out, FromFile(v))
	}
	return out
}

// MergeRuns combines two partial run verdicts. It is commutative and
// associative; violations are left for the caller to recompute.
func MergeRuns(a, b types.RunVerdict) types.RunVerdict {
	out := Empty()
	for _, f := range version.Families {
		out.Minimums[f] = a.Minimums.Get(f).Max(b.Minimums.Get(f))
	}
	out.Unknown = a.Unknown && b.Unknown
	out.Files = a.Files + b.Files
	if n := len(a.Errors) + len(b.Errors); n > 0 {
		out.Errors = make([]types.FileError, 0, n)
		out.Errors = append(out.Errors, a.Errors...)
		out.Errors = append(out.Errors, b.Errors...)
		sortErrors(out.Errors)
	}
	return out
}

func sortErrors(errs []types.FileError) {
	sort.Slice(errs, func(i, j int) bool {
		if errs[i].Path != errs[j].Path {
			return errs[i].Path < errs[j].Path
		}
		return errs[i].Err < errs[j].Err
	})
}

// Aggregator accumulates file results as they arrive from concurrent
// workers.
type Aggregator struct {
	mu      sync.Mutex
	run     types.RunVerdict
	targets version.Targets
}

func New(targets version.Targets) *Aggregator {
	return &Aggregator{run: Empty(), targets: targets}
}

// Add folds one file result in. Failed files are recorded as errors and
// do not affect the minimums.
func (a *Aggregator) Add(r types.FileResult) {
	if r.Err != nil {
		a.AddError(r.Path, r.Err)
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.run = MergeRuns(a.run, FromFile(r.Verdict))
}

func (a *Aggregator) AddError(path string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.run = MergeRuns(a.run, types.RunVerdict{
		Unknown: true,
		Errors:  []types.FileError{{Path: path, Err: err.Error()}},
	})
}

// Snapshot returns a copy of the verdict so far, with target violations
// checked against the current minimums.
func (a *Aggregator) Snapshot() types.RunVerdict {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.run
	out.Minimums = a.run.Minimums.Clone()
	if len(a.run.Errors) > 0 {
		out.Errors = append([]types.FileError(nil), a.run.Errors...)
	}
	out.Violations = combine.CheckTargets(out.Minimums, a.targets)
	return out
}
