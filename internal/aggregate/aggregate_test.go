package aggregate

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/minver/internal/combine"
	"github.com/gnolang/minver/internal/types"
	"github.com/gnolang/minver/internal/version"
)

func verdict(p2, p3 version.Minimum) types.FileVerdict {
	return types.FileVerdict{Minimums: types.Minimums{version.Py2: p2, version.Py3: p3}}
}

func req(major, minor int) version.Minimum {
	return version.Require(version.V(major, minor))
}

var none = version.Minimum{}

func TestMergeMaximum(t *testing.T) {
	t.Parallel()

	run := Merge(
		verdict(req(2, 6), req(3, 2)),
		verdict(req(2, 7), req(3, 0)),
	)
	assert.Equal(t, "2.7, 3.2", run.Minimums.String())
	assert.Equal(t, 2, run.Files)
	assert.False(t, run.Unknown)
}

func TestMergeIncompatibleDominates(t *testing.T) {
	t.Parallel()

	run := Merge(
		verdict(version.Never(), req(3, 6)),
		verdict(req(2, 7), req(3, 3)),
	)
	assert.Equal(t, "!2, 3.6", run.Minimums.String())
}

func TestMergeEmpty(t *testing.T) {
	t.Parallel()

	run := Merge()
	assert.True(t, run.Unknown)
	assert.Zero(t, run.Files)
	assert.Equal(t, "~2, ~3", run.Minimums.String())

	unknown := types.FileVerdict{Minimums: types.Minimums{}, Unknown: true}
	assert.True(t, Merge(unknown, unknown).Unknown)
	assert.False(t, Merge(unknown, verdict(none, req(3, 1))).Unknown)
}

func TestMergeAssociativeAndCommutative(t *testing.T) {
	t.Parallel()

	vs := []types.FileVerdict{
		verdict(req(2, 7), none),
		verdict(none, req(3, 6)),
		verdict(version.Never(), req(3, 2)),
		{Minimums: types.Minimums{}, Unknown: true},
	}
	expected := Merge(vs...)

	left := MergeRuns(MergeRuns(FromFile(vs[0]), FromFile(vs[1])), FromFile(vs[2]))
	right := MergeRuns(FromFile(vs[0]), MergeRuns(FromFile(vs[1]), FromFile(vs[2])))
	assert.Equal(t, left, right)

	perms := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}}
	for _, p := range perms {
		shuffled := make([]types.FileVerdict, len(p))
		for i, idx := range p {
			shuffled[i] = vs[idx]
		}
		assert.Equal(t, expected, Merge(shuffled...), fmt.Sprint(p))
	}
}

func TestAggregatorConcurrent(t *testing.T) {
	t.Parallel()

	targets, err := version.ParseTargets([]string{"3.5-"})
	require.NoError(t, err)
	a := New(targets)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch {
			case i%10 == 0:
				a.Add(types.FileResult{Path: fmt.Sprintf("bad%02d.py", i), Err: errors.New("boom")})
			case i == 7:
				a.Add(types.FileResult{Verdict: verdict(none, req(3, 6))})
			default:
				a.Add(types.FileResult{Verdict: verdict(req(2, 7), req(3, 3))})
			}
		}(i)
	}
	wg.Wait()

	run := a.Snapshot()
	assert.Equal(t, 45, run.Files)
	assert.Len(t, run.Errors, 5)
	assert.Equal(t, "bad00.py", run.Errors[0].Path)
	assert.Equal(t, "2.7, 3.6", run.Minimums.String())
	require.Len(t, run.Violations, 1)
	assert.Equal(t, version.Py3, run.Violations[0].Family)
}

func TestSnapshotIsolated(t *testing.T) {
	t.Parallel()

	a := New(nil)
	a.Add(types.FileResult{Verdict: verdict(req(2, 6), none)})
	snap := a.Snapshot()

	a.Add(types.FileResult{Verdict: verdict(req(2, 7), none)})
	assert.Equal(t, req(2, 6), snap.Minimums.Get(version.Py2))
	assert.Equal(t, req(2, 7), a.Snapshot().Minimums.Get(version.Py2))
}

func TestRunTargetViolation(t *testing.T) {
	t.Parallel()

	// A configured exact target and a file needing a newer release.
	targets, err := version.ParseTargets([]string{"3.0"})
	require.NoError(t, err)

	a := New(targets)
	a.Add(types.FileResult{Verdict: combine.Combine([]types.Requirement{
		{Family: version.Py3, Minimum: req(3, 3), Certain: true},
	}, targets)})
	run := a.Snapshot()
	require.Len(t, run.Violations, 1)
	assert.Equal(t, req(3, 3), run.Violations[0].Minimum)
}
