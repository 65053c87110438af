package analyze

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/minver/internal/config"
	"github.com/gnolang/minver/internal/parser"
	"github.com/gnolang/minver/internal/version"
)

func newRunner(t *testing.T, o config.Overrides) *Runner {
	t.Helper()
	r, err := New(config.Default().Merge(o), nil)
	require.NoError(t, err)
	r.SetProgress(nil)
	return r
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(config.Default().Merge(config.Overrides{Backports: []string{"nope"}}), nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = New(config.Default().Merge(config.Overrides{Features: []string{"nope"}}), nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = New(config.Default().Merge(config.Overrides{ExcludePaths: []string{"[a-"}}), nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestAnalyzeSource(t *testing.T) {
	t.Parallel()

	r := newRunner(t, config.Overrides{})
	ctx := context.Background()

	tests := []struct {
		name     string
		src      string
		expected string
		unknown  bool
	}{
		{"empty", "", "~2, ~3", true},
		{"unknown constructs", "x = 1\nprint_me(x)\n", "~2, ~3", true},
		{"py3 only module", "import asyncio\n", "!2, 3.4", false},
		{"both families", "import ast\n", "2.6, 3.0", false},
		{"max of facts", "import ast\nimport asyncio\n", "!2, 3.4", false},
		{"except comma", "try:\n    pass\nexcept ValueError, e:\n    pass\n", "2.0, !3", false},
		{"raise comma", "raise ValueError, 'msg'\n", "2.0, !3", false},
		{"tuple parameters", "def f((a, b)):\n    pass\n", "2.0, !3", false},
		{"backtick repr", "x = `1`\n", "2.0, !3", false},
		{"ur prefix", "x = ur'abc'\n", "2.0, !3", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.AnalyzeSource(ctx, tt.name+".py", []byte(tt.src))
			require.NoError(t, res.Err)
			assert.Equal(t, tt.expected, res.Verdict.Minimums.String())
			assert.Equal(t, tt.unknown, res.Verdict.Unknown)
		})
	}
}

func TestAnalyzeSourceCached(t *testing.T) {
	t.Parallel()

	r := newRunner(t, config.Overrides{})
	src := []byte("import asyncio\n")

	first := r.AnalyzeSource(context.Background(), "a.py", src)
	require.NoError(t, first.Err)
	assert.Equal(t, 1, r.cache.Len())

	second := r.AnalyzeSource(context.Background(), "b.py", src)
	assert.Equal(t, "b.py", second.Path)
	assert.Equal(t, first.Verdict, second.Verdict)
	assert.Equal(t, 1, r.cache.Len())
}

func TestAnalyzeSourceSyntaxError(t *testing.T) {
	t.Parallel()

	src := []byte("x = f'{a}'\ndef (:\n")

	yes := true
	for _, o := range []config.Overrides{{}, {Pessimistic: &yes}} {
		r := newRunner(t, o)
		res := r.AnalyzeSource(context.Background(), "x.py", src)
		assert.ErrorIs(t, res.Err, parser.ErrSyntax)
		assert.Empty(t, res.Facts)
		assert.Empty(t, res.Verdict.Minimums)
		assert.Zero(t, r.cache.Len())
	}
}

func TestAnalyzeSourceVisits(t *testing.T) {
	t.Parallel()

	yes := true
	r := newRunner(t, config.Overrides{PrintVisits: &yes})
	res := r.AnalyzeSource(context.Background(), "x.py", []byte("import ast\n"))
	require.NoError(t, res.Err)
	assert.Contains(t, res.Visits, "Module")
	assert.Contains(t, res.Visits, "Import")
}

func TestAnalyzeSourceTargets(t *testing.T) {
	t.Parallel()

	targets, err := version.ParseTargets([]string{"3.3"})
	require.NoError(t, err)
	r := newRunner(t, config.Overrides{Targets: targets})

	res := r.AnalyzeSource(context.Background(), "x.py", []byte("import asyncio\n"))
	require.NoError(t, res.Err)
	require.Len(t, res.Verdict.Violations, 1)
	assert.Equal(t, version.Py3, res.Verdict.Violations[0].Family)
}

func TestAnalyzeFileMissing(t *testing.T) {
	t.Parallel()

	r := newRunner(t, config.Overrides{})
	res := r.AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "missing.py"))
	assert.ErrorIs(t, res.Err, os.ErrNotExist)
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeFile(t, dir, "a.py", "")
	b := writeFile(t, dir, "pkg/b.pyw", "")
	script := writeFile(t, dir, "bin/tool", "#!/usr/bin/env python3\nprint('x')\n")
	writeFile(t, dir, "bin/shell", "#!/bin/sh\necho x\n")
	writeFile(t, dir, "notes.txt", "")
	hidden := writeFile(t, dir, ".hidden/c.py", "")
	vendored := writeFile(t, dir, "vendor/d.py", "")

	r := newRunner(t, config.Overrides{})
	files, err := r.Discover([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{a, script, b, vendored}, files)

	yes := true
	r = newRunner(t, config.Overrides{AnalyzeHidden: &yes, ExcludePaths: []string{"vendor"}})
	files, err = r.Discover([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{hidden, a, script, b}, files)

	// Explicit files are taken as given, duplicates collapse.
	notes := filepath.Join(dir, "notes.txt")
	files, err = r.Discover([]string{notes, notes})
	require.NoError(t, err)
	assert.Equal(t, []string{notes}, files)

	files, err = r.Discover([]string{filepath.Join(dir, "**", "*.py")})
	require.NoError(t, err)
	assert.Contains(t, files, a)

	_, err = r.Discover([]string{filepath.Join(dir, "missing")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.py", "import ast\n")
	writeFile(t, dir, "b.py", "import asyncio\n")
	writeFile(t, dir, "c.py", "x = 1\n")

	two := 2
	r := newRunner(t, config.Overrides{Processes: &two})
	rep, err := r.Run(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Verdict.Files)
	assert.Equal(t, "!2, 3.4", rep.Verdict.Minimums.String())
	require.Len(t, rep.Files, 3)
	assert.Equal(t, filepath.Join(dir, "a.py"), rep.Files[0].Path)
	assert.False(t, r.Failed(rep))

	writeFile(t, dir, "d.py", "import asyncio\nimport _winreg\n")
	rep, err = r.Run(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Equal(t, "!2, !3", rep.Verdict.Minimums.String())
	assert.True(t, r.Failed(rep))

	yes := true
	r = newRunner(t, config.Overrides{IgnoreIncomp: &yes})
	rep, err = r.Run(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.False(t, r.Failed(rep))
}

func TestRunFileErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		writeFile(t, dir, fmt.Sprintf("ok%d.py", i), "import ast\n")
	}
	writeFile(t, dir, "broken.py", "def f(:\n")

	yes := true
	r := newRunner(t, config.Overrides{Pessimistic: &yes})
	rep, err := r.Run(context.Background(), []string{dir})
	assert.ErrorIs(t, err, parser.ErrSyntax)
	assert.NotEmpty(t, rep.Verdict.Errors)
	assert.True(t, r.Failed(rep))

	r = newRunner(t, config.Overrides{})
	rep, err = r.Run(context.Background(), []string{dir})
	require.NoError(t, err)
	require.Len(t, rep.Verdict.Errors, 1)
	assert.Equal(t, filepath.Join(dir, "broken.py"), rep.Verdict.Errors[0].Path)
	assert.Equal(t, 5, rep.Verdict.Files)
	assert.Equal(t, "2.6, 3.0", rep.Verdict.Minimums.String())
	assert.True(t, r.Failed(rep))
}

func TestRunSyntaxErrorExcludedFromMinimums(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "ok.py", "import ast\n")
	writeFile(t, dir, "broken.py", "x = f'{a}'\ndef (:\n")

	r := newRunner(t, config.Overrides{})
	rep, err := r.Run(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Equal(t, "2.6, 3.0", rep.Verdict.Minimums.String())
	assert.False(t, rep.Verdict.Unknown)
	require.Len(t, rep.Verdict.Errors, 1)
	assert.ErrorIs(t, rep.Files[0].Err, parser.ErrSyntax)
}

func TestRunContextCancellation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for i := 0; i < 10; i++ {
		writeFile(t, dir, fmt.Sprintf("test%d.py", i), "import asyncio\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newRunner(t, config.Overrides{})
	rep, err := r.Run(ctx, []string{dir})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotNil(t, rep.Verdict.Minimums)
}
