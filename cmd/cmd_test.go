package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/minver/analyze"
	"github.com/gnolang/minver/internal/config"
	"github.com/gnolang/minver/internal/version"
)

func parseFlags(t *testing.T, args ...string) (*pflag.FlagSet, *checkFlags) {
	t.Helper()
	f := &checkFlags{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.register(fs)
	require.NoError(t, fs.Parse(args))
	return fs, f
}

func createTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOverrides(t *testing.T) {
	t.Parallel()

	fs, f := parseFlags(t)
	o, err := f.overrides(fs)
	require.NoError(t, err)
	assert.Equal(t, config.Overrides{}, o)

	dir := t.TempDir()
	exclusions := createTempFile(t, dir, "exclusions.txt", "# comment\nos.scandir\n\nce=utf-8\n")

	fs, f = parseFlags(t,
		"-vv", "-p", "3", "--lax", "--no-tips",
		"--exclude", "a.b", "--exclude-file", exclusions,
		"--backport", "typing", "-t", "2.7", "-t", "3.5-",
		"--format", "json",
	)
	o, err = f.overrides(fs)
	require.NoError(t, err)
	assert.Nil(t, o.Quiet)
	require.NotNil(t, o.Verbose)
	assert.Equal(t, 2, *o.Verbose)
	require.NotNil(t, o.Processes)
	assert.Equal(t, 3, *o.Processes)
	require.NotNil(t, o.ShowTips)
	assert.False(t, *o.ShowTips)
	assert.Nil(t, o.Pessimistic)
	assert.Equal(t, []string{"a.b", "os.scandir", "ce=utf-8"}, o.Exclusions)
	assert.Equal(t, []string{"typing"}, o.Backports)
	assert.Equal(t, []string{"2.7", "3.5-"}, o.Targets.Strings())
	require.NotNil(t, o.Format)
	assert.Equal(t, "json", *o.Format)

	fs, f = parseFlags(t, "-t", "2.7", "-t", "2.6")
	_, err = f.overrides(fs)
	assert.ErrorIs(t, err, version.ErrInvalidTarget)

	fs, f = parseFlags(t, "--exclude-file", filepath.Join(dir, "missing"))
	_, err = f.overrides(fs)
	assert.ErrorIs(t, err, os.ErrNotExist)

	fs, f = parseFlags(t, "-q")
	o, err = f.overrides(fs)
	require.NoError(t, err)
	require.NotNil(t, o.Quiet)
	assert.True(t, *o.Quiet)
}

func TestOverridesRejectInvalidFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		expected error
	}{
		{"quiet and verbose", []string{"-q", "-v"}, errQuietVerbose},
		{"verbose and quiet", []string{"-vvv", "--quiet"}, errQuietVerbose},
		{"zero processes", []string{"-p", "0"}, errInvalidProcesses},
		{"negative processes", []string{"--processes=-2"}, errInvalidProcesses},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, f := parseFlags(t, tt.args...)
			_, err := f.overrides(fs)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestSearchDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := createTempFile(t, dir, "a.py", "")
	assert.Equal(t, ".", searchDir(nil))
	assert.Equal(t, ".", searchDir([]string{"src/**/*.py"}))
	assert.Equal(t, dir, searchDir([]string{dir}))
	assert.Equal(t, dir, searchDir([]string{file}))
}

func TestLoadConfigDiscoversFile(t *testing.T) {
	dir := t.TempDir()
	createTempFile(t, dir, "setup.cfg", "[minver]\ntargets = 3.6-\nlax = yes\n")
	file := createTempFile(t, dir, "a.py", "import asyncio\n")

	fs, f := parseFlags(t, "-t", "3.8")
	cfg, err := loadConfig(fs, f, []string{file})
	require.NoError(t, err)
	assert.True(t, cfg.Lax)
	assert.Equal(t, []string{"3.8"}, cfg.Targets.Strings())

	fs, f = parseFlags(t)
	cfg, err = loadConfig(fs, f, []string{file})
	require.NoError(t, err)
	assert.Equal(t, []string{"3.6-"}, cfg.Targets.Strings())
}

func TestRunCheck(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	createTempFile(t, dir, "a.py", "import ast\n")
	createTempFile(t, dir, "b.py", "import asyncio\n")

	var out bytes.Buffer
	err := runCheck(context.Background(), &out, config.Default(), []string{dir}, checkOutput{})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Minimum required versions: 3.4\n")
	assert.Contains(t, out.String(), "Incompatible versions:     2\n")

	out.Reset()
	err = runCheck(context.Background(), &out, config.Default(), []string{dir}, checkOutput{versions: true})
	require.NoError(t, err)
	assert.Equal(t, "2.6\n3.0\n3.4\n!2\n", out.String())

	targets, err := version.ParseTargets([]string{"3.3"})
	require.NoError(t, err)
	out.Reset()
	err = runCheck(context.Background(), &out, config.Default().Merge(config.Overrides{Targets: targets}), []string{dir}, checkOutput{})
	assert.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, out.String(), "Target not met")

	out.Reset()
	err = runCheck(context.Background(), &out, config.Default(), []string{filepath.Join(dir, "missing")}, checkOutput{})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrFailed)
}

func TestRunCheckCanceledReportsPartialVerdict(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	createTempFile(t, dir, "a.py", "import asyncio\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := runCheck(ctx, &out, config.Default(), []string{dir}, checkOutput{})
	assert.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, out.String(), "No known reason found")
}

func TestConfigFileTargetViolation(t *testing.T) {
	dir := t.TempDir()
	createTempFile(t, dir, "minver.ini", "[minver]\ntargets = 2.7\n")
	file := createTempFile(t, dir, "a.py", "import asyncio\n")

	fs, f := parseFlags(t)
	cfg, err := loadConfig(fs, f, []string{file})
	require.NoError(t, err)
	assert.Equal(t, []string{"2.7"}, cfg.Targets.Strings())

	var out bytes.Buffer
	err = runCheck(context.Background(), &out, cfg, []string{file}, checkOutput{})
	assert.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, out.String(), "Target not met: target 2.7 not met: minimum is !2\n")
}

func TestRunCheckFrequencyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	createTempFile(t, dir, "a.py", "import asyncio\n")
	freq := filepath.Join(t.TempDir(), "freq.json")

	for range 2 {
		var out bytes.Buffer
		require.NoError(t, runCheck(context.Background(), &out, config.Default(), []string{dir}, checkOutput{freqFile: freq}))
	}

	data, err := os.ReadFile(freq)
	require.NoError(t, err)
	var counts map[string]int
	require.NoError(t, json.Unmarshal(data, &counts))
	assert.Equal(t, 2, counts["module:asyncio"])
}

func TestInitConfigurationFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "minver.ini")
	got, err := initConfigurationFile(path, false)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	cfg, err := config.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	_, err = initConfigurationFile(path, false)
	assert.Error(t, err)
	_, err = initConfigurationFile(path, true)
	assert.NoError(t, err)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatcher(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runner, err := analyze.New(config.Default(), nil)
	require.NoError(t, err)

	var out syncBuffer
	w, err := newWatcher(runner, &out, formatOptions(config.Default()))
	require.NoError(t, err)
	defer w.close()
	w.delay = 10 * time.Millisecond
	require.NoError(t, w.add([]string{dir}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.loop(ctx) }()

	createTempFile(t, dir, "notes.txt", "import asyncio\n")
	createTempFile(t, dir, "a.py", "import asyncio\n")

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Minimum required versions: 3.4")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
