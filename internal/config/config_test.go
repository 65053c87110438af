package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/minver/internal/backport"
	"github.com/gnolang/minver/internal/detect"
	"github.com/gnolang/minver/internal/version"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	c := Default()
	assert.False(t, c.Quiet)
	assert.Equal(t, 0, c.Verbose)
	assert.Equal(t, DefaultProcesses, c.Processes)
	assert.True(t, c.ShowTips)
	assert.False(t, c.Lax)
	assert.False(t, c.Pessimistic)
	assert.Empty(t, c.Exclusions)
	assert.Empty(t, c.Backports)
	assert.Empty(t, c.Features)
	assert.Empty(t, c.Targets)
	assert.Equal(t, "default", c.Format)
	assert.NoError(t, c.Validate())
}

func TestParseInvalidSection(t *testing.T) {
	t.Parallel()

	for _, data := range []string{"", "\n", "[minver\n", "minver]\n", "[ minver ]\n", "[other]\nquiet = 1\n"} {
		_, err := ParseData([]byte(data))
		assert.ErrorIs(t, err, ErrInvalidConfig, "%q", data)
	}
}

func TestParseBooleans(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value    string
		expected bool
	}{
		{"", false},
		{"1", true},
		{"on", true},
		{"yes", true},
		{"true", true},
		{"TrUe", true},
		{"0", false},
		{"off", false},
		{"No", false},
		{"FALSE", false},
	}
	for _, tt := range tests {
		c, err := ParseData([]byte("[minver]\nquiet = " + tt.value + "\n"))
		require.NoError(t, err, tt.value)
		assert.Equal(t, tt.expected, c.Quiet, tt.value)
	}

	c, err := ParseData([]byte("[minver]\n#quiet = True\nshow_tips =\n"))
	require.NoError(t, err)
	assert.False(t, c.Quiet)
	assert.True(t, c.ShowTips)

	_, err = ParseData([]byte("[minver]\nlax = maybe\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseCounts(t *testing.T) {
	t.Parallel()

	c, err := ParseData([]byte("[minver]\nverbose = 2\nprocesses = 10\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Verbose)
	assert.Equal(t, 10, c.Processes)

	c, err = ParseData([]byte("[minver]\nprocesses = 0\nverbose =\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultProcesses, c.Processes)
	assert.Equal(t, 0, c.Verbose)

	for _, data := range []string{"verbose = -1", "processes = -1", "processes = many"} {
		_, err := ParseData([]byte("[minver]\n" + data + "\n"))
		assert.ErrorIs(t, err, ErrInvalidConfig, data)
	}
}

func TestParseExclusions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		data     string
		expected []string
	}{
		{"exclusions =\n", nil},
		{"#exclusions = mod.member\n", nil},
		{"exclusions = mod.member\n", []string{"mod.member"}},
		{"exclusions = mod.member\n  foo.bar(baz)\n", []string{"foo.bar(baz)", "mod.member"}},
		{"exclusions =\n  mod.member\n  foo.bar(baz)\n  ce=utf-8\n", []string{"ce=utf-8", "foo.bar(baz)", "mod.member"}},
	}
	for _, tt := range tests {
		c, err := ParseData([]byte("[minver]\n" + tt.data))
		require.NoError(t, err, tt.data)
		assert.Equal(t, tt.expected, c.Exclusions, tt.data)
	}

	_, err := ParseData([]byte("[minver]\nexclusions = ce=\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseBackportsAndFeatures(t *testing.T) {
	t.Parallel()

	names := backport.Names()
	c, err := ParseData([]byte("[minver]\nbackports = " + strings.Join(names, "\n  ") + "\n"))
	require.NoError(t, err)
	assert.Equal(t, names, c.Backports)

	_, err = ParseData([]byte("[minver]\nbackports = unknown\n"))
	assert.ErrorIs(t, err, backport.ErrUnknownBackport)
	_, err = ParseData([]byte("[minver]\nbackports = " + names[0] + "\n  unknown\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	features := detect.Features()
	c, err = ParseData([]byte("[minver]\nfeatures = " + strings.Join(features, "\n  ") + "\n"))
	require.NoError(t, err)
	assert.Equal(t, features, c.Features)

	_, err = ParseData([]byte("[minver]\nfeatures = unknown\n"))
	assert.ErrorIs(t, err, detect.ErrUnknownFeature)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for _, f := range Formats {
		c, err := ParseData([]byte("[minver]\nformat = " + f + "\n"))
		require.NoError(t, err)
		assert.Equal(t, f, c.Format)
	}
	_, err := ParseData([]byte("[minver]\nformat = unknown\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseTargets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		data     string
		expected []string
	}{
		{"targets =\n", nil},
		{"#targets = 2.0\n", nil},
		{"targets = 2.0\n", []string{"2.0"}},
		{"targets = 2.0-\n", []string{"2.0-"}},
		{"targets = 2.0\n  3.0\n", []string{"2.0", "3.0"}},
		{"targets = 3.0-\n  2.0\n", []string{"2.0", "3.0-"}},
		{"targets = 2,1\n  3,2-\n", []string{"2.1", "3.2-"}},
	}
	for _, tt := range tests {
		c, err := ParseData([]byte("[minver]\n" + tt.data))
		require.NoError(t, err, tt.data)
		assert.Equal(t, tt.expected, []string(nilIfEmpty(c.Targets.Strings())), tt.data)
	}

	invalid := []string{
		"targets = invalid\n",
		"targets = 2.0 3.0\n",
		"targets = 2.0\n  3.0\n  3.1\n",
		"targets = 2.0\n  2.7\n",
		"targets = 1.0\n",
		"targets = 4.0\n",
	}
	for _, data := range invalid {
		_, err := ParseData([]byte("[minver]\n" + data))
		assert.ErrorIs(t, err, version.ErrInvalidTarget, data)
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestParseUnknownKey(t *testing.T) {
	t.Parallel()

	_, err := ParseData([]byte("[minver]\nquiet = 1\ncolour = yes\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseKeysCaseInsensitive(t *testing.T) {
	t.Parallel()

	c, err := ParseData([]byte("[minver]\nQuiet = 1\nSHOW_TIPS = no\n"))
	require.NoError(t, err)
	assert.True(t, c.Quiet)
	assert.False(t, c.ShowTips)

	_, err = ParseData([]byte("[MINVER]\nquiet = 1\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "minver.ini")
	require.NoError(t, os.WriteFile(path, []byte(`[minver]
quiet = 1
verbose = 2
print_visits = on
ignore_incomp = yes
lax = true
pessimistic = TrUe
eval_annotations = on
only_show_violations = 1
`), 0o644))

	c, err := ParseFile(path)
	require.NoError(t, err)
	assert.True(t, c.Quiet)
	assert.Equal(t, 2, c.Verbose)
	assert.True(t, c.PrintVisits)
	assert.True(t, c.IgnoreIncomp)
	assert.True(t, c.Lax)
	assert.True(t, c.Pessimistic)
	assert.True(t, c.EvalAnnotations)
	assert.True(t, c.OnlyShowViolations)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.ini"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMerge(t *testing.T) {
	t.Parallel()

	base, err := ParseData([]byte("[minver]\nexclusions = a.b\nbackports = typing\ntargets = 2.7\n"))
	require.NoError(t, err)

	yes, three, parsable := true, 3, "parsable"
	targets, err := version.ParseTargets([]string{"3.6-"})
	require.NoError(t, err)

	merged := base.Merge(Overrides{
		Quiet:      &yes,
		Verbose:    &three,
		Format:     &parsable,
		Exclusions: []string{"c.d", "a.b"},
		Backports:  []string{"enum"},
		Targets:    targets,
	})
	assert.True(t, merged.Quiet)
	assert.Equal(t, 3, merged.Verbose)
	assert.Equal(t, "parsable", merged.Format)
	assert.Equal(t, []string{"a.b", "c.d"}, merged.Exclusions)
	assert.Equal(t, []string{"enum", "typing"}, merged.Backports)
	assert.Equal(t, []string{"3.6-"}, merged.Targets.Strings())
	assert.True(t, merged.ShowTips)

	// The receiver is left untouched.
	assert.False(t, base.Quiet)
	assert.Equal(t, []string{"a.b"}, base.Exclusions)
	assert.Equal(t, []string{"2.7"}, base.Targets.Strings())

	// Empty overrides keep everything.
	assert.Equal(t, base, base.Merge(Overrides{}))
}

func TestWriteToRoundTrip(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	_, err := Default().WriteTo(&sb)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sb.String(), "[minver]"))

	c, err := ParseData([]byte(sb.String()))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	targets, err := version.ParseTargets([]string{"2.7", "3.5-"})
	require.NoError(t, err)
	custom := Default().Merge(Overrides{
		Exclusions: []string{"os.scandir", "ce=utf-8"},
		Backports:  []string{"typing"},
		Targets:    targets,
	})
	sb.Reset()
	_, err = custom.WriteTo(&sb)
	require.NoError(t, err)
	c, err = ParseData([]byte(sb.String()))
	require.NoError(t, err)
	assert.Equal(t, custom, c)
}

func touch(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDetectConfigFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	deep := filepath.Join(root, "depth1", "depth2")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	for _, name := range FileNames {
		for _, from := range []string{root, filepath.Join(root, "depth1"), deep} {
			path := touch(t, root, name, "[minver]\n")
			found, err := DetectConfigFile(from)
			require.NoError(t, err)
			assert.Equal(t, path, found)
			require.NoError(t, os.Remove(path))
		}
	}

	// A setup.cfg without the section does not count.
	touch(t, root, "setup.cfg", "[metadata]\nname = x\n")
	found, err := DetectConfigFile(deep)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDetectConfigFileStopsAtBoundary(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	depth1 := filepath.Join(root, "depth1")
	deep := filepath.Join(depth1, "depth2")
	require.NoError(t, os.MkdirAll(deep, 0o755))
	touch(t, root, FileNames[0], "[minver]\n")

	for _, b := range ProjectBoundaries {
		boundary := filepath.Join(depth1, b)
		require.NoError(t, os.Mkdir(boundary, 0o755))
		found, err := DetectConfigFile(deep)
		require.NoError(t, err)
		assert.Empty(t, found, b)
		require.NoError(t, os.RemoveAll(boundary))
	}
}

func TestString(t *testing.T) {
	t.Parallel()

	s := Default().String()
	assert.True(t, strings.HasPrefix(s, "Config(\n"))
	assert.Contains(t, s, "  show_tips = true\n")
	assert.Contains(t, s, "  format = default\n")
}
