// Package config holds the settings of an analysis run and reads them from
// INI files.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/ini.v1"

	"github.com/gnolang/minver/internal/backport"
	"github.com/gnolang/minver/internal/detect"
	"github.com/gnolang/minver/internal/exclusion"
	"github.com/gnolang/minver/internal/version"
)

// Section is the INI section holding the settings.
const Section = "minver"

// FileNames are the config files looked for, in order.
var FileNames = []string{"minver.ini", "setup.cfg"}

// ProjectBoundaries are the entries that mark the root of a project.
// Config discovery does not walk above a directory containing one.
var ProjectBoundaries = []string{".git", ".svn", ".hg", ".bzr", "_darcs", ".fslckout", ".p4root", ".pijul"}

// Formats are the report format names.
var Formats = []string{"default", "parsable", "github", "json"}

var DefaultProcesses = runtime.NumCPU()

var ErrInvalidConfig = errors.New("invalid config")

// Config is an immutable set of run settings. Use Merge to derive a
// modified copy.
type Config struct {
	Quiet              bool
	Verbose            int
	PrintVisits        bool
	Processes          int
	IgnoreIncomp       bool
	Lax                bool
	Pessimistic        bool
	ShowTips           bool
	AnalyzeHidden      bool
	Exclusions         []string
	ExcludePaths       []string
	Backports          []string
	Features           []string
	Targets            version.Targets
	EvalAnnotations    bool
	OnlyShowViolations bool
	Format             string
}

func Default() Config {
	return Config{
		Processes: DefaultProcesses,
		ShowTips:  true,
		Format:    "default",
	}
}

// Validate checks every value that names something: exclusion patterns,
// path globs, backports, features and the format.
func (c Config) Validate() error {
	for _, e := range c.Exclusions {
		if _, err := exclusion.ParsePattern(e); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	for _, p := range c.ExcludePaths {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("%w: bad path pattern %q", ErrInvalidConfig, p)
		}
	}
	for _, b := range c.Backports {
		if _, ok := backport.Lookup(b); !ok {
			return fmt.Errorf("%w: %w: %q", ErrInvalidConfig, backport.ErrUnknownBackport, b)
		}
	}
	for _, f := range c.Features {
		if err := detect.ValidateFeature(f); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if !validFormat(c.Format) {
		return fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, c.Format)
	}
	if c.Verbose < 0 {
		return fmt.Errorf("%w: verbose must not be negative", ErrInvalidConfig)
	}
	if c.Processes < 0 {
		return fmt.Errorf("%w: processes must not be negative", ErrInvalidConfig)
	}
	return nil
}

func validFormat(name string) bool {
	for _, f := range Formats {
		if f == name {
			return true
		}
	}
	return false
}

// Overrides are explicitly given settings, typically from command line
// flags. Nil fields leave the config untouched.
type Overrides struct {
	Quiet              *bool
	Verbose            *int
	PrintVisits        *bool
	Processes          *int
	IgnoreIncomp       *bool
	Lax                *bool
	Pessimistic        *bool
	ShowTips           *bool
	AnalyzeHidden      *bool
	EvalAnnotations    *bool
	OnlyShowViolations *bool
	Format             *string

	// List values are added to the config's.
	Exclusions   []string
	ExcludePaths []string
	Backports    []string
	Features     []string

	// Targets replace the config's when non-empty.
	Targets version.Targets
}

// Merge returns c with o applied.
func (c Config) Merge(o Overrides) Config {
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setBool(&c.Quiet, o.Quiet)
	setBool(&c.PrintVisits, o.PrintVisits)
	setBool(&c.IgnoreIncomp, o.IgnoreIncomp)
	setBool(&c.Lax, o.Lax)
	setBool(&c.Pessimistic, o.Pessimistic)
	setBool(&c.ShowTips, o.ShowTips)
	setBool(&c.AnalyzeHidden, o.AnalyzeHidden)
	setBool(&c.EvalAnnotations, o.EvalAnnotations)
	setBool(&c.OnlyShowViolations, o.OnlyShowViolations)
	if o.Verbose != nil {
		c.Verbose = *o.Verbose
	}
	if o.Processes != nil {
		c.Processes = *o.Processes
		if c.Processes == 0 {
			c.Processes = DefaultProcesses
		}
	}
	if o.Format != nil {
		c.Format = *o.Format
	}

	c.Exclusions = union(c.Exclusions, o.Exclusions)
	c.ExcludePaths = union(c.ExcludePaths, o.ExcludePaths)
	c.Backports = union(c.Backports, o.Backports)
	c.Features = union(c.Features, o.Features)
	if len(o.Targets) > 0 {
		c.Targets = append(version.Targets(nil), o.Targets...)
	}
	return c
}

// union returns the sorted, deduplicated union of a and b as a new slice.
func union(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string(nil), a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Key names are case-insensitive, section names are not.
var loadOptions = ini.LoadOptions{
	AllowPythonMultilineValues: true,
	InsensitiveKeys:            true,
	SpaceBeforeInlineComment:   true,
}

// ParseData reads a config from INI data. The data must contain the
// [minver] section; unknown keys and malformed values are errors.
func ParseData(data []byte) (Config, error) {
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	sec, err := f.GetSection(Section)
	if err != nil {
		return Config{}, fmt.Errorf("%w: missing [%s] section", ErrInvalidConfig, Section)
	}

	c := Default()
	for _, k := range sec.Keys() {
		if err := c.set(k.Name(), k.String()); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, k.Name(), err)
		}
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// ParseFile reads the config file at path.
func ParseFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	c, err := ParseData(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c *Config) set(key, value string) error {
	value = strings.TrimSpace(value)
	var err error
	switch key {
	case "quiet":
		c.Quiet, err = parseBool(value, c.Quiet)
	case "verbose":
		c.Verbose, err = parseCount(value, 0)
	case "print_visits":
		c.PrintVisits, err = parseBool(value, c.PrintVisits)
	case "processes":
		c.Processes, err = parseCount(value, DefaultProcesses)
		if err == nil && c.Processes == 0 {
			c.Processes = DefaultProcesses
		}
	case "ignore_incomp":
		c.IgnoreIncomp, err = parseBool(value, c.IgnoreIncomp)
	case "lax":
		c.Lax, err = parseBool(value, c.Lax)
	case "pessimistic":
		c.Pessimistic, err = parseBool(value, c.Pessimistic)
	case "show_tips":
		c.ShowTips, err = parseBool(value, c.ShowTips)
	case "analyze_hidden":
		c.AnalyzeHidden, err = parseBool(value, c.AnalyzeHidden)
	case "eval_annotations":
		c.EvalAnnotations, err = parseBool(value, c.EvalAnnotations)
	case "only_show_violations":
		c.OnlyShowViolations, err = parseBool(value, c.OnlyShowViolations)
	case "exclusions":
		c.Exclusions = union(nil, lines(value))
	case "exclude_paths":
		c.ExcludePaths = union(nil, lines(value))
	case "backports":
		c.Backports = union(nil, lines(value))
	case "features":
		c.Features = union(nil, lines(value))
	case "targets":
		c.Targets, err = version.ParseTargets(lines(value))
	case "format":
		if value != "" {
			c.Format = value
		}
	default:
		err = errors.New("unknown key")
	}
	return err
}

// lines splits a multiline value into its non-empty lines.
func lines(value string) []string {
	var out []string
	for _, l := range strings.Split(value, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func parseBool(value string, def bool) (bool, error) {
	switch strings.ToLower(value) {
	case "":
		return def, nil
	case "1", "on", "yes", "true":
		return true, nil
	case "0", "off", "no", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", value)
}

func parseCount(value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", value)
	}
	if n < 0 {
		return 0, fmt.Errorf("%d must not be negative", n)
	}
	return n, nil
}

// DetectConfigFile looks for a config file in dir and its parents. It
// stops at the first directory containing a project boundary and returns
// an empty path when nothing is found. A setup.cfg only counts when it has
// a [minver] section.
func DetectConfigFile(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		for _, name := range FileNames {
			path := filepath.Join(dir, name)
			if ok, err := isConfigFile(path); err != nil {
				return "", err
			} else if ok {
				return path, nil
			}
		}
		for _, b := range ProjectBoundaries {
			if _, err := os.Stat(filepath.Join(dir, b)); err == nil {
				return "", nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func isConfigFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	f, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return false, nil
	}
	_, err = f.GetSection(Section)
	return err == nil, nil
}

// WriteTo writes c as an INI document.
func (c Config) WriteTo(w io.Writer) (int64, error) {
	f := ini.Empty(loadOptions)
	sec, err := f.NewSection(Section)
	if err != nil {
		return 0, err
	}
	add := func(key, value, comment string) {
		k, err := sec.NewKey(key, value)
		if err == nil {
			k.Comment = comment
		}
	}
	add("quiet", fmt.Sprint(c.Quiet), "# Only print the final verdict.")
	add("verbose", fmt.Sprint(c.Verbose), "# Detail level of the report (0-4).")
	add("print_visits", fmt.Sprint(c.PrintVisits), "# Dump the syntax tree of every file.")
	add("processes", fmt.Sprint(c.Processes), "# Number of files analyzed concurrently.")
	add("ignore_incomp", fmt.Sprint(c.IgnoreIncomp), "# Do not fail on files incompatible with both families.")
	add("lax", fmt.Sprint(c.Lax), "# Treat requirements found under conditionals as uncertain.")
	add("pessimistic", fmt.Sprint(c.Pessimistic), "# Stop the run at the first file that fails to parse or read.")
	add("show_tips", fmt.Sprint(c.ShowTips), "# Print tips about undetected constructs.")
	add("analyze_hidden", fmt.Sprint(c.AnalyzeHidden), "# Analyze hidden files and directories.")
	add("eval_annotations", fmt.Sprint(c.EvalAnnotations), "# Evaluate annotations as code.")
	add("only_show_violations", fmt.Sprint(c.OnlyShowViolations), "# Only report target violations.")
	add("format", c.Format, "# One of: "+strings.Join(Formats, ", ")+".")
	add("exclusions", strings.Join(c.Exclusions, "\n"), "# Members, kwargs (f(kw)), encodings (ce=) and error handlers (ceh=).")
	add("exclude_paths", strings.Join(c.ExcludePaths, "\n"), "# Glob patterns of paths to skip.")
	add("backports", strings.Join(c.Backports, "\n"), "# One of: "+strings.Join(backport.Names(), ", ")+".")
	add("features", strings.Join(c.Features, "\n"), "# One of: "+strings.Join(detect.Features(), ", ")+".")
	add("targets", strings.Join(c.Targets.Strings(), "\n"), "# At most one per family, e.g. 2.7 or 3.6-.")
	return f.WriteTo(w)
}

func (c Config) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Config(\n")
	fmt.Fprintf(&sb, "  quiet = %v\n", c.Quiet)
	fmt.Fprintf(&sb, "  verbose = %d\n", c.Verbose)
	fmt.Fprintf(&sb, "  print_visits = %v\n", c.PrintVisits)
	fmt.Fprintf(&sb, "  processes = %d\n", c.Processes)
	fmt.Fprintf(&sb, "  ignore_incomp = %v\n", c.IgnoreIncomp)
	fmt.Fprintf(&sb, "  lax = %v\n", c.Lax)
	fmt.Fprintf(&sb, "  pessimistic = %v\n", c.Pessimistic)
	fmt.Fprintf(&sb, "  show_tips = %v\n", c.ShowTips)
	fmt.Fprintf(&sb, "  analyze_hidden = %v\n", c.AnalyzeHidden)
	fmt.Fprintf(&sb, "  exclusions = %v\n", c.Exclusions)
	fmt.Fprintf(&sb, "  exclude_paths = %v\n", c.ExcludePaths)
	fmt.Fprintf(&sb, "  backports = %v\n", c.Backports)
	fmt.Fprintf(&sb, "  features = %v\n", c.Features)
	fmt.Fprintf(&sb, "  targets = %v\n", c.Targets.Strings())
	fmt.Fprintf(&sb, "  eval_annotations = %v\n", c.EvalAnnotations)
	fmt.Fprintf(&sb, "  only_show_violations = %v\n", c.OnlyShowViolations)
	fmt.Fprintf(&sb, "  format = %s\n", c.Format)
	sb.WriteString(")")
	return sb.String()
}
