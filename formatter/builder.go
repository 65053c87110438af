package formatter

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/gnolang/minver/internal/combine"
	"github.com/gnolang/minver/internal/types"
	"github.com/gnolang/minver/internal/version"
)

const tabWidth = 8

var (
	errorStyle   = color.New(color.FgRed, color.Bold)
	warningStyle = color.New(color.FgHiYellow, color.Bold)
	fileStyle    = color.New(color.FgCyan, color.Bold)
	lineStyle    = color.New(color.FgHiBlue, color.Bold)
	versionStyle = color.New(color.FgGreen, color.Bold)
	tipStyle     = color.New(color.FgYellow)
	noStyle      = color.New(color.FgWhite)
)

// factGroup merges the per-family facts of one construct occurrence.
type factGroup struct {
	Line        int
	Col         int
	Identifier  string
	Kind        string
	Description string
	Minimums    types.Minimums
	Certain     bool
}

func (g factGroup) String() string {
	s := fmt.Sprintf("L%d C%d: %s requires %s", g.Line, g.Col, g.Description, g.Minimums)
	if !g.Certain {
		s += " (uncertain)"
	}
	return s
}

// groupFacts folds facts sharing a position and identifier, ordered by
// position.
func groupFacts(facts []types.Requirement) []factGroup {
	type key struct {
		line, col int
		id, desc  string
	}
	index := make(map[key]int)
	var out []factGroup
	for _, f := range facts {
		k := key{f.Line, f.Col, f.Identifier, f.Description}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, factGroup{
				Line:        f.Line,
				Col:         f.Col,
				Identifier:  f.Identifier,
				Kind:        f.Kind,
				Description: f.Description,
				Minimums:    types.Minimums{},
				Certain:     true,
			})
		}
		g := &out[i]
		g.Minimums[f.Family] = g.Minimums.Get(f.Family).Max(f.Minimum)
		g.Certain = g.Certain && f.Certain
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Col < out[j].Col
	})
	return out
}

// violates reports whether g alone breaks one of targets.
func (g factGroup) violates(targets version.Targets) bool {
	for _, t := range targets {
		m := g.Minimums.Get(t.Family())
		if m.IsNone() {
			continue
		}
		if !combine.Satisfies(m, t) {
			return true
		}
	}
	return false
}

// visibleFiles drops files without violations when only violations are
// shown. Failed files are always kept.
func visibleFiles(files []types.FileResult, opts Options) []types.FileResult {
	if !opts.OnlyShowViolations {
		return files
	}
	var out []types.FileResult
	for _, f := range files {
		if f.Err != nil || len(f.Verdict.Violations) > 0 {
			out = append(out, f)
		}
	}
	return out
}

// visibleFacts applies the verbosity and violation filters to the facts
// of one file.
func visibleFacts(f types.FileResult, opts Options) []factGroup {
	var out []factGroup
	for _, g := range groupFacts(f.Facts) {
		if !g.Certain && opts.Verbose < 3 {
			continue
		}
		if opts.OnlyShowViolations && !g.violates(opts.Targets) {
			continue
		}
		out = append(out, g)
	}
	return out
}

func writeDefault(w io.Writer, files []types.FileResult, run types.RunVerdict, opts Options) error {
	var sb strings.Builder

	if !opts.Quiet {
		for _, f := range visibleFiles(files, opts) {
			writeFile(&sb, f, opts)
		}
		if opts.Verbose > 0 && sb.Len() > 0 {
			sb.WriteString("\n")
		}
		if opts.ShowTips {
			writeTips(&sb, files)
		}
	}

	for _, e := range run.Errors {
		sb.WriteString(errorStyle.Sprint("error: "))
		sb.WriteString(fmt.Sprintf("%s\n", e.Err))
	}
	writeSummary(&sb, run)

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeFile(sb *strings.Builder, f types.FileResult, opts Options) {
	if f.Err != nil {
		return
	}
	if opts.Verbose > 0 {
		sb.WriteString(fmt.Sprintf("%-12s %s\n",
			versionStyle.Sprint(f.Verdict.Minimums),
			fileStyle.Sprint(f.Path)))
	}
	if opts.Verbose > 1 {
		var lines []string
		if opts.Verbose > 3 {
			lines = readSourceLines(f.Path)
		}
		for _, g := range visibleFacts(f, opts) {
			sb.WriteString(lineStyle.Sprint("  !  "))
			sb.WriteString(noStyle.Sprintf("%s\n", g))
			if lines != nil {
				sb.WriteString(codeSnippet(lines, g.Line, g.Col))
			}
		}
	}
	if f.Visits != "" {
		sb.WriteString(f.Visits)
	}
}

func writeTips(sb *strings.Builder, files []types.FileResult) {
	var tips []string
	seen := make(map[string]bool)
	for _, f := range files {
		for _, t := range f.Tips {
			if !seen[t] {
				seen[t] = true
				tips = append(tips, t)
			}
		}
		if len(f.Verdict.Possible) > 0 {
			t := fmt.Sprintf("%s: possibly requires %s given uncertain detections", f.Path, mergedPossible(f.Verdict))
			if !seen[t] {
				seen[t] = true
				tips = append(tips, t)
			}
		}
	}
	if len(tips) == 0 {
		return
	}
	sb.WriteString(tipStyle.Sprint("Tips:\n"))
	for _, t := range tips {
		sb.WriteString(tipStyle.Sprintf("- %s\n", t))
	}
	sb.WriteString("\n")
}

// mergedPossible overlays the possible minimums on the certain ones.
func mergedPossible(v types.FileVerdict) types.Minimums {
	out := v.Minimums.Clone()
	for f, m := range v.Possible {
		out[f] = out.Get(f).Max(m)
	}
	return out
}

func writeSummary(sb *strings.Builder, run types.RunVerdict) {
	if run.Unknown {
		sb.WriteString("No known reason found that it will not work with 2+ and 3+.\n")
	} else {
		var required, incompatible []string
		for _, f := range version.Families {
			m := run.Minimums.Get(f)
			switch m.State {
			case version.Required:
				required = append(required, m.Version.String())
			case version.Incompatible:
				incompatible = append(incompatible, f.String())
			default:
				required = append(required, "~"+f.String())
			}
		}
		if len(required) > 0 {
			sb.WriteString("Minimum required versions: ")
			sb.WriteString(versionStyle.Sprint(strings.Join(required, ", ")))
			sb.WriteString("\n")
		}
		if len(incompatible) > 0 {
			sb.WriteString("Incompatible versions:     ")
			sb.WriteString(errorStyle.Sprint(strings.Join(incompatible, ", ")))
			sb.WriteString("\n")
		}
	}
	for _, v := range run.Violations {
		sb.WriteString(warningStyle.Sprint("Target not met: "))
		sb.WriteString(fmt.Sprintf("%s\n", v))
	}
}

func readSourceLines(path string) []string {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return strings.Split(string(content), "\n")
}

// codeSnippet shows the source line of a detection with a caret under
// its column.
func codeSnippet(lines []string, line, col int) string {
	if line < 1 || line > len(lines) {
		return ""
	}
	src := strings.TrimRight(lines[line-1], "\r")
	indent := strings.Repeat(" ", calculateVisualColumn(src, col))
	return lineStyle.Sprint("     | ") + src + "\n" +
		lineStyle.Sprint("     | ") + indent + errorStyle.Sprint("^") + "\n"
}

// calculateVisualColumn returns the display width of line up to the
// 1-based column, expanding tabs.
func calculateVisualColumn(line string, column int) int {
	if column < 1 {
		return 0
	}
	visualColumn := 0
	for i, ch := range line {
		if i+1 == column {
			break
		}
		if ch == '\t' {
			visualColumn += tabWidth - (visualColumn % tabWidth)
		} else {
			visualColumn++
		}
	}
	return visualColumn
}
