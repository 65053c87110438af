// Package formatter renders analysis results in the supported output
// formats.
package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gnolang/minver/internal/types"
	"github.com/gnolang/minver/internal/version"
)

const (
	FormatDefault  = "default"
	FormatParsable = "parsable"
	FormatGitHub   = "github"
	FormatJSON     = "json"
)

// Options select what a report shows.
type Options struct {
	Format             string
	Quiet              bool
	Verbose            int
	ShowTips           bool
	OnlyShowViolations bool
	Targets            version.Targets
}

// Write renders files and their aggregated verdict to w.
func Write(w io.Writer, files []types.FileResult, run types.RunVerdict, opts Options) error {
	switch opts.Format {
	case FormatDefault, "":
		return writeDefault(w, files, run, opts)
	case FormatParsable:
		return writeParsable(w, files, run, opts)
	case FormatGitHub:
		return writeGitHub(w, files, run, opts)
	case FormatJSON:
		return writeJSON(w, files, run, opts)
	}
	return fmt.Errorf("unknown format %q", opts.Format)
}

// Versions returns every distinct version required by a certain fact of
// files, sorted, with incompatible families listed as "!2" after them.
func Versions(files []types.FileResult) []string {
	seen := make(map[version.Version]bool)
	incompatible := make(map[version.Family]bool)
	for _, f := range files {
		for _, r := range f.Facts {
			if !r.Certain {
				continue
			}
			switch r.Minimum.State {
			case version.Required:
				seen[r.Minimum.Version] = true
			case version.Incompatible:
				incompatible[r.Family] = true
			}
		}
	}

	vs := make([]version.Version, 0, len(seen))
	for v := range seen {
		vs = append(vs, v)
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i].Less(vs[j]) })

	out := make([]string, 0, len(vs)+len(incompatible))
	for _, v := range vs {
		out = append(out, v.String())
	}
	for _, f := range version.Families {
		if incompatible[f] {
			out = append(out, "!"+f.String())
		}
	}
	return out
}

// WriteVersions prints Versions one per line.
func WriteVersions(w io.Writer, files []types.FileResult) error {
	vs := Versions(files)
	if len(vs) == 0 {
		_, err := fmt.Fprintln(w, "No known versions required.")
		return err
	}
	_, err := fmt.Fprintln(w, strings.Join(vs, "\n"))
	return err
}

// parsable lines are "path:line:col:py2:py3:feature"; per-file and
// run summaries leave the position and feature fields empty.
func writeParsable(w io.Writer, files []types.FileResult, run types.RunVerdict, opts Options) error {
	var sb strings.Builder
	for _, f := range visibleFiles(files, opts) {
		if f.Err != nil {
			sb.WriteString(fmt.Sprintf("%s:::::%s\n", f.Path, oneLine(f.Err.Error())))
			continue
		}
		for _, g := range visibleFacts(f, opts) {
			sb.WriteString(fmt.Sprintf("%s:%d:%d:%s:%s:%s\n", f.Path, g.Line, g.Col,
				parsableMinimum(g.Minimums, version.Py2),
				parsableMinimum(g.Minimums, version.Py3),
				oneLine(g.Description)))
		}
		sb.WriteString(fmt.Sprintf("%s:::%s:%s:\n", f.Path,
			parsableMinimum(f.Verdict.Minimums, version.Py2),
			parsableMinimum(f.Verdict.Minimums, version.Py3)))
	}
	sb.WriteString(fmt.Sprintf(":::%s:%s:\n",
		parsableMinimum(run.Minimums, version.Py2),
		parsableMinimum(run.Minimums, version.Py3)))
	_, err := io.WriteString(w, sb.String())
	return err
}

func parsableMinimum(m types.Minimums, f version.Family) string {
	v := m.Get(f)
	if v.IsNone() {
		return ""
	}
	return v.Format(f)
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// writeGitHub emits workflow commands: errors for failed files and facts
// breaking a target, notices for the rest.
func writeGitHub(w io.Writer, files []types.FileResult, run types.RunVerdict, opts Options) error {
	var sb strings.Builder
	for _, f := range visibleFiles(files, opts) {
		if f.Err != nil {
			sb.WriteString(fmt.Sprintf("::error file=%s,title=minver::%s\n", githubEscapeProperty(f.Path), githubEscape(f.Err.Error())))
			continue
		}
		for _, g := range visibleFacts(f, opts) {
			level := "notice"
			if g.violates(opts.Targets) {
				level = "error"
			}
			sb.WriteString(fmt.Sprintf("::%s file=%s,line=%d,col=%d,title=minver::%s\n",
				level, githubEscapeProperty(f.Path), g.Line, g.Col, githubEscape(g.String())))
		}
	}
	for _, v := range run.Violations {
		sb.WriteString(fmt.Sprintf("::error title=minver::%s\n", githubEscape(v.String())))
	}
	sb.WriteString(fmt.Sprintf("::notice title=minver::Minimum required versions: %s\n", run.Minimums))
	_, err := io.WriteString(w, sb.String())
	return err
}

func githubEscape(s string) string {
	return strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A").Replace(s)
}

func githubEscapeProperty(s string) string {
	return strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A", ":", "%3A", ",", "%2C").Replace(s)
}

type jsonFile struct {
	types.FileResult
	Error string `json:"error,omitempty"`
}

type jsonReport struct {
	Files   []jsonFile       `json:"files"`
	Verdict types.RunVerdict `json:"verdict"`
}

func writeJSON(w io.Writer, files []types.FileResult, run types.RunVerdict, opts Options) error {
	rep := jsonReport{Files: []jsonFile{}, Verdict: run}
	for _, f := range visibleFiles(files, opts) {
		jf := jsonFile{FileResult: f}
		if f.Err != nil {
			jf.Error = f.Err.Error()
		}
		if !opts.ShowTips {
			jf.Tips = nil
		}
		rep.Files = append(rep.Files, jf)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("error marshalling report to JSON: %w", err)
	}
	return nil
}
