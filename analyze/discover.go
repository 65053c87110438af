package analyze

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

var desiredExtensions = map[string]bool{
	".py":  true,
	".pyw": true,
}

// Discover expands paths into the sorted list of files to analyze.
// Directories are walked recursively and glob patterns are expanded.
// Files named explicitly are always analyzed unless an exclude_paths glob
// matches them; files found by walking must look like Python.
func (r *Runner) Discover(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		path = filepath.Clean(path)
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, p := range paths {
		matches := []string{p}
		if containsGlob(p) {
			var err error
			matches, err = doublestar.FilepathGlob(p)
			if err != nil {
				return nil, fmt.Errorf("glob error: %w", err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no files match pattern: %s", p)
			}
		}
		for _, m := range matches {
			if err := r.discoverPath(m, add); err != nil {
				return nil, err
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

func (r *Runner) discoverPath(path string, add func(string)) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", path, err)
	}
	if r.excludedPath(path) {
		r.logger.Debug("skipping excluded path", zap.String("path", path))
		return nil
	}
	if !info.IsDir() {
		add(path)
		return nil
	}

	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != path && (r.hidden(d.Name()) || r.excludedPath(p)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if IsPythonFile(p) {
			add(p)
		}
		return nil
	})
}

// Skipped reports whether a path met while walking is left out: it is
// hidden, or matches an exclude_paths glob.
func (r *Runner) Skipped(path string) bool {
	return r.hidden(filepath.Base(path)) || r.excludedPath(path)
}

func (r *Runner) hidden(name string) bool {
	return !r.cfg.AnalyzeHidden && strings.HasPrefix(name, ".")
}

// excludedPath matches path and its base name against the exclude_paths
// globs.
func (r *Runner) excludedPath(path string) bool {
	slashed := filepath.ToSlash(filepath.Clean(path))
	base := filepath.Base(path)
	for _, pattern := range r.cfg.ExcludePaths {
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func containsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// IsPythonFile reports whether path has a Python extension, or has no
// extension and a python shebang line.
func IsPythonFile(path string) bool {
	ext := filepath.Ext(path)
	if desiredExtensions[ext] {
		return true
	}
	if ext != "" {
		return false
	}
	return hasPythonShebang(path)
}

func hasPythonShebang(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadSlice('\n')
	if err != nil && len(line) == 0 {
		return false
	}
	return bytes.HasPrefix(line, []byte("#!")) && bytes.Contains(line, []byte("python"))
}
