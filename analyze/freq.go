package analyze

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/gnolang/minver/internal/types"
)

// Frequencies counts how often each rule fired in files, keyed by
// "kind:identifier". A construct matched for both families counts once.
func Frequencies(files []types.FileResult) map[string]int {
	type site struct {
		key       string
		line, col int
	}
	seen := make(map[site]bool)
	counts := make(map[string]int)
	for _, f := range files {
		if f.Err != nil {
			continue
		}
		clear(seen)
		for _, r := range f.Facts {
			s := site{key: r.Kind + ":" + r.Identifier, line: r.Line, col: r.Col}
			if seen[s] {
				continue
			}
			seen[s] = true
			counts[s.key]++
		}
	}
	return counts
}

// UpdateFrequencyFile adds counts to the JSON object stored at path,
// creating the file when it does not exist yet.
func UpdateFrequencyFile(path string, counts map[string]int) error {
	total := make(map[string]int)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &total); err != nil {
			return fmt.Errorf("error reading frequency file %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("error reading frequency file: %w", err)
	}

	for k, n := range counts {
		total[k] += n
	}
	out, err := json.MarshalIndent(total, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling frequencies: %w", err)
	}
	return os.WriteFile(path, append(out, '\n'), 0o644)
}
