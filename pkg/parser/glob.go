package parser

import (
	"fmt"
	"path/filepath"
	"sort"
)

// ExpandGlobs expands recorded-log paths and glob patterns into a
// deduplicated file list. Arguments keep the order they were given in;
// the matches of one glob are sorted by name. A pattern matching nothing
// is kept as a literal path so the open error later names it.
func ExpandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			add(pattern)
			continue
		}
		sort.Strings(matches)
		for _, match := range matches {
			add(match)
		}
	}

	return result, nil
}
