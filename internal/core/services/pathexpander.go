package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ritual/internal/core/domain"
	"ritual/internal/core/ports"
)

// PathExpander resolves the source location patterns of an UPLOAD plan into
// canonical absolute file paths, per §4.1: `~` expansion, cwd-relative
// resolution, and single-level glob matching grouped by parent directory.
type PathExpander struct {
	logger ports.Logger
}

func NewPathExpander(logger ports.Logger) *PathExpander {
	return &PathExpander{logger: logger}
}

const globChars = "*?["

// Expand turns patterns into a sorted set of canonical absolute paths.
// A literal path that does not exist is returned as-is; it is not an
// error here (nonexistence is recorded later as StatusNonexist during
// metadata initialization). An unreadable directory behind a glob fails
// the whole call with domain.ErrListFiles.
func (p *PathExpander) Expand(patterns []string) ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}

	literal := map[string]struct{}{}
	globsByDir := map[string][]string{}

	for _, raw := range patterns {
		path := raw
		if home != "" && strings.HasPrefix(path, "~") {
			path = home + path[1:]
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(cwd, path)
		}

		if !strings.ContainsAny(path, globChars) {
			literal[filepath.Clean(path)] = struct{}{}
			continue
		}

		dir, pattern := filepath.Split(path)
		dir = filepath.Clean(dir)
		globsByDir[dir] = append(globsByDir[dir], pattern)
	}

	result := make(map[string]struct{}, len(literal))
	for path := range literal {
		result[path] = struct{}{}
	}

	for dir, pats := range globsByDir {
		matches, err := p.matchSiblings(dir, pats)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			result[m] = struct{}{}
		}
	}

	out := make([]string, 0, len(result))
	for path := range result {
		out = append(out, path)
	}
	sort.Strings(out)

	if p.logger != nil {
		for _, path := range out {
			p.logger.Debug("expanded source path", "path", path)
		}
	}

	return out, nil
}

// matchSiblings lists dir once and matches every child against every
// pattern that targets it, so a directory shared by multiple patterns in
// the same call is only read from disk a single time.
func (p *PathExpander) matchSiblings(dir string, patterns []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: dir=%s: %v", domain.ErrListFiles, dir, err)
	}

	var matches []string
	for _, entry := range entries {
		name := entry.Name()
		for _, pattern := range patterns {
			ok, err := filepath.Match(pattern, name)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid pattern %q: %v", domain.ErrListFiles, pattern, err)
			}
			if ok {
				matches = append(matches, filepath.Join(dir, name))
				break
			}
		}
	}
	return matches, nil
}
