package coretools

import (
	"path"
	"strings"
)

// globMatcher matches slash-separated paths relative to the listing directory.
// A pattern without "/" matches the base name at any depth (rglob semantics).
// A leading "**/" matches zero or more directories; other patterns match the
// whole relative path.
type globMatcher struct {
	pattern  string
	anyDepth bool
	basename bool
}

func newGlobMatcher(pattern string) (*globMatcher, error) {
	m := &globMatcher{pattern: pattern}
	for strings.HasPrefix(m.pattern, "**/") {
		m.pattern = strings.TrimPrefix(m.pattern, "**/")
		m.anyDepth = true
	}
	if m.pattern == "**" || m.pattern == "" {
		m.pattern = "*"
	}
	m.basename = !strings.Contains(m.pattern, "/")

	if _, err := path.Match(m.pattern, ""); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *globMatcher) match(rel string) bool {
	if m.basename {
		ok, _ := path.Match(m.pattern, path.Base(rel))
		return ok
	}

	if ok, _ := path.Match(m.pattern, rel); ok {
		return true
	}
	if !m.anyDepth {
		return false
	}

	// Try the pattern against every suffix that starts at a directory boundary.
	for i := 0; i < len(rel); i++ {
		if rel[i] != '/' {
			continue
		}
		if ok, _ := path.Match(m.pattern, rel[i+1:]); ok {
			return true
		}
	}
	return false
}
