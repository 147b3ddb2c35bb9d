package ignore

import (
	"path"
	"strings"
)

type pattern struct {
	value   string
	negate  bool
	dirOnly bool
}

// Matcher evaluates ignore patterns against slash-separated relative paths.
// Later patterns win, so a trailing "!pattern" re-includes an earlier match.
type Matcher struct {
	patterns []pattern
}

// NewMatcher compiles gitignore-flavoured patterns.
func NewMatcher(patterns []string) Matcher {
	var compiled []pattern
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		negate := strings.HasPrefix(raw, "!")
		value := strings.TrimPrefix(raw, "!")
		value = strings.TrimPrefix(value, "/")
		dirOnly := strings.HasSuffix(value, "/")
		normalized := strings.TrimSuffix(value, "/")
		if normalized == "" {
			continue
		}
		// Bare names match at any depth, as in .gitignore.
		if !strings.Contains(normalized, "/") {
			normalized = "**/" + normalized
		}
		compiled = append(compiled, pattern{
			value:   normalized,
			negate:  negate,
			dirOnly: dirOnly,
		})
	}
	return Matcher{patterns: compiled}
}

// Ignored reports whether rel (slash-separated, relative to the root) is excluded.
func (m Matcher) Ignored(rel string, isDir bool) bool {
	ignored := false
	for _, p := range m.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if GlobMatch(p.value, rel) {
			ignored = !p.negate
		}
	}
	return ignored
}

// GlobMatch matches slash-separated paths where "**" spans any number of segments.
func GlobMatch(pattern, name string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(patternParts, pathParts []string) bool {
	if len(patternParts) == 0 {
		return len(pathParts) == 0
	}
	head := patternParts[0]
	if head == "**" {
		for i := 0; i <= len(pathParts); i++ {
			if matchSegments(patternParts[1:], pathParts[i:]) {
				return true
			}
		}
		return false
	}
	if len(pathParts) == 0 {
		return false
	}
	ok, err := path.Match(head, pathParts[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(patternParts[1:], pathParts[1:])
}
