package ignore

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var defaultPatterns = []string{
	".git/",
	".svn/",
	".hg/",
	"node_modules/",
	"vendor/",
	".cache/",
	"__pycache__/",
	".venv/",
	"dist/",
	"build/",
	"out/",
	"target/",
	".next/",
	"coverage/",
}

// DefaultPatterns returns the built-in ignore patterns.
func DefaultPatterns() []string {
	return append([]string(nil), defaultPatterns...)
}

// WriteDefault writes the default ignore file.
func WriteDefault(path string) error {
	builder := strings.Builder{}
	builder.WriteString("# Patterns use gitignore-style globs; prefix with ! to re-include.\n")
	for _, p := range defaultPatterns {
		builder.WriteString(p)
		builder.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(builder.String()), 0o644)
}

// LoadPatterns returns the patterns in an ignore file. A missing file yields no patterns.
func LoadPatterns(path string) ([]string, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, filepath.ToSlash(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}

// NormalizePath converts platform-specific separators to forward slashes for matching.
func NormalizePath(path string) string {
	return filepath.ToSlash(path)
}
