package format

import (
	"fmt"
	"os"
	"strings"
)

// ColorMode describes when ANSI output should be used.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ColorPolicy captures resolved color behavior.
type ColorPolicy struct {
	Enabled bool
}

// ParseColorMode validates CLI color mode input.
func ParseColorMode(raw string) (ColorMode, error) {
	if raw == "" {
		return ColorAuto, nil
	}
	switch strings.ToLower(raw) {
	case "auto":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return "", fmt.Errorf("invalid color mode %q (expected auto|always|never)", raw)
	}
}

// ResolveColorPolicy decides if ANSI output should be enabled.
func ResolveColorPolicy(mode ColorMode, jsonOut, isTTY, noColor, termDumb bool) ColorPolicy {
	if noColor || jsonOut {
		return ColorPolicy{}
	}
	switch mode {
	case ColorNever:
		return ColorPolicy{}
	case ColorAlways:
		return ColorPolicy{Enabled: true}
	case ColorAuto:
		if isTTY && !termDumb {
			return ColorPolicy{Enabled: true}
		}
	}
	return ColorPolicy{}
}

// DetectColorPolicy resolves the policy for output written to f, reading
// NO_COLOR and TERM from the environment.
func DetectColorPolicy(mode ColorMode, jsonOut bool, f *os.File) ColorPolicy {
	_, noColor := os.LookupEnv("NO_COLOR")
	return ResolveColorPolicy(mode, jsonOut, isTerminal(f), noColor, os.Getenv("TERM") == "dumb")
}

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
