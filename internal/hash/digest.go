package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	stdhash "hash"
	"strings"

	"github.com/zeebo/xxh3"
)

// Algorithm names a content digest.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	XXH3   Algorithm = "xxh3"
	FNV64a Algorithm = "fnv64a"
)

// ErrUnknownAlgorithm is returned for digest names outside the supported set.
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

// Algorithms lists the supported digests, default first.
func Algorithms() []Algorithm {
	return []Algorithm{SHA256, XXH3, FNV64a}
}

// SupportedNames joins Algorithms for help and error text.
func SupportedNames() string {
	names := make([]string, 0, len(Algorithms()))
	for _, a := range Algorithms() {
		names = append(names, string(a))
	}
	return strings.Join(names, ", ")
}

// ParseAlgorithm resolves a case-insensitive digest name. Empty means SHA256.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "", SHA256:
		return SHA256, nil
	case XXH3:
		return XXH3, nil
	case FNV64a:
		return FNV64a, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnknownAlgorithm, name, SupportedNames())
	}
}

// New returns a fresh streaming digest for the algorithm.
func (a Algorithm) New() (stdhash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New(), nil
	case XXH3:
		return xxh3.New(), nil
	case FNV64a:
		return newFNV64a(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(a))
	}
}

// Hex finalizes a digest as lowercase hex.
func Hex(d stdhash.Hash) string {
	return hex.EncodeToString(d.Sum(nil))
}
