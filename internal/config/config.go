package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/memkit/treescan/internal/hash"
)

// ErrConfigInvalid marks configuration values that cannot drive a scan.
var ErrConfigInvalid = errors.New("invalid configuration")

// Config holds the resolved runtime configuration.
type Config struct {
	Scan    ScanConfig
	Report  ReportConfig
	Cache   CacheConfig
	History HistoryConfig
	Watch   WatchConfig
}

// ScanConfig controls enumeration and hashing.
type ScanConfig struct {
	IncludeExt   []string
	Ignore       []string
	MaxHashBytes int64
	ChunkSize    int
	// Workers caps the hashing pool; zero picks a size from the CPU count.
	Workers      int
	ChunkTimeout time.Duration
	Algorithm    hash.Algorithm
}

// ReportConfig controls report output.
type ReportConfig struct {
	Recent int
}

// CacheConfig locates the ScanCache. An empty Path means the default under the state dir.
type CacheConfig struct {
	Path string
}

// HistoryConfig toggles the run history database.
type HistoryConfig struct {
	Enabled bool
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Debounce time.Duration
}

const (
	DefaultChunkSize    = 100
	DefaultMaxHashBytes = 5 * 1024 * 1024
	DefaultChunkTimeout = 30 * time.Second
	DefaultRecent       = 10
	DefaultDebounce     = 500 * time.Millisecond
)

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() Config {
	return Config{
		Scan: ScanConfig{
			IncludeExt:   DefaultIncludeExt(),
			MaxHashBytes: DefaultMaxHashBytes,
			ChunkSize:    DefaultChunkSize,
			ChunkTimeout: DefaultChunkTimeout,
			Algorithm:    hash.SHA256,
		},
		Report: ReportConfig{
			Recent: DefaultRecent,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Watch: WatchConfig{
			Debounce: DefaultDebounce,
		},
	}
}

// DefaultIncludeExt lists the text-like extensions scanned by default.
func DefaultIncludeExt() []string {
	return []string{
		".c", ".cc", ".cfg", ".cjs", ".conf", ".cpp", ".cs", ".css", ".env",
		".go", ".gradle", ".h", ".hpp", ".html", ".ini", ".java", ".js",
		".json", ".jsx", ".kt", ".less", ".lua", ".md", ".mjs", ".php",
		".properties", ".ps1", ".py", ".rb", ".rs", ".scss", ".sh", ".sql",
		".svelte", ".swift", ".toml", ".ts", ".tsx", ".txt", ".vue", ".xml",
		".yaml", ".yml",
	}
}

// UserConfig holds user overrides stored on disk.
type UserConfig struct {
	Scan    *UserScanOverrides    `yaml:"scan,omitempty"`
	Report  *UserReportOverrides  `yaml:"report,omitempty"`
	Cache   *UserCacheOverrides   `yaml:"cache,omitempty"`
	History *UserHistoryOverrides `yaml:"history,omitempty"`
	Watch   *UserWatchOverrides   `yaml:"watch,omitempty"`
}

// UserScanOverrides describes scan overrides for user config.
type UserScanOverrides struct {
	// IncludeExt replaces the default allow-list when set; an explicit empty
	// list admits every file.
	IncludeExt   *[]string `yaml:"include_ext,omitempty"`
	Ignore       []string  `yaml:"ignore,omitempty"`
	MaxHashBytes *int64    `yaml:"max_hash_bytes,omitempty"`
	ChunkSize    *int      `yaml:"chunk_size,omitempty"`
	Workers      *int      `yaml:"workers,omitempty"`
	ChunkTimeout *string   `yaml:"chunk_timeout,omitempty"`
	Algorithm    *string   `yaml:"algorithm,omitempty"`
}

// UserReportOverrides describes report overrides for user config.
type UserReportOverrides struct {
	Recent *int `yaml:"recent,omitempty"`
}

// UserCacheOverrides describes cache overrides for user config.
type UserCacheOverrides struct {
	Path *string `yaml:"path,omitempty"`
}

// UserHistoryOverrides describes history overrides for user config.
type UserHistoryOverrides struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

// UserWatchOverrides describes watch overrides for user config.
type UserWatchOverrides struct {
	Debounce *string `yaml:"debounce,omitempty"`
}

// Load reads the user config at path and merges it onto defaults.
// A missing file yields defaults and nil raw bytes.
func Load(path string) (Config, []byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil, nil
	}
	if err != nil {
		return Config{}, nil, err
	}
	var user UserConfig
	if err := yaml.Unmarshal(data, &user); err != nil {
		return Config{}, nil, fmt.Errorf("%w: parse %s: %v", ErrConfigInvalid, path, err)
	}
	cfg, err := ApplyOverrides(DefaultConfig(), user)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, data, nil
}

// ApplyOverrides merges a user config into runtime defaults.
func ApplyOverrides(defaults Config, user UserConfig) (Config, error) {
	cfg := defaults
	if s := user.Scan; s != nil {
		if s.IncludeExt != nil {
			cfg.Scan.IncludeExt = normalizeExts(*s.IncludeExt)
		}
		if len(s.Ignore) > 0 {
			cfg.Scan.Ignore = append([]string(nil), s.Ignore...)
		}
		if s.MaxHashBytes != nil {
			cfg.Scan.MaxHashBytes = *s.MaxHashBytes
		}
		if s.ChunkSize != nil {
			cfg.Scan.ChunkSize = *s.ChunkSize
		}
		if s.Workers != nil {
			cfg.Scan.Workers = *s.Workers
		}
		if s.ChunkTimeout != nil {
			d, err := time.ParseDuration(*s.ChunkTimeout)
			if err != nil {
				return Config{}, fmt.Errorf("%w: scan.chunk_timeout: %v", ErrConfigInvalid, err)
			}
			cfg.Scan.ChunkTimeout = d
		}
		if s.Algorithm != nil {
			algo, err := hash.ParseAlgorithm(*s.Algorithm)
			if err != nil {
				return Config{}, fmt.Errorf("%w: scan.algorithm: %w", ErrConfigInvalid, err)
			}
			cfg.Scan.Algorithm = algo
		}
	}
	if r := user.Report; r != nil && r.Recent != nil {
		cfg.Report.Recent = *r.Recent
	}
	if c := user.Cache; c != nil && c.Path != nil {
		cfg.Cache.Path = filepath.Clean(*c.Path)
	}
	if h := user.History; h != nil && h.Enabled != nil {
		cfg.History.Enabled = *h.Enabled
	}
	if w := user.Watch; w != nil && w.Debounce != nil {
		d, err := time.ParseDuration(*w.Debounce)
		if err != nil {
			return Config{}, fmt.Errorf("%w: watch.debounce: %v", ErrConfigInvalid, err)
		}
		cfg.Watch.Debounce = d
	}
	return cfg, Validate(cfg)
}

// Validate rejects values that would stall or break a scan.
func Validate(cfg Config) error {
	switch {
	case cfg.Scan.ChunkSize <= 0:
		return fmt.Errorf("%w: scan.chunk_size must be positive, got %d", ErrConfigInvalid, cfg.Scan.ChunkSize)
	case cfg.Scan.MaxHashBytes <= 0:
		return fmt.Errorf("%w: scan.max_hash_bytes must be positive, got %d", ErrConfigInvalid, cfg.Scan.MaxHashBytes)
	case cfg.Scan.Workers < 0:
		return fmt.Errorf("%w: scan.workers must not be negative, got %d", ErrConfigInvalid, cfg.Scan.Workers)
	case cfg.Scan.ChunkTimeout <= 0:
		return fmt.Errorf("%w: scan.chunk_timeout must be positive, got %s", ErrConfigInvalid, cfg.Scan.ChunkTimeout)
	case cfg.Report.Recent < 0:
		return fmt.Errorf("%w: report.recent must not be negative, got %d", ErrConfigInvalid, cfg.Report.Recent)
	case cfg.Watch.Debounce <= 0:
		return fmt.Errorf("%w: watch.debounce must be positive, got %s", ErrConfigInvalid, cfg.Watch.Debounce)
	}
	if _, err := hash.ParseAlgorithm(string(cfg.Scan.Algorithm)); err != nil {
		return fmt.Errorf("%w: scan.algorithm: %w", ErrConfigInvalid, err)
	}
	return nil
}

// Fingerprint returns an FNV-1a hash of the resolved configuration.
func Fingerprint(cfg Config) uint64 {
	data, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	return hash.Sum64(data)
}

// SaveDefault writes the fully populated default config as YAML.
func SaveDefault(path string) error {
	cfg := DefaultConfig()
	timeout := cfg.Scan.ChunkTimeout.String()
	algo := string(cfg.Scan.Algorithm)
	debounce := cfg.Watch.Debounce.String()
	user := UserConfig{
		Scan: &UserScanOverrides{
			IncludeExt:   &cfg.Scan.IncludeExt,
			MaxHashBytes: &cfg.Scan.MaxHashBytes,
			ChunkSize:    &cfg.Scan.ChunkSize,
			Workers:      &cfg.Scan.Workers,
			ChunkTimeout: &timeout,
			Algorithm:    &algo,
		},
		Report:  &UserReportOverrides{Recent: &cfg.Report.Recent},
		History: &UserHistoryOverrides{Enabled: &cfg.History.Enabled},
		Watch:   &UserWatchOverrides{Debounce: &debounce},
	}
	data, err := yaml.Marshal(user)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func normalizeExts(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		ext := strings.ToLower(strings.TrimSpace(v))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	return out
}
