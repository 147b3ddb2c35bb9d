package store

import "path/filepath"

// DirName is the state directory kept under the scan root.
const DirName = ".treescan"

// IgnoreFileName is the per-root ignore file.
const IgnoreFileName = ".treescanignore"

// Dir returns the base directory for treescan state.
func Dir(root string) string {
	return filepath.Join(root, DirName)
}

func ConfigPath(root string) string {
	return filepath.Join(Dir(root), "config.yaml")
}

func IgnorePath(root string) string {
	return filepath.Join(root, IgnoreFileName)
}

func CachePath(root string) string {
	return filepath.Join(Dir(root), "cache.json")
}

func ReportPath(root string) string {
	return filepath.Join(Dir(root), "report.json")
}

func HistoryPath(root string) string {
	return filepath.Join(Dir(root), "history.db")
}
