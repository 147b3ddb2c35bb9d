// Package diff classifies the current fingerprints against the previous baseline.
package diff

import (
	"sort"
	"strings"

	"github.com/memkit/treescan/internal/cachex"
)

// Kind tags a ChangeEntry.
type Kind string

const (
	KindAdded    Kind = "added"
	KindModified Kind = "modified"
	KindDeleted  Kind = "deleted"
)

// ChangeEntry is one change keyed by path. Added carries only Current,
// Deleted only Previous, Modified both.
type ChangeEntry struct {
	Kind     Kind               `json:"kind"`
	Path     string             `json:"path"`
	Previous *cachex.FileRecord `json:"previous,omitempty"`
	Current  *cachex.FileRecord `json:"current,omitempty"`
}

// Added builds an Added entry.
func Added(current cachex.FileRecord) ChangeEntry {
	return ChangeEntry{Kind: KindAdded, Path: current.Path, Current: &current}
}

// Modified builds a Modified entry.
func Modified(previous, current cachex.FileRecord) ChangeEntry {
	return ChangeEntry{Kind: KindModified, Path: current.Path, Previous: &previous, Current: &current}
}

// Deleted builds a Deleted entry.
func Deleted(previous cachex.FileRecord) ChangeEntry {
	return ChangeEntry{Kind: KindDeleted, Path: previous.Path, Previous: &previous}
}

// ModifiedTime is the time used to order changes: the current record's, or
// the previous one's for deletions.
func (c ChangeEntry) ModifiedTime() int64 {
	if c.Current != nil {
		return c.Current.ModifiedTime
	}
	if c.Previous != nil {
		return c.Previous.ModifiedTime
	}
	return 0
}

// Result is the change set plus the records that form the next baseline.
type Result struct {
	Changes []ChangeEntry
	// Next maps every path to the record the new ScanCache should hold.
	Next map[string]cachex.FileRecord
	// Unchanged counts current files with no change entry.
	Unchanged int
	// CarriedForward counts paths whose previous record was kept because the
	// current scan could not fingerprint them.
	CarriedForward int
}

// Diff compares current records against previous. Paths in unknown were
// enumerated but not fingerprinted (their chunk failed): they are never
// reported, and keep their previous record in Next.
func Diff(previous map[string]cachex.FileRecord, current []cachex.FileRecord, unknown []string) Result {
	res := Result{Next: make(map[string]cachex.FileRecord, len(current)+len(unknown))}
	seen := make(map[string]struct{}, len(current)+len(unknown))

	for _, cur := range current {
		seen[cur.Path] = struct{}{}
		prev, ok := previous[cur.Path]
		switch {
		case !ok:
			res.Changes = append(res.Changes, Added(cur))
			res.Next[cur.Path] = cur
		case cur.Failed():
			// Unreadable now; keep the last good fingerprint instead of
			// reporting a change the next readable scan would have to undo.
			res.Next[cur.Path] = prev
			res.CarriedForward++
			res.Unchanged++
		case changed(prev, cur):
			res.Changes = append(res.Changes, Modified(prev, cur))
			res.Next[cur.Path] = cur
		default:
			res.Next[cur.Path] = cur
			res.Unchanged++
		}
	}

	for _, p := range unknown {
		seen[p] = struct{}{}
		if prev, ok := previous[p]; ok {
			res.Next[p] = prev
			res.CarriedForward++
		}
	}

	for p, prev := range previous {
		if _, ok := seen[p]; ok {
			continue
		}
		res.Changes = append(res.Changes, Deleted(prev))
	}

	sort.Slice(res.Changes, func(i, j int) bool {
		return res.Changes[i].Path < res.Changes[j].Path
	})
	return res
}

// UnderDirs returns the previous paths inside any of dirs, sorted. The walk
// could not list those directories, so their files belong in Diff's unknown.
func UnderDirs(previous map[string]cachex.FileRecord, dirs []string) []string {
	if len(dirs) == 0 {
		return nil
	}
	var out []string
	for p := range previous {
		for _, d := range dirs {
			if strings.HasPrefix(p, d+"/") {
				out = append(out, p)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// changed decides modification by content hash. Two oversized records have no
// digest to compare, so their sizes stand in.
func changed(prev, cur cachex.FileRecord) bool {
	if prev.TooLarge() && cur.TooLarge() {
		return prev.Size != cur.Size
	}
	return prev.ContentHash != cur.ContentHash
}

// Counts tallies entries per kind.
type Counts struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Deleted  int `json:"deleted"`
}

// Total is the number of changes.
func (c Counts) Total() int { return c.Added + c.Modified + c.Deleted }

// Count tallies changes by kind.
func Count(changes []ChangeEntry) Counts {
	var c Counts
	for _, ch := range changes {
		switch ch.Kind {
		case KindAdded:
			c.Added++
		case KindModified:
			c.Modified++
		case KindDeleted:
			c.Deleted++
		}
	}
	return c
}
