// Package statusx decides whether the stored baseline still describes the
// tree, using git as a cheap hint before a full scan is run.
package statusx

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/memkit/treescan/internal/gitx"
	"github.com/memkit/treescan/internal/store"
)

// Git change reasons.
const (
	GitChangedNone            = "none"
	GitChangedWorktree        = "worktree"
	GitChangedHead            = "head"
	GitChangedHeadAndWorktree = "head+worktree"
	GitChangedUnknown         = "unknown"
)

// Verdict reasons.
const (
	WhyUpToDate                  = "up_to_date"
	WhyMissingCache              = "missing_cache"
	WhyCacheUnusable             = "cache_unusable"
	WhyNotGitRepo                = "not_git_repo"
	WhyGitHeadChanged            = "git_head_changed"
	WhyGitWorktreeChanged        = "git_worktree_changed"
	WhyGitHeadAndWorktreeChanged = "git_head_and_worktree_changed"
	WhyStateOnly                 = "state_only"
	WhyUnknown                   = "unknown"
)

// MaxChangedPaths caps the path list carried in GitInfo.
const MaxChangedPaths = 200

// GitInfo summarises the work tree relative to the head recorded with the
// baseline.
type GitInfo struct {
	Repo             bool     `json:"repo"`
	BaseHead         string   `json:"base_head,omitempty"`
	CurrentHead      string   `json:"current_head,omitempty"`
	WorktreeClean    bool     `json:"worktree_clean"`
	DirtyPathCount   int      `json:"dirty_path_count,omitempty"`
	DirtyStateOnly   bool     `json:"dirty_state_only,omitempty"`
	ChangedPaths     []string `json:"changed_paths,omitempty"`
	ChangedPathCount int      `json:"changed_path_count,omitempty"`
	ChangedReason    string   `json:"changed_reason,omitempty"`
}

// Baseline is what the status command knows about the stored cache.
type Baseline struct {
	Exists bool
	Usable bool
}

// Verdict says whether a rescan is expected to report changes.
type Verdict struct {
	Stale bool   `json:"stale"`
	Why   string `json:"why"`
}

// CollectGitInfo inspects the work tree at root. keep filters the changed
// paths down to ones a scan would look at; nil keeps everything.
func CollectGitInfo(ctx context.Context, root, baseHead string, keep func(string) bool) GitInfo {
	info := GitInfo{BaseHead: baseHead}
	isRepo, err := gitx.IsRepo(ctx, root)
	if err != nil {
		info.ChangedReason = GitChangedUnknown
		return info
	}
	if !isRepo {
		info.WorktreeClean = true
		return info
	}
	info.Repo = true

	head, err := gitx.Head(ctx, root)
	if err != nil {
		info.ChangedReason = GitChangedUnknown
		return info
	}
	info.CurrentHead = head

	changed := make(map[string]struct{})
	dirty, err := gitx.DirtyPaths(ctx, root)
	if err != nil {
		info.ChangedReason = GitChangedUnknown
		return info
	}
	info.DirtyPathCount = len(dirty)
	info.WorktreeClean = len(dirty) == 0
	if len(dirty) > 0 {
		info.DirtyStateOnly = true
		for _, p := range dirty {
			if !isStatePath(p) {
				info.DirtyStateOnly = false
				break
			}
		}
	}
	addChangedPaths(changed, dirty, keep)

	headChanged := baseHead != "" && head != "" && baseHead != head
	if headChanged {
		paths, err := gitx.ChangedBetween(ctx, root, baseHead, head)
		if err != nil {
			info.ChangedReason = GitChangedUnknown
			return info
		}
		addChangedPaths(changed, paths, keep)
	}
	info.ChangedPathCount = len(changed)
	info.ChangedPaths = sortedLimitedPaths(changed, MaxChangedPaths)

	worktreeChanged := !info.WorktreeClean && !info.DirtyStateOnly
	switch {
	case headChanged && worktreeChanged:
		info.ChangedReason = GitChangedHeadAndWorktree
	case headChanged:
		info.ChangedReason = GitChangedHead
	case worktreeChanged:
		info.ChangedReason = GitChangedWorktree
	default:
		info.ChangedReason = GitChangedNone
	}
	return info
}

// Assess combines the baseline state with git facts. Outside git nothing can
// be known without hashing, so the baseline is reported stale.
func Assess(b Baseline, info GitInfo) Verdict {
	switch {
	case !b.Exists:
		return Verdict{Stale: true, Why: WhyMissingCache}
	case !b.Usable:
		return Verdict{Stale: true, Why: WhyCacheUnusable}
	case !info.Repo:
		return Verdict{Stale: true, Why: WhyNotGitRepo}
	}
	switch info.ChangedReason {
	case GitChangedHeadAndWorktree:
		return Verdict{Stale: true, Why: WhyGitHeadAndWorktreeChanged}
	case GitChangedHead:
		return Verdict{Stale: info.ChangedPathCount > 0, Why: WhyGitHeadChanged}
	case GitChangedWorktree:
		return Verdict{Stale: info.ChangedPathCount > 0, Why: WhyGitWorktreeChanged}
	case GitChangedNone:
		if info.DirtyStateOnly {
			return Verdict{Why: WhyStateOnly}
		}
		return Verdict{Why: WhyUpToDate}
	default:
		return Verdict{Stale: true, Why: WhyUnknown}
	}
}

func isStatePath(p string) bool {
	p = filepath.ToSlash(p)
	return p == store.DirName || p == store.DirName+"/" || strings.HasPrefix(p, store.DirName+"/")
}

func addChangedPaths(set map[string]struct{}, paths []string, keep func(string) bool) {
	for _, p := range paths {
		p = filepath.ToSlash(strings.TrimSpace(p))
		if p == "" || isStatePath(p) {
			continue
		}
		if keep != nil && !keep(p) {
			continue
		}
		set[p] = struct{}{}
	}
}

func sortedLimitedPaths(set map[string]struct{}, limit int) []string {
	if len(set) == 0 {
		return nil
	}
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	if len(paths) > limit {
		return paths[:limit]
	}
	return paths
}
