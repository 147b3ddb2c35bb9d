package format

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/memkit/treescan/internal/diff"
	"github.com/memkit/treescan/internal/history"
	"github.com/memkit/treescan/internal/report"
)

const timeLayout = "2006-01-02 15:04:05"

type styles struct {
	title    lipgloss.Style
	section  lipgloss.Style
	added    lipgloss.Style
	modified lipgloss.Style
	deleted  lipgloss.Style
	muted    lipgloss.Style
	warn     lipgloss.Style
}

func newStyles(w io.Writer, policy ColorPolicy) styles {
	r := lipgloss.NewRenderer(w)
	if policy.Enabled {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return styles{
		title:    r.NewStyle().Bold(true),
		section:  r.NewStyle().Bold(true).Underline(true),
		added:    r.NewStyle().Foreground(lipgloss.Color("2")),
		modified: r.NewStyle().Foreground(lipgloss.Color("3")),
		deleted:  r.NewStyle().Foreground(lipgloss.Color("1")),
		muted:    r.NewStyle().Faint(true),
		warn:     r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
	}
}

func (s styles) kind(k diff.Kind) lipgloss.Style {
	switch k {
	case diff.KindAdded:
		return s.added
	case diff.KindModified:
		return s.modified
	default:
		return s.deleted
	}
}

// Marker is the one-character prefix used for a change kind.
func Marker(k diff.Kind) string {
	switch k {
	case diff.KindAdded:
		return "+"
	case diff.KindModified:
		return "~"
	case diff.KindDeleted:
		return "-"
	default:
		return "?"
	}
}

// printer remembers the first write error so callers can check once.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// WriteReport renders a scan report for a terminal.
func WriteReport(w io.Writer, r report.Report, policy ColorPolicy) error {
	st := newStyles(w, policy)
	p := &printer{w: w}

	p.printf("%s %s\n", st.title.Render("treescan"), r.Root)
	p.printf("%s\n", st.muted.Render(fmt.Sprintf("%s, baseline %s, %d workers, %dms",
		r.Algorithm, r.Baseline, r.Workers, r.DurationMs)))
	if r.GitHead != "" {
		p.printf("%s\n", st.muted.Render("git "+ShortHead(r.GitHead)))
	}
	t := r.Totals
	p.printf("files %d  hashed %d  oversized %d  errors %d  failed chunks %d  walk errors %d\n",
		t.Files, t.Hashed, t.Oversized, t.Errors, t.FailedChunks, t.WalkErrors)

	if r.Changes.Total() == 0 {
		p.printf("%s\n", st.muted.Render("no changes"))
	} else {
		p.printf("changes %s  %s  %s\n",
			st.added.Render(fmt.Sprintf("+%d added", r.Changes.Added)),
			st.modified.Render(fmt.Sprintf("~%d modified", r.Changes.Modified)),
			st.deleted.Render(fmt.Sprintf("-%d deleted", r.Changes.Deleted)))
	}

	if len(r.Recent) > 0 {
		p.printf("\n%s\n", st.section.Render("recent changes"))
		width := 0
		for _, c := range r.Recent {
			width = max(width, len(c.Path))
		}
		for _, c := range r.Recent {
			when := time.UnixMilli(c.ModifiedTime()).Format(timeLayout)
			line := fmt.Sprintf("%s %-*s", Marker(c.Kind), width, c.Path)
			p.printf("  %s  %s\n", st.kind(c.Kind).Render(line), st.muted.Render(when))
		}
	}

	if len(r.Extensions) > 0 {
		p.printf("\n%s\n", st.section.Render("extensions"))
		width := 0
		for _, b := range r.Extensions {
			width = max(width, len(b.Ext))
		}
		for _, b := range r.Extensions {
			p.printf("  %-*s %d\n", width, b.Ext, b.Count)
		}
	}

	if len(r.ErrorFiles) > 0 {
		p.printf("\n%s\n", st.warn.Render("unreadable files"))
		for _, rec := range r.ErrorFiles {
			p.printf("  %s: %s\n", rec.Path, rec.Error)
		}
	}
	if len(r.Failed) > 0 {
		p.printf("\n%s\n", st.warn.Render("failed chunks (rerun to retry)"))
		for _, f := range r.Failed {
			p.printf("  #%d (%d files): %s\n", f.Index, len(f.Paths), f.Reason)
		}
	}
	if len(r.WalkErrors) > 0 {
		p.printf("\n%s\n", st.warn.Render("skipped directories"))
		for _, e := range r.WalkErrors {
			p.printf("  %s: %s\n", e.Path, e.Err)
		}
	}
	return p.err
}

// WriteHistory renders run summaries, newest first.
func WriteHistory(w io.Writer, runs []history.Run, policy ColorPolicy) error {
	st := newStyles(w, policy)
	p := &printer{w: w}
	if len(runs) == 0 {
		p.printf("%s\n", st.muted.Render("no recorded runs"))
		return p.err
	}
	for _, run := range runs {
		p.printf("%s  %s  files %d  %s %s %s  errors %d",
			run.StartedAt.Local().Format(timeLayout),
			st.muted.Render(shortID(run.ID)),
			run.Files,
			st.added.Render(fmt.Sprintf("+%d", run.Added)),
			st.modified.Render(fmt.Sprintf("~%d", run.Modified)),
			st.deleted.Render(fmt.Sprintf("-%d", run.Deleted)),
			run.Errors)
		if run.FailedChunks > 0 {
			p.printf("  %s", st.warn.Render(fmt.Sprintf("failed chunks %d", run.FailedChunks)))
		}
		p.printf("  %dms\n", run.DurationMs)
	}
	return p.err
}

// ShortHead abbreviates a commit id.
func ShortHead(head string) string {
	if len(head) > 12 {
		return head[:12]
	}
	return head
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
