// Package report renders a run report for terminals and notifications.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"duesync/internal/model"
	"duesync/internal/reconcile"
)

type styles struct {
	added   lipgloss.Style
	updated lipgloss.Style
	skipped lipgloss.Style
	failed  lipgloss.Style
	header  lipgloss.Style
	dim     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		added:   r.NewStyle().Foreground(lipgloss.Color("114")).Bold(true),
		updated: r.NewStyle().Foreground(lipgloss.Color("81")).Bold(true),
		skipped: r.NewStyle().Foreground(lipgloss.Color("222")),
		failed:  r.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
		header:  r.NewStyle().Foreground(lipgloss.Color("147")).Bold(true),
		dim:     r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Render writes one line per trace entry followed by a summary block. Colors
// are only emitted when w is a terminal.
func Render(w io.Writer, rep reconcile.Report, runErr error) error {
	st := newStyles(lipgloss.NewRenderer(w))
	total := len(rep.Trace)

	var b strings.Builder
	for _, e := range rep.Trace {
		b.WriteString(line(st, e, total))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	b.WriteString(st.header.Render("SUMMARY"))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "  %s %d\n", st.added.Render("Added:  "), rep.Outcome.Added)
	fmt.Fprintf(&b, "  %s %d\n", st.updated.Render("Updated:"), rep.Outcome.Updated)
	fmt.Fprintf(&b, "  %s %d\n", st.skipped.Render("Skipped:"), rep.Outcome.Skipped)
	fmt.Fprintf(&b, "  %s %d\n", st.failed.Render("Failed: "), rep.Outcome.Failed)
	fmt.Fprintf(&b, "  %s %d\n", st.dim.Render("Total:  "), rep.Outcome.Total())
	if !rep.FinishedAt.IsZero() && !rep.StartedAt.IsZero() {
		fmt.Fprintf(&b, "  %s %s\n", st.dim.Render("Elapsed:"), rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))
	}
	if runErr != nil {
		fmt.Fprintf(&b, "\n%s %v\n", st.failed.Render("Run stopped:"), runErr)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func line(st styles, e model.TraceEntry, total int) string {
	pos := fmt.Sprintf("[%d/%d]", e.Index, total)
	due := st.dim.Render("(due " + e.Due + ")")

	switch e.Disposition {
	case model.DispositionAdded:
		return fmt.Sprintf("%s %s Added: %s %s", st.added.Render("✓"), pos, e.Summary, due)
	case model.DispositionUpdated:
		return fmt.Sprintf("%s %s Updated: %s %s", st.updated.Render("↻"), pos, e.Summary, due)
	case model.DispositionSkipped:
		if e.Reason == model.ReasonNoDate {
			return fmt.Sprintf("%s %s Skipped (no due date): %s", st.skipped.Render("⊘"), pos, e.Title)
		}
		return fmt.Sprintf("%s %s Skipped (already exists): %s %s", st.skipped.Render("⊘"), pos, e.Summary, due)
	default:
		return fmt.Sprintf("%s %s Failed: %s: %s", st.failed.Render("✗"), pos, e.Summary, e.Error)
	}
}

// Summary is a one-line plain text rendering of the tallies.
func Summary(o model.RunOutcome) string {
	return fmt.Sprintf("%d added, %d updated, %d skipped, %d failed", o.Added, o.Updated, o.Skipped, o.Failed)
}

// Plain renders the report without any styling, for notifications.
func Plain(rep reconcile.Report, runErr error) string {
	var b strings.Builder
	_ = Render(&b, rep, runErr)
	return b.String()
}
