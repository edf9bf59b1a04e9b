package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duesync/internal/model"
	"duesync/internal/reconcile"
)

func sampleReport() reconcile.Report {
	start := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	rep := reconcile.Report{
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Trace: []model.TraceEntry{
			{Index: 1, Title: "Dune", Summary: "Library Book Due: Dune", Due: "10/09/2025", Disposition: model.DispositionAdded, EventID: "a"},
			{Index: 2, Title: "Solaris", Summary: "Library Book Due: Solaris", Disposition: model.DispositionSkipped, Reason: model.ReasonNoDate},
			{Index: 3, Title: "Ubik", Summary: "Library Book Due: Ubik", Due: "12/09/2025", Disposition: model.DispositionSkipped, Reason: model.ReasonDuplicate},
			{Index: 4, Title: "Emma", Summary: "Library Book Due: Emma", Due: "14/09/2025", Disposition: model.DispositionUpdated},
			{Index: 5, Title: "Kim", Summary: "Library Book Due: Kim", Due: "15/09/2025", Disposition: model.DispositionFailed, Error: "boom"},
		},
	}
	for _, e := range rep.Trace {
		rep.Outcome.Count(e.Disposition)
	}
	return rep
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), nil))
	out := buf.String()

	assert.Contains(t, out, "✓ [1/5] Added: Library Book Due: Dune (due 10/09/2025)")
	assert.Contains(t, out, "⊘ [2/5] Skipped (no due date): Solaris")
	assert.Contains(t, out, "⊘ [3/5] Skipped (already exists): Library Book Due: Ubik")
	assert.Contains(t, out, "↻ [4/5] Updated: Library Book Due: Emma")
	assert.Contains(t, out, "✗ [5/5] Failed: Library Book Due: Kim: boom")
	assert.Contains(t, out, "SUMMARY")
	assert.Contains(t, out, "Skipped: 2")
	assert.Contains(t, out, "Total:   5")
	assert.Contains(t, out, "Elapsed: 1.5s")
	assert.NotContains(t, out, "\x1b[", "no colors when not writing to a terminal")
}

func TestRenderRunError(t *testing.T) {
	out := Plain(reconcile.Report{}, errors.New("calendar authentication failed"))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "Run stopped: calendar authentication failed"))
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "1 added, 1 updated, 2 skipped, 1 failed", Summary(sampleReport().Outcome))
}
