package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duesync/internal/model"
	"duesync/internal/reconcile"
)

const bookSummary = "Library Book Due: Book A"

func TestResolveMatchWindow(t *testing.T) {
	loc := kolkata(t)
	target := time.Date(2025, 9, 10, 23, 59, 0, 0, loc)

	tests := []struct {
		name    string
		start   time.Time
		matched bool
	}{
		{"same day morning", time.Date(2025, 9, 10, 8, 0, 0, 0, loc), true},
		{"two days later", time.Date(2025, 9, 12, 8, 0, 0, 0, loc), false},
		{"86399s after", target.Add(86399 * time.Second), true},
		{"86399s before", target.Add(-86399 * time.Second), true},
		{"exactly 86400s after", target.Add(86400 * time.Second), false},
		{"exactly 86400s before", target.Add(-86400 * time.Second), false},
		{"86401s after", target.Add(86401 * time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newMemGateway(model.ExistingEvent{ID: "e1", Summary: bookSummary, Start: tt.start})
			// Return everything so only the threshold decides.
			r := reconcile.Resolver{Gateway: unwindowed{gw}}

			got, err := r.Resolve(context.Background(), bookSummary, target)
			require.NoError(t, err)
			assert.Equal(t, tt.matched, got.Matched)
			if tt.matched {
				assert.Equal(t, "e1", got.ExistingEventID)
			} else {
				assert.Empty(t, got.ExistingEventID)
			}
		})
	}
}

func TestResolveQueriesWindow(t *testing.T) {
	target := time.Date(2025, 9, 10, 23, 59, 0, 0, time.UTC)
	gw := newMemGateway()

	_, err := reconcile.Resolver{Gateway: gw}.Resolve(context.Background(), bookSummary, target)
	require.NoError(t, err)
	assert.Equal(t, target.Add(-24*time.Hour), gw.lastListStart)
	assert.Equal(t, target.Add(24*time.Hour), gw.lastListEnd)

	_, err = reconcile.Resolver{Gateway: gw, Window: 3 * time.Hour}.Resolve(context.Background(), bookSummary, target)
	require.NoError(t, err)
	assert.Equal(t, target.Add(-3*time.Hour), gw.lastListStart)
	assert.Equal(t, target.Add(3*time.Hour), gw.lastListEnd)
}

func TestResolveSummaryIsCaseSensitive(t *testing.T) {
	target := time.Date(2025, 9, 10, 23, 59, 0, 0, time.UTC)
	gw := newMemGateway(
		model.ExistingEvent{ID: "lower", Summary: "library book due: Book A", Start: target},
		model.ExistingEvent{ID: "spaced", Summary: bookSummary + " ", Start: target},
	)

	got, err := reconcile.Resolver{Gateway: gw}.Resolve(context.Background(), bookSummary, target)
	require.NoError(t, err)
	assert.False(t, got.Matched)
}

func TestResolveFirstMatchWins(t *testing.T) {
	target := time.Date(2025, 9, 10, 23, 59, 0, 0, time.UTC)
	gw := newMemGateway(
		model.ExistingEvent{ID: "other", Summary: "Dentist", Start: target},
		model.ExistingEvent{ID: "first", Summary: bookSummary, Start: target.Add(-2 * time.Hour)},
		model.ExistingEvent{ID: "second", Summary: bookSummary, Start: target},
	)

	got, err := reconcile.Resolver{Gateway: gw}.Resolve(context.Background(), bookSummary, target)
	require.NoError(t, err)
	assert.Equal(t, model.MatchResult{Matched: true, ExistingEventID: "first"}, got)
}

func TestResolveIgnoresAllDayEvents(t *testing.T) {
	target := time.Date(2025, 9, 10, 23, 59, 0, 0, time.UTC)
	gw := newMemGateway(model.ExistingEvent{ID: "allday", Summary: bookSummary, Start: target, AllDay: true})

	got, err := reconcile.Resolver{Gateway: gw}.Resolve(context.Background(), bookSummary, target)
	require.NoError(t, err)
	assert.False(t, got.Matched)
}

func TestResolveFailsOpen(t *testing.T) {
	gw := newMemGateway()
	gw.listErr = errors.New("503 backend error")

	got, err := reconcile.Resolver{Gateway: gw}.Resolve(context.Background(), bookSummary, time.Now())
	assert.ErrorIs(t, err, model.ErrDuplicateCheck)
	assert.False(t, got.Matched)
	assert.Empty(t, got.ExistingEventID)
}

// unwindowed returns every stored event regardless of the requested window.
type unwindowed struct{ *memGateway }

func (u unwindowed) ListEvents(_ context.Context, _, _ time.Time) ([]model.ExistingEvent, error) {
	u.listCalls++
	return u.events, nil
}
