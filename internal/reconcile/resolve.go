package reconcile

import (
	"context"
	"fmt"
	"time"

	"duesync/internal/model"
)

const (
	// DefaultWindow is the half-width of the listing window around a due date.
	DefaultWindow = 24 * time.Hour
	// matchThreshold is exclusive: an event exactly 24h away is not a match.
	matchThreshold = 24 * time.Hour
)

// Gateway is the calendar capability the engine drives. Implementations are
// expected to return single occurrences, never recurring templates.
type Gateway interface {
	ListEvents(ctx context.Context, start, end time.Time) ([]model.ExistingEvent, error)
	CreateEvent(ctx context.Context, ev model.CalendarEvent) (string, error)
	UpdateEvent(ctx context.Context, id string, ev model.CalendarEvent) (string, error)
}

// Resolver finds a previously created event for the same obligation.
type Resolver struct {
	Gateway Gateway
	Window  time.Duration
}

// Resolve looks for an event with exactly the same summary starting less than
// 24 hours from target. The first match in gateway order wins.
//
// A failed listing returns a non-match together with an error wrapping
// model.ErrDuplicateCheck; callers proceed as if nothing was found.
func (r Resolver) Resolve(ctx context.Context, summary string, target time.Time) (model.MatchResult, error) {
	window := r.Window
	if window <= 0 {
		window = DefaultWindow
	}

	events, err := r.Gateway.ListEvents(ctx, target.Add(-window), target.Add(window))
	if err != nil {
		return model.MatchResult{}, fmt.Errorf("%w: %w", model.ErrDuplicateCheck, err)
	}

	for _, ev := range events {
		if ev.Summary != summary || ev.AllDay || ev.Start.IsZero() {
			continue
		}
		if absDuration(ev.Start.Sub(target)) < matchThreshold {
			return model.MatchResult{Matched: true, ExistingEventID: ev.ID}, nil
		}
	}
	return model.MatchResult{}, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
