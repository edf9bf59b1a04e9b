package reconcile_test

import (
	"context"
	"fmt"
	"time"

	"duesync/internal/model"
)

// memGateway is an in-memory calendar that records every call it receives.
type memGateway struct {
	events []model.ExistingEvent
	stored map[string]model.CalendarEvent
	nextID int

	listErr   error
	createErr map[int]error // keyed by 1-based create call number
	updateErr error

	listCalls   int
	createCalls int
	updateCalls int

	lastListStart time.Time
	lastListEnd   time.Time
}

func newMemGateway(existing ...model.ExistingEvent) *memGateway {
	return &memGateway{
		events:    existing,
		stored:    map[string]model.CalendarEvent{},
		createErr: map[int]error{},
	}
}

func (g *memGateway) totalCalls() int {
	return g.listCalls + g.createCalls + g.updateCalls
}

func (g *memGateway) ListEvents(_ context.Context, start, end time.Time) ([]model.ExistingEvent, error) {
	g.listCalls++
	g.lastListStart, g.lastListEnd = start, end
	if g.listErr != nil {
		return nil, g.listErr
	}
	out := make([]model.ExistingEvent, 0, len(g.events))
	for _, ev := range g.events {
		if ev.Start.Before(start) || ev.Start.After(end) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (g *memGateway) CreateEvent(_ context.Context, ev model.CalendarEvent) (string, error) {
	g.createCalls++
	if err := g.createErr[g.createCalls]; err != nil {
		return "", err
	}
	g.nextID++
	id := fmt.Sprintf("evt-%d", g.nextID)
	ev.ID = id
	g.stored[id] = ev
	g.events = append(g.events, model.ExistingEvent{ID: id, Summary: ev.Summary, Start: ev.Start, Reminders: ev.Reminders})
	return id, nil
}

func (g *memGateway) UpdateEvent(_ context.Context, id string, ev model.CalendarEvent) (string, error) {
	g.updateCalls++
	if g.updateErr != nil {
		return "", g.updateErr
	}
	ev.ID = id
	g.stored[id] = ev
	return id, nil
}

type staticSource struct {
	records []model.DueDateRecord
	err     error
}

func (s staticSource) Records(context.Context) ([]model.DueDateRecord, error) {
	return s.records, s.err
}
