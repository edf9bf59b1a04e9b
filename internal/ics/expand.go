package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "duesync/internal/log"
	"duesync/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000

	// instanceSeparator joins a recurring event UID and its instance start.
	instanceSeparator = "_"
	instanceLayout    = "20060102T150405Z"
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone all occurrences are converted to.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the inclusive window for occurrence starts.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE expansion. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandOccurrences turns parsed events into single occurrences whose start
// lies inside the configured window. Recurring events never appear as a
// template: each instance is returned on its own, with EXDATEs removed and
// RECURRENCE-ID overrides applied.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) ([]model.ExistingEvent, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Preserve file order for base events; it is the tie-break for matching.
	order := make([]string, 0)
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)

	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	out := make([]model.ExistingEvent, 0)
	for _, uid := range order {
		for _, ev := range baseByUID[uid] {
			if ev.RawRRule == "" {
				if inRange(ev.Start, cfg) {
					out = append(out, makeOccurrence(ev, ev.UID, ev.Start, cfg.DisplayLocation))
				}
				continue
			}
			out = append(out, expandRecurringEvent(ev, overridesByUID[uid], cfg)...)
		}
	}
	return out, nil
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.ExistingEvent {
	out := make([]model.ExistingEvent, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	occTimes := set.Between(
		cfg.RangeStart.In(ev.Start.Location()),
		cfg.RangeEnd.In(ev.Start.Location()),
		true,
	)
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		appLog.Warn("expand: truncated occurrences", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
	}

	for _, occStart := range occTimes {
		id := ev.UID + instanceSeparator + occStart.UTC().Format(instanceLayout)
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			if inRange(o.Start, cfg) {
				out = append(out, makeOccurrence(o, id, o.Start, cfg.DisplayLocation))
			}
			continue
		}
		out = append(out, makeOccurrence(ev, id, occStart, cfg.DisplayLocation))
	}
	return out
}

// findOverrideForStart finds an override whose RECURRENCE-ID equals start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func makeOccurrence(ev ParsedEvent, id string, start time.Time, loc *time.Location) model.ExistingEvent {
	return model.ExistingEvent{
		ID:        id,
		Summary:   ev.Summary,
		Start:     start.In(loc),
		AllDay:    ev.AllDay,
		Reminders: ev.Reminders,
	}
}

func inRange(t time.Time, cfg ExpandConfig) bool {
	return !t.Before(cfg.RangeStart) && !t.After(cfg.RangeEnd)
}
