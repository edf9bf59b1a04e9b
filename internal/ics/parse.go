package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "duesync/internal/log"
	"duesync/internal/model"
)

// ParsedEvent is the normalized representation of a VEVENT as read from the
// store file. Recurrence expansion operates on this type.
type ParsedEvent struct {
	UID string
	Seq int

	Summary     string
	Description string

	Start  time.Time
	End    time.Time
	AllDay bool

	Reminders []model.ReminderRule

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present)
	IsOverride bool       // true if this VEVENT overrides one recurring instance
}

// ParseICS parses a calendar payload into a list of ParsedEvent.
//
//   - Time zones are resolved by the underlying library.
//   - All-day events are detected from the DTSTART value format.
//   - RRULE/EXDATE/RECURRENCE-ID are recorded but not expanded; see
//     ExpandOccurrences.
//   - VEVENTs that cannot be parsed are logged and skipped.
func ParseICS(body []byte) ([]ParsedEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Seq = n
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	out.Start = start
	out.End, _ = ve.GetEndAt()
	if out.End.IsZero() {
		out.End = out.Start
	}

	if dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart); dtStartProp != nil {
		if vs, ok := dtStartProp.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.AllDay = true
		}
		if !strings.Contains(dtStartProp.Value, "T") {
			out.AllDay = true
		}
	}

	for _, alarm := range ve.Alarms() {
		if rule, ok := parseAlarm(alarm); ok {
			out.Reminders = append(out.Reminders, rule)
		}
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if ridProp := ve.GetProperty("RECURRENCE-ID"); ridProp != nil {
		if t, err := parseICSTime(ridProp.Value); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

func parseAlarm(alarm *ical.VAlarm) (model.ReminderRule, bool) {
	actionProp := alarm.GetProperty(ical.ComponentPropertyAction)
	triggerProp := alarm.GetProperty(ical.ComponentPropertyTrigger)
	if actionProp == nil || triggerProp == nil {
		return model.ReminderRule{}, false
	}

	var channel model.Channel
	switch strings.ToUpper(actionProp.Value) {
	case string(ical.ActionEmail):
		channel = model.ChannelEmail
	case string(ical.ActionDisplay):
		channel = model.ChannelPopup
	default:
		return model.ReminderRule{}, false
	}

	minutes, ok := parseTriggerMinutes(triggerProp.Value)
	if !ok {
		return model.ReminderRule{}, false
	}
	return model.ReminderRule{Channel: channel, LeadMinutes: minutes}, true
}

// triggerValue renders a lead time as a relative TRIGGER before the start.
func triggerValue(leadMinutes int) string {
	return "-PT" + strconv.Itoa(leadMinutes) + "M"
}

// parseTriggerMinutes reads a relative TRIGGER duration ("-PT4320M", "-P3D",
// "-PT1H30M") and returns the lead time in minutes. Triggers after the start
// are not reminders and are rejected.
func parseTriggerMinutes(v string) (int, bool) {
	v = strings.TrimSpace(v)
	before := strings.HasPrefix(v, "-")
	v = strings.TrimLeft(v, "+-")
	if !strings.HasPrefix(v, "P") {
		return 0, false
	}
	v = v[1:]

	total := 0
	inTime := false
	num := ""
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'T':
			inTime = true
		default:
			n, err := strconv.Atoi(num)
			if err != nil {
				return 0, false
			}
			num = ""
			switch {
			case r == 'W' && !inTime:
				total += n * 7 * 24 * 60
			case r == 'D' && !inTime:
				total += n * 24 * 60
			case r == 'H' && inTime:
				total += n * 60
			case r == 'M' && inTime:
				total += n
			case r == 'S' && inTime:
				total += n / 60
			default:
				return 0, false
			}
		}
	}
	if num != "" {
		return 0, false
	}
	if !before && total != 0 {
		return 0, false
	}
	return total, true
}

// parseICSTime parses a basic ICS date/date-time string into time.Time for
// EXDATE/RECURRENCE-ID values.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, time.Local)
	}

	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation("20060102", v, time.Local)
}
