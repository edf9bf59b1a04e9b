package model

import "time"

// AuthorUnknown is the sentinel used when the portal shows no author.
const AuthorUnknown = "N/A"

// DueDateRecord is a single checked-out item as produced by a record source.
// A zero DueDate means the source could not obtain a usable due date.
type DueDateRecord struct {
	Title        string
	Author       string
	CheckoutDate string

	DueDate time.Time

	// SourceDateString is the due date exactly as the portal displayed it.
	SourceDateString string
}

// HasDueDate reports whether the record carries a usable due timestamp.
func (r DueDateRecord) HasDueDate() bool {
	return !r.DueDate.IsZero()
}

// Channel is the delivery method of a reminder.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPopup Channel = "popup"
)

// ReminderRule fires LeadMinutes before the event start.
type ReminderRule struct {
	Channel     Channel `json:"method"`
	LeadMinutes int     `json:"minutes"`
}

// DefaultReminders returns the fixed reminder schedule attached to every due
// date event: 3 days before (email+popup), 1 day before (email+popup) and at
// the due time (popup).
func DefaultReminders() []ReminderRule {
	return []ReminderRule{
		{Channel: ChannelEmail, LeadMinutes: 4320},
		{Channel: ChannelPopup, LeadMinutes: 4320},
		{Channel: ChannelEmail, LeadMinutes: 1440},
		{Channel: ChannelPopup, LeadMinutes: 1440},
		{Channel: ChannelPopup, LeadMinutes: 0},
	}
}

// CalendarEvent is the calendar-side representation of a due date.
// ID is empty until a gateway has stored the event.
type CalendarEvent struct {
	ID          string
	Summary     string
	Description string

	// Start / End are expressed in TimeZone. End is always Start + 1h.
	Start    time.Time
	End      time.Time
	TimeZone string

	Reminders []ReminderRule
}

// ExistingEvent is a single event occurrence as returned by a gateway listing.
type ExistingEvent struct {
	ID      string
	Summary string
	Start   time.Time

	// AllDay events carry a date but no time of day.
	AllDay bool

	Reminders []ReminderRule
}

// MatchResult is the outcome of a duplicate lookup for one candidate.
type MatchResult struct {
	Matched         bool
	ExistingEventID string
}
