package reconcile

import (
	"strings"
	"time"

	"duesync/internal/model"
)

// SummaryPrefix is prepended to the book title to build the event summary.
const SummaryPrefix = "Library Book Due: "

const eventDuration = time.Hour

// Formatter turns due date records into calendar events in a fixed zone.
type Formatter struct {
	Location *time.Location
}

// NewFormatter returns a Formatter for loc (time.Local when nil).
func NewFormatter(loc *time.Location) Formatter {
	if loc == nil {
		loc = time.Local
	}
	return Formatter{Location: loc}
}

// Summary returns the event summary for a title. Titles that already carry
// the prefix are returned unchanged so formatting can be re-applied.
func Summary(title string) string {
	if strings.HasPrefix(title, SummaryPrefix) {
		return title
	}
	return SummaryPrefix + title
}

// Format builds the candidate event for rec. rec must have a due date.
func (f Formatter) Format(rec model.DueDateRecord) model.CalendarEvent {
	loc := f.Location
	if loc == nil {
		loc = time.Local
	}
	start := rec.DueDate.In(loc)

	return model.CalendarEvent{
		Summary:     Summary(rec.Title),
		Description: Description(rec),
		Start:       start,
		End:         start.Add(eventDuration),
		TimeZone:    loc.String(),
		Reminders:   model.DefaultReminders(),
	}
}

// Description renders the event body from the optional record fields.
func Description(rec model.DueDateRecord) string {
	title := strings.TrimPrefix(rec.Title, SummaryPrefix)
	author := rec.Author
	if author == "" {
		author = model.AuthorUnknown
	}

	var b strings.Builder
	b.WriteString("Book: " + title + "\n")
	b.WriteString("Author: " + author + "\n")
	if rec.CheckoutDate != "" && rec.CheckoutDate != model.AuthorUnknown {
		b.WriteString("Checked out on: " + rec.CheckoutDate + "\n")
	}
	due := rec.SourceDateString
	if due == "" && rec.HasDueDate() {
		due = rec.DueDate.Format("02/01/2006 15:04")
	}
	b.WriteString("Due date: " + due)
	return b.String()
}
