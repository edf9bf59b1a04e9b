package reconcile

import (
	"fmt"
	"strings"
	"time"

	"duesync/internal/model"
)

// Layouts carrying a time of day are taken verbatim.
var timedLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04",
}

// Date-only layouts resolve to the end of the day.
var dateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
}

// ParseDueDate parses a portal or file due date. Strings with an explicit
// offset keep it; strings without one are read in loc. A date without a time
// component means 23:59 on that day.
func ParseDueDate(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s := strings.TrimSpace(raw)
	if s == "" || s == model.AuthorUnknown {
		return time.Time{}, fmt.Errorf("%w: empty due date", model.ErrMalformedRecord)
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range timedLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 0, 0, loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized due date %q", model.ErrMalformedRecord, raw)
}

// NewRecord builds a record from raw portal strings. An unparseable due date
// leaves DueDate zero so the engine skips the record.
func NewRecord(title, author, checkout, due string, loc *time.Location) model.DueDateRecord {
	rec := model.DueDateRecord{
		Title:            strings.TrimSpace(title),
		Author:           strings.TrimSpace(author),
		CheckoutDate:     strings.TrimSpace(checkout),
		SourceDateString: strings.TrimSpace(due),
	}
	if rec.Author == "" {
		rec.Author = model.AuthorUnknown
	}
	if t, err := ParseDueDate(due, loc); err == nil {
		rec.DueDate = t
	}
	return rec
}
