package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"duesync/internal/fsutil"
	"duesync/internal/model"
	"duesync/internal/reconcile"
)

// On-disk layout of the intermediate file. Events mirror the calendar API
// shape so the file can be inspected or replayed by hand.
type fileDocument struct {
	Events   []fileEvent  `json:"events"`
	Metadata fileMetadata `json:"metadata"`
}

type fileEvent struct {
	Summary     string         `json:"summary"`
	Description string         `json:"description"`
	Start       fileDateTime   `json:"start"`
	End         fileDateTime   `json:"end"`
	Reminders   *fileReminders `json:"reminders,omitempty"`
}

type fileDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type fileReminders struct {
	UseDefault bool                 `json:"useDefault"`
	Overrides  []model.ReminderRule `json:"overrides"`
}

type fileMetadata struct {
	TotalEvents int    `json:"total_events"`
	ExtractedAt string `json:"extracted_at"`
	Source      string `json:"source"`
}

const fileDateTimeLayout = "2006-01-02T15:04:05"

// extracted_at is written as RFC 3339 but older files carry a local
// timestamp without a zone.
var extractedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	fileDateTimeLayout,
}

// File reads and writes the intermediate JSON file.
type File struct {
	Path     string
	Label    string
	Location *time.Location
}

// NewFile returns a File source for path. Date strings without a zone are
// read in loc.
func NewFile(path, label string, loc *time.Location) *File {
	if loc == nil {
		loc = time.Local
	}
	return &File{Path: path, Label: label, Location: loc}
}

// Exists reports whether the file is present.
func (f *File) Exists() bool {
	_, err := os.Stat(f.Path)
	return err == nil
}

// Records loads every event in the file as a record. Events without a start
// time come back without a due date.
func (f *File) Records(_ context.Context) ([]model.DueDateRecord, error) {
	doc, err := f.read()
	if err != nil {
		return nil, err
	}

	records := make([]model.DueDateRecord, 0, len(doc.Events))
	for _, ev := range doc.Events {
		records = append(records, f.recordFromEvent(ev))
	}
	return records, nil
}

// ExtractedAt returns the time the file was last written by a scrape.
func (f *File) ExtractedAt() (time.Time, error) {
	doc, err := f.read()
	if err != nil {
		return time.Time{}, err
	}
	raw := strings.TrimSpace(doc.Metadata.ExtractedAt)
	for _, layout := range extractedAtLayouts {
		if t, err := time.ParseInLocation(layout, raw, f.Location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%s: invalid extracted_at %q", f.Path, raw)
}

// Save replaces the file with records. Records without a due date are not
// written since they cannot become events.
func (f *File) Save(records []model.DueDateRecord, extractedAt time.Time) error {
	formatter := reconcile.NewFormatter(f.Location)

	doc := fileDocument{Events: []fileEvent{}}
	for _, rec := range records {
		if !rec.HasDueDate() {
			continue
		}
		ev := formatter.Format(rec)
		doc.Events = append(doc.Events, fileEvent{
			Summary:     ev.Summary,
			Description: ev.Description,
			Start:       fileDateTime{DateTime: ev.Start.Format(fileDateTimeLayout), TimeZone: ev.TimeZone},
			End:         fileDateTime{DateTime: ev.End.Format(fileDateTimeLayout), TimeZone: ev.TimeZone},
			Reminders:   &fileReminders{Overrides: ev.Reminders},
		})
	}
	doc.Metadata = fileMetadata{
		TotalEvents: len(doc.Events),
		ExtractedAt: extractedAt.Format(time.RFC3339),
		Source:      f.Label,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(f.Path, append(data, '\n'))
}

func (f *File) read() (fileDocument, error) {
	var doc fileDocument

	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, fmt.Errorf("%w: %s does not exist", model.ErrSourceUnavailable, f.Path)
		}
		return doc, fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("%w: decode %s: %w", model.ErrSourceUnavailable, f.Path, err)
	}
	return doc, nil
}

// recordFromEvent reverses Formatter.Format: the title comes from the
// summary, the optional fields from the description lines.
func (f *File) recordFromEvent(ev fileEvent) model.DueDateRecord {
	title := strings.TrimPrefix(ev.Summary, reconcile.SummaryPrefix)
	if strings.TrimSpace(title) == "" {
		title = "Unknown"
	}

	fields := descriptionFields(ev.Description)
	if book := fields["Book"]; book != "" {
		title = book
	}

	loc := f.Location
	if ev.Start.TimeZone != "" {
		if l, err := time.LoadLocation(ev.Start.TimeZone); err == nil {
			loc = l
		}
	}

	rec := reconcile.NewRecord(title, fields["Author"], fields["Checked out on"], ev.Start.DateTime, loc)
	if due := fields["Due date"]; due != "" && rec.HasDueDate() {
		rec.SourceDateString = due
	}
	return rec
}

func descriptionFields(desc string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(desc, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return fields
}
