package ics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"duesync/internal/fsutil"
	appLog "duesync/internal/log"
	"duesync/internal/model"
)

const productID = "-//duesync//library due dates//EN"

// ErrEventNotFound is returned when updating an id the store does not hold.
var ErrEventNotFound = errors.New("ics: event not found")

// Store is a calendar gateway backed by a single .ics file. Every mutation
// rewrites the whole file atomically.
type Store struct {
	path string
	loc  *time.Location

	mu  sync.Mutex
	now func() time.Time
}

// NewStore creates a Store for path. loc is the zone listed events are
// reported in (time.Local when nil). The file is created on first write.
func NewStore(path string, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{path: path, loc: loc, now: time.Now}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// ListEvents returns the single occurrences starting within [start, end].
func (s *Store) ListEvents(_ context.Context, start, end time.Time) ([]model.ExistingEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := s.readFile()
	if err != nil {
		return nil, err
	}
	parsed, err := ParseICS(body)
	if err != nil {
		return nil, fmt.Errorf("ics: parse %s: %w", s.path, err)
	}
	return ExpandOccurrences(parsed, ExpandConfig{
		DisplayLocation: s.loc,
		RangeStart:      start,
		RangeEnd:        end,
	})
}

// CreateEvent stores ev under a fresh UID and returns it.
func (s *Store) CreateEvent(_ context.Context, ev model.CalendarEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load()
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	s.addEvent(cal, id, ev)
	if err := s.save(cal); err != nil {
		return "", err
	}

	appLog.Debug("ics event created", "id", id, "summary", ev.Summary, "path", s.path)
	return id, nil
}

// UpdateEvent replaces the event with UID id. Instances of recurring events
// cannot be updated individually.
func (s *Store) UpdateEvent(_ context.Context, id string, ev model.CalendarEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load()
	if err != nil {
		return "", err
	}

	kept := make([]ical.Component, 0, len(cal.Components))
	found := false
	for _, comp := range cal.Components {
		if vev, ok := comp.(*ical.VEvent); ok && eventUID(vev) == id {
			found = true
			continue
		}
		kept = append(kept, comp)
	}
	if !found {
		if strings.Contains(id, instanceSeparator) {
			return "", fmt.Errorf("%w: %s is a recurring instance", ErrEventNotFound, id)
		}
		return "", fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	cal.Components = kept

	s.addEvent(cal, id, ev)
	if err := s.save(cal); err != nil {
		return "", err
	}

	appLog.Debug("ics event updated", "id", id, "summary", ev.Summary, "path", s.path)
	return id, nil
}

func (s *Store) addEvent(cal *ical.Calendar, id string, ev model.CalendarEvent) {
	now := s.now().UTC()

	vev := cal.AddEvent(id)
	vev.SetDtStampTime(now)
	vev.SetModifiedAt(now)
	vev.SetSummary(ev.Summary)
	vev.SetDescription(ev.Description)
	vev.SetStartAt(ev.Start)
	vev.SetEndAt(ev.End)

	for _, rule := range ev.Reminders {
		alarm := vev.AddAlarm()
		switch rule.Channel {
		case model.ChannelEmail:
			alarm.SetAction(ical.ActionEmail)
			alarm.SetProperty(ical.ComponentPropertySummary, ev.Summary)
		default:
			alarm.SetAction(ical.ActionDisplay)
		}
		alarm.SetProperty(ical.ComponentPropertyDescription, ev.Summary)
		alarm.SetTrigger(triggerValue(rule.LeadMinutes))
	}
}

func (s *Store) readFile() ([]byte, error) {
	body, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("ics: read %s: %w", s.path, err)
	}
	return body, nil
}

func (s *Store) load() (*ical.Calendar, error) {
	body, err := s.readFile()
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		cal := ical.NewCalendar()
		cal.SetMethod(ical.MethodPublish)
		cal.SetProductId(productID)
		return cal, nil
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse %s: %w", s.path, err)
	}
	return cal, nil
}

func (s *Store) save(cal *ical.Calendar) error {
	if err := fsutil.WriteFileAtomic(s.path, []byte(cal.Serialize())); err != nil {
		return fmt.Errorf("ics: write %s: %w", s.path, err)
	}
	return nil
}

func eventUID(vev *ical.VEvent) string {
	if p := vev.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		return p.Value
	}
	return ""
}
