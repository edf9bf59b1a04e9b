// Package gcal implements the calendar gateway on top of the Google
// Calendar v3 API.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	appLog "duesync/internal/log"
	"duesync/internal/model"
)

const listPageSize = 100

// Options configures a Gateway built from files on disk.
type Options struct {
	CalendarID      string
	CredentialsPath string
	TokenPath       string
	Location        *time.Location
}

// Gateway reads and writes events of one Google calendar.
type Gateway struct {
	svc        *calendar.Service
	calendarID string
	loc        *time.Location
}

// New authenticates with the stored OAuth token and returns a Gateway. Any
// problem with the credentials or the token is reported as
// model.ErrAuthentication.
func New(ctx context.Context, opts Options) (*Gateway, error) {
	cfg, err := LoadOAuthConfig(opts.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrAuthentication, err)
	}
	tok, err := LoadToken(opts.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w (run with -auth first)", model.ErrAuthentication, err)
	}

	ts := &savingTokenSource{
		base: cfg.TokenSource(ctx, tok),
		path: opts.TokenPath,
		last: tok.AccessToken,
	}
	if _, err := ts.Token(); err != nil {
		return nil, fmt.Errorf("%w: refresh token: %w", model.ErrAuthentication, err)
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return NewWithService(svc, opts.CalendarID, opts.Location), nil
}

// NewWithService wraps an already configured service.
func NewWithService(svc *calendar.Service, calendarID string, loc *time.Location) *Gateway {
	if calendarID == "" {
		calendarID = "primary"
	}
	if loc == nil {
		loc = time.Local
	}
	return &Gateway{svc: svc, calendarID: calendarID, loc: loc}
}

// ListEvents returns single occurrences starting in [start, end) ordered by
// start time.
func (g *Gateway) ListEvents(ctx context.Context, start, end time.Time) ([]model.ExistingEvent, error) {
	call := g.svc.Events.List(g.calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(listPageSize)

	var out []model.ExistingEvent
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			ev, ok := g.fromAPI(item)
			if !ok {
				appLog.Debug("gcal: skipping event without start", "id", item.Id)
				continue
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, classify("list events", err)
	}
	return out, nil
}

// CreateEvent inserts ev and returns the new event id.
func (g *Gateway) CreateEvent(ctx context.Context, ev model.CalendarEvent) (string, error) {
	created, err := g.svc.Events.Insert(g.calendarID, toAPI(ev)).Context(ctx).Do()
	if err != nil {
		return "", classify("insert event", err)
	}
	return created.Id, nil
}

// UpdateEvent replaces event id with ev.
func (g *Gateway) UpdateEvent(ctx context.Context, id string, ev model.CalendarEvent) (string, error) {
	updated, err := g.svc.Events.Update(g.calendarID, id, toAPI(ev)).Context(ctx).Do()
	if err != nil {
		return "", classify("update event", err)
	}
	return updated.Id, nil
}

func toAPI(ev model.CalendarEvent) *calendar.Event {
	overrides := make([]*calendar.EventReminder, 0, len(ev.Reminders))
	for _, r := range ev.Reminders {
		rem := &calendar.EventReminder{
			Method:  string(r.Channel),
			Minutes: int64(r.LeadMinutes),
		}
		if r.LeadMinutes == 0 {
			rem.ForceSendFields = []string{"Minutes"}
		}
		overrides = append(overrides, rem)
	}

	return &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start: &calendar.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: ev.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: ev.TimeZone,
		},
		Reminders: &calendar.EventReminders{
			UseDefault:      false,
			Overrides:       overrides,
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

func (g *Gateway) fromAPI(item *calendar.Event) (model.ExistingEvent, bool) {
	if item == nil || item.Start == nil {
		return model.ExistingEvent{}, false
	}
	ev := model.ExistingEvent{ID: item.Id, Summary: item.Summary}

	switch {
	case item.Start.DateTime != "":
		t, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return model.ExistingEvent{}, false
		}
		ev.Start = t
	case item.Start.Date != "":
		t, err := time.ParseInLocation("2006-01-02", item.Start.Date, g.loc)
		if err != nil {
			return model.ExistingEvent{}, false
		}
		ev.Start = t
		ev.AllDay = true
	default:
		return model.ExistingEvent{}, false
	}

	if item.Reminders != nil {
		for _, r := range item.Reminders.Overrides {
			ev.Reminders = append(ev.Reminders, model.ReminderRule{
				Channel:     model.Channel(r.Method),
				LeadMinutes: int(r.Minutes),
			})
		}
	}
	return ev, true
}

// classify maps 401/403 answers and token failures to model.ErrAuthentication.
func classify(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
			return fmt.Errorf("%w: %s: %w", model.ErrAuthentication, op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %s: %w", model.ErrAuthentication, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
