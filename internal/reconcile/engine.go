package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	appLog "duesync/internal/log"
	"duesync/internal/model"
)

// Source yields the due date records for one run.
type Source interface {
	Records(ctx context.Context) ([]model.DueDateRecord, error)
}

// Options configures an Engine.
type Options struct {
	// UpdateExisting rewrites matched events instead of skipping them.
	UpdateExisting bool
	// Window overrides the duplicate lookup half-width (DefaultWindow if zero).
	Window time.Duration
	// Location is the zone events are formatted in.
	Location *time.Location
}

// Report is the result of one run: the tallies plus one trace entry per
// record in processing order.
type Report struct {
	Outcome    model.RunOutcome   `json:"outcome"`
	Trace      []model.TraceEntry `json:"trace"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

// Engine reconciles due date records against a calendar, one record at a
// time. An Engine is not safe for concurrent runs.
type Engine struct {
	gateway        Gateway
	formatter      Formatter
	resolver       Resolver
	updateExisting bool
}

// New creates an Engine driving gw.
func New(gw Gateway, opts Options) *Engine {
	return &Engine{
		gateway:        gw,
		formatter:      NewFormatter(opts.Location),
		resolver:       Resolver{Gateway: gw, Window: opts.Window},
		updateExisting: opts.UpdateExisting,
	}
}

// FetchRecords pulls records from src. Failure to obtain any record is
// reported as model.ErrSourceUnavailable.
func FetchRecords(ctx context.Context, src Source) ([]model.DueDateRecord, error) {
	records, err := src.Records(ctx)
	if err != nil {
		if errors.Is(err, model.ErrSourceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records", model.ErrSourceUnavailable)
	}
	return records, nil
}

// Run fetches records from src and processes them. The source is consulted
// before any gateway call.
func (e *Engine) Run(ctx context.Context, src Source) (Report, error) {
	records, err := FetchRecords(ctx, src)
	if err != nil {
		return Report{}, err
	}
	return e.Process(ctx, records)
}

// Process reconciles records in order. Per-record failures are absorbed into
// the report; only an authentication failure or a cancelled context stops the
// run early, in which case the partial report is returned with the error.
func (e *Engine) Process(ctx context.Context, records []model.DueDateRecord) (Report, error) {
	rep := Report{
		Trace:     make([]model.TraceEntry, 0, len(records)),
		StartedAt: time.Now(),
	}

	appLog.Info("reconcile start", "records", len(records), "update_existing", e.updateExisting)

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			rep.FinishedAt = time.Now()
			return rep, err
		}

		entry, err := e.processOne(ctx, i+1, rec)
		rep.Outcome.Count(entry.Disposition)
		rep.Trace = append(rep.Trace, entry)
		logEntry(entry, len(records))

		if err != nil && model.IsFatal(err) {
			rep.FinishedAt = time.Now()
			return rep, err
		}
	}

	rep.FinishedAt = time.Now()
	appLog.Info("reconcile done",
		"added", rep.Outcome.Added,
		"updated", rep.Outcome.Updated,
		"skipped", rep.Outcome.Skipped,
		"failed", rep.Outcome.Failed,
	)
	return rep, nil
}

// processOne walks a single record through
// Pending -> NoDate | Formatted -> Resolved -> Added | Updated | Skipped | Failed.
func (e *Engine) processOne(ctx context.Context, index int, rec model.DueDateRecord) (model.TraceEntry, error) {
	entry := model.TraceEntry{
		Index:   index,
		Title:   rec.Title,
		Summary: Summary(rec.Title),
		Due:     rec.SourceDateString,
	}

	if !rec.HasDueDate() {
		entry.Disposition = model.DispositionSkipped
		entry.Reason = model.ReasonNoDate
		return entry, nil
	}

	ev := e.formatter.Format(rec)
	entry.Summary = ev.Summary
	if entry.Due == "" {
		entry.Due = ev.Start.Format(time.RFC3339)
	}

	match, err := e.resolver.Resolve(ctx, ev.Summary, ev.Start)
	if err != nil {
		entry.DuplicateCheckError = err.Error()
		appLog.Warn("duplicate check failed, treating as new", "summary", ev.Summary, "err", err)
	}

	if match.Matched && !e.updateExisting {
		entry.Disposition = model.DispositionSkipped
		entry.Reason = model.ReasonDuplicate
		entry.EventID = match.ExistingEventID
		return entry, nil
	}

	var (
		id          string
		disposition model.Disposition
	)
	if match.Matched {
		ev.ID = match.ExistingEventID
		id, err = e.gateway.UpdateEvent(ctx, match.ExistingEventID, ev)
		disposition = model.DispositionUpdated
	} else {
		id, err = e.gateway.CreateEvent(ctx, ev)
		disposition = model.DispositionAdded
	}

	if err != nil {
		entry.Disposition = model.DispositionFailed
		entry.Error = err.Error()
		if errors.Is(err, model.ErrAuthentication) {
			return entry, err
		}
		return entry, fmt.Errorf("%w: %w", model.ErrRecordMutation, err)
	}

	entry.Disposition = disposition
	entry.EventID = id
	return entry, nil
}

func logEntry(entry model.TraceEntry, total int) {
	kv := []any{
		"index", entry.Index,
		"total", total,
		"summary", entry.Summary,
		"due", entry.Due,
		"disposition", entry.Disposition,
	}
	if entry.Reason != "" {
		kv = append(kv, "reason", entry.Reason)
	}
	if entry.EventID != "" {
		kv = append(kv, "event_id", entry.EventID)
	}
	if entry.Disposition == model.DispositionFailed {
		appLog.Error("record failed", errors.New(entry.Error), kv...)
		return
	}
	appLog.Info("record processed", kv...)
}
