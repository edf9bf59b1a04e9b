// Package app wires a source, a calendar gateway and the reconciliation
// engine into serialized runs.
package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	appLog "duesync/internal/log"
	"duesync/internal/reconcile"
	"duesync/internal/report"
)

// ErrBusy is returned by TryRun while another run holds the runner.
var ErrBusy = errors.New("a run is already in progress")

// GatewayFactory opens the calendar for one run.
type GatewayFactory func(ctx context.Context) (reconcile.Gateway, error)

// Notifier is told about every finished run.
type Notifier interface {
	Notify(ctx context.Context, rep reconcile.Report, runErr error) error
}

// Status is the state exposed by the status API.
type Status struct {
	Running   bool              `json:"running"`
	Runs      int               `json:"runs"`
	LastRunAt time.Time         `json:"last_run_at,omitempty"`
	LastError string            `json:"last_error,omitempty"`
	Report    *reconcile.Report `json:"report,omitempty"`
}

// Runner executes reconciliation runs one at a time.
type Runner struct {
	Source   reconcile.Source
	Gateway  GatewayFactory
	Options  reconcile.Options
	Notifier Notifier

	// Output receives the rendered report of every run when set.
	Output io.Writer

	run sync.Mutex

	mu     sync.RWMutex
	status Status
}

// Run blocks until any in-flight run has finished, then runs.
func (r *Runner) Run(ctx context.Context) (reconcile.Report, error) {
	r.run.Lock()
	defer r.run.Unlock()
	return r.runLocked(ctx)
}

// TryRun runs immediately or returns ErrBusy.
func (r *Runner) TryRun(ctx context.Context) (reconcile.Report, error) {
	if !r.run.TryLock() {
		return reconcile.Report{}, ErrBusy
	}
	defer r.run.Unlock()
	return r.runLocked(ctx)
}

// Status returns a snapshot of the last run.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Runner) runLocked(ctx context.Context) (reconcile.Report, error) {
	r.setRunning(true)

	rep, err := r.reconcile(ctx)
	if err != nil {
		appLog.Error("run failed", err, "added", rep.Outcome.Added, "failed", rep.Outcome.Failed)
	}

	if r.Output != nil {
		if werr := report.Render(r.Output, rep, err); werr != nil {
			appLog.Warn("failed to write report", "err", werr)
		}
	}
	if r.Notifier != nil {
		if nerr := r.Notifier.Notify(ctx, rep, err); nerr != nil {
			appLog.Error("notification failed", nerr)
		}
	}

	r.finish(rep, err)
	return rep, err
}

func (r *Runner) reconcile(ctx context.Context) (reconcile.Report, error) {
	started := time.Now()

	// The source is read before the calendar is opened so an unavailable
	// source never costs a gateway round trip.
	records, err := reconcile.FetchRecords(ctx, r.Source)
	if err != nil {
		return reconcile.Report{StartedAt: started, FinishedAt: time.Now()}, err
	}

	gw, err := r.Gateway(ctx)
	if err != nil {
		return reconcile.Report{StartedAt: started, FinishedAt: time.Now()}, err
	}

	return reconcile.New(gw, r.Options).Process(ctx, records)
}

func (r *Runner) setRunning(v bool) {
	r.mu.Lock()
	r.status.Running = v
	r.mu.Unlock()
}

func (r *Runner) finish(rep reconcile.Report, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.Running = false
	r.status.Runs++
	r.status.LastRunAt = time.Now()
	r.status.Report = &rep
	r.status.LastError = ""
	if err != nil {
		r.status.LastError = err.Error()
	}
}
