package model

// Disposition is the terminal state of one record within a run.
type Disposition string

const (
	DispositionAdded   Disposition = "added"
	DispositionUpdated Disposition = "updated"
	DispositionSkipped Disposition = "skipped"
	DispositionFailed  Disposition = "failed"
)

// Skip / failure reasons recorded on trace entries.
const (
	ReasonNoDate    = "no_date"
	ReasonDuplicate = "duplicate"
)

// RunOutcome accumulates per-disposition counts for a single run.
type RunOutcome struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Count increments the counter matching d.
func (o *RunOutcome) Count(d Disposition) {
	switch d {
	case DispositionAdded:
		o.Added++
	case DispositionUpdated:
		o.Updated++
	case DispositionSkipped:
		o.Skipped++
	case DispositionFailed:
		o.Failed++
	}
}

// Total is the number of records the run accounted for.
func (o RunOutcome) Total() int {
	return o.Added + o.Updated + o.Skipped + o.Failed
}

// TraceEntry records what happened to one record, in processing order.
type TraceEntry struct {
	Index       int         `json:"index"`
	Title       string      `json:"title"`
	Summary     string      `json:"summary"`
	Due         string      `json:"due"`
	Disposition Disposition `json:"disposition"`
	Reason      string      `json:"reason,omitempty"`
	EventID     string      `json:"event_id,omitempty"`
	Error       string      `json:"error,omitempty"`

	// DuplicateCheckError is set when the lookup failed open.
	DuplicateCheckError string `json:"duplicate_check_error,omitempty"`
}
