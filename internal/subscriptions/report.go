package subscriptions

import (
	"time"

	"keepsake/internal/catalog"
)

// State is the outcome of polling one subscription.
type State string

const (
	StateUnchecked State = "unchecked"
	StateNoChange  State = "checked-no-change"
	StateRegressed State = "checked-regressed"
	StateNewData   State = "checked-new-data"
)

// PollResult records one subscription poll.
type PollResult struct {
	Subscription *catalog.Subscription
	State        State
	// Skipped is true when the check interval had not elapsed; nothing was
	// fetched or persisted.
	Skipped       bool
	PreviousCount int
	Count         int
	Err           error
}

// MissingResult records the missing pass for one subscription.
type MissingResult struct {
	Subscription *catalog.Subscription
	Present      int
	Downloaded   int
	Failed       int
}

// Failure is one entry of the end-of-run report.
type Failure struct {
	Subscription string
	URL          string
	Kind         string
	Err          error
}

// Report summarizes a run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Polls      []PollResult
	Missing    []MissingResult
	Failures   []Failure
}

// Count returns how many polls ended in state.
func (r *Report) Count(state State) int {
	n := 0
	for _, poll := range r.Polls {
		if poll.State == state && !poll.Skipped {
			n++
		}
	}
	return n
}

// Skipped returns how many polls were skipped by the check interval.
func (r *Report) Skipped() int {
	n := 0
	for _, poll := range r.Polls {
		if poll.Skipped {
			n++
		}
	}
	return n
}

// Downloaded returns the number of files downloaded during the run.
func (r *Report) Downloaded() int {
	n := 0
	for _, m := range r.Missing {
		n += m.Downloaded
	}
	return n
}

// AddReport summarizes a batch of subscription additions.
type AddReport struct {
	Added    []*catalog.Subscription
	Failures []Failure
}
