package models

import (
	"sort"
	"time"
)

// PageJob is one unit of scheduling: a page number bound to a tab index.
// The orchestrator increments Attempt each time the page is re-dispatched.
type PageJob struct {
	Page    int
	TabIdx  int
	Attempt int
}

// PageOutcome is the per-attempt verdict for one page. Success is a derived
// judgment (listing count and completeness thresholds), not a raw fetch
// status.
type PageOutcome struct {
	Page          int
	ListingCount  int
	CompleteCount int
	Success       bool
}

// PageState is the orchestrator-side lifecycle of a page number.
type PageState int

const (
	StatePending PageState = iota
	StateDispatched
	StateSucceeded
	StateFailedPendingRetry
	StateAbandoned
)

func (s PageState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDispatched:
		return "dispatched"
	case StateSucceeded:
		return "succeeded"
	case StateFailedPendingRetry:
		return "failed-pending-retry"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// RunReport is the final result of a scraping run.
type RunReport struct {
	TotalListings int
	Outcomes      map[int]PageOutcome
	FailedPages   []int
	Elapsed       time.Duration
}

// AllSucceeded reports whether no page was abandoned.
func (r RunReport) AllSucceeded() bool {
	return len(r.FailedPages) == 0
}

// SortedFailedPages returns the abandoned page numbers in ascending order.
func (r RunReport) SortedFailedPages() []int {
	out := make([]int, len(r.FailedPages))
	copy(out, r.FailedPages)
	sort.Ints(out)
	return out
}
