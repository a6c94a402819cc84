package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/hexelier/immoharvest/config"
	"github.com/hexelier/immoharvest/models"
	"github.com/hexelier/immoharvest/timing"
)

// fakeRunner plays back a per-page script of success flags and records
// every job it is handed.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []models.PageJob
	script map[int][]bool // consumed in order; exhausted pages succeed
}

func (f *fakeRunner) RunPage(_ context.Context, job models.PageJob) models.PageOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, job)

	success := true
	if seq, ok := f.script[job.Page]; ok && len(seq) > 0 {
		success = seq[0]
		f.script[job.Page] = seq[1:]
	}
	return models.PageOutcome{
		Page:          job.Page,
		ListingCount:  25,
		CompleteCount: 20,
		Success:       success,
	}
}

func (f *fakeRunner) callsFor(page int) []models.PageJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PageJob
	for _, c := range f.calls {
		if c.Page == page {
			out = append(out, c)
		}
	}
	return out
}

func testRetry() config.RetryConfig {
	return config.RetryConfig{MaxAttempts: 3, MaxRounds: 2}
}

func TestAllPagesSucceedFirstPass(t *testing.T) {
	runner := &fakeRunner{script: map[int][]bool{}}
	o := NewOrchestrator(runner, 2, testRetry(), timing.Zero())

	report := o.Run(context.Background(), 1, 6)

	if !report.AllSucceeded() {
		t.Fatalf("expected clean run, failed pages: %v", report.FailedPages)
	}
	if len(report.Outcomes) != 6 {
		t.Fatalf("got %d outcomes, want 6", len(report.Outcomes))
	}
	if report.TotalListings != 6*25 {
		t.Errorf("TotalListings = %d, want %d", report.TotalListings, 6*25)
	}
	for p := 1; p <= 6; p++ {
		if got := len(runner.callsFor(p)); got != 1 {
			t.Errorf("page %d dispatched %d times, want 1", p, got)
		}
	}
}

func TestPageRecoversOnSecondRetry(t *testing.T) {
	runner := &fakeRunner{script: map[int][]bool{
		3: {false, false, true},
	}}
	o := NewOrchestrator(runner, 2, testRetry(), timing.Zero())

	report := o.Run(context.Background(), 1, 4)

	if !report.AllSucceeded() {
		t.Fatalf("page 3 should have recovered, failed pages: %v", report.FailedPages)
	}
	calls := runner.callsFor(3)
	if len(calls) != 3 {
		t.Fatalf("page 3 ran %d times, want 3", len(calls))
	}
	for i, c := range calls {
		if c.Attempt != i+1 {
			t.Errorf("call %d has attempt %d, want %d", i, c.Attempt, i+1)
		}
	}
	if out := report.Outcomes[3]; !out.Success {
		t.Error("final outcome for page 3 should be a success")
	}
}

func TestPageAbandonedAfterAttemptBudget(t *testing.T) {
	runner := &fakeRunner{script: map[int][]bool{
		2: {false, false, false},
	}}
	o := NewOrchestrator(runner, 2, testRetry(), timing.Zero())

	report := o.Run(context.Background(), 1, 4)

	if len(report.FailedPages) != 1 || report.FailedPages[0] != 2 {
		t.Fatalf("FailedPages = %v, want exactly [2]", report.FailedPages)
	}
	if got := len(runner.callsFor(2)); got != 3 {
		t.Errorf("page 2 ran %d times, want 3", got)
	}
	if len(o.retryQ) != 0 {
		t.Errorf("retry queue not empty after run: %v", o.retryQ)
	}
	// An abandoned page still has its last outcome recorded.
	if _, ok := report.Outcomes[2]; !ok {
		t.Error("abandoned page missing from outcomes")
	}
}

func TestRetryStaysOnOriginalTab(t *testing.T) {
	runner := &fakeRunner{script: map[int][]bool{
		5: {false, true},
	}}
	o := NewOrchestrator(runner, 3, testRetry(), timing.Zero())

	o.Run(context.Background(), 1, 6)

	calls := runner.callsFor(5)
	if len(calls) != 2 {
		t.Fatalf("page 5 ran %d times, want 2", len(calls))
	}
	if calls[0].TabIdx != calls[1].TabIdx {
		t.Errorf("retry moved tabs: %d then %d", calls[0].TabIdx, calls[1].TabIdx)
	}
}

func TestRoundRobinTabAssignment(t *testing.T) {
	runner := &fakeRunner{script: map[int][]bool{}}
	o := NewOrchestrator(runner, 3, testRetry(), timing.Zero())

	o.Run(context.Background(), 10, 15)

	for i, p := 0, 10; p <= 15; i, p = i+1, p+1 {
		calls := runner.callsFor(p)
		if len(calls) != 1 {
			t.Fatalf("page %d ran %d times, want 1", p, len(calls))
		}
		if calls[0].TabIdx != i%3 {
			t.Errorf("page %d on tab %d, want %d", p, calls[0].TabIdx, i%3)
		}
	}
}

func TestCancelledRunReportsUnfinishedPagesAsFailed(t *testing.T) {
	runner := &fakeRunner{script: map[int][]bool{}}
	o := NewOrchestrator(runner, 1, testRetry(), timing.Zero())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := o.Run(ctx, 1, 3)

	if report.AllSucceeded() {
		t.Error("cancelled run should not report a clean sweep")
	}
}

func TestSingleTabProcessesSequentially(t *testing.T) {
	runner := &fakeRunner{script: map[int][]bool{}}
	o := NewOrchestrator(runner, 1, testRetry(), timing.Zero())

	report := o.Run(context.Background(), 1, 5)

	if !report.AllSucceeded() {
		t.Fatalf("failed pages: %v", report.FailedPages)
	}
	runner.mu.Lock()
	defer runner.mu.Unlock()
	for _, c := range runner.calls {
		if c.TabIdx != 0 {
			t.Errorf("page %d assigned tab %d with a single-tab pool", c.Page, c.TabIdx)
		}
	}
}
