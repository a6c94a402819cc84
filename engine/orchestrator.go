package engine

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/hexelier/immoharvest/config"
	"github.com/hexelier/immoharvest/models"
	"github.com/hexelier/immoharvest/timing"
)

// PageRunner executes one page job and reports its outcome. The worker is
// the production implementation; tests substitute scripted runners.
type PageRunner interface {
	RunPage(ctx context.Context, job models.PageJob) models.PageOutcome
}

// Orchestrator owns the lifecycle of every page in a run: dispatch over a
// bounded pool, outcome bookkeeping, and bounded retry rounds. Workers stay
// stateless; all page state lives here.
type Orchestrator struct {
	runner  PageRunner
	tabs    int
	retry   config.RetryConfig
	profile timing.Profile

	mu       sync.Mutex
	states   map[int]models.PageState
	outcomes map[int]models.PageOutcome
	retryQ   map[int]models.PageJob // keyed by page: at most one pending retry each
}

// NewOrchestrator builds an orchestrator running at most tabs jobs at once.
func NewOrchestrator(runner PageRunner, tabs int, retry config.RetryConfig, profile timing.Profile) *Orchestrator {
	if tabs < 1 {
		tabs = 1
	}
	return &Orchestrator{
		runner:   runner,
		tabs:     tabs,
		retry:    retry,
		profile:  profile,
		states:   make(map[int]models.PageState),
		outcomes: make(map[int]models.PageOutcome),
		retryQ:   make(map[int]models.PageJob),
	}
}

// Run scrapes pages start..end inclusive and returns the final report.
// Pages are assigned to tabs round-robin. After the initial pass, failed
// pages are retried in up to MaxRounds batches; whatever is still queued
// when the rounds run out is abandoned.
func (o *Orchestrator) Run(ctx context.Context, start, end int) models.RunReport {
	began := time.Now()
	rng := timing.NewRand()

	jobs := make([]models.PageJob, 0, end-start+1)
	for i, p := 0, start; p <= end; i, p = i+1, p+1 {
		jobs = append(jobs, models.PageJob{Page: p, TabIdx: i % o.tabs, Attempt: 1})
		o.states[p] = models.StatePending
	}
	slog.Info("run started", "pages", len(jobs), "tabs", o.tabs)

	o.dispatch(ctx, jobs, true, rng)

	for round := 1; round <= o.retry.MaxRounds; round++ {
		batch := o.drainRetryQueue()
		if len(batch) == 0 {
			break
		}
		slog.Info("retry round starting", "round", round, "of", o.retry.MaxRounds, "pages", len(batch))
		if err := o.profile.RetryCooldown.Sleep(ctx, rng); err != nil {
			o.requeue(batch)
			break
		}
		o.dispatch(ctx, batch, false, rng)
	}

	// Whatever the rounds could not clear is abandoned.
	for _, job := range o.drainRetryQueue() {
		o.setState(job.Page, models.StateAbandoned)
	}

	return o.report(began)
}

// dispatch runs one batch of jobs over the bounded pool. The initial pass
// staggers worker start-up and pauses every so often, like a person taking
// a breather; retry batches skip the stagger since the cooldown already
// spaced them out.
func (o *Orchestrator) dispatch(ctx context.Context, jobs []models.PageJob, stagger bool, rng *rand.Rand) {
	sem := make(chan struct{}, o.tabs)
	var wg sync.WaitGroup

	sinceBreak := 0
	nextBreak := breakEvery(rng)

	for i, job := range jobs {
		if ctx.Err() != nil {
			break
		}

		if sinceBreak >= nextBreak {
			slog.Info("taking a short break", "dispatched", i, "remaining", len(jobs)-i)
			if err := o.profile.Break.Sleep(ctx, rng); err != nil {
				break
			}
			sinceBreak = 0
			nextBreak = breakEvery(rng)
		}

		var delay time.Duration
		if stagger {
			delay = o.profile.Stagger.Sample(rng) * time.Duration(i)
		}

		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		sinceBreak++
		go func(job models.PageJob, delay time.Duration) {
			defer wg.Done()
			defer func() { <-sem }()
			o.runJob(ctx, job, delay)
		}(job, delay)
	}
	wg.Wait()
}

// runJob waits out the start-up delay, executes the job, and folds the
// outcome into the state machine. A failed page is queued for retry unless
// its attempt budget is spent.
func (o *Orchestrator) runJob(ctx context.Context, job models.PageJob, delay time.Duration) {
	if delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	o.setState(job.Page, models.StateDispatched)
	outcome := o.runner.RunPage(ctx, job)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[job.Page] = outcome

	if outcome.Success {
		o.states[job.Page] = models.StateSucceeded
		return
	}
	if job.Attempt >= o.retry.MaxAttempts {
		slog.Error("page abandoned after final attempt", "page", job.Page, "attempts", job.Attempt)
		o.states[job.Page] = models.StateAbandoned
		return
	}
	o.states[job.Page] = models.StateFailedPendingRetry
	// Retries stay on the tab the page originally got.
	o.retryQ[job.Page] = models.PageJob{Page: job.Page, TabIdx: job.TabIdx, Attempt: job.Attempt + 1}
	slog.Warn("page queued for retry", "page", job.Page, "nextAttempt", job.Attempt+1)
}

// drainRetryQueue empties the retry queue, returning jobs in page order.
func (o *Orchestrator) drainRetryQueue() []models.PageJob {
	o.mu.Lock()
	defer o.mu.Unlock()

	batch := make([]models.PageJob, 0, len(o.retryQ))
	for _, job := range o.retryQ {
		batch = append(batch, job)
	}
	o.retryQ = make(map[int]models.PageJob)
	sort.Slice(batch, func(i, j int) bool { return batch[i].Page < batch[j].Page })
	return batch
}

func (o *Orchestrator) requeue(batch []models.PageJob) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, job := range batch {
		o.retryQ[job.Page] = job
	}
}

func (o *Orchestrator) setState(page int, st models.PageState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states[page] = st
}

// report snapshots the final state into a RunReport. TotalListings counts
// every extracted listing from each page's latest outcome, including pages
// whose last attempt still failed validation (partial data is persisted).
func (o *Orchestrator) report(began time.Time) models.RunReport {
	o.mu.Lock()
	defer o.mu.Unlock()

	r := models.RunReport{
		Outcomes: make(map[int]models.PageOutcome, len(o.outcomes)),
		Elapsed:  time.Since(began),
	}
	for page, out := range o.outcomes {
		r.Outcomes[page] = out
		r.TotalListings += out.ListingCount
	}
	for page, st := range o.states {
		if st == models.StateAbandoned || st == models.StateFailedPendingRetry || st == models.StatePending {
			r.FailedPages = append(r.FailedPages, page)
		}
	}
	sort.Ints(r.FailedPages)
	return r
}

// breakEvery picks how many dispatches to run before the next pause.
func breakEvery(rng *rand.Rand) int {
	return 10 + rng.Intn(6)
}
