package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/go-rod/rod"

	"github.com/hexelier/immoharvest/config"
	"github.com/hexelier/immoharvest/extract"
	"github.com/hexelier/immoharvest/models"
	"github.com/hexelier/immoharvest/scroll"
	"github.com/hexelier/immoharvest/session"
	"github.com/hexelier/immoharvest/sink"
	"github.com/hexelier/immoharvest/timing"
)

// snapshotCards captures each card's outer HTML in one round-trip, so
// extraction can run outside the session gate.
const snapshotCards = `(sel) => Array.from(document.querySelectorAll(sel)).map(el => el.outerHTML)`

// Worker handles one page end to end: navigate, converge lazy-load,
// extract, validate, persist, report. One Worker serves the whole pool;
// RunPage is safe to call concurrently.
type Worker struct {
	session    *session.Session
	extractor  *extract.Extractor
	sink       sink.Sink
	diag       *Diagnostics // nil unless debug mode
	site       config.SiteConfig
	scrape     config.ScrapeConfig
	validation config.ValidationConfig
	profile    timing.Profile
}

// NewWorker wires a worker against the shared session and sink.
func NewWorker(
	s *session.Session,
	ex *extract.Extractor,
	sk sink.Sink,
	diag *Diagnostics,
	site config.SiteConfig,
	scrape config.ScrapeConfig,
	validation config.ValidationConfig,
	profile timing.Profile,
) *Worker {
	return &Worker{
		session:    s,
		extractor:  ex,
		sink:       sk,
		diag:       diag,
		site:       site,
		scrape:     scrape,
		validation: validation,
		profile:    profile,
	}
}

// RunPage runs the bounded inner attempt loop for one page. Navigation
// errors and timeouts trigger another attempt on the same tab after a
// fixed backoff; exhausting the budget yields a well-formed failing
// outcome. Nothing escapes past this boundary except via the outcome.
func (w *Worker) RunPage(ctx context.Context, job models.PageJob) models.PageOutcome {
	rng := timing.NewRand()
	failed := models.PageOutcome{Page: job.Page}

	for attempt := 1; attempt <= w.scrape.WorkerMaxAttempts; attempt++ {
		outcome, err := w.attemptPage(ctx, job, attempt, rng)
		if err == nil {
			return outcome
		}
		err = categorizeError(err)
		if ctx.Err() != nil {
			slog.Info("page attempt aborted by cancellation", "page", job.Page)
			return failed
		}

		slog.Warn("page attempt failed",
			"page", job.Page, "tab", job.TabIdx,
			"attempt", attempt, "of", w.scrape.WorkerMaxAttempts,
			"error", err)
		if attempt < w.scrape.WorkerMaxAttempts {
			select {
			case <-ctx.Done():
				return failed
			case <-time.After(w.scrape.WorkerBackoff):
			}
		}
	}
	return failed
}

// attemptPage is one pass over the page. It alternates between gated
// sections (anything that needs tab focus) and ungated waits, keeping the
// time the whole session is blocked as small as possible.
func (w *Worker) attemptPage(ctx context.Context, job models.PageJob, attempt int, rng *rand.Rand) (models.PageOutcome, error) {
	pageCtx, cancel := context.WithTimeout(ctx, w.scrape.PageTimeout)
	defer cancel()

	url := fmt.Sprintf("%s&page=%d", w.site.BaseURL, job.Page)
	slog.Info("loading page", "page", job.Page, "tab", job.TabIdx, "attempt", attempt)

	// ── 1. Gated: focus + navigate ───────────────────────────────────
	err := w.session.WithTab(pageCtx, job.TabIdx, func(tab *rod.Page) error {
		return w.session.Navigate(pageCtx, tab, url)
	})
	if err != nil {
		return models.PageOutcome{}, err
	}

	// ── 2. Ungated: let network/JS settle before re-taking the gate ──
	if err := w.profile.PageLoad.Sleep(pageCtx, rng); err != nil {
		return models.PageOutcome{}, err
	}

	// ── 3. Gated: lazy-load convergence + card snapshot ──────────────
	var cardHTML []string
	err = w.session.WithTab(pageCtx, job.TabIdx, func(tab *rod.Page) error {
		eng := scroll.New(w.scrape.ScrollSteps, w.profile, rng)
		count, convErr := eng.Converge(pageCtx, scroll.NewPageProber(tab, w.site.CardSelector))
		if convErr != nil {
			return convErr
		}
		if count == 0 {
			slog.Error("no cards found after lazy loading",
				"page", job.Page, "attempt", attempt, "code", models.ErrCodeNoCards)
			if w.diag != nil {
				w.diag.SavePage(tab, job.Page, attempt)
			}
			return nil
		}

		res, evalErr := tab.Eval(snapshotCards, w.site.CardSelector)
		if evalErr != nil {
			return evalErr
		}
		for _, v := range res.Value.Arr() {
			cardHTML = append(cardHTML, v.Str())
		}
		return nil
	})
	if err != nil {
		return models.PageOutcome{}, err
	}
	if len(cardHTML) == 0 {
		return models.PageOutcome{Page: job.Page, Success: false}, nil
	}
	slog.Info("cards loaded", "page", job.Page, "cards", len(cardHTML))

	// ── 4. Ungated: extraction over the snapshot ─────────────────────
	listings := make([]models.Listing, 0, len(cardHTML))
	complete := 0
	for i, h := range cardHTML {
		if err := w.profile.BetweenListings.Sleep(pageCtx, rng); err != nil {
			return models.PageOutcome{}, err
		}

		l := w.extractor.Parse(h)
		if l.Complete() {
			complete++
		} else {
			slog.Warn("card missing fields",
				"page", job.Page, "card", i+1, "missing", l.MissingFields())
			if w.diag != nil {
				w.diag.SaveCard(job.Page, i+1, h)
			}
		}
		listings = append(listings, l)
	}

	// ── 5. Page-level validation ──────────────────────────────────────
	success := validatePage(len(listings), complete, w.validation)
	if !success {
		slog.Warn("page failed validation",
			"page", job.Page, "code", models.ErrCodeValidation,
			"listings", len(listings), "complete", complete,
			"minListings", w.validation.MinListingsPerPage,
			"minRatio", w.validation.MinCompleteRatio)
	}

	// ── 6. Persist everything, flagged or not ─────────────────────────
	if err := w.sink.Append(ctx, job.Page, listings); err != nil {
		slog.Error("sink write failed", "page", job.Page, "error", err)
		success = false
	} else {
		slog.Info("page persisted", "page", job.Page, "listings", len(listings), "complete", complete)
	}

	return models.PageOutcome{
		Page:          job.Page,
		ListingCount:  len(listings),
		CompleteCount: complete,
		Success:       success,
	}, nil
}

// categorizeError folds raw context failures into the typed error space so
// attempt logs carry a code instead of a bare "context deadline exceeded".
func categorizeError(err error) error {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewScrapeError(models.ErrCodeTimeout, "page attempt timed out", err)
	}
	return err
}

// validatePage is the two-part health check: a page can navigate cleanly
// and still be a bot-detection placeholder or half-rendered, so raw DOM
// success is not enough evidence.
func validatePage(listingCount, completeCount int, v config.ValidationConfig) bool {
	if listingCount < v.MinListingsPerPage {
		return false
	}
	if float64(completeCount) < float64(listingCount)*v.MinCompleteRatio {
		return false
	}
	return true
}
