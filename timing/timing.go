// Package timing supplies the randomized delay ranges used by every
// browser-touching component. Human traffic never fires at fixed intervals,
// so all waits are sampled from ranges rather than constants.
package timing

import (
	"context"
	"math/rand"
	"time"
)

// Range is an inclusive min/max delay window.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Sample returns a uniformly random duration within the range.
func (r Range) Sample(rng *rand.Rand) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rng.Int63n(int64(r.Max-r.Min)))
}

// Sleep blocks for a random duration within the range, or until the
// context is canceled.
func (r Range) Sleep(ctx context.Context, rng *rand.Rand) error {
	d := r.Sample(rng)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Profile groups every delay family used across the pipeline.
type Profile struct {
	// BetweenListings paces per-card extraction.
	BetweenListings Range
	// PageLoad is the settle wait after navigation, before scrolling.
	PageLoad Range
	// TabSwitch precedes every tab focus change.
	TabSwitch Range
	// TabOpen spaces out the creation of additional tabs at startup.
	TabOpen Range

	// LazyScrollSettle follows each scroll step, letting async content mount.
	LazyScrollSettle Range
	// FinalAfterScroll follows the return-to-top at the end of convergence.
	FinalAfterScroll Range
	// MicroPause separates the sub-increments of one scroll step.
	MicroPause Range
	// TopMicroPause separates the sub-increments of the return-to-top scroll.
	TopMicroPause Range
	// Hesitation is the occasional mid-scroll pause.
	Hesitation Range
	// ReviewPause and ReviewReturn bracket the scroll-back-then-forward excursion.
	ReviewPause  Range
	ReviewReturn Range

	// Stagger is the per-index offset applied to initial dispatches.
	Stagger Range
	// Break is the longer pause inserted every 10-15 dispatches.
	Break Range
	// RetryCooldown precedes each retry round.
	RetryCooldown Range
}

// Default returns the production profile. The values mirror observed human
// browsing cadence; tightening them measurably raises block rates.
func Default() Profile {
	return Profile{
		BetweenListings:  Range{500 * time.Millisecond, 1500 * time.Millisecond},
		PageLoad:         Range{3 * time.Second, 6 * time.Second},
		TabSwitch:        Range{300 * time.Millisecond, 800 * time.Millisecond},
		TabOpen:          Range{2 * time.Second, 5 * time.Second},
		LazyScrollSettle: Range{1500 * time.Millisecond, 2500 * time.Millisecond},
		FinalAfterScroll: Range{2 * time.Second, 3 * time.Second},
		MicroPause:       Range{50 * time.Millisecond, 150 * time.Millisecond},
		TopMicroPause:    Range{40 * time.Millisecond, 120 * time.Millisecond},
		Hesitation:       Range{300 * time.Millisecond, 800 * time.Millisecond},
		ReviewPause:      Range{200 * time.Millisecond, 500 * time.Millisecond},
		ReviewReturn:     Range{300 * time.Millisecond, 600 * time.Millisecond},
		Stagger:          Range{500 * time.Millisecond, 1500 * time.Millisecond},
		Break:            Range{10 * time.Second, 20 * time.Second},
		RetryCooldown:    Range{8 * time.Second, 12 * time.Second},
	}
}

// Zero returns a profile with every range collapsed to zero. Tests use it
// so that nothing sleeps.
func Zero() Profile {
	return Profile{}
}

// NewRand returns a rand.Rand seeded from the clock. Each goroutine that
// samples delays should own its own instance; rand.Rand is not safe for
// concurrent use.
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
