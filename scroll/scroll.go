// Package scroll forces a lazily-rendered results page to materialize its
// full card set. The motion it produces is the point: eased, jittered
// sub-increments with hesitations and occasional review excursions read as a
// human working down the page, where a single scrollTo(bottom) reads as a bot.
package scroll

import (
	"context"
	"log/slog"
	"math"
	"math/rand"

	"github.com/hexelier/immoharvest/timing"
)

// Prober is the minimal measurement surface the engine needs from a tab.
// The production implementation drives a rod page; tests use a fake.
type Prober interface {
	// ScrollHeight returns the current total scrollable height in pixels.
	ScrollHeight() (float64, error)

	// Offset returns the current vertical scroll offset in pixels.
	Offset() (float64, error)

	// ScrollTo smooth-scrolls the viewport to the given offset.
	ScrollTo(y float64) error

	// Count returns the number of rendered listing cards.
	Count() (int, error)
}

// Engine drives incremental scrolling until the card count converges.
type Engine struct {
	// Steps divides the page height into equal target fractions.
	Steps int

	// MinIncrements/MaxIncrements bound the randomized number of
	// sub-increments traversing one step's delta.
	MinIncrements int
	MaxIncrements int

	// TopMinIncrements/TopMaxIncrements bound the return-to-top motion.
	TopMinIncrements int
	TopMaxIncrements int

	// HesitationChance is the per-step probability of an extra pause.
	HesitationChance float64

	// ReviewChance is the per-step probability of a short
	// scroll-back-then-forward excursion.
	ReviewChance float64

	// JitterPx is the max absolute random perturbation per sub-increment.
	JitterPx float64

	Profile timing.Profile
	Rand    *rand.Rand
}

// New returns an engine with the motion parameters tuned against the live
// site. steps is usually taken from config.
func New(steps int, profile timing.Profile, rng *rand.Rand) *Engine {
	return &Engine{
		Steps:            steps,
		MinIncrements:    8,
		MaxIncrements:    15,
		TopMinIncrements: 10,
		TopMaxIncrements: 18,
		HesitationChance: 0.3,
		ReviewChance:     0.25,
		JitterPx:         10,
		Profile:          profile,
		Rand:             rng,
	}
}

// Converge scrolls the page step by step until the card count holds steady
// across two consecutive steps or the step budget runs out, then eases back
// to the top and returns the settled card count. Measurement errors are
// swallowed: a failed reading contributes nothing to the convergence check
// and never aborts the pass. A zero result is legitimate (page rendered no
// cards); the only returned error is context cancellation.
func (e *Engine) Converge(ctx context.Context, p Prober) (int, error) {
	prev := -1
	for step := 0; step < e.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		e.scrollOneStep(ctx, p, step)

		if e.chance(e.HesitationChance) {
			if err := e.Profile.Hesitation.Sleep(ctx, e.Rand); err != nil {
				return 0, err
			}
		}

		// Let async content mount before measuring.
		if err := e.Profile.LazyScrollSettle.Sleep(ctx, e.Rand); err != nil {
			return 0, err
		}

		if e.chance(e.ReviewChance) {
			if err := e.reviewExcursion(ctx, p); err != nil {
				return 0, err
			}
		}

		count, err := p.Count()
		if err != nil {
			slog.Debug("card count probe failed mid-scroll", "step", step+1, "error", err)
			continue
		}
		slog.Debug("scroll step measured", "step", step+1, "cards", count)

		if count == prev {
			slog.Debug("card count stable, stopping early", "cards", count, "step", step+1)
			break
		}
		prev = count
	}

	if err := e.returnToTop(ctx, p); err != nil {
		return 0, err
	}
	if err := e.Profile.FinalAfterScroll.Sleep(ctx, e.Rand); err != nil {
		return 0, err
	}

	final, err := p.Count()
	if err != nil {
		slog.Debug("final card count probe failed", "error", err)
		return 0, nil
	}
	return final, nil
}

// scrollOneStep traverses the delta to the step's target offset in eased,
// jittered sub-increments. Probe failures leave the step as a no-op.
func (e *Engine) scrollOneStep(ctx context.Context, p Prober, step int) {
	height, err := p.ScrollHeight()
	if err != nil {
		slog.Debug("scroll height probe failed", "step", step+1, "error", err)
		return
	}
	current, err := p.Offset()
	if err != nil {
		slog.Debug("scroll offset probe failed", "step", step+1, "error", err)
		return
	}

	target := height * float64(step+1) / float64(e.Steps)
	delta := target - current

	increments := e.intBetween(e.MinIncrements, e.MaxIncrements)
	for i := 0; i < increments; i++ {
		progress := float64(i+1) / float64(increments)
		eased := 1 - math.Pow(1-progress, 3) // ease-out cubic: decelerate into the target
		next := current + delta*eased + e.jitter()

		if err := p.ScrollTo(next); err != nil {
			slog.Debug("scroll increment failed", "step", step+1, "error", err)
			return
		}
		if err := e.Profile.MicroPause.Sleep(ctx, e.Rand); err != nil {
			return
		}
	}
}

// reviewExcursion scrolls back a short distance and forward again, the way
// a reader double-checks something they just passed.
func (e *Engine) reviewExcursion(ctx context.Context, p Prober) error {
	current, err := p.Offset()
	if err != nil {
		return nil
	}
	back := float64(e.intBetween(50, 150))
	if err := p.ScrollTo(current - back); err != nil {
		return nil
	}
	if err := e.Profile.ReviewPause.Sleep(ctx, e.Rand); err != nil {
		return err
	}
	if err := p.ScrollTo(current); err != nil {
		return nil
	}
	return e.Profile.ReviewReturn.Sleep(ctx, e.Rand)
}

// returnToTop restores a natural reading position with a gentler easing
// curve than the downward motion.
func (e *Engine) returnToTop(ctx context.Context, p Prober) error {
	current, err := p.Offset()
	if err != nil {
		current = 0
	}

	increments := e.intBetween(e.TopMinIncrements, e.TopMaxIncrements)
	for i := 0; i < increments; i++ {
		progress := float64(i+1) / float64(increments)
		eased := 1 - math.Pow(1-progress, 2) // ease-out quadratic
		next := current * (1 - eased)

		if err := p.ScrollTo(next); err != nil {
			break
		}
		if err := e.Profile.TopMicroPause.Sleep(ctx, e.Rand); err != nil {
			return err
		}
	}
	_ = p.ScrollTo(0)
	return ctx.Err()
}

func (e *Engine) chance(prob float64) bool {
	return e.Rand.Float64() < prob
}

func (e *Engine) jitter() float64 {
	return (e.Rand.Float64()*2 - 1) * e.JitterPx
}

// intBetween returns a random int in [min, max].
func (e *Engine) intBetween(min, max int) int {
	if max <= min {
		return min
	}
	return min + e.Rand.Intn(max-min+1)
}
