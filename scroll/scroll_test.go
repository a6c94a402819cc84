package scroll

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/hexelier/immoharvest/timing"
)

// fakeProber replays a fixed sequence of card counts, one per Count call.
// Once the sequence is exhausted the last value repeats.
type fakeProber struct {
	counts     []int
	countCalls int
	countErrs  map[int]error // call index (1-based) -> error
	scrollErr  error
	offsets    []float64
}

func (f *fakeProber) ScrollHeight() (float64, error) { return 5000, nil }

func (f *fakeProber) Offset() (float64, error) {
	if len(f.offsets) == 0 {
		return 0, nil
	}
	return f.offsets[0], nil
}

func (f *fakeProber) ScrollTo(y float64) error { return f.scrollErr }

func (f *fakeProber) Count() (int, error) {
	f.countCalls++
	if err, ok := f.countErrs[f.countCalls]; ok {
		return 0, err
	}
	idx := f.countCalls - 1
	if idx >= len(f.counts) {
		idx = len(f.counts) - 1
	}
	return f.counts[idx], nil
}

func newTestEngine() *Engine {
	return New(5, timing.Zero(), rand.New(rand.NewSource(42)))
}

func TestConvergeStopsOnStableCount(t *testing.T) {
	p := &fakeProber{counts: []int{10, 22, 22, 22, 22}}
	e := newTestEngine()

	got, err := e.Converge(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 22 {
		t.Errorf("Converge = %d, want 22", got)
	}
	// Three in-step measurements (10, 22, 22) plus the final post-scroll
	// count. A fourth in-step reading would mean the early stop failed.
	if p.countCalls != 4 {
		t.Errorf("Count called %d times, want 4 (early stop after step 3)", p.countCalls)
	}
}

func TestConvergeRunsAllStepsWhenGrowing(t *testing.T) {
	p := &fakeProber{counts: []int{5, 10, 15, 20, 25, 25}}
	e := newTestEngine()

	got, err := e.Converge(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 25 {
		t.Errorf("Converge = %d, want 25", got)
	}
	// Five in-step measurements plus the final one.
	if p.countCalls != 6 {
		t.Errorf("Count called %d times, want 6", p.countCalls)
	}
}

func TestConvergeZeroCardsIsNotAnError(t *testing.T) {
	p := &fakeProber{counts: []int{0, 0}}
	e := newTestEngine()

	got, err := e.Converge(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("Converge = %d, want 0", got)
	}
}

func TestConvergeMeasurementErrorDoesNotStopEarly(t *testing.T) {
	// Steps 2 and 3 fail to measure; the engine must keep scrolling and
	// not treat the failures as stability.
	p := &fakeProber{
		counts:    []int{10, 0, 0, 30, 40, 40},
		countErrs: map[int]error{2: errors.New("stale"), 3: errors.New("stale")},
	}
	e := newTestEngine()

	got, err := e.Converge(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// All 5 steps measured (two failed), then the final count.
	if p.countCalls != 6 {
		t.Errorf("Count called %d times, want 6", p.countCalls)
	}
	if got != 40 {
		t.Errorf("Converge = %d, want 40", got)
	}
}

func TestConvergeFinalCountErrorYieldsZero(t *testing.T) {
	p := &fakeProber{
		counts:    []int{22, 22},
		countErrs: map[int]error{3: errors.New("gone")},
	}
	e := newTestEngine()

	got, err := e.Converge(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("Converge = %d, want 0 when the final probe fails", got)
	}
}

func TestConvergeHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &fakeProber{counts: []int{10, 20, 30}}
	e := newTestEngine()

	if _, err := e.Converge(ctx, p); err == nil {
		t.Fatal("expected context error")
	}
}
