package decay

import (
	"fmt"
	"strings"
	"testing"
)

func TestWheelPopDueOrdering(t *testing.T) {
	t.Parallel()

	w := newTimingWheel()
	w.Schedule("late", 20)
	w.Schedule("early", 5)
	w.Schedule("tied-a", 10)
	w.Schedule("tied-b", 10)

	got := w.PopDue(20)
	want := []string{"early", "tied-a", "tied-b", "late"}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected %q, got %v", i, want[i], got)
		}
	}
	if w.Len() != 0 {
		t.Fatalf("wheel retained %d live entries after drain", w.Len())
	}
}

func TestWheelInclusiveBoundary(t *testing.T) {
	t.Parallel()

	w := newTimingWheel()
	if got := w.PopDue(7); got != nil {
		t.Fatalf("empty wheel popped %v", got)
	}

	// Scheduling at the current tick is due on the very next pop at that tick.
	w.Schedule("now", 7)
	got := w.PopDue(7)
	if len(got) != 1 || got[0] != "now" {
		t.Fatalf("expected [now], got %v", got)
	}
}

func TestWheelPastDue(t *testing.T) {
	t.Parallel()

	w := newTimingWheel()
	if got := w.PopDue(100); got != nil {
		t.Fatalf("empty wheel popped %v", got)
	}

	// Scheduling in the past is accepted and immediately due.
	w.Schedule("stale", 40)
	got := w.PopDue(100)
	if len(got) != 1 || got[0] != "stale" {
		t.Fatalf("expected [stale], got %v", got)
	}
}

func TestWheelCancel(t *testing.T) {
	t.Parallel()

	w := newTimingWheel()
	w.Schedule("a", 10)
	w.Schedule("b", 10)
	w.Cancel("a")
	w.Cancel("a") // idempotent
	w.Cancel("never-scheduled")

	got := w.PopDue(10)
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("expected [b], got %v", got)
	}
}

func TestWheelLastWriteWins(t *testing.T) {
	t.Parallel()

	w := newTimingWheel()
	w.Schedule("a", 10)
	w.Schedule("a", 30)
	if w.Len() != 1 {
		t.Fatalf("expected one live entry, got %d", w.Len())
	}

	if got := w.PopDue(10); got != nil {
		t.Fatalf("superseded entry still fired: %v", got)
	}
	got := w.PopDue(30)
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected [a] at tick 30, got %v", got)
	}
}

func TestWheelNoDoubleDelivery(t *testing.T) {
	t.Parallel()

	w := newTimingWheel()
	seen := make(map[string]int)
	for i := 0; i < 500; i++ {
		w.Schedule(fmt.Sprintf("e%d", i), Tick(1+i%97))
	}
	for tick := Tick(1); tick <= 200; tick++ {
		for _, id := range w.PopDue(tick) {
			seen[id]++
		}
	}
	if len(seen) != 500 {
		t.Fatalf("expected 500 distinct deliveries, got %d", len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("entry %q delivered %d times", id, count)
		}
	}
}

func TestWheelCascadeAcrossLevels(t *testing.T) {
	t.Parallel()

	w := newTimingWheel()
	cases := []struct {
		id       string
		expireAt Tick
	}{
		{"level0", 63},
		{"level1-edge", 64},
		{"level1", 1000},
		{"level2-edge", 4096},
		{"level2", 250_000},
		{"level3-edge", 262_144},
		{"level3", 9_000_000},
	}
	for _, tc := range cases {
		w.Schedule(tc.id, tc.expireAt)
	}

	for _, tc := range cases {
		if tc.expireAt > 1 {
			if got := w.PopDue(tc.expireAt - 1); got != nil {
				t.Fatalf("%s fired early at tick %d: %v", tc.id, tc.expireAt-1, got)
			}
		}
		got := w.PopDue(tc.expireAt)
		if len(got) != 1 || got[0] != tc.id {
			t.Fatalf("at tick %d expected [%s], got %v", tc.expireAt, tc.id, got)
		}
	}
}

func TestWheelOverflowHorizon(t *testing.T) {
	t.Parallel()

	const far = wheelHorizon + 5

	w := newTimingWheel()
	w.Schedule("far", far)
	if len(w.overflow) != 1 {
		t.Fatalf("expected entry beyond the horizon in overflow, got %d", len(w.overflow))
	}

	if got := w.PopDue(far - 1); got != nil {
		t.Fatalf("overflow entry fired early: %v", got)
	}
	got := w.PopDue(far)
	if len(got) != 1 || got[0] != "far" {
		t.Fatalf("expected [far], got %v", got)
	}
}

func TestWheelIdleJump(t *testing.T) {
	t.Parallel()

	w := newTimingWheel()
	// No live entries: a huge advance moves the cursor without slot work.
	if got := w.PopDue(1 << 40); got != nil {
		t.Fatalf("idle wheel popped %v", got)
	}
	w.Schedule("after-jump", 1<<40+3)
	got := w.PopDue(1<<40 + 3)
	if len(got) != 1 || got[0] != "after-jump" {
		t.Fatalf("expected [after-jump], got %v", got)
	}
}

func TestWheelDuplicateEntryPanics(t *testing.T) {
	t.Parallel()

	w := newTimingWheel()
	// Corrupt the wheel the way only a scheduler bug could: two non-dead
	// entries for one entity, only one owned by the live index.
	first := &entry{id: "dup", expireAt: 1, seq: 1}
	second := &entry{id: "dup", expireAt: 1, seq: 2}
	w.live["dup"] = first
	w.ready = append(w.ready, first, second)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on duplicate live entry")
		}
		msg, ok := r.(string)
		if !ok || !strings.Contains(msg, "duplicate scheduler entry") {
			t.Fatalf("unexpected panic payload: %v", r)
		}
	}()
	w.PopDue(1)
}
