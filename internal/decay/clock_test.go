package decay

import (
	"errors"
	"testing"
)

func TestClockAdvance(t *testing.T) {
	t.Parallel()

	var clock Clock
	if got := clock.Now(); got != 0 {
		t.Fatalf("fresh clock at tick %d", got)
	}

	if err := clock.Advance(5); err != nil {
		t.Fatalf("advance to 5: %v", err)
	}
	if got := clock.Now(); got != 5 {
		t.Fatalf("expected tick 5, got %d", got)
	}

	// Re-driving the same tick is allowed.
	if err := clock.Advance(5); err != nil {
		t.Fatalf("re-advance to 5: %v", err)
	}

	err := clock.Advance(4)
	if !errors.Is(err, ErrClockRegression) {
		t.Fatalf("expected clock regression, got %v", err)
	}
	if got := clock.Now(); got != 5 {
		t.Fatalf("failed advance moved the clock to %d", got)
	}
}
