package decay

import (
	"fmt"
	"math/rand"
	"sync"
)

// Phase is the lifecycle state of a decay record.
type Phase int

const (
	// PhaseActive means the record has a live scheduler entry and counts down.
	PhaseActive Phase = iota
	// PhasePaused means the countdown is frozen; no scheduler entry exists.
	PhasePaused
)

// Record is the per-entity decay state. It is plain data: only the engine
// mutates it, driven by scheduler output or explicit calls.
type Record struct {
	EntityID   string
	ChainID    string
	StageIndex int
	Phase      Phase
	// ExpireAt is the absolute expiry tick while active.
	ExpireAt Tick
	// Remaining is the frozen countdown while paused.
	Remaining Tick
}

// Engine owns the clock, the chain registry, the scheduler, and every decay
// record. All entry points serialize behind one mutex: within a tick,
// scheduler and record mutations form a single atomic phase, and hosts that
// call attach/detach from other goroutines get the same guarantee.
// Independent engines share nothing.
type Engine struct {
	mu       sync.Mutex
	clock    Clock
	registry *Registry
	wheel    *timingWheel
	records  map[string]*Record
	rng      *rand.Rand
	pending  []Event
}

// NewEngine builds an engine over a populated registry. The seed drives
// stage jitter; identical seeds and call sequences replay identically.
func NewEngine(registry *Registry, seed int64) *Engine {
	return &Engine{
		registry: registry,
		wheel:    newTimingWheel(),
		records:  make(map[string]*Record),
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Now returns the engine's current tick.
func (e *Engine) Now() Tick {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Now()
}

// Population reports the number of decay records.
func (e *Engine) Population() int {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.records)
}

// ScheduledEntries reports the number of live scheduler entries.
func (e *Engine) ScheduledEntries() int {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wheel.Len()
}

// Record returns a copy of the decay record for entityID.
func (e *Engine) Record(entityID string) (Record, bool) {
	if e == nil {
		return Record{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.records[entityID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Attach starts entityID decaying on the named chain from its first stage.
func (e *Engine) Attach(entityID, chainID string) error {
	return e.AttachAt(entityID, chainID, 0)
}

// AttachAt starts entityID on chainID at startStage. Hosts restoring
// persisted state use it to rebuild records mid-chain.
func (e *Engine) AttachAt(entityID, chainID string, startStage int) error {
	if e == nil {
		return fmt.Errorf("%w: nil engine", ErrConfiguration)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	stages, err := e.registry.Lookup(chainID)
	if err != nil {
		return err
	}
	if startStage < 0 || startStage >= len(stages) {
		return fmt.Errorf("%w: chain %q has no stage %d", ErrConfiguration, chainID, startStage)
	}
	if _, exists := e.records[entityID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateAttach, entityID)
	}

	now := e.clock.Now()
	expireAt := now + e.resolveDuration(stages[startStage])
	rec := &Record{
		EntityID:   entityID,
		ChainID:    chainID,
		StageIndex: startStage,
		Phase:      PhaseActive,
		ExpireAt:   expireAt,
	}
	e.records[entityID] = rec
	e.wheel.Schedule(entityID, expireAt)
	e.pending = append(e.pending, Event{
		Kind:     EventDecayStarted,
		EntityID: entityID,
		Tick:     now,
		ToStage:  startStage,
	})
	return nil
}

// Detach removes the decay record for entityID along with any pending
// scheduler entry. Detaching an absent entity is a no-op.
func (e *Engine) Detach(entityID string) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.records[entityID]; !ok {
		return
	}
	delete(e.records, entityID)
	e.wheel.Cancel(entityID)
}

// Pause freezes entityID's countdown. The remaining ticks are clamped at
// zero so a record past due pauses cleanly instead of underflowing.
func (e *Engine) Pause(entityID string) error {
	if e == nil {
		return ErrNotActive
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.records[entityID]
	if !ok || rec.Phase != PhaseActive {
		return fmt.Errorf("%w: %q", ErrNotActive, entityID)
	}
	now := e.clock.Now()
	remaining := Tick(0)
	if rec.ExpireAt > now {
		remaining = rec.ExpireAt - now
	}
	e.wheel.Cancel(entityID)
	rec.Phase = PhasePaused
	rec.Remaining = remaining
	rec.ExpireAt = 0
	e.pending = append(e.pending, Event{
		Kind:      EventDecayPaused,
		EntityID:  entityID,
		Tick:      now,
		Remaining: remaining,
	})
	return nil
}

// Resume restarts a paused countdown from its frozen remainder. Pausing and
// resuming within the same tick leaves the expiry tick unchanged.
func (e *Engine) Resume(entityID string) error {
	if e == nil {
		return ErrNotPaused
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.records[entityID]
	if !ok || rec.Phase != PhasePaused {
		return fmt.Errorf("%w: %q", ErrNotPaused, entityID)
	}
	now := e.clock.Now()
	expireAt := now + rec.Remaining
	rec.Phase = PhaseActive
	rec.ExpireAt = expireAt
	rec.Remaining = 0
	e.wheel.Schedule(entityID, expireAt)
	e.pending = append(e.pending, Event{
		Kind:     EventDecayResumed,
		EntityID: entityID,
		Tick:     now,
	})
	return nil
}

// Advance drives one simulation step. It moves the clock to tick, drains
// every due scheduler entry, applies stage actions, and returns the tick's
// events in order: lifecycle events buffered since the last step first, then
// expiry events in (expireAt, sequence) order.
//
// Zero-duration stages fire within the same call: the drain loop repeats
// until nothing further is due at tick, so a chain ending in a zero-length
// terminal stage completes in the step that reached it.
func (e *Engine) Advance(tick Tick) ([]Event, error) {
	if e == nil {
		return nil, ErrClockRegression
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.clock.Advance(tick); err != nil {
		return nil, err
	}

	events := e.pending
	e.pending = nil

	for {
		due := e.wheel.PopDue(tick)
		if len(due) == 0 {
			break
		}
		for _, entityID := range due {
			events = e.fire(entityID, tick, events)
		}
	}
	return events, nil
}

// fire applies the current stage action for one expired entity.
func (e *Engine) fire(entityID string, now Tick, events []Event) []Event {
	rec, ok := e.records[entityID]
	if !ok {
		// The entity was detached or destroyed after its entry was consumed
		// from the wheel. Normal path, not an error.
		return events
	}
	stages, err := e.registry.Lookup(rec.ChainID)
	if err != nil || rec.StageIndex >= len(stages) {
		// The registry is immutable after load, so a record pointing at a
		// missing chain or stage is unreachable through the public API.
		panic(fmt.Sprintf("decay: record %q references chain %q stage %d", entityID, rec.ChainID, rec.StageIndex))
	}

	stage := stages[rec.StageIndex]
	switch stage.Action {
	case ActionAdvance:
		from := rec.StageIndex
		rec.StageIndex++
		rec.ExpireAt = now + e.resolveDuration(stages[rec.StageIndex])
		e.wheel.Schedule(entityID, rec.ExpireAt)
		events = append(events, Event{
			Kind:      EventStageAdvanced,
			EntityID:  entityID,
			Tick:      now,
			FromStage: from,
			ToStage:   rec.StageIndex,
		})
	case ActionTransform:
		delete(e.records, entityID)
		events = append(events, Event{
			Kind:     EventDecayTransformed,
			EntityID: entityID,
			Tick:     now,
			Result:   stage.Result,
		})
	case ActionDestroy:
		delete(e.records, entityID)
		events = append(events, Event{
			Kind:     EventDecayDestroyed,
			EntityID: entityID,
			Tick:     now,
		})
	}
	return events
}

// resolveDuration applies stage jitter. The engine RNG is seeded, so runs
// with the same seed and call sequence produce the same durations.
func (e *Engine) resolveDuration(stage Stage) Tick {
	if stage.Jitter == 0 {
		return stage.Duration
	}
	return stage.Duration + Tick(e.rng.Int63n(int64(stage.Jitter)+1))
}
