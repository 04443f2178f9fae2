package decay

// EventKind identifies a decay lifecycle notification.
type EventKind string

const (
	// EventDecayStarted is emitted when a record is attached and begins its
	// first stage.
	EventDecayStarted EventKind = "decay_started"
	// EventStageAdvanced is emitted when a non-terminal stage expires and the
	// record moves to the next stage.
	EventStageAdvanced EventKind = "stage_advanced"
	// EventDecayTransformed is emitted when a terminal transform stage fires.
	// The record is removed; creating the resulting entity is host business.
	EventDecayTransformed EventKind = "decay_transformed"
	// EventDecayDestroyed is emitted when a terminal destroy stage fires.
	EventDecayDestroyed EventKind = "decay_destroyed"
	// EventDecayPaused is emitted when an active record is paused.
	EventDecayPaused EventKind = "decay_paused"
	// EventDecayResumed is emitted when a paused record re-enters decay.
	EventDecayResumed EventKind = "decay_resumed"
)

// Event is a plain-data notification produced by the engine. Fields beyond
// Kind, EntityID, and Tick are populated per kind: FromStage/ToStage for
// stage advances, Result for transforms, Remaining for pauses.
type Event struct {
	Kind      EventKind
	EntityID  string
	Tick      Tick
	FromStage int
	ToStage   int
	Result    string
	Remaining Tick
}
