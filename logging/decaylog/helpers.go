package decaylog

import (
	"context"

	"emberfall/server/logging"
)

const (
	// EventAttached is emitted when an entity starts decaying on a chain.
	EventAttached logging.EventType = "decay.attached"
	// EventDetached is emitted when a record is removed explicitly.
	EventDetached logging.EventType = "decay.detached"
	// EventStageAdvanced is emitted when an entity moves to its next stage.
	EventStageAdvanced logging.EventType = "decay.stage_advanced"
	// EventTransformed is emitted when a terminal transform stage fires.
	EventTransformed logging.EventType = "decay.transformed"
	// EventDestroyed is emitted when a terminal destroy stage fires.
	EventDestroyed logging.EventType = "decay.destroyed"
	// EventPaused is emitted when an entity's decay is paused.
	EventPaused logging.EventType = "decay.paused"
	// EventResumed is emitted when an entity's decay resumes.
	EventResumed logging.EventType = "decay.resumed"
)

// AttachedPayload captures details about an attach.
type AttachedPayload struct {
	Chain      string `json:"chain"`
	StartStage int    `json:"startStage,omitempty"`
}

// StagePayload captures a stage transition.
type StagePayload struct {
	FromStage int `json:"fromStage"`
	ToStage   int `json:"toStage"`
}

// TransformedPayload captures the replacement kind of a transform.
type TransformedPayload struct {
	Result string `json:"result"`
}

// PausedPayload captures the frozen countdown of a pause.
type PausedPayload struct {
	RemainingTicks uint64 `json:"remainingTicks"`
}

// Attached publishes a decay attach event.
func Attached(ctx context.Context, pub logging.Publisher, tick uint64, entity logging.EntityRef, payload AttachedPayload) {
	publish(ctx, pub, EventAttached, tick, entity, payload)
}

// Detached publishes a decay detach event.
func Detached(ctx context.Context, pub logging.Publisher, tick uint64, entity logging.EntityRef) {
	publish(ctx, pub, EventDetached, tick, entity, nil)
}

// StageAdvanced publishes a stage transition event.
func StageAdvanced(ctx context.Context, pub logging.Publisher, tick uint64, entity logging.EntityRef, payload StagePayload) {
	publish(ctx, pub, EventStageAdvanced, tick, entity, payload)
}

// Transformed publishes a terminal transform event.
func Transformed(ctx context.Context, pub logging.Publisher, tick uint64, entity logging.EntityRef, payload TransformedPayload) {
	publish(ctx, pub, EventTransformed, tick, entity, payload)
}

// Destroyed publishes a terminal destroy event.
func Destroyed(ctx context.Context, pub logging.Publisher, tick uint64, entity logging.EntityRef) {
	publish(ctx, pub, EventDestroyed, tick, entity, nil)
}

// Paused publishes a pause event.
func Paused(ctx context.Context, pub logging.Publisher, tick uint64, entity logging.EntityRef, payload PausedPayload) {
	publish(ctx, pub, EventPaused, tick, entity, payload)
}

// Resumed publishes a resume event.
func Resumed(ctx context.Context, pub logging.Publisher, tick uint64, entity logging.EntityRef) {
	publish(ctx, pub, EventResumed, tick, entity, nil)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, entity logging.EntityRef, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    entity,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryDecay,
		Payload:  payload,
	})
}
