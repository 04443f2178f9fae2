package main

import (
	"strings"
	"testing"

	"emberfall/server/internal/decay"
	"emberfall/server/internal/telemetry"
	"emberfall/server/logging"
)

func newTestRegistry(t *testing.T) *decay.Registry {
	t.Helper()
	registry := decay.NewRegistry()
	err := registry.Register("torch", []decay.Stage{
		{Duration: 5, Action: decay.ActionAdvance},
		{Duration: 10, Action: decay.ActionTransform, Result: "ember"},
	})
	if err != nil {
		t.Fatalf("register torch: %v", err)
	}
	if err := registry.Register("mote", []decay.Stage{
		{Duration: 3, Action: decay.ActionDestroy},
	}); err != nil {
		t.Fatalf("register mote: %v", err)
	}
	return registry
}

func newTestHub(t *testing.T) (*Hub, *telemetry.Counters) {
	t.Helper()
	counters := telemetry.NewCounters()
	hub := newHub(newTestRegistry(t), 1, 15, logging.NopPublisher(), counters, nil)
	return hub, counters
}

func (h *Hub) stepN(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := h.Step(); err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
	}
}

func TestHubWelcome(t *testing.T) {
	t.Parallel()

	hub, _ := newTestHub(t)
	msg := hub.Welcome("client-1")
	if msg.Ver != protocolVersion {
		t.Fatalf("ver = %d, want %d", msg.Ver, protocolVersion)
	}
	if msg.Type != "welcome" {
		t.Fatalf("type = %q", msg.Type)
	}
	if msg.ID != "client-1" {
		t.Fatalf("id = %q", msg.ID)
	}
	if msg.Tick != 0 {
		t.Fatalf("tick = %d", msg.Tick)
	}
	if len(msg.Chains) != 2 || msg.Chains[0] != "mote" || msg.Chains[1] != "torch" {
		t.Fatalf("chains = %v", msg.Chains)
	}
}

func TestHubHandleCommandAttach(t *testing.T) {
	t.Parallel()

	hub, counters := newTestHub(t)
	ack := hub.HandleCommand("client-1", clientCommand{Type: "attach", EntityID: "torch-1", Chain: "torch"})
	if ack.Type != "ack" {
		t.Fatalf("ack type = %q, error = %q", ack.Type, ack.Error)
	}
	if ack.Op != "attach" || ack.EntityID != "torch-1" {
		t.Fatalf("ack = %+v", ack)
	}
	if pop := hub.engine.Population(); pop != 1 {
		t.Fatalf("population = %d", pop)
	}
	if got := counters.Snapshot()["command.attach"]; got != 1 {
		t.Fatalf("command.attach = %d", got)
	}
}

func TestHubHandleCommandRejections(t *testing.T) {
	t.Parallel()

	hub, counters := newTestHub(t)
	cases := []struct {
		name string
		cmd  clientCommand
	}{
		{"unknown chain", clientCommand{Type: "attach", EntityID: "x", Chain: "nope"}},
		{"pause absent", clientCommand{Type: "pause", EntityID: "ghost"}},
		{"resume active", clientCommand{Type: "resume", EntityID: "ghost"}},
		{"bad verb", clientCommand{Type: "obliterate", EntityID: "x"}},
	}
	for _, tc := range cases {
		ack := hub.HandleCommand("client-1", tc.cmd)
		if ack.Type != "error" {
			t.Fatalf("%s: ack type = %q", tc.name, ack.Type)
		}
		if ack.Error == "" {
			t.Fatalf("%s: empty error", tc.name)
		}
	}
	if got := counters.Snapshot()["command.rejected"]; got != uint64(len(cases)) {
		t.Fatalf("command.rejected = %d", got)
	}
}

func TestHubHandleCommandDuplicateAttach(t *testing.T) {
	t.Parallel()

	hub, _ := newTestHub(t)
	first := hub.HandleCommand("client-1", clientCommand{Type: "attach", EntityID: "torch-1", Chain: "torch"})
	if first.Type != "ack" {
		t.Fatalf("first attach rejected: %q", first.Error)
	}
	second := hub.HandleCommand("client-1", clientCommand{Type: "attach", EntityID: "torch-1", Chain: "torch"})
	if second.Type != "error" {
		t.Fatal("expected duplicate attach to be rejected")
	}
	if !strings.Contains(second.Error, "torch-1") {
		t.Fatalf("error %q does not name the entity", second.Error)
	}
}

func TestHubStepDrivesDecay(t *testing.T) {
	t.Parallel()

	hub, counters := newTestHub(t)
	if ack := hub.HandleCommand("client-1", clientCommand{Type: "attach", EntityID: "torch-1", Chain: "torch"}); ack.Type != "ack" {
		t.Fatalf("attach rejected: %q", ack.Error)
	}

	hub.stepN(t, 5)
	snap := hub.DiagnosticsSnapshot()
	if snap.Tick != 5 {
		t.Fatalf("tick = %d", snap.Tick)
	}
	if got := counters.Snapshot()["decay.stage_advanced"]; got != 1 {
		t.Fatalf("decay.stage_advanced = %d", got)
	}

	hub.stepN(t, 10)
	if got := counters.Snapshot()["decay.transformed"]; got != 1 {
		t.Fatalf("decay.transformed = %d", got)
	}
	if pop := hub.engine.Population(); pop != 0 {
		t.Fatalf("population = %d after transform", pop)
	}
}

func TestHubStepDestroy(t *testing.T) {
	t.Parallel()

	hub, counters := newTestHub(t)
	if ack := hub.HandleCommand("client-1", clientCommand{Type: "attach", EntityID: "mote-1", Chain: "mote"}); ack.Type != "ack" {
		t.Fatalf("attach rejected: %q", ack.Error)
	}
	hub.stepN(t, 3)
	if got := counters.Snapshot()["decay.destroyed"]; got != 1 {
		t.Fatalf("decay.destroyed = %d", got)
	}
	if _, ok := hub.engine.Record("mote-1"); ok {
		t.Fatal("record survived destruction")
	}
}

func TestHubPauseFreezesCountdown(t *testing.T) {
	t.Parallel()

	hub, _ := newTestHub(t)
	if ack := hub.HandleCommand("client-1", clientCommand{Type: "attach", EntityID: "torch-1", Chain: "torch"}); ack.Type != "ack" {
		t.Fatalf("attach rejected: %q", ack.Error)
	}
	hub.stepN(t, 2)
	if ack := hub.HandleCommand("client-1", clientCommand{Type: "pause", EntityID: "torch-1"}); ack.Type != "ack" {
		t.Fatalf("pause rejected: %q", ack.Error)
	}

	hub.stepN(t, 50)
	rec, ok := hub.engine.Record("torch-1")
	if !ok {
		t.Fatal("record missing while paused")
	}
	if rec.Phase != decay.PhasePaused || rec.Remaining != 3 {
		t.Fatalf("record = %+v", rec)
	}

	if ack := hub.HandleCommand("client-1", clientCommand{Type: "resume", EntityID: "torch-1"}); ack.Type != "ack" {
		t.Fatalf("resume rejected: %q", ack.Error)
	}
	hub.stepN(t, 3)
	rec, ok = hub.engine.Record("torch-1")
	if !ok {
		t.Fatal("record missing after resume")
	}
	if rec.StageIndex != 1 {
		t.Fatalf("stage = %d, want 1", rec.StageIndex)
	}
}

func TestHubDiagnosticsSnapshot(t *testing.T) {
	t.Parallel()

	hub, _ := newTestHub(t)
	hub.HandleCommand("client-1", clientCommand{Type: "attach", EntityID: "torch-1", Chain: "torch"})
	hub.HandleCommand("client-1", clientCommand{Type: "attach", EntityID: "mote-1", Chain: "mote"})

	snap := hub.DiagnosticsSnapshot()
	if snap.Population != 2 {
		t.Fatalf("population = %d", snap.Population)
	}
	if snap.Scheduled != 2 {
		t.Fatalf("scheduled = %d", snap.Scheduled)
	}
	if snap.Subscribers != 0 {
		t.Fatalf("subscribers = %d", snap.Subscribers)
	}
	if snap.Counters["command.attach"] != 2 {
		t.Fatalf("counters = %v", snap.Counters)
	}
}

func TestEncodeEvents(t *testing.T) {
	t.Parallel()

	if got := encodeEvents(nil); got != nil {
		t.Fatalf("encodeEvents(nil) = %v", got)
	}
	events := []decay.Event{
		{Kind: decay.EventStageAdvanced, EntityID: "torch-1", Tick: 5, FromStage: 0, ToStage: 1},
		{Kind: decay.EventDecayTransformed, EntityID: "torch-1", Tick: 15, Result: "ember"},
	}
	wire := encodeEvents(events)
	if len(wire) != 2 {
		t.Fatalf("len = %d", len(wire))
	}
	if wire[0].Kind != "stage_advanced" || wire[0].ToStage != 1 || wire[0].Tick != 5 {
		t.Fatalf("wire[0] = %+v", wire[0])
	}
	if wire[1].Kind != "decay_transformed" || wire[1].Result != "ember" {
		t.Fatalf("wire[1] = %+v", wire[1])
	}
}
