package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"emberfall/server/internal/decay"
	"emberfall/server/internal/telemetry"
	"emberfall/server/logging"
	"emberfall/server/logging/decaylog"
)

const writeWait = 5 * time.Second

// Hub owns the decay engine and fans tick results out to subscribers.
// All engine access goes through the hub mutex so command handling and the
// simulation loop never interleave.
type Hub struct {
	mu          sync.Mutex
	engine      *decay.Engine
	registry    *decay.Registry
	subscribers map[string]*subscriber
	nextID      atomic.Uint64
	tickRate    int

	publisher logging.Publisher
	metrics   telemetry.Metrics
	logger    telemetry.Logger
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newHub(registry *decay.Registry, seed int64, tickRate int, publisher logging.Publisher, metrics telemetry.Metrics, logger telemetry.Logger) *Hub {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	if tickRate <= 0 {
		tickRate = defaultTickRate
	}
	return &Hub{
		engine:      decay.NewEngine(registry, seed),
		registry:    registry,
		subscribers: make(map[string]*subscriber),
		tickRate:    tickRate,
		publisher:   publisher,
		metrics:     metrics,
		logger:      logger,
	}
}

// Subscribe registers a WebSocket connection and returns its client id.
func (h *Hub) Subscribe(conn *websocket.Conn) (string, *subscriber) {
	id := fmt.Sprintf("client-%d", h.nextID.Add(1))
	sub := &subscriber{conn: conn}

	h.mu.Lock()
	h.subscribers[id] = sub
	h.mu.Unlock()

	h.metrics.Add("network.subscribed", 1)
	return id, sub
}

// Disconnect removes a subscriber and closes its connection.
func (h *Hub) Disconnect(clientID string) {
	h.mu.Lock()
	sub, ok := h.subscribers[clientID]
	if ok {
		delete(h.subscribers, clientID)
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	sub.conn.Close()
	h.metrics.Add("network.disconnected", 1)
}

// Welcome builds the handshake message for a freshly subscribed client.
func (h *Hub) Welcome(clientID string) welcomeMessage {
	h.mu.Lock()
	tick := h.engine.Now()
	h.mu.Unlock()
	return welcomeMessage{
		Ver:    protocolVersion,
		Type:   "welcome",
		ID:     clientID,
		Tick:   uint64(tick),
		Chains: h.registry.Chains(),
	}
}

// HandleCommand applies a client command to the engine and returns the ack.
func (h *Hub) HandleCommand(clientID string, cmd clientCommand) commandAck {
	h.mu.Lock()
	tick := h.engine.Now()
	var err error
	switch cmd.Type {
	case "attach":
		err = h.engine.Attach(cmd.EntityID, cmd.Chain)
	case "detach":
		h.engine.Detach(cmd.EntityID)
	case "pause":
		err = h.engine.Pause(cmd.EntityID)
	case "resume":
		err = h.engine.Resume(cmd.EntityID)
	default:
		err = fmt.Errorf("unknown command %q", cmd.Type)
	}
	var remaining decay.Tick
	if err == nil && cmd.Type == "pause" {
		if rec, ok := h.engine.Record(cmd.EntityID); ok {
			remaining = rec.Remaining
		}
	}
	h.mu.Unlock()

	ack := commandAck{Type: "ack", Op: cmd.Type, EntityID: cmd.EntityID, Tick: uint64(tick)}
	if err != nil {
		ack.Type = "error"
		ack.Error = err.Error()
		h.metrics.Add("command.rejected", 1)
		h.logger.Printf("client %s: %s %s rejected: %v", clientID, cmd.Type, cmd.EntityID, err)
		return ack
	}

	ctx := context.Background()
	entity := logging.EntityRef{ID: cmd.EntityID, Kind: logging.EntityKindItem}
	switch cmd.Type {
	case "attach":
		decaylog.Attached(ctx, h.publisher, uint64(tick), entity, decaylog.AttachedPayload{Chain: cmd.Chain})
	case "detach":
		decaylog.Detached(ctx, h.publisher, uint64(tick), entity)
	case "pause":
		decaylog.Paused(ctx, h.publisher, uint64(tick), entity, decaylog.PausedPayload{RemainingTicks: uint64(remaining)})
	case "resume":
		decaylog.Resumed(ctx, h.publisher, uint64(tick), entity)
	}
	h.metrics.Add("command."+cmd.Type, 1)
	return ack
}

// Step advances the engine by one tick and broadcasts the resulting events.
func (h *Hub) Step() error {
	h.mu.Lock()
	tick := h.engine.Now() + 1
	events, err := h.engine.Advance(tick)
	h.mu.Unlock()
	if err != nil {
		return err
	}

	h.logExpiries(events)
	h.broadcast(tickMessage{Type: "tick", Tick: uint64(tick), Events: encodeEvents(events)})
	return nil
}

func (h *Hub) logExpiries(events []decay.Event) {
	ctx := context.Background()
	for _, ev := range events {
		entity := logging.EntityRef{ID: ev.EntityID, Kind: logging.EntityKindItem}
		switch ev.Kind {
		case decay.EventStageAdvanced:
			decaylog.StageAdvanced(ctx, h.publisher, uint64(ev.Tick), entity, decaylog.StagePayload{
				FromStage: ev.FromStage,
				ToStage:   ev.ToStage,
			})
			h.metrics.Add("decay.stage_advanced", 1)
		case decay.EventDecayTransformed:
			decaylog.Transformed(ctx, h.publisher, uint64(ev.Tick), entity, decaylog.TransformedPayload{Result: ev.Result})
			h.metrics.Add("decay.transformed", 1)
		case decay.EventDecayDestroyed:
			decaylog.Destroyed(ctx, h.publisher, uint64(ev.Tick), entity)
			h.metrics.Add("decay.destroyed", 1)
		}
	}
}

func (h *Hub) broadcast(msg tickMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("marshal tick %d: %v", msg.Tick, err)
		return
	}

	h.mu.Lock()
	targets := make(map[string]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		targets[id] = sub
	}
	h.mu.Unlock()

	for id, sub := range targets {
		sub.mu.Lock()
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := sub.conn.WriteMessage(websocket.TextMessage, payload)
		sub.mu.Unlock()
		if err != nil {
			h.logger.Printf("dropping subscriber %s: %v", id, err)
			h.Disconnect(id)
		}
	}
}

// RunSimulation drives the engine at the configured tick rate until the
// context is cancelled.
func (h *Hub) RunSimulation(ctx context.Context) {
	interval := time.Second / time.Duration(h.tickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.Step(); err != nil {
				if errors.Is(err, decay.ErrClockRegression) {
					h.logger.Printf("simulation halted: %v", err)
					return
				}
				h.logger.Printf("advance failed: %v", err)
			}
		}
	}
}

type diagnostics struct {
	Tick        uint64            `json:"tick"`
	Population  int               `json:"population"`
	Scheduled   int               `json:"scheduled"`
	Subscribers int               `json:"subscribers"`
	Chains      []string          `json:"chains"`
	Counters    map[string]uint64 `json:"counters,omitempty"`
}

// DiagnosticsSnapshot reports engine and connection state for /diagnostics.
func (h *Hub) DiagnosticsSnapshot() diagnostics {
	h.mu.Lock()
	snap := diagnostics{
		Tick:        uint64(h.engine.Now()),
		Population:  h.engine.Population(),
		Scheduled:   h.engine.ScheduledEntries(),
		Subscribers: len(h.subscribers),
		Chains:      h.registry.Chains(),
	}
	h.mu.Unlock()

	if counters, ok := h.metrics.(*telemetry.Counters); ok {
		snap.Counters = counters.Snapshot()
	}
	return snap
}
