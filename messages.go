package main

import "emberfall/server/internal/decay"

type welcomeMessage struct {
	Ver    int      `json:"ver"`
	Type   string   `json:"type"`
	ID     string   `json:"id"`
	Tick   uint64   `json:"tick"`
	Chains []string `json:"chains"`
}

type clientCommand struct {
	Type     string `json:"type"`
	EntityID string `json:"entityId"`
	Chain    string `json:"chain,omitempty"`
}

type commandAck struct {
	Type     string `json:"type"`
	Op       string `json:"op"`
	EntityID string `json:"entityId"`
	Tick     uint64 `json:"tick"`
	Error    string `json:"error,omitempty"`
}

type wireEvent struct {
	Kind      string `json:"kind"`
	EntityID  string `json:"entityId"`
	Tick      uint64 `json:"tick"`
	FromStage int    `json:"fromStage"`
	ToStage   int    `json:"toStage"`
	Result    string `json:"result,omitempty"`
	Remaining uint64 `json:"remaining,omitempty"`
}

type tickMessage struct {
	Type   string      `json:"type"`
	Tick   uint64      `json:"tick"`
	Events []wireEvent `json:"events,omitempty"`
}

func encodeEvents(events []decay.Event) []wireEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]wireEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, wireEvent{
			Kind:      string(ev.Kind),
			EntityID:  ev.EntityID,
			Tick:      uint64(ev.Tick),
			FromStage: ev.FromStage,
			ToStage:   ev.ToStage,
			Result:    ev.Result,
			Remaining: uint64(ev.Remaining),
		})
	}
	return out
}
