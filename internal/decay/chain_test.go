package decay

import (
	"errors"
	"testing"
)

func TestRegistryRegisterValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		stages []Stage
	}{
		{name: "empty chain", stages: nil},
		{name: "advance at end", stages: []Stage{
			{Duration: 5, Action: ActionAdvance},
		}},
		{name: "transform before end", stages: []Stage{
			{Duration: 5, Action: ActionTransform, Result: "ash"},
			{Duration: 5, Action: ActionDestroy},
		}},
		{name: "destroy before end", stages: []Stage{
			{Duration: 5, Action: ActionDestroy},
			{Duration: 5, Action: ActionDestroy},
		}},
		{name: "transform without result", stages: []Stage{
			{Duration: 5, Action: ActionTransform},
		}},
		{name: "unknown action", stages: []Stage{
			{Duration: 5, Action: Action(42)},
		}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			registry := NewRegistry()
			err := registry.Register("broken", tc.stages)
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestRegistryReRegistration(t *testing.T) {
	t.Parallel()

	stages := []Stage{
		{Duration: 5, Action: ActionAdvance},
		{Duration: 10, Action: ActionDestroy},
	}

	registry := NewRegistry()
	if err := registry.Register("torch", stages); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("torch", stages); err != nil {
		t.Fatalf("identical re-registration should be a no-op: %v", err)
	}

	conflicting := []Stage{
		{Duration: 99, Action: ActionAdvance},
		{Duration: 10, Action: ActionDestroy},
	}
	err := registry.Register("torch", conflicting)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error for conflicting redefinition, got %v", err)
	}

	got, err := registry.Lookup("torch")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !stagesEqual(got, stages) {
		t.Fatalf("conflicting registration mutated the stored chain: %#v", got)
	}
}

func TestRegistryLookupUnknown(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if _, err := registry.Lookup("ghost"); !errors.Is(err, ErrUnknownChain) {
		t.Fatalf("expected unknown chain error, got %v", err)
	}
}

func TestRegistryLookupIsolation(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	stages := []Stage{{Duration: 3, Action: ActionDestroy}}
	if err := registry.Register("ember", stages); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Mutating the caller's slice must not reach the registry.
	stages[0].Duration = 777
	got, err := registry.Lookup("ember")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got[0].Duration != 3 {
		t.Fatalf("registry shares storage with caller slice: %#v", got)
	}
}
