package decay

import (
	"fmt"
	"sort"
)

// Action is what happens when a stage's duration elapses.
type Action int

const (
	// ActionAdvance moves the record to the next stage of its chain.
	ActionAdvance Action = iota
	// ActionTransform removes the record and reports the entity kind the host
	// should replace the entity with.
	ActionTransform
	// ActionDestroy removes the record and reports that the entity is gone.
	ActionDestroy
)

func (a Action) String() string {
	switch a {
	case ActionAdvance:
		return "advance"
	case ActionTransform:
		return "transform"
	case ActionDestroy:
		return "destroy"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Stage is one step of a decay chain. Duration is the baseline stage length
// in ticks; Jitter, when non-zero, widens it to a uniformly random length in
// [Duration, Duration+Jitter] resolved each time the stage is scheduled.
// Result names the replacement entity kind and is only meaningful for
// ActionTransform.
type Stage struct {
	Duration Tick
	Jitter   Tick
	Action   Action
	Result   string
}

// Registry is the immutable-after-load catalog of decay chains. The host
// populates it once at startup; the engine only reads it.
type Registry struct {
	chains map[string][]Stage
}

// NewRegistry returns an empty chain registry.
func NewRegistry() *Registry {
	return &Registry{chains: make(map[string][]Stage)}
}

// Register validates and stores a chain. Re-registering an identical
// definition is a no-op; a conflicting redefinition is an error.
func (r *Registry) Register(chainID string, stages []Stage) error {
	if r == nil {
		return fmt.Errorf("%w: nil registry", ErrConfiguration)
	}
	if chainID == "" {
		return fmt.Errorf("%w: empty chain id", ErrConfiguration)
	}
	if err := validateStages(chainID, stages); err != nil {
		return err
	}
	if existing, ok := r.chains[chainID]; ok {
		if stagesEqual(existing, stages) {
			return nil
		}
		return fmt.Errorf("%w: chain %q already registered with a different definition", ErrConfiguration, chainID)
	}
	stored := make([]Stage, len(stages))
	copy(stored, stages)
	r.chains[chainID] = stored
	return nil
}

// Lookup returns the stage sequence for chainID. Callers must not mutate the
// returned slice.
func (r *Registry) Lookup(chainID string) ([]Stage, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChain, chainID)
	}
	stages, ok := r.chains[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChain, chainID)
	}
	return stages, nil
}

// Chains returns the registered chain identifiers in sorted order.
func (r *Registry) Chains() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func validateStages(chainID string, stages []Stage) error {
	if len(stages) == 0 {
		return fmt.Errorf("%w: chain %q has no stages", ErrConfiguration, chainID)
	}
	for i, stage := range stages {
		last := i == len(stages)-1
		switch stage.Action {
		case ActionAdvance:
			if last {
				return fmt.Errorf("%w: chain %q ends with an advance stage", ErrConfiguration, chainID)
			}
		case ActionTransform:
			if !last {
				return fmt.Errorf("%w: chain %q has a transform stage before the end", ErrConfiguration, chainID)
			}
			if stage.Result == "" {
				return fmt.Errorf("%w: chain %q transform stage has no result kind", ErrConfiguration, chainID)
			}
		case ActionDestroy:
			if !last {
				return fmt.Errorf("%w: chain %q has a destroy stage before the end", ErrConfiguration, chainID)
			}
		default:
			return fmt.Errorf("%w: chain %q stage %d has unknown action %d", ErrConfiguration, chainID, i, int(stage.Action))
		}
	}
	return nil
}

func stagesEqual(a, b []Stage) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
