package decay

import "errors"

var (
	// ErrClockRegression reports an Advance call with a tick lower than the
	// current one. Simulation time never moves backward.
	ErrClockRegression = errors.New("decay: clock regression")

	// ErrConfiguration reports an invalid chain definition at registration.
	ErrConfiguration = errors.New("decay: invalid configuration")

	// ErrUnknownChain reports a chain identifier the registry has never seen.
	ErrUnknownChain = errors.New("decay: unknown chain")

	// ErrDuplicateAttach reports an Attach on an entity that already carries a
	// decay record. Callers must Detach first; there is no implicit replace.
	ErrDuplicateAttach = errors.New("decay: entity already attached")

	// ErrNotActive reports a Pause on an entity that is not actively decaying.
	ErrNotActive = errors.New("decay: entity not active")

	// ErrNotPaused reports a Resume on an entity that is not paused.
	ErrNotPaused = errors.New("decay: entity not paused")
)
