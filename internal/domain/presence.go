package domain

import "context"

// PresenceEvent describes a change in the local presence registry.
type PresenceEvent struct {
	UserID string
	ConnID string
	Online bool
	Total  int // users online after the change
}

// PresenceObserver is told about every presence transition. Implementations
// must not call back into the registry.
type PresenceObserver interface {
	PresenceChanged(ctx context.Context, ev PresenceEvent)
}
