// Package queue publishes document change events to a message broker
// and adapts deliveries back into sync triggers. The broker is
// optional; without one the synchronizer falls back to its periodic
// timer and nothing else changes.
package queue

import "time"

// Change actions.
const (
	ActionReplaced    = "replaced"
	ActionMutated     = "mutated"
	ActionCreated     = "created"
	ActionCodeRotated = "code_rotated"
)

// DocumentChangedEvent is published after a successful write to a
// family or planner document. Consumers use it as a hint to pull; the
// authoritative document always comes from the owning service, never
// from the event body.
type DocumentChangedEvent struct {
	Collection string    `json:"collection"`
	Key        string    `json:"key"`
	Action     string    `json:"action"`
	At         time.Time `json:"at"`
}
