// Package dto holds the records the runtime and its front ends exchange:
// session snapshots, transition history and error status.
package dto

import (
	"time"
)

// TransitionCause says why a scene was executed.
type TransitionCause string

const (
	CauseStart    TransitionCause = "start"
	CauseTrigger  TransitionCause = "trigger"
	CauseNavigate TransitionCause = "navigate"
	CauseFallback TransitionCause = "fallback"
)

// TransitionStatus is the outcome of one transition.
type TransitionStatus string

const (
	TransitionCompleted TransitionStatus = "completed"
	// TransitionRecovered means the scene code failed and an empty scene
	// was presented in its place.
	TransitionRecovered TransitionStatus = "recovered"
	TransitionFailed    TransitionStatus = "failed"
	TransitionDiscarded TransitionStatus = "discarded"
)

// Transition records one scene execution.
type Transition struct {
	Step      int              `json:"step"`
	Cause     TransitionCause  `json:"cause"`
	Trigger   string           `json:"trigger,omitempty"`
	From      string           `json:"from,omitempty"`
	To        string           `json:"to"`
	Mode      string           `json:"mode"`
	EdgeID    int              `json:"edge_id,omitempty"`
	Status    TransitionStatus `json:"status"`
	StartTime time.Time        `json:"start_time"`
	Duration  time.Duration    `json:"duration"`
	Error     string           `json:"error,omitempty"`
}

// SessionState is a point-in-time view of a play session.
type SessionState struct {
	SessionID    string       `json:"session_id"`
	FlowName     string       `json:"flow_name,omitempty"`
	CurrentScene string       `json:"current_scene,omitempty"`
	ActiveCamera string       `json:"active_camera,omitempty"`
	OverlayDepth int          `json:"overlay_depth"`
	Overlays     []string     `json:"overlays"`
	Pending      int          `json:"pending"`
	Transitions  []Transition `json:"transitions"`
	LastError    *Error       `json:"last_error,omitempty"`
}

// TriggerOutcome is the result of resolving one trigger.
type TriggerOutcome string

const (
	TriggerMatched TriggerOutcome = "matched"
	TriggerInert   TriggerOutcome = "inert"
	TriggerInvalid TriggerOutcome = "invalid"
	TriggerQueued  TriggerOutcome = "queued"
	TriggerStale   TriggerOutcome = "stale"
)
