// Package behavior drives a raid agent's high-level intent each tick:
// navigate to the base, fight whoever gets in the way, and break down the
// doors in between. One Controller serves every agent; all per-agent state
// lives in the Agent struct owned by the scheduler.
package behavior

import (
	"time"

	"raidcraft.ai/internal/sim/geo"
	"raidcraft.ai/internal/sim/nav"
	"raidcraft.ai/internal/sim/target"
)

// State is the agent's current intent.
type State uint8

const (
	StateNavigating State = iota
	StateAttacking
	StateBreaching
)

var stateNames = [...]string{
	StateNavigating: "NAVIGATING",
	StateAttacking:  "ATTACKING",
	StateBreaching:  "BREACHING",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// Agent holds everything the controller mutates for one raider. Agents are
// owned by the scheduler and ticked strictly in order; nothing here is shared
// across agents.
type Agent struct {
	ID         string
	OwnerID    string // owner of the base being raided
	AssignedID string // originally assigned player target, if any
	Goal       geo.Vec3

	Pos geo.Vec3
	Vel geo.Vec3
	Yaw float64

	State  State
	Path   nav.Path
	Target *target.Target

	Door    geo.Cell
	HasDoor bool

	AttachedAt time.Time

	ticks      uint64
	lastRepath time.Time
	lastSeen   time.Time // target last confirmed visible

	// Stuck detection window.
	lastPos   geo.Vec3
	lastMoved time.Time

	lastJump time.Time
}

// Decision is the controller's verdict for one tick.
type Decision uint8

const (
	Continue Decision = iota
	Detach
)

// Event is an observable behavior change, delivered to the scheduler's event
// sink for logging and indexing.
type Event struct {
	Time    time.Time `json:"time"`
	AgentID string    `json:"agent_id"`
	Type    string    `json:"type"`
	State   string    `json:"state,omitempty"`
	Pos     geo.Vec3  `json:"pos"`
	Detail  string    `json:"detail,omitempty"`
}

const (
	EventState         = "STATE"
	EventDetach        = "DETACH"
	EventStuckRecover  = "STUCK_RECOVER"
	EventDoorDestroyed = "DOOR_DESTROYED"
	EventTargetLost    = "TARGET_LOST"
)
