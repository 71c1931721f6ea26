// Package target gathers and ranks the candidates a raid agent may pursue:
// live players, rival raiders, and static base points. Selection is
// independent of pathfinding; callers route to whatever is returned.
package target

import (
	"time"

	"raidcraft.ai/internal/sim/geo"
	"raidcraft.ai/internal/sim/world"
)

// Kind discriminates candidate sources.
type Kind uint8

const (
	KindPlayer Kind = iota
	KindRaider
	KindBaseEntrance
	KindBaseCenter
	KindPatrolPoint
)

var kindNames = [...]string{
	KindPlayer:       "PLAYER",
	KindRaider:       "RAIDER",
	KindBaseEntrance: "BASE_ENTRANCE",
	KindBaseCenter:   "BASE_CENTER",
	KindPatrolPoint:  "PATROL_POINT",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// Base priorities per source kind.
const (
	priorityPlayer   = 100
	priorityRaider   = 80
	priorityEntrance = 60
	priorityCenter   = 40
	priorityPatrol   = 20

	assignedBonus = 20
	movingBonus   = 15
)

// Static targets (entrances, centers, patrol points) stay valid only this
// long after creation; entity targets are re-validated against the registry.
const staticValidity = 30 * time.Second

// Target is a ranked candidate. SourceID is a non-owning lookup key into the
// actor registry; holding a Target never extends the source's lifetime.
type Target struct {
	Kind         Kind
	Pos          geo.Vec3
	BasePriority int
	Priority     int // recomputed per evaluation
	SourceID     string
	OwnerID      string
	CreatedAt    time.Time
}

// IsValid reports whether the target may still be pursued at now. Entity
// targets require a live (and, for players, connected) source; static targets
// expire with their validity window.
func (t *Target) IsValid(now time.Time, reg world.ActorRegistry) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case KindPlayer:
		a, ok := reg.Actor(t.SourceID)
		return ok && a.Alive && a.Connected
	case KindRaider:
		a, ok := reg.Actor(t.SourceID)
		return ok && a.Alive
	default:
		return now.Sub(t.CreatedAt) <= staticValidity
	}
}

// Refresh updates an entity target's position from the registry. Static
// targets are unchanged.
func (t *Target) Refresh(reg world.ActorRegistry) {
	if t == nil || (t.Kind != KindPlayer && t.Kind != KindRaider) {
		return
	}
	if a, ok := reg.Actor(t.SourceID); ok {
		t.Pos = a.Pos
	}
}
