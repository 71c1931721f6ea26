// Package world defines the interfaces the raid core consumes from the host
// game: terrain queries, base discovery, actor enumeration and damage delivery.
// The core never owns terrain or entities; everything here is implemented by
// the embedding server (or by worldtest fixtures in tests).
package world

import "raidcraft.ai/internal/sim/geo"

// Query is a stateless view into terrain. Implementations must be safe for
// concurrent callers; the pathfinder and selector issue queries from multiple
// goroutines.
type Query interface {
	// IsWalkable reports whether an agent can stand in the cell: solid ground
	// at y-1 with body clearance at y and y+1.
	IsWalkable(c geo.Cell) bool
	// GroundHeightAt returns the y of the highest solid block in the column.
	GroundHeightAt(x, z int) int
	BlockKindAt(c geo.Cell) BlockKind
}

// BaseLocator resolves a raided owner's base geometry. Implemented by the
// host's base-scanning heuristics, outside this module.
type BaseLocator interface {
	BaseCenter(ownerID string) (geo.Vec3, bool)
	Entrances(ownerID string) []geo.Vec3
	RandomPatrolPoint(ownerID string) geo.Vec3
}

// ActorKind discriminates live actors for targeting.
type ActorKind uint8

const (
	ActorPlayer ActorKind = iota
	ActorRaider
)

// Actor is a point-in-time view of a live entity. Copies are handed out;
// callers must not expect them to track later movement.
type Actor struct {
	ID        string
	Kind      ActorKind
	Pos       geo.Vec3
	Alive     bool
	Connected bool // players only: actively playing, not sleeping/loading
	Moving    bool
}

// ActorRegistry enumerates live actors for target candidate generation.
type ActorRegistry interface {
	Players() []Actor
	Raiders() []Actor
	Actor(id string) (Actor, bool)
}

// DamageSink applies an abstract damage effect to an entity. The host maps
// this onto its own combat semantics.
type DamageSink interface {
	ApplyDamage(targetID string, amount float64)
}
