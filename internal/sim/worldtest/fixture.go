// Package worldtest provides a programmable in-memory world implementing the
// interfaces the raid core consumes. Tests and the raidsim harness build
// deterministic terrain with it; it is not a terrain generator.
package worldtest

import (
	"math/rand"
	"sort"
	"sync"

	"raidcraft.ai/internal/sim/geo"
	"raidcraft.ai/internal/sim/world"
)

// World is a block map over an optional infinite flat floor. All methods are
// safe for concurrent use; the core queries terrain from several goroutines.
type World struct {
	mu sync.RWMutex

	blocks   map[geo.Cell]world.BlockKind
	floorY   int
	hasFloor bool

	actors    map[string]world.Actor
	centers   map[string]geo.Vec3
	entrances map[string][]geo.Vec3

	damage    map[string]float64
	destroyed []geo.Cell

	rng *rand.Rand
}

// NewFlatWorld builds a world with solid ground at floorY and open air above.
func NewFlatWorld(floorY int) *World {
	w := New()
	w.floorY = floorY
	w.hasFloor = true
	return w
}

// New builds an empty void world; every cell is air until set.
func New() *World {
	return &World{
		blocks:    map[geo.Cell]world.BlockKind{},
		actors:    map[string]world.Actor{},
		centers:   map[string]geo.Vec3{},
		entrances: map[string][]geo.Vec3{},
		damage:    map[string]float64{},
		rng:       rand.New(rand.NewSource(1)),
	}
}

func (w *World) SetBlock(c geo.Cell, k world.BlockKind) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if k == world.BlockAir {
		delete(w.blocks, c)
		return
	}
	w.blocks[c] = k
}

// FillBox sets every cell in the inclusive box [min, max] to kind.
func (w *World) FillBox(min, max geo.Cell, k world.BlockKind) {
	for y := min.Y; y <= max.Y; y++ {
		for z := min.Z; z <= max.Z; z++ {
			for x := min.X; x <= max.X; x++ {
				w.SetBlock(geo.Cell{X: x, Y: y, Z: z}, k)
			}
		}
	}
}

func (w *World) BlockKindAt(c geo.Cell) world.BlockKind {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.blockKindLocked(c)
}

func (w *World) blockKindLocked(c geo.Cell) world.BlockKind {
	if k, ok := w.blocks[c]; ok {
		return k
	}
	if w.hasFloor && c.Y <= w.floorY {
		return world.BlockSolid
	}
	return world.BlockAir
}

// IsWalkable applies the entity-base convention: solid ground at y-1, body
// clearance at y and y+1.
func (w *World) IsWalkable(c geo.Cell) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.blockKindLocked(c.Offset(0, -1, 0)).Collidable() {
		return false
	}
	return !w.blockKindLocked(c).Collidable() && !w.blockKindLocked(c.Offset(0, 1, 0)).Collidable()
}

func (w *World) GroundHeightAt(x, z int) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	top := -1 << 30
	found := false
	for c, k := range w.blocks {
		if c.X == x && c.Z == z && k.Collidable() && c.Y > top {
			top = c.Y
			found = true
		}
	}
	if w.hasFloor && (!found || w.floorY > top) {
		top = w.floorY
		found = true
	}
	if !found {
		return -1 << 30
	}
	return top
}

// --- world.ActorRegistry ---

func (w *World) PutActor(a world.Actor) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.actors[a.ID] = a
}

func (w *World) AddPlayer(id string, pos geo.Vec3) {
	w.PutActor(world.Actor{ID: id, Kind: world.ActorPlayer, Pos: pos, Alive: true, Connected: true})
}

func (w *World) AddRaider(id string, pos geo.Vec3) {
	w.PutActor(world.Actor{ID: id, Kind: world.ActorRaider, Pos: pos, Alive: true})
}

func (w *World) RemoveActor(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.actors, id)
}

func (w *World) Players() []world.Actor { return w.actorsOf(world.ActorPlayer) }
func (w *World) Raiders() []world.Actor { return w.actorsOf(world.ActorRaider) }

func (w *World) actorsOf(kind world.ActorKind) []world.Actor {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []world.Actor
	for _, a := range w.actors {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w *World) Actor(id string) (world.Actor, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.actors[id]
	return a, ok
}

// --- world.BaseLocator ---

func (w *World) SetBaseCenter(ownerID string, p geo.Vec3) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.centers[ownerID] = p
}

func (w *World) AddEntrance(ownerID string, p geo.Vec3) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entrances[ownerID] = append(w.entrances[ownerID], p)
}

func (w *World) BaseCenter(ownerID string) (geo.Vec3, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.centers[ownerID]
	return c, ok
}

func (w *World) Entrances(ownerID string) []geo.Vec3 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]geo.Vec3(nil), w.entrances[ownerID]...)
}

func (w *World) RandomPatrolPoint(ownerID string) geo.Vec3 {
	w.mu.Lock()
	defer w.mu.Unlock()
	c := w.centers[ownerID]
	return geo.Vec3{
		X: c.X + w.rng.Float64()*20 - 10,
		Y: c.Y,
		Z: c.Z + w.rng.Float64()*20 - 10,
	}
}

// --- world.DamageSink ---

func (w *World) ApplyDamage(targetID string, amount float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.damage[targetID] += amount
}

// DamageTo reports the cumulative damage delivered to an entity.
func (w *World) DamageTo(targetID string) float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.damage[targetID]
}

// --- behavior.BreachSink ---

// ObstacleDestroyed clears the block, mirroring the host's responsibility to
// remove a destroyed obstacle from the world.
func (w *World) ObstacleDestroyed(pos geo.Cell) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.blocks, pos)
	w.destroyed = append(w.destroyed, pos)
}

// Destroyed lists obstacles broken so far, in order.
func (w *World) Destroyed() []geo.Cell {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]geo.Cell(nil), w.destroyed...)
}
