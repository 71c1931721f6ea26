package target

import (
	"raidcraft.ai/internal/sim/geo"
	"raidcraft.ai/internal/sim/world"
)

const losStep = 0.5

// Visible ray-marches from a to b at a fixed step. Any collidable block along
// the ray blocks sight unless its kind is explicitly transparent (glass,
// fence, bars, grate, lattice).
func Visible(q world.Query, a, b geo.Vec3) bool {
	d := b.Sub(a)
	dist := d.Len()
	if dist < losStep {
		return true
	}
	dir := d.Scale(1 / dist)
	prev := geo.Cell{X: 1 << 30} // sentinel: never a real cell on the ray
	for t := losStep; t < dist; t += losStep {
		c := geo.CellOf(a.Add(dir.Scale(t)))
		if c == prev {
			continue
		}
		prev = c
		k := q.BlockKindAt(c)
		if k.Collidable() && !k.Transparent() {
			return false
		}
	}
	return true
}
