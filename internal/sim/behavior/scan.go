package behavior

import (
	"math"

	"raidcraft.ai/internal/sim/geo"
	"raidcraft.ai/internal/sim/mathx"
	"raidcraft.ai/internal/sim/world"
)

// ObstacleScanner finds the nearest destructible obstacle around a point.
// The scheduler wraps the direct scanner with a TTL cache and a scan
// semaphore; the controller only sees this interface.
type ObstacleScanner interface {
	NearestObstacle(ownerID string, center geo.Vec3, radius float64) (geo.Cell, bool)
}

// WorldScanner walks expanding square shells around the center, nearest
// first, looking for door/gate blocks. Vertical extent is bounded: doors sit
// near ground level, not ten cells overhead.
type WorldScanner struct {
	Query world.Query
}

const scanVerticalRange = 3

func (s WorldScanner) NearestObstacle(_ string, center geo.Vec3, radius float64) (geo.Cell, bool) {
	origin := geo.CellOf(center)
	maxR := int(math.Ceil(radius))
	r2 := radius * radius

	for r := 0; r <= maxR; r++ {
		var found bool
		var best geo.Cell
		var bestD float64
		for dy := -scanVerticalRange; dy <= scanVerticalRange; dy++ {
			for dz := -r; dz <= r; dz++ {
				for dx := -r; dx <= r; dx++ {
					if mathx.AbsInt(dx) != r && mathx.AbsInt(dz) != r {
						continue
					}
					c := origin.Offset(dx, dy, dz)
					if !s.Query.BlockKindAt(c).Destructible() {
						continue
					}
					d := geo.DistSq(center, c.Center())
					if d > r2 {
						continue
					}
					if !found || d < bestD {
						found = true
						best = c
						bestD = d
					}
				}
			}
		}
		if found {
			return best, true
		}
	}
	return geo.Cell{}, false
}
