// Package nav computes waypoint paths over voxel terrain for raid agents.
// Every call runs with fresh open/closed sets, so concurrent searches for
// different agents need no locking.
package nav

import "raidcraft.ai/internal/sim/geo"

// Path is an ordered sequence of world-space waypoints at cell centers.
// It is a one-shot iterator: agents consume it with Current/Advance and a
// consumed path cannot be restarted.
type Path struct {
	points []geo.Vec3
	idx    int
}

func newPath(points []geo.Vec3) Path {
	return Path{points: points}
}

func (p *Path) Empty() bool { return p == nil || len(p.points) == 0 }

// Len reports the total number of waypoints, consumed or not.
func (p *Path) Len() int {
	if p == nil {
		return 0
	}
	return len(p.points)
}

// Done reports whether every waypoint has been consumed.
func (p *Path) Done() bool { return p == nil || p.idx >= len(p.points) }

// Current returns the active waypoint, or false when the path is exhausted.
func (p *Path) Current() (geo.Vec3, bool) {
	if p.Done() {
		return geo.Vec3{}, false
	}
	return p.points[p.idx], true
}

// Advance consumes the active waypoint.
func (p *Path) Advance() {
	if p != nil && p.idx < len(p.points) {
		p.idx++
	}
}

// Last returns the final waypoint, or false for an empty path.
func (p *Path) Last() (geo.Vec3, bool) {
	if p == nil || len(p.points) == 0 {
		return geo.Vec3{}, false
	}
	return p.points[len(p.points)-1], true
}

// Waypoints exposes the raw waypoint slice for inspection; callers must not
// mutate it.
func (p *Path) Waypoints() []geo.Vec3 {
	if p == nil {
		return nil
	}
	return p.points
}
