package behavior

import (
	"math"
	"time"

	"raidcraft.ai/internal/sim/geo"
)

const gravity = 18.0

// move executes movement for one tick: steer toward the current waypoint (or
// the state-appropriate target when no path exists), apply drag and the speed
// cap, jump for raised waypoints, integrate, and clamp to ground.
func (c *Controller) move(a *Agent, now time.Time) {
	tgt, ok := c.steerTarget(a)
	if ok {
		delta := tgt.Sub(a.Pos)

		if delta.Y > c.cfg.JumpDelta && c.onGround(a) {
			c.tryJump(a, now)
		}

		dir := geo.Vec3{X: delta.X, Z: delta.Z}.Normalized()
		if dir.X != 0 || dir.Z != 0 {
			a.Vel.X += dir.X * c.cfg.Accel
			a.Vel.Z += dir.Z * c.cfg.Accel
			a.Yaw = math.Atan2(dir.Z, dir.X)
		}
	}

	a.Vel.X *= c.cfg.Drag
	a.Vel.Z *= c.cfg.Drag
	if h := math.Hypot(a.Vel.X, a.Vel.Z); h > c.cfg.MaxSpeed {
		s := c.cfg.MaxSpeed / h
		a.Vel.X *= s
		a.Vel.Z *= s
	}

	a.Vel.Y -= gravity * c.tickDt
	a.Pos = a.Pos.Add(a.Vel.Scale(c.tickDt))

	ground := c.groundY(a.Pos)
	if a.Pos.Y <= ground {
		a.Pos.Y = ground
		if a.Vel.Y < 0 {
			a.Vel.Y = 0
		}
	}
}

// steerTarget picks where the agent is heading this tick. With a path,
// waypoints are consumed as the agent closes within the waypoint radius; with
// none, the agent heads straight for whatever its state cares about.
func (c *Controller) steerTarget(a *Agent) (geo.Vec3, bool) {
	if wp, ok := a.Path.Current(); ok {
		if geo.Dist(a.Pos, wp) < c.cfg.WaypointRadius {
			a.Path.Advance()
		}
		if wp, ok = a.Path.Current(); ok {
			return wp, true
		}
	}
	switch a.State {
	case StateAttacking:
		if a.Target != nil {
			return a.Target.Pos, true
		}
	case StateBreaching:
		return a.Door.Center(), true
	}
	return a.Goal, true
}

func (c *Controller) tryJump(a *Agent, now time.Time) {
	if now.Sub(a.lastJump) < c.ms(c.cfg.JumpCooldownMs) {
		return
	}
	if !c.onGround(a) {
		return
	}
	a.Vel.Y = c.cfg.JumpVelocity
	a.lastJump = now
}

func (c *Controller) onGround(a *Agent) bool {
	return a.Pos.Y <= c.groundY(a.Pos)+1e-6
}

func (c *Controller) groundY(p geo.Vec3) float64 {
	x := int(math.Floor(p.X))
	z := int(math.Floor(p.Z))
	return float64(c.query.GroundHeightAt(x, z) + 1)
}

func (c *Controller) faceToward(a *Agent, p geo.Vec3) {
	d := p.Sub(a.Pos)
	if math.Hypot(d.X, d.Z) > 1e-9 {
		a.Yaw = math.Atan2(d.Z, d.X)
	}
}
