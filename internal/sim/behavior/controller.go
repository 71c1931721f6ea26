package behavior

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"raidcraft.ai/internal/sim/contention"
	"raidcraft.ai/internal/sim/geo"
	"raidcraft.ai/internal/sim/nav"
	"raidcraft.ai/internal/sim/target"
	"raidcraft.ai/internal/sim/tuning"
	"raidcraft.ai/internal/sim/world"
)

// BreachSink is told when a door's health is exhausted; the host removes the
// block from the world.
type BreachSink interface {
	ObstacleDestroyed(pos geo.Cell)
}

// Controller runs the per-tick behavior logic for every attached agent. It is
// stateless across agents: one instance is shared, agents are ticked
// sequentially by the scheduler, and all mutation happens on the Agent.
type Controller struct {
	cfg      tuning.Behavior
	maxNodes int
	tickDt   float64

	query   world.Query
	sel     *target.Selector
	doors   *contention.Manager
	reg     world.ActorRegistry
	dmg     world.DamageSink
	scanner ObstacleScanner
	breach  BreachSink

	rng    *rand.Rand
	events func(Event)
}

type Deps struct {
	Query   world.Query
	Sel     *target.Selector
	Doors   *contention.Manager
	Reg     world.ActorRegistry
	Dmg     world.DamageSink
	Scanner ObstacleScanner
	Breach  BreachSink  // optional
	Events  func(Event) // optional
	Seed    int64
}

func NewController(t tuning.Tuning, d Deps) *Controller {
	scanner := d.Scanner
	if scanner == nil {
		scanner = WorldScanner{Query: d.Query}
	}
	// A host that skips Defaults() must degrade, not divide by zero.
	cfg := t.Behavior
	if cfg.HeavyEveryTicks < 1 {
		cfg.HeavyEveryTicks = 1
	}
	rate := t.TickRateHz
	if rate < 1 {
		rate = 1
	}
	return &Controller{
		cfg:      cfg,
		maxNodes: t.Nav.MaxNodes,
		tickDt:   1.0 / float64(rate),
		query:    d.Query,
		sel:      d.Sel,
		doors:    d.Doors,
		reg:      d.Reg,
		dmg:      d.Dmg,
		scanner:  scanner,
		breach:   d.Breach,
		rng:      rand.New(rand.NewSource(d.Seed)),
		events:   d.Events,
	}
}

func (c *Controller) emit(a *Agent, now time.Time, typ, detail string) {
	if c.events == nil {
		return
	}
	c.events(Event{
		Time:    now,
		AgentID: a.ID,
		Type:    typ,
		State:   a.State.String(),
		Pos:     a.Pos,
		Detail:  detail,
	})
}

func (c *Controller) ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// Tick advances one agent by one tick. Movement runs every tick; the heavier
// evaluation (scans, target selection, repathing) runs every Nth tick.
// Returning Detach hands the agent back to default handling.
func (c *Controller) Tick(a *Agent, now time.Time) Decision {
	a.ticks++

	// Safety valve: a raider glued to the map forever helps nobody.
	if now.Sub(a.AttachedAt) > c.ms(c.cfg.GlobalTimeoutMs) {
		c.leaveDoor(a)
		c.emit(a, now, EventDetach, "global timeout")
		return Detach
	}

	c.checkStuck(a, now)

	if a.ticks%uint64(c.cfg.HeavyEveryTicks) == 0 {
		var detach bool
		var reason string
		switch a.State {
		case StateNavigating:
			detach, reason = c.evalNavigating(a, now)
		case StateAttacking:
			c.evalAttacking(a, now)
		case StateBreaching:
			detach, reason = c.evalBreaching(a, now)
		}
		if detach {
			c.leaveDoor(a)
			c.emit(a, now, EventDetach, reason)
			return Detach
		}
	}

	c.move(a, now)
	return Continue
}

func (c *Controller) setState(a *Agent, now time.Time, s State) {
	if a.State == s {
		return
	}
	if a.State == StateBreaching {
		c.leaveDoor(a)
	}
	a.State = s
	a.Path = nav.Path{}
	c.emit(a, now, EventState, "")
}

func (c *Controller) leaveDoor(a *Agent) {
	if a.HasDoor {
		c.doors.Unregister(a.Door, a.ID)
		a.HasDoor = false
	}
}

func (c *Controller) evalNavigating(a *Agent, now time.Time) (bool, string) {
	// Doors in the way outrank everything else, including goal arrival.
	if door, ok := c.scanner.NearestObstacle(a.OwnerID, a.Pos, c.cfg.DoorPriorityRadius); ok {
		a.Door = door
		a.HasDoor = false // registered lazily once in range
		c.setState(a, now, StateBreaching)
		return false, ""
	}

	if t := c.bestTarget(a, c.cfg.DetectRadius); t != nil && c.isEntity(t) {
		a.Target = t
		a.lastSeen = now
		c.setState(a, now, StateAttacking)
		return false, ""
	}

	if geo.Dist(a.Pos, a.Goal) < c.cfg.GoalReachedDistance {
		return true, "goal reached"
	}

	c.repathTo(a, now, a.Goal, c.ms(c.cfg.RepathIntervalMs))
	return false, ""
}

func (c *Controller) evalAttacking(a *Agent, now time.Time) {
	t := a.Target
	if t == nil || !t.IsValid(now, c.reg) {
		c.loseTarget(a, now, "target gone")
		return
	}
	t.Refresh(c.reg)

	d := geo.Dist(a.Pos, t.Pos)
	seen := d <= c.cfg.DetectRadius && target.Visible(c.query, eyePos(a.Pos), eyePos(t.Pos))
	if seen {
		a.lastSeen = now
	} else if now.Sub(a.lastSeen) > c.ms(c.cfg.TargetLostTimeoutMs) {
		c.loseTarget(a, now, "target lost")
		return
	}

	if d <= c.cfg.AttackRange {
		c.dmg.ApplyDamage(t.SourceID, c.cfg.AttackDamage)
		c.faceToward(a, t.Pos)
		return
	}
	// Targets move; repath twice as often as base navigation.
	c.repathTo(a, now, t.Pos, c.ms(c.cfg.RepathIntervalMs)/2)
}

// loseTarget resolves the fallback chain: a close player keeps the fight
// going, anything else sends the agent back to navigation.
func (c *Controller) loseTarget(a *Agent, now time.Time, detail string) {
	lost := a.Target
	a.Target = nil
	c.emit(a, now, EventTargetLost, detail)

	fb := c.sel.Fallback(lost, a.Pos, c.request(a, c.cfg.DetectRadius))
	if fb != nil && fb.Kind == target.KindPlayer {
		a.Target = fb
		a.lastSeen = now
		c.setState(a, now, StateAttacking)
		return
	}
	c.setState(a, now, StateNavigating)
}

func (c *Controller) evalBreaching(a *Agent, now time.Time) (bool, string) {
	if geo.Dist(a.Pos, a.Goal) < c.cfg.GoalReachedDistance {
		return true, "goal reached"
	}

	// The door may have been destroyed or removed by someone else.
	door, ok := c.scanner.NearestObstacle(a.OwnerID, a.Pos, c.cfg.DoorPriorityRadius)
	if !ok {
		c.setState(a, now, StateNavigating)
		return false, ""
	}
	if door != a.Door {
		c.leaveDoor(a)
		a.Door = door
	}

	// Only targets practically on top of the agent may interrupt a breach.
	if t := c.bestTarget(a, c.cfg.InterruptRadius); t != nil && c.isEntity(t) {
		a.Target = t
		a.lastSeen = now
		c.setState(a, now, StateAttacking)
		return false, ""
	}

	doorPos := a.Door.Center()
	if geo.Dist(a.Pos, doorPos) <= c.cfg.DoorAttackRange {
		if !c.doors.TryRegister(a.Door, a.ID) {
			// Saturated: let the registered crew work instead of idling here.
			c.setState(a, now, StateNavigating)
			return false, ""
		}
		a.HasDoor = true
		c.faceToward(a, doorPos)
		if c.doors.ApplyDamage(a.Door, a.ID, c.cfg.DoorDamage) {
			a.HasDoor = false
			c.emit(a, now, EventDoorDestroyed, fmt.Sprintf("%d,%d,%d", a.Door.X, a.Door.Y, a.Door.Z))
			if c.breach != nil {
				c.breach.ObstacleDestroyed(a.Door)
			}
			c.setState(a, now, StateNavigating)
		}
		return false, ""
	}

	c.repathTo(a, now, doorPos, c.ms(c.cfg.RepathIntervalMs))
	return false, ""
}

func (c *Controller) request(a *Agent, maxRange float64) target.Request {
	return target.Request{
		From:       a.Pos,
		OwnerID:    a.OwnerID,
		SelfID:     a.ID,
		AssignedID: a.AssignedID,
		MaxRange:   maxRange,
	}
}

func (c *Controller) bestTarget(a *Agent, maxRange float64) *target.Target {
	return c.sel.BestTarget(c.request(a, maxRange))
}

func (c *Controller) isEntity(t *target.Target) bool {
	return t.Kind == target.KindPlayer || t.Kind == target.KindRaider
}

func (c *Controller) repathTo(a *Agent, now time.Time, goal geo.Vec3, interval time.Duration) {
	if !a.Path.Empty() && !a.Path.Done() && now.Sub(a.lastRepath) < interval {
		return
	}
	a.Path = nav.FindPath(c.query, a.Pos, goal, c.maxNodes)
	a.lastRepath = now
}

// checkStuck fires the recovery routine once per stuck episode: when the
// agent has stayed inside a small box past the timeout, repath to a random
// nearby point, or jump when even that fails.
func (c *Controller) checkStuck(a *Agent, now time.Time) {
	if a.lastMoved.IsZero() {
		a.lastMoved = now
		a.lastPos = a.Pos
		return
	}
	if geo.Dist(a.Pos, a.lastPos) >= c.cfg.StuckThreshold {
		a.lastPos = a.Pos
		a.lastMoved = now
		return
	}
	if now.Sub(a.lastMoved) <= c.ms(c.cfg.StuckTimeoutMs) {
		return
	}

	a.Path = nav.Path{}
	p := c.randomNearbyPoint(a.Pos)
	path := nav.FindPath(c.query, a.Pos, p, c.maxNodes)
	if path.Empty() {
		c.tryJump(a, now)
	} else {
		a.Path = path
		a.lastRepath = now
	}
	c.emit(a, now, EventStuckRecover, "")

	// Reset the window so recovery runs once, not every tick.
	a.lastPos = a.Pos
	a.lastMoved = now
}

func (c *Controller) randomNearbyPoint(from geo.Vec3) geo.Vec3 {
	ang := c.rng.Float64() * 2 * math.Pi
	dist := c.cfg.RecoverMinDistance + c.rng.Float64()*(c.cfg.RecoverMaxDistance-c.cfg.RecoverMinDistance)
	x := from.X + math.Cos(ang)*dist
	z := from.Z + math.Sin(ang)*dist
	y := float64(c.query.GroundHeightAt(int(math.Floor(x)), int(math.Floor(z))) + 1)
	return geo.Vec3{X: x, Y: y, Z: z}
}

// eyePos lifts a base position to roughly eye height for sight checks.
func eyePos(p geo.Vec3) geo.Vec3 {
	return geo.Vec3{X: p.X, Y: p.Y + 1.5, Z: p.Z}
}
