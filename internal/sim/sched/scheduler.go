// Package sched drives all attached raid agents: a single loop goroutine
// ticks behavior and movement deterministically, while a bounded worker pool
// pre-warms expensive world scans into a short-TTL cache. Attach/detach
// arrive over channels so the agent map is only ever touched by the loop.
package sched

import (
	"context"
	"errors"
	"log"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"raidcraft.ai/internal/sim/behavior"
	"raidcraft.ai/internal/sim/contention"
	"raidcraft.ai/internal/sim/geo"
	"raidcraft.ai/internal/sim/target"
	"raidcraft.ai/internal/sim/tuning"
	"raidcraft.ai/internal/sim/world"
)

// Deps are the external collaborators the scheduler wires into its
// controller, selector and contention manager.
type Deps struct {
	Query  world.Query
	Reg    world.ActorRegistry
	Bases  world.BaseLocator
	Dmg    world.DamageSink
	Breach behavior.BreachSink  // optional
	Events func(behavior.Event) // optional
	Seed   int64
}

// AttachRequest installs the raid behavior on a freshly spawned agent.
type AttachRequest struct {
	AgentID    string
	OwnerID    string
	AssignedID string
	Pos        geo.Vec3
	Goal       geo.Vec3
}

type refreshReq struct {
	ownerID string
	pos     geo.Vec3
	radius  float64
}

// Scheduler owns the single pathfinder configuration, target selector and
// contention manager, and hands them to the behavior controller. Agents are
// typed structs in a map keyed by id; attach/detach is map insert/remove.
type Scheduler struct {
	cfg    tuning.Tuning
	logger *log.Logger

	ctrl  *behavior.Controller
	doors *contention.Manager
	cache *ttlCache
	stats *Stats
	reg   world.ActorRegistry

	scanSem *semaphore.Weighted
	scanner behavior.WorldScanner

	agents      map[string]*behavior.Agent
	nextRefresh map[string]time.Time

	attach  chan AttachRequest
	detach  chan string
	refresh chan refreshReq

	tick uint64
}

func New(cfg tuning.Tuning, deps Deps, logger *log.Logger) *Scheduler {
	s := &Scheduler{
		cfg:         cfg,
		logger:      logger,
		cache:       newTTLCache(time.Duration(cfg.Sched.CacheTTLMs) * time.Millisecond),
		stats:       NewStats(uint64(cfg.TickRateHz*15), uint64(cfg.TickRateHz*900)),
		scanSem:     semaphore.NewWeighted(int64(cfg.Sched.ScanConcurrency)),
		scanner:     behavior.WorldScanner{Query: deps.Query},
		reg:         deps.Reg,
		agents:      map[string]*behavior.Agent{},
		nextRefresh: map[string]time.Time{},
		attach:      make(chan AttachRequest, 64),
		detach:      make(chan string, 64),
		refresh:     make(chan refreshReq, cfg.Sched.RefreshQueueSize),
	}

	s.doors = contention.NewManager(deps.Query,
		contention.WithMaxHealth(cfg.Contention.MaxHealth),
		contention.WithMaxAttackers(cfg.Contention.MaxAttackers),
		contention.WithIdleTimeout(time.Duration(cfg.Contention.IdleTimeoutMs)*time.Millisecond),
	)
	sel := target.NewSelector(deps.Query, deps.Reg, deps.Bases)

	sink := deps.Events
	s.ctrl = behavior.NewController(cfg, behavior.Deps{
		Query:   deps.Query,
		Sel:     sel,
		Doors:   s.doors,
		Reg:     deps.Reg,
		Dmg:     deps.Dmg,
		Scanner: cachedScanner{cache: s.cache, inner: s.scanner},
		Breach:  deps.Breach,
		Seed:    deps.Seed,
		Events: func(ev behavior.Event) {
			s.observe(ev)
			if sink != nil {
				sink(ev)
			}
		},
	})
	return s
}

// Doors exposes the contention manager for hosts that apply obstacle damage
// from outside the behavior loop (e.g. explosives).
func (s *Scheduler) Doors() *contention.Manager { return s.doors }

// observe runs on the loop goroutine (controller events fire during Tick).
func (s *Scheduler) observe(ev behavior.Event) {
	switch ev.Type {
	case behavior.EventDoorDestroyed:
		s.stats.RecordBreach(s.tick)
	case behavior.EventStuckRecover:
		s.stats.RecordRecovery(s.tick)
	case behavior.EventTargetLost:
		s.stats.RecordTargetLost(s.tick)
	}
}

// AttachBehavior installs the raid controller on an agent heading for goal.
// Position and target assignment are resolved on the loop goroutine.
func (s *Scheduler) AttachBehavior(agentID, ownerID string, goal geo.Vec3) {
	s.Attach(AttachRequest{AgentID: agentID, OwnerID: ownerID, Goal: goal})
}

// Attach is the extended attach surface for spawners that pre-assign targets
// and spawn positions.
func (s *Scheduler) Attach(req AttachRequest) {
	select {
	case s.attach <- req:
	default:
		if s.logger != nil {
			s.logger.Printf("attach queue full; dropping agent %s", req.AgentID)
		}
	}
}

// DetachBehavior removes the controller from an agent, returning it to
// default handling. Unknown ids are ignored.
func (s *Scheduler) DetachBehavior(agentID string) {
	select {
	case s.detach <- agentID:
	default:
	}
}

// ActiveAgents reports how many agents are attached. Loop-owned data is read
// via the channelless fast path only by tests that do not race the loop.
func (s *Scheduler) ActiveAgents() int { return len(s.agents) }

// Stats exposes the rolling behavior counters.
func (s *Scheduler) Stats() *Stats { return s.stats }

// Run drives the tick loop, the refresh workers and the maintenance sweeps
// until ctx is canceled. In-flight refresh heartbeats for detached agents are
// simply not re-queued.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	workers := s.cfg.Sched.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	for i := 0; i < workers; i++ {
		g.Go(func() error { return s.refreshWorker(ctx) })
	}
	g.Go(func() error { return s.maintenance(ctx) })
	g.Go(func() error { return s.loop(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (s *Scheduler) loop(ctx context.Context) error {
	interval := time.Second / time.Duration(s.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-s.attach:
			s.handleAttach(req)
		case id := <-s.detach:
			s.remove(id)
		case <-ticker.C:
			s.step(time.Now())
		}
	}
}

func (s *Scheduler) handleAttach(req AttachRequest) {
	if _, ok := s.agents[req.AgentID]; ok {
		return
	}
	pos := req.Pos
	if pos == (geo.Vec3{}) {
		// Plain AttachBehavior carries no spawn position; the registry has it.
		if actor, ok := s.reg.Actor(req.AgentID); ok {
			pos = actor.Pos
		}
	}
	a := &behavior.Agent{
		ID:         req.AgentID,
		OwnerID:    req.OwnerID,
		AssignedID: req.AssignedID,
		Pos:        pos,
		Goal:       req.Goal,
		State:      behavior.StateNavigating,
		AttachedAt: time.Now(),
	}
	s.agents[a.ID] = a
	s.stats.RecordAttach(s.tick)
}

func (s *Scheduler) remove(id string) {
	a, ok := s.agents[id]
	if !ok {
		return
	}
	// Host-initiated detach can land mid-breach; the contention slot must not
	// outlive the agent or the door starves future raiders.
	if a.HasDoor {
		s.doors.Unregister(a.Door, id)
	}
	delete(s.agents, id)
	delete(s.nextRefresh, id)
	s.stats.RecordDetach(s.tick)
}

// step ticks every agent in deterministic id order, then queues refresh
// heartbeats for agents that are due.
func (s *Scheduler) step(now time.Time) {
	s.tick++

	ids := make([]string, 0, len(s.agents))
	for id := range s.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		a := s.agents[id]
		if s.ctrl.Tick(a, now) == behavior.Detach {
			s.remove(id)
		}
	}

	refreshEvery := time.Duration(s.cfg.Sched.RefreshIntervalMs) * time.Millisecond
	for _, id := range ids {
		a, ok := s.agents[id]
		if !ok {
			continue // detached this tick; heartbeat dies with it
		}
		if now.Before(s.nextRefresh[id]) {
			continue
		}
		req := refreshReq{ownerID: a.OwnerID, pos: a.Pos, radius: s.cfg.Behavior.DoorPriorityRadius}
		select {
		case s.refresh <- req:
			s.nextRefresh[id] = now.Add(refreshEvery)
		default:
			// Queue full: retry next tick rather than block the loop.
		}
	}
}

// refreshWorker pre-warms the scan cache off the tick path. Failures must
// never reach the loop: each job is fenced with a recover and logged.
func (s *Scheduler) refreshWorker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-s.refresh:
			s.runRefresh(ctx, req)
		}
	}
}

func (s *Scheduler) runRefresh(ctx context.Context, req refreshReq) {
	defer func() {
		if r := recover(); r != nil && s.logger != nil {
			s.logger.Printf("refresh worker panic: %v", r)
		}
	}()
	if err := s.scanSem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.scanSem.Release(1)

	cell, found := s.scanner.NearestObstacle(req.ownerID, req.pos, req.radius)
	s.cache.put(scanKey(req.ownerID, req.pos, req.radius), cell, found)
}

// maintenance sweeps the scan cache and the contention manager's idle
// records on their own cadence.
func (s *Scheduler) maintenance(ctx context.Context) error {
	sweep := time.NewTicker(time.Duration(s.cfg.Sched.SweepIntervalMs) * time.Millisecond)
	defer sweep.Stop()
	cleanup := time.NewTicker(time.Duration(s.cfg.Sched.CleanupIntervalMs) * time.Millisecond)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sweep.C:
			s.cache.sweep()
		case <-cleanup.C:
			if n := s.doors.Cleanup(); n > 0 && s.logger != nil {
				s.logger.Printf("contention cleanup: dropped %d records", n)
			}
		}
	}
}

// cachedScanner serves the controller's heavy-tick scans from the TTL cache,
// falling back to a direct synchronous scan on miss. The semaphore only
// gates background refresh work; the tick path never suspends.
type cachedScanner struct {
	cache *ttlCache
	inner behavior.WorldScanner
}

func (c cachedScanner) NearestObstacle(ownerID string, center geo.Vec3, radius float64) (geo.Cell, bool) {
	key := scanKey(ownerID, center, radius)
	if cell, found, hit := c.cache.get(key); hit {
		return cell, found
	}
	cell, found := c.inner.NearestObstacle(ownerID, center, radius)
	c.cache.put(key, cell, found)
	return cell, found
}
