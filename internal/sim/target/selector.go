package target

import (
	"sort"
	"time"

	"raidcraft.ai/internal/sim/geo"
	"raidcraft.ai/internal/sim/world"
)

// Selector ranks candidates for one evaluation. It holds only external
// interfaces and is safe for concurrent use by many agents.
type Selector struct {
	query world.Query
	reg   world.ActorRegistry
	bases world.BaseLocator
	nowFn func() time.Time
}

func NewSelector(q world.Query, reg world.ActorRegistry, bases world.BaseLocator) *Selector {
	return &Selector{query: q, reg: reg, bases: bases, nowFn: time.Now}
}

// SetClock overrides the selector's time source; tests pin it.
func (s *Selector) SetClock(now func() time.Time) { s.nowFn = now }

// Request carries the per-agent context for one selection.
type Request struct {
	From       geo.Vec3
	OwnerID    string // whose base is being raided
	SelfID     string // requesting agent, excluded from raider candidates
	AssignedID string // originally assigned player, if any
	MaxRange   float64
}

// BestTarget gathers candidates, applies dynamic priority, filters invalid
// ones and returns the best by (priority desc, distance asc), or nil.
func (s *Selector) BestTarget(req Request) *Target {
	now := s.nowFn()
	cands := s.gather(req, now)
	cands = s.rank(req, cands, now)
	if len(cands) == 0 {
		return nil
	}
	return cands[0]
}

func (s *Selector) gather(req Request, now time.Time) []*Target {
	var out []*Target

	for _, p := range s.reg.Players() {
		if !p.Alive || !p.Connected {
			continue
		}
		prio := priorityPlayer
		if p.ID == req.AssignedID && req.AssignedID != "" {
			prio += assignedBonus
		}
		out = append(out, &Target{
			Kind:         KindPlayer,
			Pos:          p.Pos,
			BasePriority: prio,
			SourceID:     p.ID,
			OwnerID:      req.OwnerID,
			CreatedAt:    now,
		})
	}

	for _, r := range s.reg.Raiders() {
		if !r.Alive || r.ID == req.SelfID {
			continue
		}
		out = append(out, &Target{
			Kind:         KindRaider,
			Pos:          r.Pos,
			BasePriority: priorityRaider,
			SourceID:     r.ID,
			OwnerID:      req.OwnerID,
			CreatedAt:    now,
		})
	}

	for _, e := range s.bases.Entrances(req.OwnerID) {
		out = append(out, &Target{
			Kind:         KindBaseEntrance,
			Pos:          e,
			BasePriority: priorityEntrance,
			OwnerID:      req.OwnerID,
			CreatedAt:    now,
		})
	}
	if c, ok := s.bases.BaseCenter(req.OwnerID); ok {
		out = append(out, &Target{
			Kind:         KindBaseCenter,
			Pos:          c,
			BasePriority: priorityCenter,
			OwnerID:      req.OwnerID,
			CreatedAt:    now,
		})
	}

	// Patrol points only exist when nothing better does.
	if len(out) == 0 {
		out = append(out, &Target{
			Kind:         KindPatrolPoint,
			Pos:          s.bases.RandomPatrolPoint(req.OwnerID),
			BasePriority: priorityPatrol,
			OwnerID:      req.OwnerID,
			CreatedAt:    now,
		})
	}
	return out
}

func (s *Selector) rank(req Request, cands []*Target, now time.Time) []*Target {
	kept := cands[:0]
	for _, t := range cands {
		d := geo.Dist(req.From, t.Pos)
		if req.MaxRange > 0 && d > req.MaxRange {
			continue
		}
		if !t.IsValid(now, s.reg) {
			continue
		}
		t.Priority = t.BasePriority + distanceAdjust(d)
		if t.Kind == KindPlayer {
			if a, ok := s.reg.Actor(t.SourceID); ok && a.Moving {
				t.Priority += movingBonus
			}
		}
		kept = append(kept, t)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Priority != kept[j].Priority {
			return kept[i].Priority > kept[j].Priority
		}
		return geo.DistSq(req.From, kept[i].Pos) < geo.DistSq(req.From, kept[j].Pos)
	})
	return kept
}

func distanceAdjust(d float64) int {
	switch {
	case d <= 10:
		return 20
	case d <= 20:
		return 10
	case d > 50:
		return -10
	}
	return 0
}

// Fallback resolves a replacement after the active target is lost: first a
// short-range re-select, then the nearest entrance (when a player was lost)
// or the base center as the general patrol fallback.
func (s *Selector) Fallback(lost *Target, from geo.Vec3, req Request) *Target {
	short := req
	short.MaxRange = shortRetryRange
	if t := s.BestTarget(short); t != nil && t.Kind == KindPlayer {
		return t
	}
	now := s.nowFn()
	if lost != nil && lost.Kind == KindPlayer {
		if e, ok := s.nearestEntrance(req.OwnerID, from); ok {
			return &Target{
				Kind:         KindBaseEntrance,
				Pos:          e,
				BasePriority: priorityEntrance,
				OwnerID:      req.OwnerID,
				CreatedAt:    now,
			}
		}
	}
	if c, ok := s.bases.BaseCenter(req.OwnerID); ok {
		return &Target{
			Kind:         KindBaseCenter,
			Pos:          c,
			BasePriority: priorityCenter,
			OwnerID:      req.OwnerID,
			CreatedAt:    now,
		}
	}
	return nil
}

const shortRetryRange = 15.0

func (s *Selector) nearestEntrance(ownerID string, from geo.Vec3) (geo.Vec3, bool) {
	var best geo.Vec3
	bestD := 0.0
	found := false
	for _, e := range s.bases.Entrances(ownerID) {
		d := geo.DistSq(from, e)
		if !found || d < bestD {
			best = e
			bestD = d
			found = true
		}
	}
	return best, found
}
