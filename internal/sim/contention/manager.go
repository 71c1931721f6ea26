// Package contention tracks destructible obstacles (doors, gates) under
// attack and bounds how many raiders may work on one obstacle at a time.
// The map is sharded so unrelated agents never contend on a single lock.
package contention

import (
	"sync"
	"time"

	"raidcraft.ai/internal/sim/geo"
	"raidcraft.ai/internal/sim/mathx"
	"raidcraft.ai/internal/sim/world"
)

const (
	DefaultMaxHealth    = 2000.0
	DefaultMaxAttackers = 3
	DefaultIdleTimeout  = 30 * time.Second

	shardCount = 16
)

type record struct {
	pos          geo.Cell
	kind         world.BlockKind
	maxHealth    float64
	health       float64
	maxAttackers int
	attackers    map[string]struct{}
	lastAttacked time.Time
}

type shard struct {
	mu   sync.Mutex
	recs map[geo.Cell]*record
}

// Manager admits attackers against obstacle records and applies their damage.
// All methods are safe for concurrent use; a single record's mutations are
// atomic relative to other mutations on the same record.
type Manager struct {
	query        world.Query
	maxHealth    float64
	maxAttackers int
	idleTimeout  time.Duration
	nowFn        func() time.Time

	shards [shardCount]shard
}

// Option tweaks manager defaults.
type Option func(*Manager)

func WithMaxHealth(h float64) Option { return func(m *Manager) { m.maxHealth = h } }
func WithMaxAttackers(n int) Option  { return func(m *Manager) { m.maxAttackers = n } }
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) { m.idleTimeout = d }
}

// WithClock overrides the time source; tests pin it.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.nowFn = now } }

func NewManager(q world.Query, opts ...Option) *Manager {
	m := &Manager{
		query:        q,
		maxHealth:    DefaultMaxHealth,
		maxAttackers: DefaultMaxAttackers,
		idleTimeout:  DefaultIdleTimeout,
		nowFn:        time.Now,
	}
	for i := range m.shards {
		m.shards[i].recs = map[geo.Cell]*record{}
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) shardFor(pos geo.Cell) *shard {
	h := mathx.Hash3(0, pos.X, pos.Y, pos.Z)
	return &m.shards[h%shardCount]
}

// TryRegister admits agentID as an attacker of the obstacle at pos, creating
// the record on first contact. Re-registering is a no-op success. Returns
// false once the attacker set is at capacity, or when the block at pos is not
// a destructible obstacle.
func (m *Manager) TryRegister(pos geo.Cell, agentID string) bool {
	kind := m.query.BlockKindAt(pos)
	if !kind.Destructible() {
		return false
	}
	s := m.shardFor(pos)
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.recs[pos]
	if r == nil {
		r = &record{
			pos:          pos,
			kind:         kind,
			maxHealth:    m.maxHealth,
			health:       m.maxHealth,
			maxAttackers: m.maxAttackers,
			attackers:    map[string]struct{}{},
			lastAttacked: m.nowFn(),
		}
		s.recs[pos] = r
	}
	if _, ok := r.attackers[agentID]; ok {
		return true
	}
	if len(r.attackers) >= r.maxAttackers {
		return false
	}
	r.attackers[agentID] = struct{}{}
	return true
}

// Unregister removes agentID from the obstacle's attacker set. Unregistering
// an attacker not present, or against an unknown obstacle, is a no-op.
func (m *Manager) Unregister(pos geo.Cell, agentID string) {
	s := m.shardFor(pos)
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.recs[pos]; r != nil {
		delete(r.attackers, agentID)
	}
}

// ApplyDamage reduces the obstacle's health on behalf of a registered
// attacker. Damage from unregistered ids is ignored. Returns true when the
// hit destroyed the obstacle; the record is removed and the caller is
// responsible for removing the block from the world.
func (m *Manager) ApplyDamage(pos geo.Cell, agentID string, amount float64) bool {
	s := m.shardFor(pos)
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.recs[pos]
	if r == nil {
		return false
	}
	if _, ok := r.attackers[agentID]; !ok {
		return false
	}
	r.health -= amount
	r.lastAttacked = m.nowFn()
	if r.health <= 0 {
		delete(s.recs, pos)
		return true
	}
	return false
}

// Health reports the obstacle's remaining health, or false when untracked.
func (m *Manager) Health(pos geo.Cell) (float64, bool) {
	s := m.shardFor(pos)
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.recs[pos]; r != nil {
		return r.health, true
	}
	return 0, false
}

// Attackers reports the current attacker count for the obstacle.
func (m *Manager) Attackers(pos geo.Cell) int {
	s := m.shardFor(pos)
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.recs[pos]; r != nil {
		return len(r.attackers)
	}
	return 0
}

// Cleanup drops records idle beyond the timeout with no attackers, and
// records whose backing block no longer matches the kind seen at creation
// (the obstacle was removed or replaced externally). Returns the number of
// records removed.
func (m *Manager) Cleanup() int {
	now := m.nowFn()
	removed := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for pos, r := range s.recs {
			if len(r.attackers) == 0 && now.Sub(r.lastAttacked) > m.idleTimeout {
				delete(s.recs, pos)
				removed++
				continue
			}
			if m.query.BlockKindAt(pos) != r.kind {
				delete(s.recs, pos)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}
