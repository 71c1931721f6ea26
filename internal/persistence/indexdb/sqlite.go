// Package indexdb maintains a sqlite read-model of raid activity. It is a
// secondary index: writes are queued to a single writer goroutine and dropped
// when the queue is full; the JSONL raid logs remain the source of truth.
package indexdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"raidcraft.ai/internal/sim/behavior"
)

type RaidIndex struct {
	db      *sql.DB
	session string

	ch   chan behavior.Event
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

func Open(path string) (*RaidIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &RaidIndex{
		db:      db,
		session: uuid.NewString(),
		// High buffer: bursts of events from many agents must not stall the sim.
		ch: make(chan behavior.Event, 65536),
	}
	if _, err := db.Exec(
		`INSERT INTO sessions (id, started_at) VALUES (?, ?);`,
		s.session, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			at TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			type TEXT NOT NULL,
			state TEXT,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			detail TEXT,
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_agent ON events(agent_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(type, seq);`,
		`CREATE TABLE IF NOT EXISTS breaches (
			session_id TEXT NOT NULL,
			at TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			pos TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_breaches_agent ON breaches(agent_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *RaidIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Session reports the id under which this run's rows are recorded.
func (s *RaidIndex) Session() string { return s.session }

// Dropped reports events discarded because the index fell behind.
func (s *RaidIndex) Dropped() uint64 { return s.dropped.Load() }

// WriteEvent queues a behavior event for indexing. Never blocks.
func (s *RaidIndex) WriteEvent(ev behavior.Event) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
	}
	return nil
}

func (s *RaidIndex) loop() {
	seq := 0
	for ev := range s.ch {
		seq++
		at := ev.Time.UTC().Format(time.RFC3339Nano)
		_, err := s.db.Exec(
			`INSERT INTO events (session_id, seq, at, agent_id, type, state, x, y, z, detail)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
			s.session, seq, at, ev.AgentID, ev.Type, ev.State, ev.Pos.X, ev.Pos.Y, ev.Pos.Z, ev.Detail,
		)
		if err != nil {
			continue // index writes are best-effort
		}
		if ev.Type == behavior.EventDoorDestroyed {
			_, _ = s.db.Exec(
				`INSERT INTO breaches (session_id, at, agent_id, pos) VALUES (?, ?, ?, ?);`,
				s.session, at, ev.AgentID, ev.Detail,
			)
		}
	}
}

// AgentTimeline returns the ordered event types recorded for one agent; a
// debugging helper for tools and tests.
func (s *RaidIndex) AgentTimeline(agentID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT type FROM events WHERE session_id = ? AND agent_id = ? ORDER BY seq;`,
		s.session, agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// BreachCount reports destroyed obstacles in this session, optionally
// filtered by agent.
func (s *RaidIndex) BreachCount(agentID string) (int, error) {
	q := `SELECT COUNT(*) FROM breaches WHERE session_id = ?`
	args := []any{s.session}
	if strings.TrimSpace(agentID) != "" {
		q += ` AND agent_id = ?`
		args = append(args, agentID)
	}
	var n int
	if err := s.db.QueryRow(q+";", args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
